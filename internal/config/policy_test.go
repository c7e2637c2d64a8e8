package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPolicyHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewPolicyHolder(Config{}, zap.NewNop())
	require.NoError(t, err)

	p := holder.Get()
	assert.Equal(t, 10, p.OTP.TTLMinutes)
	assert.Equal(t, 10*time.Minute, p.OTP.TTL())
	assert.Equal(t, 8, p.Password.MinLength)
}

func TestPolicyHolderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
otp:
  ttlMinutes: 5
  deliverByEmail: true
  rateLimit:
    rate: 2
    burst: 10
password:
  minLength: 12
`), 0o600))

	holder, err := NewPolicyHolder(Config{PolicyPath: path}, zap.NewNop())
	require.NoError(t, err)

	p := holder.Get()
	assert.Equal(t, 5*time.Minute, p.OTP.TTL())
	assert.True(t, p.OTP.DeliverByEmail)
	assert.Equal(t, 10, p.OTP.RateLimit.Burst)
	assert.Equal(t, 12, p.Password.MinLength)
}

func TestPolicyHolderRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yml")
	require.NoError(t, os.WriteFile(path, []byte("otp:\n  ttlMinutes: 0\n"), 0o600))

	_, err := NewPolicyHolder(Config{PolicyPath: path}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("SMTP_PORT", "2525")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 2525, cfg.Email.SMTPPort)
}
