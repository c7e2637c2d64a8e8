package email

import (
	"context"
	"testing"

	"github.com/smallbiznis/accounts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderEscapesData(t *testing.T) {
	body, err := Render(TemplateOTPCode, map[string]any{
		"name":       "<b>ali</b>",
		"token":      "12345678",
		"expires_at": "soon",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "12345678")
	assert.Contains(t, body, "&lt;b&gt;ali&lt;/b&gt;")

	_, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "You're invited to join Acme", subjectFor(TemplateInviteMember, map[string]any{"org_name": "Acme"}))
	assert.Equal(t, "custom", subjectFor(TemplateOTPCode, map[string]any{"subject": "custom"}))
	assert.Equal(t, "Your verification code", subjectFor(TemplateOTPCode, nil))
}

func TestNewFromConfigDisabled(t *testing.T) {
	p := NewFromConfig(config.Config{}, zap.NewNop())
	_, ok := p.(*NoOpProvider)
	assert.True(t, ok)
	assert.NoError(t, p.SendTemplate(context.Background(), []string{"a@b.c"}, TemplateOTPCode, nil))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.SendTemplate(context.Background(), []string{"a@b.c"}, TemplateOTPCode, map[string]any{"token": "1"}))
	sent := r.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, TemplateOTPCode, sent[0].Template)
}
