package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "****5948", MaskSecret("0084575948"))
}

func TestMetadataMasksSensitiveKeysAtAnyDepth(t *testing.T) {
	out := Metadata(map[string]any{
		"email":       "ada@example.com",
		"National_ID": "0084575948",
		"attempts":    3,
		"":            "dropped",
		"authority_data": map[string]any{
			"ref_id": "ZP-123456789",
			"amount": 1500,
		},
		"changes": []any{
			map[string]any{"password": "hunter2hunter2"},
		},
	})

	assert.Equal(t, "ada@example.com", out["email"])
	assert.Equal(t, "****5948", out["National_ID"])
	assert.Equal(t, 3, out["attempts"])
	assert.NotContains(t, out, "")
	assert.Equal(t, map[string]any{"ref_id": "****6789", "amount": 1500}, out["authority_data"])
	assert.Equal(t, []any{map[string]any{"password": "****ter2"}}, out["changes"])
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive(" Token "))
	assert.False(t, IsSensitive("email"))
}
