package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
)

func TestMask_RedactsConfiguredCredentials(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{
		Email:    "test@example.com",
		Password: "Test123!",
		Name:     "Test User",
	})

	out := svc.Mask(`journal: logged in as test@example.com with password Test123!`)

	assert.NotContains(t, out, "test@example.com")
	assert.NotContains(t, out, "Test123!")
	assert.Contains(t, out, "[MASKED_EMAIL]")
	assert.Contains(t, out, "[MASKED_PASSWORD]")
}

func TestMask_RedactsGenericEmailEvenWithoutConfiguredCredentials(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})

	out := svc.Mask("contact us at support@otherapp.com for help")

	assert.NotContains(t, out, "support@otherapp.com")
	assert.Contains(t, out, "[MASKED_EMAIL]")
}

func TestMask_RedactsBearerToken(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})

	out := svc.Mask("Authorization: Bearer abcDEF123.xyz789")

	assert.NotContains(t, out, "abcDEF123.xyz789")
	assert.Contains(t, out, "[MASKED_TOKEN]")
}

func TestMask_EmptyInput(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})
	assert.Equal(t, "", svc.Mask(""))
}

func TestMask_LeavesUnrelatedTextUntouched(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{Password: "Test123!"})
	out := svc.Mask("tapped login_btn, screen transitioned to H2")
	assert.Equal(t, "tapped login_btn, screen transitioned to H2", out)
}

func TestMaskEmailForObserver(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})

	tests := []struct {
		email string
		want  string
	}{
		{"test@example.com", "t***@example.com"},
		{"", ""},
		{"not-an-email", "[MASKED_EMAIL]"},
		{"@example.com", "[MASKED_EMAIL]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.MaskEmailForObserver(tt.email))
	}
}
