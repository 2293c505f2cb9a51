package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialValueMasker_AppliesToAndMask(t *testing.T) {
	m := &CredentialValueMasker{Email: "a@b.com", Password: "hunter2", Name: "Ada"}

	assert.True(t, m.AppliesTo("logged in as a@b.com"))
	assert.False(t, m.AppliesTo("nothing interesting here"))

	out := m.Mask("user Ada logged in as a@b.com with hunter2")
	assert.Contains(t, out, "[MASKED_NAME]")
	assert.Contains(t, out, "[MASKED_EMAIL]")
	assert.Contains(t, out, "[MASKED_PASSWORD]")
	assert.NotContains(t, out, "hunter2")
}

func TestCredentialValueMasker_EmptyFieldsNeverMatch(t *testing.T) {
	m := &CredentialValueMasker{}
	assert.False(t, m.AppliesTo("anything at all"))
}
