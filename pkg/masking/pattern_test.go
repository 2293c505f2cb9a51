package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
)

func TestCompileBuiltinPatterns(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})

	builtin := config.GetBuiltinConfig()
	assert.Equal(t, len(builtin.MaskingPatterns), len(svc.patterns))

	for name, cp := range svc.patterns {
		assert.NotNil(t, cp.Regex, "pattern %s should have compiled regex", name)
		assert.NotEmpty(t, cp.Replacement, "pattern %s should have replacement", name)
	}
}

func TestResolvePatternsFromGroup_All(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})

	resolved := svc.resolvePatternsFromGroup("all")

	assert.Len(t, resolved.regexPatterns, len(config.GetBuiltinConfig().MaskingPatterns))
	require.Len(t, resolved.codeMaskerNames, 1)
	assert.Equal(t, "credential_value", resolved.codeMaskerNames[0])
}

func TestResolvePatternsFromGroup_UnknownGroup(t *testing.T) {
	svc := NewMaskingService(config.CredentialsConfig{})

	resolved := svc.resolvePatternsFromGroup("nonexistent")

	assert.Empty(t, resolved.regexPatterns)
	assert.Empty(t, resolved.codeMaskerNames)
}
