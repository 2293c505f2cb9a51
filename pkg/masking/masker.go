package masking

import "strings"

// Masker is the interface for code-aware maskers that need more than regex
// pattern matching to decide whether and how to redact something.
type Masker interface {
	// Name returns the unique identifier for this masker.
	Name() string

	// AppliesTo performs a lightweight check on whether this masker should
	// process the data. Should be fast (string contains, not parsing).
	AppliesTo(data string) bool

	// Mask applies masking logic and returns the masked result.
	// Must be defensive: return original data on parse/processing errors.
	Mask(data string) string
}

// CredentialValueMasker redacts the literal configured test credential values
// (email, password, name) wherever they appear verbatim. Regex patterns catch
// well-known shapes like "password: ..." or an email address, but a test
// password such as "Test123!" has no distinguishing shape of its own — it can
// only be found by knowing what it is.
type CredentialValueMasker struct {
	Email    string
	Password string
	Name     string
}

func (m *CredentialValueMasker) Name() string { return "credential_value" }

func (m *CredentialValueMasker) AppliesTo(data string) bool {
	if data == "" {
		return false
	}
	return (m.Password != "" && strings.Contains(data, m.Password)) ||
		(m.Email != "" && strings.Contains(data, m.Email)) ||
		(m.Name != "" && strings.Contains(data, m.Name))
}

func (m *CredentialValueMasker) Mask(data string) string {
	masked := data
	if m.Password != "" {
		masked = strings.ReplaceAll(masked, m.Password, "[MASKED_PASSWORD]")
	}
	if m.Email != "" {
		masked = strings.ReplaceAll(masked, m.Email, "[MASKED_EMAIL]")
	}
	if m.Name != "" {
		masked = strings.ReplaceAll(masked, m.Name, "[MASKED_NAME]")
	}
	return masked
}
