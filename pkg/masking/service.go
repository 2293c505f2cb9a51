package masking

import (
	"log/slog"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
)

// MaskingService redacts credentials and other secret-shaped text before it
// reaches logs, the exploration journal, or an observer event. Created once
// at application startup (singleton) from the run's CredentialsConfig.
// Thread-safe and stateless aside from compiled patterns.
type MaskingService struct {
	patterns      map[string]*CompiledPattern
	patternGroups map[string][]string
	codeMaskers   map[string]Masker
}

// NewMaskingService compiles the built-in patterns and registers a
// CredentialValueMasker seeded from the run's configured test credentials, so
// the literal password/email/name in use this run is always caught even
// though it has no generic shape of its own.
func NewMaskingService(creds config.CredentialsConfig) *MaskingService {
	s := &MaskingService{
		patterns:      make(map[string]*CompiledPattern),
		patternGroups: config.GetBuiltinConfig().PatternGroups,
		codeMaskers:   make(map[string]Masker),
	}

	s.compileBuiltinPatterns()
	s.registerMasker(&CredentialValueMasker{
		Email:    creds.Email,
		Password: creds.Password,
		Name:     creds.Name,
	})

	slog.Info("masking service initialized",
		"builtin_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers))

	return s
}

// Mask redacts credential and secret-shaped content from free text: a
// journal entry the LLM wrote, a device-server response body, or any other
// string about to be logged or persisted. Defensive: a panicking code masker
// is caught and the original text returned unmasked rather than losing the
// caller's data or crashing the crawl loop (fail-open — this service is only
// ever called from non-authoritative paths, logging and journaling, never
// the run's own state).
func (s *MaskingService) Mask(content string) (masked string) {
	if content == "" {
		return content
	}
	masked = content
	defer func() {
		if r := recover(); r != nil {
			slog.Error("masking panicked, returning original content unmasked", "panic", r)
			masked = content
		}
	}()

	resolved := s.resolvePatternsFromGroup("all")
	return s.applyMasking(content, resolved)
}

// MaskEmailForObserver partially redacts an email address for read-only
// dashboard observers: the domain is kept so an operator can tell which
// environment a run authenticated against, but the local part is hidden.
// Used for events.CredentialUsedPayload.Email before it crosses the
// WebSocket bridge.
func (s *MaskingService) MaskEmailForObserver(email string) string {
	if email == "" {
		return email
	}
	at := -1
	for i, r := range email {
		if r == '@' {
			at = i
			break
		}
	}
	if at <= 0 || at == len(email)-1 {
		return "[MASKED_EMAIL]"
	}
	return email[:1] + "***" + email[at:]
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *MaskingService) applyMasking(content string, resolved *resolvedPatterns) string {
	masked := content

	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked
}

// registerMasker registers a code-based masker by its name.
func (s *MaskingService) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
