// Package crawlcontext assembles the three lists PromptBuilder needs about
// a run's history: recent steps, visited screens, and actions already tried
// on the current screen — with system/launcher/out-of-target noise filtered
// out before it ever reaches a prompt.
package crawlcontext

import (
	"context"
	"fmt"
	"regexp"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/codeready-toolchain/crawlforge/pkg/persistence"
)

const recentStepsLimit = 20

// systemActivityPatterns match activity identifiers belonging to the
// launcher, the permission picker, and other chrome that carries no
// exploration signal.
var systemActivityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)com\.android\.launcher`),
	regexp.MustCompile(`(?i)permissioncontroller`),
	regexp.MustCompile(`(?i)\.GrantPermissionsActivity$`),
	regexp.MustCompile(`(?i)com\.android\.systemui`),
	regexp.MustCompile(`(?i)com\.android\.settings`),
}

// Store is the narrow PersistenceStore slice ContextBuilder depends on.
type Store interface {
	GetRecentSteps(ctx context.Context, runID int64, limit int) ([]models.Step, error)
	GetVisitedScreensSummary(ctx context.Context, runID int64) ([]persistence.ScreenSummary, error)
	GetActionsForScreen(ctx context.Context, runID, screenID int64) ([]models.Step, error)
}

// Builder is the ContextBuilder.
type Builder struct {
	store              Store
	targetPackage      string
	allowedExternal    map[string]bool
}

// New constructs a Builder. targetPackage is the app under test;
// allowedExternal names additional packages whose screens should still
// appear in context (e.g. an OAuth browser tab).
func New(store Store, targetPackage string, allowedExternal []string) *Builder {
	allow := make(map[string]bool, len(allowedExternal))
	for _, p := range allowedExternal {
		allow[p] = true
	}
	return &Builder{store: store, targetPackage: targetPackage, allowedExternal: allow}
}

// Context is the bundle ContextBuilder returns for a step.
type Context struct {
	RecentSteps       []models.Step
	VisitedScreens    []persistence.ScreenSummary
	CurrentScreenTried []models.Step
}

// Build assembles the context for (runID, fromScreenID). The activity
// filter never perturbs step numbering — it only shapes what is included
// for the prompt.
func (b *Builder) Build(ctx context.Context, runID, fromScreenID int64) (*Context, error) {
	recent, err := b.store.GetRecentSteps(ctx, runID, recentStepsLimit)
	if err != nil {
		return nil, fmt.Errorf("crawlcontext: recent steps: %w", err)
	}

	visited, err := b.store.GetVisitedScreensSummary(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("crawlcontext: visited screens: %w", err)
	}
	visited = b.filterScreens(visited)

	tried, err := b.store.GetActionsForScreen(ctx, runID, fromScreenID)
	if err != nil {
		return nil, fmt.Errorf("crawlcontext: actions for screen: %w", err)
	}

	return &Context{RecentSteps: recent, VisitedScreens: visited, CurrentScreenTried: tried}, nil
}

func (b *Builder) filterScreens(screens []persistence.ScreenSummary) []persistence.ScreenSummary {
	out := make([]persistence.ScreenSummary, 0, len(screens))
	for _, s := range screens {
		if b.isSystemActivity(s.Screen.ActivityName) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// isSystemActivity reports whether activity belongs to system/launcher/
// permission-picker chrome, or to a foreign package not explicitly
// allow-listed. Activity identifiers are expected in
// "package/.ActivityClass" or bare-activity-class form; package-based
// filtering is skipped when no package prefix is present.
func (b *Builder) isSystemActivity(activity string) bool {
	for _, pattern := range systemActivityPatterns {
		if pattern.MatchString(activity) {
			return true
		}
	}
	pkg := packageOf(activity)
	if pkg == "" || pkg == b.targetPackage {
		return false
	}
	return !b.allowedExternal[pkg]
}

// packageOf extracts the package segment of a "pkg/.Activity"-shaped
// identifier; returns "" if activity carries no package prefix.
func packageOf(activity string) string {
	for i := 0; i < len(activity); i++ {
		if activity[i] == '/' {
			return activity[:i]
		}
	}
	return ""
}
