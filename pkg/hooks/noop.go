package hooks

import "context"

// NoopTrafficCapture satisfies TrafficCapture without capturing anything;
// the default when traffic capture is disabled in configuration.
type NoopTrafficCapture struct{}

func (NoopTrafficCapture) Start(_ context.Context, _ string) error { return nil }
func (NoopTrafficCapture) Stop(_ context.Context) error            { return nil }

// NoopVideoRecorder satisfies VideoRecorder without recording anything.
type NoopVideoRecorder struct{}

func (NoopVideoRecorder) Start(_ context.Context, _ string) error { return nil }
func (NoopVideoRecorder) Stop(_ context.Context) error            { return nil }

// NoopStaticAnalyzer satisfies StaticAnalyzer without running any analysis.
type NoopStaticAnalyzer struct{}

func (NoopStaticAnalyzer) Analyze(_ context.Context, _, _ string) error { return nil }

// NoopScreenshotAnnotator satisfies ScreenshotAnnotator without drawing
// anything; used when annotation is disabled.
type NoopScreenshotAnnotator struct{}

func (NoopScreenshotAnnotator) Annotate(_ context.Context, _, _, _ string) error { return nil }

var (
	_ TrafficCapture      = NoopTrafficCapture{}
	_ VideoRecorder       = NoopVideoRecorder{}
	_ StaticAnalyzer      = NoopStaticAnalyzer{}
	_ ScreenshotAnnotator = NoopScreenshotAnnotator{}
)
