// Package hooks declares the optional lifecycle integrations CrawlLoop
// starts at PRECHECK and stops/invokes at FINISHING: traffic capture, video
// recording, static analysis, and screenshot annotation. None of these are
// implemented here beyond a no-op stub — the real integrations are
// out-of-scope external tools consumed through these narrow interfaces.
package hooks

import "context"

// TrafficCapture controls packet capture for the run's device session.
type TrafficCapture interface {
	// Start begins capturing to outputPath (a .pcap file under the run's
	// session directory).
	Start(ctx context.Context, outputPath string) error
	// Stop ends the capture. Safe to call even if Start was never called.
	Stop(ctx context.Context) error
}

// VideoRecorder controls screen recording for the run's device session.
type VideoRecorder interface {
	Start(ctx context.Context, outputPath string) error
	// Stop ends recording and saves the video to the path given to Start.
	Stop(ctx context.Context) error
}

// StaticAnalyzer runs an external static-analysis pass over the crawled
// app once a run finishes, producing a report at reportPath.
type StaticAnalyzer interface {
	Analyze(ctx context.Context, appPackage, reportPath string) error
}

// ScreenshotAnnotator draws UI-element overlays onto a captured screenshot,
// writing the result to annotatedPath. Invoked once per screen during
// FINISHING.
type ScreenshotAnnotator interface {
	Annotate(ctx context.Context, screenshotPath, uiTreeXML, annotatedPath string) error
}

// Hooks bundles the optional integrations a CrawlLoop run may enable. A nil
// field means that hook is disabled for this run.
type Hooks struct {
	Traffic   TrafficCapture
	Video     VideoRecorder
	Analyzer  StaticAnalyzer
	Annotator ScreenshotAnnotator
}

// StartAll starts every enabled hook, in the order traffic capture then
// video. Best-effort: the first error aborts startup of the remaining
// hooks and is returned so CrawlLoop can log-and-continue (per spec, hook
// failures are never fatal to a run).
func (h Hooks) StartAll(ctx context.Context, trafficPath, videoPath string) error {
	if h.Traffic != nil {
		if err := h.Traffic.Start(ctx, trafficPath); err != nil {
			return err
		}
	}
	if h.Video != nil {
		if err := h.Video.Start(ctx, videoPath); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every enabled hook, continuing past individual errors and
// returning the last one encountered (if any) for logging.
func (h Hooks) StopAll(ctx context.Context) error {
	var lastErr error
	if h.Traffic != nil {
		if err := h.Traffic.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	if h.Video != nil {
		if err := h.Video.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
