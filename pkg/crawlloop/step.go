package crawlloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/codeready-toolchain/crawlforge/pkg/actions"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlcontext"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlerrors"
	"github.com/codeready-toolchain/crawlforge/pkg/events"
	"github.com/codeready-toolchain/crawlforge/pkg/executor"
	"github.com/codeready-toolchain/crawlforge/pkg/fingerprint"
	"github.com/codeready-toolchain/crawlforge/pkg/flagcontrol"
	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/codeready-toolchain/crawlforge/pkg/prompt"
	"github.com/codeready-toolchain/crawlforge/pkg/screenstate"
	"github.com/codeready-toolchain/crawlforge/pkg/stuckdetector"
	"github.com/codeready-toolchain/crawlforge/pkg/telemetry"
)

// runStep executes one decision-execution cycle: capture the current
// screen, check whether the run is stuck, ask the model for its next
// batch of actions, execute it, and record the outcome. It returns
// terminated=true once the run has exhausted its step or time budget. A
// non-nil error means CrawlLoop must abort the whole run — a lost device
// session or equivalent; every other failure (a bad LLM response, a
// missing element, a momentary context loss) is recorded against the step
// and the run continues to the next one.
func (l *CrawlLoop) runStep(ctx context.Context) (terminated bool, err error) {
	if l.honorControlFlags(ctx) {
		return true, nil
	}
	if !l.device.ValidateSession(ctx) {
		return true, fmt.Errorf("crawlloop: %w", crawlerrors.ErrSession)
	}

	l.stepCount++
	stepNumber := l.stepCount
	runIDStr := fmt.Sprintf("%d", l.runID)

	if l.opt.EventBus != nil {
		l.opt.EventBus.PublishStepStarted(events.StepStartedPayload{RunID: runIDStr, StepNumber: stepNumber})
	}

	var stepSpan trace.Span
	if l.opt.Telemetry != nil {
		ctx, stepSpan = l.opt.Telemetry.StartStepSpan(ctx, runIDStr, stepNumber)
		defer func() {
			telemetry.MarkResult(stepSpan, err)
			stepSpan.End()
		}()
	}

	currentPkg, pkgErr := l.device.GetCurrentPackage(ctx)
	if pkgErr != nil || !l.isAllowedPackage(currentPkg) {
		l.stats.ContextLossEvents++
		l.lastActionFeedback = fmt.Sprintf("previous step: %v, left the target app (now in %q)", crawlerrors.ErrContextMismatch, currentPkg)
		return l.checkTermination(ctx), nil
	}

	candidate, capErr := l.screens.GetCurrentScreenRepresentation(ctx, l.runID, stepNumber)
	if capErr != nil || candidate == nil {
		l.stats.ContextLossEvents++
		l.lastActionFeedback = "previous step: could not capture the current screen"
		return l.checkTermination(ctx), nil
	}

	fromFinal, recErr := l.screens.ProcessAndRecordState(ctx, candidate, l.runID, stepNumber, false)
	if recErr != nil {
		slog.Warn("crawlloop: record current screen failed", "run_id", l.runID, "step", stepNumber, "error", recErr)
		l.lastActionFeedback = "previous step: failed to record the current screen"
		return l.checkTermination(ctx), nil
	}
	fromScreenID := fromFinal.Screen.ID
	l.publishScreenDiscovered(fromFinal)

	journal, jErr := l.persistence.GetExplorationJournal(ctx, l.runID)
	if jErr != nil {
		slog.Warn("crawlloop: read journal failed", "run_id", l.runID, "error", jErr)
	}

	crawlCtx, ctxErr := l.context.Build(ctx, l.runID, fromScreenID)
	if ctxErr != nil {
		slog.Warn("crawlloop: build context failed", "run_id", l.runID, "error", ctxErr)
		crawlCtx = &crawlcontext.Context{}
	}

	recentRecords := toActionRecords(crawlCtx.RecentSteps)
	triedRecords := toActionRecords(crawlCtx.CurrentScreenTried)
	stuck, stuckReason := stuckdetector.Detect(fromScreenID, int(fromFinal.VisitCount), recentRecords, triedRecords)
	if stuck {
		l.stats.StuckDetections++
		if l.opt.EventBus != nil {
			l.opt.EventBus.PublishStuckDetected(events.StuckDetectedPayload{
				RunID: runIDStr, ScreenID: fmt.Sprintf("%d", fromScreenID), Reason: stuckReason,
			})
		}
	}

	if l.honorControlFlags(ctx) {
		return true, nil
	}

	hasCreds, credBlock := l.lookupCredentials(ctx)
	ocrRefs, promptInput := l.buildPromptInput(candidate, fromFinal, crawlCtx, journal, stuckReason, hasCreds, credBlock)
	promptText := l.prompts.Format(promptInput)
	if hasCreds && l.opt.EventBus != nil {
		l.opt.EventBus.PublishCredentialUsed(events.CredentialUsedPayload{
			RunID: runIDStr, AppPackage: l.cfg.TargetApp.Package, Email: maskEmail(credBlock.Email),
		})
	}

	var image []byte
	if l.cfg.Features.EnableImageContext {
		image = candidate.Screenshot
	}

	if l.honorControlFlags(ctx) {
		return true, nil
	}

	llmCtx := ctx
	var llmSpan trace.Span
	if l.opt.Telemetry != nil {
		llmCtx, llmSpan = l.opt.Telemetry.StartLLMSpan(ctx, l.cfg.ActiveLLMProvider)
	}
	llmStart := time.Now()
	genResult, genErr := l.llm.GenerateResponse(llmCtx, promptText, image)
	llmMs := time.Since(llmStart).Milliseconds()
	if llmSpan != nil {
		telemetry.MarkResult(llmSpan, genErr)
		llmSpan.End()
	}
	if l.opt.Metrics != nil {
		l.opt.Metrics.LLMResponseMs.Record(ctx, float64(llmMs))
	}

	if genErr != nil || strings.TrimSpace(genResult.Text) == "" {
		l.stats.LLMRetries++
		errMsg := "empty response"
		if genErr != nil {
			errMsg = genErr.Error()
		}
		l.recordFailedStep(ctx, stepNumber, fromScreenID, promptText, genResult.Text, errMsg, llmMs)
		l.lastActionFeedback = fmt.Sprintf("previous step failed: %v: %s", crawlerrors.ErrAI, errMsg)
		return l.checkTermination(ctx), nil
	}

	batch, parseErr := actions.Parse(genResult.Text, ocrRefs)
	if parseErr != nil {
		l.stats.LLMRetries++
		l.recordFailedStep(ctx, stepNumber, fromScreenID, promptText, genResult.Text, parseErr.Error(), llmMs)
		l.lastActionFeedback = fmt.Sprintf("previous step failed: %v: %v", crawlerrors.ErrAI, parseErr)
		return l.checkTermination(ctx), nil
	}

	if batch.Journal != "" {
		text := truncateJournal(batch.Journal, l.cfg.Crawl.ExplorationJournalMaxLen)
		if err := l.persistence.UpdateExplorationJournal(ctx, l.runID, text); err != nil {
			slog.Warn("crawlloop: update journal failed", "run_id", l.runID, "error", err)
		}
	}
	if batch.SignupCompleted {
		if err := l.credentials.Store(ctx, l.cfg.TargetApp.Package, l.cfg.Credentials.Email, l.cfg.Credentials.Password, l.cfg.Credentials.Name, ""); err != nil {
			slog.Warn("crawlloop: store credentials failed", "run_id", l.runID, "error", err)
		}
	}

	if l.honorControlFlags(ctx) {
		return true, nil
	}

	execResult := l.exec.ExecuteBatch(ctx, batch.Actions, l.cfg.Crawl.Wait.BetweenBatchSteps, l.cfg.Crawl.MultiActionStopOnError)
	if !execResult.Success() {
		l.stats.ElementNotFound++
	}
	if l.cfg.Crawl.Wait.AfterAction > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(l.cfg.Crawl.Wait.AfterAction):
		}
	}

	var toScreenID *int64
	landing, landErr := l.screens.GetCurrentScreenRepresentation(ctx, l.runID, stepNumber)
	if landErr != nil || landing == nil {
		slog.Warn("crawlloop: capture landing screen failed", "run_id", l.runID, "step", stepNumber, "error", landErr)
	} else if toFinal, procErr := l.screens.ProcessAndRecordState(ctx, landing, l.runID, stepNumber, true); procErr != nil {
		slog.Warn("crawlloop: record landing screen failed", "run_id", l.runID, "step", stepNumber, "error", procErr)
	} else {
		id := toFinal.Screen.ID
		toScreenID = &id
		l.publishScreenDiscovered(toFinal)
	}

	normalized, _ := json.Marshal(batch.Actions)
	step := &models.Step{
		RunID:             l.runID,
		StepNumber:        stepNumber,
		FromScreenID:      fromScreenID,
		ToScreenID:        toScreenID,
		ActionDescription: describeActions(batch.Actions),
		RawLLMSuggestion:  genResult.Text,
		NormalizedAction:  string(normalized),
		Success:           execResult.Success(),
		LLMResponseMs:     llmMs,
		LLMPrompt:         promptText,
	}
	if genResult.Usage.TotalTokens > 0 {
		tokens := genResult.Usage.TotalTokens
		step.TotalTokens = &tokens
	}
	if execResult.BatchError != nil {
		step.ErrorMessage = execResult.BatchError.Error()
	}
	if _, err := l.persistence.InsertStep(ctx, step); err != nil {
		slog.Warn("crawlloop: insert step failed", "run_id", l.runID, "step", stepNumber, "error", err)
	}

	l.publishStepEvents(runIDStr, stepNumber, fromScreenID, toScreenID, execResult)
	if l.opt.Metrics != nil {
		l.opt.Metrics.RecordStep(ctx, execResult.ExecutedCount)
		l.opt.Metrics.BatchesExecuted.Add(ctx, 1)
		if genResult.Usage.TotalTokens > 0 {
			l.opt.Metrics.TokensUsed.Add(ctx, int64(genResult.Usage.TotalTokens))
		}
	}

	l.lastActionFeedback = composeFeedback(step, execResult, toScreenID)

	if err := l.runStepGate(ctx); err != nil {
		return false, nil
	}

	return l.checkTermination(ctx), nil
}

// honorControlFlags blocks while the Pause flag is present and reports
// whether Shutdown has been requested, either before or after the pause.
func (l *CrawlLoop) honorControlFlags(ctx context.Context) (shutdown bool) {
	if l.flags.Exists(flagcontrol.Shutdown) {
		return true
	}
	if !l.flags.Exists(flagcontrol.Pause) {
		return false
	}

	runIDStr := fmt.Sprintf("%d", l.runID)
	if l.opt.EventBus != nil {
		l.opt.EventBus.PublishRunPaused(events.RunPausedPayload{RunID: runIDStr})
	}
	_ = l.flags.WaitUntilAbsent(ctx, flagcontrol.Pause, defaultFlagPollInterval)
	if l.opt.EventBus != nil {
		l.opt.EventBus.PublishRunResumed(events.RunResumedPayload{RunID: runIDStr})
	}
	return l.flags.Exists(flagcontrol.Shutdown)
}

// runStepGate implements single-step external control: when StepGate is
// present after a step is recorded, CrawlLoop blocks until ContinueGate
// appears, then consumes (removes) ContinueGate and moves on. A no-op when
// StepGate is absent.
func (l *CrawlLoop) runStepGate(ctx context.Context) error {
	if !l.flags.Exists(flagcontrol.StepGate) {
		return nil
	}
	ticker := time.NewTicker(defaultFlagPollInterval)
	defer ticker.Stop()
	for !l.flags.Exists(flagcontrol.ContinueGate) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	l.flags.Remove(flagcontrol.ContinueGate)
	return nil
}

// checkTermination persists the stats gathered so far and reports whether
// the run has exhausted its configured step or time budget.
func (l *CrawlLoop) checkTermination(ctx context.Context) bool {
	if err := l.persistence.UpdateRunStats(ctx, l.runID, l.stats); err != nil {
		slog.Warn("crawlloop: update run stats failed", "run_id", l.runID, "error", err)
	}
	if l.cfg.Crawl.MaxSteps > 0 && l.stepCount >= l.cfg.Crawl.MaxSteps {
		return true
	}
	if l.cfg.Crawl.MaxDuration > 0 && time.Since(l.startedAt) >= l.cfg.Crawl.MaxDuration {
		return true
	}
	return false
}

// isAllowedPackage reports whether pkg is the target app or one of the
// configured allowed external packages (e.g. an OAuth browser tab).
func (l *CrawlLoop) isAllowedPackage(pkg string) bool {
	if pkg == "" {
		return false
	}
	if pkg == l.cfg.TargetApp.Package {
		return true
	}
	for _, p := range l.cfg.Crawl.AllowedExternalPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

func (l *CrawlLoop) lookupCredentials(ctx context.Context) (bool, prompt.CredentialBlock) {
	record, err := l.credentials.Get(ctx, l.cfg.TargetApp.Package)
	if err != nil {
		slog.Warn("crawlloop: lookup credentials failed", "run_id", l.runID, "error", err)
		return false, prompt.CredentialBlock{}
	}
	if record == nil {
		return false, prompt.CredentialBlock{}
	}
	return true, prompt.CredentialBlock{Email: record.Email, Password: record.Password, Name: record.Name}
}

// buildPromptInput assembles the dynamic prompt.Input for this step and the
// OCR reference table the action parser needs to resolve "ocr_<i>" targets.
func (l *CrawlLoop) buildPromptInput(
	candidate *screenstate.CandidateScreen,
	fromFinal *screenstate.FinalScreen,
	crawlCtx *crawlcontext.Context,
	journal, stuckReason string,
	hasCreds bool,
	credBlock prompt.CredentialBlock,
) ([]actions.OCRRef, prompt.Input) {
	ocrItems := make([]prompt.OCRItem, 0, len(candidate.OCR))
	ocrRefs := make([]actions.OCRRef, 0, len(candidate.OCR))
	for i, result := range candidate.OCR {
		ocrItems = append(ocrItems, prompt.OCRItem{
			Index: i,
			Text:  result.Text,
			X1:    result.Box.TopLeft.X,
			Y1:    result.Box.TopLeft.Y,
			X2:    result.Box.BottomRight.X,
			Y2:    result.Box.BottomRight.Y,
		})
		ocrRefs = append(ocrRefs, actions.OCRRef{Index: i, Box: result.Box})
	}

	tried := make([]prompt.TriedAction, 0, len(crawlCtx.CurrentScreenTried))
	for _, st := range crawlCtx.CurrentScreenTried {
		landed := st.ToScreenID != nil && *st.ToScreenID != st.FromScreenID
		var landedScreen int64
		if st.ToScreenID != nil {
			landedScreen = *st.ToScreenID
		}
		tried = append(tried, prompt.TriedAction{
			Description:  st.ActionDescription,
			LandedScreen: landedScreen,
			Navigated:    landed,
		})
	}

	input := prompt.Input{
		LastScreenshotBlocked: candidate.Blocked,
		VisitCount:            int(fromFinal.VisitCount),
		LastActionOutcome:     l.lastActionFeedback,
		UITreeJSON:            uiTreeJSON(candidate.UITreeXML),
		OCR:                   ocrItems,
		StuckReason:           stuckReason,
		Journal:               journal,
		TriedActions:          tried,
		HasCredentials:        hasCreds,
		Credentials:           credBlock,
		Signup: prompt.SignupBlock{
			Email:    l.cfg.Credentials.Email,
			Password: l.cfg.Credentials.Password,
			Name:     l.cfg.Credentials.Name,
		},
		Task: fmt.Sprintf("Explore %s, discovering as many distinct screens and flows as possible.", l.cfg.TargetApp.Package),
	}
	return ocrRefs, input
}

// uiTreeJSON renders a captured UI tree as the JSON block the prompt
// embeds. A parse failure degrades to an empty block rather than aborting
// the step — the model still has the screenshot and OCR text to reason
// about.
func uiTreeJSON(rawXML string) string {
	if rawXML == "" {
		return ""
	}
	root, err := fingerprint.ParseUITreeXML([]byte(rawXML))
	if err != nil {
		return ""
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func (l *CrawlLoop) publishScreenDiscovered(final *screenstate.FinalScreen) {
	if !final.WasNew {
		return
	}
	if l.opt.Metrics != nil {
		l.opt.Metrics.ScreensDiscovered.Add(context.Background(), 1)
	}
	if l.opt.EventBus == nil {
		return
	}
	l.opt.EventBus.PublishScreenDiscovered(events.ScreenDiscoveredPayload{
		RunID:          fmt.Sprintf("%d", l.runID),
		ScreenID:       fmt.Sprintf("%d", final.Screen.ID),
		CompositeHash:  final.Screen.CompositeHash,
		ActivityName:   final.Screen.ActivityName,
		ScreenshotPath: final.Screen.ScreenshotPath,
	})
}

func (l *CrawlLoop) publishStepEvents(runIDStr string, stepNumber int, fromScreenID int64, toScreenID *int64, result executor.Result) {
	if l.opt.EventBus == nil {
		return
	}
	for _, ok := range result.PerActionSuccess {
		errMsg := ""
		if !ok && result.BatchError != nil {
			errMsg = result.BatchError.Error()
		}
		l.opt.EventBus.PublishActionExecuted(events.ActionExecutedPayload{
			RunID: runIDStr, StepNumber: stepNumber, Success: ok, ErrorMessage: errMsg,
		})
	}
	toScreen := ""
	if toScreenID != nil {
		toScreen = fmt.Sprintf("%d", *toScreenID)
	}
	l.opt.EventBus.PublishStepRecorded(events.StepRecordedPayload{
		RunID: runIDStr, StepNumber: stepNumber, FromScreenID: fmt.Sprintf("%d", fromScreenID), ToScreenID: toScreen,
	})
}

func (l *CrawlLoop) recordFailedStep(ctx context.Context, stepNumber int, fromScreenID int64, promptText, rawResponse, errMsg string, llmMs int64) {
	step := &models.Step{
		RunID:             l.runID,
		StepNumber:        stepNumber,
		FromScreenID:      fromScreenID,
		ActionDescription: "llm decision failed",
		RawLLMSuggestion:  rawResponse,
		Success:           false,
		ErrorMessage:      errMsg,
		LLMResponseMs:     llmMs,
		LLMPrompt:         promptText,
	}
	if _, err := l.persistence.InsertStep(ctx, step); err != nil {
		slog.Warn("crawlloop: insert failed step failed", "run_id", l.runID, "step", stepNumber, "error", err)
	}
}

// toActionRecords converts persisted steps (chronological, oldest first)
// into stuckdetector.ActionRecord values ordered most-recent-first, as
// Detect requires.
func toActionRecords(steps []models.Step) []stuckdetector.ActionRecord {
	out := make([]stuckdetector.ActionRecord, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		var to int64
		if st.ToScreenID != nil {
			to = *st.ToScreenID
		}
		out = append(out, stuckdetector.ActionRecord{Success: st.Success, FromScreenID: st.FromScreenID, ToScreenID: to})
	}
	return out
}

func describeActions(acts []models.Action) string {
	parts := make([]string, 0, len(acts))
	for _, a := range acts {
		if a.Target != "" {
			parts = append(parts, fmt.Sprintf("%s(%s)", a.Kind, a.Target))
		} else {
			parts = append(parts, string(a.Kind))
		}
	}
	return strings.Join(parts, "; ")
}

func truncateJournal(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}

// composeFeedback renders the outcome fed into next step's "last action
// outcome" prompt section.
func composeFeedback(step *models.Step, result executor.Result, toScreenID *int64) string {
	if !result.Success() {
		if result.BatchError != nil {
			return fmt.Sprintf("%q failed: %v", step.ActionDescription, result.BatchError)
		}
		return fmt.Sprintf("%q did not fully succeed", step.ActionDescription)
	}
	if toScreenID != nil && *toScreenID != step.FromScreenID {
		return fmt.Sprintf("%q succeeded and navigated to a new screen", step.ActionDescription)
	}
	return fmt.Sprintf("%q succeeded, same screen", step.ActionDescription)
}

// maskEmail redacts the local part of an email address for event payloads,
// keeping only enough to distinguish accounts in a log stream.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:2] + "***" + email[at:]
}
