// Package persistence implements the relational store of runs, screens,
// steps, visits, and the exploration journal: a single-file embedded
// database per run. All writes are idempotent on retry via unique
// constraints on (run_id, composite_hash) and (run_id, step_number).
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
)

// Store wraps a single-run SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the database file at path and applies any
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: one writer, simplest correct option for a single-loop process

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreateRun returns the id of an existing RUNNING run for appPackage,
// or creates a new one. Each process invocation is expected to start fresh,
// but idempotent get-or-create mirrors the spec's insert-or-fetch contract
// for retried initialization.
func (s *Store) GetOrCreateRun(ctx context.Context, appPackage, appEntry, provider, model string) (int64, error) {
	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE app_package = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		appPackage, string(models.RunStatusRunning),
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("persistence: find run: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (app_package, app_entry, status, provider, model, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		appPackage, appEntry, string(models.RunStatusRunning), provider, model, now,
	)
	if err != nil {
		return 0, fmt.Errorf("persistence: create run: %w", err)
	}
	return res.LastInsertId()
}

// UpdateRunStatus transitions a run to status, recording endedAt when the
// transition is terminal.
func (s *Store) UpdateRunStatus(ctx context.Context, runID int64, status models.RunStatus, endedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ? WHERE id = ?`,
		string(status), endedAt, runID,
	)
	if err != nil {
		return fmt.Errorf("persistence: update run status: %w", err)
	}
	return nil
}

// UpdateRunStats persists the running counters CrawlLoop maintains.
func (s *Store) UpdateRunStats(ctx context.Context, runID int64, stats models.RunStats) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stuck_detections = ?, llm_retries = ?, element_not_found = ?, app_crashes = ?, context_loss_events = ? WHERE id = ?`,
		stats.StuckDetections, stats.LLMRetries, stats.ElementNotFound, stats.AppCrashes, stats.ContextLossEvents, runID,
	)
	if err != nil {
		return fmt.Errorf("persistence: update run stats: %w", err)
	}
	return nil
}

// GetRun loads a run's current row.
func (s *Store) GetRun(ctx context.Context, runID int64) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, app_package, app_entry, status, provider, model, started_at, ended_at,
		        stuck_detections, llm_retries, element_not_found, app_crashes, context_loss_events
		 FROM runs WHERE id = ?`, runID)

	var r models.Run
	var appEntry, provider, model sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.AppPackage, &appEntry, &r.Status, &provider, &model, &r.StartedAt, &endedAt,
		&r.Stats.StuckDetections, &r.Stats.LLMRetries, &r.Stats.ElementNotFound, &r.Stats.AppCrashes, &r.Stats.ContextLossEvents); err != nil {
		return nil, fmt.Errorf("persistence: get run %d: %w", runID, err)
	}
	r.AppEntry = appEntry.String
	r.Provider = provider.String
	r.Model = model.String
	if endedAt.Valid {
		r.EndedAt = &endedAt.Time
	}
	return &r, nil
}

// UpsertScreen inserts screen if (run_id, composite_hash) is new, otherwise
// returns the existing row's id unmodified — a composite-hash collision is
// the same screen by definition.
func (s *Store) UpsertScreen(ctx context.Context, screen *models.Screen) (id int64, wasNew bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("persistence: begin upsert_screen: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM screens WHERE run_id = ? AND composite_hash = ?`,
		screen.RunID, screen.CompositeHash,
	).Scan(&existing)
	switch {
	case err == nil:
		return existing, false, tx.Commit()
	case err != sql.ErrNoRows:
		return 0, false, fmt.Errorf("persistence: lookup screen: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO screens (run_id, composite_hash, activity_name, screenshot_path, ui_tree_path, ocr_cache_path, first_seen_step)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		screen.RunID, screen.CompositeHash, screen.ActivityName, screen.ScreenshotPath, screen.UITreePath, screen.OCRCachePath, screen.FirstSeenStep,
	)
	if err != nil {
		return 0, false, fmt.Errorf("persistence: insert screen: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return newID, true, tx.Commit()
}

// IncrementVisit increments and returns the per-run per-screen visit count.
// Never reset within a run.
func (s *Store) IncrementVisit(ctx context.Context, runID, screenID int64) (newCount int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("persistence: begin increment_visit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO visits (run_id, screen_id, count) VALUES (?, ?, 0)
		 ON CONFLICT(run_id, screen_id) DO NOTHING`,
		runID, screenID,
	); err != nil {
		return 0, fmt.Errorf("persistence: seed visit row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE visits SET count = count + 1 WHERE run_id = ? AND screen_id = ?`,
		runID, screenID,
	); err != nil {
		return 0, fmt.Errorf("persistence: increment visit: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT count FROM visits WHERE run_id = ? AND screen_id = ?`,
		runID, screenID,
	).Scan(&newCount); err != nil {
		return 0, fmt.Errorf("persistence: read visit count: %w", err)
	}
	return newCount, tx.Commit()
}

// VisitCount reads the current visit count without mutating it.
func (s *Store) VisitCount(ctx context.Context, runID, screenID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM visits WHERE run_id = ? AND screen_id = ?`, runID, screenID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("persistence: visit count: %w", err)
	}
	return count, nil
}

// InsertStep writes a Step row. step_number must be dense and strictly
// increasing per run; the unique constraint makes a duplicate insert on
// retry a no-op error the caller can safely ignore via errors.Is checks on
// the underlying sqlite3 error, rather than corrupting step numbering.
func (s *Store) InsertStep(ctx context.Context, step *models.Step) (int64, error) {
	res, execErr := s.db.ExecContext(ctx,
		`INSERT INTO steps_log (run_id, step_number, from_screen_id, to_screen_id, action_description,
		 raw_llm_suggestion, normalized_action, success, error_message, llm_response_ms, total_tokens,
		 llm_prompt, element_find_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.StepNumber, step.FromScreenID, step.ToScreenID, step.ActionDescription,
		step.RawLLMSuggestion, step.NormalizedAction, step.Success, nullableString(step.ErrorMessage), step.LLMResponseMs, step.TotalTokens,
		step.LLMPrompt, step.ElementFindMs, time.Now().UTC(),
	)
	if execErr != nil {
		return 0, fmt.Errorf("persistence: insert step %d for run %d: %w", step.StepNumber, step.RunID, execErr)
	}
	return res.LastInsertId()
}

// GetRecentSteps returns the most recent steps for a run, most-recent last,
// capped at limit.
func (s *Store) GetRecentSteps(ctx context.Context, runID int64, limit int) ([]models.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, step_number, from_screen_id, to_screen_id, action_description,
		        raw_llm_suggestion, normalized_action, success, error_message, llm_response_ms,
		        total_tokens, llm_prompt, element_find_ms, created_at
		 FROM steps_log WHERE run_id = ? ORDER BY step_number DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("persistence: get recent steps: %w", err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var st models.Step
		var toScreen sql.NullInt64
		var errMsg sql.NullString
		var totalTokens sql.NullInt64
		var elementFindMs sql.NullInt64
		if err := rows.Scan(&st.ID, &st.RunID, &st.StepNumber, &st.FromScreenID, &toScreen, &st.ActionDescription,
			&st.RawLLMSuggestion, &st.NormalizedAction, &st.Success, &errMsg, &st.LLMResponseMs,
			&totalTokens, &st.LLMPrompt, &elementFindMs, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("persistence: scan step: %w", err)
		}
		if toScreen.Valid {
			v := toScreen.Int64
			st.ToScreenID = &v
		}
		st.ErrorMessage = errMsg.String
		if totalTokens.Valid {
			v := int(totalTokens.Int64)
			st.TotalTokens = &v
		}
		if elementFindMs.Valid {
			v := elementFindMs.Int64
			st.ElementFindMs = &v
		}
		steps = append(steps, st)
	}

	// reverse into most-recent-last order
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps, rows.Err()
}

// ScreenSummary is a visited-screens summary row: screen plus its visit count.
type ScreenSummary struct {
	Screen models.Screen
	Visits int64
}

// GetVisitedScreensSummary lists every screen seen in the run with its
// current visit count.
func (s *Store) GetVisitedScreensSummary(ctx context.Context, runID int64) ([]ScreenSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sc.id, sc.run_id, sc.composite_hash, sc.activity_name, sc.screenshot_path,
		        sc.ui_tree_path, sc.ocr_cache_path, sc.first_seen_step, COALESCE(v.count, 0)
		 FROM screens sc LEFT JOIN visits v ON v.run_id = sc.run_id AND v.screen_id = sc.id
		 WHERE sc.run_id = ? ORDER BY sc.id`, runID)
	if err != nil {
		return nil, fmt.Errorf("persistence: get visited screens summary: %w", err)
	}
	defer rows.Close()

	var out []ScreenSummary
	for rows.Next() {
		var sc models.Screen
		var visits int64
		if err := rows.Scan(&sc.ID, &sc.RunID, &sc.CompositeHash, &sc.ActivityName, &sc.ScreenshotPath,
			&sc.UITreePath, &sc.OCRCachePath, &sc.FirstSeenStep, &visits); err != nil {
			return nil, fmt.Errorf("persistence: scan screen summary: %w", err)
		}
		out = append(out, ScreenSummary{Screen: sc, Visits: visits})
	}
	return out, rows.Err()
}

// GetActionsForScreen returns every step recorded with from_screen_id =
// screenID within the run, in step order.
func (s *Store) GetActionsForScreen(ctx context.Context, runID, screenID int64) ([]models.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, step_number, from_screen_id, to_screen_id, action_description,
		        raw_llm_suggestion, normalized_action, success, error_message, llm_response_ms,
		        total_tokens, llm_prompt, element_find_ms, created_at
		 FROM steps_log WHERE run_id = ? AND from_screen_id = ? ORDER BY step_number ASC`,
		runID, screenID)
	if err != nil {
		return nil, fmt.Errorf("persistence: get actions for screen: %w", err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var st models.Step
		var toScreen sql.NullInt64
		var errMsg sql.NullString
		var totalTokens sql.NullInt64
		var elementFindMs sql.NullInt64
		if err := rows.Scan(&st.ID, &st.RunID, &st.StepNumber, &st.FromScreenID, &toScreen, &st.ActionDescription,
			&st.RawLLMSuggestion, &st.NormalizedAction, &st.Success, &errMsg, &st.LLMResponseMs,
			&totalTokens, &st.LLMPrompt, &elementFindMs, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("persistence: scan step: %w", err)
		}
		if toScreen.Valid {
			v := toScreen.Int64
			st.ToScreenID = &v
		}
		st.ErrorMessage = errMsg.String
		if totalTokens.Valid {
			v := int(totalTokens.Int64)
			st.TotalTokens = &v
		}
		if elementFindMs.Valid {
			v := elementFindMs.Int64
			st.ElementFindMs = &v
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// GetExplorationJournal reads the run's journal text, "" if never written.
func (s *Store) GetExplorationJournal(ctx context.Context, runID int64) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM journal WHERE run_id = ?`, runID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("persistence: get journal: %w", err)
	}
	return text, nil
}

// UpdateExplorationJournal upserts the journal text for a run. The system
// never edits this text itself — it only stores whatever the LLM returned.
func (s *Store) UpdateExplorationJournal(ctx context.Context, runID int64, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (run_id, text) VALUES (?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET text = excluded.text`,
		runID, text,
	)
	if err != nil {
		return fmt.Errorf("persistence: update journal: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
