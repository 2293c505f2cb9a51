package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOrCreateRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.GetOrCreateRun(ctx, "com.example", "MainActivity", "mock", "mock")
	require.NoError(t, err)
	assert.NotZero(t, runID)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, "com.example", run.AppPackage)
}

func TestUpsertScreen_IdempotentOnSameHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID, err := s.GetOrCreateRun(ctx, "com.example", "", "mock", "mock")
	require.NoError(t, err)

	screen := &models.Screen{RunID: runID, CompositeHash: "H1", ActivityName: "MainActivity", FirstSeenStep: 1}
	id1, wasNew1, err := s.UpsertScreen(ctx, screen)
	require.NoError(t, err)
	assert.True(t, wasNew1)

	id2, wasNew2, err := s.UpsertScreen(ctx, screen)
	require.NoError(t, err)
	assert.False(t, wasNew2)
	assert.Equal(t, id1, id2)
}

func TestIncrementVisit_NeverResets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID, err := s.GetOrCreateRun(ctx, "com.example", "", "mock", "mock")
	require.NoError(t, err)
	screen := &models.Screen{RunID: runID, CompositeHash: "H1", FirstSeenStep: 1}
	screenID, _, err := s.UpsertScreen(ctx, screen)
	require.NoError(t, err)

	c1, err := s.IncrementVisit(ctx, runID, screenID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c1)

	c2, err := s.IncrementVisit(ctx, runID, screenID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c2)
}

func TestInsertStep_DenseNumberingAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID, err := s.GetOrCreateRun(ctx, "com.example", "", "mock", "mock")
	require.NoError(t, err)
	screen := &models.Screen{RunID: runID, CompositeHash: "H1", FirstSeenStep: 1}
	screenID, _, err := s.UpsertScreen(ctx, screen)
	require.NoError(t, err)

	_, err = s.InsertStep(ctx, &models.Step{RunID: runID, StepNumber: 1, FromScreenID: screenID, ToScreenID: &screenID, Success: true})
	require.NoError(t, err)
	_, err = s.InsertStep(ctx, &models.Step{RunID: runID, StepNumber: 2, FromScreenID: screenID, Success: false, ErrorMessage: "tap failed"})
	require.NoError(t, err)

	steps, err := s.GetRecentSteps(ctx, runID, 10)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)
	assert.Equal(t, "tap failed", steps[1].ErrorMessage)
}

func TestJournal_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID, err := s.GetOrCreateRun(ctx, "com.example", "", "mock", "mock")
	require.NoError(t, err)

	empty, err := s.GetExplorationJournal(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.UpdateExplorationJournal(ctx, runID, "tried login, failed"))
	text, err := s.GetExplorationJournal(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "tried login, failed", text)

	require.NoError(t, s.UpdateExplorationJournal(ctx, runID, "tried login again, succeeded"))
	text, err = s.GetExplorationJournal(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "tried login again, succeeded", text)
}

func TestGetVisitedScreensSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID, err := s.GetOrCreateRun(ctx, "com.example", "", "mock", "mock")
	require.NoError(t, err)

	s1, _, err := s.UpsertScreen(ctx, &models.Screen{RunID: runID, CompositeHash: "H1", FirstSeenStep: 1})
	require.NoError(t, err)
	_, err = s.IncrementVisit(ctx, runID, s1)
	require.NoError(t, err)

	summary, err := s.GetVisitedScreensSummary(ctx, runID)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(1), summary[0].Visits)
}
