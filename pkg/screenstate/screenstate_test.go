package screenstate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	shot     []byte
	tree     string
	activity string
	err      error
}

func (f *fakeDevice) GetScreenshotBytes(ctx context.Context) ([]byte, error) { return f.shot, f.err }
func (f *fakeDevice) GetUITree(ctx context.Context) (string, error)         { return f.tree, f.err }
func (f *fakeDevice) GetCurrentActivity(ctx context.Context) (string, error) {
	return f.activity, nil
}

type fakeStore struct {
	screens map[string]int64
	visits  map[int64]int64
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{screens: map[string]int64{}, visits: map[int64]int64{}}
}

func (f *fakeStore) UpsertScreen(ctx context.Context, screen *models.Screen) (int64, bool, error) {
	if id, ok := f.screens[screen.CompositeHash]; ok {
		return id, false, nil
	}
	f.nextID++
	f.screens[screen.CompositeHash] = f.nextID
	return f.nextID, true, nil
}

func (f *fakeStore) IncrementVisit(ctx context.Context, runID, screenID int64) (int64, error) {
	f.visits[screenID]++
	return f.visits[screenID], nil
}

func (f *fakeStore) VisitCount(ctx context.Context, runID, screenID int64) (int64, error) {
	return f.visits[screenID], nil
}

const sampleTree = `<node class="android.widget.FrameLayout"><node class="android.widget.Button" resource-id="login_btn" text="Log in"/></node>`

func TestGetCurrentScreenRepresentation_ComputesHash(t *testing.T) {
	device := &fakeDevice{shot: []byte("pngdata"), tree: sampleTree, activity: "MainActivity"}
	m := New(device, newFakeStore(), t.TempDir(), nil)

	candidate, err := m.GetCurrentScreenRepresentation(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.NotEmpty(t, candidate.CompositeHash)
	assert.False(t, candidate.Blocked)
}

func TestGetCurrentScreenRepresentation_EmptyTreeReturnsNil(t *testing.T) {
	device := &fakeDevice{shot: []byte("pngdata"), tree: "", activity: "MainActivity"}
	m := New(device, newFakeStore(), t.TempDir(), nil)

	candidate, err := m.GetCurrentScreenRepresentation(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestGetCurrentScreenRepresentation_BlockedScreenshotStillFingerprints(t *testing.T) {
	device := &fakeDevice{shot: []byte("BLOCKED"), tree: sampleTree, activity: "MainActivity"}
	m := New(device, newFakeStore(), t.TempDir(), nil)

	candidate, err := m.GetCurrentScreenRepresentation(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.True(t, candidate.Blocked)
	assert.NotEmpty(t, candidate.CompositeHash)
}

func TestProcessAndRecordState_AssignsIDAndWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	device := &fakeDevice{shot: []byte("pngdata"), tree: sampleTree, activity: "MainActivity"}
	store := newFakeStore()
	m := New(device, store, dir, nil)

	candidate, err := m.GetCurrentScreenRepresentation(context.Background(), 1, 1)
	require.NoError(t, err)

	final, err := m.ProcessAndRecordState(context.Background(), candidate, 1, 1, false)
	require.NoError(t, err)
	assert.True(t, final.WasNew)
	assert.NotZero(t, final.Screen.ID)
	assert.Equal(t, int64(0), final.VisitCount)

	assert.FileExists(t, filepath.Join(dir, "xml", candidate.CompositeHash+".xml"))
}

func TestProcessAndRecordState_IncrementVisitAccumulates(t *testing.T) {
	device := &fakeDevice{shot: []byte("pngdata"), tree: sampleTree, activity: "MainActivity"}
	store := newFakeStore()
	m := New(device, store, t.TempDir(), nil)

	candidate, err := m.GetCurrentScreenRepresentation(context.Background(), 1, 1)
	require.NoError(t, err)

	final1, err := m.ProcessAndRecordState(context.Background(), candidate, 1, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), final1.VisitCount)

	candidate2, err := m.GetCurrentScreenRepresentation(context.Background(), 1, 2)
	require.NoError(t, err)
	final2, err := m.ProcessAndRecordState(context.Background(), candidate2, 1, 2, true)
	require.NoError(t, err)
	assert.False(t, final2.WasNew)
	assert.Equal(t, int64(2), final2.VisitCount)
	assert.Equal(t, final1.Screen.ID, final2.Screen.ID)
}
