package crawlloop_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/crawlforge/pkg/config"
	"github.com/codeready-toolchain/crawlforge/pkg/crawlloop"
	"github.com/codeready-toolchain/crawlforge/pkg/device"
	"github.com/codeready-toolchain/crawlforge/pkg/llmadapter"
)

const testUITree = `<node class="android.widget.FrameLayout" resource-id="root">` +
	`<node class="android.widget.Button" resource-id="btn1" text="Sign in"/>` +
	`</node>`

// fakeDevice is a minimal crawlloop.Device fake: it reports a single
// unchanging screen and records every gesture it's asked to perform.
type fakeDevice struct {
	currentPackage string

	taps       int
	terminated bool
	closed     bool
}

func (f *fakeDevice) GetScreenshotBytes(ctx context.Context) ([]byte, error) { return []byte("png-bytes"), nil }
func (f *fakeDevice) GetUITree(ctx context.Context) (string, error)          { return testUITree, nil }
func (f *fakeDevice) GetCurrentActivity(ctx context.Context) (string, error) {
	return f.currentPackage + "/.MainActivity", nil
}
func (f *fakeDevice) Tap(ctx context.Context, target device.Target) error { f.taps++; return nil }
func (f *fakeDevice) InputText(ctx context.Context, target device.Target, text string) error {
	return nil
}
func (f *fakeDevice) LongPress(ctx context.Context, target device.Target, durationMs int) error {
	return nil
}
func (f *fakeDevice) DoubleTap(ctx context.Context, target device.Target) error { return nil }
func (f *fakeDevice) ClearText(ctx context.Context, target device.Target) error { return nil }
func (f *fakeDevice) ReplaceText(ctx context.Context, target device.Target, text string) error {
	return nil
}
func (f *fakeDevice) Scroll(ctx context.Context, dir device.Direction) error { return nil }
func (f *fakeDevice) Swipe(ctx context.Context, dir device.Direction) error  { return nil }
func (f *fakeDevice) Flick(ctx context.Context, dir device.Direction) error  { return nil }
func (f *fakeDevice) Back(ctx context.Context) error                        { return nil }
func (f *fakeDevice) ResetApp(ctx context.Context) error                    { return nil }
func (f *fakeDevice) InitializeSession(ctx context.Context, appPackage, appEntry, deviceID string) error {
	f.currentPackage = appPackage
	return nil
}
func (f *fakeDevice) ValidateSession(ctx context.Context) bool { return true }
func (f *fakeDevice) Close(ctx context.Context) error          { f.closed = true; return nil }
func (f *fakeDevice) GetCurrentPackage(ctx context.Context) (string, error) {
	return f.currentPackage, nil
}
func (f *fakeDevice) LaunchApp(ctx context.Context) error { return nil }
func (f *fakeDevice) TerminateApp(ctx context.Context, appPackage string) error {
	f.terminated = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TargetApp: config.TargetAppConfig{Package: "com.example.app"},
		Crawl: config.CrawlConfig{
			MaxSteps: 2,
		},
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := crawlloop.New(context.Background(), nil, crawlloop.Options{})
	assert.Error(t, err)
}

func TestNew_RequiresTargetPackage(t *testing.T) {
	_, err := crawlloop.New(context.Background(), &config.Config{}, crawlloop.Options{})
	assert.Error(t, err)
}

func TestNew_RequiresDeviceWhenNoneSupplied(t *testing.T) {
	cfg := testConfig(t)
	_, err := crawlloop.New(context.Background(), cfg, crawlloop.Options{
		BaseSessionDir: t.TempDir(),
		FlagDir:        t.TempDir(),
		DeviceID:       "emulator-5554",
		LLM:            llmadapter.NewMockAdapter(llmadapter.Capabilities{}),
	})
	assert.Error(t, err)
}

func TestRun_CompletesAtMaxSteps(t *testing.T) {
	cfg := testConfig(t)
	dev := &fakeDevice{}

	responses := []llmadapter.Result{
		{Text: `{"actions":[{"action":"click","target_identifier":"btn1","reasoning":"sign in"}],"exploration_journal":"visited login"}`},
	}
	llm := llmadapter.NewMockAdapter(llmadapter.Capabilities{}, responses...)

	opt := crawlloop.Options{
		DeviceID:        "emulator-5554",
		BaseSessionDir:  t.TempDir(),
		FlagDir:         t.TempDir(),
		CredentialsPath: filepath.Join(t.TempDir(), "credentials.db"),
		Device:          dev,
		LLM:             llm,
	}

	loop, err := crawlloop.New(context.Background(), cfg, opt)
	require.NoError(t, err)
	require.NotNil(t, loop)

	runErr := loop.Run(context.Background())
	assert.NoError(t, runErr)
	assert.True(t, dev.terminated)
	assert.True(t, dev.closed)
	assert.Equal(t, 2, llm.Calls())
}

func TestRun_HonorsShutdownFlagImmediately(t *testing.T) {
	cfg := testConfig(t)
	dev := &fakeDevice{}
	llm := llmadapter.NewMockAdapter(llmadapter.Capabilities{})
	flagDir := t.TempDir()

	opt := crawlloop.Options{
		DeviceID:        "emulator-5554",
		BaseSessionDir:  t.TempDir(),
		FlagDir:         flagDir,
		CredentialsPath: filepath.Join(t.TempDir(), "credentials.db"),
		Device:          dev,
		LLM:             llm,
	}

	loop, err := crawlloop.New(context.Background(), cfg, opt)
	require.NoError(t, err)

	require.NoError(t, writeFlag(flagDir, "shutdown"))

	runErr := loop.Run(context.Background())
	assert.NoError(t, runErr)
	assert.Equal(t, 0, llm.Calls())
}

func writeFlag(dir, name string) error {
	f, err := os.Create(filepath.Join(dir, name+".flag"))
	if err != nil {
		return err
	}
	return f.Close()
}
