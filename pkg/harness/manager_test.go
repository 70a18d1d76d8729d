package harness_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hrmcheck/pkg/harness"
	"github.com/entrhq/hrmcheck/pkg/harness/harnesstest"
)

func newManager(t *testing.T, opts ...harness.ManagerOption) (*harness.Manager, *harnesstest.Driver) {
	t.Helper()
	driver := harnesstest.NewDriver(loginSite())
	return harness.NewManager(driver, opts...), driver
}

func TestCreateSession(t *testing.T) {
	manager, driver := newManager(t)

	for _, browser := range harness.SupportedBrowsers() {
		t.Run(string(browser), func(t *testing.T) {
			session, err := manager.CreateSession(context.Background(), harness.Options{
				Browser:     browser,
				Headless:    true,
				ArtifactDir: t.TempDir(),
			})
			require.NoError(t, err)
			assert.Equal(t, harness.Provisioned, session.State())
			assert.Equal(t, browser, session.Browser)
			require.NoError(t, harness.CaptureAndRelease(session, "provisioned"))
		})
	}

	assert.Equal(t, []string{"chromium", "firefox", "msedge"}, driver.Installs())
	assert.Equal(t, 0, manager.ActiveSessions())
}

func TestCreateSessionUnknownBrowser(t *testing.T) {
	manager, driver := newManager(t)

	_, err := manager.CreateSession(context.Background(), harness.Options{Browser: "safari"})

	var provisioning *harness.ProvisioningError
	require.ErrorAs(t, err, &provisioning)
	assert.Equal(t, harness.BrowserID("safari"), provisioning.Browser)
	assert.Empty(t, driver.Plans())
}

func TestCreateSessionStartupTimeout(t *testing.T) {
	manager, driver := newManager(t)
	driver.LaunchDelay = 300 * time.Millisecond

	start := time.Now()
	_, err := manager.CreateSession(context.Background(), harness.Options{
		Browser:        harness.Firefox,
		StartupTimeout: 30 * time.Millisecond,
	})
	elapsed := time.Since(start)

	var provisioning *harness.ProvisioningError
	require.ErrorAs(t, err, &provisioning)
	assert.ErrorIs(t, err, harness.ErrStartupTimeout)
	assert.Less(t, elapsed, 250*time.Millisecond)
	assert.Equal(t, 0, manager.ActiveSessions())

	// The browser that eventually starts is closed, not leaked.
	assert.Eventually(t, func() bool {
		return len(driver.Pages()) == 1 && driver.OpenPages() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateSessionLaunchError(t *testing.T) {
	manager, driver := newManager(t)
	driver.LaunchErr = errors.New("executable doesn't exist")

	_, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Edge})

	assert.Equal(t, harness.KindProvisioning, harness.Classify(err))
	assert.Contains(t, err.Error(), "executable doesn't exist")
}

func TestCreateSessionInstall(t *testing.T) {
	t.Run("installs once per target", func(t *testing.T) {
		manager, driver := newManager(t)
		for i := 0; i < 3; i++ {
			s, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
			require.NoError(t, err)
			require.NoError(t, harness.CaptureAndRelease(s, "x"))
		}
		assert.Equal(t, []string{"chromium"}, driver.Installs())
	})

	t.Run("skip install", func(t *testing.T) {
		manager, driver := newManager(t, harness.WithSkipInstall(true))
		s, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
		require.NoError(t, err)
		require.NoError(t, harness.CaptureAndRelease(s, "x"))
		assert.Empty(t, driver.Installs())
	})

	t.Run("install failure", func(t *testing.T) {
		manager, driver := newManager(t)
		driver.InstallErr = errors.New("download failed")
		_, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Chrome})
		assert.Equal(t, harness.KindProvisioning, harness.Classify(err))
		assert.Empty(t, driver.Plans())
	})

	t.Run("cancelled wait keeps the install", func(t *testing.T) {
		manager, driver := newManager(t)
		driver.InstallDelay = 200 * time.Millisecond

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := manager.CreateSession(ctx, harness.Options{Browser: harness.Chrome})
		assert.Equal(t, harness.KindProvisioning, harness.Classify(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		// A later session waits for the running download instead of
		// starting another one.
		s, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
		require.NoError(t, err)
		require.NoError(t, harness.CaptureAndRelease(s, "x"))
		assert.Equal(t, []string{"chromium"}, driver.Installs())
	})
}

func TestCreateSessionMaxSessionsConcurrent(t *testing.T) {
	manager, driver := newManager(t, harness.WithMaxSessions(2), harness.WithSkipInstall(true))
	driver.LaunchDelay = 50 * time.Millisecond

	const callers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*harness.Session
		refused  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.Contains(t, err.Error(), "maximum number of sessions (2) reached")
				refused++
				return
			}
			sessions = append(sessions, s)
		}()
	}
	wg.Wait()

	assert.Len(t, sessions, 2)
	assert.Equal(t, callers-2, refused)
	assert.Len(t, driver.Pages(), 2)

	for _, s := range sessions {
		require.NoError(t, harness.CaptureAndRelease(s, "x"))
	}
	assert.Equal(t, 0, manager.ActiveSessions())

	// Released and refused slots are both given back.
	s, err := manager.CreateSession(context.Background(), harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, harness.CaptureAndRelease(s, "x"))
}

func TestCreateSessionMaxSessions(t *testing.T) {
	manager, _ := newManager(t, harness.WithMaxSessions(1))
	ctx := context.Background()

	first, err := manager.CreateSession(ctx, harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
	require.NoError(t, err)

	_, err = manager.CreateSession(ctx, harness.Options{Browser: harness.Chrome})
	assert.Equal(t, harness.KindProvisioning, harness.Classify(err))

	require.NoError(t, harness.CaptureAndRelease(first, "done"))
	second, err := manager.CreateSession(ctx, harness.Options{Browser: harness.Chrome, ArtifactDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, harness.CaptureAndRelease(second, "done"))
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(context.Context, *harness.Session) error
		wantErr  bool
		wantShot string
	}{
		{
			name: "success uses step label",
			fn: func(ctx context.Context, s *harness.Session) error {
				return s.Navigate(ctx, harnesstest.DefaultBaseURL+"/login")
			},
			wantShot: "login-success-chrome.png",
		},
		{
			name: "failure uses error label",
			fn: func(ctx context.Context, s *harness.Session) error {
				return errors.New("step failed")
			},
			wantErr:  true,
			wantShot: "error-login-success-chrome.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, driver := newManager(t)
			dir := t.TempDir()

			var session *harness.Session
			err := manager.Run(context.Background(), harness.Options{Browser: harness.Chrome, ArtifactDir: dir}, "login-success", func(ctx context.Context, s *harness.Session) error {
				session = s
				return tt.fn(ctx, s)
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.FileExists(t, filepath.Join(dir, tt.wantShot))
			assert.Equal(t, filepath.Join(dir, tt.wantShot), session.ScreenshotPath())
			assert.Equal(t, 0, manager.ActiveSessions())
			assert.Equal(t, 0, driver.OpenPages())
		})
	}
}

func TestRunReleasesOnPanic(t *testing.T) {
	manager, driver := newManager(t)
	dir := t.TempDir()

	assert.PanicsWithValue(t, "boom", func() {
		_ = manager.Run(context.Background(), harness.Options{Browser: harness.Firefox, ArtifactDir: dir}, "login", func(ctx context.Context, s *harness.Session) error {
			panic("boom")
		})
	})

	assert.FileExists(t, filepath.Join(dir, "error-login-firefox.png"))
	assert.Equal(t, 0, manager.ActiveSessions())
	assert.Equal(t, 0, driver.OpenPages())
}

func TestRunProvisioningFailure(t *testing.T) {
	manager, _ := newManager(t)
	called := false

	err := manager.Run(context.Background(), harness.Options{Browser: "netscape"}, "login", func(ctx context.Context, s *harness.Session) error {
		called = true
		return nil
	})

	assert.Equal(t, harness.KindProvisioning, harness.Classify(err))
	assert.False(t, called)
}

func TestListSessionsAndShutdown(t *testing.T) {
	manager, driver := newManager(t)
	ctx := context.Background()

	_, err := manager.CreateSession(ctx, harness.Options{Browser: harness.Chrome, Name: "a"})
	require.NoError(t, err)
	_, err = manager.CreateSession(ctx, harness.Options{Browser: harness.Firefox, Name: "b"})
	require.NoError(t, err)

	infos := manager.ListSessions()
	require.Len(t, infos, 2)
	names := []string{infos[0].Name, infos[1].Name}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	require.NoError(t, manager.Shutdown())
	assert.Equal(t, 0, manager.ActiveSessions())
	assert.Equal(t, 0, driver.OpenPages())
	assert.True(t, driver.Stopped())

	// Shutdown releases without screenshots.
	for _, page := range driver.Pages() {
		assert.Empty(t, page.Screenshots())
	}
	_, statErr := os.Stat("error-chrome.png")
	assert.True(t, os.IsNotExist(statErr))
}
