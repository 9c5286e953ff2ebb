package updater

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"fsjar/internal/config"

	"github.com/creativeprojects/go-selfupdate"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "fsjar.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	return cfg
}

// releaseSource serves a fixed release listing instead of GitHub
type releaseSource struct {
	releases []selfupdate.SourceRelease
	err      error
	calls    int
}

func (s *releaseSource) ListReleases(ctx context.Context, repository selfupdate.Repository) ([]selfupdate.SourceRelease, error) {
	s.calls++
	return s.releases, s.err
}

func (s *releaseSource) DownloadReleaseAsset(ctx context.Context, rel *selfupdate.Release, assetID int64) (io.ReadCloser, error) {
	return nil, errors.New("no assets")
}

func TestShouldCheckForUpdate(t *testing.T) {
	tests := []struct {
		name       string
		repository string
		enabled    bool
		autoCheck  bool
		lastCheck  time.Duration
		want       bool
	}{
		{"never checked", "acme/fsjar", true, true, 0, true},
		{"checked recently", "acme/fsjar", true, true, time.Hour, false},
		{"checked long ago", "acme/fsjar", true, true, 48 * time.Hour, true},
		{"disabled", "acme/fsjar", false, true, 0, false},
		{"auto check off", "acme/fsjar", true, false, 0, false},
		{"no repository", "", true, true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t)
			cfg.UpdateConfig.Repository = tt.repository
			cfg.UpdateConfig.Enabled = tt.enabled
			cfg.UpdateConfig.AutoCheck = tt.autoCheck
			if tt.lastCheck > 0 {
				cfg.UpdateConfig.LastCheck = time.Now().Add(-tt.lastCheck)
			}

			u := &Updater{config: cfg, currentVersion: "1.0.0"}
			if got := u.ShouldCheckForUpdate(); got != tt.want {
				t.Errorf("ShouldCheckForUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		want    bool
	}{
		{"1.0.0", "1.0.1", true},
		{"1.0.0", "v1.1.0", true},
		{"1.2.0", "1.1.9", false},
		{"1.2.0", "1.2.0", false},
		{"dev", "9.9.9", false},
		{"1.0.0", "garbage", false},
	}

	for _, tt := range tests {
		u := &Updater{currentVersion: cleanVersion(tt.current)}
		if got := u.isNewer(tt.latest); got != tt.want {
			t.Errorf("isNewer(%q -> %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
		}
	}
}

func TestRepository(t *testing.T) {
	cfg := loadConfig(t)
	u := &Updater{config: cfg}
	if got := u.repository(); got != "" {
		t.Errorf("repository() = %q, want none by default", got)
	}

	cfg.UpdateConfig.Repository = " someone/fork "
	if got := u.repository(); got != "someone/fork" {
		t.Errorf("repository() = %q, want someone/fork", got)
	}
}

func TestCheckForUpdateWithoutRepository(t *testing.T) {
	cfg := loadConfig(t)
	source := &releaseSource{}
	u, err := newUpdater(cfg, "1.0.0", nil, source)
	if err != nil {
		t.Fatalf("newUpdater: %v", err)
	}

	if _, err := u.CheckForUpdate(context.Background()); !errors.Is(err, ErrNoRepository) {
		t.Fatalf("err = %v, want ErrNoRepository", err)
	}
	if source.calls != 0 {
		t.Errorf("release source queried %d times without a repository", source.calls)
	}
	if u.ShouldCheckForUpdate() {
		t.Error("ShouldCheckForUpdate() = true without a repository")
	}
}

func TestCheckForUpdateRecordsEveryAttempt(t *testing.T) {
	tests := []struct {
		name   string
		source *releaseSource
	}{
		{"no releases", &releaseSource{}},
		{"source failure", &releaseSource{err: errors.New("rate limited")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t)
			cfg.UpdateConfig.Repository = "acme/fsjar"
			u, err := newUpdater(cfg, "1.0.0", nil, tt.source)
			if err != nil {
				t.Fatalf("newUpdater: %v", err)
			}
			if !u.ShouldCheckForUpdate() {
				t.Fatal("ShouldCheckForUpdate() = false before the first check")
			}

			release, err := u.CheckForUpdate(context.Background())
			if err == nil || release != nil {
				t.Fatalf("CheckForUpdate = %v, %v, want an error", release, err)
			}
			if tt.source.calls != 1 {
				t.Errorf("release source queried %d times, want 1", tt.source.calls)
			}
			if cfg.UpdateConfig.LastCheck.IsZero() {
				t.Fatal("LastCheck not recorded")
			}
			if u.ShouldCheckForUpdate() {
				t.Error("ShouldCheckForUpdate() = true right after a check")
			}

			reloaded, err := config.LoadFrom(cfg.ConfigPath())
			if err != nil {
				t.Fatalf("LoadFrom: %v", err)
			}
			if reloaded.UpdateConfig.LastCheck.IsZero() {
				t.Error("LastCheck not persisted")
			}
		})
	}
}

func TestSkipVersionPersists(t *testing.T) {
	cfg := loadConfig(t)
	u := &Updater{config: cfg}
	if err := u.SkipVersion("2.0.0"); err != nil {
		t.Fatalf("SkipVersion: %v", err)
	}

	reloaded, err := config.LoadFrom(cfg.ConfigPath())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if reloaded.UpdateConfig.SkipVersion != "2.0.0" {
		t.Errorf("SkipVersion = %q, want 2.0.0", reloaded.UpdateConfig.SkipVersion)
	}
}
