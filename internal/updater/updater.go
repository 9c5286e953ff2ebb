package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fsjar/internal/config"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/creativeprojects/go-selfupdate"
)

// ErrNoRepository is returned when no release repository is configured
var ErrNoRepository = errors.New("no release repository configured (set update_config.repository)")

const (
	// CheckInterval is minimum time between update checks
	CheckInterval = 24 * time.Hour

	// UpdateTimeout is maximum time for update operations
	UpdateTimeout = 5 * time.Minute
)

// Updater handles checking and applying fsjar self-updates
type Updater struct {
	config         *config.Config
	currentVersion string
	selfUpdater    *selfupdate.Updater
	logger         *log.Logger
}

// NewUpdater creates an Updater backed by GitHub releases
func NewUpdater(cfg *config.Config, version string, logger *log.Logger) (*Updater, error) {
	return newUpdater(cfg, version, logger, nil)
}

// newUpdater creates an Updater reading releases from source, GitHub when nil
func newUpdater(cfg *config.Config, version string, logger *log.Logger, source selfupdate.Source) (*Updater, error) {
	if logger == nil {
		logger = log.Default()
	}

	// Configure selfupdate with SHA256 checksum validation
	su, err := selfupdate.NewUpdater(selfupdate.Config{
		Source: source,
		Validator: &selfupdate.ChecksumValidator{
			UniqueFilename: "SHA256SUMS.txt",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	return &Updater{
		config:         cfg,
		currentVersion: cleanVersion(version),
		selfUpdater:    su,
		logger:         logger,
	}, nil
}

// CurrentVersion returns the running version without a 'v' prefix
func (u *Updater) CurrentVersion() string {
	return u.currentVersion
}

// ShouldCheckForUpdate determines if an update check should be performed
// based on config settings and last check time
func (u *Updater) ShouldCheckForUpdate() bool {
	if !u.config.UpdateConfig.Enabled || !u.config.UpdateConfig.AutoCheck {
		return false
	}
	if u.repository() == "" {
		return false
	}

	// Rate limit: check at most once per CheckInterval
	if time.Since(u.config.UpdateConfig.LastCheck) < CheckInterval {
		return false
	}

	return true
}

// CheckForUpdate queries the release repository for the latest release.
// Returns nil if no update available or if user skipped this version.
// Every attempt that reaches the repository counts for the rate limit.
func (u *Updater) CheckForUpdate(ctx context.Context) (*selfupdate.Release, error) {
	repo := u.repository()
	if repo == "" {
		return nil, ErrNoRepository
	}

	latest, found, err := u.selfUpdater.DetectLatest(ctx, selfupdate.ParseSlug(repo))

	u.config.UpdateConfig.LastCheck = time.Now()
	if saveErr := u.config.Save(); saveErr != nil {
		u.logger.Warn("failed to save config", "err", saveErr)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no fsjar releases found in %s", repo)
	}

	if !u.isNewer(latest.Version()) {
		return nil, nil // Already up to date
	}

	// Check if user explicitly skipped this version
	if u.config.UpdateConfig.SkipVersion == latest.Version() {
		return nil, nil
	}

	return latest, nil
}

// PerformUpdate downloads and installs the update
// Creates a backup and rolls back on failure
func (u *Updater) PerformUpdate(ctx context.Context, release *selfupdate.Release) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to determine executable path: %w", err)
	}

	// Create backup before attempting update
	backup := exe + ".backup"
	if err := copyFile(exe, backup); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	// Perform the update
	if err := selfupdate.UpdateTo(ctx, release.AssetURL, release.AssetName, exe); err != nil {
		// Attempt rollback
		if rollbackErr := os.Rename(backup, exe); rollbackErr != nil {
			return fmt.Errorf("update failed and rollback failed: update error: %w, rollback error: %v", err, rollbackErr)
		}
		return fmt.Errorf("update failed (rolled back): %w", err)
	}

	if err := os.Remove(backup); err != nil {
		u.logger.Debug("failed to remove update backup", "path", backup, "err", err)
	}

	return nil
}

// SkipVersion marks a version as skipped by the user
func (u *Updater) SkipVersion(version string) error {
	u.config.UpdateConfig.SkipVersion = version
	return u.config.Save()
}

// copyFile creates a copy of the file for backup purposes
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0755)
}

// cleanVersion removes 'v' prefix if present for consistent comparison
func cleanVersion(version string) string {
	return strings.TrimPrefix(version, "v")
}

// repository returns the configured release repository, empty when none
func (u *Updater) repository() string {
	return strings.TrimSpace(u.config.UpdateConfig.Repository)
}

// isNewer reports whether latest is a newer semantic version than the running binary.
// Development builds are never offered updates.
func (u *Updater) isNewer(latest string) bool {
	current, err := semver.NewVersion(u.currentVersion)
	if err != nil {
		return false
	}
	candidate, err := semver.NewVersion(cleanVersion(latest))
	if err != nil {
		return false
	}
	return candidate.GreaterThan(current)
}
