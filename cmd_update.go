package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"fsjar/internal/config"
	"fsjar/internal/spark"
	"fsjar/internal/theme"
	"fsjar/internal/updater"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/huh"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "Show the supported Spark versions and their build patch versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(titleStyle.Render("Supported Spark Versions:"))
			fmt.Println()
			for _, b := range spark.DefaultVersionMap {
				fmt.Printf("  %s %s\n", currentStyle.Render(b.Minor), theme.Faint.Render("built with Spark "+b.Patch))
			}
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Check for and install fsjar updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handleUpdate(cmd.Context())
		},
	}
}

func handleUpdate(ctx context.Context) error {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.UpdateConfig.Enabled {
		fmt.Println(warningStyle.Render("Updates are disabled in configuration."))
		fmt.Println(theme.Faint.Render("To enable, edit " + cfg.ConfigPath() + " and set update_config.enabled to true"))
		return nil
	}
	if cfg.UpdateConfig.Repository == "" {
		fmt.Println(warningStyle.Render("No release repository configured."))
		fmt.Println(theme.Faint.Render("Set update_config.repository to the GitHub owner/name publishing fsjar in " + cfg.ConfigPath()))
		return nil
	}

	upd, err := updater.NewUpdater(cfg, Version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize updater: %w", err)
	}

	fmt.Println(infoStyle.Render("Checking for updates..."))

	ctx, cancel := context.WithTimeout(ctx, updater.UpdateTimeout)
	defer cancel()

	release, err := upd.CheckForUpdate(ctx)
	if errors.Is(err, updater.ErrNoRepository) {
		fmt.Println(warningStyle.Render(err.Error()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	if release == nil {
		fmt.Println(theme.SuccessMessage(fmt.Sprintf("You're already running the latest version (%s)", Version)))
		return nil
	}

	action, err := promptForUpdate(upd.CurrentVersion(), release)
	if err != nil {
		fmt.Println(warningStyle.Render("Update cancelled."))
		return nil
	}

	switch action {
	case "skip":
		if err := upd.SkipVersion(release.Version()); err != nil {
			logger.Warn("failed to save skip preference", "err", err)
		}
		fmt.Println(theme.InfoMessage(fmt.Sprintf("Skipped version %s", release.Version())))
		return nil
	case "later":
		fmt.Println(theme.InfoMessage("Update postponed"))
		return nil
	}

	fmt.Println()
	fmt.Println(infoStyle.Render(fmt.Sprintf("Downloading fsjar %s...", release.Version())))
	if err := upd.PerformUpdate(ctx, release); err != nil {
		fmt.Println(theme.Faint.Render(fmt.Sprintf("Please try again or download manually from https://github.com/%s/releases", cfg.UpdateConfig.Repository)))
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Println()
	fmt.Println(theme.SuccessBox.Render(successStyle.Padding(0, 2).Render("✓ Update Complete!")))
	fmt.Println()
	fmt.Println(theme.Field("Version", 8, currentStyle.Render(release.Version())))
	if added := newSparkMinors(release.ReleaseNotes, spark.DefaultVersionMap); len(added) > 0 {
		fmt.Println(theme.Field("Spark", 8, strings.Join(added, ", ")))
		fmt.Println(theme.Faint.Render("Run " + theme.CommandStyle.Render("fsjar build") + " with the new version to bundle their JARs."))
	} else {
		fmt.Println(theme.Faint.Render("Note: Run fsjar again to use the new version."))
	}
	return nil
}

// promptForUpdate asks whether to install release: "update", "skip" or "later"
func promptForUpdate(current string, release *selfupdate.Release) (string, error) {
	var action string
	err := huh.NewSelect[string]().
		Title(theme.Subtitle.Render(fmt.Sprintf("Update available: %s → %s", current, release.Version()))).
		Description(theme.Faint.Render(releaseSummary(release.AssetByteSize, release.ReleaseNotes))).
		Options(
			huh.NewOption(successStyle.Render("Update now"), "update"),
			huh.NewOption(infoStyle.Render("Skip this version"), "skip"),
			huh.NewOption(warningStyle.Render("Remind me later"), "later"),
		).
		Value(&action).
		Run()
	if err != nil {
		return "", err
	}
	return action, nil
}

// releaseSummary describes a release for the update prompt
func releaseSummary(size int, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Download size: %s\n", humanize.Bytes(uint64(size)))
	if added := newSparkMinors(notes, spark.DefaultVersionMap); len(added) > 0 {
		fmt.Fprintf(&b, "Adds Spark %s\n", strings.Join(added, ", "))
	}
	b.WriteString("\n" + truncateChangelog(notes, 400))
	return b.String()
}

var sparkMention = regexp.MustCompile(`(?i)\bspark\s+v?(\d+\.\d+)(?:\.\d+)?\b`)

// newSparkMinors lists Spark major.minor versions named in release notes
// that the running fsjar cannot build, in ascending order
func newSparkMinors(notes string, known spark.VersionMap) []string {
	seen := map[string]bool{}
	var added []*semver.Version
	for _, m := range sparkMention.FindAllStringSubmatch(notes, -1) {
		minor := m[1]
		if seen[minor] {
			continue
		}
		seen[minor] = true
		if _, ok := known.Lookup(minor); ok {
			continue
		}
		v, err := semver.NewVersion(minor)
		if err != nil {
			continue
		}
		added = append(added, v)
	}

	sort.Sort(semver.Collection(added))
	out := make([]string, len(added))
	for i, v := range added {
		out[i] = fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	return out
}

// truncateChangelog shortens release notes at a line or word boundary
func truncateChangelog(changelog string, maxLen int) string {
	changelog = strings.TrimSpace(changelog)
	if changelog == "" {
		return "See release notes on GitHub for details."
	}
	if len(changelog) <= maxLen {
		return changelog
	}

	truncated := changelog[:maxLen]
	if idx := strings.LastIndex(truncated, "\n"); idx > maxLen/2 {
		truncated = truncated[:idx]
	} else if idx := strings.LastIndex(truncated, " "); idx > maxLen/2 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

// checkForUpdateBackground prints a notice when a newer release exists.
// It stays silent on any failure and only runs on a terminal.
func checkForUpdateBackground(ctx context.Context) {
	if Version == "dev" || !interactive() {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		return
	}

	upd, err := updater.NewUpdater(cfg, Version, loggerFromContext(ctx))
	if err != nil || !upd.ShouldCheckForUpdate() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	release, err := upd.CheckForUpdate(ctx)
	if err != nil || release == nil {
		return
	}

	fmt.Println(updateNotice(Version, release.Version(), newSparkMinors(release.ReleaseNotes, spark.DefaultVersionMap)))
}

// updateNotice is the one-line hint shown after a command when a release is out
func updateNotice(current, latest string, added []string) string {
	notice := fmt.Sprintf("\n%s Update available: %s → %s", infoStyle.Render("ℹ"),
		theme.Faint.Render(current), currentStyle.Render(latest))
	if len(added) > 0 {
		notice += " " + theme.Faint.Render("with Spark "+strings.Join(added, ", "))
	}
	return notice + " " + theme.Faint.Render("(run ") + theme.CommandStyle.Render("fsjar update") + theme.Faint.Render(")") + "\n"
}
