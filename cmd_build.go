package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fsjar/internal/builder"
	"fsjar/internal/bundle"
	"fsjar/internal/spark"
	"fsjar/internal/theme"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	sdkDir      string
	staging     string
	versionFile string
	only        string
	pick        bool
	timeout     time.Duration
}

func newBuildCmd() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one uber-JAR per supported Spark version and stage them",
		Long: `Runs "sbt -DSPARK_VERSION=<patch> assembly" in the Scala SDK once per supported
Spark minor version and copies each JAR to <staging>/<prefix>-<major>.<minor>.jar.

Set SPARK_BUILD_VERSION (or --only) to build a single minor version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handleBuild(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.sdkDir, "sdk-dir", "", "Scala SDK checkout containing build.sbt (default "+defaultSDKDir+")")
	cmd.Flags().StringVar(&opts.staging, "staging", defaultStagingDir, "directory receiving the normalized JARs")
	cmd.Flags().StringVar(&opts.versionFile, "version-file", defaultVersionFile, "package VERSION file refreshed from the SDK's parent (empty to skip)")
	cmd.Flags().StringVar(&opts.only, "only", "", "build a single Spark minor version (default $SPARK_BUILD_VERSION)")
	cmd.Flags().BoolVar(&opts.pick, "select", false, "choose the Spark versions to build interactively")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "upper bound for one sbt run (default from config, 45m)")

	return cmd
}

func handleBuild(ctx context.Context, opts *buildOptions) error {
	logger := loggerFromContext(ctx)

	s, err := loadSettings()
	if err != nil {
		return err
	}

	only := firstNonEmpty(opts.only, s.env.BuildVersion)
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout()
	}

	versions := spark.DefaultVersionMap
	if opts.pick && only == "" {
		if !interactive() {
			return errors.New("--select needs an interactive terminal")
		}
		versions, err = selectVersions(spark.DefaultVersionMap)
		if err != nil {
			return err
		}
	}

	b := builder.New(builder.Options{
		SDKDir:      firstNonEmpty(opts.sdkDir, s.cfg.SDKDir, defaultSDKDir),
		StagingDir:  opts.staging,
		VersionFile: opts.versionFile,
		Versions:    versions,
		Only:        only,
		Timeout:     timeout,
	}, builder.ExecRunner{}, logger)
	if interactive() {
		b.WithProgress(builder.WithSpinner)
	}

	result, err := b.Build(ctx)
	if err != nil {
		var buildErr *builder.BuildError
		if errors.As(err, &buildErr) && buildErr.Stderr != "" {
			fmt.Fprintln(os.Stderr, buildFailure(buildErr, stderrTail))
		}
		return err
	}

	printBuildSummary(result)
	return nil
}

// selectVersions asks which Spark versions to build
func selectVersions(all spark.VersionMap) (spark.VersionMap, error) {
	options := make([]huh.Option[string], 0, len(all))
	for _, b := range all {
		label := fmt.Sprintf("Spark %s %s", b.Minor, theme.Faint.Render("("+b.Patch+")"))
		options = append(options, huh.NewOption(label, b.Minor).Selected(true))
	}

	var chosen []string
	err := huh.NewMultiSelect[string]().
		Title(theme.Subtitle.Render("Select the Spark versions to build")).
		Description(theme.Faint.Render("Space to toggle, enter to confirm")).
		Options(options...).
		Validate(func(v []string) error {
			if len(v) == 0 {
				return errors.New("select at least one version")
			}
			return nil
		}).
		Value(&chosen).
		Run()
	if err != nil {
		return nil, err
	}

	return all.Select(chosen)
}

// stderrTail bounds the build tool output echoed after a failure
const stderrTail = 20

// buildFailure boxes the last lines of the build tool's error output
func buildFailure(e *builder.BuildError, lines int) string {
	out := strings.Split(strings.TrimRight(e.Stderr, "\n"), "\n")
	if len(out) > lines {
		out = append([]string{fmt.Sprintf("... %d earlier lines omitted", len(out)-lines)}, out[len(out)-lines:]...)
	}
	title := errorStyle.Render(fmt.Sprintf("sbt output for Spark %s", e.Patch))
	return theme.ErrorBox.Render(title + "\n\n" + theme.Faint.Render(strings.Join(out, "\n")))
}

func printBuildSummary(result *builder.Result) {
	fmt.Println()
	if result.Prebuilt {
		fmt.Println(warningStyle.Render("Scala SDK not found, using previously staged JARs"))
	} else {
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Built %d JAR(s)", len(result.Built))))
	}
	fmt.Println()

	reg := result.Registry
	if len(reg.Artifacts) == 0 {
		fmt.Println(warningStyle.Render("The staging directory holds no JARs."))
		return
	}

	fmt.Println(theme.Field("Bundle", 9, theme.PathStyle.Render(reg.Dir())))
	if reg.Version != "" {
		fmt.Println(theme.Field("Version", 9, reg.Version))
	}
	fmt.Println()

	built := make(map[string]bool, len(result.Built))
	for _, a := range result.Built {
		built[a.Minor] = true
	}
	for _, a := range reg.Artifacts {
		marker := "  "
		name := a.File
		if built[a.Minor] {
			marker = "→ "
			name = currentStyle.Render(a.File)
		}
		fmt.Printf("%s%s %s\n", marker, name, theme.Faint.Render(humanize.Bytes(uint64(a.Size))))
	}
	if !result.Prebuilt {
		fmt.Println()
		fmt.Println(theme.Faint.Render("Registry: " + filepath.Join(reg.Dir(), bundle.RegistryFile)))
	}
}
