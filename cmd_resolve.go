package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fsjar/internal/bundle"
	"fsjar/internal/spark"
	"fsjar/internal/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newClasspathCmd() *cobra.Command {
	var (
		jarsDir string
		sep     string
	)

	cmd := &cobra.Command{
		Use:   "classpath",
		Short: "Print the bundled JAR matching the installed PySpark",
		Long: `Detects the installed PySpark and prints the path of the bundled JAR built for
its major.minor version, ready for spark.jars or --jars.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handleClasspath(cmd.Context(), cmd.OutOrStdout(), jarsDir, sep)
		},
	}

	cmd.Flags().StringVar(&jarsDir, "jars-dir", "", "bundle directory (default $FSJAR_JARS_DIR, config, or ./jars next to fsjar)")
	cmd.Flags().StringVar(&sep, "sep", string(os.PathListSeparator), "separator between JAR paths")

	return cmd
}

func handleClasspath(ctx context.Context, w io.Writer, jarsDir, sep string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	dir := s.jarsDir(jarsDir)
	detector := s.detector()
	loggerFromContext(ctx).Debug("Resolving classpath", "jars", dir, "python", detector.Python())

	jars, err := bundle.NewResolver(dir, detector).ClasspathJars(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, strings.Join(jars, sep))
	return err
}

func newListCmd() *cobra.Command {
	var jarsDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the bundled JARs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handleList(cmd.Context(), jarsDir)
		},
	}

	cmd.Flags().StringVar(&jarsDir, "jars-dir", "", "bundle directory (default $FSJAR_JARS_DIR, config, or ./jars next to fsjar)")
	return cmd
}

func handleList(ctx context.Context, jarsDir string) error {
	logger := loggerFromContext(ctx)

	s, err := loadSettings()
	if err != nil {
		return err
	}

	dir := s.jarsDir(jarsDir)
	reg, err := bundle.Open(dir, bundle.DefaultPrefix)
	if err != nil {
		return err
	}

	if len(reg.Artifacts) == 0 {
		fmt.Println(warningStyle.Render("No bundled JARs found in " + dir))
		fmt.Println(infoStyle.Render("Run 'fsjar build' to build them."))
		return nil
	}

	current := detectMinor(ctx, s.detector())
	if current == "" {
		logger.Debug("PySpark not detected, no JAR marked as current")
	}

	fmt.Println(titleStyle.Render("Bundled JARs:"))
	fmt.Println()
	fmt.Println(renderArtifacts(reg, current))
	fmt.Println()
	fmt.Println(theme.Field("Bundle", 8, theme.PathStyle.Render(dir)))
	if reg.Version != "" {
		fmt.Println(theme.Field("Version", 8, reg.Version))
	}
	return nil
}

// detectMinor returns the major.minor of the installed PySpark, or "" when unknown
func detectMinor(ctx context.Context, p spark.Prober) string {
	var (
		version string
		err     error
	)
	if interactive() {
		version, err = spark.ProbeWithSpinner(ctx, p)
	} else {
		version, err = p.Probe(ctx)
	}
	if err != nil {
		if !errors.Is(err, spark.ErrPySparkMissing) {
			loggerFromContext(ctx).Debug("PySpark detection failed", "err", err)
		}
		return ""
	}

	minor, err := spark.MinorKey(version)
	if err != nil {
		return ""
	}
	return minor
}

// renderArtifacts draws the registry as a table, marking the current minor version
func renderArtifacts(reg *bundle.Registry, current string) string {
	headerStyle := theme.TableHeader
	cellStyle := theme.TableCell

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Left,
		headerStyle.Width(9).Render("Current"),
		headerStyle.Width(8).Render("Spark"),
		headerStyle.Width(44).Render("File"),
		headerStyle.Width(10).Render("Size"),
		headerStyle.Render("Built"),
	)}

	for _, a := range reg.Artifacts {
		mark := ""
		file := a.File
		if a.Minor == current {
			mark = theme.SuccessMessage("")
			file = currentStyle.Render(a.File)
		}

		sparkVersion := a.Minor
		if a.Spark != "" {
			sparkVersion = a.Spark
		}

		built := theme.Faint.Render("-")
		if !a.BuiltAt.IsZero() {
			built = theme.Faint.Render(humanize.Time(a.BuiltAt))
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			cellStyle.Width(9).Align(lipgloss.Center).Render(mark),
			cellStyle.Width(8).Render(sparkVersion),
			cellStyle.Width(44).Render(file),
			cellStyle.Width(10).Render(humanize.Bytes(uint64(a.Size))),
			built,
		))
	}

	return theme.TableStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
