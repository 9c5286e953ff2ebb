package main

import (
	"context"
	"fmt"

	"fsjar/internal/env"
	"fsjar/internal/installer"
	"fsjar/internal/theme"

	"github.com/spf13/cobra"
)

// systemSparkHome reads SPARK_HOME from the platform's persistent store
var systemSparkHome = env.SystemSparkHome

type installOptions struct {
	jarsDir      string
	sparkHome    string
	fromRegistry bool
}

func newInstallCmd() *cobra.Command {
	opts := &installOptions{}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Copy the JAR matching the installed PySpark into SPARK_HOME/jars",
		Long: `Copies <prefix>-<major>.<minor>.jar for the installed PySpark to
$SPARK_HOME/jars/<prefix>.jar. Every problem is reported as a warning and the
command always succeeds; the right JAR is still picked at runtime.

Without SPARK_HOME nothing is copied.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			handleInstall(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.jarsDir, "jars-dir", "", "bundle directory (default $FSJAR_JARS_DIR, config, or ./jars next to fsjar)")
	cmd.Flags().StringVar(&opts.sparkHome, "spark-home", "", "Spark installation (default $SPARK_HOME)")
	cmd.Flags().BoolVar(&opts.fromRegistry, "spark-home-from-registry", false, "when SPARK_HOME is unset, read it from the Windows user or system environment")

	return cmd
}

func handleInstall(ctx context.Context, opts *installOptions) installer.Outcome {
	logger := loggerFromContext(ctx)

	s, err := loadSettings()
	if err != nil {
		logger.Warn("Ignoring config file", "err", err)
		s = defaultSettings()
	}

	var fromSystem func() (string, error)
	if opts.fromRegistry {
		fromSystem = systemSparkHome
	}
	home := env.SparkHome(firstNonEmpty(opts.sparkHome, s.env.SparkHome), fromSystem)

	inst := installer.New(s.jarsDir(opts.jarsDir), s.detector(), logger)
	out := inst.Propagate(ctx, home)

	switch out.Status {
	case installer.StatusCopied:
		fmt.Println(theme.SuccessMessage(fmt.Sprintf("Installed JAR for Spark %s", out.Minor)))
		fmt.Println(theme.Field("Target", 7, theme.PathStyle.Render(out.Target)))
	case installer.StatusUpToDate:
		fmt.Println(theme.SuccessMessage(fmt.Sprintf("SPARK_HOME already has the JAR for Spark %s", out.Minor)))
	}
	fmt.Println(infoStyle.Render("Installation finished."))
	return out
}
