package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fsjar/internal/config"
	"fsjar/internal/spark"
	"fsjar/internal/theme"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Version is set during build time via ldflags
var Version = "dev"

// Use fsjar theme
var (
	successStyle = theme.SuccessStyle
	errorStyle   = theme.ErrorStyle
	warningStyle = theme.WarningStyle
	infoStyle    = theme.InfoStyle
	titleStyle   = theme.Title
	boxStyle     = theme.Box
	currentStyle = theme.CurrentStyle
)

// Source layout of the PySpark package checkout
var (
	defaultSDKDir      = filepath.Join("..", "scala-spark-sdk")
	defaultStagingDir  = filepath.Join("deps", "jars")
	defaultVersionFile = "VERSION"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "fsjar",
		Short: "Build, bundle and resolve the Feature Store Spark connector JARs",
		Long: `fsjar builds one uber-JAR of the SageMaker Feature Store Spark SDK per supported
Spark minor version, bundles them, and picks the JAR matching the installed PySpark.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			switch cmd.Name() {
			case "classpath", "update", "version":
				return
			}
			checkForUpdateBackground(cmd.Context())
		},
	}

	root.SetVersionTemplate("fsjar {{.Version}}\n")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newClasspathCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionsCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// settings is the configuration captured once at the command boundary
type settings struct {
	cfg *config.Config
	env config.Env
}

func loadSettings() (*settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &settings{cfg: cfg, env: config.FromOS()}, nil
}

// defaultSettings ignores the config file
func defaultSettings() *settings {
	return &settings{cfg: &config.Config{}, env: config.FromOS()}
}

// jarsDir resolves the bundle directory: flag, environment, config file, default
func (s *settings) jarsDir(flag string) string {
	if flag != "" {
		return flag
	}
	return s.env.JarsDirOr(s.cfg, defaultJarsDir())
}

func (s *settings) detector() *spark.Detector {
	return spark.NewDetector(s.env.PythonOr(s.cfg))
}

// defaultJarsDir prefers a jars folder shipped next to the executable
func defaultJarsDir() string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "jars")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return defaultStagingDir
}

// interactive reports whether spinners and prompts can be shown
func interactive() bool {
	return isTerminal(os.Stdout) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}

func printVersion() {
	fmt.Printf("%s %s %s\n",
		theme.Banner.Render("Feature Store Spark JARs (fsjar)"),
		theme.Faint.Render("version"),
		theme.Code.Render(Version))
	fmt.Println(theme.Faint.Render(fmt.Sprintf("Spark versions: %s", spark.DefaultVersionMap)))
}
