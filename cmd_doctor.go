package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"fsjar/internal/builder"
	"fsjar/internal/bundle"
	"fsjar/internal/env"
	"fsjar/internal/spark"
	"fsjar/internal/theme"

	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var jarsDir string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics on the bundle, PySpark and SPARK_HOME",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !handleDoctor(cmd.Context(), jarsDir) {
				return errors.New("diagnostics found issues")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jarsDir, "jars-dir", "", "bundle directory (default $FSJAR_JARS_DIR, config, or ./jars next to fsjar)")
	return cmd
}

// diagnosis collects doctor findings
type diagnosis struct {
	issues   []string
	warnings []string
}

func (d *diagnosis) issue(msg string) {
	fmt.Println("  " + theme.ErrorMessage(msg))
	d.issues = append(d.issues, msg)
}

func (d *diagnosis) warn(msg string) {
	fmt.Println("  " + theme.WarningMessage(msg))
	d.warnings = append(d.warnings, msg)
}

func (d *diagnosis) ok(msg string) {
	fmt.Println("  " + theme.SuccessMessage(msg))
}

// handleDoctor prints every check and reports whether no issue was found
func handleDoctor(ctx context.Context, jarsDir string) bool {
	fmt.Println(titleStyle.Render("Feature Store Spark JARs - Diagnostics"))
	fmt.Println()

	d := &diagnosis{}

	fmt.Println(theme.LabelStyle.Render("Checking configuration..."))
	s, err := loadSettings()
	if err != nil {
		d.issue(fmt.Sprintf("Configuration file error: %v", err))
		s = defaultSettings()
	} else if _, err := os.Stat(s.cfg.ConfigPath()); errors.Is(err, os.ErrNotExist) {
		d.ok("No configuration file, using defaults")
	} else {
		d.ok("Configuration file is valid: " + theme.PathStyle.Render(s.cfg.ConfigPath()))
	}
	fmt.Println()

	fmt.Println(theme.LabelStyle.Render("Checking PySpark..."))
	detector := s.detector()
	minor := checkPySpark(ctx, d, detector)
	fmt.Println()

	dir := s.jarsDir(jarsDir)
	fmt.Println(theme.LabelStyle.Render("Checking bundled JARs..."))
	reg := checkBundle(d, dir, spark.DefaultVersionMap, minor)
	fmt.Println()

	fmt.Println(theme.LabelStyle.Render("Checking SPARK_HOME..."))
	checkSparkHome(d, env.SparkHome(s.env.SparkHome, nil), reg, minor)
	fmt.Println()

	fmt.Println(theme.LabelStyle.Render("Checking build tools..."))
	checkBuildTools(d, firstNonEmpty(s.cfg.SDKDir, defaultSDKDir))
	fmt.Println()

	printDiagnosis(d)
	return len(d.issues) == 0
}

// checkPySpark returns the detected major.minor, or "" when PySpark is unusable
func checkPySpark(ctx context.Context, d *diagnosis, detector *spark.Detector) string {
	version, err := detector.Probe(ctx)
	switch {
	case errors.Is(err, spark.ErrPySparkMissing):
		d.warn(fmt.Sprintf("PySpark is not importable with %s (pip install pyspark)", detector.Python()))
		return ""
	case err != nil:
		d.issue(fmt.Sprintf("PySpark detection failed: %v", err))
		return ""
	}

	minor, err := spark.MinorKey(version)
	if err != nil {
		d.issue(err.Error())
		return ""
	}

	d.ok(fmt.Sprintf("PySpark %s found with %s", currentStyle.Render(version), detector.Python()))
	if _, supported := spark.DefaultVersionMap.Lookup(minor); !supported {
		d.issue(fmt.Sprintf("Spark %s is not supported. Supported versions: %s",
			minor, strings.Join(spark.DefaultVersionMap.Minors(), ", ")))
	}
	return minor
}

// checkBundle verifies every registered JAR and looks for the one matching minor
func checkBundle(d *diagnosis, dir string, versions spark.VersionMap, minor string) *bundle.Registry {
	reg, err := bundle.Open(dir, bundle.DefaultPrefix)
	if err != nil {
		d.issue(fmt.Sprintf("Bundle registry error: %v", err))
		return nil
	}
	if len(reg.Artifacts) == 0 {
		d.issue("No bundled JARs in " + dir + ". Run 'fsjar build'.")
		return reg
	}

	d.ok(fmt.Sprintf("Found %d bundled JAR(s) in %s", len(reg.Artifacts), theme.PathStyle.Render(dir)))
	if _, err := os.Stat(filepath.Join(dir, bundle.RegistryFile)); err != nil {
		d.warn("No " + bundle.RegistryFile + " in the bundle, digests cannot be verified")
	}

	for _, a := range reg.Artifacts {
		if err := reg.Verify(a); err != nil {
			d.issue(err.Error())
		}
	}

	var missing []string
	for _, b := range versions {
		if _, ok := reg.Lookup(b.Minor); !ok {
			missing = append(missing, b.Minor)
		}
	}
	if len(missing) > 0 {
		d.warn("No JAR bundled for Spark " + strings.Join(missing, ", "))
	}

	if minor != "" {
		if a, ok := reg.Lookup(minor); ok {
			d.ok(fmt.Sprintf("Installed PySpark uses %s", currentStyle.Render(a.File)))
		} else {
			d.issue(fmt.Sprintf("No JAR bundled for the installed Spark %s", minor))
		}
	}
	return reg
}

// checkSparkHome inspects the JAR propagated into SPARK_HOME
func checkSparkHome(d *diagnosis, sparkHome string, reg *bundle.Registry, minor string) {
	if sparkHome == "" {
		d.ok("SPARK_HOME is not set, the JAR is picked at runtime")
		return
	}

	jars := env.JarsDir(sparkHome)
	if info, err := os.Stat(jars); err != nil || !info.IsDir() {
		d.warn("SPARK_HOME has no jars folder: " + jars)
		return
	}
	d.ok("SPARK_HOME is set: " + theme.PathStyle.Render(sparkHome))

	if !env.Writable(jars) {
		d.warn(writableHint(jars, env.IsElevated()))
	}

	target := filepath.Join(jars, bundle.GenericJarName(bundle.DefaultPrefix))
	if _, err := os.Stat(target); err != nil {
		d.warn("No connector JAR in SPARK_HOME. Run 'fsjar install' to copy it.")
		return
	}
	if reg == nil || minor == "" {
		d.ok("Connector JAR present: " + theme.PathStyle.Render(target))
		return
	}

	a, ok := reg.Lookup(minor)
	if !ok {
		return
	}
	same, err := bundle.SameContent(reg.Path(a), target)
	switch {
	case err != nil:
		d.warn(fmt.Sprintf("Could not compare %s: %v", target, err))
	case same:
		d.ok(fmt.Sprintf("SPARK_HOME JAR matches Spark %s", minor))
	default:
		d.issue(fmt.Sprintf("SPARK_HOME JAR differs from the bundled JAR for Spark %s. Run 'fsjar install'.", minor))
	}
}

// writableHint explains how to make 'fsjar install' able to write into jars
func writableHint(jars string, elevated bool) string {
	msg := jars + " is not writable, 'fsjar install' cannot copy the JAR."
	if elevated {
		return msg + " Check the folder's permissions."
	}
	if runtime.GOOS == "windows" {
		return msg + " Rerun " + theme.CommandStyle.Render("fsjar install") + " from an elevated prompt."
	}
	return msg + " Rerun " + theme.CommandStyle.Render("sudo -E fsjar install") + "."
}

// checkBuildTools reports whether 'fsjar build' can run here
func checkBuildTools(d *diagnosis, sdkDir string) {
	if _, err := os.Stat(filepath.Join(sdkDir, builder.BuildDefinition)); err != nil {
		d.ok("Scala SDK not present, 'fsjar build' reuses staged JARs")
		return
	}
	d.ok("Scala SDK found: " + theme.PathStyle.Render(sdkDir))

	if path, err := exec.LookPath(builder.DefaultCommand); err != nil {
		d.warn(builder.DefaultCommand + " is not on PATH, 'fsjar build' cannot run")
	} else {
		d.ok(builder.DefaultCommand + " found: " + theme.PathStyle.Render(path))
	}
}

func printDiagnosis(d *diagnosis) {
	fmt.Println(titleStyle.Render("Diagnostics Summary"))
	fmt.Println()

	if len(d.issues) == 0 && len(d.warnings) == 0 {
		fmt.Println(theme.SuccessBox.Render(theme.SuccessMessage("All checks passed!") + "\n\nThe bundle matches the installed PySpark."))
		return
	}

	var summary strings.Builder
	if len(d.issues) > 0 {
		summary.WriteString(errorStyle.Render(fmt.Sprintf("Issues Found: %d", len(d.issues))) + "\n\n")
		for _, issue := range d.issues {
			summary.WriteString(theme.ErrorMessage(issue) + "\n")
		}
	}
	if len(d.warnings) > 0 {
		if len(d.issues) > 0 {
			summary.WriteString("\n")
		}
		summary.WriteString(warningStyle.Render(fmt.Sprintf("Warnings: %d", len(d.warnings))) + "\n\n")
		for _, warning := range d.warnings {
			summary.WriteString(theme.WarningMessage(warning) + "\n")
		}
	}

	fmt.Println(boxStyle.Render(strings.TrimRight(summary.String(), "\n")))
}
