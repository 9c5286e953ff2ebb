// Package installer propagates the bundled JAR matching the installed PySpark
// into a Spark installation. Propagation is a convenience: every failure is
// reported as a skip reason and never as an error.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fsjar/internal/bundle"
	"fsjar/internal/env"
	"fsjar/internal/spark"

	"github.com/charmbracelet/log"
)

// Status classifies the outcome of a propagation attempt
type Status string

const (
	StatusCopied      Status = "copied"        // JAR copied into SPARK_HOME/jars
	StatusUpToDate    Status = "up-to-date"    // Target already held identical content
	StatusNoSparkHome Status = "no-spark-home" // SPARK_HOME unset
	StatusNoPySpark   Status = "no-pyspark"    // PySpark not importable
	StatusUnsupported Status = "unsupported"   // PySpark minor version not in the version map
	StatusJarMissing  Status = "jar-missing"   // Version supported but not bundled
	StatusCopyFailed  Status = "copy-failed"   // Target not writable or copy error
	StatusProbeFailed Status = "probe-failed"  // PySpark detection failed for another reason
)

// Outcome reports what Propagate did
type Outcome struct {
	Status  Status
	Version string // Detected PySpark version, when known
	Minor   string // Detected major.minor, when known
	Source  string // Bundled JAR selected, when known
	Target  string // Destination inside SPARK_HOME/jars, when known
	Reason  string // Human readable explanation for skips
}

// Copied reports whether the target now holds the matching JAR
func (o Outcome) Copied() bool {
	return o.Status == StatusCopied || o.Status == StatusUpToDate
}

// Installer copies the matching bundled JAR into a Spark installation
type Installer struct {
	JarsDir   string           // Bundle directory
	Prefix    string           // JAR name prefix
	Supported spark.VersionMap // Supported versions
	Prober    spark.Prober     // Source of the installed PySpark version
	Logger    *log.Logger
}

// New creates an installer over a bundle directory
func New(jarsDir string, prober spark.Prober, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{
		JarsDir:   jarsDir,
		Prefix:    bundle.DefaultPrefix,
		Supported: spark.DefaultVersionMap,
		Prober:    prober,
		Logger:    logger,
	}
}

// Propagate copies <prefix>-<major>.<minor>.jar to <sparkHome>/jars/<prefix>.jar,
// overwriting any previous copy. It never fails: skips are logged as warnings
// and returned in the outcome.
func (i *Installer) Propagate(ctx context.Context, sparkHome string) Outcome {
	if strings.TrimSpace(sparkHome) == "" {
		i.Logger.Info("SPARK_HOME is not set. JARs are bundled in the package and will be selected automatically at runtime.")
		return Outcome{Status: StatusNoSparkHome, Reason: "SPARK_HOME is not set"}
	}

	version, err := i.Prober.Probe(ctx)
	if err != nil {
		if errors.Is(err, spark.ErrPySparkMissing) {
			return i.skip(Outcome{Status: StatusNoPySpark},
				"PySpark is not installed. Cannot determine which JAR to copy to SPARK_HOME. The correct JAR will be selected at runtime when PySpark is available.")
		}
		return i.skip(Outcome{Status: StatusProbeFailed}, fmt.Sprintf("Could not detect PySpark: %v. Skipping SPARK_HOME JAR copy.", err))
	}

	out := Outcome{Version: version}
	minor, err := spark.MinorKey(version)
	if err != nil {
		out.Status = StatusUnsupported
		return i.skip(out, fmt.Sprintf("Detected PySpark %q which cannot be parsed. Skipping SPARK_HOME JAR copy.", version))
	}
	out.Minor = minor

	if _, ok := i.Supported.Lookup(minor); !ok {
		out.Status = StatusUnsupported
		return i.skip(out, fmt.Sprintf("Detected PySpark %s which is not supported. Supported versions: %s. Skipping SPARK_HOME JAR copy.",
			minor, strings.Join(i.Supported.Minors(), ", ")))
	}

	source := filepath.Join(i.JarsDir, bundle.JarName(i.Prefix, minor))
	out.Source = source
	if _, err := os.Stat(source); err != nil {
		out.Status = StatusJarMissing
		return i.skip(out, fmt.Sprintf("JAR for Spark %s not found at %s. Available JARs: [%s]. Skipping SPARK_HOME JAR copy.",
			minor, source, strings.Join(i.available(), ", ")))
	}

	targetDir := env.JarsDir(sparkHome)
	target := filepath.Join(targetDir, bundle.GenericJarName(i.Prefix))
	out.Target = target

	if same, err := bundle.SameContent(source, target); err == nil && same {
		out.Status = StatusUpToDate
		i.Logger.Info("SPARK_HOME already has the matching JAR", "spark", minor, "target", target)
		return out
	}

	if !env.Writable(targetDir) {
		out.Status = StatusCopyFailed
		return i.skip(out, fmt.Sprintf("%s is missing or not writable. Skipping SPARK_HOME JAR copy.", targetDir))
	}

	i.Logger.Info(fmt.Sprintf("Detected PySpark %s. Copying %s to %s", minor, filepath.Base(source), target))
	if err := bundle.CopyFile(source, target); err != nil {
		out.Status = StatusCopyFailed
		return i.skip(out, fmt.Sprintf("Failed to copy JAR to SPARK_HOME: %v", err))
	}

	out.Status = StatusCopied
	return out
}

// available lists the bundled JAR names for diagnostics
func (i *Installer) available() []string {
	reg, err := bundle.Open(i.JarsDir, i.Prefix)
	if err != nil {
		return nil
	}
	return reg.Present()
}

func (i *Installer) skip(out Outcome, reason string) Outcome {
	out.Reason = reason
	i.Logger.Warn(reason)
	return out
}
