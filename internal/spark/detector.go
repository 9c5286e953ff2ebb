package spark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// ErrPySparkMissing is returned when the pyspark module cannot be imported
var ErrPySparkMissing = errors.New("PySpark is required. Install it with: pip install pyspark")

// DefaultProbeTimeout bounds a single interpreter invocation
const DefaultProbeTimeout = 30 * time.Second

// probeScript prints the installed pyspark version without a trailing newline
const probeScript = "import sys, pyspark; sys.stdout.write(pyspark.__version__)"

var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?[0-9A-Za-z.+-]*)`)

// Prober reports the PySpark version visible to the caller.
// Implementations must not cache: every call reflects the current environment.
type Prober interface {
	Probe(ctx context.Context) (string, error)
}

// ProbeFunc adapts a plain function to a Prober
type ProbeFunc func(ctx context.Context) (string, error)

// Probe calls f
func (f ProbeFunc) Probe(ctx context.Context) (string, error) {
	return f(ctx)
}

// Detector finds the installed PySpark by asking a Python interpreter
type Detector struct {
	python  string
	timeout time.Duration
}

// NewDetector creates a detector for the given interpreter.
// An empty name falls back to python3 (python on Windows).
func NewDetector(python string) *Detector {
	if python == "" {
		python = DefaultPython()
	}
	return &Detector{python: python, timeout: DefaultProbeTimeout}
}

// DefaultPython returns the interpreter name used when none is configured
func DefaultPython() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// Python returns the interpreter the detector runs
func (d *Detector) Python() string {
	return d.python
}

// Probe runs the interpreter and returns the pyspark version string
func (d *Detector) Probe(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.python, "-c", probeScript)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("%w (interpreter %q not found)", ErrPySparkMissing, d.python)
		case isImportFailure(stderr.String()):
			return "", ErrPySparkMissing
		case ctx.Err() != nil:
			return "", fmt.Errorf("probe pyspark with %s: %w", d.python, ctx.Err())
		}
		return "", fmt.Errorf("probe pyspark with %s: %w: %s", d.python, err, strings.TrimSpace(stderr.String()))
	}

	version := parseVersionOutput(stdout.String())
	if version == "" {
		return "", fmt.Errorf("unexpected pyspark version output %q", strings.TrimSpace(stdout.String()))
	}
	return version, nil
}

// isImportFailure reports whether the interpreter failed on the pyspark import
func isImportFailure(stderr string) bool {
	return strings.Contains(stderr, "ModuleNotFoundError") || strings.Contains(stderr, "ImportError")
}

// parseVersionOutput extracts the first version-looking token
func parseVersionOutput(output string) string {
	matches := versionPattern.FindStringSubmatch(output)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}
