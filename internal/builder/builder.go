// Package builder produces the per-Spark-version uber-JARs and stages them
// under normalized names together with a bundle registry.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fsjar/internal/bundle"
	"fsjar/internal/config"
	"fsjar/internal/spark"

	"github.com/charmbracelet/log"
)

const (
	// AssemblyOutputDir is where the SDK's sbt assembly task writes the uber-JAR
	AssemblyOutputDir = "assembly-output"

	// BuildDefinition marks the root of the Scala SDK checkout
	BuildDefinition = "build.sbt"

	// DefaultCommand is the external build tool
	DefaultCommand = "sbt"
)

// Options configures a build
type Options struct {
	SDKDir      string           // Scala SDK checkout containing build.sbt
	StagingDir  string           // Directory collecting the normalized JARs
	VersionFile string           // Package VERSION file refreshed from the SDK's parent, skipped when empty
	Prefix      string           // JAR name prefix
	Versions    spark.VersionMap // Versions to build, in order
	Only        string           // Restricts the build to one minor version when set
	Timeout     time.Duration    // Upper bound for a single build tool run
	Command     string           // Build tool executable
}

// Result describes what a build left in the staging directory
type Result struct {
	Built    []bundle.Artifact // Artifacts produced by this run, in build order
	Registry *bundle.Registry  // Registry written to the staging directory
	Prebuilt bool              // Sources absent, the existing staged bundle was reused
}

// Builder runs the build tool once per Spark version
type Builder struct {
	opts     Options
	runner   Runner
	logger   *log.Logger
	progress func(message string, fn func() error) error
}

// New creates a builder. Zero-valued options fall back to defaults.
func New(opts Options, runner Runner, logger *log.Logger) *Builder {
	if opts.Prefix == "" {
		opts.Prefix = bundle.DefaultPrefix
	}
	if opts.Versions == nil {
		opts.Versions = spark.DefaultVersionMap
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultBuildTimeout
	}
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Builder{
		opts:   opts,
		runner: runner,
		logger: logger,
		progress: func(_ string, fn func() error) error {
			return fn()
		},
	}
}

// WithProgress wraps every build tool run, typically with WithSpinner
func (b *Builder) WithProgress(wrap func(message string, fn func() error) error) *Builder {
	b.progress = wrap
	return b
}

// InSDK reports whether the Scala SDK sources are available
func (b *Builder) InSDK() bool {
	info, err := os.Stat(filepath.Join(b.opts.SDKDir, BuildDefinition))
	return err == nil && !info.IsDir()
}

// Plan returns the versions a Build call would build
func (b *Builder) Plan() (spark.VersionMap, error) {
	if err := b.opts.Versions.Validate(); err != nil {
		return nil, err
	}
	if b.opts.Only == "" {
		return b.opts.Versions, nil
	}
	return b.opts.Versions.Only(b.opts.Only)
}

// Build runs the build tool for every planned version, one after another,
// and stages each JAR as <prefix>-<major>.<minor>.jar. The first failure
// aborts the remaining versions.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	versions, err := b.Plan()
	if err != nil {
		return nil, err
	}

	if !b.InSDK() {
		return b.reuseStaged()
	}

	packageVersion, err := b.refreshVersionFile()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(b.opts.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	reg, err := bundle.Open(b.opts.StagingDir, b.opts.Prefix)
	if err != nil {
		return nil, err
	}
	if packageVersion != "" {
		reg.Version = packageVersion
	}

	result := &Result{Registry: reg, Built: make([]bundle.Artifact, 0, len(versions))}
	for _, build := range versions {
		artifact, err := b.buildOne(ctx, build)
		if err != nil {
			return nil, err
		}
		reg.Put(artifact)
		result.Built = append(result.Built, artifact)
	}

	if err := reg.Save(); err != nil {
		return nil, fmt.Errorf("failed to write bundle registry: %w", err)
	}
	return result, nil
}

// reuseStaged handles packaging outside the SDK layout, where the JARs must already be staged
func (b *Builder) reuseStaged() (*Result, error) {
	info, err := os.Stat(b.opts.StagingDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w (no %s in %s and no staged JARs in %s)",
			ErrNotInSDK, BuildDefinition, b.opts.SDKDir, b.opts.StagingDir)
	}

	b.logger.Info("Scala SDK not found, packaging previously staged JARs", "staging", b.opts.StagingDir)
	reg, err := bundle.Open(b.opts.StagingDir, b.opts.Prefix)
	if err != nil {
		return nil, err
	}
	return &Result{Registry: reg, Prebuilt: true}, nil
}

// refreshVersionFile copies the repository VERSION file next to the package
// and returns its trimmed content
func (b *Builder) refreshVersionFile() (string, error) {
	if b.opts.VersionFile == "" {
		return "", nil
	}

	src := filepath.Join(filepath.Dir(filepath.Clean(b.opts.SDKDir)), filepath.Base(b.opts.VersionFile))
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read package version: %w", err)
	}
	if err := os.WriteFile(b.opts.VersionFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", b.opts.VersionFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// buildOne runs a clean build for one version and stages its JAR
func (b *Builder) buildOne(ctx context.Context, build spark.Build) (bundle.Artifact, error) {
	outputDir := filepath.Join(b.opts.SDKDir, AssemblyOutputDir)
	logger := b.logger.With("spark", build.Patch)

	// Stale JARs from the previous version must not be picked up
	if err := os.RemoveAll(outputDir); err != nil {
		return bundle.Artifact{}, fmt.Errorf("failed to clean %s: %w", outputDir, err)
	}

	args := []string{"-DSPARK_VERSION=" + build.Patch, "assembly"}
	logger.Info("Building JAR", "command", b.opts.Command+" "+strings.Join(args, " "))
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	var stderr []byte
	err := b.progress(fmt.Sprintf("Building JAR for Spark %s...", build.Patch), func() error {
		var runErr error
		_, stderr, runErr = b.runner.Run(runCtx, b.opts.SDKDir, b.opts.Command, args...)
		return runErr
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("interrupted: %w", ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("timed out after %s: %w", b.opts.Timeout, context.DeadlineExceeded)
		}
		return bundle.Artifact{}, &BuildError{
			Minor:  build.Minor,
			Patch:  build.Patch,
			Stderr: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}

	jars, err := listJars(outputDir)
	if err != nil {
		return bundle.Artifact{}, fmt.Errorf("%s directory not found after building Spark %s: %w", AssemblyOutputDir, build.Patch, err)
	}
	if len(jars) == 0 {
		return bundle.Artifact{}, fmt.Errorf("%w: can't package Spark %s", ErrNoArtifact, build.Patch)
	}

	chosen := newestJar(jars)
	if len(jars) > 1 {
		names := make([]string, len(jars))
		for i, j := range jars {
			names[i] = filepath.Base(j.path)
		}
		logger.Warn("Multiple JARs found after clean build, using the newest", "jars", names, "chosen", filepath.Base(chosen.path))
	}

	if err := validateJar(chosen.path); err != nil {
		return bundle.Artifact{}, err
	}
	if !hasManifest(chosen.path) {
		logger.Debug("JAR has no META-INF/MANIFEST.MF", "jar", chosen.path)
	}

	target := filepath.Join(b.opts.StagingDir, bundle.JarName(b.opts.Prefix, build.Minor))
	if err := bundle.CopyFile(chosen.path, target); err != nil {
		return bundle.Artifact{}, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return bundle.Artifact{}, err
	}
	digest, err := bundle.Digest(target)
	if err != nil {
		return bundle.Artifact{}, err
	}

	logger.Info("Built", "jar", target, "elapsed", time.Since(start).Round(time.Millisecond))
	return bundle.Artifact{
		Minor:   build.Minor,
		Spark:   build.Patch,
		File:    filepath.Base(target),
		Size:    info.Size(),
		Digest:  digest,
		BuiltAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}
