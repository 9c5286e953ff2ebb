package bundle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fsjar/internal/spark"
)

// MissingJarError is returned when no bundled JAR matches the installed Spark
type MissingJarError struct {
	Minor     string   // Spark minor version that was looked up
	Available []string // JAR file names present in the bundle
	Supported []string // Minor versions the bundle is built for
}

func (e *MissingJarError) Error() string {
	return fmt.Sprintf("no JAR found for Spark %s. Available: [%s]. Supported Spark versions: %s",
		e.Minor, strings.Join(e.Available, ", "), strings.Join(e.Supported, ", "))
}

// Resolution is the outcome of matching the installed PySpark to a bundled JAR
type Resolution struct {
	Version  string   // Full PySpark version reported by the probe
	Minor    string   // major.minor key
	Path     string   // Absolute path of the matching JAR
	Artifact Artifact // Registry entry of the matching JAR
}

// Resolver maps the installed PySpark to one bundled JAR
type Resolver struct {
	Dir       string           // Bundle directory holding the JARs
	Prefix    string           // JAR name prefix
	Supported spark.VersionMap // Officially supported versions, used in diagnostics
	Prober    spark.Prober     // Source of the installed PySpark version
}

// NewResolver creates a resolver over a bundle directory
func NewResolver(dir string, prober spark.Prober) *Resolver {
	return &Resolver{
		Dir:       dir,
		Prefix:    DefaultPrefix,
		Supported: spark.DefaultVersionMap,
		Prober:    prober,
	}
}

// Resolve probes PySpark and finds the matching bundled JAR.
// Nothing is cached; every call probes again.
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	version, err := r.Prober.Probe(ctx)
	if err != nil {
		return nil, err
	}

	minor, err := spark.MinorKey(version)
	if err != nil {
		return nil, err
	}

	reg, err := Open(r.Dir, r.Prefix)
	if err != nil {
		return nil, err
	}

	artifact, ok := reg.Lookup(minor)
	if ok {
		if _, statErr := os.Stat(reg.Path(artifact)); statErr != nil {
			ok = false
		}
	}
	if !ok {
		return nil, &MissingJarError{
			Minor:     minor,
			Available: reg.Present(),
			Supported: r.Supported.Minors(),
		}
	}

	return &Resolution{
		Version:  version,
		Minor:    minor,
		Path:     reg.Path(artifact),
		Artifact: artifact,
	}, nil
}

// ClasspathJars returns the JARs to put on the Spark classpath.
// The result always has exactly one element on success.
func (r *Resolver) ClasspathJars(ctx context.Context) ([]string, error) {
	res, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return []string{res.Path}, nil
}
