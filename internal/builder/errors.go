package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrNoArtifact is returned when sbt succeeded but left no JAR behind
	ErrNoArtifact = errors.New("build produced no JAR")

	// ErrNotInSDK is returned when neither the SDK sources nor a staged bundle are present
	ErrNotInSDK = errors.New("you need to be in the feature store pyspark root folder to package")
)

// BuildError reports a failed sbt invocation
type BuildError struct {
	Minor  string // Spark minor version being built
	Patch  string // Spark patch version passed to sbt
	Stderr string // Captured error output of the build tool
	Err    error  // Underlying process or context error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build JAR for Spark %s: %v", e.Patch, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
