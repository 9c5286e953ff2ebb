// Package env locates the Spark installation that bundled JARs are propagated into.
package env

import (
	"path/filepath"
	"strings"
)

// SparkHomeVar names the Spark installation directory variable
const SparkHomeVar = "SPARK_HOME"

// SparkHome returns the Spark home from the captured process environment.
// An unset value stays unset unless fromSystem is given, in which case the
// platform's persistent store is consulted.
func SparkHome(fromProcess string, fromSystem func() (string, error)) string {
	if home := strings.TrimSpace(fromProcess); home != "" {
		return home
	}
	if fromSystem == nil {
		return ""
	}
	if home, err := fromSystem(); err == nil {
		return strings.TrimSpace(home)
	}
	return ""
}

// JarsDir returns the library folder of a Spark installation
func JarsDir(sparkHome string) string {
	return filepath.Join(sparkHome, "jars")
}
