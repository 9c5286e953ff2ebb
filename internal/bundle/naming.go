package bundle

import (
	"strings"
)

// DefaultPrefix is the file name prefix of every bundled uber-JAR
const DefaultPrefix = "sagemaker-feature-store-spark-sdk"

// JarExt is the extension of the archives produced by sbt assembly
const JarExt = ".jar"

// JarName returns the normalized bundle name for a Spark minor version, e.g.
// "sagemaker-feature-store-spark-sdk-3.5.jar"
func JarName(prefix, minor string) string {
	return prefix + "-" + minor + JarExt
}

// GenericJarName returns the version-less name used inside SPARK_HOME/jars
func GenericJarName(prefix string) string {
	return prefix + JarExt
}

// ParseJarName returns the minor version encoded in a normalized bundle name
func ParseJarName(prefix, name string) (string, bool) {
	if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, JarExt) {
		return "", false
	}
	minor := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"-"), JarExt)
	major, rest, found := strings.Cut(minor, ".")
	if !found || !isDigits(major) || !isDigits(rest) {
		return "", false
	}
	return minor, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
