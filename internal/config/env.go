package config

import (
	"os"
	"strings"
)

// Environment variables read at the process boundary
const (
	SparkHomeVar    = "SPARK_HOME"
	BuildVersionVar = "SPARK_BUILD_VERSION"
	PythonVar       = "PYSPARK_PYTHON"
	JarsDirVar      = "FSJAR_JARS_DIR"
)

// Env is the process environment relevant to fsjar, captured once so that
// build, resolve and install receive it explicitly
type Env struct {
	SparkHome    string // Target Spark installation for JAR propagation
	BuildVersion string // Restricts the build to one minor version when set
	Python       string // Interpreter used to detect PySpark
	JarsDir      string // Bundle directory override
}

// FromEnv captures the environment through lookup (os.LookupEnv in production)
func FromEnv(lookup func(string) (string, bool)) Env {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	return Env{
		SparkHome:    get(SparkHomeVar),
		BuildVersion: get(BuildVersionVar),
		Python:       get(PythonVar),
		JarsDir:      get(JarsDirVar),
	}
}

// FromOS captures the current process environment
func FromOS() Env {
	return FromEnv(os.LookupEnv)
}

// PythonOr returns the configured interpreter, preferring the environment
func (e Env) PythonOr(cfg *Config) string {
	if e.Python != "" {
		return e.Python
	}
	if cfg != nil {
		return cfg.Python
	}
	return ""
}

// JarsDirOr returns the bundle directory, preferring the environment, then the
// config file, then fallback
func (e Env) JarsDirOr(cfg *Config, fallback string) string {
	if e.JarsDir != "" {
		return e.JarsDir
	}
	if cfg != nil && cfg.JarsDir != "" {
		return cfg.JarsDir
	}
	return fallback
}
