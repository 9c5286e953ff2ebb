//go:build windows

package env

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

var (
	systemEnvRegPath = `System\CurrentControlSet\Control\Session Manager\Environment`
	userEnvRegPath   = `Environment`
)

// SystemSparkHome returns SPARK_HOME as stored in the registry, preferring the
// user environment over the machine environment
func SystemSparkHome() (string, error) {
	if value, err := readRegistryValue(registry.CURRENT_USER, userEnvRegPath, SparkHomeVar); err == nil && value != "" {
		return value, nil
	}
	return readRegistryValue(registry.LOCAL_MACHINE, systemEnvRegPath, SparkHomeVar)
}

func readRegistryValue(root registry.Key, path, name string) (string, error) {
	key, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("failed to open registry key: %w", err)
	}
	defer key.Close()

	value, _, err := key.GetStringValue(name)
	if err != nil {
		return "", fmt.Errorf("%s not set: %w", name, err)
	}

	expanded, err := registry.ExpandString(value)
	if err != nil {
		return value, nil
	}
	return expanded, nil
}

// Writable reports whether files can be created in dir
func Writable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}

	probe, err := os.CreateTemp(dir, ".fsjar-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}

// IsElevated reports whether the process token is elevated
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
