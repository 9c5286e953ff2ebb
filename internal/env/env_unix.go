//go:build !windows

package env

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// SystemSparkHome has no system-wide store outside the process environment on Unix
func SystemSparkHome() (string, error) {
	return "", errors.New("no system environment store on this platform")
}

// Writable reports whether the current user may create files in dir
func Writable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(dir, unix.W_OK|unix.X_OK) == nil
}

// IsElevated reports whether the process runs as root
func IsElevated() bool {
	return os.Geteuid() == 0
}
