package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fsjar/internal/bundle"

	"github.com/klauspost/compress/zip"
)

// jarFile is a candidate archive found in the assembly output directory
type jarFile struct {
	path    string
	modTime int64
}

// listJars returns the JAR files directly inside dir
func listJars(dir string) ([]jarFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	jars := make([]jarFile, 0, 1)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), bundle.JarExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		jars = append(jars, jarFile{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime().UnixNano(),
		})
	}
	return jars, nil
}

// newestJar picks the most recently modified JAR, breaking ties by name
func newestJar(jars []jarFile) jarFile {
	sorted := append([]jarFile(nil), jars...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].modTime != sorted[j].modTime {
			return sorted[i].modTime > sorted[j].modTime
		}
		return sorted[i].path < sorted[j].path
	})
	return sorted[0]
}

// validateJar checks that path is a readable, non-empty zip archive
func validateJar(path string) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("invalid JAR %s: %w", path, err)
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return fmt.Errorf("invalid JAR %s: archive is empty", path)
	}
	return nil
}

// hasManifest reports whether the archive carries META-INF/MANIFEST.MF
func hasManifest(path string) bool {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer reader.Close()

	for _, file := range reader.File {
		if strings.EqualFold(file.Name, "META-INF/MANIFEST.MF") {
			return true
		}
	}
	return false
}
