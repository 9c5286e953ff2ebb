package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// RegistryFile is the name of the registry written next to the bundled JARs
const RegistryFile = "bundle.toml"

// Artifact describes one bundled uber-JAR
type Artifact struct {
	Minor   string    `toml:"minor"`            // Spark minor version key (e.g., "3.5")
	Spark   string    `toml:"spark,omitempty"`  // Spark patch version the JAR was built against
	File    string    `toml:"file"`             // File name relative to the registry directory
	Size    int64     `toml:"size"`             // Size in bytes
	Digest  string    `toml:"blake3,omitempty"` // Hex BLAKE3 digest, empty when scanned
	BuiltAt time.Time `toml:"built_at"`         // Build time, or modification time when scanned
}

// Registry is the static list of JARs shipped in a bundle directory
type Registry struct {
	Prefix    string     `toml:"prefix"`
	Version   string     `toml:"version,omitempty"` // Package version from the VERSION file
	Artifacts []Artifact `toml:"artifact"`
	dir       string
}

// NewRegistry creates an empty registry for dir
func NewRegistry(dir, prefix string) *Registry {
	return &Registry{Prefix: prefix, Artifacts: make([]Artifact, 0), dir: dir}
}

// Open loads the registry of dir. When no registry file exists the
// directory is scanned for normalized JAR names instead.
func Open(dir, prefix string) (*Registry, error) {
	path := filepath.Join(dir, RegistryFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Scan(dir, prefix)
	}

	reg := NewRegistry(dir, prefix)
	if _, err := toml.DecodeFile(path, reg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if reg.Prefix != prefix {
		return nil, fmt.Errorf("registry %s is for prefix %q, expected %q", path, reg.Prefix, prefix)
	}
	reg.dir = dir
	reg.sortArtifacts()
	return reg, nil
}

// Scan builds a registry from the JAR files present in dir
func Scan(dir, prefix string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundled JARs: %w", err)
	}

	reg := NewRegistry(dir, prefix)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		minor, ok := ParseJarName(prefix, entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reg.Artifacts = append(reg.Artifacts, Artifact{
			Minor:   minor,
			File:    entry.Name(),
			Size:    info.Size(),
			BuiltAt: info.ModTime().UTC(),
		})
	}
	reg.sortArtifacts()
	return reg, nil
}

// Dir returns the directory holding the registry and its JARs
func (r *Registry) Dir() string {
	return r.dir
}

// Path returns the absolute path of an artifact
func (r *Registry) Path(a Artifact) string {
	path := filepath.Join(r.dir, a.File)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Names returns the file names of all registered JARs
func (r *Registry) Names() []string {
	names := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		names[i] = a.File
	}
	return names
}

// Present returns the names of registered JARs whose files still exist
func (r *Registry) Present() []string {
	names := make([]string, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		if _, err := os.Stat(r.Path(a)); err == nil {
			names = append(names, a.File)
		}
	}
	return names
}

// Lookup returns the artifact registered for a minor version
func (r *Registry) Lookup(minor string) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Minor == minor {
			return a, true
		}
	}
	return Artifact{}, false
}

// Put adds an artifact, replacing any entry for the same minor version
func (r *Registry) Put(a Artifact) {
	for i, existing := range r.Artifacts {
		if existing.Minor == a.Minor {
			r.Artifacts[i] = a
			return
		}
	}
	r.Artifacts = append(r.Artifacts, a)
	r.sortArtifacts()
}

// Verify checks that an artifact exists on disk and matches its recorded digest
func (r *Registry) Verify(a Artifact) error {
	path := r.Path(a)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("bundled JAR %s: %w", a.File, err)
	}
	if a.Size != 0 && info.Size() != a.Size {
		return fmt.Errorf("bundled JAR %s: size %d, registry says %d", a.File, info.Size(), a.Size)
	}
	if a.Digest == "" {
		return nil
	}

	actual, err := Digest(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, a.Digest) {
		return fmt.Errorf("bundled JAR %s: digest mismatch: expected %s, got %s", a.File, a.Digest, actual)
	}
	return nil
}

// Save writes the registry file into the registry directory
func (r *Registry) Save() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(r.dir, RegistryFile)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	if err := toml.NewEncoder(file).Encode(r); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// sortArtifacts orders artifacts by numeric minor version
func (r *Registry) sortArtifacts() {
	sort.SliceStable(r.Artifacts, func(i, j int) bool {
		return lessMinor(r.Artifacts[i].Minor, r.Artifacts[j].Minor)
	})
}

func lessMinor(a, b string) bool {
	var amaj, amin, bmaj, bmin int
	fmt.Sscanf(a, "%d.%d", &amaj, &amin)
	fmt.Sscanf(b, "%d.%d", &bmaj, &bmin)
	if amaj != bmaj {
		return amaj < bmaj
	}
	return amin < bmin
}
