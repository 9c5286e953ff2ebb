package bundle

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanFindsNormalizedJars(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, JarName(DefaultPrefix, "3.5")), "jar35")
	writeFile(t, filepath.Join(dir, JarName(DefaultPrefix, "3.10")), "jar310")
	writeFile(t, filepath.Join(dir, JarName(DefaultPrefix, "3.2")), "jar32")
	writeFile(t, filepath.Join(dir, GenericJarName(DefaultPrefix)), "generic")
	writeFile(t, filepath.Join(dir, "README.md"), "docs")

	reg, err := Scan(dir, DefaultPrefix)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{
		JarName(DefaultPrefix, "3.2"),
		JarName(DefaultPrefix, "3.5"),
		JarName(DefaultPrefix, "3.10"),
	}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	a, ok := reg.Lookup("3.5")
	if !ok || a.Size != int64(len("jar35")) {
		t.Fatalf("unexpected lookup result: %#v %v", a, ok)
	}
}

func TestSaveAndOpenRoundTripsRegistry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jar := filepath.Join(dir, JarName(DefaultPrefix, "3.4"))
	writeFile(t, jar, "uber")
	digest, err := Digest(jar)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}

	reg := NewRegistry(dir, DefaultPrefix)
	reg.Version = "1.2.0"
	reg.Put(Artifact{
		Minor:   "3.4",
		Spark:   "3.4.3",
		File:    filepath.Base(jar),
		Size:    4,
		Digest:  digest,
		BuiltAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err := reg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Open(dir, DefaultPrefix)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if loaded.Version != "1.2.0" {
		t.Fatalf("Version = %q", loaded.Version)
	}
	a, ok := loaded.Lookup("3.4")
	if !ok {
		t.Fatal("artifact 3.4 missing after reload")
	}
	if a.Spark != "3.4.3" || a.Digest != digest {
		t.Fatalf("unexpected artifact after reload: %#v", a)
	}
	if err := loaded.Verify(a); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jar := filepath.Join(dir, JarName(DefaultPrefix, "3.3"))
	writeFile(t, jar, "original")
	digest, err := Digest(jar)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}

	reg := NewRegistry(dir, DefaultPrefix)
	a := Artifact{Minor: "3.3", File: filepath.Base(jar), Digest: digest}
	reg.Put(a)

	writeFile(t, jar, "modified")
	err = reg.Verify(a)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestOpenRejectsForeignPrefix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := NewRegistry(dir, "other-sdk").Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := Open(dir, DefaultPrefix); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestPutReplacesSameMinor(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(t.TempDir(), DefaultPrefix)
	reg.Put(Artifact{Minor: "3.5", Spark: "3.5.0", File: JarName(DefaultPrefix, "3.5")})
	reg.Put(Artifact{Minor: "3.2", File: JarName(DefaultPrefix, "3.2")})
	reg.Put(Artifact{Minor: "3.5", Spark: "3.5.1", File: JarName(DefaultPrefix, "3.5")})

	if len(reg.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(reg.Artifacts))
	}
	if reg.Artifacts[0].Minor != "3.2" {
		t.Fatalf("artifacts not sorted: %#v", reg.Artifacts)
	}
	if a, _ := reg.Lookup("3.5"); a.Spark != "3.5.1" {
		t.Fatalf("Put did not replace: %#v", a)
	}
}
