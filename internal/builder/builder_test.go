package builder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"fsjar/internal/bundle"
	"fsjar/internal/spark"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
)

type fakeRunner struct {
	patches  []string
	leftover [][]string
	failOn   string
	stderr   string
	block    bool
	produce  func(outDir, patch string) error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	patch := strings.TrimPrefix(args[0], "-DSPARK_VERSION=")
	f.patches = append(f.patches, patch)

	outDir := filepath.Join(dir, AssemblyOutputDir)
	entries, _ := os.ReadDir(outDir)
	present := make([]string, 0, len(entries))
	for _, e := range entries {
		present = append(present, e.Name())
	}
	f.leftover = append(f.leftover, present)

	if f.block {
		<-ctx.Done()
		return nil, []byte("killed"), errors.New("signal: killed")
	}
	if patch == f.failOn {
		return nil, []byte(f.stderr), errors.New("exit status 1")
	}
	if f.produce != nil {
		if err := f.produce(outDir, patch); err != nil {
			return nil, nil, err
		}
	}
	return []byte("[success]"), nil, nil
}

// writeJar creates a minimal uber-JAR whose marker entry holds content
func writeJar(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jar: %v", err)
	}
	defer file.Close()

	zw := zip.NewWriter(file)
	manifest, err := zw.Create("META-INF/MANIFEST.MF")
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	io.WriteString(manifest, "Manifest-Version: 1.0\n")
	marker, err := zw.Create("software/amazon/sagemaker/featurestore/sparksdk/BUILD")
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	io.WriteString(marker, content)
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// readMarker returns the marker entry written by writeJar
func readMarker(t *testing.T, path string) string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open jar %s: %v", path, err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if strings.HasSuffix(f.Name, "/BUILD") {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open entry: %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			return string(data)
		}
	}
	t.Fatalf("marker missing in %s", path)
	return ""
}

func producer(t *testing.T) func(outDir, patch string) error {
	return func(outDir, patch string) error {
		writeJar(t, filepath.Join(outDir, "sagemaker-feature-store-spark-sdk-assembly-"+patch+".jar"), patch)
		return nil
	}
}

type layout struct {
	sdk     string
	staging string
	version string
}

func newLayout(t *testing.T) layout {
	t.Helper()
	root := t.TempDir()
	l := layout{
		sdk:     filepath.Join(root, "scala-spark-sdk"),
		staging: filepath.Join(root, "pyspark-sdk", "deps", "jars"),
		version: filepath.Join(root, "pyspark-sdk", "VERSION"),
	}
	if err := os.MkdirAll(l.sdk, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.version), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(l.sdk, BuildDefinition), []byte(`name := "sdk"`), 0o644); err != nil {
		t.Fatalf("write build.sbt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "VERSION"), []byte("1.2.0\n"), 0o644); err != nil {
		t.Fatalf("write VERSION: %v", err)
	}
	return l
}

func (l layout) options() Options {
	return Options{
		SDKDir:      l.sdk,
		StagingDir:  l.staging,
		VersionFile: l.version,
		Versions:    spark.DefaultVersionMap,
	}
}

func stagedJars(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), bundle.JarExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestBuildAllVersions(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	runner := &fakeRunner{produce: producer(t)}

	result, err := New(l.options(), runner, quietLogger()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if want := []string{"3.2.4", "3.3.4", "3.4.3", "3.5.1"}; !reflect.DeepEqual(runner.patches, want) {
		t.Fatalf("build order = %v, want %v", runner.patches, want)
	}
	if len(result.Built) != 4 || result.Prebuilt {
		t.Fatalf("unexpected result: %#v", result)
	}

	for _, b := range spark.DefaultVersionMap {
		jar := filepath.Join(l.staging, bundle.JarName(bundle.DefaultPrefix, b.Minor))
		if got := readMarker(t, jar); got != b.Patch {
			t.Fatalf("%s built from %s, want %s", jar, got, b.Patch)
		}
	}

	data, err := os.ReadFile(l.version)
	if err != nil || strings.TrimSpace(string(data)) != "1.2.0" {
		t.Fatalf("VERSION not refreshed: %q %v", data, err)
	}

	reg, err := bundle.Open(l.staging, bundle.DefaultPrefix)
	if err != nil {
		t.Fatalf("Open registry failed: %v", err)
	}
	if reg.Version != "1.2.0" || len(reg.Artifacts) != 4 {
		t.Fatalf("unexpected registry: %#v", reg)
	}
	for _, a := range reg.Artifacts {
		if err := reg.Verify(a); err != nil {
			t.Fatalf("Verify %s failed: %v", a.File, err)
		}
	}
}

func TestBuildSingleVersionOverride(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "3.5"
	runner := &fakeRunner{produce: producer(t)}

	if _, err := New(opts, runner, quietLogger()).Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if want := []string{"sagemaker-feature-store-spark-sdk-3.5.jar"}; !reflect.DeepEqual(stagedJars(t, l.staging), want) {
		t.Fatalf("staged = %v, want %v", stagedJars(t, l.staging), want)
	}
	if !reflect.DeepEqual(runner.patches, []string{"3.5.1"}) {
		t.Fatalf("unexpected builds: %v", runner.patches)
	}
}

func TestBuildInvalidOverrideProducesNothing(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "2.4"
	runner := &fakeRunner{produce: producer(t)}

	_, err := New(opts, runner, quietLogger()).Build(context.Background())
	if !errors.Is(err, spark.ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
	if len(runner.patches) != 0 {
		t.Fatalf("build tool invoked: %v", runner.patches)
	}
	if _, err := os.Stat(l.staging); !os.IsNotExist(err) {
		t.Fatalf("staging directory should not exist: %v", err)
	}
}

func TestBuildFailureAbortsRemainingVersions(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	runner := &fakeRunner{produce: producer(t), failOn: "3.3.4", stderr: "[error] unresolved dependency"}

	_, err := New(l.options(), runner, quietLogger()).Build(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Patch != "3.3.4" || !strings.Contains(buildErr.Stderr, "unresolved dependency") {
		t.Fatalf("unexpected BuildError: %#v", buildErr)
	}
	if !reflect.DeepEqual(runner.patches, []string{"3.2.4", "3.3.4"}) {
		t.Fatalf("build continued after failure: %v", runner.patches)
	}
	if _, err := os.Stat(filepath.Join(l.staging, bundle.RegistryFile)); !os.IsNotExist(err) {
		t.Fatalf("registry written after failed build: %v", err)
	}
}

func TestBuildWithoutArtifact(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	runner := &fakeRunner{produce: func(outDir, _ string) error {
		return os.MkdirAll(outDir, 0o755)
	}}

	_, err := New(l.options(), runner, quietLogger()).Build(context.Background())
	if !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}
}

func TestBuildWithoutOutputDirectory(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	_, err := New(l.options(), &fakeRunner{}, quietLogger()).Build(context.Background())
	if err == nil || !strings.Contains(err.Error(), AssemblyOutputDir) {
		t.Fatalf("expected missing output directory error, got %v", err)
	}
}

func TestBuildCleansOutputBeforeEachVersion(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	writeJar(t, filepath.Join(l.sdk, AssemblyOutputDir, "stale.jar"), "stale")
	runner := &fakeRunner{produce: producer(t)}

	if _, err := New(l.options(), runner, quietLogger()).Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i, present := range runner.leftover {
		if len(present) != 0 {
			t.Fatalf("build %d started with leftovers %v", i, present)
		}
	}
}

func TestBuildMultipleJarsPicksNewest(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "3.4"
	runner := &fakeRunner{produce: func(outDir, patch string) error {
		older := filepath.Join(outDir, "a-sources.jar")
		newer := filepath.Join(outDir, "b-assembly.jar")
		writeJar(t, older, "sources")
		writeJar(t, newer, patch)
		past := time.Now().Add(-time.Hour)
		return os.Chtimes(older, past, past)
	}}

	if _, err := New(opts, runner, quietLogger()).Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	jar := filepath.Join(l.staging, bundle.JarName(bundle.DefaultPrefix, "3.4"))
	if got := readMarker(t, jar); got != "3.4.3" {
		t.Fatalf("staged JAR built from %q, want newest", got)
	}
}

func TestBuildRejectsCorruptJar(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "3.2"
	runner := &fakeRunner{produce: func(outDir, _ string) error {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outDir, "broken.jar"), []byte("not a zip"), 0o644)
	}}

	_, err := New(opts, runner, quietLogger()).Build(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid JAR") {
		t.Fatalf("expected invalid JAR error, got %v", err)
	}
}

func TestBuildTimeout(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "3.5"
	opts.Timeout = 50 * time.Millisecond

	_, err := New(opts, &fakeRunner{block: true}, quietLogger()).Build(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBuildInterruptedReportsCancellation(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "3.5"

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := New(opts, &fakeRunner{block: true}, quietLogger()).Build(ctx)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cancellation reported as timeout: %v", err)
	}
}

func TestBuildOutsideSDK(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts := Options{
		SDKDir:     filepath.Join(root, "scala-spark-sdk"),
		StagingDir: filepath.Join(root, "deps", "jars"),
	}

	_, err := New(opts, &fakeRunner{}, quietLogger()).Build(context.Background())
	if !errors.Is(err, ErrNotInSDK) {
		t.Fatalf("expected ErrNotInSDK, got %v", err)
	}

	writeJar(t, filepath.Join(opts.StagingDir, bundle.JarName(bundle.DefaultPrefix, "3.3")), "3.3.4")
	runner := &fakeRunner{}
	result, err := New(opts, runner, quietLogger()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build with staged JARs failed: %v", err)
	}
	if !result.Prebuilt || len(runner.patches) != 0 {
		t.Fatalf("expected prebuilt reuse without builds: %#v %v", result, runner.patches)
	}
	if _, ok := result.Registry.Lookup("3.3"); !ok {
		t.Fatal("staged JAR missing from registry")
	}
}

func TestBuildUsesProgressWrapper(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	opts := l.options()
	opts.Only = "3.2"

	var messages []string
	b := New(opts, &fakeRunner{produce: producer(t)}, quietLogger()).
		WithProgress(func(message string, fn func() error) error {
			messages = append(messages, message)
			return fn()
		})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(messages) != 1 || !strings.Contains(messages[0], "3.2.4") {
		t.Fatalf("unexpected progress messages: %v", messages)
	}
}
