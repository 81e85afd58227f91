package pipeline

import (
	"archive/zip"
	"bytes"
	stdctx "context"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/apkcloner/apkclone/internal/pipeline/config"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

const originalManifest = `<?xml version="1.0" encoding="utf-8" standalone="no"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" android:compileSdkVersion="34" android:versionCode="12" package="com.example.original">
    <uses-permission android:name="android.permission.INTERNET"/>
    <application android:label="@string/app_name" android:icon="@mipmap/ic_launcher"/>
</manifest>
`

// TestHelperProcess plays apktool and jarsigner. The first argument after
// "--" names the tool; FAKE_* variables select misbehaviour.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: <tool> <args>")
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "apktool":
		err = fakeApktool(args[1:])
	case "jarsigner":
		err = fakeJarsigner(args[1:])
	default:
		err = fmt.Errorf("unknown tool %s", args[0])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fakeApktool(args []string) error {
	mode := os.Getenv("FAKE_APKTOOL_MODE")
	fmt.Println("I: Using Apktool 2.11.1")
	switch args[0] {
	case "d":
		if mode == "oom" {
			fmt.Println("I: Loading resource table...")
			fmt.Fprintln(os.Stderr, `Exception in thread "main" java.lang.OutOfMemoryError: Java heap space`)
			os.Exit(1)
		}
		// d <src> -o <dir> -f --no-src
		return fakeDecode(args[1], args[3], mode == "no-manifest")
	case "b":
		if mode == "hang-build" {
			os.WriteFile(os.Getenv("FAKE_PIDFILE"), []byte(strconv.Itoa(os.Getpid())), 0o644)
			fmt.Println("I: Building apk file...")
			time.Sleep(time.Minute)
		}
		// b <dir> -o <out> --no-res
		return zipDir(args[1], args[3])
	}
	return fmt.Errorf("unknown apktool command %s", args[0])
}

// fakeDecode copies the manifest (kept as text in test APKs) and writes
// placeholders for resources, which the pipeline must replace.
func fakeDecode(src, dir string, dropManifest bool) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || f.Name == "resources.arsc" {
			continue
		}
		if f.Name == "AndroidManifest.xml" && dropManifest {
			continue
		}
		dst := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if strings.HasPrefix(f.Name, "res/") {
			if err := os.WriteFile(dst, []byte("<decoded/>"), 0o444); err != nil {
				return err
			}
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}
	fmt.Println("I: Copying original files...")
	return os.WriteFile(filepath.Join(dir, "apktool.yml"), []byte("version: 2.11.1\n"), 0o444)
}

func zipDir(dir, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == "apktool.yml" {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

func fakeJarsigner(args []string) error {
	if os.Getenv("FAKE_JARSIGNER_MODE") == "bad-password" {
		fmt.Fprintln(os.Stderr, "jarsigner error: java.io.IOException: Keystore was tampered with, or password was incorrect")
		os.Exit(1)
	}
	// ... -signedjar <signed> <rebuilt> <alias>
	var signed, rebuilt string
	for i, a := range args {
		if a == "-signedjar" && i+2 < len(args) {
			signed, rebuilt = args[i+1], args[i+2]
		}
	}
	if signed == "" {
		return fmt.Errorf("-signedjar missing in %v", args)
	}
	data, err := os.ReadFile(rebuilt)
	if err != nil {
		return err
	}
	fmt.Println("   adding: META-INF/MANIFEST.MF")
	if os.Getenv("FAKE_JARSIGNER_MODE") == "partial" {
		os.WriteFile(signed, data[:len(data)/2], 0o644)
		fmt.Fprintln(os.Stderr, "jarsigner error: java.util.zip.ZipException: invalid entry compressed size")
		os.Exit(1)
	}
	fmt.Println("jar signed.")
	return os.WriteFile(signed, data, 0o644)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// fakeConfig points both tools at the test binary.
func fakeConfig(env ...string) config.Config {
	conf := config.Default()
	helper := []string{"-test.run=TestHelperProcess", "--"}
	env = append([]string{"GO_WANT_HELPER_PROCESS=1"}, env...)
	conf.Apktool = config.Tool{Command: os.Args[0], Args: append(append([]string{}, helper...), "apktool"), Env: env}
	conf.Jarsigner = config.Tool{Command: os.Args[0], Args: append(append([]string{}, helper...), "jarsigner"), Env: env}
	conf.Timeouts = config.Timeouts{Decompile: 60, Build: 60, Sign: 60}
	return conf
}

// writeTestAPK writes an archive of roughly 5MB with a text manifest,
// a resource table and resources of assorted sizes.
func writeTestAPK(t *testing.T, path string) map[string][]byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(1))
	big := make([]byte, 5<<20)
	rnd.Read(big)
	entries := map[string][]byte{
		"AndroidManifest.xml":          []byte(originalManifest),
		"classes.dex":                  []byte("dex\n035\x00"),
		"resources.arsc":               {0x02, 0x00, 0x0c, 0x00, 0x10, 0x20, 0x30},
		"res/layout/activity_main.xml": {0x03, 0x00, 0x08, 0x00},
		"res/drawable-xxhdpi/a.png":    bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 1024),
		"res/raw/blob.bin":             big,
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return entries
}

func newMemoryLogger() (*memory.Handler, log.Interface) {
	h := memory.New()
	return h, &log.Logger{Handler: h, Level: log.DebugLevel}
}

func setup(t *testing.T) (src, out string, entries map[string][]byte) {
	t.Helper()
	tmp := t.TempDir()
	src = filepath.Join(tmp, "app.apk")
	entries = writeTestAPK(t, src)
	return src, filepath.Join(tmp, "out"), entries
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range des {
		names = append(names, d.Name())
	}
	return names
}

func TestRunSuccess(t *testing.T) {
	src, out, entries := setup(t)
	_, l := newMemoryLogger()

	name, err := Run(stdctx.Background(), fakeConfig(), l, Request{
		Source:    src,
		Package:   "com.cloned.testapp",
		OutputDir: out,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if name != "signed_app.apk" {
		t.Errorf("Run() = %q, want signed_app.apk", name)
	}
	if got := listDir(t, out); len(got) != 1 || got[0] != name {
		t.Errorf("output directory holds %v, want only %s", got, name)
	}

	zr, err := zip.OpenReader(filepath.Join(out, name))
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	rebuilt := make(map[string][]byte)
	for _, f := range zr.File {
		data, err := readEntry(f)
		if err != nil {
			t.Fatal(err)
		}
		rebuilt[f.Name] = data
	}

	t.Run("manifest renamed", func(t *testing.T) {
		before := manifestAttrs(t, entries["AndroidManifest.xml"])
		after := manifestAttrs(t, rebuilt["AndroidManifest.xml"])
		if after["package"] != "com.cloned.testapp" {
			t.Errorf("package = %q, want com.cloned.testapp", after["package"])
		}
		delete(before, "package")
		delete(after, "package")
		if fmt.Sprint(before) != fmt.Sprint(after) {
			t.Errorf("manifest attributes changed:\nbefore %v\nafter  %v", before, after)
		}
	})

	t.Run("resources byte-identical", func(t *testing.T) {
		for name, want := range entries {
			if name != "resources.arsc" && !strings.HasPrefix(name, "res/") {
				continue
			}
			if !bytes.Equal(rebuilt[name], want) {
				t.Errorf("%s differs from the original archive", name)
			}
		}
	})
}

func manifestAttrs(t *testing.T, data []byte) map[string]string {
	t.Helper()
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	root := xmlquery.FindOne(doc, "/manifest")
	if root == nil {
		t.Fatalf("no <manifest> in %s", data)
	}
	attrs := make(map[string]string)
	for _, a := range root.Attr {
		attrs[a.Name.Space+":"+a.Name.Local] = a.Value
	}
	attrs["package"] = root.SelectAttr("package")
	delete(attrs, ":package")
	return attrs
}

func TestRunMissingManifest(t *testing.T) {
	src, out, _ := setup(t)
	_, l := newMemoryLogger()

	_, err := Run(stdctx.Background(), fakeConfig("FAKE_APKTOOL_MODE=no-manifest"), l, Request{
		Source: src, Package: "com.cloned.testapp", OutputDir: out,
	})
	f := pipe.AsFailure(err)
	if f == nil || f.Kind != pipe.MissingManifest {
		t.Fatalf("Run() error = %v, want MissingManifest", err)
	}
	if f.Stage != "manifest" {
		t.Errorf("Stage = %q, want manifest", f.Stage)
	}
	assertNoIntermediates(t, out)
}

func TestRunBuildTimeout(t *testing.T) {
	src, out, _ := setup(t)
	_, l := newMemoryLogger()
	pidFile := filepath.Join(t.TempDir(), "apktool.pid")

	conf := fakeConfig("FAKE_APKTOOL_MODE=hang-build", "FAKE_PIDFILE="+pidFile)
	conf.Timeouts.Build = 1

	start := time.Now()
	_, err := Run(stdctx.Background(), conf, l, Request{
		Source: src, Package: "com.cloned.testapp", OutputDir: out,
	})
	elapsed := time.Since(start)

	f := pipe.AsFailure(err)
	if f == nil || f.Kind != pipe.Timeout {
		t.Fatalf("Run() error = %v, want Timeout", err)
	}
	if f.Stage != "build" {
		t.Errorf("Stage = %q, want build", f.Stage)
	}
	if !strings.Contains(f.Message, "process timed out after 1s") {
		t.Errorf("Message = %q", f.Message)
	}
	if elapsed > 30*time.Second {
		t.Errorf("Run() took %s after a 1s build timeout", elapsed)
	}
	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("fake apktool never started building: %v", err)
	}
	pid, _ := strconv.Atoi(string(data))
	assertDead(t, pid)
	assertNoIntermediates(t, out)
}

func TestRunDecompileOutOfMemory(t *testing.T) {
	src, out, _ := setup(t)
	h, l := newMemoryLogger()

	_, err := Run(stdctx.Background(), fakeConfig("FAKE_APKTOOL_MODE=oom"), l, Request{
		Source: src, Package: "com.cloned.testapp", OutputDir: out,
	})
	f := pipe.AsFailure(err)
	if f == nil || f.Kind != pipe.ExternalToolError {
		t.Fatalf("Run() error = %v, want ExternalToolError", err)
	}
	if f.Stage != "decompile" {
		t.Errorf("Stage = %q, want decompile", f.Stage)
	}
	if !strings.Contains(f.Output, `java.lang.OutOfMemoryError: Java heap space`) {
		t.Errorf("Output = %q, want the tool's stderr verbatim", f.Output)
	}
	var logged bool
	for _, e := range h.Entries {
		if strings.Contains(e.Message, "OutOfMemoryError") {
			logged = true
		}
	}
	if !logged {
		t.Error("tool stderr was not written to the run log")
	}
	assertNoIntermediates(t, out)
}

func TestRunSignFailure(t *testing.T) {
	src, out, _ := setup(t)
	h, l := newMemoryLogger()

	_, err := Run(stdctx.Background(), fakeConfig("FAKE_JARSIGNER_MODE=bad-password"), l, Request{
		Source: src, Package: "com.cloned.testapp", OutputDir: out,
	})
	f := pipe.AsFailure(err)
	if f == nil || f.Kind != pipe.ExternalToolError || f.Stage != "sign" {
		t.Fatalf("Run() error = %v, want sign ExternalToolError", err)
	}
	assertNoIntermediates(t, out)
	for _, e := range h.Entries {
		if strings.Contains(e.Message, "-storepass android") {
			t.Errorf("keystore password logged: %q", e.Message)
		}
	}
}

func TestRunFailureKeepsEarlierSignedAPK(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		stage string
	}{
		{"decompile out of memory", "FAKE_APKTOOL_MODE=oom", "decompile"},
		{"partial signing output", "FAKE_JARSIGNER_MODE=partial", "sign"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, out, _ := setup(t)
			_, l := newMemoryLogger()
			if err := os.MkdirAll(out, 0o755); err != nil {
				t.Fatal(err)
			}
			earlier := filepath.Join(out, "signed_app.apk")
			if err := os.WriteFile(earlier, []byte("earlier run"), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := Run(stdctx.Background(), fakeConfig(tt.env), l, Request{
				Source: src, Package: "com.cloned.testapp", OutputDir: out,
			})
			f := pipe.AsFailure(err)
			if f == nil || f.Stage != tt.stage {
				t.Fatalf("Run() error = %v, want a %s failure", err, tt.stage)
			}
			data, err := os.ReadFile(earlier)
			if err != nil {
				t.Fatalf("earlier signed APK was removed: %v", err)
			}
			if string(data) != "earlier run" {
				t.Errorf("earlier signed APK = %q, want it untouched", data)
			}
			if got := listDir(t, out); len(got) != 1 || got[0] != "signed_app.apk" {
				t.Errorf("output directory holds %v, want only signed_app.apk", got)
			}
		})
	}
}

func TestRunRejectsBadRequests(t *testing.T) {
	src, out, _ := setup(t)
	notAPK := filepath.Join(filepath.Dir(src), "notes.apk")
	if err := os.WriteFile(notAPK, []byte("these are not the bytes you are looking for"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		req  Request
		kind pipe.Kind
	}{
		{"invalid package", Request{Source: src, Package: "testapp", OutputDir: out}, pipe.InvalidRequest},
		{"empty package", Request{Source: src, Package: "", OutputDir: out}, pipe.InvalidRequest},
		{"no output dir", Request{Source: src, Package: "com.a.b"}, pipe.InvalidRequest},
		{"missing source", Request{Source: filepath.Join(out, "nope.apk"), Package: "com.a.b", OutputDir: out}, pipe.InputNotFound},
		{"source is a directory", Request{Source: filepath.Dir(src), Package: "com.a.b", OutputDir: out}, pipe.InputNotFound},
		{"source is not an archive", Request{Source: notAPK, Package: "com.a.b", OutputDir: out}, pipe.ArchiveReadError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, l := newMemoryLogger()
			_, err := Run(stdctx.Background(), fakeConfig(), l, tt.req)
			if !pipe.IsKind(err, tt.kind) {
				t.Errorf("Run() error = %v, want %s", err, tt.kind)
			}
		})
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("output directory created for a rejected request")
	}
}

func TestRunRelativePaths(t *testing.T) {
	src, out, _ := setup(t)
	t.Chdir(filepath.Dir(src))
	_, l := newMemoryLogger()

	name, err := Run(stdctx.Background(), fakeConfig(), l, Request{
		Source: "app.apk", Package: "com.cloned.relative", OutputDir: filepath.Base(out),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, name)); err != nil {
		t.Errorf("signed APK not in output directory: %v", err)
	}
}

type recorder struct {
	mu        sync.Mutex
	started   int
	completed []string
	stages    []string
	failed    []string
}

func (r *recorder) IncRunsStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recorder) IncRunsCompleted(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, status)
}

func (r *recorder) ObserveStageDuration(stage string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recorder) IncStageFailed(stage, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, stage+"/"+kind)
}

func TestRunMetrics(t *testing.T) {
	src, out, _ := setup(t)
	_, l := newMemoryLogger()
	rec := &recorder{}

	if _, err := Run(stdctx.Background(), fakeConfig(), l, Request{
		Source: src, Package: "com.cloned.testapp", OutputDir: out,
	}, WithMetrics(rec)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := Run(stdctx.Background(), fakeConfig("FAKE_APKTOOL_MODE=no-manifest"), l, Request{
		Source: src, Package: "com.cloned.testapp", OutputDir: out,
	}, WithMetrics(rec)); err == nil {
		t.Fatal("Run() succeeded without a manifest")
	}

	if rec.started != 2 {
		t.Errorf("started = %d, want 2", rec.started)
	}
	if got := strings.Join(rec.completed, ","); got != "success,MissingManifest" {
		t.Errorf("completed = %s", got)
	}
	if got := strings.Join(rec.stages, ","); got != "decompile,manifest,resources,build,sign,decompile,manifest" {
		t.Errorf("stages = %s", got)
	}
	if got := strings.Join(rec.failed, ","); got != "manifest/MissingManifest" {
		t.Errorf("failed = %s", got)
	}
}

func TestConcurrentRuns(t *testing.T) {
	src, out, _ := setup(t)
	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, l := newMemoryLogger()
			_, errs[i] = Run(stdctx.Background(), fakeConfig(), l, Request{
				Source:    src,
				Package:   fmt.Sprintf("com.cloned.app%d", i),
				OutputDir: filepath.Join(out, strconv.Itoa(i)),
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("run %d: %v", i, err)
		}
	}
}

func assertNoIntermediates(t *testing.T, out string) {
	t.Helper()
	for _, name := range []string{config.DecompiledDirName, config.RebuiltName, "signed_app.apk"} {
		if _, err := os.Lstat(filepath.Join(out, name)); err == nil {
			t.Errorf("%s left behind in output directory", name)
		}
	}
	des, _ := os.ReadDir(out)
	for _, d := range des {
		if strings.HasSuffix(d.Name(), ".part") {
			t.Errorf("partial signing output %s left behind", d.Name())
		}
	}
}
