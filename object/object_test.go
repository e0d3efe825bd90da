package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZenLiuCN/dynlib"
	"github.com/ZenLiuCN/fn"
	"github.com/davecgh/go-spew/spew"
)

const (
	pkgSample = "sample"
	symRun    = "sample.Run"
	symAdd    = "sample.Add"
)

type (
	typeRun = func() string
	typeAdd = func(a, b int) int
)

var (
	debugging = false
	sym       = fn.Panic1(NewSymbols())
	// moduleFunc is testdata/sample compiled to an object file, empty when the sdk cannot compile it.
	moduleFunc string
	compileErr error
)

func TestMain(m *testing.M) {
	dir := fn.Panic1(os.MkdirTemp("", "object"))
	moduleFunc = filepath.Join(dir, "sample.o")
	if compileErr = Compile(debugging, pkgSample, moduleFunc, []string{filepath.Join("testdata", "sample", "run.go")}); compileErr != nil {
		moduleFunc = ""
	}
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func ready(t *testing.T) *Module {
	t.Helper()
	if moduleFunc == "" {
		t.Skipf("sample object unavailable: %v", compileErr)
	}
	m, err := Load(sym, moduleFunc, pkgSample)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLoadMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.o")
	m, err := Load(sym, missing, pkgSample)
	if m != nil || !errors.Is(err, dynlib.ErrLoad) {
		t.Fatalf("Load(missing) = %v, %v", m, err)
	}
	_, err = LoadMany(sym, []string{missing}, nil)
	if !errors.Is(err, dynlib.ErrLoad) {
		t.Errorf("LoadMany(mismatched) = %v", err)
	}
}

func TestLoad(t *testing.T) {
	m := ready(t)
	defer func() { fn.Panic(m.Release()) }()
	run, err := Resolve[typeRun](m, symRun)
	if err != nil {
		t.Fatal(err)
	}
	if got := run(); !strings.HasPrefix(got, "sample ") {
		t.Errorf("Run() = %q", got)
	}
	if got := MustResolve[typeAdd](m, symAdd)(10, 25); got != 35 {
		t.Errorf("Add(10, 25) = %d", got)
	}
	if _, err = m.Lookup("sample.Missing"); !errors.Is(err, dynlib.ErrSymbolNotFound) {
		t.Errorf("Lookup(missing) = %v", err)
	}
	if _, err = Resolve[string](m, symRun); !errors.Is(err, dynlib.ErrSignature) {
		t.Errorf("Resolve[string] = %v", err)
	}
	if debugging {
		spew.Dump(fn.Panic1(m.Exports()))
	}
}

func TestRelease(t *testing.T) {
	m := ready(t)
	fn.Panic(m.Release())
	if m.State() != dynlib.Released {
		t.Fatalf("state = %s", m.State())
	}
	if _, err := Resolve[typeRun](m, symRun); !errors.Is(err, dynlib.ErrInvalidHandle) {
		t.Errorf("Resolve after release = %v", err)
	}
	if err := m.Release(); !errors.Is(err, dynlib.ErrInvalidHandle) {
		t.Errorf("second Release = %v", err)
	}
}

func TestSerialize(t *testing.T) {
	m := ready(t)
	b := new(bytes.Buffer)
	fn.Panic(m.Serialize(b))
	fn.Panic(m.Release())
	m2, err := LoadSerialized(sym, b)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { fn.Panic(m2.Release()) }()
	if got := MustResolve[typeAdd](m2, symAdd)(1, 2); got != 3 {
		t.Errorf("Add(1, 2) = %d", got)
	}
}

func TestRoutines(t *testing.T) {
	m := ready(t)
	defer func() { fn.Panic(m.Release()) }()
	var w sync.WaitGroup
	for i := 0; i < 10; i++ {
		w.Add(1)
		go func(i int) {
			defer w.Done()
			if got := MustResolve[typeAdd](m, symAdd)(i, i); got != 2*i {
				t.Errorf("Add(%d, %d) = %d", i, i, got)
			}
		}(i)
	}
	w.Wait()
}

func TestQualify(t *testing.T) {
	for in, want := range map[string]string{"Run": "main.Run", "sample.Run": "sample.Run"} {
		if got := qualify(in); got != want {
			t.Errorf("qualify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnescapeModule(t *testing.T) {
	if got := unescapeModule("github.com/!zen!liu!c!n/fn@v0.1.33"); got != "github.com/ZenLiuCN/fn@v0.1.33" {
		t.Errorf("unescapeModule() = %q", got)
	}
}

func TestFailedLoadKeepsSymbols(t *testing.T) {
	s := Symbols{}
	missing := filepath.Join(t.TempDir(), "missing.o")
	if _, err := Load(s, missing, pkgSample, WithTypes(time.Duration(0)), WithLogger(nil)); !errors.Is(err, dynlib.ErrLoad) {
		t.Fatalf("Load(missing) = %v", err)
	}
	if _, err := LoadMany(s, []string{missing}, nil, WithTypes(time.Duration(0))); !errors.Is(err, dynlib.ErrLoad) {
		t.Fatalf("LoadMany(mismatched) = %v", err)
	}
	if _, err := LoadSerialized(s, strings.NewReader("garbage"), WithTypes(time.Duration(0))); !errors.Is(err, dynlib.ErrLoad) {
		t.Fatalf("LoadSerialized(garbage) = %v", err)
	}
	if len(s) != 0 {
		t.Errorf("failed loads registered %d symbols: %v", len(s), s.Names())
	}
}

func TestCopyTree(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "copy")
	fn.Panic(os.MkdirAll(filepath.Join(src, "a", "b"), 0o755))
	fn.Panic(os.WriteFile(filepath.Join(src, "a", "b", "run.sh"), []byte("#!/bin/sh\n"), 0o755))
	fn.Panic(os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))
	if err := copyTree(src, dst); err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{"top.txt": "top", filepath.Join("a", "b", "run.sh"): "#!/bin/sh\n"} {
		b, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != want {
			t.Errorf("%s = %q, want %q", name, b, want)
		}
	}
	if runtime.GOOS != "windows" {
		fi := fn.Panic1(os.Stat(filepath.Join(dst, "a", "b", "run.sh")))
		if fi.Mode().Perm() != 0o755 {
			t.Errorf("run.sh mode = %v", fi.Mode())
		}
	}
}

func TestInfoString(t *testing.T) {
	i := Info{File: "sample.o", PkgPath: "sample", Imports: map[string]string{
		"strings":                "",
		"github.com/ZenLiuCN/fn": "v0.1.33",
		"fmt":                    "",
	}}
	want := "sample.o (sample)\n\tfmt\n\tgithub.com/ZenLiuCN/fn@v0.1.33\n\tstrings\n"
	if got := i.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (Infos{&i, &i}).String(); got != want+want {
		t.Errorf("Infos.String() = %q", got)
	}
}
