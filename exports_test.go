package dynlib

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ZenLiuCN/fn"
)

func TestExports(t *testing.T) {
	names, err := Exports(requireExample(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{symName, symAdd, symNext} {
		if !slices.Contains(names, want) {
			t.Errorf("Exports() = %v, missing %s", names, want)
		}
	}
	if slices.Contains(names, "counter") {
		t.Errorf("Exports() lists the static variable counter")
	}
	if !slices.IsSorted(names) {
		t.Errorf("Exports() not sorted")
	}
}

func TestExportsUnknownFormat(t *testing.T) {
	text := filepath.Join(t.TempDir(), "text.so")
	fn.Panic(os.WriteFile(text, []byte("not a shared library"), 0o644))
	if _, err := Exports(text); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Exports(text) = %v, want ErrUnknownFormat", err)
	}
}

// testdata/exports.dll is a PE32+ image whose export directory names Add, GetName and Next.
func TestExportsPE(t *testing.T) {
	names, err := Exports(filepath.Join("testdata", "exports.dll"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{symAdd, symName, symNext}; !slices.Equal(names, want) {
		t.Errorf("Exports(dll) = %v, want %v", names, want)
	}
}

func TestExportsTruncatedPE(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("testdata", "exports.dll"))
	if err != nil {
		t.Fatal(err)
	}
	// keep the MZ header, point e_lfanew past the end
	b = b[:0x100]
	binary.LittleEndian.PutUint32(b[0x3c:], 0x4000)
	dll := filepath.Join(t.TempDir(), "truncated.dll")
	fn.Panic(os.WriteFile(dll, b, 0o644))
	if _, err = Exports(dll); err == nil || errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Exports(truncated) = %v, want a PE parse error", err)
	}
}

// testdata/exports.fat is a universal Mach-O with one x86_64 slice defining
// _Add in __TEXT,__text, _counter in __DATA,__data, a local _local and an undefined _printf.
func TestExportsMachOFat(t *testing.T) {
	names, err := Exports(filepath.Join("testdata", "exports.fat"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{symAdd}; !slices.Equal(names, want) {
		t.Errorf("Exports(fat) = %v, want %v", names, want)
	}
}
