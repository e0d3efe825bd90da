package dynlib

import (
	"debug/elf"
	"debug/macho"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"
	"go.uber.org/zap"
)

// Exports lists the exported function names of the native library at path,
// read from the ELF dynamic symbol table, the Mach-O external symbols of
// __TEXT,__text or the PE export directory. The library is not loaded.
func Exports(path string) ([]string, error) {
	set := make(map[string]struct{})
	var err error
	switch {
	case tryELF(path, set, &err):
	case tryMachO(path, set, &err):
	case tryPE(path, set, &err):
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	names := fn.MapKeys(set)
	slices.Sort(names)
	return names, nil
}

// tryELF reports whether path is an ELF file; read errors go to *err.
func tryELF(path string, set map[string]struct{}, err *error) bool {
	f, e := elf.Open(path)
	if e != nil {
		return false
	}
	defer fn.IgnoreClose(f)()
	syms, e := f.DynamicSymbols()
	if e != nil {
		*err = e
		return true
	}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Section == elf.SHN_UNDEF {
			continue
		}
		if b := elf.ST_BIND(s.Info); b != elf.STB_GLOBAL && b != elf.STB_WEAK {
			continue
		}
		set[s.Name] = struct{}{}
	}
	return true
}

const machoExt = 0x01

// tryMachO reads thin and universal Mach-O files. Every slice of a universal
// file contributes its names.
func tryMachO(path string, set map[string]struct{}, err *error) bool {
	fat, e := macho.OpenFat(path)
	switch {
	case e == nil:
		defer fn.IgnoreClose(fat)()
		for _, a := range fat.Arches {
			machoSymbols(a.File, set)
		}
		return true
	case !errors.Is(e, macho.ErrNotFat):
		return false
	}
	f, e := macho.Open(path)
	if e != nil {
		return false
	}
	defer fn.IgnoreClose(f)()
	machoSymbols(f, set)
	return true
}

// machoSymbols keeps external symbols defined in the __TEXT,__text section.
func machoSymbols(f *macho.File, set map[string]struct{}) {
	if f.Symtab == nil {
		return
	}
	for _, s := range f.Symtab.Syms {
		if s.Type&machoExt == 0 || s.Sect == 0 || int(s.Sect) > len(f.Sections) {
			continue
		}
		if sec := f.Sections[s.Sect-1]; sec.Seg != "__TEXT" || sec.Name != "__text" {
			continue
		}
		set[strings.TrimPrefix(s.Name, "_")] = struct{}{}
	}
}

// tryPE reads the export directory of a PE image. A file without the MZ
// signature is not PE.
func tryPE(path string, set map[string]struct{}, err *error) bool {
	f, e := pe.New(path, &pe.Options{Logger: peLogger{}})
	if e != nil {
		return false
	}
	defer fn.IgnoreClose(f)()
	if e = f.Parse(); e != nil {
		if f.DOSHeader.Magic != pe.ImageDOSSignature {
			return false
		}
		*err = e
		return true
	}
	for _, x := range f.Export.Functions {
		if x.Name != "" {
			set[x.Name] = struct{}{}
		}
	}
	return true
}

// peLogger forwards the anomalies reported by the PE parser to the package Logger.
type peLogger struct{}

func (peLogger) Log(level pelog.Level, kv ...any) error {
	Logger().Debug("pe parser", zap.Stringer("level", level), zap.Any("fields", kv))
	return nil
}
