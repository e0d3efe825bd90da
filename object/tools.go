package object

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZenLiuCN/dynlib"
	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"github.com/pkujhd/goloader/obj"
	"go.uber.org/zap"
)

// copyTree copies the regular files and directories under src into dest, keeping their modes.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dest string, mode fs.FileMode) error {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(sf)()
	df, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err = io.Copy(df, sf); err != nil {
		_ = df.Close()
		return err
	}
	return df.Close()
}

// SDK directories: goloader compiles against a copy of cmd/internal placed at cmd/objfile.
func sdkDirs() (src, dst string) {
	root := os.Getenv("GOROOT")
	if root == "" {
		if b, err := exec.Command("go", "env", "GOROOT").Output(); err == nil {
			root = strings.TrimSpace(string(b))
		}
	}
	return filepath.Join(root, "src", "cmd", "internal"), filepath.Join(root, "src", "cmd", "objfile")
}

// PrepareSDK copies the internals of the Go SDK needed to build goloader. It does nothing when already prepared.
func PrepareSDK() (prepared bool, err error) {
	src, dst := sdkDirs()
	if _, err = os.Stat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	dynlib.Logger().Info("prepare go sdk", zap.String("from", src), zap.String("to", dst))
	return true, copyTree(src, dst)
}

// CleanSDK removes what PrepareSDK copied.
func CleanSDK() (removed bool, err error) {
	_, dst := sdkDirs()
	if _, err = os.Stat(dst); err != nil {
		return false, nil
	}
	dynlib.Logger().Info("clean go sdk", zap.String("dir", dst))
	return true, os.RemoveAll(dst)
}

// Compile compiles the Go sources of package pkg into the object file out.
func Compile(debug bool, pkg, out string, sources []string) (err error) {
	if len(sources) == 0 {
		return fmt.Errorf("missing sources")
	}
	if _, err = exec.LookPath("go"); err != nil {
		return fmt.Errorf("missing go sdk: %w", err)
	}
	cfg, err := os.CreateTemp("", "importcfg")
	if err != nil {
		return
	}
	defer func() {
		if !debug {
			_ = os.Remove(cfg.Name())
		}
	}()
	err = writeImportcfg(debug, cfg, sources)
	fn.IgnoreClose(cfg)()
	if err != nil {
		return
	}
	if pkg == "" {
		pkg = "main"
	}
	args := append([]string{"tool", "compile", "-importcfg", cfg.Name(), "-p", pkg, "-o", out}, sources...)
	cmd := exec.Command("go", args...)
	if debug {
		dynlib.Logger().Info("execute", zap.Strings("args", cmd.Args))
	}
	if b, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("compile %v: %w\n%s", sources, err, b)
	}
	return nil
}

// writeImportcfg writes the packagefile lines of the dependencies of sources and the standard library.
func writeImportcfg(debug bool, cfg io.Writer, sources []string) error {
	cmd := exec.Command("go", append([]string{"list", "-f", "{{join .Imports \" \"}}"}, sources...)...)
	b, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("inspect imports: %w", commandError(err))
	}
	deps := strings.Fields(string(b))
	if debug {
		dynlib.Logger().Info("dependencies", zap.Strings("imports", deps))
	}
	cmd = exec.Command("go", append([]string{"list", "-export", "-f", "{{if .Export}}packagefile {{.ImportPath}}={{.Export}}{{end}}", "std"}, deps...)...)
	if b, err = cmd.Output(); err != nil {
		return fmt.Errorf("inspect dependencies: %w", commandError(err))
	}
	_, err = cfg.Write(b)
	return err
}

func commandError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
	}
	return err
}

// Infos lists the imports of several object files.
type Infos []*Info

func (i Infos) String() string {
	var b strings.Builder
	for _, v := range i {
		v.write(&b)
	}
	return b.String()
}

// Info holds the imports of one object file, keyed by import path.
// A module dependency maps to its version, a standard package to "".
type Info struct {
	File    string
	PkgPath string
	Imports map[string]string
}

func (i Info) String() string {
	var b strings.Builder
	i.write(&b)
	return b.String()
}

// write prints the file header then one import per line, sorted, as path or path@version.
func (i Info) write(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", i.File, i.PkgPath)
	paths := fn.MapKeys(i.Imports)
	slices.Sort(paths)
	for _, p := range paths {
		if v := i.Imports[p]; v != "" {
			p += "@" + v
		}
		fmt.Fprintf(w, "\t%s\n", p)
	}
}

// ObjectImports resolves the packages imported by an object file, with versions for module dependencies.
func ObjectImports(file, pkgPath string) (*Info, error) {
	if pkgPath == "" {
		pkgPath = "main"
	}
	v := &obj.Pkg{Syms: make(map[string]*obj.ObjSymbol), File: file, PkgPath: pkgPath}
	if err := v.Symbols(); err != nil {
		return nil, err
	}
	info := parseInfo(v)
	info.File = file
	info.PkgPath = pkgPath
	return info, nil
}

// LinkerImports resolves the packages imported by every package of a serialized linker.
func LinkerImports(in io.Reader) (infos Infos, err error) {
	link, err := goloader.UnSerialize(in)
	if err != nil {
		return nil, err
	}
	for _, pkg := range link.Packages {
		info := parseInfo(pkg)
		info.File = pkg.File
		info.PkgPath = pkg.PkgPath
		infos = append(infos, info)
	}
	return
}

// versions of module dependencies are found in compilation unit file names like
// gofile..$GOPATH/pkg/mod/github.com/!zen!liu!c!n/fn@v0.1.33/fn.go
func parseInfo(v *obj.Pkg) (i *Info) {
	i = &Info{Imports: make(map[string]string)}
	for _, pkg := range v.ImportPkgs {
		i.Imports[pkg] = ""
	}
	k := fn.MapKeys(i.Imports)
	for _, f := range v.CUFiles {
		f = strings.TrimPrefix(f, "gofile..")
		if strings.HasPrefix(f, "$GOROOT") {
			continue
		}
		if strings.IndexByte(f, '!') >= 0 {
			f = unescapeModule(f)
		}
		for _, s := range k {
			x := strings.Index(f, s+"@")
			if x < 0 || i.Imports[s] != "" {
				continue
			}
			ver := f[x+len(s)+1:]
			if y := strings.IndexByte(ver, '/'); y >= 0 {
				ver = ver[:y]
			}
			i.Imports[s] = ver
		}
	}
	return
}

// unescapeModule reverses the module cache escaping of upper case letters as !x.
func unescapeModule(f string) string {
	v := strings.Builder{}
	x := false
	for _, c := range []byte(f) {
		switch {
		case c == '!':
			x = true
		case x:
			x = false
			v.WriteByte(c - 32)
		default:
			v.WriteByte(c)
		}
	}
	return v.String()
}

// Inspect lists the symbols defined in an object file.
func Inspect(file, pkg string) ([]string, error) {
	return goloader.Parse(file, pkg)
}
