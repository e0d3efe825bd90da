package object

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/ZenLiuCN/dynlib"
	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"go.uber.org/zap"
)

type (
	//Symbols is a symbol table linked modules resolve their dependencies against.
	//
	//If two Modules share the same Symbols, the later one may depend on the earlier.
	Symbols map[string]uintptr
	//Option configures Load.
	Option  func(*options)
	options struct {
		types  []any
		sync   bool
		logger *zap.Logger
	}
	//Module is a set of Go object files linked into the running process.
	//
	//It follows the lifecycle of [dynlib.Module]: Loaded after Load, Released after
	//[Module.Release], with the same error values.
	Module struct {
		files  []string
		pkgs   []string
		syms   Symbols
		mu     sync.RWMutex
		state  dynlib.State
		linker *goloader.Linker
		module *goloader.CodeModule
		sync   bool
		log    *zap.Logger
	}
)

// NewSymbols creates Symbols seeded with the symbols of the host executable.
func NewSymbols() (Symbols, error) {
	s := make(Symbols)
	if err := goloader.RegSymbol(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Names lists the symbols in s.
func (s Symbols) Names() []string {
	return fn.MapKeys(s)
}

// WithTypes registers the types of values so linked code can use them, usually interfaces shared with the host.
func WithTypes(types ...any) Option {
	return func(o *options) { o.types = append(o.types, types...) }
}

// WithStdoutSync flushes os.Stdout before the code is unmapped on Release.
func WithStdoutSync() Option {
	return func(o *options) { o.sync = true }
}

// WithLogger sets the logger of the Module, dynlib.Logger by default. A nil logger discards.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

// Load links one object file or archive of package pkg against syms.
func Load(syms Symbols, file, pkg string, opts ...Option) (*Module, error) {
	return LoadMany(syms, []string{file}, []string{pkg}, opts...)
}

// LoadMany links several object files, pkgs[i] being the package path of files[i].
func LoadMany(syms Symbols, files, pkgs []string, opts ...Option) (*Module, error) {
	m, o := newModule(syms, opts)
	path := strings.Join(files, ",")
	if len(files) == 0 || len(files) != len(pkgs) {
		return nil, &dynlib.LoadError{Path: path, Err: fmt.Errorf("%d files for %d packages", len(files), len(pkgs))}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, &dynlib.LoadError{Path: path, Err: err}
		}
	}
	m.files = append(m.files, files...)
	m.pkgs = append(m.pkgs, pkgs...)
	linker, err := goloader.ReadObjs(files, pkgs)
	if err != nil {
		return nil, &dynlib.LoadError{Path: path, Err: err}
	}
	o.logger.Debug("create linker", zap.Strings("files", files), zap.Strings("packages", pkgs))
	return m.link(linker, o.types)
}

// LoadSerialized links a linker previously written by [Module.Serialize].
func LoadSerialized(syms Symbols, in io.Reader, opts ...Option) (*Module, error) {
	m, o := newModule(syms, opts)
	linker, err := goloader.UnSerialize(in)
	if err != nil {
		return nil, &dynlib.LoadError{Path: "<serialized>", Err: err}
	}
	for _, pkg := range linker.Packages {
		m.files = append(m.files, pkg.File)
		m.pkgs = append(m.pkgs, pkg.PkgPath)
	}
	return m.link(linker, o.types)
}

func newModule(syms Symbols, opts []Option) (*Module, options) {
	o := options{logger: dynlib.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Module{syms: syms, sync: o.sync, log: o.logger}, o
}

// link registers types into the symbol table once the linker is read, then loads the code.
func (m *Module) link(linker *goloader.Linker, types []any) (*Module, error) {
	if len(types) > 0 {
		m.log.Debug("register types", zap.Int("count", len(types)))
		goloader.RegTypes(m.syms, types...)
	}
	module, err := goloader.Load(linker, m.syms)
	if err != nil {
		if missing := goloader.UnresolvedSymbols(linker, m.syms); len(missing) > 0 {
			err = fmt.Errorf("%w; unresolved: %s", err, strings.Join(missing, ", "))
		}
		return nil, &dynlib.LoadError{Path: m.Path(), Err: err}
	}
	m.linker = linker
	m.module = module
	m.state = dynlib.Loaded
	m.log.Debug("module linked", zap.String("path", m.Path()), zap.Int("symbols", len(module.Syms)))
	return m, nil
}

// Path returns the linked files joined by commas.
func (m *Module) Path() string {
	return strings.Join(m.files, ",")
}

// Packages returns the package paths linked into m.
func (m *Module) Packages() []string {
	return m.pkgs
}

// State reports whether the module is dynlib.Loaded or dynlib.Released.
func (m *Module) State() dynlib.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// qualify prefixes names without a package with main.
func qualify(sym string) string {
	if strings.IndexByte(sym, '.') < 0 {
		return "main." + sym
	}
	return sym
}

// Lookup returns the code address of the package qualified function name.
func (m *Module) Lookup(name string) (dynlib.Sym, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != dynlib.Loaded {
		return 0, &dynlib.InvalidHandleError{Path: m.Path(), Op: "lookup"}
	}
	if name == "" {
		return 0, &dynlib.SymbolNotFoundError{Path: m.Path(), Name: name}
	}
	p, ok := m.module.Syms[qualify(name)]
	if !ok || p == 0 {
		return 0, &dynlib.SymbolNotFoundError{Path: m.Path(), Name: name}
	}
	m.log.Debug("found symbol", zap.String("symbol", name), zap.Uintptr("addr", p))
	return dynlib.Sym(p), nil
}

// Exports lists the symbols defined by the linked code.
func (m *Module) Exports() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != dynlib.Loaded {
		return nil, &dynlib.InvalidHandleError{Path: m.Path(), Op: "exports"}
	}
	return fn.MapKeys(m.module.Syms), nil
}

// Missing lists the symbols of the linker not present in the symbol table.
func (m *Module) Missing() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != dynlib.Loaded {
		return nil, &dynlib.InvalidHandleError{Path: m.Path(), Op: "missing"}
	}
	return goloader.UnresolvedSymbols(m.linker, m.syms), nil
}

// Serialize writes the linker in the format read by LoadSerialized.
func (m *Module) Serialize(out io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != dynlib.Loaded {
		return &dynlib.InvalidHandleError{Path: m.Path(), Op: "serialize"}
	}
	return goloader.Serialize(m.linker, out)
}

// Release unmaps the linked code. Releasing twice returns a *dynlib.InvalidHandleError.
func (m *Module) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != dynlib.Loaded {
		return &dynlib.InvalidHandleError{Path: m.Path(), Op: "release"}
	}
	m.state = dynlib.Released
	if m.sync {
		_ = os.Stdout.Sync()
	}
	m.module.Unload()
	m.module = nil
	m.linker = nil
	m.log.Debug("module released", zap.String("path", m.Path()))
	return nil
}

// Resolve binds the function name of m to the Go func type T. The declared
// type must match the function's Go signature.
func Resolve[T any](m *Module, name string) (x T, err error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Func {
		return x, &dynlib.SignatureError{Name: name, Type: typ.String(), Reason: "not a func type"}
	}
	addr, err := m.Lookup(name)
	if err != nil {
		return x, err
	}
	// a func value points to a word holding the code address
	code := new(uintptr)
	*code = uintptr(addr)
	x = *(*T)(unsafe.Pointer(&code))
	return x, nil
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](m *Module, name string) T {
	x, err := Resolve[T](m, name)
	if err != nil {
		panic(err)
	}
	return x
}
