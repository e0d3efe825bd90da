package dynlib

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

type (
	//Sym is the raw address of an exported entry point.
	Sym uintptr
	//State of a Module.
	State int32
	//Option configures Load.
	Option  func(*options)
	options struct {
		mode   loadMode
		logger *zap.Logger
	}
	//Module is a dynamically loadable code unit mapped into the process.
	//
	//Use Steps:
	//
	//	1. Load to map the unit and obtain the Module.
	//	2. Resolve entry points with a declared func type.
	//	3. Call [Module.Release] once to unmap it.
	//
	//Note:
	//
	//	1. Every func resolved from a Module is invalid after Release; nothing tracks this.
	//	2. Lookup and Resolve are safe between goroutines. Release is serialised.
	Module struct {
		path   string
		mu     sync.RWMutex
		handle uintptr
		state  State
		log    *zap.Logger
	}
)

const (
	Loaded State = iota + 1
	Released
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// WithLazy defers function relocation until first call (RTLD_LAZY). Ignored on Windows.
func WithLazy() Option {
	return func(o *options) { o.mode.lazy = true }
}

// WithGlobal makes the module's symbols available to modules loaded later (RTLD_GLOBAL). Ignored on Windows.
func WithGlobal() Option {
	return func(o *options) { o.mode.global = true }
}

// WithLogger sets the logger of the Module, the package Logger by default. A nil logger discards.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

// Load maps the code unit at path into the process.
//
// A path that exists on disk is loaded by its absolute path. Any other
// name is handed to the platform as is, so library search names such as
// "libc.so.6" still work. Loading runs the unit's static initializers.
// Each call returns an independent Module, even for a path already loaded.
func Load(path string, opts ...Option) (*Module, error) {
	o := options{logger: Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	if path == "" {
		return nil, &LoadError{Path: path, Err: ErrEmptyPath}
	}
	target := path
	if _, err := os.Stat(path); err == nil {
		if abs, err := filepath.Abs(path); err == nil {
			target = abs
		}
	}
	handle, err := host.open(target, o.mode)
	if err != nil {
		o.logger.Debug("load module failed", zap.String("path", target), zap.Error(err))
		return nil, &LoadError{Path: path, Err: err}
	}
	if handle == 0 {
		return nil, &LoadError{Path: path, Err: ErrUnsupported}
	}
	o.logger.Debug("module loaded", zap.String("path", target), zap.Uintptr("handle", handle))
	return &Module{path: path, handle: handle, state: Loaded, log: o.logger}, nil
}

// Path returns the path the module was loaded from.
func (m *Module) Path() string {
	return m.path
}

// State reports whether the module is Loaded or Released.
func (m *Module) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Lookup returns the raw address of the exported entry point name.
func (m *Module) Lookup(name string) (Sym, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Loaded {
		return 0, &InvalidHandleError{Path: m.path, Op: "lookup"}
	}
	if name == "" {
		return 0, &SymbolNotFoundError{Path: m.path, Name: name}
	}
	addr, err := host.lookup(m.handle, name)
	if err != nil || addr == 0 {
		return 0, &SymbolNotFoundError{Path: m.path, Name: name, Err: err}
	}
	m.log.Debug("found symbol", zap.String("path", m.path), zap.String("symbol", name), zap.Uintptr("addr", addr))
	return Sym(addr), nil
}

// Release unmaps the module. The module is Released after the call even when
// the platform reports an *UnloadError. Releasing twice returns an
// *InvalidHandleError.
func (m *Module) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Loaded {
		return &InvalidHandleError{Path: m.path, Op: "release"}
	}
	handle := m.handle
	m.handle = 0
	m.state = Released
	if err := host.close(handle); err != nil {
		m.log.Warn("unload module failed", zap.String("path", m.path), zap.Error(err))
		return &UnloadError{Path: m.path, Err: err}
	}
	m.log.Debug("module released", zap.String("path", m.path))
	return nil
}
