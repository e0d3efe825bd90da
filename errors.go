package dynlib

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad matches every *LoadError.
	ErrLoad = errors.New("load module")
	// ErrSymbolNotFound matches every *SymbolNotFoundError.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrInvalidHandle matches every *InvalidHandleError.
	ErrInvalidHandle = errors.New("module released")
	// ErrUnload matches every *UnloadError.
	ErrUnload = errors.New("unload module")
	// ErrSignature matches every *SignatureError.
	ErrSignature = errors.New("invalid signature")
	// ErrUnsupported occurs when the host platform has no dynamic loader backend.
	ErrUnsupported = errors.New("dynamic loading unsupported on this platform")
	// ErrEmptyPath occurs when Load is called with an empty path.
	ErrEmptyPath = errors.New("empty module path")
	// ErrUnknownFormat occurs when Exports meets a file that is not ELF, Mach-O or PE.
	ErrUnknownFormat = errors.New("unrecognised library format")
)

// LoadError reports a module that could not be mapped into the process.
// Err carries the platform diagnostic when the platform provides one.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Path, e.Err)
}
func (e *LoadError) Unwrap() error        { return e.Err }
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// SymbolNotFoundError reports an entry point absent from the module's export table.
type SymbolNotFoundError struct {
	Path string
	Name string
	Err  error
}

func (e *SymbolNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("symbol %q not found in %q", e.Name, e.Path)
	}
	return fmt.Sprintf("symbol %q not found in %q: %v", e.Name, e.Path, e.Err)
}
func (e *SymbolNotFoundError) Unwrap() error        { return e.Err }
func (e *SymbolNotFoundError) Is(target error) bool { return target == ErrSymbolNotFound }

// InvalidHandleError reports an operation attempted on a released module.
type InvalidHandleError struct {
	Path string
	Op   string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("%s %q: module already released", e.Op, e.Path)
}
func (e *InvalidHandleError) Is(target error) bool { return target == ErrInvalidHandle }

// UnloadError reports a platform failure while unmapping a module.
// The module is released even when this error is returned.
type UnloadError struct {
	Path string
	Err  error
}

func (e *UnloadError) Error() string {
	return fmt.Sprintf("unload %q: %v", e.Path, e.Err)
}
func (e *UnloadError) Unwrap() error        { return e.Err }
func (e *UnloadError) Is(target error) bool { return target == ErrUnload }

// SignatureError reports a declared signature that cannot be bound to an address.
type SignatureError struct {
	Name   string
	Type   string
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("bind %q as %s: %s", e.Name, e.Type, e.Reason)
}
func (e *SignatureError) Is(target error) bool { return target == ErrSignature }
