//go:build windows

package dynlib

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

// dll ignores loadMode: LoadLibrary always resolves imports eagerly and has no global scope.
type dll struct{}

var host platform = dll{}

func (dll) open(path string, _ loadMode) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	if err != nil {
		return 0, err
	}
	return uintptr(handle), nil
}

func (dll) lookup(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}

func (dll) close(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}

func bind(fptr any, addr uintptr) {
	purego.RegisterFunc(fptr, addr)
}
