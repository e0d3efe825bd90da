//go:build darwin || freebsd || linux

package dynlib

import "github.com/ebitengine/purego"

type dlfcn struct{}

var host platform = dlfcn{}

func (dlfcn) open(path string, mode loadMode) (uintptr, error) {
	flags := purego.RTLD_NOW
	if mode.lazy {
		flags = purego.RTLD_LAZY
	}
	if mode.global {
		flags |= purego.RTLD_GLOBAL
	} else {
		flags |= purego.RTLD_LOCAL
	}
	return purego.Dlopen(path, flags)
}

func (dlfcn) lookup(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func (dlfcn) close(handle uintptr) error {
	return purego.Dlclose(handle)
}

func bind(fptr any, addr uintptr) {
	purego.RegisterFunc(fptr, addr)
}
