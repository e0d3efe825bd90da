package dynlib

import (
	"fmt"
	"reflect"
)

// Resolve binds the entry point name of m to the func type T.
//
// T must describe the entry point's real C calling signature: the address
// carries no type information, so a wrong T is undefined behaviour when
// called, not an error here. The returned func must not be called after
// m is released.
func Resolve[T any](m *Module, name string) (fn T, err error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Func {
		return fn, &SignatureError{Name: name, Type: typ.String(), Reason: "not a func type"}
	}
	addr, err := m.Lookup(name)
	if err != nil {
		return fn, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = &SignatureError{Name: name, Type: typ.String(), Reason: fmt.Sprint(r)}
		}
	}()
	bind(&fn, uintptr(addr))
	return fn, nil
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](m *Module, name string) T {
	fn, err := Resolve[T](m, name)
	if err != nil {
		panic(err)
	}
	return fn
}

// Use resolves name as T and hands the result to f, together with any error.
func Use[T any](m *Module, name string) func(func(t T, err error)) {
	return func(f func(t T, err error)) {
		x, err := Resolve[T](m, name)
		f(x, err)
	}
}
