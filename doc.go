/*
Package dynlib loads native shared libraries at runtime and calls their exported functions.

# Underwater

 1. Libraries are opened with the host loader: dlopen on Linux, macOS and FreeBSD (through [purego], no cgo needed), LoadLibrary on Windows.
 2. Entry points are bound to a Go func type declared by the caller. Nothing in a shared library describes its signatures,
    so the declared type is trusted as is.
 3. Every [Load] returns its own [Module]. The platform may share the mapping and count references, this package does not.

# Notes

 1. Loading runs the library's static initializers.
 2. A func resolved from a [Module] must not be called after [Module.Release].
 3. Releasing a Module twice reports an [InvalidHandleError].
 4. Load has no cancellation of its own. [LoadContext] stops waiting, not loading.

# Sample

	m, err := dynlib.Load("./libexample.so")
	if err != nil {
		return err
	}
	defer m.Release()
	add, err := dynlib.Resolve[func(a, b int32) int32](m, "Add")
	if err != nil {
		return err
	}
	println(add(10, 25))

Go relocatable objects are loaded by the sibling package object, built on [goloader].

[purego]: https://github.com/ebitengine/purego
[goloader]: https://github.com/pkujhd/goloader
*/
package dynlib
