/*
Package object links Go relocatable object files into the running process with [goloader].

It is the Go counterpart of package dynlib: [Load] maps code, [Resolve] binds a function
to a declared Go func type, [Module.Release] unmaps it, and failures use the same
dynlib error values.

# Notes

 1. goloader builds against the internals of the Go SDK. Run `compile prepare` once before building
    anything importing this package, and `compile clean` to restore the SDK.
 2. Names are package qualified, "sample.Run". A name without a package means "main".
 3. Linked code may only use symbols of the host executable or of Modules already linked into the same [Symbols].
 4. A func resolved from a Module must not be called after Release.

[goloader]: https://github.com/pkujhd/goloader
*/
package object
