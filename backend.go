package dynlib

// loadMode carries the platform-neutral load flags.
type loadMode struct {
	lazy   bool
	global bool
}

// platform is the host's native dynamic loading facility. Exactly one
// implementation is compiled in, selected by build constraints.
type platform interface {
	open(path string, mode loadMode) (uintptr, error)
	lookup(handle uintptr, name string) (uintptr, error)
	close(handle uintptr) error
}
