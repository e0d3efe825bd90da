//go:build !(darwin || freebsd || linux || windows)

package dynlib

type unsupported struct{}

var host platform = unsupported{}

func (unsupported) open(string, loadMode) (uintptr, error)  { return 0, ErrUnsupported }
func (unsupported) lookup(uintptr, string) (uintptr, error) { return 0, ErrUnsupported }
func (unsupported) close(uintptr) error                     { return ErrUnsupported }

func bind(any, uintptr) {
	panic(ErrUnsupported)
}
