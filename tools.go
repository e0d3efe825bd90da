package dynlib

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// LibraryName returns the platform file name of a shared library called base,
// such as libbase.so, libbase.dylib or base.dll.
func LibraryName(base string) string {
	switch runtime.GOOS {
	case "windows":
		return base + ".dll"
	case "darwin":
		return "lib" + base + ".dylib"
	default:
		return "lib" + base + ".so"
	}
}

// Build compiles src into the shared library out, creating its directory.
//
// A .c source is built with the C compiler named by $CC (default cc).
// Anything else is treated as a Go package built with -buildmode=c-shared,
// whose //export functions become the library's entry points.
func Build(debug bool, src, out string) (err error) {
	if out, err = filepath.Abs(out); err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return
	}
	var cmd *exec.Cmd
	if strings.HasSuffix(src, ".c") {
		cc := os.Getenv("CC")
		if cc == "" {
			cc = "cc"
		}
		args := []string{"-shared", "-o", out, src}
		if runtime.GOOS != "windows" {
			args = append([]string{"-fPIC"}, args...)
		}
		cmd = exec.Command(cc, args...)
	} else {
		cmd = exec.Command("go", "build", "-buildmode=c-shared", "-o", out, src)
	}
	if debug {
		Logger().Info("execute", zap.Strings("args", cmd.Args))
	}
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("build %s: %w\n%s", src, err, b)
	}
	if debug && len(b) > 0 {
		Logger().Info("build output", zap.ByteString("output", b))
	}
	return nil
}
