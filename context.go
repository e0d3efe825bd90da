package dynlib

import (
	"context"

	"go.uber.org/zap"
)

type loadResult struct {
	m   *Module
	err error
}

// LoadContext is Load bounded by ctx. The platform loader cannot be
// interrupted, so when ctx ends first the load keeps running on its
// goroutine and the Module it produces is released there.
func LoadContext(ctx context.Context, path string, opts ...Option) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	done := make(chan loadResult, 1)
	go func() {
		m, err := Load(path, opts...)
		done <- loadResult{m, err}
	}()
	select {
	case r := <-done:
		return r.m, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			if r.m == nil {
				return
			}
			if err := r.m.Release(); err != nil {
				r.m.log.Warn("release abandoned module", zap.String("path", path), zap.Error(err))
				return
			}
			r.m.log.Debug("released abandoned module", zap.String("path", path))
		}()
		return nil, &LoadError{Path: path, Err: ctx.Err()}
	}
}
