// Package flags checks feature flags through a short-lived cache in front of
// a flag-evaluation provider and a remote backend endpoint.
package flags

import (
	"context"
	"errors"
)

// DefaultFlag is the flag the demo frontend and backend check.
const DefaultFlag = "frontend-example-hello-world"

var (
	ErrNotReady    = errors.New("flags: provider not ready")
	ErrNonBoolean  = errors.New("flags: backend returned a non-boolean payload")
	ErrReadOnly    = errors.New("flags: provider is read-only")
	ErrFlagMissing = errors.New("flags: flag not found")
	ErrEmptyName   = errors.New("flags: flag name is empty")
)

// Evaluator answers whether a named flag is enabled.
type Evaluator interface {
	IsEnabled(ctx context.Context, name string) (bool, error)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(ctx context.Context, name string) (bool, error)

func (f EvaluatorFunc) IsEnabled(ctx context.Context, name string) (bool, error) {
	return f(ctx, name)
}

// Toggler is implemented by providers whose flags can be changed at runtime.
type Toggler interface {
	SetEnabled(ctx context.Context, name string, enabled bool) error
	Delete(ctx context.Context, name string) error
}

// Logger is the subset of gommon/echo logging the package writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Source tells where a flag value came from.
type Source int

const (
	SourceFrontend Source = iota
	SourceBackend
)

func (s Source) String() string {
	switch s {
	case SourceFrontend:
		return "frontend"
	case SourceBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Name    string
	Enabled bool
	Source  Source
	Cached  bool
}
