package flags

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Static is an in-memory provider, handy for local runs and tests.
type Static struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewStatic seeds a provider with initial flag states.
func NewStatic(initial map[string]bool) *Static {
	s := &Static{flags: make(map[string]bool, len(initial))}
	for k, v := range initial {
		s.flags[k] = v
	}
	return s
}

// ParseStatic reads "name=bool" pairs such as those given on the command
// line. A bare name means enabled.
func ParseStatic(pairs []string) (*Static, error) {
	initial := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		name, raw, hasValue := strings.Cut(strings.TrimSpace(p), "=")
		if name == "" {
			return nil, fmt.Errorf("flags: bad flag pair %q", p)
		}
		enabled := true
		if hasValue {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("flags: bad flag pair %q: %w", p, err)
			}
			enabled = v
		}
		initial[name] = enabled
	}
	return NewStatic(initial), nil
}

// IsEnabled reports the stored state; unknown flags are disabled.
func (s *Static) IsEnabled(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name], nil
}

func (s *Static) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if name == "" {
		return ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = enabled
	return nil
}

func (s *Static) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[name]; !ok {
		return ErrFlagMissing
	}
	delete(s.flags, name)
	return nil
}

// Names lists known flags in sorted order.
func (s *Static) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.flags))
	for k := range s.flags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
