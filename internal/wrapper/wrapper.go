// Package wrapper registers wrappers around host methods, identified by a
// dotted target path, and runs the resulting chain on invocation.
package wrapper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Kind is how a wrapper relates to the wrapped method.
type Kind string

const (
	// KindWrapper must call next.
	KindWrapper Kind = "WRAPPER"
	// KindMixed may or may not call next.
	KindMixed Kind = "MIXED"
	// KindOverride replaces the original method. One per target.
	KindOverride Kind = "OVERRIDE"
)

var (
	ErrInvalidVersion = errors.New("wrapper: invalid version")
	ErrInvalidTarget  = errors.New("wrapper: invalid target")
	ErrConflict       = errors.New("wrapper: override already registered")
	ErrNextNotCalled  = errors.New("wrapper: WRAPPER did not call next")
)

// Func is the signature of wrapped methods.
type Func func(args []any) (any, error)

// WrapFunc receives the next function in the chain.
type WrapFunc func(next Func, args []any) (any, error)

// Version is a four-part version number.
type Version [4]int

func ParseVersion(s string) (Version, error) {
	var v Version

	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) == 0 || len(parts) > 4 || parts[0] == "" {
		return v, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		v[i] = n
	}

	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// AtLeast compares v against major.minor.patch, ignoring the fourth part.
func (v Version) AtLeast(major, minor, patch int) bool {
	want := [3]int{major, minor, patch}
	for i := range want {
		if v[i] != want[i] {
			return v[i] > want[i]
		}
	}
	return true
}

type registration struct {
	owner string
	kind  Kind
	fn    WrapFunc
}

// Registry is the method wrapping facility. A fallback registry is the
// reduced implementation the host ships when the full library is absent;
// it has no meaningful version.
type Registry struct {
	mu       sync.RWMutex
	version  Version
	fallback bool
	targets  map[string][]registration
}

func New(version Version, fallback bool) *Registry {
	return &Registry{
		version:  version,
		fallback: fallback,
		targets:  make(map[string][]registration),
	}
}

func (r *Registry) Version() Version { return r.version }

func (r *Registry) IsFallback() bool { return r.fallback }

func (r *Registry) VersionAtLeast(major, minor, patch int) bool {
	return r.version.AtLeast(major, minor, patch)
}

// Register adds fn around target on behalf of owner.
func (r *Registry) Register(owner, target string, fn WrapFunc, kind Kind) error {
	if target == "" || strings.HasPrefix(target, ".") || strings.HasSuffix(target, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if fn == nil {
		return fmt.Errorf("%w: nil wrapper for %q", ErrInvalidTarget, target)
	}
	switch kind {
	case KindWrapper, KindMixed, KindOverride:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if kind == KindOverride {
		for _, reg := range r.targets[target] {
			if reg.kind == KindOverride {
				return fmt.Errorf("%w: %s by %s", ErrConflict, target, reg.owner)
			}
		}
	}

	r.targets[target] = append(r.targets[target], registration{owner: owner, kind: kind, fn: fn})

	return nil
}

// Targets lists every wrapped target with its owners.
func (r *Registry) Targets() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.targets))
	for t, regs := range r.targets {
		for _, reg := range regs {
			out[t] = append(out[t], reg.owner)
		}
	}
	return out
}

// Invoke runs target through its wrappers. Wrappers registered first run
// outermost; an override stands in for original.
func (r *Registry) Invoke(target string, original Func, args []any) (any, error) {
	r.mu.RLock()
	regs := make([]registration, len(r.targets[target]))
	copy(regs, r.targets[target])
	r.mu.RUnlock()

	inner := original
	var wrappers []registration
	for _, reg := range regs {
		if reg.kind == KindOverride {
			fn := reg.fn
			orig := original
			inner = func(args []any) (any, error) { return fn(orig, args) }
			continue
		}
		wrappers = append(wrappers, reg)
	}

	chain := inner
	for i := len(wrappers) - 1; i >= 0; i-- {
		chain = wrap(wrappers[i], target, chain)
	}

	if chain == nil {
		return nil, fmt.Errorf("%w: %q has no implementation", ErrInvalidTarget, target)
	}

	return chain(args)
}

func wrap(reg registration, target string, next Func) Func {
	return func(args []any) (any, error) {
		called := false
		tracked := func(args []any) (any, error) {
			called = true
			if next == nil {
				return nil, nil
			}
			return next(args)
		}

		out, err := reg.fn(tracked, args)
		if err == nil && reg.kind == KindWrapper && !called {
			return out, fmt.Errorf("%w: %s (%s)", ErrNextNotCalled, target, reg.owner)
		}
		return out, err
	}
}
