// Package settings declares the add-on's client settings and answers
// boolean lookups on them.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Setting names.
const (
	OverlayButtonsEnabled = "enableOverlayButtons"
	QuickItemEnabled      = "enableQuickItem"
	AlwaysRollMulti       = "alwaysRollMulti"
	HideSaveDC            = "hideSaveDC"
)

var ErrUnknownSetting = errors.New("settings: unknown setting")

type Setting struct {
	Name    string
	Hint    string
	Default bool
}

var definitions = []Setting{
	{Name: OverlayButtonsEnabled, Hint: "Show overlay buttons on chat cards", Default: true},
	{Name: QuickItemEnabled, Hint: "Roll items immediately when used", Default: true},
	{Name: AlwaysRollMulti, Hint: "Always roll attacks twice", Default: false},
	{Name: HideSaveDC, Hint: "Hide save DCs from players", Default: false},
}

// Definitions returns the declared settings.
func Definitions() []Setting {
	out := make([]Setting, len(definitions))
	copy(out, definitions)
	return out
}

// Store holds setting values. Values may be assigned before Register;
// they only become visible once the setting is registered.
type Store struct {
	mu         sync.RWMutex
	registered map[string]Setting
	values     map[string]bool
}

func NewStore() *Store {
	return &Store{
		registered: make(map[string]Setting),
		values:     make(map[string]bool),
	}
}

// Register declares every setting. Calling it again is harmless.
func (s *Store) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range definitions {
		s.registered[d.Name] = d
	}
	return nil
}

// Bool returns the value of name, its default when unset, or false when
// name was never registered.
func (s *Store) Bool(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.registered[name]
	if !ok {
		return false
	}
	if v, ok := s.values[name]; ok {
		return v
	}
	return d.Default
}

// Registered reports whether name has been registered.
func (s *Store) Registered(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.registered[name]
	return ok
}

// Set assigns name. Only declared setting names are accepted.
func (s *Store) Set(name string, value bool) error {
	if !declared(name) {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}

	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()

	return nil
}

// Apply assigns every value in o, in name order.
func (s *Store) Apply(o Overrides) error {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.Set(name, o[name]); err != nil {
			return err
		}
	}
	return nil
}

func declared(name string) bool {
	for _, d := range definitions {
		if d.Name == name {
			return true
		}
	}
	return false
}
