// Package dnd holds the slice of the game system's data model the add-on
// touches: items, use options and the damage taxonomies.
package dnd

import "sync"

type ItemType string

const (
	Weapon     ItemType = "weapon"
	Spell      ItemType = "spell"
	Feat       ItemType = "feat"
	Consumable ItemType = "consumable"
	Tool       ItemType = "tool"
	Equipment  ItemType = "equipment"
)

// DamagePart is one formula/type pair of an item's damage.
type DamagePart struct {
	Formula string
	Type    string
}

// Item is a host document. Flags are namespaced by module scope and are
// the only part other modules are expected to mutate, so they are guarded.
type Item struct {
	ID          string
	Name        string
	Type        ItemType
	HasAttack   bool
	AttackBonus int
	Damage      []DamagePart
	Versatile   string
	Formula     string

	mu    sync.RWMutex
	flags map[string]map[string]any
}

// Flag returns the value stored under scope/key.
func (i *Item) Flag(scope, key string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	v, ok := i.flags[scope][key]
	return v, ok
}

// SetFlag stores value under scope/key, replacing any previous value.
func (i *Item) SetFlag(scope, key string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.flags == nil {
		i.flags = make(map[string]map[string]any)
	}
	if i.flags[scope] == nil {
		i.flags[scope] = make(map[string]any)
	}
	i.flags[scope][key] = value
}

// Flags returns a copy of every flag in scope.
func (i *Item) Flags(scope string) map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make(map[string]any, len(i.flags[scope]))
	for k, v := range i.flags[scope] {
		out[k] = v
	}
	return out
}
