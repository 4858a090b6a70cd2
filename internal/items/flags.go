// Package items keeps the add-on's per-item flags in place.
package items

import (
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
)

// Scope is the flag namespace owned by the add-on.
const Scope = hooks.ModuleShort

// Flag keys.
const (
	QuickFlavor    = "quickFlavor"
	QuickAttack    = "quickAttack"
	QuickDamage    = "quickDamage"
	QuickVersatile = "quickVersatile"
	QuickFormula   = "quickFormula"
	QuickCheck     = "quickCheck"
)

// Defaults returns the flags a fresh item of this shape should carry.
func Defaults(item *dnd.Item) map[string]any {
	out := map[string]any{QuickFlavor: true}

	if item.HasAttack {
		out[QuickAttack] = true
	}
	if len(item.Damage) > 0 {
		dmg := make([]bool, len(item.Damage))
		for i := range dmg {
			dmg[i] = true
		}
		out[QuickDamage] = dmg
	}
	if item.Versatile != "" {
		out[QuickVersatile] = false
	}
	if item.Formula != "" {
		out[QuickFormula] = true
	}
	if item.Type == dnd.Tool {
		out[QuickCheck] = true
	}

	return out
}

// Flagger upserts default flags on items.
type Flagger struct{}

// EnsureDefaultFlags adds any missing default flag to item. Flags already
// present are left alone. It reports whether item changed.
func (Flagger) EnsureDefaultFlags(item *dnd.Item) (bool, error) {
	if item == nil {
		return false, nil
	}

	changed := false
	for key, value := range Defaults(item) {
		if _, ok := item.Flag(Scope, key); ok {
			continue
		}
		item.SetFlag(Scope, key, value)
		changed = true
	}

	return changed, nil
}
