// Package patch installs the add-on's wrappers around host methods.
package patch

import (
	"fmt"
	"maps"
	"slices"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/items"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/wrapper"
)

// Wrapped host methods.
const (
	ActorAbilityTest = "CONFIG.Actor.documentClass.prototype.rollAbilityTest"
	ActorAbilitySave = "CONFIG.Actor.documentClass.prototype.rollAbilitySave"
	ActorSkill       = "CONFIG.Actor.documentClass.prototype.rollSkill"
	ItemUse          = "CONFIG.Item.documentClass.prototype.use"
	ItemSheetData    = "dnd5e.applications.item.ItemSheet5e.prototype.getData"
)

const owner = hooks.ModuleShort

// Patcher registers wrappers on a wrapper registry.
type Patcher struct {
	wrappers *wrapper.Registry
}

func New(w *wrapper.Registry) *Patcher {
	return &Patcher{wrappers: w}
}

// PatchActors makes actor checks, saves and skills skip their dialog
// unless the caller decided otherwise.
func (p *Patcher) PatchActors() error {
	for _, target := range []string{ActorAbilityTest, ActorAbilitySave, ActorSkill} {
		if err := p.wrappers.Register(owner, target, defaults(dnd.Options{"fastForward": true}), wrapper.KindWrapper); err != nil {
			return fmt.Errorf("patch actors: %w", err)
		}
	}
	return nil
}

// PatchItems skips the item use dialog so the quick roll can take over.
func (p *Patcher) PatchItems() error {
	opts := dnd.Options{"configureDialog": false, "createMessage": true}
	if err := p.wrappers.Register(owner, ItemUse, defaults(opts), wrapper.KindWrapper); err != nil {
		return fmt.Errorf("patch items: %w", err)
	}
	return nil
}

// PatchItemSheets exposes the add-on's flags to sheet templates.
func (p *Patcher) PatchItemSheets() error {
	err := p.wrappers.Register(owner, ItemSheetData, func(next wrapper.Func, args []any) (any, error) {
		out, err := next(args)
		if err != nil {
			return out, err
		}

		data, ok := out.(map[string]any)
		if !ok || len(args) == 0 {
			return out, nil
		}
		if item, ok := args[0].(*dnd.Item); ok && item != nil {
			data[items.Scope] = item.Flags(items.Scope)
		}

		return data, nil
	}, wrapper.KindWrapper)
	if err != nil {
		return fmt.Errorf("patch item sheets: %w", err)
	}
	return nil
}

// defaults fills missing keys of the trailing options argument. The
// wrapped method sees a copy; the caller's options are left untouched.
func defaults(values dnd.Options) wrapper.WrapFunc {
	return func(next wrapper.Func, args []any) (any, error) {
		if len(args) == 0 {
			return next(args)
		}

		opts, ok := args[len(args)-1].(dnd.Options)
		if !ok || opts == nil {
			return next(args)
		}

		filled := maps.Clone(opts)
		for k, v := range values {
			filled.SetDefault(k, v)
		}

		args = slices.Clone(args)
		args[len(args)-1] = filled

		return next(args)
	}
}
