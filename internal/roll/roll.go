// Package roll evaluates dice formulas and computes the quick rolls the
// add-on performs when an item is used.
//
// # Determinism
//
// A Roller is deterministic with respect to its seed: the same seed and
// the same sequence of calls yield the same results.
package roll

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/items"
)

// Caller raises hooks. *hooks.Registry satisfies it.
type Caller interface {
	Call(ch hooks.Channel, args ...any)
}

// Dice holds the faces rolled for one dice term.
type Dice struct {
	Sides   int
	Results []int
}

// Result is one evaluated formula.
type Result struct {
	Formula string
	Dice    []Dice
	Flat    int
	Total   int
}

// AttackRoll is a d20 roll. Rolls holds both dice under advantage or
// disadvantage; Natural is the die kept.
type AttackRoll struct {
	Rolls    []int
	Natural  int
	Bonus    int
	Total    int
	Critical bool
	Fumble   bool
}

type DamageRoll struct {
	Type string
	Result
}

// ItemRoll is everything computed for one use of an item.
type ItemRoll struct {
	Item      string
	Attack    *AttackRoll
	Damage    []DamageRoll
	Versatile *Result
	Other     *Result
	Critical  bool
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

type Roller struct {
	mu     sync.Mutex
	rng    *rand.Rand
	caller Caller
}

// NewRoller returns a roller seeded with seed. Processed rolls are
// announced on caller, which may be nil.
func NewRoller(seed int64, caller Caller) *Roller {
	return &Roller{
		rng:    rand.New(rand.NewSource(seed)),
		caller: caller,
	}
}

// MaxMultiplier caps the dice multiplier passed to Evaluate.
const MaxMultiplier = 4

// Evaluate rolls f. Dice counts are multiplied by multiplier, which is how
// critical hits double their dice.
func (r *Roller) Evaluate(f Formula, multiplier int) (Result, error) {
	if multiplier <= 0 {
		multiplier = 1
	}
	if multiplier > MaxMultiplier {
		return Result{}, fmt.Errorf("%w: multiplier %d above %d", ErrInvalidFormula, multiplier, MaxMultiplier)
	}
	for _, t := range f.Terms {
		if err := t.check(); err != nil {
			return Result{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{Formula: f.String()}
	for _, t := range f.Terms {
		if !t.Dice() {
			res.Flat += t.Sign * t.Flat
			res.Total += t.Sign * t.Flat
			continue
		}

		d := Dice{Sides: t.Sides, Results: make([]int, t.Count*multiplier)}
		for i := range d.Results {
			d.Results[i] = r.rollDie(t.Sides)
			res.Total += t.Sign * d.Results[i]
		}
		res.Dice = append(res.Dice, d)
	}

	return res, nil
}

// EvaluateString parses and rolls s.
func (r *Roller) EvaluateString(s string, multiplier int) (Result, error) {
	f, err := Parse(s)
	if err != nil {
		return Result{}, err
	}
	return r.Evaluate(f, multiplier)
}

// ComputeRoll performs the quick roll for item using opts, which is the
// item's use config merged with its use options. Recognised options:
// advantage, disadvantage, critical.
func (r *Roller) ComputeRoll(item *dnd.Item, opts dnd.Options) (*ItemRoll, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil item", hooks.ErrInvalidArgument)
	}

	out := &ItemRoll{Item: item.Name, Critical: opts.Bool("critical")}

	if item.HasAttack && flagOn(item, items.QuickAttack, true) {
		out.Attack = r.attack(item.AttackBonus, opts)
		if out.Attack.Critical {
			out.Critical = true
		}
	}

	multiplier := 1
	if out.Critical {
		multiplier = 2
	}

	quickDamage, _ := flag(item, items.QuickDamage).([]bool)
	for i, part := range item.Damage {
		if quickDamage != nil && (i >= len(quickDamage) || !quickDamage[i]) {
			continue
		}
		res, err := r.EvaluateString(part.Formula, multiplier)
		if err != nil {
			return nil, fmt.Errorf("damage part %d of %q: %w", i, item.Name, err)
		}
		out.Damage = append(out.Damage, DamageRoll{Type: part.Type, Result: res})
	}

	if item.Versatile != "" && flagOn(item, items.QuickVersatile, false) {
		res, err := r.EvaluateString(item.Versatile, multiplier)
		if err != nil {
			return nil, fmt.Errorf("versatile damage of %q: %w", item.Name, err)
		}
		out.Versatile = &res
	}

	if item.Formula != "" && flagOn(item, items.QuickFormula, true) {
		res, err := r.EvaluateString(item.Formula, 1)
		if err != nil {
			return nil, fmt.Errorf("other formula of %q: %w", item.Name, err)
		}
		out.Other = &res
	}

	if r.caller != nil {
		r.caller.Call(hooks.RollProcessed, item, out)
	}

	return out, nil
}

func (r *Roller) attack(bonus int, opts dnd.Options) *AttackRoll {
	adv, dis := opts.Bool("advantage"), opts.Bool("disadvantage")

	n := 1
	if adv != dis {
		n = 2
	}

	r.mu.Lock()
	rolls := make([]int, n)
	for i := range rolls {
		rolls[i] = r.rollDie(20)
	}
	r.mu.Unlock()

	kept := rolls[0]
	for _, v := range rolls[1:] {
		if (adv && v > kept) || (dis && v < kept) {
			kept = v
		}
	}

	return &AttackRoll{
		Rolls:    rolls,
		Natural:  kept,
		Bonus:    bonus,
		Total:    kept + bonus,
		Critical: kept == 20,
		Fumble:   kept == 1,
	}
}

// rollDie rolls a single die; callers hold r.mu.
func (r *Roller) rollDie(sides int) int {
	return r.rng.Intn(sides) + 1
}

func flag(item *dnd.Item, key string) any {
	v, _ := item.Flag(items.Scope, key)
	return v
}

func flagOn(item *dnd.Item, key string, def bool) bool {
	v, ok := item.Flag(items.Scope, key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	return ok && b
}
