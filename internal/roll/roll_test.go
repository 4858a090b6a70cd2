package roll

import (
	"errors"
	"testing"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/items"
)

type recordCaller struct {
	calls []hooks.Channel
	args  [][]any
}

func (c *recordCaller) Call(ch hooks.Channel, args ...any) {
	c.calls = append(c.calls, ch)
	c.args = append(c.args, args)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		terms []Term
	}{
		{"1d8", []Term{{Sign: 1, Count: 1, Sides: 8}}},
		{"2d6 + 3", []Term{{Sign: 1, Count: 2, Sides: 6}, {Sign: 1, Flat: 3}}},
		{"d20-1", []Term{{Sign: 1, Count: 1, Sides: 20}, {Sign: -1, Flat: 1}}},
		{"-1d4+2D6", []Term{{Sign: -1, Count: 1, Sides: 4}, {Sign: 1, Count: 2, Sides: 6}}},
	}

	for _, tt := range tests {
		f, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if len(f.Terms) != len(tt.terms) {
			t.Fatalf("Parse(%q): got %+v want %+v", tt.in, f.Terms, tt.terms)
		}
		for i := range f.Terms {
			if f.Terms[i] != tt.terms[i] {
				t.Fatalf("Parse(%q) term %d: got %+v want %+v", tt.in, i, f.Terms[i], tt.terms[i])
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("  "); !errors.Is(err, ErrEmptyFormula) {
		t.Fatalf("expected ErrEmptyFormula, got %v", err)
	}
	for _, in := range []string{
		"1d", "d0", "0d6", "1d8+", "abc", "1d8++2",
		"1001d6", "1d1001", "100000000d6", "4611686018427387904d6", "2000000",
	} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidFormula) {
			t.Fatalf("Parse(%q): expected ErrInvalidFormula, got %v", in, err)
		}
	}
}

func TestEvaluateTotalsAndDeterminism(t *testing.T) {
	f, err := Parse("3d6+2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	a, err := NewRoller(42, nil).Evaluate(f, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	b, err := NewRoller(42, nil).Evaluate(f, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if a.Total != b.Total {
		t.Fatalf("same seed must give same total: %d vs %d", a.Total, b.Total)
	}
	if len(a.Dice) != 1 || len(a.Dice[0].Results) != 3 {
		t.Fatalf("unexpected dice: %+v", a.Dice)
	}

	sum := a.Flat
	for _, v := range a.Dice[0].Results {
		if v < 1 || v > 6 {
			t.Fatalf("die out of range: %d", v)
		}
		sum += v
	}
	if sum != a.Total || a.Flat != 2 {
		t.Fatalf("total mismatch: sum %d total %d", sum, a.Total)
	}
}

func TestEvaluateCriticalDoublesDice(t *testing.T) {
	res, err := NewRoller(1, nil).EvaluateString("2d8+4", 2)
	if err != nil {
		t.Fatalf("EvaluateString: %v", err)
	}
	if len(res.Dice[0].Results) != 4 || res.Flat != 4 {
		t.Fatalf("expected 4 dice and unchanged flat, got %+v", res)
	}
}

func TestComputeRollWeapon(t *testing.T) {
	caller := &recordCaller{}
	item := &dnd.Item{
		Name:        "Longsword",
		Type:        dnd.Weapon,
		HasAttack:   true,
		AttackBonus: 5,
		Damage:      []dnd.DamagePart{{Formula: "1d8+3", Type: "slashing"}},
		Versatile:   "1d10+3",
	}
	if _, err := (items.Flagger{}).EnsureDefaultFlags(item); err != nil {
		t.Fatalf("EnsureDefaultFlags: %v", err)
	}

	out, err := NewRoller(7, caller).ComputeRoll(item, dnd.Options{"advantage": true})
	if err != nil {
		t.Fatalf("ComputeRoll: %v", err)
	}

	if out.Attack == nil || len(out.Attack.Rolls) != 2 {
		t.Fatalf("expected advantage attack, got %+v", out.Attack)
	}
	if out.Attack.Natural != max(out.Attack.Rolls[0], out.Attack.Rolls[1]) {
		t.Fatalf("advantage must keep the highest die: %+v", out.Attack)
	}
	if out.Attack.Total != out.Attack.Natural+5 {
		t.Fatalf("attack bonus not applied: %+v", out.Attack)
	}
	if len(out.Damage) != 1 || out.Damage[0].Type != "slashing" {
		t.Fatalf("unexpected damage: %+v", out.Damage)
	}
	if out.Versatile != nil {
		t.Fatalf("versatile is off by default")
	}

	if len(caller.calls) != 1 || caller.calls[0] != hooks.RollProcessed {
		t.Fatalf("expected rollProcessed call, got %v", caller.calls)
	}
	if caller.args[0][0] != item || caller.args[0][1] != out {
		t.Fatalf("unexpected rollProcessed args: %v", caller.args[0])
	}
}

func TestComputeRollAdvantageAndDisadvantageCancel(t *testing.T) {
	item := &dnd.Item{Name: "Dagger", HasAttack: true}

	out, err := NewRoller(3, nil).ComputeRoll(item, dnd.Options{"advantage": true, "disadvantage": true})
	if err != nil {
		t.Fatalf("ComputeRoll: %v", err)
	}
	if len(out.Attack.Rolls) != 1 {
		t.Fatalf("expected a single d20, got %v", out.Attack.Rolls)
	}
}

func TestComputeRollRespectsDamageFlags(t *testing.T) {
	item := &dnd.Item{
		Name: "Flame Tongue",
		Damage: []dnd.DamagePart{
			{Formula: "1d8", Type: "slashing"},
			{Formula: "2d6", Type: "fire"},
		},
	}
	item.SetFlag(items.Scope, items.QuickDamage, []bool{false, true})

	out, err := NewRoller(5, nil).ComputeRoll(item, dnd.Options{"critical": true})
	if err != nil {
		t.Fatalf("ComputeRoll: %v", err)
	}
	if len(out.Damage) != 1 || out.Damage[0].Type != "fire" {
		t.Fatalf("expected only fire damage, got %+v", out.Damage)
	}
	if len(out.Damage[0].Dice[0].Results) != 4 {
		t.Fatalf("critical must double dice, got %+v", out.Damage[0].Dice)
	}
}

func TestComputeRollErrors(t *testing.T) {
	r := NewRoller(1, nil)

	if _, err := r.ComputeRoll(nil, nil); !errors.Is(err, hooks.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	bad := &dnd.Item{Name: "Broken", Damage: []dnd.DamagePart{{Formula: "xd"}}}
	if _, err := r.ComputeRoll(bad, nil); !errors.Is(err, ErrInvalidFormula) {
		t.Fatalf("expected ErrInvalidFormula, got %v", err)
	}

	huge := &dnd.Item{Name: "Huge", Damage: []dnd.DamagePart{{Formula: "4611686018427387904d6", Type: "fire"}}}
	if _, err := r.ComputeRoll(huge, dnd.Options{"critical": true}); !errors.Is(err, ErrInvalidFormula) {
		t.Fatalf("expected ErrInvalidFormula, got %v", err)
	}
}

func TestEvaluateLimits(t *testing.T) {
	r := NewRoller(1, nil)

	f, err := Parse("1000d1000")
	if err != nil {
		t.Fatalf("Parse at the limit: %v", err)
	}
	if _, err := r.Evaluate(f, 2); err != nil {
		t.Fatalf("Evaluate at the limit: %v", err)
	}
	if _, err := r.Evaluate(f, MaxMultiplier+1); !errors.Is(err, ErrInvalidFormula) {
		t.Fatalf("expected multiplier error, got %v", err)
	}

	built := Formula{Terms: []Term{{Sign: 1, Count: MaxDice + 1, Sides: 6}}}
	if _, err := r.Evaluate(built, 1); !errors.Is(err, ErrInvalidFormula) {
		t.Fatalf("expected ErrInvalidFormula for hand-built term, got %v", err)
	}
}

func TestNewSeed(t *testing.T) {
	if _, err := NewSeed(); err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
}
