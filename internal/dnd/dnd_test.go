package dnd

import (
	"math"
	"testing"
)

func TestMergeOptionsOverride(t *testing.T) {
	config := Options{"a": 1, "b": "keep"}
	options := Options{"a": 2, "ignore": false}

	got := Merge(config, options)

	if got["a"] != 2 || got["b"] != "keep" || got["ignore"] != false || len(got) != 3 {
		t.Fatalf("unexpected merge: %v", got)
	}
	if config["a"] != 1 {
		t.Fatalf("merge must not modify its inputs")
	}
}

func TestOptionsIgnored(t *testing.T) {
	var nilMap map[string]any

	cases := []struct {
		value any
		want  bool
	}{
		{true, true},
		{false, false},
		{nil, false},
		{1, true},
		{int64(-3), true},
		{0, false},
		{uint8(0), false},
		{float64(1), true},
		{float64(0), false},
		{math.NaN(), false},
		{"true", true},
		{"false", true},
		{"", false},
		{map[string]any{}, true},
		{nilMap, false},
		{[]any{}, true},
	}

	for _, tc := range cases {
		if got := (Options{"ignore": tc.value}).Ignored(); got != tc.want {
			t.Fatalf("ignore=%#v: got %v want %v", tc.value, got, tc.want)
		}
	}

	if (Options{}).Ignored() || Options(nil).Ignored() {
		t.Fatalf("missing ignore must not ignore")
	}
}

func TestMergeTaxonomiesFirstWins(t *testing.T) {
	first := Taxonomy{"fire": {Label: "Fire"}, "healing": {Label: "Damage healing"}}
	second := Taxonomy{"healing": {Label: "Healing"}, "temphp": {Label: "Temporary HP"}}

	got := MergeTaxonomies(first, second)

	if len(got) != 3 {
		t.Fatalf("expected union of 3 keys, got %v", got)
	}
	if got["healing"].Label != "Damage healing" {
		t.Fatalf("expected first source to win on conflict, got %q", got["healing"].Label)
	}
}

func TestLookupReadOnly(t *testing.T) {
	src := Taxonomy{"fire": {Label: "Fire"}}
	l := NewLookup(src)
	src["cold"] = TypeLabel{Label: "Cold"}

	if l.Len() != 1 {
		t.Fatalf("lookup must not observe source mutation")
	}
	if v, ok := l.Get("fire"); !ok || v.Label != "Fire" {
		t.Fatalf("unexpected lookup: %v %v", v, ok)
	}
}

func TestItemFlags(t *testing.T) {
	item := &Item{Name: "Longsword"}
	if _, ok := item.Flag("rsr5e", "quickAttack"); ok {
		t.Fatalf("expected no flag")
	}

	item.SetFlag("rsr5e", "quickAttack", true)
	flags := item.Flags("rsr5e")
	flags["quickAttack"] = false

	if v, _ := item.Flag("rsr5e", "quickAttack"); v != true {
		t.Fatalf("Flags must return a copy")
	}
}
