package dnd

import "sort"

// TypeLabel is the display label of a damage or healing type.
type TypeLabel struct {
	Label string
	Icon  string
}

// Taxonomy maps a type key to its label.
type Taxonomy map[string]TypeLabel

// SystemConfig is the system's configuration the add-on reads.
type SystemConfig struct {
	DamageTypes  Taxonomy
	HealingTypes Taxonomy
}

// DefaultSystemConfig returns the taxonomies shipped by the game system.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		DamageTypes: Taxonomy{
			"acid":        {Label: "Acid"},
			"bludgeoning": {Label: "Bludgeoning"},
			"cold":        {Label: "Cold"},
			"fire":        {Label: "Fire"},
			"force":       {Label: "Force"},
			"lightning":   {Label: "Lightning"},
			"necrotic":    {Label: "Necrotic"},
			"piercing":    {Label: "Piercing"},
			"poison":      {Label: "Poison"},
			"psychic":     {Label: "Psychic"},
			"radiant":     {Label: "Radiant"},
			"slashing":    {Label: "Slashing"},
			"thunder":     {Label: "Thunder"},
		},
		HealingTypes: Taxonomy{
			"healing": {Label: "Healing"},
			"temphp":  {Label: "Temporary HP"},
		},
	}
}

// MergeTaxonomies unions first and second without recursing into values.
// Keys already present in first are kept.
func MergeTaxonomies(first, second Taxonomy) Taxonomy {
	out := make(Taxonomy, len(first)+len(second))
	for k, v := range first {
		out[k] = v
	}
	for k, v := range second {
		if _, ok := out[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

// Lookup is a read-only view over a taxonomy.
type Lookup struct {
	m Taxonomy
}

func NewLookup(t Taxonomy) Lookup {
	m := make(Taxonomy, len(t))
	for k, v := range t {
		m[k] = v
	}
	return Lookup{m: m}
}

func (l Lookup) Get(key string) (TypeLabel, bool) {
	v, ok := l.m[key]
	return v, ok
}

func (l Lookup) Len() int { return len(l.m) }

// Keys returns the type keys in sorted order.
func (l Lookup) Keys() []string {
	out := make([]string, 0, len(l.m))
	for k := range l.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
