// Package sprite derives the display mapping of a genome, where special
// appendages take the place of the limbs they replace.
package sprite

import (
	"lifegen.ai/internal/genes/dna"
)

const (
	TraitArms  = "Arms"
	TraitLegs  = "Legs"
	TraitTails = "Tails"
)

// DefaultArmReplacers lists the traits that replace Arms, highest precedence
// first. When a genome resolves both, Wings win over Fins.
var DefaultArmReplacers = []string{"Wings", "Fins"}

// Genome is anything that exposes ordered resolved traits; *dna.DNA does.
type Genome interface {
	Traits() []dna.Trait
}

type Entry struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// View is the ordered display mapping. It is recomputed on demand and never
// stored.
type View struct {
	entries []Entry
	index   map[string]int
}

func (v View) Entries() []Entry { return append([]Entry(nil), v.entries...) }
func (v View) Len() int         { return len(v.entries) }

func (v View) Get(name string) (string, bool) {
	i, ok := v.index[name]
	if !ok {
		return "", false
	}
	return v.entries[i].Display, true
}

// Map returns the view as a plain mapping.
func (v View) Map() map[string]string {
	out := make(map[string]string, len(v.entries))
	for _, e := range v.entries {
		out[e.Name] = e.Display
	}
	return out
}

// Composer applies the limb override rules. The zero value uses
// DefaultArmReplacers.
type Composer struct {
	ArmReplacers []string
}

// Compose uses the default precedence.
func Compose(g Genome) View {
	return Composer{}.Compose(g)
}

func (c Composer) Compose(g Genome) View {
	traits := g.Traits()
	values := make(map[string]string, len(traits))
	for _, t := range traits {
		values[t.Name] = t.Value
	}

	replacers := c.ArmReplacers
	if len(replacers) == 0 {
		replacers = DefaultArmReplacers
	}
	var arms string
	for _, name := range replacers {
		if v := values[name]; v != "" {
			arms = "Replaced by " + v
			break
		}
	}
	var legs string
	if v := values[TraitTails]; v != "" {
		legs = "Replaced by Tail: " + v
	}

	view := View{entries: make([]Entry, 0, len(traits)), index: make(map[string]int, len(traits))}
	for _, t := range traits {
		if _, dup := view.index[t.Name]; dup {
			continue
		}
		display := t.Value
		switch {
		case t.Name == TraitArms && arms != "":
			display = arms
		case t.Name == TraitLegs && legs != "":
			display = legs
		}
		view.index[t.Name] = len(view.entries)
		view.entries = append(view.entries, Entry{Name: t.Name, Display: display})
	}
	return view
}
