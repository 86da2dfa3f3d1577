// Package dna resolves one concrete option for every trait of a flattened
// taxonomy, either by independent sampling or from two parents.
package dna

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"lifegen.ai/internal/genes/taxonomy"
)

var (
	ErrMissingParentTrait = errors.New("missing parent trait")
	ErrNilParent          = errors.New("nil parent")
	ErrMissingTrait       = errors.New("missing trait")
	ErrUnknownTrait       = errors.New("unknown trait")
	ErrUnknownOption      = errors.New("unknown option")
	ErrDuplicateTrait     = errors.New("duplicate trait")
)

// MissingParentTraitError means the parents were built from different
// taxonomies. Missing is "mother" or "father".
type MissingParentTraitError struct {
	Trait   string
	Missing string
}

func (e *MissingParentTraitError) Error() string {
	return fmt.Sprintf("%s: %q absent from %s", ErrMissingParentTrait, e.Trait, e.Missing)
}

func (e *MissingParentTraitError) Unwrap() error { return ErrMissingParentTrait }

// Trait is one resolved gene.
type Trait struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DNA is an immutable, ordered set of resolved traits.
type DNA struct {
	traits []Trait
	index  map[string]int
}

func newDNA(traits []Trait) *DNA {
	d := &DNA{traits: traits, index: make(map[string]int, len(traits))}
	for i, t := range traits {
		d.index[t.Name] = i
	}
	return d
}

// Random samples every trait of table uniformly. rng must not be nil.
func Random(table *taxonomy.Table, rng *rand.Rand) *DNA {
	names := table.Names()
	traits := make([]Trait, 0, len(names))
	for _, name := range names {
		opts := table.Options(name)
		traits = append(traits, Trait{Name: name, Value: opts[rng.IntN(len(opts))]})
	}
	return newDNA(traits)
}

// Inherit builds a child whose every trait is a fair coin flip between the
// mother's and the father's value. Both parents must carry the same trait
// set; otherwise no child is produced.
func Inherit(mother, father *DNA, rng *rand.Rand) (*DNA, error) {
	if mother == nil || father == nil {
		return nil, ErrNilParent
	}
	for _, t := range father.traits {
		if _, ok := mother.index[t.Name]; !ok {
			return nil, &MissingParentTraitError{Trait: t.Name, Missing: "mother"}
		}
	}
	for _, t := range mother.traits {
		if _, ok := father.index[t.Name]; !ok {
			return nil, &MissingParentTraitError{Trait: t.Name, Missing: "father"}
		}
	}

	traits := make([]Trait, 0, len(mother.traits))
	for _, m := range mother.traits {
		f := father.traits[father.index[m.Name]]
		v := m.Value
		if rng.IntN(2) == 1 {
			v = f.Value
		}
		traits = append(traits, Trait{Name: m.Name, Value: v})
	}
	return newDNA(traits), nil
}

// FromTraits rebuilds DNA from stored traits, checking them against table:
// every table trait exactly once, every value a declared option. The result
// uses table order regardless of input order.
func FromTraits(table *taxonomy.Table, traits []Trait) (*DNA, error) {
	given := make(map[string]string, len(traits))
	for _, t := range traits {
		if !table.Has(t.Name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTrait, t.Name)
		}
		if _, dup := given[t.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTrait, t.Name)
		}
		if !table.Contains(t.Name, t.Value) {
			return nil, fmt.Errorf("%w: %q for trait %q", ErrUnknownOption, t.Value, t.Name)
		}
		given[t.Name] = t.Value
	}

	names := table.Names()
	out := make([]Trait, 0, len(names))
	for _, name := range names {
		v, ok := given[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingTrait, name)
		}
		out = append(out, Trait{Name: name, Value: v})
	}
	return newDNA(out), nil
}

// Express returns a fresh trait -> value mapping.
func (d *DNA) Express() map[string]string {
	out := make(map[string]string, len(d.traits))
	for _, t := range d.traits {
		out[t.Name] = t.Value
	}
	return out
}

// Traits returns the resolved traits in taxonomy order.
func (d *DNA) Traits() []Trait {
	return append([]Trait(nil), d.traits...)
}

func (d *DNA) Value(name string) (string, bool) {
	i, ok := d.index[name]
	if !ok {
		return "", false
	}
	return d.traits[i].Value, true
}

func (d *DNA) Len() int { return len(d.traits) }
