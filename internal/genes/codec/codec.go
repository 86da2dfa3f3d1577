// Package codec assigns every option of a trait a fixed-width binary code
// derived from its position in the trait's option list.
package codec

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/genes/taxonomy"
)

var (
	ErrUnknownTrait     = errors.New("unknown trait")
	ErrUnknownOption    = errors.New("unknown option")
	ErrInvalidCode      = errors.New("invalid gene code")
	ErrIncompleteGenome = errors.New("incomplete genome")
)

type UnknownOptionError struct {
	Trait  string
	Option string
	// Suggestion is the closest declared option, empty when none is close.
	Suggestion string
}

func (e *UnknownOptionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s %q for trait %q (did you mean %q?)", ErrUnknownOption, e.Option, e.Trait, e.Suggestion)
	}
	return fmt.Sprintf("%s %q for trait %q", ErrUnknownOption, e.Option, e.Trait)
}

func (e *UnknownOptionError) Unwrap() error { return ErrUnknownOption }

type InvalidCodeError struct {
	Trait string
	Code  string
}

func (e *InvalidCodeError) Error() string {
	if e.Trait == "" {
		return fmt.Sprintf("%s %q", ErrInvalidCode, e.Code)
	}
	return fmt.Sprintf("%s %q for trait %q", ErrInvalidCode, e.Code, e.Trait)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

type gene struct {
	width   int
	options []string
	codes   map[string]string
}

// Encoder holds the gene code tables for one flattened taxonomy.
type Encoder struct {
	order  []string
	genes  map[string]gene
	bitLen int
}

func New(table *taxonomy.Table) *Encoder {
	e := &Encoder{order: table.Names(), genes: map[string]gene{}}
	for _, name := range e.order {
		opts := table.Options(name)
		g := gene{width: Width(len(opts)), options: opts, codes: make(map[string]string, len(opts))}
		for i, o := range opts {
			g.codes[o] = format(i, g.width)
		}
		e.genes[name] = g
		e.bitLen += g.width
	}
	return e
}

// Width is the number of bits needed to address n options: ceil(log2 n).
func Width(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func format(i, width int) string {
	if width == 0 {
		return ""
	}
	s := strconv.FormatUint(uint64(i), 2)
	return strings.Repeat("0", width-len(s)) + s
}

func (e *Encoder) gene(trait string) (gene, error) {
	g, ok := e.genes[trait]
	if !ok {
		return gene{}, fmt.Errorf("%w: %q", ErrUnknownTrait, trait)
	}
	return g, nil
}

// Width returns the code width of trait.
func (e *Encoder) Width(trait string) (int, error) {
	g, err := e.gene(trait)
	if err != nil {
		return 0, err
	}
	return g.width, nil
}

// BitLen is the total width of a whole-genome bitstring.
func (e *Encoder) BitLen() int { return e.bitLen }

func (e *Encoder) Encode(trait, option string) (string, error) {
	g, err := e.gene(trait)
	if err != nil {
		return "", err
	}
	code, ok := g.codes[option]
	if !ok {
		return "", &UnknownOptionError{Trait: trait, Option: option, Suggestion: suggest(option, g.options)}
	}
	return code, nil
}

func (e *Encoder) Decode(trait, code string) (string, error) {
	g, err := e.gene(trait)
	if err != nil {
		return "", err
	}
	if len(code) != g.width {
		return "", &InvalidCodeError{Trait: trait, Code: code}
	}
	if g.width == 0 {
		return g.options[0], nil
	}
	idx, err := strconv.ParseUint(code, 2, 64)
	if err != nil || idx >= uint64(len(g.options)) {
		return "", &InvalidCodeError{Trait: trait, Code: code}
	}
	return g.options[idx], nil
}

// EncodeGenome concatenates the codes of every trait in table order.
func (e *Encoder) EncodeGenome(d *dna.DNA) (string, error) {
	var b strings.Builder
	b.Grow(e.bitLen)
	for _, name := range e.order {
		v, ok := d.Value(name)
		if !ok {
			return "", fmt.Errorf("%w: trait %q", ErrIncompleteGenome, name)
		}
		code, err := e.Encode(name, v)
		if err != nil {
			return "", err
		}
		b.WriteString(code)
	}
	return b.String(), nil
}

// DecodeGenome splits a bitstring produced by EncodeGenome back into traits.
func (e *Encoder) DecodeGenome(bitstring string) ([]dna.Trait, error) {
	if len(bitstring) != e.bitLen {
		return nil, &InvalidCodeError{Code: bitstring}
	}
	out := make([]dna.Trait, 0, len(e.order))
	pos := 0
	for _, name := range e.order {
		w := e.genes[name].width
		v, err := e.Decode(name, bitstring[pos:pos+w])
		if err != nil {
			return nil, err
		}
		out = append(out, dna.Trait{Name: name, Value: v})
		pos += w
	}
	return out, nil
}

func suggest(option string, options []string) string {
	in := strings.ToLower(option)
	best, bestDist := "", -1
	for _, o := range options {
		d := levenshtein.ComputeDistance(in, strings.ToLower(o))
		if bestDist < 0 || d < bestDist {
			best, bestDist = o, d
		}
	}
	if bestDist < 0 || bestDist > suggestLimit(len(best)) {
		return ""
	}
	return best
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 10:
		return 2
	default:
		return 3
	}
}
