package taxonomy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Table is the flattened view of a Taxonomy: every leaf addressable by name,
// in declaration order.
type Table struct {
	names   []string
	options map[string][]string
	paths   map[string]string
	digest  string
}

// Flatten walks the tree depth-first and collects every leaf. Categories are
// traversed but not inserted. A leaf name declared in two branches is
// rejected rather than silently overwritten.
func Flatten(t *Taxonomy) (*Table, error) {
	if t == nil {
		return nil, malformed("", "nil taxonomy")
	}
	out := &Table{
		options: map[string][]string{},
		paths:   map[string]string{},
	}
	if err := out.collect(t.root, nil); err != nil {
		return nil, err
	}
	if len(out.names) == 0 {
		return nil, malformed(t.root.name, "no traits declared")
	}
	out.digest = out.computeDigest()
	return out, nil
}

func (tb *Table) collect(n Node, parents []string) error {
	path := strings.Join(append(append([]string(nil), parents...), n.name), "/")
	if strings.TrimSpace(n.name) == "" {
		return malformed(path, "empty node name")
	}

	switch n.kind {
	case KindLeaf:
		if len(n.options) == 0 {
			return malformed(path, "trait %q has no options", n.name)
		}
		seen := make(map[string]struct{}, len(n.options))
		for _, opt := range n.options {
			if opt == "" {
				return malformed(path, "trait %q has an empty option", n.name)
			}
			if _, dup := seen[opt]; dup {
				return malformed(path, "trait %q repeats option %q", n.name, opt)
			}
			seen[opt] = struct{}{}
		}
		if prev, dup := tb.paths[n.name]; dup {
			return malformed(path, "trait %q already declared at %s", n.name, prev)
		}
		tb.names = append(tb.names, n.name)
		tb.options[n.name] = append([]string(nil), n.options...)
		tb.paths[n.name] = path
		return nil

	case KindCategory:
		if len(n.children) == 0 {
			return malformed(path, "category %q has no children", n.name)
		}
		next := append(append([]string(nil), parents...), n.name)
		for _, c := range n.children {
			if err := tb.collect(c, next); err != nil {
				return err
			}
		}
		return nil

	default:
		return malformed(path, "node %q has invalid kind", n.name)
	}
}

func (tb *Table) computeDigest() string {
	type entry struct {
		Name    string   `json:"name"`
		Options []string `json:"options"`
	}
	entries := make([]entry, 0, len(tb.names))
	for _, n := range tb.names {
		entries = append(entries, entry{Name: n, Options: tb.options[n]})
	}
	b, _ := json.Marshal(entries)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Names returns trait names in declaration order.
func (tb *Table) Names() []string { return append([]string(nil), tb.names...) }

func (tb *Table) Len() int { return len(tb.names) }

func (tb *Table) Has(name string) bool {
	_, ok := tb.options[name]
	return ok
}

// Options returns a copy of the option list for name, or nil if unknown.
func (tb *Table) Options(name string) []string {
	opts, ok := tb.options[name]
	if !ok {
		return nil
	}
	return append([]string(nil), opts...)
}

// Contains reports whether option is a declared value of trait name.
func (tb *Table) Contains(name, option string) bool {
	for _, o := range tb.options[name] {
		if o == option {
			return true
		}
	}
	return false
}

// Path returns the slash-joined location of the trait in the source tree.
func (tb *Table) Path(name string) string { return tb.paths[name] }

// Digest identifies the ordered trait/option content. Genomes built from
// tables with different digests are not interchangeable.
func (tb *Table) Digest() string { return tb.digest }
