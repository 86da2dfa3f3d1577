package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.schema.json
var schemaJSON string

//go:embed reference.yaml
var referenceYAML []byte

const schemaURL = "taxonomy.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads a YAML taxonomy document from disk and validates it fully,
// including flattening, so a returned Taxonomy is always usable.
func Load(path string) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Parse builds a Taxonomy from a YAML document. Mappings become categories
// and sequences of strings become leaves; declaration order is kept.
func Parse(raw []byte) (*Taxonomy, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, malformed("", "yaml: %v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, malformed("", "empty document")
	}
	body := doc.Content[0]

	generic, err := plain(body, RootName)
	if err != nil {
		return nil, err
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile taxonomy schema: %w", err)
	}
	if err := s.Validate(generic); err != nil {
		return nil, malformed("", "schema: %v", err)
	}

	root, err := build(RootName, body, RootName)
	if err != nil {
		return nil, err
	}
	t := New(root)
	if _, err := Flatten(t); err != nil {
		return nil, err
	}
	return t, nil
}

// plain converts a yaml node into the shape encoding/json would produce so
// the schema validator can check it. Duplicate mapping keys and aliases are
// rejected here because they have no JSON equivalent.
func plain(n *yaml.Node, path string) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, malformed(path, "non-scalar key at line %d", k.Line)
			}
			if _, dup := out[k.Value]; dup {
				return nil, malformed(path, "duplicate key %q at line %d", k.Value, k.Line)
			}
			child, err := plain(v, path+"/"+k.Value)
			if err != nil {
				return nil, err
			}
			out[k.Value] = child
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			child, err := plain(item, path)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return n.Value, nil
	case yaml.AliasNode:
		return nil, malformed(path, "aliases are not supported (line %d)", n.Line)
	default:
		return nil, malformed(path, "unexpected yaml node at line %d", n.Line)
	}
}

func build(name string, n *yaml.Node, path string) (Node, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		opts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			opts = append(opts, item.Value)
		}
		return Leaf(name, opts...), nil
	case yaml.MappingNode:
		children := make([]Node, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			child, err := build(key, n.Content[i+1], path+"/"+key)
			if err != nil {
				return Node{}, err
			}
			children = append(children, child)
		}
		return Category(name, children...), nil
	default:
		return Node{}, malformed(path, "expected a list of options or a mapping (line %d)", n.Line)
	}
}

var (
	refOnce  sync.Once
	refTax   *Taxonomy
	refTable *Table
)

func loadReference() {
	t, err := Parse(referenceYAML)
	if err != nil {
		panic(fmt.Sprintf("reference taxonomy: %v", err))
	}
	tb, err := Flatten(t)
	if err != nil {
		panic(fmt.Sprintf("reference taxonomy: %v", err))
	}
	refTax, refTable = t, tb
}

// Reference returns the built-in character taxonomy. It is parsed once per
// process and shared; callers must treat it as read-only (it has no mutators).
func Reference() *Taxonomy {
	refOnce.Do(loadReference)
	return refTax
}

// ReferenceTable is the flattened form of Reference.
func ReferenceTable() *Table {
	refOnce.Do(loadReference)
	return refTable
}

// ReferenceYAML returns a copy of the embedded reference document.
func ReferenceYAML() []byte {
	return append([]byte(nil), referenceYAML...)
}
