package taxonomy

// Kind tags a Node as a leaf trait or a category of nodes.
type Kind uint8

const (
	KindLeaf Kind = iota + 1
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindCategory:
		return "category"
	default:
		return "invalid"
	}
}

// Node is one element of the trait tree. A leaf carries an ordered option
// list; a category carries ordered children. Nodes are values and never
// expose their backing slices.
type Node struct {
	kind     Kind
	name     string
	options  []string
	children []Node
}

// Leaf declares a trait with its options in declaration order.
func Leaf(name string, options ...string) Node {
	return Node{kind: KindLeaf, name: name, options: append([]string(nil), options...)}
}

// Category groups child nodes under a name.
func Category(name string, children ...Node) Node {
	return Node{kind: KindCategory, name: name, children: append([]Node(nil), children...)}
}

func (n Node) Kind() Kind   { return n.kind }
func (n Node) Name() string { return n.name }

func (n Node) Options() []string {
	return append([]string(nil), n.options...)
}

func (n Node) Children() []Node {
	return append([]Node(nil), n.children...)
}

// RootName is the name given to the implicit root category of loaded documents.
const RootName = "genes"

// Taxonomy is the immutable root of a trait tree.
type Taxonomy struct {
	root Node
}

func New(root Node) *Taxonomy {
	return &Taxonomy{root: root}
}

func (t *Taxonomy) Root() Node { return t.root }
