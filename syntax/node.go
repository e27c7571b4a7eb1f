package syntax

import (
	"fmt"
	"sync/atomic"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
)

// Attribute is the grammatical category of a node.
type Attribute int16

// Node attributes. The comment gives the keyword used in tree descriptions.
const (
	NoAttr       Attribute = iota
	Program                // program
	Block                  // block
	Identity               // identity
	Variable               // variable
	ProcDecl               // procedure
	OpDecl                 // operator
	PrioDecl               // priority
	ModeDecl               // mode
	Label                  // label
	Jump                   // goto
	Skip                   // skip
	Nihil                  // nil
	RoutineText            // routine
	Params                 // params
	Param                  // param
	Identifier             // id
	IntDenot               // int
	RealDenot              // real
	BoolDenot              // bool
	CharDenot              // char
	StringDenot            // string
	Formula                // dyadic
	Monadic                // monadic
	Assignation            // assign
	Call                   // call
	Slice                  // slice
	Trimmer                // trim
	Selection              // select
	Generator              // gen
	Display                // display
	Conditional            // if
	Conformity             // case
	Specifier              // spec
	OutPart                // out
	Loop                   // loop
	ForPart                // for
	FromPart               // from
	ByPart                 // by
	ToPart                 // to
	WhilePart              // while
	DoPart                 // do
	Parallel               // par
	Indicant               // a mode name in a declarer
	RefDecl                // ref
	RowDecl                // row
	FlexDecl               // flex
	Bound                  // b
	StructDecl             // struct
	FieldDecl              // field
	UnionDecl              // union
	ProcMode               // proc
)

var attrNames = map[Attribute]string{
	Program: "program", Block: "block", Identity: "identity", Variable: "variable",
	ProcDecl: "procedure", OpDecl: "operator", PrioDecl: "priority", ModeDecl: "mode",
	Label: "label", Jump: "goto", Skip: "skip", Nihil: "nil", RoutineText: "routine",
	Params: "params", Param: "param", Identifier: "id", IntDenot: "int",
	RealDenot: "real", BoolDenot: "bool", CharDenot: "char", StringDenot: "string",
	Formula: "dyadic", Monadic: "monadic", Assignation: "assign", Call: "call",
	Slice: "slice", Trimmer: "trim", Selection: "select", Generator: "gen",
	Display: "display", Conditional: "if", Conformity: "case", Specifier: "spec",
	OutPart: "out", Loop: "loop", ForPart: "for", FromPart: "from", ByPart: "by",
	ToPart: "to", WhilePart: "while", DoPart: "do", Parallel: "par",
	Indicant: "indicant", RefDecl: "ref", RowDecl: "row", FlexDecl: "flex",
	Bound: "b", StructDecl: "struct", FieldDecl: "field", UnionDecl: "union",
	ProcMode: "proc",
}

func (a Attribute) String() string {
	if s, ok := attrNames[a]; ok {
		return s
	}
	return fmt.Sprintf("attr(%d)", int16(a))
}

// IsDeclarer is true for attributes of declarer nodes.
func (a Attribute) IsDeclarer() bool {
	switch a {
	case Indicant, RefDecl, RowDecl, FlexDecl, StructDecl, UnionDecl, ProcMode:
		return true
	}
	return false
}

// IsDeclaration is true for declarations, i.e. nodes which do not yield a value
// in a serial clause.
func (a Attribute) IsDeclaration() bool {
	switch a {
	case Identity, Variable, ProcDecl, OpDecl, PrioDecl, ModeDecl, Label:
		return true
	}
	return false
}

// Flags are bits set on nodes by a monitor. They are toggled from the outside
// and tested by the elaborator before running a unit.
type Flags uint32

// Node flags.
const (
	Breakpoint Flags = 1 << iota
	Trace
)

// Node is a node of the annotated syntax tree.
type Node struct {
	ID       int              // serial number, unique within a tree
	Attr     Attribute        // category
	Symbol   string           // identifier, operator symbol, indicant, label
	Value    interface{}      // denotation value or priority
	Heap     bool             // qualifier of generators and variables
	Pos      genie.Pos        // source position
	Children []*Node          // sub-nodes, in textual order
	Parent   *Node            // enclosing node
	NewLevel bool             // this node introduces a new lexical level
	Table    *SymbolTable     // table of the range this node is part of, or introduces
	Tag      *Tag             // resolved (applied) or declared (defining) tag
	Mode     *mode.Mode       // a-posteriori mode, set by the binder
	flags    uint32           // Flags, accessed atomically
	UData    interface{}      // extension point
}

// NewNode creates a node. Whether it introduces a new lexical level is decided
// by its attribute.
func NewNode(attr Attribute, symbol string, children ...*Node) *Node {
	n := &Node{Attr: attr, Symbol: symbol, Children: children}
	n.NewLevel = introducesLevel(attr)
	for _, ch := range children {
		ch.Parent = n
	}
	return n
}

func introducesLevel(attr Attribute) bool {
	switch attr {
	case Program, Block, RoutineText, Conditional, Conformity, Specifier, Loop, WhilePart, DoPart:
		return true
	}
	return false
}

// At sets the source position of a node. Returns the node (for chaining).
func (n *Node) At(line, col int) *Node {
	n.Pos = genie.Pos{Line: line, Column: col}
	return n
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Find returns the first child with a given attribute, or nil.
func (n *Node) Find(attr Attribute) *Node {
	for _, ch := range n.Children {
		if ch.Attr == attr {
			return ch
		}
	}
	return nil
}

// SetFlag sets a monitor flag.
func (n *Node) SetFlag(f Flags) {
	for {
		old := atomic.LoadUint32(&n.flags)
		if atomic.CompareAndSwapUint32(&n.flags, old, old|uint32(f)) {
			return
		}
	}
}

// ClearFlag clears a monitor flag.
func (n *Node) ClearFlag(f Flags) {
	for {
		old := atomic.LoadUint32(&n.flags)
		if atomic.CompareAndSwapUint32(&n.flags, old, old&^uint32(f)) {
			return
		}
	}
}

// HasFlag tests a monitor flag.
func (n *Node) HasFlag(f Flags) bool {
	return atomic.LoadUint32(&n.flags)&uint32(f) != 0
}

// Level returns the lexical level of the node's range.
func (n *Node) Level() int {
	if n.Table == nil {
		return 0
	}
	return n.Table.Level
}

func (n *Node) String() string {
	if n == nil {
		return "<nil node>"
	}
	if n.Symbol != "" {
		return fmt.Sprintf("(%s %s)@%s", n.Attr, n.Symbol, n.Pos)
	}
	return fmt.Sprintf("(%s)@%s", n.Attr, n.Pos)
}

// --- Trees -----------------------------------------------------------------

// Tree is a syntax tree with a registry of its nodes, indexed by node ID.
// Values referring to nodes at run time (e.g. procedures) store node IDs.
type Tree struct {
	Root  *Node
	nodes []*Node
}

// NewTree numbers the nodes of a tree and links them to their parents.
func NewTree(root *Node) *Tree {
	tree := &Tree{Root: root, nodes: []*Node{nil}}
	Walk(root, func(n *Node) bool {
		n.ID = len(tree.nodes)
		tree.nodes = append(tree.nodes, n)
		for _, ch := range n.Children {
			ch.Parent = n
		}
		return true
	})
	return tree
}

// Node returns the node with a given ID, or nil.
func (t *Tree) Node(id int) *Node {
	if id <= 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int {
	return len(t.nodes) - 1
}
