package syntax

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/npillmayer/genie/mode"
)

// Symbol tables for declared entities. Symbol tables are attached to ranges.
// Ranges are organized in a tree, with the standard environment at its root.
//

// --- Tags -------------------------------------------------------

// TagKind is the kind of a declared entity.
type TagKind int8

// Kinds of tags. Every symbol table keeps a separate list per kind.
const (
	TagIdentifier TagKind = iota
	TagOperator
	TagIndicant
	TagLabel
	TagPriority
	TagAnonymous
	kindCount
)

var tagKindNames = [...]string{"identifier", "operator", "indicant", "label", "priority", "anonymous"}

func (k TagKind) String() string {
	if k >= 0 && int(k) < len(tagKindNames) {
		return tagKindNames[k]
	}
	return fmt.Sprintf("tagkind(%d)", int8(k))
}

// Tag is the type of entities stored into symbol tables. As with Symbol, I
// prefer the name 'Tag' because grammars and parse trees have symbols, too.
// Tags are used during binding and at run time of the client program.
//
type Tag struct {
	name      string
	Kind      TagKind
	Node      *Node        // declaring node
	Mode      *mode.Mode   // resolved mode, nil until resolved
	Offset    int          // storage offset within the frame of Table
	HasOffset bool         // false for tags denoting compile-time values
	Heap      bool         // generator allocates on the heap
	Used      bool         // has been applied at least once
	Loc       *Tag         // implicit storage cell of a stack-local variable
	Priority  int          // priority of dyadic operators
	Table     *SymbolTable // table the tag has been declared in
	Next      *Tag         // next tag of the same kind in Table
	UData     interface{}  // user data; standard environment entries carry a key
}

// NewTag creates a new tag.
func NewTag(nm string, kind TagKind) *Tag {
	var tag = &Tag{
		name: nm,
		Kind: kind,
	}
	return tag
}

// WithMode sets the initial mode of a tag. Use as
//
//    tag := NewTag("x", TagIdentifier).WithMode(modes.INT)
//
func (t *Tag) WithMode(m *mode.Mode) *Tag {
	t.Mode = m
	return t
}

// String is a debug Stringer for tags.
func (t *Tag) String() string {
	return fmt.Sprintf("<%s '%s':%v>", t.Kind, t.Name(), t.Mode)
}

// Name gets the tag's name.
func (t *Tag) Name() string {
	return t.name
}

// Size returns the storage a tag occupies in its frame.
func (t *Tag) Size() int {
	if t.Mode == nil {
		return 0
	}
	return t.Mode.Size()
}

// === Symbol Tables =========================================================

type tagKey struct {
	name string
	kind TagKind
}

// SymbolTable is the table of declared entities of one lexical range.
// Tags of one kind form a list in order of declaration; an index provides
// lookup by name.
type SymbolTable struct {
	heads [kindCount]*Tag
	tails [kindCount]*Tag
	index map[tagKey][]*Tag

	Previous       *SymbolTable // lexically enclosing table
	Outer          *SymbolTable // nearest enclosing routine-text table or the program table
	Node           *Node        // node introducing the range
	Nest           int          // serial number, for diagnostics
	Level          int          // lexical level
	ParameterLevel int          // lexical level of the parameters of the enclosing routine
	IsRoutine      bool         // range of a routine text
	FrameIncrement int          // aligned storage required by this range
}

// NewSymbolTable creates an empty symbol table, nested into prev.
//
func NewSymbolTable(prev *SymbolTable, node *Node) *SymbolTable {
	var symtab = SymbolTable{
		index:    make(map[tagKey][]*Tag),
		Previous: prev,
		Node:     node,
	}
	if prev != nil {
		symtab.Level = prev.Level + 1
		symtab.ParameterLevel = prev.ParameterLevel
	}
	return &symtab
}

func (t *SymbolTable) String() string {
	return fmt.Sprintf("<table #%d level %d>", t.Nest, t.Level)
}

// namespace lists the kinds which clash with a tag of kind k. Identifiers
// and labels share a name space; operators are overloaded and never clash
// at insertion.
func namespace(k TagKind) []TagKind {
	switch k {
	case TagIdentifier, TagLabel:
		return []TagKind{TagIdentifier, TagLabel}
	case TagIndicant, TagPriority:
		return []TagKind{k}
	}
	return nil
}

// Insert appends a tag to the list of its kind. If a tag of a clashing kind
// with the same name is already present in this table, it is returned.
// The new tag is appended nevertheless, so that it gets storage; lookup
// will continue to find the first one.
//
func (t *SymbolTable) Insert(tag *Tag) *Tag {
	var clash *Tag
	if tag.Kind != TagAnonymous {
		for _, k := range namespace(tag.Kind) {
			if old := t.Lookup(tag.name, k); old != nil {
				clash = old
				break
			}
		}
		key := tagKey{tag.name, tag.Kind}
		t.index[key] = append(t.index[key], tag)
	}
	tag.Table = t
	tag.Next = nil
	if t.tails[tag.Kind] == nil {
		t.heads[tag.Kind] = tag
	} else {
		t.tails[tag.Kind].Next = tag
	}
	t.tails[tag.Kind] = tag
	return clash
}

// Lookup checks for a tag in this table only. Returns a tag or nil.
//
func (t *SymbolTable) Lookup(tagname string, kind TagKind) *Tag {
	if tags := t.index[tagKey{tagname, kind}]; len(tags) > 0 {
		return tags[0]
	}
	return nil
}

// Overloads returns all operator tags of a given symbol in this table.
func (t *SymbolTable) Overloads(symbol string) []*Tag {
	return t.index[tagKey{symbol, TagOperator}]
}

// Resolve finds a tag, searching this table first and then the enclosing ones.
// Returns the tag (or nil) and the table the tag was found in.
//
func (t *SymbolTable) Resolve(tagname string, kind TagKind) (*Tag, *SymbolTable) {
	for s := t; s != nil; s = s.Previous {
		if tag := s.Lookup(tagname, kind); tag != nil {
			return tag, s
		}
	}
	return nil, nil
}

// FindInEnclosing searches the tables enclosing t for a tag, skipping t itself
// and the outermost (standard) table. It is used to detect shadowing.
func (t *SymbolTable) FindInEnclosing(tagname string, kind TagKind) *Tag {
	for s := t.Previous; s != nil && s.Previous != nil; s = s.Previous {
		if tag := s.Lookup(tagname, kind); tag != nil {
			return tag
		}
	}
	return nil
}

// First returns the first tag of a kind; continue with tag.Next.
func (t *SymbolTable) First(kind TagKind) *Tag {
	return t.heads[kind]
}

// Each iterates over each tag of a kind, in order of declaration.
func (t *SymbolTable) Each(kind TagKind, mapper func(*Tag)) {
	for tag := t.heads[kind]; tag != nil; tag = tag.Next {
		mapper(tag)
	}
}

// Size counts the tags of a kind.
func (t *SymbolTable) Size(kind TagKind) int {
	n := 0
	t.Each(kind, func(*Tag) { n++ })
	return n
}

// IsAncestorOf is a predicate: is t an enclosing table of other, or other itself?
func (t *SymbolTable) IsAncestorOf(other *SymbolTable) bool {
	for s := other; s != nil; s = s.Previous {
		if s == t {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------

// ScopeTree can be treated as a stack during static analysis, thus
// building a tree from tables which are pushed an popped to/from the stack.
// The stack is kept separately from the Previous links, as a range may be
// nested into a table which is not the enclosing node's one (see loops).
//
type ScopeTree struct {
	base   *SymbolTable
	stack  *arraystack.Stack
	serial int
}

// NewScopeTree creates a scope tree with the given table as its base.
func NewScopeTree(base *SymbolTable) *ScopeTree {
	sc := &ScopeTree{base: base, stack: arraystack.New()}
	sc.stack.Push(base)
	return sc
}

// Current gets the current table of a stack (TOS).
func (scst *ScopeTree) Current() *SymbolTable {
	tos, ok := scst.stack.Peek()
	if !ok {
		panic("attempt to access symbol table from empty stack")
	}
	return tos.(*SymbolTable)
}

// Globals gets the outermost table.
func (scst *ScopeTree) Globals() *SymbolTable {
	return scst.base
}

// PushNewTable constructs a table nested into prev and pushes it onto the stack.
// prev is usually Current(), see Push.
func (scst *ScopeTree) PushNewTable(prev *SymbolTable, node *Node) *SymbolTable {
	newtab := NewSymbolTable(prev, node)
	scst.serial++
	newtab.Nest = scst.serial
	scst.stack.Push(newtab)
	tracer().P("table", newtab.Nest).Debugf("pushing new table at level %d", newtab.Level)
	return newtab
}

// Push pushes a new table nested into the current one.
func (scst *ScopeTree) Push(node *Node) *SymbolTable {
	return scst.PushNewTable(scst.Current(), node)
}

// PopTable pops the top-most (recent) table.
func (scst *ScopeTree) PopTable() *SymbolTable {
	tos, ok := scst.stack.Pop()
	if !ok {
		panic("attempt to pop symbol table from empty stack")
	}
	symtab := tos.(*SymbolTable)
	tracer().Debugf("popping table [%d]", symtab.Nest)
	return symtab
}
