package bind

import (
	"strings"

	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// CollectDeclarations registers the declarations found directly in the range
// of a table. Identifiers and operators receive storage; their offsets are
// assigned later by AssignOffsets, in the order of registration.
func (b *Binder) CollectDeclarations(tab *syntax.SymbolTable) {
	var params []*syntax.Node
	syntax.RangeOf(tab.Node, func(n *syntax.Node) {
		switch n.Attr {
		case syntax.Identity:
			tag := b.storageTag(n.Symbol, syntax.TagIdentifier, n.Child(0).Mode)
			b.declare(tab, tag, n)
		case syntax.Variable:
			m := n.Child(0).Mode
			tag := b.storageTag(n.Symbol, syntax.TagIdentifier, b.modes.RefTo(m))
			tag.Heap = n.Heap
			b.declare(tab, tag, n)
			if !n.Heap {
				tag.Loc = b.storageTag("", syntax.TagAnonymous, m)
				tag.Loc.Node = n
				tab.Insert(tag.Loc)
			}
		case syntax.ProcDecl:
			tag := b.storageTag(n.Symbol, syntax.TagIdentifier, n.Child(0).Mode)
			b.declare(tab, tag, n)
		case syntax.OpDecl:
			m := n.Child(0).Mode
			if len(m.Params) != 1 && len(m.Params) != 2 {
				b.errorf(n.Pos, Arity, "operator %s must have one or two operands", n.Symbol)
			}
			tag := b.storageTag(n.Symbol, syntax.TagOperator, m)
			b.declare(tab, tag, n)
		case syntax.PrioDecl:
			tag := syntax.NewTag(n.Symbol, syntax.TagPriority)
			tag.Priority, _ = n.Value.(int)
			b.declare(tab, tag, n)
		case syntax.Label:
			b.declare(tab, syntax.NewTag(n.Symbol, syntax.TagLabel), n)
		case syntax.Param:
			params = append(params, n)
		case syntax.ForPart:
			tag := b.storageTag(n.Symbol, syntax.TagIdentifier, b.modes.INT)
			b.declare(tab, tag, n)
			tag.Used = true
			tab.Node.Tag = tag
		case syntax.Generator:
			if !n.Heap {
				tag := b.storageTag("", syntax.TagAnonymous, n.Child(0).Mode)
				tag.Node = n
				n.Tag = tag
				tab.Insert(tag)
			}
		}
	})
	// Parameters are always stack-local; their modes are filled in after the
	// tags have been entered.
	for _, p := range params {
		tag := syntax.NewTag(p.Symbol, syntax.TagIdentifier)
		tag.HasOffset = true
		b.declare(tab, tag, p)
	}
	for _, p := range params {
		if p.Tag.Mode == nil {
			p.Tag.Mode = p.Child(0).Mode
		}
	}
	switch tab.Node.Attr {
	case syntax.Loop:
		if tab.Node.Tag == nil { // anonymous counter
			tag := b.storageTag("", syntax.TagAnonymous, b.modes.INT)
			tag.Node = tab.Node
			tab.Node.Tag = tag
			tab.Insert(tag)
		}
	case syntax.Specifier:
		if tab.Node.Symbol != "" {
			tag := b.storageTag(tab.Node.Symbol, syntax.TagIdentifier, tab.Node.Child(0).Mode)
			b.declare(tab, tag, tab.Node)
		}
	}
}

func (b *Binder) storageTag(name string, kind syntax.TagKind, m *mode.Mode) *syntax.Tag {
	tag := syntax.NewTag(name, kind).WithMode(m)
	tag.HasOffset = true
	return tag
}

// ResolveReferences binds applied identifiers and labels to their tags.
// Operators are identified later, when the modes of their operands are known.
func (b *Binder) ResolveReferences(root *syntax.Node) {
	syntax.Walk(root, func(n *syntax.Node) bool {
		switch n.Attr {
		case syntax.Identifier:
			b.resolveIdentifier(n)
		case syntax.Jump:
			tag, _ := n.Table.Resolve(n.Symbol, syntax.TagLabel)
			if tag == nil {
				b.errorf(n.Pos, Undeclared, "label %s has not been declared", n.Symbol)
			} else {
				tag.Used = true
				n.Tag = tag
			}
		}
		return true
	})
}

func (b *Binder) resolveIdentifier(n *syntax.Node) {
	tag, _ := n.Table.Resolve(n.Symbol, syntax.TagIdentifier)
	if tag == nil {
		tag = b.lookupSizeFamily(n.Symbol)
	}
	if tag == nil {
		if l, _ := n.Table.Resolve(n.Symbol, syntax.TagLabel); l != nil {
			b.errorf(n.Pos, Undeclared, "%s is a label, not an identifier", n.Symbol)
		} else {
			b.errorf(n.Pos, Undeclared, "identifier %s has not been declared", n.Symbol)
		}
		tag = syntax.NewTag(n.Symbol, syntax.TagIdentifier).WithMode(b.modes.ERROR)
		tag.Node = n
		n.Table.Insert(tag)
	}
	tag.Used = true
	n.Tag = tag
}

// lookupSizeFamily maps 'long sqrt', 'short short pi' etc. to the standard
// routine of the unprefixed name, if that one belongs to the size family.
func (b *Binder) lookupSizeFamily(name string) *syntax.Tag {
	base, prefixed := name, false
	for {
		if s := strings.TrimPrefix(base, "long "); s != base {
			base, prefixed = s, true
		} else if s := strings.TrimPrefix(base, "short "); s != base {
			base, prefixed = s, true
		} else {
			break
		}
	}
	if !prefixed || !sizeFamily[base] {
		return nil
	}
	return b.std.Lookup(base, syntax.TagIdentifier)
}
