package bind

import (
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// collectIndicants enters mode declarations into the tables of their ranges
// and defines the modes. Indicants may be applied before they are declared,
// therefore all of them are entered as pending modes first.
func (b *Binder) collectIndicants() {
	for _, tab := range b.tables {
		tab := tab
		syntax.RangeOf(tab.Node, func(n *syntax.Node) {
			if n.Attr != syntax.ModeDecl {
				return
			}
			tag := syntax.NewTag(n.Symbol, syntax.TagIndicant).WithMode(b.modes.Indicant(n.Symbol))
			b.declare(tab, tag, n)
			if tag.Mode.IsPending() {
				b.modeDecls = append(b.modeDecls, tag)
			}
		})
	}
	visiting := make(map[*syntax.Tag]bool)
	for _, tag := range b.modeDecls {
		b.defineIndicant(tag, visiting)
	}
	for _, tag := range b.modeDecls {
		if _, err := mode.Sizeof(tag.Mode); err != nil {
			b.errorf(tag.Node.Pos, CyclicMode, "mode %s has no finite size: %v", tag.Name(), err)
			tag.Mode.Define(b.modes.ERROR)
		}
	}
}

// defineIndicant resolves the declarer of a mode declaration. A declarer
// which is an indicant itself (MODE A = B) needs B to be defined first,
// otherwise A would copy a pending mode; cycles of such aliases are errors.
func (b *Binder) defineIndicant(tag *syntax.Tag, visiting map[*syntax.Tag]bool) {
	m := tag.Mode
	if !m.IsPending() {
		return
	}
	if visiting[tag] {
		b.errorf(tag.Node.Pos, CyclicMode, "mode %s is defined in terms of itself", tag.Name())
		m.Define(b.modes.ERROR)
		return
	}
	visiting[tag] = true
	defer delete(visiting, tag)
	decl := tag.Node.Child(0)
	if decl.Attr == syntax.Indicant {
		if other, _ := decl.Table.Resolve(decl.Symbol, syntax.TagIndicant); other != nil && other.Node != nil {
			b.defineIndicant(other, visiting)
		}
	}
	if !m.IsPending() { // defined meanwhile, due to a cycle
		return
	}
	def := b.declarer(decl)
	if def.IsPending() {
		def = b.modes.ERROR
	}
	m.Define(def)
	tracer().Debugf("mode %s = %v", tag.Name(), m)
}

// declarer computes the mode of a declarer node and annotates the node.
func (b *Binder) declarer(n *syntax.Node) *mode.Mode {
	if n.Mode != nil {
		return n.Mode
	}
	var m *mode.Mode
	switch n.Attr {
	case syntax.Indicant:
		tag, _ := n.Table.Resolve(n.Symbol, syntax.TagIndicant)
		if tag == nil {
			b.errorf(n.Pos, Undeclared, "mode indicant %s has not been declared", n.Symbol)
			tag = syntax.NewTag(n.Symbol, syntax.TagIndicant).WithMode(b.modes.ERROR)
			tag.Node = n
			n.Table.Insert(tag)
		}
		tag.Used = true
		n.Tag = tag
		m = tag.Mode
	case syntax.RefDecl:
		m = b.modes.RefTo(b.declarer(n.Child(0)))
	case syntax.RowDecl:
		m = b.modes.RowOf(len(n.Children)-1, b.declarer(n.Child(0)))
	case syntax.FlexDecl:
		m = b.modes.FlexOf(b.modes.RowOf(len(n.Children)-1, b.declarer(n.Child(0))))
	case syntax.StructDecl:
		fields := make([]mode.Field, len(n.Children))
		for i, f := range n.Children {
			f.Mode = b.declarer(f.Child(0))
			fields[i] = mode.Field{Name: f.Symbol, Mode: f.Mode}
		}
		m = b.modes.StructOf(fields)
	case syntax.UnionDecl:
		members := make([]*mode.Mode, len(n.Children))
		for i, u := range n.Children {
			members[i] = b.declarer(u)
		}
		m = b.modes.UnionOf(members)
	case syntax.ProcMode:
		result := b.declarer(n.Child(0))
		params := make([]*mode.Mode, 0, len(n.Children)-1)
		for _, p := range n.Children[1:] {
			params = append(params, b.declarer(p))
		}
		m = b.modes.ProcOf(params, result)
	default:
		panic("internal consistency: not a declarer: " + n.String())
	}
	n.Mode = m
	return m
}

// resolveDeclarers annotates all declarers outside of mode declarations
// and computes the modes of routine texts.
func (b *Binder) resolveDeclarers(root *syntax.Node) {
	syntax.Walk(root, func(n *syntax.Node) bool {
		switch {
		case n.Attr == syntax.RoutineText:
			params := make([]*mode.Mode, 0, len(n.Child(0).Children))
			for _, p := range n.Child(0).Children {
				p.Mode = b.declarer(p.Child(0))
				params = append(params, p.Mode)
			}
			n.Mode = b.modes.ProcOf(params, b.declarer(n.Child(1)))
		case n.Attr.IsDeclarer():
			b.declarer(n)
		}
		return true
	})
}
