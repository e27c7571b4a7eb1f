package bind

import (
	"fmt"

	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// check performs the consistency checks on declarers and operator
// declarations. It returns ErrInternal if the standard environment holds
// operators which cannot be told apart.
func (b *Binder) check(root *syntax.Node) error {
	if err := b.checkOperators(b.std, true); err != nil {
		return err
	}
	for _, tab := range b.tables {
		b.checkOperators(tab, false)
	}
	syntax.Walk(root, func(n *syntax.Node) bool {
		switch n.Attr {
		case syntax.StructDecl:
			b.checkFields(n)
		case syntax.UnionDecl:
			b.checkUnion(n)
		case syntax.Jump:
			b.checkJump(n)
		case syntax.Display:
			b.checkDisplay(n)
		}
		return true
	})
	if b.warnUnused {
		b.checkUnused()
	}
	return nil
}

// checkFields reports duplicate field names, once per group of duplicates.
func (b *Binder) checkFields(n *syntax.Node) {
	count := make(map[string]int)
	for _, f := range n.Children {
		count[f.Symbol]++
	}
	for _, f := range n.Children {
		if c := count[f.Symbol]; c > 1 {
			b.errorf(f.Pos, DuplicateField, "field %s appears %d times in structured mode", f.Symbol, c)
			count[f.Symbol] = 0
		}
	}
}

// checkUnion reports unions which have only one member or firmly related
// members. The declared members are examined, not the flattened mode.
func (b *Binder) checkUnion(n *syntax.Node) {
	var members []*mode.Mode
	for _, d := range n.Children {
		if d.Mode == nil || d.Mode.Kind == mode.Error {
			return
		}
		members = append(members, d.Mode)
	}
	distinct := 0
	for i, u := range members {
		dup := false
		for _, v := range members[:i] {
			if mode.Equivalent(u, v) {
				dup = true
				break
			}
		}
		if !dup {
			distinct++
		}
	}
	if distinct < 2 {
		b.errorf(n.Pos, AmbiguousUnion, "united mode %v has fewer than two members", n.Mode)
		return
	}
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if !mode.Equivalent(members[i], members[j]) && mode.FirmlyRelated(members[i], members[j]) {
				b.errorf(n.Pos, AmbiguousUnion, "united mode %v has firmly related members %v and %v",
					n.Mode, members[i], members[j])
				return
			}
		}
	}
}

// operandsRelated is true if two operator declarations cannot be told apart
// by the modes of their operands.
func operandsRelated(a, b *syntax.Tag) bool {
	if a.Mode == nil || b.Mode == nil || a.Mode.Kind != mode.Proc || b.Mode.Kind != mode.Proc {
		return false
	}
	pa, pb := a.Mode.Params, b.Mode.Params
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if !mode.FirmlyRelated(pa[i], pb[i]) {
			return false
		}
	}
	return true
}

// checkOperators compares the operator declarations of a table among each
// other and with those of enclosing tables. Declarations of the standard
// environment are not compared with user declarations: a user operator may
// hide a standard one.
func (b *Binder) checkOperators(tab *syntax.SymbolTable, standard bool) error {
	var ops []*syntax.Tag
	tab.Each(syntax.TagOperator, func(tag *syntax.Tag) {
		ops = append(ops, tag)
	})
	for i, op := range ops {
		for _, other := range ops[:i] {
			if other.Name() != op.Name() || !operandsRelated(op, other) {
				continue
			}
			if standard {
				return fmt.Errorf("%w: standard operators %s of modes %v and %v are ambiguous",
					ErrInternal, op.Name(), op.Mode, other.Mode)
			}
			b.errorf(op.Node.Pos, AmbiguousOperator, "operator %s of mode %v is ambiguous with a declaration of mode %v",
				op.Name(), op.Mode, other.Mode)
		}
		if standard {
			continue
		}
		for s := tab.Previous; s != nil && s != b.std; s = s.Previous {
			for _, other := range s.Overloads(op.Name()) {
				if operandsRelated(op, other) {
					b.errorf(op.Node.Pos, AmbiguousOperator, "operator %s of mode %v is ambiguous with a declaration in an enclosing range",
						op.Name(), op.Mode)
				}
			}
		}
	}
	return nil
}

// checkJump rejects jumps to a label inside a unit of a parallel clause from
// outside of that unit.
func (b *Binder) checkJump(n *syntax.Node) {
	if n.Tag == nil || n.Tag.Node == nil {
		return
	}
	for u := n.Tag.Node; u.Parent != nil; u = u.Parent {
		if u.Parent.Attr != syntax.Parallel {
			continue
		}
		if !isAncestor(u, n) {
			b.errorf(n.Pos, JumpIntoParallel, "jump to label %s inside another unit of a parallel clause", n.Symbol)
			return
		}
	}
}

func isAncestor(a, n *syntax.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}

// checkUnused warns about declarations of the program which are never applied.
func (b *Binder) checkUnused() {
	for _, tab := range b.tables {
		tab.Each(syntax.TagIdentifier, func(tag *syntax.Tag) {
			if !tag.Used && tag.Node != nil && tag.Node.Attr != syntax.Param {
				b.warnf(tag.Node.Pos, Unused, "identifier %s is never used", tag.Name())
			}
		})
		tab.Each(syntax.TagOperator, func(tag *syntax.Tag) {
			if !tag.Used && tag.Node != nil {
				b.warnf(tag.Node.Pos, Unused, "operator %s is never used", tag.Name())
			}
		})
	}
}
