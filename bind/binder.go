package bind

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
	"github.com/npillmayer/schuko/gconf"
)

// ErrInternal is returned from Bind if the standard environment turns out
// to be inconsistent. It denotes an implementation error rather than an error
// of the program.
var ErrInternal = errors.New("internal consistency")

// Binder binds syntax trees. A binder is used for one tree only.
type Binder struct {
	modes      *mode.Table
	std        *syntax.SymbolTable
	program    *syntax.SymbolTable
	tables     []*syntax.SymbolTable // in order of nesting index
	modeDecls  []*syntax.Tag
	diags      *treeset.Set
	seq        int
	warnUnused bool
}

// Option configures a binder.
type Option func(*Binder)

// WarnUnused switches warnings about unused declarations on or off.
// The default is taken from configuration key 'warn-unused'.
func WarnUnused(on bool) Option {
	return func(b *Binder) {
		b.warnUnused = on
	}
}

// WithModes lets the binder use an existing mode table.
func WithModes(modes *mode.Table) Option {
	return func(b *Binder) {
		b.modes = modes
	}
}

// NewBinder creates a binder, including a fresh standard environment.
func NewBinder(opts ...Option) *Binder {
	b := &Binder{
		diags:      newDiagnostics(),
		warnUnused: gconf.GetBool("warn-unused"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.modes == nil {
		b.modes = mode.NewTable()
	}
	b.std = StandardEnvironment(b.modes)
	return b
}

// Result is the outcome of binding a tree.
type Result struct {
	Tree     *syntax.Tree
	Modes    *mode.Table
	Standard *syntax.SymbolTable   // level 0 table
	Program  *syntax.SymbolTable   // table of the program node
	Tables   []*syntax.SymbolTable // all tables of the program, in nesting order
	diags    []Diagnostic
}

// Diagnostics returns the messages of the binder, ordered by source position.
func (r *Result) Diagnostics() []Diagnostic {
	return r.diags
}

// Errors counts the diagnostics of severity error or worse.
func (r *Result) Errors() int {
	n := 0
	for _, d := range r.diags {
		if d.Severity >= genie.Error {
			n++
		}
	}
	return n
}

// Err returns an error summarizing the diagnostics, or nil if binding found
// no errors.
func (r *Result) Err() error {
	n := r.Errors()
	if n == 0 {
		return nil
	}
	for _, d := range r.diags {
		if d.Severity >= genie.Error {
			return fmt.Errorf("%d error(s), first at %s: %s", n, d.Pos, d.Message)
		}
	}
	return nil
}

// Bind binds the tree rooted at prog.
//
// Errors in the program do not make Bind fail; they are reported as
// diagnostics of the result. Bind returns an error only for an inconsistent
// standard environment (ErrInternal).
func Bind(prog *syntax.Node, opts ...Option) (*Result, error) {
	return NewBinder(opts...).Bind(prog)
}

// Bind runs the binding passes on the tree rooted at prog.
func (b *Binder) Bind(prog *syntax.Node) (*Result, error) {
	if prog == nil || prog.Attr != syntax.Program {
		return nil, fmt.Errorf("bind: expected a program node, have %s", prog)
	}
	tree := syntax.NewTree(prog)
	tracer().Infof("binding tree of %d nodes", tree.Size())
	b.buildTables(prog)
	b.collectIndicants()
	b.resolveDeclarers(prog)
	for _, tab := range b.tables {
		b.CollectDeclarations(tab)
	}
	b.ResolveReferences(prog)
	b.deriveModes(prog)
	if err := b.check(prog); err != nil {
		return nil, err
	}
	for _, tab := range b.tables {
		AssignOffsets(tab)
	}
	r := &Result{
		Tree:     tree,
		Modes:    b.modes,
		Standard: b.std,
		Program:  b.program,
		Tables:   b.tables,
	}
	for _, d := range b.diags.Values() {
		r.diags = append(r.diags, d.(Diagnostic))
	}
	tracer().Infof("binding done, %d diagnostic(s), %d error(s)", len(r.diags), r.Errors())
	return r, nil
}

// --- Tables ----------------------------------------------------------------

// buildTables creates a table for every node introducing a new lexical level.
// Every node is linked to the table of its range.
//
// The DO part of a loop is nested into the table of the WHILE part, if there
// is one, making declarations of the WHILE part visible in the body.
func (b *Binder) buildTables(root *syntax.Node) {
	sc := syntax.NewScopeTree(b.std)
	whileOf := make(map[*syntax.Node]*syntax.SymbolTable)
	syntax.Traverse(root, func(n *syntax.Node) bool {
		if !n.NewLevel {
			n.Table = sc.Current()
			return true
		}
		prev := sc.Current()
		if n.Attr == syntax.DoPart {
			if w, ok := whileOf[n.Parent]; ok {
				prev = w
			}
		}
		tab := sc.PushNewTable(prev, n)
		switch n.Attr {
		case syntax.Program:
			b.program = tab
			tab.ParameterLevel = tab.Level
		case syntax.RoutineText:
			tab.IsRoutine = true
			tab.ParameterLevel = tab.Level
		}
		tab.Outer = outerOf(tab)
		n.Table = tab
		b.tables = append(b.tables, tab)
		return true
	}, func(n *syntax.Node) {
		if n.NewLevel {
			tab := sc.PopTable()
			if n.Attr == syntax.WhilePart {
				whileOf[n.Parent] = tab
			}
		}
	})
}

// outerOf finds the nearest enclosing table of a routine text, or the
// program table.
func outerOf(tab *syntax.SymbolTable) *syntax.SymbolTable {
	for s := tab.Previous; s != nil; s = s.Previous {
		if s.IsRoutine || s.Node != nil && s.Node.Attr == syntax.Program {
			return s
		}
	}
	return tab.Previous
}

// declare inserts a tag into a table and reports clashes and shadowing.
func (b *Binder) declare(tab *syntax.SymbolTable, tag *syntax.Tag, n *syntax.Node) {
	tag.Node = n
	n.Tag = tag
	if clash := tab.Insert(tag); clash != nil {
		b.errorf(n.Pos, Duplicate, "%s %q is already declared in this range", clash.Kind, tag.Name())
		tag.Mode = b.modes.ERROR
		tag.HasOffset = false
		tag.Used = true
		return
	}
	switch tag.Kind {
	case syntax.TagIdentifier, syntax.TagIndicant, syntax.TagLabel:
		if other := tab.FindInEnclosing(tag.Name(), tag.Kind); other != nil {
			b.warnf(n.Pos, Shadowed, "%s %q hides a declaration of an enclosing range", tag.Kind, tag.Name())
		}
	}
}
