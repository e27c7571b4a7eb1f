package syntax

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestNewSymTab(t *testing.T) {
	symtab := NewSymbolTable(nil, nil)
	if symtab == nil {
		t.Error("no symbol table created")
	}
	if symtab.Level != 0 {
		t.Errorf("expected outermost table to be at level 0, is %d", symtab.Level)
	}
}

func TestNewSymbol(t *testing.T) {
	symtab := NewSymbolTable(nil, nil)
	sym := NewTag("new-sym", TagIdentifier)
	if clash := symtab.Insert(sym); clash != nil {
		t.Errorf("unexpected clash for first tag: %v", clash)
	}
	sym.UData = 5
	if symtab.Lookup("new-sym", TagIdentifier).UData != 5 {
		t.Errorf("UData does not work")
	}
	if sym.Table != symtab {
		t.Errorf("tag should know its table")
	}
}

func TestInsertClash(t *testing.T) {
	symtab := NewSymbolTable(nil, nil)
	first := NewTag("x", TagIdentifier)
	symtab.Insert(first)
	if clash := symtab.Insert(NewTag("x", TagLabel)); clash != first {
		t.Errorf("label x should clash with identifier x, clash = %v", clash)
	}
	if n := symtab.Size(TagLabel); n != 1 {
		t.Errorf("clashing tag should have been appended anyway, have %d labels", n)
	}
	if symtab.Lookup("x", TagIdentifier) != first {
		t.Errorf("lookup should continue to find the first tag")
	}
}

func TestOperatorsOverload(t *testing.T) {
	symtab := NewSymbolTable(nil, nil)
	symtab.Insert(NewTag("+", TagOperator))
	if clash := symtab.Insert(NewTag("+", TagOperator)); clash != nil {
		t.Errorf("operators should not clash on insertion")
	}
	if len(symtab.Overloads("+")) != 2 {
		t.Errorf("expected 2 overloads of +")
	}
}

func TestDeclarationOrder(t *testing.T) {
	symtab := NewSymbolTable(nil, nil)
	for _, n := range []string{"a", "b", "c"} {
		symtab.Insert(NewTag(n, TagIdentifier))
	}
	symtab.Insert(NewTag("", TagAnonymous))
	var names string
	symtab.Each(TagIdentifier, func(tag *Tag) { names += tag.Name() })
	if names != "abc" {
		t.Errorf("expected tags in order of declaration, have %q", names)
	}
	if symtab.Size(TagAnonymous) != 1 {
		t.Errorf("anonymous tag missing")
	}
}

func TestScopeUpsearch(t *testing.T) {
	parent := NewSymbolTable(nil, nil)
	current := NewSymbolTable(parent, nil)
	parent.Insert(NewTag("new-sym", TagIdentifier))
	if sym, where := current.Resolve("new-sym", TagIdentifier); sym == nil || where != parent {
		t.Errorf("expected to find symbol in parent table")
	}
	if !parent.IsAncestorOf(current) || current.IsAncestorOf(parent) {
		t.Errorf("ancestry of tables not recognized")
	}
}

func TestScopeTree(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.syntax")
	defer teardown()
	//
	globals := NewSymbolTable(nil, nil)
	sc := NewScopeTree(globals)
	t1 := sc.Push(nil)
	t2 := sc.Push(nil)
	if t2.Previous != t1 || t2.Level != 2 {
		t.Errorf("expected nested table at level 2, is at %d", t2.Level)
	}
	if t1.Nest == t2.Nest {
		t.Errorf("tables should have distinct serial numbers")
	}
	sc.PopTable()
	if sc.Current() != t1 {
		t.Errorf("expected table 1 to be TOS")
	}
	sc.PopTable()
	if sc.Current() != sc.Globals() {
		t.Errorf("expected globals to be TOS")
	}
}
