package syntax

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/npillmayer/genie"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// Tree descriptions are s-expressions, one list per node:
//
//    (program (block
//        (variable loc INT x (int 1))
//        (assign (id x) (dyadic + (id x) (int 2)))))
//
// The head of a list is the keyword of a node attribute. Declarers are
// atoms (indicants) or lists headed by ref, row, flex, struct, union or proc.

const (
	tokOpen = iota + 1
	tokClose
	tokString
	tokAtom
)

var lexerOnce sync.Once
var lexer *lexmachine.Lexer
var lexerErr error

func treeLexer() (*lexmachine.Lexer, error) {
	lexerOnce.Do(func() {
		lexer = lexmachine.NewLexer()
		lexer.Add([]byte(`;[^\n]*\n?`), skip) // comments
		lexer.Add([]byte(`\(`), token(tokOpen))
		lexer.Add([]byte(`\)`), token(tokClose))
		lexer.Add([]byte(`\"[^"]*\"`), token(tokString))
		lexer.Add([]byte(`[^ \t\r\n\(\)\";]+`), token(tokAtom))
		lexer.Add([]byte(`( |\t|\n|\r)+`), skip)
		if lexerErr = lexer.Compile(); lexerErr != nil {
			tracer().Errorf("error compiling DFA: %v", lexerErr)
		}
	})
	return lexer, lexerErr
}

func skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

func token(id int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(id, string(m.Bytes), m), nil
	}
}

// sexpr is an atom, a string or a list.
type sexpr struct {
	atom string
	str  bool
	list []*sexpr
	pos  genie.Pos
	leaf bool
}

func (e *sexpr) head() string {
	if e.leaf || len(e.list) == 0 || !e.list[0].leaf {
		return ""
	}
	return e.list[0].atom
}

func (e *sexpr) args() []*sexpr {
	if e.leaf || len(e.list) == 0 {
		return nil
	}
	return e.list[1:]
}

func (e *sexpr) String() string {
	if e.leaf {
		if e.str {
			return strconv.Quote(e.atom)
		}
		return e.atom
	}
	parts := make([]string, len(e.list))
	for i, x := range e.list {
		parts[i] = x.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// readSexpr scans the input and builds a single s-expression.
func readSexpr(input string) (*sexpr, error) {
	lx, err := treeLexer()
	if err != nil {
		return nil, err
	}
	scanner, err := lx.Scanner([]byte(input))
	if err != nil {
		return nil, err
	}
	var open []*sexpr
	var top *sexpr
	for tok, err, eof := scanner.Next(); !eof; tok, err, eof = scanner.Next() {
		if err != nil {
			return nil, fmt.Errorf("tree description: %v", err)
		}
		t := tok.(*lexmachine.Token)
		pos := genie.Pos{Line: t.StartLine, Column: t.StartColumn}
		switch t.Type {
		case tokOpen:
			open = append(open, &sexpr{pos: pos})
		case tokClose:
			if len(open) == 0 {
				return nil, fmt.Errorf("%s: unbalanced ')'", pos)
			}
			list := open[len(open)-1]
			open = open[:len(open)-1]
			if len(open) == 0 {
				if top != nil {
					return nil, fmt.Errorf("%s: more than one top-level expression", list.pos)
				}
				top = list
			} else {
				parent := open[len(open)-1]
				parent.list = append(parent.list, list)
			}
		case tokString, tokAtom:
			lexeme := string(t.Lexeme)
			leaf := &sexpr{atom: lexeme, leaf: true, pos: pos}
			if t.Type == tokString {
				leaf.atom, leaf.str = lexeme[1:len(lexeme)-1], true
			}
			if len(open) == 0 {
				return nil, fmt.Errorf("%s: atom %q outside of list", pos, lexeme)
			}
			parent := open[len(open)-1]
			parent.list = append(parent.list, leaf)
		}
	}
	if len(open) > 0 {
		return nil, fmt.Errorf("%s: unbalanced '('", open[len(open)-1].pos)
	}
	if top == nil {
		return nil, fmt.Errorf("empty tree description")
	}
	return top, nil
}

// ReadTree reads a tree description and returns the syntax tree it describes.
// The outermost list must be a program.
func ReadTree(input string) (*Tree, error) {
	e, err := readSexpr(input)
	if err != nil {
		return nil, err
	}
	if e.head() != "program" {
		return nil, fmt.Errorf("%s: tree description must start with 'program'", e.pos)
	}
	root, err := readUnit(e)
	if err != nil {
		return nil, err
	}
	tracer().Debugf("read tree description with root %s", root)
	return NewTree(root), nil
}

func syntaxErr(e *sexpr, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s in %s", e.pos, fmt.Sprintf(format, args...), e)
}

func wantArgs(e *sexpr, min, max int) ([]*sexpr, error) {
	args := e.args()
	if len(args) < min || (max >= 0 && len(args) > max) {
		return nil, syntaxErr(e, "wrong number of arguments for '%s'", e.head())
	}
	return args, nil
}

// name reads an atom or a string as a name.
func name(e *sexpr) (string, error) {
	if !e.leaf {
		return "", syntaxErr(e, "expected a name")
	}
	return e.atom, nil
}

func qualifier(e *sexpr) (bool, error) {
	switch {
	case e.leaf && e.atom == "loc":
		return false, nil
	case e.leaf && e.atom == "heap":
		return true, nil
	}
	return false, syntaxErr(e, "expected 'loc' or 'heap'")
}

func at(n *Node, e *sexpr) *Node {
	n.Pos = e.pos
	return n
}

func readUnits(es []*sexpr) ([]*Node, error) {
	nodes := make([]*Node, 0, len(es))
	for _, x := range es {
		n, err := readUnit(x)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// readUnit converts a unit, a declaration or a clause.
func readUnit(e *sexpr) (*Node, error) {
	if e.leaf {
		return nil, syntaxErr(e, "expected a list")
	}
	switch h := e.head(); h {
	case "program":
		args, err := wantArgs(e, 1, 1)
		if err != nil {
			return nil, err
		}
		u, err := readUnit(args[0])
		if err != nil {
			return nil, err
		}
		return at(NewNode(Program, "", u), e), nil
	case "block", "display", "par":
		units, err := readUnits(e.args())
		if err != nil {
			return nil, err
		}
		attr := map[string]Attribute{"block": Block, "display": Display, "par": Parallel}[h]
		return at(NewNode(attr, "", units...), e), nil
	case "identity":
		args, err := wantArgs(e, 3, 3)
		if err != nil {
			return nil, err
		}
		return readNamed(e, Identity, args[1], args[0], args[2])
	case "variable":
		args, err := wantArgs(e, 3, 4)
		if err != nil {
			return nil, err
		}
		heap, err := qualifier(args[0])
		if err != nil {
			return nil, err
		}
		var n *Node
		if len(args) == 4 {
			n, err = readNamed(e, Variable, args[2], args[1], args[3])
		} else {
			n, err = readNamed(e, Variable, args[2], args[1], nil)
		}
		if n != nil {
			n.Heap = heap
		}
		return n, err
	case "procedure", "operator":
		args, err := wantArgs(e, 2, 2)
		if err != nil {
			return nil, err
		}
		sym, err := name(args[0])
		if err != nil {
			return nil, err
		}
		if args[1].head() != "routine" {
			return nil, syntaxErr(e, "expected a routine text")
		}
		r, err := readUnit(args[1])
		if err != nil {
			return nil, err
		}
		attr := ProcDecl
		if h == "operator" {
			attr = OpDecl
		}
		return at(NewNode(attr, sym, r), e), nil
	case "priority":
		args, err := wantArgs(e, 2, 2)
		if err != nil {
			return nil, err
		}
		sym, err := name(args[0])
		if err != nil {
			return nil, err
		}
		p, err := strconv.Atoi(args[1].atom)
		if err != nil || p < 1 || p > 9 {
			return nil, syntaxErr(e, "priority must be a number 1…9")
		}
		n := at(NewNode(PrioDecl, sym), e)
		n.Value = p
		return n, nil
	case "mode":
		args, err := wantArgs(e, 2, 2)
		if err != nil {
			return nil, err
		}
		sym, err := name(args[0])
		if err != nil {
			return nil, err
		}
		d, err := readDeclarer(args[1])
		if err != nil {
			return nil, err
		}
		return at(NewNode(ModeDecl, sym, d), e), nil
	case "label", "goto", "id", "for":
		args, err := wantArgs(e, 1, 1)
		if err != nil {
			return nil, err
		}
		sym, err := name(args[0])
		if err != nil {
			return nil, err
		}
		attr := map[string]Attribute{"label": Label, "goto": Jump, "id": Identifier, "for": ForPart}[h]
		return at(NewNode(attr, sym), e), nil
	case "skip", "nil":
		if _, err := wantArgs(e, 0, 0); err != nil {
			return nil, err
		}
		if h == "skip" {
			return at(NewNode(Skip, ""), e), nil
		}
		return at(NewNode(Nihil, ""), e), nil
	case "routine":
		return readRoutine(e)
	case "int", "real", "bool", "char", "string":
		return readDenotation(e)
	case "dyadic", "monadic":
		args, err := wantArgs(e, 2, 3)
		if err != nil {
			return nil, err
		}
		if (h == "dyadic") != (len(args) == 3) {
			return nil, syntaxErr(e, "wrong number of operands")
		}
		sym, err := name(args[0])
		if err != nil {
			return nil, err
		}
		operands, err := readUnits(args[1:])
		if err != nil {
			return nil, err
		}
		if h == "dyadic" {
			return at(NewNode(Formula, sym, operands...), e), nil
		}
		return at(NewNode(Monadic, sym, operands...), e), nil
	case "assign":
		args, err := wantArgs(e, 2, 2)
		if err != nil {
			return nil, err
		}
		units, err := readUnits(args)
		if err != nil {
			return nil, err
		}
		return at(NewNode(Assignation, "", units...), e), nil
	case "call":
		args, err := wantArgs(e, 1, -1)
		if err != nil {
			return nil, err
		}
		units, err := readUnits(args)
		if err != nil {
			return nil, err
		}
		return at(NewNode(Call, "", units...), e), nil
	case "slice":
		return readSlice(e)
	case "trim":
		args, err := wantArgs(e, 0, 3)
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			return nil, syntaxErr(e, "a trimmer needs both bounds")
		}
		units, err := readUnits(args)
		if err != nil {
			return nil, err
		}
		return at(NewNode(Trimmer, "", units...), e), nil
	case "select":
		args, err := wantArgs(e, 2, 2)
		if err != nil {
			return nil, err
		}
		field, err := name(args[0])
		if err != nil {
			return nil, err
		}
		u, err := readUnit(args[1])
		if err != nil {
			return nil, err
		}
		return at(NewNode(Selection, field, u), e), nil
	case "gen":
		args, err := wantArgs(e, 2, 2)
		if err != nil {
			return nil, err
		}
		heap, err := qualifier(args[0])
		if err != nil {
			return nil, err
		}
		d, err := readDeclarer(args[1])
		if err != nil {
			return nil, err
		}
		n := at(NewNode(Generator, "", d), e)
		n.Heap = heap
		return n, nil
	case "if":
		args, err := wantArgs(e, 2, 3)
		if err != nil {
			return nil, err
		}
		units, err := readUnits(args)
		if err != nil {
			return nil, err
		}
		return at(NewNode(Conditional, "", units...), e), nil
	case "case":
		return readConformity(e)
	case "loop":
		return readLoop(e)
	}
	return nil, syntaxErr(e, "unknown node keyword '%s'", e.head())
}

// readNamed reads a declaration with a name, a declarer and an optional unit.
func readNamed(e *sexpr, attr Attribute, nm, decl, src *sexpr) (*Node, error) {
	sym, err := name(nm)
	if err != nil {
		return nil, err
	}
	d, err := readDeclarer(decl)
	if err != nil {
		return nil, err
	}
	children := []*Node{d}
	if src != nil {
		u, err := readUnit(src)
		if err != nil {
			return nil, err
		}
		children = append(children, u)
	}
	return at(NewNode(attr, sym, children...), e), nil
}

// (routine (params (param D name)...) R U)
func readRoutine(e *sexpr) (*Node, error) {
	args, err := wantArgs(e, 3, 3)
	if err != nil {
		return nil, err
	}
	if args[0].head() != "params" {
		return nil, syntaxErr(e, "expected a parameter pack")
	}
	var params []*Node
	for _, p := range args[0].args() {
		if p.head() != "param" || len(p.args()) != 2 {
			return nil, syntaxErr(p, "expected (param D name)")
		}
		n, err := readNamed(p, Param, p.args()[1], p.args()[0], nil)
		if err != nil {
			return nil, err
		}
		params = append(params, n)
	}
	result, err := readDeclarer(args[1])
	if err != nil {
		return nil, err
	}
	body, err := readUnit(args[2])
	if err != nil {
		return nil, err
	}
	pack := at(NewNode(Params, "", params...), args[0])
	return at(NewNode(RoutineText, "", pack, result, body), e), nil
}

func readDenotation(e *sexpr) (*Node, error) {
	args, err := wantArgs(e, 1, 1)
	if err != nil {
		return nil, err
	}
	lit := args[0].atom
	var n *Node
	switch e.head() {
	case "int":
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, syntaxErr(e, "malformed integral denotation")
		}
		n = NewNode(IntDenot, "")
		n.Value = v
	case "real":
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, syntaxErr(e, "malformed real denotation")
		}
		n = NewNode(RealDenot, "")
		n.Value = v
	case "bool":
		if lit != "true" && lit != "false" {
			return nil, syntaxErr(e, "malformed boolean denotation")
		}
		n = NewNode(BoolDenot, "")
		n.Value = lit == "true"
	case "char":
		r := []rune(lit)
		if len(r) != 1 {
			return nil, syntaxErr(e, "character denotation must hold exactly one character")
		}
		n = NewNode(CharDenot, "")
		n.Value = r[0]
	case "string":
		n = NewNode(StringDenot, "")
		n.Value = lit
	}
	return at(n, e), nil
}

// (slice P idx|(trim ...)...)
func readSlice(e *sexpr) (*Node, error) {
	args, err := wantArgs(e, 2, -1)
	if err != nil {
		return nil, err
	}
	units, err := readUnits(args)
	if err != nil {
		return nil, err
	}
	return at(NewNode(Slice, "", units...), e), nil
}

// (case U (spec D [name] U)... [(out U)])
func readConformity(e *sexpr) (*Node, error) {
	args, err := wantArgs(e, 2, -1)
	if err != nil {
		return nil, err
	}
	enquiry, err := readUnit(args[0])
	if err != nil {
		return nil, err
	}
	children := []*Node{enquiry}
	for i, x := range args[1:] {
		switch x.head() {
		case "spec":
			xs := x.args()
			if len(xs) != 2 && len(xs) != 3 {
				return nil, syntaxErr(x, "expected (spec D [name] U)")
			}
			d, err := readDeclarer(xs[0])
			if err != nil {
				return nil, err
			}
			var sym string
			if len(xs) == 3 {
				if sym, err = name(xs[1]); err != nil {
					return nil, err
				}
			}
			u, err := readUnit(xs[len(xs)-1])
			if err != nil {
				return nil, err
			}
			children = append(children, at(NewNode(Specifier, sym, d, u), x))
		case "out":
			if i != len(args)-2 || len(x.args()) != 1 {
				return nil, syntaxErr(x, "misplaced out part")
			}
			u, err := readUnit(x.args()[0])
			if err != nil {
				return nil, err
			}
			children = append(children, at(NewNode(OutPart, "", u), x))
		default:
			return nil, syntaxErr(x, "expected a specified unit")
		}
	}
	return at(NewNode(Conformity, "", children...), e), nil
}

// (loop (for i) (from U) (by U) (to U) (while U) (do U)), every part optional
// except do.
func readLoop(e *sexpr) (*Node, error) {
	var parts []*Node
	order := map[string]int{"for": 0, "from": 1, "by": 2, "to": 3, "while": 4, "do": 5}
	last := -1
	for _, x := range e.args() {
		k, ok := order[x.head()]
		if !ok || k <= last {
			return nil, syntaxErr(x, "unexpected loop part")
		}
		last = k
		if k == 0 {
			n, err := readUnit(x)
			if err != nil {
				return nil, err
			}
			parts = append(parts, n)
			continue
		}
		args, err := wantArgs(x, 1, 1)
		if err != nil {
			return nil, err
		}
		u, err := readUnit(args[0])
		if err != nil {
			return nil, err
		}
		attr := [...]Attribute{ForPart, FromPart, ByPart, ToPart, WhilePart, DoPart}[k]
		parts = append(parts, at(NewNode(attr, "", u), x))
	}
	if last != 5 {
		return nil, syntaxErr(e, "loop without do part")
	}
	return at(NewNode(Loop, "", parts...), e), nil
}

// readDeclarer converts a declarer.
func readDeclarer(e *sexpr) (*Node, error) {
	if e.leaf {
		return at(NewNode(Indicant, e.atom), e), nil
	}
	args := e.args()
	switch e.head() {
	case "ref":
		if len(args) != 1 {
			return nil, syntaxErr(e, "expected (ref D)")
		}
		d, err := readDeclarer(args[0])
		if err != nil {
			return nil, err
		}
		return at(NewNode(RefDecl, "", d), e), nil
	case "row", "flex":
		if len(args) < 2 {
			return nil, syntaxErr(e, "row declarer needs at least one bound")
		}
		d, err := readDeclarer(args[0])
		if err != nil {
			return nil, err
		}
		children := []*Node{d}
		for _, b := range args[1:] {
			if b.head() != "b" || (len(b.args()) != 0 && len(b.args()) != 2) {
				return nil, syntaxErr(b, "expected (b) or (b LO HI)")
			}
			bounds, err := readUnits(b.args())
			if err != nil {
				return nil, err
			}
			children = append(children, at(NewNode(Bound, "", bounds...), b))
		}
		attr := RowDecl
		if e.head() == "flex" {
			attr = FlexDecl
		}
		return at(NewNode(attr, "", children...), e), nil
	case "struct":
		var fields []*Node
		for _, f := range args {
			if f.head() != "field" || len(f.args()) != 2 {
				return nil, syntaxErr(f, "expected (field D name)")
			}
			n, err := readNamed(f, FieldDecl, f.args()[1], f.args()[0], nil)
			if err != nil {
				return nil, err
			}
			fields = append(fields, n)
		}
		return at(NewNode(StructDecl, "", fields...), e), nil
	case "union", "proc":
		var ds []*Node
		for _, x := range args {
			d, err := readDeclarer(x)
			if err != nil {
				return nil, err
			}
			ds = append(ds, d)
		}
		if e.head() == "union" {
			return at(NewNode(UnionDecl, "", ds...), e), nil
		}
		if len(ds) == 0 {
			return nil, syntaxErr(e, "procedure declarer needs a result")
		}
		return at(NewNode(ProcMode, "", ds...), e), nil
	}
	return nil, syntaxErr(e, "unknown declarer '%s'", e.head())
}
