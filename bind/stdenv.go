package bind

import (
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// The standard environment is the outermost symbol table. Its tags do not
// occupy storage; instead every tag carries a key in its UData, which the
// elaborator maps to an implementation.

// Builtin is the UData of standard environment tags.
type Builtin string

// sizeFamily lists the standard routines which also answer to names with
// 'long' or 'short' prefixes.
var sizeFamily = map[string]bool{
	"sqrt": true, "exp": true, "ln": true, "sin": true, "cos": true, "tan": true,
	"arcsin": true, "arccos": true, "arctan": true, "pi": true, "max int": true,
	"max real": true, "small real": true, "random": true, "abs": true,
}

type stdenv struct {
	table *syntax.SymbolTable
	modes *mode.Table
}

func (env stdenv) operator(symbol string, key Builtin, result *mode.Mode, params ...*mode.Mode) {
	tag := syntax.NewTag(symbol, syntax.TagOperator).WithMode(env.modes.ProcOf(params, result))
	tag.UData = key
	env.table.Insert(tag)
}

func (env stdenv) identifier(name string, key Builtin, m *mode.Mode) {
	tag := syntax.NewTag(name, syntax.TagIdentifier).WithMode(m)
	tag.UData = key
	env.table.Insert(tag)
}

func (env stdenv) priority(p int, symbols ...string) {
	for _, symbol := range symbols {
		tag := syntax.NewTag(symbol, syntax.TagPriority)
		tag.Priority = p
		env.table.Insert(tag)
	}
}

func (env stdenv) indicant(m *mode.Mode) {
	env.table.Insert(syntax.NewTag(m.Name, syntax.TagIndicant).WithMode(m))
}

// StandardEnvironment creates the level 0 table of standard modes, operators,
// procedures and constants.
func StandardEnvironment(modes *mode.Table) *syntax.SymbolTable {
	env := stdenv{table: syntax.NewSymbolTable(nil, nil), modes: modes}
	INT, REAL, BOOL, CHAR := modes.INT, modes.REAL, modes.BOOL, modes.CHAR
	STRING, SEMA, VOID, ROWS := modes.STRING, modes.SEMA, modes.VOID, modes.ROWS
	for _, m := range []*mode.Mode{INT, REAL, BOOL, CHAR, STRING, SEMA, VOID} {
		env.indicant(m)
	}
	env.priority(2, "OR")
	env.priority(3, "AND")
	env.priority(4, "=", "/=")
	env.priority(5, "<", "<=", ">", ">=")
	env.priority(6, "+", "-")
	env.priority(7, "*", "/", "%", "MOD")
	env.priority(8, "**", "UPB", "LWB")
	//
	for _, op := range []string{"+", "-", "*", "%", "MOD", "**"} {
		env.operator(op, Builtin("int"+op), INT, INT, INT)
	}
	env.operator("/", "int/", REAL, INT, INT)
	for _, op := range []string{"+", "-", "*", "/", "**"} {
		env.operator(op, Builtin("real"+op), REAL, REAL, REAL)
	}
	for _, op := range []string{"<", "<=", ">", ">=", "=", "/="} {
		env.operator(op, Builtin("int"+op), BOOL, INT, INT)
		env.operator(op, Builtin("real"+op), BOOL, REAL, REAL)
		env.operator(op, Builtin("char"+op), BOOL, CHAR, CHAR)
	}
	env.operator("=", "bool=", BOOL, BOOL, BOOL)
	env.operator("/=", "bool/=", BOOL, BOOL, BOOL)
	env.operator("AND", "and", BOOL, BOOL, BOOL)
	env.operator("OR", "or", BOOL, BOOL, BOOL)
	env.operator("+", "string+", STRING, STRING, STRING)
	env.operator("=", "string=", BOOL, STRING, STRING)
	env.operator("/=", "string/=", BOOL, STRING, STRING)
	env.operator("UPB", "upb", INT, INT, ROWS)
	env.operator("LWB", "lwb", INT, INT, ROWS)
	// monadic
	env.operator("-", "int.neg", INT, INT)
	env.operator("-", "real.neg", REAL, REAL)
	env.operator("NEG", "int.neg", INT, INT)
	env.operator("NEG", "real.neg", REAL, REAL)
	env.operator("ABS", "int.abs", INT, INT)
	env.operator("ABS", "real.abs", REAL, REAL)
	env.operator("ABS", "char.abs", INT, CHAR)
	env.operator("REPR", "repr", CHAR, INT)
	env.operator("NOT", "not", BOOL, BOOL)
	env.operator("ENTIER", "entier", INT, REAL)
	env.operator("ROUND", "round", INT, REAL)
	env.operator("UPB", "upb1", INT, ROWS)
	env.operator("LWB", "lwb1", INT, ROWS)
	env.operator("LEVEL", "sema.new", SEMA, INT)
	env.operator("LEVEL", "sema.level", INT, SEMA)
	env.operator("UP", "sema.up", VOID, SEMA)
	env.operator("DOWN", "sema.down", VOID, SEMA)
	//
	realFunc := modes.ProcOf([]*mode.Mode{REAL}, REAL)
	for _, f := range []string{"sqrt", "exp", "ln", "sin", "cos", "tan", "arcsin", "arccos", "arctan"} {
		env.identifier(f, Builtin(f), realFunc)
	}
	env.identifier("random", "random", modes.ProcOf(nil, REAL))
	printable := modes.UnionOf([]*mode.Mode{INT, REAL, BOOL, CHAR, STRING})
	env.identifier("print", "print", modes.ProcOf([]*mode.Mode{printable}, VOID))
	env.identifier("pi", "pi", REAL)
	env.identifier("max int", "max int", INT)
	env.identifier("max real", "max real", REAL)
	env.identifier("small real", "small real", REAL)
	return env.table
}
