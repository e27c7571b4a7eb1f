/*
Package syntax holds the annotated syntax tree genie operates on, together
with tags and symbol tables.

The tree is produced by a parser which is not part of genie. Every node
carries a marker telling whether it introduces a new lexical level, and
slots for a symbol table, a resolved tag and a resolved mode, which are
filled in by package bind.

Tags and Symbol Tables

A tag is a declared entity: an identifier, an operator, an indicant (mode
name), a label, a priority declaration or an anonymous entity such as an
implicit generator. Every lexical range owns a symbol table; tables are
linked to the table of the enclosing range, forming a tree with the
standard environment at its root.

Tree Descriptions

For tests and for the command line tool, trees may be read from a
tree description, an s-expression rendering of the parser's output.
See ReadTree.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package syntax

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.syntax'.
func tracer() tracing.Trace {
	return tracing.Select("genie.syntax")
}
