/*
Package elab elaborates bound syntax trees.

The elaborator walks the tree produced by package bind and runs it on a
runtime.Runtime. Every unit leaves a value of its a-posteriori mode on the
expression stack; the consumer of the value applies the coercions its
context requires (dereferencing, deproceduring, widening, uniting, voiding).
Ranges open frames; routine texts become procedure values carrying the
frame they have been elaborated in.

Jumps are Go errors of a private type. They travel up the Go call stack
until they reach the serial clause declaring their label, which unwinds
frames and expression stack and continues after the label.

Standard operators and procedures are implemented in this package, keyed
by the builtin names the standard environment of package bind attaches to
its tags. Output of print goes to an io.Writer.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package elab

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.elab'.
func tracer() tracing.Trace {
	return tracing.Select("genie.elab")
}
