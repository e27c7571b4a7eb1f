/*
Package bind implements the binder of genie.

The binder works on a syntax tree in which every node knows whether it
introduces a new lexical level. It

■ creates a symbol table for every range and links it to the table of the
enclosing range, the standard environment being the outermost table,

■ registers declarations in the table of their range,

■ resolves applied identifiers, operators, indicants and labels to their tags,

■ derives the a-posteriori modes of units and identifies operators,

■ performs consistency checks on modes and operator declarations,

■ and assigns storage offsets and frame sizes.

Static errors are collected as diagnostics and never stop binding. Missing
declarations are papered over with error-moded placeholder tags, so later
passes need not care about them.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package bind

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.bind'.
func tracer() tracing.Trace {
	return tracing.Select("genie.bind")
}
