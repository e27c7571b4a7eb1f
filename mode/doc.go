/*
Package mode implements the static types of the language, called "modes".

Modes form a graph rather than a tree: a mode declaration like

    MODE NODE = STRUCT (INT value, REF NODE next)

refers to itself through a REF. All algorithms in this package are aware
of cycles. A mode containing itself directly (not through a REF or a
PROC) has no finite size and is rejected by Sizeof.

Every value of a mode occupies a cell of Size() bytes, aligned to Align.
The layout of cells is shared with package runtime:

    INT, REAL          status byte, payload at offset 8          16 bytes
    BOOL               status byte, payload at offset 1           8 bytes
    CHAR               status byte, rune at offset 4              8 bytes
    REF, SEMA          status, segment, handle, offset, scope    24 bytes
    PROC               status, kind, node, environ, frame no.    24 bytes
    ROW, FLEX          reference to a row descriptor             24 bytes
    STRUCT             fields, in declaration order
    UNION              status, active mode id, payload at 8

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package mode

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.mode'.
func tracer() tracing.Trace {
	return tracing.Select("genie.mode")
}
