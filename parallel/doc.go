/*
Package parallel emulates the parallel clause of genie.

Units of a parallel clause are elaborated by goroutines, but only one of
them at a time holds the token which permits touching the runtime. The
token is handed over explicitly, in order of a ready queue. A thread gives
up the token only at two points: when it waits for a semaphore which is
down, and in the loop of a parent waiting for its children.

All threads share the frame stack and the expression stack of the runtime.
The units of one parallel clause start with the same stack pointers, the
base of their private segments. Before handing over the token, a thread
saves its segment and the segments of its parallel ancestors; after
getting it back, it restores them.

An error or jump out of one unit abandons its siblings. The first error
of a clause is kept; every thread of the clause polls it after getting the
token back, and the elaborator polls it between units.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package parallel

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.parallel'.
func tracer() tracing.Trace {
	return tracing.Select("genie.parallel")
}
