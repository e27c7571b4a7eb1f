/*
Command genie runs programs given as annotated tree descriptions.

	genie [-trace level] [-limits file.yaml] [-break lines] [-warn-unused] program.tree

The tree description is read, bound and elaborated. Diagnostics of the
binder are printed; programs with errors are not run. With -break, the
elaborator stops at the first unit of each listed line and opens an
interactive monitor, which can show the call chain and the frames of the
program.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package main

import (
	"github.com/npillmayer/schuko/tracing"
)

var cli tracing.Trace

// tracer traces with the adapter of the command.
func tracer() tracing.Trace {
	return cli
}
