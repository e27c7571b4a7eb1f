/*
Package genie is the binding and execution core of an interpreter for a
block-structured, statically scoped language in the tradition of Algol 68.

Genie takes an annotated syntax tree from an (external) parser and brings it
to life. Package structure is as follows:

■ mode: Package mode implements the static types ("modes") of the language.

■ syntax: Package syntax holds the annotated syntax tree, tags and symbol tables,
and a reader for tree descriptions.

■ bind: Package bind implements the binder, which resolves names to tags and
assigns storage offsets.

■ runtime: Package runtime contains the interpreter context: frame stack,
expression stack, activation records and heap handles.

■ stowed: Package stowed implements rows, structures and unions ("stowed objects").

■ parallel: Package parallel emulates the parallel clause on top of goroutines,
serialized by a single execution token.

■ elab: Package elab elaborates bound syntax trees.

■ cmd/genie: Command genie runs tree descriptions, with an optional
interactive monitor at breakpoints.

The base package contains data types which are used throughout all the other packages.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package genie
