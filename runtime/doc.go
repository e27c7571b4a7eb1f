/*
Package runtime implements the run-time environment of genie: a frame stack
of activation records, an expression stack, a heap of handles and the
layout of value cells.

For a thorough discussion of an interpreter's runtime environment, refer to
"Language Implementation Patterns" by Terence Parr.

Activation Records

Entering a range opens a frame on the frame stack. A frame starts with a
fixed header of FrameHeaderSize bytes, followed by the local storage of the
range, whose size and layout have been computed by the binder:

    0   dynamic link        frame pointer of the caller
    8   static link         frame pointer of the lexically enclosing range
    16  frame number        serial number, never reused
    24  lexical level
    32  parameter level
    40  dynamic scope       scope marker for references into this frame
    48  node                ID of the syntax node of the range
    52  jump status
    56  thread              ID of the thread which opened the frame
    60  frame size          header plus local storage

Two chains run through the frame stack. The dynamic links record the order
of calls, the static links the lexical nesting. Identifiers of enclosing
ranges are addressed by following static links, which takes as many hops
as there are levels between use and declaration, independent of the number
of calls in between.

Expression Stack

Units leave their values on the expression stack. Arguments of procedures
are pushed in declaration order and popped in reverse order. Pushing beyond
the end of the stack is fatal; a high-water mark is checked at intervals.

Heap

The heap is an arena of handles. A handle holds either raw storage or a Go
object (a row descriptor, for instance). Handles are owned by the heap or by
a frame; frame-owned handles are released when their frame is closed.
Reclaiming heap-owned handles is up to an installable Collector.

----------------------------------------------------------------------

BSD License

Copyright (c) 2017-21, Norbert Pillmayer

All rights reserved.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions
are met:

1. Redistributions of source code must retain the above copyright
notice, this list of conditions and the following disclaimer.

2. Redistributions in binary form must reproduce the above copyright
notice, this list of conditions and the following disclaimer in the
documentation and/or other materials provided with the distribution.

3. Neither the name of this software or the names of its contributors
may be used to endorse or promote products derived from this software
without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE. */
package runtime

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.runtime'.
func tracer() tracing.Trace {
	return tracing.Select("genie.runtime")
}
