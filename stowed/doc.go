/*
Package stowed implements rows and structured values of genie.

Stowed values are represented by descriptors separate from their element
storage. A row value is a name of a heap handle holding an *Array
descriptor; the elements live in a second handle. Slicing and field
selection create new descriptors sharing the storage of their parent, so a
slice and its parent may alias. Copying and assignment are driven by the
statically known mode of a value, as plain stowed values carry no type tag.

Handles of rows generated on the stack are owned by the generating frame
and released when the frame is closed. Values leaving a range must be
copied to an owner which survives it.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package stowed

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'genie.stowed'.
func tracer() tracing.Trace {
	return tracing.Select("genie.stowed")
}
