package bind

import (
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// AssignOffsets lays out the frame of a table. Identifiers, operators and
// anonymous tags get consecutive, aligned offsets in order of registration;
// the total becomes the frame increment of the table.
// Tags without storage, and tags of modes without a size, get no offset.
func AssignOffsets(tab *syntax.SymbolTable) {
	offset := 0
	place := func(tag *syntax.Tag) {
		if !tag.HasOffset {
			return
		}
		size, err := mode.Sizeof(tag.Mode)
		if err != nil || size == 0 {
			tag.HasOffset = false
			return
		}
		tag.Offset = offset
		offset += mode.AlignUp(size)
	}
	tab.Each(syntax.TagIdentifier, place)
	tab.Each(syntax.TagOperator, place)
	tab.Each(syntax.TagAnonymous, place)
	tab.FrameIncrement = mode.AlignUp(offset)
	tracer().P("table", tab.Nest).Debugf("frame increment is %d bytes", tab.FrameIncrement)
}
