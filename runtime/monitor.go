package runtime

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
	"github.com/pterm/pterm"
)

// Monitor is consulted by the elaborator before running a unit whose node
// carries the Breakpoint flag. The interactive monitor is not part of genie;
// it uses the introspection functions below. Returning an error terminates
// the program.
type Monitor interface {
	Break(rt *Runtime, n *syntax.Node) error
}

// Describer is implemented by objects held in heap handles which know how to
// render themselves, e.g. row descriptors.
type Describer interface {
	Describe(rt *Runtime) string
}

// FrameInfo is a read-only snapshot of a frame header.
type FrameInfo struct {
	FP          int
	Number      int
	Level       int
	ParamLevel  int
	DynamicLink int
	StaticLink  int
	Size        int
	Thread      int
	Node        *syntax.Node
}

// FrameAt describes the frame at fp.
func (rt *Runtime) FrameAt(fp int) FrameInfo {
	return FrameInfo{
		FP:          fp,
		Number:      rt.FrameNumber(fp),
		Level:       rt.LexLevel(fp),
		ParamLevel:  rt.ParamLevel(fp),
		DynamicLink: rt.DynamicLink(fp),
		StaticLink:  rt.StaticLink(fp),
		Size:        rt.FrameSize(fp),
		Thread:      rt.FrameThread(fp),
		Node:        rt.FrameNode(fp),
	}
}

// CallChain lists the frames on the dynamic chain, innermost first.
func (rt *Runtime) CallChain() []FrameInfo {
	var frames []FrameInfo
	for fp := rt.FP; fp >= 0; fp = rt.DynamicLink(fp) {
		frames = append(frames, rt.FrameAt(fp))
	}
	return frames
}

// FindFrame finds a frame on the dynamic chain by its number.
func (rt *Runtime) FindFrame(number int) (FrameInfo, bool) {
	for fp := rt.FP; fp >= 0; fp = rt.DynamicLink(fp) {
		if rt.FrameNumber(fp) == number {
			return rt.FrameAt(fp), true
		}
	}
	return FrameInfo{}, false
}

// TagInfo describes a tag of a frame together with its current value.
type TagInfo struct {
	Name    string
	Kind    syntax.TagKind
	Mode    *mode.Mode
	Address int
	Value   string
}

// FrameTags enumerates the identifiers, operators and anonymous tags of a
// frame, in this order.
func (rt *Runtime) FrameTags(f FrameInfo) []TagInfo {
	if f.Node == nil || f.Node.Table == nil {
		return nil
	}
	var tags []TagInfo
	collect := func(tag *syntax.Tag) {
		if !tag.HasOffset || tag.Mode == nil {
			return
		}
		addr := f.FP + FrameHeaderSize + tag.Offset
		size := tag.Size()
		info := TagInfo{Name: tag.Name(), Kind: tag.Kind, Mode: tag.Mode, Address: addr}
		if addr+size <= len(rt.Frames) {
			info.Value = rt.FormatValue(tag.Mode, rt.Frames[addr:addr+size])
		}
		tags = append(tags, info)
	}
	tab := f.Node.Table
	tab.Each(syntax.TagIdentifier, collect)
	tab.Each(syntax.TagOperator, collect)
	tab.Each(syntax.TagAnonymous, collect)
	return tags
}

// FormatValue renders a cell of mode m.
func (rt *Runtime) FormatValue(m *mode.Mode, cell []byte) string {
	var b strings.Builder
	rt.formatValue(&b, m, cell, 0)
	return b.String()
}

func (rt *Runtime) formatValue(b *strings.Builder, m *mode.Mode, cell []byte, depth int) {
	if m.Kind != mode.Struct && m.Kind != mode.Void && !IsInitialized(cell) {
		b.WriteString("<uninitialised>")
		return
	}
	switch m.Kind {
	case mode.Void:
		b.WriteString("EMPTY")
	case mode.Int:
		b.WriteString(strconv.FormatInt(GetInt(cell), 10))
	case mode.Real:
		b.WriteString(strconv.FormatFloat(GetReal(cell), 'g', -1, 64))
	case mode.Bool:
		if GetBool(cell) {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case mode.Char:
		b.WriteString(strconv.QuoteRune(GetChar(cell)))
	case mode.Ref, mode.Sema:
		r := GetRef(cell)
		b.WriteString(r.String())
		if m.Kind == mode.Sema && !r.IsNil() {
			if c, err := rt.Cell(r, mode.SizeInt); err == nil {
				fmt.Fprintf(b, " level %d", GetInt(c))
			}
		}
	case mode.Proc:
		p := GetProc(cell)
		switch p.Kind {
		case Routine:
			fmt.Fprintf(b, "routine #%d in frame %d", p.ID, p.Env.Frame)
		case Builtin:
			fmt.Fprintf(b, "standard procedure #%d", p.ID)
		default:
			b.WriteString("NIL")
		}
	case mode.Row, mode.Flex, mode.Rows:
		r := GetRef(cell)
		obj, err := rt.Object(r)
		if d, ok := obj.(Describer); err == nil && ok && depth < 4 {
			b.WriteString(d.Describe(rt))
		} else {
			fmt.Fprintf(b, "row %s", r)
		}
	case mode.Struct:
		b.WriteString("(")
		for i, f := range m.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			off := m.FieldOffset(i)
			rt.formatValue(b, f.Mode, cell[off:off+f.Mode.Size()], depth+1)
		}
		b.WriteString(")")
	case mode.Union:
		u := rt.Modes.ByID(UnionMode(cell))
		if u == nil {
			b.WriteString("<union of unknown mode>")
			return
		}
		fmt.Fprintf(b, "%v: ", u)
		rt.formatValue(b, u, Payload(cell)[:u.Size()], depth+1)
	default:
		fmt.Fprintf(b, "<%v>", m)
	}
}

// RenderFrames writes the dynamic chain of frames as a tree, each frame with
// its tags.
func (rt *Runtime) RenderFrames(w io.Writer) error {
	list := pterm.LeveledList{}
	for _, f := range rt.CallChain() {
		list = append(list, pterm.LeveledListItem{
			Level: 0,
			Text: fmt.Sprintf("frame %d at %d: level %d, static link %d, %v",
				f.Number, f.FP, f.Level, f.StaticLink, f.Node),
		})
		for _, tag := range rt.FrameTags(f) {
			name := tag.Name
			if name == "" {
				name = "<anonymous>"
			}
			list = append(list, pterm.LeveledListItem{
				Level: 1,
				Text:  fmt.Sprintf("%s %v @%d = %s", name, tag.Mode, tag.Address, tag.Value),
			})
		}
	}
	if len(list) == 0 {
		_, err := io.WriteString(w, "no frames\n")
		return err
	}
	root := pterm.NewTreeFromLeveledList(list)
	s, err := pterm.DefaultTree.WithRoot(root).Srender()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}
