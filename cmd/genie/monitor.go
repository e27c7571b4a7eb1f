package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/syntax"
)

// errQuit terminates the program from the monitor.
var errQuit = errors.New("program stopped by the monitor")

// monitor is an interactive runtime.Monitor, reading commands at
// breakpoints until the user continues.
type monitor struct {
	repl *readline.Instance
}

func newMonitor() (*monitor, error) {
	repl, err := readline.New("genie> ")
	if err != nil {
		return nil, err
	}
	return &monitor{repl: repl}, nil
}

func (m *monitor) Close() error {
	return m.repl.Close()
}

const monitorHelp = `c          continue
bt         show the call chain
f N        show the tags of frame number N
frames     show all frames with their tags
trace      toggle tracing of this unit
q          stop the program`

// Break implements runtime.Monitor.
func (m *monitor) Break(rt *runtime.Runtime, n *syntax.Node) error {
	fmt.Println()
	pterm.Info.Printf("break at %s: %s (thread %d)\n", n.Pos, n, rt.Thread)
	for {
		line, err := m.repl.Readline()
		if err != nil { // io.EOF
			return errQuit
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "c", "continue":
			return nil
		case "q", "quit":
			return errQuit
		case "bt":
			for _, f := range rt.CallChain() {
				pterm.Println(fmt.Sprintf("#%-4d level %d  fp %-6d %v", f.Number, f.Level, f.FP, f.Node))
			}
		case "f", "frame":
			if len(args) != 2 {
				pterm.Error.Println("usage: f N")
				continue
			}
			m.showFrame(rt, args[1])
		case "frames":
			if err := rt.RenderFrames(os.Stdout); err != nil {
				pterm.Error.Println(err.Error())
			}
		case "trace":
			if n.HasFlag(syntax.Trace) {
				n.ClearFlag(syntax.Trace)
			} else {
				n.SetFlag(syntax.Trace)
			}
		default:
			pterm.Println(monitorHelp)
		}
	}
}

func (m *monitor) showFrame(rt *runtime.Runtime, arg string) {
	number, err := strconv.Atoi(arg)
	if err != nil {
		pterm.Error.Println("not a frame number: " + arg)
		return
	}
	f, ok := rt.FindFrame(number)
	if !ok {
		pterm.Error.Printf("no frame #%d on the call chain\n", number)
		return
	}
	pterm.Println(fmt.Sprintf("frame #%d for %v, static link %d, %d bytes", f.Number, f.Node, f.StaticLink, f.Size))
	for _, tag := range rt.FrameTags(f) {
		name := tag.Name
		if name == "" {
			name = "<anonymous>"
		}
		pterm.Println(fmt.Sprintf("  %-12s %v = %s", name, tag.Mode, tag.Value))
	}
}
