package main

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/bind"
	"github.com/npillmayer/genie/elab"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/syntax"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
)

// packages lists the trace keys of genie's packages.
var packages = []string{
	"genie.syntax", "genie.mode", "genie.bind", "genie.runtime",
	"genie.stowed", "genie.parallel", "genie.elab",
}

func main() {
	initDisplay()
	cli = gologadapter.New()
	tlevel := flag.String("trace", "Error", "Trace level [Debug|Info|Error]")
	limitsf := flag.String("limits", "", "YAML file with resource limits")
	breaks := flag.String("break", "", "Comma separated source lines to stop at")
	unused := flag.Bool("warn-unused", false, "Warn about unused declarations")
	flag.Parse()
	level := traceLevel(*tlevel)
	tracer().SetTraceLevel(level)
	for _, key := range packages {
		tracing.Select(key).SetTraceLevel(level)
	}
	if flag.NArg() != 1 {
		pterm.Error.Println("usage: genie [flags] program.tree")
		os.Exit(2)
	}
	limits, err := loadLimits(*limitsf)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(2)
	}
	limits.WarnUnused = limits.WarnUnused || *unused
	r, err := load(flag.Arg(0), limits)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(2)
	}
	var opts []elab.Option
	if *breaks != "" {
		lines, err := parseLines(*breaks)
		if err != nil {
			pterm.Error.Println(err.Error())
			os.Exit(2)
		}
		n := setBreakpoints(r.Tree, lines)
		tracer().Infof("%d breakpoints set", n)
		m, err := newMonitor()
		if err != nil {
			pterm.Error.Println(err.Error())
			os.Exit(3)
		}
		defer m.Close()
		opts = append(opts, elab.WithMonitor(m))
	}
	if err := elab.Run(r, limits, opts...); err != nil {
		fmt.Println()
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	fmt.Println()
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func loadLimits(filename string) (runtime.Limits, error) {
	if filename == "" {
		return runtime.LimitsFromConfig(), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return runtime.Limits{}, fmt.Errorf("unable to open limits file: %w", err)
	}
	defer f.Close()
	return runtime.LoadLimits(f)
}

// load reads and binds a tree description. Diagnostics are printed; a
// program with errors is an error.
func load(filename string, limits runtime.Limits) (*bind.Result, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	tree, err := syntax.ReadTree(string(src))
	if err != nil {
		return nil, err
	}
	tracer().Infof("read %d nodes from %s", tree.Size(), filename)
	r, err := bind.Bind(tree.Root, bind.WarnUnused(limits.WarnUnused))
	if err != nil {
		return nil, err
	}
	for _, d := range r.Diagnostics() {
		if d.Severity >= genie.Error {
			pterm.Error.Println(d.String())
		} else {
			pterm.Warning.Println(d.String())
		}
	}
	if r.Errors() > 0 {
		return nil, fmt.Errorf("%s: %d errors, program not run", filename, r.Errors())
	}
	return r, nil
}

func parseLines(s string) (map[int]bool, error) {
	lines := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		l, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || l < 1 {
			return nil, fmt.Errorf("not a line number: %q", part)
		}
		lines[l] = true
	}
	return lines, nil
}

// setBreakpoints flags the first unit of each of the lines.
func setBreakpoints(tree *syntax.Tree, lines map[int]bool) int {
	seen := make(map[int]bool)
	syntax.Walk(tree.Root, func(n *syntax.Node) bool {
		if l := n.Pos.Line; lines[l] && !seen[l] && isUnit(n) {
			n.SetFlag(syntax.Breakpoint)
			seen[l] = true
		}
		return true
	})
	return len(seen)
}

func isUnit(n *syntax.Node) bool {
	if n.Attr.IsDeclarer() || n.Attr.IsDeclaration() {
		return n.Attr == syntax.Identity || n.Attr == syntax.Variable
	}
	switch n.Attr {
	case syntax.Program, syntax.Params, syntax.Param, syntax.Bound, syntax.FieldDecl,
		syntax.Trimmer, syntax.Specifier, syntax.OutPart, syntax.ForPart, syntax.FromPart,
		syntax.ByPart, syntax.ToPart, syntax.WhilePart, syntax.DoPart:
		return false
	}
	return true
}

func traceLevel(l string) tracing.TraceLevel {
	return tracing.TraceLevelFromString(l)
}
