package runtime

import (
	"fmt"
	"io"
	"time"

	"github.com/npillmayer/schuko/gconf"
	"gopkg.in/yaml.v3"
)

// Limits are the resource limits of a run. Zero values select defaults.
type Limits struct {
	FrameStackSize     int           `yaml:"frame-stack-size"`     // bytes
	ExprStackSize      int           `yaml:"expr-stack-size"`      // bytes
	StackCheckInterval int           `yaml:"stack-check-interval"` // pushes between high-water checks
	HeapHandles        int           `yaml:"heap-handles"`         // maximum number of handles
	HeapSize           int           `yaml:"heap-size"`            // bytes of raw heap storage
	SweepOccupancy     int           `yaml:"sweep-occupancy"`      // percent of heap-size
	SweepFreeHandles   int           `yaml:"sweep-free-handles"`   // minimum number of free handles
	MaxThreads         int           `yaml:"max-threads"`          // concurrently alive threads
	TimeLimit          time.Duration `yaml:"time-limit"`           // 0 means unlimited
	WarnUnused         bool          `yaml:"warn-unused"`
	TraceUnits         bool          `yaml:"trace-units"`
}

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		FrameStackSize:     4 << 20,
		ExprStackSize:      1 << 20,
		StackCheckInterval: 64,
		HeapHandles:        1 << 18,
		HeapSize:           64 << 20,
		SweepOccupancy:     80,
		SweepFreeHandles:   64,
		MaxThreads:         256,
	}
}

// WithDefaults replaces zero values by defaults.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	def := func(v *int, dv int) {
		if *v <= 0 {
			*v = dv
		}
	}
	def(&l.FrameStackSize, d.FrameStackSize)
	def(&l.ExprStackSize, d.ExprStackSize)
	def(&l.StackCheckInterval, d.StackCheckInterval)
	def(&l.HeapHandles, d.HeapHandles)
	def(&l.HeapSize, d.HeapSize)
	def(&l.SweepOccupancy, d.SweepOccupancy)
	def(&l.SweepFreeHandles, d.SweepFreeHandles)
	def(&l.MaxThreads, d.MaxThreads)
	return l
}

// LimitsFromConfig reads limits from the global configuration. The time
// limit is configured in seconds.
func LimitsFromConfig() Limits {
	l := Limits{
		FrameStackSize:     gconf.GetInt("frame-stack-size"),
		ExprStackSize:      gconf.GetInt("expr-stack-size"),
		StackCheckInterval: gconf.GetInt("stack-check-interval"),
		HeapHandles:        gconf.GetInt("heap-handles"),
		HeapSize:           gconf.GetInt("heap-size"),
		SweepOccupancy:     gconf.GetInt("sweep-occupancy"),
		SweepFreeHandles:   gconf.GetInt("sweep-free-handles"),
		MaxThreads:         gconf.GetInt("max-threads"),
		TimeLimit:          time.Duration(gconf.GetInt("time-limit")) * time.Second,
		WarnUnused:         gconf.GetBool("warn-unused"),
		TraceUnits:         gconf.GetBool("trace-units"),
	}
	return l.WithDefaults()
}

// LoadLimits reads limits from a YAML document. Unknown keys are errors.
// Keys not present keep their defaults.
func LoadLimits(r io.Reader) (Limits, error) {
	var l Limits
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return DefaultLimits(), fmt.Errorf("cannot read limits: %w", err)
	}
	return l.WithDefaults(), nil
}
