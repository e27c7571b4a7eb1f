package elab

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/bind"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/parallel"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/stowed"
	"github.com/npillmayer/genie/syntax"
)

// operation implements a standard operator or procedure. The operands are on
// the expression stack, the last one on top; pm is the procedure mode the
// operation has been called with.
type operation func(x *Interpreter, pos genie.Pos, pm *mode.Mode) error

// standard holds the implementations of the standard environment. The
// index of an entry is the ID of the procedure values referring to it.
var standard []struct {
	key bind.Builtin
	op  operation
}

var standardIDs = make(map[bind.Builtin]int)

func register(key bind.Builtin, op operation) {
	standardIDs[key] = len(standard)
	standard = append(standard, struct {
		key bind.Builtin
		op  operation
	}{key, op})
}

func arithmetic(pos genie.Pos, format string, args ...interface{}) error {
	return runtime.Errorf(pos, runtime.Arithmetic, format, args...)
}

// --- Integers --------------------------------------------------------------

func intOp(f func(pos genie.Pos, a, b int64) (int64, error)) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		b, a := x.rt.PopInt(), x.rt.PopInt()
		v, err := f(pos, a, b)
		if err != nil {
			return err
		}
		x.rt.PushInt(v)
		return nil
	}
}

func intAdd(pos genie.Pos, a, b int64) (int64, error) {
	v := a + b
	if (v > a) != (b > 0) {
		return 0, arithmetic(pos, "integer overflow in %d + %d", a, b)
	}
	return v, nil
}

func intSub(pos genie.Pos, a, b int64) (int64, error) {
	v := a - b
	if (v < a) != (b > 0) {
		return 0, arithmetic(pos, "integer overflow in %d - %d", a, b)
	}
	return v, nil
}

func intMul(pos genie.Pos, a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	v := a * b
	if v/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, arithmetic(pos, "integer overflow in %d * %d", a, b)
	}
	return v, nil
}

func intOver(pos genie.Pos, a, b int64) (int64, error) {
	if b == 0 {
		return 0, arithmetic(pos, "division by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return 0, arithmetic(pos, "integer overflow in %d %% %d", a, b)
	}
	return a / b, nil
}

// intMod yields a result 0 <= r < |b|.
func intMod(pos genie.Pos, a, b int64) (int64, error) {
	if b == 0 {
		return 0, arithmetic(pos, "division by zero")
	}
	if b == -1 {
		return 0, nil
	}
	r := a % b
	if r < 0 {
		if b > 0 {
			r += b
		} else {
			r -= b
		}
	}
	return r, nil
}

func intPow(pos genie.Pos, a, b int64) (int64, error) {
	if b < 0 {
		return 0, arithmetic(pos, "negative exponent %d", b)
	}
	v := int64(1)
	for sq := a; b > 0; b >>= 1 {
		var err error
		if b&1 == 1 {
			if v, err = intMul(pos, v, sq); err != nil {
				return 0, err
			}
		}
		if b > 1 {
			if sq, err = intMul(pos, sq, sq); err != nil {
				return 0, err
			}
		}
	}
	return v, nil
}

func intDiv(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	b, a := x.rt.PopInt(), x.rt.PopInt()
	if b == 0 {
		return arithmetic(pos, "division by zero")
	}
	x.rt.PushReal(float64(a) / float64(b))
	return nil
}

func intMonadic(f func(pos genie.Pos, a int64) (int64, error)) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		v, err := f(pos, x.rt.PopInt())
		if err != nil {
			return err
		}
		x.rt.PushInt(v)
		return nil
	}
}

func intNeg(pos genie.Pos, a int64) (int64, error) {
	if a == math.MinInt64 {
		return 0, arithmetic(pos, "integer overflow in -(%d)", a)
	}
	return -a, nil
}

func intAbs(pos genie.Pos, a int64) (int64, error) {
	if a < 0 {
		return intNeg(pos, a)
	}
	return a, nil
}

// --- Reals -----------------------------------------------------------------

// checkReal checks that the result of a real operation is a number.
func checkReal(pos genie.Pos, v float64, what string) (float64, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, arithmetic(pos, "%s is not representable", what)
	}
	return v, nil
}

func realOp(sym string, f func(a, b float64) float64) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		b, a := x.rt.PopReal(), x.rt.PopReal()
		if sym == "/" && b == 0 {
			return arithmetic(pos, "division by zero")
		}
		v, err := checkReal(pos, f(a, b), fmt.Sprintf("%g %s %g", a, sym, b))
		if err != nil {
			return err
		}
		x.rt.PushReal(v)
		return nil
	}
}

// realFunc wraps a function of the standard prelude. Arguments outside the
// domain, given by ok, are errors.
func realFunc(name string, f func(float64) float64, ok func(float64) bool) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		a := x.rt.PopReal()
		if ok != nil && !ok(a) {
			return arithmetic(pos, "argument %g of %s is out of range", a, name)
		}
		v, err := checkReal(pos, f(a), fmt.Sprintf("%s(%g)", name, a))
		if err != nil {
			return err
		}
		x.rt.PushReal(v)
		return nil
	}
}

func realMonadic(f func(float64) float64) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		x.rt.PushReal(f(x.rt.PopReal()))
		return nil
	}
}

// toInt converts a rounded real to INT.
func toInt(round func(float64) float64) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		a := x.rt.PopReal()
		v := round(a)
		if math.IsNaN(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return arithmetic(pos, "%g cannot be converted to an integer", a)
		}
		x.rt.PushInt(int64(v))
		return nil
	}
}

// --- Comparisons and booleans ----------------------------------------------

type ordered interface {
	~int64 | ~float64 | ~rune
}

func compare[T ordered](sym string, a, b T) bool {
	switch sym {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "=":
		return a == b
	}
	return a != b
}

func relation(sym string, k mode.Kind) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		rt := x.rt
		var v bool
		switch k {
		case mode.Int:
			b, a := rt.PopInt(), rt.PopInt()
			v = compare(sym, a, b)
		case mode.Real:
			b, a := rt.PopReal(), rt.PopReal()
			v = compare(sym, a, b)
		case mode.Char:
			b, a := rt.PopChar(), rt.PopChar()
			v = compare(sym, a, b)
		}
		rt.PushBool(v)
		return nil
	}
}

func boolOp(f func(a, b bool) bool) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		b, a := x.rt.PopBool(), x.rt.PopBool()
		x.rt.PushBool(f(a, b))
		return nil
	}
}

// --- Characters and strings ------------------------------------------------

func repr(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	a := x.rt.PopInt()
	if a < 0 || a > utf8.MaxRune || !utf8.ValidRune(rune(a)) {
		return arithmetic(pos, "%d is not a character code", a)
	}
	x.rt.PushChar(rune(a))
	return nil
}

func concat(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	rt := x.rt
	b, a := rt.PopRef(), rt.PopRef()
	r, err := stowed.Concat(rt, a, b, rt.Owner())
	if err != nil {
		return err
	}
	rt.PushRef(r)
	return nil
}

func stringEq(equal bool) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		rt := x.rt
		b, a := rt.PopRef(), rt.PopRef()
		sa, err := stowed.String(rt, a)
		if err != nil {
			return err
		}
		sb, err := stowed.String(rt, b)
		if err != nil {
			return err
		}
		rt.PushBool((sa == sb) == equal)
		return nil
	}
}

// --- Rows ------------------------------------------------------------------

// bound interrogates the bounds of a row. Dyadic forms take the dimension
// as their first operand.
func bound(upper, dyadic bool) operation {
	return func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		rt := x.rt
		row := rt.PopRef()
		dim := int64(1)
		if dyadic {
			dim = rt.PopInt()
		}
		bs, err := stowed.Bounds(rt, row)
		if err != nil {
			return err
		}
		if dim < 1 || dim > int64(len(bs)) {
			return runtime.Errorf(pos, runtime.IndexOutOfBounds,
				"row has %d dimensions, not %d", len(bs), dim)
		}
		b := bs[dim-1]
		if upper {
			rt.PushInt(int64(b.Upper))
		} else {
			rt.PushInt(int64(b.Lower))
		}
		return nil
	}
}

// --- Semaphores ------------------------------------------------------------

func semaNew(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	r, err := parallel.NewSema(x.rt, x.rt.PopInt())
	if err != nil {
		return err
	}
	x.rt.PushRef(r)
	return nil
}

func semaLevel(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	v, err := parallel.Level(x.rt, pos, x.rt.PopRef())
	if err != nil {
		return err
	}
	x.rt.PushInt(v)
	return nil
}

func semaUp(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	return x.sched.Up(x.rt, pos, x.rt.PopRef())
}

func semaDown(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	return x.sched.Down(x.rt, pos, x.rt.PopRef())
}

// --- Procedures ------------------------------------------------------------

func random(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
	x.rt.PushReal(x.rand.Float64())
	return nil
}

// printValue writes a united value without a trailing newline. Booleans
// print as T and F.
func printValue(x *Interpreter, pos genie.Pos, pm *mode.Mode) error {
	rt := x.rt
	um := pm.Params[0]
	v := rt.PopCopy(size(um))
	if !runtime.IsInitialized(v) {
		return runtime.Errorf(pos, runtime.Uninitialised, "print of an uninitialised value")
	}
	held := rt.Modes.ByID(runtime.UnionMode(v))
	payload := runtime.Payload(v)
	var s string
	switch {
	case held.Kind == mode.Int:
		s = strconv.FormatInt(runtime.GetInt(payload), 10)
	case held.Kind == mode.Real:
		s = strconv.FormatFloat(runtime.GetReal(payload), 'g', -1, 64)
	case held.Kind == mode.Bool:
		s = "F"
		if runtime.GetBool(payload) {
			s = "T"
		}
	case held.Kind == mode.Char:
		s = string(runtime.GetChar(payload))
	case held.IsRow() && held.Element().Kind == mode.Char:
		var err error
		if s, err = stowed.String(rt, runtime.GetRef(payload)); err != nil {
			return err
		}
	default:
		s = rt.FormatValue(held, payload)
	}
	if _, err := io.WriteString(x.out, s); err != nil {
		return runtime.Errorf(pos, runtime.ResourceExhausted, "cannot print: %v", err)
	}
	return nil
}

// standardIdentifier pushes the value of an identifier of the standard
// environment.
func (x *Interpreter) standardIdentifier(n *syntax.Node, key bind.Builtin) error {
	rt := x.rt
	if n.Tag.Mode.Kind == mode.Proc {
		id, ok := standardIDs[key]
		if !ok {
			runtime.Internal("no implementation of standard procedure %s", key)
		}
		rt.PushProc(runtime.Proc{Kind: runtime.Builtin, ID: id, Env: runtime.NoEnviron})
		return nil
	}
	switch key {
	case "pi":
		rt.PushReal(math.Pi)
	case "max int":
		rt.PushInt(math.MaxInt64)
	case "max real":
		rt.PushReal(math.MaxFloat64)
	case "small real":
		rt.PushReal(0x1p-52)
	default:
		runtime.Internal("no value for standard identifier %s", key)
	}
	return nil
}

func init() {
	for sym, f := range map[string]func(genie.Pos, int64, int64) (int64, error){
		"+": intAdd, "-": intSub, "*": intMul, "%": intOver, "MOD": intMod, "**": intPow,
	} {
		register(bind.Builtin("int"+sym), intOp(f))
	}
	register("int/", intDiv)
	for sym, f := range map[string]func(a, b float64) float64{
		"+": func(a, b float64) float64 { return a + b },
		"-": func(a, b float64) float64 { return a - b },
		"*": func(a, b float64) float64 { return a * b },
		"/": func(a, b float64) float64 { return a / b },
		"**": math.Pow,
	} {
		register(bind.Builtin("real"+sym), realOp(sym, f))
	}
	for _, sym := range []string{"<", "<=", ">", ">=", "=", "/="} {
		register(bind.Builtin("int"+sym), relation(sym, mode.Int))
		register(bind.Builtin("real"+sym), relation(sym, mode.Real))
		register(bind.Builtin("char"+sym), relation(sym, mode.Char))
	}
	register("bool=", boolOp(func(a, b bool) bool { return a == b }))
	register("bool/=", boolOp(func(a, b bool) bool { return a != b }))
	register("and", boolOp(func(a, b bool) bool { return a && b }))
	register("or", boolOp(func(a, b bool) bool { return a || b }))
	register("string+", concat)
	register("string=", stringEq(true))
	register("string/=", stringEq(false))
	register("upb", bound(true, true))
	register("lwb", bound(false, true))
	register("upb1", bound(true, false))
	register("lwb1", bound(false, false))
	register("int.neg", intMonadic(intNeg))
	register("int.abs", intMonadic(intAbs))
	register("real.neg", realMonadic(func(a float64) float64 { return -a }))
	register("real.abs", realMonadic(math.Abs))
	register("char.abs", func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		x.rt.PushInt(int64(x.rt.PopChar()))
		return nil
	})
	register("repr", repr)
	register("not", func(x *Interpreter, pos genie.Pos, _ *mode.Mode) error {
		x.rt.PushBool(!x.rt.PopBool())
		return nil
	})
	register("entier", toInt(math.Floor))
	register("round", toInt(math.Round))
	register("sema.new", semaNew)
	register("sema.level", semaLevel)
	register("sema.up", semaUp)
	register("sema.down", semaDown)
	positive := func(a float64) bool { return a >= 0 }
	unit := func(a float64) bool { return a >= -1 && a <= 1 }
	register("sqrt", realFunc("sqrt", math.Sqrt, positive))
	register("exp", realFunc("exp", math.Exp, nil))
	register("ln", realFunc("ln", math.Log, func(a float64) bool { return a > 0 }))
	register("sin", realFunc("sin", math.Sin, nil))
	register("cos", realFunc("cos", math.Cos, nil))
	register("tan", realFunc("tan", math.Tan, nil))
	register("arcsin", realFunc("arcsin", math.Asin, unit))
	register("arccos", realFunc("arccos", math.Acos, unit))
	register("arctan", realFunc("arctan", math.Atan, nil))
	register("random", random)
	register("print", printValue)
}
