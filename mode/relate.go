package mode

// Relations between modes.

type modePair [2]*Mode

// Equivalent tests two modes for structural equivalence. Recursive modes are
// handled by assuming pairs under comparison to be equivalent (co-induction).
func Equivalent(a, b *Mode) bool {
	return equivalent(a, b, make(map[modePair]bool))
}

func equivalent(a, b *Mode, assumed map[modePair]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	key := modePair{a, b}
	if assumed[key] {
		return true
	}
	assumed[key] = true
	switch a.Kind {
	case Ref, Flex:
		return equivalent(a.Sub, b.Sub, assumed)
	case Row:
		return a.Dim == b.Dim && equivalent(a.Sub, b.Sub, assumed)
	case Struct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name {
				return false
			}
			if !equivalent(a.Fields[i].Mode, b.Fields[i].Mode, assumed) {
				return false
			}
		}
		return true
	case Union:
		return unionCovers(a, b, assumed) && unionCovers(b, a, assumed)
	case Proc:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !equivalent(a.Params[i], b.Params[i], assumed) {
				return false
			}
		}
		return equivalent(a.Sub, b.Sub, assumed)
	}
	return true // primitive modes of equal kind
}

// every member of a has an equivalent member in b
func unionCovers(a, b *Mode, assumed map[modePair]bool) bool {
	for _, u := range a.Members {
		found := false
		for _, v := range b.Members {
			if equivalent(u, v, assumed) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// maxCoercions bounds chains of dereferencing and deproceduring.
const maxCoercions = 64

// Deref strips one REF, if present.
func Deref(m *Mode) *Mode {
	if m != nil && m.Kind == Ref {
		return m.Sub
	}
	return m
}

// IsParameterless is true for procedure modes without parameters.
func (m *Mode) IsParameterless() bool {
	return m != nil && m.Kind == Proc && len(m.Params) == 0
}

// Firm strips REFs and parameterless PROCs, i.e. applies the coercions
// allowed in a firm position (operands of formulas).
func Firm(m *Mode) *Mode {
	for i := 0; i < maxCoercions && m != nil; i++ {
		switch {
		case m.Kind == Ref:
			m = m.Sub
		case m.IsParameterless():
			m = m.Sub
		default:
			return m
		}
	}
	return m
}

// firmChain lists m and every mode reachable from it by firm coercions.
func firmChain(m *Mode) []*Mode {
	chain := []*Mode{m}
	for i := 0; i < maxCoercions && m != nil; i++ {
		if m.Kind == Ref || m.IsParameterless() {
			m = m.Sub
			chain = append(chain, m)
		} else {
			break
		}
	}
	return chain
}

// FirmlyRelated tests if one of two modes can be firmly coerced into the other.
// Operators with firmly related operands cannot be told apart in a formula,
// and neither can members of a union.
func FirmlyRelated(a, b *Mode) bool {
	for _, u := range firmChain(a) {
		if Equivalent(u, b) {
			return true
		}
	}
	for _, v := range firmChain(b) {
		if Equivalent(a, v) {
			return true
		}
	}
	return false
}

// Widens is true if a value of mode from may be widened to mode to.
func Widens(from, to *Mode) bool {
	return from != nil && to != nil && from.Kind == Int && to.Kind == Real
}

// Accepts tests if an operand of mode arg may be passed to a parameter of
// mode param in a firm position: firm coercions first, then widening.
// Unions accept any of their members and smaller unions, ROWS accepts any row.
func Accepts(param, arg *Mode) bool {
	if param == nil || arg == nil {
		return false
	}
	if param.Kind == Error || arg.Kind == Error {
		return true
	}
	for _, u := range firmChain(arg) {
		if Equivalent(param, u) || SameRow(param, u) {
			return true
		}
	}
	firm := Firm(arg)
	switch {
	case Widens(firm, param):
		return true
	case param.Kind == Rows:
		return firm.IsRow()
	case param.Kind == Union && firm.Kind == Union:
		return unionCovers(firm, param, make(map[modePair]bool))
	case param.Kind == Union:
		return param.MemberIndex(firm) >= 0
	}
	return false
}

// SameRow is true if a and b are a row mode and a flexible version of it.
// Values of both share one representation.
func SameRow(a, b *Mode) bool {
	if a == nil || b == nil {
		return false
	}
	return Equivalent(a.RowMode(), b.RowMode()) && a.IsRow() && b.IsRow()
}

// FirmMatch is the strict part of Accepts: the argument mode, after firm
// coercions, is equivalent to the parameter mode.
func FirmMatch(param, arg *Mode) bool {
	if param == nil || arg == nil {
		return false
	}
	for _, u := range firmChain(arg) {
		if Equivalent(param, u) {
			return true
		}
	}
	return false
}
