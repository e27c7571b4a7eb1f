package mode

import (
	"fmt"

	"github.com/cnf/structhash"
)

// Table collects the modes of a program. Standard modes are pre-defined.
// Constructed modes are interned, i.e. structurally identical constructions
// share a single *Mode as long as their components are interned, too.
type Table struct {
	modes  []*Mode
	byHash map[string]*Mode

	VOID   *Mode
	INT    *Mode
	REAL   *Mode
	BOOL   *Mode
	CHAR   *Mode
	SEMA   *Mode
	STRING *Mode
	ROWS   *Mode
	ERROR  *Mode
}

// NewTable creates a mode table with the standard modes.
func NewTable() *Table {
	t := &Table{
		modes:  []*Mode{nil}, // ID 0 is reserved
		byHash: make(map[string]*Mode),
	}
	t.VOID = t.Intern(&Mode{Kind: Void, Name: "VOID"})
	t.INT = t.Intern(&Mode{Kind: Int, Name: "INT"})
	t.REAL = t.Intern(&Mode{Kind: Real, Name: "REAL"})
	t.BOOL = t.Intern(&Mode{Kind: Bool, Name: "BOOL"})
	t.CHAR = t.Intern(&Mode{Kind: Char, Name: "CHAR"})
	t.SEMA = t.Intern(&Mode{Kind: Sema, Name: "SEMA"})
	t.ROWS = t.Intern(&Mode{Kind: Rows, Name: "ROWS"})
	t.ERROR = t.Intern(&Mode{Kind: Error, Name: "ERROR"})
	t.STRING = t.Intern(&Mode{Kind: Flex, Name: "STRING", Sub: t.RowOf(1, t.CHAR)})
	return t
}

// signature is the flat description of a mode used for interning.
// Components enter with their IDs only, therefore the signature is
// finite even for recursive modes.
type signature struct {
	Kind   int
	Name   string
	Dim    int
	Sub    int
	Fields []string
	Comps  []int
}

func (t *Table) signatureOf(m *Mode) (signature, bool) {
	sig := signature{Kind: int(m.Kind), Name: m.Name, Dim: m.Dim}
	component := func(c *Mode) (int, bool) {
		if c == nil {
			return 0, true
		}
		if c.ID == 0 || c.pending {
			return 0, false
		}
		return c.ID, true
	}
	var ok bool
	if sig.Sub, ok = component(m.Sub); !ok {
		return sig, false
	}
	for _, f := range m.Fields {
		id, ok := component(f.Mode)
		if !ok {
			return sig, false
		}
		sig.Fields = append(sig.Fields, f.Name)
		sig.Comps = append(sig.Comps, id)
	}
	for _, u := range m.Members {
		id, ok := component(u)
		if !ok {
			return sig, false
		}
		sig.Comps = append(sig.Comps, id)
	}
	for _, p := range m.Params {
		id, ok := component(p)
		if !ok {
			return sig, false
		}
		sig.Comps = append(sig.Comps, -id) // keep params apart from members
	}
	return sig, true
}

// Intern enters a mode into the table and assigns an ID. If a structurally
// identical mode is already present, the present one is returned.
func (t *Table) Intern(m *Mode) *Mode {
	if m.ID != 0 {
		return m
	}
	if !m.pending {
		if sig, ok := t.signatureOf(m); ok {
			h, err := structhash.Hash(sig, 1)
			if err == nil {
				if known, found := t.byHash[h]; found {
					return known
				}
				t.byHash[h] = m
			} else {
				tracer().Errorf("cannot hash mode signature: %v", err)
			}
		}
	}
	m.ID = len(t.modes)
	t.modes = append(t.modes, m)
	return m
}

// ByID returns the mode with a given ID, or nil.
func (t *Table) ByID(id int) *Mode {
	if id <= 0 || id >= len(t.modes) {
		return nil
	}
	return t.modes[id]
}

// Len returns the number of modes in the table.
func (t *Table) Len() int {
	return len(t.modes) - 1
}

// Indicant creates a pending mode for a mode declaration. It will be
// completed with Define once its declarer has been resolved.
func (t *Table) Indicant(name string) *Mode {
	return t.Intern(&Mode{Kind: Error, Name: name, pending: true})
}

// RefTo constructs REF m.
func (t *Table) RefTo(m *Mode) *Mode {
	return t.Intern(&Mode{Kind: Ref, Sub: m})
}

// RowOf constructs a row mode of dim dimensions.
func (t *Table) RowOf(dim int, elem *Mode) *Mode {
	return t.Intern(&Mode{Kind: Row, Dim: dim, Sub: elem})
}

// FlexOf constructs FLEX row. Argument must be a ROW mode.
func (t *Table) FlexOf(row *Mode) *Mode {
	if row.Kind != Row {
		panic(fmt.Sprintf("internal consistency: FLEX of non-row mode %s", row))
	}
	return t.Intern(&Mode{Kind: Flex, Sub: row})
}

// ProcOf constructs a procedure mode.
func (t *Table) ProcOf(params []*Mode, result *Mode) *Mode {
	return t.Intern(&Mode{Kind: Proc, Params: params, Sub: result})
}

// StructOf constructs a structured mode.
func (t *Table) StructOf(fields []Field) *Mode {
	return t.Intern(&Mode{Kind: Struct, Fields: fields})
}

// UnionOf constructs a united mode. Nested unions are flattened and
// duplicate members removed.
func (t *Table) UnionOf(members []*Mode) *Mode {
	flat := make([]*Mode, 0, len(members))
	var add func(u *Mode)
	add = func(u *Mode) {
		if u != nil && u.Kind == Union && !u.pending {
			for _, v := range u.Members {
				add(v)
			}
			return
		}
		for _, v := range flat {
			if Equivalent(u, v) {
				return
			}
		}
		flat = append(flat, u)
	}
	for _, u := range members {
		add(u)
	}
	return t.Intern(&Mode{Kind: Union, Members: flat})
}

// Yield returns REF m if primary is a name, m otherwise. It is used for
// slices and selections, which yield names if their primary is a name.
func (t *Table) Yield(primary, m *Mode) *Mode {
	if primary != nil && primary.Kind == Ref {
		return t.RefTo(m)
	}
	return m
}
