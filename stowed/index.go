package stowed

// Index is a cursor over the index vectors of a row, in row-major order:
// the last dimension varies fastest.
//
//    for x := NewIndex(a); !x.Done(); x.Increment() {
//        cell := storage[x.Calculate():]
//        ...
//    }
//
type Index struct {
	a    *Array
	k    []int
	done bool
}

// NewIndex creates a cursor positioned at the lower bounds of a. For empty
// rows the cursor is done from the start.
func NewIndex(a *Array) *Index {
	x := &Index{a: a, k: make([]int, len(a.Tuples))}
	for d, t := range a.Tuples {
		x.k[d] = t.Lower
		if t.Upper < t.Lower {
			x.done = true
		}
	}
	return x
}

// Done is true if the cursor has passed the last index vector.
func (x *Index) Done() bool {
	return x.done
}

// Increment advances the cursor. Returns false if it has been advanced past
// the last index vector.
func (x *Index) Increment() bool {
	if x.done {
		return false
	}
	for d := len(x.k) - 1; d >= 0; d-- {
		if x.k[d] < x.a.Tuples[d].Upper {
			x.k[d]++
			return true
		}
		x.k[d] = x.a.Tuples[d].Lower
	}
	x.done = true
	return false
}

// Values returns the current index vector. It is overwritten by Increment.
func (x *Index) Values() []int {
	return x.k
}

// Calculate returns the byte offset of the current element within the
// storage of the row.
func (x *Index) Calculate() int {
	return x.a.Offset(x.k)
}
