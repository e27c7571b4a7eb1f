package runtime

import (
	"github.com/npillmayer/genie"
)

// OwnerKind tells who is responsible for the lifetime of a handle.
type OwnerKind uint8

// Owners of handles.
const (
	OnHeap  OwnerKind = iota // reclaimed by the collector, if ever
	OnStack                  // released when the owning frame is closed
)

// Owner describes the owner of a handle. For handles owned by a frame, Frame
// is the frame number and Scope the scope marker of the frame.
type Owner struct {
	Kind  OwnerKind
	Frame int
	Scope int
}

// HeapOwner is the owner of heap generated values.
var HeapOwner = Owner{Kind: OnHeap}

// Handle is an entry of the heap arena. It holds raw storage (Data) or a Go
// object, e.g. a row descriptor.
type Handle struct {
	Data    []byte
	Object  interface{}
	Owner   Owner
	Protect int // protected handles survive sweeps and frame exits
	Live    bool
	size    int
}

// Collector is the interface to a garbage collector. The collector is not
// part of genie; Sweep is called when the heap runs short.
type Collector interface {
	Sweep(h *Heap)
}

// CountingCollector is the default collector. It does not reclaim anything,
// it just counts sweep requests.
type CountingCollector struct {
	Requests int
}

// Sweep counts a sweep request.
func (c *CountingCollector) Sweep(h *Heap) {
	c.Requests++
	tracer().Debugf("sweep request #%d, %d live handles, occupancy %d%%",
		c.Requests, h.Live(), h.Occupancy())
}

// Heap is an arena of handles. Handle 0 is the nil handle.
type Heap struct {
	handles    []*Handle
	free       []uint32
	used       int // bytes held by live handles
	live       int
	maxHandles int
	maxBytes   int
	sweepAt    int // occupancy in percent
	sweepFree  int
	byFrame    map[int][]uint32 // frame-owned handles per frame number
	collector  Collector
}

// NewHeap creates a heap with the handle and size limits of l.
func NewHeap(l Limits) *Heap {
	l = l.WithDefaults()
	return &Heap{
		handles:    []*Handle{nil},
		maxHandles: l.HeapHandles,
		maxBytes:   l.HeapSize,
		sweepAt:    l.SweepOccupancy,
		sweepFree:  l.SweepFreeHandles,
		byFrame:    make(map[int][]uint32),
		collector:  &CountingCollector{},
	}
}

// SetCollector installs a collector.
func (h *Heap) SetCollector(c Collector) {
	if c != nil {
		h.collector = c
	}
}

// Collector returns the installed collector.
func (h *Heap) Collector() Collector {
	return h.collector
}

// Allocate creates a handle with size bytes of zeroed storage.
func (h *Heap) Allocate(size int, owner Owner) (uint32, error) {
	id, err := h.allocate(size, owner)
	if err != nil {
		return 0, err
	}
	h.handles[id].Data = make([]byte, size)
	return id, nil
}

// AllocateObject creates a handle for a Go object. size is the number of
// bytes the object is accounted for.
func (h *Heap) AllocateObject(obj interface{}, size int, owner Owner) (uint32, error) {
	id, err := h.allocate(size, owner)
	if err != nil {
		return 0, err
	}
	h.handles[id].Object = obj
	return id, nil
}

func (h *Heap) allocate(size int, owner Owner) (uint32, error) {
	if !h.fits(size) {
		h.Sweep()
		if !h.fits(size) {
			return 0, Errorf(genie.NoPos, ResourceExhausted,
				"heap exhausted: %d live handles, %d bytes in use", h.live, h.used)
		}
	}
	var id uint32
	if n := len(h.free); n > 0 {
		id = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		id = uint32(len(h.handles))
		h.handles = append(h.handles, &Handle{})
	}
	*h.handles[id] = Handle{Owner: owner, Live: true, size: size}
	h.used += size
	h.live++
	if owner.Kind == OnStack {
		h.byFrame[owner.Frame] = append(h.byFrame[owner.Frame], id)
	}
	return id, nil
}

func (h *Heap) fits(size int) bool {
	return h.live < h.maxHandles && h.used+size <= h.maxBytes
}

// Handle returns a live handle, or nil.
func (h *Heap) Handle(id uint32) *Handle {
	if id == 0 || int(id) >= len(h.handles) || !h.handles[id].Live {
		return nil
	}
	return h.handles[id]
}

// Protect keeps a handle alive across sweeps and frame exits.
func (h *Heap) Protect(id uint32) {
	if hd := h.Handle(id); hd != nil {
		hd.Protect++
	}
}

// Unprotect undoes one call to Protect.
func (h *Heap) Unprotect(id uint32) {
	if hd := h.Handle(id); hd != nil && hd.Protect > 0 {
		hd.Protect--
	}
}

// Release returns a handle to the arena.
func (h *Heap) Release(id uint32) {
	hd := h.Handle(id)
	if hd == nil {
		return
	}
	h.used -= hd.size
	h.live--
	*hd = Handle{}
	h.free = append(h.free, id)
}

// ReleaseFrame releases the handles owned by a frame. Protected handles are
// handed over to the heap. Returns the number of released handles.
func (h *Heap) ReleaseFrame(frame int) int {
	ids, ok := h.byFrame[frame]
	if !ok {
		return 0
	}
	delete(h.byFrame, frame)
	n := 0
	for _, id := range ids {
		hd := h.Handle(id)
		if hd == nil || hd.Owner.Kind != OnStack || hd.Owner.Frame != frame {
			continue
		}
		if hd.Protect > 0 {
			hd.Owner = HeapOwner
			continue
		}
		h.Release(id)
		n++
	}
	return n
}

// Live returns the number of live handles.
func (h *Heap) Live() int {
	return h.live
}

// Occupancy returns the percentage of heap storage in use.
func (h *Heap) Occupancy() int {
	if h.maxBytes == 0 {
		return 0
	}
	return int(int64(h.used) * 100 / int64(h.maxBytes))
}

// FreeHandles returns the number of handles which may still be allocated.
func (h *Heap) FreeHandles() int {
	return h.maxHandles - h.live
}

// Sweep hands the heap to the collector.
func (h *Heap) Sweep() {
	h.collector.Sweep(h)
}

// PreemptiveSweep requests a sweep if occupancy or the number of free handles
// cross their thresholds. Returns true if a sweep has been requested.
func (h *Heap) PreemptiveSweep() bool {
	if h.Occupancy() >= h.sweepAt || h.FreeHandles() < h.sweepFree {
		h.Sweep()
		return true
	}
	return false
}
