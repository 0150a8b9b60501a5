package heap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownObject indicates an ObjectID that is not (or is no longer)
// live in the heap. Typically the object was reclaimed by a collection
// and the host kept a stale ID.
var ErrUnknownObject = errors.New("unknown object")

// ErrNoRoot indicates the heap is empty and has no root object.
var ErrNoRoot = errors.New("heap has no root")

// ---------------------------------------------------------------------------
// Heap: owns all object storage and lifetime
// ---------------------------------------------------------------------------

// Heap is an ordered collection of live objects. The first object ever
// allocated is the root: the sole entry point for reachability. Objects
// leave the heap only when a collection cycle finds them unreachable.
//
// A Heap is safe for concurrent use; the collector takes the write lock
// for the duration of a cycle, so host mutation never interleaves with
// mark or sweep.
type Heap struct {
	mu      sync.RWMutex
	objects map[ObjectID]*Object
	order   []ObjectID // insertion order; order[0] is the root
	nextID  ObjectID
	weak    *weakSet

	// instanceID distinguishes this heap in logs and the history store.
	instanceID string
}

// New creates an empty Heap.
func New() *Heap {
	return &Heap{
		objects:    make(map[ObjectID]*Object),
		nextID:     1, // 0 is never a valid ObjectID
		weak:       newWeakSet(),
		instanceID: "heap_" + uuid.New().String(),
	}
}

// ID returns the heap's instance identifier.
func (h *Heap) ID() string { return h.instanceID }

// Allocate creates a new object with the given initial fields, inserts
// it into the heap, and returns its identity. The first allocation
// becomes the root for the lifetime of the heap. Allocation never fails.
func (h *Heap) Allocate(fields ...Field) ObjectID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.objects[id] = newObject(id, fields)
	h.order = append(h.order, id)
	return id
}

// Get returns a read snapshot of the object with the given identity.
// The snapshot is detached: mutations made through the heap after Get
// returns are not visible in it, so it can be read while other
// goroutines mutate or collect the heap.
func (h *Heap) Get(id ObjectID) (*Object, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	obj, ok := h.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownObject, id)
	}
	return obj.snapshot(), nil
}

// Field returns the value of the named field on the given object.
// Missing fields read as Nil.
func (h *Heap) Field(id ObjectID, name string) (Value, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	obj, ok := h.objects[id]
	if !ok {
		return Nil, fmt.Errorf("%w: id %d", ErrUnknownObject, id)
	}
	v, _ := obj.Field(name)
	return v, nil
}

// SetField stores value under name on the given object. Storing a ref
// value adds an edge to the object graph; the target is not checked for
// liveness here — a stale target surfaces as ErrUnknownObject when the
// host next dereferences it, never as a collector fault.
func (h *Heap) SetField(id ObjectID, name string, value Value) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj, ok := h.objects[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownObject, id)
	}
	obj.setField(name, value)
	return nil
}

// RemoveField deletes the named field from the given object. Removing a
// ref field removes an edge; removing a field that does not exist is
// not an error.
func (h *Heap) RemoveField(id ObjectID, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj, ok := h.objects[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownObject, id)
	}
	obj.removeField(name)
	return nil
}

// Root returns the identity of the root object.
func (h *Heap) Root() (ObjectID, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.order) == 0 {
		return 0, ErrNoRoot
	}
	return h.order[0], nil
}

// Len returns the number of live objects.
func (h *Heap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.objects)
}

// Contains reports whether id refers to a live object.
func (h *Heap) Contains(id ObjectID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.objects[id]
	return ok
}

// IsMarked reports the object's mark bit. Outside an in-progress
// collection this always reads false; unknown IDs also read false.
// Exposed for test inspection.
func (h *Heap) IsMarked(id ObjectID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	obj, ok := h.objects[id]
	return ok && obj.marked
}

// ForEachObject calls fn for each live object in heap order until fn
// returns false. Each call restarts from the beginning of the heap.
func (h *Heap) ForEachObject(fn func(id ObjectID) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range h.order {
		if !fn(id) {
			return
		}
	}
}

// retain removes every object for which pred is false, preserving heap
// order among survivors. Collector use only; callers hold the write lock.
func (h *Heap) retain(pred func(*Object) bool) int {
	kept := h.order[:0]
	removed := 0
	for _, id := range h.order {
		obj := h.objects[id]
		if pred(obj) {
			kept = append(kept, id)
			continue
		}
		delete(h.objects, id)
		h.weak.clearTarget(id)
		removed++
	}
	h.order = kept
	return removed
}
