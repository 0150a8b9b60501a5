package heap

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// WeakRef: a reference that does not keep its target alive
// ---------------------------------------------------------------------------

// WeakRef holds a reference to an object that the tracer does not
// follow. When the target is reclaimed by a collection cycle, the
// reference reads as dead. There is no finalization hook: a cleared
// ref is the only signal the host gets.
type WeakRef struct {
	id     uint32
	mu     sync.RWMutex
	target ObjectID // 0 once the target has been collected
}

// ID returns the weak reference's identifier within its heap.
func (wr *WeakRef) ID() uint32 { return wr.id }

// Target returns the referenced ObjectID, or 0 if the target has been
// collected.
func (wr *WeakRef) Target() ObjectID {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.target
}

// IsAlive returns true if the target object has not been collected.
func (wr *WeakRef) IsAlive() bool {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.target != 0
}

func (wr *WeakRef) clear() {
	wr.mu.Lock()
	wr.target = 0
	wr.mu.Unlock()
}

// weakSet tracks all weak references in one heap, indexed by target so
// the sweep can clear them as objects are removed.
type weakSet struct {
	mu       sync.Mutex
	byTarget map[ObjectID][]*WeakRef
	nextID   uint32
}

func newWeakSet() *weakSet {
	return &weakSet{
		byTarget: make(map[ObjectID][]*WeakRef),
		nextID:   1,
	}
}

func (ws *weakSet) add(target ObjectID) *WeakRef {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	wr := &WeakRef{id: ws.nextID, target: target}
	ws.nextID++
	ws.byTarget[target] = append(ws.byTarget[target], wr)
	return wr
}

// clearTarget clears every weak reference to id. Called by the heap's
// retain pass as objects are removed.
func (ws *weakSet) clearTarget(id ObjectID) {
	ws.mu.Lock()
	refs := ws.byTarget[id]
	delete(ws.byTarget, id)
	ws.mu.Unlock()

	for _, wr := range refs {
		wr.clear()
	}
}

// NewWeakRef creates a weak reference to the given live object.
func (h *Heap) NewWeakRef(target ObjectID) (*WeakRef, error) {
	h.mu.RLock()
	_, ok := h.objects[target]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownObject, target)
	}
	return h.weak.add(target), nil
}
