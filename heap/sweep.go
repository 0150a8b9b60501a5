package heap

// sweep removes every unmarked object from the heap and resets the mark
// bit on every survivor, so the heap is back at rest (all marks false)
// when it returns. Swept objects are discarded outright: no finalizers,
// no slot reuse.
//
// Callers hold the heap write lock. Returns the number of objects swept.
func (h *Heap) sweep() int {
	swept := h.retain(func(obj *Object) bool {
		return obj.marked
	})

	// Reset marks immediately after filtering rather than relying on the
	// next mark phase to overwrite them; IsMarked must read false the
	// moment a cycle ends.
	for _, id := range h.order {
		h.objects[id].marked = false
	}
	return swept
}
