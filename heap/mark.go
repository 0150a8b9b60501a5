package heap

// markFromRoot marks every object reachable from the root via zero or
// more reference hops. It uses an explicit worklist rather than
// recursion, so arbitrarily deep or cyclic graphs cannot blow the stack.
// An empty heap marks nothing; that is not an error.
//
// Callers hold the heap write lock. Returns the number of objects marked.
func (h *Heap) markFromRoot() int {
	if len(h.order) == 0 {
		return 0
	}

	marked := 0
	worklist := []ObjectID{h.order[0]}

	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		obj, ok := h.objects[id]
		if !ok {
			// Dangling edge: the field still names an id that was swept
			// in an earlier cycle. Nothing to mark through it.
			continue
		}
		if obj.marked {
			// Already visited. This check is what terminates the walk on
			// cycles and keeps shared targets from being expanded twice.
			continue
		}
		obj.marked = true
		marked++

		// Push every outgoing edge, duplicates included; the marked
		// check above filters them on pop.
		obj.ForEachRef(func(target ObjectID) {
			worklist = append(worklist, target)
		})
	}
	return marked
}
