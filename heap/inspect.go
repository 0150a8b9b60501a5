package heap

import (
	"fmt"
	"io"
	"strings"
)

// FormatValue renders a value for diagnostics: scalars by content,
// references as "->id".
func FormatValue(v Value) string {
	switch {
	case v == Nil:
		return "nil"
	case v == True:
		return "true"
	case v == False:
		return "false"
	case v.IsInt():
		return fmt.Sprintf("%d", v.Int())
	case v.IsRef():
		return fmt.Sprintf("->%d", v.Ref())
	case v.IsFloat():
		return fmt.Sprintf("%g", v.Float64())
	default:
		return "?"
	}
}

// DumpTo writes a human-readable listing of every live object in heap
// order, one line per object, root first. Intended for diagnostics and
// the CLI; the format is not stable.
func (h *Heap) DumpTo(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i, id := range h.order {
		obj := h.objects[id]
		var b strings.Builder
		fmt.Fprintf(&b, "#%d", id)
		if i == 0 {
			b.WriteString(" (root)")
		}
		b.WriteString(" {")
		for j, f := range obj.fields {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(FormatValue(f.Value))
		}
		b.WriteString("}\n")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}
