package heap

// ObjectID uniquely identifies a live object within one Heap.
// IDs start at 1; 0 is never assigned.
type ObjectID uint32

// Field is a named field value, used to seed objects at allocation.
type Field struct {
	Name  string
	Value Value
}

// Object is a heap-allocated entity: an identity plus an ordered set of
// named fields. References between objects are ordinary field values
// with the ref tag; they never own their target.
//
// The marked bit is transient collector state. It is false whenever a
// collection cycle is not in progress.
type Object struct {
	id     ObjectID
	fields []Field
	marked bool
}

func newObject(id ObjectID, fields []Field) *Object {
	obj := &Object{id: id}
	if len(fields) > 0 {
		obj.fields = make([]Field, len(fields))
		copy(obj.fields, fields)
	}
	return obj
}

// ID returns the object's identity.
func (obj *Object) ID() ObjectID { return obj.id }

// NumFields returns the number of fields on the object.
func (obj *Object) NumFields() int { return len(obj.fields) }

// Field returns the value of the named field and whether it exists.
func (obj *Object) Field(name string) (Value, bool) {
	for _, f := range obj.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Nil, false
}

// setField stores value under name, appending the field if it is new.
// Field order is allocation/insertion order and is stable under updates.
func (obj *Object) setField(name string, value Value) {
	for i := range obj.fields {
		if obj.fields[i].Name == name {
			obj.fields[i].Value = value
			return
		}
	}
	obj.fields = append(obj.fields, Field{Name: name, Value: value})
}

// removeField deletes the named field, reporting whether it existed.
func (obj *Object) removeField(name string) bool {
	for i := range obj.fields {
		if obj.fields[i].Name == name {
			obj.fields = append(obj.fields[:i], obj.fields[i+1:]...)
			return true
		}
	}
	return false
}

// ForEachField calls fn for each field in order.
func (obj *Object) ForEachField(fn func(name string, value Value)) {
	for _, f := range obj.fields {
		fn(f.Name, f.Value)
	}
}

// ForEachRef calls fn for the target of each reference-valued field.
// This is the tracer's edge expansion; scalar fields are skipped by tag.
func (obj *Object) ForEachRef(fn func(target ObjectID)) {
	for _, f := range obj.fields {
		if f.Value.IsRef() {
			fn(f.Value.Ref())
		}
	}
}

// snapshot returns a detached copy of the object that is safe to read
// without the heap lock. Later mutations through the heap are not
// reflected in it.
func (obj *Object) snapshot() *Object {
	return newObject(obj.id, obj.fields)
}

// Fields returns a copy of the object's fields in order.
func (obj *Object) Fields() []Field {
	out := make([]Field, len(obj.fields))
	copy(out, obj.fields)
	return out
}
