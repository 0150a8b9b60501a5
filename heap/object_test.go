package heap

import "testing"

// ---------------------------------------------------------------------------
// Object field tests
// ---------------------------------------------------------------------------

func TestObjectFieldOrder(t *testing.T) {
	obj := newObject(1, []Field{
		{Name: "a", Value: FromInt(1)},
		{Name: "b", Value: FromInt(2)},
	})
	obj.setField("c", FromInt(3))
	obj.setField("a", FromInt(10)) // update must not reorder

	var names []string
	obj.ForEachField(func(name string, _ Value) {
		names = append(names, name)
	})
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("got %d fields, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, names[i], want[i])
		}
	}

	v, ok := obj.Field("a")
	if !ok || v.Int() != 10 {
		t.Errorf("Field(a) = %v, %v; want 10, true", v, ok)
	}
}

func TestObjectRemoveField(t *testing.T) {
	obj := newObject(1, []Field{{Name: "x", Value: FromInt(1)}})
	if !obj.removeField("x") {
		t.Error("removeField(x) = false, want true")
	}
	if obj.removeField("x") {
		t.Error("second removeField(x) = true, want false")
	}
	if _, ok := obj.Field("x"); ok {
		t.Error("field x still present after removal")
	}
	if obj.NumFields() != 0 {
		t.Errorf("NumFields() = %d, want 0", obj.NumFields())
	}
}

func TestObjectForEachRefSkipsScalars(t *testing.T) {
	obj := newObject(1, []Field{
		{Name: "n", Value: FromInt(5)},
		{Name: "next", Value: FromRef(2)},
		{Name: "f", Value: FromFloat64(1.5)},
		{Name: "other", Value: FromRef(3)},
		{Name: "flag", Value: True},
	})

	var targets []ObjectID
	obj.ForEachRef(func(id ObjectID) {
		targets = append(targets, id)
	})
	if len(targets) != 2 || targets[0] != 2 || targets[1] != 3 {
		t.Errorf("ForEachRef targets = %v, want [2 3]", targets)
	}
}

func TestObjectMissingFieldReadsNil(t *testing.T) {
	obj := newObject(1, nil)
	v, ok := obj.Field("nope")
	if ok {
		t.Error("Field(nope) ok = true, want false")
	}
	if v != Nil {
		t.Errorf("Field(nope) = %v, want Nil", v)
	}
}
