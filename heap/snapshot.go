package heap

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Snapshot wire format
// ---------------------------------------------------------------------------

// SnapshotMagic identifies a tracegc heap snapshot.
var SnapshotMagic = [4]byte{'T', 'G', 'C', 'S'}

// Snapshot format version.
// v1: initial format
const SnapshotVersion uint32 = 1

// ErrBadSnapshot indicates data that is not a tracegc snapshot.
var ErrBadSnapshot = errors.New("not a tracegc snapshot")

// ErrSnapshotVersion indicates a snapshot written by an unsupported
// format version.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// Field payload kinds on the wire.
const (
	wireNil uint8 = iota
	wireBool
	wireInt
	wireFloat
	wireRef
)

type wireField struct {
	Name  string  `cbor:"1,keyasint"`
	Kind  uint8   `cbor:"2,keyasint"`
	Int   int64   `cbor:"3,keyasint,omitempty"`
	Float float64 `cbor:"4,keyasint,omitempty"`
	Ref   uint32  `cbor:"5,keyasint,omitempty"`
	Bool  bool    `cbor:"6,keyasint,omitempty"`
}

type wireObject struct {
	ID     uint32      `cbor:"1,keyasint"`
	Fields []wireField `cbor:"2,keyasint,omitempty"`
}

type wireSnapshot struct {
	Magic   [4]byte      `cbor:"1,keyasint"`
	Version uint32       `cbor:"2,keyasint"`
	HeapID  string       `cbor:"3,keyasint"`
	NextID  uint32       `cbor:"4,keyasint"`
	Objects []wireObject `cbor:"5,keyasint"`
}

// Canonical mode keeps snapshot bytes deterministic for a given heap.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("heap: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func encodeField(f Field) wireField {
	wf := wireField{Name: f.Name}
	switch {
	case f.Value == Nil:
		wf.Kind = wireNil
	case f.Value.IsBool():
		wf.Kind = wireBool
		wf.Bool = f.Value.Bool()
	case f.Value.IsInt():
		wf.Kind = wireInt
		wf.Int = f.Value.Int()
	case f.Value.IsRef():
		wf.Kind = wireRef
		wf.Ref = uint32(f.Value.Ref())
	default:
		wf.Kind = wireFloat
		wf.Float = f.Value.Float64()
	}
	return wf
}

func decodeField(wf wireField) (Field, error) {
	f := Field{Name: wf.Name}
	switch wf.Kind {
	case wireNil:
		f.Value = Nil
	case wireBool:
		f.Value = FromBool(wf.Bool)
	case wireInt:
		if wf.Int > MaxInt || wf.Int < MinInt {
			return Field{}, fmt.Errorf("%w: int field %q out of range", ErrBadSnapshot, wf.Name)
		}
		f.Value = FromInt(wf.Int)
	case wireFloat:
		v := FromFloat64(wf.Float)
		if !v.IsFloat() {
			// A NaN payload that collides with the tag space would turn a
			// scalar into a bogus reference.
			return Field{}, fmt.Errorf("%w: float field %q has tagged NaN payload", ErrBadSnapshot, wf.Name)
		}
		f.Value = v
	case wireRef:
		f.Value = FromRef(ObjectID(wf.Ref))
	default:
		return Field{}, fmt.Errorf("%w: unknown field kind %d", ErrBadSnapshot, wf.Kind)
	}
	return f, nil
}

// EncodeSnapshot serializes the heap's full live set to canonical CBOR.
// The mark bit is transient state and is never part of a snapshot.
func (h *Heap) EncodeSnapshot() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := wireSnapshot{
		Magic:   SnapshotMagic,
		Version: SnapshotVersion,
		HeapID:  h.instanceID,
		NextID:  uint32(h.nextID),
		Objects: make([]wireObject, 0, len(h.order)),
	}
	for _, id := range h.order {
		obj := h.objects[id]
		wo := wireObject{ID: uint32(id)}
		for _, f := range obj.fields {
			wo.Fields = append(wo.Fields, encodeField(f))
		}
		snap.Objects = append(snap.Objects, wo)
	}
	return cborEncMode.Marshal(&snap)
}

// DecodeSnapshot reconstructs a heap from snapshot bytes. The decoded
// heap keeps the snapshot's object identities, heap order, and next-ID
// counter, so IDs allocated after a restore never collide with restored
// objects.
func DecodeSnapshot(data []byte) (*Heap, error) {
	var snap wireSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if snap.Magic != SnapshotMagic {
		return nil, ErrBadSnapshot
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrSnapshotVersion, snap.Version)
	}

	h := New()
	if snap.HeapID != "" {
		h.instanceID = snap.HeapID
	}
	for _, wo := range snap.Objects {
		id := ObjectID(wo.ID)
		if id == 0 {
			return nil, fmt.Errorf("%w: object id 0", ErrBadSnapshot)
		}
		if _, dup := h.objects[id]; dup {
			return nil, fmt.Errorf("%w: duplicate object id %d", ErrBadSnapshot, id)
		}
		fields := make([]Field, 0, len(wo.Fields))
		for _, wf := range wo.Fields {
			f, err := decodeField(wf)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		h.objects[id] = newObject(id, fields)
		h.order = append(h.order, id)
		if id >= h.nextID {
			h.nextID = id + 1
		}
	}
	if ObjectID(snap.NextID) > h.nextID {
		h.nextID = ObjectID(snap.NextID)
	}
	return h, nil
}

// WriteSnapshotFile writes the heap's snapshot to the given path.
func (h *Heap) WriteSnapshotFile(path string) error {
	data, err := h.EncodeSnapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshotFile reads a snapshot file and reconstructs its heap.
func ReadSnapshotFile(path string) (*Heap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot %q: %w", path, err)
	}
	return DecodeSnapshot(data)
}
