// Package heap implements an embeddable object heap with a tracing
// mark-and-sweep garbage collector. A host program allocates objects
// into a Heap, links them through reference-valued fields, and invokes
// the GC to reclaim everything no longer reachable from the root.
package heap

import "math"

// Value represents a single field value using NaN-boxing.
//
// All values are 64-bit IEEE 754 doubles. Non-float values are encoded
// in the quiet-NaN space using tag bits:
//   - Float: native IEEE 754 double (anything that is not a tagged NaN)
//   - Int: quiet NaN + tagInt + 48-bit signed payload
//   - Ref: quiet NaN + tagRef + 32-bit ObjectID payload
//   - Special: quiet NaN + tagSpecial + payload (nil/true/false)
//
// Refs are the only values the tracer follows; whether a field is a
// reference is a tag check, never a runtime type probe.
type Value uint64

const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0.
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space.
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits for int/id payloads.
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	tagRef     uint64 = 0x0001000000000000 // heap object reference
	tagInt     uint64 = 0x0002000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0003000000000000 // nil, true, false

	// Sign bit and extension mask for 48-bit integers.
	intSignBit    uint64 = 0x0000800000000000
	intSignExtend uint64 = 0xFFFF000000000000
)

const (
	specialNil   uint64 = 0
	specialTrue  uint64 = 1
	specialFalse uint64 = 2
)

// Pre-defined special values.
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)
)

// Int range (48-bit signed).
const (
	MaxInt int64 = (1 << 47) - 1
	MinInt int64 = -(1 << 47)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsRef returns true if v references a heap object.
func (v Value) IsRef() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagRef)
}

// IsInt returns true if v is a boxed integer.
func (v Value) IsInt() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagInt)
}

// IsSpecial returns true if v is nil, true, or false.
func (v Value) IsSpecial() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagSpecial)
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool { return v == Nil }

// IsBool returns true if v is true or false.
func (v Value) IsBool() bool { return v == True || v == False }

// IsFloat returns true if v is a float64 value, i.e. not one of the
// tagged NaN encodings. Infinities and untagged NaNs count as floats.
func (v Value) IsFloat() bool {
	bits := uint64(v)
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true // exponent not all 1s: a regular float
	}
	mantissa := bits & 0x000FFFFFFFFFFFFF
	if mantissa == 0 {
		return true // +Inf or -Inf
	}
	if (bits & nanBits) != nanBits {
		return true // signaling NaN, not ours
	}
	// Quiet NaN: ours only if a tag is set.
	return bits&tagMask == 0
}

// IsScalar returns true if v is anything other than a reference.
func (v Value) IsScalar() bool { return !v.IsRef() }

// ---------------------------------------------------------------------------
// Constructors and accessors
// ---------------------------------------------------------------------------

// Ref returns the ObjectID encoded in v.
// Panics if v is not a reference.
func (v Value) Ref() ObjectID {
	if !v.IsRef() {
		panic("Value.Ref: not a reference")
	}
	return ObjectID(uint64(v) & payloadMask)
}

// FromRef creates a reference Value for the given ObjectID.
func FromRef(id ObjectID) Value {
	return Value(nanBits | tagRef | uint64(id))
}

// Int returns v as an int64.
// Panics if v is not a boxed integer.
func (v Value) Int() int64 {
	if !v.IsInt() {
		panic("Value.Int: not an integer")
	}
	payload := uint64(v) & payloadMask
	if (payload & intSignBit) != 0 {
		payload |= intSignExtend // sign extend from 48 bits
	}
	return int64(payload)
}

// FromInt creates a Value from an int64.
// Panics if n is outside the 48-bit boxed range.
func FromInt(n int64) Value {
	if n > MaxInt || n < MinInt {
		panic("FromInt: value out of range")
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask))
}

// Float64 returns v as a float64.
// Panics if v is not a float.
func (v Value) Float64() float64 {
	if !v.IsFloat() {
		panic("Value.Float64: not a float")
	}
	return math.Float64frombits(uint64(v))
}

// FromFloat64 creates a Value from a float64.
func FromFloat64(f float64) Value {
	return Value(math.Float64bits(f))
}

// Bool returns v as a bool.
// Panics if v is not true or false.
func (v Value) Bool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	default:
		panic("Value.Bool: not a boolean")
	}
}

// FromBool creates a Value from a bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}
