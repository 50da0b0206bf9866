package domain

import (
	"fmt"
	"math"
)

// Value is the VM's native operand cell.
//
// The interpreter keeps 128 bits per cell so that vector values fit, but the
// persisted form is only the low 64 bits. Restoring a Value whose high half
// was non-zero yields a different Value; see Wide.
type Value struct {
	Lo uint64
	Hi uint64
}

// ValueOf returns a Value holding u in its low half.
func ValueOf(u uint64) Value {
	return Value{Lo: u}
}

// ValueOfI32 returns a Value holding the zero-extended bits of v.
func ValueOfI32(v int32) Value {
	return Value{Lo: uint64(uint32(v))}
}

// ValueOfI64 returns a Value holding the bits of v.
func ValueOfI64(v int64) Value {
	return Value{Lo: uint64(v)}
}

// ValueOfF64 returns a Value holding the IEEE-754 bits of v.
func ValueOfF64(v float64) Value {
	return Value{Lo: math.Float64bits(v)}
}

// Uint64 returns the low 64 bits, which is exactly what a snapshot keeps.
func (v Value) Uint64() uint64 {
	return v.Lo
}

// I32 interprets the low 32 bits as a signed integer.
func (v Value) I32() int32 {
	return int32(uint32(v.Lo))
}

// I64 interprets the low 64 bits as a signed integer.
func (v Value) I64() int64 {
	return int64(v.Lo)
}

// F64 interprets the low 64 bits as a float64.
func (v Value) F64() float64 {
	return math.Float64frombits(v.Lo)
}

// Wide reports whether the high half carries data that a snapshot drops.
func (v Value) Wide() bool {
	return v.Hi != 0
}

// Truncate returns the Value as it will look after a save/load round trip.
func (v Value) Truncate() Value {
	return Value{Lo: v.Lo}
}

func (v Value) String() string {
	if v.Hi != 0 {
		return fmt.Sprintf("0x%016x%016x", v.Hi, v.Lo)
	}
	return fmt.Sprintf("%d", v.Lo)
}
