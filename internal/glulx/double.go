package glulx

import "math"

// Double-precision values travel as two consecutive 32-bit words, high
// word first (spec.md §4.6's double family), never as a single
// register - every d-opcode therefore takes/returns word pairs.

func toFloat64(hi, lo uint32) float64 {
	return math.Float64frombits(uint64(hi)<<32 | uint64(lo))
}

func fromFloat64(f float64) (hi, lo uint32) {
	bits := math.Float64bits(f)
	return uint32(bits >> 32), uint32(bits)
}

func (vm *VM) opNumToD(n uint32) (uint32, uint32) {
	return fromFloat64(float64(int32(n)))
}

func (vm *VM) opDToNumZ(hi, lo uint32) uint32 {
	f := toFloat64(hi, lo)
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt32 {
		return 0x7FFFFFFF
	}
	if f <= math.MinInt32 {
		return 0x80000000
	}
	return uint32(int32(f))
}

func (vm *VM) opDToNumN(hi, lo uint32) uint32 {
	f := toFloat64(hi, lo)
	if math.IsNaN(f) {
		return 0
	}
	return vm.opDToNumZ(fromFloat64(math.RoundToEven(f)))
}

func dBinOp(ahi, alo, bhi, blo uint32, op func(x, y float64) float64) (uint32, uint32) {
	return fromFloat64(op(toFloat64(ahi, alo), toFloat64(bhi, blo)))
}

func dUnOp(hi, lo uint32, op func(x float64) float64) (uint32, uint32) {
	return fromFloat64(op(toFloat64(hi, lo)))
}

func (vm *VM) doubleArith(op Opcode, ahi, alo, bhi, blo uint32) (uint32, uint32) {
	switch op {
	case OpDAdd:
		return dBinOp(ahi, alo, bhi, blo, func(x, y float64) float64 { return x + y })
	case OpDSub:
		return dBinOp(ahi, alo, bhi, blo, func(x, y float64) float64 { return x - y })
	case OpDMul:
		return dBinOp(ahi, alo, bhi, blo, func(x, y float64) float64 { return x * y })
	case OpDDiv:
		return dBinOp(ahi, alo, bhi, blo, func(x, y float64) float64 { return x / y })
	case OpDPow:
		return dBinOp(ahi, alo, bhi, blo, func(x, y float64) float64 { return math.Pow(x, y) })
	case OpDATan2:
		return dBinOp(ahi, alo, bhi, blo, func(x, y float64) float64 { return math.Atan2(x, y) })
	}
	return 0, 0
}

func (vm *VM) opDMod(ahi, alo, bhi, blo uint32) (remHi, remLo, quotHi, quotLo uint32) {
	x, y := toFloat64(ahi, alo), toFloat64(bhi, blo)
	quot := math.Trunc(x / y)
	rem := x - quot*y
	remHi, remLo = fromFloat64(rem)
	quotHi, quotLo = fromFloat64(quot)
	return
}

func (vm *VM) doubleUnary(op Opcode, hi, lo uint32) (uint32, uint32) {
	switch op {
	case OpDCeil:
		return dUnOp(hi, lo, math.Ceil)
	case OpDFloor:
		return dUnOp(hi, lo, math.Floor)
	case OpDSqrt:
		return dUnOp(hi, lo, math.Sqrt)
	case OpDExp:
		return dUnOp(hi, lo, math.Exp)
	case OpDLog:
		return dUnOp(hi, lo, math.Log)
	case OpDSin:
		return dUnOp(hi, lo, math.Sin)
	case OpDCos:
		return dUnOp(hi, lo, math.Cos)
	case OpDTan:
		return dUnOp(hi, lo, math.Tan)
	case OpDASin:
		return dUnOp(hi, lo, math.Asin)
	case OpDACos:
		return dUnOp(hi, lo, math.Acos)
	case OpDATan:
		return dUnOp(hi, lo, math.Atan)
	}
	return 0, 0
}

func doubleCompare(op Opcode, ahi, alo, bhi, blo, bound uint32) bool {
	x, y := toFloat64(ahi, alo), toFloat64(bhi, blo)
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	switch op {
	case OpJDEq:
		return math.Abs(x-y) <= float64(f32(bound))
	case OpJDNe:
		return !(math.Abs(x-y) <= float64(f32(bound)))
	case OpJDLt:
		return x < y
	case OpJDLe:
		return x <= y
	case OpJDGt:
		return x > y
	case OpJDGe:
		return x >= y
	}
	return false
}

func isNaN64(hi, lo uint32) bool { return math.IsNaN(toFloat64(hi, lo)) }
func isInf64(hi, lo uint32) bool { return math.IsInf(toFloat64(hi, lo), 0) }
