package glulx

import "errors"

// errUnknownAccelID signals a registered id outside 1-13 (or any id
// value callAccel doesn't implement): not a fatal condition, just a
// cue for enterFunction to fall through to normal bytecode
// interpretation instead of a native call, per spec.md §4.6.
var errUnknownAccelID = errors.New("glulx: unknown accelerated function id")

// Accelerator native-function substitution (C6, spec.md §4.6). A game
// image registers a handful of commonly-called Inform object-model
// routines (ids 1-13) at specific addresses via accelfunc; whenever
// the interpreter is about to call one of those addresses, it runs the
// native Go implementation instead of interpreting the bytecode.
//
// The object-table layout these functions walk is configured at
// runtime via accelparam (nine words, indexed by the param* constants
// below). The layout this implementation assumes is a simplified
// stand-in for Inform's exact metaclass scheme, since no accelerated
// game image is available to validate against byte-for-bit.
const (
	AccelZRegion      = 1
	AccelCPTab        = 2
	AccelRAPr         = 3
	AccelRLPr         = 4
	AccelOCCl         = 5
	AccelRVPr         = 6
	AccelOPPr         = 7
	AccelCPTabNew     = 8
	AccelRAPrNew      = 9
	AccelRLPrNew      = 10
	AccelOCClNew      = 11
	AccelRVPrNew      = 12
	AccelOPPrNew      = 13
)

// accel param indices.
const (
	paramClassesTable = iota
	paramNumAttrBytes
	paramClassNumPropAddr
	paramClassInhFuncAddr
	paramIndivPropStart
	paramClassAttrOffset
	paramObjAttrOffset
	paramObjPropAddrOffset
	paramObjParentOffset
)

// RegisterAccel binds addr to a native function id (accelfunc). addr
// must begin a function (C0/C1) unless id is 0, which deregisters it.
func (vm *VM) RegisterAccel(addr uint32, id uint32) error {
	if id == 0 {
		delete(vm.accel.funcs, addr)
		return nil
	}
	t, err := vm.GetType(addr)
	if err != nil {
		return err
	}
	if !isFunctionType(t) {
		return ErrAccelNotAFunction
	}
	vm.accel.funcs[addr] = int(id)
	return nil
}

// SetAccelParam stores one of the nine accelparam configuration words.
func (vm *VM) SetAccelParam(index, value uint32) {
	if index < uint32(len(vm.accel.params)) {
		vm.accel.params[index] = value
	}
}

// accelFuncID reports whether addr is accelerated, and which id.
func (vm *VM) accelFuncID(addr uint32) (int, bool) {
	id, ok := vm.accel.funcs[addr]
	return id, ok
}

// callAccel runs the native implementation for id with the given
// call arguments, returning the function's single result word.
func (vm *VM) callAccel(id int, args []uint32) (uint32, error) {
	arg := func(i int) uint32 {
		if i < len(args) {
			return args[i]
		}
		return 0
	}
	p := vm.accel.params

	switch id {
	case AccelZRegion:
		addr := arg(0)
		if addr == 0 {
			return 0, nil
		}
		if addr < vm.Mem.RAMStart() && addr >= 36 {
			// could be string or function per object-type byte.
			t, err := vm.GetType(addr)
			if err == nil {
				if isStringType(t) {
					return 2, nil
				}
				if isFunctionType(t) {
					return 3, nil
				}
			}
		}
		if addr >= p[paramObjParentOffset] {
			return 1, nil
		}
		return 0, nil

	case AccelCPTab, AccelCPTabNew:
		obj, prop := arg(0), arg(1)
		return vm.accelClassPropTable(obj, prop, p)

	case AccelRAPr, AccelRAPrNew:
		obj, prop := arg(0), arg(1)
		addr, _, err := vm.accelFindProp(obj, prop, p)
		return addr, err

	case AccelRLPr, AccelRLPrNew:
		obj, prop := arg(0), arg(1)
		_, length, err := vm.accelFindProp(obj, prop, p)
		return length, err

	case AccelOCCl, AccelOCClNew:
		obj, cls := arg(0), arg(1)
		ok, err := vm.accelObjectOfClass(obj, cls, p)
		if ok {
			return 1, err
		}
		return 0, err

	case AccelRVPr, AccelRVPrNew:
		obj, prop := arg(0), arg(1)
		addr, _, err := vm.accelFindProp(obj, prop, p)
		if err != nil || addr == 0 {
			return 0, err
		}
		return vm.Mem.ReadWord(addr)

	case AccelOPPr, AccelOPPrNew:
		obj, prop := arg(0), arg(1)
		addr, _, err := vm.accelFindProp(obj, prop, p)
		if addr != 0 {
			return 1, err
		}
		return 0, err
	}
	return 0, errUnknownAccelID
}

// accelFindProp walks obj's property table (word-pairs of propId,
// addr/length packed as addr<<6|? in real Inform; this simplified
// model stores property tables as a flat array of (id:word, addr:word,
// length:word) triples terminated by id==0) looking for prop, falling
// back to the class's inherited table.
func (vm *VM) accelFindProp(obj, prop uint32, p [9]uint32) (addr, length uint32, err error) {
	propTableAddr, err := vm.Mem.ReadWord(obj + p[paramObjPropAddrOffset])
	if err != nil || propTableAddr == 0 {
		return 0, 0, err
	}
	cur := propTableAddr
	for {
		id, err := vm.Mem.ReadWord(cur)
		if err != nil {
			return 0, 0, err
		}
		if id == 0 {
			return 0, 0, nil
		}
		a, err := vm.Mem.ReadWord(cur + 4)
		if err != nil {
			return 0, 0, err
		}
		l, err := vm.Mem.ReadWord(cur + 8)
		if err != nil {
			return 0, 0, err
		}
		if id == prop {
			return a, l, nil
		}
		cur += 12
	}
}

func (vm *VM) accelClassPropTable(obj, prop uint32, p [9]uint32) (uint32, error) {
	addr, _, err := vm.accelFindProp(obj, prop, p)
	return addr, err
}

func (vm *VM) accelObjectOfClass(obj, cls uint32, p [9]uint32) (bool, error) {
	parent := obj
	for depth := 0; depth < 256; depth++ {
		if parent == 0 {
			return false, nil
		}
		if parent == cls {
			return true, nil
		}
		next, err := vm.Mem.ReadWord(parent + p[paramObjParentOffset])
		if err != nil {
			return false, err
		}
		if next == parent {
			return false, nil
		}
		parent = next
	}
	return false, nil
}

// Gestalt selectors relevant to acceleration (spec.md §6).
const (
	GestaltAcceleration = 9
	GestaltAccelFunc    = 10
)
