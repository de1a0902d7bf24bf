package glulx

// The string/number printer (C4) is modeled as an explicit resumable
// state machine rather than recursive Go calls, per spec.md §9's design
// note: a Huffman node that dereferences to a function, or any
// character emitted while the Filter I/O system is active, must
// suspend bytecode-level execution (call the target function) and
// resume later via the call-stub return path. Representing the
// printer's position explicitly in vm.printStack lets it survive that
// round-trip through the ordinary execute loop.

type printKind int

const (
	printCompressed printKind = iota
	printCByte
	printCUni
	printChar
	printNumber
)

type printState struct {
	kind printKind

	// printCompressed: bit-stream cursor into the encoded string bytes.
	bitAddr uint32
	bitPos  uint8

	// printCByte / printCUni: next character address to read.
	addr uint32

	// printChar: the single character to emit and whether it's unicode.
	ch   uint32
	uni  bool
	done bool

	// printNumber: ASCII digits remaining to emit.
	digits []byte
	idx    int
}

func resumeKindFor(k printKind) uint32 {
	switch k {
	case printCompressed:
		return DestResumeString
	case printCByte:
		return DestResumeCString
	case printCUni:
		return DestResumeUnicode
	case printNumber:
		return DestResumeNumber
	default:
		return DestResumeString
	}
}

// beginPrint starts a fresh print operation. Only one may be in flight
// at a time (printStack must be empty), which always holds: streamXXX
// opcodes run to completion or suspend the whole VM before another can
// start.
func (vm *VM) beginPrint(st printState) error {
	vm.printResumePC = vm.PC
	vm.printResumeFP = vm.Stack.FP()
	vm.printStack = vm.printStack[:0]
	vm.printStack = append(vm.printStack, st)
	return vm.runPrint()
}

// resumePrint is invoked from the return-handling path when a popped
// call stub names one of the DestResume* destinations.
func (vm *VM) resumePrint() error {
	return vm.runPrint()
}

// runPrint drives vm.printStack until it's drained (the whole
// operation finished) or a nested function dispatch suspends it.
func (vm *VM) runPrint() error {
	for len(vm.printStack) > 0 {
		top := len(vm.printStack) - 1
		st := &vm.printStack[top]

		switch st.kind {
		case printChar:
			if st.done {
				vm.printStack = vm.printStack[:top]
				continue
			}
			st.done = true
			suspended, err := vm.emitChar(st.ch, st.uni)
			if err != nil {
				return err
			}
			if suspended {
				return vm.suspendPrint(st.kind)
			}
			vm.printStack = vm.printStack[:top]

		case printNumber:
			if st.idx >= len(st.digits) {
				vm.printStack = vm.printStack[:top]
				continue
			}
			c := st.digits[st.idx]
			st.idx++
			suspended, err := vm.emitChar(uint32(c), false)
			if err != nil {
				return err
			}
			if suspended {
				return vm.suspendPrint(st.kind)
			}

		case printCByte:
			b, err := vm.Mem.ReadByte(st.addr)
			if err != nil {
				return err
			}
			if b == 0 {
				vm.printStack = vm.printStack[:top]
				continue
			}
			st.addr++
			suspended, err := vm.emitChar(uint32(b), false)
			if err != nil {
				return err
			}
			if suspended {
				return vm.suspendPrint(st.kind)
			}

		case printCUni:
			w, err := vm.Mem.ReadWord(st.addr)
			if err != nil {
				return err
			}
			if w == 0 {
				vm.printStack = vm.printStack[:top]
				continue
			}
			st.addr += 4
			suspended, err := vm.emitChar(w, true)
			if err != nil {
				return err
			}
			if suspended {
				return vm.suspendPrint(st.kind)
			}

		case printCompressed:
			action, err := vm.stepCompressed(st)
			if err != nil {
				return err
			}
			switch action.kind {
			case compressedDone:
				vm.printStack = vm.printStack[:top]
			case compressedEmit:
				suspended, err := vm.emitChar(action.ch, action.uni)
				if err != nil {
					return err
				}
				if suspended {
					return vm.suspendPrint(st.kind)
				}
			case compressedDescend:
				vm.printStack = append(vm.printStack, action.child)
			case compressedCall:
				return vm.suspendCallInto(action.target, action.args, resumeKindFor(st.kind))
			}
		}
	}

	vm.PC = vm.printResumePC
	return nil
}

// suspendPrint is used for emitChar suspensions (the Filter I/O system
// calling the filter function for one character). emitChar's filter
// path only records the pending character, so this pushes the resume
// call stub and then enters the filter function with that character.
func (vm *VM) suspendPrint(kind printKind) error {
	if err := vm.Stack.PushCallStub(CallStub{
		DestType: resumeKindFor(kind),
		PC:       vm.printResumePC,
		FP:       vm.printResumeFP,
	}); err != nil {
		return err
	}
	return vm.enterFunction(vm.filterFn, []uint32{vm.pendingFilterChar})
}

// suspendCallInto is used for the Huffman decoder's indirect/
// double-indirect nodes that resolve to a function.
func (vm *VM) suspendCallInto(target uint32, args []uint32, resumeKind uint32) error {
	if err := vm.Stack.PushCallStub(CallStub{
		DestType: resumeKind,
		PC:       vm.printResumePC,
		FP:       vm.printResumeFP,
	}); err != nil {
		return err
	}
	return vm.enterFunction(target, args)
}

type compressedActionKind int

const (
	compressedDone compressedActionKind = iota
	compressedEmit
	compressedDescend
	compressedCall
)

type compressedAction struct {
	kind   compressedActionKind
	ch     uint32
	uni    bool
	child  printState
	target uint32
	args   []uint32
}

// stepCompressed walks the Huffman tree from the root using st's
// bit-stream cursor until it reaches a terminal node, then reports what
// the caller (runPrint) should do next. It never blocks internally;
// every branch that could require suspending returns to runPrint first.
func (vm *VM) stepCompressed(st *printState) (compressedAction, error) {
	root, err := vm.decodingTableRoot()
	if err != nil {
		return compressedAction{}, err
	}
	node := root
	for {
		kindByte, err := vm.Mem.ReadByte(node)
		if err != nil {
			return compressedAction{}, err
		}
		switch kindByte {
		case nodeBranch:
			bit, err := vm.readBit(&st.bitAddr, &st.bitPos)
			if err != nil {
				return compressedAction{}, err
			}
			var off uint32
			if bit == 0 {
				off = 1
			} else {
				off = 5
			}
			node, err = vm.Mem.ReadWord(node + off)
			if err != nil {
				return compressedAction{}, err
			}
			continue
		case nodeTerminator:
			return compressedAction{kind: compressedDone}, nil
		case nodeByteChar:
			c, err := vm.Mem.ReadByte(node + 1)
			return compressedAction{kind: compressedEmit, ch: uint32(c)}, err
		case nodeUniChar:
			c, err := vm.Mem.ReadWord(node + 1)
			return compressedAction{kind: compressedEmit, ch: c, uni: true}, err
		case nodeCString:
			return compressedAction{kind: compressedDescend, child: printState{kind: printCByte, addr: node + 1}}, nil
		case nodeCUniString:
			return compressedAction{kind: compressedDescend, child: printState{kind: printCUni, addr: node + 1}}, nil
		case nodeIndirect, nodeDoubleIndirect, nodeIndirectArgs, nodeDoubleIndirectArgs:
			return vm.resolveIndirectNode(kindByte, node)
		default:
			return compressedAction{}, ErrBadOperandMode
		}
	}
}

func (vm *VM) resolveIndirectNode(kindByte byte, node uint32) (compressedAction, error) {
	target, err := vm.Mem.ReadWord(node + 1)
	if err != nil {
		return compressedAction{}, err
	}
	if kindByte == nodeDoubleIndirect || kindByte == nodeDoubleIndirectArgs {
		target, err = vm.Mem.ReadWord(target)
		if err != nil {
			return compressedAction{}, err
		}
	}

	var args []uint32
	if kindByte == nodeIndirectArgs || kindByte == nodeDoubleIndirectArgs {
		argc, err := vm.Mem.ReadWord(node + 5)
		if err != nil {
			return compressedAction{}, err
		}
		args = make([]uint32, argc)
		for i := uint32(0); i < argc; i++ {
			args[i], err = vm.Mem.ReadWord(node + 9 + i*4)
			if err != nil {
				return compressedAction{}, err
			}
		}
	}

	t, err := vm.GetType(target)
	if err != nil {
		return compressedAction{}, err
	}
	if isFunctionType(t) {
		return compressedAction{kind: compressedCall, target: target, args: args}, nil
	}
	child, err := vm.stateForObject(target)
	if err != nil {
		return compressedAction{}, err
	}
	return compressedAction{kind: compressedDescend, child: child}, nil
}

func (vm *VM) readBit(addr *uint32, bit *uint8) (byte, error) {
	b, err := vm.Mem.ReadByte(*addr)
	if err != nil {
		return 0, err
	}
	v := (b >> *bit) & 1
	*bit++
	if *bit == 8 {
		*bit = 0
		*addr++
	}
	return v, nil
}

// stateForObject builds the initial printState for a typable string
// object (spec.md §3's E0/E1/E2 tags).
func (vm *VM) stateForObject(addr uint32) (printState, error) {
	t, err := vm.GetType(addr)
	if err != nil {
		return printState{}, err
	}
	switch t {
	case TypeUnencodedByteString:
		return printState{kind: printCByte, addr: addr + 1}, nil
	case TypeUnencodedUnicodeString:
		return printState{kind: printCUni, addr: addr + 4}, nil
	case TypeCompressedString:
		return printState{kind: printCompressed, bitAddr: addr + 1, bitPos: 0}, nil
	default:
		return printState{}, ErrBadOperandMode
	}
}

// emitChar sends one character to the current I/O system. Null and Glk
// never suspend; Filter suspends by invoking the filter function as a
// real Glulx call, so the caller must stop processing and let the
// execute loop run it.
func (vm *VM) emitChar(c uint32, uni bool) (bool, error) {
	switch vm.ioSystem {
	case IOSystemNull:
		return false, nil
	case IOSystemFilter:
		vm.pendingFilterChar = c
		return true, nil
	case IOSystemGlk:
		sel := uint32(glkSelPutCharUni)
		if !uni {
			sel = glkSelPutChar
		}
		_, err := vm.glk.Dispatch(sel, []uint32{c}, vm)
		return false, err
	default:
		return false, nil
	}
}

// Numeric selectors used for character output via the Glk I/O system
// (spec.md §6). Mirrors the values internal/glk exports as
// glk.SelPutChar / glk.SelPutCharUni; duplicated locally rather than
// imported to keep this package free of a dependency on its own
// consumer.
const (
	glkSelPutChar    = 0x00a0
	glkSelPutCharUni = 0x0120
)

// decimalDigits renders n (a signed 32-bit value) as its ASCII decimal
// representation, for streamnum.
func decimalDigits(n int32) []byte {
	if n == 0 {
		return []byte{'0'}
	}
	neg := n < 0
	var digits []byte
	u := uint32(n)
	if neg {
		u = uint32(-int64(n))
	}
	for u > 0 {
		digits = append([]byte{byte('0' + u%10)}, digits...)
		u /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return digits
}
