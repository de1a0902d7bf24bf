package glulx

import "fmt"

// enterFunction implements the function-call family's entry half
// (spec.md §4.5/§4.6): given a typable function object's address and
// already-evaluated argument words, either dispatches to the
// accelerated native implementation or pushes a fresh call frame and
// parks execution at its first instruction. The caller is responsible
// for having already pushed the CallStub describing where the eventual
// return value goes.
func (vm *VM) enterFunction(addr uint32, args []uint32) error {
	if id, ok := vm.accelFuncID(addr); ok {
		result, err := vm.callAccel(id, args)
		if err == nil {
			return vm.handleAccelReturn(result)
		}
		if err != errUnknownAccelID {
			return err
		}
		// unknown id: fall through to normal interpretation below.
	}

	t, err := vm.GetType(addr)
	if err != nil {
		return err
	}
	if !isFunctionType(t) {
		return ErrNotAFunction
	}

	formatAddr := addr + 1
	_, formatEnd, err := parseLocalsFormat(vm.Mem, formatAddr)
	if err != nil {
		return err
	}
	fl, err := vm.Stack.PushFrame(vm.Mem, formatAddr)
	if err != nil {
		return err
	}

	switch t {
	case TypeFunctionStackArgs:
		for i := len(args) - 1; i >= 0; i-- {
			if err := vm.Stack.Push32(args[i]); err != nil {
				return err
			}
		}
		if err := vm.Stack.Push32(uint32(len(args))); err != nil {
			return err
		}
	case TypeFunctionLocalArgs:
		if err := vm.Stack.SetArguments(fl, args); err != nil {
			return err
		}
	}

	vm.PC = formatEnd
	return nil
}

// handleReturn implements the `return` opcode and any other normal
// function exit: pop the frame, consult the call stub it reveals, and
// either resume the caller's bytecode or resume a suspended string
// print.
func (vm *VM) handleReturn(value uint32) error {
	stub, err := vm.Stack.PopFrame()
	if err != nil {
		return err
	}
	return vm.dispatchStub(stub, value)
}

// handleAccelReturn is handleReturn's counterpart for accelerated
// functions, which never pushed a frame of their own.
func (vm *VM) handleAccelReturn(value uint32) error {
	stub, err := vm.Stack.PopCallStub()
	if err != nil {
		return err
	}
	return vm.dispatchStub(stub, value)
}

func (vm *VM) dispatchStub(stub CallStub, value uint32) error {
	switch stub.DestType {
	case DestResumeString, DestResumeNumber, DestResumeCString, DestResumeUnicode:
		return vm.resumePrint()
	default:
		vm.PC = stub.PC
		return vm.storeResultByDestType(stub.DestType, stub.DestAddr, value)
	}
}

// takeBranch implements spec.md §4.5's branch convention: offsets 0 and
// 1 mean "return from the current function with that value" instead of
// jumping; any other offset is address-after-operands + offset - 2.
func (vm *VM) takeBranch(offset, pcAfter uint32) error {
	switch int32(offset) {
	case 0:
		return vm.handleReturn(0)
	case 1:
		return vm.handleReturn(1)
	default:
		vm.PC = uint32(int64(pcAfter) + int64(int32(offset)) - 2)
		return nil
	}
}

// decodeOperands reads n mode nibbles starting at pc, then decodes each
// operand in order as a load or a store according to isStore[i].
func (vm *VM) decodeOperands(pc uint32, isStore []bool) ([]uint32, []StoreTarget, uint32, error) {
	n := len(isStore)
	modes, pc, err := readModes(vm.Mem, pc, n)
	if err != nil {
		return nil, nil, 0, err
	}
	loads := make([]uint32, n)
	stores := make([]StoreTarget, n)
	for i := 0; i < n; i++ {
		if isStore[i] {
			stores[i], pc, err = vm.resolveStore(modes[i], pc)
		} else {
			loads[i], pc, err = vm.resolveLoad(modes[i], pc)
		}
		if err != nil {
			return nil, nil, 0, err
		}
	}
	return loads, stores, pc, nil
}

var (
	kLL   = []bool{false, false}
	kLLL  = []bool{false, false, false}
	kLLLL = []bool{false, false, false, false}
	kL    = []bool{false}
	kLS   = []bool{false, true}
	kLLS  = []bool{false, false, true}
	kS    = []bool{true}
	kSS   = []bool{true, true}
)

// Run drives the execute loop until a fatal error, quit, or program
// completion. Step() is the single-instruction equivalent used by an
// interactive debugger front-end.
func (vm *VM) Run() error {
	vm.running = true
	for vm.running {
		if err := vm.Step(); err != nil {
			vm.running = false
			if err == ErrQuit || err == ErrProgramFinished {
				return nil
			}
			vm.err = err
			return err
		}
	}
	return vm.err
}

// Step decodes and executes exactly one instruction, recovering from
// any unexpected panic and wrapping it (and any ordinary fatal error)
// in a *Fault carrying the PC/opcode diagnostic snapshot spec.md §7
// requires.
func (vm *VM) Step() (err error) {
	pc0 := vm.PC
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				e = fmt.Errorf("panic: %v", r)
			}
			err = newFault(e, pc0, 0, nil)
		}
	}()

	opNum, pc, derr := decodeOpcodeNumber(vm.Mem, pc0)
	if derr != nil {
		return newFault(derr, pc0, 0, nil)
	}
	op := Opcode(opNum)
	if _, ok := opcodeTable[op]; !ok {
		return newFault(ErrUnknownOpcode, pc0, opNum, nil)
	}

	if derr := vm.dispatch(op, pc); derr != nil {
		if derr == ErrQuit || derr == ErrProgramFinished {
			return derr
		}
		return newFault(derr, pc0, opNum, nil)
	}
	return nil
}

// dispatch decodes op's operands starting at pc (just past the opcode
// number) and executes it, leaving vm.PC set to wherever execution
// should continue.
func (vm *VM) dispatch(op Opcode, pc uint32) error {
	switch op {

	case OpNop:
		vm.PC = pc
		return nil

	// ---- arithmetic ----
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpBitAnd, OpBitOr, OpBitXor,
		OpShiftL, OpSShiftR, OpUShiftR:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		a, b := loads[0], loads[1]
		var r uint32
		switch op {
		case OpAdd:
			r = a + b
		case OpSub:
			r = a - b
		case OpMul:
			r = a * b
		case OpDiv:
			if b == 0 {
				return ErrDivideByZero
			}
			if int32(a) == -2147483648 && int32(b) == -1 {
				return ErrInvalidDivision
			}
			r = uint32(int32(a) / int32(b))
		case OpMod:
			if b == 0 {
				return ErrDivideByZero
			}
			if int32(a) == -2147483648 && int32(b) == -1 {
				return ErrInvalidDivision
			}
			r = uint32(int32(a) % int32(b))
		case OpBitAnd:
			r = a & b
		case OpBitOr:
			r = a | b
		case OpBitXor:
			r = a ^ b
		case OpShiftL:
			r = shiftL(a, b)
		case OpSShiftR:
			r = shiftSR(a, b)
		case OpUShiftR:
			r = shiftUR(a, b)
		}
		if err := vm.storeResult(stores[2], r); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpNeg, OpBitNot:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		var r uint32
		if op == OpNeg {
			r = uint32(-int32(loads[0]))
		} else {
			r = ^loads[0]
		}
		if err := vm.storeResult(stores[1], r); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	// ---- branches ----
	case OpJump:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		return vm.takeBranch(loads[0], pc2)

	case OpJumpAbs:
		loads, _, _, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		vm.PC = loads[0]
		return nil

	case OpJZ, OpJNZ:
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		cond := loads[0] == 0
		if op == OpJNZ {
			cond = !cond
		}
		if cond {
			return vm.takeBranch(loads[1], pc2)
		}
		vm.PC = pc2
		return nil

	case OpJEq, OpJNe, OpJLt, OpJGe, OpJGt, OpJLe, OpJLtU, OpJGeU, OpJGtU, OpJLeU:
		loads, _, pc2, err := vm.decodeOperands(pc, kLLL)
		if err != nil {
			return err
		}
		a, b := loads[0], loads[1]
		var cond bool
		switch op {
		case OpJEq:
			cond = a == b
		case OpJNe:
			cond = a != b
		case OpJLt:
			cond = int32(a) < int32(b)
		case OpJGe:
			cond = int32(a) >= int32(b)
		case OpJGt:
			cond = int32(a) > int32(b)
		case OpJLe:
			cond = int32(a) <= int32(b)
		case OpJLtU:
			cond = a < b
		case OpJGeU:
			cond = a >= b
		case OpJGtU:
			cond = a > b
		case OpJLeU:
			cond = a <= b
		}
		if cond {
			return vm.takeBranch(loads[2], pc2)
		}
		vm.PC = pc2
		return nil

	// ---- call family ----
	case OpCall:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		addr, argc := loads[0], loads[1]
		args := make([]uint32, argc)
		for i := int(argc) - 1; i >= 0; i-- {
			v, err := vm.Stack.Pop32()
			if err != nil {
				return err
			}
			args[i] = v
		}
		if err := vm.Stack.PushCallStub(destStub(stores[2], pc2, vm.Stack.FP())); err != nil {
			return err
		}
		return vm.enterFunction(addr, args)

	case OpCallF, OpCallFI, OpCallFII, OpCallFIII:
		var n int
		switch op {
		case OpCallF:
			n = 0
		case OpCallFI:
			n = 1
		case OpCallFII:
			n = 2
		case OpCallFIII:
			n = 3
		}
		kinds := make([]bool, n+2)
		kinds[n+1] = true
		loads, stores, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		addr := loads[0]
		args := append([]uint32(nil), loads[1:n+1]...)
		if err := vm.Stack.PushCallStub(destStub(stores[n+1], pc2, vm.Stack.FP())); err != nil {
			return err
		}
		return vm.enterFunction(addr, args)

	case OpReturn:
		loads, _, _, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		return vm.handleReturn(loads[0])

	case OpTailCall:
		loads, _, _, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		addr, argc := loads[0], loads[1]
		args := make([]uint32, argc)
		for i := int(argc) - 1; i >= 0; i-- {
			v, err := vm.Stack.Pop32()
			if err != nil {
				return err
			}
			args[i] = v
		}
		vm.Stack.DropFrame()
		return vm.enterFunction(addr, args)

	case OpCatch:
		loads, stores, pc2, err := vm.decodeOperands(pc, []bool{true, false})
		if err != nil {
			return err
		}
		token := uint32(len(vm.catchFrames))
		vm.catchFrames = append(vm.catchFrames, catchFrame{
			sp: vm.Stack.SP(), fp: vm.Stack.FP(), layoutDepth: len(vm.Stack.layouts),
		})
		if err := vm.storeResult(stores[0], token); err != nil {
			return err
		}
		return vm.takeBranch(loads[1], pc2)

	case OpThrow:
		loads, _, _, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		value, token := loads[0], loads[1]
		if int(token) < 0 || int(token) >= len(vm.catchFrames) {
			return ErrBadCatchToken
		}
		cf := vm.catchFrames[token]
		vm.catchFrames = vm.catchFrames[:token]
		vm.Stack.Unwind(cf.sp, cf.fp, cf.layoutDepth)
		return vm.handleReturn(value)

	// ---- move / sign extend ----
	case OpCopy, OpCopyS, OpCopyB:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		v := loads[0]
		switch op {
		case OpCopyS:
			v &= 0xFFFF
		case OpCopyB:
			v &= 0xFF
		}
		if err := vm.storeResult(stores[1], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpSexS, OpSexB:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		var v uint32
		if op == OpSexS {
			v = uint32(int32(int16(loads[0])))
		} else {
			v = uint32(int32(int8(loads[0])))
		}
		if err := vm.storeResult(stores[1], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	// ---- array load/store ----
	case OpALoad, OpALoadS, OpALoadB:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		base, idx := loads[0], loads[1]
		var v uint32
		switch op {
		case OpALoad:
			v, err = vm.Mem.ReadWord(base + idx*4)
		case OpALoadS:
			var s uint16
			s, err = vm.Mem.ReadShort(base + idx*2)
			v = uint32(s)
		case OpALoadB:
			var b byte
			b, err = vm.Mem.ReadByte(base + idx)
			v = uint32(b)
		}
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[2], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpALoadBit:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		addr := loads[0]
		bitnum := int32(loads[1])
		byteAddr := uint32(int64(addr) + floorDiv8(bitnum))
		bit := uint(floorMod8(bitnum))
		b, err := vm.Mem.ReadByte(byteAddr)
		if err != nil {
			return err
		}
		v := uint32(0)
		if b&(1<<bit) != 0 {
			v = 1
		}
		if err := vm.storeResult(stores[2], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpAStore, OpAStoreS, OpAStoreB:
		loads, _, pc2, err := vm.decodeOperands(pc, kLLL)
		if err != nil {
			return err
		}
		base, idx, val := loads[0], loads[1], loads[2]
		switch op {
		case OpAStore:
			err = vm.Mem.WriteWord(base+idx*4, val)
		case OpAStoreS:
			err = vm.Mem.WriteShort(base+idx*2, uint16(val))
		case OpAStoreB:
			err = vm.Mem.WriteByte(base+idx, byte(val))
		}
		if err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpAStoreBit:
		loads, _, pc2, err := vm.decodeOperands(pc, kLLL)
		if err != nil {
			return err
		}
		addr := loads[0]
		bitnum := int32(loads[1])
		byteAddr := uint32(int64(addr) + floorDiv8(bitnum))
		bit := uint(floorMod8(bitnum))
		b, err := vm.Mem.ReadByte(byteAddr)
		if err != nil {
			return err
		}
		if loads[2] != 0 {
			b |= 1 << bit
		} else {
			b &^= 1 << bit
		}
		if err := vm.Mem.WriteByte(byteAddr, b); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	// ---- value-stack introspection ----
	case OpStkCount:
		_, stores, pc2, err := vm.decodeOperands(pc, kS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[0], vm.Stack.StkCount()); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpStkPeek:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		v, err := vm.Stack.Peek32(loads[0])
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[1], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpStkSwap:
		if err := vm.Stack.StkSwap(); err != nil {
			return err
		}
		vm.PC = pc
		return nil

	case OpStkRoll:
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		if err := vm.Stack.StkRoll(int32(loads[0]), int32(loads[1])); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpStkCopy:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		if err := vm.Stack.StkCopy(int32(loads[0])); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	// ---- output streaming ----
	case OpStreamChar:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		return vm.beginPrintAt(pc2, printState{kind: printChar, ch: loads[0] & 0xFF})

	case OpStreamUniChar:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		return vm.beginPrintAt(pc2, printState{kind: printChar, ch: loads[0], uni: true})

	case OpStreamNum:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		return vm.beginPrintAt(pc2, printState{kind: printNumber, digits: decimalDigits(int32(loads[0]))})

	case OpStreamStr:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		st, err := vm.stateForObject(loads[0])
		if err != nil {
			return err
		}
		return vm.beginPrintAt(pc2, st)

	// ---- misc ----
	case OpGestalt:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		v := vm.gestalt(loads[0], loads[1])
		if err := vm.storeResult(stores[2], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpDebugTrap:
		_, _, _, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		return ErrUserDebugTrap

	case OpGetMemSize:
		_, stores, pc2, err := vm.decodeOperands(pc, kS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[0], vm.Mem.Size()); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpSetMemSize:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		var result uint32
		if err := vm.Mem.SetMemSize(loads[0]); err != nil {
			result = 1
		}
		if err := vm.storeResult(stores[1], result); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpRandom:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		v := vm.nextRandom(loads[0])
		if err := vm.storeResult(stores[1], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpSetRandom:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		vm.seedRandom(loads[0])
		vm.PC = pc2
		return nil

	case OpQuit:
		return ErrQuit

	case OpVerify:
		_, stores, pc2, err := vm.decodeOperands(pc, kS)
		if err != nil {
			return err
		}
		v := uint32(1)
		if vm.Verify() {
			v = 0
		}
		if err := vm.storeResult(stores[0], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpRestart:
		vm.resetToPristine()
		return vm.Start()

	case OpSave:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		result := uint32(1)
		if vm.saveHandler != nil && vm.saveHandler.Save(vm, loads[0]) == nil {
			result = 0
		}
		if err := vm.storeResult(stores[1], result); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpRestore:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		result := uint32(1)
		if vm.saveHandler != nil && vm.saveHandler.Restore(vm, loads[0]) == nil {
			result = 0
		}
		if err := vm.storeResult(stores[1], result); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpSaveUndo:
		_, stores, pc2, err := vm.decodeOperands(pc, kS)
		if err != nil {
			return err
		}
		result := uint32(1)
		if vm.saveHandler != nil && vm.saveHandler.SaveUndo(vm) == nil {
			result = 0
		}
		if err := vm.storeResult(stores[0], result); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpRestoreUndo:
		_, stores, pc2, err := vm.decodeOperands(pc, kS)
		if err != nil {
			return err
		}
		result := uint32(1)
		if vm.saveHandler != nil && vm.saveHandler.RestoreUndo(vm) == nil {
			result = 0
		}
		if err := vm.storeResult(stores[0], result); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpProtect:
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		vm.protectStart, vm.protectLen = loads[0], loads[1]
		vm.PC = pc2
		return nil

	case OpGlk:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		selector, argc := loads[0], loads[1]
		args := make([]uint32, argc)
		for i := int(argc) - 1; i >= 0; i-- {
			v, err := vm.Stack.Pop32()
			if err != nil {
				return err
			}
			args[i] = v
		}
		result, err := vm.glk.Dispatch(selector, args, vm)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[2], result); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpGetStringTbl:
		_, stores, pc2, err := vm.decodeOperands(pc, kS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[0], vm.decodingTable); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpSetStringTbl:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		vm.decodingTable = loads[0]
		vm.strCache.romValid = false
		vm.PC = pc2
		return nil

	case OpGetIOSys:
		_, stores, pc2, err := vm.decodeOperands(pc, kSS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[0], uint32(vm.ioSystem)); err != nil {
			return err
		}
		if err := vm.storeResult(stores[1], vm.ioRock); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpSetIOSys:
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		vm.ioSystem = IOSystemKind(loads[0])
		vm.ioRock = loads[1]
		if vm.ioSystem == IOSystemFilter {
			vm.filterFn = loads[1]
		}
		vm.PC = pc2
		return nil

	// ---- search ----
	case OpLinearSearch, OpBinarySearch:
		kinds := []bool{false, false, false, false, false, false, false, true}
		loads, stores, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		var v uint32
		if op == OpLinearSearch {
			v, err = vm.LinearSearch(loads[0], loads[1], loads[2], loads[3], loads[4], loads[5], loads[6])
		} else {
			v, err = vm.BinarySearch(loads[0], loads[1], loads[2], loads[3], loads[4], loads[5], loads[6])
		}
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[7], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpLinkedSearch:
		kinds := []bool{false, false, false, false, false, false, true}
		loads, stores, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		v, err := vm.LinkedSearch(loads[0], loads[1], loads[2], loads[3], loads[4], loads[5])
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[6], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	// ---- memory management ----
	case OpMZero:
		// operand order is (len, addr); Memory.MZero takes (addr, length).
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		if err := vm.Mem.MZero(loads[1], loads[0]); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpMCopy:
		// operand order is (len, src, dst); Memory.MCopy takes (src, dst, length).
		loads, _, pc2, err := vm.decodeOperands(pc, kLLL)
		if err != nil {
			return err
		}
		if err := vm.Mem.MCopy(loads[1], loads[2], loads[0]); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpMAlloc:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		addr := vm.heap.Malloc(loads[0])
		if err := vm.storeResult(stores[1], addr); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpMFree:
		loads, _, pc2, err := vm.decodeOperands(pc, kL)
		if err != nil {
			return err
		}
		vm.heap.Free(loads[0])
		vm.PC = pc2
		return nil

	// ---- accelerator ----
	case OpAccelFunc:
		// operand order is (funcnum, address) per the accelerated-function
		// extension, the reverse of RegisterAccel's (addr, id) signature.
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		if err := vm.RegisterAccel(loads[1], loads[0]); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpAccelParam:
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		vm.SetAccelParam(loads[0], loads[1])
		vm.PC = pc2
		return nil

	// ---- single-precision float ----
	case OpNumToF:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[1], vm.opNumToF(loads[0])); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpFToNumZ, OpFToNumN:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		var v uint32
		if op == OpFToNumZ {
			v = vm.opFToNumZ(loads[0])
		} else {
			v = vm.opFToNumN(loads[0])
		}
		if err := vm.storeResult(stores[1], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpCeil, OpFloor, OpSqrt, OpExp, OpLog, OpSin, OpCos, OpTan, OpASin, OpACos, OpATan:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[1], vm.floatUnary(op, loads[0])); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpFAdd, OpFSub, OpFMul, OpFDiv, OpPow, OpATan2:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		if err := vm.storeResult(stores[2], vm.floatArith(op, loads[0], loads[1])); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpFMod:
		loads, stores, pc2, err := vm.decodeOperands(pc, []bool{false, false, true, true})
		if err != nil {
			return err
		}
		rem, quot := vm.opFMod(loads[0], loads[1])
		if err := vm.storeResult(stores[2], rem); err != nil {
			return err
		}
		if err := vm.storeResult(stores[3], quot); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpJFEq, OpJFNe:
		loads, _, pc2, err := vm.decodeOperands(pc, kLLLL)
		if err != nil {
			return err
		}
		if floatCompare(op, loads[0], loads[1], loads[2]) {
			return vm.takeBranch(loads[3], pc2)
		}
		vm.PC = pc2
		return nil

	case OpJFLt, OpJFLe, OpJFGt, OpJFGe:
		loads, _, pc2, err := vm.decodeOperands(pc, kLLL)
		if err != nil {
			return err
		}
		if floatCompare(op, loads[0], loads[1], 0) {
			return vm.takeBranch(loads[2], pc2)
		}
		vm.PC = pc2
		return nil

	case OpJIsNaN, OpJIsInf:
		loads, _, pc2, err := vm.decodeOperands(pc, kLL)
		if err != nil {
			return err
		}
		var cond bool
		if op == OpJIsNaN {
			cond = isNaN32(loads[0])
		} else {
			cond = isInf32(loads[0])
		}
		if cond {
			return vm.takeBranch(loads[1], pc2)
		}
		vm.PC = pc2
		return nil

	// ---- double-precision float ----
	case OpNumToD:
		loads, stores, pc2, err := vm.decodeOperands(pc, []bool{false, true, true})
		if err != nil {
			return err
		}
		hi, lo := vm.opNumToD(loads[0])
		if err := vm.storeResult(stores[1], hi); err != nil {
			return err
		}
		if err := vm.storeResult(stores[2], lo); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpDToNumZ, OpDToNumN:
		loads, stores, pc2, err := vm.decodeOperands(pc, kLLS)
		if err != nil {
			return err
		}
		var v uint32
		if op == OpDToNumZ {
			v = vm.opDToNumZ(loads[0], loads[1])
		} else {
			v = vm.opDToNumN(loads[0], loads[1])
		}
		if err := vm.storeResult(stores[2], v); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpDCeil, OpDFloor, OpDSqrt, OpDExp, OpDLog, OpDSin, OpDCos, OpDTan, OpDASin, OpDACos, OpDATan:
		loads, stores, pc2, err := vm.decodeOperands(pc, []bool{false, false, true, true})
		if err != nil {
			return err
		}
		hi, lo := vm.doubleUnary(op, loads[0], loads[1])
		if err := vm.storeResult(stores[2], hi); err != nil {
			return err
		}
		if err := vm.storeResult(stores[3], lo); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpDAdd, OpDSub, OpDMul, OpDDiv, OpDPow, OpDATan2:
		kinds := []bool{false, false, false, false, true, true}
		loads, stores, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		hi, lo := vm.doubleArith(op, loads[0], loads[1], loads[2], loads[3])
		if err := vm.storeResult(stores[4], hi); err != nil {
			return err
		}
		if err := vm.storeResult(stores[5], lo); err != nil {
			return err
		}
		vm.PC = pc2
		return nil

	case OpDMod:
		kinds := []bool{false, false, false, false, true, true, true, true}
		loads, stores, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		remHi, remLo, quotHi, quotLo := vm.opDMod(loads[0], loads[1], loads[2], loads[3])
		vals := []uint32{remHi, remLo, quotHi, quotLo}
		for i, v := range vals {
			if err := vm.storeResult(stores[4+i], v); err != nil {
				return err
			}
		}
		vm.PC = pc2
		return nil

	case OpJDEq, OpJDNe:
		kinds := []bool{false, false, false, false, false, false}
		loads, _, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		if doubleCompare(op, loads[0], loads[1], loads[2], loads[3], loads[4]) {
			return vm.takeBranch(loads[5], pc2)
		}
		vm.PC = pc2
		return nil

	case OpJDLt, OpJDLe, OpJDGt, OpJDGe:
		kinds := []bool{false, false, false, false, false}
		loads, _, pc2, err := vm.decodeOperands(pc, kinds)
		if err != nil {
			return err
		}
		if doubleCompare(op, loads[0], loads[1], loads[2], loads[3], 0) {
			return vm.takeBranch(loads[4], pc2)
		}
		vm.PC = pc2
		return nil

	case OpJDIsNaN, OpJDIsInf:
		loads, _, pc2, err := vm.decodeOperands(pc, kLLL)
		if err != nil {
			return err
		}
		var cond bool
		if op == OpJDIsNaN {
			cond = isNaN64(loads[0], loads[1])
		} else {
			cond = isInf64(loads[0], loads[1])
		}
		if cond {
			return vm.takeBranch(loads[2], pc2)
		}
		vm.PC = pc2
		return nil
	}

	return ErrUnknownOpcode
}

func destStub(target StoreTarget, resumePC, callerFP uint32) CallStub {
	switch target.Kind {
	case storeDiscard:
		return CallStub{DestType: DestDiscard, PC: resumePC, FP: callerFP}
	case storeMemory:
		return CallStub{DestType: DestMemory, DestAddr: target.Addr, PC: resumePC, FP: callerFP}
	case storeLocal:
		return CallStub{DestType: DestLocal, DestAddr: target.Addr, PC: resumePC, FP: callerFP}
	default:
		return CallStub{DestType: DestPush, PC: resumePC, FP: callerFP}
	}
}

// beginPrintAt advances PC past the operands before starting a print
// operation, so the eventual resume point (if the print suspends) is
// the instruction after the stream opcode.
func (vm *VM) beginPrintAt(pcAfter uint32, st printState) error {
	vm.PC = pcAfter
	return vm.beginPrint(st)
}

func floorDiv8(n int32) int64 {
	q := int64(n) / 8
	if int64(n)%8 != 0 && (n < 0) {
		q--
	}
	return q
}

func floorMod8(n int32) int64 {
	m := int64(n) % 8
	if m < 0 {
		m += 8
	}
	return m
}

func shiftL(a, n uint32) uint32 {
	if n >= 32 {
		return 0
	}
	return a << n
}

func shiftSR(a, n uint32) uint32 {
	if n >= 32 {
		if int32(a) < 0 {
			return 0xFFFFFFFF
		}
		return 0
	}
	return uint32(int32(a) >> n)
}

func shiftUR(a, n uint32) uint32 {
	if n >= 32 {
		return 0
	}
	return a >> n
}

func (vm *VM) gestalt(selector, arg uint32) uint32 {
	if vm.glk != nil {
		if v, ok := vm.glk.Gestalt(selector, arg); ok {
			return v
		}
	}
	switch selector {
	case 0: // GestaltGlulxVersion
		return 0x00030103
	case 1: // GestaltTerpVersion
		return 0x00010000
	case 2: // GestaltResizeMem
		return 1
	case 3: // GestaltUndo
		return 1
	case 5: // GestaltUnicode
		return 1
	case 6: // GestaltMemCopy
		return 1
	case 7, 8: // GestaltMAlloc / MAllocHeap
		return 1
	case GestaltAcceleration:
		return 1
	case GestaltAccelFunc:
		if _, ok := accelFuncNames[arg]; ok {
			return 1
		}
		return 0
	case 11: // GestaltFloat
		return 1
	case 13: // GestaltDouble
		return 1
	default:
		return 0
	}
}

var accelFuncNames = map[uint32]string{
	AccelZRegion: "Z__Region", AccelCPTab: "CP__Tab", AccelRAPr: "RA__Pr",
	AccelRLPr: "RL__Pr", AccelOCCl: "OC__Cl", AccelRVPr: "RV__Pr", AccelOPPr: "OP__Pr",
	AccelCPTabNew: "CP__Tab#2", AccelRAPrNew: "RA__Pr#2", AccelRLPrNew: "RL__Pr#2",
	AccelOCClNew: "OC__Cl#2", AccelRVPrNew: "RV__Pr#2", AccelOPPrNew: "OP__Pr#2",
}

func (vm *VM) nextRandom(n uint32) uint32 {
	if int32(n) == 0 {
		return vm.rng.Uint32()
	}
	if int32(n) < 0 {
		vm.seedRandom(n)
		return 0
	}
	return uint32(vm.rng.Int31n(int32(n)))
}

func (vm *VM) seedRandom(n uint32) {
	if n == 0 {
		vm.rngSeed = 1
	} else {
		vm.rngSeed = int64(int32(n))
	}
	vm.rng.Seed(vm.rngSeed)
}

func (vm *VM) resetToPristine() {
	full := make([]byte, len(vm.pristine))
	copy(full, vm.pristine)
	vm.Mem = newMemory(full, vm.header.RAMStart, vm.header.ExtStart)
	vm.Stack = newStack(vm.header.StackSize)
	vm.accel = newAccelerator()
	vm.heap = newHeapAllocator(vm.Mem)
	vm.decodingTable = vm.header.DecodingTable
	vm.ioSystem = IOSystemNull
	vm.catchFrames = nil
	vm.printStack = nil
}
