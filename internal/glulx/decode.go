package glulx

// Operand addressing modes (spec.md §4.5).
const (
	ModeConstZero  = 0x0
	ModeConstByte  = 0x1
	ModeConstShort = 0x2
	ModeConstWord  = 0x3
	// 0x4 reserved
	ModeMemByte  = 0x5
	ModeMemShort = 0x6
	ModeMemWord  = 0x7
	ModeStack    = 0x8
	ModeLocalByte  = 0x9
	ModeLocalShort = 0xA
	ModeLocalWord  = 0xB
	// 0xC reserved
	ModeRAMByte  = 0xD
	ModeRAMShort = 0xE
	ModeRAMWord  = 0xF
)

// StoreTarget is the tagged destination enum from spec.md §9's design
// notes: {Discard, Memory(addr), Local(offset), StackPush}.
type StoreTarget struct {
	Kind storeKind
	Addr uint32
}

type storeKind int

const (
	storeDiscard storeKind = iota
	storeMemory
	storeLocal
	storeStackPush
)

func isReservedMode(mode byte) bool {
	return mode == 0x4 || mode == 0xC || mode > 0xF
}

// decodeOpcodeNumber reads the variable-length opcode at pc and
// returns the decoded number and the address just past it.
func decodeOpcodeNumber(mem *Memory, pc uint32) (uint32, uint32, error) {
	b0, err := mem.ReadByte(pc)
	if err != nil {
		return 0, 0, err
	}
	switch b0 >> 6 {
	case 0, 1: // top bit 0 -> single byte (0x00-0x7F)
		return uint32(b0), pc + 1, nil
	case 2: // top bits 10 -> two bytes
		b1, err := mem.ReadByte(pc + 1)
		if err != nil {
			return 0, 0, err
		}
		return (uint32(b0&0x3F) << 8) | uint32(b1), pc + 2, nil
	default: // top bits 11 -> four bytes
		w, err := mem.ReadWord(pc)
		if err != nil {
			return 0, 0, err
		}
		return w & 0x3FFFFFFF, pc + 4, nil
	}
}

// readModes reads ceil(n/2) mode bytes starting at pc, one nibble per
// operand (low nibble = operand i, high nibble = operand i+1, the
// last byte's high nibble padded with zero for an odd operand count).
func readModes(mem *Memory, pc uint32, n int) ([]byte, uint32, error) {
	modes := make([]byte, n)
	nbytes := (n + 1) / 2
	for i := 0; i < nbytes; i++ {
		b, err := mem.ReadByte(pc)
		if err != nil {
			return nil, 0, err
		}
		pc++
		modes[i*2] = b & 0x0F
		if i*2+1 < n {
			modes[i*2+1] = (b >> 4) & 0x0F
		}
	}
	return modes, pc, nil
}

// resolveLoad reads a load operand's data bytes (advancing pc) and
// resolves its 32-bit value. The address-size nibble only determines
// how many bytes encode the address/offset; the value fetched from
// memory or a local is always a full word, per spec.md's data model
// (locals narrower than 4 bytes are zero-extended via ReadLocalAuto).
func (vm *VM) resolveLoad(mode byte, pc uint32) (uint32, uint32, error) {
	if isReservedMode(mode) {
		return 0, 0, ErrReservedAddressMode
	}
	switch mode {
	case ModeConstZero:
		return 0, pc, nil
	case ModeConstByte:
		b, err := vm.Mem.ReadByte(pc)
		if err != nil {
			return 0, 0, err
		}
		return uint32(int32(int8(b))), pc + 1, nil
	case ModeConstShort:
		s, err := vm.Mem.ReadShort(pc)
		if err != nil {
			return 0, 0, err
		}
		return uint32(int32(int16(s))), pc + 2, nil
	case ModeConstWord:
		w, err := vm.Mem.ReadWord(pc)
		if err != nil {
			return 0, 0, err
		}
		return w, pc + 4, nil
	case ModeMemByte:
		addr, err := vm.Mem.ReadByte(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Mem.ReadWord(uint32(addr))
		return v, pc + 1, err
	case ModeMemShort:
		addr, err := vm.Mem.ReadShort(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Mem.ReadWord(uint32(addr))
		return v, pc + 2, err
	case ModeMemWord:
		addr, err := vm.Mem.ReadWord(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Mem.ReadWord(addr)
		return v, pc + 4, err
	case ModeStack:
		v, err := vm.Stack.Pop32()
		return v, pc, err
	case ModeLocalByte:
		off, err := vm.Mem.ReadByte(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Stack.ReadLocalAuto(uint32(off))
		return v, pc + 1, err
	case ModeLocalShort:
		off, err := vm.Mem.ReadShort(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Stack.ReadLocalAuto(uint32(off))
		return v, pc + 2, err
	case ModeLocalWord:
		off, err := vm.Mem.ReadWord(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Stack.ReadLocalAuto(off)
		return v, pc + 4, err
	case ModeRAMByte:
		off, err := vm.Mem.ReadByte(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Mem.ReadWord(vm.Mem.RAMStart() + uint32(off))
		return v, pc + 1, err
	case ModeRAMShort:
		off, err := vm.Mem.ReadShort(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Mem.ReadWord(vm.Mem.RAMStart() + uint32(off))
		return v, pc + 2, err
	default: // ModeRAMWord
		off, err := vm.Mem.ReadWord(pc)
		if err != nil {
			return 0, 0, err
		}
		v, err := vm.Mem.ReadWord(vm.Mem.RAMStart() + off)
		return v, pc + 4, err
	}
}

// resolveStore reads a store operand's address bytes (advancing pc,
// same encoding as a load) without performing the write - the actual
// deposit happens after the opcode computes its result, via
// storeResult.
func (vm *VM) resolveStore(mode byte, pc uint32) (StoreTarget, uint32, error) {
	if isReservedMode(mode) {
		return StoreTarget{}, 0, ErrReservedAddressMode
	}
	switch mode {
	case ModeConstZero:
		return StoreTarget{Kind: storeDiscard}, pc, nil
	case ModeMemByte:
		addr, err := vm.Mem.ReadByte(pc)
		return StoreTarget{Kind: storeMemory, Addr: uint32(addr)}, pc + 1, err
	case ModeMemShort:
		addr, err := vm.Mem.ReadShort(pc)
		return StoreTarget{Kind: storeMemory, Addr: uint32(addr)}, pc + 2, err
	case ModeMemWord:
		addr, err := vm.Mem.ReadWord(pc)
		return StoreTarget{Kind: storeMemory, Addr: addr}, pc + 4, err
	case ModeStack:
		return StoreTarget{Kind: storeStackPush}, pc, nil
	case ModeLocalByte:
		off, err := vm.Mem.ReadByte(pc)
		return StoreTarget{Kind: storeLocal, Addr: uint32(off)}, pc + 1, err
	case ModeLocalShort:
		off, err := vm.Mem.ReadShort(pc)
		return StoreTarget{Kind: storeLocal, Addr: uint32(off)}, pc + 2, err
	case ModeLocalWord:
		off, err := vm.Mem.ReadWord(pc)
		return StoreTarget{Kind: storeLocal, Addr: off}, pc + 4, err
	case ModeRAMByte:
		off, err := vm.Mem.ReadByte(pc)
		return StoreTarget{Kind: storeMemory, Addr: vm.Mem.RAMStart() + uint32(off)}, pc + 1, err
	case ModeRAMShort:
		off, err := vm.Mem.ReadShort(pc)
		return StoreTarget{Kind: storeMemory, Addr: vm.Mem.RAMStart() + uint32(off)}, pc + 2, err
	case ModeRAMWord:
		off, err := vm.Mem.ReadWord(pc)
		return StoreTarget{Kind: storeMemory, Addr: vm.Mem.RAMStart() + off}, pc + 4, err
	default: // constant modes 1..3 as a destination mean "discard" per spec's mode-0 rule;
		// any other unhandled code is a decode bug, not reachable given isReservedMode above.
		return StoreTarget{Kind: storeDiscard}, pc, nil
	}
}

// storeResult deposits a computed value into a previously-resolved
// StoreTarget (spec.md §3's store_result dispatch table, minus the
// string-resume dest types which only apply to call-stub returns).
func (vm *VM) storeResult(target StoreTarget, value uint32) error {
	switch target.Kind {
	case storeDiscard:
		return nil
	case storeMemory:
		return vm.Mem.WriteWord(target.Addr, value)
	case storeLocal:
		return vm.Stack.WriteLocalAuto(target.Addr, value)
	case storeStackPush:
		return vm.Stack.Push32(value)
	}
	return nil
}

// storeResultByDestType implements the call-stub flavor of
// store_result (spec.md §3): dest_type/dest_addr from a CallStub,
// dispatched when a called function returns.
func (vm *VM) storeResultByDestType(destType, destAddr, value uint32) error {
	switch destType {
	case DestDiscard:
		return nil
	case DestMemory:
		return vm.Mem.WriteWord(destAddr, value)
	case DestLocal:
		return vm.Stack.WriteLocalAuto(destAddr, value)
	case DestPush:
		return vm.Stack.Push32(value)
	case DestStringTerm:
		return ErrStringTerminatorAsRet
	default:
		return ErrBadCallStub
	}
}
