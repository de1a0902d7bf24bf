package glulx

import (
	"encoding/binary"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// minimalHeaderImage builds a header-only image with RAM starting at
// 256, a 256-byte extension region, and a 256-byte stack - enough room
// for every test in this file to place code/data below ramstart and
// exercise read/write memory above it.
func minimalHeaderImage(size int) []byte {
	img := make([]byte, size)
	binary.BigEndian.PutUint32(img[0:4], glulxMagic)
	binary.BigEndian.PutUint32(img[4:8], 0x00030001)
	binary.BigEndian.PutUint32(img[8:12], 256)  // ramstart
	binary.BigEndian.PutUint32(img[12:16], 512) // extstart
	binary.BigEndian.PutUint32(img[16:20], 768) // endmem
	binary.BigEndian.PutUint32(img[20:24], 256) // stacksize
	binary.BigEndian.PutUint32(img[24:28], 0)   // startfunc, set per test
	binary.BigEndian.PutUint32(img[28:32], 0)   // decoding table, set per test
	return img
}

// --- spec.md §8 end-to-end scenario 1: add ---

func TestScenarioAddStoresOnStack(t *testing.T) {
	img := minimalHeaderImage(256)

	// C0 function at offset 36: type byte, empty locals format, then
	// `add 5 10 -> push`, then `quit`.
	fn := []byte{
		0xC0,             // TypeFunctionStackArgs
		0x00, 0x00,       // locals format terminator
		0x10,             // OpAdd (single-byte opcode)
		0x11,             // modes: load0=ConstByte, load1=ConstByte
		0x08,             // modes: store=Stack (high nibble padded 0)
		0x05, 0x0A,       // operands: 5, 10
		0x81, 0x20,       // OpQuit (two-byte opcode 0x120)
	}
	copy(img[36:], fn)
	binary.BigEndian.PutUint32(img[24:28], 36) // startfunc

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)
	assert(t, vm.Start() == nil, "Start failed")
	assert(t, vm.Run() == nil, "Run failed: %v", vm.err)

	top, err := vm.Stack.Pop32()
	assert(t, err == nil, "pop failed: %v", err)
	assert(t, top == 15, "top of stack = %d, want 15", top)
}

// --- spec.md §8 end-to-end scenario 2: jump backward ---

func TestScenarioJumpBackwardTakesNegativeOffset(t *testing.T) {
	vm := &VM{Stack: newStack(256)}
	// pcAfter=0x103, offset=-5: target = pcAfter + offset - 2.
	offset := int32(-5)
	assert(t, vm.takeBranch(uint32(offset), 0x103) == nil, "takeBranch failed")
	assert(t, vm.PC == 0xFC, "PC = %#x, want 0xfc", vm.PC)
}

// --- spec.md §8 end-to-end scenario 3: jltu unsigned comparison ---

func TestScenarioJLtUBranchesUnsigned(t *testing.T) {
	img := minimalHeaderImage(256)

	// jltu 0x7FFFFFFF, 0x80000000, branch +10 (taken only if unsigned
	// a < b, which is true even though int32(a) > int32(b)).
	fn := []byte{
		0xC0, 0x00, 0x00,
		0x2A,             // OpJLtU (single-byte opcode 0x2A)
		0x33,             // modes: load0=ConstWord, load1=ConstWord
		0x01,             // modes: load2 (branch offset)=ConstByte
		0x7F, 0xFF, 0xFF, 0xFF, // operand 0
		0x80, 0x00, 0x00, 0x00, // operand 1
		0x0A, // branch offset +10
	}
	copy(img[36:], fn)
	binary.BigEndian.PutUint32(img[24:28], 36)

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)
	assert(t, vm.Start() == nil, "Start failed")

	pcBeforeBranch := vm.PC
	assert(t, vm.Step() == nil, "Step failed")

	// pcAfter is pcBeforeBranch + len(instruction bytes) = +12 (opcode,
	// two mode bytes, 4+4+1 operand bytes); offset +10 means target =
	// pcAfter + 10 - 2 = pcAfter + 8.
	pcAfter := pcBeforeBranch + 12
	assert(t, vm.PC == pcAfter+8, "PC = %#x, want %#x (branch not taken)", vm.PC, pcAfter+8)
}

// --- spec.md §8 end-to-end scenario 4: Huffman decode ---

func TestScenarioHuffmanDecodeSingleCharacter(t *testing.T) {
	img := minimalHeaderImage(256)

	// Decoding table header at offset 40: length(unused), reserved,
	// root node address (= 52).
	binary.BigEndian.PutUint32(img[40:44], 0)
	binary.BigEndian.PutUint32(img[44:48], 0)
	binary.BigEndian.PutUint32(img[48:52], 52)

	// Root node (branch) at 52: bit 0 -> terminator (70), bit 1 -> leaf 'A' (61).
	img[52] = nodeBranch
	binary.BigEndian.PutUint32(img[53:57], 70) // left (bit 0)
	binary.BigEndian.PutUint32(img[57:61], 61) // right (bit 1)

	img[61] = nodeByteChar
	img[62] = 'A'

	img[70] = nodeTerminator

	// bitstream: 0xE1 = 0b11100001 (bit0=1 selects leaf 'A', bit1=0
	// selects terminator), per spec.md's literal scenario encoding.
	img[80] = 0xE1
	img[81] = 0x02
	binary.BigEndian.PutUint32(img[28:32], 40) // decoding table

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	st := printState{bitAddr: 80, bitPos: 0}
	action, err := vm.stepCompressed(&st)
	assert(t, err == nil, "stepCompressed failed: %v", err)
	assert(t, action.kind == compressedEmit, "expected compressedEmit, got %v", action.kind)
	assert(t, action.ch == uint32('A'), "decoded char = %q, want 'A'", rune(action.ch))

	action2, err := vm.stepCompressed(&st)
	assert(t, err == nil, "second stepCompressed failed: %v", err)
	assert(t, action2.kind == compressedDone, "expected compressedDone, got %v", action2.kind)
}

// --- spec.md §8 end-to-end scenario 5: C0 stack-argument call ordering ---

func TestScenarioStackArgsCallOrdering(t *testing.T) {
	img := minimalHeaderImage(256)
	fn := []byte{0xC0, 0x00, 0x00} // empty locals, body irrelevant (never executed)
	copy(img[36:], fn)

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	assert(t, vm.Stack.PushCallStub(CallStub{DestType: DestDiscard}) == nil, "push outer call stub failed")
	assert(t, vm.enterFunction(36, []uint32{10, 99}) == nil, "enterFunction failed")

	// Our C0 convention pushes args in reverse order then the argument
	// count last, leaving count on top - the caller discards it before
	// reading its arguments.
	count, err := vm.Stack.Pop32()
	assert(t, err == nil, "pop count failed: %v", err)
	assert(t, count == 2, "argument count = %d, want 2", count)

	a, err := vm.Stack.Pop32()
	assert(t, err == nil, "pop a failed: %v", err)
	b, err := vm.Stack.Pop32()
	assert(t, err == nil, "pop b failed: %v", err)
	assert(t, a+b == 109, "a+b = %d, want 109", a+b)
}

// --- spec.md §8 end-to-end scenario 6: float add ---

func TestScenarioFloatAddBitPattern(t *testing.T) {
	vm := &VM{}
	const onePointFive = 0x3FC00000
	const twoPointFive = 0x40200000
	const four = 0x40800000
	got := vm.floatArith(OpFAdd, onePointFive, twoPointFive)
	assert(t, got == four, "fadd bits = %#x, want %#x", got, four)
}

// --- spec.md §8 quantified invariants ---

func TestInvariantPushPopSymmetry(t *testing.T) {
	s := newStack(256)
	before := s.SP()
	assert(t, s.Push32(123) == nil, "push failed")
	v, err := s.Pop32()
	assert(t, err == nil, "pop failed: %v", err)
	assert(t, v == 123, "popped %d, want 123", v)
	assert(t, s.SP() == before, "sp after pop = %d, want %d", s.SP(), before)
}

func TestInvariantPushFramePopFrameRestoresState(t *testing.T) {
	memBytes := make([]byte, 16) // two zero bytes at offset 0 = empty locals format
	mem := newMemory(memBytes, 16, 16)

	s := newStack(1024)

	assert(t, s.PushCallStub(CallStub{DestType: DestDiscard}) == nil, "outer call stub failed")
	_, err := s.PushFrame(mem, 0)
	assert(t, err == nil, "outer PushFrame failed: %v", err)

	outerSP, outerFP := s.SP(), s.FP()
	outerLocalsBase, outerValStackBase := s.localsbase, s.valstackbase

	assert(t, s.PushCallStub(CallStub{DestType: DestDiscard, FP: outerFP}) == nil, "inner call stub failed")
	_, err = s.PushFrame(mem, 0)
	assert(t, err == nil, "inner PushFrame failed: %v", err)
	assert(t, s.Push32(42) == nil, "inner push failed")

	_, err = s.PopFrame()
	assert(t, err == nil, "PopFrame failed: %v", err)

	assert(t, s.SP() == outerSP, "sp = %d, want %d", s.SP(), outerSP)
	assert(t, s.FP() == outerFP, "fp = %d, want %d", s.FP(), outerFP)
	assert(t, s.localsbase == outerLocalsBase, "localsbase = %d, want %d", s.localsbase, outerLocalsBase)
	assert(t, s.valstackbase == outerValStackBase, "valstackbase = %d, want %d", s.valstackbase, outerValStackBase)
}

func TestInvariantMCopySameAddressIsNoop(t *testing.T) {
	img := minimalHeaderImage(768)
	copy(img[256:260], []byte{1, 2, 3, 4})
	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	before := append([]byte(nil), vm.Mem.Bytes()...)
	assert(t, vm.Mem.MCopy(256, 256, 4) == nil, "mcopy failed")
	assert(t, string(vm.Mem.Bytes()) == string(before), "mcopy(a,a) mutated memory")
}

func TestInvariantMCopyRoundTripNonOverlapping(t *testing.T) {
	img := minimalHeaderImage(768)
	copy(img[256:260], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	original := append([]byte(nil), vm.Mem.Bytes()...)

	assert(t, vm.Mem.MCopy(256, 300, 4) == nil, "mcopy a->b failed")
	assert(t, vm.Mem.MCopy(300, 256, 4) == nil, "mcopy b->a failed")
	assert(t, string(vm.Mem.Bytes()[256:260]) == string(original[256:260]), "round trip did not restore source range")
}

func TestInvariantSetMemSizeSameValueIsNoop(t *testing.T) {
	img := minimalHeaderImage(768)
	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	before := vm.Mem.Size()
	assert(t, vm.Mem.SetMemSize(768) == nil, "setmemsize(endmem) failed")
	assert(t, vm.Mem.Size() == before, "setmemsize(endmem) changed size: %d -> %d", before, vm.Mem.Size())
}

func TestInvariantSetMemSizeGrowThenShrinkRestoresPrefix(t *testing.T) {
	img := minimalHeaderImage(768)
	copy(img[512:516], []byte{1, 2, 3, 4})
	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	original := append([]byte(nil), vm.Mem.Bytes()...)

	assert(t, vm.Mem.SetMemSize(1024) == nil, "grow failed")
	assert(t, vm.Mem.SetMemSize(768) == nil, "shrink back failed")
	assert(t, string(vm.Mem.Bytes()) == string(original), "grow+shrink did not restore original bytes")
}

// --- dispatch-level mzero/mcopy: operand order on the wire is
// (len, addr) / (len, src, dst), the reverse of Memory's own
// (addr, length) / (src, dst, length) parameter order. ---

func TestDispatchMZeroOperandOrder(t *testing.T) {
	img := minimalHeaderImage(768)
	copy(img[256:260], []byte{0xAA, 0xBB, 0xCC, 0xDD})

	fn := []byte{
		0xC0, 0x00, 0x00,
		0x81, 0x70, // opcode 0x170 (mzero), two-byte encoding
		0x21,       // modes: load0(len)=ConstByte, load1(addr)=ConstShort
		0x04,       // len = 4
		0x01, 0x00, // addr = 256
		0x81, 0x20, // quit
	}
	copy(img[36:], fn)
	binary.BigEndian.PutUint32(img[24:28], 36)

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)
	assert(t, vm.Start() == nil, "Start failed")
	assert(t, vm.Run() == nil, "Run failed: %v", vm.err)

	got := vm.Mem.Bytes()[256:260]
	assert(t, got[0] == 0 && got[1] == 0 && got[2] == 0 && got[3] == 0, "mzero(len=4, addr=256) left %v, want zeros", got)
}

func TestDispatchMCopyOperandOrder(t *testing.T) {
	img := minimalHeaderImage(768)
	copy(img[256:260], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	fn := []byte{
		0xC0, 0x00, 0x00,
		0x81, 0x71, // opcode 0x171 (mcopy), two-byte encoding
		0x21,       // modes: load0(len)=ConstByte, load1(src)=ConstShort
		0x02,       // modes: load2(dst)=ConstShort
		0x04,       // len = 4
		0x01, 0x00, // src = 256
		0x01, 0x2C, // dst = 300
		0x81, 0x20, // quit
	}
	copy(img[36:], fn)
	binary.BigEndian.PutUint32(img[24:28], 36)

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)
	assert(t, vm.Start() == nil, "Start failed")
	assert(t, vm.Run() == nil, "Run failed: %v", vm.err)

	got := vm.Mem.Bytes()[300:304]
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	assert(t, got[0] == want[0] && got[1] == want[1] && got[2] == want[2] && got[3] == want[3],
		"mcopy(len=4, src=256, dst=300) copied %v, want %v", got, want)
}

// --- accelfunc must validate its target, and unknown ids must fall
// through to normal interpretation rather than aborting. ---

func TestAccelFuncRejectsNonFunctionTarget(t *testing.T) {
	img := minimalHeaderImage(256)
	img[36] = 0x00 // not a function type byte

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	regErr := vm.RegisterAccel(36, 1)
	assert(t, regErr == ErrAccelNotAFunction, "RegisterAccel error = %v, want ErrAccelNotAFunction", regErr)
}

func TestEnterFunctionFallsThroughOnUnknownAccelID(t *testing.T) {
	img := minimalHeaderImage(256)
	fn := []byte{
		0xC0, 0x00, 0x00,
		0x10,       // OpAdd
		0x11,       // modes: both ConstByte
		0x08,       // store: Stack
		0x05, 0x0A, // operands: 5, 10
		0x81, 0x20, // quit
	}
	copy(img[36:], fn)

	vm, err := NewVM(img, nil)
	assert(t, err == nil, "NewVM failed: %v", err)

	assert(t, vm.RegisterAccel(36, 42) == nil, "RegisterAccel failed")

	assert(t, vm.Stack.PushCallStub(CallStub{DestType: DestDiscard}) == nil, "push call stub failed")
	assert(t, vm.enterFunction(36, nil) == nil, "enterFunction failed")
	assert(t, vm.Run() == nil, "Run failed: %v", vm.err)

	top, err := vm.Stack.Pop32()
	assert(t, err == nil, "pop failed: %v", err)
	assert(t, top == 15, "top of stack = %d, want 15 (accel id 42 should fall through to interpretation)", top)
}
