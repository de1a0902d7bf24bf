package glulx

import "encoding/binary"

// Destination types for a call stub's dest_type field (spec.md §3).
const (
	DestDiscard        = 0x00
	DestMemory         = 0x01
	DestLocal          = 0x02
	DestPush           = 0x03
	DestResumeString   = 0x10
	DestStringTerm     = 0x11 // illegal as a function-return destination
	DestResumeNumber   = 0x12
	DestResumeCString  = 0x13
	DestResumeUnicode  = 0x14
)

// CallStub is the 16-byte record pushed immediately before a frame
// when entering a function, or when a string print suspends on a
// nested function dispatch.
type CallStub struct {
	DestType uint32
	DestAddr uint32
	PC       uint32
	FP       uint32
}

const callStubSize = 16

// localGroup is one (size, count) pair from a locals-format descriptor.
type localGroup struct {
	Size  byte
	Count byte
}

// Stack models the byte-addressable call stack: frame header + locals
// region + value-stack region, growing upward from 0 to cap(data).
type Stack struct {
	data []byte
	sp   uint32
	fp   uint32

	localsbase   uint32
	valstackbase uint32

	// layouts mirrors the nesting of call frames so operand decoding
	// can determine a local's declared size (1/2/4 bytes) from its
	// offset without re-parsing the locals-format descriptor.
	layouts []frameLayout
}

func newStack(size uint32) *Stack {
	return &Stack{data: make([]byte, size)}
}

func (s *Stack) SP() uint32 { return s.sp }
func (s *Stack) FP() uint32 { return s.fp }

func (s *Stack) checkCapacity(extra uint32) error {
	if uint64(s.sp)+uint64(extra) > uint64(len(s.data)) {
		return ErrStackOverflow
	}
	return nil
}

// Push32 pushes a raw 32-bit value onto the value stack above the
// current frame.
func (s *Stack) Push32(v uint32) error {
	if err := s.checkCapacity(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(s.data[s.sp:], v)
	s.sp += 4
	return nil
}

// Pop32 pops a raw 32-bit value; underflow below valstackbase is fatal.
func (s *Stack) Pop32() (uint32, error) {
	if s.sp < s.valstackbase+4 {
		return 0, ErrStackUnderflow
	}
	s.sp -= 4
	return binary.BigEndian.Uint32(s.data[s.sp:]), nil
}

// StkCount returns the number of 32-bit values currently above
// valstackbase.
func (s *Stack) StkCount() uint32 {
	return (s.sp - s.valstackbase) / 4
}

// Peek32 returns the i-th value from the top (0 = topmost) without
// popping.
func (s *Stack) Peek32(i uint32) (uint32, error) {
	count := s.StkCount()
	if i >= count {
		return 0, ErrStackUnderflow
	}
	addr := s.sp - 4 - i*4
	return binary.BigEndian.Uint32(s.data[addr:]), nil
}

func (s *Stack) poke32(i uint32, v uint32) {
	addr := s.sp - 4 - i*4
	binary.BigEndian.PutUint32(s.data[addr:], v)
}

// StkSwap swaps the top two values.
func (s *Stack) StkSwap() error {
	if s.StkCount() < 2 {
		return ErrStackUnderflow
	}
	a, _ := s.Peek32(0)
	b, _ := s.Peek32(1)
	s.poke32(0, b)
	s.poke32(1, a)
	return nil
}

// StkRoll rotates the top n values by shift (positive = toward the
// top). n must be non-negative; a negative n is fatal, not a no-op.
func (s *Stack) StkRoll(n int32, shift int32) error {
	if n < 0 {
		return ErrStackUnderflow
	}
	count := uint32(n)
	if count == 0 {
		return nil
	}
	if s.StkCount() < count {
		return ErrStackUnderflow
	}
	vals := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		vals[i], _ = s.Peek32(i)
	}
	norm := ((shift % int32(count)) + int32(count)) % int32(count)
	for i := uint32(0); i < count; i++ {
		src := (i + uint32(norm)) % count
		s.poke32(i, vals[src])
	}
	return nil
}

// StkCopy duplicates the top n values in order so that after the call
// the same n values sit on top, now preceded by a second copy.
func (s *Stack) StkCopy(n int32) error {
	if n < 0 {
		return ErrStackUnderflow
	}
	count := uint32(n)
	if s.StkCount() < count {
		return ErrStackUnderflow
	}
	if err := s.checkCapacity(count * 4); err != nil {
		return err
	}
	vals := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		vals[count-1-i], _ = s.Peek32(i)
	}
	for _, v := range vals {
		_ = s.Push32(v)
	}
	return nil
}

// PushCallStub pushes a 16-byte call stub.
func (s *Stack) PushCallStub(cs CallStub) error {
	if err := s.checkCapacity(callStubSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(s.data[s.sp:], cs.DestType)
	binary.BigEndian.PutUint32(s.data[s.sp+4:], cs.DestAddr)
	binary.BigEndian.PutUint32(s.data[s.sp+8:], cs.PC)
	binary.BigEndian.PutUint32(s.data[s.sp+12:], cs.FP)
	s.sp += callStubSize
	return nil
}

// PopCallStub pops the most recently pushed call stub.
func (s *Stack) PopCallStub() (CallStub, error) {
	if s.sp < callStubSize {
		return CallStub{}, ErrBadCallStub
	}
	s.sp -= callStubSize
	cs := CallStub{
		DestType: binary.BigEndian.Uint32(s.data[s.sp:]),
		DestAddr: binary.BigEndian.Uint32(s.data[s.sp+4:]),
		PC:       binary.BigEndian.Uint32(s.data[s.sp+8:]),
		FP:       binary.BigEndian.Uint32(s.data[s.sp+12:]),
	}
	return cs, nil
}

// DropFrame discards the current frame's locals and value stack
// without popping the call stub beneath it, reusing that same stub for
// a tailcall's replacement frame.
func (s *Stack) DropFrame() {
	s.sp = s.fp
	if len(s.layouts) > 0 {
		s.layouts = s.layouts[:len(s.layouts)-1]
	}
}

// Unwind truncates the stack back to a previously recorded (sp, fp,
// layoutDepth) triple, for throw's non-local exit to an earlier catch
// point.
func (s *Stack) Unwind(sp, fp uint32, layoutDepth int) {
	s.sp = sp
	s.fp = fp
	if layoutDepth <= len(s.layouts) {
		s.layouts = s.layouts[:layoutDepth]
	}
	s.recomputeBasesFromFP()
}

func alignUp4(v uint32) uint32 {
	return (v + 3) &^ 3
}

// parseLocalsFormat reads a locals-format descriptor starting at off:
// a sequence of (size:u8, count:u8) pairs terminated by (0,0).
func parseLocalsFormat(mem *Memory, off uint32) ([]localGroup, uint32, error) {
	var groups []localGroup
	cur := off
	for {
		size, err := mem.ReadByte(cur)
		if err != nil {
			return nil, 0, err
		}
		count, err := mem.ReadByte(cur + 1)
		if err != nil {
			return nil, 0, err
		}
		cur += 2
		if size == 0 && count == 0 {
			break
		}
		if size != 1 && size != 2 && size != 4 {
			return nil, 0, ErrBadOperandMode
		}
		groups = append(groups, localGroup{Size: size, Count: count})
	}
	return groups, cur, nil
}

// frameLayout describes a materialized call frame's locals region:
// one entry per individual local (not per group), with its byte
// offset relative to localsbase.
type frameLayout struct {
	groups     []localGroup
	offsets    []uint32
	sizes      []byte
	localsSize uint32
}

func layoutLocals(groups []localGroup) frameLayout {
	var fl frameLayout
	fl.groups = groups
	var pos uint32
	for _, g := range groups {
		for i := byte(0); i < g.Count; i++ {
			if g.Size == 2 && pos%2 != 0 {
				pos++
			}
			if g.Size == 4 && pos%4 != 0 {
				pos = alignUp4(pos)
			}
			fl.offsets = append(fl.offsets, pos)
			fl.sizes = append(fl.sizes, g.Size)
			pos += uint32(g.Size)
		}
	}
	fl.localsSize = pos
	return fl
}

// PushFrame parses the locals descriptor starting at formatAddr in
// mem, writes the frame header (frame_length, locals_pos, format,
// padding) into the stack at the current fp==sp, zero-fills locals,
// and advances sp. Returns the parsed layout so the caller (the
// function-entry opcode handling) can write arguments into it.
func (s *Stack) PushFrame(mem *Memory, formatAddr uint32) (frameLayout, error) {
	groups, formatEnd, err := parseLocalsFormat(mem, formatAddr)
	if err != nil {
		return frameLayout{}, err
	}
	fl := layoutLocals(groups)

	// frame header: frame_length(4) + locals_pos(4) + format bytes +
	// padding to locals_pos, then locals, then padding to frame_length.
	formatLen := formatEnd - formatAddr
	localsPos := alignUp4(8 + formatLen)
	frameLen := alignUp4(localsPos + fl.localsSize)

	s.fp = s.sp
	if err := s.checkCapacity(frameLen); err != nil {
		return frameLayout{}, err
	}

	binary.BigEndian.PutUint32(s.data[s.fp:], frameLen)
	binary.BigEndian.PutUint32(s.data[s.fp+4:], localsPos)

	// Copy the format bytes (re-reading from mem since groups don't
	// retain the raw encoding) and zero the padding.
	for i := uint32(0); i < formatLen; i++ {
		b, _ := mem.ReadByte(formatAddr + i)
		s.data[s.fp+8+i] = b
	}
	for i := s.fp + 8 + formatLen; i < s.fp+localsPos; i++ {
		s.data[i] = 0
	}

	s.localsbase = s.fp + localsPos
	for i := uint32(0); i < fl.localsSize; i++ {
		s.data[s.localsbase+i] = 0
	}
	for i := s.localsbase + fl.localsSize; i < s.fp+frameLen; i++ {
		s.data[i] = 0
	}

	s.valstackbase = s.fp + frameLen
	s.sp = s.valstackbase

	s.layouts = append(s.layouts, fl)

	return fl, nil
}

// PopFrame unwinds the current frame: sp = fp, pops the call stub
// beneath it, and restores fp / cached bases. Returns the stub so the
// caller can resume PC and deposit the return value.
func (s *Stack) PopFrame() (CallStub, error) {
	s.sp = s.fp
	cs, err := s.PopCallStub()
	if err != nil {
		return cs, err
	}
	s.fp = cs.FP
	if len(s.layouts) > 0 {
		s.layouts = s.layouts[:len(s.layouts)-1]
	}
	if s.fp > 0 || s.sp > 0 {
		s.recomputeBasesFromFP()
	}
	return cs, nil
}

// currentLayout returns the layout of the currently active frame, or
// the zero value if there is none (e.g. before the first frame push).
func (s *Stack) currentLayout() frameLayout {
	if len(s.layouts) == 0 {
		return frameLayout{}
	}
	return s.layouts[len(s.layouts)-1]
}

// LocalSize returns the declared size (1, 2, or 4) of the local at the
// given offset in the current frame, defaulting to 4 if the offset
// does not exactly match a local's start (callers are expected to only
// pass offsets produced by valid operand decoding).
func (s *Stack) LocalSize(offset uint32) byte {
	fl := s.currentLayout()
	if idx, ok := fl.localOffset(offset); ok {
		return fl.sizes[idx]
	}
	return 4
}

// recomputeBasesFromFP re-derives localsbase/valstackbase from the
// frame header at the (now current) fp. Used after PopFrame restores
// an enclosing frame.
func (s *Stack) recomputeBasesFromFP() {
	if int(s.fp)+8 > len(s.data) {
		s.localsbase, s.valstackbase = s.fp, s.fp
		return
	}
	frameLen := binary.BigEndian.Uint32(s.data[s.fp:])
	localsPos := binary.BigEndian.Uint32(s.data[s.fp+4:])
	s.localsbase = s.fp + localsPos
	s.valstackbase = s.fp + frameLen
}

func (fl frameLayout) localOffset(offset uint32) (idx int, ok bool) {
	for i, o := range fl.offsets {
		if o == offset {
			return i, true
		}
	}
	return 0, false
}

// ReadLocal8/16/32 read a local relative to localsbase.
func (s *Stack) ReadLocal32(offset uint32) (uint32, error) {
	addr := s.localsbase + offset
	if uint64(addr)+4 > uint64(len(s.data)) {
		return 0, ErrOutOfBounds
	}
	return binary.BigEndian.Uint32(s.data[addr:]), nil
}

func (s *Stack) ReadLocal16(offset uint32) (uint16, error) {
	addr := s.localsbase + offset
	if uint64(addr)+2 > uint64(len(s.data)) {
		return 0, ErrOutOfBounds
	}
	return binary.BigEndian.Uint16(s.data[addr:]), nil
}

func (s *Stack) ReadLocal8(offset uint32) (byte, error) {
	addr := s.localsbase + offset
	if uint64(addr) >= uint64(len(s.data)) {
		return 0, ErrOutOfBounds
	}
	return s.data[addr], nil
}

func (s *Stack) WriteLocal32(offset, v uint32) error {
	addr := s.localsbase + offset
	if uint64(addr)+4 > uint64(len(s.data)) {
		return ErrOutOfBounds
	}
	binary.BigEndian.PutUint32(s.data[addr:], v)
	return nil
}

func (s *Stack) WriteLocal16(offset uint32, v uint32) error {
	addr := s.localsbase + offset
	if uint64(addr)+2 > uint64(len(s.data)) {
		return ErrOutOfBounds
	}
	binary.BigEndian.PutUint16(s.data[addr:], uint16(v))
	return nil
}

// ReadLocalAuto reads the local at offset according to its declared
// size in the current frame, zero-extending to 32 bits - this is what
// operand decoding (modes 9/A/B) actually uses, since a local's
// storage width is fixed by the function's locals-format regardless
// of which address-size nibble encoded its offset in the bytecode.
func (s *Stack) ReadLocalAuto(offset uint32) (uint32, error) {
	switch s.LocalSize(offset) {
	case 1:
		v, err := s.ReadLocal8(offset)
		return uint32(v), err
	case 2:
		v, err := s.ReadLocal16(offset)
		return uint32(v), err
	default:
		return s.ReadLocal32(offset)
	}
}

// WriteLocalAuto writes v into the local at offset, narrowing to its
// declared size.
func (s *Stack) WriteLocalAuto(offset uint32, v uint32) error {
	switch s.LocalSize(offset) {
	case 1:
		return s.WriteLocal8(offset, v)
	case 2:
		return s.WriteLocal16(offset, v)
	default:
		return s.WriteLocal32(offset, v)
	}
}

func (s *Stack) WriteLocal8(offset uint32, v uint32) error {
	addr := s.localsbase + offset
	if uint64(addr) >= uint64(len(s.data)) {
		return ErrOutOfBounds
	}
	s.data[addr] = byte(v)
	return nil
}

// LocalGroupSnapshot is the exported mirror of localGroup, for
// internal/gsave to serialize without reaching into this package's
// unexported types.
type LocalGroupSnapshot struct {
	Size  byte
	Count byte
}

// FrameSnapshot captures one active call frame's locals-format groups;
// layoutLocals can rebuild the full frameLayout from these alone, so a
// restore doesn't need to re-walk bytecode to find each function's
// locals descriptor.
type FrameSnapshot struct {
	Groups []LocalGroupSnapshot
}

// StackSnapshot is a complete, serializable copy of Stack's live state
// (spec.md §9's save format: "full stack, PC, fp" - fp travels with the
// rest of the call-frame bookkeeping here; PC is a VM-level concern).
type StackSnapshot struct {
	Data         []byte // the first SP bytes of raw stack memory
	SP           uint32
	FP           uint32
	LocalsBase   uint32
	ValStackBase uint32
	Frames       []FrameSnapshot
}

// Snapshot captures everything needed to restore this Stack later.
func (s *Stack) Snapshot() StackSnapshot {
	data := make([]byte, s.sp)
	copy(data, s.data[:s.sp])

	frames := make([]FrameSnapshot, len(s.layouts))
	for i, fl := range s.layouts {
		groups := make([]LocalGroupSnapshot, len(fl.groups))
		for j, g := range fl.groups {
			groups[j] = LocalGroupSnapshot{Size: g.Size, Count: g.Count}
		}
		frames[i] = FrameSnapshot{Groups: groups}
	}

	return StackSnapshot{
		Data:         data,
		SP:           s.sp,
		FP:           s.fp,
		LocalsBase:   s.localsbase,
		ValStackBase: s.valstackbase,
		Frames:       frames,
	}
}

// Restore replaces this Stack's entire live state with snap, keeping
// the underlying buffer's total capacity unchanged (the stack's size
// is fixed at construction and is not itself part of a save file).
func (s *Stack) Restore(snap StackSnapshot) error {
	if uint64(len(snap.Data)) > uint64(len(s.data)) {
		return ErrStackOverflow
	}
	for i := range s.data {
		s.data[i] = 0
	}
	copy(s.data, snap.Data)

	s.sp = snap.SP
	s.fp = snap.FP
	s.localsbase = snap.LocalsBase
	s.valstackbase = snap.ValStackBase

	s.layouts = make([]frameLayout, len(snap.Frames))
	for i, f := range snap.Frames {
		groups := make([]localGroup, len(f.Groups))
		for j, g := range f.Groups {
			groups[j] = localGroup{Size: g.Size, Count: g.Count}
		}
		s.layouts[i] = layoutLocals(groups)
	}
	return nil
}

// SetArguments writes up to len(fl.offsets) arguments into locals in
// declaration order, truncating each to its local's size; extras are
// dropped, missing locals remain zero (already zeroed by PushFrame).
func (s *Stack) SetArguments(fl frameLayout, args []uint32) error {
	n := len(fl.offsets)
	if len(args) < n {
		n = len(args)
	}
	for i := 0; i < n; i++ {
		off := fl.offsets[i]
		switch fl.sizes[i] {
		case 1:
			if err := s.WriteLocal8(off, args[i]); err != nil {
				return err
			}
		case 2:
			if err := s.WriteLocal16(off, args[i]); err != nil {
				return err
			}
		default:
			if err := s.WriteLocal32(off, args[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
