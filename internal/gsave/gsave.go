// Package gsave implements Glulx's own save/restore/undo serialization
// (spec.md §9: "implementation-defined but round-trips: magic, endmem,
// compressed delta vs. the initial image, full stack, PC, fp, current
// I/O system + rock, RNG state"). It satisfies internal/glulx's
// SaveHandler interface so a *glulx.VM never needs to know the format.
package gsave

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/atebitftw/glulx/internal/glulx"
)

const (
	magic         = "GSAV"
	formatVersion = 1
)

var (
	ErrBadMagic    = errors.New("gsave: bad magic, not a save file produced by this interpreter")
	ErrVersion     = errors.New("gsave: unsupported save format version")
	ErrNoUndo      = errors.New("gsave: no undo snapshot available")
	ErrTruncated   = errors.New("gsave: truncated save data")
)

// Handler persists saves to a single file path. `rock` is accepted for
// interface compatibility with the save/restore opcodes (spec.md §4.5
// - "glk selector arg_count -> result" conventions carry a rock-like
// value through to the provider) but is not used to pick a destination
// here, since fileref prompting through Glk is out of this module's
// scope.
type Handler struct {
	Path    string
	MaxUndo int

	undo [][]byte
}

// NewHandler configures where save/restore read and write, and how
// many saveundo snapshots to retain (0 = unbounded).
func NewHandler(path string, maxUndo int) *Handler {
	return &Handler{Path: path, MaxUndo: maxUndo}
}

func (h *Handler) Save(vm *glulx.VM, rock uint32) error {
	data, err := encode(vm)
	if err != nil {
		return err
	}
	return os.WriteFile(h.Path, data, 0o644)
}

func (h *Handler) Restore(vm *glulx.VM, rock uint32) error {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		return err
	}
	return decode(vm, data)
}

func (h *Handler) SaveUndo(vm *glulx.VM) error {
	data, err := encode(vm)
	if err != nil {
		return err
	}
	h.undo = append(h.undo, data)
	if h.MaxUndo > 0 && len(h.undo) > h.MaxUndo {
		h.undo = h.undo[len(h.undo)-h.MaxUndo:]
	}
	return nil
}

func (h *Handler) RestoreUndo(vm *glulx.VM) error {
	if len(h.undo) == 0 {
		return ErrNoUndo
	}
	last := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return decode(vm, last)
}

// encode serializes the full round-trip set spec.md §9 names. The
// memory region is stored as a delta against the pristine image (an
// XOR, which is all-zero wherever nothing changed and so compresses
// extremely well) rather than the raw bytes, then flate-compressed.
func encode(vm *glulx.VM) ([]byte, error) {
	mem := vm.Bytes()
	pristine := vm.Pristine()
	delta := xorDelta(mem, pristine)

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(delta); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}

	snap := vm.Stack.Snapshot()
	ioKind, ioRock := vm.IOSystemState()
	sessionID := uuid.New()

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	idBytes, _ := sessionID.MarshalBinary()
	buf.Write(idBytes)
	writeU32(&buf, uint32(len(mem)))
	writeU32(&buf, vm.PC)
	writeU32(&buf, uint32(ioKind))
	writeU32(&buf, ioRock)
	writeU64(&buf, uint64(vm.RNGSeed()))
	writeU32(&buf, uint32(compressed.Len()))
	buf.Write(compressed.Bytes())
	writeStackSnapshot(&buf, snap)

	return buf.Bytes(), nil
}

// decode rebuilds VM state from a buffer produced by encode. The
// caller's vm.Pristine() must match the one the save was taken from -
// identical game image - or the reconstructed memory is meaningless;
// this implementation does not attempt to detect that case beyond the
// magic/version check, matching spec.md §7's treatment of verify
// mismatches as non-fatal/advisory rather than refused.
func decode(vm *glulx.VM, data []byte) error {
	r := bytes.NewReader(data)

	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return ErrTruncated
	}
	if string(hdr) != magic {
		return ErrBadMagic
	}
	version, err := readByte(r)
	if err != nil {
		return ErrTruncated
	}
	if version != formatVersion {
		return ErrVersion
	}
	idBytes := make([]byte, 16)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return ErrTruncated
	}

	endMem, err := readU32(r)
	if err != nil {
		return ErrTruncated
	}
	pc, err := readU32(r)
	if err != nil {
		return ErrTruncated
	}
	ioKind, err := readU32(r)
	if err != nil {
		return ErrTruncated
	}
	ioRock, err := readU32(r)
	if err != nil {
		return ErrTruncated
	}
	seed, err := readU64(r)
	if err != nil {
		return ErrTruncated
	}
	compressedLen, err := readU32(r)
	if err != nil {
		return ErrTruncated
	}
	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return ErrTruncated
	}

	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()
	delta, err := io.ReadAll(fr)
	if err != nil {
		return err
	}

	pristine := vm.Pristine()
	mem := applyXorDelta(delta, pristine, endMem)
	if err := vm.SetMemory(mem); err != nil {
		return err
	}

	snap, err := readStackSnapshot(r)
	if err != nil {
		return err
	}
	if err := vm.Stack.Restore(snap); err != nil {
		return err
	}

	vm.PC = pc
	vm.SetIOSystemState(glulx.IOSystemKind(ioKind), ioRock)
	vm.SetRNGSeed(int64(seed))
	return nil
}

// xorDelta produces a buffer the length of mem, XORed against pristine
// byte-for-byte (pristine is treated as all-zero past its own length,
// matching memory grown via setmemsize since the original image load).
func xorDelta(mem, pristine []byte) []byte {
	out := make([]byte, len(mem))
	for i := range out {
		var p byte
		if i < len(pristine) {
			p = pristine[i]
		}
		out[i] = mem[i] ^ p
	}
	return out
}

func applyXorDelta(delta, pristine []byte, length uint32) []byte {
	out := make([]byte, length)
	for i := range out {
		var p byte
		if i < len(pristine) {
			p = pristine[i]
		}
		var d byte
		if i < len(delta) {
			d = delta[i]
		}
		out[i] = d ^ p
	}
	return out
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// writeStackSnapshot / readStackSnapshot serialize glulx.StackSnapshot,
// whose fields are all exported precisely so this package can do so
// without glulx needing to know anything about on-disk formats.
func writeStackSnapshot(buf *bytes.Buffer, snap glulx.StackSnapshot) {
	writeU32(buf, snap.SP)
	writeU32(buf, snap.FP)
	writeU32(buf, snap.LocalsBase)
	writeU32(buf, snap.ValStackBase)
	writeU32(buf, uint32(len(snap.Frames)))
	for _, f := range snap.Frames {
		writeU32(buf, uint32(len(f.Groups)))
		for _, g := range f.Groups {
			buf.WriteByte(g.Size)
			buf.WriteByte(g.Count)
		}
	}
	writeU32(buf, uint32(len(snap.Data)))
	buf.Write(snap.Data)
}

func readStackSnapshot(r io.Reader) (glulx.StackSnapshot, error) {
	var snap glulx.StackSnapshot
	var err error

	if snap.SP, err = readU32(r); err != nil {
		return snap, ErrTruncated
	}
	if snap.FP, err = readU32(r); err != nil {
		return snap, ErrTruncated
	}
	if snap.LocalsBase, err = readU32(r); err != nil {
		return snap, ErrTruncated
	}
	if snap.ValStackBase, err = readU32(r); err != nil {
		return snap, ErrTruncated
	}
	numFrames, err := readU32(r)
	if err != nil {
		return snap, ErrTruncated
	}
	snap.Frames = make([]glulx.FrameSnapshot, numFrames)
	for i := range snap.Frames {
		numGroups, err := readU32(r)
		if err != nil {
			return snap, ErrTruncated
		}
		groups := make([]glulx.LocalGroupSnapshot, numGroups)
		for j := range groups {
			size, err := readByte(r)
			if err != nil {
				return snap, ErrTruncated
			}
			count, err := readByte(r)
			if err != nil {
				return snap, ErrTruncated
			}
			groups[j] = glulx.LocalGroupSnapshot{Size: size, Count: count}
		}
		snap.Frames[i] = glulx.FrameSnapshot{Groups: groups}
	}
	dataLen, err := readU32(r)
	if err != nil {
		return snap, ErrTruncated
	}
	snap.Data = make([]byte, dataLen)
	if _, err := io.ReadFull(r, snap.Data); err != nil {
		return snap, ErrTruncated
	}
	return snap, nil
}
