package glulx

import (
	"math/rand"
)

// Host is the narrow surface a Glk provider is allowed to touch: VM
// memory and the top of the value stack (spec.md §4.7 - "the provider
// is given access to VM memory via a read/write callback pair and to
// the VM stack via push/pop callbacks; this is the only VM state the
// provider may mutate").
type Host interface {
	ReadByte(addr uint32) (byte, error)
	WriteByte(addr uint32, v byte) error
	ReadShort(addr uint32) (uint16, error)
	WriteShort(addr uint32, v uint16) error
	ReadWord(addr uint32) (uint32, error)
	WriteWord(addr uint32, v uint32) error
	Push32(v uint32) error
	Pop32() (uint32, error)
}

// GlkProvider is the dispatch boundary's external collaborator
// contract (spec.md §4.7, §6). Implementations live outside this
// package (internal/glk) since rendering/windowing is out of scope
// here; the VM only ever calls through this interface.
type GlkProvider interface {
	Dispatch(selector uint32, args []uint32, host Host) (uint32, error)
	Gestalt(selector uint32, arg uint32) (uint32, bool)
}

// Accelerator holds the native-function substitution table (C6).
type Accelerator struct {
	funcs  map[uint32]int // address -> id (1..13)
	params [9]uint32
}

func newAccelerator() *Accelerator {
	return &Accelerator{funcs: make(map[uint32]int)}
}

// catchFrame records a catch opcode's resume point for a later throw.
type catchFrame struct {
	sp          uint32
	fp          uint32
	layoutDepth int
}

// SaveHandler is implemented by internal/gsave and wired in by the
// engine layer; the VM only ever calls through this narrow interface
// (spec.md §9 - save/restore format details don't belong in the
// interpreter core).
type SaveHandler interface {
	Save(vm *VM, rock uint32) error
	Restore(vm *VM, rock uint32) error
	SaveUndo(vm *VM) error
	RestoreUndo(vm *VM) error
}

// SetSaveHandler wires in the save/restore backend.
func (vm *VM) SetSaveHandler(h SaveHandler) { vm.saveHandler = h }

// IOSystemKind selects which of the three output routes is active.
type IOSystemKind uint32

const (
	IOSystemNull   IOSystemKind = 0
	IOSystemFilter IOSystemKind = 1
	IOSystemGlk    IOSystemKind = 2
)

// VM owns all mutable interpreter state explicitly (spec.md §9 design
// note: replace the teacher's process-wide singleton with a struct
// that is passed around and whose handles are lent out, never shared
// globally).
type VM struct {
	Mem   *Memory
	Stack *Stack
	PC    uint32

	header Header

	decodingTable uint32
	strCache      *stringTableCache

	accel *Accelerator

	ioSystem IOSystemKind
	ioRock   uint32
	filterFn uint32

	printStack        []printState
	printResumePC     uint32
	printResumeFP     uint32
	pendingFilterChar uint32

	glk GlkProvider

	rng     *rand.Rand
	rngSeed int64

	heap *heapAllocator

	protectStart uint32
	protectLen   uint32

	catchFrames []catchFrame

	saveHandler SaveHandler

	pristine []byte // snapshot of the initial image, for checksum + save delta

	running bool
	err     error
}

// NewVM constructs a VM from a raw game image (already extracted from
// any Blorb container by the loader) and a Glk dispatch provider.
func NewVM(image []byte, glk GlkProvider) (*VM, error) {
	h, err := parseHeader(image)
	if err != nil {
		return nil, err
	}

	full := make([]byte, h.EndMem)
	copy(full, image)

	pristine := make([]byte, len(full))
	copy(pristine, full)

	vm := &VM{
		Mem:      newMemory(full, h.RAMStart, h.ExtStart),
		Stack:    newStack(h.StackSize),
		PC:       0,
		header:   h,
		decodingTable: h.DecodingTable,
		accel:    newAccelerator(),
		glk:      glk,
		rng:      rand.New(rand.NewSource(1)),
		rngSeed:  1,
		pristine: pristine,
	}
	vm.heap = newHeapAllocator(vm.Mem)
	vm.strCache = newStringTableCache()

	return vm, nil
}

// Host interface forwarding.
func (vm *VM) ReadByte(a uint32) (byte, error)    { return vm.Mem.ReadByte(a) }
func (vm *VM) WriteByte(a uint32, v byte) error   { return vm.Mem.WriteByte(a, v) }
func (vm *VM) ReadShort(a uint32) (uint16, error) { return vm.Mem.ReadShort(a) }
func (vm *VM) WriteShort(a uint32, v uint16) error { return vm.Mem.WriteShort(a, v) }
func (vm *VM) ReadWord(a uint32) (uint32, error)  { return vm.Mem.ReadWord(a) }
func (vm *VM) WriteWord(a uint32, v uint32) error { return vm.Mem.WriteWord(a, v) }
func (vm *VM) Push32(v uint32) error              { return vm.Stack.Push32(v) }
func (vm *VM) Pop32() (uint32, error)             { return vm.Stack.Pop32() }

// Verify recomputes the checksum over the initial image and compares
// it to the stored value. Unlike the teacher's stubbed-to-success
// original, this is a real check (spec.md §9 open question, resolved
// in SPEC_FULL.md).
func (vm *VM) Verify() bool {
	return computeChecksum(vm.pristine) == vm.header.Checksum
}

// Start pushes the initial call stub and frame for StartFunc and
// begins execution at its entry point; the caller (Run/Step) drives
// the execute loop.
func (vm *VM) Start() error {
	// Outermost call stub: discard any return value, pc/fp as zero
	// since there is no caller to resume.
	if err := vm.Stack.PushCallStub(CallStub{DestType: DestDiscard}); err != nil {
		return err
	}
	return vm.enterFunction(vm.header.StartFunc, nil)
}

// The accessors below exist for internal/gsave, which implements
// SaveHandler outside this package and so cannot reach VM's unexported
// fields directly; they expose exactly the state spec.md §9's save
// format enumerates (magic/endmem are derivable from Header, so only
// the pieces gsave can't get elsewhere are surfaced here).

// Pristine returns the original game image exactly as loaded, before
// any writes - the base a save file's memory delta is computed against.
func (vm *VM) Pristine() []byte { return vm.pristine }

// Bytes exposes the live memory image, length equal to the current
// endmem (which setmemsize may have changed since load).
func (vm *VM) Bytes() []byte { return vm.Mem.Bytes() }

// SetMemory replaces the live memory image wholesale - used by restore,
// which reconstructs a full image from a save file's delta rather than
// writing through the normal bounds-checked byte/short/word calls.
func (vm *VM) SetMemory(data []byte) error {
	vm.Mem = newMemory(data, vm.header.RAMStart, vm.header.ExtStart)
	return nil
}

// Header returns the parsed 36-byte header (magic, endmem, checksum, ...).
func (vm *VM) Header() Header { return vm.header }

// IOSystemState reports the active I/O system and its rock value.
func (vm *VM) IOSystemState() (IOSystemKind, uint32) { return vm.ioSystem, vm.ioRock }

// SetIOSystemState restores a previously-saved I/O system selection.
func (vm *VM) SetIOSystemState(kind IOSystemKind, rock uint32) {
	vm.ioSystem = kind
	vm.ioRock = rock
}

// RNGSeed returns the seed last passed to setrandom (or the implicit 1
// from construction / restart). math/rand's Rand does not expose its
// internal generator state for serialization, so a save file persists
// the seed rather than bit-identical continuation - documented as a
// deliberate simplification, not a bug, in DESIGN.md.
func (vm *VM) RNGSeed() int64 { return vm.rngSeed }

// SetRNGSeed restores a saved seed, re-seeding the generator from it.
func (vm *VM) SetRNGSeed(seed int64) {
	vm.rngSeed = seed
	vm.rng.Seed(seed)
}
