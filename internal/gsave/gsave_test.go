package gsave

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/atebitftw/glulx/internal/glulx"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// minimalImage builds a 256-byte image with a valid 36-byte header and
// room for a small RAM region, enough to exercise save/restore without
// needing a real compiled game.
func minimalImage() []byte {
	img := make([]byte, 256)
	binary.BigEndian.PutUint32(img[0:4], 0x476C756C) // 'Glul'
	binary.BigEndian.PutUint32(img[4:8], 0x00030001)  // version 3.1
	binary.BigEndian.PutUint32(img[8:12], 256)        // ramstart
	binary.BigEndian.PutUint32(img[12:16], 512)       // extstart
	binary.BigEndian.PutUint32(img[16:20], 768)       // endmem
	binary.BigEndian.PutUint32(img[20:24], 256)       // stacksize
	binary.BigEndian.PutUint32(img[24:28], 256)       // startfunc (unused by this test)
	binary.BigEndian.PutUint32(img[28:32], 0)         // decoding table
	return img
}

func newTestVM(t *testing.T) *glulx.VM {
	t.Helper()
	vm, err := glulx.NewVM(minimalImage(), nil)
	assert(t, err == nil, "NewVM failed: %v", err)
	return vm
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	vm := newTestVM(t)

	assert(t, vm.WriteByte(300, 0x42) == nil, "write to ram failed")
	assert(t, vm.Push32(123) == nil, "push failed")
	vm.PC = 42
	vm.SetIOSystemState(glulx.IOSystemFilter, 7)
	vm.SetRNGSeed(99)

	path := filepath.Join(t.TempDir(), "save.glksave")
	h := NewHandler(path, 0)
	assert(t, h.Save(vm, 0) == nil, "save failed")

	vm2 := newTestVM(t)
	assert(t, h.Restore(vm2, 0) == nil, "restore failed")

	assert(t, vm2.PC == 42, "pc not restored, got %d", vm2.PC)

	b, err := vm2.ReadByte(300)
	assert(t, err == nil, "readbyte after restore failed: %v", err)
	assert(t, b == 0x42, "ram byte not restored, got %#x", b)

	v, err := vm2.Pop32()
	assert(t, err == nil, "pop after restore failed: %v", err)
	assert(t, v == 123, "stack value not restored, got %d", v)

	kind, rock := vm2.IOSystemState()
	assert(t, kind == glulx.IOSystemFilter, "io system not restored, got %d", kind)
	assert(t, rock == 7, "io rock not restored, got %d", rock)

	assert(t, vm2.RNGSeed() == 99, "rng seed not restored, got %d", vm2.RNGSeed())
}

func TestSaveUndoRestoreUndo(t *testing.T) {
	vm := newTestVM(t)
	h := NewHandler("", 2)

	vm.PC = 1
	assert(t, h.SaveUndo(vm) == nil, "saveundo 1 failed")
	vm.PC = 2
	assert(t, h.SaveUndo(vm) == nil, "saveundo 2 failed")
	vm.PC = 3
	assert(t, h.SaveUndo(vm) == nil, "saveundo 3 failed")
	assert(t, len(h.undo) == 2, "maxUndo should cap history at 2, got %d", len(h.undo))

	vm.PC = 999
	assert(t, h.RestoreUndo(vm) == nil, "restoreundo failed")
	assert(t, vm.PC == 3, "expected most recent undo snapshot (pc=3), got %d", vm.PC)
}

func TestRestoreUndoWithNoHistoryErrors(t *testing.T) {
	vm := newTestVM(t)
	h := NewHandler("", 0)
	assert(t, h.RestoreUndo(vm) == ErrNoUndo, "expected ErrNoUndo on empty history")
}
