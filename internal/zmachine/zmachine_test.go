package zmachine

import (
	"encoding/binary"
	"testing"

	"github.com/atebitftw/glulx/internal/engine"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// minimalStory builds a header-only v3 story file with a correct
// checksum over a small body, enough to exercise Load/Header without
// a real compiled game.
func minimalStory(t *testing.T) []byte {
	t.Helper()
	const size = 128
	data := make([]byte, size)
	data[0] = 3 // version
	binary.BigEndian.PutUint16(data[2:4], 7)     // release
	binary.BigEndian.PutUint16(data[4:6], 0x1000) // high mem base
	binary.BigEndian.PutUint16(data[6:8], 0x1000) // initial pc
	copy(data[18:24], []byte("123456"))           // serial

	fileLenWords := uint16(size / 2) // v3 factor is 2
	binary.BigEndian.PutUint16(data[26:28], fileLenWords)

	var sum uint16
	for i := headerSize; i < size; i++ {
		sum += uint16(data[i])
	}
	binary.BigEndian.PutUint16(data[28:30], sum)

	return data
}

func TestLoadParsesHeader(t *testing.T) {
	e := New()
	assert(t, e.Load(minimalStory(t)) == nil, "load failed")

	h, ok := e.Header()
	assert(t, ok, "expected checksum to verify")
	assert(t, h.Version == 3, "version = %d", h.Version)
	assert(t, h.Release == 7, "release = %d", h.Release)
	assert(t, h.Serial == "123456", "serial = %q", h.Serial)
}

func TestLoadRejectsTooShort(t *testing.T) {
	e := New()
	assert(t, e.Load([]byte{1, 2, 3}) == ErrTooShort, "expected ErrTooShort")
}

func TestLoadRejectsBadVersion(t *testing.T) {
	data := minimalStory(t)
	data[0] = 99
	e := New()
	assert(t, e.Load(data) == ErrUnsupportedVersion, "expected ErrUnsupportedVersion")
}

func TestChecksumMismatchReported(t *testing.T) {
	data := minimalStory(t)
	data[100] ^= 0xFF // corrupt a body byte after the header
	e := New()
	assert(t, e.Load(data) == nil, "load should still succeed on bad checksum")
	_, ok := e.Header()
	assert(t, !ok, "expected checksum mismatch to be reported")
}

func TestStepAndRunNotImplemented(t *testing.T) {
	e := New()
	assert(t, e.Load(minimalStory(t)) == nil, "load failed")
	assert(t, e.Step() == engine.ErrNotImplemented, "expected ErrNotImplemented from Step")
	assert(t, e.Run() == engine.ErrNotImplemented, "expected ErrNotImplemented from Run")
}
