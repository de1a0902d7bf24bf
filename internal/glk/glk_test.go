package glk

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// fakeHost is the minimal glulx.Host a provider needs to read/write a
// string out of VM memory, without pulling in a real *glulx.VM.
type fakeHost struct {
	mem []byte
}

func newFakeHost(data []byte) *fakeHost {
	h := &fakeHost{mem: make([]byte, 4096)}
	copy(h.mem, data)
	return h
}

func (h *fakeHost) ReadByte(addr uint32) (byte, error)  { return h.mem[addr], nil }
func (h *fakeHost) WriteByte(addr uint32, v byte) error { h.mem[addr] = v; return nil }
func (h *fakeHost) ReadShort(addr uint32) (uint16, error) {
	return uint16(h.mem[addr])<<8 | uint16(h.mem[addr+1]), nil
}
func (h *fakeHost) WriteShort(addr uint32, v uint16) error {
	h.mem[addr] = byte(v >> 8)
	h.mem[addr+1] = byte(v)
	return nil
}
func (h *fakeHost) ReadWord(addr uint32) (uint32, error) {
	return uint32(h.mem[addr])<<24 | uint32(h.mem[addr+1])<<16 | uint32(h.mem[addr+2])<<8 | uint32(h.mem[addr+3]), nil
}
func (h *fakeHost) WriteWord(addr uint32, v uint32) error {
	h.mem[addr] = byte(v >> 24)
	h.mem[addr+1] = byte(v >> 16)
	h.mem[addr+2] = byte(v >> 8)
	h.mem[addr+3] = byte(v)
	return nil
}
func (h *fakeHost) Push32(v uint32) error  { return nil }
func (h *fakeHost) Pop32() (uint32, error) { return 0, nil }

func TestConsoleProviderGestaltUnicode(t *testing.T) {
	c := NewConsoleProvider()
	defer c.Close()

	v, ok := c.Gestalt(GestaltUnicode, 0)
	assert(t, ok, "unicode gestalt should be answered")
	assert(t, v == 1, "expected unicode support, got %d", v)

	_, ok = c.Gestalt(0xdead, 0)
	assert(t, !ok, "unknown selector should report unanswered")
}

func TestConsoleProviderPutStringReadsUntilNul(t *testing.T) {
	c := NewConsoleProvider()
	defer c.Close()

	h := newFakeHost([]byte("hello\x00garbage"))
	_, err := c.Dispatch(SelPutString, []uint32{0}, h)
	assert(t, err == nil, "put_string dispatch failed: %v", err)
}

func TestConsoleProviderPutStringUniWordAligned(t *testing.T) {
	c := NewConsoleProvider()
	defer c.Close()

	h := newFakeHost(nil)
	word := []uint32{'h', 'i', 0}
	for i, w := range word {
		_ = h.WriteWord(uint32(i*4), w)
	}
	_, err := c.Dispatch(SelPutStringUni, []uint32{0}, h)
	assert(t, err == nil, "put_string_uni dispatch failed: %v", err)
}

func TestConsoleProviderSelectPollReturnsNoneWhenIdle(t *testing.T) {
	c := NewConsoleProvider()
	defer c.Close()

	h := newFakeHost(nil)
	const eventAddr = 100
	_, err := c.Dispatch(SelSelectPoll, []uint32{eventAddr}, h)
	assert(t, err == nil, "select_poll failed: %v", err)

	kind, _ := h.ReadWord(eventAddr)
	assert(t, kind == EvtNone, "expected evtype_None, got %d", kind)
}

func TestConsoleProviderRequestLineEventWritesBufferOnSelect(t *testing.T) {
	c := NewConsoleProvider()
	defer c.Close()

	// Feed a synthetic line event directly (bypassing real stdin and
	// request_line_event) to exercise select's write-back path.
	const bufAddr = 200
	const eventAddr = 300
	h := newFakeHost(nil)

	c.events <- glkEvent{kind: EvtLineInput, win: 1, val1: 3, buf: bufAddr, line: []byte("hey")}
	_, err := c.Dispatch(SelSelect, []uint32{eventAddr}, h)
	assert(t, err == nil, "select failed: %v", err)

	for i, want := range []byte("hey") {
		got, _ := h.ReadByte(uint32(bufAddr + i))
		assert(t, got == want, "buffer byte %d: got %q want %q", i, got, want)
	}
	kind, _ := h.ReadWord(eventAddr)
	assert(t, kind == EvtLineInput, "expected evtype_LineInput, got %d", kind)
	val1, _ := h.ReadWord(eventAddr + 8)
	assert(t, val1 == 3, "expected val1=3, got %d", val1)
}

func TestGlkSelectorsAreDistinct(t *testing.T) {
	seen := map[uint32]string{
		SelGestalt:          "gestalt",
		SelPutChar:          "put_char",
		SelPutCharUni:       "put_char_uni",
		SelPutString:        "put_string",
		SelRequestCharEvent: "request_char_event",
		SelRequestLineEvent: "request_line_event",
		SelSelect:           "select",
		SelSelectPoll:       "select_poll",
	}
	assert(t, len(seen) == 8, "selector constants collided, only %d distinct values", len(seen))
}
