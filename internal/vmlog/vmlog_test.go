package vmlog

import "testing"

func TestNewNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Trace(10, 0x20, []uint32{1, 2})
	l.Fault("bad opcode", 10, 0x20, []uint32{1, 2}, errTest)
}

func TestEachLoggerGetsDistinctVMID(t *testing.T) {
	a := NewNop()
	b := NewNop()
	if a.VMID() == b.VMID() {
		t.Fatalf("expected distinct vm_id per logger, got the same uuid twice")
	}
}

var errTest = testError("boom")

type testError string

func (e testError) Error() string { return string(e) }
