package quetzal

import (
	"testing"

	"github.com/atebitftw/glulx/internal/engine"
)

func TestCodecReportsNotSupported(t *testing.T) {
	c := New()
	if err := c.Load(nil); err != ErrNotSupported {
		t.Fatalf("Load: expected ErrNotSupported, got %v", err)
	}
	if err := c.SaveState(""); err != ErrNotSupported {
		t.Fatalf("SaveState: expected ErrNotSupported, got %v", err)
	}
	if err := c.RestoreState(""); err != ErrNotSupported {
		t.Fatalf("RestoreState: expected ErrNotSupported, got %v", err)
	}
}

func TestCodecStepRunNotImplemented(t *testing.T) {
	c := New()
	if err := c.Step(); err != engine.ErrNotImplemented {
		t.Fatalf("Step: expected ErrNotImplemented, got %v", err)
	}
	if err := c.Run(); err != engine.ErrNotImplemented {
		t.Fatalf("Run: expected ErrNotImplemented, got %v", err)
	}
}
