package main

import (
	"testing"

	"github.com/atebitftw/glulx/internal/config"
)

func TestDetectEngineGlulxMagic(t *testing.T) {
	data := append([]byte("Glul"), make([]byte, 60)...)
	if got := detectEngine(data); got != config.EngineGlulx {
		t.Fatalf("detectEngine = %v, want glulx", got)
	}
}

func TestDetectEngineZMachineVersionByte(t *testing.T) {
	data := make([]byte, 64)
	data[0] = 5
	if got := detectEngine(data); got != config.EngineZMachine {
		t.Fatalf("detectEngine = %v, want zmachine", got)
	}
}

func TestDetectEngineFallsBackOnInconclusiveData(t *testing.T) {
	if got := detectEngine(nil); got != config.EngineGlulx {
		t.Fatalf("detectEngine = %v, want glulx fallback", got)
	}
}
