package config

import (
	"os"
	"path/filepath"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert(t, Default().Validate() == nil, "default config should validate")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert(t, err == nil, "expected no error for a missing explicit path, got %v", err)
	assert(t, cfg == Default(), "expected defaults when file is absent")
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glulxrc.yaml")
	contents := "engine: zmachine\nprovider: tui\ntrace_on_boot: true\nmax_undo: 3\n"
	assert(t, os.WriteFile(path, []byte(contents), 0o644) == nil, "write fixture failed")

	cfg, err := Load(path)
	assert(t, err == nil, "Load failed: %v", err)
	assert(t, cfg.Engine == EngineZMachine, "engine = %v", cfg.Engine)
	assert(t, cfg.Provider == ProviderTUI, "provider = %v", cfg.Provider)
	assert(t, cfg.TraceOnBoot, "expected trace_on_boot true")
	assert(t, cfg.MaxUndo == 3, "max_undo = %d", cfg.MaxUndo)
	assert(t, cfg.Validate() == nil, "expected parsed config to validate")
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.Engine = "nonsense"
	assert(t, cfg.Validate() != nil, "expected error for unknown engine")
}

func TestValidateRejectsNegativeMaxUndo(t *testing.T) {
	cfg := Default()
	cfg.MaxUndo = -1
	assert(t, cfg.Validate() != nil, "expected error for negative max_undo")
}
