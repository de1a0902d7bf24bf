// Package engine defines the narrow contract cmd/glulx dispatches
// through so it can select the Glulx or Z-Machine interpreter by file
// magic without hard-coding either one (SPEC_FULL.md §10 - sibling
// engines honor the same interface rather than being opcode-complete).
package engine

import "errors"

// ErrNotImplemented is returned by Step/Run on engines that only
// validate their header and aren't a full interpreter (internal/zmachine).
var ErrNotImplemented = errors.New("engine: not implemented")

// Engine is the lifecycle every interpreter in this module exposes.
type Engine interface {
	// Load parses image (already extracted from any container) and
	// prepares the engine to execute from its entry point.
	Load(image []byte) error

	// Step executes a single instruction.
	Step() error

	// Run executes until a fatal error or a normal stop condition
	// (quit, program end).
	Run() error

	// SaveState persists the engine's current state to path.
	SaveState(path string) error

	// RestoreState replaces the engine's current state from path.
	RestoreState(path string) error
}
