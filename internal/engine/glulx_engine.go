package engine

import (
	"github.com/atebitftw/glulx/internal/blorb"
	"github.com/atebitftw/glulx/internal/glk"
	"github.com/atebitftw/glulx/internal/glulx"
	"github.com/atebitftw/glulx/internal/gsave"
)

// defaultSavePath is where the in-fiction save/restore/saveundo/
// restoreundo opcodes persist state absent any fileref prompting
// through Glk (out of scope - see gsave.Handler's doc).
const defaultSavePath = "story.sav"

// GlulxEngine wires the loader, VM, and save backend together behind
// the Engine interface cmd/glulx drives.
type GlulxEngine struct {
	vm          *glulx.VM
	provider    glulx.GlkProvider
	saveHandler *gsave.Handler
}

// NewGlulxEngine constructs an engine that will dispatch Glk calls to
// provider (typically glk.NewConsoleProvider() or glk.NewTUIProvider())
// and retain at most maxUndo saveundo snapshots (0 = unbounded).
func NewGlulxEngine(provider glk.Provider, maxUndo int) *GlulxEngine {
	return &GlulxEngine{
		provider:    provider,
		saveHandler: gsave.NewHandler(defaultSavePath, maxUndo),
	}
}

func (e *GlulxEngine) Load(image []byte) error {
	raw, _, err := blorb.Load(image)
	if err != nil {
		return err
	}
	vm, err := glulx.NewVM(raw, e.provider)
	if err != nil {
		return err
	}
	vm.SetSaveHandler(e.saveHandler)
	e.vm = vm
	return vm.Start()
}

func (e *GlulxEngine) Step() error { return e.vm.Step() }
func (e *GlulxEngine) Run() error  { return e.vm.Run() }

// SaveState and RestoreState serve the CLI's --save-on-exit/--restore
// flags, distinct from the in-fiction save opcodes: they redirect the
// same handler at an explicit path for one call, leaving its undo
// history (and default path) untouched for the running story.
func (e *GlulxEngine) SaveState(path string) error {
	prev := e.saveHandler.Path
	e.saveHandler.Path = path
	defer func() { e.saveHandler.Path = prev }()
	return e.saveHandler.Save(e.vm, 0)
}

func (e *GlulxEngine) RestoreState(path string) error {
	prev := e.saveHandler.Path
	e.saveHandler.Path = path
	defer func() { e.saveHandler.Path = prev }()
	return e.saveHandler.Restore(e.vm, 0)
}

// VM exposes the underlying *glulx.VM for callers that need
// register/stack introspection beyond the Engine interface.
func (e *GlulxEngine) VM() *glulx.VM { return e.vm }
