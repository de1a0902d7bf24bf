// Package glk implements the dispatch-boundary side of the interpreter's
// I/O system (spec.md §4.7): the narrow `dispatch(selector, args) -> result`
// contract the VM calls through, plus a couple of concrete providers that
// make the interpreter runnable end to end without pulling windowing or
// rendering concerns into internal/glulx itself.
package glk

import "github.com/atebitftw/glulx/internal/glulx"

// Numeric Glk selectors (spec.md §4.7, §6). Not every named selector is
// handled by the shipped providers; any selector a provider does not
// handle, named or not, dispatches to the unknown-selector fallback
// (returns 0, per spec.md §7).
const (
	SelGestalt = 0x0040

	SelWindowOpen  = 0x0062
	SelWindowClose = 0x0063
	SelWindowClear = 0x0069

	SelStreamOpenMemory = 0x0083
	SelStreamSetCurrent = 0x0087
	SelStreamGetCurrent = 0x0088

	SelPutChar       = 0x00a0
	SelPutCharStream = 0x00a1
	SelPutString     = 0x00a2
	SelSetStyle      = 0x00a6

	SelSelect            = 0x00d0
	SelSelectPoll        = 0x00d1
	SelRequestLineEvent  = 0x00d2
	SelCancelLineEvent   = 0x00d3
	SelRequestCharEvent  = 0x00d4
	SelCancelCharEvent   = 0x00d5

	SelPutCharUni   = 0x0120
	SelPutStringUni = 0x0121
)

// Gestalt selectors a provider answers through its Gestalt method,
// which the VM's gestalt opcode consults before its own table.
const (
	GestaltVersion      = 0
	GestaltCharInput    = 1
	GestaltLineInput    = 2
	GestaltCharOutput   = 3
	GestaltUnicode      = 7
)

// Glk event types, written into the event struct the VM passes to
// select/select_poll (spec.md §4.7 - "event structs are written to VM
// memory at a caller-supplied address").
const (
	EvtNone     = 0
	EvtCharInput = 2
	EvtLineInput = 3
)

// Provider is the contract internal/glulx.GlkProvider expects: every
// concrete provider in this package satisfies it directly, so a *VM can
// be constructed with glk.NewConsoleProvider(...) or glk.NewTUIProvider(...)
// with no adaptation layer in between.
type Provider = glulx.GlkProvider
