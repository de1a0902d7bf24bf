// Package quetzal is the other sibling save-codec facade spec.md §1
// names as an out-of-scope external collaborator: the chunk IDs of the
// Quetzal save format plus enough of internal/engine.Engine's contract
// to be selected by file magic, with no real encoder/decoder behind it.
package quetzal

import (
	"errors"

	"github.com/atebitftw/glulx/internal/engine"
)

// Quetzal chunk IDs, as defined by the Quetzal standard for Z-Machine
// save files (an IFF FORM of type IFZS).
const (
	FormType = "IFZS"

	ChunkIFhd = "IFhd" // game identity: release, serial, checksum, PC
	ChunkCMem = "CMem" // compressed memory (XOR + run-length, vs. story file)
	ChunkUMem = "UMem" // uncompressed memory
	ChunkStks = "Stks" // call stack
	ChunkAnno = "ANNO" // free-form annotation
	ChunkAUTH = "AUTH" // author name
)

// ErrNotSupported marks every operation this facade deliberately
// doesn't implement - a real Quetzal encoder/decoder is out of scope
// per spec.md §1.
var ErrNotSupported = errors.New("quetzal: codec not implemented")

// Codec is a non-functional engine.Engine honoring the shared contract
// so cmd/glulx's dispatch-by-magic logic can name it alongside glulx
// and zmachine without a type switch.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) Load(image []byte) error        { return ErrNotSupported }
func (c *Codec) Step() error                    { return engine.ErrNotImplemented }
func (c *Codec) Run() error                     { return engine.ErrNotImplemented }
func (c *Codec) SaveState(path string) error    { return ErrNotSupported }
func (c *Codec) RestoreState(path string) error { return ErrNotSupported }

var _ engine.Engine = (*Codec)(nil)
