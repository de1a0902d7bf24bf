package glk

import (
	"bufio"
	"os"
	"sync"
	"sync/atomic"

	"github.com/atebitftw/glulx/internal/glulx"
)

// charRequest is what ConsoleProvider queues onto its reader goroutine;
// it carries only the requesting window id and whether Unicode input
// was asked for, since the goroutine's only job is the blocking read
// itself.
type charRequest struct {
	win uint32
	uni bool
}

// lineRequest is the line-input analogue; maxLen bounds how many bytes
// the eventual glk_select response will report reading, buf is where
// those bytes get written back into VM memory once the line arrives.
type lineRequest struct {
	win    uint32
	buf    uint32
	maxLen uint32
	uni    bool
}

type glkEvent struct {
	kind   uint32
	win    uint32
	val1   uint32
	val2   uint32
	buf    uint32
	line   []byte
	isUni  bool
}

// ConsoleProvider is a headless Glk implementation: output goes straight
// to os.Stdout through a buffered writer, input comes from a background
// reader goroutine fed by a bounded request queue, modeled directly on
// the teacher's consoleIO hardware device (a dedicated goroutine
// draining a request channel of 8 entries: request_*_event returns
// without waiting for input and blocks only while that channel is full;
// glk_select waits for an event, glk_select_poll does not).
type ConsoleProvider struct {
	mu  sync.Mutex
	out *bufio.Writer
	in  *bufio.Reader

	charReqs chan charRequest
	lineReqs chan lineRequest
	events   chan glkEvent

	closed atomic.Bool
}

// NewConsoleProvider wires stdin/stdout and starts the reader goroutine.
func NewConsoleProvider() *ConsoleProvider {
	c := &ConsoleProvider{
		out:      bufio.NewWriter(os.Stdout),
		in:       bufio.NewReader(os.Stdin),
		charReqs: make(chan charRequest, 8),
		lineReqs: make(chan lineRequest, 8),
		events:   make(chan glkEvent, 8),
	}
	go c.pump()
	return c
}

// pump is the sole goroutine allowed to touch stdin, mirroring the
// teacher's "only one routine reads the hardware" invariant.
func (c *ConsoleProvider) pump() {
	for {
		select {
		case req, ok := <-c.charReqs:
			if !ok {
				return
			}
			r, _, err := c.in.ReadRune()
			if err != nil {
				r = -1
			}
			c.events <- glkEvent{kind: EvtCharInput, win: req.win, val1: uint32(int32(r))}
		case req, ok := <-c.lineReqs:
			if !ok {
				return
			}
			line, _ := c.in.ReadString('\n')
			b := []byte(line)
			for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
				b = b[:len(b)-1]
			}
			if uint32(len(b)) > req.maxLen {
				b = b[:req.maxLen]
			}
			c.events <- glkEvent{kind: EvtLineInput, win: req.win, val1: uint32(len(b)), buf: req.buf, line: b, isUni: req.uni}
		}
	}
}

// Close stops the reader goroutine; pending reads on stdin are left to
// finish naturally since os.Stdin offers no portable cancellation.
func (c *ConsoleProvider) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.charReqs)
		close(c.lineReqs)
	}
}

func (c *ConsoleProvider) Gestalt(selector uint32, arg uint32) (uint32, bool) {
	switch selector {
	case GestaltVersion:
		return 0x00000705, true
	case GestaltCharInput, GestaltLineInput, GestaltCharOutput:
		return 1, true
	case GestaltUnicode:
		return 1, true
	}
	return 0, false
}

func (c *ConsoleProvider) Dispatch(selector uint32, args []uint32, host glulx.Host) (uint32, error) {
	arg := func(i int) uint32 {
		if i < len(args) {
			return args[i]
		}
		return 0
	}

	switch selector {
	case SelGestalt:
		v, _ := c.Gestalt(arg(0), arg(1))
		return v, nil

	case SelWindowOpen:
		return 1, nil // single synthetic window id; headless output has no layout
	case SelWindowClose, SelWindowClear, SelSetStyle:
		return 0, nil

	case SelPutChar:
		c.writeRune(rune(arg(0)))
		return 0, nil
	case SelPutCharUni:
		c.writeRune(rune(arg(0)))
		return 0, nil

	case SelPutString:
		return 0, c.putString(arg(0), host, false)
	case SelPutStringUni:
		return 0, c.putString(arg(0), host, true)

	case SelRequestCharEvent:
		c.charReqs <- charRequest{win: arg(0)}
		return 0, nil
	case SelRequestLineEvent:
		c.lineReqs <- lineRequest{win: arg(0), buf: arg(1), maxLen: arg(2)}
		return 0, nil
	case SelCancelCharEvent, SelCancelLineEvent:
		return 0, nil

	case SelSelect:
		ev := <-c.events
		return 0, c.writeEvent(ev, arg(0), host)

	case SelSelectPoll:
		select {
		case ev := <-c.events:
			return 0, c.writeEvent(ev, arg(0), host)
		default:
			return 0, c.writeEvent(glkEvent{kind: EvtNone}, arg(0), host)
		}
	}
	return 0, nil
}

func (c *ConsoleProvider) writeRune(r rune) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.WriteRune(r)
	c.out.Flush()
}

// putString reads a Latin-1, nul-terminated run of bytes (or, for the
// unicode selector, 4-byte words) starting at addr and writes it out.
func (c *ConsoleProvider) putString(addr uint32, host glulx.Host, uni bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if uni {
			w, err := host.ReadWord(addr)
			if err != nil {
				return err
			}
			if w == 0 {
				break
			}
			c.out.WriteRune(rune(w))
			addr += 4
		} else {
			b, err := host.ReadByte(addr)
			if err != nil {
				return err
			}
			if b == 0 {
				break
			}
			c.out.WriteByte(b)
			addr++
		}
	}
	return c.out.Flush()
}

// writeEvent packs the 4-word Glk event struct (type, win, val1, val2)
// into VM memory at eventAddr, the layout spec.md §4.7 describes.
func (c *ConsoleProvider) writeEvent(ev glkEvent, eventAddr uint32, host glulx.Host) error {
	if ev.kind == EvtLineInput && ev.buf != 0 {
		for i, b := range ev.line {
			if ev.isUni {
				if err := host.WriteWord(ev.buf+uint32(i)*4, uint32(b)); err != nil {
					return err
				}
			} else if err := host.WriteByte(ev.buf+uint32(i), b); err != nil {
				return err
			}
		}
	}
	if eventAddr == 0 {
		return nil
	}
	if err := host.WriteWord(eventAddr, ev.kind); err != nil {
		return err
	}
	if err := host.WriteWord(eventAddr+4, ev.win); err != nil {
		return err
	}
	if err := host.WriteWord(eventAddr+8, ev.val1); err != nil {
		return err
	}
	return host.WriteWord(eventAddr+12, ev.val2)
}
