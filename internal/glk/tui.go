package glk

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/atebitftw/glulx/internal/glulx"
)

var (
	tuiTextStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	tuiPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// tuiMsg types the program's Update loop reacts to; everything the
// provider needs to tell the screen about arrives as one of these,
// keeping Dispatch (called on the VM's goroutine) from ever touching
// bubbletea state directly.
type tuiAppendMsg struct{ text string }
type tuiRequestCharMsg struct{}
type tuiRequestLineMsg struct{ maxLen uint32 }
type tuiQuitMsg struct{}

type tuiModel struct {
	lines       []string
	input       textinput.Model
	width, height int

	waitingChar bool
	waitingLine bool
	maxLen      uint32

	charResult chan rune
	lineResult chan string
}

func newTUIModel() *tuiModel {
	ti := textinput.New()
	ti.Placeholder = ""
	ti.Prompt = "> "
	ti.CharLimit = 0
	return &tuiModel{
		input:  ti,
		width:  80,
		height: 24,
	}
}

func (m *tuiModel) Init() tea.Cmd { return textinput.Blink }

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = m.width - 4
		return m, nil

	case tuiAppendMsg:
		m.lines = append(m.lines, strings.Split(msg.text, "\n")...)
		return m, nil

	case tuiRequestCharMsg:
		m.waitingChar = true
		m.input.Blur()
		return m, nil

	case tuiRequestLineMsg:
		m.waitingLine = true
		m.maxLen = msg.maxLen
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case tuiQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.waitingChar {
			m.waitingChar = false
			r := keyMsgToRune(msg)
			if m.charResult != nil {
				m.charResult <- r
			}
			return m, nil
		}
		if m.waitingLine {
			if msg.Type == tea.KeyEnter {
				v := m.input.Value()
				if m.maxLen > 0 && uint32(len(v)) > m.maxLen {
					v = v[:m.maxLen]
				}
				m.waitingLine = false
				m.lines = append(m.lines, m.input.Prompt+v)
				m.input.SetValue("")
				m.input.Blur()
				if m.lineResult != nil {
					m.lineResult <- v
				}
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *tuiModel) View() string {
	body := strings.Join(tailLines(m.lines, m.height-6), "\n")
	box := tuiTextStyle.Width(m.width - 4).Height(m.height - 4).Render(body)
	if m.waitingLine {
		return fmt.Sprintf("%s\n%s", box, m.input.View())
	}
	if m.waitingChar {
		return fmt.Sprintf("%s\n%s", box, tuiPromptStyle.Render("[press any key]"))
	}
	return box
}

func tailLines(lines []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func keyMsgToRune(msg tea.KeyMsg) rune {
	if msg.Type == tea.KeyEnter {
		return '\n'
	}
	if len(msg.Runes) > 0 {
		return msg.Runes[0]
	}
	return 0
}

// TUIProvider is the interactive Glk backend: a bubbletea program owns
// the terminal, and Dispatch (called synchronously by the VM) talks to
// it over channels so the VM never blocks the render loop and the
// render loop never touches VM memory directly (spec.md §4.7's "the
// provider is given access to VM memory via read/write callbacks").
type TUIProvider struct {
	program *tea.Program

	charResult chan rune
	lineResult chan string

	pendingLineBuf uint32
	pendingLineUni bool
}

// NewTUIProvider starts the bubbletea program on its own goroutine.
func NewTUIProvider() *TUIProvider {
	m := newTUIModel()
	m.charResult = make(chan rune, 1)
	m.lineResult = make(chan string, 1)

	p := tea.NewProgram(m, tea.WithAltScreen())
	t := &TUIProvider{
		program:    p,
		charResult: m.charResult,
		lineResult: m.lineResult,
	}
	go func() {
		_, _ = p.Run()
	}()
	return t
}

func (t *TUIProvider) Close() {
	t.program.Send(tuiQuitMsg{})
}

func (t *TUIProvider) Gestalt(selector uint32, arg uint32) (uint32, bool) {
	switch selector {
	case GestaltVersion:
		return 0x00000705, true
	case GestaltCharInput, GestaltLineInput, GestaltCharOutput, GestaltUnicode:
		return 1, true
	}
	return 0, false
}

func (t *TUIProvider) Dispatch(selector uint32, args []uint32, host glulx.Host) (uint32, error) {
	arg := func(i int) uint32 {
		if i < len(args) {
			return args[i]
		}
		return 0
	}

	switch selector {
	case SelGestalt:
		v, _ := t.Gestalt(arg(0), arg(1))
		return v, nil

	case SelWindowOpen:
		return 1, nil
	case SelWindowClose, SelWindowClear, SelSetStyle:
		return 0, nil

	case SelPutChar, SelPutCharUni:
		t.program.Send(tuiAppendMsg{text: string(rune(arg(0)))})
		return 0, nil

	case SelPutString:
		return 0, t.putString(arg(0), host, false)
	case SelPutStringUni:
		return 0, t.putString(arg(0), host, true)

	case SelRequestCharEvent:
		t.program.Send(tuiRequestCharMsg{})
		return 0, nil
	case SelRequestLineEvent:
		t.pendingLineBuf = arg(1)
		t.pendingLineUni = false
		t.program.Send(tuiRequestLineMsg{maxLen: arg(2)})
		return 0, nil
	case SelCancelCharEvent, SelCancelLineEvent:
		return 0, nil

	case SelSelect:
		return 0, t.waitAndWriteEvent(arg(0), host, true)
	case SelSelectPoll:
		return 0, t.waitAndWriteEvent(arg(0), host, false)
	}
	return 0, nil
}

func (t *TUIProvider) putString(addr uint32, host glulx.Host, uni bool) error {
	var sb strings.Builder
	for {
		if uni {
			w, err := host.ReadWord(addr)
			if err != nil {
				return err
			}
			if w == 0 {
				break
			}
			sb.WriteRune(rune(w))
			addr += 4
		} else {
			b, err := host.ReadByte(addr)
			if err != nil {
				return err
			}
			if b == 0 {
				break
			}
			sb.WriteByte(b)
			addr++
		}
	}
	t.program.Send(tuiAppendMsg{text: sb.String()})
	return nil
}

// waitAndWriteEvent blocks (when block is true) for whichever of the
// two result channels fires next and writes the Glk event struct; in
// poll mode it returns evtype_None immediately when neither is ready.
func (t *TUIProvider) waitAndWriteEvent(eventAddr uint32, host glulx.Host, block bool) error {
	if !block {
		select {
		case r := <-t.charResult:
			return t.writeEvent(eventAddr, host, EvtCharInput, uint32(r), "")
		case v := <-t.lineResult:
			return t.writeEvent(eventAddr, host, EvtLineInput, uint32(len(v)), v)
		default:
			return t.writeEvent(eventAddr, host, EvtNone, 0, "")
		}
	}
	select {
	case r := <-t.charResult:
		return t.writeEvent(eventAddr, host, EvtCharInput, uint32(r), "")
	case v := <-t.lineResult:
		return t.writeEvent(eventAddr, host, EvtLineInput, uint32(len(v)), v)
	}
}

// writeEvent packs the (type, win, val1, val2) event struct into VM
// memory, and for line input additionally writes the received bytes
// back into the buffer address request_line_event was given.
func (t *TUIProvider) writeEvent(eventAddr uint32, host glulx.Host, kind, val1 uint32, line string) error {
	if kind == EvtLineInput && t.pendingLineBuf != 0 {
		for i := 0; i < len(line); i++ {
			if t.pendingLineUni {
				if err := host.WriteWord(t.pendingLineBuf+uint32(i)*4, uint32(line[i])); err != nil {
					return err
				}
			} else if err := host.WriteByte(t.pendingLineBuf+uint32(i), line[i]); err != nil {
				return err
			}
		}
		t.pendingLineBuf = 0
	}
	if eventAddr == 0 {
		return nil
	}
	if err := host.WriteWord(eventAddr, kind); err != nil {
		return err
	}
	if err := host.WriteWord(eventAddr+4, 1); err != nil {
		return err
	}
	if err := host.WriteWord(eventAddr+8, val1); err != nil {
		return err
	}
	return host.WriteWord(eventAddr+12, 0)
}
