// Package board is the patient-facing screen: an emergency call, a lamp
// switch and preset messages to caregivers, plus the incoming conversation.
package board

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/medboard/medboard/internal/bus"
	"github.com/medboard/medboard/internal/channels"
	"github.com/medboard/medboard/internal/outlet"
)

// Messenger is the messaging gateway as seen by the board.
type Messenger interface {
	SendDirect(name, text string) *bus.Delivery
	BroadcastEmergency() *bus.Delivery
	SetMessageReceivedCallback(fn channels.MessageHandler)
}

// Outlets is the outlet client as seen by the board.
type Outlets interface {
	ToggleOutput(ctx context.Context, deviceID int, desired *outlet.State) (outlet.State, error)
	StartBlink(deviceID int)
	StopBlink()
	Blinking() bool
}

// Options configures the board content.
type Options struct {
	Contacts        []string
	Messages        []string
	EmergencyOutlet int
	LampOutlet      int
	// Notice is shown as an error in the status line at startup, e.g. when
	// messaging could not be connected.
	Notice string
}

type screen int

const (
	screenHome screen = iota
	screenContacts
	screenMessages
)

const (
	actionEmergency = iota
	actionLamp
	actionMessage
)

// Messages flowing back into Update.
type receivedMsg bus.InboundMessage

type sentMsg struct {
	to   string
	text string
	err  error
}

type emergencyMsg struct {
	gen      int64
	started  bool
	blinking bool
	err      error
}

type lampMsg struct {
	state outlet.State
	err   error
}

type tickMsg time.Time

type convLine struct {
	at       time.Time
	who      string
	text     string
	incoming bool
}

// emergencyGate orders the outlet side of emergency start/stop commands,
// which run on separate goroutines. A command whose generation is stale by
// the time it runs does not touch the outlet, so the latest press wins.
type emergencyGate struct {
	mu  sync.Mutex
	gen atomic.Int64
}

// maxConversation bounds the in-memory conversation log.
const maxConversation = 200

type model struct {
	ctx       context.Context
	messenger Messenger
	outlets   Outlets
	opts      Options
	keys      keyMap
	help      help.Model

	screen    screen
	cursor    int
	contact   string
	emergency bool
	gate      *emergencyGate

	conversation []convLine
	status       string
	statusErr    bool
	now          time.Time

	width  int
	height int
}

func newModel(ctx context.Context, messenger Messenger, outlets Outlets, opts Options) model {
	m := model{
		ctx:       ctx,
		messenger: messenger,
		outlets:   outlets,
		opts:      opts,
		keys:      defaultKeyMap(),
		help:      help.New(),
		gate:      &emergencyGate{},
		status:    "Ready",
		now:       time.Now(),
	}
	if opts.Notice != "" {
		m.setStatus(opts.Notice, true)
	}
	return m
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case receivedMsg:
		m.appendLine(convLine{at: msg.Timestamp, who: msg.SenderName, text: msg.Content, incoming: true})
		m.setStatus(fmt.Sprintf("New message from %s", msg.SenderName), false)
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Message to %s failed: %v", msg.to, msg.err), true)
		} else {
			m.setStatus(fmt.Sprintf("Message sent to %s", msg.to), false)
		}
		return m, nil

	case emergencyMsg:
		stale := msg.gen != m.gate.gen.Load()
		switch {
		case msg.err != nil && msg.started:
			m.setStatus(fmt.Sprintf("Emergency alert incomplete: %v", msg.err), true)
		case msg.err != nil:
			m.setStatus(fmt.Sprintf("Emergency stopped, outlet not reset: %v", msg.err), true)
		case stale:
			// A later press owns the status line.
		case msg.started && !msg.blinking:
			m.setStatus(fmt.Sprintf("Emergency alert sent, outlet %d is not blinking", m.opts.EmergencyOutlet), true)
		case msg.started:
			m.setStatus("Emergency alert sent to all caregivers", false)
		default:
			m.setStatus("Emergency stopped", false)
		}
		return m, nil

	case lampMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Lamp failed: %v", msg.err), true)
		} else {
			m.setStatus(fmt.Sprintf("Lamp %s", msg.state), false)
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Force):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Quit):
		if m.screen == screenHome {
			return m, tea.Quit
		}
		return m.back(), nil
	case key.Matches(msg, m.keys.Back):
		return m.back(), nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		return m.activate(m.cursor)
	}
	return m, nil
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	if msg.X >= menuWidth {
		return m, nil
	}
	idx := msg.Y - menuTop
	if idx < 0 || idx >= len(m.items()) {
		return m, nil
	}
	m.cursor = idx
	return m.activate(idx)
}

func (m model) back() model {
	switch m.screen {
	case screenMessages:
		m.screen = screenContacts
	default:
		m.screen = screenHome
	}
	m.cursor = 0
	return m
}

// items returns the menu entries of the current screen.
func (m model) items() []string {
	switch m.screen {
	case screenContacts:
		return m.opts.Contacts
	case screenMessages:
		return m.opts.Messages
	}
	emergency := "Emergency call"
	if m.emergency {
		emergency = "Stop emergency"
	}
	return []string{emergency, "Lamp", "Send a message"}
}

func (m model) activate(idx int) (tea.Model, tea.Cmd) {
	items := m.items()
	if idx < 0 || idx >= len(items) {
		return m, nil
	}
	switch m.screen {
	case screenContacts:
		m.contact = items[idx]
		m.screen = screenMessages
		m.cursor = 0
		return m, nil
	case screenMessages:
		return m.sendMessage(items[idx])
	}

	switch idx {
	case actionEmergency:
		return m.toggleEmergency()
	case actionLamp:
		m.setStatus("Switching lamp…", false)
		return m, m.toggleLampCmd()
	case actionMessage:
		if len(m.opts.Contacts) == 0 {
			m.setStatus("No caregivers configured", true)
			return m, nil
		}
		m.screen = screenContacts
		m.cursor = 0
	}
	return m, nil
}

func (m model) sendMessage(text string) (tea.Model, tea.Cmd) {
	to := m.contact
	d := m.messenger.SendDirect(to, text)
	m.appendLine(convLine{at: time.Now(), who: to, text: text})
	m.setStatus(fmt.Sprintf("Sending to %s…", to), false)
	m.screen = screenHome
	m.cursor = actionMessage
	return m, m.waitSent(d, to, text)
}

func (m model) toggleEmergency() (tea.Model, tea.Cmd) {
	gen := m.gate.gen.Add(1)
	if !m.emergency {
		m.emergency = true
		m.setStatus("Calling for help…", false)
		d := m.messenger.BroadcastEmergency()
		return m, m.startEmergencyCmd(gen, d)
	}
	m.emergency = false
	m.setStatus("Stopping emergency…", false)
	return m, m.stopEmergencyCmd(gen)
}

func (m model) waitSent(d *bus.Delivery, to, text string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{to: to, text: text, err: d.Wait(m.ctx)}
	}
}

func (m model) startEmergencyCmd(gen int64, d *bus.Delivery) tea.Cmd {
	return func() tea.Msg {
		m.gate.mu.Lock()
		if m.gate.gen.Load() == gen {
			m.outlets.StartBlink(m.opts.EmergencyOutlet)
		}
		blinking := m.outlets.Blinking()
		m.gate.mu.Unlock()
		return emergencyMsg{gen: gen, started: true, blinking: blinking, err: d.Wait(m.ctx)}
	}
}

func (m model) stopEmergencyCmd(gen int64) tea.Cmd {
	return func() tea.Msg {
		m.gate.mu.Lock()
		defer m.gate.mu.Unlock()
		if m.gate.gen.Load() != gen {
			return emergencyMsg{gen: gen}
		}
		m.outlets.StopBlink()
		off := outlet.Off
		_, err := m.outlets.ToggleOutput(m.ctx, m.opts.EmergencyOutlet, &off)
		return emergencyMsg{gen: gen, err: err}
	}
}

func (m model) toggleLampCmd() tea.Cmd {
	return func() tea.Msg {
		state, err := m.outlets.ToggleOutput(m.ctx, m.opts.LampOutlet, nil)
		return lampMsg{state: state, err: err}
	}
}

func (m *model) appendLine(l convLine) {
	m.conversation = append(m.conversation, l)
	if over := len(m.conversation) - maxConversation; over > 0 {
		m.conversation = append([]convLine(nil), m.conversation[over:]...)
	}
}

func (m *model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}
