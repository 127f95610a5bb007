package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medboard/medboard/internal/bus"
	"github.com/medboard/medboard/internal/channels"
	"github.com/medboard/medboard/internal/outlet"
)

type fakeMessenger struct {
	mu         sync.Mutex
	sent       []string // "<to>:<text>"
	broadcasts int
	sendErr    error
	handler    channels.MessageHandler
}

func (f *fakeMessenger) SendDirect(name, text string) *bus.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, name+":"+text)
	return bus.Failed("trace", f.sendErr)
}

func (f *fakeMessenger) BroadcastEmergency() *bus.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts++
	return bus.Failed("trace", f.sendErr)
}

func (f *fakeMessenger) SetMessageReceivedCallback(fn channels.MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

type fakeOutlets struct {
	mu        sync.Mutex
	calls     []string
	state     map[int]outlet.State
	toggleErr error
	blinking  bool
	noBlink   bool // StartBlink does not take effect
}

func newFakeOutlets() *fakeOutlets {
	return &fakeOutlets{state: map[int]outlet.State{}}
}

func (f *fakeOutlets) ToggleOutput(_ context.Context, deviceID int, desired *outlet.State) (outlet.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		f.calls = append(f.calls, "toggle-failed")
		return outlet.Off, f.toggleErr
	}
	next := f.state[deviceID].Invert()
	if desired != nil {
		next = *desired
	}
	f.state[deviceID] = next
	f.calls = append(f.calls, "toggle:"+next.String())
	return next, nil
}

func (f *fakeOutlets) StartBlink(int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start-blink")
	f.blinking = !f.noBlink
}

func (f *fakeOutlets) StopBlink() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop-blink")
	f.blinking = false
}

func (f *fakeOutlets) Blinking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blinking
}

func testModel(m *fakeMessenger, o *fakeOutlets) model {
	return newModel(context.Background(), m, o, Options{
		Contacts:        []string{"Alice", "Bob"},
		Messages:        []string{"J'ai soif", "J'ai mal"},
		EmergencyOutlet: 5,
		LampOutlet:      6,
	})
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds msg to the model and runs the returned command to completion,
// feeding its result back, the way the program loop would.
func press(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(model)
	if cmd == nil {
		return m
	}
	out := cmd()
	if _, quit := out.(tea.QuitMsg); quit {
		return m
	}
	next, _ = m.Update(out)
	return next.(model)
}

func TestNavigationStaysInBounds(t *testing.T) {
	m := testModel(&fakeMessenger{}, newFakeOutlets())

	m = press(t, m, keyPress("up"))
	assert.Equal(t, 0, m.cursor)

	for range 5 {
		m = press(t, m, keyPress("down"))
	}
	assert.Equal(t, actionMessage, m.cursor)

	m = press(t, m, keyPress("k"))
	assert.Equal(t, actionLamp, m.cursor)
}

func TestLampTogglesOutlet(t *testing.T) {
	o := newFakeOutlets()
	m := testModel(&fakeMessenger{}, o)

	m = press(t, m, keyPress("down"))
	m = press(t, m, keyPress("enter"))
	assert.Equal(t, []string{"toggle:on"}, o.calls)
	assert.Equal(t, "Lamp on", m.status)
	assert.False(t, m.statusErr)

	m = press(t, m, keyPress("enter"))
	assert.Equal(t, []string{"toggle:on", "toggle:off"}, o.calls)
	assert.Equal(t, "Lamp off", m.status)
}

func TestLampFailureIsShown(t *testing.T) {
	o := newFakeOutlets()
	o.toggleErr = outlet.ErrNotAuthenticated
	m := testModel(&fakeMessenger{}, o)

	m.cursor = actionLamp
	m = press(t, m, keyPress("enter"))
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "Lamp failed")
}

func TestEmergencyStartAndStop(t *testing.T) {
	msgr := &fakeMessenger{}
	o := newFakeOutlets()
	m := testModel(msgr, o)

	m = press(t, m, keyPress("enter"))
	require.True(t, m.emergency)
	assert.Equal(t, 1, msgr.broadcasts)
	assert.Equal(t, []string{"start-blink"}, o.calls)
	assert.Equal(t, "Emergency alert sent to all caregivers", m.status)
	assert.Equal(t, "Stop emergency", m.items()[actionEmergency])

	m = press(t, m, keyPress("enter"))
	assert.False(t, m.emergency)
	assert.Equal(t, 1, msgr.broadcasts)
	assert.Equal(t, []string{"start-blink", "stop-blink", "toggle:off"}, o.calls)
	assert.Equal(t, "Emergency stopped", m.status)
}

func TestEmergencyStopBeforeStartRunsSkipsBlink(t *testing.T) {
	o := newFakeOutlets()
	m := testModel(&fakeMessenger{}, o)

	next, startCmd := m.Update(keyPress("enter"))
	m = next.(model)
	next, stopCmd := m.Update(keyPress("enter"))
	m = next.(model)

	stopCmd()
	startCmd()
	assert.Equal(t, []string{"stop-blink", "toggle:off"}, o.calls)
	assert.False(t, m.emergency)
}

func TestEmergencyStaleStopDoesNotUndoNewerStart(t *testing.T) {
	o := newFakeOutlets()
	m := testModel(&fakeMessenger{}, o)

	var cmds []tea.Cmd
	for range 3 {
		next, cmd := m.Update(keyPress("enter"))
		m = next.(model)
		cmds = append(cmds, cmd)
	}
	require.True(t, m.emergency)

	// The runtime may run commands in any order.
	for _, i := range []int{0, 2, 1} {
		next, _ := m.Update(cmds[i]())
		m = next.(model)
	}
	assert.Equal(t, []string{"start-blink"}, o.calls)
	assert.True(t, o.Blinking())
	assert.True(t, m.emergency)
	assert.Equal(t, "Emergency alert sent to all caregivers", m.status)
}

func TestEmergencyWithoutBlinkIsShown(t *testing.T) {
	o := newFakeOutlets()
	o.noBlink = true
	m := testModel(&fakeMessenger{}, o)

	m = press(t, m, keyPress("enter"))
	assert.True(t, m.emergency)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "outlet 5 is not blinking")
}

func TestEmergencyPartialBroadcastIsShown(t *testing.T) {
	msgr := &fakeMessenger{sendErr: errors.New("Alice: platform error")}
	o := newFakeOutlets()
	m := testModel(msgr, o)

	m = press(t, m, keyPress("enter"))
	assert.True(t, m.emergency)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "Alice")
	assert.Equal(t, []string{"start-blink"}, o.calls)
}

func TestSendMessageFlow(t *testing.T) {
	msgr := &fakeMessenger{}
	m := testModel(msgr, newFakeOutlets())

	m.cursor = actionMessage
	m = press(t, m, keyPress("enter"))
	require.Equal(t, screenContacts, m.screen)

	m = press(t, m, keyPress("down"))
	m = press(t, m, keyPress("enter"))
	require.Equal(t, screenMessages, m.screen)
	assert.Equal(t, "Bob", m.contact)

	m = press(t, m, keyPress("down"))
	m = press(t, m, keyPress(" "))
	assert.Equal(t, []string{"Bob:J'ai mal"}, msgr.sent)
	assert.Equal(t, screenHome, m.screen)
	assert.Equal(t, actionMessage, m.cursor)
	assert.Equal(t, "Message sent to Bob", m.status)

	require.Len(t, m.conversation, 1)
	assert.False(t, m.conversation[0].incoming)
	assert.Equal(t, "J'ai mal", m.conversation[0].text)
}

func TestSendMessageFailureIsShown(t *testing.T) {
	msgr := &fakeMessenger{sendErr: channels.ErrNotConnected}
	m := testModel(msgr, newFakeOutlets())
	m.screen = screenMessages
	m.contact = "Alice"

	m = press(t, m, keyPress("enter"))
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "Message to Alice failed")
}

func TestBackNavigation(t *testing.T) {
	m := testModel(&fakeMessenger{}, newFakeOutlets())
	m.screen = screenMessages
	m.cursor = 1

	m = press(t, m, keyPress("esc"))
	assert.Equal(t, screenContacts, m.screen)
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, keyPress("q"))
	assert.Equal(t, screenHome, m.screen)

	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestNoContactsConfigured(t *testing.T) {
	m := newModel(context.Background(), &fakeMessenger{}, newFakeOutlets(), Options{})
	m.cursor = actionMessage
	m = press(t, m, keyPress("enter"))
	assert.Equal(t, screenHome, m.screen)
	assert.True(t, m.statusErr)
}

func TestReceivedMessageIsAppended(t *testing.T) {
	m := testModel(&fakeMessenger{}, newFakeOutlets())
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)

	m = press(t, m, receivedMsg(bus.InboundMessage{SenderName: "Alice", Content: "on my way", Timestamp: at}))
	require.Len(t, m.conversation, 1)
	assert.True(t, m.conversation[0].incoming)
	assert.Equal(t, "New message from Alice", m.status)

	view := m.View()
	assert.Contains(t, view, "09:30")
	assert.Contains(t, view, "on my way")
}

func TestConversationIsBounded(t *testing.T) {
	m := testModel(&fakeMessenger{}, newFakeOutlets())
	for i := range maxConversation + 10 {
		m.appendLine(convLine{at: time.Now(), who: "Alice", text: string(rune('a' + i%26))})
	}
	assert.Len(t, m.conversation, maxConversation)
}

func TestMouseClickActivatesRow(t *testing.T) {
	o := newFakeOutlets()
	m := testModel(&fakeMessenger{}, o)

	m = press(t, m, tea.MouseMsg{X: 3, Y: menuTop + actionLamp, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.Equal(t, actionLamp, m.cursor)
	assert.Equal(t, []string{"toggle:on"}, o.calls)

	m = press(t, m, tea.MouseMsg{X: menuWidth + 5, Y: menuTop, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = press(t, m, tea.MouseMsg{X: 3, Y: menuTop, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.Equal(t, []string{"toggle:on"}, o.calls)
}

func TestStartupNoticeIsShownAsError(t *testing.T) {
	m := newModel(context.Background(), &fakeMessenger{}, newFakeOutlets(), Options{
		Notice: "Messaging unavailable: discord: open session: 401",
	})
	assert.True(t, m.statusErr)
	assert.Contains(t, m.View(), "Messaging unavailable")
}

func TestClockTicks(t *testing.T) {
	m := testModel(&fakeMessenger{}, newFakeOutlets())
	require.NotNil(t, m.Init())

	at := time.Date(2024, 3, 1, 18, 45, 12, 0, time.Local)
	next, cmd := m.Update(tickMsg(at))
	m = next.(model)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Fri 01 Mar 2024  18:45:12")
}

func TestViewShowsButtons(t *testing.T) {
	m := testModel(&fakeMessenger{}, newFakeOutlets())
	view := m.View()
	for _, label := range []string{"Med Board", "Emergency call", "Lamp", "Send a message", "No messages yet", "Ready"} {
		assert.Contains(t, view, label)
	}

	m.screen = screenContacts
	view = m.View()
	assert.Contains(t, view, "Alice")
	assert.Contains(t, view, "Bob")
}
