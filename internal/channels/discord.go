package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/medboard/medboard/internal/bus"
	"github.com/medboard/medboard/internal/config"
	"github.com/medboard/medboard/internal/contacts"
)

// discordSession is the slice of *discordgo.Session the channel uses.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func newDiscordgoSession(token string) (discordSession, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentDirectMessages | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return s, nil
}

// MessageHandler receives inbound direct messages from registered contacts.
type MessageHandler func(msg bus.InboundMessage)

// DiscordChannel is the caregiver messaging gateway. Outbound work runs on
// the bus dispatcher; inbound direct messages from registered contacts are
// handed to a single registered callback.
type DiscordChannel struct {
	BaseChannel
	config     config.DiscordConfig
	contacts   *contacts.Registry
	newSession func(token string) (discordSession, error)

	mu         sync.Mutex
	session    discordSession
	selfID     string
	dmChannels map[uint64]string
	onMessage  MessageHandler
	removers   []func()
}

var _ Channel = (*DiscordChannel)(nil)

// NewDiscordChannel creates a Discord channel for the given contacts.
func NewDiscordChannel(cfg config.DiscordConfig, reg *contacts.Registry, messageBus *bus.MessageBus) *DiscordChannel {
	return &DiscordChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		contacts:    reg,
		newSession:  newDiscordgoSession,
		dmChannels:  make(map[uint64]string),
	}
}

func (c *DiscordChannel) Name() string { return "discord" }

// Start connects the bot and subscribes to outbound work. A failure here
// leaves the channel unavailable; there is no reconnect loop on top of the
// client library's own.
func (c *DiscordChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if strings.TrimSpace(c.config.Token) == "" {
		return fmt.Errorf("discord: token not configured")
	}
	s, err := c.newSession(c.config.Token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}

	removers := []func(){
		s.AddHandler(c.onReady),
		s.AddHandler(c.onMessageCreate),
	}
	if err := s.Open(); err != nil {
		for _, rm := range removers {
			rm()
		}
		return fmt.Errorf("discord: open session: %w", err)
	}

	c.mu.Lock()
	c.session = s
	c.removers = removers
	c.mu.Unlock()

	c.Bus.Subscribe(c.Name(), c.Send)
	slog.Info("Discord channel started", "contacts", c.contacts.Len())
	return nil
}

// Stop closes the session. Work still queued fails with ErrNotConnected.
func (c *DiscordChannel) Stop() error {
	c.mu.Lock()
	s := c.session
	removers := c.removers
	c.session, c.removers = nil, nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	for _, rm := range removers {
		rm()
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	slog.Info("Discord channel stopped")
	return nil
}

// SetMessageReceivedCallback registers fn as the only inbound handler,
// replacing any previous one. nil unregisters.
func (c *DiscordChannel) SetMessageReceivedCallback(fn MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// SendDirect queues text for the named contact and returns at once. An
// unknown contact fails immediately without touching the network.
func (c *DiscordChannel) SendDirect(name, text string) *bus.Delivery {
	if _, ok := c.contacts.Lookup(name); !ok {
		slog.Warn("Discord contact not found", "contact", name)
		return bus.Failed("", fmt.Errorf("%w: %s", ErrContactNotFound, name))
	}
	return c.Bus.PublishOutbound(&bus.OutboundMessage{
		Channel:   c.Name(),
		Kind:      bus.KindDirect,
		Recipient: name,
		Content:   text,
	})
}

// BroadcastEmergency queues the emergency text for every contact.
func (c *DiscordChannel) BroadcastEmergency() *bus.Delivery {
	return c.Bus.PublishOutbound(&bus.OutboundMessage{
		Channel: c.Name(),
		Kind:    bus.KindBroadcast,
		Content: c.config.EmergencyText,
	})
}

// Send executes outbound work. It runs on the bus dispatcher.
func (c *DiscordChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	switch msg.Kind {
	case bus.KindBroadcast:
		return c.broadcast(ctx, msg)
	case bus.KindDirect, "":
		err := c.sendTo(ctx, msg.Recipient, msg.Content)
		if err != nil {
			slog.Error("Discord send failed", "contact", msg.Recipient, "trace_id", msg.TraceID, "error", err)
		}
		return err
	default:
		return fmt.Errorf("discord: unsupported message kind %q", msg.Kind)
	}
}

// broadcast attempts every contact in registry order; one failure does not
// stop the rest.
func (c *DiscordChannel) broadcast(ctx context.Context, msg *bus.OutboundMessage) error {
	var errs []error
	for _, ct := range c.contacts.All() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.sendTo(ctx, ct.Name, msg.Content); err != nil {
			slog.Error("Discord emergency send failed", "contact", ct.Name, "user_id", ct.ID, "trace_id", msg.TraceID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ct.Name, err))
			continue
		}
		slog.Info("Discord emergency sent", "contact", ct.Name, "user_id", ct.ID)
	}
	return errors.Join(errs...)
}

func (c *DiscordChannel) sendTo(ctx context.Context, name, text string) error {
	userID, ok := c.contacts.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactNotFound, name)
	}
	c.mu.Lock()
	s := c.session
	channelID := c.dmChannels[userID]
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}

	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if channelID == "" {
		ch, err := s.UserChannelCreate(strconv.FormatUint(userID, 10), opts...)
		if err != nil {
			return fmt.Errorf("%w: open dm with %s: %w", ErrPlatform, name, err)
		}
		channelID = ch.ID
		c.mu.Lock()
		c.dmChannels[userID] = channelID
		c.mu.Unlock()
	}
	if _, err := s.ChannelMessageSend(channelID, text, opts...); err != nil {
		return fmt.Errorf("%w: send to %s: %w", ErrPlatform, name, err)
	}
	slog.Info("Discord message sent", "contact", name, "user_id", userID)
	return nil
}

func (c *DiscordChannel) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	c.mu.Lock()
	c.selfID = r.User.ID
	c.mu.Unlock()
	slog.Info("Discord bot ready", "user", r.User.Username)
}

func (c *DiscordChannel) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	c.HandleInbound(m.Author.ID, m.Content, m.GuildID == "")
}

// HandleInbound filters one received message. Only direct messages from
// registered contacts reach the callback; the bot's own messages, group
// messages and unknown senders are dropped.
func (c *DiscordChannel) HandleInbound(senderID, content string, isDirect bool) {
	c.mu.Lock()
	self := c.selfID
	handler := c.onMessage
	c.mu.Unlock()

	if self != "" && senderID == self {
		return
	}
	if !isDirect {
		return
	}
	id, err := strconv.ParseUint(strings.TrimSpace(senderID), 10, 64)
	if err != nil || !c.contacts.Contains(id) {
		slog.Debug("Discord message from unknown sender dropped", "sender", senderID)
		return
	}
	name := c.contacts.NameOf(id)
	slog.Info("Discord message received", "contact", name)
	if handler == nil {
		return
	}
	handler(bus.InboundMessage{
		Channel:    c.Name(),
		SenderID:   id,
		SenderName: name,
		Content:    content,
		Timestamp:  time.Now(),
	})
}
