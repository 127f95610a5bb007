package channels

import (
	"context"
	"errors"

	"github.com/medboard/medboard/internal/bus"
)

// Send errors. Platform failures wrap ErrPlatform with the client's error.
var (
	ErrContactNotFound = errors.New("channels: contact not found")
	ErrNotConnected    = errors.New("channels: not connected")
	ErrPlatform        = errors.New("channels: platform error")
)

// Channel defines the interface for chat platforms.
type Channel interface {
	// Name returns the channel name (e.g. "discord").
	Name() string
	// Start starts the channel listener.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
	// Send executes an outbound message. Called on the bus dispatcher.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}
