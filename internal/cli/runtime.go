package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/medboard/medboard/internal/bus"
	"github.com/medboard/medboard/internal/channels"
	"github.com/medboard/medboard/internal/config"
	"github.com/medboard/medboard/internal/contacts"
	"github.com/medboard/medboard/internal/outlet"
	"github.com/medboard/medboard/internal/secrets"
)

var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

// loadConfig returns the effective configuration with keyring credentials
// filled in.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	secrets.Fill(cfg)
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signalStop(sigChan)
		cancel()
	}
}

// newOutletClient creates an authenticated outlet client.
func newOutletClient(ctx context.Context, cfg *config.Config) (*outlet.Client, error) {
	client, err := outlet.NewClient(cfg.Outlet)
	if err != nil {
		return nil, err
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// gateway owns the message bus dispatcher and the Discord channel.
type gateway struct {
	discord *channels.DiscordChannel
	cancel  context.CancelFunc
	done    chan struct{}
}

// startGateway runs the outbound dispatcher and connects the Discord channel.
func startGateway(ctx context.Context, cfg *config.Config, reg *contacts.Registry) (*gateway, error) {
	if !cfg.Discord.Enabled {
		return nil, errors.New("discord channel is disabled in config")
	}
	msgBus := bus.NewMessageBus()
	discord := channels.NewDiscordChannel(cfg.Discord, reg, msgBus)

	dispatchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = msgBus.DispatchOutbound(dispatchCtx)
	}()

	if err := discord.Start(dispatchCtx); err != nil {
		cancel()
		<-done
		return nil, err
	}
	return &gateway{discord: discord, cancel: cancel, done: done}, nil
}

// Close disconnects Discord and stops the dispatcher. Pending deliveries
// fail with bus.ErrStopped.
func (g *gateway) Close() {
	if err := g.discord.Stop(); err != nil {
		slog.Warn("Discord stop failed", "error", err)
	}
	g.cancel()
	<-g.done
}

// redirectLogs sends slog output to path so it does not draw over the board.
func redirectLogs(path string) (io.Closer, error) {
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
	return f, nil
}
