package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/medboard/medboard/internal/board"
	"github.com/medboard/medboard/internal/bus"
	"github.com/medboard/medboard/internal/channels"
	"github.com/medboard/medboard/internal/config"
	"github.com/medboard/medboard/internal/contacts"
	"github.com/medboard/medboard/internal/outlet"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Run the control board",
	RunE:  runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("contacts: %w", err)
	}

	logs, err := redirectLogs(cfg.Board.LogFile)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	slog.Info("Board starting", "version", version, "contacts", reg.Len())

	outlets, err := newOutletClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("outlet controller: %w", err)
	}
	defer func() {
		outlets.StopBlink()
		off := outlet.Off
		resetCtx, cancel := context.WithTimeout(context.Background(), cfg.Outlet.Timeout)
		defer cancel()
		if _, err := outlets.ToggleOutput(resetCtx, cfg.Board.EmergencyOutlet, &off); err != nil {
			slog.Warn("Emergency outlet reset failed", "error", err)
		}
	}()

	messenger, notice, closeMessenger := connectMessenger(ctx, cfg, reg)
	defer closeMessenger()

	err = board.Run(ctx, messenger, outlets, board.Options{
		Contacts:        reg.Names(),
		Messages:        cfg.Board.Messages,
		EmergencyOutlet: cfg.Board.EmergencyOutlet,
		LampOutlet:      cfg.Board.LampOutlet,
		Notice:          notice,
	})
	slog.Info("Board stopped", "error", err)
	return err
}

// connectMessenger starts the gateway for the board. When messaging cannot
// start the board still runs, with an offline messenger and a notice.
func connectMessenger(ctx context.Context, cfg *config.Config, reg *contacts.Registry) (board.Messenger, string, func()) {
	gw, err := startGateway(ctx, cfg, reg)
	if err != nil {
		slog.Error("Messaging unavailable", "error", err)
		return offlineMessenger{err: fmt.Errorf("%w: %v", channels.ErrNotConnected, err)},
			fmt.Sprintf("Messaging unavailable: %v", err),
			func() {}
	}
	return gw.discord, "", gw.Close
}

// offlineMessenger fails every send with the reason messaging is down.
type offlineMessenger struct {
	err error
}

func (o offlineMessenger) SendDirect(string, string) *bus.Delivery { return bus.Failed("", o.err) }

func (o offlineMessenger) BroadcastEmergency() *bus.Delivery { return bus.Failed("", o.err) }

func (o offlineMessenger) SetMessageReceivedCallback(channels.MessageHandler) {}
