package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/medboard/medboard/internal/bus"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <contact> <text...>",
	Short: "Send a direct message to a caregiver",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, text := args[0], strings.Join(args[1:], " ")
		return withGateway(cmd, func(gw *gateway) *bus.Delivery {
			return gw.discord.SendDirect(name, text)
		}, "message sent to "+name)
	},
}

var emergencyCmd = &cobra.Command{
	Use:   "emergency",
	Short: "Send the emergency alert to every caregiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(gw *gateway) *bus.Delivery {
			return gw.discord.BroadcastEmergency()
		}, "emergency alert sent")
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List the configured caregivers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return fmt.Errorf("contacts: %w", err)
		}
		printHeader(cmd, "👥 Caregivers")
		if reg.Len() == 0 {
			printFail(cmd, "no contacts configured")
			return nil
		}
		for _, c := range reg.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", c.Name, c.ID)
		}
		return nil
	},
}

// withGateway connects, queues one piece of outbound work and waits for
// its outcome.
func withGateway(cmd *cobra.Command, publish func(*gateway) *bus.Delivery, success string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("contacts: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	gw, err := startGateway(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer gw.Close()

	d := publish(gw)
	waitCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := d.Wait(waitCtx); err != nil {
		printFail(cmd, "%v", err)
		return err
	}
	printOK(cmd, "%s", success)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{sendCmd, emergencyCmd} {
		c.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "How long to wait for delivery")
	}
}
