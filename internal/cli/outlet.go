package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/medboard/medboard/internal/outlet"
)

var (
	outletDevice   int
	outletOn       bool
	outletOff      bool
	outletDuration time.Duration
)

var outletCmd = &cobra.Command{
	Use:   "outlet",
	Short: "Drive the outlet controller",
}

var outletStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the output state of an outlet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		client, err := newOutletClient(ctx, cfg)
		if err != nil {
			return err
		}
		state, err := client.Output(ctx, outletDevice)
		if err != nil {
			return err
		}
		printOK(cmd, "outlet %d is %s", outletDevice, state)
		return nil
	},
}

var outletToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Invert an outlet, or force it with --on/--off",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outletOn && outletOff {
			return fmt.Errorf("--on and --off are mutually exclusive")
		}
		var desired *outlet.State
		switch {
		case outletOn:
			s := outlet.On
			desired = &s
		case outletOff:
			s := outlet.Off
			desired = &s
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		client, err := newOutletClient(ctx, cfg)
		if err != nil {
			return err
		}
		state, err := client.ToggleOutput(ctx, outletDevice, desired)
		if err != nil {
			return err
		}
		printOK(cmd, "outlet %d switched %s", outletDevice, state)
		return nil
	},
}

var outletBlinkCmd = &cobra.Command{
	Use:   "blink",
	Short: "Blink an outlet until interrupted (or for --for)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		if outletDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, outletDuration)
			defer cancel()
		}

		client, err := newOutletClient(ctx, cfg)
		if err != nil {
			return err
		}
		printHeader(cmd, "🚨 Outlet Blink")
		printOK(cmd, "blinking outlet %d every %s, Ctrl+C to stop", outletDevice, cfg.Outlet.BlinkInterval)
		client.StartBlink(outletDevice)
		<-ctx.Done()
		client.StopBlink()

		off := outlet.Off
		resetCtx, cancel := context.WithTimeout(context.Background(), cfg.Outlet.Timeout)
		defer cancel()
		if _, err := client.ToggleOutput(resetCtx, outletDevice, &off); err != nil {
			printFail(cmd, "outlet %d left in unknown state: %v", outletDevice, err)
			return err
		}
		printOK(cmd, "outlet %d off", outletDevice)
		return nil
	},
}

func init() {
	outletCmd.PersistentFlags().IntVarP(&outletDevice, "device", "d", 5, "Outlet (sensor) id")
	outletToggleCmd.Flags().BoolVar(&outletOn, "on", false, "Force the outlet on")
	outletToggleCmd.Flags().BoolVar(&outletOff, "off", false, "Force the outlet off")
	outletBlinkCmd.Flags().DurationVar(&outletDuration, "for", 0, "Stop blinking after this long")

	outletCmd.AddCommand(outletStatusCmd)
	outletCmd.AddCommand(outletToggleCmd)
	outletCmd.AddCommand(outletBlinkCmd)
}
