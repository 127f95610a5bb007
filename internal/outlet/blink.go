package outlet

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// blinker owns the single blink worker of a Client.
type blinker struct {
	mu      sync.Mutex // serialises start/stop
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	device  int
}

// StartBlink toggles deviceID every blink interval on a background worker
// until StopBlink. A blink already in progress is stopped first. Returns
// without waiting for the first toggle.
func (c *Client) StartBlink(deviceID int) {
	c.blink.mu.Lock()
	defer c.blink.mu.Unlock()

	if c.blink.done != nil {
		slog.Info("Outlet blink replaced", "previous", c.blink.device, "device", deviceID)
		c.stopBlinkLocked()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.blink.stop, c.blink.done, c.blink.device = stop, done, deviceID
	c.blink.running.Store(true)

	go c.blinkLoop(deviceID, stop, done)
	slog.Info("Outlet blink started", "device", deviceID, "interval", c.cfg.BlinkInterval)
}

// StopBlink ends the blink worker and waits for it to exit. No toggle is
// issued after StopBlink returns. Safe to call when nothing is blinking.
func (c *Client) StopBlink() {
	c.blink.mu.Lock()
	defer c.blink.mu.Unlock()
	if c.blink.done == nil {
		return
	}
	c.stopBlinkLocked()
	slog.Info("Outlet blink stopped")
}

// Blinking reports whether a blink worker is alive.
func (c *Client) Blinking() bool {
	return c.blink.running.Load()
}

func (c *Client) stopBlinkLocked() {
	c.blink.running.Store(false)
	close(c.blink.stop)
	<-c.blink.done
	c.blink.stop, c.blink.done = nil, nil
}

// blinkLoop only checks stop between toggles; an in-flight toggle always
// completes so a stopped worker leaves no request behind.
func (c *Client) blinkLoop(deviceID int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		default:
		}

		if _, err := c.ToggleOutput(ctx, deviceID, nil); err != nil {
			slog.Warn("Outlet blink toggle failed", "device", deviceID, "error", err)
		}

		timer := time.NewTimer(c.cfg.BlinkInterval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
