package outlet

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func waitForPuts(t *testing.T, f *fakeController, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, puts := f.snapshot(); len(puts) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes", n)
}

func TestBlinkTogglesUntilStopped(t *testing.T) {
	f := newFakeController()
	c := newTestClient(t, f)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	c.StartBlink(5)
	if !c.Blinking() {
		t.Fatal("expected blinking after start")
	}
	waitForPuts(t, f, 3)
	c.StopBlink()
	if c.Blinking() {
		t.Fatal("expected not blinking after stop")
	}

	_, _, after := f.snapshot()
	time.Sleep(100 * time.Millisecond)
	_, _, later := f.snapshot()
	if len(later) != len(after) {
		t.Fatalf("toggle issued after StopBlink returned: %d -> %d", len(after), len(later))
	}
	for i, p := range after {
		want := "5=1"
		if i%2 == 1 {
			want = "5=0"
		}
		if p != want {
			t.Fatalf("write %d: got %s want %s", i, p, want)
		}
	}
}

func TestStartThenImmediateStopLeavesNoStragglers(t *testing.T) {
	f := newFakeController()
	c := newTestClient(t, f)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	c.StartBlink(5)
	c.StopBlink()
	_, _, after := f.snapshot()
	time.Sleep(80 * time.Millisecond)
	if _, _, later := f.snapshot(); len(later) != len(after) {
		t.Fatalf("write after stop: %v -> %v", after, later)
	}
}

func TestStopBlinkIdleIsNoop(t *testing.T) {
	f := newFakeController()
	c := newTestClient(t, f)

	c.StopBlink()
	c.StopBlink()
	if c.Blinking() {
		t.Fatal("expected idle client")
	}
}

func TestStartBlinkReplacesPreviousWorker(t *testing.T) {
	f := newFakeController()
	c := newTestClient(t, f)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	c.StartBlink(5)
	waitForPuts(t, f, 1)
	c.StartBlink(6)
	waitForPuts(t, f, 3)
	c.StopBlink()

	_, _, puts := f.snapshot()
	seen6 := false
	for _, p := range puts {
		if p[0] == '6' {
			seen6 = true
			continue
		}
		if seen6 {
			t.Fatalf("outlet 5 toggled after blink moved to 6: %v", puts)
		}
	}
	if !seen6 {
		t.Fatalf("expected outlet 6 to blink: %v", puts)
	}
}

func TestManualTogglesWhileBlinking(t *testing.T) {
	f := newFakeController()
	c := newTestClient(t, f)
	ctx := context.Background()
	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	c.StartBlink(5)
	defer c.StopBlink()

	const rounds = 5
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for _, id := range []int{6, 7} {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for range rounds {
				if _, err := c.ToggleOutput(ctx, id, nil); err != nil {
					errs <- err
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("manual toggle failed: %v", err)
	}
	if !c.Blinking() {
		t.Fatal("blink worker stopped by manual toggles")
	}
	c.StopBlink()

	_, _, puts := f.snapshot()
	for _, id := range []int{6, 7} {
		var seq []string
		for _, p := range puts {
			if strings.HasPrefix(p, strconv.Itoa(id)+"=") {
				seq = append(seq, p)
			}
		}
		want := []string{"1", "0", "1", "0", "1"}
		if len(seq) != rounds {
			t.Fatalf("device %d: expected %d writes, got %v", id, rounds, seq)
		}
		for i, p := range seq {
			if p != strconv.Itoa(id)+"="+want[i] {
				t.Fatalf("device %d write %d: got %s", id, i, p)
			}
		}
	}
}
