package client

import (
	"context"
	"sync"
	"time"

	"timer-delivery-engine/internal/timer"
)

// State is the lifecycle of one mounted countdown instance.
type State int

const (
	StateInitializing State = iota
	StateRunning
	// StateEndedHidden: expiry policy removed the element.
	StateEndedHidden
	// StateEndedVisible: "keep" froze the digits at zero.
	StateEndedVisible
)

// Display is where an instance draws itself. Implementations render to
// HTML, a terminal, or a test recorder.
type Display interface {
	// Apply redraws the countdown with the given digits.
	Apply(t timer.Payload, d Digits)
	// Remove takes the element off the page.
	Remove()
}

// Instance drives one mounted timer: compute remaining time, redraw once
// a second, enforce the expiry policy when the budget runs out. Each
// instance owns its schedule; instances never synchronize.
type Instance struct {
	t       timer.Payload
	clock   Clock
	store   Store
	display Display

	interval time.Duration

	mu    sync.Mutex
	state State

	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewInstance(t timer.Payload, display Display, store Store, clock Clock) *Instance {
	if clock == nil {
		clock = SystemClock
	}
	return &Instance{
		t:        t,
		clock:    clock,
		store:    store,
		display:  display,
		interval: time.Second,
		state:    StateInitializing,
	}
}

// WithInterval overrides the one-second cadence. Tests only.
func (in *Instance) WithInterval(d time.Duration) *Instance {
	in.interval = d
	return in
}

func (in *Instance) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Start computes the first frame and begins the tick loop. It returns
// immediately; the loop runs until the instance ends, is unmounted, or
// ctx is cancelled.
func (in *Instance) Start(ctx context.Context) {
	ctx, in.cancel = context.WithCancel(ctx)

	if !in.step() {
		return
	}

	go func() {
		ticker := time.NewTicker(in.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !in.step() {
					return
				}
			}
		}
	}()
}

// step recomputes remaining time, redraws, and applies expiry. Returns
// false once the instance has reached an Ended state.
func (in *Instance) step() bool {
	remaining := RemainingSeconds(in.t, in.clock, in.store)
	ended := remaining <= 0 || in.t.Ended

	in.mu.Lock()
	if in.state == StateEndedHidden || in.state == StateEndedVisible {
		in.mu.Unlock()
		return false
	}
	if in.state == StateInitializing {
		in.state = StateRunning
	}
	in.mu.Unlock()

	if !ended {
		in.display.Apply(in.t, SplitSeconds(remaining))
		return true
	}

	// Expiry. The schedule is cancelled exactly once, here.
	switch timer.ExpiryPolicy(in.t.OnExpiry) {
	case timer.ExpiryKeep:
		in.display.Apply(in.t, Digits{})
		in.setState(StateEndedVisible)
	default: // unpublish, hide
		in.display.Remove()
		in.setState(StateEndedHidden)
	}
	in.stopSchedule()
	return false
}

// Unmount removes the element and cancels the schedule, e.g. when the
// visitor dismisses a bar.
func (in *Instance) Unmount() {
	in.mu.Lock()
	alreadyGone := in.state == StateEndedHidden
	if !alreadyGone {
		in.state = StateEndedHidden
	}
	in.mu.Unlock()

	if !alreadyGone {
		in.display.Remove()
	}
	in.stopSchedule()
}

func (in *Instance) setState(s State) {
	in.mu.Lock()
	in.state = s
	in.mu.Unlock()
}

func (in *Instance) stopSchedule() {
	in.stopOnce.Do(func() {
		if in.cancel != nil {
			in.cancel()
		}
	})
}
