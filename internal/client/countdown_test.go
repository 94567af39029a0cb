package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timer-delivery-engine/internal/timer"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration)  { c.t = c.t.Add(d) }

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func deadlinePayload(end time.Time) timer.Payload {
	return timer.Payload{
		ID:    "d1",
		Kind:  string(timer.KindProduct),
		Mode:  string(timer.ModeDeadline),
		EndAt: &end,
	}
}

func sessionPayload(minutes int) timer.Payload {
	return timer.Payload{
		ID:             "s1",
		Kind:           string(timer.KindProduct),
		Mode:           string(timer.ModeSession),
		SessionMinutes: minutes,
	}
}

func TestRemainingSeconds_Deadline(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := NewMemStore()

	tests := []struct {
		name string
		end  time.Time
		want int64
	}{
		{"90 minutes out", t0.Add(90 * time.Minute), 5400},
		{"sub-second truncates down", t0.Add(1500 * time.Millisecond), 1},
		{"exactly now", t0, 0},
		{"already passed clamps to zero", t0.Add(-time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingSeconds(deadlinePayload(tt.end), clock, store)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemainingSeconds_SessionPersistsStart(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := NewMemStore()
	p := sessionPayload(10)

	// First encounter starts the session clock.
	assert.EqualValues(t, 600, RemainingSeconds(p, clock, store))

	clock.Advance(300 * time.Second)
	assert.EqualValues(t, 300, RemainingSeconds(p, clock, store))

	// A fresh renderer instance sharing the store (page reload) keeps
	// counting from the original start, not a restarted clock.
	clock2 := &fakeClock{t: clock.t}
	assert.EqualValues(t, 300, RemainingSeconds(p, clock2, store))

	clock.Advance(301 * time.Second) // T0 + 601s
	assert.EqualValues(t, 0, RemainingSeconds(p, clock, store))

	// Clearing storage restarts the countdown.
	store.Delete("utimer_fixed_s1_startedAt")
	assert.EqualValues(t, 600, RemainingSeconds(p, clock, store))
}

func TestRemainingSeconds_SessionKeysScopedPerTimer(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := NewMemStore()

	a := sessionPayload(10)
	b := sessionPayload(10)
	b.ID = "s2"

	require.EqualValues(t, 600, RemainingSeconds(a, clock, store))
	clock.Advance(60 * time.Second)
	// b first seen a minute later; its budget is untouched by a's clock.
	assert.EqualValues(t, 600, RemainingSeconds(b, clock, store))
	assert.EqualValues(t, 540, RemainingSeconds(a, clock, store))
}

func TestSplitSeconds(t *testing.T) {
	tests := []struct {
		total int64
		want  Digits
	}{
		{0, Digits{}},
		{59, Digits{Seconds: 59}},
		{60, Digits{Minutes: 1}},
		{3661, Digits{Hours: 1, Minutes: 1, Seconds: 1}},
		{90061, Digits{Days: 1, Hours: 1, Minutes: 1, Seconds: 1}},
		{-5, Digits{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitSeconds(tt.total), "total=%d", tt.total)
	}
}

func TestPad(t *testing.T) {
	assert.Equal(t, "00", Pad(0))
	assert.Equal(t, "07", Pad(7))
	assert.Equal(t, "59", Pad(59))
	assert.Equal(t, "123", Pad(123)) // day counts keep full width
	assert.Equal(t, "00", Pad(-3))
}

func TestFileStoreDurability(t *testing.T) {
	path := t.TempDir() + "/kv.json"

	s1, err := OpenFileStore(path)
	require.NoError(t, err)
	s1.Set("utimer_fixed_s1_startedAt", "1700000000")

	s2, err := OpenFileStore(path)
	require.NoError(t, err)
	v, ok := s2.Get("utimer_fixed_s1_startedAt")
	require.True(t, ok)
	assert.Equal(t, "1700000000", v)

	s2.Delete("utimer_fixed_s1_startedAt")
	s3, err := OpenFileStore(path)
	require.NoError(t, err)
	_, ok = s3.Get("utimer_fixed_s1_startedAt")
	assert.False(t, ok)
}
