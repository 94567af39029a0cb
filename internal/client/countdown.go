package client

import (
	"fmt"
	"strconv"
	"time"

	"timer-delivery-engine/internal/timer"
)

// Clock abstracts time.Now so countdown math is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

func sessionKey(timerID string) string { return fmt.Sprintf("utimer_fixed_%s_startedAt", timerID) }
func dismissKey(timerID string) string { return fmt.Sprintf("utimer-dismissed-%s", timerID) }

// RemainingSeconds computes the seconds left for t at the clock's now.
//
// Deadline mode counts down to the configured end instant, clamped at
// zero. Session mode persists the first-encounter instant under the
// timer's key and counts the fixed budget from there; reloads reuse the
// stored start, so the clock never restarts while the store lives.
func RemainingSeconds(t timer.Payload, clock Clock, store Store) int64 {
	switch timer.Mode(t.Mode) {
	case timer.ModeDeadline:
		if t.EndAt == nil {
			return 0
		}
		ms := t.EndAt.Sub(clock.Now()).Milliseconds()
		if ms <= 0 {
			return 0
		}
		return ms / 1000
	case timer.ModeSession:
		nowSec := clock.Now().Unix()
		start := nowSec
		if v, ok := store.Get(sessionKey(t.ID)); ok {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				start = parsed
			}
		} else {
			store.Set(sessionKey(t.ID), strconv.FormatInt(nowSec, 10))
		}
		remaining := int64(t.SessionMinutes)*60 - (nowSec - start)
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return 0
}

// Digits is one countdown frame, already split into display units.
type Digits struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// SplitSeconds breaks a remaining-seconds value into days/hours/minutes/
// seconds, flooring negatives to zero.
func SplitSeconds(total int64) Digits {
	if total < 0 {
		total = 0
	}
	return Digits{
		Days:    int(total / 86400),
		Hours:   int((total % 86400) / 3600),
		Minutes: int((total % 3600) / 60),
		Seconds: int(total % 60),
	}
}

// Pad renders a digit group zero-padded to two characters. Values over
// 99 (day counts) keep their full width.
func Pad(n int) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%02d", n)
}

func (d Digits) IsZero() bool {
	return d.Days == 0 && d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0
}
