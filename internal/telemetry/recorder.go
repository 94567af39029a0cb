// Package telemetry records timer views and feeds the metered usage
// counter that billing reads.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"timer-delivery-engine/internal/observability"
	"timer-delivery-engine/internal/storage"
	"timer-delivery-engine/internal/timer"
)

// ErrTimerNotFound is returned when the timer id does not belong to the
// resolved shop.
var ErrTimerNotFound = errors.New("timer not found")

// Store is the storage surface the recorder needs.
type Store interface {
	FindTimerByIDAndShop(ctx context.Context, id, shop string) (*timer.Timer, error)
	InsertView(ctx context.Context, v timer.View) error
	IncrementViewCount(ctx context.Context, timerID string) error
	IncrementShopUsage(ctx context.Context, shop string) error
}

// RecordRequest carries the optional visitor context of one view.
type RecordRequest struct {
	TimerID   string
	VisitorID string
	IPAddress string
	UserAgent string
	Country   string
	PageURL   string
	PageType  string
	ProductID string
}

// Recorder persists view records and enqueues best-effort shop usage
// increments. The usage queue is drained by a background worker so a
// slow or failing billing counter never blocks delivery.
type Recorder struct {
	store Store
	usage chan string
	now   func() time.Time
}

func NewRecorder(store Store, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		store: store,
		usage: make(chan string, queueSize),
		now:   time.Now,
	}
}

// Record persists one view. The timer must belong to shop. The shop
// usage increment is queued best-effort; a full queue drops it.
func (r *Recorder) Record(ctx context.Context, shop string, req RecordRequest) (string, error) {
	if _, err := r.store.FindTimerByIDAndShop(ctx, req.TimerID, shop); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrTimerNotFound
		}
		return "", fmt.Errorf("resolve timer: %w", err)
	}

	v := timer.View{
		ID:        uuid.NewString(),
		TimerID:   req.TimerID,
		Shop:      shop,
		VisitorID: clamp(req.VisitorID, 128),
		IPAddress: clamp(req.IPAddress, 64),
		UserAgent: clamp(req.UserAgent, 1024),
		Country:   clamp(req.Country, 8),
		PageURL:   clamp(req.PageURL, 2048),
		PageType:  clamp(req.PageType, 64),
		ProductID: clamp(req.ProductID, 128),
		CreatedAt: r.now(),
	}
	if err := r.store.InsertView(ctx, v); err != nil {
		return "", fmt.Errorf("persist view: %w", err)
	}

	if err := r.store.IncrementViewCount(ctx, req.TimerID); err != nil {
		// Aggregate drift is recoverable from the view rows; log and go on.
		log.Warn().Err(err).Str("timer_id", req.TimerID).Msg("view count increment failed")
	}

	select {
	case r.usage <- shop:
	default:
		observability.UsageDropped.Inc()
		log.Warn().Str("shop", shop).Msg("usage queue full; increment dropped")
	}

	observability.ViewsRecorded.Inc()
	return v.ID, nil
}

// RunUsageWorker drains the usage queue until ctx is cancelled. Each
// increment gets one jittered retry; after that it is dropped.
func (r *Recorder) RunUsageWorker(ctx context.Context, baseBackoff time.Duration) {
	log.Info().Msg("usage worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("usage worker stopped")
			return
		case shop := <-r.usage:
			if err := r.store.IncrementShopUsage(ctx, shop); err == nil {
				continue
			} else {
				backoff := jitter(baseBackoff)
				log.Warn().Err(err).Str("shop", shop).Dur("retry_in", backoff).Msg("usage increment failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				if err := r.store.IncrementShopUsage(ctx, shop); err != nil {
					observability.UsageDropped.Inc()
					log.Warn().Err(err).Str("shop", shop).Msg("usage increment dropped after retry")
				}
			}
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x–1.5x
	return time.Duration(float64(base) * factor)
}

func clamp(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
