package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timer-delivery-engine/internal/storage"
	"timer-delivery-engine/internal/timer"
)

type fakeStore struct {
	timers map[string]string // id -> shop

	views      []timer.View
	insertErr  error
	countErr   error
	usageErr   error
	usageCalls int
	usageCh    chan string
}

func (f *fakeStore) FindTimerByIDAndShop(_ context.Context, id, shop string) (*timer.Timer, error) {
	if owner, ok := f.timers[id]; ok && owner == shop {
		return &timer.Timer{ID: id, Shop: shop}, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) InsertView(_ context.Context, v timer.View) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.views = append(f.views, v)
	return nil
}

func (f *fakeStore) IncrementViewCount(_ context.Context, _ string) error { return f.countErr }

func (f *fakeStore) IncrementShopUsage(_ context.Context, shop string) error {
	f.usageCalls++
	if f.usageCh != nil {
		f.usageCh <- shop
	}
	return f.usageErr
}

func TestRecord_Success(t *testing.T) {
	store := &fakeStore{timers: map[string]string{"t1": "demo.myshop.test"}}
	rec := NewRecorder(store, 8)

	id, err := rec.Record(context.Background(), "demo.myshop.test", RecordRequest{
		TimerID:  "t1",
		PageType: "home",
		Country:  "US",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, store.views, 1)
	v := store.views[0]
	assert.Equal(t, id, v.ID)
	assert.Equal(t, "t1", v.TimerID)
	assert.Equal(t, "demo.myshop.test", v.Shop)
	assert.Equal(t, "US", v.Country)
	assert.False(t, v.CreatedAt.IsZero())
}

func TestRecord_NotFound(t *testing.T) {
	store := &fakeStore{timers: map[string]string{"t1": "demo.myshop.test"}}
	rec := NewRecorder(store, 8)

	tests := []struct {
		name    string
		shop    string
		timerID string
	}{
		{"unknown id", "demo.myshop.test", "nope"},
		{"another shop's timer", "other.myshop.test", "t1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.Record(context.Background(), tt.shop, RecordRequest{TimerID: tt.timerID})
			assert.ErrorIs(t, err, ErrTimerNotFound)
			assert.Empty(t, store.views)
		})
	}
}

func TestRecord_InsertFailureSurfaces(t *testing.T) {
	store := &fakeStore{
		timers:    map[string]string{"t1": "demo.myshop.test"},
		insertErr: errors.New("disk full"),
	}
	rec := NewRecorder(store, 8)

	_, err := rec.Record(context.Background(), "demo.myshop.test", RecordRequest{TimerID: "t1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimerNotFound)
}

// Aggregate counter failures never fail the record operation.
func TestRecord_ViewCountFailureSwallowed(t *testing.T) {
	store := &fakeStore{
		timers:   map[string]string{"t1": "demo.myshop.test"},
		countErr: errors.New("counter offline"),
	}
	rec := NewRecorder(store, 8)

	id, err := rec.Record(context.Background(), "demo.myshop.test", RecordRequest{TimerID: "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRecord_ClampsLongFields(t *testing.T) {
	store := &fakeStore{timers: map[string]string{"t1": "demo.myshop.test"}}
	rec := NewRecorder(store, 8)

	_, err := rec.Record(context.Background(), "demo.myshop.test", RecordRequest{
		TimerID: "t1",
		PageURL: strings.Repeat("x", 5000),
		Country: "TOOLONGCODE",
	})
	require.NoError(t, err)
	require.Len(t, store.views, 1)
	assert.Len(t, store.views[0].PageURL, 2048)
	assert.Len(t, store.views[0].Country, 8)
}

func TestUsageWorker_DrainsQueue(t *testing.T) {
	store := &fakeStore{
		timers:  map[string]string{"t1": "demo.myshop.test"},
		usageCh: make(chan string, 4),
	}
	rec := NewRecorder(store, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.RunUsageWorker(ctx, 10*time.Millisecond)

	_, err := rec.Record(ctx, "demo.myshop.test", RecordRequest{TimerID: "t1"})
	require.NoError(t, err)

	select {
	case shop := <-store.usageCh:
		assert.Equal(t, "demo.myshop.test", shop)
	case <-time.After(2 * time.Second):
		t.Fatal("usage increment never reached the store")
	}
}

// A failing usage counter is retried once, then dropped without
// affecting recording.
func TestUsageWorker_FailureIsBestEffort(t *testing.T) {
	store := &fakeStore{
		timers:   map[string]string{"t1": "demo.myshop.test"},
		usageErr: errors.New("billing offline"),
		usageCh:  make(chan string, 4),
	}
	rec := NewRecorder(store, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.RunUsageWorker(ctx, time.Millisecond)

	id, err := rec.Record(ctx, "demo.myshop.test", RecordRequest{TimerID: "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Initial attempt plus one retry.
	for i := 0; i < 2; i++ {
		select {
		case <-store.usageCh:
		case <-time.After(2 * time.Second):
			t.Fatal("expected usage attempt")
		}
	}
	select {
	case <-store.usageCh:
		t.Fatal("no third attempt expected")
	case <-time.After(50 * time.Millisecond):
	}
}
