package client

import (
	"context"
	"sync"

	"timer-delivery-engine/internal/cache"
	"timer-delivery-engine/internal/eligibility"
	"timer-delivery-engine/internal/timer"
)

// Runtime is the page-level driver: one fetch per page load, then mount
// eligible timers onto their anchors and start their tick loops. It
// re-applies the product/page predicates defensively before mounting, in
// case the endpoint response was cached for a different context.
type Runtime struct {
	Client *Client
	Store  Store
	Clock  Clock

	// ProductAnchors are the product-block mount points found on the
	// page. Bars mount independently of anchors.
	ProductAnchors []*Anchor

	fetchOnce sync.Once
	fetched   cache.Snapshot[[]timer.Payload]

	mu        sync.Mutex
	instances []*Instance
	barHTML   []*Anchor
}

// timers performs the single fetch of this page life and caches the
// result for every mount call.
func (rt *Runtime) timers(ctx context.Context, vctx timer.VisitorContext) []timer.Payload {
	rt.fetchOnce.Do(func() {
		rt.fetched.Store(rt.Client.FetchTimers(ctx, vctx))
	})
	ts, _ := rt.fetched.Load()
	return ts
}

func (rt *Runtime) clock() Clock {
	if rt.Clock != nil {
		return rt.Clock
	}
	return SystemClock
}

// Mount fetches (once), filters, and mounts everything: product timers
// into anchors, bar timers globally. Every successful mount reports one
// view. Returns the started instances.
func (rt *Runtime) Mount(ctx context.Context, vctx timer.VisitorContext) []*Instance {
	ts := rt.timers(ctx, vctx)
	if len(ts) == 0 {
		return nil
	}

	var mounted []*Instance
	mounted = append(mounted, rt.mountProducts(ctx, vctx, ts)...)
	mounted = append(mounted, rt.mountBars(ctx, vctx, ts)...)

	rt.mu.Lock()
	rt.instances = append(rt.instances, mounted...)
	rt.mu.Unlock()
	return mounted
}

// mountProducts mounts at most one product-kind timer per anchor. An
// anchor pinned to a timer id only accepts that timer; otherwise the
// first eligible candidate wins.
func (rt *Runtime) mountProducts(ctx context.Context, vctx timer.VisitorContext, ts []timer.Payload) []*Instance {
	var mounted []*Instance
	for _, anchor := range rt.ProductAnchors {
		for _, t := range ts {
			if t.Kind != string(timer.KindProduct) {
				continue
			}
			if anchor.TimerID != "" && anchor.TimerID != t.ID {
				continue
			}
			if !eligibility.MatchesProductSelection(payloadTargeting(t), vctx) {
				continue
			}

			in := NewInstance(t, NewHTMLDisplay(anchor, false), rt.Store, rt.clock())
			in.Start(ctx)
			rt.Client.ReportView(ctx, vctx, t.ID)
			mounted = append(mounted, in)
			break
		}
	}
	return mounted
}

// mountBars mounts every eligible bar-kind timer independently, skipping
// bars the visitor dismissed earlier. On product pages the product
// predicate applies to bars too.
func (rt *Runtime) mountBars(ctx context.Context, vctx timer.VisitorContext, ts []timer.Payload) []*Instance {
	var mounted []*Instance
	for _, t := range ts {
		if t.Kind != string(timer.KindBar) {
			continue
		}
		if !eligibility.MatchesPageSelection(payloadTargeting(t), vctx) {
			continue
		}
		if vctx.PageType == "product" && vctx.ProductID != "" &&
			!eligibility.MatchesProductSelection(payloadTargeting(t), vctx) {
			continue
		}
		if _, dismissed := rt.Store.Get(dismissKey(t.ID)); dismissed {
			continue
		}

		anchor := &Anchor{TimerID: t.ID}
		rt.mu.Lock()
		rt.barHTML = append(rt.barHTML, anchor)
		rt.mu.Unlock()

		in := NewInstance(t, NewHTMLDisplay(anchor, true), rt.Store, rt.clock())
		in.Start(ctx)
		rt.Client.ReportView(ctx, vctx, t.ID)
		mounted = append(mounted, in)
	}
	return mounted
}

// Dismiss records the visitor's dismissal of a bar durably and unmounts
// its instance. The bar stays suppressed on later page loads until the
// store is cleared.
func (rt *Runtime) Dismiss(timerID string) {
	rt.Store.Set(dismissKey(timerID), "1")

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, in := range rt.instances {
		if in.t.ID == timerID {
			in.Unmount()
		}
	}
}

// Bars returns the anchors holding mounted bar markup, in mount order.
func (rt *Runtime) Bars() []*Anchor {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]*Anchor(nil), rt.barHTML...)
}

// payloadTargeting lifts the targeting echo of a Payload back into the
// shape the eligibility predicates evaluate.
func payloadTargeting(p timer.Payload) timer.Timer {
	kind, _ := timer.ParseKind(p.Kind)
	productSel, _ := timer.ParseProductSelection(p.ProductSelection)
	pageSel, _ := timer.ParsePageSelection(p.PageSelection)
	return timer.Timer{
		ID:                  p.ID,
		Kind:                kind,
		ProductSelection:    productSel,
		SelectedProducts:    p.SelectedProducts,
		SelectedCollections: p.SelectedCollections,
		ExcludedProducts:    p.ExcludedProducts,
		ProductTags:         p.ProductTags,
		PageSelection:       pageSel,
		SpecificPages:       p.SpecificPages,
	}
}
