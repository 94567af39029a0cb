// Package eligibility decides which configured timers apply to a visitor
// context. The same predicates run server-side in the delivery endpoint
// and client-side as a defensive re-check before mounting.
package eligibility

import (
	"strings"
	"time"

	"timer-delivery-engine/internal/timer"
)

// Result pairs a retained candidate with whether its deadline already
// passed. Ended candidates survive only under the "keep" expiry policy.
type Result struct {
	Timer timer.Timer
	Ended bool
}

// Filter returns the candidates that should be shown to ctx at now, in
// input order. Predicates short-circuit per candidate: scheduling,
// expiry, geolocation, page selection (bar kind), product selection.
// The filter neither orders nor deduplicates; anchor precedence is the
// renderer's concern.
func Filter(candidates []timer.Timer, ctx timer.VisitorContext, now time.Time) []Result {
	out := make([]Result, 0, len(candidates))
	for _, t := range candidates {
		if !hasStarted(t, now) {
			continue
		}

		ended := Ended(t, now)
		if ended && (t.OnExpiry == timer.ExpiryUnpublish || t.OnExpiry == timer.ExpiryHide) {
			continue
		}

		if !matchesGeolocation(t, ctx) {
			continue
		}

		if t.Kind == timer.KindBar && !MatchesPageSelection(t, ctx) {
			continue
		}

		if !MatchesProductSelection(t, ctx) {
			continue
		}

		out = append(out, Result{Timer: t, Ended: ended})
	}
	return out
}

func hasStarted(t timer.Timer, now time.Time) bool {
	return t.StartsAt == nil || !t.StartsAt.After(now)
}

// Ended reports whether a deadline-mode timer's end instant has passed.
// Session-mode timers never end server-side; their budget is clocked per
// visitor in browser storage.
func Ended(t timer.Timer, now time.Time) bool {
	if t.Mode != timer.ModeDeadline || t.EndAt == nil {
		return false
	}
	return !t.EndAt.After(now)
}

func matchesGeolocation(t timer.Timer, ctx timer.VisitorContext) bool {
	switch t.Geolocation {
	case timer.GeoAllWorld, "":
		return true
	case timer.GeoSpecificCountries:
		if ctx.Country == "" {
			return false
		}
		visitor := strings.ToUpper(ctx.Country)
		for _, c := range t.Countries {
			if strings.ToUpper(c) == visitor {
				return true
			}
		}
		return false
	}
	// Unknown mode passes. Mode strings are a closed enumeration at the
	// storage boundary, so this is unreachable for well-formed configs.
	return true
}

// MatchesPageSelection checks a bar-kind timer's page targeting against
// the visitor's page type and URL.
func MatchesPageSelection(t timer.Timer, ctx timer.VisitorContext) bool {
	mode := t.PageSelection
	if mode == "" || mode == timer.PagesEvery {
		return true
	}
	if mode.IsSpecific() {
		return matchesSpecificPages(t.SpecificPages, ctx.PageURL)
	}

	switch mode {
	case timer.PagesHome:
		return ctx.PageType == "home"
	case timer.PagesAllProducts:
		return ctx.PageType == "product"
	case timer.PagesAllCollections:
		return ctx.PageType == "collection"
	case timer.PagesCart:
		return ctx.PageType == "cart"
	case timer.PagesCustom:
		// Placement enforced by the merchant's theme, not this engine.
		return true
	}
	return true
}

func matchesSpecificPages(pages []string, pageURL string) bool {
	if len(pages) == 0 {
		return false
	}
	u := strings.ToLower(pageURL)
	for _, p := range pages {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if u == p || strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

// MatchesProductSelection checks product targeting. An exclusion-list hit
// denies regardless of mode, including when the inclusion list would
// also have matched.
func MatchesProductSelection(t timer.Timer, ctx timer.VisitorContext) bool {
	if ctx.ProductID != "" && contains(t.ExcludedProducts, ctx.ProductID) {
		return false
	}

	switch t.ProductSelection {
	case timer.ProductsAll, "":
		return true
	case timer.ProductsSpecific:
		return ctx.ProductID != "" && contains(t.SelectedProducts, ctx.ProductID)
	case timer.ProductsCollections:
		if len(ctx.CollectionIDs) == 0 || len(t.SelectedCollections) == 0 {
			return false
		}
		for _, cid := range t.SelectedCollections {
			if contains(ctx.CollectionIDs, cid) {
				return true
			}
		}
		return false
	case timer.ProductsTags:
		if len(ctx.ProductTags) == 0 || len(t.ProductTags) == 0 {
			return false
		}
		for _, tag := range t.ProductTags {
			for _, vt := range ctx.ProductTags {
				if strings.EqualFold(tag, vt) {
					return true
				}
			}
		}
		return false
	case timer.ProductsCustom:
		return true
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
