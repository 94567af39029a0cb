package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"timer-delivery-engine/internal/eligibility"
	"timer-delivery-engine/internal/observability"
	"timer-delivery-engine/internal/proxy"
	"timer-delivery-engine/internal/telemetry"
	"timer-delivery-engine/internal/timer"
)

// TimerStore is the storage surface the delivery endpoint needs.
type TimerStore interface {
	FindPublishedActiveTimers(ctx context.Context, shop, kind string) ([]timer.Timer, error)
}

type Handler struct {
	Store    TimerStore
	Recorder *telemetry.Recorder
	// Secret is the shared app-proxy secret.
	Secret string
	// Dev enables the narrow no-signature carve-out. A provided-but-wrong
	// signature is rejected in every mode.
	Dev bool

	now func() time.Time
}

func NewHandler(store TimerStore, rec *telemetry.Recorder, secret string, dev bool) *Handler {
	return &Handler{Store: store, Recorder: rec, Secret: secret, Dev: dev, now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// authenticate verifies the proxy signature and resolves the shop.
// On failure it writes the 401 response and returns ok=false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	res := proxy.Verify(r.URL.RawQuery, h.Secret)
	if res.Valid {
		return res.Shop, true
	}

	shopParam := r.URL.Query().Get("shop")
	if h.Dev && !res.SignaturePresent && shopParam != "" {
		log.Debug().Str("shop", shopParam).Msg("dev mode: unsigned request admitted")
		return shopParam, true
	}

	observability.AuthFailures.WithLabelValues(string(res.Reason)).Inc()
	log.Warn().
		Str("reason", string(res.Reason)).
		Str("shop", shopParam).
		Str("path", r.URL.Path).
		Msg("proxy signature rejected")

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": string(res.Reason)})
	return "", false
}

func visitorContext(shop string, q map[string][]string) timer.VisitorContext {
	get := func(k string) string {
		if v, ok := q[k]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	pageURL := get("pageUrl")
	if pageURL == "" {
		pageURL = get("url")
	}
	return timer.VisitorContext{
		Shop:          shop,
		PageType:      strings.ToLower(get("pageType")),
		ProductID:     get("productId"),
		CollectionIDs: splitList(get("collectionIds")),
		ProductTags:   lowerAll(splitList(get("productTags"))),
		PageURL:       pageURL,
		Country:       strings.ToUpper(get("country")),
	}
}

// Delivery serves GET /proxy/timers: authenticate, fetch the shop's
// published active candidates, filter for the visitor, serialize.
func (h *Handler) Delivery(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	ctx := visitorContext(shop, q)

	kind := ""
	if k, err := timer.ParseKind(q.Get("type")); err == nil {
		kind = string(k)
	}

	candidates, err := h.Store.FindPublishedActiveTimers(r.Context(), shop, kind)
	if err != nil {
		log.Error().Err(err).Str("shop", shop).Msg("fetch timers failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch timers"})
		return
	}

	now := h.now()
	results := eligibility.Filter(candidates, ctx, now)

	payloads := make([]timer.Payload, 0, len(results))
	for _, res := range results {
		payloads = append(payloads, res.Timer.ToPayload(res.Ended))
	}
	observability.TimersDelivered.Observe(float64(len(payloads)))

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, map[string]any{"timers": payloads})
}

type viewRequest struct {
	TimerID   string `json:"timerId"`
	VisitorID string `json:"visitorId"`
	Country   string `json:"country"`
	PageURL   string `json:"pageUrl"`
	PageType  string `json:"pageType"`
	ProductID string `json:"productId"`
}

// RecordView serves POST /proxy/views. JSON and form-encoded bodies are
// both accepted since beacons often cannot set a content type.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, err := parseViewRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.TimerID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required field: timerId"})
		return
	}

	rec := telemetry.RecordRequest{
		TimerID:   strings.TrimSpace(req.TimerID),
		VisitorID: req.VisitorID,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Country:   firstNonEmpty(req.Country, geoCountry(r)),
		PageURL:   req.PageURL,
		PageType:  strings.ToLower(req.PageType),
		ProductID: req.ProductID,
	}

	id, err := h.Recorder.Record(r.Context(), shop, rec)
	switch {
	case errors.Is(err, telemetry.ErrTimerNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "timer not found for this shop"})
	case err != nil:
		log.Error().Err(err).Str("shop", shop).Str("timer_id", rec.TimerID).Msg("record view failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record view"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
	}
}

func parseViewRequest(r *http.Request) (viewRequest, error) {
	var req viewRequest
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || ct == "" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.TimerID = r.PostFormValue("timerId")
	req.VisitorID = r.PostFormValue("visitorId")
	req.Country = r.PostFormValue("country")
	req.PageURL = r.PostFormValue("pageUrl")
	req.PageType = r.PostFormValue("pageType")
	req.ProductID = r.PostFormValue("productId")
	return req, nil
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	for _, h := range []string{"CF-Connecting-IP", "X-Real-IP", "Fly-Client-IP"} {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return r.RemoteAddr
}

func geoCountry(r *http.Request) string {
	for _, h := range []string{"CF-IPCountry", "X-Country-Code", "X-Vercel-IP-Country", "X-Geo-Country"} {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(ss []string) []string {
	for i, s := range ss {
		ss[i] = strings.ToLower(s)
	}
	return ss
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
