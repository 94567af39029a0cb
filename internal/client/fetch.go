package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timer-delivery-engine/internal/proxy"
	"timer-delivery-engine/internal/timer"
)

// Client fetches eligible timers from the delivery endpoint and reports
// views. Transport failures and malformed payloads degrade to zero
// timers; the page must never break because the engine was unreachable.
type Client struct {
	// Endpoint is the delivery URL, e.g. "https://host/proxy/timers".
	Endpoint string
	// ViewEndpoint receives view reports. Derived from Endpoint when empty.
	ViewEndpoint string
	// Secret, when set, self-signs requests the way the proxy hop would.
	// Used by the headless client and tests; in a storefront the proxy
	// adds the signature.
	Secret string

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) buildQuery(ctx timer.VisitorContext) url.Values {
	params := url.Values{}
	params.Set("shop", ctx.Shop)
	if ctx.PageType != "" {
		params.Set("pageType", ctx.PageType)
	}
	if ctx.PageURL != "" {
		params.Set("pageUrl", ctx.PageURL)
	}
	if ctx.ProductID != "" {
		params.Set("productId", ctx.ProductID)
	}
	if ctx.Country != "" {
		params.Set("country", ctx.Country)
	}
	if len(ctx.CollectionIDs) > 0 {
		params.Set("collectionIds", strings.Join(ctx.CollectionIDs, ","))
	}
	if len(ctx.ProductTags) > 0 {
		params.Set("productTags", strings.Join(ctx.ProductTags, ","))
	}
	if c.Secret != "" {
		params.Set("signature", proxy.Sign(params, c.Secret))
	}
	return params
}

// FetchTimers performs the one delivery call of a page load. Any failure
// is logged to the debug channel and returned as zero timers; callers do
// not retry within the same page life.
func (c *Client) FetchTimers(ctx context.Context, vctx timer.VisitorContext) []timer.Payload {
	u := c.Endpoint
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	u += sep + c.buildQuery(vctx).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.Logger.Debug().Err(err).Msg("build timers request")
		return nil
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Logger.Debug().Err(err).Msg("fetch timers")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.Logger.Debug().Int("status", resp.StatusCode).Msg("fetch timers: non-200")
		return nil
	}

	var body struct {
		Timers []timer.Payload `json:"timers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.Logger.Debug().Err(err).Msg("decode timers response")
		return nil
	}
	return body.Timers
}

func (c *Client) viewEndpoint() string {
	if c.ViewEndpoint != "" {
		return c.ViewEndpoint
	}
	return strings.TrimSuffix(c.Endpoint, "/timers") + "/views"
}

// ReportView posts one view beacon, best-effort.
func (c *Client) ReportView(ctx context.Context, vctx timer.VisitorContext, timerID string) {
	payload, err := json.Marshal(map[string]string{
		"timerId":   timerID,
		"pageUrl":   vctx.PageURL,
		"pageType":  vctx.PageType,
		"productId": vctx.ProductID,
		"country":   vctx.Country,
	})
	if err != nil {
		return
	}

	u := c.viewEndpoint()
	if c.Secret != "" {
		params := url.Values{}
		params.Set("shop", vctx.Shop)
		params.Set("signature", proxy.Sign(params, c.Secret))
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + params.Encode()
	} else {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "shop=" + url.QueryEscape(vctx.Shop)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Logger.Debug().Err(err).Str("timer_id", timerID).Msg("report view")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.Logger.Debug().Int("status", resp.StatusCode).Str("timer_id", timerID).Msg("report view rejected")
	}
}
