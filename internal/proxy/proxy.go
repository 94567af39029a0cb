// Package proxy verifies that a storefront request really came through
// the trusted app-proxy hop. The proxy signs every forwarded request by
// HMAC-SHA256 over a canonical rendering of the query parameters and
// attaches the hex digest as the "signature" parameter.
package proxy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Reason identifies why verification failed. Reasons are safe to return
// to the caller; computed digests and secrets never are.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMissingSignature Reason = "missing signature parameter"
	ReasonMissingShop      Reason = "missing shop parameter"
	ReasonMissingSecret    Reason = "shared secret not configured"
	ReasonBadSignature     Reason = "invalid signature"
)

type Result struct {
	Valid bool
	Shop  string
	// Reason is set when Valid is false.
	Reason Reason
	// SignaturePresent distinguishes an absent signature from a wrong
	// one. The dev-mode carve-out in the HTTP layer may only apply when
	// no signature was sent at all.
	SignaturePresent bool
}

// Verify checks the proxy signature carried by rawQuery against secret.
//
// Canonical message: every parameter except "signature", sorted by name,
// rendered as key=value with multi-valued parameters comma-joined, and
// the pairs concatenated. The comparison is constant time over the hex
// digests; a length check runs first so hmac.Equal never sees operands
// of different sizes.
func Verify(rawQuery, secret string) Result {
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Result{Reason: ReasonBadSignature, SignaturePresent: strings.Contains(rawQuery, "signature=")}
	}

	sig := params.Get("signature")
	if sig == "" {
		return Result{Reason: ReasonMissingSignature}
	}

	shop := params.Get("shop")
	if shop == "" {
		return Result{Reason: ReasonMissingShop, SignaturePresent: true}
	}

	if secret == "" {
		return Result{Reason: ReasonMissingSecret, SignaturePresent: true}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalMessage(params)))
	computed := hex.EncodeToString(mac.Sum(nil))

	got := strings.ToLower(sig)
	if len(got) != len(computed) || !hmac.Equal([]byte(got), []byte(computed)) {
		return Result{Reason: ReasonBadSignature, SignaturePresent: true}
	}

	return Result{Valid: true, Shop: shop, SignaturePresent: true}
}

// CanonicalMessage renders params (minus the signature itself) into the
// signed form: keys sorted lexicographically, each as key=value with
// multiple values comma-joined, pairs concatenated without a separator.
func CanonicalMessage(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}

// Sign computes the signature the proxy would attach for params. Used by
// fixtures and the headless client; the server side only ever verifies.
func Sign(params url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalMessage(params)))
	return hex.EncodeToString(mac.Sum(nil))
}
