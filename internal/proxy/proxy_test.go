package proxy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "hush"

func signedQuery(t *testing.T, params url.Values) string {
	t.Helper()
	sig := Sign(params, testSecret)
	params.Set("signature", sig)
	return params.Encode()
}

func TestVerify_Valid(t *testing.T) {
	q := signedQuery(t, url.Values{
		"shop":      {"demo.myshop.test"},
		"pageType":  {"home"},
		"timestamp": {"1700000000"},
	})

	res := Verify(q, testSecret)
	assert.True(t, res.Valid)
	assert.Equal(t, "demo.myshop.test", res.Shop)
	assert.Equal(t, ReasonNone, res.Reason)
}

func TestVerify_KnownFixture(t *testing.T) {
	// Canonical message for {shop, timestamp}: sorted keys, key=value
	// pairs concatenated. Pinned so the canonicalization can never
	// drift silently; there is exactly one scheme.
	params := url.Values{
		"shop":      {"demo.myshop.test"},
		"timestamp": {"1700000000"},
	}
	require.Equal(t, "shop=demo.myshop.testtimestamp=1700000000", CanonicalMessage(params))
}

func TestVerify_MultiValuedParamsCommaJoined(t *testing.T) {
	params := url.Values{
		"shop": {"demo.myshop.test"},
		"ids":  {"1", "2", "3"},
	}
	require.Equal(t, "ids=1,2,3shop=demo.myshop.test", CanonicalMessage(params))

	q := signedQuery(t, params)
	assert.True(t, Verify(q, testSecret).Valid)
}

func TestVerify_SignatureCaseInsensitive(t *testing.T) {
	params := url.Values{"shop": {"demo.myshop.test"}}
	sig := Sign(params, testSecret)
	params.Set("signature", upper(sig))

	assert.True(t, Verify(params.Encode(), testSecret).Valid)
}

func TestVerify_Failures(t *testing.T) {
	valid := url.Values{"shop": {"demo.myshop.test"}}
	sig := Sign(valid, testSecret)

	tests := []struct {
		name       string
		query      string
		secret     string
		wantReason Reason
		sigPresent bool
	}{
		{
			name:       "missing signature",
			query:      "shop=demo.myshop.test",
			secret:     testSecret,
			wantReason: ReasonMissingSignature,
			sigPresent: false,
		},
		{
			name:       "missing shop",
			query:      "signature=" + sig,
			secret:     testSecret,
			wantReason: ReasonMissingShop,
			sigPresent: true,
		},
		{
			name:       "missing secret",
			query:      "shop=demo.myshop.test&signature=" + sig,
			secret:     "",
			wantReason: ReasonMissingSecret,
			sigPresent: true,
		},
		{
			name:       "wrong secret",
			query:      "shop=demo.myshop.test&signature=" + sig,
			secret:     "other",
			wantReason: ReasonBadSignature,
			sigPresent: true,
		},
		{
			name:       "truncated signature",
			query:      "shop=demo.myshop.test&signature=" + sig[:10],
			secret:     testSecret,
			wantReason: ReasonBadSignature,
			sigPresent: true,
		},
		{
			name:       "extra unsigned parameter",
			query:      "shop=demo.myshop.test&extra=1&signature=" + sig,
			secret:     testSecret,
			wantReason: ReasonBadSignature,
			sigPresent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify(tt.query, tt.secret)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.sigPresent, res.SignaturePresent)
			assert.Empty(t, res.Shop)
		})
	}
}

// Any single-character mutation of a valid signature must be rejected.
func TestVerify_SingleCharMutations(t *testing.T) {
	params := url.Values{"shop": {"demo.myshop.test"}, "pageType": {"product"}}
	sig := Sign(params, testSecret)

	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == 'f' {
			mutated[i] = '0'
		} else {
			mutated[i] = 'f'
		}
		if string(mutated) == sig {
			continue
		}
		q := "shop=demo.myshop.test&pageType=product&signature=" + string(mutated)
		res := Verify(q, testSecret)
		if res.Valid {
			t.Fatalf("mutation at position %d accepted", i)
		}
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
