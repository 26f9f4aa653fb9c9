package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newTestClient(baseURL string) *Client {
	c := NewClient("test-key", testSecret, baseURL, 5*time.Second, zap.NewNop())
	// Pin the timestamp so signatures are reproducible across calls.
	fixed := time.UnixMilli(1700000000000)
	c.now = func() time.Time { return fixed }
	return c
}

// expectedSignature recomputes the canonical signature for a parameter set.
func expectedSignature(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignDeterministic(t *testing.T) {
	c := newTestClient("http://unused")
	params := map[string]string{"symbol": "BTCUSDT", "timestamp": "1700000000000", "api_key": "test-key"}

	first := c.sign(params)
	second := c.sign(params)
	assert.Equal(t, first, second, "same parameter set must sign identically")

	params["symbol"] = "ETHUSDT"
	assert.NotEqual(t, first, c.sign(params), "changing any value must change the signature")
}

func TestSignCanonicalOrdering(t *testing.T) {
	c := newTestClient("http://unused")
	params := map[string]string{"b": "2", "a": "1", "c": "3"}

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("a=1&b=2&c=3"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), c.sign(params))
}

func TestSendAppendsAuthAndValidSignature(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = make(map[string]string)
		for k, v := range r.URL.Query() {
			received[k] = v[0]
		}
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Send(context.Background(), http.MethodGet, "/v5/market/kline", map[string]string{"symbol": "BTCUSDT"})
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, "test-key", received["api_key"])
	assert.Equal(t, "1700000000000", received["timestamp"])
	assert.Equal(t, "BTCUSDT", received["symbol"])

	// The signature must verify against the exact transmitted set minus sign.
	sign := received["sign"]
	require.NotEmpty(t, sign)
	delete(received, "sign")
	assert.Equal(t, expectedSignature(testSecret, received), sign)
}

func TestSendPostBodySigned(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"42"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	result, err := c.Send(context.Background(), http.MethodPost, "/v5/order/create", map[string]string{
		"symbol":     "BTCUSDT",
		"reduceOnly": BoolParam(true),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"42"}`, string(result))

	assert.Equal(t, "true", received["reduceOnly"], "booleans travel as lowercase string literals")
	sign := received["sign"]
	delete(received, "sign")
	assert.Equal(t, expectedSignature(testSecret, received), sign)
}

func TestSendDoesNotMutateCallerParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	params := map[string]string{"symbol": "BTCUSDT"}
	_, err := c.Send(context.Background(), http.MethodGet, "/x", params)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"symbol": "BTCUSDT"}, params)
}

func TestSendHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Send(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindHTTPStatus))

	reqErr := err.(*RequestError)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "maintenance")
}

func TestSendDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Send(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDecode))
}

func TestSendApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Send(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindApplication))

	reqErr := err.(*RequestError)
	assert.Equal(t, 10001, reqErr.RetCode)
	assert.Equal(t, "params error", reqErr.RetMsg)
}

func TestSendNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := newTestClient(server.URL)
	_, err := c.Send(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
}

func TestBoolParam(t *testing.T) {
	assert.Equal(t, "true", BoolParam(true))
	assert.Equal(t, "false", BoolParam(false))
}

func TestSanitizeDropsSignature(t *testing.T) {
	out := sanitize(map[string]string{"sign": "abc", "symbol": "BTCUSDT"})
	assert.NotContains(t, out, "sign")
	assert.Contains(t, out, "symbol")
}
