package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chu0802/CryptoTrader/internal/model"
)

func TestRecentKLineParsesPriceStrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[[1709294400000,"67000.10","67250.00","66800.50","67100.00","12.3",1709294459999]]`))
	}))
	defer server.Close()

	b := NewBinance(server.URL, "", "", nil)
	k, err := b.RecentKLine(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.True(t, k.Open.Equal(decimal.RequireFromString("67000.10")))
	assert.True(t, k.High.Equal(decimal.RequireFromString("67250.00")))
	assert.True(t, k.Low.Equal(decimal.RequireFromString("66800.50")))
	assert.True(t, k.Close.Equal(decimal.RequireFromString("67100.00")))
	assert.Equal(t, time.UnixMilli(1709294400000).UTC(), k.Timestamp)
}

func TestPlaceOrderSignsRequest(t *testing.T) {
	const secret = "test-secret"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "api-key", r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.Query()
		assert.Equal(t, "LIMIT", q.Get("type"))
		assert.Equal(t, "GTC", q.Get("timeInForce"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "67000.0000", q.Get("price"))

		// The signature must cover the rest of the query string.
		raw := r.URL.RawQuery
		idx := len(raw) - len("&signature=") - 64
		payload, sig := raw[:idx], q.Get("signature")
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig)

		w.Write([]byte(`{"orderId":7,"status":"NEW","updateTime":1709294400000}`))
	}))
	defer server.Close()

	b := NewBinance(server.URL, "api-key", secret, nil)
	b.now = func() time.Time { return time.UnixMilli(1709294400000) }

	order, err := b.PlaceOrder(context.Background(), "BTCUSDT", model.SideBuy,
		decimal.NewFromInt(67000), decimal.RequireFromString("0.03"))
	require.NoError(t, err)

	assert.Equal(t, int64(7), order.OrderID)
	assert.Equal(t, model.OrderStatusNew, order.Status)
	assert.Equal(t, time.UnixMilli(1709294400000).UTC(), order.OrderTime)
}

func TestQueryOrderStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("orderId"))
		w.Write([]byte(`{"status":"FILLED","price":"67000.00"}`))
	}))
	defer server.Close()

	b := NewBinance(server.URL, "api-key", "secret", nil)
	update, err := b.QueryOrder(context.Background(), "BTCUSDT", 7)
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusFilled, update.Status)
	assert.True(t, update.Price.Equal(decimal.NewFromInt(67000)))
}

func TestErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1102,"msg":"Mandatory parameter missing"}`))
	}))
	defer server.Close()

	b := NewBinance(server.URL, "api-key", "secret", nil)
	err := b.CancelOrder(context.Background(), "BTCUSDT", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
