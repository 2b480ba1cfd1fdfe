package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// DefaultFuturesURL is the Binance USD-M futures REST endpoint.
const DefaultFuturesURL = "https://fapi.binance.com"

// Binance talks to the USD-M futures REST API. Signed endpoints carry an
// HMAC-SHA256 signature over the encoded query string, hex encoded, with the
// API key in the X-MBX-APIKEY header.
type Binance struct {
	baseURL   string
	apiKey    string
	secretKey []byte
	client    *http.Client
	logger    *zap.Logger

	// now is swapped out in tests for deterministic timestamps.
	now func() time.Time
}

func NewBinance(baseURL, apiKey, secretKey string, logger *zap.Logger) *Binance {
	if baseURL == "" {
		baseURL = DefaultFuturesURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binance{
		baseURL:   baseURL,
		apiKey:    apiKey,
		secretKey: []byte(secretKey),
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		now:       time.Now,
	}
}

func (b *Binance) ServerTime(ctx context.Context) (time.Time, error) {
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := b.public(ctx, "/fapi/v1/time", nil, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime).UTC(), nil
}

func (b *Binance) RecentKLine(ctx context.Context, symbol string) (model.KLine, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1m")
	params.Set("limit", "1")

	// Each entry is [openTime, open, high, low, close, ...] with prices as
	// strings.
	var raw [][]json.RawMessage
	if err := b.public(ctx, "/fapi/v1/klines", params, &raw); err != nil {
		return model.KLine{}, err
	}
	if len(raw) == 0 {
		return model.KLine{}, fmt.Errorf("empty kline response for %s", symbol)
	}
	return parseKLine(raw[0])
}

// KLines returns up to `limit` 1-minute candles ending at endTime, oldest
// first.
func (b *Binance) KLines(ctx context.Context, symbol string, limit int, endTime time.Time) ([]model.KLine, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1m")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("endTime", strconv.FormatInt(endTime.UnixMilli(), 10))

	var raw [][]json.RawMessage
	if err := b.public(ctx, "/fapi/v1/klines", params, &raw); err != nil {
		return nil, err
	}

	candles := make([]model.KLine, 0, len(raw))
	for _, entry := range raw {
		k, err := parseKLine(entry)
		if err != nil {
			return nil, err
		}
		candles = append(candles, k)
	}
	return candles, nil
}

func parseKLine(entry []json.RawMessage) (model.KLine, error) {
	if len(entry) < 5 {
		return model.KLine{}, fmt.Errorf("malformed kline entry: %d fields", len(entry))
	}

	var openTime int64
	if err := json.Unmarshal(entry[0], &openTime); err != nil {
		return model.KLine{}, fmt.Errorf("kline open time: %w", err)
	}

	prices := make([]decimal.Decimal, 4)
	for i := 0; i < 4; i++ {
		var s string
		if err := json.Unmarshal(entry[i+1], &s); err != nil {
			return model.KLine{}, fmt.Errorf("kline price field %d: %w", i+1, err)
		}
		p, err := decimal.NewFromString(s)
		if err != nil {
			return model.KLine{}, fmt.Errorf("kline price field %d: %w", i+1, err)
		}
		prices[i] = p
	}

	return model.KLine{
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Timestamp: time.UnixMilli(openTime).UTC(),
	}, nil
}

func (b *Binance) PlaceOrder(ctx context.Context, symbol string, side model.Side, price, quantity decimal.Decimal) (*model.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", quantity.String())
	params.Set("price", price.StringFixed(4))

	var resp struct {
		OrderID    int64             `json:"orderId"`
		Status     model.OrderStatus `json:"status"`
		UpdateTime int64             `json:"updateTime"`
	}
	if err := b.signed(ctx, http.MethodPost, "/fapi/v1/order", params, &resp); err != nil {
		return nil, err
	}

	return &model.Order{
		OrderTime: time.UnixMilli(resp.UpdateTime).UTC(),
		OrderID:   resp.OrderID,
		Status:    resp.Status,
	}, nil
}

func (b *Binance) QueryOrder(ctx context.Context, symbol string, orderID int64) (OrderUpdate, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	var resp struct {
		Status model.OrderStatus `json:"status"`
		Price  decimal.Decimal   `json:"price"`
	}
	if err := b.signed(ctx, http.MethodGet, "/fapi/v1/order", params, &resp); err != nil {
		return OrderUpdate{}, err
	}
	return OrderUpdate{Status: resp.Status, Price: resp.Price}, nil
}

func (b *Binance) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	return b.signed(ctx, http.MethodDelete, "/fapi/v1/order", params, nil)
}

func (b *Binance) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	return b.signed(ctx, http.MethodPost, "/fapi/v1/leverage", params, nil)
}

func (b *Binance) public(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := b.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return b.do(req, out)
}

func (b *Binance) signed(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))

	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)
	return b.do(req, out)
}

func (b *Binance) sign(payload string) string {
	mac := hmac.New(sha256.New, b.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *Binance) do(req *http.Request, out interface{}) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		b.logger.Error("exchange request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
