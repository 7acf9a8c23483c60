package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tickerwall/internal/infra"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// chartResponse mirrors the chart API envelope. Numeric fields decode
// as json.Number so values pass through decimal validation before any
// float conversion.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency                   string      `json:"currency"`
				Symbol                     string      `json:"symbol"`
				MarketState                string      `json:"marketState"`
				RegularMarketPrice         json.Number `json:"regularMarketPrice"`
				PreviousClose              json.Number `json:"previousClose"`
				RegularMarketChangePercent json.Number `json:"regularMarketChangePercent"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// exchangeIndex maps an exchange code to the index symbol whose chart
// metadata carries that exchange's session state.
var exchangeIndex = map[string]string{
	"NASDAQ": "^IXIC",
	"NYSE":   "^NYA",
	"AMEX":   "^XAX",
}

// Client fetches quotes from a chart-shaped HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures Client construction.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint (tests, proxies).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithToken attaches an API token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a quote client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuote returns the current price and prior close for one ticker.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (Quote, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, ticker)

	body, err := c.get(ctx, url)
	if err != nil {
		return Quote{}, err
	}

	meta, err := decodeMeta(body)
	if err != nil {
		return Quote{}, err
	}

	price, err := parsePositive(meta.RegularMarketPrice)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: regularMarketPrice %q", ErrMalformed, meta.RegularMarketPrice)
	}

	q := Quote{
		Ticker:        ticker,
		CurrentPrice:  price,
		FetchedUnixMs: c.now().UnixMilli(),
	}

	// Prior close may legitimately be absent for some listings
	if prior, err := parsePositive(meta.PreviousClose); err == nil {
		q.PriorClose = prior
	}
	if pctDec, err := decimal.NewFromString(meta.RegularMarketChangePercent.String()); err == nil {
		pct := pctDec.InexactFloat64()
		q.PercentChange = &pct
	}

	return q, nil
}

// FetchMarketStatus returns the session state of an exchange, read from
// the chart metadata of its primary index.
func (c *Client) FetchMarketStatus(ctx context.Context, exchange string) (MarketStatus, error) {
	symbol, ok := exchangeIndex[strings.ToUpper(exchange)]
	if !ok {
		symbol = "^GSPC"
	}
	url := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, symbol)

	body, err := c.get(ctx, url)
	if err != nil {
		return MarketStatus{}, err
	}

	meta, err := decodeMeta(body)
	if err != nil {
		return MarketStatus{}, err
	}

	state := strings.ToLower(meta.MarketState)
	status := MarketStatus{Exchange: exchange, Session: "closed"}
	switch {
	case state == "regular":
		status.IsOpen = true
		status.Session = "regular"
	case strings.Contains(state, "pre"):
		status.Session = "pre"
	case strings.Contains(state, "post"):
		status.Session = "post"
	}
	return status, nil
}

// FetchHistory returns intraday samples covering the given window.
func (c *Client) FetchHistory(ctx context.Context, ticker string, window time.Duration) ([]Sample, error) {
	now := c.now()
	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=5m",
		c.baseURL, ticker, now.Add(-window).Unix(), now.Unix())

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if data.Chart.Error != nil || len(data.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty chart result", ErrMalformed)
	}

	result := data.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote series", ErrMalformed)
	}

	closes := result.Indicators.Quote[0].Close
	var samples []Sample
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue // provider emits null closes for halted intervals
		}
		samples = append(samples, Sample{TsUnixMs: ts * 1000, Price: *closes[i]})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no usable samples", ErrMalformed)
	}
	return samples, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.GetPlatformUserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

type chartMeta struct {
	MarketState                string
	RegularMarketPrice         json.Number
	PreviousClose              json.Number
	RegularMarketChangePercent json.Number
}

func decodeMeta(body []byte) (chartMeta, error) {
	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return chartMeta{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if data.Chart.Error != nil {
		return chartMeta{}, fmt.Errorf("%w: %s", ErrMalformed, data.Chart.Error.Code)
	}
	if len(data.Chart.Result) == 0 {
		return chartMeta{}, fmt.Errorf("%w: empty result", ErrMalformed)
	}
	m := data.Chart.Result[0].Meta
	return chartMeta{
		MarketState:                m.MarketState,
		RegularMarketPrice:         m.RegularMarketPrice,
		PreviousClose:              m.PreviousClose,
		RegularMarketChangePercent: m.RegularMarketChangePercent,
	}, nil
}

// parsePositive validates a provider numeric through decimal before
// handing it to the float-based engine.
func parsePositive(n json.Number) (float64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, err
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("non-positive value %s", d)
	}
	return d.InexactFloat64(), nil
}
