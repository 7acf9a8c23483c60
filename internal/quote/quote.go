// Package quote abstracts the live market data feed: one-shot quote
// polls, exchange session status and intraday history backfill.
package quote

import (
	"context"
	"errors"
	"time"
)

// Failure taxonomy. Transient network errors are returned wrapped and
// unclassified; everything the engine branches on is a sentinel.
var (
	// ErrRateLimited means the provider rejected the call with a
	// rate-limit status. The shared limiter must enter its cool-down.
	ErrRateLimited = errors.New("quote: rate limited by provider")

	// ErrMalformed means the payload decoded but required numeric
	// fields were missing or invalid. No partial state is applied.
	ErrMalformed = errors.New("quote: malformed payload")

	// ErrStatus means the provider returned a non-success status code.
	ErrStatus = errors.New("quote: unexpected status code")
)

// Quote is a single live price sample for one instrument.
// PercentChange is nil when the provider did not supply one; the
// engine then derives the change from the prior close.
type Quote struct {
	Ticker        string
	CurrentPrice  float64
	PriorClose    float64
	PercentChange *float64
	FetchedUnixMs int64
}

// MarketStatus is the session state of one exchange.
type MarketStatus struct {
	Exchange string
	IsOpen   bool
	Session  string // "regular", "pre", "post", "closed"
}

// Sample is one point of intraday history.
type Sample struct {
	TsUnixMs int64
	Price    float64
}

// Source is the live feed boundary. All calls are fallible,
// context-aware and subject to the shared rate limiter upstream.
type Source interface {
	FetchQuote(ctx context.Context, ticker string) (Quote, error)
	FetchMarketStatus(ctx context.Context, exchange string) (MarketStatus, error)
	FetchHistory(ctx context.Context, ticker string, window time.Duration) ([]Sample, error)
}
