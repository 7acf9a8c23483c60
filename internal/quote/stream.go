package quote

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickerwall/internal/infra"
)

// streamMessage is the push-feed wire format: one quote per frame.
type streamMessage struct {
	Ticker        string   `json:"ticker"`
	Price         float64  `json:"price"`
	PriorClose    float64  `json:"prior_close"`
	PercentChange *float64 `json:"percent_change,omitempty"`
}

type subscribeMessage struct {
	Op      string   `json:"op"`
	Tickers []string `json:"tickers"`
}

// StreamWorker maintains a persistent websocket connection to a push
// quote feed, delivering samples through a callback. Reconnects use
// exponential backoff, reset after every successful connect.
type StreamWorker struct {
	url     string
	tickers []string
	onQuote func(Quote)
	policy  *infra.ReconnectPolicy

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout time.Duration
}

// NewStreamWorker creates a streaming worker. onQuote is invoked from
// the worker goroutine; the callback must not block.
func NewStreamWorker(url string, tickers []string, onQuote func(Quote)) *StreamWorker {
	return &StreamWorker{
		url:         url,
		tickers:     tickers,
		onQuote:     onQuote,
		policy:      infra.NewReconnectPolicy(),
		ReadTimeout: 60 * time.Second,
	}
}

// Start initiates the connection loop.
func (w *StreamWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.runLoop(ctx)
}

// Stop terminates the worker.
func (w *StreamWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.close()
	w.wg.Wait()
}

func (w *StreamWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			delay := w.policy.NextDelay()
			slog.Warn("Stream connection failed",
				slog.String("url", w.url),
				slog.Any("error", err),
				slog.Duration("retry_in", delay),
				slog.Int("attempt", w.policy.Attempt()))

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		w.policy.Reset()
		w.process(ctx)
	}
}

func (w *StreamWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", infra.GetPlatformUserAgent())

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	sub, _ := json.Marshal(subscribeMessage{Op: "subscribe", Tickers: w.tickers})
	if err := w.write(websocket.TextMessage, sub); err != nil {
		w.close()
		return err
	}

	slog.Info("Stream connected", slog.String("url", w.url), slog.Int("tickers", len(w.tickers)))
	return nil
}

func (w *StreamWorker) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("Stream read error", slog.Any("error", err))
			w.close()
			return
		}

		var sm streamMessage
		if err := json.Unmarshal(msg, &sm); err != nil || sm.Ticker == "" || sm.Price <= 0 {
			slog.Debug("Stream message dropped", slog.Any("error", err))
			continue
		}

		if w.onQuote != nil {
			w.onQuote(Quote{
				Ticker:        sm.Ticker,
				CurrentPrice:  sm.Price,
				PriorClose:    sm.PriorClose,
				PercentChange: sm.PercentChange,
				FetchedUnixMs: time.Now().UnixMilli(),
			})
		}
	}
}

func (w *StreamWorker) write(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	c := w.conn
	w.mu.RUnlock()
	if c == nil {
		return websocket.ErrCloseSent
	}
	return c.WriteMessage(msgType, data)
}

func (w *StreamWorker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
