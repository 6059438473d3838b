// Package binance provides a lightweight websocket subscriber for live
// ticker prices, used to resolve prediction outcomes and enrich status.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aaakaind/letsgetcrypto/internal/clientdata"
)

const (
	defaultStreamURL = "wss://stream.binance.com:9443/ws"

	dialTimeout = 30 * time.Second

	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute

	// LastPrice refuses to serve readings older than this.
	priceStaleThreshold = 5 * time.Minute
)

// TickerClient maintains a live price for one symbol via the miniTicker stream.
type TickerClient struct {
	streamURL string
	symbol    string // lowercase exchange symbol, e.g. "btcusdt"

	cacheRepo *clientdata.Repository
	log       zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	lastPrice  float64
	lastUpdate time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	stopped  sync.WaitGroup
}

// miniTickerEvent is the subset of the miniTicker payload we consume.
type miniTickerEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

// NewTickerClient creates a new ticker client for a symbol.
// cacheRepo is optional - if nil, prices are kept in memory only.
func NewTickerClient(symbol string, cacheRepo *clientdata.Repository, log zerolog.Logger) *TickerClient {
	return &TickerClient{
		streamURL: defaultStreamURL,
		symbol:    strings.ToLower(symbol),
		cacheRepo: cacheRepo,
		log:       log.With().Str("component", "binance_ticker").Str("symbol", symbol).Logger(),
		stopChan:  make(chan struct{}),
	}
}

// Start opens the stream and launches the read loop. Connection failures are
// retried in the background with capped exponential delay.
func (tc *TickerClient) Start() {
	tc.stopped.Add(1)
	go tc.run()
	tc.log.Info().Msg("Ticker client started")
}

// Stop closes the connection and stops the read loop.
func (tc *TickerClient) Stop() {
	tc.stopOnce.Do(func() {
		close(tc.stopChan)
		tc.mu.Lock()
		if tc.conn != nil {
			_ = tc.conn.Close(websocket.StatusNormalClosure, "shutting down")
		}
		tc.mu.Unlock()
	})
	tc.stopped.Wait()
	tc.log.Info().Msg("Ticker client stopped")
}

// LastPrice returns the most recent price and whether it is fresh enough to use.
func (tc *TickerClient) LastPrice() (float64, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if tc.lastUpdate.IsZero() || time.Since(tc.lastUpdate) > priceStaleThreshold {
		return 0, false
	}
	return tc.lastPrice, true
}

// run is the connect/read/reconnect loop.
func (tc *TickerClient) run() {
	defer tc.stopped.Done()

	attempt := 0
	for {
		select {
		case <-tc.stopChan:
			return
		default:
		}

		conn, err := tc.connect()
		if err != nil {
			delay := reconnectDelay(attempt)
			attempt++
			tc.log.Warn().Err(err).Dur("retry_in", delay).Msg("Connection failed")

			select {
			case <-tc.stopChan:
				return
			case <-time.After(delay):
				continue
			}
		}

		attempt = 0
		tc.mu.Lock()
		tc.conn = conn
		tc.mu.Unlock()

		tc.log.Info().Msg("Connected to ticker stream")
		tc.readMessages(conn)
	}
}

// connect dials the per-symbol miniTicker stream.
func (tc *TickerClient) connect() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s@miniTicker", tc.streamURL, tc.symbol)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return conn, nil
}

// readMessages consumes ticker events until the connection drops.
func (tc *TickerClient) readMessages(conn *websocket.Conn) {
	for {
		select {
		case <-tc.stopChan:
			return
		default:
		}

		_, data, err := conn.Read(context.Background())
		if err != nil {
			select {
			case <-tc.stopChan:
				return
			default:
			}
			tc.log.Warn().Err(err).Msg("Read failed, reconnecting")
			return
		}

		var event miniTickerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			tc.log.Debug().Err(err).Msg("Skipping unparseable message")
			continue
		}

		if event.EventType != "24hrMiniTicker" || event.Close == "" {
			continue
		}

		price, err := strconv.ParseFloat(event.Close, 64)
		if err != nil || price <= 0 {
			continue
		}

		tc.updatePrice(price)
	}
}

// updatePrice records a fresh reading in memory and in the price cache.
func (tc *TickerClient) updatePrice(price float64) {
	tc.mu.Lock()
	tc.lastPrice = price
	tc.lastUpdate = time.Now()
	tc.mu.Unlock()

	if tc.cacheRepo != nil {
		if err := tc.cacheRepo.Store("current_prices", tc.symbol, price, clientdata.TTLCurrentPrice); err != nil {
			tc.log.Warn().Err(err).Msg("Failed to cache ticker price")
		}
	}
}

// reconnectDelay returns the capped exponential delay for a retry attempt.
func reconnectDelay(attempt int) time.Duration {
	if attempt > 10 {
		return maxReconnectDelay
	}
	delay := time.Duration(float64(baseReconnectDelay) * math.Pow(2, float64(attempt)))
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}
