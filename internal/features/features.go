// Package features prepares model training matrices from raw market data.
// Indicators follow the original research setup: SMA 7/25/99, EMA 12/26,
// MACD, RSI 14, Bollinger bands, rolling volatility and price-change rates.
package features

import (
	"errors"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// ErrInsufficientData indicates the price series is too short to compute the
// slowest indicator plus a usable training window.
var ErrInsufficientData = errors.New("insufficient data for feature engineering")

const (
	smaFast = 7
	smaMid  = 25
	smaSlow = 99

	emaFast = 12
	emaSlow = 26

	macdSignal = 9

	rsiPeriod = 14

	bollingerPeriod = 20
	bollingerStdDev = 2.0

	volatilityWindow = 24

	// The slow SMA needs smaSlow points before it produces values; require
	// some usable rows beyond that warm-up.
	minUsableRows = 10
)

// Columns lists the feature columns in matrix order.
var Columns = []string{
	"volume",
	"market_cap",
	"sma_7",
	"sma_25",
	"sma_99",
	"ema_12",
	"ema_26",
	"macd",
	"macd_signal",
	"rsi",
	"bb_high",
	"bb_low",
	"bb_middle",
	"volatility",
	"price_change",
}

// Build converts a time-ordered price series into a FeatureSet with
// next-period-direction labels: 1 when the next price is higher, else 0.
// The last observation has no next period and is dropped.
func Build(points []domain.PricePoint) (*domain.FeatureSet, error) {
	warmup := smaSlow
	if len(points) < warmup+minUsableRows {
		return nil, fmt.Errorf("%w: have %d points, need at least %d",
			ErrInsufficientData, len(points), warmup+minUsableRows)
	}

	n := len(points)
	closes := make([]float64, n)
	for i, p := range points {
		closes[i] = p.Price
	}

	sma7 := talib.Sma(closes, smaFast)
	sma25 := talib.Sma(closes, smaMid)
	sma99 := talib.Sma(closes, smaSlow)
	ema12 := talib.Ema(closes, emaFast)
	ema26 := talib.Ema(closes, emaSlow)
	macd, macdSig, _ := talib.Macd(closes, emaFast, emaSlow, macdSignal)
	rsi := talib.Rsi(closes, rsiPeriod)
	bbHigh, bbMiddle, bbLow := talib.BBands(closes, bollingerPeriod, bollingerStdDev, bollingerStdDev, 0)

	volatility := rollingStdDev(closes, volatilityWindow)

	fs := &domain.FeatureSet{
		Columns:    Columns,
		Rows:       make([][]float64, 0, n-warmup),
		Labels:     make([]int, 0, n-warmup),
		Timestamps: make([]time.Time, 0, n-warmup),
	}

	// Skip the indicator warm-up region; drop the final row (no label).
	for i := warmup; i < n-1; i++ {
		priceChange := 0.0
		if closes[i-1] != 0 {
			priceChange = (closes[i] - closes[i-1]) / closes[i-1]
		}

		row := []float64{
			points[i].Volume,
			points[i].MarketCap,
			sma7[i],
			sma25[i],
			sma99[i],
			ema12[i],
			ema26[i],
			macd[i],
			macdSig[i],
			rsi[i],
			bbHigh[i],
			bbLow[i],
			bbMiddle[i],
			volatility[i],
			priceChange,
		}

		label := 0
		if closes[i+1] > closes[i] {
			label = 1
		}

		fs.Rows = append(fs.Rows, row)
		fs.Labels = append(fs.Labels, label)
		fs.Timestamps = append(fs.Timestamps, points[i].Timestamp)
	}

	if len(fs.Rows) == 0 {
		return nil, ErrInsufficientData
	}

	return fs, nil
}

// rollingStdDev computes a trailing standard deviation over a fixed window.
// Positions before the window is full are zero, matching talib's warm-up style.
func rollingStdDev(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := window - 1; i < len(values); i++ {
		out[i] = stat.StdDev(values[i-window+1:i+1], nil)
	}
	return out
}
