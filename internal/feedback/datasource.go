package feedback

import (
	"context"
	"fmt"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
	"github.com/aaakaind/letsgetcrypto/internal/features"
)

// DataSource supplies a fresh, fully engineered feature set for a
// training cycle. Fetch failures abort the cycle before any model is
// touched.
type DataSource interface {
	FetchFeatures(ctx context.Context) (*domain.FeatureSet, error)
}

// ChartFetcher is the slice of the CoinGecko client the market data
// source needs.
type ChartFetcher interface {
	FetchMarketChart(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error)
}

// MarketDataSource builds training features from CoinGecko market
// history for a single coin.
type MarketDataSource struct {
	charts      ChartFetcher
	coinID      string
	horizonDays int
}

// NewMarketDataSource creates a data source for the given coin and
// history horizon in days.
func NewMarketDataSource(charts ChartFetcher, coinID string, horizonDays int) *MarketDataSource {
	return &MarketDataSource{
		charts:      charts,
		coinID:      coinID,
		horizonDays: horizonDays,
	}
}

// FetchFeatures pulls market history and engineers the feature matrix.
func (s *MarketDataSource) FetchFeatures(ctx context.Context) (*domain.FeatureSet, error) {
	points, err := s.charts.FetchMarketChart(ctx, s.coinID, s.horizonDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market history for %s: %w", s.coinID, err)
	}

	fs, err := features.Build(points)
	if err != nil {
		return nil, fmt.Errorf("failed to build features for %s: %w", s.coinID, err)
	}
	return fs, nil
}
