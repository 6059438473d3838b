package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Market chart payloads change hourly at the resolution we fetch;
	// training cycles tolerate slightly stale history.
	TTLMarketChart = 30 * time.Minute

	// Fear & greed index updates once a day.
	TTLFearGreed = 6 * time.Hour

	// Current price cache for outcome resolution and status display.
	TTLCurrentPrice = 10 * time.Minute
)
