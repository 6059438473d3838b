package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// syntheticSeries builds a deterministic hourly price series.
func syntheticSeries(n int) []domain.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, n)
	for i := 0; i < n; i++ {
		price := 40000 + 500*math.Sin(float64(i)/8) + 10*float64(i)
		points[i] = domain.PricePoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Price:     price,
			Volume:    1000 + float64(i%50),
			MarketCap: price * 1e6,
		}
	}
	return points
}

func TestBuildProducesAlignedMatrix(t *testing.T) {
	points := syntheticSeries(200)

	fs, err := Build(points)
	require.NoError(t, err)

	// Warm-up region skipped, final row dropped for lack of a label.
	assert.Equal(t, len(points)-smaSlow-1, fs.Len())
	assert.Equal(t, fs.Len(), len(fs.Labels))
	assert.Equal(t, fs.Len(), len(fs.Timestamps))

	for _, row := range fs.Rows {
		require.Len(t, row, len(Columns))
		for j, v := range row {
			assert.False(t, math.IsNaN(v), "NaN in column %s", Columns[j])
		}
	}
}

func TestBuildLabelsFollowNextPeriodDirection(t *testing.T) {
	points := syntheticSeries(150)

	fs, err := Build(points)
	require.NoError(t, err)

	for i, label := range fs.Labels {
		idx := smaSlow + i
		expected := 0
		if points[idx+1].Price > points[idx].Price {
			expected = 1
		}
		assert.Equal(t, expected, label, "label mismatch at row %d", i)
	}
}

func TestBuildRejectsShortSeries(t *testing.T) {
	points := syntheticSeries(50)

	_, err := Build(points)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRollingStdDev(t *testing.T) {
	values := []float64{1, 1, 1, 1, 5, 5, 5, 5}
	out := rollingStdDev(values, 4)

	// Warm-up region is zero.
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[2])

	// A constant window has zero deviation.
	assert.InDelta(t, 0.0, out[3], 1e-9)
	assert.InDelta(t, 0.0, out[7], 1e-9)

	// Mixed window has positive deviation.
	assert.Greater(t, out[5], 0.0)
}
