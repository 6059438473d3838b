package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

type stubPriceStream struct {
	price float64
	ok    bool
}

func (s *stubPriceStream) LastPrice() (float64, bool) {
	return s.price, s.ok
}

type stubSpot struct {
	price float64
	err   error
	calls int
}

func (s *stubSpot) FetchSimplePrice(ctx context.Context, coinID string) (float64, error) {
	s.calls++
	return s.price, s.err
}

func newTestResolver(t *testing.T, stream PriceSource, spot SpotFetcher) (*OutcomeResolver, *Scheduler, *Repository) {
	t.Helper()
	repo := newTestRepository(t)
	scheduler, _, _ := newTestScheduler(testSchedulerConfig())
	resolver := NewOutcomeResolver(repo, scheduler, stream, spot, "bitcoin", "btcusdt", zerolog.Nop())
	return resolver, scheduler, repo
}

func TestOutcomeSignalBands(t *testing.T) {
	assert.Equal(t, domain.SignalBuy, outcomeSignal(100, 101))
	assert.Equal(t, domain.SignalSell, outcomeSignal(100, 99))
	assert.Equal(t, domain.SignalHold, outcomeSignal(100, 100.05), "moves inside the flat band read as HOLD")
	assert.Equal(t, domain.SignalHold, outcomeSignal(100, 99.95))
	assert.Equal(t, domain.SignalHold, outcomeSignal(0, 100), "a zero entry price cannot be scored directionally")
}

func TestRegisterPredictionUsesStreamPrice(t *testing.T) {
	stream := &stubPriceStream{price: 50000, ok: true}
	spot := &stubSpot{price: 49000}
	resolver, _, repo := newTestResolver(t, stream, spot)

	pending, err := resolver.RegisterPrediction(context.Background(),
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.8}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, pending.EntryPrice)
	assert.Equal(t, "btcusdt", pending.Symbol)
	assert.Equal(t, 0, spot.calls, "the REST fallback must not fire while the stream is fresh")

	// Not yet due.
	due, err := repo.DuePending(time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRegisterPredictionFallsBackToSpot(t *testing.T) {
	stream := &stubPriceStream{ok: false}
	spot := &stubSpot{price: 49000}
	resolver, _, _ := newTestResolver(t, stream, spot)

	pending, err := resolver.RegisterPrediction(context.Background(),
		domain.Prediction{Signal: domain.SignalSell, Confidence: 0.6}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 49000.0, pending.EntryPrice)
	assert.Equal(t, 1, spot.calls)
}

func TestRegisterPredictionFailsWithoutAnyPrice(t *testing.T) {
	spot := &stubSpot{err: errors.New("rate limited")}
	resolver, _, _ := newTestResolver(t, nil, spot)

	_, err := resolver.RegisterPrediction(context.Background(),
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.5}, time.Hour)
	assert.Error(t, err)
}

func TestResolverScoresDuePredictions(t *testing.T) {
	stream := &stubPriceStream{price: 52000, ok: true}
	resolver, scheduler, repo := newTestResolver(t, stream, &stubSpot{})

	now := time.Now()
	require.NoError(t, repo.SavePending(PendingPrediction{
		ID: "up", Symbol: "btcusdt",
		Signal: domain.SignalBuy, Confidence: 0.8,
		EntryPrice: 50000, ResolveAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, repo.SavePending(PendingPrediction{
		ID: "down", Symbol: "btcusdt",
		Signal: domain.SignalBuy, Confidence: 0.8,
		EntryPrice: 53000, ResolveAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))

	require.NoError(t, resolver.Run())

	// Both predictions scored: price rose from 50000 (BUY correct) and
	// fell from 53000 (BUY incorrect).
	summary := scheduler.PredictionLog().RecentAccuracy(2)
	assert.Equal(t, 2, summary.TotalPredictions)
	assert.Equal(t, 0.5, summary.Accuracy)

	due, err := repo.DuePending(now)
	require.NoError(t, err)
	assert.Empty(t, due, "resolved predictions must be removed from the queue")
}

func TestResolverLeavesPendingWhenPriceUnavailable(t *testing.T) {
	spot := &stubSpot{err: errors.New("upstream down")}
	resolver, scheduler, repo := newTestResolver(t, nil, spot)

	now := time.Now()
	require.NoError(t, repo.SavePending(PendingPrediction{
		ID: "stuck", Symbol: "btcusdt",
		Signal: domain.SignalBuy, Confidence: 0.8,
		EntryPrice: 50000, ResolveAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))

	require.NoError(t, resolver.Run(), "a price outage is not a job failure")

	assert.Equal(t, 0, scheduler.PredictionLog().Size())
	due, err := repo.DuePending(now)
	require.NoError(t, err)
	assert.Len(t, due, 1, "unresolvable predictions stay queued for the next run")
}

func TestResolverRunNoopWithoutDuePredictions(t *testing.T) {
	spot := &stubSpot{}
	resolver, _, _ := newTestResolver(t, nil, spot)

	require.NoError(t, resolver.Run())
	assert.Equal(t, 0, spot.calls, "no price lookup without due predictions")
}
