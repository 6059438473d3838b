package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// flatBand is the relative price-change band inside which an outcome
// counts as HOLD rather than a directional move.
const flatBand = 0.001

// PriceSource serves a live last-trade price, typically from the
// exchange websocket stream.
type PriceSource interface {
	LastPrice() (float64, bool)
}

// SpotFetcher is the REST fallback used when the stream price is stale.
type SpotFetcher interface {
	FetchSimplePrice(ctx context.Context, coinID string) (float64, error)
}

// OutcomeResolver turns open predictions into scored outcomes. A
// prediction is registered with an entry price and a resolve time;
// once that time passes, the price move since entry determines the
// actual signal and the result feeds the scheduler's rolling accuracy.
type OutcomeResolver struct {
	repo      *Repository
	scheduler *Scheduler
	stream    PriceSource
	spot      SpotFetcher
	coinID    string
	symbol    string
	log       zerolog.Logger
	clock     func() time.Time
}

// NewOutcomeResolver wires a resolver. stream may be nil; the REST
// fallback is then used for every price lookup.
func NewOutcomeResolver(
	repo *Repository,
	scheduler *Scheduler,
	stream PriceSource,
	spot SpotFetcher,
	coinID string,
	symbol string,
	log zerolog.Logger,
) *OutcomeResolver {
	return &OutcomeResolver{
		repo:      repo,
		scheduler: scheduler,
		stream:    stream,
		spot:      spot,
		coinID:    coinID,
		symbol:    symbol,
		log:       log.With().Str("component", "outcome_resolver").Logger(),
		clock:     time.Now,
	}
}

// RegisterPrediction snapshots the current price as the entry and
// queues the prediction for resolution after the horizon elapses.
func (r *OutcomeResolver) RegisterPrediction(ctx context.Context, pred domain.Prediction, horizon time.Duration) (*PendingPrediction, error) {
	price, err := r.currentPrice(ctx)
	if err != nil {
		return nil, err
	}

	now := r.clock()
	pending := PendingPrediction{
		ID:         uuid.NewString(),
		Symbol:     r.symbol,
		Signal:     pred.Signal,
		Confidence: pred.Confidence,
		EntryPrice: price,
		ResolveAt:  now.Add(horizon),
		CreatedAt:  now,
	}
	if err := r.repo.SavePending(pending); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("id", pending.ID).
		Str("signal", string(pending.Signal)).
		Float64("entry_price", pending.EntryPrice).
		Time("resolve_at", pending.ResolveAt).
		Msg("Registered prediction for resolution")
	return &pending, nil
}

// Name returns the job identifier used in scheduler logs.
func (r *OutcomeResolver) Name() string {
	return "outcome_resolver"
}

// Run resolves every prediction whose horizon has passed. A price
// lookup failure leaves the remaining predictions pending for the next
// run rather than failing the job.
func (r *OutcomeResolver) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := r.repo.DuePending(r.clock())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	price, err := r.currentPrice(ctx)
	if err != nil {
		r.log.Warn().Err(err).Int("pending", len(due)).
			Msg("No current price available, leaving predictions pending")
		return nil
	}

	for _, p := range due {
		actual := outcomeSignal(p.EntryPrice, price)
		pred := domain.Prediction{Signal: p.Signal, Confidence: p.Confidence}
		rec, err := r.scheduler.ReportOutcome(pred, actual)
		if err != nil {
			r.log.Error().Err(err).Str("id", p.ID).Msg("Failed to score prediction")
			continue
		}
		if err := r.repo.DeletePending(p.ID); err != nil {
			r.log.Error().Err(err).Str("id", p.ID).Msg("Failed to delete resolved prediction")
			continue
		}
		r.log.Info().
			Str("id", p.ID).
			Str("predicted", string(rec.Predicted)).
			Str("actual", string(rec.Actual)).
			Bool("correct", rec.Correct).
			Msg("Resolved prediction")
	}
	return nil
}

func (r *OutcomeResolver) currentPrice(ctx context.Context) (float64, error) {
	if r.stream != nil {
		if price, ok := r.stream.LastPrice(); ok {
			return price, nil
		}
	}
	return r.spot.FetchSimplePrice(ctx, r.coinID)
}

// outcomeSignal maps the realized price move to the signal a perfect
// prediction would have issued at entry.
func outcomeSignal(entry, current float64) domain.Signal {
	if entry <= 0 {
		return domain.SignalHold
	}
	change := (current - entry) / entry
	switch {
	case change > flatBand:
		return domain.SignalBuy
	case change < -flatBand:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
