package feedback

import (
	"context"

	"github.com/rs/zerolog"
)

// CycleJob adapts the scheduler's ExecuteCycle to the cron job
// interface. Cycle failures are reported through the cycle result and
// logged; they never bubble up as job errors, so a bad cycle cannot
// unschedule the job.
type CycleJob struct {
	scheduler *Scheduler
	log       zerolog.Logger
}

// NewCycleJob creates the periodic retraining-check job.
func NewCycleJob(scheduler *Scheduler, log zerolog.Logger) *CycleJob {
	return &CycleJob{
		scheduler: scheduler,
		log:       log.With().Str("component", "cycle_job").Logger(),
	}
}

// Name returns the job identifier used in scheduler logs.
func (j *CycleJob) Name() string {
	return "feedback_cycle"
}

// Run executes one scheduling pass.
func (j *CycleJob) Run() error {
	result := j.scheduler.ExecuteCycle(context.Background())

	switch {
	case result.Error != "":
		j.log.Warn().
			Str("cycle_id", result.CycleID).
			Str("error", result.Error).
			Msg("Feedback cycle reported a failure")
	case result.TierRun != nil:
		j.log.Info().
			Str("cycle_id", result.CycleID).
			Str("tier", result.TierRun.String()).
			Msg("Feedback cycle retrained a tier")
	default:
		j.log.Debug().
			Str("cycle_id", result.CycleID).
			Msg("Feedback cycle found no tier due")
	}
	return nil
}
