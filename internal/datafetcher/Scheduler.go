/*
This file contains the cron-driven refresh scheduler. It periodically warms
the last-known-good cache with fresh APYs and prices so that adapter
degradation paths have recent values to fall back on.
*/

package datafetcher

import (
	"github.com/robfig/cron/v3"

	"github.com/sonicnav/riskengine/internal/logger"
)

var schedulerLogger = logger.GetForComponent("refresh_scheduler")

// Scheduler runs named background refresh jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates an idle scheduler. Jobs run after Start.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// AddJob registers a named job on a cron spec. Job errors are logged, never
// propagated; a failing refresh must not take the scheduler down.
func (s *Scheduler) AddJob(spec, name string, job func() error) error {
	_, err := s.cron.AddFunc(spec, func() {
		schedulerLogger.Debug().Str("job", name).Msg("Running scheduled job")
		if err := job(); err != nil {
			schedulerLogger.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
		}
	})
	if err != nil {
		return err
	}
	schedulerLogger.Info().Str("job", name).Str("spec", spec).Msg("Scheduled job registered")
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	schedulerLogger.Info().Msg("Refresh scheduler started")
}

// Stop halts the scheduler. Running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	schedulerLogger.Info().Msg("Refresh scheduler stopped")
}
