package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soyeahso/concierge/internal/hooks"
)

// DefaultSweepSchedule runs the idle sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// AbandonIdle resets every session whose flow has been idle for longer
// than idle, as of now. It returns the user ids it reset. Each session is
// handled under its user's turn lock, so a live turn is never overwritten.
func (r *Runner) AbandonIdle(ctx context.Context, idle time.Duration, now time.Time) []string {
	if idle <= 0 {
		return nil
	}

	var abandoned []string
	for _, userID := range r.sessions.List(ctx) {
		if ctx.Err() != nil {
			break
		}
		if r.abandonIfIdle(ctx, userID, idle, now) {
			abandoned = append(abandoned, userID)
		}
	}

	if len(abandoned) > 0 {
		r.metrics.RecordAbandoned(len(abandoned))
		r.log.Info().Int("count", len(abandoned)).Dur("idle", idle).Msg("abandoned idle flows")
	}
	return abandoned
}

func (r *Runner) abandonIfIdle(ctx context.Context, userID string, idle time.Duration, now time.Time) bool {
	unlock := r.locks.Lock(userID)
	defer unlock()

	s := r.sessions.Load(ctx, userID)
	if !s.Active() || now.Sub(s.LastUpdated) < idle {
		return false
	}

	flow := s.Flow
	s.Reset()
	s.LastUpdated = now
	if err := r.sessions.Save(ctx, s); err != nil {
		r.log.Warn().Err(err).Str("userId", userID).Msg("saving abandoned session failed")
		return false
	}

	r.emit(ctx, hooks.EventFlowAbandoned, map[string]any{"userId": userID, "flow": string(flow)})
	return true
}

// Sweeper runs AbandonIdle on a cron schedule.
type Sweeper struct {
	runner *Runner
	idle   time.Duration
	cron   *cron.Cron
}

// NewSweeper schedules idle-flow sweeps. An empty schedule uses
// DefaultSweepSchedule.
func NewSweeper(r *Runner, idle time.Duration, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s := &Sweeper{
		runner: r,
		idle:   idle,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("scheduling idle sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.runner.AbandonIdle(ctx, s.idle, time.Now().UTC())
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	s.runner.log.Info().Dur("idle", s.idle).Msg("idle sweeper started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.runner.log.Info().Msg("idle sweeper stopped")
	return nil
}
