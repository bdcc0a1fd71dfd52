package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	constants "github.com/greenlight-dev/greenlight/internal/constants"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
)

// sweepParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var sweepParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// ReaperConfig holds the dependencies and tuning for the stale-call sweep.
type ReaperConfig struct {
	Registry domain.CallRegistry
	EventBus *bus.Bus
	Schedule string        // cron expression; defaults to every minute if empty
	MaxAge   time.Duration // pending-call age limit; defaults to 15 minutes if zero
}

// StaleCallReaper periodically rejects pending calls that have waited too
// long for an approval or result. This is the only path that rejects a
// call; everything else either resolves it or removes it unsettled. Without
// the sweep, a dropped push message would leave its caller suspended and
// the registry growing forever.
type StaleCallReaper struct {
	registry domain.CallRegistry
	eventBus *bus.Bus
	schedule cronlib.Schedule
	spec     string
	maxAge   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStaleCallReaper creates a reaper. It returns an error when the cron
// expression does not parse.
func NewStaleCallReaper(cfg ReaperConfig) (*StaleCallReaper, error) {
	spec := cfg.Schedule
	if spec == "" {
		spec = constants.DefaultSweepSchedule
	}
	schedule, err := sweepParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = constants.PendingCallTimeout
	}

	return &StaleCallReaper{
		registry: cfg.Registry,
		eventBus: cfg.EventBus,
		schedule: schedule,
		spec:     spec,
		maxAge:   maxAge,
	}, nil
}

// Start begins the sweep loop. It runs in a background goroutine and
// respects the provided context for shutdown.
func (r *StaleCallReaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	logger.Info("Stale call reaper started", "schedule", r.spec, "max_age", r.maxAge.String())
}

// Stop cancels the sweep loop and waits for it to exit.
func (r *StaleCallReaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	logger.Info("Stale call reaper stopped")
}

// Schedule returns the cron expression the sweep runs on.
func (r *StaleCallReaper) Schedule() string {
	return r.spec
}

// MaxAge returns the pending-call age limit.
func (r *StaleCallReaper) MaxAge() time.Duration {
	return r.maxAge
}

// loop waits for each scheduled sweep time, fires, and re-arms.
func (r *StaleCallReaper) loop(ctx context.Context) {
	defer r.wg.Done()

	timer := time.NewTimer(time.Until(r.schedule.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.Sweep()
			timer.Reset(time.Until(r.schedule.Next(time.Now())))
		}
	}
}

// Sweep rejects every pending call older than the configured age limit
// and returns how many were swept. Each swept call is announced on the
// bus so observers can follow abandoned registrations.
func (r *StaleCallReaper) Sweep() int {
	swept := r.registry.Cleanup(r.maxAge)
	if len(swept) == 0 {
		return 0
	}

	now := time.Now()
	for _, call := range swept {
		if r.eventBus != nil {
			r.eventBus.Publish(domain.TopicCallTimeout, domain.CallTimeoutEvent{
				CallID:   call.ID,
				ToolName: call.ToolName,
				Age:      call.Age(now),
			})
		}
	}

	logger.Info("Swept stale pending calls", "count", len(swept), "max_age", r.maxAge.String())
	return len(swept)
}
