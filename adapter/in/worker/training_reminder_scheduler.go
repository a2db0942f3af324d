package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"training_server/core/port/in"
	"training_server/pkg/logger"
)

// =============================================================================
// ReminderScheduler - day-before reminder dispatch
// =============================================================================

const defaultDispatchTimeout = 5 * time.Minute

// RunClaimer grants a run key to exactly one caller across instances.
type RunClaimer interface {
	TryClaim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type ReminderScheduler struct {
	reminders in.ReminderService
	claimer   RunClaimer
	spec      string
	timeout   time.Duration
	cron      *cron.Cron
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewReminderScheduler creates a scheduler that dispatches on spec, a
// five-field cron expression evaluated in UTC.
func NewReminderScheduler(reminders in.ReminderService, spec string) *ReminderScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: logger.WithField("component", "reminder-scheduler")}
	return &ReminderScheduler{
		reminders: reminders,
		spec:      spec,
		timeout:   defaultDispatchTimeout,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// WithRunClaim makes scheduled runs claim the UTC date first so that only one
// instance dispatches per day.
func (s *ReminderScheduler) WithRunClaim(claimer RunClaimer) *ReminderScheduler {
	s.claimer = claimer
	return s
}

// Start registers the dispatch job and starts the cron runner.
func (s *ReminderScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.dispatch() }); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	logger.Info("[ReminderScheduler] Started with schedule %q (UTC), next run %s",
		s.spec, s.NextRun().Format(time.RFC3339))
	return nil
}

// Stop cancels a running dispatch and waits for it to return.
func (s *ReminderScheduler) Stop() {
	logger.Info("[ReminderScheduler] Stopping...")
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("[ReminderScheduler] Stopped")
}

// NextRun reports when the job fires next; zero before Start.
func (s *ReminderScheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce dispatches immediately using the scheduler's clock.
func (s *ReminderScheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	queued, err := s.reminders.DispatchDayBeforeReminders(ctx, s.now())
	log := logger.WithDuration(time.Since(start)).WithField("queued", queued)
	if err != nil {
		log.WithError(err).Error("[ReminderScheduler] Dispatch finished with errors")
		return queued, err
	}
	log.Info("[ReminderScheduler] Dispatch complete")
	return queued, nil
}

// dispatch is the cron job; it reports whether this instance ran.
// A run that fails before queueing anything gives the day's claim back.
func (s *ReminderScheduler) dispatch() bool {
	if s.claimer == nil {
		_, _ = s.RunOnce(s.ctx)
		return true
	}

	key := "reminder:" + s.now().UTC().Format(time.DateOnly)
	claimed, err := s.claimer.TryClaim(s.ctx, key)
	if err != nil {
		logger.WithError(err).Warn("[ReminderScheduler] Claim %s failed, skipping run", key)
		return false
	}
	if !claimed {
		logger.Debug("[ReminderScheduler] %s already claimed by another instance", key)
		return false
	}

	queued, err := s.RunOnce(s.ctx)
	if err != nil && queued == 0 {
		if relErr := s.claimer.Release(context.WithoutCancel(s.ctx), key); relErr != nil {
			logger.WithError(relErr).Warn("[ReminderScheduler] Release %s failed", key)
		} else {
			logger.Info("[ReminderScheduler] Released %s for retry", key)
		}
	}
	return true
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(kvFields(keysAndValues)).Debug("[cron] %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(kvFields(keysAndValues)).WithError(err).Error("[cron] %s", msg)
}

func kvFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
