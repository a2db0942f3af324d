package bootstrap

import (
	"time"

	"training_server/adapter/in/worker"
	"training_server/config"
	"training_server/pkg/logger"
	"training_server/pkg/ratelimit"
)

// runClaimTTL keeps a date claim alive past the day it names.
const runClaimTTL = 26 * time.Hour

// Worker runs the reminder scheduler.
type Worker struct {
	scheduler *worker.ReminderScheduler
	enabled   bool
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	scheduler := worker.NewReminderScheduler(deps.ReminderService, cfg.ReminderCron).
		WithRunClaim(ratelimit.NewDebouncer(deps.Redis, runClaimTTL))

	return &Worker{scheduler: scheduler, enabled: cfg.ReminderEnabled}, cleanup, nil
}

func (w *Worker) Start() error {
	if !w.enabled {
		logger.Info("Reminder scheduler disabled")
		return nil
	}
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	return nil
}

func (w *Worker) Stop() {
	if !w.enabled {
		return
	}
	w.scheduler.Stop()
}
