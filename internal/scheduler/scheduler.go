// Package scheduler triggers periodic binding reconciliation. The UI
// reconciles on screen activation; the bindwatch daemon uses this cron
// wrapper instead.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/AirLink-Net/client_core/internal/binding"
	"github.com/AirLink-Net/client_core/internal/logging"
)

// Reconciler is the surface the scheduler drives.
type Reconciler interface {
	Reconcile(ctx context.Context) binding.Result
}

// Scheduler runs reconciliation on a cron spec.
type Scheduler struct {
	cron *cron.Cron
	log  logging.Logger
}

// New creates a stopped scheduler.
func New(log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// Add schedules rec on spec (standard cron syntax, @every supported).
func (s *Scheduler) Add(spec string, rec Reconciler) error {
	if rec == nil {
		return fmt.Errorf("scheduler: reconciler is required")
	}
	_, err := s.cron.AddFunc(spec, func() {
		result := rec.Reconcile(context.Background())
		switch result.Outcome {
		case binding.OutcomeUnbound:
			s.log.Warn("reconcile verdict", "outcome", string(result.Outcome),
				"redirect_to_binding", result.RedirectToBinding)
		case binding.OutcomeUpdated:
			s.log.Info("reconcile verdict", "outcome", string(result.Outcome),
				"device_no", result.Profile.Device.DeviceNo)
		default:
			s.log.Debug("reconcile verdict", "outcome", string(result.Outcome))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %q: %w", spec, err)
	}
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
