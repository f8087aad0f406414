package cron

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
)

const (
	defaultInterval = 24 * time.Hour
	leaseScope      = "maintenance"
)

// Job is one maintenance task run once per interval.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type leaser interface {
	TryLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, scope, id string) error
}

// ServiceParams configure the maintenance service.
type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Leases   leaser
	Env      string
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service ticks every interval on every instance. Each job is guarded by its
// own lease; a job that succeeds keeps the lease until it expires, so the
// job runs at most once per interval across instances. A failed job gives
// the lease back so the next tick anywhere can retry it.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	leases   leaser
	env      string
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Leases == nil {
		return nil, fmt.Errorf("lease store required")
	}
	jobs := slices.DeleteFunc(slices.Clone(params.Jobs), func(j Job) bool { return j == nil })
	if len(jobs) == 0 {
		return nil, fmt.Errorf("at least one job required")
	}
	env := params.Env
	if env == "" {
		env = "local"
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		leases:   params.Leases,
		env:      env,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes one cycle immediately, then one per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

// leaseTTL stays just under the interval so a peer's next tick is not
// blocked by clock skew.
func (s *Service) leaseTTL() time.Duration {
	return s.interval - s.interval/10
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	leaseID := s.env + ":" + name

	held, err := s.leases.TryLock(jobCtx, leaseScope, leaseID, s.leaseTTL())
	switch {
	case err != nil:
		s.logg.Error(jobCtx, "maintenance lease unavailable", err)
		return
	case !held:
		s.logg.Debug(jobCtx, "job ran elsewhere this interval")
		return
	}

	start := time.Now()
	err = job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveDuration(name, elapsed)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())

	if err == nil {
		s.metrics.IncSuccess(name)
		s.logg.Info(jobCtx, "job completed")
		return
	}
	s.metrics.IncFailure(name)
	s.logg.Error(jobCtx, "job failed", err)
	if uerr := s.leases.Unlock(ctx, leaseScope, leaseID); uerr != nil {
		s.logg.Error(jobCtx, "release maintenance lease", uerr)
	}
}
