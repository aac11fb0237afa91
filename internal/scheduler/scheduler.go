package scheduler

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	"github.com/smallbiznis/promptlab/internal/clock"
	invitationdomain "github.com/smallbiznis/promptlab/internal/invitation/domain"
	obscontext "github.com/smallbiznis/promptlab/internal/observability/context"
	obslogger "github.com/smallbiznis/promptlab/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/promptlab/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireInvitations = "expire_invitations"
	JobPurgeSessions     = "purge_sessions"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log         *zap.Logger
	Invitations invitationdomain.Repository
	Sessions    authdomain.SessionRepository
	Clock       clock.Clock
	Config      Config              `optional:"true"`
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

// Scheduler runs periodic housekeeping. Every job is an idempotent
// conditional update, so overlapping instances are harmless.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	invitations invitationdomain.Repository
	sessions    authdomain.SessionRepository
	metrics     *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Invitations == nil || p.Sessions == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		invitations: p.Invitations,
		sessions:    p.Sessions,
		metrics:     p.Metrics,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes every job once. A failing job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")

	var runErr error
	if err := s.runJob(ctx, JobExpireInvitations, s.ExpireInvitations); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := s.runJob(ctx, JobPurgeSessions, s.PurgeSessions); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int64, error)) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	processed, err := fn(ctx)
	elapsed := time.Since(start)
	s.metrics.RecordJobRun(ctx, name, processed, elapsed, err)

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("job", name),
		zap.Int64("processed", processed),
		zap.Duration("duration", elapsed),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout))
		} else {
			log.Error("job failed", zap.Error(err))
		}
		return err
	}
	if processed > 0 {
		log.Info("job finished")
	}
	return nil
}

// ExpireInvitations moves overdue PENDING invitations to EXPIRED in batches.
func (s *Scheduler) ExpireInvitations(ctx context.Context) (int64, error) {
	return s.drain(ctx, func(ctx context.Context) (int64, error) {
		return s.invitations.ExpirePending(ctx, s.clock.Now(), s.cfg.BatchSize)
	})
}

// PurgeSessions deletes sessions that ended more than SessionRetention ago.
func (s *Scheduler) PurgeSessions(ctx context.Context) (int64, error) {
	return s.drain(ctx, func(ctx context.Context) (int64, error) {
		cutoff := s.clock.Now().Add(-s.cfg.SessionRetention)
		return s.sessions.DeleteExpiredSessions(ctx, cutoff, s.cfg.BatchSize)
	})
}

// drain repeats batch until it returns a short batch.
func (s *Scheduler) drain(ctx context.Context, batch func(ctx context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := batch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(s.cfg.BatchSize) {
			return total, nil
		}
	}
}
