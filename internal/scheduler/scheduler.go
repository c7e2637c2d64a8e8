// Package scheduler runs periodic maintenance jobs: purging expired
// one-time passwords and relaying outbox events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	obsmetrics "github.com/smallbiznis/accounts/internal/observability/metrics"
	otpdomain "github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/smallbiznis/accounts/internal/outbox"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobOTPSweep    = "otp_sweep"
	JobOutboxRelay = "outbox_relay"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	OTPSvc  otpdomain.Service
	Relay   *outbox.Relay
	Metrics *obsmetrics.Metrics `optional:"true"`
	Config  Config              `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	otpSvc  otpdomain.Service
	relay   *outbox.Relay
	metrics *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.OTPSvc == nil || p.Relay == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		otpSvc:  p.OTPSvc,
		relay:   p.Relay,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(run.started)
	if err != nil {
		run.fail()
	}
	s.logJobDone(ctx, run)

	switch {
	case err == nil:
		s.metrics.RecordJobRun(ctx, name, "ok", elapsed)
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// soft timeout; the next tick picks up the rest
		s.metrics.RecordJobRun(parent, name, "timeout", elapsed)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	default:
		s.metrics.RecordJobRun(parent, name, "error", elapsed)
		return fmt.Errorf("%s: %w", name, err)
	}
}

// RunOnce runs every enabled job a single time. A failing job does not stop
// the ones after it.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobOTPSweep, s.OTPSweepJob},
		{JobOutboxRelay, s.OutboxRelayJob},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// OTPSweepJob removes tokens that expired more than the retention window ago.
func (s *Scheduler) OTPSweepJob(ctx context.Context) error {
	purged, err := s.otpSvc.PurgeExpired(ctx, s.cfg.OTPRetention, s.cfg.BatchSize)
	jobRunFromContext(ctx).AddProcessed(int(purged))
	return err
}

func (s *Scheduler) OutboxRelayJob(ctx context.Context) error {
	delivered, err := s.relay.ProcessPending(ctx, s.cfg.BatchSize)
	jobRunFromContext(ctx).AddProcessed(delivered)
	return err
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}
