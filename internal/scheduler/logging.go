package scheduler

import (
	"context"
	"time"

	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	obscontext "github.com/smallbiznis/accounts/internal/observability/context"
	obslogger "github.com/smallbiznis/accounts/internal/observability/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// jobRun accumulates the outcome of one job execution for its summary line.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	started   time.Time
	processed int
	failures  int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(n int) {
	if r != nil && n > 0 {
		r.processed += n
	}
}

func (r *jobRun) fail() {
	if r != nil {
		r.failures++
	}
}

func (r *jobRun) fields(now time.Time) []zap.Field {
	return []zap.Field{
		zap.String("job", r.job),
		zap.String("run_id", r.runID),
		zap.Int("batch_size", r.batchSize),
		zap.Int64("duration_ms", now.Sub(r.started).Milliseconds()),
		zap.Int("processed_count", r.processed),
		zap.Int("error_count", r.failures),
	}
}

// startJobRun tags ctx with a fresh run and the scheduler as audit actor.
func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: s.cfg.BatchSize,
		started:   s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

// logJobDone writes the run summary. Idle runs stay at debug level so an
// empty queue does not flood the log every tick.
func (s *Scheduler) logJobDone(ctx context.Context, run *jobRun) {
	level := zapcore.DebugLevel
	switch {
	case run.failures > 0:
		level = zapcore.WarnLevel
	case run.processed > 0:
		level = zapcore.InfoLevel
	}
	s.logger(ctx).Log(level, "scheduler.job.done", run.fields(s.clock.Now())...)
}
