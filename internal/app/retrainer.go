package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/medixpert/pkg/logger"
)

// Retrainer retrains the model on a cron schedule when the catalog has
// moved away from the persisted artifact, then reloads the service.
type Retrainer struct {
	trainer *Trainer
	service *Service
	cron    *cron.Cron
	logger  logger.Logger
	ctx     context.Context
}

// NewRetrainer schedules RunOnce with a standard five-field cron spec or a
// descriptor such as "@hourly".
func NewRetrainer(t *Trainer, s *Service, schedule string, l logger.Logger) (*Retrainer, error) {
	if l == nil {
		l = logger.Nop()
	}
	r := &Retrainer{trainer: t, service: s, logger: l, ctx: context.Background()}
	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{l: l})))
	if _, err := r.cron.AddFunc(schedule, func() { _, _ = r.RunOnce(r.ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the scheduler until Stop. ctx is passed to every run.
func (r *Retrainer) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.logger.Info(ctx, "retrain scheduler started")
}

// Stop halts the scheduler and waits for a running job.
func (r *Retrainer) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info(context.Background(), "retrain scheduler stopped")
}

// RunOnce retrains if the model is stale and reloads the service. It
// reports whether a new model was trained.
func (r *Retrainer) RunOnce(ctx context.Context) (bool, error) {
	stale, err := r.trainer.Stale(ctx)
	if err != nil {
		r.logger.Error(ctx, "staleness check failed", logger.Error(err))
		return false, err
	}
	if !stale {
		r.logger.Debug(ctx, "model is current, skipping retrain")
		return false, nil
	}
	if _, err := r.trainer.Train(ctx); err != nil {
		if errors.Is(err, ErrTrainingInProgress) {
			return false, nil
		}
		return false, err
	}
	if err := r.service.Reload(ctx); err != nil {
		return true, fmt.Errorf("reload after retrain: %w", err)
	}
	return true, nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), "cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), "cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
