package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner triggers the sweep on a cron schedule inside the API process.
type Runner struct {
	cron    *cron.Cron
	sweeper *Sweeper
	logger  *zap.SugaredLogger
	timeout time.Duration
}

// NewRunner registers the sweep under schedule (standard cron syntax or a
// descriptor such as "@daily").
func NewRunner(sweeper *Sweeper, schedule string, timeout time.Duration, logger *zap.SugaredLogger) (*Runner, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	r := &Runner{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		logger:  logger,
		timeout: timeout,
	}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, err
	}
	return r, nil
}

// RunOnce performs a single sweep with the runner's timeout.
func (r *Runner) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.sweeper.Sweep(ctx); err != nil {
		r.logger.Errorw("scheduled sweep failed", "err", err)
	}
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to end.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
