package sweep

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Worker runs a sweep on a fixed interval until stopped
type Worker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *logrus.Entry
}

// NewWorker wraps a sweep run function in a periodic worker
func NewWorker(name string, intervalSec int, run func(ctx context.Context) error) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		ctx:      ctx,
		cancel:   cancel,
		name:     name,
		interval: time.Duration(intervalSec) * time.Second,
		run:      run,
		logger:   logrus.WithField("component", name+"-worker"),
	}
}

// Start begins the periodic runs
func (w *Worker) Start() {
	w.logger.Infof("Starting %s worker...", w.name)
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.run(w.ctx); err != nil {
					w.logger.Errorf("Sweep run failed: %v", err)
				}
			case <-w.ctx.Done():
				w.logger.Infof("Stopping %s worker...", w.name)
				return
			}
		}
	}()
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.cancel()
}
