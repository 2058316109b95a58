package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx/collectors"
)

// Scheduler runs assembled collectors on their configured intervals. It must
// only be started after instance assembly has fully completed.
type Scheduler struct {
	logger   logging.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	mutex    sync.Mutex
	started  bool
	stopped  bool
}

func NewScheduler(logger logging.Logger) *Scheduler {
	return &Scheduler{
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches one loop per collector. Each loop performs an initial
// collect, then ticks on the collector's interval.
func (s *Scheduler) Start(ctx context.Context, collectorSet []collectors.Collector) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started {
		return errors.NewInternalError("scheduler already started", nil)
	}
	s.started = true

	s.logger.Infof("Starting scheduler, collectors: %d", len(collectorSet))

	for _, collector := range collectorSet {
		s.wg.Add(1)
		go s.loop(ctx, collector)
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, collector collectors.Collector) {
	defer s.wg.Done()

	s.logger.Debugf("Collector loop started, id: %s, interval: %v", collector.ID(), collector.Interval())

	ticker := time.NewTicker(collector.Interval())
	defer ticker.Stop()

	s.runOnce(ctx, collector)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, collector)
		case <-ctx.Done():
			s.logger.Debugf("Collector loop stopping, id: %s", collector.ID())
			return
		case <-s.stopChan:
			s.logger.Debugf("Collector loop stopping, id: %s", collector.ID())
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, collector collectors.Collector) {
	start := time.Now()
	if err := collector.Collect(ctx); err != nil {
		s.logger.Errorf("Collector run failed, id: %s, error: %v", collector.ID(), err)
		return
	}
	s.logger.Debugf("Collector run finished, id: %s, elapsed: %v", collector.ID(), time.Since(start))
}

// Stop stops all collector loops and waits for them to finish. Repeated
// calls are no-ops.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if !s.started || s.stopped {
		s.mutex.Unlock()
		return
	}
	s.stopped = true
	s.mutex.Unlock()

	s.logger.Infof("Stopping scheduler")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Infof("Scheduler stopped")
}
