package producers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"statusboard/internal/observability/metrics"
)

// Scheduler runs each source on its own cron entry. A run that is still in
// progress when its next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	sources map[string]cron.EntryID
}

// NewScheduler constructs a scheduler. Each poll is bounded by timeout.
func NewScheduler(logger logrus.FieldLogger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		logger:  logger,
		timeout: timeout,
		ctx:     context.Background(),
		sources: make(map[string]cron.EntryID),
	}
}

// Add schedules source every interval.
func (s *Scheduler) Add(source Source, interval time.Duration) error {
	if source == nil {
		return errors.New("producer scheduler: nil source")
	}
	if interval <= 0 {
		return fmt.Errorf("producer scheduler: %s: interval must be positive", source.Name())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[source.Name()]; ok {
		return fmt.Errorf("producer scheduler: %s already scheduled", source.Name())
	}
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.RunOnce(s.runContext(), source)
	})
	if err != nil {
		return fmt.Errorf("producer scheduler: %s: %w", source.Name(), err)
	}
	s.sources[source.Name()] = id
	s.logger.WithFields(logrus.Fields{"producer": source.Name(), "interval": interval.String()}).Info("producer scheduled")
	return nil
}

// Start begins firing entries until ctx is cancelled, then waits for running polls.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// RunOnce polls source immediately and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context, source Source) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	err := source.Poll(ctx)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		s.logger.WithError(err).WithField("producer", source.Name()).Warn("producer poll failed")
	}
	metrics.ObserveProducerPoll(source.Name(), result, time.Since(start))
}

// Sources returns the scheduled source names.
func (s *Scheduler) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}
