package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"smartbuy/internal/dataset"
)

// JobType records what triggered a refresh.
type JobType int

const (
	JobTypeStartup JobType = iota
	JobTypeScheduled
	JobTypeManual
)

// String returns the string representation of a JobType
func (j JobType) String() string {
	switch j {
	case JobTypeStartup:
		return "startup"
	case JobTypeScheduled:
		return "scheduled"
	case JobTypeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Refresher rebuilds the dataset snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*dataset.Snapshot, error)
}

// Scheduler periodically refreshes the dataset snapshot.
type Scheduler struct {
	refresher Refresher
	logger    *logrus.Logger
	interval  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	jobMutex  sync.Mutex // Ensures sequential job execution
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a new scheduler. A non-positive interval disables
// periodic refreshes; RunNow still works.
func NewScheduler(refresher Refresher, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
		interval:  interval,
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the scheduled refreshes
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("Periodic dataset refresh disabled")
		return
	}
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			_ = s.RunNow(s.ctx, JobTypeScheduled)
		}
	}
}

// RunNow refreshes immediately, waiting for any refresh already running.
func (s *Scheduler) RunNow(ctx context.Context, job JobType) error {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	fields := logrus.Fields{"job_type": job.String()}
	s.logger.WithFields(fields).Info("Starting dataset refresh")

	snap, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Dataset refresh failed")
		return err
	}

	fields["version"] = snap.Version
	fields["transactions"] = len(snap.Transactions)
	s.logger.WithFields(fields).Info("Dataset refresh completed successfully")
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.stopChan)
	})
	s.wg.Wait()
}
