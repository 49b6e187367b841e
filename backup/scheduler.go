/*
scheduler.go - Scheduled backups

PURPOSE:
  Runs Service.Create on a fixed interval in a background goroutine, so
  the station gets a backup (and an offsite copy when S3 is configured)
  without anyone pressing the button.

DESIGN:
  - First backup one interval after Start, not at startup
  - A failed run is logged by Create and retried at the next tick
  - Stop waits for a run in progress to finish

USAGE:
  s := NewScheduler(svc, 24*time.Hour, log)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - backup.go: Create
*/
package backup

import (
	"context"
	"sync"
	"time"

	"github.com/slnfs/station-ledger/logger"
)

// Scheduler creates backups periodically.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	nextRun time.Time
	last    *Info
}

// NewScheduler returns a stopped scheduler. A non-positive interval
// makes Start a no-op.
func NewScheduler(svc *Service, interval time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{svc: svc, interval: interval, log: log.WithComponent("backup")}
}

// Start begins the schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 {
		s.log.Infow("scheduled backups disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.stop = make(chan struct{})
	s.nextRun = time.Now().Add(s.interval)
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.Infow("scheduled backups started", "interval", s.interval.String())
}

// Stop halts the schedule and waits for a running backup.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Infow("scheduled backups stopped")
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow creates one backup immediately.
func (s *Scheduler) RunNow(ctx context.Context) (*Info, error) {
	info, err := s.svc.Create(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun = time.Now().Add(s.interval)
	if err != nil {
		return nil, err
	}
	s.last = info
	return info, nil
}

// NextRun is when the next scheduled backup is due (zero when stopped).
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return time.Time{}
	}
	return s.nextRun
}

// Last is the most recent successful backup made through the scheduler.
func (s *Scheduler) Last() *Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
