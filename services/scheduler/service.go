package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by RunNow while a run is in progress.
var ErrAlreadyRunning = errors.New("build already running")

// Job is one unit of scheduled work, normally a full catalog build.
type Job func(ctx context.Context) error

// Status describes the most recent run. It is in-memory only.
type Status struct {
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int        `json:"runs"`
}

// Service re-runs a job on a fixed interval. Runs never overlap.
type Service struct {
	name     string
	job      Job
	interval time.Duration
	now      func() time.Time

	// Runtime state
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	statusMu sync.RWMutex
	status   Status
}

// NewService creates a scheduler for job. The first scheduled run happens one
// interval after Start.
func NewService(name string, job Job, interval time.Duration) *Service {
	return &Service{
		name:     name,
		job:      job,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the background loop. It is a no-op when already started or
// when the interval is not positive.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.interval <= 0 {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go s.loop()

	log.Printf("[scheduler] %s scheduled every %s", s.name, s.interval)
	return nil
}

// Stop cancels the loop and any in-flight run, waiting until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[scheduler] %s stopped gracefully", s.name)
	case <-ctx.Done():
		log.Printf("[scheduler] %s stopped (timeout)", s.name)
	}

	s.started = false
	return nil
}

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunNow(s.ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				log.Printf("[scheduler] %s failed: %v", s.name, err)
			}
		}
	}
}

// RunNow runs the job synchronously unless a run is already in progress.
func (s *Service) RunNow(ctx context.Context) error {
	s.statusMu.Lock()
	if s.status.Running {
		s.statusMu.Unlock()
		return ErrAlreadyRunning
	}
	s.status.Running = true
	s.statusMu.Unlock()

	log.Printf("[scheduler] executing %s", s.name)
	err := s.job(ctx)

	now := s.now().UTC()
	s.statusMu.Lock()
	s.status.Running = false
	s.status.LastRunAt = &now
	s.status.Runs++
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.statusMu.Unlock()
	return err
}

// Status returns a copy of the current run state.
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st := s.status
	if st.LastRunAt != nil {
		t := *st.LastRunAt
		st.LastRunAt = &t
	}
	return st
}
