package engine

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/StoryLink-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Debounced scan scheduling
// ---------------------------------------------------------------------------

// ScanState is the per-document scheduling state.
type ScanState string

const (
	// ScanIdle means no scan is pending for the document.
	ScanIdle ScanState = "idle"

	// ScanPending means a scan is scheduled and waiting out the debounce
	// delay; another Schedule call within the delay supersedes it.
	ScanPending ScanState = "pending"

	// ScanCancelled means the document was closed; in-flight results are
	// discarded until the next Schedule call revives it.
	ScanCancelled ScanState = "cancelled"
)

// Runner executes one analysis.  The scheduler calls it off the timer
// goroutine once the debounce delay elapses without a newer request.
type Runner func(ctx context.Context, req AnalysisRequest) (*DetectionResult, error)

// DeliverFunc receives results that are still current when their run
// finishes.  Stale and cancelled results never reach it.
type DeliverFunc func(result *DetectionResult)

// Scheduler debounces real-time analysis requests per document.  Every
// Schedule call advances the document's generation counter; only the run
// whose generation is still newest at completion time is delivered.
type Scheduler struct {
	debounce time.Duration
	runner   Runner
	deliver  DeliverFunc
	logger   logging.Logger
	metrics  *prometheus.DetectionMetrics

	mu      sync.Mutex
	docs    map[string]*docState
	stopped bool
	running sync.WaitGroup
}

type docState struct {
	state      ScanState
	generation uint64
	timer      *time.Timer
	pending    AnalysisRequest
}

// NewScheduler builds a scheduler.  deliver may be nil when the caller only
// cares about side effects of the runner.
func NewScheduler(debounce time.Duration, runner Runner, deliver DeliverFunc, logger logging.Logger, metrics *prometheus.DetectionMetrics) (*Scheduler, error) {
	if debounce <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "scheduler debounce must be positive")
	}
	if runner == nil {
		return nil, errors.New(errors.ErrCodeValidation, "scheduler requires a runner")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopDetectionMetrics()
	}
	return &Scheduler{
		debounce: debounce,
		runner:   runner,
		deliver:  deliver,
		logger:   logger.Named("scheduler"),
		metrics:  metrics,
		docs:     make(map[string]*docState),
	}, nil
}

// Schedule queues req for execution after the debounce delay.  A pending
// scan for the same document is superseded.  The returned generation
// identifies the scheduled run.
func (s *Scheduler) Schedule(req AnalysisRequest) (uint64, error) {
	if req.DocumentID == "" {
		return 0, errors.New(errors.ErrCodeValidation, "document id is required")
	}
	if req.Trigger == "" {
		req.Trigger = TriggerRealTime
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, errors.New(errors.ErrCodeServiceUnavailable, "scheduler is stopped")
	}

	ds := s.docs[req.DocumentID]
	if ds == nil {
		ds = &docState{state: ScanIdle}
		s.docs[req.DocumentID] = ds
	}
	if ds.state == ScanPending && ds.timer != nil {
		ds.timer.Stop()
		s.metrics.ScansSupersededTotal.WithLabelValues().Inc()
	}

	ds.generation++
	gen := ds.generation
	req.Generation = gen
	ds.pending = req
	ds.state = ScanPending
	ds.timer = time.AfterFunc(s.debounce, func() { s.fire(req.DocumentID, gen) })

	s.metrics.ScansScheduledTotal.WithLabelValues(req.Trigger).Inc()
	return gen, nil
}

// Cancel discards any pending scan for the document and invalidates
// in-flight runs.  The document stays known so a later Schedule revives it.
func (s *Scheduler) Cancel(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.docs[documentID]
	if ds == nil {
		return
	}
	if ds.timer != nil {
		ds.timer.Stop()
		ds.timer = nil
	}
	ds.generation++
	ds.state = ScanCancelled
}

// State returns the scheduling state for a document.
func (s *Scheduler) State(documentID string) ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds := s.docs[documentID]; ds != nil {
		return ds.state
	}
	return ScanIdle
}

// Generation returns the newest generation assigned to a document.
func (s *Scheduler) Generation(documentID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds := s.docs[documentID]; ds != nil {
		return ds.generation
	}
	return 0
}

// IsCurrent reports whether gen is still the newest generation for the
// document and it has not been cancelled.
func (s *Scheduler) IsCurrent(documentID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.docs[documentID]
	return ds != nil && ds.generation == gen && ds.state != ScanCancelled
}

// Stop cancels every pending timer and waits for in-flight runs to finish.
// Results completing after Stop are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, ds := range s.docs {
		if ds.timer != nil {
			ds.timer.Stop()
			ds.timer = nil
		}
		ds.state = ScanCancelled
		ds.generation++
	}
	s.mu.Unlock()
	s.running.Wait()
}

// fire runs when a debounce timer elapses.  The generation check protects
// against a timer racing a Schedule call that already superseded it.
func (s *Scheduler) fire(documentID string, gen uint64) {
	s.mu.Lock()
	ds := s.docs[documentID]
	if ds == nil || s.stopped || ds.state != ScanPending || ds.generation != gen {
		s.mu.Unlock()
		return
	}
	ds.state = ScanIdle
	ds.timer = nil
	req := ds.pending
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	s.metrics.ScansExecutedTotal.WithLabelValues(req.Trigger).Inc()
	result, err := s.runner(context.Background(), req)
	if err != nil {
		s.logger.Warn("scheduled analysis failed",
			logging.String("document_id", documentID),
			logging.Uint64("generation", gen),
			logging.Err(err),
		)
		return
	}

	if !s.IsCurrent(documentID, gen) {
		s.metrics.ScansDiscardedTotal.WithLabelValues().Inc()
		s.logger.Debug("discarding stale analysis result",
			logging.String("document_id", documentID),
			logging.Uint64("generation", gen),
		)
		return
	}
	if s.deliver != nil {
		s.deliver(result)
	}
}
