package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

// =========================================================================
// Scheduler
// =========================================================================

type runnerRecorder struct {
	mu   sync.Mutex
	reqs []AnalysisRequest
	fn   func(ctx context.Context, req AnalysisRequest) (*DetectionResult, error)
}

func (r *runnerRecorder) run(ctx context.Context, req AnalysisRequest) (*DetectionResult, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(ctx, req)
	}
	return &DetectionResult{DocumentID: req.DocumentID, Generation: req.Generation}, nil
}

func (r *runnerRecorder) requests() []AnalysisRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AnalysisRequest, len(r.reqs))
	copy(out, r.reqs)
	return out
}

type deliveryRecorder struct {
	mu      sync.Mutex
	results []*DetectionResult
	signal  chan struct{}
}

func newDeliveryRecorder() *deliveryRecorder {
	return &deliveryRecorder{signal: make(chan struct{}, 16)}
}

func (d *deliveryRecorder) deliver(result *DetectionResult) {
	d.mu.Lock()
	d.results = append(d.results, result)
	d.mu.Unlock()
	d.signal <- struct{}{}
}

func (d *deliveryRecorder) wait(t *testing.T) *DetectionResult {
	t.Helper()
	select {
	case <-d.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a delivered result")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results[len(d.results)-1]
}

func (d *deliveryRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.results)
}

func newTestScheduler(t *testing.T, debounce time.Duration, runner *runnerRecorder, delivery *deliveryRecorder) *Scheduler {
	t.Helper()
	var deliver DeliverFunc
	if delivery != nil {
		deliver = delivery.deliver
	}
	s, err := NewScheduler(debounce, runner.run, deliver, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestScheduler_DebouncesToLatestRequest(t *testing.T) {
	runner := &runnerRecorder{}
	delivery := newDeliveryRecorder()
	s := newTestScheduler(t, 50*time.Millisecond, runner, delivery)

	var lastGen uint64
	for i := 0; i < 5; i++ {
		gen, err := s.Schedule(AnalysisRequest{
			DocumentID: "doc-1",
			ProjectID:  "proj-1",
			Content:    "draft " + string(rune('a'+i)),
		})
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		lastGen = gen
	}

	result := delivery.wait(t)
	if result.Generation != lastGen {
		t.Errorf("delivered generation %d, want latest %d", result.Generation, lastGen)
	}

	reqs := runner.requests()
	if len(reqs) != 1 {
		t.Fatalf("ran %d times, want exactly 1: %+v", len(reqs), reqs)
	}
	if reqs[0].Content != "draft e" {
		t.Errorf("ran with %q, want the newest content", reqs[0].Content)
	}
	if delivery.count() != 1 {
		t.Errorf("delivered %d results, want 1", delivery.count())
	}
}

func TestScheduler_IndependentDocuments(t *testing.T) {
	runner := &runnerRecorder{}
	delivery := newDeliveryRecorder()
	s := newTestScheduler(t, 20*time.Millisecond, runner, delivery)

	if _, err := s.Schedule(AnalysisRequest{DocumentID: "doc-1", ProjectID: "p", Content: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(AnalysisRequest{DocumentID: "doc-2", ProjectID: "p", Content: "b"}); err != nil {
		t.Fatal(err)
	}

	delivery.wait(t)
	delivery.wait(t)
	if got := len(runner.requests()); got != 2 {
		t.Fatalf("ran %d times, want one per document", got)
	}
}

func TestScheduler_CancelDropsPendingScan(t *testing.T) {
	runner := &runnerRecorder{}
	delivery := newDeliveryRecorder()
	s := newTestScheduler(t, 30*time.Millisecond, runner, delivery)

	if _, err := s.Schedule(AnalysisRequest{DocumentID: "doc-1", ProjectID: "p", Content: "a"}); err != nil {
		t.Fatal(err)
	}
	s.Cancel("doc-1")

	if got := s.State("doc-1"); got != ScanCancelled {
		t.Errorf("state = %q, want cancelled", got)
	}
	time.Sleep(100 * time.Millisecond)
	if len(runner.requests()) != 0 {
		t.Errorf("cancelled scan still ran: %+v", runner.requests())
	}
	if delivery.count() != 0 {
		t.Errorf("cancelled scan delivered a result")
	}
}

func TestScheduler_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	runner := &runnerRecorder{fn: func(_ context.Context, req AnalysisRequest) (*DetectionResult, error) {
		started <- struct{}{}
		<-release
		return &DetectionResult{DocumentID: req.DocumentID, Generation: req.Generation}, nil
	}}
	delivery := newDeliveryRecorder()
	s := newTestScheduler(t, 10*time.Millisecond, runner, delivery)

	if _, err := s.Schedule(AnalysisRequest{DocumentID: "doc-1", ProjectID: "p", Content: "old"}); err != nil {
		t.Fatal(err)
	}
	<-started

	// A newer edit arrives while the first run is still executing.
	gen2, err := s.Schedule(AnalysisRequest{DocumentID: "doc-1", ProjectID: "p", Content: "new"})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	close(release)

	// Only the newest generation may be delivered, exactly once.
	result := delivery.wait(t)
	if result.Generation != gen2 {
		t.Errorf("delivered generation %d, want %d", result.Generation, gen2)
	}
	time.Sleep(50 * time.Millisecond)
	if delivery.count() != 1 {
		t.Errorf("delivered %d results, want 1 (stale one discarded)", delivery.count())
	}
}

func TestScheduler_StateTransitions(t *testing.T) {
	runner := &runnerRecorder{}
	delivery := newDeliveryRecorder()
	s := newTestScheduler(t, 20*time.Millisecond, runner, delivery)

	if got := s.State("doc-1"); got != ScanIdle {
		t.Errorf("unknown document state = %q, want idle", got)
	}
	if _, err := s.Schedule(AnalysisRequest{DocumentID: "doc-1", ProjectID: "p", Content: "a"}); err != nil {
		t.Fatal(err)
	}
	if got := s.State("doc-1"); got != ScanPending {
		t.Errorf("state after schedule = %q, want pending", got)
	}
	delivery.wait(t)
	if got := s.State("doc-1"); got != ScanIdle {
		t.Errorf("state after run = %q, want idle", got)
	}
}

func TestScheduler_ScheduleAfterStopFails(t *testing.T) {
	runner := &runnerRecorder{}
	s, err := NewScheduler(10*time.Millisecond, runner.run, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if _, err := s.Schedule(AnalysisRequest{DocumentID: "doc-1", ProjectID: "p"}); err == nil {
		t.Fatal("Schedule after Stop should fail")
	}
}

func TestScheduler_RequiresDocumentID(t *testing.T) {
	runner := &runnerRecorder{}
	s := newTestScheduler(t, 10*time.Millisecond, runner, nil)
	if _, err := s.Schedule(AnalysisRequest{ProjectID: "p"}); err == nil {
		t.Fatal("Schedule without a document id should fail")
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	if _, err := NewScheduler(0, func(context.Context, AnalysisRequest) (*DetectionResult, error) { return nil, nil }, nil, nil, nil); err == nil {
		t.Error("zero debounce accepted")
	}
	if _, err := NewScheduler(time.Millisecond, nil, nil, nil, nil); err == nil {
		t.Error("nil runner accepted")
	}
}
