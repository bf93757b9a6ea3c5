package engine

import (
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Processing history
// ---------------------------------------------------------------------------

// defaultHistoryDepth is how many records are kept per document.
const defaultHistoryDepth = 20

// History keeps a bounded record of recent analysis runs per document so
// clients can show processing trends and operators can spot regressions.
type History struct {
	mu      sync.RWMutex
	depth   int
	entries map[string]*historyEntry
	now     func() time.Time
}

type historyEntry struct {
	records   []ProcessingRecord
	updatedAt time.Time
}

// NewHistory builds a history keeping depth records per document; depth <= 0
// uses the default.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = defaultHistoryDepth
	}
	return &History{
		depth:   depth,
		entries: make(map[string]*historyEntry),
		now:     time.Now,
	}
}

// Record appends rec to the document's history, evicting the oldest record
// once the ring is full.
func (h *History) Record(documentID string, rec ProcessingRecord) {
	if documentID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entries[documentID]
	if e == nil {
		e = &historyEntry{}
		h.entries[documentID] = e
	}
	e.records = append(e.records, rec)
	if len(e.records) > h.depth {
		e.records = e.records[len(e.records)-h.depth:]
	}
	e.updatedAt = h.now()
}

// Records returns a copy of the document's history, oldest first.
func (h *History) Records(documentID string) []ProcessingRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e := h.entries[documentID]
	if e == nil {
		return nil
	}
	out := make([]ProcessingRecord, len(e.records))
	copy(out, e.records)
	return out
}

// Last returns the newest record for a document, if any.
func (h *History) Last(documentID string) (ProcessingRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e := h.entries[documentID]
	if e == nil || len(e.records) == 0 {
		return ProcessingRecord{}, false
	}
	return e.records[len(e.records)-1], true
}

// Forget drops the history of a single document.
func (h *History) Forget(documentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, documentID)
}

// Purge drops every document whose history has not been touched within
// maxAge and returns how many were removed.
func (h *History) Purge(maxAge time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := h.now().Add(-maxAge)
	removed := 0
	for id, e := range h.entries {
		if e.updatedAt.Before(cutoff) {
			delete(h.entries, id)
			removed++
		}
	}
	return removed
}
