package engine

import (
	"testing"
	"time"
)

func TestHistory_RecordAndRecords(t *testing.T) {
	h := NewHistory(3)
	for gen := uint64(1); gen <= 5; gen++ {
		h.Record("doc-1", ProcessingRecord{Generation: gen})
	}

	records := h.Records("doc-1")
	if len(records) != 3 {
		t.Fatalf("got %d records, want the newest 3", len(records))
	}
	if records[0].Generation != 3 || records[2].Generation != 5 {
		t.Errorf("ring kept the wrong records: %+v", records)
	}

	last, ok := h.Last("doc-1")
	if !ok || last.Generation != 5 {
		t.Errorf("Last = %+v/%v, want generation 5", last, ok)
	}
}

func TestHistory_UnknownDocument(t *testing.T) {
	h := NewHistory(0)
	if got := h.Records("nope"); got != nil {
		t.Errorf("unknown document returned records: %+v", got)
	}
	if _, ok := h.Last("nope"); ok {
		t.Error("unknown document reported a last record")
	}
}

func TestHistory_RecordsReturnsCopy(t *testing.T) {
	h := NewHistory(5)
	h.Record("doc-1", ProcessingRecord{Generation: 1})

	records := h.Records("doc-1")
	records[0].Generation = 99
	if again := h.Records("doc-1"); again[0].Generation != 1 {
		t.Error("Records exposed internal state")
	}
}

func TestHistory_Forget(t *testing.T) {
	h := NewHistory(5)
	h.Record("doc-1", ProcessingRecord{Generation: 1})
	h.Forget("doc-1")
	if got := h.Records("doc-1"); got != nil {
		t.Errorf("forgotten document still has records: %+v", got)
	}
}

func TestHistory_Purge(t *testing.T) {
	h := NewHistory(5)
	current := time.Now()
	h.now = func() time.Time { return current }

	h.Record("old-doc", ProcessingRecord{Generation: 1})
	current = current.Add(time.Hour)
	h.Record("new-doc", ProcessingRecord{Generation: 1})

	if removed := h.Purge(30 * time.Minute); removed != 1 {
		t.Fatalf("purged %d documents, want 1", removed)
	}
	if h.Records("old-doc") != nil {
		t.Error("stale document survived the purge")
	}
	if h.Records("new-doc") == nil {
		t.Error("fresh document was purged")
	}
}
