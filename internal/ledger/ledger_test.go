package ledger

import (
	"testing"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
)

func TestLedger_AppendAssignsSequentialIDs(t *testing.T) {
	l := New(100)
	id1 := l.Append(types.IncidentRecord{AlertName: "A"})
	id2 := l.Append(types.IncidentRecord{AlertName: "B"})
	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", id1, id2)
	}
}

func TestLedger_AppendSetsTimestamp(t *testing.T) {
	l := New(100)
	l.Append(types.IncidentRecord{AlertName: "A"})
	recs := l.Recent(1)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Timestamp.IsZero() {
		t.Error("timestamp not set on append")
	}
}

func TestLedger_RecentMostRecentFirst(t *testing.T) {
	l := New(100)
	l.Append(types.IncidentRecord{AlertName: "first"})
	l.Append(types.IncidentRecord{AlertName: "second"})
	l.Append(types.IncidentRecord{AlertName: "third"})

	recs := l.Recent(2)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].AlertName != "third" || recs[1].AlertName != "second" {
		t.Errorf("order = %q, %q, want third, second", recs[0].AlertName, recs[1].AlertName)
	}
}

func TestLedger_RetentionDropsOldest(t *testing.T) {
	l := New(3)
	for i := 0; i < 5; i++ {
		l.Append(types.IncidentRecord{AlertName: "A"})
	}
	if l.Len() != 3 {
		t.Errorf("length = %d, want 3", l.Len())
	}
	recs := l.Recent(0)
	if recs[len(recs)-1].ID != 3 {
		t.Errorf("oldest retained id = %d, want 3", recs[len(recs)-1].ID)
	}
}

// Trimming must never reset the counter: ids keep growing past retention.
func TestLedger_IDsMonotonicAcrossTrim(t *testing.T) {
	l := New(2)
	for i := 0; i < 4; i++ {
		l.Append(types.IncidentRecord{AlertName: "A"})
	}
	id := l.Append(types.IncidentRecord{AlertName: "A"})
	if id != 5 {
		t.Errorf("id after trim = %d, want 5", id)
	}
}

func TestLedger_RecentLimitLargerThanLen(t *testing.T) {
	l := New(100)
	l.Append(types.IncidentRecord{AlertName: "A"})
	recs := l.Recent(50)
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1", len(recs))
	}
}
