package report

import (
	"context"
	"testing"
	"time"

	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/store"
)

type fakeWriter struct {
	spreadsheetID string
	writeRange    string
	rows          [][]interface{}
	calls         int
}

func (f *fakeWriter) Update(ctx context.Context, spreadsheetID, writeRange string, rows [][]interface{}) error {
	f.calls++
	f.spreadsheetID = spreadsheetID
	f.writeRange = writeRange
	f.rows = rows
	return nil
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	for _, c := range []*models.Case{
		{ID: "c1", UserID: "u1", PatientName: "Asha Verma", Status: "AwaitingDelivery", Priority: "Normal"},
		{ID: "c2", UserID: "u1", PatientName: "Ravi Iyer", Status: "New", Priority: "High"},
	} {
		if err := mem.PutCase(ctx, c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := &fakeWriter{}
	s := NewSyncer(mem, w, "sheet-1")

	if err := s.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if w.calls != 1 || w.spreadsheetID != "sheet-1" {
		t.Errorf("writer called %d times for %q", w.calls, w.spreadsheetID)
	}
	if len(w.rows) != 3 {
		t.Fatalf("got %d rows, want header plus 2 cases", len(w.rows))
	}
	if w.rows[0][0] != "Case ID" {
		t.Errorf("first row = %v, want header", w.rows[0])
	}
}

func TestRows(t *testing.T) {
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	rows := Rows([]models.Case{{
		ID:          "c9",
		PatientName: "Asha Verma",
		DentistName: "Dr. Mehta",
		Status:      "CasePlanningComplete",
		Priority:    "Normal",
		CreatedAt:   created,
		UpdatedAt:   created,
	}})

	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	row := rows[1]
	if row[0] != "c9" || row[1] != "Asha Verma" || row[3] != "CasePlanningComplete" {
		t.Errorf("row = %v", row)
	}
	if row[6] != "2026-01-05T08:00:00Z" {
		t.Errorf("created cell = %v, want RFC 3339", row[6])
	}
}

func TestRun_BadCron(t *testing.T) {
	s := NewSyncer(store.NewMemory(), &fakeWriter{}, "sheet-1")
	if err := s.Run(context.Background(), "not a cron"); err == nil {
		t.Error("expected parse error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewSyncer(store.NewMemory(), &fakeWriter{}, "sheet-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "* * * * *") }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
