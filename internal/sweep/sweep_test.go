package sweep

import (
	"context"
	"testing"
	"time"

	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/store"
)

var lima = time.FixedZone("America/Lima", -5*3600)

func TestNextCutoff(t *testing.T) {
	s := New(store.NewMemory(), nil, nil, lima, nil)

	morning := time.Date(2025, 6, 2, 9, 30, 0, 0, lima)
	next := s.NextCutoff(morning)
	want := time.Date(2025, 6, 2, 21, 0, 0, 0, lima)
	if !next.Equal(want) {
		t.Fatalf("morning: got %s, want %s", next, want)
	}

	// At or after the cutoff the sweep rolls to tomorrow
	atCutoff := time.Date(2025, 6, 2, 21, 0, 0, 0, lima)
	next = s.NextCutoff(atCutoff)
	want = time.Date(2025, 6, 3, 21, 0, 0, 0, lima)
	if !next.Equal(want) {
		t.Fatalf("at cutoff: got %s, want %s", next, want)
	}

	evening := time.Date(2025, 6, 2, 22, 15, 0, 0, lima)
	next = s.NextCutoff(evening)
	if !next.Equal(want) {
		t.Fatalf("evening: got %s, want %s", next, want)
	}
}

func TestRunOnceClosesOpenSessions(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, lima)
	m.StartSession(ctx, "a1", nil, nil, start)
	m.StartSession(ctx, "a2", nil, nil, start)
	m.PauseSession(ctx, "a2", start.Add(time.Hour))
	m.StartSession(ctx, "a3", nil, nil, start)
	m.EndSession(ctx, "a3", nil, start.Add(2*time.Hour), models.EndReasonManual)

	cutoff := time.Date(2025, 6, 2, 21, 0, 0, 0, lima)
	s := New(m, nil, nil, lima, func() time.Time { return cutoff })

	n, err := s.RunOnce(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("closed %d sessions, want 2", n)
	}

	for _, agentID := range []string{"a1", "a2"} {
		if _, err := m.GetOpenSession(ctx, agentID); err == nil {
			t.Fatalf("agent %s still has an open session", agentID)
		}
	}

	// Idempotent: a second run closes nothing
	n, err = s.RunOnce(ctx, cutoff.Add(time.Minute))
	if err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}
