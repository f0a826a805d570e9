// Package sweep force-ends working sessions still open at the daily
// cutoff. Field agents routinely forget to end their session; the sweep
// bounds how long one can stay open.
package sweep

import (
	"context"
	"log"
	"time"

	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/services"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/internal/websocket"
)

// CutoffHour is the local hour at which open sessions are closed
const CutoffHour = 21

type Sweeper struct {
	store store.Store
	hub   *websocket.Hub
	fcm   *services.FCMService // nil when push is not configured
	loc   *time.Location
	now   func() time.Time
}

func New(st store.Store, hub *websocket.Hub, fcm *services.FCMService, loc *time.Location, now func() time.Time) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: st, hub: hub, fcm: fcm, loc: loc, now: now}
}

// NextCutoff returns the next daily cutoff strictly after t
func (s *Sweeper) NextCutoff(t time.Time) time.Time {
	local := t.In(s.loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), CutoffHour, 0, 0, 0, s.loc)
	if !cutoff.After(local) {
		cutoff = cutoff.Add(24 * time.Hour)
	}
	return cutoff
}

// Run blocks, sweeping once a day at the cutoff until the context is
// cancelled. Fire-and-forget: failures are logged and the next sweep is
// scheduled regardless.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.NextCutoff(s.now())
		log.Printf("🧹 Next session sweep scheduled for %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx, next); err != nil {
			log.Printf("❌ Session sweep failed: %v", err)
		}
	}
}

// RunOnce closes every session still open as of the cutoff, stamping the
// cutoff as the end time, and notifies the affected agents.
func (s *Sweeper) RunOnce(ctx context.Context, cutoff time.Time) (int, error) {
	ended, err := s.store.ForceEndOpenSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ended) == 0 {
		log.Println("🧹 Session sweep: nothing to close")
		return 0, nil
	}

	log.Printf("🧹 Session sweep: force-ended %d session(s)", len(ended))
	for _, session := range ended {
		s.notify(ctx, session)
	}
	return len(ended), nil
}

func (s *Sweeper) notify(ctx context.Context, session models.WorkingSession) {
	if s.hub != nil {
		s.hub.BroadcastToAgent(session.AgentID, map[string]interface{}{
			"type":    "session_auto_closed",
			"session": session,
		})
		s.hub.BroadcastToRole("supervisor", map[string]interface{}{
			"type":     "session_ended",
			"agent_id": session.AgentID,
			"session":  session,
		})
	}

	if s.fcm == nil {
		return
	}
	tokens, err := s.store.ListFCMTokens(ctx, session.AgentID)
	if err != nil {
		log.Printf("⚠️ Could not load FCM tokens for %s: %v", session.AgentID, err)
		return
	}
	for _, token := range tokens {
		if err := s.fcm.SendSessionClosedNotification(token, session.ID, models.EndReasonAutoClosed); err != nil {
			log.Printf("⚠️ FCM notify failed for %s: %v", session.AgentID, err)
		}
	}
}
