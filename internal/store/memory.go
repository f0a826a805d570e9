package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/geo"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/scope"
)

// Memory is an in-memory store used by tests and when no DATABASE_URL is
// set. It enforces the same state-machine and dedup semantics as Postgres.
type Memory struct {
	mu            sync.Mutex
	agents        map[string]models.Agent
	agentsByEmail map[string]string
	zonalAssign   map[string][]string // supervisor agent id -> zonal ids
	bizAssign     map[string][]string // agent id -> business ids
	circuitAssign map[string][]string // agent id -> circuit ids

	sessions   map[string]*models.WorkingSession
	history    []models.WorkingSession
	samples    []models.GpsSample
	sampleKeys map[sampleKey]struct{}
	nextSample int

	businesses map[string]models.Business
	zonals     map[string]models.Zonal
	circuits   map[string]models.Circuit
	routes     map[string]models.Route
	pdvs       map[string]models.PDV
	visits     []models.PdvVisit

	fcmTokens map[string][]string // agent id -> tokens
}

var _ Store = (*Memory)(nil)

type sampleKey struct {
	agentID    string
	capturedAt int64
	lat, lon   float64
}

func NewMemory() *Memory {
	return &Memory{
		agents:        map[string]models.Agent{},
		agentsByEmail: map[string]string{},
		zonalAssign:   map[string][]string{},
		bizAssign:     map[string][]string{},
		circuitAssign: map[string][]string{},
		sessions:      map[string]*models.WorkingSession{},
		sampleKeys:    map[sampleKey]struct{}{},
		nextSample:    1,
		businesses:    map[string]models.Business{},
		zonals:        map[string]models.Zonal{},
		circuits:      map[string]models.Circuit{},
		routes:        map[string]models.Route{},
		pdvs:          map[string]models.PDV{},
		fcmTokens:     map[string][]string{},
	}
}

// ─── Fixture helpers (used by seeding and tests) ───

func (m *Memory) AddBusiness(b models.Business) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.businesses[b.ID] = b
}

func (m *Memory) AddZonal(z models.Zonal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zonals[z.ID] = z
}

func (m *Memory) AddCircuit(c models.Circuit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuits[c.ID] = c
}

func (m *Memory) AddRoute(r models.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[r.ID] = r
}

func (m *Memory) AddPDV(p models.PDV) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdvs[p.ID] = p
}

func (m *Memory) AddVisit(v models.PdvVisit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.PdvName == nil {
		if pdv, ok := m.pdvs[v.PdvID]; ok {
			name := pdv.Name
			v.PdvName = &name
		}
	}
	m.visits = append(m.visits, v)
}

func (m *Memory) AssignZonal(agentID, zonalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zonalAssign[agentID] = append(m.zonalAssign[agentID], zonalID)
}

func (m *Memory) AssignBusiness(agentID, businessID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bizAssign[agentID] = append(m.bizAssign[agentID], businessID)
}

func (m *Memory) AssignCircuit(agentID, circuitID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitAssign[agentID] = append(m.circuitAssign[agentID], circuitID)
}

// ─── Agents ───

func (m *Memory) GetAgentByEmail(_ context.Context, email string) (models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.agentsByEmail[email]
	if !ok {
		return models.Agent{}, apperrors.ErrNotFound
	}
	return m.agents[id], nil
}

func (m *Memory) GetAgentByID(_ context.Context, id string) (models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return models.Agent{}, apperrors.ErrNotFound
	}
	return agent, nil
}

func (m *Memory) CreateAgent(_ context.Context, agent models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agentsByEmail[agent.Email]; exists {
		return &apperrors.ConflictError{Message: "an agent with this email already exists"}
	}
	m.agents[agent.ID] = agent
	m.agentsByEmail[agent.Email] = agent.ID
	return nil
}

func (m *Memory) ListSupervisorZonalIDs(_ context.Context, agentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string{}, m.zonalAssign[agentID]...)
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListAgentBusinessIDs(_ context.Context, agentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string{}, m.bizAssign[agentID]...)
	sort.Strings(out)
	return out, nil
}

// ─── Working sessions ───

func (m *Memory) openSessionLocked(agentID string) *models.WorkingSession {
	for _, s := range m.sessions {
		if s.AgentID == agentID && s.EndTime == nil {
			return s
		}
	}
	return nil
}

func (m *Memory) StartSession(_ context.Context, agentID string, coord *models.Coordinate, notes *string, now time.Time) (models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openSessionLocked(agentID) != nil {
		return models.WorkingSession{}, &apperrors.ConflictError{Message: "a working session is already open"}
	}
	session := models.WorkingSession{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Status:    models.SessionStatusActive,
		StartTime: now.Unix(),
		Notes:     notes,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	if coord != nil {
		session.StartLatitude = &coord.Latitude
		session.StartLongitude = &coord.Longitude
	}
	stored := session
	m.sessions[session.ID] = &stored
	return session, nil
}

func (m *Memory) GetOpenSession(_ context.Context, agentID string) (models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.openSessionLocked(agentID); s != nil {
		return *s, nil
	}
	return models.WorkingSession{}, apperrors.ErrNotFound
}

func (m *Memory) PauseSession(_ context.Context, agentID string, now time.Time) (models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.openSessionLocked(agentID)
	if s == nil {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: "none", Attempted: "pause"}
	}
	if s.Status != models.SessionStatusActive {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: string(s.Status), Attempted: "pause"}
	}
	ts := now.Unix()
	s.Status = models.SessionStatusPaused
	s.PauseStartTime = &ts
	s.UpdatedAt = ts
	return *s, nil
}

func (m *Memory) ResumeSession(_ context.Context, agentID string, now time.Time) (models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.openSessionLocked(agentID)
	if s == nil {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: "none", Attempted: "resume"}
	}
	if s.Status != models.SessionStatusPaused {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: string(s.Status), Attempted: "resume"}
	}
	if s.PauseStartTime != nil {
		s.TotalPauseSeconds += int(now.Unix() - *s.PauseStartTime)
	}
	s.Status = models.SessionStatusActive
	s.PauseStartTime = nil
	s.UpdatedAt = now.Unix()
	return *s, nil
}

func (m *Memory) EndSession(_ context.Context, agentID string, coord *models.Coordinate, now time.Time, reason string) (models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.openSessionLocked(agentID)
	if s == nil {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: "none", Attempted: "end"}
	}
	m.endSessionLocked(s, coord, now.Unix(), reason)
	return *s, nil
}

func (m *Memory) endSessionLocked(s *models.WorkingSession, coord *models.Coordinate, endUnix int64, reason string) {
	if s.PauseStartTime != nil {
		s.TotalPauseSeconds += int(endUnix - *s.PauseStartTime)
		s.PauseStartTime = nil
	}
	s.Status = models.SessionStatusEnded
	s.EndTime = &endUnix
	s.EndReason = &reason
	s.UpdatedAt = endUnix
	if coord != nil {
		s.EndLatitude = &coord.Latitude
		s.EndLongitude = &coord.Longitude
	}
	m.history = append(m.history, *s)
}

func (m *Memory) ForceEndOpenSessions(_ context.Context, cutoff time.Time) ([]models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ended []models.WorkingSession
	for _, s := range m.sessions {
		if s.EndTime == nil && s.StartTime <= cutoff.Unix() {
			m.endSessionLocked(s, nil, cutoff.Unix(), models.EndReasonAutoClosed)
			ended = append(ended, *s)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].StartTime < ended[j].StartTime })
	return ended, nil
}

func (m *Memory) ListSessionsStartedBetween(_ context.Context, agentID string, from, to time.Time) ([]models.WorkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.WorkingSession{}
	for _, s := range m.sessions {
		if s.AgentID == agentID && s.StartTime >= from.Unix() && s.StartTime < to.Unix() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

// ─── GPS samples ───

func (m *Memory) InsertSamples(_ context.Context, samples []models.GpsSample) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, s := range samples {
		key := sampleKey{agentID: s.AgentID, capturedAt: s.CapturedAt, lat: s.Latitude, lon: s.Longitude}
		if _, dup := m.sampleKeys[key]; dup {
			continue
		}
		s.ID = m.nextSample
		m.nextSample++
		m.sampleKeys[key] = struct{}{}
		m.samples = append(m.samples, s)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) ListSamples(_ context.Context, agentID string, from, to time.Time) ([]models.GpsSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.GpsSample{}
	for _, s := range m.samples {
		if s.AgentID == agentID && s.CapturedAt >= from.Unix() && s.CapturedAt < to.Unix() {
			out = append(out, s)
		}
	}
	// Batches arrive unordered; every consumer needs chronological order
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapturedAt != out[j].CapturedAt {
			return out[i].CapturedAt < out[j].CapturedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ─── PDV visits ───

func (m *Memory) ListVisits(_ context.Context, agentID string, from, to time.Time) ([]models.PdvVisit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PdvVisit{}
	for _, v := range m.visits {
		if v.AgentID == agentID && v.CheckIn >= from.Unix() && v.CheckIn < to.Unix() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn < out[j].CheckIn })
	return out, nil
}

// ─── Org reference data ───

func (m *Memory) zonalOfRouteLocked(routeID string) string {
	route, ok := m.routes[routeID]
	if !ok {
		return ""
	}
	circuit, ok := m.circuits[route.CircuitID]
	if !ok {
		return ""
	}
	return circuit.ZonalID
}

func (m *Memory) ListBusinesses(_ context.Context, sc scope.Scope) ([]models.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Business{}
	for _, b := range m.businesses {
		if sc.AllowsBusiness(b.ID) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListZonals(_ context.Context, sc scope.Scope) ([]models.Zonal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Zonal{}
	for _, z := range m.zonals {
		if sc.AllowsZonal(z.ID) {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListCircuits(_ context.Context, sc scope.Scope) ([]models.Circuit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Circuit{}
	for _, c := range m.circuits {
		if sc.AllowsZonal(c.ZonalID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListRoutes(_ context.Context, sc scope.Scope) ([]models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Route{}
	for _, r := range m.routes {
		if circuit, ok := m.circuits[r.CircuitID]; ok && sc.AllowsZonal(circuit.ZonalID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListPDVs(_ context.Context, sc scope.Scope) ([]models.PDV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PDV{}
	for _, p := range m.pdvs {
		if sc.AllowsZonal(m.zonalOfRouteLocked(p.RouteID)) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ─── Proximity search ───

func (m *Memory) nearbyLocked(lat, lon, radiusKm float64, allowed func(models.PDV) bool) []models.PDVWithDistance {
	out := []models.PDVWithDistance{}
	for _, p := range m.pdvs {
		if !p.HasCoordinates() || !allowed(p) {
			continue
		}
		d := geo.HaversineKm(lat, lon, *p.Latitude, *p.Longitude)
		// strict less-than: a PDV exactly on the boundary is excluded
		if d < radiusKm {
			out = append(out, models.PDVWithDistance{PDV: p, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

func (m *Memory) NearbyPDVs(_ context.Context, lat, lon, radiusKm float64) ([]models.PDVWithDistance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nearbyLocked(lat, lon, radiusKm, func(models.PDV) bool { return true }), nil
}

func (m *Memory) NearbyPDVsScoped(_ context.Context, sc scope.Scope, lat, lon, radiusKm float64) ([]models.PDVWithDistance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nearbyLocked(lat, lon, radiusKm, func(p models.PDV) bool {
		return sc.AllowsZonal(m.zonalOfRouteLocked(p.RouteID))
	}), nil
}

// ─── Supervisor dashboard ───

func (m *Memory) ListActiveAgents(_ context.Context, sc scope.Scope) ([]models.AgentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sc.DeniesEverything() {
		return []models.AgentStatus{}, nil
	}

	visible := func(agentID string) bool {
		if sc.Kind != scope.ZonalRestricted {
			return true
		}
		for _, circuitID := range m.circuitAssign[agentID] {
			if circuit, ok := m.circuits[circuitID]; ok && sc.AllowsZonal(circuit.ZonalID) {
				return true
			}
		}
		return false
	}

	out := []models.AgentStatus{}
	for _, s := range m.sessions {
		if s.EndTime != nil {
			continue
		}
		agent, ok := m.agents[s.AgentID]
		if !ok || !agent.Active || !visible(agent.ID) {
			continue
		}
		sessionID := s.ID
		startTime := s.StartTime
		status := models.AgentStatus{
			AgentID:      agent.ID,
			Name:         agent.Name,
			Status:       s.Status,
			SessionID:    &sessionID,
			SessionStart: &startTime,
		}
		var latest *models.GpsSample
		for i := range m.samples {
			smp := &m.samples[i]
			if smp.AgentID != agent.ID {
				continue
			}
			if latest == nil || smp.CapturedAt > latest.CapturedAt {
				latest = smp
			}
		}
		if latest != nil {
			copySample := *latest
			status.LastLocation = &copySample
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].SessionStart > *out[j].SessionStart })
	return out, nil
}

func (m *Memory) AgentInScope(_ context.Context, sc scope.Scope, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch sc.Kind {
	case scope.Unrestricted:
		return true, nil
	case scope.SelfOnly:
		return sc.AgentID == agentID, nil
	}
	if sc.DeniesEverything() {
		return false, nil
	}
	for _, circuitID := range m.circuitAssign[agentID] {
		if circuit, ok := m.circuits[circuitID]; ok && sc.AllowsZonal(circuit.ZonalID) {
			return true, nil
		}
	}
	return false, nil
}

// ─── FCM tokens ───

func (m *Memory) SaveFCMToken(_ context.Context, agentID, token, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.fcmTokens[agentID] {
		if existing == token {
			return nil
		}
	}
	m.fcmTokens[agentID] = append(m.fcmTokens[agentID], token)
	return nil
}

func (m *Memory) ListFCMTokens(_ context.Context, agentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.fcmTokens[agentID]...), nil
}
