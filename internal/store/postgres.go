package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/scope"
)

// Postgres implements Store on top of sqlx + lib/pq
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on open sessions and by the sample dedup key
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// ─── Agents ───

func (p *Postgres) GetAgentByEmail(ctx context.Context, email string) (models.Agent, error) {
	var agent models.Agent
	err := p.db.GetContext(ctx, &agent, `SELECT * FROM agents WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.Agent{}, fmt.Errorf("get agent by email: %w", err)
	}
	return agent, nil
}

func (p *Postgres) GetAgentByID(ctx context.Context, id string) (models.Agent, error) {
	var agent models.Agent
	err := p.db.GetContext(ctx, &agent, `SELECT * FROM agents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

func (p *Postgres) CreateAgent(ctx context.Context, agent models.Agent) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO agents (id, email, password, name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		agent.ID, agent.Email, agent.Password, agent.Name, agent.Role, agent.Active, agent.CreatedAt)
	if isUniqueViolation(err) {
		return &apperrors.ConflictError{Message: "an agent with this email already exists"}
	}
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (p *Postgres) ListSupervisorZonalIDs(ctx context.Context, agentID string) ([]string, error) {
	ids := []string{}
	err := p.db.SelectContext(ctx, &ids, `
		SELECT zonal_id FROM zonal_supervisors
		WHERE agent_id = $1 AND active = TRUE
		ORDER BY zonal_id`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list supervisor zonals: %w", err)
	}
	return ids, nil
}

func (p *Postgres) ListAgentBusinessIDs(ctx context.Context, agentID string) ([]string, error) {
	ids := []string{}
	err := p.db.SelectContext(ctx, &ids, `
		SELECT business_id FROM agent_businesses
		WHERE agent_id = $1
		ORDER BY business_id`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent businesses: %w", err)
	}
	return ids, nil
}

// ─── Working sessions ───

// StartSession creates a new active session. Uniqueness of the open
// session is enforced twice: a row-locked read inside the transaction for
// the common case, and the partial unique index on (agent_id) WHERE
// end_time IS NULL for the race between concurrent starts.
func (p *Postgres) StartSession(ctx context.Context, agentID string, coord *models.Coordinate, notes *string, now time.Time) (models.WorkingSession, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("start session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.GetContext(ctx, &existingID, `
		SELECT id FROM working_sessions
		WHERE agent_id = $1 AND end_time IS NULL
		FOR UPDATE`, agentID)
	if err == nil {
		return models.WorkingSession{}, &apperrors.ConflictError{Message: "a working session is already open"}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.WorkingSession{}, fmt.Errorf("start session: check open: %w", err)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO working_sessions (
			id, agent_id, status, start_time, start_latitude, start_longitude,
			total_pause_seconds, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $8)`,
		session.ID, session.AgentID, session.Status, session.StartTime,
		session.StartLatitude, session.StartLongitude, session.Notes, session.CreatedAt)
	if isUniqueViolation(err) {
		return models.WorkingSession{}, &apperrors.ConflictError{Message: "a working session is already open"}
	}
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("start session: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.WorkingSession{}, &apperrors.ConflictError{Message: "a working session is already open"}
		}
		return models.WorkingSession{}, fmt.Errorf("start session: commit: %w", err)
	}
	return session, nil
}

func (p *Postgres) GetOpenSession(ctx context.Context, agentID string) (models.WorkingSession, error) {
	var session models.WorkingSession
	err := p.db.GetContext(ctx, &session, `
		SELECT * FROM working_sessions
		WHERE agent_id = $1 AND end_time IS NULL
		LIMIT 1`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WorkingSession{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("get open session: %w", err)
	}
	return session, nil
}

func (p *Postgres) PauseSession(ctx context.Context, agentID string, now time.Time) (models.WorkingSession, error) {
	session, err := p.GetOpenSession(ctx, agentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: "none", Attempted: "pause"}
	}
	if err != nil {
		return models.WorkingSession{}, err
	}
	if session.Status != models.SessionStatusActive {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: string(session.Status), Attempted: "pause"}
	}

	_, err = p.db.ExecContext(ctx, `
		UPDATE working_sessions
		SET status = 'paused', pause_start_time = $1, updated_at = $1
		WHERE id = $2 AND status = 'active'`,
		now.Unix(), session.ID)
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("pause session: %w", err)
	}
	return p.getSession(ctx, session.ID)
}

func (p *Postgres) ResumeSession(ctx context.Context, agentID string, now time.Time) (models.WorkingSession, error) {
	session, err := p.GetOpenSession(ctx, agentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: "none", Attempted: "resume"}
	}
	if err != nil {
		return models.WorkingSession{}, err
	}
	if session.Status != models.SessionStatusPaused {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: string(session.Status), Attempted: "resume"}
	}

	pauseSeconds := 0
	if session.PauseStartTime != nil {
		pauseSeconds = int(now.Unix() - *session.PauseStartTime)
	}

	_, err = p.db.ExecContext(ctx, `
		UPDATE working_sessions
		SET status = 'active',
			total_pause_seconds = total_pause_seconds + $1,
			pause_start_time = NULL,
			updated_at = $2
		WHERE id = $3 AND status = 'paused'`,
		pauseSeconds, now.Unix(), session.ID)
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("resume session: %w", err)
	}
	return p.getSession(ctx, session.ID)
}

func (p *Postgres) EndSession(ctx context.Context, agentID string, coord *models.Coordinate, now time.Time, reason string) (models.WorkingSession, error) {
	session, err := p.GetOpenSession(ctx, agentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.WorkingSession{}, &apperrors.InvalidStateError{Current: "none", Attempted: "end"}
	}
	if err != nil {
		return models.WorkingSession{}, err
	}
	return p.endSession(ctx, session, coord, now.Unix(), reason)
}

func (p *Postgres) endSession(ctx context.Context, session models.WorkingSession, coord *models.Coordinate, endUnix int64, reason string) (models.WorkingSession, error) {
	totalPause := int64(session.TotalPauseSeconds)
	if session.PauseStartTime != nil {
		totalPause += endUnix - *session.PauseStartTime
	}

	var endLat, endLon *float64
	if coord != nil {
		endLat = &coord.Latitude
		endLon = &coord.Longitude
	}

	_, err := p.db.ExecContext(ctx, `
		UPDATE working_sessions
		SET status = 'ended',
			end_time = $1,
			end_latitude = $2,
			end_longitude = $3,
			total_pause_seconds = $4,
			pause_start_time = NULL,
			end_reason = $5,
			updated_at = $1
		WHERE id = $6 AND end_time IS NULL`,
		endUnix, endLat, endLon, totalPause, reason, session.ID)
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("end session: %w", err)
	}

	// History row mirrors the session at end time for reporting
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO session_history (
			id, agent_id, start_time, end_time, total_pause_seconds, end_reason, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		session.ID, session.AgentID, session.StartTime, endUnix, totalPause, reason, endUnix)
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("end session: history: %w", err)
	}

	return p.getSession(ctx, session.ID)
}

// ForceEndOpenSessions ends every session still open as of the cutoff,
// stamping the cutoff as end time. Invoked by the daily sweep.
func (p *Postgres) ForceEndOpenSessions(ctx context.Context, cutoff time.Time) ([]models.WorkingSession, error) {
	var open []models.WorkingSession
	err := p.db.SelectContext(ctx, &open, `
		SELECT * FROM working_sessions
		WHERE end_time IS NULL AND start_time <= $1
		ORDER BY start_time`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("force end: list open: %w", err)
	}

	ended := make([]models.WorkingSession, 0, len(open))
	for _, session := range open {
		s, err := p.endSession(ctx, session, nil, cutoff.Unix(), models.EndReasonAutoClosed)
		if err != nil {
			return ended, err
		}
		ended = append(ended, s)
	}
	return ended, nil
}

func (p *Postgres) ListSessionsStartedBetween(ctx context.Context, agentID string, from, to time.Time) ([]models.WorkingSession, error) {
	sessions := []models.WorkingSession{}
	err := p.db.SelectContext(ctx, &sessions, `
		SELECT * FROM working_sessions
		WHERE agent_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time`, agentID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (p *Postgres) getSession(ctx context.Context, id string) (models.WorkingSession, error) {
	var session models.WorkingSession
	err := p.db.GetContext(ctx, &session, `SELECT * FROM working_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WorkingSession{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.WorkingSession{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ─── GPS samples ───

// InsertSamples appends validated samples in one transaction. The natural
// key (agent_id, captured_at, latitude, longitude) absorbs client retries:
// duplicates are skipped, not duplicated and not an error.
func (p *Postgres) InsertSamples(ctx context.Context, samples []models.GpsSample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert samples: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, s := range samples {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO gps_samples (
				agent_id, session_id, latitude, longitude, accuracy, speed,
				heading, battery_level, is_mock_location, captured_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (agent_id, captured_at, latitude, longitude) DO NOTHING`,
			s.AgentID, s.SessionID, s.Latitude, s.Longitude, s.Accuracy, s.Speed,
			s.Heading, s.BatteryLevel, s.IsMockLocation, s.CapturedAt, s.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert samples: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert samples: commit: %w", err)
	}
	return inserted, nil
}

func (p *Postgres) ListSamples(ctx context.Context, agentID string, from, to time.Time) ([]models.GpsSample, error) {
	samples := []models.GpsSample{}
	err := p.db.SelectContext(ctx, &samples, `
		SELECT * FROM gps_samples
		WHERE agent_id = $1 AND captured_at >= $2 AND captured_at < $3
		ORDER BY captured_at ASC, id ASC`, agentID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	return samples, nil
}

// ─── PDV visits ───

func (p *Postgres) ListVisits(ctx context.Context, agentID string, from, to time.Time) ([]models.PdvVisit, error) {
	visits := []models.PdvVisit{}
	err := p.db.SelectContext(ctx, &visits, `
		SELECT v.id, v.agent_id, v.pdv_id, v.check_in, v.check_out,
			   v.duration_minutes, p.name AS pdv_name
		FROM pdv_visits v
		LEFT JOIN pdvs p ON p.id = v.pdv_id
		WHERE v.agent_id = $1 AND v.check_in >= $2 AND v.check_in < $3
		ORDER BY v.check_in`, agentID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}

// ─── Org reference data ───

// scopedQuery appends the scope condition (if any) to a base query and
// rebinds the '?' placeholders sqlx.In produces.
func (p *Postgres) scopedQuery(base, condition string, condArgs []interface{}, orderBy string) (string, []interface{}, error) {
	query := base
	args := []interface{}{}
	if condition != "" {
		query += " WHERE " + condition
		args = condArgs
	}
	query += " " + orderBy
	if len(args) > 0 {
		expanded, expandedArgs, err := sqlx.In(query, args...)
		if err != nil {
			return "", nil, fmt.Errorf("expand scope filter: %w", err)
		}
		return p.db.Rebind(expanded), expandedArgs, nil
	}
	return query, args, nil
}

func (p *Postgres) ListBusinesses(ctx context.Context, sc scope.Scope) ([]models.Business, error) {
	cond, condArgs := sc.BusinessCondition("id")
	query, args, err := p.scopedQuery(`SELECT * FROM businesses`, cond, condArgs, `ORDER BY name`)
	if err != nil {
		return nil, err
	}
	rows := []models.Business{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return rows, nil
}

func (p *Postgres) ListZonals(ctx context.Context, sc scope.Scope) ([]models.Zonal, error) {
	cond, condArgs := sc.ZonalCondition("id")
	query, args, err := p.scopedQuery(`SELECT * FROM zonals`, cond, condArgs, `ORDER BY name`)
	if err != nil {
		return nil, err
	}
	rows := []models.Zonal{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list zonals: %w", err)
	}
	return rows, nil
}

func (p *Postgres) ListCircuits(ctx context.Context, sc scope.Scope) ([]models.Circuit, error) {
	cond, condArgs := sc.ZonalCondition("zonal_id")
	query, args, err := p.scopedQuery(`SELECT * FROM circuits`, cond, condArgs, `ORDER BY name`)
	if err != nil {
		return nil, err
	}
	rows := []models.Circuit{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list circuits: %w", err)
	}
	return rows, nil
}

func (p *Postgres) ListRoutes(ctx context.Context, sc scope.Scope) ([]models.Route, error) {
	// Relation path: route → circuit → zonal
	cond, condArgs := sc.ZonalCondition(`(SELECT c.zonal_id FROM circuits c WHERE c.id = routes.circuit_id)`)
	query, args, err := p.scopedQuery(`SELECT * FROM routes`, cond, condArgs, `ORDER BY name`)
	if err != nil {
		return nil, err
	}
	rows := []models.Route{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return rows, nil
}

func (p *Postgres) ListPDVs(ctx context.Context, sc scope.Scope) ([]models.PDV, error) {
	// Relation path: pdv → route → circuit → zonal
	cond, condArgs := sc.ZonalCondition(`(
		SELECT c.zonal_id FROM circuits c
		JOIN routes r ON r.circuit_id = c.id
		WHERE r.id = pdvs.route_id)`)
	query, args, err := p.scopedQuery(`SELECT * FROM pdvs`, cond, condArgs, `ORDER BY name`)
	if err != nil {
		return nil, err
	}
	rows := []models.PDV{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pdvs: %w", err)
	}
	return rows, nil
}

// ─── Proximity search ───

// haversineSQL mirrors geo.HaversineKm as a derived column so ordering and
// the strict radius cut happen in the database. Written with '?' bindvars
// and expanded through sqlx.In/Rebind; binds (lat, lat, lon) in order.
const haversineSQL = `(` +
	`6371.0 * 2 * asin(sqrt(` +
	`power(sin(radians(latitude - ?) / 2), 2) + ` +
	`cos(radians(?)) * cos(radians(latitude)) * ` +
	`power(sin(radians(longitude - ?) / 2), 2)` +
	`)))`

func (p *Postgres) NearbyPDVs(ctx context.Context, lat, lon, radiusKm float64) ([]models.PDVWithDistance, error) {
	query := `
		SELECT * FROM (
			SELECT id, route_id, name, classification, status, latitude, longitude, created_at,
				   ` + haversineSQL + ` AS distance_km
			FROM pdvs
			WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		) q
		WHERE q.distance_km < ?
		ORDER BY q.distance_km ASC`
	rows := []models.PDVWithDistance{}
	if err := p.db.SelectContext(ctx, &rows, p.db.Rebind(query), lat, lat, lon, radiusKm); err != nil {
		return nil, fmt.Errorf("nearby pdvs: %w", err)
	}
	return rows, nil
}

func (p *Postgres) NearbyPDVsScoped(ctx context.Context, sc scope.Scope, lat, lon, radiusKm float64) ([]models.PDVWithDistance, error) {
	cond, condArgs := sc.ZonalCondition("c.zonal_id")
	inner := `
		SELECT p.id, p.route_id, p.name, p.classification, p.status,
			   p.latitude, p.longitude, p.created_at,
			   ` + haversineSQL + ` AS distance_km
		FROM pdvs p
		JOIN routes r ON r.id = p.route_id
		JOIN circuits c ON c.id = r.circuit_id
		WHERE p.latitude IS NOT NULL AND p.longitude IS NOT NULL`
	args := []interface{}{lat, lat, lon}
	if cond != "" {
		inner += " AND " + cond
		args = append(args, condArgs...)
	}
	query := `SELECT * FROM (` + inner + `) q WHERE q.distance_km < ? ORDER BY q.distance_km ASC`
	args = append(args, radiusKm)

	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearby pdvs scoped: expand: %w", err)
	}

	rows := []models.PDVWithDistance{}
	if err := p.db.SelectContext(ctx, &rows, p.db.Rebind(expanded), expandedArgs...); err != nil {
		return nil, fmt.Errorf("nearby pdvs scoped: %w", err)
	}
	return rows, nil
}

// ─── Supervisor dashboard ───

// ListActiveAgents returns agents with an open session, their latest
// sample and session state. Supervisors see only vendors assigned to
// circuits inside their zonals.
func (p *Postgres) ListActiveAgents(ctx context.Context, sc scope.Scope) ([]models.AgentStatus, error) {
	if sc.DeniesEverything() {
		return []models.AgentStatus{}, nil
	}

	cond, condArgs := sc.ZonalCondition(`(
		SELECT c.zonal_id FROM circuits c
		JOIN circuit_agents ca ON ca.circuit_id = c.id
		WHERE ca.agent_id = a.id AND ca.active = TRUE
		LIMIT 1)`)

	// The lateral join pulls each agent's newest sample in the same round
	// trip instead of one query per agent
	query := `
		SELECT a.id AS agent_id, a.name,
			   s.id AS session_id, s.status, s.start_time,
			   ls.id AS last_id, ls.session_id AS last_session_id,
			   ls.latitude AS last_latitude, ls.longitude AS last_longitude,
			   ls.accuracy AS last_accuracy, ls.speed AS last_speed,
			   ls.heading AS last_heading, ls.battery_level AS last_battery_level,
			   ls.is_mock_location AS last_is_mock_location,
			   ls.captured_at AS last_captured_at, ls.created_at AS last_created_at
		FROM agents a
		JOIN working_sessions s ON s.agent_id = a.id AND s.end_time IS NULL
		LEFT JOIN LATERAL (
			SELECT * FROM gps_samples g
			WHERE g.agent_id = a.id
			ORDER BY g.captured_at DESC
			LIMIT 1
		) ls ON TRUE
		WHERE a.active = TRUE`
	args := []interface{}{}
	if cond != "" {
		query += " AND " + cond
		args = condArgs
	}
	query += ` ORDER BY s.start_time DESC`

	if len(args) > 0 {
		expanded, expandedArgs, err := sqlx.In(query, args...)
		if err != nil {
			return nil, fmt.Errorf("active agents: expand: %w", err)
		}
		query = p.db.Rebind(expanded)
		args = expandedArgs
	}

	type row struct {
		AgentID   string               `db:"agent_id"`
		Name      string               `db:"name"`
		SessionID string               `db:"session_id"`
		Status    models.SessionStatus `db:"status"`
		StartTime int64                `db:"start_time"`

		LastID             *int     `db:"last_id"`
		LastSessionID      *string  `db:"last_session_id"`
		LastLatitude       *float64 `db:"last_latitude"`
		LastLongitude      *float64 `db:"last_longitude"`
		LastAccuracy       *float64 `db:"last_accuracy"`
		LastSpeed          *float64 `db:"last_speed"`
		LastHeading        *float64 `db:"last_heading"`
		LastBatteryLevel   *int     `db:"last_battery_level"`
		LastIsMockLocation *bool    `db:"last_is_mock_location"`
		LastCapturedAt     *int64   `db:"last_captured_at"`
		LastCreatedAt      *int64   `db:"last_created_at"`
	}
	rows := []row{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("active agents: %w", err)
	}

	statuses := make([]models.AgentStatus, 0, len(rows))
	for _, r := range rows {
		sessionID := r.SessionID
		startTime := r.StartTime
		status := models.AgentStatus{
			AgentID:      r.AgentID,
			Name:         r.Name,
			Status:       r.Status,
			SessionID:    &sessionID,
			SessionStart: &startTime,
		}
		if r.LastID != nil {
			status.LastLocation = &models.GpsSample{
				ID:             *r.LastID,
				AgentID:        r.AgentID,
				SessionID:      r.LastSessionID,
				Latitude:       *r.LastLatitude,
				Longitude:      *r.LastLongitude,
				Accuracy:       r.LastAccuracy,
				Speed:          r.LastSpeed,
				Heading:        r.LastHeading,
				BatteryLevel:   r.LastBatteryLevel,
				IsMockLocation: *r.LastIsMockLocation,
				CapturedAt:     *r.LastCapturedAt,
				CreatedAt:      *r.LastCreatedAt,
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (p *Postgres) AgentInScope(ctx context.Context, sc scope.Scope, agentID string) (bool, error) {
	switch sc.Kind {
	case scope.Unrestricted:
		return true, nil
	case scope.SelfOnly:
		return sc.AgentID == agentID, nil
	}
	if sc.DeniesEverything() {
		return false, nil
	}

	query := `
		SELECT COUNT(*) FROM circuit_agents ca
		JOIN circuits c ON c.id = ca.circuit_id
		WHERE ca.agent_id = ? AND ca.active = TRUE AND c.zonal_id IN (?)`
	expanded, args, err := sqlx.In(query, agentID, sc.ZonalIDs)
	if err != nil {
		return false, fmt.Errorf("agent in scope: expand: %w", err)
	}

	var count int
	if err := p.db.GetContext(ctx, &count, p.db.Rebind(expanded), args...); err != nil {
		return false, fmt.Errorf("agent in scope: %w", err)
	}
	return count > 0, nil
}

// ─── FCM tokens ───

func (p *Postgres) SaveFCMToken(ctx context.Context, agentID, token, deviceType string, now time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fcm_tokens (agent_id, token, device_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (token)
		DO UPDATE SET agent_id = EXCLUDED.agent_id,
					  device_type = EXCLUDED.device_type,
					  updated_at = EXCLUDED.updated_at`,
		agentID, token, deviceType, now.Unix())
	if err != nil {
		return fmt.Errorf("save fcm token: %w", err)
	}
	return nil
}

func (p *Postgres) ListFCMTokens(ctx context.Context, agentID string) ([]string, error) {
	tokens := []string{}
	err := p.db.SelectContext(ctx, &tokens, `
		SELECT token FROM fcm_tokens WHERE agent_id = $1 ORDER BY updated_at DESC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list fcm tokens: %w", err)
	}
	return tokens, nil
}
