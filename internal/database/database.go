package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Printf("❌ DATABASE CONNECTION FAILED: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Printf("❌ DATABASE PING FAILED: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create agents table
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('admin', 'supervisor', 'vendor')),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Organization hierarchy: business -> zonal -> circuit -> route -> pdv.
		// Reference data owned by the admin panel; this service only reads it.
		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS zonals (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS circuits (
			id TEXT PRIMARY KEY,
			zonal_id TEXT NOT NULL,
			name TEXT NOT NULL,
			frequency TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (zonal_id) REFERENCES zonals(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			circuit_id TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (circuit_id) REFERENCES circuits(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS pdvs (
			id TEXT PRIMARY KEY,
			route_id TEXT NOT NULL,
			name TEXT NOT NULL,
			classification TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (route_id) REFERENCES routes(id) ON DELETE CASCADE
		)`,

		// Assignment tables: supervisors to zonals, agents to businesses,
		// vendors to circuits
		`CREATE TABLE IF NOT EXISTS zonal_supervisors (
			id SERIAL PRIMARY KEY,
			agent_id TEXT NOT NULL,
			zonal_id TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			FOREIGN KEY (zonal_id) REFERENCES zonals(id) ON DELETE CASCADE,
			UNIQUE (agent_id, zonal_id)
		)`,

		`CREATE TABLE IF NOT EXISTS agent_businesses (
			id SERIAL PRIMARY KEY,
			agent_id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE,
			UNIQUE (agent_id, business_id)
		)`,

		`CREATE TABLE IF NOT EXISTS circuit_agents (
			id SERIAL PRIMARY KEY,
			agent_id TEXT NOT NULL,
			circuit_id TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			FOREIGN KEY (circuit_id) REFERENCES circuits(id) ON DELETE CASCADE,
			UNIQUE (agent_id, circuit_id)
		)`,

		// Create working_sessions table
		`CREATE TABLE IF NOT EXISTS working_sessions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('active', 'paused', 'ended')),
			start_time BIGINT NOT NULL,
			end_time BIGINT,
			start_latitude DOUBLE PRECISION,
			start_longitude DOUBLE PRECISION,
			end_latitude DOUBLE PRECISION,
			end_longitude DOUBLE PRECISION,
			total_pause_seconds INT NOT NULL DEFAULT 0,
			pause_start_time BIGINT,
			notes TEXT,
			end_reason TEXT CHECK(end_reason IN ('manual_end', 'auto_closed')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			CHECK (total_pause_seconds >= 0)
		)`,

		// At most one open session per agent; a concurrent duplicate start
		// loses the race against this index and surfaces as 23505
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_working_sessions_one_open
			ON working_sessions(agent_id) WHERE end_time IS NULL`,

		// Create session_history table for ended sessions
		`CREATE TABLE IF NOT EXISTS session_history (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			total_pause_seconds INT NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL CHECK(end_reason IN ('manual_end', 'auto_closed')),
			ended_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
		)`,

		// Create gps_samples table (append-only)
		`CREATE TABLE IF NOT EXISTS gps_samples (
			id SERIAL PRIMARY KEY,
			agent_id TEXT NOT NULL,
			session_id TEXT,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			accuracy DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			heading DOUBLE PRECISION,
			battery_level INT,
			is_mock_location BOOLEAN NOT NULL DEFAULT FALSE,
			captured_at BIGINT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			FOREIGN KEY (session_id) REFERENCES working_sessions(id) ON DELETE SET NULL
		)`,

		// Natural dedup key so a mobile client can safely retry a batch
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_gps_samples_dedup
			ON gps_samples(agent_id, captured_at, latitude, longitude)`,

		// Create pdv_visits table (written by the visit module, read here)
		`CREATE TABLE IF NOT EXISTS pdv_visits (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			pdv_id TEXT NOT NULL,
			check_in BIGINT NOT NULL,
			check_out BIGINT,
			duration_minutes INT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			FOREIGN KEY (pdv_id) REFERENCES pdvs(id) ON DELETE CASCADE
		)`,

		// Create FCM tokens table
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			agent_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_agents_email ON agents(email)`,
		`CREATE INDEX IF NOT EXISTS idx_zonals_business_id ON zonals(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_circuits_zonal_id ON circuits(zonal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_circuit_id ON routes(circuit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdvs_route_id ON pdvs(route_id)`,
		`CREATE INDEX IF NOT EXISTS idx_zonal_supervisors_agent_id ON zonal_supervisors(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_circuit_agents_agent_id ON circuit_agents(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_working_sessions_agent_id ON working_sessions(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_working_sessions_start_time ON working_sessions(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_session_history_agent_id ON session_history(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gps_samples_agent_captured ON gps_samples(agent_id, captured_at)`,
		`CREATE INDEX IF NOT EXISTS idx_gps_samples_session_id ON gps_samples(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdv_visits_agent_check_in ON pdv_visits(agent_id, check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_agent_id ON fcm_tokens(agent_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
