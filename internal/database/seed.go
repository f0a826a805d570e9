package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedAgents(db *sqlx.DB) error {
	// Check if agents already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM agents"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Agents already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test agents...")

	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	supervisorPassword, err := bcrypt.GenerateFromPassword([]byte("supervisor123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	vendorPassword, err := bcrypt.GenerateFromPassword([]byte("vendor123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	agents := []map[string]interface{}{
		{
			"id":       uuid.New().String(),
			"email":    "admin@fieldtrack.pe",
			"password": string(adminPassword),
			"name":     "Administrador",
			"role":     "admin",
		},
		{
			"id":       uuid.New().String(),
			"email":    "supervisor@fieldtrack.pe",
			"password": string(supervisorPassword),
			"name":     "Maria Supervisor",
			"role":     "supervisor",
		},
		{
			"id":       uuid.New().String(),
			"email":    "vendor@fieldtrack.pe",
			"password": string(vendorPassword),
			"name":     "Jose Vendedor",
			"role":     "vendor",
		},
	}

	for _, agent := range agents {
		query := `
			INSERT INTO agents (id, email, password, name, role, active)
			VALUES (:id, :email, :password, :name, :role, TRUE)
		`
		if _, err := db.NamedExec(query, agent); err != nil {
			return err
		}
		log.Printf("  ✓ Created agent: %s (%s)", agent["email"], agent["role"])
	}

	log.Println("✓ Successfully seeded test agents")
	log.Println("  📧 Admin:      admin@fieldtrack.pe / admin123")
	log.Println("  📧 Supervisor: supervisor@fieldtrack.pe / supervisor123")
	log.Println("  📧 Vendor:     vendor@fieldtrack.pe / vendor123")
	return nil
}

// SeedOrganization creates a small demo hierarchy so the dashboard has
// something to show on a fresh database.
func SeedOrganization(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM businesses"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Organization already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding demo organization...")

	businessID := uuid.New().String()
	zonalID := uuid.New().String()
	circuitID := uuid.New().String()
	routeID := uuid.New().String()

	if _, err := db.Exec(`INSERT INTO businesses (id, name) VALUES ($1, $2)`,
		businessID, "Distribuidora Andes"); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT INTO zonals (id, business_id, name) VALUES ($1, $2, $3)`,
		zonalID, businessID, "Lima Norte"); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT INTO circuits (id, zonal_id, name, frequency) VALUES ($1, $2, $3, $4)`,
		circuitID, zonalID, "Circuito 01", "L-M-V"); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT INTO routes (id, circuit_id, name) VALUES ($1, $2, $3)`,
		routeID, circuitID, "Ruta Centro"); err != nil {
		return err
	}

	pdvs := []map[string]interface{}{
		{"name": "Bodega Rosita", "classification": "bodega", "latitude": -12.0464, "longitude": -77.0428},
		{"name": "Minimarket El Sol", "classification": "minimarket", "latitude": -12.0501, "longitude": -77.0405},
		{"name": "Bodega Don Pepe", "classification": "bodega", "latitude": -12.0523, "longitude": -77.0389},
		{"name": "Market Central", "classification": "mercado", "latitude": -12.0550, "longitude": -77.0371},
	}
	for _, pdv := range pdvs {
		_, err := db.Exec(`
			INSERT INTO pdvs (id, route_id, name, classification, status, latitude, longitude)
			VALUES ($1, $2, $3, $4, 'active', $5, $6)
		`, uuid.New().String(), routeID, pdv["name"], pdv["classification"], pdv["latitude"], pdv["longitude"])
		if err != nil {
			return err
		}
	}

	// Wire the seeded supervisor and vendor into the hierarchy
	if _, err := db.Exec(`
		INSERT INTO zonal_supervisors (agent_id, zonal_id)
		SELECT id, $1 FROM agents WHERE role = 'supervisor'
	`, zonalID); err != nil {
		return err
	}
	if _, err := db.Exec(`
		INSERT INTO circuit_agents (agent_id, circuit_id)
		SELECT id, $1 FROM agents WHERE role = 'vendor'
	`, circuitID); err != nil {
		return err
	}
	if _, err := db.Exec(`
		INSERT INTO agent_businesses (agent_id, business_id)
		SELECT id, $1 FROM agents WHERE role IN ('supervisor', 'vendor')
	`, businessID); err != nil {
		return err
	}

	log.Println("✓ Successfully seeded demo organization (1 business, 1 zonal, 1 circuit, 1 route, 4 PDVs)")
	return nil
}
