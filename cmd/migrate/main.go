package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"fieldtrack-backend/internal/database"
)

// Standalone migration runner for deploys where the schema must be
// applied before the server rolls out.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if os.Getenv("SEED") == "true" {
		if err := database.SeedAgents(db); err != nil {
			log.Fatalf("Agent seeding failed: %v", err)
		}
		if err := database.SeedOrganization(db); err != nil {
			log.Fatalf("Organization seeding failed: %v", err)
		}
	}

	log.Println("Migration completed successfully!")
}
