package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"fieldtrack-backend/internal/database"
	"fieldtrack-backend/internal/handlers"
	"fieldtrack-backend/internal/metrics"
	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/scope"
	"fieldtrack-backend/internal/services"
	"fieldtrack-backend/internal/stats"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/internal/sweep"
	"fieldtrack-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 FIELDTRACK BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Service timezone: daily cutoffs and date parsing are local to the
	// field operation, not to the server host
	tzName := os.Getenv("APP_TIMEZONE")
	if tzName == "" {
		tzName = "America/Lima"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("⚠️  Unknown timezone %q, falling back to UTC", tzName)
		loc = time.UTC
	}
	log.Printf("✅ Service timezone: %s", loc)

	// Pick the store: Postgres when DATABASE_URL is set, in-memory
	// otherwise for local development
	var st store.Store
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("⚠️  DATABASE_URL not set, running with in-memory store (data is lost on restart)")
		st = store.NewMemory()
	} else {
		db, err := database.Connect(dbURL)
		if err != nil {
			log.Fatalf("❌ FATAL: database connection failed: %v", err)
		}
		defer db.Close()

		log.Println("🔄 Running database migrations...")
		if err := database.Migrate(db); err != nil {
			log.Fatalf("❌ FATAL: database migrations failed: %v", err)
		}

		log.Println("🌱 Seeding database with initial data...")
		if err := database.SeedAgents(db); err != nil {
			log.Fatalf("❌ FATAL: agent seeding failed: %v", err)
		}
		if err := database.SeedOrganization(db); err != nil {
			log.Fatalf("❌ FATAL: organization seeding failed: %v", err)
		}

		st = store.NewPostgres(db)
	}

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for Railway/cloud deployments)
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Metrics
	metrics.RegisterDefault()

	// WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Visibility scope resolver with its TTL cache
	scopeCache := scope.NewCache(scope.DefaultTTL, time.Now)
	resolver := scope.NewResolver(st, scopeCache)
	resolver.OnLookup(func(result string) {
		metrics.ScopeCacheLookups.WithLabelValues(result).Inc()
	})

	// Statistics aggregator
	aggregator := stats.NewAggregator(st, stats.FixedExpectedVisits(stats.DefaultProgrammedPDVs), loc, time.Now)

	// Daily sweep force-ending sessions left open past the cutoff
	sweeper := sweep.New(st, wsHub, fcmService, loc, time.Now)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go sweeper.Run(sweepCtx)
	log.Printf("✅ Daily session sweep scheduled (cutoff %02d:00 %s)", sweep.CutoffHour, loc)

	// Ingestion rate limit: one sample every 5 seconds sustained, with
	// room for a buffered batch flush
	ingestLimiter := middleware.NewRateLimiter(0.2, 30)

	now := time.Now

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(st))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Authenticated agent endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/auth/me", handlers.GetMe(st))
			r.Post("/agent/fcm-token", handlers.RegisterFCMToken(st))

			// Session state machine
			r.Get("/agent/session/current", handlers.GetCurrentSession(st))
			r.Post("/agent/session/start", handlers.StartSession(st, wsHub, now))
			r.Post("/agent/session/pause", handlers.PauseSession(st, wsHub, now))
			r.Post("/agent/session/resume", handlers.ResumeSession(st, wsHub, now))
			r.Post("/agent/session/end", handlers.EndSession(st, wsHub, now))

			// GPS ingestion (rate-limited per agent)
			r.Group(func(r chi.Router) {
				r.Use(ingestLimiter.Middleware)
				r.Post("/agent/location", handlers.RecordLocation(st, wsHub, now))
				r.Post("/agent/locations/batch", handlers.RecordLocationBatch(st, wsHub, now))
			})

			// Route reconstruction and stats over own data
			r.Get("/agent/route", handlers.GetRouteForDate(st, loc, now))
			r.Get("/agent/location-history", handlers.GetLocationHistory(st, loc, now))
			r.Get("/agent/stats/daily", handlers.GetDailyStats(aggregator, loc, now))
			r.Get("/agent/stats/period", handlers.GetPeriodStats(aggregator, loc, now))

			// Proximity search
			r.Get("/pdvs/nearby", handlers.NearbyPDVs(st))

			// Org hierarchy, filtered by the caller's visibility scope
			r.Get("/businesses", handlers.ListBusinesses(st, resolver))
			r.Get("/zonals", handlers.ListZonals(st, resolver))
			r.Get("/circuits", handlers.ListCircuits(st, resolver))
			r.Get("/routes", handlers.ListRoutes(st, resolver))
			r.Get("/pdvs", handlers.ListPDVs(st, resolver))
		})

		// Manager endpoints (supervisors see their zonals, admins see all)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin", "supervisor"))

			r.Get("/manager/active-agents", handlers.GetActiveAgents(st, resolver))
			r.Get("/manager/agents/{agentID}/route", handlers.GetAgentRoute(st, resolver, loc, now))
			r.Get("/manager/agents/{agentID}/history", handlers.GetAgentHistory(st, resolver, loc, now))
			r.Get("/manager/agents/{agentID}/stats/daily", handlers.GetAgentDailyStats(st, resolver, aggregator, loc, now))
			r.Get("/manager/agents/{agentID}/stats/period", handlers.GetAgentPeriodStats(st, resolver, aggregator, loc, now))
			r.Post("/manager/agents/{agentID}/end-session", handlers.ForceEndAgentSession(st, resolver, wsHub, now))
		})

		// Admin-only endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			r.Post("/agents", handlers.CreateAgent(st))
			r.Post("/manager/sessions/force-end", handlers.ForceEndAllSessions(sweeper, now))
		})
	})

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("❌ FATAL: server failed to start: %v", err)
	}
}
