package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/pkg/utils"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK    bool                  `json:"ok"`
	Token string                `json:"token,omitempty"`
	Agent *models.AgentResponse `json:"agent,omitempty"`
}

func Login(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		log.Printf("🔐 Login attempt for: %s", req.Email)

		jwtSecret := os.Getenv("APP_JWT_SECRET")
		if jwtSecret == "" {
			log.Println("❌ JWT secret not configured")
			utils.RespondJSON(w, http.StatusInternalServerError, LoginResponse{OK: false})
			return
		}

		agent, err := s.GetAgentByEmail(r.Context(), req.Email)
		if err != nil {
			log.Printf("❌ Agent not found: %s", req.Email)
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		if !agent.Active {
			log.Printf("❌ Agent deactivated: %s", req.Email)
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(agent.Password), []byte(req.Password)); err != nil {
			log.Printf("❌ Invalid password for: %s", req.Email)
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"agent_id": agent.ID,
			"email":    agent.Email,
			"role":     string(agent.Role),
			"iat":      time.Now().Unix(),
			"exp":      time.Now().Add(7 * 24 * time.Hour).Unix(),
		})

		tokenString, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			log.Println("❌ Failed to create token")
			http.Error(w, "Failed to create token", http.StatusInternalServerError)
			return
		}

		agentResponse := agent.ToAgentResponse()
		log.Printf("✅ Login successful: %s (%s)", agent.Email, agent.Role)

		utils.RespondJSON(w, http.StatusOK, LoginResponse{
			OK:    true,
			Token: tokenString,
			Agent: &agentResponse,
		})
	}
}

// GetMe returns the authenticated agent's profile
func GetMe(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		agent, err := s.GetAgentByID(r.Context(), claims.AgentID)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", agent.ToAgentResponse())
	}
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// RegisterFCMToken stores a device push token for the agent
func RegisterFCMToken(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterFCMTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "Token is required")
			return
		}
		if req.DeviceType != "ios" && req.DeviceType != "android" {
			utils.RespondError(w, http.StatusBadRequest, "Device type must be 'ios' or 'android'")
			return
		}

		if err := s.SaveFCMToken(r.Context(), claims.AgentID, req.Token, req.DeviceType, time.Now()); err != nil {
			respondAppError(w, err)
			return
		}

		log.Printf("📱 FCM token registered for agent %s (%s)", claims.AgentID, req.DeviceType)
		utils.RespondSuccess(w, http.StatusOK, "Token registered", nil)
	}
}
