package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/pkg/utils"
)

type CreateAgentRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"` // "admin", "supervisor" or "vendor"
}

// CreateAgent creates a new agent account. Requires admin authentication.
func CreateAgent(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/agents - Create new agent")

		var req CreateAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
			utils.RespondError(w, http.StatusBadRequest, "Email, password, name, and role are required")
			return
		}

		validRoles := map[string]bool{"admin": true, "supervisor": true, "vendor": true}
		if !validRoles[req.Role] {
			utils.RespondError(w, http.StatusBadRequest, "Role must be 'admin', 'supervisor', or 'vendor'")
			return
		}

		// Check if agent already exists
		if _, err := s.GetAgentByEmail(r.Context(), req.Email); err == nil {
			utils.RespondError(w, http.StatusConflict, "Agent with this email already exists")
			return
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			respondAppError(w, err)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		now := time.Now().Unix()
		agent := models.Agent{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Password:  string(hashedPassword),
			Name:      req.Name,
			Role:      models.AgentRole(req.Role),
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.CreateAgent(r.Context(), agent); err != nil {
			respondAppError(w, err)
			return
		}

		log.Printf("✅ Agent created: %s (%s)", agent.Email, agent.Role)
		utils.RespondSuccess(w, http.StatusCreated, "Agent created", agent.ToAgentResponse())
	}
}
