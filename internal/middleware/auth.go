package middleware

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const AgentContextKey contextKey = "agent"

type AgentClaims struct {
	AgentID string `json:"agent_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// Auth middleware validates JWT token and adds agent claims to context
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Printf("🔐 AUTH: %s %s — no authorization header", r.Method, r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Extract Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("🔐 AUTH: %s %s — malformed authorization header", r.Method, r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenString := parts[1]

		jwtSecret := os.Getenv("APP_JWT_SECRET")
		if jwtSecret == "" {
			log.Println("❌ JWT secret not configured")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Parse and validate token
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			log.Printf("🔐 AUTH: %s %s — invalid token: %v", r.Method, r.URL.Path, err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		agentID, ok1 := claims["agent_id"].(string)
		email, ok2 := claims["email"].(string)
		role, ok3 := claims["role"].(string)
		if !ok1 || !ok2 || !ok3 {
			log.Printf("🔐 AUTH: %s %s — claims missing required fields", r.Method, r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		agentClaims := AgentClaims{AgentID: agentID, Email: email, Role: role}

		ctx := context.WithValue(r.Context(), AgentContextKey, agentClaims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole checks the agent's role (must be used after Auth)
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(AgentContextKey).(AgentClaims)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Printf("❌ Insufficient permissions: %s is %s, required one of %v", claims.Email, claims.Role, roles)
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// GetAgentFromContext extracts agent claims from request context
func GetAgentFromContext(r *http.Request) (AgentClaims, bool) {
	claims, ok := r.Context().Value(AgentContextKey).(AgentClaims)
	return claims, ok
}
