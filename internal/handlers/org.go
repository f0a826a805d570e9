package handlers

import (
	"context"
	"net/http"

	"fieldtrack-backend/internal/middleware"
	"fieldtrack-backend/internal/models"
	"fieldtrack-backend/internal/scope"
	"fieldtrack-backend/internal/store"
	"fieldtrack-backend/pkg/utils"
)

// resolveScope computes the caller's visibility scope from their claims
func resolveScope(ctx context.Context, resolver *scope.Resolver, claims middleware.AgentClaims) (scope.Scope, error) {
	agent := models.Agent{ID: claims.AgentID, Role: models.AgentRole(claims.Role)}
	return resolver.Resolve(ctx, agent)
}

// scopedListing is the shared shape of the five hierarchy listings:
// resolve the caller's scope, run the scoped query, respond.
func scopedListing[T any](resolver *scope.Resolver,
	list func(ctx context.Context, sc scope.Scope) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetAgentFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sc, err := resolveScope(r.Context(), resolver, claims)
		if err != nil {
			respondAppError(w, err)
			return
		}

		items, err := list(r.Context(), sc)
		if err != nil {
			respondAppError(w, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, "OK", map[string]interface{}{
			"items": items,
			"count": len(items),
		})
	}
}

func ListBusinesses(s store.Store, resolver *scope.Resolver) http.HandlerFunc {
	return scopedListing(resolver, s.ListBusinesses)
}

func ListZonals(s store.Store, resolver *scope.Resolver) http.HandlerFunc {
	return scopedListing(resolver, s.ListZonals)
}

func ListCircuits(s store.Store, resolver *scope.Resolver) http.HandlerFunc {
	return scopedListing(resolver, s.ListCircuits)
}

func ListRoutes(s store.Store, resolver *scope.Resolver) http.HandlerFunc {
	return scopedListing(resolver, s.ListRoutes)
}

func ListPDVs(s store.Store, resolver *scope.Resolver) http.HandlerFunc {
	return scopedListing(resolver, s.ListPDVs)
}
