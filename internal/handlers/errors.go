package handlers

import (
	"errors"
	"log"
	"net/http"

	"fieldtrack-backend/internal/apperrors"
	"fieldtrack-backend/pkg/utils"
)

// respondAppError maps the error taxonomy to HTTP statuses. Scope
// exclusions surface as 404, same as a missing row, so existence is
// never leaked to out-of-scope callers.
func respondAppError(w http.ResponseWriter, err error) {
	var (
		validation *apperrors.ValidationError
		batch      *apperrors.BatchValidationError
		noSession  *apperrors.NoActiveSessionError
		conflict   *apperrors.ConflictError
		state      *apperrors.InvalidStateError
		authz      *apperrors.AuthorizationError
	)

	switch {
	case errors.As(err, &validation):
		utils.RespondErrorDetail(w, http.StatusBadRequest, "Validation failed", validation.Fields)
	case errors.As(err, &batch):
		utils.RespondErrorDetail(w, http.StatusBadRequest, "Batch validation failed", batch.Items)
	case errors.As(err, &noSession):
		utils.RespondError(w, http.StatusConflict, "No active working session. Start your session first.")
	case errors.As(err, &conflict):
		utils.RespondError(w, http.StatusConflict, conflict.Message)
	case errors.As(err, &state):
		utils.RespondError(w, http.StatusConflict, state.Error())
	case errors.As(err, &authz):
		utils.RespondError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, apperrors.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "Not found")
	default:
		log.Printf("❌ Internal error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
