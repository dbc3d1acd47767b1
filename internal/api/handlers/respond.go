package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridianlaw/caseflow/internal/api/dto"
	"github.com/meridianlaw/caseflow/internal/auth"
	"github.com/meridianlaw/caseflow/internal/cases"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps sentinel errors from the service layer to the
// response envelope. Operational errors surface their message verbatim;
// anything unrecognized is logged and reduced to a generic 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, cases.ErrNotFound),
		errors.Is(err, cases.ErrPageNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, dto.Fail(err.Error()))
	case errors.Is(err, cases.ErrForbidden):
		writeJSON(w, http.StatusForbidden, dto.Fail(err.Error()))
	case errors.Is(err, cases.ErrKeywordRequired),
		errors.Is(err, cases.ErrInvalidTransition),
		errors.Is(err, cases.ErrInvalidCaseNumber),
		errors.Is(err, cases.ErrAssigneeNotStaff),
		errors.Is(err, auth.ErrResetTokenInvalid):
		writeJSON(w, http.StatusBadRequest, dto.Fail(err.Error()))
	case errors.Is(err, cases.ErrDuplicateCaseNumber),
		errors.Is(err, auth.ErrUserExists):
		writeJSON(w, http.StatusConflict, dto.Fail(err.Error()))
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		writeJSON(w, http.StatusUnauthorized, dto.Fail(err.Error()))
	case errors.Is(err, auth.ErrInactiveUser):
		writeJSON(w, http.StatusForbidden, dto.Fail(err.Error()))
	default:
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.Error("Something went wrong"))
	}
}
