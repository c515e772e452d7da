package api

import (
	"errors"
	"net/http"

	"github.com/askmesh/askmesh/internal/auth"
	"github.com/askmesh/askmesh/internal/present"
	"github.com/askmesh/askmesh/internal/session"
)

func handleChart(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireRole(r.Context(), auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var opts present.Options
	if err := decodeBody(r, &opts); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chart request body", false, map[string]any{"details": err.Error()})
		return
	}

	id := sessionIDFromRequest(r)
	state, err := deps.Sessions.UpdateChart(id, opts)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired", false, map[string]any{"session_id": id})
		case errors.Is(err, present.ErrInvalidOptions):
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_CHART_OPTIONS", err.Error(), false, nil)
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "CHART_UPDATE_FAILED", err.Error(), false, nil)
		}
		return
	}

	chart, warnings := present.Render(state.Result, state.Chart)
	if warnings == nil {
		warnings = []present.Warning{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": state.ID,
		"chart":      chart,
		"warnings":   warnings,
	})
}
