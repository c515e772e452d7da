package api

import (
	"net/http"
	"strings"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/session"
)

const sessionCookie = "askmesh_session"

func sessionIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(observability.SessionHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// ensureSession resolves the caller's session, creating one when the id is
// missing or no longer live, and echoes the id back in header and cookie.
func ensureSession(deps Dependencies, w http.ResponseWriter, r *http.Request) session.State {
	state, _ := deps.Sessions.Ensure(sessionIDFromRequest(r))
	w.Header().Set(observability.SessionHeader, state.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    state.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}

func handleSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	state := ensureSession(deps, w, r)
	writeJSON(w, http.StatusOK, stateResponse(state, nil, ""))
}
