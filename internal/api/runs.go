package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/askmesh/askmesh/internal/archive"
)

func handleGetRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "result archive is not enabled", false, nil)
		return
	}
	runID := strings.TrimSpace(r.PathValue("run_id"))
	stored, err := deps.Archive.Load(r.Context(), runID)
	if err != nil {
		if errors.Is(err, archive.ErrRunNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "RUN_NOT_FOUND", "archived run not found", false, map[string]any{"run_id": runID})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "RUN_FETCH_FAILED", "failed to read archived run", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     stored.RunID,
		"question":   stored.Question,
		"query_kind": stored.QueryKind,
		"query_text": stored.QueryText,
		"created_at": stored.CreatedAt,
		"result":     toResultPayload(stored.Result),
	})
}
