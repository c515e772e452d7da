package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/askmesh/askmesh/internal/archive"
	"github.com/askmesh/askmesh/internal/auth"
	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/present"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/schema"
	"github.com/askmesh/askmesh/internal/session"
	"github.com/askmesh/askmesh/internal/storage"
)

type askRequest struct {
	Question string `json:"question"`
	Example  *int   `json:"example,omitempty"`
}

type resultPayload struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	DurationMs int64    `json:"duration_ms"`
}

type askResponse struct {
	SessionID string            `json:"session_id"`
	Status    session.Status    `json:"status,omitempty"`
	Question  string            `json:"question"`
	Query     json.RawMessage   `json:"query"`
	Display   string            `json:"display"`
	Previous  string            `json:"previous_display,omitempty"`
	Raw       string            `json:"raw"`
	Notices   []nl2query.Notice `json:"notices"`
	Model     string            `json:"model,omitempty"`
	Result    resultPayload     `json:"result"`
	Chart     present.Chart     `json:"chart"`
	Warnings  []present.Warning `json:"warnings"`
	RunID     string            `json:"run_id,omitempty"`
}

func stateResponse(state session.State, notices []nl2query.Notice, model string) askResponse {
	encoded, err := nl2query.Encode(state.Query)
	if err != nil {
		encoded = json.RawMessage(`{"kind":"none"}`)
	}
	chart, warnings := present.Render(state.Result, state.Chart)
	if warnings == nil {
		warnings = []present.Warning{}
	}
	return askResponse{
		SessionID: state.ID,
		Status:    state.Status,
		Question:  state.Question,
		Query:     encoded,
		Display:   nl2query.Display(state.Query),
		Raw:       state.Raw,
		Notices:   nonNilNotices(notices),
		Model:     model,
		Result:    toResultPayload(state.Result),
		Chart:     chart,
		Warnings:  warnings,
		RunID:     state.RunID,
	}
}

// forAttempt reports q as the query of this response. The session keeps its
// previous query and result after a sentinel or inference failure, and that
// query moves to previous_display.
func (a askResponse) forAttempt(q nl2query.Query) askResponse {
	if q == nil {
		q = nl2query.NoQuery{}
	}
	encoded, err := nl2query.Encode(q)
	if err != nil {
		encoded = json.RawMessage(`{"kind":"none"}`)
	}
	a.Previous = a.Display
	a.Query = encoded
	a.Display = nl2query.Display(q)
	return a
}

func toResultPayload(result query.Result) resultPayload {
	columns := result.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return resultPayload{
		Columns:    columns,
		Rows:       rows,
		RowCount:   len(rows),
		DurationMs: result.Duration.Milliseconds(),
	}
}

func (a askResponse) context() map[string]any {
	encoded, err := json.Marshal(a)
	if err != nil {
		return map[string]any{"session_id": a.SessionID}
	}
	out := map[string]any{}
	_ = json.Unmarshal(encoded, &out)
	return out
}

// resolveQuestion picks the question text, either typed or one of the
// canned examples by index.
func resolveQuestion(deps Dependencies, req askRequest) (string, error) {
	if req.Example != nil {
		examples := schema.Examples(deps.Descriptor.Variant)
		index := *req.Example
		if index < 0 || index >= len(examples) {
			return "", fmt.Errorf("example index %d out of range [0,%d)", index, len(examples))
		}
		return examples[index], nil
	}
	return strings.TrimSpace(req.Question), nil
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req askRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	question, err := resolveQuestion(deps, req)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXAMPLE", err.Error(), false, nil)
		return
	}
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	translation, err := deps.Translator.Translate(r.Context(), nl2query.Request{Question: question})
	if err != nil {
		writeTranslateError(w, r, err, nil)
		return
	}
	encoded, err := nl2query.Encode(translation.Query)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ENCODE_FAILED", "failed to encode query", false, map[string]any{"details": err.Error()})
		return
	}
	payload := map[string]any{
		"question": question,
		"query":    encoded,
		"display":  nl2query.Display(translation.Query),
		"raw":      translation.Raw,
		"notices":  nonNilNotices(translation.Notices),
		"model":    translation.Model,
	}
	if extractErr := translation.Err(); extractErr != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_QUERY", extractErr.Error(), false, payload)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil || deps.Engine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "translator and query engine must be configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req askRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	question, err := resolveQuestion(deps, req)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXAMPLE", err.Error(), false, nil)
		return
	}
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	state := ensureSession(deps, w, r)
	translation, err := deps.Translator.Translate(r.Context(), nl2query.Request{Question: question})
	if err != nil {
		if errors.Is(err, nl2query.ErrEmptyQuestion) {
			writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
			return
		}
		state = applyOutcome(deps, w, r, state.ID, session.Outcome{Question: question, Status: session.StatusInferenceFailed})
		writeTranslateError(w, r, err, stateResponse(state, nil, translation.Model).forAttempt(nl2query.NoQuery{}).context())
		return
	}

	if extractErr := translation.Err(); extractErr != nil {
		state = applyOutcome(deps, w, r, state.ID, session.Outcome{
			Question: question,
			Raw:      translation.Raw,
			Query:    translation.Query,
			Status:   session.StatusNoQuery,
		})
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_QUERY", extractErr.Error(), false,
			stateResponse(state, translation.Notices, translation.Model).forAttempt(translation.Query).context())
		return
	}

	result, err := deps.Engine.Execute(r.Context(), translation.Query)
	if err != nil {
		state = applyOutcome(deps, w, r, state.ID, session.Outcome{
			Question: question,
			Raw:      translation.Raw,
			Query:    translation.Query,
			Status:   session.StatusExecutionFailed,
		})
		extra := stateResponse(state, translation.Notices, translation.Model).context()
		extra["details"] = err.Error()
		if query.FailureReason(err) == query.ReasonConnection {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "EXECUTION_CONNECTION_FAILED", "could not reach the database", true, extra)
			return
		}
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "EXECUTION_FAILED", "query execution failed", false, extra)
		return
	}
	result = query.Limit(result, deps.RowLimit)

	status := session.StatusOK
	if result.RowCount() == 0 {
		status = session.StatusNoData
	}
	runID := archiveRun(deps, r, question, translation.Query, result)
	state = applyOutcome(deps, w, r, state.ID, session.Outcome{
		Question: question,
		Raw:      translation.Raw,
		Query:    translation.Query,
		Result:   result,
		Status:   status,
		RunID:    runID,
	})
	writeJSON(w, http.StatusOK, stateResponse(state, translation.Notices, translation.Model))
}

// applyOutcome merges the run into the session. A session that expired
// mid-request is recreated so the caller still receives its state.
func applyOutcome(deps Dependencies, w http.ResponseWriter, r *http.Request, id string, outcome session.Outcome) session.State {
	state, err := deps.Sessions.Apply(id, outcome)
	if err == nil {
		return state
	}
	fresh := ensureSession(deps, w, r)
	state, err = deps.Sessions.Apply(fresh.ID, outcome)
	if err != nil {
		return fresh
	}
	return state
}

func archiveRun(deps Dependencies, r *http.Request, question string, q nl2query.Query, result query.Result) string {
	if deps.Archive == nil || result.RowCount() == 0 {
		return ""
	}
	runID, err := storage.NewRunID()
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "generate run id failed", slog.Any("error", err))
		}
		return ""
	}
	key := deps.Archive.Save(r.Context(), archive.Run{
		RunID:     runID,
		Question:  question,
		Query:     q,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	})
	if key == "" {
		return ""
	}
	return runID
}

func writeTranslateError(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	if errors.Is(err, nl2query.ErrEmptyQuestion) {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if extra == nil {
		extra = map[string]any{}
	}
	extra["details"] = err.Error()
	writeError(r.Context(), w, http.StatusBadGateway, "INFERENCE_FAILED", "failed to reach the model server", true, extra)
}

func nonNilNotices(notices []nl2query.Notice) []nl2query.Notice {
	if notices == nil {
		return []nl2query.Notice{}
	}
	return notices
}
