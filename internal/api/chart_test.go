package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/askmesh/askmesh/internal/archive"
	"github.com/askmesh/askmesh/internal/observability"
)

func TestChartUpdateRerendersFromSession(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Descriptor: mongoDescriptor(t),
		Translator: &fakeTranslator{body: statusAggregate},
		Engine:     &fakeEngine{result: statusResult()},
	})
	ask := httptest.NewRecorder()
	h.ServeHTTP(ask, jsonRequest(http.MethodPost, "/v1/ask", `{"question":"Count orders by status"}`))
	sessionID := ask.Header().Get(observability.SessionHeader)

	req := jsonRequest(http.MethodPost, "/v1/chart", `{"kind":"Pie Chart","sort":"asc"}`)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sessionID})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeAsk(t, rr.Body.Bytes())
	if body.Chart.Options.Kind != "pie" || body.Chart.Options.Sort != "asc" {
		t.Fatalf("options = %+v", body.Chart.Options)
	}
	if body.Chart.Figure == nil || len(body.Chart.Figure.Data) != 1 || body.Chart.Figure.Data[0]["type"] != "pie" {
		t.Fatalf("figure = %+v", body.Chart.Figure)
	}

	bad := jsonRequest(http.MethodPost, "/v1/chart", `{"y":"paymentStatus"}`)
	bad.Header.Set(observability.SessionHeader, sessionID)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, bad)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).ErrorCode != "INVALID_CHART_OPTIONS" {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestChartUnknownSession(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	req := jsonRequest(http.MethodPost, "/v1/chart", `{"kind":"bar"}`)
	req.Header.Set(observability.SessionHeader, "expired")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound || decodeError(t, rr).ErrorCode != "SESSION_NOT_FOUND" {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestSessionEndpointCreatesAndReuses(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	created := decodeAsk(t, rr.Body.Bytes())
	if created.SessionID == "" || created.Chart.Options.Kind != "bar" {
		t.Fatalf("session = %+v", created)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if again := decodeAsk(t, rr.Body.Bytes()); again.SessionID != created.SessionID {
		t.Fatalf("session id = %q, want %q", again.SessionID, created.SessionID)
	}
}

func TestSchemaAndExamplesEndpoints(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Descriptor: mongoDescriptor(t)})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("schema status = %d", rr.Code)
	}
	var schemaBody map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &schemaBody); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if schemaBody["variant"] != "mongo" || schemaBody["dataset"] != "ordercollections" || schemaBody["schema"] == "" {
		t.Fatalf("schema = %#v", schemaBody)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/examples", nil))
	var examplesBody struct {
		Examples []string `json:"examples"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &examplesBody); err != nil {
		t.Fatalf("decode examples: %v", err)
	}
	if len(examplesBody.Examples) == 0 {
		t.Fatal("expected examples")
	}
}

func TestGetRun(t *testing.T) {
	runID := "01890a5d-ac96-774b-bcce-b302099a8057"
	runs := &fakeArchive{stored: map[string]archive.Stored{
		runID: {
			RunID:     runID,
			Question:  "Count orders by status",
			QueryKind: "aggregate",
			QueryText: `{"aggregate": []}`,
			CreatedAt: time.Date(2023, 6, 29, 0, 0, 0, 0, time.UTC),
			Result:    statusResult(),
		},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Archive: runs})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		RunID  string `json:"run_id"`
		Result struct {
			RowCount int `json:"row_count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if body.RunID != runID || body.Result.RowCount != 2 {
		t.Fatalf("run = %+v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	if rr.Code != http.StatusNotFound || decodeError(t, rr).ErrorCode != "RUN_NOT_FOUND" {
		t.Fatalf("status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewHandler(loadConfig(t, nil), Dependencies{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID, nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("disabled archive status = %d", rr.Code)
	}
}
