package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askmesh/askmesh/internal/archive"
	"github.com/askmesh/askmesh/internal/config"
	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/schema"
	"github.com/askmesh/askmesh/internal/session"
)

// RunArchive stores successful results and reads them back by run id.
type RunArchive interface {
	Save(ctx context.Context, run archive.Run) string
	Load(ctx context.Context, runID string) (archive.Stored, error)
}

type Dependencies struct {
	Logger           *slog.Logger
	Readiness        ReadinessCheck
	AuthMiddleware   func(http.Handler) http.Handler
	ReadinessTimeout time.Duration
	Descriptor       schema.Descriptor
	Translator       nl2query.Translator
	Engine           query.Engine
	Sessions         *session.Store
	Archive          RunArchive
	RowLimit         int
	UI               http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(cfg.Session.TTL)
	}
	if deps.RowLimit <= 0 {
		deps.RowLimit = cfg.Query.RowLimit
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		handleReady(deps, w, r)
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := map[string]http.HandlerFunc{
		"GET /v1/schema": func(w http.ResponseWriter, r *http.Request) {
			handleSchema(deps, w, r)
		},
		"GET /v1/examples": func(w http.ResponseWriter, r *http.Request) {
			handleExamples(deps, w, r)
		},
		"POST /v1/query/translate": func(w http.ResponseWriter, r *http.Request) {
			handleTranslate(deps, w, r)
		},
		"POST /v1/ask": func(w http.ResponseWriter, r *http.Request) {
			handleAsk(deps, w, r)
		},
		"POST /v1/chart": func(w http.ResponseWriter, r *http.Request) {
			handleChart(deps, w, r)
		},
		"GET /v1/session": func(w http.ResponseWriter, r *http.Request) {
			handleSession(deps, w, r)
		},
		"GET /v1/runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			handleGetRun(deps, w, r)
		},
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// writeJSON encodes before writing the status, so a payload that cannot be
// encoded becomes a 500 envelope instead of a 200 with an empty body.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{
			"error_code": "RESPONSE_ENCODING_FAILED",
			"message":    fmt.Sprintf("encode response: %v", err),
			"retryable":  false,
			"context":    map[string]any{},
			"trace_id":   w.Header().Get(observability.TraceHeader),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
