package api

import (
	"net/http"

	"github.com/askmesh/askmesh/internal/schema"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Descriptor.Text == "" {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema descriptor is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variant": deps.Descriptor.Variant,
		"dataset": deps.Descriptor.Dataset,
		"schema":  deps.Descriptor.Text,
		"summary": schema.Summary(deps.Descriptor.Variant),
	})
}

func handleExamples(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Descriptor.Text == "" {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema descriptor is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variant":  deps.Descriptor.Variant,
		"examples": schema.Examples(deps.Descriptor.Variant),
	})
}
