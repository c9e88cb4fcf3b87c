package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/storage"
)

const defaultLogLimit = 50

// listLogs implements GET /logs with job_id/webhook_job_id/limit/offset
// filters (spec.md §4.11, §6).
func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := parseLimitOffset(q, defaultLogLimit)
	if err != nil {
		writeAPIError(w, apierr.Validation("invalid limit or offset"))
		return
	}

	filter := storage.ExecutionLogFilter{
		JobID:        first(q, "job_id"),
		WebhookJobID: first(q, "webhook_job_id"),
		Limit:        limit,
		Offset:       offset,
	}

	logs, err := h.store.ListLogs(r.Context(), filter)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, err := h.store.GetLog(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("log not found"))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
