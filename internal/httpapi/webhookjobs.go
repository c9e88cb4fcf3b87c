package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/webhookjob"
)

type webhookJobRequest struct {
	Name        string   `json:"name"`
	Endpoint    string   `json:"endpoint"`
	Code        string   `json:"code"`
	PackageSet  []string `json:"package_set"`
	TimeoutS    *int     `json:"timeout_s"`
	IsActive    *bool    `json:"is_active"`
	Description string   `json:"description"`
}

// createWebhookJob implements POST /webhook-jobs (spec.md §4.8, §6): the
// endpoint must be unique among active and inactive webhook jobs alike,
// since WebhookRouter dispatches on path alone.
func (h *Handler) createWebhookJob(w http.ResponseWriter, r *http.Request) {
	var req webhookJobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.Code == "" || req.Endpoint == "" {
		writeAPIError(w, apierr.Validation("code and endpoint are required"))
		return
	}
	if _, err := h.store.GetWebhookJobByEndpoint(r.Context(), req.Endpoint); err == nil {
		writeAPIError(w, apierr.Conflict("endpoint already registered"))
		return
	}

	timeout := webhookjob.UnboundedTimeout
	if req.TimeoutS != nil {
		timeout = *req.TimeoutS
	}

	now := time.Now().UTC()
	job := webhookjob.Job{
		Name:        req.Name,
		Endpoint:    req.Endpoint,
		Code:        req.Code,
		PackageSet:  req.PackageSet,
		TimeoutS:    timeout,
		IsActive:    req.IsActive == nil || *req.IsActive,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := h.store.CreateWebhookJob(r.Context(), job)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listWebhookJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListWebhookJobs(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) getWebhookJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.store.GetWebhookJob(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("webhook job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) updateWebhookJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := h.store.GetWebhookJob(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("webhook job not found"))
		return
	}

	var req webhookJobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Endpoint != "" && req.Endpoint != existing.Endpoint {
		if other, err := h.store.GetWebhookJobByEndpoint(r.Context(), req.Endpoint); err == nil && other.ID != id {
			writeAPIError(w, apierr.Conflict("endpoint already registered"))
			return
		}
		existing.Endpoint = req.Endpoint
	}
	if req.Code != "" {
		existing.Code = req.Code
	}
	if req.PackageSet != nil {
		existing.PackageSet = req.PackageSet
	}
	if req.TimeoutS != nil {
		existing.TimeoutS = *req.TimeoutS
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	existing.UpdatedAt = time.Now().UTC()

	updated, err := h.store.UpdateWebhookJob(r.Context(), existing)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteWebhookJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteWebhookJob(r.Context(), id); err != nil {
		writeAPIError(w, apierr.NotFound("webhook job not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
