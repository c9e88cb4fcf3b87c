package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
)

type jobRequest struct {
	Name       string   `json:"name"`
	Code       string   `json:"code"`
	CronExpr   string   `json:"cron_expr"`
	PackageSet []string `json:"package_set"`
	TimeoutS   int      `json:"timeout_s"`
	IsActive   *bool    `json:"is_active"`
}

// createJob implements POST /jobs (spec.md §4.7, §6).
func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.Code == "" || req.CronExpr == "" {
		writeAPIError(w, apierr.Validation("code and cron_expr are required"))
		return
	}
	timeout := req.TimeoutS
	if timeout == 0 {
		timeout = scheduledjob.DefaultTimeoutS
	}

	now := time.Now().UTC()
	job := scheduledjob.Job{
		Name:       req.Name,
		Code:       req.Code,
		CronExpr:   req.CronExpr,
		PackageSet: req.PackageSet,
		TimeoutS:   timeout,
		IsActive:   req.IsActive == nil || *req.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := h.store.CreateJob(r.Context(), job)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	h.reloadCron(r)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("job not found"))
		return
	}

	var req jobRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Code != "" {
		existing.Code = req.Code
	}
	if req.CronExpr != "" {
		existing.CronExpr = req.CronExpr
	}
	if req.PackageSet != nil {
		existing.PackageSet = req.PackageSet
	}
	if req.TimeoutS != 0 {
		existing.TimeoutS = req.TimeoutS
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.UpdatedAt = time.Now().UTC()

	updated, err := h.store.UpdateJob(r.Context(), existing)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	h.reloadCron(r)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		writeAPIError(w, apierr.NotFound("job not found"))
		return
	}
	h.reloadCron(r)
	w.WriteHeader(http.StatusNoContent)
}

// reloadCron rebuilds the scheduler's in-memory schedule after a job's
// active state or cron expression may have changed, per spec.md §4.7.
func (h *Handler) reloadCron(r *http.Request) {
	if h.scheduler == nil {
		return
	}
	if err := h.scheduler.Reload(r.Context()); err != nil {
		h.log.WithField("error", err.Error()).Warn("cron reload after job mutation failed")
	}
}
