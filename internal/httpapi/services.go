package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/persistentservice"
)

type serviceRequest struct {
	Name          string                          `json:"name"`
	Code          string                          `json:"code"`
	PackageSet    []string                        `json:"package_set"`
	RestartPolicy persistentservice.RestartPolicy `json:"restart_policy"`
	AutoStart     *bool                           `json:"auto_start"`
	IsActive      *bool                           `json:"is_active"`
}

// createService implements POST /services (spec.md §4.9, §6).
func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.Code == "" {
		writeAPIError(w, apierr.Validation("code is required"))
		return
	}
	policy := req.RestartPolicy
	if policy == "" {
		policy = persistentservice.RestartOnFailure
	}

	now := time.Now().UTC()
	svc := persistentservice.Service{
		Name:          req.Name,
		Code:          req.Code,
		PackageSet:    req.PackageSet,
		RestartPolicy: policy,
		AutoStart:     req.AutoStart != nil && *req.AutoStart,
		IsActive:      req.IsActive == nil || *req.IsActive,
		Status:        persistentservice.StatusStopped,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := h.store.CreateService(r.Context(), svc)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.ListServices(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("service not found"))
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.NotFound("service not found"))
		return
	}

	var req serviceRequest
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
	if req.PackageSet != nil {
		existing.PackageSet = req.PackageSet
	}
	if req.RestartPolicy != "" {
		existing.RestartPolicy = req.RestartPolicy
	}
	if req.AutoStart != nil {
		existing.AutoStart = *req.AutoStart
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.UpdatedAt = time.Now().UTC()

	updated, err := h.store.UpdateService(r.Context(), existing)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetService(r.Context(), id); err != nil {
		writeAPIError(w, apierr.NotFound("service not found"))
		return
	}
	_ = h.services.Stop(r.Context(), id)
	if err := h.store.DeleteService(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.services.Start(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) stopService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.services.Stop(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// restartService stops and starts a service, per spec.md §4.9's explicit
// restarting -> starting transition rather than reusing the natural-exit
// restart path (which has its own 2s cooldown).
func (h *Handler) restartService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	_ = h.services.Stop(r.Context(), id)
	if err := h.services.Start(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) serviceLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logs, err := h.services.Logs(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": logs})
}
