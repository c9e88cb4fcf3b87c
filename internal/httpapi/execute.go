package httpapi

import (
	"net/http"
	"time"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/executionlog"
)

type executeRequest struct {
	Code        string   `json:"code"`
	Packages    []string `json:"packages"`
	TimeoutS    int      `json:"timeout"`
	ContainerID string   `json:"container_id"`
	JobID       string   `json:"job_id"`
}

// execute implements POST /execute (spec.md §4.3, §6): runs code one-shot in
// a reusable or bound sandbox and records the outcome as an ExecutionLog.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}

	parent := executionlog.Parent{}
	packages := req.Packages
	if req.JobID != "" && req.Code == "" {
		job, err := h.store.GetJob(r.Context(), req.JobID)
		if err != nil {
			writeAPIError(w, apierr.NotFound("scheduled job not found"))
			return
		}
		req.Code = job.Code
		if packages == nil {
			packages = job.PackageSet
		}
		if req.TimeoutS == 0 {
			req.TimeoutS = job.TimeoutS
		}
		if req.ContainerID == "" {
			req.ContainerID = job.BoundSandbox
		}
		parent = executionlog.Parent{Kind: executionlog.ParentScheduled, ID: job.ID}
	}

	started := time.Now().UTC()
	result, err := h.engine.Execute(r.Context(), req.Code, packages, req.TimeoutS, req.ContainerID)

	entry := executionlog.Log{
		Parent:    parent,
		Code:      req.Code,
		StartedAt: started,
	}
	if err != nil {
		if apierr.Is(err, apierr.KindCodeMissing) || apierr.Is(err, apierr.KindSandboxNotFound) || apierr.Is(err, apierr.KindValidation) {
			writeAPIError(w, err)
			return
		}
		entry.Status = executionlog.StatusError
		entry.Error = err.Error()
		h.logExecution(r, entry)
		writeAPIError(w, err)
		return
	}

	entry.Status = result.Status()
	entry.Output = result.Output
	entry.Error = result.Error
	entry.SandboxID = result.SandboxID
	entry.ExecutionTimeS = result.ExecutionTimeS
	rm := result.Metrics
	entry.Metrics = &rm
	h.logExecution(r, entry)

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) logExecution(r *http.Request, entry executionlog.Log) {
	if _, err := h.store.AppendLog(r.Context(), entry); err != nil {
		h.log.WithField("error", err.Error()).Warn("append one-shot execution log failed")
	}
}
