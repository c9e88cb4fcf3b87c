package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/imagecache"
)

type createContainerRequest struct {
	Name     string   `json:"name"`
	Packages []string `json:"packages"`
}

// createContainer builds (or reuses) the image for the requested package
// set and creates a reusable sandbox for it, per spec.md §6 "Containers".
func (h *Handler) createContainer(w http.ResponseWriter, r *http.Request) {
	var req createContainerRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}

	ref, err := h.engineImages().Build(r.Context(), req.Packages)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	digest := imagecache.Digest(req.Packages)

	sb, err := h.sandboxes.GetOrCreateReusable(r.Context(), digest, ref)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	sb.Name = req.Name
	sb.PackageSet = req.Packages

	writeJSON(w, http.StatusCreated, sb)
}

func (h *Handler) listContainers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sandboxes.List())
}

func (h *Handler) getContainer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sb, ok := h.sandboxes.Get(id)
	if !ok {
		writeAPIError(w, apierr.SandboxNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, sb)
}

func (h *Handler) destroyContainer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.sandboxes.Get(id); !ok {
		writeAPIError(w, apierr.SandboxNotFound(id))
		return
	}
	if err := h.sandboxes.Destroy(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) destroyAllContainers(w http.ResponseWriter, r *http.Request) {
	if err := h.sandboxes.CleanupAll(r.Context()); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// engineImages exposes the ImageCache the Handler was constructed with,
// through the Engine that owns it, so /containers can reuse the exact same
// build-coalescing path as /execute.
func (h *Handler) engineImages() *imagecache.Cache {
	return h.engine.Images()
}
