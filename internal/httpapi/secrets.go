package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
)

type setSecretRequest struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// setSecret implements POST /env (spec.md §4.10, §6).
func (h *Handler) setSecret(w http.ResponseWriter, r *http.Request) {
	var req setSecretRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.Name == "" {
		writeAPIError(w, apierr.Validation("name is required"))
		return
	}

	meta, err := h.secrets.Set(r.Context(), req.Name, req.Value, req.Description)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.KindInfra, "set secret", err))
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (h *Handler) listSecretNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.secrets.ListNames(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) listSecretMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.secrets.ListMetadata(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) getSecretMetadata(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	all, err := h.secrets.ListMetadata(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	for _, m := range all {
		if m.Name == name {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeAPIError(w, apierr.NotFound("secret not found"))
}

// getSecret returns the decrypted plaintext value, used by operators
// debugging a secret's contents (spec.md §6 GET /env/{name}).
func (h *Handler) getSecret(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	value, ok := h.secrets.Get(r.Context(), name)
	if !ok {
		writeAPIError(w, apierr.NotFound("secret not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": value})
}

func (h *Handler) deleteSecret(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := h.secrets.Delete(r.Context(), name)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !ok {
		writeAPIError(w, apierr.NotFound("secret not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
