package httpapi

import "net/http"

type proxiedService struct {
	SandboxID string `json:"sandbox_id"`
	Framework string `json:"framework"`
	ProxyURL  string `json:"proxy_url"`
	Ready     bool   `json:"ready"`
}

// listProxied implements GET /proxy (spec.md §6): every currently-running
// web service and the public URL the frontend should reach it at.
func (h *Handler) listProxied(w http.ResponseWriter, r *http.Request) {
	base := h.proxyCfg.PublicAPIURL
	if base == "" {
		base = h.proxyCfg.BackendURL
	}

	all := h.webservices.All()
	out := make([]proxiedService, 0, len(all))
	for _, svc := range all {
		out = append(out, proxiedService{
			SandboxID: svc.SandboxID,
			Framework: string(svc.Framework),
			ProxyURL:  base + "/proxy/" + svc.ProxyPath + "/",
			Ready:     svc.Ready,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
