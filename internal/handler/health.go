package handler

import (
	"net/http"

	"github.com/anuragaming1/anura-kun/internal/service"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	snippets *service.SnippetService
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(snippets *service.SnippetService) *HealthHandler {
	return &HealthHandler{snippets: snippets}
}

type healthResponse struct {
	Status   string `json:"status"`
	Snippets int    `json:"snippets"`
}

// HandleHealth reports "ok" and the stored snippet count. A store failure
// answers 503 so load balancers pull the instance.
//
// HTTP: GET /api/health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := h.snippets.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Snippets: n})
}
