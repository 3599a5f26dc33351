package handler

import (
	"net/http"

	"github.com/ruinabla/auth-api/internal/application/session"
)

// AdminHandler handles maintenance endpoints behind the admin role gate.
type AdminHandler struct {
	sessions session.Service
}

func NewAdminHandler(sessions session.Service) *AdminHandler {
	return &AdminHandler{sessions: sessions}
}

// PurgeSessions sweeps expired session rows on demand. DynamoDB TTL does the
// same in the background; this exists for immediate cleanup.
func (h *AdminHandler) PurgeSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.PurgeExpired(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		Purged  int  `json:"purged"`
	}{Success: true, Purged: n})
}
