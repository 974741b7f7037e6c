package maintenance

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
)

// Handler exposes the sweep to an external scheduler.
type Handler struct {
	sweeper *Sweeper
	secret  string
	logger  *zap.SugaredLogger
}

// NewHandler builds the trigger. An empty secret leaves the endpoint open.
func NewHandler(sweeper *Sweeper, secret string, logger *zap.SugaredLogger) *Handler {
	return &Handler{sweeper: sweeper, secret: secret, logger: logger}
}

func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && !ConstantTimeCompare(auth.BearerToken(r), h.secret) {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	res, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.Errorw("cleanup failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error."})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cleanup complete",
		"expired": res.Expired,
		"purged":  res.Purged,
	})
}

// ConstantTimeCompare reports whether a equals b without leaking where they differ.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
