package booking

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/apperr"
)

// Handler exposes HTTP endpoints for bookings.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid booking payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."})
		return
	}
	b, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListPublic(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, ErrNotFound)
		return
	}
	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// ListForWorker is mounted behind auth.Middleware.
func (h *Handler) ListForWorker(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	rows, err := h.svc.ListForWorker(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"bookings": rows})
}

// Delete handles DELETE /api/bookings/{id}. An unknown id is reported as 403.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, ErrNotAuthorized)
		return
	}
	h.delete(w, r, id, ErrNotAuthorized)
}

// DeleteByQuery handles DELETE /api/bookings?id=. An unknown id is reported as 404.
func (h *Handler) DeleteByQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		h.writeError(w, apperr.New(apperr.KindValidation, "Missing booking id"))
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, ErrNotFound)
		return
	}
	h.delete(w, r, id, ErrNotFound)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id int64, missing error) {
	caller, _ := auth.FromContext(r.Context())
	if err := h.svc.DeleteByWorker(r.Context(), caller, id, missing); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Booking deleted and booker notified."})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelByToken(r.Context(), r.PathValue("token")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Booking canceled successfully."})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.logger.Errorw("booking request failed", "err", err)
	}
	h.writeJSON(w, apperr.HTTPStatus(kind), map[string]string{"error": apperr.PublicMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
