package friends

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"go-social/internal/domain"
	"go-social/internal/logger"
	"go-social/internal/notify"
	"go-social/internal/user"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc        *Service
	dispatcher *notify.Dispatcher
	dir        user.Directory
	ident      func(r *http.Request) user.Identity
}

func NewHandler(svc *Service, dispatcher *notify.Dispatcher, dir user.Directory, ident func(r *http.Request) user.Identity) *Handler {
	return &Handler{svc: svc, dispatcher: dispatcher, dir: dir, ident: ident}
}

// Routes mounts the friendship endpoints under the caller's router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListFriends)
	r.Delete("/{username}", h.RemoveFriend)
	r.Get("/requests", h.ListRequests)
	r.Post("/requests/viewed", h.MarkViewed)
	r.Post("/requests/{username}", h.SendRequest)
	r.Post("/requests/{username}/accept", h.Accept)
	r.Post("/requests/{username}/reject", h.Reject)
	r.Delete("/requests/{username}", h.Cancel)
}

func (h *Handler) other(r *http.Request) (*user.User, error) {
	return h.dir.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
}

// emit forwards notices once the change they describe is stored.
func (h *Handler) emit(r *http.Request, notices []notify.Notice) {
	if err := h.dispatcher.BroadcastAll(r.Context(), notices); err != nil {
		logger.FromContext(r.Context()).Warn("friends - notify - failed", slog.Any("error", err))
	}
}

type sendRequestBody struct {
	Message string `json:"message"`
}

func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	to, err := h.other(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, notices, err := h.svc.SendRequest(r.Context(), h.ident(r).UserID, to.ID, body.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.emit(r, notices)
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	from, err := h.other(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notices, err := h.svc.Accept(r.Context(), from.ID, h.ident(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.emit(r, notices)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	from, err := h.other(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Reject(r.Context(), from.ID, h.ident(r).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	to, err := h.other(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notices, err := h.svc.Cancel(r.Context(), h.ident(r).UserID, to.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.emit(r, notices)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.MarkViewed(r.Context(), h.ident(r).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type requestsResponse struct {
	Received []RequestView `json:"received"`
	Sent     []RequestView `json:"sent"`
	Unread   int           `json:"unread_notifications"`
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, me := r.Context(), h.ident(r).UserID
	received, err := h.svc.Received(ctx, me)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sent, err := h.svc.Sent(ctx, me)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.svc.UnreadCount(ctx, me)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requestsResponse{Received: received, Sent: sent, Unread: unread})
}

func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Friends(r.Context(), h.ident(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	other, err := h.other(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.RemoveFriend(r.Context(), h.ident(r).UserID, other.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("friends - request - failed", slog.Any("error", err))
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
