package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"go-social/internal/domain"
	"go-social/internal/hub"
	"go-social/internal/logger"
	"go-social/internal/user"
)

// ServeWs returns the upgrade handler for one notification stream. The
// caller may be anonymous.
func ServeWs(d *Dispatcher, registry *hub.Registry, ident func(r *http.Request) user.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		conn, err := registry.Attach(ctx, ident(r))
		if err != nil {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		ws, err := hub.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("notify - upgrade - failed", slog.Any("error", err))
			_ = registry.Detach(ctx, conn)
			return
		}

		if err := d.Connect(ctx, conn); err != nil {
			log.Error("notify - connect - failed", slog.Any("error", err), slog.String("conn_id", conn.ID))
		}

		// Notification streams are push-only; inbound frames are dropped.
		registry.Serve(ctx, ws, conn, func(ctx context.Context, data []byte) {})
	}
}

type Handler struct {
	svc        *Service
	dispatcher *Dispatcher
	dir        user.Directory
	ident      func(r *http.Request) user.Identity
}

func NewHandler(svc *Service, dispatcher *Dispatcher, dir user.Directory, ident func(r *http.Request) user.Identity) *Handler {
	return &Handler{svc: svc, dispatcher: dispatcher, dir: dir, ident: ident}
}

type createRequest struct {
	Recipient   string `json:"recipient"`
	Verb        string `json:"verb"`
	Description string `json:"description"`
}

// Create records a comment or like by the caller and pushes it to the
// recipient.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	recipient, err := h.dir.GetUserByUsername(ctx, req.Recipient)
	if err != nil {
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}

	n, notice, err := h.svc.Create(ctx, recipient.ID, h.ident(r).UserID, req.Verb, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.dispatcher.Broadcast(ctx, notice.RecipientID, notice.Payload); err != nil {
		logger.FromContext(ctx).Warn("notify - create - broadcast failed", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(n)
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

type unreadResponse struct {
	Unread int `json:"unread_notifications"`
}

// MarkRead marks the listed notifications read, or all of them for an empty
// list.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	me := h.ident(r).UserID
	if _, err := h.svc.MarkRead(r.Context(), me, req.IDs...); err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.svc.UnreadCount(r.Context(), me)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(unreadResponse{Unread: unread})
}

type listResponse struct {
	Notifications []*Notification `json:"notifications"`
	Unread        int             `json:"unread_notifications"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	me := h.ident(r).UserID
	list, err := h.svc.List(r.Context(), me, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.svc.UnreadCount(r.Context(), me)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(listResponse{Notifications: list, Unread: unread})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("notify - request - failed", slog.Any("error", err))
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
