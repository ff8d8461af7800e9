package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"go-social/internal/backlog"
	"go-social/internal/domain"
	"go-social/internal/hub"
	"go-social/internal/logger"
	"go-social/internal/user"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	router   *Router
	registry *hub.Registry
	ident    func(r *http.Request) user.Identity
}

func NewHandler(router *Router, registry *hub.Registry, ident func(r *http.Request) user.Identity) *Handler {
	return &Handler{router: router, registry: registry, ident: ident}
}

// ServeWs opens a chat session with the {friend} route parameter. The
// conversation is resolved before the upgrade so failures are plain HTTP
// errors.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	conn, err := h.registry.Attach(ctx, h.ident(r))
	if err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	session, err := h.router.Open(ctx, conn, chi.URLParam(r, "friend"))
	if err != nil {
		_ = h.registry.Detach(ctx, conn)
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}
	defer session.Close()

	ws, err := hub.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("chat - upgrade - failed", slog.Any("error", err))
		_ = h.registry.Detach(ctx, conn)
		return
	}

	h.registry.Serve(ctx, ws, conn, session.Handle)
}

type startConversationRequest struct {
	Friend string `json:"friend"`
}

type startConversationResponse struct {
	RoomID string `json:"room_id"`
	Friend string `json:"friend"`
}

// StartConversation finds or creates the room with a friend.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Friend == "" {
		http.Error(w, "body must be {\"friend\": \"<username>\"}", http.StatusBadRequest)
		return
	}

	room, friend, err := h.roomWith(r.Context(), h.ident(r), req.Friend)
	if err != nil {
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(startConversationResponse{RoomID: room.ID, Friend: friend.Username})
}

// GetChatHistory returns the most recent messages with ?friend=, oldest first.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = h.router.opts.HistoryLimit
	}
	limit = min(limit, 100)

	caller := h.ident(r)
	room, friend, err := h.roomWith(r.Context(), caller, q.Get("friend"))
	if err != nil {
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}
	viewer, err := h.router.dir.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}

	src := backlog.SourceFunc[string, *Message](h.router.messages.FindMessages)
	msgs, err := backlog.LoadRecent[string, *Message](r.Context(), src, room.ID, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("chat - history - failed", slog.Any("error", err))
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	out := AllMessages{Command: "all_messages", Messages: make([]ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		author, recipient := viewer, friend
		if m.AuthorID != viewer.ID {
			author, recipient = friend, viewer
		}
		out.Messages = append(out.Messages, newChatMessage(m, author, recipient))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) roomWith(ctx context.Context, caller user.Identity, friendName string) (*Room, *user.User, error) {
	if caller.Anonymous() {
		return nil, nil, domain.ErrAuthenticationRequired
	}
	friend, err := h.router.dir.GetUserByUsername(ctx, friendName)
	if err != nil {
		return nil, nil, participantErr(err, friendName)
	}
	room, err := h.router.rooms.GetOrCreate(ctx, caller.UserID, friend.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, friend, nil
}
