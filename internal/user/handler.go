package user

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	Service *Service
	ident   func(r *http.Request) Identity
}

// NewHandler takes the function the auth middleware exposes to read the
// caller identity from the request context.
func NewHandler(s *Service, ident func(r *http.Request) Identity) *Handler {
	return &Handler{Service: s, ident: ident}
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	users, err := h.Service.SearchUsers(r.Context(), q)
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []User{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(users)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := h.ident(r)
	u, err := h.Service.Directory().GetUserByID(r.Context(), id.UserID)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(u)
}
