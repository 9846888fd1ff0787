package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

type UpdateMeRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

type UpdateRoleRequest struct {
	Role domain.Role `json:"role" validate:"required,oneof=fan vendor admin"`
}

func (h *HTTPHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, currentUser(r))
}

func (h *HTTPHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.UpdateDisplayName(r.Context(), currentUser(r).ID, req.DisplayName)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, u)
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, users)
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, u)
}

func (h *HTTPHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.UpdateUserRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, u)
}

func (h *HTTPHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == currentUser(r).ID {
		respondMessage(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "user deleted")
}
