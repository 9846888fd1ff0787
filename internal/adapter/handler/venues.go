package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

type StadiumRequest struct {
	Name      string  `json:"name" validate:"required,max=120"`
	City      string  `json:"city" validate:"required,max=120"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Capacity  int     `json:"capacity" validate:"gte=0"`
}

func (req StadiumRequest) stadium() domain.Stadium {
	return domain.Stadium{
		Name:      req.Name,
		City:      req.City,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Capacity:  req.Capacity,
	}
}

type EventRequest struct {
	StadiumID   string    `json:"stadiumId" validate:"required"`
	Name        string    `json:"name" validate:"required,max=160"`
	Description string    `json:"description" validate:"max=4000"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
	EndsAt      time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
}

func (req EventRequest) event() domain.Event {
	return domain.Event{
		StadiumID:   req.StadiumID,
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
}

func (h *HTTPHandler) ListStadiums(w http.ResponseWriter, r *http.Request) {
	stadiums, err := h.venues.ListStadiums(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, stadiums)
}

func (h *HTTPHandler) GetStadium(w http.ResponseWriter, r *http.Request) {
	st, err := h.venues.GetStadium(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, st)
}

func (h *HTTPHandler) CreateStadium(w http.ResponseWriter, r *http.Request) {
	var req StadiumRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.venues.CreateStadium(r.Context(), req.stadium())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, st)
}

func (h *HTTPHandler) UpdateStadium(w http.ResponseWriter, r *http.Request) {
	var req StadiumRequest
	if !decode(w, r, &req) {
		return
	}
	st := req.stadium()
	st.ID = chi.URLParam(r, "id")

	updated, err := h.venues.UpdateStadium(r.Context(), st)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteStadium(w http.ResponseWriter, r *http.Request) {
	if err := h.venues.DeleteStadium(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "stadium deleted")
}

// ListEvents accepts ?stadiumId= and ?upcoming=true.
func (h *HTTPHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.venues.ListEvents(r.Context(), r.URL.Query().Get("stadiumId"), queryBool(r, "upcoming"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, events)
}

func (h *HTTPHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.venues.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, e)
}

func (h *HTTPHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.venues.CreateEvent(r.Context(), req.event())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, e)
}

func (h *HTTPHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decode(w, r, &req) {
		return
	}
	e := req.event()
	e.ID = chi.URLParam(r, "id")

	updated, err := h.venues.UpdateEvent(r.Context(), e)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.venues.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "event deleted")
}
