package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
)

type LocationRequest struct {
	StadiumID string  `json:"stadiumId" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Accuracy  float64 `json:"accuracy" validate:"gte=0"`
}

type CheckInResponse struct {
	EventID string `json:"eventId"`
	Count   int64  `json:"count"`
	Created bool   `json:"created"`
}

// UpdateLocation is the REST twin of the location:update socket event.
func (h *HTTPHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !decode(w, r, &req) {
		return
	}
	loc, err := h.locations.UpdateLocation(r.Context(), currentUser(r).ID, service.LocationUpdate{
		StadiumID: req.StadiumID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
	}, 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, loc)
}

func (h *HTTPHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	notice, created, err := h.locations.CheckIn(r.Context(), currentUser(r).ID, eventID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondOK(w, status, CheckInResponse{EventID: eventID, Count: notice.Count, Created: created})
}

func (h *HTTPHandler) CheckInCount(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	n, err := h.locations.CheckInCount(r.Context(), eventID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, CheckInResponse{EventID: eventID, Count: n})
}

func (h *HTTPHandler) ListFans(w http.ResponseWriter, r *http.Request) {
	fans, err := h.locations.ListFans(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, fans)
}

// NearbyFans takes ?lat=&lng=&radius= (metres).
func (h *HTTPHandler) NearbyFans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	radius, radErr := strconv.ParseFloat(q.Get("radius"), 64)
	if latErr != nil || lngErr != nil || radErr != nil {
		respondMessage(w, http.StatusBadRequest, "lat, lng and radius must be numbers")
		return
	}

	fans, err := h.locations.NearbyFans(r.Context(), chi.URLParam(r, "id"), lat, lng, radius)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, fans)
}
