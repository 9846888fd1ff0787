package handler

import "net/http"

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// Subscribe accepts the browser's PushSubscription JSON as is.
func (h *HTTPHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.push.Subscribe(r.Context(), currentUser(r).ID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, sub)
}

func (h *HTTPHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.push.Unsubscribe(r.Context(), currentUser(r).ID, req.Endpoint); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "subscription removed")
}

func (h *HTTPHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.push.ListSubscriptions(r.Context(), currentUser(r).ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, subs)
}

func (h *HTTPHandler) ListAllSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.push.ListAllSubscriptions(r.Context(), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, subs)
}
