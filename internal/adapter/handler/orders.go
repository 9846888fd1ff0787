package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
)

type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type PlaceOrderHTTPRequest struct {
	RequestID string             `json:"requestId"`
	EventID   string             `json:"eventId"`
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type OrderStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get("Idempotency-Key")
	}
	if requestID == "" {
		respondMessage(w, http.StatusBadRequest, "requestId or Idempotency-Key header is required")
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		RequestID: requestID,
		UserID:    currentUser(r).ID,
		EventID:   req.EventID,
		Items:     items,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, Response{
		Success: true,
		Message: "order placed successfully",
		Data:    order,
	})
}

func (h *HTTPHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), currentUser(r).ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, order)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CancelOrder(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, order)
}

func (h *HTTPHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.orders.ListAllOrders(r.Context(), currentUser(r), status, queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, orders)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateOrderStatus(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, order)
}
