package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

type ProductRequest struct {
	SKU         string `json:"sku" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	PriceCents  int64  `json:"priceCents" validate:"gte=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
	Active      *bool  `json:"active"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

func (req ProductRequest) product() domain.Product {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return domain.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Active:      active,
		ImageURL:    req.ImageURL,
	}
}

type RestockRequest struct {
	Stock   int `json:"stock" validate:"gte=0"`
	Version int `json:"version" validate:"gte=1"`
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), true)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, products)
}

// ListAllProducts includes inactive products.
func (h *HTTPHandler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), false)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, p)
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), req.product())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, p)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	p := req.product()
	p.ID = chi.URLParam(r, "id")

	updated, err := h.catalog.UpdateProduct(r.Context(), p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, updated)
}

func (h *HTTPHandler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.catalog.RestockProduct(r.Context(), chi.URLParam(r, "id"), req.Stock, req.Version)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, p)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "product deleted")
}
