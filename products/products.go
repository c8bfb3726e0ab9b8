package products

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"papeleria/globals"
	"papeleria/models"
	"papeleria/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	store Store
	now   func() time.Time
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

type productInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	ImageURLs   []string `json:"imageUrls"`
}

func (in productInput) validate() string {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return "name is required"
	case in.Price == nil || *in.Price < 0:
		return "price must be a non-negative number"
	case in.Stock == nil || *in.Stock < 0:
		return "stock must be a non-negative integer"
	}
	return ""
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.store.List(r.Context())
	if err != nil {
		globals.Log.Error().Err(err).Msg("list products")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if q := utils.ParseQueryOptions(r).Search; q != "" {
		filtered := list[:0]
		for _, p := range list {
			if strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
				filtered = append(filtered, p)
			}
		}
		list = filtered
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GetProduct handles GET /api/products/:id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.store.Get(r.Context(), ps.ByName("id"))
	if !h.check(w, err, "get product") {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /api/admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in productInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := in.validate(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}
	now := h.now()
	p := models.Product{
		ProductID:   utils.GetUUID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    in.Category,
		Price:       *in.Price,
		Stock:       *in.Stock,
		ImageURLs:   nonNil(in.ImageURLs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.Create(r.Context(), p); !h.check(w, err, "create product") {
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// UpdateProduct handles PUT /api/admin/products/:id.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in productInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := in.validate(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}
	existing, err := h.store.Get(r.Context(), ps.ByName("id"))
	if !h.check(w, err, "load product") {
		return
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Description = in.Description
	existing.Category = in.Category
	existing.Price = *in.Price
	existing.Stock = *in.Stock
	existing.ImageURLs = nonNil(in.ImageURLs)
	existing.UpdatedAt = h.now()

	if err := h.store.Replace(r.Context(), existing); !h.check(w, err, "update product") {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, existing)
}

// DeleteProduct handles DELETE /api/admin/products/:id.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.store.Delete(r.Context(), ps.ByName("id")); !h.check(w, err, "delete product") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// check writes the error response for err and reports whether to continue.
func (h *Handler) check(w http.ResponseWriter, err error, what string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrProductNotFound):
		utils.RespondWithError(w, http.StatusNotFound, ErrProductNotFound.Error())
	default:
		globals.Log.Error().Err(err).Msg(what)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
