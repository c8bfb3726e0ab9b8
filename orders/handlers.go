package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"papeleria/globals"
	"papeleria/models"
	"papeleria/receipts"
	"papeleria/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc  *Service
	idem IdempotencyStore
}

func NewHandler(svc *Service, idem IdempotencyStore) *Handler {
	return &Handler{svc: svc, idem: idem}
}

// result is a response body with its status, kept together so it can be
// replayed for a repeated Idempotency-Key.
type result struct {
	status int
	body   any
}

func errorResult(status int, msg string) result {
	return result{status: status, body: map[string]string{"error": msg}}
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req models.CreateOrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	id, _ := utils.IdentityFromRequest(r)

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || h.idem == nil {
		res := h.checkout(r, id, req, "")
		utils.RespondWithJSON(w, res.status, res.body)
		return
	}

	scoped := id.UserID + ":" + key
	hash, err := requestHash(id.UserID, req)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	existing, err := h.idem.Reserve(r.Context(), scoped, hash)
	if err != nil {
		globals.Log.Error().Err(err).Msg("idempotency reserve")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if existing != nil {
		switch {
		case existing.RequestHash != hash:
			utils.RespondWithError(w, http.StatusConflict, "idempotency key reused with a different request")
		case !existing.Done:
			utils.RespondWithError(w, http.StatusConflict, "request with this idempotency key is in progress")
		default:
			w.Header().Set("Idempotent-Replayed", "true")
			utils.RespondWithJSON(w, existing.Status, existing.Body)
		}
		return
	}
	defer func() {
		if p := recover(); p != nil {
			if err := h.idem.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
				globals.Log.Error().Err(err).Str("key", key).Msg("idempotency release after panic")
			}
			panic(p)
		}
	}()

	res := h.checkout(r, id, req, key)
	if res.status == http.StatusCreated {
		raw, err := json.Marshal(res.body)
		if err == nil {
			err = h.idem.Complete(r.Context(), scoped, IdempotencyRecord{RequestHash: hash, Status: res.status, Body: raw})
		}
		if err != nil {
			globals.Log.Error().Err(err).Str("key", key).Msg("idempotency complete")
		}
	} else if err := h.idem.Release(r.Context(), scoped); err != nil {
		globals.Log.Error().Err(err).Str("key", key).Msg("idempotency release")
	}
	utils.RespondWithJSON(w, res.status, res.body)
}

func (h *Handler) checkout(r *http.Request, id models.Identity, req models.CreateOrderRequest, key string) result {
	if err := Validate(req); err != nil {
		return errorResult(http.StatusBadRequest, err.Error())
	}
	if req.UserID != id.UserID && !id.IsAdmin {
		return errorResult(http.StatusForbidden, "cannot place an order for another user")
	}

	resp, err := h.svc.Create(r.Context(), req, key)
	switch {
	case err == nil:
		return result{status: http.StatusCreated, body: resp}
	case errors.Is(err, ErrMissingData), errors.Is(err, ErrInvalidData):
		return errorResult(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return errorResult(http.StatusNotFound, ErrUserNotFound.Error())
	case errors.Is(err, ErrEmailInUse):
		return errorResult(http.StatusConflict, ErrEmailInUse.Error())
	default:
		globals.Log.Error().Err(err).Str("userId", req.UserID).Msg("create order")
		return errorResult(http.StatusInternalServerError, "internal server error")
	}
}

// ListMine handles GET /api/orders.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := utils.ParseQueryOptions(r)
	list, err := h.svc.List(r.Context(), Filter{
		UserID: utils.GetUserIDFromRequest(r),
		Status: q.Status,
		Skip:   q.Skip(),
		Limit:  int64(q.Limit),
	})
	if err != nil {
		h.internal(w, err, "list my orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// ListAll handles GET /api/admin/orders.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := utils.ParseQueryOptions(r)
	list, err := h.svc.List(r.Context(), Filter{
		UserID: r.URL.Query().Get("userId"),
		Status: q.Status,
		Skip:   q.Skip(),
		Limit:  int64(q.Limit),
	})
	if err != nil {
		h.internal(w, err, "list orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// loadVisible fetches an order the caller owns, or any order for an admin.
// Foreign orders are reported as missing.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request, orderID string) (models.Order, bool) {
	o, err := h.svc.Get(r.Context(), orderID)
	if errors.Is(err, ErrOrderNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, ErrOrderNotFound.Error())
		return o, false
	}
	if err != nil {
		h.internal(w, err, "get order")
		return o, false
	}
	id, _ := utils.IdentityFromRequest(r)
	if o.UserID != id.UserID && !id.IsAdmin {
		utils.RespondWithError(w, http.StatusNotFound, ErrOrderNotFound.Error())
		return o, false
	}
	return o, true
}

// GetOrder handles GET /api/orders/:id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, ok := h.loadVisible(w, r, ps.ByName("id"))
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// Receipt handles GET /api/orders/:id/receipt.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, ok := h.loadVisible(w, r, ps.ByName("id"))
	if !ok {
		return
	}
	pdf, err := receipts.Render(o)
	if err != nil {
		h.internal(w, err, "render receipt")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=pedido-"+o.OrderID+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// UpdateOrder handles PUT /api/admin/orders/:id.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var upd models.OrderUpdate
	if err := utils.DecodeJSON(r, &upd); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	o, err := h.svc.Update(r.Context(), ps.ByName("id"), upd)
	switch {
	case err == nil:
		utils.RespondWithJSON(w, http.StatusOK, o)
	case errors.Is(err, ErrInvalidData):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOrderNotFound):
		utils.RespondWithError(w, http.StatusNotFound, ErrOrderNotFound.Error())
	default:
		h.internal(w, err, "update order")
	}
}

// DeleteOrder handles DELETE /api/admin/orders/:id.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.svc.Delete(r.Context(), ps.ByName("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrOrderNotFound):
		utils.RespondWithError(w, http.StatusNotFound, ErrOrderNotFound.Error())
	default:
		h.internal(w, err, "delete order")
	}
}

func (h *Handler) internal(w http.ResponseWriter, err error, what string) {
	globals.Log.Error().Err(err).Msg(what)
	utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
}
