package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/pkg/validate"
)

const maxEventBody = 1 << 20

type dispatcher interface {
	OrderCreated(ctx context.Context, order domain.Order, products []domain.Product)
	OrderStatusChanged(ctx context.Context, order domain.Order, newStatus string)
	OrderUpdated(order domain.Order)
	ProductCreated(product domain.Product)
	ProductUpdated(product domain.Product)
	ProductDeleted(productID, categoryID string)
	PriceDropped(ctx context.Context, product domain.Product, oldPrice, newPrice float64) error
	NewReview(ctx context.Context, review domain.Review, product domain.Product)
	NotifyAdmins(title, message string, data map[string]any)
	Broadcast(title, message string, data map[string]any)
	OnlineCount() int
}

// EventHandler ingests catalog and order mutations from the services that own
// them and hands each one to the dispatcher before answering.
type EventHandler struct {
	dispatch dispatcher
}

func NewEventHandler(d dispatcher) *EventHandler { return &EventHandler{dispatch: d} }

type OrderCreatedRequest struct {
	Order    domain.Order     `json:"order"`
	Products []domain.Product `json:"products" validate:"required,min=1,dive"`
}

type OrderStatusRequest struct {
	Order  domain.Order `json:"order"`
	Status string       `json:"status" validate:"required"`
}

type ProductDeletedRequest struct {
	CategoryID string `json:"categoryId"`
}

type PriceDropRequest struct {
	Product  domain.Product `json:"product"`
	OldPrice float64        `json:"oldPrice" validate:"gt=0"`
	NewPrice float64        `json:"newPrice" validate:"gte=0,ltfield=OldPrice"`
}

type ReviewRequest struct {
	Review  domain.Review  `json:"review"`
	Product domain.Product `json:"product"`
}

type NoticeRequest struct {
	Title   string         `json:"title" validate:"required,max=200"`
	Message string         `json:"message" validate:"required,max=2000"`
	Data    map[string]any `json:"data,omitempty"`
}

func (h *EventHandler) OrderCreated(w http.ResponseWriter, r *http.Request) {
	var req OrderCreatedRequest
	if !decodeBody(w, r, &req) || !validBody(w, &req) {
		return
	}
	h.dispatch.OrderCreated(r.Context(), req.Order, req.Products)
	accepted(w)
}

func (h *EventHandler) OrderStatusChanged(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Order.ID = chi.URLParam(r, "id")
	req.Order.Status = req.Status
	if !validBody(w, &req) {
		return
	}
	h.dispatch.OrderStatusChanged(r.Context(), req.Order, req.Status)
	accepted(w)
}

func (h *EventHandler) OrderUpdated(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	if !decodeBody(w, r, &order) {
		return
	}
	order.ID = chi.URLParam(r, "id")
	if !validBody(w, &order) {
		return
	}
	h.dispatch.OrderUpdated(order)
	accepted(w)
}

func (h *EventHandler) ProductCreated(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if !decodeBody(w, r, &product) || !validBody(w, &product) {
		return
	}
	h.dispatch.ProductCreated(product)
	accepted(w)
}

func (h *EventHandler) ProductUpdated(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if !decodeBody(w, r, &product) {
		return
	}
	product.ID = chi.URLParam(r, "id")
	if !validBody(w, &product) {
		return
	}
	h.dispatch.ProductUpdated(product)
	accepted(w)
}

// ProductDeleted accepts an empty body; the category is only needed to reach
// category watchers.
func (h *EventHandler) ProductDeleted(w http.ResponseWriter, r *http.Request) {
	var req ProductDeletedRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	h.dispatch.ProductDeleted(chi.URLParam(r, "id"), req.CategoryID)
	accepted(w)
}

func (h *EventHandler) PriceDropped(w http.ResponseWriter, r *http.Request) {
	var req PriceDropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Product.ID = chi.URLParam(r, "id")
	if !validBody(w, &req) {
		return
	}
	if err := h.dispatch.PriceDropped(r.Context(), req.Product, req.OldPrice, req.NewPrice); err != nil {
		httpError(w, err)
		return
	}
	accepted(w)
}

func (h *EventHandler) NewReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Review.ProductID == "" {
		req.Review.ProductID = req.Product.ID
	}
	if !validBody(w, &req) {
		return
	}
	h.dispatch.NewReview(r.Context(), req.Review, req.Product)
	accepted(w)
}

func (h *EventHandler) AdminNotice(w http.ResponseWriter, r *http.Request) {
	var req NoticeRequest
	if !decodeBody(w, r, &req) || !validBody(w, &req) {
		return
	}
	h.dispatch.NotifyAdmins(req.Title, req.Message, req.Data)
	accepted(w)
}

func (h *EventHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req NoticeRequest
	if !decodeBody(w, r, &req) || !validBody(w, &req) {
		return
	}
	h.dispatch.Broadcast(req.Title, req.Message, req.Data)
	accepted(w)
}

// OnlineCount pushes the current connection count to every client and
// reports it back to the caller.
func (h *EventHandler) OnlineCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, CountEnvelope{Count: h.dispatch.OnlineCount()})
}

// decodeBody decodes the JSON body into dst, writing the error response
// itself on failure. An empty body is an error.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func validBody(w http.ResponseWriter, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func accepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "accepted"})
}
