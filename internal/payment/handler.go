// AngelaMos | 2026
// handler.go

package payment

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/payment", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/confirm", h.Confirm)
		r.Get("/orders", h.Orders)
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	uid := middleware.GetUserUID(r.Context())

	result, err := h.service.Confirm(r.Context(), uid, req.OrderID, req.PlanID)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.OK(w, ConfirmResponse{
		OrderID:             result.OrderID,
		PlanID:              result.PlanID,
		Days:                result.Days,
		SubscriptionExpires: result.ExpiresAt,
	})
}

func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Orders(r.Context(), middleware.GetUserUID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToOrderResponseList(orders))
}
