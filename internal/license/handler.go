// AngelaMos | 2026
// handler.go

package license

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
	r.Route("/keys", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/redeem", h.Redeem)
	})
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	uid := middleware.GetUserUID(r.Context())

	result, err := h.service.Redeem(r.Context(), uid, req.Code)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.OK(w, RedeemResponse{
		SubscriptionExpires: result.ExpiresAt,
		Lifetime:            result.Lifetime,
	})
}
