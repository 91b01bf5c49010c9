// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Handler struct {
	service   *Service
	sessions  SessionPurger
	stats     Stats
	validator *validator.Validate
}

type HandlerConfig struct {
	Service  *Service
	Sessions SessionPurger
	Stats    Stats
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		service:   cfg.Service,
		sessions:  cfg.Sessions,
		stats:     cfg.Stats,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/users", h.ListUsers)
		r.Delete("/users/{uid}", h.DeleteUser)
		r.Post("/users/subscription", h.SetSubscription)
		r.Post("/users/ban", h.BanUser)
		r.Post("/users/unban", h.UnbanUser)
		r.Post("/users/uid", h.ChangeUID)

		r.Get("/ip-bans", h.ListAddressBans)
		r.Post("/ip-bans", h.BanAddress)
		r.Delete("/ip-bans", h.UnbanAddress)

		r.Get("/keys", h.ListKeys)
		r.Post("/keys/generate", h.GenerateKeys)

		r.Post("/sessions/purge", h.PurgeSessions)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))          //nolint:errcheck // zero falls back to default
	pageSize, _ := strconv.Atoi(q.Get("page_size")) //nolint:errcheck // zero falls back to default

	params := user.ListUsersParams{
		Page:     page,
		PageSize: pageSize,
		Query:    q.Get("q"),
	}
	params.Normalize()

	users, total, err := h.service.ListIdentities(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		user.ToAdminUserResponseList(users, h.service.Now()),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil || uid <= 0 {
		core.BadRequest(w, "invalid uid")
		return
	}

	if err := h.service.Delete(r.Context(), uid); err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.NoContent(w)
}

func (h *Handler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.GrantOrRevoke(r.Context(), req.UID, *req.Days)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.OK(w, SubscriptionResponse{
		UID:                 req.UID,
		SubscriptionStatus:  state.Status,
		SubscriptionExpires: state.Expires,
	})
}

func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Ban(r.Context(), req.UID, req.Reason); err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.NoContent(w)
}

func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Unban(r.Context(), req.UID); err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangeUID(w http.ResponseWriter, r *http.Request) {
	var req ChangeUIDRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ChangeIdentityID(r.Context(), req.OldUID, req.NewUID); err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.OK(w, req)
}

func (h *Handler) ListAddressBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.service.ListAddressBans(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, bans)
}

func (h *Handler) BanAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressBanRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.BanAddress(r.Context(), req.IP, req.Reason); err != nil {
		core.HandleServiceError(w, err, "ip ban")
		return
	}

	core.Created(w, req)
}

// UnbanAddress takes the address from ?ip= or, failing that, the body.
func (h *Handler) UnbanAddress(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		var req AddressBanRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			core.BadRequest(w, "invalid request body")
			return
		}
		ip = strings.TrimSpace(req.IP)
	}
	if ip == "" {
		core.BadRequest(w, "ip is required")
		return
	}

	removed, err := h.service.UnbanAddress(r.Context(), ip)
	if err != nil {
		core.HandleServiceError(w, err, "ip ban")
		return
	}
	if !removed {
		core.NotFound(w, "ip ban")
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // zero falls back to default

	keys, err := h.service.ListKeys(r.Context(), limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, keys)
}

func (h *Handler) GenerateKeys(w http.ResponseWriter, r *http.Request) {
	var req GenerateKeysRequest
	if !h.decode(w, r, &req) {
		return
	}

	codes, err := h.service.GenerateKeys(r.Context(), *req.DurationDays, req.Count)
	if err != nil {
		core.HandleServiceError(w, err, "license key")
		return
	}

	core.Created(w, GenerateKeysResponse{
		Codes:        codes,
		DurationDays: *req.DurationDays,
	})
}

func (h *Handler) PurgeSessions(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		core.NotFound(w, "session store")
		return
	}

	n, err := h.sessions.PurgeExpired(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, PurgeSessionsResponse{Purged: n})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}
