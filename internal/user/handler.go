// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/middleware"
	"github.com/carterperez-dev/leadboard/internal/policy"
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
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
	})
}

// RegisterAdminRoutes mounts the user management routes on an already
// authenticated admin router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequirePolicy(policy.ActionListUsers)).
			Get("/", h.ListUsers)
		r.With(middleware.RequirePolicy(policy.ActionChangeRole)).
			Put("/role", h.ChangeRole)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	email := middleware.GetUserEmail(r.Context())

	user, err := h.service.GetMe(r.Context(), email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		if errors.Is(err, core.ErrUnauthorized) {
			core.Unauthorized(w, "")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))          //nolint:errcheck // defaults on parse failure
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size")) //nolint:errcheck // defaults on parse failure

	params := ListUsersParams{
		Page:     page,
		PageSize: pageSize,
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(
		r.Context(),
		middleware.GetUserRole(r.Context()),
		params,
	)
	if err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "insufficient permissions")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToUserSummaryList(users), params.Page, params.PageSize, total)
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.ChangeRole(
		r.Context(),
		middleware.GetUserRole(r.Context()),
		req.Email,
		req.Role,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "only a master-admin can change roles")
		case errors.Is(err, ErrInvalidRole):
			core.JSONError(w, core.NewAppError(
				ErrInvalidRole,
				"role must be one of: user, admin",
				http.StatusBadRequest,
				"INVALID_ROLE",
			))
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ToUserResponse(user))
}
