// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	//nolint:errcheck // only fails for an empty tag or nil func
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Handler{
		service:   service,
		validator: v,
	}
}

// RegisterRoutes mounts /auth. loginLimiter may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	loginLimiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)

		r.Group(func(r chi.Router) {
			if loginLimiter != nil {
				r.Use(loginLimiter)
			}
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/logout", h.Logout)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil || identity.Token == "" {
		core.JSONError(w, core.MissingTokenError())
		return
	}

	if err := h.service.Logout(r.Context(), identity.Token, identity.ExpiresAt); err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, MessageResponse{Message: "User logged out successfully"})
}

// bind decodes and validates the JSON body into dst, writing a 400 and
// returning false on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
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

// writeAuthError keeps unknown-email and wrong-password failures
// indistinguishable to the caller.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.InvalidCredentialsError("invalid email or password"))
	case errors.Is(err, core.ErrMissingToken):
		core.JSONError(w, core.MissingTokenError())
	case errors.Is(err, core.ErrInvalidInput):
		core.JSONError(w, core.ValidationError("invalid registration details"))
	default:
		core.InternalServerError(w, err)
	}
}
