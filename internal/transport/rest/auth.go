package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/abgdnv/gocatalog/internal/auth"
	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/go-chi/chi/v5"
)

const (
	HeaderAdminSecret   = "X-Admin-Secret"
	HeaderAdminPassword = "X-Admin-Password"
)

type contextKey string

const identityContextKey = contextKey("adminIdentity")

// AdminAuth authorizes admin requests and exchanges admin credentials for tokens.
type AdminAuth interface {
	auth.Guard
	Login(ctx context.Context, email, password string) (auth.Token, error)
}

// AuthHandler serves the login and identity endpoints and provides the admin middleware.
type AuthHandler struct {
	guard  AdminAuth
	logger *slog.Logger
}

func NewAuthHandler(guard AdminAuth, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		guard:  guard,
		logger: logger.With("component", "rest_auth"),
	}
}

// RegisterRoutes registers the auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(h.AdminOnly).Get("/me", h.Me)
	})
}

// AdminOnly lets a request through only when the guard authorizes its credentials.
// The resulting identity is available to later handlers via IdentityFrom.
func (h *AuthHandler) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.guard.Authorize(r.Context(), credentialsFrom(r))
		if err != nil {
			h.respondDenied(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges the admin email and password for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding login request", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	token, err := h.guard.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrTokensDisabled) {
			web.RespondError(w, h.logger, http.StatusNotImplemented, "Token login is not enabled")
			return
		}
		h.respondDenied(w, r, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, token)
}

// Me returns the identity the request was authorized as.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		web.RespondError(w, h.logger, http.StatusUnauthorized, "Not authenticated")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, identity)
}

func (h *AuthHandler) respondDenied(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		w.Header().Set("WWW-Authenticate", `Bearer realm="catalog"`)
		web.RespondError(w, h.logger, http.StatusUnauthorized, "Admin credentials required")
	case errors.Is(err, auth.ErrCredentialExpired):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="token expired"`)
		web.RespondError(w, h.logger, http.StatusUnauthorized, "Credential expired")
	case errors.Is(err, auth.ErrNotAdmin):
		web.RespondError(w, h.logger, http.StatusForbidden, "Admin role required")
	case errors.Is(err, auth.ErrDenied):
		web.RespondError(w, h.logger, http.StatusUnauthorized, "Invalid admin credentials")
	default:
		h.logger.ErrorContext(r.Context(), "Authorization failed", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Authorization failed")
	}
}

// IdentityFrom returns the admin identity stored by AdminOnly.
func IdentityFrom(ctx context.Context) (auth.AdminIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey).(auth.AdminIdentity)
	return identity, ok
}

func credentialsFrom(r *http.Request) auth.Credentials {
	creds := auth.Credentials{
		Secret: r.Header.Get(HeaderAdminSecret),
	}
	if creds.Secret == "" {
		creds.Secret = r.Header.Get(HeaderAdminPassword)
	}
	if scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " "); found && strings.EqualFold(scheme, "Bearer") {
		creds.Bearer = strings.TrimSpace(token)
	}
	return creds
}
