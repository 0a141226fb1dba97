// Package rest provides HTTP handlers for catalog operations.
package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/go-chi/chi/v5"
)

// ReadinessProbe reports whether the service can take traffic, with details for the response body.
type ReadinessProbe func() (ready bool, details map[string]any)

type Handler struct {
	service service.ProductService
	ready   ReadinessProbe
	logger  *slog.Logger
}

// NewHandler creates a new product Handler. ready may be nil, in which case the service is always ready.
func NewHandler(service service.ProductService, ready ReadinessProbe, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		ready:   ready,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the product routes. adminOnly guards every mutating route.
func (h *Handler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.With(adminOnly).Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Put("/", h.Update)
				r.Patch("/", h.Update)
				r.Delete("/", h.DeleteByID)
			})
		})
	})

	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadinessCheck)
}

// FindByID retrieves a product by its ID.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathParam(w, r, h.logger, "id")
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)
	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, id, "retrieve")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// FindAll lists products, narrowed and ordered by query parameters.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	minPrice, ok := web.ParseOptionalGte(r, w, h.logger, "minPrice", 0)
	if !ok {
		return
	}
	maxPrice, ok := web.ParseOptionalGte(r, w, h.logger, "maxPrice", 0)
	if !ok {
		return
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		web.RespondError(w, h.logger, http.StatusBadRequest, "minPrice must not exceed maxPrice")
		return
	}
	sortKey, err := store.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		web.RespondError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid sort: %s", r.URL.Query().Get("sort")))
		return
	}
	filter := store.Filter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     sortKey,
	}
	list := h.service.FindAll(r.Context(), filter)
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto service.ProductCreateDto
	if err := web.DecodeJSON(r, &dto); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	created, err := h.service.Create(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, err, "", "create")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update overwrites the supplied fields of a product. Serves both PUT and PATCH.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathParam(w, r, h.logger, "id")
	if !ok {
		return
	}
	var dto service.ProductPatchDto
	if err := web.DecodeJSON(r, &dto); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	updated, err := h.service.Update(r.Context(), id, dto)
	if err != nil {
		h.respondServiceError(w, r, err, id, "update")
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteByID deletes a product by its ID.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathParam(w, r, h.logger, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, id, "delete")
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

// HealthCheck is a simple liveness endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ReadinessCheck reports 200 once the catalog is loaded and 503 otherwise.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready == nil {
		web.RespondJSON(w, h.logger, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	ready, details := h.ready()
	body := map[string]any{"status": "ready"}
	for k, v := range details {
		body[k] = v
	}
	status := http.StatusOK
	if !ready {
		body["status"] = "not ready"
		status = http.StatusServiceUnavailable
	}
	web.RespondJSON(w, h.logger, status, body)
}

// respondServiceError maps service errors to HTTP responses. Unclassified errors are logged and
// answered with an opaque message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, id, op string) {
	var validationErr *catalogerrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		errorResponse := make(map[string]string, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			errorResponse[f.Field] = "failed on rule: " + f.Rule
		}
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
		web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
	case errors.Is(err, catalogerrors.ErrProductNotFound):
		h.logger.WarnContext(r.Context(), "Product not found", "ID", id, "op", op)
		web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
	case errors.Is(err, store.ErrSerializerClosed):
		h.logger.WarnContext(r.Context(), "Catalog is shutting down", "op", op)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Service is shutting down")
	default:
		h.logger.ErrorContext(r.Context(), "Error processing product request", "ID", id, "op", op, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, fmt.Sprintf("Failed to %s product", op))
	}
}
