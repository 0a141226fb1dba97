// Package service provides the product catalog business operations used by the transports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/gocatalog/internal/store"
	catalogevents "github.com/abgdnv/gocatalog/pkg/messaging/events"
)

// ProductService defines the methods for managing products.
type ProductService interface {
	// FindAll returns the products matching filter. Returns an empty slice if none match.
	FindAll(ctx context.Context, filter store.Filter) []ProductDto

	// FindByID retrieves a single product by its identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id string) (*ProductDto, error)

	// Create adds a new product. Returns a ValidationError for an invalid payload.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update overwrites the supplied fields of an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id string, patch ProductPatchDto) (*ProductDto, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id string) error
}

// ChangeNotifier announces committed product changes.
type ChangeNotifier interface {
	ProductChanged(ctx context.Context, action catalogevents.ProductAction, p store.Product)
}

// Service implements ProductService on top of a CatalogStore.
type Service struct {
	store    store.CatalogStore
	notifier ChangeNotifier
}

// NewService creates a new ProductService. notifier may be nil.
func NewService(catalog store.CatalogStore, notifier ChangeNotifier) *Service {
	return &Service{
		store:    catalog,
		notifier: notifier,
	}
}

// ProductDto represents a product as returned to clients.
type ProductDto struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Image     string    `json:"image"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductCreateDto carries the fields of a product to create.
type ProductCreateDto struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	Image    string   `json:"image"`
	Details  string   `json:"details"`
}

// ProductPatchDto carries the fields to change. Omitted fields are left untouched.
type ProductPatchDto struct {
	Name     *string  `json:"name"`
	Category *string  `json:"category"`
	Price    *float64 `json:"price"`
	Image    *string  `json:"image"`
	Details  *string  `json:"details"`
}

func (s *Service) FindAll(ctx context.Context, filter store.Filter) []ProductDto {
	products := s.store.List(ctx, filter)
	dtos := make([]ProductDto, len(products))
	for i, p := range products {
		dtos[i] = *toDto(p)
	}
	return dtos
}

func (s *Service) FindByID(ctx context.Context, id string) (*ProductDto, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}
	return toDto(p), nil
}

func (s *Service) Create(ctx context.Context, dto ProductCreateDto) (*ProductDto, error) {
	p, err := s.store.Create(ctx, store.ProductInput{
		Name:     dto.Name,
		Category: dto.Category,
		Price:    dto.Price,
		Image:    dto.Image,
		Details:  dto.Details,
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Product created", "product_id", p.ID)
	s.notify(ctx, catalogevents.ProductCreated, p)
	return toDto(p), nil
}

func (s *Service) Update(ctx context.Context, id string, dto ProductPatchDto) (*ProductDto, error) {
	p, err := s.store.Update(ctx, id, store.ProductPatch{
		Name:     dto.Name,
		Category: dto.Category,
		Price:    dto.Price,
		Image:    dto.Image,
		Details:  dto.Details,
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Product updated", "product_id", p.ID)
	s.notify(ctx, catalogevents.ProductUpdated, p)
	return toDto(p), nil
}

func (s *Service) DeleteByID(ctx context.Context, id string) error {
	prior, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Product deleted", "product_id", id)
	s.notify(ctx, catalogevents.ProductDeleted, prior)
	return nil
}

func (s *Service) notify(ctx context.Context, action catalogevents.ProductAction, p store.Product) {
	if s.notifier != nil {
		s.notifier.ProductChanged(ctx, action, p)
	}
}

func toDto(p store.Product) *ProductDto {
	return &ProductDto{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
		Image:     p.Image,
		Details:   p.Details,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
