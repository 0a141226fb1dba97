// Package store owns the product catalog: an in-memory collection served from immutable
// snapshots, mutated one operation at a time and written through to a durable Medium.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CatalogStore defines the operations on the product collection.
type CatalogStore interface {
	// List returns the products matching filter, in the order it selects. Never mutates.
	List(ctx context.Context, filter Filter) []Product
	// Get returns the product with id, or ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// Create validates in, assigns an id and timestamps, and persists the new product.
	Create(ctx context.Context, in ProductInput) (Product, error)
	// Update overwrites the supplied fields of product id and refreshes UpdatedAt.
	Update(ctx context.Context, id string, patch ProductPatch) (Product, error)
	// Delete removes product id.
	Delete(ctx context.Context, id string) error
}

// ResetInfo describes a recovery from unreadable persisted content.
type ResetInfo struct {
	Medium     string
	Quarantine string
	Reason     error
	At         time.Time
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithIDGenerator replaces the UUID generator for product ids.
func WithIDGenerator(newID func() string) Option {
	return func(c *Catalog) {
		c.newID = newID
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithResetHook registers a callback invoked once when startup recovers from unreadable content.
func WithResetHook(hook func(ctx context.Context, info ResetInfo)) Option {
	return func(c *Catalog) {
		c.onReset = hook
	}
}

// WithBacklog bounds how many admitted mutations may wait for the writer.
func WithBacklog(n int) Option {
	return func(c *Catalog) {
		c.backlog = n
	}
}

// collection is an immutable snapshot of the catalog. items keeps insertion order.
type collection struct {
	items []Product
	index map[string]int
}

func newCollection(items []Product) *collection {
	index := make(map[string]int, len(items))
	for i, p := range items {
		index[p.ID] = i
	}
	return &collection{items: items, index: index}
}

func (c *collection) get(id string) (Product, bool) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, false
	}
	return c.items[i], true
}

func (c *collection) with(p Product) *collection {
	items := make([]Product, len(c.items), len(c.items)+1)
	copy(items, c.items)
	return newCollection(append(items, p))
}

func (c *collection) replaced(p Product) *collection {
	items := slices.Clone(c.items)
	items[c.index[p.ID]] = p
	return &collection{items: items, index: c.index}
}

func (c *collection) without(id string) *collection {
	i := c.index[id]
	items := make([]Product, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return newCollection(items)
}

// Catalog implements CatalogStore. Reads load the current snapshot without locking;
// mutations run on the WriteSerializer, persist a new snapshot, then publish it.
type Catalog struct {
	medium    Medium
	writes    *WriteSerializer
	snapshot  atomic.Pointer[collection]
	validate  *validator.Validate
	metrics   *storeMetrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	onReset   func(ctx context.Context, info ResetInfo)
	backlog   int
	recovered atomic.Bool
}

var _ CatalogStore = (*Catalog)(nil)

// Open loads the catalog from medium. An absent collection starts empty and is persisted
// immediately. Unreadable content is set aside, logged, counted and reported through the
// reset hook, and the catalog starts empty. Any other load failure is returned.
func Open(ctx context.Context, medium Medium, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		medium:   medium,
		validate: newValidator(),
		metrics:  newStoreMetrics(),
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "catalog", "medium", medium.Describe())

	items, err := medium.Load(ctx)
	var corruption *CorruptionError
	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "Catalog loaded", "products", len(items))
	case errors.Is(err, ErrMediumEmpty):
		c.logger.InfoContext(ctx, "Catalog medium is empty, initializing")
		if err := c.persist(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to initialize catalog: %w", err)
		}
	case errors.As(err, &corruption):
		c.recoverFromCorruption(ctx, corruption)
		items = nil
		if err := c.persist(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to reset catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	c.snapshot.Store(newCollection(items))
	c.writes = NewWriteSerializer(c.backlog)
	return c, nil
}

func (c *Catalog) recoverFromCorruption(ctx context.Context, corruption *CorruptionError) {
	c.recovered.Store(true)
	c.metrics.reset(ctx)
	c.logger.ErrorContext(ctx, "Catalog storage unreadable, starting empty",
		"quarantine", corruption.Quarantine,
		"error", corruption.Err,
	)
	if c.onReset != nil {
		c.onReset(ctx, ResetInfo{
			Medium:     c.medium.Describe(),
			Quarantine: corruption.Quarantine,
			Reason:     corruption.Err,
			At:         c.now().UTC(),
		})
	}
}

// Recovered reports whether startup discarded unreadable persisted content.
func (c *Catalog) Recovered() bool {
	return c.recovered.Load()
}

// Len returns the number of products in the current snapshot.
func (c *Catalog) Len() int {
	return len(c.snapshot.Load().items)
}

// Close stops accepting mutations and waits for admitted ones to finish.
func (c *Catalog) Close() {
	c.writes.Close()
}

func (c *Catalog) List(_ context.Context, filter Filter) []Product {
	snap := c.snapshot.Load()
	list := make([]Product, 0, len(snap.items))
	for _, p := range snap.items {
		if filter.match(p) {
			list = append(list, p)
		}
	}
	sortProducts(list, filter.Sort)
	return list
}

func (c *Catalog) Get(_ context.Context, id string) (Product, error) {
	p, ok := c.snapshot.Load().get(id)
	if !ok {
		return Product{}, catalogerrors.ErrProductNotFound
	}
	return p, nil
}

func (c *Catalog) Create(ctx context.Context, in ProductInput) (Product, error) {
	in = in.normalized()
	if err := c.validate.Struct(in); err != nil {
		err = toValidationError(err)
		c.metrics.mutation(ctx, "create", err)
		return Product{}, err
	}

	var created Product
	err := c.writes.Submit(ctx, func() error {
		now := c.now().UTC()
		cur := c.snapshot.Load()
		p := Product{
			ID:        c.uniqueID(cur),
			Name:      in.Name,
			Category:  in.Category,
			Price:     *in.Price,
			Image:     in.Image,
			Details:   in.Details,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := c.commit(ctx, cur.with(p)); err != nil {
			return err
		}
		created = p
		return nil
	})
	c.metrics.mutation(ctx, "create", err)
	if err != nil {
		return Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

func (c *Catalog) Update(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	patch = patch.normalized()
	if err := c.validate.Struct(patch); err != nil {
		err = toValidationError(err)
		c.metrics.mutation(ctx, "update", err)
		return Product{}, err
	}

	var updated Product
	err := c.writes.Submit(ctx, func() error {
		cur := c.snapshot.Load()
		prior, ok := cur.get(id)
		if !ok {
			return catalogerrors.ErrProductNotFound
		}
		p := patch.apply(prior)
		p.UpdatedAt = c.now().UTC()
		if p.UpdatedAt.Before(p.CreatedAt) {
			p.UpdatedAt = p.CreatedAt
		}
		if err := c.commit(ctx, cur.replaced(p)); err != nil {
			return err
		}
		updated = p
		return nil
	})
	c.metrics.mutation(ctx, "update", err)
	if err != nil {
		return Product{}, fmt.Errorf("failed to update product %s: %w", id, err)
	}
	return updated, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	err := c.writes.Submit(ctx, func() error {
		cur := c.snapshot.Load()
		if _, ok := cur.get(id); !ok {
			return catalogerrors.ErrProductNotFound
		}
		return c.commit(ctx, cur.without(id))
	})
	c.metrics.mutation(ctx, "delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return nil
}

// commit persists next and makes it the visible snapshot. Runs on the writer only.
// On failure the visible snapshot is left unchanged.
func (c *Catalog) commit(ctx context.Context, next *collection) error {
	if err := c.persist(ctx, next.items); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist catalog", "error", err)
		return fmt.Errorf("%w: %w", catalogerrors.ErrPersist, err)
	}
	c.snapshot.Store(next)
	return nil
}

// persist writes items to the medium. Admitted work is never cancelled,
// so the caller's cancellation is detached here.
func (c *Catalog) persist(ctx context.Context, items []Product) error {
	started := time.Now()
	err := c.medium.Save(context.WithoutCancel(ctx), items)
	c.metrics.persisted(ctx, started, err)
	return err
}

func (c *Catalog) uniqueID(cur *collection) string {
	for {
		id := c.newID()
		if _, taken := cur.index[id]; !taken && id != "" {
			return id
		}
	}
}
