package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMediumEmpty is returned by Load when nothing has been persisted yet.
	ErrMediumEmpty = errors.New("catalog medium is empty")
	// ErrMediumCorrupted is returned by Load when the persisted content cannot be decoded.
	ErrMediumCorrupted = errors.New("catalog medium is corrupted")
)

// Medium is the durable location the whole catalog is persisted to.
type Medium interface {
	// Load returns the persisted collection in insertion order.
	// When the content is unreadable, Load sets it aside and returns a *CorruptionError.
	Load(ctx context.Context) ([]Product, error)
	// Save atomically replaces the persisted collection. On failure the previous content is intact.
	Save(ctx context.Context, products []Product) error
	// Describe names the medium for logs and events, without credentials.
	Describe() string
}

// CorruptionError reports unreadable persisted content and where it was preserved.
type CorruptionError struct {
	Quarantine string
	Err        error
}

func (e *CorruptionError) Error() string {
	if e.Quarantine == "" {
		return fmt.Sprintf("%v: %v", ErrMediumCorrupted, e.Err)
	}
	return fmt.Sprintf("%v (kept at %s): %v", ErrMediumCorrupted, e.Quarantine, e.Err)
}

func (e *CorruptionError) Unwrap() []error {
	return []error{ErrMediumCorrupted, e.Err}
}

// encodeCollection serializes the collection as a JSON array of products.
func encodeCollection(products []Product) ([]byte, error) {
	if products == nil {
		products = []Product{}
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return data, nil
}

// decodeCollection parses a persisted collection. Blank content is ErrMediumEmpty;
// anything that is not an array of products with distinct non-empty ids is an error.
func decodeCollection(data []byte) ([]Product, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrMediumEmpty
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if products == nil {
		return nil, errors.New("catalog document is null")
	}
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product at index %d has no id", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return products, nil
}
