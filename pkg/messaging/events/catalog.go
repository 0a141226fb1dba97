// Package events defines the catalog change events published to the message broker.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/google/uuid"
)

// ProductAction is the kind of change applied to a product.
type ProductAction string

const (
	ProductCreated ProductAction = "created"
	ProductUpdated ProductAction = "updated"
	ProductDeleted ProductAction = "deleted"
)

// ProductEvent announces a committed change to a single product.
type ProductEvent struct {
	ID         string            `json:"event_id"`
	Action     ProductAction     `json:"action"`
	ProductID  string            `json:"product_id"`
	Name       string            `json:"name,omitempty"`
	Category   string            `json:"category,omitempty"`
	Price      float64           `json:"price"`
	OccurredAt time.Time         `json:"occurred_at"`
	Carrier    map[string]string `json:"carrier,omitempty"`
}

// NewProductEvent creates a ProductEvent with a fresh event id.
func NewProductEvent(action ProductAction, productID, name, category string, price float64, at time.Time) ProductEvent {
	return ProductEvent{
		ID:         uuid.NewString(),
		Action:     action,
		ProductID:  productID,
		Name:       name,
		Category:   category,
		Price:      price,
		OccurredAt: at,
	}
}

func (e ProductEvent) Subject() string {
	switch e.Action {
	case ProductCreated:
		return messaging.ProductCreatedSubject
	case ProductUpdated:
		return messaging.ProductUpdatedSubject
	case ProductDeleted:
		return messaging.ProductDeletedSubject
	default:
		return fmt.Sprintf("catalog.product.%s", e.Action)
	}
}

func (e ProductEvent) EventID() string {
	return e.ID
}

func (e ProductEvent) Payload() ([]byte, error) {
	return encode(e)
}

// StorageResetEvent announces that unreadable persisted content was set aside
// and the catalog restarted empty.
type StorageResetEvent struct {
	ID         string    `json:"event_id"`
	Medium     string    `json:"medium"`
	Quarantine string    `json:"quarantine,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewStorageResetEvent creates a StorageResetEvent with a fresh event id.
func NewStorageResetEvent(medium, quarantine, reason string, at time.Time) StorageResetEvent {
	return StorageResetEvent{
		ID:         uuid.NewString(),
		Medium:     medium,
		Quarantine: quarantine,
		Reason:     reason,
		OccurredAt: at,
	}
}

func (e StorageResetEvent) Subject() string {
	return messaging.StorageResetSubject
}

func (e StorageResetEvent) EventID() string {
	return e.ID
}

func (e StorageResetEvent) Payload() ([]byte, error) {
	return encode(e)
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", messaging.ErrEncoding, err)
	}
	return data, nil
}
