package messaging

import (
	"context"
)

// Subjects published by the catalog service. All of them live under CatalogSubjects.
const (
	CatalogSubjects       = "catalog.>"
	ProductCreatedSubject = "catalog.product.created"
	ProductUpdatedSubject = "catalog.product.updated"
	ProductDeletedSubject = "catalog.product.deleted"
	StorageResetSubject   = "catalog.storage.reset"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// IdentifiedEvent is implemented by events carrying a unique id the broker can deduplicate on.
type IdentifiedEvent interface {
	Event
	EventID() string
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event. Used when messaging is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
