package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	catalogevents "github.com/abgdnv/gocatalog/pkg/messaging/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock implementation of the messaging.Publisher interface.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Notifier_ProductChanged(t *testing.T) {
	testCases := []struct {
		name          string
		action        catalogevents.ProductAction
		expectSubject string
		publishErr    error
	}{
		{name: "Created", action: catalogevents.ProductCreated, expectSubject: messaging.ProductCreatedSubject},
		{name: "Updated", action: catalogevents.ProductUpdated, expectSubject: messaging.ProductUpdatedSubject},
		{name: "Deleted with broker down", action: catalogevents.ProductDeleted, expectSubject: messaging.ProductDeletedSubject, publishErr: errors.New("broker down")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			publisher := new(MockPublisher)
			var published messaging.Event
			publisher.On("Publish", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { published = args.Get(1).(messaging.Event) }).
				Return(tc.publishErr)
			notifier := NewNotifier(publisher, time.Second, discardLogger())
			product := store.Product{ID: "p-1", Name: "Tulsi", Category: "Herbs", Price: 4.5}

			// when
			notifier.ProductChanged(context.Background(), tc.action, product)

			// then
			publisher.AssertNumberOfCalls(t, "Publish", 1)
			require.NotNil(t, published)
			assert.Equal(t, tc.expectSubject, published.Subject())
			payload, err := published.Payload()
			require.NoError(t, err)
			var decoded catalogevents.ProductEvent
			require.NoError(t, json.Unmarshal(payload, &decoded))
			assert.Equal(t, "p-1", decoded.ProductID)
			assert.Equal(t, tc.action, decoded.Action)
			assert.NotEmpty(t, decoded.ID)
		})
	}
}

func Test_Notifier_PublishSurvivesCancelledCaller(t *testing.T) {
	// given
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), mock.Anything).Return(nil)
	notifier := NewNotifier(publisher, time.Second, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// when
	notifier.ProductChanged(ctx, catalogevents.ProductCreated, store.Product{ID: "p-1"})

	// then
	publisher.AssertExpectations(t)
}

func Test_Notifier_StorageReset(t *testing.T) {
	// given
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e catalogevents.StorageResetEvent) bool {
		return e.Medium == "file:/data/products.json" &&
			e.Quarantine == "/data/products.json.corrupt-1" &&
			e.Reason == "unexpected end of JSON input"
	})).Return(nil)
	notifier := NewNotifier(publisher, 0, discardLogger())

	// when
	notifier.StorageReset(context.Background(), store.ResetInfo{
		Medium:     "file:/data/products.json",
		Quarantine: "/data/products.json.corrupt-1",
		Reason:     errors.New("unexpected end of JSON input"),
		At:         time.Now(),
	})

	// then
	publisher.AssertExpectations(t)
}
