package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	catalogevents "github.com/abgdnv/gocatalog/pkg/messaging/events"
	pnats "github.com/abgdnv/gocatalog/pkg/nats"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
)

const (
	skipIntegrationTests = "CATALOG_SKIP_INTEGRATION_TESTS"
	natsImg              = "nats:2.11.6-alpine"
	testStream           = "CATALOG"
)

// NotifierSuite publishes through JetStream running in a container.
type NotifierSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	nc            *natsgo.Conn
	js            jetstream.JetStream
}

func (s *NotifierSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")
	s.js, err = pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")
	require.NoError(s.T(), pnats.EnsureStream(s.ctx, s.js, testStream, messaging.CatalogSubjects))
	// ensuring an existing stream is an update, not an error
	require.NoError(s.T(), pnats.EnsureStream(s.ctx, s.js, testStream, messaging.CatalogSubjects))
}

func (s *NotifierSuite) TearDownSuite() {
	if s.nc != nil {
		s.nc.Close()
	}
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func TestNotifierIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) newNotifier() *Notifier {
	publisher := messaging.NewBreakerPublisher("nats", pnats.NewNatsPublisher(s.js, config.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
	}), config.CircuitBreakerConfig{
		ConsecutiveFailures: 5,
		ErrorRatePercent:    60,
		OpenTimeout:         5 * time.Second,
	}, nil)
	return NewNotifier(publisher, 5*time.Second, s.logger)
}

func (s *NotifierSuite) TestProductEventReachesStream() {
	// given
	notifier := s.newNotifier()
	product := store.Product{ID: "p-42", Name: "Ashwagandha", Category: "Herbs", Price: 12.5}

	// when
	notifier.ProductChanged(s.ctx, catalogevents.ProductCreated, product)

	// then
	stream, err := s.js.Stream(s.ctx, testStream)
	s.Require().NoError(err)
	msg, err := stream.GetLastMsgForSubject(s.ctx, messaging.ProductCreatedSubject)
	s.Require().NoError(err)
	var event catalogevents.ProductEvent
	s.Require().NoError(json.Unmarshal(msg.Data, &event))
	s.Equal("p-42", event.ProductID)
	s.Equal(12.5, event.Price)
	s.Equal(event.ID, msg.Header.Get(natsgo.MsgIdHdr))
}

func (s *NotifierSuite) TestDuplicateEventIsDeduplicated() {
	// given
	publisher := pnats.NewNatsPublisher(s.js, config.RetryConfig{})
	event := catalogevents.NewStorageResetEvent("file:/tmp/p.json", "/tmp/p.json.corrupt-1", "bad json", time.Now().UTC())
	stream, err := s.js.Stream(s.ctx, testStream)
	s.Require().NoError(err)
	before, err := stream.Info(s.ctx)
	s.Require().NoError(err)

	// when
	s.Require().NoError(publisher.Publish(s.ctx, event))
	s.Require().NoError(publisher.Publish(s.ctx, event))

	// then
	after, err := stream.Info(s.ctx)
	s.Require().NoError(err)
	s.Equal(before.State.Msgs+1, after.State.Msgs)
}
