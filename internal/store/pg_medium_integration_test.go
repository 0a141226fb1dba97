package store

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "CATALOG_SKIP_INTEGRATION_TESTS"

// PgMediumSuite runs the postgres medium against a real database.
type PgMediumSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	medium      *PgMedium
	logger      *slog.Logger
	ctx         context.Context
}

func (s *PgMediumSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")
	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		if err = s.dbPool.Ping(s.ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	require.NoError(s.T(), Migrate(connStr), "Failed to apply migrations")
	// applying twice is a no-op
	require.NoError(s.T(), Migrate(connStr))

	s.medium = NewPgMedium(s.dbPool, "catalog")
}

func (s *PgMediumSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

func (s *PgMediumSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE catalog_snapshot, catalog_snapshot_quarantine RESTART IDENTITY")
	require.NoError(s.T(), err, "Failed to truncate catalog tables")
}

func TestPgMediumIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgMediumSuite))
}

func (s *PgMediumSuite) TestLoad_Empty() {
	_, err := s.medium.Load(s.ctx)
	s.Require().ErrorIs(err, ErrMediumEmpty)
}

func (s *PgMediumSuite) TestSaveAndLoad() {
	// given
	s.Require().NoError(s.medium.Save(s.ctx, sampleProducts()))
	updated := sampleProducts()[:1]

	// when
	s.Require().NoError(s.medium.Save(s.ctx, updated))
	loaded, err := s.medium.Load(s.ctx)

	// then
	s.Require().NoError(err)
	s.Equal(updated, loaded)
	var rows int
	s.Require().NoError(s.dbPool.QueryRow(s.ctx, "SELECT count(*) FROM catalog_snapshot").Scan(&rows))
	s.Equal(1, rows)
}

func (s *PgMediumSuite) TestLoad_CorruptDocumentIsQuarantined() {
	// given
	_, err := s.dbPool.Exec(s.ctx,
		`INSERT INTO catalog_snapshot (id, document) VALUES (1, '[{"name":"no id"}]')`)
	s.Require().NoError(err)

	// when
	_, err = s.medium.Load(s.ctx)

	// then
	var corruption *CorruptionError
	s.Require().ErrorAs(err, &corruption)
	s.ErrorIs(err, ErrMediumCorrupted)
	s.Equal("catalog_snapshot_quarantine/1", corruption.Quarantine)
	var kept string
	s.Require().NoError(s.dbPool.QueryRow(s.ctx,
		"SELECT document::text FROM catalog_snapshot_quarantine WHERE id = 1").Scan(&kept))
	s.JSONEq(`[{"name":"no id"}]`, kept)
}

func (s *PgMediumSuite) TestCatalogRecoversAndPersists() {
	// given
	_, err := s.dbPool.Exec(s.ctx, `INSERT INTO catalog_snapshot (id, document) VALUES (1, '{"products":1}')`)
	s.Require().NoError(err)
	var resets int

	// when
	c, err := Open(s.ctx, s.medium, WithLogger(s.logger), WithResetHook(func(context.Context, ResetInfo) { resets++ }))
	s.Require().NoError(err)
	defer c.Close()
	created, err := c.Create(s.ctx, validInput())

	// then
	s.Require().NoError(err)
	s.True(c.Recovered())
	s.Equal(1, resets)
	loaded, err := s.medium.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded, 1)
	s.Equal(created.ID, loaded[0].ID)
	s.True(created.CreatedAt.Equal(loaded[0].CreatedAt))
}
