//go:build integration

package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"guard-relay/pkg/database"
	"guard-relay/pkg/migration"
	sharedDatabase "guard-relay/shared/database"
	"guard-relay/shared/database/migrations"
	"guard-relay/shared/interfaces"
	"guard-relay/shared/models"

	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// StorageIntegrationSuite проверяет Redis хранилище и журнал в PostgreSQL на реальных контейнерах.
type StorageIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	db          *database.Database
	redisClient *redis.Client
	store       interfaces.NotificationStore
	journal     *sharedDatabase.PgDeliveryJournal
	logger      *zap.Logger
}

func (s *StorageIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("relay_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.db, err = database.New(s.ctx, database.Config{URL: pgConnStr, MaxConns: 4, ConnectTimeout: 30 * time.Second}, s.logger)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	migrator := migration.NewMigrator(migration.Config{MigrationsPath: ".", MigrationsFS: migrations.FS}, s.db.Pool, s.logger)
	require.NoError(s.T(), migrator.Up(s.ctx), "Failed to run migrations")
	version, dirty, err := migrator.Version(s.ctx)
	require.NoError(s.T(), err)
	require.False(s.T(), dirty)
	require.Equal(s.T(), uint(1), version)

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	redisHost, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	redisPort, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)
	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port())})
	require.NoError(s.T(), s.redisClient.Ping(s.ctx).Err())

	s.store = sharedDatabase.NewRedisNotificationStore(s.redisClient, time.Hour, s.logger)
	s.journal = sharedDatabase.NewPgDeliveryJournal(s.db.Pool, s.logger)
}

func (s *StorageIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
}

func (s *StorageIntegrationSuite) SetupTest() {
	require.NoError(s.T(), s.redisClient.FlushDB(s.ctx).Err())
	_, err := s.db.Pool.Exec(s.ctx, "TRUNCATE TABLE notification_deliveries RESTART IDENTITY")
	require.NoError(s.T(), err)
}

func TestStorageIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(StorageIntegrationSuite))
}

func (s *StorageIntegrationSuite) TestRedisStore_RoundTrip() {
	t := s.T()
	n := models.ShownNotification{
		ID:      uuid.NewString(),
		UserID:  uuid.New(),
		Title:   "Alert",
		Options: models.NotificationOptions{Tag: "t", Body: "Check now", Data: map[string]any{"alarmId": "42"}},
		ShownAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.store.Save(s.ctx, n))

	got, err := s.store.Get(s.ctx, n.ID)
	require.NoError(t, err)
	s.Equal(n.UserID, got.UserID)
	s.Equal("Check now", got.Options.Body)
	s.Equal(map[string]any{"alarmId": "42"}, got.Options.Data)
	s.True(n.ShownAt.Equal(got.ShownAt))

	ttl, err := s.redisClient.TTL(s.ctx, "shown_notification:"+n.ID).Result()
	require.NoError(t, err)
	s.Greater(ttl, 59*time.Minute)

	require.NoError(t, s.store.Delete(s.ctx, n.ID))
	require.NoError(t, s.store.Delete(s.ctx, n.ID))
	_, err = s.store.Get(s.ctx, n.ID)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *StorageIntegrationSuite) TestRedisStore_Expiry() {
	short := sharedDatabase.NewRedisNotificationStore(s.redisClient, time.Second, s.logger)
	require.NoError(s.T(), short.Save(s.ctx, models.ShownNotification{ID: "short-lived"}))

	s.Eventually(func() bool {
		_, err := short.Get(s.ctx, "short-lived")
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *StorageIntegrationSuite) TestJournal_RecordsShownAndClick() {
	t := s.T()
	userID := uuid.New()
	shown := models.ShownNotification{
		ID:      "n-1",
		UserID:  userID,
		Title:   "Alert",
		Options: models.NotificationOptions{Body: "Check now", Data: map[string]any{"alarmId": "42"}},
	}
	require.NoError(t, s.journal.RecordShown(s.ctx, shown))
	require.NoError(t, s.journal.RecordClick(s.ctx,
		models.ClickEvent{NotificationID: "n-1", UserID: userID},
		models.ClickResult{Outcome: models.ClickOutcomeFocused, ClientID: "c-1", URL: "https://guard.example/"},
	))
	require.NoError(t, s.journal.RecordShown(s.ctx, models.ShownNotification{ID: "other"}))

	entries, err := s.journal.ListByNotification(s.ctx, "n-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	s.Equal(sharedDatabase.JournalEventShown, entries[0].Event)
	require.NotNil(t, entries[0].UserID)
	s.Equal(userID, *entries[0].UserID)
	s.Equal("Alert", *entries[0].Title)
	s.JSONEq(`{"alarmId":"42"}`, string(entries[0].Data))

	s.Equal(sharedDatabase.JournalEventClicked, entries[1].Event)
	s.Equal("focused", *entries[1].Outcome)
	s.Equal("c-1", *entries[1].ClientID)
	s.Equal("https://guard.example/", *entries[1].TargetURL)
	s.Nil(entries[1].Title)
}

func (s *StorageIntegrationSuite) TestTransaction_RollsBack() {
	err := s.db.ExecuteInTransaction(s.ctx, func(tx pgx.Tx) error {
		journal := sharedDatabase.NewPgDeliveryJournal(tx, s.logger)
		if err := journal.RecordShown(s.ctx, models.ShownNotification{ID: "tx"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	s.Error(err)

	entries, err := s.journal.ListByNotification(s.ctx, "tx")
	require.NoError(s.T(), err)
	s.Empty(entries)
}
