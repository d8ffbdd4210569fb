//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"coworking/internal/calendar"
	"coworking/pkg/client"
	"coworking/pkg/config"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTestMongoURI = "mongodb://localhost:27017"
	defaultTestDBName   = "coworking_integration"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// newIntegrationConfig connects to TEST_MONGO_URI and drops the reservations
// collection before and after the test.
func newIntegrationConfig(t *testing.T) *config.Config {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := mongo.Connect(ctx, options.Client().ApplyURI(getEnv("TEST_MONGO_URI", defaultTestMongoURI)))
	require.NoError(t, err)
	if err := m.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}

	dbName := getEnv("TEST_DB_NAME", defaultTestDBName)
	coll := m.Database(dbName).Collection(ReservationsCollection)
	require.NoError(t, coll.Drop(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = coll.Drop(ctx)
		if err := m.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect from MongoDB: %v", err)
		}
	})

	return &config.Config{
		MongoDatabaseName: dbName,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Log:               logger.Discard(),
		Client:            &client.Client{Mongo: m},
	}
}

func record(start, end, order, token string) model.OccupancyRecord {
	return model.OccupancyRecord{
		Start:    calendar.MustParseDate(start),
		End:      calendar.MustParseDate(end),
		Quantity: 1,
		OrderID:  order,
		Token:    token,
	}
}

func TestReservationRepository_AppendAndRemove(t *testing.T) {
	cfg := newIntegrationConfig(t)
	repo := NewMongoReservationRepository(cfg)
	ctx := context.Background()

	added, err := repo.Append(ctx, "desks", []model.OccupancyRecord{
		record("2025-06-10", "2025-06-12", "o-1", "t-1"),
		record("2025-06-20", "2025-06-20", "o-2", "t-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = repo.Append(ctx, "desks", []model.OccupancyRecord{record("2025-06-10", "2025-06-12", "o-1", "t-1")})
	require.NoError(t, err)
	assert.Zero(t, added, "redelivered token is skipped")

	removed, err := repo.RemoveByOrder(ctx, "desks", "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, err := repo.Load(ctx, "desks")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "o-2", records[0].OrderID)
}

func TestReservationRepository_RepairLegacyValue(t *testing.T) {
	cfg := newIntegrationConfig(t)
	repo := NewMongoReservationRepository(cfg)
	ctx := context.Background()

	coll := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(ReservationsCollection)
	_, err := coll.InsertOne(ctx, bson.M{
		"_id":       "meeting",
		"occupancy": `[{"start":"2025-06-10","end":"2025-06-10","quantity":1,"order":7},{"start":"bad"}]`,
	})
	require.NoError(t, err)

	report, err := repo.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 1, Repaired: 1}, report)

	records, err := repo.Load(ctx, "meeting")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].OrderID)

	report, err = repo.Repair(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Repaired)
}
