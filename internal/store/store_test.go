package store_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
	"github.com/ayush/registration-service/internal/store"
)

func newAccount(username string) *models.Account {
	return &models.Account{
		Username:           username,
		NormalizedUsername: identity.Normalize(username),
		Email:              username + "@example.com",
		NormalizedEmail:    identity.Normalize(username + "@example.com"),
		PasswordHash:       "$2a$04$hash",
	}
}

// exerciseStore runs the AccountStore contract against s.
func exerciseStore(t *testing.T, s identity.AccountStore) {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")
	name := "alice-" + suffix

	t.Run("missing account", func(t *testing.T) {
		got, err := s.FindByNormalizedUsername(ctx, identity.Normalize("nobody-"+suffix))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("insert then find", func(t *testing.T) {
		a := newAccount(name)
		require.NoError(t, s.Insert(ctx, a))
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())

		got, err := s.FindByNormalizedUsername(ctx, identity.Normalize(name))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, name, got.Username)
		assert.Equal(t, a.PasswordHash, got.PasswordHash)
	})

	t.Run("duplicate normalized username", func(t *testing.T) {
		dup := newAccount(name)
		dup.Username = "ALICE-" + suffix
		err := s.Insert(ctx, dup)
		assert.ErrorIs(t, err, identity.ErrDuplicateUsername)
	})

	t.Run("duplicate email allowed", func(t *testing.T) {
		other := newAccount("other-" + suffix)
		other.Email = name + "@example.com"
		other.NormalizedEmail = identity.Normalize(other.Email)
		assert.NoError(t, s.Insert(ctx, other))
	})

	t.Run("concurrent inserts yield one winner", func(t *testing.T) {
		contested := "race-" + suffix
		var wins, dups atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Insert(ctx, newAccount(contested))
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, identity.ErrDuplicateUsername):
					dups.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(7), dups.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	exerciseStore(t, s)
	assert.Equal(t, 3, s.Len())
}

func TestSQLiteStore(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	// Migrate is idempotent.
	require.NoError(t, s.Migrate(context.Background()))

	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := store.NewPostgresStore(pool)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
	exerciseStore(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	s := store.NewMongoStore(client.Database("registration_test"))
	require.NoError(t, s.EnsureIndexes(ctx))
	exerciseStore(t, s)
}

func TestReservations(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := store.NewRedisClient(ctx, addr, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	r := store.NewReservations(rdb, 5*time.Second, nil)
	name := "reserve-" + time.Now().Format("150405.000000")

	release, ok, err := r.Reserve(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = r.Reserve(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail while the first is held")

	release()

	release2, ok, err := r.Reserve(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestAuditArchive(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	archive, err := store.NewAuditArchive(ctx, store.ArchiveConfig{
		Endpoint:      endpoint,
		AccessKey:     os.Getenv("TEST_MINIO_ACCESS_KEY"),
		SecretKey:     os.Getenv("TEST_MINIO_SECRET_KEY"),
		Bucket:        "registration-audit-test",
		Versioning:    true,
		RetentionDays: 30,
	})
	require.NoError(t, err)

	prefix := store.AuditPrefix + time.Now().Format("20060102150405.000000") + "/"
	key := prefix + "alice.json"
	record := []byte(`{"event":"registered","username":"alice"}`)
	require.NoError(t, archive.Put(ctx, key, record))

	got, err := archive.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(record), string(got))

	keys, err := archive.Keys(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}
