package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/contractpdf/config"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ref, err := store.Put(ctx, "templates/alta.pdf", []byte("%PDF"), ContentTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "templates/alta.pdf", ref.Key)
	assert.Equal(t, "memory://templates/alta.pdf", ref.URL)
	assert.Equal(t, ContentTypePDF, store.ContentType("templates/alta.pdf"))

	data, err := store.Get(ctx, "templates/alta.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	data[0] = 'X'
	again, _ := store.Get(ctx, "templates/alta.pdf")
	assert.Equal(t, byte('%'), again[0], "stored blob must not alias returned slices")

	_, err = store.Get(ctx, "templates/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	ref, err := store.Put(ctx, "contracts/e1/out.pdf", []byte("pdf bytes"), ContentTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "contracts/e1/out.pdf", ref.Key)
	assert.Contains(t, ref.URL, "file://")
	assert.Contains(t, ref.URL, "contracts/e1/out.pdf")

	onDisk, err := os.ReadFile(filepath.Join(root, "contracts", "e1", "out.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(onDisk))

	info, err := os.Stat(filepath.Join(root, "contracts", "e1", "out.pdf"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	data, err := store.Get(ctx, "contracts/e1/out.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	_, err = store.Get(ctx, "nothing/here")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeysCannotEscapeRoot(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../secret", "a/../../b"} {
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = store.Put(ctx, key, nil, "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestTryGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, _ = store.Put(ctx, "fonts/regular.ttf", []byte{1, 2}, "")

	data, ok, err := TryGet(ctx, store, "fonts/regular.ttf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, data)

	data, ok, err = TryGet(ctx, store, "fonts/bold.ttf")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	_, ok, err = TryGet(ctx, store, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = TryGet(ctx, failingStore{err: errors.New("boom")}, "x")
	assert.EqualError(t, err, "boom")
}

func TestOutputKey(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	key, err := OutputKey("player-42", now)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^contracts/player-42/20260304T040607Z-[0-9a-f-]{36}\.pdf$`)
	assert.Regexp(t, pattern, key)

	keys := make([]string, 5)
	for i := range keys {
		keys[i], err = OutputKey("player-42", now)
		require.NoError(t, err)
	}
	assert.True(t, sort.StringsAreSorted(keys), "keys generated in order must sort in order")
	assert.NotEqual(t, keys[0], keys[1])

	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		_, err := OutputKey(bad, now)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}

// flakyStore fails the first failures calls of each kind.
type flakyStore struct {
	*MemoryStore
	failures int32
	gets     atomic.Int32
	puts     atomic.Int32
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.gets.Add(1) <= s.failures {
		return nil, errors.New("connection reset")
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key string, data []byte, ct string) (Reference, error) {
	if s.puts.Add(1) <= s.failures {
		return Reference{}, errors.New("connection reset")
	}
	return s.MemoryStore.Put(ctx, key, data, ct)
}

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) ([]byte, error) { return nil, s.err }

func retryConfig(attempts int) config.RetryConfig {
	return config.RetryConfig{Attempts: attempts, InitialDelay: time.Millisecond, Multiplier: 2}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	store := WithRetry(flaky, retryConfig(3))

	ref, err := store.Put(ctx, "a.pdf", []byte("x"), ContentTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", ref.Key)
	assert.Equal(t, int32(3), flaky.puts.Load())

	data, err := store.Get(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, int32(3), flaky.gets.Load())
}

func TestWithRetryGivesUp(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	store := WithRetry(flaky, retryConfig(2))

	_, err := store.Get(context.Background(), "a.pdf")
	assert.Error(t, err)
	assert.GreaterOrEqual(t, flaky.gets.Load(), int32(2))
	assert.Less(t, flaky.gets.Load(), int32(10))
}

func TestWithRetrySkipsNotFound(t *testing.T) {
	counting := &flakyStore{MemoryStore: NewMemoryStore()}
	store := WithRetry(counting, retryConfig(5))

	_, err := store.Get(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), counting.gets.Load())
}

func TestWithRetrySingleAttempt(t *testing.T) {
	mem := NewMemoryStore()
	assert.Same(t, Store(mem), WithRetry(mem, retryConfig(1)))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Type: config.StorageMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	root := t.TempDir()
	store, err = Open(ctx, config.StorageConfig{Type: config.StorageFilesystem, Root: root, Retry: retryConfig(3)})
	require.NoError(t, err)
	_, err = store.Put(ctx, "x.pdf", []byte("x"), ContentTypePDF)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "x.pdf"))
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestRedisKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	store := NewRedisStoreFromClient(client, RedisConfig{Addr: "127.0.0.1:0", Prefix: "contractpdf:"})

	key, err := store.redisKey("templates/alta.pdf")
	require.NoError(t, err)
	assert.Equal(t, "contractpdf:blob:templates/alta.pdf", key)

	_, err = store.redisKey("../x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBackendHelpers(t *testing.T) {
	assert.True(t, isS3NotFound(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.False(t, isS3NotFound(errors.New("throttled")))

	assert.Equal(t, "https://storage.googleapis.com/contracts/contracts/e1/a.pdf", gcsURL("contracts", "contracts/e1/a.pdf"))

	key, err := cleanKey("tenant", "templates/alta.pdf")
	require.NoError(t, err)
	assert.Equal(t, "tenant/templates/alta.pdf", key)
}
