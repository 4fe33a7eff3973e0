package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	_, ok, err := s.Get(ctx, "plazaEvents")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "plazaEvents", "[]"))
	v, ok, err := s.Get(ctx, "plazaEvents")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)

	require.NoError(t, s.Remove(ctx, "plazaEvents"))
	require.NoError(t, s.Remove(ctx, "plazaEvents"))
	_, ok, _ = s.Get(ctx, "plazaEvents")
	assert.False(t, ok)
}

func TestMemoryStoreQuota(t *testing.T) {
	s := NewMemoryStore(20)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "0123456789"))
	err := s.Set(ctx, "b", "0123456789")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	// overwriting an existing key only counts the new value
	require.NoError(t, s.Set(ctx, "a", "012345678901234"))
}

func TestMemoryStoreWatchOnlySeesPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemoryStore(0)
	var calls atomic.Int32
	require.NoError(t, s.Watch(ctx, "plazaEvents", func() { calls.Add(1) }))

	require.NoError(t, s.Set(ctx, "plazaEvents", "[]"))
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, s.SetFromPeer("plazaEvents", "[]"))
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, s.SetFromPeer("other", "x"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", DefaultFileName)

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "plazaEvents")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "plazaEvents", `[{"id":1}]`))
	require.NoError(t, s.Set(ctx, "other", "x"))

	// a second handle on the same file sees the writes
	peer, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, err := peer.Get(ctx, "plazaEvents")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)

	// previous version kept as backup, no tmp file left behind
	_, err = os.Stat(path + BackupSuffix)
	assert.NoError(t, err)
	_, err = os.Stat(path + TmpSuffix)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Remove(ctx, "plazaEvents"))
	_, ok, _ = peer.Get(ctx, "plazaEvents")
	assert.False(t, ok)
}

func TestFileStoreQuota(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), DefaultFileName), WithQuota(64))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", "small"))
	err = s.Set(ctx, "k", strings.Repeat("x", 100))
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "small", v)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), "plazaEvents")
	assert.Error(t, err)
}

func TestFileStoreSetRecoversCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "plazaEvents", "[]"))

	v, ok, err := s.Get(ctx, "plazaEvents")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)

	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestFileStoreRemoveClearsCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "plazaEvents"))

	_, ok, err := s.Get(ctx, "plazaEvents")
	require.NoError(t, err)
	assert.False(t, ok)

	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestFileStoreWatchSeesOtherWriters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := NewFileStore(path)
	require.NoError(t, err)
	peer, err := NewFileStore(path)
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, s.Watch(ctx, "plazaEvents", func() { calls.Add(1) }))

	// our own write is not an external change
	require.NoError(t, s.Set(ctx, "plazaEvents", "[]"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, peer.Set(ctx, "plazaEvents", `[{"id":7}]`))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)

	// unrelated keys do not fire
	before := calls.Load()
	require.NoError(t, peer.Set(ctx, "other", "x"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client, WithPrefix("test:"))

	t.Run("get missing", func(t *testing.T) {
		mock.ExpectGet("test:plazaEvents").RedisNil()
		_, ok, err := s.Get(ctx, "plazaEvents")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set announces", func(t *testing.T) {
		mock.ExpectSet("test:plazaEvents", "[]", 0).SetVal("OK")
		mock.ExpectPublish("test:changes", s.instance+"|plazaEvents").SetVal(1)
		require.NoError(t, s.Set(ctx, "plazaEvents", "[]"))
	})

	t.Run("get existing", func(t *testing.T) {
		mock.ExpectGet("test:plazaEvents").SetVal("[]")
		v, ok, err := s.Get(ctx, "plazaEvents")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "[]", v)
	})

	t.Run("remove announces", func(t *testing.T) {
		mock.ExpectDel("test:plazaEvents").SetVal(1)
		mock.ExpectPublish("test:changes", s.instance+"|plazaEvents").SetVal(1)
		require.NoError(t, s.Remove(ctx, "plazaEvents"))
	})

	t.Run("out of memory maps to quota", func(t *testing.T) {
		mock.ExpectSet("test:plazaEvents", "[]", 0).SetErr(errors.New("OOM command not allowed when used memory > 'maxmemory'."))
		err := s.Set(ctx, "plazaEvents", "[]")
		assert.True(t, errors.Is(err, ErrQuotaExceeded))
	})

	t.Run("other failures stay generic", func(t *testing.T) {
		mock.ExpectSet("test:plazaEvents", "[]", 0).SetErr(errors.New("connection reset"))
		err := s.Set(ctx, "plazaEvents", "[]")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrQuotaExceeded))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreValueQuota(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client, WithValueQuota(4))

	err := s.Set(context.Background(), "plazaEvents", "too long")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorePeerFilter(t *testing.T) {
	client, _ := redismock.NewClientMock()
	s := NewRedisStore(client)

	assert.True(t, s.isPeerChange("someone-else|plazaEvents", "plazaEvents"))
	assert.False(t, s.isPeerChange(s.instance+"|plazaEvents", "plazaEvents"))
	assert.False(t, s.isPeerChange("someone-else|other", "plazaEvents"))
	assert.False(t, s.isPeerChange("garbage", "plazaEvents"))
}
