package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// exerciseStore checks the contract every TokenStore shares.
func exerciseStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	v, err := store.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, store.Set(ctx, AccessTokenKey, "A1"))
	require.NoError(t, store.Set(ctx, RefreshTokenKey, "R1"))
	require.NoError(t, store.Set(ctx, AccessTokenKey, ""), "empty values are ignored")

	v, err = store.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	require.Equal(t, "A1", v)

	require.NoError(t, store.Set(ctx, AccessTokenKey, "A2"))
	v, err = store.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	require.Equal(t, "A2", v)

	require.NoError(t, store.Remove(ctx, AccessTokenKey))
	require.NoError(t, store.Remove(ctx, AccessTokenKey), "removing a missing key is fine")
	v, err = store.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	require.Empty(t, v)

	v, err = store.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "R1", v)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	exerciseStore(t, NewFileStore(path))
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	first := NewFileStore(path)
	require.NoError(t, first.Set(ctx, AccessTokenKey, "A1"))
	require.NoError(t, first.Set(ctx, RefreshTokenKey, "R1"))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	second := NewFileStore(path)
	v, err := second.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "R1", v)

	require.NoError(t, second.Remove(ctx, AccessTokenKey))
	require.NoError(t, second.Remove(ctx, RefreshTokenKey))
	_, err = os.Stat(path)
	require.True(t, errors.Is(err, os.ErrNotExist), "empty store removes its file")
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Get(context.Background(), AccessTokenKey)
	require.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, "ops")
	exerciseStore(t, store)

	got, err := mr.Get("botadmin:credentials:ops:refreshToken")
	require.NoError(t, err)
	require.Equal(t, "R1", got)
}

func TestRedisStoreUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:0",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	_, err := NewRedisStore(rdb, "").Get(context.Background(), AccessTokenKey)
	require.Error(t, err)
}

// MockKV partially implements clientv3.KV on top of a map
type MockKV struct {
	clientv3.KV

	mu     sync.Mutex
	data   map[string]string
	failOn string
}

func newMockKV() *MockKV {
	return &MockKV{data: make(map[string]string)}
}

func (m *MockKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "get" {
		return nil, errors.New("etcd unavailable")
	}
	resp := &clientv3.GetResponse{}
	if v, ok := m.data[key]; ok {
		resp.Kvs = []*mvccpb.KeyValue{{Key: []byte(key), Value: []byte(v)}}
		resp.Count = 1
	}
	return resp, nil
}

func (m *MockKV) Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (m *MockKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return &clientv3.DeleteResponse{}, nil
}

func TestEtcdStore(t *testing.T) {
	kv := newMockKV()
	exerciseStore(t, NewEtcdStore(kv, ""))
	require.Equal(t, "R1", kv.data["/botadmin/credentials/default/refreshToken"])
}

func TestEtcdStoreError(t *testing.T) {
	kv := newMockKV()
	kv.failOn = "get"
	_, err := NewEtcdStore(kv, "ops").Get(context.Background(), AccessTokenKey)
	require.ErrorContains(t, err, "etcd unavailable")
}
