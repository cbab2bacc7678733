package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwf/adapters/store"
	"github.com/layer-3/siwf/core"
)

func jwksServer(t *testing.T, set KeySet, hits *int32) *httptest.Server {
	t.Helper()
	doc, err := set.MarshalJWKS()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteKeySource_FetchesAndCaches(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var hits int32
	srv := jwksServer(t, KeySet{"k1": pub}, &hits)
	src := NewRemoteKeySource(srv.URL, store.NewMemoryKeyCache())

	for i := 0; i < 3; i++ {
		key, err := src.Key(context.Background(), "k1")
		require.NoError(t, err)
		assert.Equal(t, pub, key)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = src.Key(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrUnknownKey)
	assert.NotErrorIs(t, err, core.ErrKeyFetchFailed)
}

func TestRemoteKeySource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRemoteKeySource(srv.URL, store.NewMemoryKeyCache()).Key(context.Background(), "k1")
	assert.ErrorIs(t, err, core.ErrKeyFetchFailed)
}

func TestRemoteKeySource_BadDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewRemoteKeySource(srv.URL, store.NewMemoryKeyCache()).Key(context.Background(), "k1")
	assert.ErrorIs(t, err, core.ErrKeyFetchFailed)
}

func TestRemoteKeySource_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := NewRemoteKeySource(srv.URL, store.NewMemoryKeyCache(), WithFetchTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := src.Key(context.Background(), "k1")
	assert.ErrorIs(t, err, core.ErrKeyFetchFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRemoteKeySource_IgnoresCorruptCache(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var hits int32
	srv := jwksServer(t, KeySet{"k1": pub}, &hits)

	cache := store.NewMemoryKeyCache()
	require.NoError(t, cache.Set(context.Background(), []byte(`garbage`), time.Hour))

	key, err := NewRemoteKeySource(srv.URL, cache).Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, pub, key)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

// rotatingServer serves whatever key set was published last
type rotatingServer struct {
	mu   sync.Mutex
	doc  []byte
	hits int32
}

func (r *rotatingServer) publish(t *testing.T, set KeySet) {
	t.Helper()
	doc, err := set.MarshalJWKS()
	require.NoError(t, err)
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
}

func (r *rotatingServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	atomic.AddInt32(&r.hits, 1)
	r.mu.Lock()
	doc := r.doc
	r.mu.Unlock()
	_, _ = w.Write(doc)
}

func TestRemoteKeySource_RefetchesOnRotation(t *testing.T) {
	k1, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	issuer := &rotatingServer{}
	issuer.publish(t, KeySet{"k1": k1})
	srv := httptest.NewServer(issuer)
	defer srv.Close()

	now := time.Now()
	src := NewRemoteKeySource(srv.URL, store.NewMemoryKeyCache())
	src.now = func() time.Time { return now }

	_, err = src.Key(context.Background(), "k1")
	require.NoError(t, err)

	issuer.publish(t, KeySet{"k1": k1, "k2": k2})
	now = now.Add(DefaultMinRefreshInterval)

	key, err := src.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, k2, key)
	assert.Equal(t, int32(2), atomic.LoadInt32(&issuer.hits))

	// The refreshed set replaced the cached one.
	_, err = src.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&issuer.hits))
}

func TestRemoteKeySource_UnknownKidRefetchIsRateLimited(t *testing.T) {
	k1, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	issuer := &rotatingServer{}
	issuer.publish(t, KeySet{"k1": k1})
	srv := httptest.NewServer(issuer)
	defer srv.Close()

	now := time.Now()
	src := NewRemoteKeySource(srv.URL, store.NewMemoryKeyCache(), WithMinRefreshInterval(time.Minute))
	src.now = func() time.Time { return now }

	_, err = src.Key(context.Background(), "k1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = src.Key(context.Background(), "bogus")
		assert.ErrorIs(t, err, core.ErrUnknownKey)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&issuer.hits), "no refetch inside the interval")

	now = now.Add(time.Minute)
	for i := 0; i < 5; i++ {
		_, err = src.Key(context.Background(), "bogus")
		assert.ErrorIs(t, err, core.ErrUnknownKey)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&issuer.hits), "one refetch per interval")
}

func TestRemoteKeySource_CancelledCallerDoesNotAbortFetch(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	doc, err := KeySet{"k1": pub}.MarshalJWKS()
	require.NoError(t, err)

	var hits int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		entered <- struct{}{}
		<-release
		_, _ = w.Write(doc)
	}))
	defer srv.Close()

	cache := store.NewMemoryKeyCache()
	src := NewRemoteKeySource(srv.URL, cache)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := src.Key(ctx, "k1")
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := src.Key(context.Background(), "k1")
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, core.ErrKeyFetchFailed)

	close(release)
	require.NoError(t, <-second)

	// The shared download finished and filled the cache despite the cancellation.
	require.Eventually(t, func() bool {
		_, ok, _ := cache.Get(context.Background())
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
