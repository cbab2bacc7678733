package keys

import (
	"context"
	"crypto"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

const (
	// DefaultFetchTimeout bounds a single key set download
	DefaultFetchTimeout = 5 * time.Second

	// DefaultCacheTTL is how long a downloaded key set is trusted
	DefaultCacheTTL = time.Hour

	// DefaultMinRefreshInterval limits refetches triggered by unknown key IDs
	DefaultMinRefreshInterval = time.Minute

	maxDocumentSize = 1 << 20
)

// RemoteKeySource downloads the issuer's JWKS and keeps it in a KeyCache
type RemoteKeySource struct {
	url     string
	client  *http.Client
	cache   ports.KeyCache
	timeout time.Duration
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group

	minRefresh time.Duration
	now        func() time.Time

	mu          sync.Mutex
	lastFetched time.Time
}

// RemoteOption configures a RemoteKeySource
type RemoteOption func(*RemoteKeySource)

// WithHTTPClient overrides the HTTP client used for downloads
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(s *RemoteKeySource) {
		if client != nil {
			s.client = client
		}
	}
}

// WithFetchTimeout bounds each download
func WithFetchTimeout(timeout time.Duration) RemoteOption {
	return func(s *RemoteKeySource) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithCacheTTL sets how long a downloaded key set stays cached
func WithCacheTTL(ttl time.Duration) RemoteOption {
	return func(s *RemoteKeySource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMinRefreshInterval sets how often an unknown key ID may force a refetch
func WithMinRefreshInterval(interval time.Duration) RemoteOption {
	return func(s *RemoteKeySource) {
		if interval > 0 {
			s.minRefresh = interval
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(s *RemoteKeySource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRemoteKeySource creates a key source reading the JWKS at url
func NewRemoteKeySource(url string, cache ports.KeyCache, opts ...RemoteOption) *RemoteKeySource {
	s := &RemoteKeySource{
		url:     url,
		client:  http.DefaultClient,
		cache:   cache,
		timeout: DefaultFetchTimeout,
		ttl:     DefaultCacheTTL,
		logger:  slog.Default(),

		minRefresh: DefaultMinRefreshInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the public key for kid. An unknown kid forces one refetch
// past the cache, at most once per refresh interval, so rotated keys are
// picked up before the cache expires.
func (s *RemoteKeySource) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	set, err := s.keySet(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := set.lookup(kid)
	if !ok && s.refreshAllowed() {
		s.logger.Info("unknown key id, refetching key set", "kid", kid)
		set, err = s.download(ctx)
		if err != nil {
			return nil, err
		}
		key, ok = set.lookup(kid)
	}
	if !ok {
		return nil, fmt.Errorf("kid %q: %w", kid, core.ErrUnknownKey)
	}
	return key, nil
}

func (s *RemoteKeySource) keySet(ctx context.Context) (KeySet, error) {
	doc, ok, err := s.cache.Get(ctx)
	if err != nil {
		// A broken cache must not stop verification; fall back to the issuer.
		s.logger.Warn("key cache read failed", "error", err)
	}
	if ok {
		set, err := ParseJWKS(doc)
		if err == nil {
			return set, nil
		}
		s.logger.Warn("cached key set is unusable, refetching", "error", err)
	}

	return s.download(ctx)
}

// refreshAllowed reserves a forced refetch if none happened recently
func (s *RemoteKeySource) refreshAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastFetched.IsZero() && now.Sub(s.lastFetched) < s.minRefresh {
		return false
	}
	s.lastFetched = now
	return true
}

// download fetches the key set once for all concurrent callers. The shared
// fetch is detached from the caller's cancellation; each caller still stops
// waiting when its own context ends.
func (s *RemoteKeySource) download(ctx context.Context) (KeySet, error) {
	ch := s.group.DoChan(s.url, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", core.ErrKeyFetchFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(KeySet), nil
	}
}

func (s *RemoteKeySource) fetch(ctx context.Context) (KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", core.ErrKeyFetchFailed, resp.StatusCode)
	}

	doc, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyFetchFailed, err)
	}

	set, err := ParseJWKS(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyFetchFailed, err)
	}

	s.mu.Lock()
	s.lastFetched = s.now()
	s.mu.Unlock()

	if err := s.cache.Set(ctx, doc, s.ttl); err != nil {
		s.logger.Warn("key cache write failed", "error", err)
	}

	s.logger.Debug("fetched key set", "url", s.url, "keys", len(set))
	return set, nil
}
