package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwf/core"
)

const primary = "0x8fc5d6afe572fefc4ec153587b63ce543f6fa2ea"

func TestFarcasterResolver_PrimaryAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fc/primary-address", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("fid"))
		assert.Equal(t, "ethereum", r.URL.Query().Get("protocol"))
		_, _ = w.Write([]byte(`{"result":{"address":{"fid":42,"protocol":"ethereum","address":"` + primary + `"}}}`))
	}))
	defer srv.Close()

	p, err := NewFarcasterResolver(srv.URL+"/", time.Second, nil).Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, &core.Principal{FID: 42, PrimaryAddress: primary}, p)
}

func TestFarcasterResolver_NotFoundKeepsFID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p, err := NewFarcasterResolver(srv.URL, time.Second, nil).Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &core.Principal{FID: 7}, p)
}

func TestFarcasterResolver_MalformedAddressDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"address":{"address":"not-an-address"}}}`))
	}))
	defer srv.Close()

	p, err := NewFarcasterResolver(srv.URL, time.Second, nil).Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, p.PrimaryAddress)
}

func TestFarcasterResolver_Failures(t *testing.T) {
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{`))
	}))
	defer garbage.Close()

	_, err := NewFarcasterResolver(garbage.URL, time.Second, nil).Resolve(context.Background(), 1)
	assert.ErrorIs(t, err, core.ErrResolverFailure)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	_, err = NewFarcasterResolver(closed.URL, time.Second, nil).Resolve(context.Background(), 1)
	assert.ErrorIs(t, err, core.ErrResolverFailure)
}

func TestStaticResolver(t *testing.T) {
	ctx := context.Background()
	table := map[uint64]string{1: primary}

	lenient := NewStaticResolver(table, false)
	p, err := lenient.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, primary, p.PrimaryAddress)

	p, err = lenient.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, &core.Principal{FID: 2}, p)

	_, err = NewStaticResolver(table, true).Resolve(ctx, 2)
	assert.ErrorIs(t, err, core.ErrResolverFailure)
	assert.ErrorIs(t, err, core.ErrUnknownIdentity)
}
