package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwf/adapters/resolver"
	"github.com/layer-3/siwf/core"
)

type fakeVerifier struct {
	claims   *core.Claims
	err      error
	audience string
	calls    int
}

func (f *fakeVerifier) Verify(ctx context.Context, token string, audience string) (*core.Claims, error) {
	f.calls++
	f.audience = audience
	return f.claims, f.err
}

type resolverFunc func(ctx context.Context, fid uint64) (*core.Principal, error)

func (f resolverFunc) Resolve(ctx context.Context, fid uint64) (*core.Principal, error) {
	return f(ctx, fid)
}

func TestAuthenticate_Success(t *testing.T) {
	v := &fakeVerifier{claims: &core.Claims{FID: 99}}
	svc := NewAuthService(v, resolver.NewStaticResolver(map[uint64]string{99: "0xabc"}, false), "app.example.com", nil)

	p, err := svc.Authenticate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, &core.Principal{FID: 99, PrimaryAddress: "0xabc"}, p)
	assert.Equal(t, "app.example.com", v.audience)
}

func TestAuthenticate_MissingToken(t *testing.T) {
	v := &fakeVerifier{}
	svc := NewAuthService(v, resolver.NewStaticResolver(nil, false), "app.example.com", nil)

	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrMissingToken)
	assert.Zero(t, v.calls)
}

func TestAuthenticate_MissingDomain(t *testing.T) {
	v := &fakeVerifier{claims: &core.Claims{FID: 1}}
	svc := NewAuthService(v, resolver.NewStaticResolver(nil, false), "", nil)

	_, err := svc.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, core.ErrServerMisconfigured)
	assert.Zero(t, v.calls, "verifier must not run without a domain")
}

func TestAuthenticate_TokenReasonIsHidden(t *testing.T) {
	v := &fakeVerifier{err: &core.TokenError{Reason: core.TokenAudience, Err: errors.New("aud mismatch")}}
	svc := NewAuthService(v, resolver.NewStaticResolver(nil, false), "app.example.com", nil)

	_, err := svc.Authenticate(context.Background(), "token")
	assert.Same(t, core.ErrInvalidToken, err)
}

func TestAuthenticate_KeyFetchFailed(t *testing.T) {
	v := &fakeVerifier{err: errors.Join(core.ErrKeyFetchFailed, errors.New("timeout"))}
	svc := NewAuthService(v, resolver.NewStaticResolver(nil, false), "app.example.com", nil)

	_, err := svc.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, core.ErrKeyFetchFailed)
	assert.NotErrorIs(t, err, core.ErrInvalidToken)
}

func TestAuthenticate_ResolverFailurePropagates(t *testing.T) {
	cause := errors.New("identity service down")
	v := &fakeVerifier{claims: &core.Claims{FID: 5}}
	svc := NewAuthService(v, resolverFunc(func(ctx context.Context, fid uint64) (*core.Principal, error) {
		return nil, cause
	}), "app.example.com", nil)

	_, err := svc.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, core.ErrResolverFailure)
	assert.ErrorIs(t, err, cause)

	strict := NewAuthService(v, resolver.NewStaticResolver(nil, true), "app.example.com", nil)
	_, err = strict.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, core.ErrUnknownIdentity)

	classified := fmt.Errorf("%w: fid 5: %w", core.ErrResolverFailure, core.ErrUnknownIdentity)
	passthrough := NewAuthService(v, resolverFunc(func(ctx context.Context, fid uint64) (*core.Principal, error) {
		return nil, classified
	}), "app.example.com", nil)
	_, err = passthrough.Authenticate(context.Background(), "token")
	assert.Same(t, classified, err, "already classified errors are returned unchanged")
}
