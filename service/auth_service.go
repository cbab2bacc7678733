package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// AuthService turns a bearer token into a principal bound to one domain.
// It holds only read-only configuration; every call is independent.
type AuthService struct {
	verifier ports.TokenVerifier
	resolver ports.UserResolver
	domain   string
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service. An empty domain is
// accepted so the misconfiguration surfaces on every request instead of
// silently disabling the check.
func NewAuthService(
	verifier ports.TokenVerifier,
	resolver ports.UserResolver,
	domain string,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		verifier: verifier,
		resolver: resolver,
		domain:   domain,
		logger:   logger,
	}
}

// Domain returns the audience tokens must be issued for
func (s *AuthService) Domain() string {
	return s.domain
}

// Authenticate verifies token against the configured domain and resolves
// its subject. Token rejections all come back as core.ErrInvalidToken;
// the specific reason is only logged.
//
// Resolver errors are returned unchanged when they already match
// core.ErrResolverFailure. Any other resolver error is wrapped so it matches
// core.ErrResolverFailure and still matches its own kind through errors.Is,
// for example core.ErrUnknownIdentity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Principal, error) {
	if token == "" {
		return nil, core.ErrMissingToken
	}

	if s.domain == "" {
		s.logger.Error("domain is not configured, rejecting request")
		return nil, core.ErrServerMisconfigured
	}

	claims, err := s.verifier.Verify(ctx, token, s.domain)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrKeyFetchFailed):
			s.logger.Error("trusted keys unavailable", "error", err)
			return nil, core.ErrKeyFetchFailed
		case errors.Is(err, core.ErrServerMisconfigured):
			return nil, core.ErrServerMisconfigured
		}

		reason := core.TokenOther
		var tokenErr *core.TokenError
		if errors.As(err, &tokenErr) {
			reason = tokenErr.Reason
		}
		s.logger.Warn("token rejected", "reason", reason, "error", err)
		return nil, core.ErrInvalidToken
	}

	principal, err := s.resolver.Resolve(ctx, claims.FID)
	if err != nil {
		if !errors.Is(err, core.ErrResolverFailure) {
			err = fmt.Errorf("%w: %w", core.ErrResolverFailure, err)
		}
		s.logger.Warn("user resolution failed", "fid", claims.FID, "error", err)
		return nil, err
	}

	return principal, nil
}
