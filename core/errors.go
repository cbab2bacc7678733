package core

import (
	"errors"
	"fmt"
)

// Client-side sign-in errors
var (
	ErrHostUnavailable          = errors.New("sign-in only works inside a Farcaster host")
	ErrHostRejected             = errors.New("host rejected the sign-in request")
	ErrMalformedResponse        = errors.New("invalid sign-in response from host")
	ErrIdentityExtractionFailed = errors.New("could not parse fid from sign-in message")
	ErrSignInInProgress         = errors.New("sign-in already in progress")
	ErrSessionClosed            = errors.New("session closed")
	ErrInvalidNonceLength       = errors.New("nonce length must be at least 8")
)

// Server-side authentication errors
var (
	ErrMissingToken        = errors.New("missing token")
	ErrInvalidToken        = errors.New("invalid token")
	ErrServerMisconfigured = errors.New("server misconfiguration: domain not set")
	ErrResolverFailure     = errors.New("user resolution failed")
	ErrUnknownIdentity     = errors.New("unknown identity")
	ErrKeyFetchFailed      = errors.New("trusted key fetch failed")
	ErrUnknownKey          = errors.New("unknown signing key")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidMessage      = errors.New("invalid sign-in message")
)

// TokenFailure names the check a bearer token failed
type TokenFailure string

const (
	TokenMalformed  TokenFailure = "malformed"
	TokenSignature  TokenFailure = "signature"
	TokenExpired    TokenFailure = "expired"
	TokenAudience   TokenFailure = "audience"
	TokenIssuer     TokenFailure = "issuer"
	TokenUnknownKey TokenFailure = "unknown_key"
	TokenSubject    TokenFailure = "subject"
	TokenOther      TokenFailure = "other"
)

// TokenError records why a token was rejected. It matches ErrInvalidToken
// with errors.Is, so callers that only need the kind never see the reason.
type TokenError struct {
	Reason TokenFailure
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid token (%s)", e.Reason)
	}
	return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
}

func (e *TokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

func (e *TokenError) Unwrap() error {
	return e.Err
}
