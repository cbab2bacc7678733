package core

import "time"

// AuthMethod tells which key produced a sign-in signature
type AuthMethod string

const (
	// AuthMethodCustody means the fid's custody address signed the message
	AuthMethodCustody AuthMethod = "custody"

	// AuthMethodAuthAddress means a registered auth address signed the message
	AuthMethodAuthAddress AuthMethod = "authAddress"
)

// SignInOptions are passed to the host together with the nonce
type SignInOptions struct {
	AcceptAuthAddress bool       // Allow the host to sign with an auth address instead of custody
	NotBefore         *time.Time // Optional start of the message validity window
	ExpirationTime    *time.Time // Optional end of the message validity window
}

// SignedMessage is what a host returns for a sign-in request.
// It is untrusted until both Message and Signature have been checked.
type SignedMessage struct {
	Message    string     `json:"message"`
	Signature  string     `json:"signature"`
	AuthMethod AuthMethod `json:"authMethod"`
}

// ParsedIdentity is what could be extracted from a sign-in message
type ParsedIdentity struct {
	FID     *uint64 // nil when no farcaster://fid/<n> marker was found
	Address string  // empty when no address was found
}

// AuthUser is the client-side record of a signed-in user
type AuthUser struct {
	FID       uint64 `json:"fid"`
	Address   string `json:"address,omitempty"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SessionState is the client session lifecycle state
type SessionState string

const (
	StateLoading   SessionState = "loading"
	StateSignedOut SessionState = "signedOut"
	StateSignedIn  SessionState = "signedIn"
)

// Claims are the verified contents of a bearer token
type Claims struct {
	FID       uint64    // Token subject
	Audience  string    // Domain the token was issued for
	Issuer    string    // Token issuer
	ID        string    // Token identifier (jti), may be empty
	IssuedAt  time.Time // When the token was issued
	ExpiresAt time.Time // When the token expires
}

// Principal is the authenticated user attached to a request
type Principal struct {
	FID            uint64 `json:"fid"`
	PrimaryAddress string `json:"primaryAddress,omitempty"`
}
