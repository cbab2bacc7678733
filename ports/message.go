package ports

import (
	"context"
	"time"
)

// VerifiedMessage is a sign-in message whose signature checked out
type VerifiedMessage struct {
	FID     uint64
	Address string
	Domain  string
	Nonce   string
}

// MessageExpectations constrain which messages a verifier accepts
type MessageExpectations struct {
	Domain string    // Required message domain
	Nonce  string    // Required nonce, empty to skip
	At     time.Time // Validity check time, zero for now
}

// MessageVerifier checks a signed SIWF message
type MessageVerifier interface {
	VerifyMessage(ctx context.Context, message, signature string, expect MessageExpectations) (*VerifiedMessage, error)
}
