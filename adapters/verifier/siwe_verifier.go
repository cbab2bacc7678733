package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	siwe "github.com/spruceid/siwe-go"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// SIWEVerifier checks SIWF messages, which are EIP-4361 messages carrying
// a farcaster://fid/<n> resource, signed with EIP-191.
type SIWEVerifier struct {
	now func() time.Time
}

// NewSIWEVerifier creates a new message verifier
func NewSIWEVerifier() ports.MessageVerifier {
	return &SIWEVerifier{now: time.Now}
}

// VerifyMessage parses message, checks domain, nonce, validity window and
// that signature recovers to the message's address.
func (v *SIWEVerifier) VerifyMessage(ctx context.Context, message, signature string, expect ports.MessageExpectations) (*ports.VerifiedMessage, error) {
	if message == "" || signature == "" {
		return nil, core.ErrInvalidMessage
	}

	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}

	at := expect.At
	if at.IsZero() {
		at = v.now()
	}

	var nonce *string
	if expect.Nonce != "" {
		nonce = &expect.Nonce
	}

	if _, err := msg.Verify(signature, &expect.Domain, nonce, &at); err != nil {
		var sigErr *siwe.InvalidSignature
		if errors.As(err, &sigErr) {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}

	id := core.ParseSignInMessage(message)
	if id.FID == nil {
		return nil, core.ErrIdentityExtractionFailed
	}

	return &ports.VerifiedMessage{
		FID:     *id.FID,
		Address: msg.GetAddress().Hex(),
		Domain:  msg.GetDomain(),
		Nonce:   msg.GetNonce(),
	}, nil
}
