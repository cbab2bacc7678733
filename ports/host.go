package ports

import (
	"context"

	"github.com/layer-3/siwf/core"
)

// Host is the runtime that holds the user's keys and signs sign-in messages
type Host interface {
	// IsInHost reports whether the client runs inside a compatible host
	IsInHost(ctx context.Context) (bool, error)

	// RequestSignedMessage asks the host to sign a SIWF message carrying nonce
	RequestSignedMessage(ctx context.Context, nonce string, opts core.SignInOptions) (core.SignedMessage, error)
}
