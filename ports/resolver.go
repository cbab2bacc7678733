package ports

import (
	"context"

	"github.com/layer-3/siwf/core"
)

// UserResolver maps a verified fid to an application user
type UserResolver interface {
	Resolve(ctx context.Context, fid uint64) (*core.Principal, error)
}

// CustodyResolver returns the custody address that owns a fid. An fid
// with no owner yields core.ErrUnknownIdentity.
type CustodyResolver interface {
	CustodyOf(ctx context.Context, fid uint64) (string, error)
}
