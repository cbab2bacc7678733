package resolver

import (
	"context"
	"fmt"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// StaticResolver resolves fids from a fixed table
type StaticResolver struct {
	addresses map[uint64]string
	strict    bool
}

// NewStaticResolver creates a resolver over addresses. A strict resolver
// rejects fids missing from the table; otherwise they resolve without address.
func NewStaticResolver(addresses map[uint64]string, strict bool) ports.UserResolver {
	table := make(map[uint64]string, len(addresses))
	for fid, address := range addresses {
		table[fid] = address
	}
	return &StaticResolver{addresses: table, strict: strict}
}

// Resolve looks fid up in the table
func (r *StaticResolver) Resolve(ctx context.Context, fid uint64) (*core.Principal, error) {
	address, ok := r.addresses[fid]
	if !ok && r.strict {
		return nil, fmt.Errorf("%w: fid %d: %w", core.ErrResolverFailure, fid, core.ErrUnknownIdentity)
	}
	return &core.Principal{FID: fid, PrimaryAddress: address}, nil
}
