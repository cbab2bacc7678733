package keys

import (
	"context"
	"crypto"
	"fmt"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// StaticKeySource serves a fixed key set
type StaticKeySource struct {
	set KeySet
}

// NewStaticKeySource creates a key source over set
func NewStaticKeySource(set KeySet) ports.KeySource {
	return &StaticKeySource{set: set}
}

// Key returns the key for kid
func (s *StaticKeySource) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	key, ok := s.set.lookup(kid)
	if !ok {
		return nil, fmt.Errorf("kid %q: %w", kid, core.ErrUnknownKey)
	}
	return key, nil
}
