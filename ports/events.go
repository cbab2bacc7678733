package ports

import "context"

// EventPublisher announces issued tokens to interested services
type EventPublisher interface {
	PublishTokenIssued(ctx context.Context, fid uint64, address string, tokenID string) error
}
