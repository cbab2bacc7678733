package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/siwf/ports"
)

// TokenIssuedTopic carries an event for every token the local issuer mints
const TokenIssuedTopic = "siwf.token_issued"

// TokenIssuedEvent represents a token issuance
type TokenIssuedEvent struct {
	FID      uint64    `json:"fid"`
	Address  string    `json:"address,omitempty"`
	TokenID  string    `json:"token_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     TokenIssuedTopic,
		now:       time.Now,
	}
}

// PublishTokenIssued publishes a token issuance event
func (p *WatermillPublisher) PublishTokenIssued(ctx context.Context, fid uint64, address string, tokenID string) error {
	event := TokenIssuedEvent{
		FID:      fid,
		Address:  address,
		TokenID:  tokenID,
		IssuedAt: p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

// PublishTokenIssued does nothing
func (NopPublisher) PublishTokenIssued(context.Context, uint64, string, string) error {
	return nil
}
