package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// DefaultTokenTTL is the lifetime of tokens minted by the issuer
const DefaultTokenTTL = time.Hour

// IssuerService exchanges signed SIWF messages for bearer tokens. Only the
// fid's custody address may sign. It does not track nonces, so a captured
// message can be exchanged again until it expires.
type IssuerService struct {
	verifier  ports.MessageVerifier
	custody   ports.CustodyResolver
	tokenizer ports.TokenIssuer
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	domain   string
	issuer   string
	tokenTTL time.Duration
	now      func() time.Time
}

// IssuerConfig holds the issuer's identity and token lifetime
type IssuerConfig struct {
	Domain   string        // Audience of issued tokens and required message domain
	Issuer   string        // iss claim
	TokenTTL time.Duration // Lifetime of issued tokens
}

// NewIssuerService creates a new issuer
func NewIssuerService(
	cfg IssuerConfig,
	verifier ports.MessageVerifier,
	custody ports.CustodyResolver,
	tokenizer ports.TokenIssuer,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
) *IssuerService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IssuerService{
		verifier:  verifier,
		custody:   custody,
		tokenizer: tokenizer,
		eventPub:  eventPub,
		logger:    logger,
		domain:    cfg.Domain,
		issuer:    cfg.Issuer,
		tokenTTL:  cfg.TokenTTL,
		now:       time.Now,
	}
}

// TokenTTL returns the lifetime of issued tokens
func (s *IssuerService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Exchange verifies a signed message and mints a token for its fid.
// nonce is optional; when set the message must carry it.
func (s *IssuerService) Exchange(ctx context.Context, message, signature, nonce string) (string, error) {
	if s.domain == "" || s.custody == nil {
		return "", core.ErrServerMisconfigured
	}

	now := s.now()
	verified, err := s.verifier.VerifyMessage(ctx, message, signature, ports.MessageExpectations{
		Domain: s.domain,
		Nonce:  nonce,
		At:     now,
	})
	if err != nil {
		return "", fmt.Errorf("message verification failed: %w", err)
	}

	if err := s.checkCustody(ctx, verified); err != nil {
		return "", err
	}

	tokenID := uuid.New().String()
	token, err := s.tokenizer.Issue(core.Claims{
		FID:       verified.FID,
		Audience:  s.domain,
		Issuer:    s.issuer,
		ID:        tokenID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	// The token is already minted; a lost event must not fail the exchange.
	if err := s.eventPub.PublishTokenIssued(ctx, verified.FID, verified.Address, tokenID); err != nil {
		s.logger.Warn("failed to publish token issued event", "fid", verified.FID, "error", err)
	}

	s.logger.Info("token issued", "fid", verified.FID, "token_id", tokenID)
	return token, nil
}

// checkCustody binds the message's fid to its signer
func (s *IssuerService) checkCustody(ctx context.Context, verified *ports.VerifiedMessage) error {
	custody, err := s.custody.CustodyOf(ctx, verified.FID)
	if errors.Is(err, core.ErrUnknownIdentity) {
		s.logger.Warn("sign-in for fid without custody", "fid", verified.FID, "signer", verified.Address)
		return fmt.Errorf("%w: fid %d has no custody address", core.ErrInvalidSignature, verified.FID)
	}
	if err != nil {
		return fmt.Errorf("custody lookup failed: %w", err)
	}

	if !strings.EqualFold(custody, verified.Address) {
		s.logger.Warn("signer is not the fid custody address", "fid", verified.FID, "signer", verified.Address)
		return fmt.Errorf("%w: %s is not the custody address of fid %d", core.ErrInvalidSignature, verified.Address, verified.FID)
	}
	return nil
}
