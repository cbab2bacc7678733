package tokenizer

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// DefaultLeeway absorbs clock skew between issuer and verifier
const DefaultLeeway = 5 * time.Second

var validMethods = []string{jwt.SigningMethodEdDSA.Alg(), jwt.SigningMethodES256.Alg()}

// JWTTokenizer signs Quick Auth style tokens
type JWTTokenizer struct {
	signKey crypto.Signer
	method  jwt.SigningMethod
	keyID   string
}

// NewJWTTokenizer creates a tokenizer for an ed25519 or P-256 private key
func NewJWTTokenizer(signKey crypto.Signer, keyID string) (ports.TokenIssuer, error) {
	var method jwt.SigningMethod
	switch signKey.(type) {
	case ed25519.PrivateKey:
		method = jwt.SigningMethodEdDSA
	case *ecdsa.PrivateKey:
		method = jwt.SigningMethodES256
	default:
		return nil, fmt.Errorf("unsupported signing key %T", signKey)
	}

	return &JWTTokenizer{signKey: signKey, method: method, keyID: keyID}, nil
}

// Issue signs claims into a token. A missing ID gets a fresh UUID.
func (j *JWTTokenizer) Issue(claims core.Claims) (string, error) {
	id := claims.ID
	if id == "" {
		id = uuid.New().String()
	}

	token := jwt.NewWithClaims(j.method, QuickAuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Audience:  jwt.ClaimStrings{claims.Audience},
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ID:        id,
		},
		FID: json.Number(strconv.FormatUint(claims.FID, 10)),
	})
	if j.keyID != "" {
		token.Header["kid"] = j.keyID
	}

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// JWTVerifier implements the TokenVerifier interface against a KeySource
type JWTVerifier struct {
	keys   ports.KeySource
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewJWTVerifier creates a verifier. An empty issuer disables the iss check.
func NewJWTVerifier(keys ports.KeySource, issuer string) *JWTVerifier {
	return &JWTVerifier{
		keys:   keys,
		issuer: issuer,
		leeway: DefaultLeeway,
		now:    time.Now,
	}
}

// Verify checks signature, expiry, issuer and that audience is one of the
// token's audiences, compared exactly.
func (v *JWTVerifier) Verify(ctx context.Context, tokenStr string, audience string) (*core.Claims, error) {
	if audience == "" {
		return nil, core.ErrServerMisconfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &QuickAuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		if errors.Is(err, core.ErrKeyFetchFailed) {
			return nil, err
		}
		return nil, &core.TokenError{Reason: classify(err), Err: err}
	}

	claims, ok := token.Claims.(*QuickAuthClaims)
	if !ok || !token.Valid {
		return nil, &core.TokenError{Reason: core.TokenOther}
	}

	fid, err := strconv.ParseUint(claims.FID.String(), 10, 64)
	if err != nil || fid == 0 {
		return nil, &core.TokenError{Reason: core.TokenSubject, Err: err}
	}

	out := &core.Claims{
		FID:       fid,
		Audience:  audience,
		Issuer:    claims.Issuer,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}

	return out, nil
}

func classify(err error) core.TokenFailure {
	switch {
	case errors.Is(err, core.ErrUnknownKey):
		return core.TokenUnknownKey
	case errors.Is(err, jwt.ErrTokenMalformed):
		return core.TokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return core.TokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.TokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return core.TokenAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return core.TokenIssuer
	default:
		return core.TokenOther
	}
}
