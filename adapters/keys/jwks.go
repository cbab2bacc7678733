package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

var (
	// ErrUnsupportedKey is returned for JWKs this package cannot turn into a verification key
	ErrUnsupportedKey = errors.New("unsupported key")

	// ErrEmptyKeySet is returned when a document holds no usable key
	ErrEmptyKeySet = errors.New("key set holds no usable keys")
)

// JWK is a single JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
}

// JWKS is a JSON Web Key Set document
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeySet maps key IDs to verification keys
type KeySet map[string]crypto.PublicKey

// ParseJWKS decodes a JWKS document. Keys of unsupported types and keys used
// for encryption are skipped; at least one usable key must remain.
func ParseJWKS(doc []byte) (KeySet, error) {
	var jwks JWKS
	if err := json.Unmarshal(doc, &jwks); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}

	set := make(KeySet, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		key, err := jwk.PublicKey()
		if err != nil {
			continue
		}
		set[jwk.Kid] = key
	}

	if len(set) == 0 {
		return nil, ErrEmptyKeySet
	}

	return set, nil
}

// PublicKey converts the JWK into an ed25519 or ecdsa public key
func (k JWK) PublicKey() (crypto.PublicKey, error) {
	switch {
	case k.Kty == "OKP" && k.Crv == "Ed25519":
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("failed to decode x: %w", err)
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("ed25519 key must be %d bytes: %w", ed25519.PublicKeySize, ErrUnsupportedKey)
		}
		return ed25519.PublicKey(x), nil

	case k.Kty == "EC" && k.Crv == "P-256":
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("failed to decode x: %w", err)
		}
		y, err := base64.RawURLEncoding.DecodeString(k.Y)
		if err != nil {
			return nil, fmt.Errorf("failed to decode y: %w", err)
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, fmt.Errorf("point not on curve: %w", ErrUnsupportedKey)
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("kty %q crv %q: %w", k.Kty, k.Crv, ErrUnsupportedKey)
	}
}

// NewJWK builds a signing JWK for an ed25519 or P-256 public key
func NewJWK(kid string, key crypto.PublicKey) (JWK, error) {
	switch pub := key.(type) {
	case ed25519.PublicKey:
		return JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pub),
			Kid: kid,
			Alg: "EdDSA",
			Use: "sig",
		}, nil

	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return JWK{}, fmt.Errorf("curve %s: %w", pub.Curve.Params().Name, ErrUnsupportedKey)
		}
		x := make([]byte, 32)
		y := make([]byte, 32)
		pub.X.FillBytes(x)
		pub.Y.FillBytes(y)
		return JWK{
			Kty: "EC",
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(x),
			Y:   base64.RawURLEncoding.EncodeToString(y),
			Kid: kid,
			Alg: "ES256",
			Use: "sig",
		}, nil

	default:
		return JWK{}, fmt.Errorf("%T: %w", key, ErrUnsupportedKey)
	}
}

// MarshalJWKS encodes the set as a JWKS document, ordered by key ID
func (s KeySet) MarshalJWKS() ([]byte, error) {
	kids := make([]string, 0, len(s))
	for kid := range s {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	jwks := JWKS{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		jwk, err := NewJWK(kid, s[kid])
		if err != nil {
			return nil, err
		}
		jwks.Keys = append(jwks.Keys, jwk)
	}

	return json.Marshal(jwks)
}

// lookup picks the key for kid from the set
func (s KeySet) lookup(kid string) (crypto.PublicKey, bool) {
	if kid == "" {
		if len(s) != 1 {
			return nil, false
		}
		for _, key := range s {
			return key, true
		}
	}

	key, ok := s[kid]
	return key, ok
}
