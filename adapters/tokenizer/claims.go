package tokenizer

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// QuickAuthClaims are the claims of a Farcaster Quick Auth token.
// The subject is the fid and is encoded as a JSON number.
type QuickAuthClaims struct {
	jwt.RegisteredClaims
	FID json.Number `json:"sub"`
}

// GetSubject implements the jwt.Claims interface
func (c QuickAuthClaims) GetSubject() (string, error) {
	return c.FID.String(), nil
}
