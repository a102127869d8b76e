// Package auth builds the JWT used to authorize the Meeting SDK.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// TokenValidity is how long a generated SDK token stays valid.
const TokenValidity = 24 * time.Hour

var (
	ErrEmptyKey    = errors.New("auth: app key is empty")
	ErrEmptySecret = errors.New("auth: app secret is empty")
)

// Token is a signed SDK JWT together with its validity window.
type Token struct {
	Raw       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the claims carried by an SDK JWT.
type Claims struct {
	jwt.Claims
	AppKey   string `json:"appKey"`
	TokenExp int64  `json:"tokenExp"`
}

// GenerateJWT signs an HS256 token for the given app key. The token is
// issued at now and expires TokenValidity later; tokenExp repeats exp.
func GenerateJWT(key, secret string, now time.Time) (Token, error) {
	if key == "" {
		return Token{}, ErrEmptyKey
	}
	if secret == "" {
		return Token{}, ErrEmptySecret
	}

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return Token{}, fmt.Errorf("auth: create signer: %w", err)
	}

	iat := now.UTC().Truncate(time.Second)
	exp := iat.Add(TokenValidity)

	cl := Claims{
		Claims: jwt.Claims{
			IssuedAt: jwt.NewNumericDate(iat),
			Expiry:   jwt.NewNumericDate(exp),
		},
		AppKey:   key,
		TokenExp: exp.Unix(),
	}

	raw, err := jwt.Signed(sig).Claims(cl).Serialize()
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return Token{Raw: raw, IssuedAt: iat, ExpiresAt: exp}, nil
}

// ParseJWT verifies the signature of raw with secret and checks that the
// token is valid at now.
func ParseJWT(raw, secret string, now time.Time) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, err
	}

	out := &Claims{}
	if err := tok.Claims([]byte(secret), out); err != nil {
		return nil, err
	}

	if err := out.Claims.Validate(jwt.Expected{Time: now.UTC()}); err != nil {
		return nil, err
	}
	return out, nil
}
