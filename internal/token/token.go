// Package token issues the signed session credential handed to clients at
// connect time. Verification is a collaborator concern; only issuance
// lives in the hub.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is the fixed credential lifetime from issuance.
const TTL = 2 * time.Hour

// ErrEmptySecret indicates the issuer was built without a signing secret.
var ErrEmptySecret = errors.New("signing secret is required")

// ErrEmptyClientID indicates a token was requested for no client.
var ErrEmptyClientID = errors.New("client id is required")

// Claims is the wire shape of a session token. The id and issuedAt fields
// are the contract with downstream verifiers; the registered claims carry
// the same instants in standard form.
type Claims struct {
	jwt.RegisteredClaims
	ID       string `json:"id"`
	IssuedAt int64  `json:"issuedAt"`
}

// Issuer signs session tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer builds an issuer from the session signing secret.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Issuer{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}, nil
}

// Issue signs a token embedding the client id and issue time, expiring
// TTL after issuance.
func (i *Issuer) Issue(clientID string) (string, error) {
	if i == nil || len(i.secret) == 0 {
		return "", ErrEmptySecret
	}
	if clientID == "" {
		return "", ErrEmptyClientID
	}

	issuedAt := i.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TTL)),
		},
		ID:       clientID,
		IssuedAt: issuedAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
