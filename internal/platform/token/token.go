// Package token issues and validates the HMAC-signed access tokens carrying
// the acting user's identity.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tally/internal/ddd"
)

// Claims are the token claims for an acting user.
type Claims struct {
	ActorID        string `json:"actorId"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Mobile         string `json:"mobile,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the domain actor shape.
func (c *Claims) Actor() ddd.Actor {
	return ddd.Actor{
		ID:             c.ActorID,
		OrganizationID: c.OrganizationID,
		Name:           c.Name,
		Email:          c.Email,
		Mobile:         c.Mobile,
	}
}

var ErrInvalidToken = errors.New("invalid token")

// Service signs and validates access tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Generate signs a token for the actor. Used by tests and tooling; token
// issuance in production belongs to the identity provider.
func (s *Service) Generate(actor ddd.Actor, expiresIn time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID:        actor.ID,
		OrganizationID: actor.OrganizationID,
		Name:           actor.Name,
		Email:          actor.Email,
		Mobile:         actor.Mobile,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return t.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a signed token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
