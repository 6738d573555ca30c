package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/ddd"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("secret", "tally")
	actor := ddd.Actor{ID: "user-1", OrganizationID: "org-1", Name: "Alice", Email: "alice@example.com"}

	tok, err := svc.Generate(actor, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewService("secret", "tally")

	tok, err := svc.Generate(ddd.Actor{ID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	tok, err := NewService("secret-a", "tally").Generate(ddd.Actor{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewService("secret-b", "tally").ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewService("secret", "tally").ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
