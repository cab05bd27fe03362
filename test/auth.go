package test

import (
	"os"
	"testing"
	"time"

	"github.com/greenbudget/backend/internal/auth"
	"github.com/stretchr/testify/require"
)

// Authorization returns the header that authenticates requests as the actor.
//
// The token is signed with the secret in JWT_SECRET.
func Authorization(t *testing.T, actor auth.Actor) map[string]string {
	secret, ok := os.LookupEnv("JWT_SECRET")
	require.True(t, ok, "environment variable JWT_SECRET must be set")

	token, err := auth.NewParser(secret).Sign(actor, time.Hour)
	require.Nil(t, err, "Token could not be signed")

	return map[string]string{"Authorization": "Bearer " + token}
}
