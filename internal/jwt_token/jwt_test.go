package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/requestcontext"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var subject = "staff-7"
var roles = []string{requestcontext.RoleStaff}
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(subject, roles, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Subject)
	assert.Equal(t, roles, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "invalid token", err.Error())
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(subject, roles, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", err.Error())
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer", "test-audience")
	token, err := other.GenerateAccessToken(subject, roles, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_FileTokens(t *testing.T) {
	token, err := jwtService.SignFile("results/case-1/poa-adult-1.pdf", time.Minute)
	require.NoError(t, err)

	t.Run("valid for its key", func(t *testing.T) {
		assert.NoError(t, jwtService.VerifyFile(token, "results/case-1/poa-adult-1.pdf"))
	})
	t.Run("rejected for another key", func(t *testing.T) {
		err := jwtService.VerifyFile(token, "results/case-2/poa-adult-1.pdf")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
	t.Run("not usable as a bearer token", func(t *testing.T) {
		_, err := jwtService.ValidateToken(token)
		assert.Error(t, err)
	})
	t.Run("bearer token is not a file token", func(t *testing.T) {
		access, err := jwtService.GenerateAccessToken("results/case-1/poa-adult-1.pdf", nil, time.Minute)
		require.NoError(t, err)
		assert.Error(t, jwtService.VerifyFile(access, "results/case-1/poa-adult-1.pdf"))
	})
}

func Test_PrincipalValidator(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(subject, []string{requestcontext.RoleAdmin}, expiresIn)
	require.NoError(t, err)

	p, err := NewPrincipalValidator(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject, p.ID)
	assert.True(t, p.IsAdmin())
}
