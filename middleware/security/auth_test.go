package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectify/tools/errs"
)

func TestSignAndVerify(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.SignToken("alice", time.Minute)
	require.NoError(t, err)

	userID, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.SignToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyToken(token)
	require.Error(t, err)
	assert.Equal(t, errs.TokenExpired, errs.Code(err))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewVerifier("secret-a")
	verifier := NewVerifier("secret-b")

	token, err := signer.SignToken("alice", time.Minute)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.Error(t, err)
	assert.Equal(t, errs.TokenInvalid, errs.Code(err))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier("test-secret")

	_, err := v.VerifyToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, errs.TokenInvalid, errs.Code(err))
}
