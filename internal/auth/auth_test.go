package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", digest)

	assert.True(t, hasher.Verify("s3cret", digest))
	assert.False(t, hasher.Verify("wrong", digest))
	assert.False(t, hasher.Verify("s3cret", "not-a-digest"))
}

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.Issue(SubjectForUser(42), time.Minute)
	require.NoError(t, err)

	subject, err := svc.Resolve(token)
	require.NoError(t, err)
	id, err := UserIDFromSubject(subject)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("test-secret")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.Issue("7", time.Minute)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTServiceRejectsForeignSignatures(t *testing.T) {
	token, err := NewJWTService("other-secret").Issue("7", time.Minute)
	require.NoError(t, err)

	_, err = NewJWTService("test-secret").Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "7"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewJWTService("test-secret").Resolve(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("test-secret").Resolve("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserIDFromSubject(t *testing.T) {
	_, err := UserIDFromSubject("alice")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = UserIDFromSubject("0")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
