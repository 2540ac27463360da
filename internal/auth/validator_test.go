package auth

import (
	"context"
	"crypto/rsa"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "billparty-web"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signToken signs claims with the key, setting the kid header when non-empty.
func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// newValidator spins up a JWKS endpoint for key and builds a validator whose
// issuer is the test server URL.
func newValidator(t *testing.T, key *rsa.PrivateKey) (*TokenValidator, string) {
	t.Helper()
	srv := httptest.NewServer(jwksHandler(map[string]*rsa.PrivateKey{"key-1": key}, false))
	t.Cleanup(srv.Close)

	cache := NewKeyCache(nil, time.Minute)
	return NewTokenValidator(srv.URL, testClientID, cache, discardLogger()), srv.URL
}

func baseClaims(issuer string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   issuer,
		"sub":   "idp|12345",
		"email": "alice@example.com",
		"name":  "Alice",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestValidateAcceptsValidToken(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)

	claims := baseClaims(issuer)
	claims["aud"] = testClientID
	claims["cognito:groups"] = []string{"admins", "travelers"}

	identity, err := validator.Validate(context.Background(), signToken(t, key, "key-1", claims))
	require.NoError(t, err)
	assert.Equal(t, "idp|12345", identity.Subject)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, []string{"admins", "travelers"}, identity.Groups)
	assert.Empty(t, identity.LocalUserID)
}

func TestValidateExpiryLeeway(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)
	ctx := context.Background()

	// 4 minutes past expiry is within the 5 minute leeway.
	claims := baseClaims(issuer)
	claims["exp"] = time.Now().Add(-4 * time.Minute).Unix()
	_, err := validator.Validate(ctx, signToken(t, key, "key-1", claims))
	assert.NoError(t, err)

	// 10 minutes past is not.
	claims = baseClaims(issuer)
	claims["exp"] = time.Now().Add(-10 * time.Minute).Unix()
	_, err = validator.Validate(ctx, signToken(t, key, "key-1", claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAudienceOptional(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)
	ctx := context.Background()

	// No aud claim at all: accepted (access-token flow).
	_, err := validator.Validate(ctx, signToken(t, key, "key-1", baseClaims(issuer)))
	assert.NoError(t, err)

	// Present but mismatched: rejected.
	claims := baseClaims(issuer)
	claims["aud"] = "some-other-client"
	_, err = validator.Validate(ctx, signToken(t, key, "key-1", claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	key := testKey(t)
	validator, _ := newValidator(t, key)

	claims := baseClaims("https://evil.example.com")
	_, err := validator.Validate(context.Background(), signToken(t, key, "key-1", claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsUnknownKey(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)

	// Signed by a key the JWKS endpoint does not publish.
	rogue := testKey(t)
	_, err := validator.Validate(context.Background(), signToken(t, rogue, "rogue", baseClaims(issuer)))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTriesAllKeysWithoutKid(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)

	_, err := validator.Validate(context.Background(), signToken(t, key, "", baseClaims(issuer)))
	assert.NoError(t, err)
}

func TestValidateRejectsHMAC(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims(issuer))
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateClaimFallbacks(t *testing.T) {
	key := testKey(t)
	validator, issuer := newValidator(t, key)
	ctx := context.Background()

	t.Run("legacy name identifier as subject", func(t *testing.T) {
		claims := baseClaims(issuer)
		delete(claims, "sub")
		claims[legacyNameIdentifierClaim] = "legacy|99"

		identity, err := validator.Validate(ctx, signToken(t, key, "key-1", claims))
		require.NoError(t, err)
		assert.Equal(t, "legacy|99", identity.Subject)
	})

	t.Run("given_name then username as display name", func(t *testing.T) {
		claims := baseClaims(issuer)
		delete(claims, "name")
		claims["given_name"] = "Ally"

		identity, err := validator.Validate(ctx, signToken(t, key, "key-1", claims))
		require.NoError(t, err)
		assert.Equal(t, "Ally", identity.Name)

		delete(claims, "given_name")
		claims["cognito:username"] = "alice42"
		identity, err = validator.Validate(ctx, signToken(t, key, "key-1", claims))
		require.NoError(t, err)
		assert.Equal(t, "alice42", identity.Name)
	})

	t.Run("missing subject entirely is rejected", func(t *testing.T) {
		claims := baseClaims(issuer)
		delete(claims, "sub")

		_, err := validator.Validate(ctx, signToken(t, key, "key-1", claims))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
