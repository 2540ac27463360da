// Package auth implements token validation against an external identity
// provider and session resolution with first-login user provisioning.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// expiryLeeway is how far past nominal expiry a token is still accepted.
const expiryLeeway = 5 * time.Minute

// legacyNameIdentifierClaim is the pre-OIDC subject claim some providers
// still emit; used as a fallback when sub is absent.
const legacyNameIdentifierClaim = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"

// IdentityClaims are the verified identity attributes extracted from a
// token. They live for the duration of one request.
type IdentityClaims struct {
	// Subject is the identity provider's opaque subject identifier.
	Subject string
	// Email may be empty for tokens that do not carry it.
	Email string
	// Name is the best available display name; may be empty.
	Name string
	// Groups are the provider-side group memberships.
	Groups []string

	// LocalUserID is the local user row matching Email, attached by the
	// session resolver. Empty means no local record exists yet.
	LocalUserID string
}

// TokenValidator verifies bearer tokens against the issuer's published
// signing keys and the configured issuer/audience.
//
// Audience validation is deliberately conditional: tokens that carry no aud
// claim skip it, so pure access-token flows keep working. Whether aud should
// ever be mandatory is an open product question; do not tighten here without
// a decision.
type TokenValidator struct {
	issuer   string
	clientID string
	keys     *KeyCache
	parser   *jwt.Parser
	logger   *slog.Logger
}

// NewTokenValidator creates a validator for the given issuer and client ID.
func NewTokenValidator(issuer, clientID string, keys *KeyCache, logger *slog.Logger) *TokenValidator {
	return &TokenValidator{
		issuer:   issuer,
		clientID: clientID,
		keys:     keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(expiryLeeway),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}
}

// Validate verifies the token's signature and claims and extracts the
// identity. Every failure comes back as a wrapped ErrInvalidToken; callers
// treat any error as "unauthenticated" and must not propagate it further.
func (v *TokenValidator) Validate(ctx context.Context, rawToken string) (*IdentityClaims, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(rawToken, claims, v.keyfunc(ctx))
	if err != nil {
		v.logger.Debug("token validation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// Audience only matters when the token carries one.
	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(aud) > 0 && !containsAudience(aud, v.clientID) {
		v.logger.Debug("token audience mismatch", "audience", []string(aud))
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}

	identity := &IdentityClaims{
		Subject: stringClaim(claims, "sub", legacyNameIdentifierClaim),
		Email:   stringClaim(claims, "email"),
		Name:    stringClaim(claims, "name", "given_name", "cognito:username"),
		Groups:  stringSliceClaim(claims, "cognito:groups"),
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return identity, nil
}

// keyfunc resolves the verification key for a token. A known kid selects its
// key directly; otherwise every key in the set is a candidate.
func (v *TokenValidator) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		keys, err := v.keys.Keys(ctx, v.issuer)
		if err != nil {
			return nil, err
		}

		if kid, ok := token.Header["kid"].(string); ok {
			if key, ok := keys[kid]; ok {
				return key, nil
			}
		}

		set := jwt.VerificationKeySet{}
		for _, key := range keys {
			set.Keys = append(set.Keys, key)
		}
		return set, nil
	}
}

func containsAudience(aud jwt.ClaimStrings, clientID string) bool {
	for _, a := range aud {
		if a == clientID {
			return true
		}
	}
	return false
}

// stringClaim returns the first non-empty string claim among keys.
func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func stringSliceClaim(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
