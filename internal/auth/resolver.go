package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/billparty/internal/models"
	"github.com/mmynk/billparty/internal/storage"
)

// AccessTokenCookie is the cookie the dashboard stores the bearer token in.
const AccessTokenCookie = "billparty_access_token"

// UserStore is the slice of user persistence the resolver needs.
// This allows the resolver to be independent of the storage implementation.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertUserByEmail(ctx context.Context, user *models.User) (*models.User, error)
}

// TokenVerifier validates a raw bearer token. Implemented by
// *TokenValidator.
type TokenVerifier interface {
	Validate(ctx context.Context, rawToken string) (*IdentityClaims, error)
}

// SessionResolver turns an inbound HTTP request into an authenticated
// identity and provisions local user rows on first sight.
//
// There is no separate registration step: a valid token whose email has no
// local row creates one ("log in = sign up").
type SessionResolver struct {
	validator TokenVerifier
	users     UserStore
	logger    *slog.Logger
}

// NewSessionResolver creates a session resolver.
func NewSessionResolver(validator TokenVerifier, users UserStore, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{
		validator: validator,
		users:     users,
		logger:    logger,
	}
}

// Resolve extracts a bearer token from the request, validates it, and
// attaches the local user ID matching the claims' email (empty when no local
// record exists yet). Every failure, including internal ones, comes back as
// an authentication error — callers answer 401, never 500.
func (r *SessionResolver) Resolve(ctx context.Context, req *http.Request) (*IdentityClaims, error) {
	rawToken, err := extractToken(req)
	if err != nil {
		return nil, err
	}

	claims, err := r.validator.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	if claims.Email != "" {
		user, err := r.users.GetUserByEmail(ctx, claims.Email)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// Not provisioned yet; LocalUserID stays empty.
		case err != nil:
			r.logger.Warn("local user lookup failed", "email", claims.Email, "error", err)
			return nil, fmt.Errorf("%w: user lookup failed", ErrInvalidToken)
		default:
			claims.LocalUserID = user.ID
		}
	}

	return claims, nil
}

// EnsureProvisioned returns the local user ID for the identity, creating the
// row on first sight. The create is a single atomic upsert-by-email, so
// concurrent first logins for the same email both receive the same ID and at
// most one row is ever inserted.
func (r *SessionResolver) EnsureProvisioned(ctx context.Context, claims *IdentityClaims) (string, error) {
	if claims.LocalUserID != "" {
		return claims.LocalUserID, nil
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: token carries no email", ErrInvalidToken)
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	user, err := r.users.UpsertUserByEmail(ctx, &models.User{
		Name:       name,
		Email:      claims.Email,
		ExternalID: claims.Subject,
	})
	if err != nil {
		r.logger.Error("user provisioning failed", "email", claims.Email, "error", err)
		return "", fmt.Errorf("%w: provisioning failed", ErrInvalidToken)
	}

	r.logger.Info("provisioned local user", "user_id", user.ID, "email", user.Email)
	claims.LocalUserID = user.ID
	return user.ID, nil
}

// extractToken pulls the bearer token from the Authorization header, the
// access-token cookie, or the token query parameter, in that priority order.
func extractToken(req *http.Request) (string, error) {
	if header := req.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], nil
		}
	}

	if cookie, err := req.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if token := req.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", ErrMissingToken
}
