package models

// User represents a local user account.
//
// Accounts are created implicitly: the first successful authentication for an
// email that has no local row provisions one ("log in = sign up"). The
// authentication flow never mutates an existing row.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"userId"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Email is the user's email address (unique).
	Email string `json:"email"`

	// ExternalID is the subject identifier assigned by the identity
	// provider, recorded at provisioning time. Empty for users created
	// directly through the API.
	ExternalID string `json:"externalId"`

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64 `json:"createdAt"`
}
