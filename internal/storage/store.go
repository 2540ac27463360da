// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/billparty/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	// It is a normal domain outcome, not an infrastructure failure.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a write would violate the
	// unique constraint on user email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrMalformedAggregate is returned when the structured document
	// produced by the aggregate query cannot be decoded.
	ErrMalformedAggregate = errors.New("malformed aggregate document")
)

// UserStore defines user persistence operations.
type UserStore interface {
	// CreateUser inserts a new user. ID and CreatedAt are populated if
	// unset. Returns ErrDuplicateEmail on an email collision.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpsertUserByEmail inserts the user or, when a row with the same
	// email already exists, returns that row. The check and the insert
	// are one atomic statement, so concurrent first-time logins for the
	// same email both receive the same row.
	UpsertUserByEmail(ctx context.Context, user *models.User) (*models.User, error)

	// UpdateUser updates name and email. Returns ErrNotFound or
	// ErrDuplicateEmail as applicable.
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser removes a user. Returns ErrNotFound if absent.
	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns all users ordered by creation time.
	ListUsers(ctx context.Context) ([]models.User, error)
}

// PartyStore defines party persistence operations.
type PartyStore interface {
	// CreateParty persists a new party. ID and CreatedAt are populated
	// if unset. Returns ErrNotFound when the owner does not exist.
	CreateParty(ctx context.Context, party *models.Party) error

	// GetPartyAggregate reconstructs the full party graph (owner,
	// expenses with participants, contributors, bill images) in one
	// query. Returns ErrNotFound for an unknown ID and
	// ErrMalformedAggregate when the document fails to decode.
	GetPartyAggregate(ctx context.Context, id string) (*models.PartyAggregate, error)

	// DeleteParty removes a party and, via cascading constraints, its
	// expenses, contributors, and bill images. Returns ErrNotFound.
	DeleteParty(ctx context.Context, id string) error

	// AddContributor adds a user to a party's contributor list.
	// Adding the same user twice is a no-op. Returns ErrNotFound when
	// the party or user does not exist.
	AddContributor(ctx context.Context, partyID, userID string) error

	// AddBillImage records an uploaded receipt image for a party.
	// Returns ErrNotFound when the party does not exist.
	AddBillImage(ctx context.Context, image *models.BillImage) error

	// ListPartiesByMember returns parties the user owns or contributes to.
	ListPartiesByMember(ctx context.Context, userID string) ([]models.Party, error)
}

// ExpenseStore defines expense persistence operations.
type ExpenseStore interface {
	// CreateExpense persists an expense and its participant shares in
	// one transaction. ID and CreatedAt are populated if unset. Returns
	// ErrNotFound when the party, payer, or a participant does not exist.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense and its participant shares.
	// Returns ErrNotFound if absent.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// UpdateExpense replaces the expense row and its participant list
	// in one transaction. Returns ErrNotFound if absent.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its participant shares.
	// Returns ErrNotFound if absent.
	DeleteExpense(ctx context.Context, id string) error
}

// Store is the full storage surface consumed by the HTTP handlers.
type Store interface {
	UserStore
	PartyStore
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}
