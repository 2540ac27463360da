package models

// Expense represents a single payment within a party.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"expenseId"`

	// PartyID is the party this expense belongs to.
	PartyID string `json:"partyId"`

	// PayerID is the user who paid the expense.
	PayerID string `json:"payerId"`

	// Description is what the expense was for (e.g., "Groceries").
	Description string `json:"description"`

	// Amount is the total amount paid.
	Amount float64 `json:"amount"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"createdAt"`

	// Participants lists who splits this expense and their shares.
	Participants []ExpenseShare `json:"participants"`
}

// ExpenseShare assigns part of an expense to one user.
// A zero Share across all participants of an expense means "split equally".
type ExpenseShare struct {
	UserID string  `json:"userId"`
	Share  float64 `json:"share"`
}
