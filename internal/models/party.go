package models

// Party represents a group of people who split expenses together.
type Party struct {
	// ID is the unique identifier for the party (UUID format).
	ID string `json:"partyId"`

	// OwnerID is the user who created the party.
	OwnerID string `json:"ownerId"`

	// Name is the display name of the party (e.g., "Ski Trip").
	Name string `json:"name"`

	// CreatedAt is the Unix timestamp when the party was created.
	CreatedAt int64 `json:"createdAt"`
}

// BillImage is an uploaded receipt image attached to a party.
type BillImage struct {
	// ID is the unique identifier for the image record (UUID format).
	ID string `json:"billId"`

	// FileTitle is the original file name of the upload.
	FileTitle string `json:"fileTitle"`

	// PartyID is the party this image belongs to.
	PartyID string `json:"partyId"`

	// ImageURL is the publicly resolvable object-storage URL.
	ImageURL string `json:"imageUrl"`
}

// Participant is one expense participant with their user projection and the
// amount of the expense assigned to them.
type Participant struct {
	User  User    `json:"user"`
	Share float64 `json:"share"`
}

// Contributor is a party member annotated with their user projection.
type Contributor struct {
	User User `json:"user"`
}

// ExpenseDetail is an expense as it appears inside a party aggregate,
// carrying its fully resolved participant list.
type ExpenseDetail struct {
	ID           string        `json:"expenseId"`
	PartyID      string        `json:"partyId"`
	PayerID      string        `json:"payerId"`
	Description  string        `json:"description"`
	Amount       float64       `json:"amount"`
	CreatedAt    int64         `json:"createdAt"`
	Participants []Participant `json:"participants"`
}

// PartyAggregate is the full read-side view of a party: the party row, its
// owner, every expense with participants, the contributor list, and the bill
// images. All collections are present even when empty — consumers rely on
// empty lists, never null.
//
// The aggregate is reconstructed by one database statement, so the nested
// collections always reflect a single point-in-time snapshot.
type PartyAggregate struct {
	ID           string          `json:"partyId"`
	Name         string          `json:"name"`
	CreatedAt    int64           `json:"createdAt"`
	Owner        User            `json:"owner"`
	Expenses     []ExpenseDetail `json:"expenses"`
	Contributors []Contributor   `json:"contributors"`
	BillImages   []BillImage     `json:"billImages"`
}
