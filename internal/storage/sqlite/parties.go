package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/billparty/internal/models"
	"github.com/mmynk/billparty/internal/storage"
)

// partyAggregateQuery reconstructs the whole party graph as one JSON document
// in a single statement. Every nested collection is a correlated subquery
// that aggregates with json_group_array, so the result is one consistent
// snapshot: the expense list, contributor list, and image list can never
// reflect different transaction states.
//
// The json() wrappers are load-bearing: a subquery result loses SQLite's JSON
// subtype across the boundary, and without them the outer json_object would
// embed the nested documents as escaped strings. json_group_array over an
// empty set yields '[]', which satisfies the empty-list (never null) contract.
const partyAggregateQuery = `
SELECT json_object(
    'partyId', p.id,
    'name', p.name,
    'createdAt', p.created_at,
    'owner', json((
        SELECT json_object(
            'userId', u.id,
            'name', u.name,
            'email', u.email,
            'externalId', u.external_id,
            'createdAt', u.created_at)
        FROM users u
        WHERE u.id = p.owner_id)),
    'expenses', json((
        SELECT json_group_array(json_object(
            'expenseId', e.id,
            'partyId', e.party_id,
            'payerId', e.payer_id,
            'description', e.description,
            'amount', e.amount,
            'createdAt', e.created_at,
            'participants', json((
                SELECT json_group_array(json_object(
                    'user', json_object(
                        'userId', pu.id,
                        'name', pu.name,
                        'email', pu.email,
                        'externalId', pu.external_id,
                        'createdAt', pu.created_at),
                    'share', ep.share))
                FROM expense_participants ep
                JOIN users pu ON pu.id = ep.user_id
                WHERE ep.expense_id = e.id))))
        FROM expenses e
        WHERE e.party_id = p.id)),
    'contributors', json((
        SELECT json_group_array(json_object(
            'user', json_object(
                'userId', cu.id,
                'name', cu.name,
                'email', cu.email,
                'externalId', cu.external_id,
                'createdAt', cu.created_at)))
        FROM party_contributors pc
        JOIN users cu ON cu.id = pc.user_id
        WHERE pc.party_id = p.id)),
    'billImages', json((
        SELECT json_group_array(json_object(
            'billId', b.id,
            'fileTitle', b.file_title,
            'partyId', b.party_id,
            'imageUrl', b.image_url))
        FROM party_bill_images b
        WHERE b.party_id = p.id))
)
FROM parties p
WHERE p.id = ?`

// CreateParty persists a new party to the database.
func (s *SQLiteStore) CreateParty(ctx context.Context, party *models.Party) error {
	if party.ID == "" {
		party.ID = uuid.New().String()
	}
	if party.CreatedAt == 0 {
		party.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO parties (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)",
		party.ID, party.OwnerID, party.Name, party.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to create party: %w", err)
	}

	return nil
}

// GetPartyAggregate reconstructs the full party graph in one round trip and
// decodes the resulting document.
func (s *SQLiteStore) GetPartyAggregate(ctx context.Context, id string) (*models.PartyAggregate, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, partyAggregateQuery, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party aggregate: %w", err)
	}

	agg := &models.PartyAggregate{}
	if err := json.Unmarshal([]byte(doc), agg); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrMalformedAggregate, err)
	}

	return agg, nil
}

// DeleteParty removes a party; expenses, contributors, and bill images go
// with it via cascading foreign keys.
func (s *SQLiteStore) DeleteParty(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM parties WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete party: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete party: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddContributor adds a user to a party's contributor list.
func (s *SQLiteStore) AddContributor(ctx context.Context, partyID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO party_contributors (party_id, user_id) VALUES (?, ?)",
		partyID, userID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to add contributor: %w", err)
	}
	return nil
}

// AddBillImage records an uploaded receipt image for a party.
func (s *SQLiteStore) AddBillImage(ctx context.Context, image *models.BillImage) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO party_bill_images (id, file_title, party_id, image_url) VALUES (?, ?, ?, ?)",
		image.ID, image.FileTitle, image.PartyID, image.ImageURL,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to add bill image: %w", err)
	}
	return nil
}

// ListPartiesByMember returns parties the user owns or contributes to.
func (s *SQLiteStore) ListPartiesByMember(ctx context.Context, userID string) ([]models.Party, error) {
	query := `
		SELECT id, owner_id, name, created_at FROM parties
		WHERE owner_id = ?
		   OR id IN (SELECT party_id FROM party_contributors WHERE user_id = ?)
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	parties := []models.Party{}
	for rows.Next() {
		var party models.Party
		if err := rows.Scan(&party.ID, &party.OwnerID, &party.Name, &party.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parties: %w", err)
	}

	return parties, nil
}
