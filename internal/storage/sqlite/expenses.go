package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/billparty/internal/models"
	"github.com/mmynk/billparty/internal/storage"
)

// CreateExpense persists an expense and its participant shares in one
// transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses (id, party_id, payer_id, description, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		expense.ID, expense.PartyID, expense.PayerID, expense.Description, expense.Amount, expense.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertParticipants(ctx, tx, expense.ID, expense.Participants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense and its participant shares.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	expense := &models.Expense{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, party_id, payer_id, description, amount, created_at FROM expenses WHERE id = ?",
		id,
	).Scan(&expense.ID, &expense.PartyID, &expense.PayerID, &expense.Description, &expense.Amount, &expense.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, share FROM expense_participants WHERE expense_id = ? ORDER BY user_id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense participants: %w", err)
	}
	defer rows.Close()

	expense.Participants = []models.ExpenseShare{}
	for rows.Next() {
		var share models.ExpenseShare
		if err := rows.Scan(&share.UserID, &share.Share); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		expense.Participants = append(expense.Participants, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return expense, nil
}

// UpdateExpense replaces the expense row and its participant list in one
// transaction.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET payer_id = ?, description = ?, amount = ? WHERE id = ?",
		expense.PayerID, expense.Description, expense.Amount, expense.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM expense_participants WHERE expense_id = ?", expense.ID,
	); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, expense.ID, expense.Participants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense; participant rows cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, expenseID string, shares []models.ExpenseShare) error {
	for _, share := range shares {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, user_id, share) VALUES (?, ?, ?)",
			expenseID, share.UserID, share.Share,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return nil
}
