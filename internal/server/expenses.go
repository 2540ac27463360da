package server

import (
	"net/http"

	"github.com/mmynk/billparty/internal/models"
)

type expenseRequest struct {
	PartyID      string                `json:"partyId"`
	PayerID      string                `json:"payerId"`
	Description  string                `json:"description"`
	Amount       float64               `json:"amount"`
	Participants []models.ExpenseShare `json:"participants"`
}

// handleExpenses serves the expense collection: POST creates an expense with
// its participant shares.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	missing := requireFields(
		[2]string{"partyId", req.PartyID},
		[2]string{"payerId", req.PayerID},
		[2]string{"description", req.Description},
	)
	if req.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	expense := &models.Expense{
		PartyID:      req.PartyID,
		PayerID:      req.PayerID,
		Description:  req.Description,
		Amount:       req.Amount,
		Participants: req.Participants,
	}
	if err := s.store.CreateExpense(r.Context(), expense); err != nil {
		s.storeError(w, r, err)
		return
	}

	s.logger.Info("expense created", "expense_id", expense.ID, "party_id", expense.PartyID)
	s.writeJSON(w, http.StatusCreated, expense)
}

// handleExpenseByID serves a single expense: GET, PUT, DELETE.
func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		expense, err := s.store.GetExpense(r.Context(), id)
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, expense)
	case http.MethodPut:
		s.updateExpense(w, r, id)
	case http.MethodDelete:
		if err := s.store.DeleteExpense(r.Context(), id); err != nil {
			s.storeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request, id string) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	missing := requireFields(
		[2]string{"payerId", req.PayerID},
		[2]string{"description", req.Description},
	)
	if req.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	expense := &models.Expense{
		ID:           id,
		PayerID:      req.PayerID,
		Description:  req.Description,
		Amount:       req.Amount,
		Participants: req.Participants,
	}
	if err := s.store.UpdateExpense(r.Context(), expense); err != nil {
		s.storeError(w, r, err)
		return
	}

	// Echo the persisted row, not the request, so partyId and the
	// creation time come back populated.
	updated, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}
