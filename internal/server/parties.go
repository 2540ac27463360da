package server

import (
	"net/http"

	"github.com/mmynk/billparty/internal/calculator"
	"github.com/mmynk/billparty/internal/models"
)

type createPartyRequest struct {
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
}

type addContributorRequest struct {
	UserID string `json:"userId"`
}

type balancesResponse struct {
	Balances    []calculator.MemberBalance  `json:"balances"`
	Settlements []calculator.SettlementEdge `json:"settlements"`
}

// handleParties serves the party collection: GET lists the caller's parties,
// POST creates one. Both require authentication.
func (s *Server) handleParties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listParties(w, r)
	case http.MethodPost:
		s.createParty(w, r)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handlePartyByID serves a single party: GET returns the full aggregate,
// DELETE removes the party and everything attached to it.
func (s *Server) handlePartyByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodDelete:
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		agg, err := s.store.GetPartyAggregate(r.Context(), id)
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, agg)
	case http.MethodDelete:
		if err := s.store.DeleteParty(r.Context(), id); err != nil {
			s.storeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePartyContributors adds a user to a party's contributor list.
func (s *Server) handlePartyContributors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	var req addContributorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if missing := requireFields([2]string{"userId", req.UserID}); len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	if err := s.store.AddContributor(r.Context(), r.PathValue("id"), req.UserID); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePartyBalances computes per-member balances and suggested
// settlements from the party aggregate.
func (s *Server) handlePartyBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	agg, err := s.store.GetPartyAggregate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	balances, settlements := calculator.PartyBalances(agg)
	if balances == nil {
		balances = []calculator.MemberBalance{}
	}
	if settlements == nil {
		settlements = []calculator.SettlementEdge{}
	}
	s.writeJSON(w, http.StatusOK, balancesResponse{Balances: balances, Settlements: settlements})
}

func (s *Server) listParties(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	userID, err := s.sessions.EnsureProvisioned(r.Context(), claims)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	parties, err := s.store.ListPartiesByMember(r.Context(), userID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, parties)
}

func (s *Server) createParty(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req createPartyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The owner defaults to the authenticated user when not given.
	if req.OwnerID == "" {
		ownerID, err := s.sessions.EnsureProvisioned(r.Context(), claims)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		req.OwnerID = ownerID
	}

	if missing := requireFields(
		[2]string{"ownerId", req.OwnerID},
		[2]string{"name", req.Name},
	); len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	party := &models.Party{OwnerID: req.OwnerID, Name: req.Name}
	if err := s.store.CreateParty(r.Context(), party); err != nil {
		s.storeError(w, r, err)
		return
	}

	s.logger.Info("party created", "party_id", party.ID, "owner_id", party.OwnerID)
	s.writeJSON(w, http.StatusCreated, party)
}
