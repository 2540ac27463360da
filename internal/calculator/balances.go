// Package calculator provides pure balance math over party aggregates.
package calculator

import (
	"sort"

	"github.com/mmynk/billparty/internal/models"
)

// epsilon absorbs floating point noise when comparing settled balances.
const epsilon = 0.01

// MemberBalance represents the balance information for one party member.
type MemberBalance struct {
	UserID     string  `json:"userId"`
	TotalPaid  float64 `json:"totalPaid"`  // Total amount paid across all expenses
	TotalOwed  float64 `json:"totalOwed"`  // Total amount this person owes
	NetBalance float64 `json:"netBalance"` // Positive = owed money, negative = owes money
}

// SettlementEdge represents one suggested payment to clear debts.
type SettlementEdge struct {
	FromUserID string  `json:"fromUserId"` // Person who owes
	ToUserID   string  `json:"toUserId"`   // Person who is owed
	Amount     float64 `json:"amount"`
}

// PartyBalances computes per-member balances for a party and a minimal set
// of settlement payments.
//
// Algorithm:
//   - For each expense: the payer contributed +amount, each participant owes
//     their share (equal split when no explicit shares are recorded)
//   - net_balance = total_paid - total_owed
//   - Settlements: greedy matching of debtors against creditors
func PartyBalances(agg *models.PartyAggregate) ([]MemberBalance, []SettlementEdge) {
	balances := make(map[string]*MemberBalance)
	member := func(userID string) *MemberBalance {
		if b, ok := balances[userID]; ok {
			return b
		}
		b := &MemberBalance{UserID: userID}
		balances[userID] = b
		return b
	}

	for _, expense := range agg.Expenses {
		if expense.PayerID == "" {
			continue
		}

		member(expense.PayerID).TotalPaid += expense.Amount

		for _, p := range expense.Participants {
			member(p.User.ID).TotalOwed += participantShare(expense, p)
		}
	}

	for _, bal := range balances {
		bal.NetBalance = bal.TotalPaid - bal.TotalOwed
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, bal := range balances {
		memberBalances = append(memberBalances, *bal)
	}
	// Stable output order for consumers and tests.
	sort.Slice(memberBalances, func(i, j int) bool {
		return memberBalances[i].UserID < memberBalances[j].UserID
	})

	return memberBalances, settle(memberBalances)
}

// participantShare returns the amount of the expense assigned to one
// participant: the recorded share when any participant carries one, an equal
// split otherwise.
func participantShare(expense models.ExpenseDetail, p models.Participant) float64 {
	for _, other := range expense.Participants {
		if other.Share != 0 {
			return p.Share
		}
	}
	if len(expense.Participants) == 0 {
		return 0
	}
	return expense.Amount / float64(len(expense.Participants))
}

// settle matches debtors with creditors greedily, producing the suggested
// payment list. Input must be sorted for deterministic edges.
func settle(balances []MemberBalance) []SettlementEdge {
	var debtors, creditors []MemberBalance
	for _, bal := range balances {
		if bal.NetBalance < -epsilon {
			debtors = append(debtors, bal)
		} else if bal.NetBalance > epsilon {
			creditors = append(creditors, bal)
		}
	}

	debtorOwes := make(map[string]float64)
	creditorDue := make(map[string]float64)
	for _, d := range debtors {
		debtorOwes[d.UserID] = -d.NetBalance
	}
	for _, c := range creditors {
		creditorDue[c.UserID] = c.NetBalance
	}

	var edges []SettlementEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := debtors[i].UserID
		creditor := creditors[j].UserID

		amount := debtorOwes[debtor]
		if creditorDue[creditor] < amount {
			amount = creditorDue[creditor]
		}

		if amount > epsilon {
			edges = append(edges, SettlementEdge{
				FromUserID: debtor,
				ToUserID:   creditor,
				Amount:     amount,
			})
		}

		debtorOwes[debtor] -= amount
		creditorDue[creditor] -= amount

		if debtorOwes[debtor] < epsilon {
			i++
		}
		if creditorDue[creditor] < epsilon {
			j++
		}
	}

	return edges
}
