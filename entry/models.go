package entry

import (
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Kind string

const (
	KindExpense        Kind = "expense"
	KindSettlement     Kind = "settlement"
	KindSimplification Kind = "simplification"
)

// Entry is one durable ledger record. Kind selects which of the payload
// fields are meaningful: Payers/Splits for expenses, Settler/Details for
// settlements, Transfers for simplifications.
type Entry struct {
	types.Entity
	ID          id.EntryID        `json:"id"`
	GroupID     id.GroupID        `json:"group_id"`
	Kind        Kind              `json:"kind" validate:"oneof=expense settlement simplification"`
	Currency    string            `json:"currency" validate:"required,len=3,lowercase"`
	Description string            `json:"description,omitempty" validate:"max=500"`
	CreatedBy   types.Participant `json:"created_by,omitempty"`

	Payers []Share `json:"payers,omitempty" validate:"dive"`
	Splits []Share `json:"splits,omitempty" validate:"dive"`

	Settler types.Participant `json:"settler,omitempty"`
	Details []Share           `json:"details,omitempty" validate:"dive"`

	Transfers []Transfer `json:"transfers,omitempty" validate:"dive"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Share is one participant's part of an expense or settlement, in minor units.
type Share struct {
	Participant types.Participant `json:"participant" validate:"participant"`
	Amount      int64             `json:"amount" validate:"gt=0"`
}

// Transfer is a directed amount recorded by a simplification.
type Transfer struct {
	From   types.Participant `json:"from" validate:"participant"`
	To     types.Participant `json:"to" validate:"participant,nefield=From"`
	Amount int64             `json:"amount" validate:"gt=0"`
}

// NewID returns a fresh ID whose prefix encodes kind.
func NewID(kind Kind) id.EntryID {
	switch kind {
	case KindSettlement:
		return id.NewSettlementID()
	case KindSimplification:
		return id.NewSimplificationID()
	default:
		return id.NewExpenseID()
	}
}

// KindOf returns the kind encoded in an entry ID's prefix.
func KindOf(entryID id.EntryID) (Kind, bool) {
	switch entryID.Prefix() {
	case id.PrefixExpense:
		return KindExpense, true
	case id.PrefixSettlement:
		return KindSettlement, true
	case id.PrefixSimplification:
		return KindSimplification, true
	default:
		return "", false
	}
}

// Total returns the sum of share amounts.
func Total(shares []Share) int64 {
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	return sum
}

// Participants returns every participant the entry touches, sorted and deduplicated.
func (e *Entry) Participants() []types.Participant {
	ps := make([]types.Participant, 0, len(e.Payers)+len(e.Splits)+len(e.Details)+2*len(e.Transfers)+1)
	switch e.Kind {
	case KindExpense:
		for _, s := range e.Payers {
			ps = append(ps, s.Participant)
		}
		for _, s := range e.Splits {
			ps = append(ps, s.Participant)
		}
	case KindSettlement:
		ps = append(ps, e.Settler)
		for _, s := range e.Details {
			ps = append(ps, s.Participant)
		}
	case KindSimplification:
		for _, t := range e.Transfers {
			ps = append(ps, t.From, t.To)
		}
	}
	return types.UniqueParticipants(ps...)
}

// Involves reports whether p appears anywhere in the entry.
func (e *Entry) Involves(p types.Participant) bool {
	for _, q := range e.Participants() {
		if q == p {
			return true
		}
	}
	return false
}
