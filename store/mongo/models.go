package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// ==================== Group models ====================

type groupModel struct {
	grove.BaseModel `grove:"table:tally_groups"`

	ID        string            `grove:"id,pk"      bson:"_id"`
	Name      string            `grove:"name"       bson:"name"`
	Currency  string            `grove:"currency"   bson:"currency"`
	Members   []string          `grove:"members"    bson:"members"`
	CreatedBy string            `grove:"created_by" bson:"created_by"`
	Metadata  map[string]string `grove:"metadata"   bson:"metadata,omitempty"`
	CreatedAt time.Time         `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `grove:"updated_at" bson:"updated_at"`
}

func toGroupModel(g *group.Group) *groupModel {
	return &groupModel{
		ID:        g.ID.String(),
		Name:      g.Name,
		Currency:  g.Currency,
		Members:   participantsToStrings(g.Members),
		CreatedBy: string(g.CreatedBy),
		Metadata:  g.Metadata,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func fromGroupModel(m *groupModel) (*group.Group, error) {
	groupID, err := id.ParseGroupID(m.ID)
	if err != nil {
		return nil, err
	}
	return &group.Group{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        groupID,
		Name:      m.Name,
		Currency:  m.Currency,
		Members:   stringsToParticipants(m.Members),
		CreatedBy: types.Participant(m.CreatedBy),
		Metadata:  m.Metadata,
	}, nil
}

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:tally_entries"`

	ID          string `grove:"id,pk"       bson:"_id"`
	GroupID     string `grove:"group_id"    bson:"group_id"`
	Kind        string `grove:"kind"        bson:"kind"`
	Currency    string `grove:"currency"    bson:"currency"`
	Description string `grove:"description" bson:"description"`
	CreatedBy   string `grove:"created_by"  bson:"created_by"`
	// Seq is the id suffix; it breaks created_at ties in mint order.
	Seq          string            `grove:"seq"          bson:"seq"`
	Payers       []shareModel      `grove:"payers"       bson:"payers,omitempty"`
	Splits       []shareModel      `grove:"splits"       bson:"splits,omitempty"`
	Settler      string            `grove:"settler"      bson:"settler,omitempty"`
	Details      []shareModel      `grove:"details"      bson:"details,omitempty"`
	Transfers    []transferModel   `grove:"transfers"    bson:"transfers,omitempty"`
	Participants []string          `grove:"participants" bson:"participants"`
	Metadata     map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt    time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"   bson:"updated_at"`
}

type shareModel struct {
	Participant string `bson:"participant"`
	Amount      int64  `bson:"amount"`
}

type transferModel struct {
	From   string `bson:"from"`
	To     string `bson:"to"`
	Amount int64  `bson:"amount"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	transfers := make([]transferModel, len(e.Transfers))
	for i, t := range e.Transfers {
		transfers[i] = transferModel{From: string(t.From), To: string(t.To), Amount: t.Amount}
	}
	return &entryModel{
		ID:           e.ID.String(),
		GroupID:      e.GroupID.String(),
		Kind:         string(e.Kind),
		Currency:     e.Currency,
		Description:  e.Description,
		CreatedBy:    string(e.CreatedBy),
		Seq:          e.ID.Suffix(),
		Payers:       toShareModels(e.Payers),
		Splits:       toShareModels(e.Splits),
		Settler:      string(e.Settler),
		Details:      toShareModels(e.Details),
		Transfers:    transfers,
		Participants: participantsToStrings(e.Participants()),
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	groupID, err := id.ParseGroupID(m.GroupID)
	if err != nil {
		return nil, err
	}

	var transfers []entry.Transfer
	if len(m.Transfers) > 0 {
		transfers = make([]entry.Transfer, len(m.Transfers))
		for i, t := range m.Transfers {
			transfers[i] = entry.Transfer{From: types.Participant(t.From), To: types.Participant(t.To), Amount: t.Amount}
		}
	}

	return &entry.Entry{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          entryID,
		GroupID:     groupID,
		Kind:        entry.Kind(m.Kind),
		Currency:    m.Currency,
		Description: m.Description,
		CreatedBy:   types.Participant(m.CreatedBy),
		Payers:      fromShareModels(m.Payers),
		Splits:      fromShareModels(m.Splits),
		Settler:     types.Participant(m.Settler),
		Details:     fromShareModels(m.Details),
		Transfers:   transfers,
		Metadata:    m.Metadata,
	}, nil
}

func toShareModels(shares []entry.Share) []shareModel {
	if len(shares) == 0 {
		return nil
	}
	out := make([]shareModel, len(shares))
	for i, s := range shares {
		out[i] = shareModel{Participant: string(s.Participant), Amount: s.Amount}
	}
	return out
}

func fromShareModels(models []shareModel) []entry.Share {
	if len(models) == 0 {
		return nil
	}
	out := make([]entry.Share, len(models))
	for i, m := range models {
		out[i] = entry.Share{Participant: types.Participant(m.Participant), Amount: m.Amount}
	}
	return out
}

func participantsToStrings(ps []types.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func stringsToParticipants(ss []string) []types.Participant {
	if len(ss) == 0 {
		return nil
	}
	out := make([]types.Participant, len(ss))
	for i, s := range ss {
		out[i] = types.Participant(s)
	}
	return out
}
