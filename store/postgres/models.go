package postgres

import (
	"encoding/json"
	"fmt"
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

	ID        string          `grove:"id,pk"`
	Name      string          `grove:"name"`
	Currency  string          `grove:"currency"`
	Members   json.RawMessage `grove:"members,type:jsonb"`
	CreatedBy string          `grove:"created_by"`
	Metadata  json.RawMessage `grove:"metadata,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toGroupModel(g *group.Group) (*groupModel, error) {
	members, err := json.Marshal(nonNil(g.Members))
	if err != nil {
		return nil, fmt.Errorf("marshal members: %w", err)
	}
	metadata, err := json.Marshal(nonNilMap(g.Metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return &groupModel{
		ID:        g.ID.String(),
		Name:      g.Name,
		Currency:  g.Currency,
		Members:   members,
		CreatedBy: string(g.CreatedBy),
		Metadata:  metadata,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}, nil
}

func fromGroupModel(m *groupModel) (*group.Group, error) {
	groupID, err := id.ParseGroupID(m.ID)
	if err != nil {
		return nil, err
	}

	g := &group.Group{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        groupID,
		Name:      m.Name,
		Currency:  m.Currency,
		CreatedBy: types.Participant(m.CreatedBy),
	}
	if err := unmarshalOptional(m.Members, &g.Members); err != nil {
		return nil, fmt.Errorf("group %s members: %w", m.ID, err)
	}
	if err := unmarshalOptional(m.Metadata, &g.Metadata); err != nil {
		return nil, fmt.Errorf("group %s metadata: %w", m.ID, err)
	}
	return g, nil
}

// ==================== Entry models ====================

// entryModel stores one entry as one row; the kind-specific body lives in
// payload so an append is a single insert.
type entryModel struct {
	grove.BaseModel `grove:"table:tally_entries"`

	ID           string          `grove:"id,pk"`
	GroupID      string          `grove:"group_id"`
	Kind         string          `grove:"kind"`
	Currency     string          `grove:"currency"`
	Description  string          `grove:"description"`
	CreatedBy    string          `grove:"created_by"`
	Payload      json.RawMessage `grove:"payload,type:jsonb"`
	Participants json.RawMessage `grove:"participants,type:jsonb"`
	Metadata     json.RawMessage `grove:"metadata,type:jsonb"`
	CreatedAt    time.Time       `grove:"created_at"`
	UpdatedAt    time.Time       `grove:"updated_at"`
}

type entryPayload struct {
	Payers    []entry.Share     `json:"payers,omitempty"`
	Splits    []entry.Share     `json:"splits,omitempty"`
	Settler   types.Participant `json:"settler,omitempty"`
	Details   []entry.Share     `json:"details,omitempty"`
	Transfers []entry.Transfer  `json:"transfers,omitempty"`
}

func toEntryModel(e *entry.Entry) (*entryModel, error) {
	payload, err := json.Marshal(entryPayload{
		Payers:    e.Payers,
		Splits:    e.Splits,
		Settler:   e.Settler,
		Details:   e.Details,
		Transfers: e.Transfers,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	participants, err := json.Marshal(nonNil(e.Participants()))
	if err != nil {
		return nil, fmt.Errorf("marshal participants: %w", err)
	}
	metadata, err := json.Marshal(nonNilMap(e.Metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return &entryModel{
		ID:           e.ID.String(),
		GroupID:      e.GroupID.String(),
		Kind:         string(e.Kind),
		Currency:     e.Currency,
		Description:  e.Description,
		CreatedBy:    string(e.CreatedBy),
		Payload:      payload,
		Participants: participants,
		Metadata:     metadata,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}, nil
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

	var p entryPayload
	if err := unmarshalOptional(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("entry %s payload: %w", m.ID, err)
	}

	e := &entry.Entry{
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
		Payers:      p.Payers,
		Splits:      p.Splits,
		Settler:     p.Settler,
		Details:     p.Details,
		Transfers:   p.Transfers,
	}
	if err := unmarshalOptional(m.Metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("entry %s metadata: %w", m.ID, err)
	}
	return e, nil
}

// ==================== Helpers ====================

func unmarshalOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
