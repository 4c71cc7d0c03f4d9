package group

import (
	"slices"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Group is the scope every entry belongs to. All entries of a group share
// its currency.
type Group struct {
	types.Entity
	ID        id.GroupID          `json:"id"`
	Name      string              `json:"name" validate:"required,max=200"`
	Currency  string              `json:"currency" validate:"required,len=3,lowercase"`
	Members   []types.Participant `json:"members" validate:"dive,participant"`
	CreatedBy types.Participant   `json:"created_by,omitempty"`
	Metadata  map[string]string   `json:"metadata,omitempty"`
}

// HasMember reports whether p belongs to the group.
func (g *Group) HasMember(p types.Participant) bool {
	return slices.Contains(g.Members, p)
}

// AddMembers merges ps into the member list, skipping duplicates, and
// reports which participants were new.
func (g *Group) AddMembers(ps ...types.Participant) []types.Participant {
	var added []types.Participant
	for _, p := range types.UniqueParticipants(ps...) {
		if p.IsZero() || g.HasMember(p) {
			continue
		}
		g.Members = append(g.Members, p)
		added = append(added, p)
	}
	return added
}
