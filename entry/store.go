package entry

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Store is the ledger source of a group: an ordered, append-only feed.
type Store interface {
	// Append persists e atomically. Either the whole entry is stored or nothing is.
	Append(ctx context.Context, e *Entry) error
	Get(ctx context.Context, entryID id.EntryID) (*Entry, error)
	// List returns entries of a group ordered by (created_at, id) from a
	// single consistent read.
	List(ctx context.Context, groupID id.GroupID, opts ListOpts) ([]*Entry, error)
}

type ListOpts struct {
	Kinds       []Kind
	Participant types.Participant
	Since       time.Time
	Limit       int
	Offset      int
}

// Matches reports whether e passes the kind, participant and time filters.
func (o ListOpts) Matches(e *Entry) bool {
	if len(o.Kinds) > 0 {
		found := false
		for _, k := range o.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if o.Participant != "" && !e.Involves(o.Participant) {
		return false
	}
	if !o.Since.IsZero() && e.CreatedAt.Before(o.Since) {
		return false
	}
	return true
}
