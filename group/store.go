package group

import (
	"context"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Store interface {
	Create(ctx context.Context, g *Group) error
	Get(ctx context.Context, groupID id.GroupID) (*Group, error)
	List(ctx context.Context, opts ListOpts) ([]*Group, error)
	Update(ctx context.Context, g *Group) error
}

type ListOpts struct {
	Member types.Participant
	Limit  int
	Offset int
}
