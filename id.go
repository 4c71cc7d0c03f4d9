package tally

import "github.com/xraph/tally/id"

// ID is the primary identifier type for all Tally entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// GroupID identifies a group.
type GroupID = id.GroupID

// EntryID identifies a ledger entry of any kind.
type EntryID = id.EntryID
