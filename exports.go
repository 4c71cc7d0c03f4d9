package tally

import (
	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/types"
)

// Re-export common types for convenience so users don't have to import the types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Participant is re-exported from types package.
type Participant = types.Participant

// CancellationEdge is re-exported from debt package.
type CancellationEdge = debt.CancellationEdge

// Re-export Money constructors
var (
	USD        = types.USD
	EUR        = types.EUR
	GBP        = types.GBP
	JPY        = types.JPY
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMoney = types.ParseMoney
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
