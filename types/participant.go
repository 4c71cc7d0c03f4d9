package types

import (
	"slices"
	"strings"
)

// Participant is the opaque, stable identifier of a party whose obligations
// are tracked. Only identity and ordering matter.
type Participant string

// String implements fmt.Stringer.
func (p Participant) String() string { return string(p) }

// IsZero reports whether p is the empty participant.
func (p Participant) IsZero() bool { return strings.TrimSpace(string(p)) == "" }

// SortParticipants sorts ps in place by identifier and returns it.
func SortParticipants(ps []Participant) []Participant {
	slices.Sort(ps)
	return ps
}

// UniqueParticipants returns the distinct participants of ps in sorted order.
func UniqueParticipants(ps ...Participant) []Participant {
	out := slices.Clone(ps)
	slices.Sort(out)
	return slices.Compact(out)
}
