// Package predicate implements the BDI desire as a Go sum type, per spec.md
// §9's "predicate as sum type" design note: one constructor per action tag
// instead of a `[string, number, number, …]` tuple.
package predicate

import (
	"fmt"

	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Tag identifies which action a Predicate carries.
type Tag int

const (
	TagGoTo Tag = iota
	TagGoPickUp
	TagGoDropOff
)

func (t Tag) String() string {
	switch t {
	case TagGoTo:
		return "go_to"
	case TagGoPickUp:
		return "go_pick_up"
	case TagGoDropOff:
		return "go_drop_off"
	default:
		return "unknown"
	}
}

// Predicate is the closed set of desires the option generator may produce
// and the plan library may satisfy.
type Predicate interface {
	Tag() Tag
	Position() worldmap.Position
	// Equal reports element-wise equality, used by Agent.push's
	// deduplication rule (spec.md §4.6).
	Equal(other Predicate) bool
	String() string
}

// GoTo is the "move to this tile" desire.
type GoTo struct {
	X, Y int
}

func (p GoTo) Tag() Tag                    { return TagGoTo }
func (p GoTo) Position() worldmap.Position { return worldmap.Position{X: p.X, Y: p.Y} }
func (p GoTo) String() string              { return fmt.Sprintf("go_to(%d,%d)", p.X, p.Y) }
func (p GoTo) Equal(other Predicate) bool {
	o, ok := other.(GoTo)
	return ok && o == p
}

// GoPickUp is the "walk to and pick up this parcel" desire.
type GoPickUp struct {
	X, Y     int
	ParcelID string
}

func (p GoPickUp) Tag() Tag                    { return TagGoPickUp }
func (p GoPickUp) Position() worldmap.Position { return worldmap.Position{X: p.X, Y: p.Y} }
func (p GoPickUp) String() string {
	return fmt.Sprintf("go_pick_up(%d,%d,%s)", p.X, p.Y, p.ParcelID)
}
func (p GoPickUp) Equal(other Predicate) bool {
	o, ok := other.(GoPickUp)
	return ok && o == p
}

// GoDropOff is the "walk to and drop all parcels" desire. DepotID is a hint
// only (spec.md §4.4) and is not used to choose where to walk.
type GoDropOff struct {
	X, Y    int
	DepotID *string
}

func (p GoDropOff) Tag() Tag                    { return TagGoDropOff }
func (p GoDropOff) Position() worldmap.Position { return worldmap.Position{X: p.X, Y: p.Y} }
func (p GoDropOff) String() string {
	if p.DepotID != nil {
		return fmt.Sprintf("go_drop_off(%d,%d,%s)", p.X, p.Y, *p.DepotID)
	}
	return fmt.Sprintf("go_drop_off(%d,%d)", p.X, p.Y)
}
func (p GoDropOff) Equal(other Predicate) bool {
	o, ok := other.(GoDropOff)
	if !ok || o.X != p.X || o.Y != p.Y {
		return false
	}
	if (o.DepotID == nil) != (p.DepotID == nil) {
		return false
	}
	if o.DepotID != nil && *o.DepotID != *p.DepotID {
		return false
	}
	return true
}

// Raw is the wire-tuple shaped input parsePredicate accepts, spec.md §4.4's
// description of the generic predicate constructor. Optional fields use the
// zero value to signal absence; a blank ParcelID/DepotID is logical
// fallback, not the bitwise-OR one early draft used (spec.md §9 resolves
// this ambiguity explicitly in favor of logical fallback).
type Raw struct {
	Action   string
	X, Y     int
	ParcelID string
	DepotID  string
}

// Parse builds a structured Predicate from a Raw tuple, failing with
// ErrMalformedPredicate when required fields are missing.
func Parse(raw Raw) (Predicate, error) {
	switch raw.Action {
	case TagGoTo.String():
		return GoTo{X: raw.X, Y: raw.Y}, nil
	case TagGoPickUp.String():
		if raw.ParcelID == "" {
			return nil, fmt.Errorf("%w: go_pick_up requires parcelId", planerr.ErrMalformedPredicate)
		}
		return GoPickUp{X: raw.X, Y: raw.Y, ParcelID: raw.ParcelID}, nil
	case TagGoDropOff.String():
		var depot *string
		if raw.DepotID != "" {
			d := raw.DepotID
			depot = &d
		}
		return GoDropOff{X: raw.X, Y: raw.Y, DepotID: depot}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", planerr.ErrMalformedPredicate, raw.Action)
	}
}
