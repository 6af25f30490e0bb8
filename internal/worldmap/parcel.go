package worldmap

import "time"

// Parcel is a pickup-able reward on the map. CarriedBy is empty when the
// parcel is lying free; parcels with a non-empty CarriedBy are never
// inserted into a WorldMap's parcel set (spec.md §3).
type Parcel struct {
	ID        string
	X, Y      int
	Reward    int
	Timestamp time.Time
	CarriedBy string
}

// IsExpired implements spec.md §3's decay predicate:
// reward − ⌊(now−timestamp)/decayInterval⌋ < 0.
func (p Parcel) IsExpired(now time.Time, decayInterval time.Duration) bool {
	if decayInterval <= 0 {
		return false
	}
	elapsed := now.Sub(p.Timestamp)
	decayedSteps := int(elapsed / decayInterval)
	return p.Reward-decayedSteps < 0
}

// AdversaryAgent is an opposing player's last known position. Teammates
// (own id or the companion's id) are never recorded here; they update
// leaderPosition/followerPosition instead (spec.md §3).
type AdversaryAgent struct {
	ID        string
	X, Y      int
	Timestamp time.Time
}
