// Package events defines the signal fed into the worker's option-generation
// mailbox channel (SPEC_FULL.md §2.3/§5): one value per sense callback, plus
// one per OPTION_GENERATION_INTERVAL tick, fanned in with channerics.Merge
// so the worker regenerates options "on every sense event and on a fixed
// interval timer" (spec.md §4.7) without polling.
package events

// Event is an empty trigger: the worker always reacts by re-reading the
// agent's current belief state in full, so the event itself carries no
// payload.
type Event struct{}
