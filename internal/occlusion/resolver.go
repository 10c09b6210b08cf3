// Package occlusion implements the resolver of §4.4: given a track, a
// target time span, and an overlay of clips whose positions are about to
// change, it plans the trims/deletes/inserts required so that no two
// persisted clips on the track overlap. The resolver is pure — it never
// touches a store; callers apply the actions it returns.
package occlusion

import "github.com/mrjoshuak/nlecore/internal/rational"

// Clip is the minimal view of a persisted clip the resolver needs. It is
// intentionally not model.Clip — the resolver has no dependency on the
// entity model, and model.Clip is adapted into this shape by its caller.
type Clip struct {
	ID       string
	TrackID  string
	Start    rational.Time
	Duration rational.Time
	SourceIn rational.Time
	// Payload carries whatever the caller needs to reconstruct a full
	// entity from this position (e.g. a *model.Clip to clone for an insert
	// action produced by a split-in-two).
	Payload any
}

func (c Clip) end() rational.Time { return c.Start.Add(c.Duration) }

// Pending describes a clip we already know will move to a new position,
// even though the store still holds its old position — used while a ripple
// or insert is in flight so the resolver treats the shift as atomic.
type Pending struct {
	Start           rational.Time
	Duration        rational.Time
	ToleranceFrames int64
}

// Target is the span the resolver must keep clear on one track.
type Target struct {
	TrackID       string
	Start         rational.Time
	Duration      rational.Time
	ExcludeClipID string
}

func (t Target) end() rational.Time { return t.Start.Add(t.Duration) }

// ActionType distinguishes the three mutation shapes the resolver emits.
type ActionType string

const (
	ActionTrim   ActionType = "trim"
	ActionDelete ActionType = "delete"
	ActionInsert ActionType = "insert"
)

// Action is one planned mutation. Before is nil for ActionInsert; After is
// nil for ActionDelete.
type Action struct {
	Type   ActionType
	Before *Clip
	After  *Clip
}

// Resolve scans clips (the persisted clips on target.TrackID, skipping
// target.ExcludeClipID) against pending,
// and returns one action per clip whose effective interval overlaps the
// target span, per §4.4's four cases.
func Resolve(clips []Clip, target Target, pending map[string]Pending) []Action {
	var actions []Action
	for _, c := range clips {
		if c.ID == target.ExcludeClipID {
			continue
		}
		eff := effective(c, pending)
		if !overlaps(eff, target) {
			continue
		}
		actions = append(actions, planOne(eff, target)...)
	}
	return actions
}

// effective applies the pending overlay to c, replacing its position with
// the pending one whenever present. ToleranceFrames exists so a caller can
// register a pending position equal (within rounding) to the stored one —
// in that case the overlay is a no-op, which this assignment already gives
// for free since both positions agree.
func effective(c Clip, pending map[string]Pending) Clip {
	p, ok := pending[c.ID]
	if !ok {
		return c
	}
	c.Start = p.Start
	c.Duration = p.Duration
	return c
}

func overlaps(c Clip, t Target) bool {
	return c.Start.Less(t.end()) && t.Start.Less(c.end())
}

// planOne produces the action(s) for a single overlapping clip, per the
// four cases in §4.4.
func planOne(c Clip, t Target) []Action {
	coveredLeft := !c.Start.Less(t.Start)
	coveredRight := !t.end().Less(c.end())

	switch {
	case coveredLeft && coveredRight:
		// Entirely covered by the target span.
		return []Action{{Type: ActionDelete, Before: &c}}

	case !coveredLeft && coveredRight:
		// Overlaps from the left: trim to end at target.Start.
		after := c
		after.Duration = t.Start.Sub(c.Start)
		return []Action{{Type: ActionTrim, Before: &c, After: &after}}

	case coveredLeft && !coveredRight:
		// Overlaps from the right: trim to start at target.end(), duration
		// reduced from the front, source_in advances by the same amount.
		after := c
		shift := t.end().Sub(c.Start)
		after.Start = t.end()
		after.Duration = c.Duration.Sub(shift)
		after.SourceIn = c.SourceIn.Add(shift)
		return []Action{{Type: ActionTrim, Before: &c, After: &after}}

	default:
		// Spans the target entirely: split into two trims. The left piece
		// keeps the clip's identity; the right piece is emitted as an
		// insert of a new snapshot that inherits the clip's properties via
		// Payload (the caller clones it).
		left := c
		left.Duration = t.Start.Sub(c.Start)

		rightShift := t.end().Sub(c.Start)
		right := c
		right.Start = t.end()
		right.Duration = c.Duration.Sub(rightShift)
		right.SourceIn = c.SourceIn.Add(rightShift)
		right.ID = "" // caller assigns a new id

		return []Action{
			{Type: ActionTrim, Before: &c, After: &left},
			{Type: ActionInsert, After: &right},
		}
	}
}
