// Package ripple implements the batch ripple-trim engine of §4.10: given a
// set of clip edges to drag and a requested delta, it materialises any
// dragged gaps, intersects every edge's constraint interval into a single
// clamped delta, applies the trims, and shifts everything downstream of the
// earliest ripple point so the track stays non-overlapping.
package ripple

import (
	"github.com/mrjoshuak/nlecore/internal/model"
)

// EdgeType names which side of a clip (or a gap standing in for one) is
// being dragged.
type EdgeType string

const (
	EdgeIn        EdgeType = "in"
	EdgeOut       EdgeType = "out"
	EdgeGapBefore EdgeType = "gap_before"
	EdgeGapAfter  EdgeType = "gap_after"
)

// TrimType distinguishes a plain ripple trim (only this clip's bounds move)
// from a roll (both edges of the cut move together, no duration change).
type TrimType string

const (
	TrimRipple TrimType = "ripple"
	TrimRoll   TrimType = "roll"
)

// EdgeInfo is one edge the caller wants dragged.
type EdgeInfo struct {
	ClipID   string
	EdgeType EdgeType
	TrackID  string
	TrimType TrimType
	IsLead   bool
}

// Input is the parameter set for BatchRippleEdit (and, via a single-edge
// slice, RippleEdit).
type Input struct {
	SequenceID  string
	Edges       []EdgeInfo
	DeltaFrames int64
	DryRun      bool
}

// MutationRecord is one entry of the persisted executed_mutation_order, used
// by the undoer to rehydrate without storing full payloads (§4.10 Phase 11).
type MutationRecord struct {
	Type   string // "update", "delete", "insert", "bulk_shift"
	ClipID string
}

// Result is BatchRippleEdit's return value.
type Result struct {
	ClampedDeltaFrames int64
	Clamped            bool
	NoOp               bool
	AffectedClipIDs    []string
	ShiftedClipIDs     []string
	MaterializedGapIDs []string
	ExecutedMutations  []MutationRecord
	OriginalStates     map[string]model.ClipSnapshot
	LimiterEdgeClipIDs []string
	// ClampedEdges names each edge that owns the bound the requested delta
	// hit, as "<clip_id>:<edge_type>" (e.g. "clip_K:out"), so a dry-run
	// preview can tell a caller exactly which edge stopped the drag short.
	ClampedEdges []string
}
