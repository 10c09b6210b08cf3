// Package uistate declares the pluggable UI timeline-state collaborator the
// core consumes (§1, §4.10 Phase 1, §4.6): it caches clips, selection, and
// the playhead, and is the target of the dispatcher's mutation-bucket
// flush. The core never imports a concrete UI toolkit; callers that embed
// the engine in an actual editor implement this interface.
package uistate

import (
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/mutation"
)

// ClipView is the minimal clip snapshot the UI cache can hand back for
// dry-run preview or as the active sequence's clip set, per §4.10 Phase 1's
// clip-cache preference order.
type ClipView struct {
	ID            string
	TrackID       string
	TimelineStart int64 // frames
	Duration      int64 // frames
	SourceIn      int64
	SourceOut     int64
	FPSNum        uint32
	FPSDen        uint32
}

// Cache is the UI timeline-state collaborator.
type Cache interface {
	// PreloadedClips returns a dry-run preview snapshot for sequenceID, if
	// the UI has staged one, per §4.10 Phase 1(a).
	PreloadedClips(sequenceID string) ([]ClipView, bool)

	// ActiveSequenceClips returns the UI's live cache for sequenceID when it
	// reflects that sequence, per §4.10 Phase 1(b).
	ActiveSequenceClips(sequenceID string) ([]ClipView, bool)

	// Selection returns the currently selected clip ids.
	Selection() []string

	// SetSelection replaces the current selection.
	SetSelection(clipIDs []string)

	// Playhead returns the current playhead position in frames for
	// sequenceID.
	Playhead(sequenceID string) int64

	// SetPlayhead moves the playhead for sequenceID.
	SetPlayhead(sequenceID string, frames int64)

	// Flush applies a committed command's mutation bucket. The dispatcher
	// calls this once per successful, non-dry-run execute (§4.6); executors
	// themselves MUST NOT call it (§5).
	Flush(bucket *mutation.Bucket)
}

// NopCache is a Cache that caches no clips (clip lookups always miss) and
// keeps only the selection and playheads in memory, used when an
// embedder has no UI layer (e.g. batch replay). It satisfies the interface
// without requiring a real timeline-state implementation.
type NopCache struct {
	selection []string
	playheads map[string]int64
}

// NewNopCache returns a ready-to-use NopCache.
func NewNopCache() *NopCache {
	return &NopCache{playheads: make(map[string]int64)}
}

func (c *NopCache) PreloadedClips(string) ([]ClipView, bool)      { return nil, false }
func (c *NopCache) ActiveSequenceClips(string) ([]ClipView, bool) { return nil, false }
func (c *NopCache) Selection() []string                          { return c.selection }
func (c *NopCache) SetSelection(ids []string)                     { c.selection = ids }
func (c *NopCache) Playhead(seqID string) int64                   { return c.playheads[seqID] }
func (c *NopCache) SetPlayhead(seqID string, frames int64)        { c.playheads[seqID] = frames }
func (c *NopCache) Flush(*mutation.Bucket)                        {}

// FromModelClips adapts loaded model.Clip rows into ClipView, the shape
// stored in the UI cache.
func FromModelClips(clips []*model.Clip) []ClipView {
	out := make([]ClipView, 0, len(clips))
	for _, c := range clips {
		trackID := ""
		if c.TrackID != nil {
			trackID = *c.TrackID
		}
		out = append(out, ClipView{
			ID: c.ID, TrackID: trackID,
			TimelineStart: c.TimelineStart.Frames, Duration: c.Duration.Frames,
			SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames,
			FPSNum: c.FPSNum, FPSDen: c.FPSDen,
		})
	}
	return out
}
