package ripple

import (
	"fmt"
	"sort"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/mutation"
	"github.com/mrjoshuak/nlecore/internal/rational"
	"github.com/mrjoshuak/nlecore/internal/store"
	"github.com/mrjoshuak/nlecore/internal/uistate"
)

// Engine runs the batch ripple-trim algorithm of §4.10 against a store
// gateway, recording its effect into a mutation bucket the same way the
// structural commands do.
type Engine struct {
	Store      *store.Gateway
	Cache      uistate.Cache
	Bucket     *mutation.Bucket
	MaxRetries int
}

// New builds an Engine. maxRetries <= 0 falls back to 3, matching the
// dispatcher's own default for MAX_RIPPLE_CONSTRAINT_RETRIES.
func New(g *store.Gateway, cache uistate.Cache, bucket *mutation.Bucket, maxRetries int) *Engine {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Engine{Store: g, Cache: cache, Bucket: bucket, MaxRetries: maxRetries}
}

// gapSpan is the synthetic gap clip Phase 2 materialises for a gap_before/
// gap_after edge: the empty track space adjacent to the real clip being
// dragged. It carries no id and is never persisted; it exists only to bound
// how far its edge can close before it runs out of gap to consume.
type gapSpan struct {
	start    int64
	duration int64
}

// resolvedEdge is an edge after gap-aliasing (Phase 1) and neighbour lookup
// (Phase 2), still carrying its persisted clip.
type resolvedEdge struct {
	info       EdgeInfo
	clip       *model.Clip
	effective  EdgeType // EdgeIn or EdgeOut after gap aliasing
	wasGap     bool
	gap        *gapSpan
	prevEnd    *rational.Time
	nextStart  *rational.Time
	media      *model.Media
	minK       int64
	maxK       int64
}

// BatchRippleEdit runs the full multi-edge algorithm: gap aliasing, neighbour
// lookup, per-edge constraint intersection, global clamp, trim application,
// and downstream shift, in one store transaction-scoped call (the caller —
// the command executor — owns the actual DB transaction).
func (e *Engine) BatchRippleEdit(in Input) (*Result, error) {
	if len(in.Edges) == 0 {
		return nil, &cmderr.MissingParameter{Command: "BatchRippleEdit", Field: "edges"}
	}

	// Phase 0/1: resolve every edge to its real clip, aliasing gap_before /
	// gap_after to the adjacent real clip's in/out edge (a materialized gap
	// is bookkeeping for the caller's preview, not a distinct movable
	// entity: moving the gap that follows clip X is the same operation as
	// moving X's out edge).
	resolved := make([]*resolvedEdge, 0, len(in.Edges))
	gapIDs := make([]string, 0)
	for _, ei := range in.Edges {
		c, err := model.LoadClip(e.Store, ei.ClipID)
		if err != nil {
			return nil, err
		}
		re := &resolvedEdge{info: ei, clip: c}
		switch ei.EdgeType {
		case EdgeIn, EdgeOut:
			re.effective = ei.EdgeType
		case EdgeGapAfter:
			re.effective = EdgeOut
			re.wasGap = true
			gapIDs = append(gapIDs, fmt.Sprintf("temp_gap_%s_%d", ei.TrackID, c.TimelineStart.Frames+c.Duration.Frames))
		case EdgeGapBefore:
			re.effective = EdgeIn
			re.wasGap = true
			gapIDs = append(gapIDs, fmt.Sprintf("temp_gap_%s_%d", ei.TrackID, c.TimelineStart.Frames))
		default:
			return nil, &cmderr.ConstraintViolation{Message: "ripple: unknown edge type " + string(ei.EdgeType)}
		}
		if ei.TrimType == "" {
			re.info.TrimType = TrimRipple
		}
		resolved = append(resolved, re)
	}

	// Phase 2: neighbour lookup + media bound per edge, materialising a
	// synthetic gap span for any gap_before/gap_after edge so its own size
	// can bound the edit (a gap can close to zero but not past it).
	for _, re := range resolved {
		track, err := neighbours(e.Store, re.clip)
		if err != nil {
			return nil, err
		}
		re.prevEnd, re.nextStart = track.prevEnd, track.nextStart
		if re.clip.MediaID != nil {
			m, err := model.LoadMedia(e.Store, *re.clip.MediaID)
			if err != nil {
				return nil, err
			}
			re.media = m
		}
		if re.wasGap {
			switch re.info.EdgeType {
			case EdgeGapAfter:
				gapStart := re.clip.TimelineStart.Frames + re.clip.Duration.Frames
				gapEnd := gapStart
				if re.nextStart != nil {
					gapEnd = re.nextStart.Frames
				}
				re.gap = &gapSpan{start: gapStart, duration: gapEnd - gapStart}
			case EdgeGapBefore:
				gapStart := int64(0)
				if re.prevEnd != nil {
					gapStart = re.prevEnd.Frames
				}
				re.gap = &gapSpan{start: gapStart, duration: re.clip.TimelineStart.Frames - gapStart}
			}
		}
	}

	// Phase 3/4: per-edge constraint interval in signed frames.
	loK, hiK := int64(minInt64), int64(maxInt64)
	var loEdges, hiEdges []string
	var loTags, hiTags []string
	for _, re := range resolved {
		lo, hi := edgeBounds(re)
		re.minK, re.maxK = lo, hi
		tag := re.clip.ID + ":" + string(re.effective)
		switch {
		case lo > loK:
			loK = lo
			loEdges = []string{re.clip.ID}
			loTags = []string{tag}
		case lo == loK:
			loEdges = append(loEdges, re.clip.ID)
			loTags = append(loTags, tag)
		}
		switch {
		case hi < hiK:
			hiK = hi
			hiEdges = []string{re.clip.ID}
			hiTags = []string{tag}
		case hi == hiK:
			hiEdges = append(hiEdges, re.clip.ID)
			hiTags = append(hiTags, tag)
		}
	}
	if loK > hiK {
		// An empty intersection means no delta satisfies every edge at once;
		// per the clamp/retry phase this is a no-op, not a failure.
		return &Result{NoOp: true, MaterializedGapIDs: gapIDs}, nil
	}

	// Phase 5: global clamp, minimizing |requested - clamped|. The limiter
	// set names whichever edge(s) own the bound the requested delta hit, so
	// a caller's UI can highlight why the drag stopped short.
	delta := in.DeltaFrames
	clamped := false
	var limiterEdges, limiterTags []string
	if delta < loK {
		delta = loK
		clamped = true
		limiterEdges = loEdges
		limiterTags = loTags
	}
	if delta > hiK {
		delta = hiK
		clamped = true
		limiterEdges = hiEdges
		limiterTags = hiTags
	}

	if delta == 0 {
		return &Result{NoOp: true, MaterializedGapIDs: gapIDs}, nil
	}

	res := &Result{
		ClampedDeltaFrames: delta,
		Clamped:            clamped,
		OriginalStates:     map[string]model.ClipSnapshot{},
		MaterializedGapIDs: gapIDs,
		LimiterEdgeClipIDs: limiterEdges,
		ClampedEdges:       limiterTags,
	}

	if in.DryRun {
		for _, re := range resolved {
			res.AffectedClipIDs = append(res.AffectedClipIDs, re.clip.ID)
		}
		return res, nil
	}

	// Phase 6/7: apply each edge's trim, then shift everything downstream of
	// it on the same track, with a bounded retry that shrinks |delta|
	// toward zero if a downstream shift would push a clip before frame 0.
	seenTracks := map[string]bool{}
	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		ok, err := e.applyAll(resolved, delta, res, seenTracks)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if attempt == e.MaxRetries {
			return nil, &cmderr.ConstraintViolation{Message: "ripple: could not find a valid delta within the retry budget"}
		}
		delta = shrinkTowardZero(delta)
		res.ClampedDeltaFrames = delta
		res.Clamped = true
		res.ExecutedMutations = nil
		res.AffectedClipIDs = nil
		res.ShiftedClipIDs = nil
		res.OriginalStates = map[string]model.ClipSnapshot{}
		for k := range seenTracks {
			delete(seenTracks, k)
		}
	}

	return res, nil
}

// RippleEdit is BatchRippleEdit specialized to a single edge, per §4.10's
// closing design note that single-edge ripple is just the batch path with
// one member.
func (e *Engine) RippleEdit(edge EdgeInfo, deltaFrames int64, dryRun bool) (*Result, error) {
	return e.BatchRippleEdit(Input{Edges: []EdgeInfo{edge}, DeltaFrames: deltaFrames, DryRun: dryRun})
}

// ExtendEdit computes delta as playheadFrames minus the lead edge's current
// position and delegates to BatchRippleEdit/RippleEdit.
func (e *Engine) ExtendEdit(edges []EdgeInfo, playheadFrames int64, dryRun bool) (*Result, error) {
	if len(edges) == 0 {
		return nil, &cmderr.MissingParameter{Command: "ExtendEdit", Field: "edges"}
	}
	lead := edges[0]
	for _, ei := range edges {
		if ei.IsLead {
			lead = ei
			break
		}
	}
	c, err := model.LoadClip(e.Store, lead.ClipID)
	if err != nil {
		return nil, err
	}
	var edgePos int64
	switch lead.EdgeType {
	case EdgeOut, EdgeGapAfter:
		edgePos = c.TimelineStart.Frames + c.Duration.Frames
	default:
		edgePos = c.TimelineStart.Frames
	}
	delta := playheadFrames - edgePos
	return e.BatchRippleEdit(Input{Edges: edges, DeltaFrames: delta, DryRun: dryRun})
}

const (
	minInt64 = -1 << 62
	maxInt64 = 1<<62 - 1
)

// edgeBounds computes [minK, maxK] for a single resolved edge: the signed
// frame range Δ may fall in without violating that edge's own roll/media/
// minimum-duration constraints (§4.10 Phase 3-4). Downstream clips are not a
// bound here because a ripple trim shifts them along with the edge.
func edgeBounds(re *resolvedEdge) (int64, int64) {
	const minDuration = int64(1)

	if re.info.TrimType == TrimRoll {
		// A roll moves the cut point between this clip (as the out side)
		// and its right neighbour (as the in side) without any downstream
		// shift; bound by both sides' media and minimum-duration limits.
		lo := minDuration - re.clip.Duration.Frames
		hi := int64(maxInt64)
		if re.media != nil {
			hi = re.media.Duration.Frames - re.clip.SourceOut.Frames
		}
		return lo, hi
	}

	switch re.effective {
	case EdgeOut:
		lo := minDuration - re.clip.Duration.Frames
		hi := int64(maxInt64)
		if re.media != nil {
			hi = re.media.Duration.Frames - re.clip.SourceOut.Frames
		}
		// Gap closure (out side): the edge can grow into the gap after it,
		// but not past the gap's own width — beyond that it would have to
		// overlap the next clip instead of just consuming empty space.
		if re.wasGap && re.gap != nil && re.gap.duration < hi {
			hi = re.gap.duration
		}
		return lo, hi
	default: // EdgeIn
		lo := int64(minInt64)
		if re.prevEnd != nil {
			lo = re.prevEnd.Frames - re.clip.TimelineStart.Frames
		} else {
			lo = -re.clip.TimelineStart.Frames
		}
		if re.clip.SourceIn.Frames+lo < 0 {
			lo = -re.clip.SourceIn.Frames
		}
		hi := re.clip.Duration.Frames - minDuration
		// Gap closure (in side): the edge can only consume as much of the
		// preceding gap as the gap actually has; -gap.duration is the most
		// it can move left before it would overlap the previous clip.
		if re.wasGap && re.gap != nil && -re.gap.duration > lo {
			lo = -re.gap.duration
		}
		return lo, hi
	}
}

// applyAll applies delta to every resolved edge and shifts everything
// downstream on each touched track. It returns ok=false (without having
// committed anything irrevocable — store writes are transactional at the
// command layer) if the shift would push any clip to a negative timeline
// position, signalling the caller to retry with a smaller delta.
func (e *Engine) applyAll(resolved []*resolvedEdge, delta int64, res *Result, seenTracks map[string]bool) (bool, error) {
	for _, re := range resolved {
		snap := re.clip.Snapshot()
		res.OriginalStates[re.clip.ID] = snap

		edgeFrame := re.clip.TimelineStart.Frames
		if re.effective == EdgeOut {
			edgeFrame = re.clip.TimelineStart.Frames + re.clip.Duration.Frames
		}

		if err := applyEdgeDelta(re.clip, re.effective, delta); err != nil {
			return false, err
		}
		if _, err := re.clip.Save(e.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
			return false, err
		}
		res.AffectedClipIDs = append(res.AffectedClipIDs, re.clip.ID)
		e.Bucket.AddUpdate(re.clip.OwnerSequenceID, mutation.Update{
			ClipID: re.clip.ID, TrackID: deref(re.clip.TrackID),
			StartValue: re.clip.TimelineStart.Frames, Duration: re.clip.Duration.Frames,
			SourceIn: re.clip.SourceIn.Frames, SourceOut: re.clip.SourceOut.Frames, Enabled: re.clip.Enabled,
		})
		res.ExecutedMutations = append(res.ExecutedMutations, MutationRecord{Type: "update", ClipID: re.clip.ID})

		if re.info.TrimType == TrimRoll || re.clip.TrackID == nil {
			continue
		}

		// Downstream shift is sequence-wide, not just the edited clip's own
		// track: every other track in the sequence must stay in sync with
		// the ripple point, so a clip on an unrelated track that starts at
		// or after edgeFrame shifts by the same delta.
		tracks, err := model.TracksInSequence(e.Store, re.clip.OwnerSequenceID)
		if err != nil {
			return false, err
		}
		for _, tr := range tracks {
			if seenTracks[tr.ID] {
				continue
			}
			seenTracks[tr.ID] = true

			downstream, err := model.ClipsOnTrack(e.Store, tr.ID)
			if err != nil {
				return false, err
			}
			sort.Slice(downstream, func(i, j int) bool {
				return downstream[i].TimelineStart.Frames < downstream[j].TimelineStart.Frames
			})
			for _, d := range downstream {
				if d.ID == re.clip.ID || d.TimelineStart.Frames < edgeFrame {
					continue
				}
				if _, already := res.OriginalStates[d.ID]; already {
					continue
				}
				if d.TimelineStart.Frames+delta < 0 {
					return false, nil
				}
				res.OriginalStates[d.ID] = d.Snapshot()
				d.TimelineStart.Frames += delta
				if _, err := d.Save(e.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
					return false, err
				}
				res.ShiftedClipIDs = append(res.ShiftedClipIDs, d.ID)
				e.Bucket.AddUpdate(d.OwnerSequenceID, mutation.Update{
					ClipID: d.ID, TrackID: tr.ID, StartValue: d.TimelineStart.Frames,
					Duration: d.Duration.Frames, SourceIn: d.SourceIn.Frames, SourceOut: d.SourceOut.Frames, Enabled: d.Enabled,
				})
				res.ExecutedMutations = append(res.ExecutedMutations, MutationRecord{Type: "update", ClipID: d.ID})
			}
			e.Bucket.AddBulkShift(re.clip.OwnerSequenceID, mutation.BulkShift{
				TrackID: tr.ID, ShiftFrames: delta, StartFrames: edgeFrame,
			})
		}
	}
	return true, nil
}

func applyEdgeDelta(c *model.Clip, et EdgeType, delta int64) error {
	switch et {
	case EdgeOut:
		c.Duration.Frames += delta
		c.SourceOut.Frames = c.SourceIn.Frames + c.Duration.Frames
	case EdgeIn:
		c.TimelineStart.Frames += delta
		c.SourceIn.Frames += delta
		c.Duration.Frames -= delta
	}
	if c.Duration.Frames < 1 {
		return &cmderr.ConstraintViolation{Message: "ripple: clip " + c.ID + " would shrink below one frame"}
	}
	return nil
}

func shrinkTowardZero(delta int64) int64 {
	if delta > 0 {
		return delta - 1
	}
	if delta < 0 {
		return delta + 1
	}
	return 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type trackNeighbours struct {
	prevEnd   *rational.Time
	nextStart *rational.Time
}

// neighbours finds the clips immediately before and after c on its track.
func neighbours(g *store.Gateway, c *model.Clip) (trackNeighbours, error) {
	var out trackNeighbours
	if c.TrackID == nil {
		return out, nil
	}
	clips, err := model.ClipsOnTrack(g, *c.TrackID)
	if err != nil {
		return out, err
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].TimelineStart.Frames < clips[j].TimelineStart.Frames })
	for i, other := range clips {
		if other.ID != c.ID {
			continue
		}
		if i > 0 {
			end := clips[i-1].TimelineStart.Add(clips[i-1].Duration)
			out.prevEnd = &end
		}
		if i+1 < len(clips) {
			start := clips[i+1].TimelineStart
			out.nextStart = &start
		}
		break
	}
	return out, nil
}
