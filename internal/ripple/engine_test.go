package ripple

import (
	"testing"

	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/mutation"
	"github.com/mrjoshuak/nlecore/internal/rational"
	"github.com/mrjoshuak/nlecore/internal/store"
	"github.com/mrjoshuak/nlecore/internal/uistate"
)

func openTestGateway(t *testing.T) *store.Gateway {
	t.Helper()
	g, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := model.Migrate(g); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func rt(frames int64) rational.Time { return rational.New(frames, 30, 1) }

// twoClipTrack saves two back-to-back clips (a then b) on one video track
// and returns their ids.
func twoClipTrack(t *testing.T, g *store.Gateway) (trackID, aID, bID string) {
	t.Helper()
	proj := &model.Project{Name: "p"}
	if err := proj.Save(g); err != nil {
		t.Fatalf("save project: %v", err)
	}
	seq := &model.Sequence{ProjectID: proj.ID, Name: "seq", Kind: model.SequenceKindTimeline, FPSNum: 30, FPSDen: 1}
	if err := seq.Save(g); err != nil {
		t.Fatalf("save sequence: %v", err)
	}
	track := &model.Track{SequenceID: seq.ID, Kind: model.TrackKindVideo, Index: 1, Name: "V", Height: 80}
	if err := track.Save(g); err != nil {
		t.Fatalf("save track: %v", err)
	}

	a := &model.Clip{
		ProjectID: proj.ID, ClipKind: model.ClipKindTimeline, TrackID: &track.ID, OwnerSequenceID: seq.ID,
		Name: "a", Enabled: true, FPSNum: 30, FPSDen: 1,
		TimelineStart: rt(0), Duration: rt(100), SourceIn: rt(0), SourceOut: rt(100),
	}
	if _, err := a.Save(g, model.SaveOptions{}); err != nil {
		t.Fatalf("save clip a: %v", err)
	}
	b := &model.Clip{
		ProjectID: proj.ID, ClipKind: model.ClipKindTimeline, TrackID: &track.ID, OwnerSequenceID: seq.ID,
		Name: "b", Enabled: true, FPSNum: 30, FPSDen: 1,
		TimelineStart: rt(100), Duration: rt(100), SourceIn: rt(0), SourceOut: rt(100),
	}
	if _, err := b.Save(g, model.SaveOptions{}); err != nil {
		t.Fatalf("save clip b: %v", err)
	}
	return track.ID, a.ID, b.ID
}

func TestRippleEditExtendsOutEdgeAndShiftsDownstream(t *testing.T) {
	g := openTestGateway(t)
	trackID, aID, bID := twoClipTrack(t, g)

	bucket := mutation.New()
	e := New(g, uistate.NewNopCache(), bucket, 3)

	res, err := e.RippleEdit(EdgeInfo{ClipID: aID, EdgeType: EdgeOut, TrackID: trackID}, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Clamped {
		t.Fatalf("expected no clamp for a well within-bounds extend, got %+v", res)
	}
	if len(res.ShiftedClipIDs) != 1 || res.ShiftedClipIDs[0] != bID {
		t.Fatalf("expected b to shift downstream, got %v", res.ShiftedClipIDs)
	}

	a, err := model.LoadClip(g, aID)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	if a.Duration.Frames != 110 {
		t.Fatalf("expected a's duration to grow to 110, got %d", a.Duration.Frames)
	}
	if a.SourceOut.Frames != 110 {
		t.Fatalf("expected a's source_out to advance with its new duration, got %d", a.SourceOut.Frames)
	}
	b, err := model.LoadClip(g, bID)
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	if b.TimelineStart.Frames != 110 {
		t.Fatalf("expected b to shift to frame 110, got %d", b.TimelineStart.Frames)
	}
}

func TestRippleEditClampsToMediaBound(t *testing.T) {
	g := openTestGateway(t)
	trackID, aID, _ := twoClipTrack(t, g)

	media := &model.Media{ProjectID: "p", Path: "/tmp/a.mov", Duration: rt(105)}
	if err := media.Save(g); err != nil {
		t.Fatalf("save media: %v", err)
	}
	a, err := model.LoadClip(g, aID)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	a.MediaID = &media.ID
	if _, err := a.Save(g, model.SaveOptions{SkipOcclusion: true}); err != nil {
		t.Fatalf("attach media to a: %v", err)
	}

	bucket := mutation.New()
	e := New(g, uistate.NewNopCache(), bucket, 3)

	res, err := e.RippleEdit(EdgeInfo{ClipID: aID, EdgeType: EdgeOut, TrackID: trackID}, 50, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clamped {
		t.Fatalf("expected the extend to clamp against the 5-frame-of-head-room media bound, got %+v", res)
	}
	if res.ClampedDeltaFrames != 5 {
		t.Fatalf("expected clamp to +5 frames (105 media frames - 100 already used), got %d", res.ClampedDeltaFrames)
	}
}

func TestBatchRippleEditRejectsEmptyEdges(t *testing.T) {
	g := openTestGateway(t)
	bucket := mutation.New()
	e := New(g, uistate.NewNopCache(), bucket, 3)
	if _, err := e.BatchRippleEdit(Input{}); err == nil {
		t.Fatal("expected an error for an empty edge set")
	}
}

func TestRippleEditShiftsDownstreamAcrossAllTracksInSequence(t *testing.T) {
	g := openTestGateway(t)
	trackID, aID, _ := twoClipTrack(t, g)

	a, err := model.LoadClip(g, aID)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}

	v2 := &model.Track{SequenceID: a.OwnerSequenceID, Kind: model.TrackKindVideo, Index: 2, Name: "V2", Height: 80}
	if err := v2.Save(g); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	r := &model.Clip{
		ProjectID: a.ProjectID, ClipKind: model.ClipKindTimeline, TrackID: &v2.ID, OwnerSequenceID: a.OwnerSequenceID,
		Name: "R", Enabled: true, FPSNum: 30, FPSDen: 1,
		TimelineStart: rt(200), Duration: rt(50), SourceIn: rt(0), SourceOut: rt(50),
	}
	if _, err := r.Save(g, model.SaveOptions{}); err != nil {
		t.Fatalf("save clip R: %v", err)
	}

	bucket := mutation.New()
	e := New(g, uistate.NewNopCache(), bucket, 3)

	res, err := e.RippleEdit(EdgeInfo{ClipID: aID, EdgeType: EdgeOut, TrackID: trackID}, 30, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Clamped {
		t.Fatalf("expected no clamp, got %+v", res)
	}

	r, err = model.LoadClip(g, r.ID)
	if err != nil {
		t.Fatalf("load R: %v", err)
	}
	if r.TimelineStart.Frames != 230 {
		t.Fatalf("expected R on the unrelated V2 track to ripple to frame 230 alongside V1, got %d", r.TimelineStart.Frames)
	}
}

// gapTrack saves a track with clip a (0-100) and clip c (150-200), leaving
// a 50-frame gap between them, and returns their ids.
func gapTrack(t *testing.T, g *store.Gateway) (trackID, aID, cID string) {
	t.Helper()
	proj := &model.Project{Name: "p"}
	if err := proj.Save(g); err != nil {
		t.Fatalf("save project: %v", err)
	}
	seq := &model.Sequence{ProjectID: proj.ID, Name: "seq", Kind: model.SequenceKindTimeline, FPSNum: 30, FPSDen: 1}
	if err := seq.Save(g); err != nil {
		t.Fatalf("save sequence: %v", err)
	}
	track := &model.Track{SequenceID: seq.ID, Kind: model.TrackKindVideo, Index: 1, Name: "V", Height: 80}
	if err := track.Save(g); err != nil {
		t.Fatalf("save track: %v", err)
	}
	a := &model.Clip{
		ProjectID: proj.ID, ClipKind: model.ClipKindTimeline, TrackID: &track.ID, OwnerSequenceID: seq.ID,
		Name: "a", Enabled: true, FPSNum: 30, FPSDen: 1,
		TimelineStart: rt(0), Duration: rt(100), SourceIn: rt(0), SourceOut: rt(100),
	}
	if _, err := a.Save(g, model.SaveOptions{}); err != nil {
		t.Fatalf("save clip a: %v", err)
	}
	c := &model.Clip{
		ProjectID: proj.ID, ClipKind: model.ClipKindTimeline, TrackID: &track.ID, OwnerSequenceID: seq.ID,
		Name: "c", Enabled: true, FPSNum: 30, FPSDen: 1,
		TimelineStart: rt(150), Duration: rt(50), SourceIn: rt(0), SourceOut: rt(50),
	}
	if _, err := c.Save(g, model.SaveOptions{}); err != nil {
		t.Fatalf("save clip c: %v", err)
	}
	return track.ID, a.ID, c.ID
}

func TestRippleEditGapAfterClampsToGapWidth(t *testing.T) {
	g := openTestGateway(t)
	trackID, aID, _ := gapTrack(t, g)

	bucket := mutation.New()
	e := New(g, uistate.NewNopCache(), bucket, 3)

	res, err := e.RippleEdit(EdgeInfo{ClipID: aID, EdgeType: EdgeGapAfter, TrackID: trackID}, 80, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clamped || res.ClampedDeltaFrames != 50 {
		t.Fatalf("expected the drag to clamp to the 50-frame gap width, got %+v", res)
	}

	a, err := model.LoadClip(g, aID)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	if a.Duration.Frames != 150 {
		t.Fatalf("expected a to grow by exactly the gap width to duration 150, got %d", a.Duration.Frames)
	}
}

func TestBatchRippleEditEmptyIntersectionIsNoOp(t *testing.T) {
	g := openTestGateway(t)
	_, aID, bID := twoClipTrack(t, g)

	bucket := mutation.New()
	e := New(g, uistate.NewNopCache(), bucket, 3)

	// a's out edge can extend arbitrarily far right (no media attached), but
	// b's in edge can't move right past its own near-zero-duration floor;
	// requesting a huge positive delta against both at once has no common
	// satisfying value on b's side, so the batch is a no-op rather than an
	// error.
	res, err := e.BatchRippleEdit(Input{
		Edges: []EdgeInfo{
			{ClipID: aID, EdgeType: EdgeOut},
			{ClipID: bID, EdgeType: EdgeIn, TrimType: TrimRoll},
		},
		DeltaFrames: 99999,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NoOp {
		t.Fatalf("expected an empty constraint intersection to resolve as a no-op, got %+v", res)
	}
}
