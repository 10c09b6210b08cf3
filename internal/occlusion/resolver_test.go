package occlusion

import (
	"testing"

	"github.com/mrjoshuak/nlecore/internal/rational"
)

func rt(f int64) rational.Time { return rational.New(f, 30, 1) }

func TestResolveEntirelyCovered(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(10), Duration: rt(10)}}
	target := Target{TrackID: "t1", Start: rt(0), Duration: rt(100)}
	actions := Resolve(clips, target, nil)
	if len(actions) != 1 || actions[0].Type != ActionDelete {
		t.Fatalf("expected one delete action, got %+v", actions)
	}
}

func TestResolveOverlapFromLeft(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(0), Duration: rt(50)}}
	target := Target{TrackID: "t1", Start: rt(30), Duration: rt(20)}
	actions := Resolve(clips, target, nil)
	if len(actions) != 1 || actions[0].Type != ActionTrim {
		t.Fatalf("expected one trim action, got %+v", actions)
	}
	if actions[0].After.Duration.Frames != 30 {
		t.Fatalf("expected trimmed duration 30, got %d", actions[0].After.Duration.Frames)
	}
}

func TestResolveOverlapFromRight(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(50), Duration: rt(50), SourceIn: rt(0)}}
	target := Target{TrackID: "t1", Start: rt(40), Duration: rt(20)}
	actions := Resolve(clips, target, nil)
	if len(actions) != 1 || actions[0].Type != ActionTrim {
		t.Fatalf("expected one trim action, got %+v", actions)
	}
	after := actions[0].After
	if after.Start.Frames != 60 || after.Duration.Frames != 40 || after.SourceIn.Frames != 10 {
		t.Fatalf("unexpected trim result: %+v", after)
	}
}

func TestResolveSpansEntirely(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(0), Duration: rt(100), SourceIn: rt(0)}}
	target := Target{TrackID: "t1", Start: rt(40), Duration: rt(20)}
	actions := Resolve(clips, target, nil)
	if len(actions) != 2 {
		t.Fatalf("expected trim+insert, got %+v", actions)
	}
	if actions[0].Type != ActionTrim || actions[0].After.Duration.Frames != 40 {
		t.Fatalf("unexpected left piece: %+v", actions[0])
	}
	if actions[1].Type != ActionInsert || actions[1].After.Start.Frames != 60 || actions[1].After.Duration.Frames != 40 {
		t.Fatalf("unexpected right piece: %+v", actions[1])
	}
}

func TestResolveExcludesSelf(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(0), Duration: rt(50)}}
	target := Target{TrackID: "t1", Start: rt(0), Duration: rt(50), ExcludeClipID: "a"}
	if actions := Resolve(clips, target, nil); len(actions) != 0 {
		t.Fatalf("expected no actions, got %+v", actions)
	}
}

func TestResolveNoOverlap(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(0), Duration: rt(10)}}
	target := Target{TrackID: "t1", Start: rt(20), Duration: rt(10)}
	if actions := Resolve(clips, target, nil); len(actions) != 0 {
		t.Fatalf("expected no actions, got %+v", actions)
	}
}

func TestResolvePendingOverlay(t *testing.T) {
	clips := []Clip{{ID: "a", TrackID: "t1", Start: rt(100), Duration: rt(10)}}
	target := Target{TrackID: "t1", Start: rt(0), Duration: rt(10)}
	// Without the overlay there's no overlap; with it pretending the clip
	// already moved to 0, it should collide.
	if actions := Resolve(clips, target, nil); len(actions) != 0 {
		t.Fatalf("expected no actions without overlay, got %+v", actions)
	}
	pending := map[string]Pending{"a": {Start: rt(0), Duration: rt(10)}}
	actions := Resolve(clips, target, pending)
	if len(actions) != 1 || actions[0].Type != ActionDelete {
		t.Fatalf("expected delete with overlay applied, got %+v", actions)
	}
}
