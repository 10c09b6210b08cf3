package edl

import (
	"strings"
	"testing"

	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/rational"
	"github.com/mrjoshuak/nlecore/internal/store"
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

func rt24(frames int64) rational.Time { return rational.New(frames, 24, 1) }

func TestEncodeRoundTripsThroughImport(t *testing.T) {
	g := openTestGateway(t)

	proj := &model.Project{Name: "p"}
	if err := proj.Save(g); err != nil {
		t.Fatalf("save project: %v", err)
	}

	seq := &model.Sequence{ProjectID: proj.ID, Name: "Encoded", Kind: model.SequenceKindTimeline, FPSNum: 24, FPSDen: 1}
	if err := seq.Save(g); err != nil {
		t.Fatalf("save sequence: %v", err)
	}

	track := &model.Track{SequenceID: seq.ID, Kind: model.TrackKindVideo, Index: 1, Name: "V", Height: 80}
	if err := track.Save(g); err != nil {
		t.Fatalf("save track: %v", err)
	}

	mediaID := "REEL01"
	clip := &model.Clip{
		ProjectID: proj.ID, ClipKind: model.ClipKindTimeline, TrackID: &track.ID, OwnerSequenceID: seq.ID,
		MediaID: &mediaID, Name: "shot_010", Enabled: true, FPSNum: 24, FPSDen: 1,
		TimelineStart: rt24(0), Duration: rt24(240), SourceIn: rt24(0), SourceOut: rt24(240),
	}
	if _, err := clip.Save(g, model.SaveOptions{}); err != nil {
		t.Fatalf("save clip: %v", err)
	}

	var out strings.Builder
	enc := NewEncoder(&out)
	if err := enc.Encode(g, seq); err != nil {
		t.Fatalf("encode: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "TITLE: Encoded") {
		t.Fatalf("expected title line, got:\n%s", text)
	}
	if !strings.Contains(text, "00:00:00:00 00:00:10:00") {
		t.Fatalf("expected source timecodes for a 240-frame clip at 24fps, got:\n%s", text)
	}
	if !strings.Contains(text, "REEL01") {
		t.Fatalf("expected reel name derived from media id, got:\n%s", text)
	}

	dec := NewDecoder(strings.NewReader(text))
	events, err := dec.ParseEvents()
	if err != nil {
		t.Fatalf("re-parse encoded EDL: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event decoded back out, got %d", len(events))
	}
	if events[0].RecordOut != "00:00:10:00" {
		t.Fatalf("expected record-out 00:00:10:00, got %q", events[0].RecordOut)
	}
}

func TestEncodeRejectsMultipleVideoTracks(t *testing.T) {
	g := openTestGateway(t)
	proj := &model.Project{Name: "p"}
	if err := proj.Save(g); err != nil {
		t.Fatalf("save project: %v", err)
	}
	seq := &model.Sequence{ProjectID: proj.ID, Name: "Multi", Kind: model.SequenceKindTimeline, FPSNum: 24, FPSDen: 1}
	if err := seq.Save(g); err != nil {
		t.Fatalf("save sequence: %v", err)
	}
	for i := 0; i < 2; i++ {
		track := &model.Track{SequenceID: seq.ID, Kind: model.TrackKindVideo, Index: i + 1, Name: "V", Height: 80}
		if err := track.Save(g); err != nil {
			t.Fatalf("save track: %v", err)
		}
	}

	var out strings.Builder
	enc := NewEncoder(&out)
	if err := enc.Encode(g, seq); err == nil {
		t.Fatal("expected an error for a sequence with two video tracks")
	}
}
