package edl

import (
	"strings"
	"testing"
)

const sampleEDL = `TITLE: SAMPLE SEQUENCE
FCM: NON-DROP FRAME

001  AX       V     C
     00:00:00:00 00:00:10:00 00:00:00:00 00:00:10:00
* FROM CLIP NAME: shot_010.mov

002  BX       V     D    024
     00:00:05:00 00:00:15:00 00:00:10:00 00:00:20:00
* FROM CLIP NAME: shot_020.mov

003  CX       A     C
     00:00:00:00 00:00:08:00 00:00:22:00 00:00:30:00
* FROM CLIP NAME: shot_030.wav

004  DX       A     C
     00:00:00:00 00:00:05:00 00:00:40:00 00:00:45:00
* FROM CLIP NAME: shot_040.wav
`

func TestParseEventsBasic(t *testing.T) {
	dec := NewDecoder(strings.NewReader(sampleEDL))
	events, err := dec.ParseEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].ClipName != "shot_010.mov" {
		t.Fatalf("expected clip name shot_010.mov, got %q", events[0].ClipName)
	}
	if events[1].EditType != EditTypeDissolve || events[1].TransitionDuration != 24 {
		t.Fatalf("expected dissolve with 24-frame duration, got %+v", events[1])
	}
	if events[2].TrackType != TrackTypeAudio {
		t.Fatalf("expected audio track, got %q", events[2].TrackType)
	}
}

func TestImportProducesSequenceTrackClipBatch(t *testing.T) {
	dec := NewDecoder(strings.NewReader(sampleEDL))
	res, err := dec.Import(ImportOptions{ProjectID: "proj1", SequenceName: "Sample", FPSNum: 24, FPSDen: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DroppedTransitions != 1 {
		t.Fatalf("expected 1 dropped transition, got %d", res.DroppedTransitions)
	}
	if res.GapCount != 1 {
		t.Fatalf("expected 1 gap (the audio track's second event starts well after the first one ends), got %d", res.GapCount)
	}

	if res.Commands[0].Name != "CreateSequence" || res.Commands[0].Ref != "sequence" {
		t.Fatalf("expected first entry to be CreateSequence tagged %q, got %+v", "sequence", res.Commands[0])
	}

	var videoTrackTag, audioTrackTag string
	var createClipCount int
	for _, c := range res.Commands {
		switch c.Name {
		case "AddTrack":
			if c.Parameters["kind"] == "video" {
				videoTrackTag = c.Ref
			} else {
				audioTrackTag = c.Ref
			}
			if c.Parameters["sequence_id"] != "$sequence" {
				t.Fatalf("expected AddTrack to reference $sequence, got %v", c.Parameters["sequence_id"])
			}
		case "CreateClip":
			createClipCount++
		}
	}
	if videoTrackTag == "" || audioTrackTag == "" {
		t.Fatalf("expected both a video and an audio AddTrack entry")
	}
	if createClipCount != 4 {
		t.Fatalf("expected 4 CreateClip entries, got %d", createClipCount)
	}
}
