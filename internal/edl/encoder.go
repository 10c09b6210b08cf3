// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package edl

import (
	"fmt"
	"io"

	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/store"
)

// Encoder writes a nlecore timeline sequence out as a CMX 3600 EDL. Where a
// typical OTIO-based encoder walks an in-memory opentimelineio.Timeline,
// this one walks model.Track/model.Clip directly, since nlecore never
// builds a gotio timeline at all.
type Encoder struct {
	w           io.Writer
	style       OutputStyle
	reelNameLen int
}

// NewEncoder creates an EDL encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, style: OutputStyleAvid, reelNameLen: DefaultReelNameLength}
}

// SetStyle sets the output style (avid, nucoda, premiere). Recorded on the
// encoder but every style shares one comment convention today; kept so a
// caller's config can select a style without internal/edl growing a second
// encoder.
func (e *Encoder) SetStyle(style OutputStyle) { e.style = style }

// SetReelNameLength sets the maximum reel-name column width. 0 or negative
// disables truncation.
func (e *Encoder) SetReelNameLength(length int) { e.reelNameLen = length }

// Encode writes every track of seq, video first then audio in track index
// order, as one EDL. EDL supports a single video track; a sequence with
// more than one returns an *EncodeError rather than silently picking one.
func (e *Encoder) Encode(g *store.Gateway, seq *model.Sequence) error {
	if seq == nil {
		return &EncodeError{Message: "sequence is nil"}
	}
	tracks, err := model.TracksInSequence(g, seq.ID)
	if err != nil {
		return err
	}

	var videoTracks, audioTracks []*model.Track
	for _, t := range tracks {
		if t.Kind == model.TrackKindVideo {
			videoTracks = append(videoTracks, t)
		} else {
			audioTracks = append(audioTracks, t)
		}
	}
	if len(videoTracks) > 1 {
		return &EncodeError{Message: "EDL format supports only one video track"}
	}

	if err := e.writeHeader(seq); err != nil {
		return err
	}

	eventNumber := 1
	if len(videoTracks) > 0 {
		var err error
		eventNumber, err = e.writeTrackEvents(g, videoTracks[0], TrackTypeVideo, eventNumber, seq.FPSNum, seq.FPSDen)
		if err != nil {
			return err
		}
	}
	audioTypes := []TrackType{TrackTypeAudio1, TrackTypeAudio2, TrackTypeAudio3, TrackTypeAudio4}
	for i, track := range audioTracks {
		trackType := TrackTypeAudio
		if i < len(audioTypes) {
			trackType = audioTypes[i]
		}
		var err error
		eventNumber, err = e.writeTrackEvents(g, track, trackType, eventNumber, seq.FPSNum, seq.FPSDen)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeHeader(seq *model.Sequence) error {
	title := seq.Name
	if title == "" {
		title = "Timeline"
	}
	if _, err := fmt.Fprintf(e.w, "TITLE: %s\n", title); err != nil {
		return err
	}
	_, err := fmt.Fprintf(e.w, "FCM: NON-DROP FRAME\n\n")
	return err
}

// writeTrackEvents walks trackID's clips in start order. Disabled clips are
// skipped: the EDL has no representation for a disabled/muted clip, so
// exporting one as a normal event would misrepresent the cut.
func (e *Encoder) writeTrackEvents(g *store.Gateway, track *model.Track, trackType TrackType, startEventNum int, fpsNum, fpsDen uint32) (int, error) {
	clips, err := model.ClipsOnTrack(g, track.ID)
	if err != nil {
		return startEventNum, err
	}

	eventNumber := startEventNum
	for _, c := range clips {
		if !c.Enabled {
			continue
		}
		recordIn := c.TimelineStart.Frames
		recordOut := recordIn + c.Duration.Frames
		sourceIn := c.SourceIn.Frames
		sourceOut := c.SourceOut.Frames

		reelName := "AX"
		if c.MediaID != nil && *c.MediaID != "" {
			reelName = *c.MediaID
		}
		reelName = SanitizeReelName(reelName, e.reelNameLen)

		if err := e.writeEvent(Event{
			EventNumber: eventNumber,
			ReelName:    reelName,
			TrackType:   trackType,
			EditType:    EditTypeCut,
			SourceIn:    FramesToTimecode(sourceIn, fpsNum, fpsDen),
			SourceOut:   FramesToTimecode(sourceOut, fpsNum, fpsDen),
			RecordIn:    FramesToTimecode(recordIn, fpsNum, fpsDen),
			RecordOut:   FramesToTimecode(recordOut, fpsNum, fpsDen),
			ClipName:    c.Name,
		}); err != nil {
			return eventNumber, err
		}
		eventNumber++
	}
	return eventNumber, nil
}

func (e *Encoder) writeEvent(event Event) error {
	eventLine := fmt.Sprintf("%03d  %-8s %s    %-2s", event.EventNumber, event.ReelName, event.TrackType, event.EditType)
	if _, err := fmt.Fprintf(e.w, "%s\n", eventLine); err != nil {
		return err
	}

	timecodeLine := fmt.Sprintf("     %s %s %s %s", event.SourceIn, event.SourceOut, event.RecordIn, event.RecordOut)
	if _, err := fmt.Fprintf(e.w, "%s\n", timecodeLine); err != nil {
		return err
	}

	if event.ClipName != "" {
		if _, err := fmt.Fprintf(e.w, "* FROM CLIP NAME: %s\n", event.ClipName); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(e.w, "\n")
	return err
}
