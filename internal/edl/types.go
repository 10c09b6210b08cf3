// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

// Package edl decodes CMX 3600 Edit Decision Lists into nlecore command
// records and encodes a timeline sequence back out to EDL text. The parsing
// stack (event/timecode/comment regexes, gap detection via lastRecordOut)
// mirrors the classic cmx3600 codec approach; only the output side differs,
// emitting CreateSequence/CreateClip records nlecore's dispatcher can
// execute directly instead of an in-memory timeline object.
package edl

import "fmt"

// EditType is the edit type column of an EDL event line.
type EditType string

const (
	EditTypeCut           EditType = "C"
	EditTypeDissolve      EditType = "D"
	EditTypeWipe          EditType = "W"
	EditTypeKeyBackground EditType = "KB"
	EditTypeKey           EditType = "K"
)

// TrackType is the track column of an EDL event line.
type TrackType string

const (
	TrackTypeVideo  TrackType = "V"
	TrackTypeAudio  TrackType = "A"
	TrackTypeAudio1 TrackType = "A1"
	TrackTypeAudio2 TrackType = "A2"
	TrackTypeAudio3 TrackType = "A3"
	TrackTypeAudio4 TrackType = "A4"
)

// IsVideoTrack reports whether t names the EDL's one video track.
func (t TrackType) IsVideoTrack() bool { return t == TrackTypeVideo }

// IsAudioTrack reports whether t names any of the EDL's audio tracks.
func (t TrackType) IsAudioTrack() bool {
	return t == TrackTypeAudio || t == TrackTypeAudio1 || t == TrackTypeAudio2 ||
		t == TrackTypeAudio3 || t == TrackTypeAudio4
}

// Event is one parsed EDL event (an event/timecode line pair plus whatever
// comment lines follow it).
type Event struct {
	EventNumber        int
	ReelName           string
	TrackType          TrackType
	EditType           EditType
	SourceIn           string
	SourceOut          string
	RecordIn           string
	RecordOut          string
	Comment            string
	ClipName           string
	TransitionDuration int
	WipeCode           string
	SpeedEffect        *SpeedEffect
	FreezeFrame        bool
	FilePath           string
	Markers            []Marker
	ASCCDL              *ASCCDL
}

// SpeedEffect is an M2 motion-effect line.
type SpeedEffect struct {
	Name     string
	Speed    float64
	Timecode string
}

// Marker is a locator/marker comment line (* LOC:).
type Marker struct {
	Timecode string
	Color    string
	Comment  string
}

// ASCCDL is ASC Color Decision List metadata carried in comment lines.
type ASCCDL struct {
	Slope      [3]float64
	Offset     [3]float64
	Power      [3]float64
	Saturation float64
}

// OutputStyle selects the encoder's comment/header conventions.
type OutputStyle string

const (
	OutputStyleAvid     OutputStyle = "avid"
	OutputStyleNucoda   OutputStyle = "nucoda"
	OutputStylePremiere OutputStyle = "premiere"
)

// DefaultReelNameLength is the conventional CMX 3600 reel-name column width.
const DefaultReelNameLength = 8

// SanitizeReelName forces name into the alphanumeric/underscore alphabet EDL
// reel names require, truncated to maxLength (no limit when <= 0).
func SanitizeReelName(name string, maxLength int) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	name = string(out)
	if maxLength > 0 && len(name) > maxLength {
		name = name[:maxLength]
	}
	if name == "" {
		name = "AX"
	}
	return name
}

// ParseError reports a malformed EDL line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string { return fmt.Sprintf("edl: line %d: %s", e.Line, e.Message) }

// EncodeError reports a timeline that cannot be expressed as an EDL.
type EncodeError struct {
	Message string
}

func (e *EncodeError) Error() string { return fmt.Sprintf("edl: encode: %s", e.Message) }
