// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package edl

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Decoder reads a CMX 3600 EDL and turns it into a batch of command
// records the dispatcher can run as one BatchCommand.
type Decoder struct {
	r    io.Reader
	rate float64
}

// NewDecoder builds a Decoder reading from r at the default 24fps.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, rate: 24.0}
}

// SetRate sets the frame rate used to interpret timecodes.
func (d *Decoder) SetRate(rate float64) { d.rate = rate }

var eventLineRegex = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s+(V|A\d?|AA)\s+(C|D|W\d{3}|KB|K)\s*(\d+)?`)
var timecodeLineRegex = regexp.MustCompile(`^\s*(\d{2}:\d{2}:\d{2}[;:]\d{2})\s+(\d{2}:\d{2}:\d{2}[;:]\d{2})\s+(\d{2}:\d{2}:\d{2}[;:]\d{2})\s+(\d{2}:\d{2}:\d{2}[;:]\d{2})`)
var speedEffectRegex = regexp.MustCompile(`^M2\s+(?P<name>\S+)\s+(?P<speed>-?[0-9.]+)\s+(?P<tc>\d{2}:\d{2}:\d{2}:\d{2})`)
var markerRegex = regexp.MustCompile(`^\*\s*LOC:\s+(\d{2}:\d{2}:\d{2}:\d{2})\s+(\w*)(\s+|$)(.*)`)

// ParseEvents reads every event out of the EDL, in file order.
func (d *Decoder) ParseEvents() ([]Event, error) {
	scanner := bufio.NewScanner(d.r)
	var events []Event
	var current *Event
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		trimmedLine := strings.TrimSpace(line)

		if trimmedLine == "" {
			continue
		}
		if strings.HasPrefix(trimmedLine, "TITLE:") || strings.HasPrefix(trimmedLine, "FCM:") {
			continue
		}

		if matches := eventLineRegex.FindStringSubmatch(line); matches != nil {
			if current != nil {
				events = append(events, *current)
			}
			eventNum, _ := strconv.Atoi(matches[1])
			transitionDuration := 0
			if matches[5] != "" {
				transitionDuration, _ = strconv.Atoi(matches[5])
			}
			editTypeStr := matches[4]
			editType := EditType(editTypeStr)
			wipeCode := ""
			if len(editTypeStr) == 4 && editTypeStr[0] == 'W' {
				editType = EditTypeWipe
				wipeCode = editTypeStr
			}
			current = &Event{
				EventNumber:        eventNum,
				ReelName:           matches[2],
				TrackType:          TrackType(matches[3]),
				EditType:           editType,
				TransitionDuration: transitionDuration,
				WipeCode:           wipeCode,
			}
			if scanner.Scan() {
				lineNum++
				tcLine := scanner.Text()
				tcMatches := timecodeLineRegex.FindStringSubmatch(tcLine)
				if tcMatches == nil {
					return nil, &ParseError{Line: lineNum, Message: "expected timecode line after event"}
				}
				current.SourceIn, current.SourceOut = tcMatches[1], tcMatches[2]
				current.RecordIn, current.RecordOut = tcMatches[3], tcMatches[4]
			}
			continue
		}

		if strings.HasPrefix(trimmedLine, "M2") {
			if current != nil && speedEffectRegex.MatchString(line) {
				m := speedEffectRegex.FindStringSubmatch(line)
				if len(m) == 4 {
					speed, _ := strconv.ParseFloat(m[2], 64)
					current.SpeedEffect = &SpeedEffect{Name: m[1], Speed: speed, Timecode: m[3]}
				}
			}
			continue
		}

		if current == nil {
			continue
		}
		switch {
		case strings.HasPrefix(trimmedLine, "*FROM CLIP NAME:"):
			current.ClipName = strings.TrimSpace(strings.TrimPrefix(trimmedLine, "*FROM CLIP NAME:"))
		case strings.HasPrefix(trimmedLine, "* FROM CLIP NAME:"):
			current.ClipName = strings.TrimSpace(strings.TrimPrefix(trimmedLine, "* FROM CLIP NAME:"))
		case strings.HasPrefix(trimmedLine, "*FROM CLIP:"):
			current.FilePath = strings.TrimSpace(strings.TrimPrefix(trimmedLine, "*FROM CLIP:"))
		case strings.HasPrefix(trimmedLine, "* FROM CLIP:"):
			current.FilePath = strings.TrimSpace(strings.TrimPrefix(trimmedLine, "* FROM CLIP:"))
		case strings.HasPrefix(trimmedLine, "*FROM FILE:"):
			current.FilePath = strings.TrimSpace(strings.TrimPrefix(trimmedLine, "*FROM FILE:"))
		case strings.HasPrefix(trimmedLine, "* FROM FILE:"):
			current.FilePath = strings.TrimSpace(strings.TrimPrefix(trimmedLine, "* FROM FILE:"))
		case strings.HasPrefix(trimmedLine, "* FREEZE FRAME") || strings.HasSuffix(trimmedLine, " FF"):
			current.FreezeFrame = true
		case markerRegex.MatchString(trimmedLine):
			m := markerRegex.FindStringSubmatch(trimmedLine)
			if len(m) == 5 {
				current.Markers = append(current.Markers, Marker{Timecode: m[1], Color: m[2], Comment: strings.TrimSpace(m[4])})
			}
		case strings.HasPrefix(trimmedLine, "*"):
			if current.Comment != "" {
				current.Comment += "\n"
			}
			current.Comment += trimmedLine
		}
	}
	if current != nil {
		events = append(events, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// BatchEntry is one member of the command batch an Import produces: the
// same {name, parameters, _ref, _capture_field} shape BatchCommand's
// "commands" array expects. Ref/CaptureField are empty except on the
// CreateSequence and AddTrack entries, whose generated ids later entries
// need to reference before they exist.
type BatchEntry struct {
	Name         string
	Parameters   map[string]any
	Ref          string
	CaptureField string
}

// ImportOptions configures how an EDL is turned into a command batch.
type ImportOptions struct {
	ProjectID    string
	SequenceName string
	FPSNum       uint32
	FPSDen       uint32
}

// ImportResult is Import's return value.
type ImportResult struct {
	Commands           []BatchEntry
	DroppedTransitions int // non-cut edit events collapsed to a straight cut
	GapCount           int // record-side gaps between consecutive events
}

// trackOrder fixes the EDL track-type to nlecore-track-name mapping: one
// video track plus up to four audio tracks, in CMX 3600's canonical order.
var trackOrder = []TrackType{TrackTypeVideo, TrackTypeAudio, TrackTypeAudio1, TrackTypeAudio2, TrackTypeAudio3, TrackTypeAudio4}

// Import decodes the EDL and returns the CreateSequence/AddTrack/CreateClip
// batch that reproduces it in nlecore, collapsing any dissolve/wipe event to
// a straight cut (§3's Clip model has no transition type) and counting the
// drop instead of silently losing it.
func (d *Decoder) Import(opts ImportOptions) (*ImportResult, error) {
	events, err := d.ParseEvents()
	if err != nil {
		return nil, err
	}

	byTrack := make(map[TrackType][]Event)
	for _, ev := range events {
		byTrack[ev.TrackType] = append(byTrack[ev.TrackType], ev)
	}

	fpsNum, fpsDen := opts.FPSNum, opts.FPSDen
	if fpsNum == 0 {
		fpsNum, fpsDen = uint32(d.rate+0.5), 1
	}

	seqName := opts.SequenceName
	if seqName == "" {
		seqName = "EDL Import"
	}

	res := &ImportResult{}
	res.Commands = append(res.Commands, BatchEntry{
		Name: "CreateSequence",
		Parameters: map[string]any{
			"name":       seqName,
			"project_id": opts.ProjectID,
			"frame_rate": map[string]any{"num": fpsNum, "den": fpsDen},
			// Every track this import needs comes from its own explicit
			// AddTrack entry below; CreateSequence's usual V1-3/A1-3
			// default set would otherwise sit empty alongside them.
			"skip_default_tracks": true,
		},
		Ref:          "sequence",
		CaptureField: "sequence_id",
	})

	for _, tt := range trackOrder {
		evs, ok := byTrack[tt]
		if !ok {
			continue
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].EventNumber < evs[j].EventNumber })

		kind := "video"
		if tt.IsAudioTrack() {
			kind = "audio"
		}
		trackTag := "track_" + string(tt)
		res.Commands = append(res.Commands, BatchEntry{
			Name: "AddTrack",
			Parameters: map[string]any{
				"sequence_id": "$sequence", "kind": kind, "name": string(tt),
			},
			Ref:          trackTag,
			CaptureField: "track_id",
		})

		// A classic OTIO-style importer inserts an explicit Gap item whenever
		// recordIn runs ahead of the previous event's recordOut, because
		// OTIO tracks are contiguous. nlecore clips carry their own
		// absolute start frame, so a gap is just unused track space
		// between two clips and needs no record of its own — only
		// counted here for the caller's import summary.
		var lastRecordOut int64 = -1
		for _, ev := range evs {
			sourceIn, err := FramesFromTimecode(ev.SourceIn, fpsNum, fpsDen)
			if err != nil {
				return nil, err
			}
			sourceOut, err := FramesFromTimecode(ev.SourceOut, fpsNum, fpsDen)
			if err != nil {
				return nil, err
			}
			recordIn, err := FramesFromTimecode(ev.RecordIn, fpsNum, fpsDen)
			if err != nil {
				return nil, err
			}
			recordOut, err := FramesFromTimecode(ev.RecordOut, fpsNum, fpsDen)
			if err != nil {
				return nil, err
			}

			if ev.EditType != EditTypeCut && ev.TransitionDuration > 0 {
				res.DroppedTransitions++
			}
			if lastRecordOut >= 0 && recordIn > lastRecordOut {
				res.GapCount++
			}
			lastRecordOut = recordOut

			clipName := ev.ClipName
			if clipName == "" {
				clipName = ev.ReelName
			}
			if ev.FreezeFrame && strings.HasSuffix(clipName, " FF") {
				clipName = clipName[:len(clipName)-3]
			}

			res.Commands = append(res.Commands, BatchEntry{Name: "CreateClip", Parameters: map[string]any{
				"track_id":   "$" + trackTag,
				"name":       clipName,
				"start":      map[string]any{"frames": recordIn, "num": fpsNum, "den": fpsDen},
				"duration":   map[string]any{"frames": recordOut - recordIn, "num": fpsNum, "den": fpsDen},
				"source_in":  map[string]any{"frames": sourceIn, "num": fpsNum, "den": fpsDen},
				"source_out": map[string]any{"frames": sourceOut, "num": fpsNum, "den": fpsDen},
				"reel_name":  ev.ReelName,
			}})
		}
	}

	return res, nil
}
