package command

import (
	"encoding/json"
	"fmt"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/mutation"
)

// RegisterExtraCommands wires the remaining §6 command-surface members that
// aren't core small commands (§4.7) or ripple/structural (§4.8-4.10):
// project setup, track/masterclip/sequence lifecycle, cross-track moves,
// nudge, cut, and the nested BatchCommand.
func RegisterExtraCommands(reg *Registry) {
	reg.Register(Spec{Name: "SetupProject", Executor: execSetupProject, Undoer: undoSetupProject, Undoable: true})
	reg.Register(Spec{Name: "AddTrack", Executor: execAddTrack, Undoer: undoAddTrack, Undoable: true})
	reg.Register(Spec{Name: "DuplicateMasterClip", Executor: execDuplicateMasterClip, Undoer: undoDuplicateMasterClip, Undoable: true})
	reg.Register(Spec{Name: "DeleteMasterClip", Executor: execDeleteSequenceLike, Undoer: undoDeleteSequenceLike, Undoable: true})
	reg.Register(Spec{Name: "DeleteSequence", Executor: execDeleteSequenceLike, Undoer: undoDeleteSequenceLike, Undoable: true})
	reg.Register(Spec{Name: "MoveClipToTrack", Executor: execMoveClipToTrack, Undoer: undoMoveClipToTrack, Undoable: true})
	reg.Register(Spec{Name: "Nudge", Executor: execNudge, Undoer: undoNudge, Undoable: true})
	reg.Register(Spec{Name: "Cut", Executor: execCut, Undoer: undoCut, Undoable: true})
	reg.Register(Spec{Name: "BatchCommand", Executor: execBatchCommand, Undoer: undoBatchCommand, Undoable: true})
}

// --- SetupProject ---

// execSetupProject is CreateProject and, when frame_rate/width/height are
// given, a follow-on CreateSequence, run as one undo group via direct
// sub-executor calls (§5's nested-execute-joins-transaction rule, applied
// the same way Split drives N SplitClips).
func execSetupProject(ctx *Context, rec *Record) (ExecResult, error) {
	name, err := str(rec.Parameters, "name", "SetupProject")
	if err != nil {
		return Fail(err.Error()), err
	}

	projectID := optStr(rec.Parameters, "project_id")
	createdProject := false
	if projectID == "" {
		projSpec, _ := ctx.Registry.Lookup("CreateProject")
		sub := &Record{Name: "CreateProject", ProjectID: rec.ProjectID, Parameters: Params{"name": name}}
		res, err := projSpec.Executor(ctx, sub)
		if err != nil || !res.Success {
			return res, err
		}
		projectID, _ = res.Fields["project_id"].(string)
		rec.Parameters["_created_project_id"] = projectID
		rec.Parameters["_sub_create_project"] = sub.Parameters
		createdProject = true
	}
	rec.Parameters["project_id"] = projectID

	if _, ok := rec.Parameters["frame_rate"]; !ok {
		return Ok(map[string]any{"project_id": projectID, "created_project": createdProject}), nil
	}

	seqSpec, _ := ctx.Registry.Lookup("CreateSequence")
	seqSub := &Record{Name: "CreateSequence", ProjectID: rec.ProjectID, Parameters: Params{
		"name":       optStr(rec.Parameters, "sequence_name"),
		"project_id": projectID,
		"frame_rate": rec.Parameters["frame_rate"],
		"width":      rec.Parameters["width"],
		"height":     rec.Parameters["height"],
	}}
	if seqSub.Parameters["name"] == "" {
		seqSub.Parameters["name"] = name
	}
	res, err := seqSpec.Executor(ctx, seqSub)
	if err != nil || !res.Success {
		return res, err
	}
	rec.Parameters["_sub_create_sequence"] = seqSub.Parameters
	sequenceID, _ := res.Fields["sequence_id"].(string)

	return Ok(map[string]any{"project_id": projectID, "sequence_id": sequenceID, "created_project": createdProject}), nil
}

func undoSetupProject(ctx *Context, rec *Record) error {
	if subParams, ok := rec.Parameters["_sub_create_sequence"].(Params); ok {
		spec, _ := ctx.Registry.Lookup("CreateSequence")
		sub := &Record{Name: "CreateSequence", Parameters: subParams}
		if err := spec.Undoer(ctx, sub); err != nil {
			return err
		}
	}
	if subParams, ok := rec.Parameters["_sub_create_project"].(Params); ok {
		spec, _ := ctx.Registry.Lookup("CreateProject")
		sub := &Record{Name: "CreateProject", Parameters: subParams}
		return spec.Undoer(ctx, sub)
	}
	return nil
}

// --- AddTrack ---

func execAddTrack(ctx *Context, rec *Record) (ExecResult, error) {
	sequenceID, err := str(rec.Parameters, "sequence_id", "AddTrack")
	if err != nil {
		return Fail(err.Error()), err
	}
	kind := model.TrackKind(optStr(rec.Parameters, "kind"))
	if kind != model.TrackKindVideo && kind != model.TrackKindAudio {
		err := &cmderr.MissingParameter{Command: "AddTrack", Field: "kind"}
		return Fail(err.Error()), err
	}
	existing, err := model.TracksInSequence(ctx.Store, sequenceID)
	if err != nil {
		return Fail(err.Error()), err
	}
	nextIndex := 1
	for _, t := range existing {
		if t.Kind == kind && t.Index >= nextIndex {
			nextIndex = t.Index + 1
		}
	}
	height := toInt(rec.Parameters["height"])
	if height < 24 {
		height = 24
	}
	name := optStr(rec.Parameters, "name")
	if name == "" {
		name = string(kind)
	}
	t := &model.Track{ID: optStr(rec.Parameters, "track_id"), SequenceID: sequenceID, Kind: kind, Index: nextIndex, Name: name, Height: height}
	if err := t.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["track_id"] = t.ID
	return Ok(map[string]any{"track_id": t.ID}), nil
}

func undoAddTrack(ctx *Context, rec *Record) error {
	trackID := optStr(rec.Parameters, "track_id")
	if trackID == "" {
		return nil
	}
	t, err := model.LoadTrackOptional(ctx.Store, trackID)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	return t.Delete(ctx.Store)
}

// --- DuplicateMasterClip ---

// execDuplicateMasterClip clones a masterclip sequence (its tracks and
// stream clips, with fresh ids) so the project browser gets an independent
// copy, per §4.7's "masterclip sequence IS the master clip" model.
func execDuplicateMasterClip(ctx *Context, rec *Record) (ExecResult, error) {
	srcSeqID, err := str(rec.Parameters, "masterclip_sequence_id", "DuplicateMasterClip")
	if err != nil {
		return Fail(err.Error()), err
	}
	src, err := model.LoadSequence(ctx.Store, srcSeqID)
	if err != nil {
		return Fail(err.Error()), err
	}
	newSeq := *src
	newSeq.ID = ""
	newSeq.Name = src.Name + " copy"
	if name := optStr(rec.Parameters, "name"); name != "" {
		newSeq.Name = name
	}
	if err := newSeq.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}

	tracks, err := model.TracksInSequence(ctx.Store, srcSeqID)
	if err != nil {
		return Fail(err.Error()), err
	}
	trackIDMap := map[string]string{}
	newTrackIDs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		newTrack := *t
		newTrack.ID = ""
		newTrack.SequenceID = newSeq.ID
		if err := newTrack.Save(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}
		trackIDMap[t.ID] = newTrack.ID
		newTrackIDs = append(newTrackIDs, newTrack.ID)
	}

	clips, err := model.ClipsInSequence(ctx.Store, srcSeqID)
	if err != nil {
		return Fail(err.Error()), err
	}
	newClipIDs := make([]string, 0, len(clips))
	for _, c := range clips {
		newClip := *c
		newClip.ID = ""
		newClip.OwnerSequenceID = newSeq.ID
		if c.TrackID != nil {
			nt := trackIDMap[*c.TrackID]
			newClip.TrackID = &nt
		}
		if _, err := newClip.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
			return Fail(err.Error()), err
		}
		if err := model.CopyProperties(ctx.Store, c.ID, newClip.ID); err != nil {
			return Fail(err.Error()), err
		}
		newClipIDs = append(newClipIDs, newClip.ID)
	}

	rec.Parameters["new_sequence_id"] = newSeq.ID
	rec.Parameters["new_track_ids"] = toAnySlice(newTrackIDs)
	rec.Parameters["new_clip_ids"] = toAnySlice(newClipIDs)
	return Ok(map[string]any{"masterclip_sequence_id": newSeq.ID}), nil
}

func undoDuplicateMasterClip(ctx *Context, rec *Record) error {
	for _, id := range strSlice(rec.Parameters, "new_clip_ids") {
		c, err := model.LoadClipOptional(ctx.Store, id)
		if err != nil {
			return err
		}
		if c == nil {
			continue
		}
		_ = model.DeleteClipProperties(ctx.Store, id)
		if err := c.Delete(ctx.Store); err != nil {
			return err
		}
	}
	for _, id := range strSlice(rec.Parameters, "new_track_ids") {
		t, err := model.LoadTrackOptional(ctx.Store, id)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		if err := t.Delete(ctx.Store); err != nil {
			return err
		}
	}
	if seqID := optStr(rec.Parameters, "new_sequence_id"); seqID != "" {
		s, err := model.LoadSequenceOptional(ctx.Store, seqID)
		if err != nil {
			return err
		}
		if s != nil {
			return s.Delete(ctx.Store)
		}
	}
	return nil
}

// --- DeleteMasterClip / DeleteSequence ---

// sequenceSnapshot is the JSON shape persisted for DeleteMasterClip and
// DeleteSequence's undo: the sequence row, its tracks, and every clip (with
// properties) the cascading delete would otherwise lose.
type sequenceSnapshot struct {
	Sequence   model.SequenceSnapshot            `json:"sequence"`
	Tracks     []model.Track                     `json:"tracks"`
	Clips      []model.ClipSnapshot              `json:"clips"`
	Properties map[string][]model.Property       `json:"properties"`
}

func execDeleteSequenceLike(ctx *Context, rec *Record) (ExecResult, error) {
	sequenceID, err := str(rec.Parameters, "sequence_id", rec.Name)
	if err != nil {
		if sequenceID, err = str(rec.Parameters, "masterclip_sequence_id", rec.Name); err != nil {
			return Fail(err.Error()), err
		}
	}
	seq, err := model.LoadSequence(ctx.Store, sequenceID)
	if err != nil {
		return Fail(err.Error()), err
	}
	tracks, err := model.TracksInSequence(ctx.Store, sequenceID)
	if err != nil {
		return Fail(err.Error()), err
	}
	clips, err := model.ClipsInSequence(ctx.Store, sequenceID)
	if err != nil {
		return Fail(err.Error()), err
	}

	snap := sequenceSnapshot{Sequence: seq.Snapshot(), Properties: map[string][]model.Property{}}
	for _, t := range tracks {
		snap.Tracks = append(snap.Tracks, *t)
	}
	for _, c := range clips {
		snap.Clips = append(snap.Clips, c.Snapshot())
		props, err := model.PropertiesForClip(ctx.Store, c.ID)
		if err != nil {
			return Fail(err.Error()), err
		}
		var flat []model.Property
		for _, p := range props {
			flat = append(flat, *p)
		}
		if len(flat) > 0 {
			snap.Properties[c.ID] = flat
		}
	}

	for _, c := range clips {
		_ = model.DeleteClipProperties(ctx.Store, c.ID)
		if err := c.Delete(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}
	}
	for _, t := range tracks {
		if err := t.Delete(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}
	}
	if err := seq.Delete(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["_snapshot"] = string(data)
	return Ok(map[string]any{"deleted_sequence_id": sequenceID}), nil
}

func undoDeleteSequenceLike(ctx *Context, rec *Record) error {
	raw, ok := rec.Parameters["_snapshot"].(string)
	if !ok || raw == "" {
		return nil
	}
	var snap sequenceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
	}
	seq := &model.Sequence{}
	if err := seq.Restore(ctx.Store, snap.Sequence); err != nil {
		return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
	}
	for _, t := range snap.Tracks {
		track := t
		if err := track.Save(ctx.Store); err != nil {
			return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
		}
	}
	for _, cs := range snap.Clips {
		c := &model.Clip{}
		if err := c.Restore(ctx.Store, cs); err != nil {
			return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
		}
	}
	for clipID, props := range snap.Properties {
		for _, p := range props {
			prop := p
			prop.ClipID = clipID
			if err := prop.Save(ctx.Store); err != nil {
				return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
			}
		}
	}
	return nil
}

// --- MoveClipToTrack ---

func execMoveClipToTrack(ctx *Context, rec *Record) (ExecResult, error) {
	clipID, err := str(rec.Parameters, "clip_id", "MoveClipToTrack")
	if err != nil {
		return Fail(err.Error()), err
	}
	trackID, err := str(rec.Parameters, "track_id", "MoveClipToTrack")
	if err != nil {
		return Fail(err.Error()), err
	}
	c, err := model.LoadClip(ctx.Store, clipID)
	if err != nil {
		return Fail(err.Error()), err
	}
	oldTrackID := deref(c.TrackID)
	if oldTrackID == trackID {
		return Ok(map[string]any{"clip_id": clipID}), nil
	}

	oldSnap, err := snapshotTrack(ctx, oldTrackID)
	if err != nil {
		return Fail(err.Error()), err
	}
	newSnap, err := snapshotTrack(ctx, trackID)
	if err != nil {
		return Fail(err.Error()), err
	}

	c.TrackID = &trackID
	actions, err := c.Save(ctx.Store, model.SaveOptions{})
	if err != nil {
		return Fail(err.Error()), err
	}
	if err := applyOcclusionActions(ctx, c.OwnerSequenceID, actions); err != nil {
		return Fail(err.Error()), err
	}
	ctx.Bucket.AddUpdate(c.OwnerSequenceID, mutation.Update{
		ClipID: c.ID, TrackID: trackID, StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames,
		SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames, Enabled: c.Enabled,
	})

	rec.Parameters["clip_id"] = clipID
	rec.Parameters["_old_track_id"] = oldTrackID
	rec.Parameters["_old_track_snapshot"] = oldSnap
	rec.Parameters["_new_track_id"] = trackID
	rec.Parameters["_new_track_snapshot"] = newSnap
	return Ok(map[string]any{"clip_id": clipID}), nil
}

func undoMoveClipToTrack(ctx *Context, rec *Record) error {
	if trackID := optStr(rec.Parameters, "_new_track_id"); trackID != "" {
		if raw, ok := rec.Parameters["_new_track_snapshot"].(string); ok {
			if err := restoreTrack(ctx, trackID, raw); err != nil {
				return err
			}
		}
	}
	if trackID := optStr(rec.Parameters, "_old_track_id"); trackID != "" {
		if raw, ok := rec.Parameters["_old_track_snapshot"].(string); ok {
			return restoreTrack(ctx, trackID, raw)
		}
	}
	return nil
}

// --- Nudge ---

// execNudge shifts every listed clip by a small delta without rippling
// downstream clips (the occlusion resolver settles any resulting overlap
// the normal way, same as a drag-and-drop move).
func execNudge(ctx *Context, rec *Record) (ExecResult, error) {
	clipIDs := strSlice(rec.Parameters, "clip_ids")
	if len(clipIDs) == 0 {
		if id := optStr(rec.Parameters, "clip_id"); id != "" {
			clipIDs = []string{id}
		}
	}
	if len(clipIDs) == 0 {
		err := &cmderr.MissingParameter{Command: "Nudge", Field: "clip_ids"}
		return Fail(err.Error()), err
	}
	deltaFrames := int64(toInt(rec.Parameters["delta_frames"]))

	touchedTracks := map[string]string{}
	for _, id := range clipIDs {
		c, err := model.LoadClip(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), err
		}
		trackID := deref(c.TrackID)
		if trackID != "" {
			if _, seen := touchedTracks[trackID]; !seen {
				snap, err := snapshotTrack(ctx, trackID)
				if err != nil {
					return Fail(err.Error()), err
				}
				touchedTracks[trackID] = snap
			}
		}
		newStart := c.TimelineStart
		newStart.Frames += deltaFrames
		if newStart.Frames < 0 {
			newStart.Frames = 0
		}
		c.TimelineStart = newStart
		actions, err := c.Save(ctx.Store, model.SaveOptions{})
		if err != nil {
			return Fail(err.Error()), err
		}
		if err := applyOcclusionActions(ctx, c.OwnerSequenceID, actions); err != nil {
			return Fail(err.Error()), err
		}
		ctx.Bucket.AddUpdate(c.OwnerSequenceID, mutation.Update{
			ClipID: c.ID, TrackID: trackID, StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames,
			SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames, Enabled: c.Enabled,
		})
	}

	data, err := json.Marshal(touchedTracks)
	if err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["_track_snapshots"] = string(data)
	return Ok(map[string]any{"clip_ids": toAnySlice(clipIDs)}), nil
}

func undoNudge(ctx *Context, rec *Record) error {
	raw, ok := rec.Parameters["_track_snapshots"].(string)
	if !ok || raw == "" {
		return nil
	}
	var snaps map[string]string
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		return &cmderr.UndoFailure{Command: "Nudge", Cause: err}
	}
	for trackID, snap := range snaps {
		if err := restoreTrack(ctx, trackID, snap); err != nil {
			return err
		}
	}
	return nil
}

// --- Cut ---

// execCut removes clips without rippling anything downstream (a plain
// delete-in-place, unlike RippleDelete/RippleDeleteSelection), leaving a
// gap where each clip was.
func execCut(ctx *Context, rec *Record) (ExecResult, error) {
	clipIDs := strSlice(rec.Parameters, "clip_ids")
	if len(clipIDs) == 0 {
		if id := optStr(rec.Parameters, "clip_id"); id != "" {
			clipIDs = []string{id}
		}
	}
	if len(clipIDs) == 0 {
		err := &cmderr.MissingParameter{Command: "Cut", Field: "clip_ids"}
		return Fail(err.Error()), err
	}

	snaps := map[string]model.ClipSnapshot{}
	props := map[string][]model.Property{}
	for _, id := range clipIDs {
		c, err := model.LoadClip(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), err
		}
		snaps[id] = c.Snapshot()
		pl, err := model.PropertiesForClip(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), err
		}
		var flat []model.Property
		for _, p := range pl {
			flat = append(flat, *p)
		}
		props[id] = flat

		_ = model.DeleteClipProperties(ctx.Store, id)
		if err := c.Delete(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}
		ctx.Bucket.AddDelete(c.OwnerSequenceID, mutation.Delete{ClipID: id})
	}

	snapData, err := json.Marshal(snaps)
	if err != nil {
		return Fail(err.Error()), err
	}
	propData, err := json.Marshal(props)
	if err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["_snapshots"] = string(snapData)
	rec.Parameters["_properties"] = string(propData)
	return Ok(map[string]any{"clip_ids": toAnySlice(clipIDs)}), nil
}

func undoCut(ctx *Context, rec *Record) error {
	raw, ok := rec.Parameters["_snapshots"].(string)
	if !ok || raw == "" {
		return nil
	}
	var snaps map[string]model.ClipSnapshot
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		return &cmderr.UndoFailure{Command: "Cut", Cause: err}
	}
	var props map[string][]model.Property
	if propRaw, ok := rec.Parameters["_properties"].(string); ok && propRaw != "" {
		if err := json.Unmarshal([]byte(propRaw), &props); err != nil {
			return &cmderr.UndoFailure{Command: "Cut", Cause: err}
		}
	}
	for id, snap := range snaps {
		c := &model.Clip{ID: id}
		if err := c.Restore(ctx.Store, snap); err != nil {
			return &cmderr.UndoFailure{Command: "Cut", Cause: err}
		}
	}
	for clipID, pl := range props {
		for _, p := range pl {
			prop := p
			prop.ClipID = clipID
			if err := prop.Save(ctx.Store); err != nil {
				return &cmderr.UndoFailure{Command: "Cut", Cause: err}
			}
		}
	}
	return nil
}

// --- BatchCommand ---

// execBatchCommand runs a nested array of command specs in order under the
// caller's transaction and undo group, per §6: each member is invoked
// directly against its own Executor (not re-entered through the
// dispatcher), matching the nested-execute pattern Split and
// RippleDeleteSelection already use.
//
// A batch built by something that doesn't know ids yet — internal/edl's
// importer, chiefly — can thread them through with two reserved fields per
// entry: "_ref" names the tag a later entry's "$tag"-prefixed parameter
// value resolves to, and "_capture_field" says which of this entry's result
// fields becomes that tag's value (defaulting to "id").
func execBatchCommand(ctx *Context, rec *Record) (ExecResult, error) {
	if ctx.BatchDepth >= 1 {
		err := &cmderr.ConstraintViolation{Message: "BatchCommand: nested BatchCommand entries are not supported"}
		return Fail(err.Error()), err
	}
	raw, ok := rec.Parameters["commands"].([]any)
	if !ok || len(raw) == 0 {
		err := &cmderr.MissingParameter{Command: "BatchCommand", Field: "commands"}
		return Fail(err.Error()), err
	}

	ctx.BatchDepth++
	defer func() { ctx.BatchDepth-- }()

	refs := map[string]string{}
	var executed []Params
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			err := &cmderr.ConstraintViolation{Message: "BatchCommand: each entry must be a command object"}
			return Fail(err.Error()), err
		}
		name, _ := m["name"].(string)
		if name == "" {
			err := &cmderr.MissingParameter{Command: "BatchCommand", Field: "commands[].name"}
			return Fail(err.Error()), err
		}
		params, _ := m["parameters"].(map[string]any)
		if params == nil {
			params = map[string]any{}
		}
		resolved, err := resolveBatchRefs(params, refs)
		if err != nil {
			return Fail(err.Error()), err
		}
		spec, err := ctx.Registry.Lookup(name)
		if err != nil {
			return Fail(err.Error()), err
		}
		sub := &Record{Name: name, ProjectID: rec.ProjectID, Parameters: Params(resolved)}
		res, err := spec.Executor(ctx, sub)
		if err == nil && res.Success {
			if refName, ok := m["_ref"].(string); ok && refName != "" {
				field, _ := m["_capture_field"].(string)
				if field == "" {
					field = "id"
				}
				if v, ok := res.Fields[field].(string); ok {
					refs[refName] = v
				}
			}
		}
		if err != nil || !res.Success {
			// Unwind whatever already committed in this batch before failing.
			for i := len(executed) - 1; i >= 0; i-- {
				subSpec, _ := ctx.Registry.Lookup(executed[i]["__name"].(string))
				if subSpec.Undoer != nil {
					undoRec := &Record{Name: executed[i]["__name"].(string), Parameters: executed[i]}
					_ = subSpec.Undoer(ctx, undoRec)
				}
			}
			msg := res.ErrorMessage
			if err != nil {
				msg = err.Error()
			}
			return Fail(msg), err
		}
		sub.Parameters["__name"] = name
		executed = append(executed, sub.Parameters)
	}

	data, err := json.Marshal(executed)
	if err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["_executed"] = string(data)
	return Ok(nil), nil
}

func undoBatchCommand(ctx *Context, rec *Record) error {
	raw, ok := rec.Parameters["_executed"].(string)
	if !ok || raw == "" {
		return nil
	}
	var executed []Params
	if err := json.Unmarshal([]byte(raw), &executed); err != nil {
		return &cmderr.UndoFailure{Command: "BatchCommand", Cause: err}
	}
	for i := len(executed) - 1; i >= 0; i-- {
		name, _ := executed[i]["__name"].(string)
		spec, err := ctx.Registry.Lookup(name)
		if err != nil {
			return &cmderr.UndoFailure{Command: "BatchCommand", Cause: err}
		}
		if spec.Undoer == nil {
			continue
		}
		sub := &Record{Name: name, Parameters: executed[i]}
		if err := spec.Undoer(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// resolveBatchRefs returns a copy of params with every top-level string
// value of the form "$tag" replaced by refs["tag"]. An unresolved "$tag"
// fails the batch rather than passing the literal placeholder through to
// the sub-command.
func resolveBatchRefs(params map[string]any, refs map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		s, ok := v.(string)
		if !ok || len(s) < 2 || s[0] != '$' {
			out[k] = v
			continue
		}
		tag := s[1:]
		resolved, ok := refs[tag]
		if !ok {
			return nil, &cmderr.ConstraintViolation{Message: fmt.Sprintf("BatchCommand: unresolved reference %q in field %q", s, k)}
		}
		out[k] = resolved
	}
	return out, nil
}

// --- shared helpers ---

func toAnySlice(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
