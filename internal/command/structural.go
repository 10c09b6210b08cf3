package command

import (
	"encoding/json"
	"sort"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/mutation"
	"github.com/mrjoshuak/nlecore/internal/occlusion"
	"github.com/mrjoshuak/nlecore/internal/rational"
)

// RegisterStructuralCommands wires the track-mutating commands of §4.8/§4.9
// into reg: everything that adds, removes, or re-shapes clips on a track.
func RegisterStructuralCommands(reg *Registry) {
	reg.Register(Spec{Name: "CreateClip", Executor: execPlaceClip, Undoer: undoPlaceClip, Undoable: true})
	reg.Register(Spec{Name: "AddClip", Executor: execPlaceClip, Undoer: undoPlaceClip, Undoable: true})
	reg.Register(Spec{Name: "InsertClipToTimeline", Executor: execPlaceClip, Undoer: undoPlaceClip, Undoable: true})
	reg.Register(Spec{Name: "Overwrite", Executor: execPlaceClip, Undoer: undoPlaceClip, Undoable: true})
	reg.Register(Spec{Name: "Insert", Executor: execInsert, Undoer: undoInsert, Undoable: true})
	reg.Register(Spec{Name: "SplitClip", Executor: execSplitClip, Undoer: undoSplitClip, Undoable: true})
	reg.Register(Spec{Name: "Split", Executor: execSplit, Undoer: undoSplit, Undoable: true})
	reg.Register(Spec{Name: "RippleDelete", Executor: execRippleDelete, Undoer: undoRippleDelete, Undoable: true})
	reg.Register(Spec{Name: "RippleDeleteSelection", Executor: execRippleDeleteSelection, Undoer: undoRippleDeleteSelection, Undoable: true})
}

// --- track snapshot helper: generic undo for any command that mutates a
// single track's clip set (trims, deletes, inserts caused by occlusion or
// ripple). Capturing every clip on the track before the command runs and
// restoring it afterward is cheaper to get right than inverting every
// individual occlusion action. ---

func snapshotTrack(ctx *Context, trackID string) (string, error) {
	clips, err := model.ClipsOnTrack(ctx.Store, trackID)
	if err != nil {
		return "", err
	}
	snaps := make([]model.ClipSnapshot, 0, len(clips))
	for _, c := range clips {
		snaps = append(snaps, c.Snapshot())
	}
	data, err := json.Marshal(snaps)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// restoreTrack puts trackID's clip set back to exactly what raw describes:
// deletes any clip now present that wasn't in the snapshot, then restores
// every snapshotted clip (re-creating anything the command deleted).
func restoreTrack(ctx *Context, trackID, raw string) error {
	var snaps []model.ClipSnapshot
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		return &cmderr.UndoFailure{Command: "restoreTrack", Cause: err}
	}
	kept := map[string]bool{}
	for _, s := range snaps {
		kept[s.ID] = true
	}

	current, err := model.ClipsOnTrack(ctx.Store, trackID)
	if err != nil {
		return &cmderr.UndoFailure{Command: "restoreTrack", Cause: err}
	}
	for _, c := range current {
		if !kept[c.ID] {
			_ = model.DeleteClipProperties(ctx.Store, c.ID)
			if err := c.Delete(ctx.Store); err != nil {
				return &cmderr.UndoFailure{Command: "restoreTrack", Cause: err}
			}
		}
	}
	for _, s := range snaps {
		c := &model.Clip{}
		if err := c.Restore(ctx.Store, s); err != nil {
			return &cmderr.UndoFailure{Command: "restoreTrack", Cause: err}
		}
	}
	return nil
}

// applyOcclusionActions persists the trims/deletes/inserts the occlusion
// resolver planned and records each one in the mutation bucket (§4.6).
func applyOcclusionActions(ctx *Context, ownerSequenceID string, actions []occlusion.Action) error {
	for _, a := range actions {
		switch a.Type {
		case occlusion.ActionDelete:
			orig, _ := a.Before.Payload.(*model.Clip)
			if orig == nil {
				continue
			}
			if err := model.DeleteClipProperties(ctx.Store, orig.ID); err != nil {
				return err
			}
			if err := orig.Delete(ctx.Store); err != nil {
				return err
			}
			ctx.Bucket.AddDelete(ownerSequenceID, mutation.Delete{ClipID: orig.ID})

		case occlusion.ActionTrim:
			orig, _ := a.Before.Payload.(*model.Clip)
			if orig == nil {
				continue
			}
			orig.TimelineStart = a.After.Start
			orig.Duration = a.After.Duration
			orig.SourceIn = a.After.SourceIn
			if _, err := orig.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
				return err
			}
			ctx.Bucket.AddUpdate(ownerSequenceID, mutation.Update{
				ClipID: orig.ID, TrackID: deref(orig.TrackID), StartValue: orig.TimelineStart.Frames,
				Duration: orig.Duration.Frames, SourceIn: orig.SourceIn.Frames, SourceOut: orig.SourceOut.Frames,
				Enabled: orig.Enabled,
			})

		case occlusion.ActionInsert:
			orig, _ := a.After.Payload.(*model.Clip)
			if orig == nil {
				continue
			}
			clone := *orig
			clone.ID = ""
			clone.TimelineStart = a.After.Start
			clone.Duration = a.After.Duration
			clone.SourceIn = a.After.SourceIn
			if _, err := clone.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
				return err
			}
			if err := model.CopyProperties(ctx.Store, orig.ID, clone.ID); err != nil {
				return err
			}
			ctx.Bucket.AddInsert(ownerSequenceID, mutation.Insert{
				ID: clone.ID, ClipKind: string(clone.ClipKind), Name: clone.Name, TrackID: deref(clone.TrackID),
				OwnerSequenceID: clone.OwnerSequenceID, StartValue: clone.TimelineStart.Frames, Duration: clone.Duration.Frames,
				SourceIn: clone.SourceIn.Frames, SourceOut: clone.SourceOut.Frames, Enabled: clone.Enabled,
				ProjectID: clone.ProjectID, MediaID: deref(clone.MediaID), ParentClipID: deref(clone.ParentClipID),
			})
		}
	}
	return nil
}

// --- CreateClip / AddClip / InsertClipToTimeline / Overwrite ---
//
// All four place one clip at a timeline position on a track, resolving
// whatever occlusion results against the clips already there (§4.4). They
// differ only in their typical caller, so they share one executor.

func execPlaceClip(ctx *Context, rec *Record) (ExecResult, error) {
	trackID, err := str(rec.Parameters, "track_id", "CreateClip")
	if err != nil {
		return Fail(err.Error()), nil
	}
	track, err := model.LoadTrack(ctx.Store, trackID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	sequence, err := model.LoadSequence(ctx.Store, track.SequenceID)
	if err != nil {
		return Fail(err.Error()), nil
	}

	start, err := rt(rec.Parameters, "start", sequence.FPSNum, sequence.FPSDen, "CreateClip")
	if err != nil {
		return Fail(err.Error()), nil
	}

	var parent *model.Clip
	if parentID := optStr(rec.Parameters, "parent_clip_id"); parentID != "" {
		parent, err = model.LoadClip(ctx.Store, parentID)
		if err != nil {
			return Fail(err.Error()), nil
		}
	}

	duration, err := optRT(rec.Parameters, "duration", sequence.FPSNum, sequence.FPSDen)
	if err != nil {
		return Fail(err.Error()), nil
	}
	sourceIn, err := optRT(rec.Parameters, "source_in", sequence.FPSNum, sequence.FPSDen)
	if err != nil {
		return Fail(err.Error()), nil
	}
	sourceOut, err := optRT(rec.Parameters, "source_out", sequence.FPSNum, sequence.FPSDen)
	if err != nil {
		return Fail(err.Error()), nil
	}

	c := &model.Clip{
		ID:        optStr(rec.Parameters, "clip_id"),
		ProjectID: rec.ProjectID, ClipKind: model.ClipKindTimeline, TrackID: &trackID,
		OwnerSequenceID: track.SequenceID, TimelineStart: start,
		Enabled: true, FPSNum: sequence.FPSNum, FPSDen: sequence.FPSDen,
	}
	if parent != nil {
		c.ParentClipID = &parent.ID
		c.MediaID = parent.MediaID
		c.Name = parent.Name
		c.Duration = parent.Duration.Rescale(sequence.FPSNum, sequence.FPSDen)
		c.SourceIn = parent.SourceIn.Rescale(sequence.FPSNum, sequence.FPSDen)
		c.SourceOut = parent.SourceOut.Rescale(sequence.FPSNum, sequence.FPSDen)
	}
	if duration != nil {
		c.Duration = *duration
	}
	if sourceIn != nil {
		c.SourceIn = *sourceIn
	}
	if sourceOut != nil {
		c.SourceOut = *sourceOut
	} else if c.SourceOut.IsZero() {
		c.SourceOut = c.SourceIn.Add(c.Duration)
	}
	if name := optStr(rec.Parameters, "name"); name != "" {
		c.Name = name
	}

	if c.Duration.Frames <= 0 {
		return Fail((&cmderr.ConstraintViolation{Message: "CreateClip: duration must be positive"}).Error()), nil
	}

	snap, err := snapshotTrack(ctx, trackID)
	if err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["_track_snapshot"] = snap
	rec.Parameters["_track_id"] = trackID

	actions, err := c.Save(ctx.Store, model.SaveOptions{})
	if err != nil {
		return Fail(err.Error()), err
	}
	if err := applyOcclusionActions(ctx, track.SequenceID, actions); err != nil {
		return Fail(err.Error()), err
	}
	if parent != nil {
		if err := model.CopyProperties(ctx.Store, parent.ID, c.ID); err != nil {
			return Fail(err.Error()), err
		}
	}

	ctx.Bucket.AddInsert(track.SequenceID, mutation.Insert{
		ID: c.ID, ClipKind: string(c.ClipKind), Name: c.Name, TrackID: trackID, OwnerSequenceID: track.SequenceID,
		StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames, SourceIn: c.SourceIn.Frames,
		SourceOut: c.SourceOut.Frames, Enabled: c.Enabled, ProjectID: c.ProjectID, MediaID: deref(c.MediaID),
		ParentClipID: deref(c.ParentClipID),
	})

	rec.Parameters["clip_id"] = c.ID
	return Ok(map[string]any{"clip_id": c.ID}), nil
}

func undoPlaceClip(ctx *Context, rec *Record) error {
	trackID := optStr(rec.Parameters, "_track_id")
	snap := optStr(rec.Parameters, "_track_snapshot")
	return restoreTrack(ctx, trackID, snap)
}

// --- Insert: pushes every clip at or after the insertion point on the same
// track forward by the new clip's duration, then saves the new clip with
// occlusion resolution, so a clip spanning the insertion point is trimmed.

func execInsert(ctx *Context, rec *Record) (ExecResult, error) {
	trackID, err := str(rec.Parameters, "track_id", "Insert")
	if err != nil {
		return Fail(err.Error()), nil
	}
	track, err := model.LoadTrack(ctx.Store, trackID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	sequence, err := model.LoadSequence(ctx.Store, track.SequenceID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	start, err := rt(rec.Parameters, "start", sequence.FPSNum, sequence.FPSDen, "Insert")
	if err != nil {
		return Fail(err.Error()), nil
	}

	var parent *model.Clip
	if parentID := optStr(rec.Parameters, "parent_clip_id"); parentID != "" {
		parent, err = model.LoadClip(ctx.Store, parentID)
		if err != nil {
			return Fail(err.Error()), nil
		}
	}
	duration, err := rt(rec.Parameters, "duration", sequence.FPSNum, sequence.FPSDen, "Insert")
	if err != nil && parent == nil {
		return Fail(err.Error()), nil
	}
	if parent != nil && err != nil {
		duration = parent.Duration.Rescale(sequence.FPSNum, sequence.FPSDen)
	}

	snap, err := snapshotTrack(ctx, trackID)
	if err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["_track_snapshot"] = snap
	rec.Parameters["_track_id"] = trackID

	existing, err := model.ClipsOnTrack(ctx.Store, trackID)
	if err != nil {
		return Fail(err.Error()), err
	}
	for _, c := range existing {
		if !c.TimelineStart.Less(start) {
			c.TimelineStart = c.TimelineStart.Add(duration)
			if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
				return Fail(err.Error()), err
			}
			ctx.Bucket.AddUpdate(track.SequenceID, mutation.Update{
				ClipID: c.ID, TrackID: trackID, StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames,
				SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames, Enabled: c.Enabled,
			})
		}
	}
	ctx.Bucket.AddBulkShift(track.SequenceID, mutation.BulkShift{
		TrackID: trackID, ShiftFrames: duration.Frames, StartFrames: start.Frames,
	})

	c := &model.Clip{
		ID:        optStr(rec.Parameters, "clip_id"),
		ProjectID: rec.ProjectID, ClipKind: model.ClipKindTimeline, TrackID: &trackID,
		OwnerSequenceID: track.SequenceID, TimelineStart: start, Duration: duration,
		Enabled: true, FPSNum: sequence.FPSNum, FPSDen: sequence.FPSDen,
	}
	if parent != nil {
		c.ParentClipID = &parent.ID
		c.MediaID = parent.MediaID
		c.Name = parent.Name
		c.SourceIn = parent.SourceIn.Rescale(sequence.FPSNum, sequence.FPSDen)
		c.SourceOut = c.SourceIn.Add(duration)
	}
	if sourceIn, err := optRT(rec.Parameters, "source_in", sequence.FPSNum, sequence.FPSDen); err == nil && sourceIn != nil {
		c.SourceIn = *sourceIn
		c.SourceOut = c.SourceIn.Add(duration)
	}
	if name := optStr(rec.Parameters, "name"); name != "" {
		c.Name = name
	}

	// Occlusion must run here, not be skipped: a clip that spans insert_time
	// was never touched by the shift loop above (its own start is still
	// < insert_time), so it would otherwise end up overlapping the new clip
	// instead of being trimmed to make room for it.
	actions, err := c.Save(ctx.Store, model.SaveOptions{})
	if err != nil {
		return Fail(err.Error()), err
	}
	if err := applyOcclusionActions(ctx, track.SequenceID, actions); err != nil {
		return Fail(err.Error()), err
	}
	if parent != nil {
		if err := model.CopyProperties(ctx.Store, parent.ID, c.ID); err != nil {
			return Fail(err.Error()), err
		}
	}
	ctx.Bucket.AddInsert(track.SequenceID, mutation.Insert{
		ID: c.ID, ClipKind: string(c.ClipKind), Name: c.Name, TrackID: trackID, OwnerSequenceID: track.SequenceID,
		StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames, SourceIn: c.SourceIn.Frames,
		SourceOut: c.SourceOut.Frames, Enabled: c.Enabled, ProjectID: c.ProjectID, MediaID: deref(c.MediaID),
		ParentClipID: deref(c.ParentClipID),
	})

	rec.Parameters["clip_id"] = c.ID
	return Ok(map[string]any{"clip_id": c.ID}), nil
}

func undoInsert(ctx *Context, rec *Record) error {
	trackID := optStr(rec.Parameters, "_track_id")
	snap := optStr(rec.Parameters, "_track_snapshot")
	return restoreTrack(ctx, trackID, snap)
}

// --- SplitClip / Split ---

func execSplitClip(ctx *Context, rec *Record) (ExecResult, error) {
	clipID, err := str(rec.Parameters, "clip_id", "SplitClip")
	if err != nil {
		return Fail(err.Error()), nil
	}
	c, err := model.LoadClip(ctx.Store, clipID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	splitPoint, err := rt(rec.Parameters, "split_point", c.FPSNum, c.FPSDen, "SplitClip")
	if err != nil {
		return Fail(err.Error()), nil
	}
	if !c.TimelineStart.Less(splitPoint) || !splitPoint.Less(c.TimelineStart.Add(c.Duration)) {
		return Fail((&cmderr.ConstraintViolation{Message: "SplitClip: split_point must lie strictly within the clip"}).Error()), nil
	}

	leftDuration := splitPoint.Sub(c.TimelineStart)
	rightShift := leftDuration
	rightDuration := c.Duration.Sub(rightShift)

	second := *c
	second.ID = optStr(rec.Parameters, "second_clip_id")
	second.TimelineStart = splitPoint
	second.Duration = rightDuration
	second.SourceIn = c.SourceIn.Add(rightShift)

	c.Duration = leftDuration
	if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
		return Fail(err.Error()), err
	}
	if _, err := second.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
		return Fail(err.Error()), err
	}
	if err := model.CopyProperties(ctx.Store, clipID, second.ID); err != nil {
		return Fail(err.Error()), err
	}

	rec.Parameters["second_clip_id"] = second.ID
	ctx.Bucket.AddUpdate(c.OwnerSequenceID, mutation.Update{
		ClipID: c.ID, TrackID: deref(c.TrackID), StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames,
		SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames, Enabled: c.Enabled,
	})
	ctx.Bucket.AddInsert(c.OwnerSequenceID, mutation.Insert{
		ID: second.ID, ClipKind: string(second.ClipKind), Name: second.Name, TrackID: deref(second.TrackID),
		OwnerSequenceID: second.OwnerSequenceID, StartValue: second.TimelineStart.Frames, Duration: second.Duration.Frames,
		SourceIn: second.SourceIn.Frames, SourceOut: second.SourceOut.Frames, Enabled: second.Enabled,
		ProjectID: second.ProjectID, MediaID: deref(second.MediaID), ParentClipID: deref(second.ParentClipID),
	})

	return Ok(map[string]any{"second_clip_id": second.ID}), nil
}

func undoSplitClip(ctx *Context, rec *Record) error {
	clipID := optStr(rec.Parameters, "clip_id")
	secondID := optStr(rec.Parameters, "second_clip_id")

	second, err := model.LoadClipOptional(ctx.Store, secondID)
	if err != nil {
		return &cmderr.UndoFailure{Command: "SplitClip", Cause: err}
	}
	if second == nil {
		return nil
	}
	c, err := model.LoadClipOptional(ctx.Store, clipID)
	if err != nil {
		return &cmderr.UndoFailure{Command: "SplitClip", Cause: err}
	}
	if c == nil {
		return nil
	}
	c.Duration = c.Duration.Add(second.Duration)
	if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
		return &cmderr.UndoFailure{Command: "SplitClip", Cause: err}
	}
	_ = model.DeleteClipProperties(ctx.Store, secondID)
	return second.Delete(ctx.Store)
}

// Split applies SplitClip to every clip_id in clip_ids at the same
// split_point, as one undo group. It shares execSplitClip's param parsing by
// delegating to the single-clip executor per id and collecting the
// generated second_clip_ids for replay determinism.
func execSplit(ctx *Context, rec *Record) (ExecResult, error) {
	clipIDs := strSlice(rec.Parameters, "clip_ids")
	if len(clipIDs) == 0 {
		return Fail((&cmderr.MissingParameter{Command: "Split", Field: "clip_ids"}).Error()), nil
	}
	splitVal, ok := rec.Parameters["split_point"]
	if !ok {
		return Fail((&cmderr.MissingParameter{Command: "Split", Field: "split_point"}).Error()), nil
	}

	secondIDsRaw, _ := rec.Parameters["second_clip_ids"].(map[string]any)
	secondIDs := make(map[string]string, len(clipIDs))
	for k, v := range secondIDsRaw {
		if s, ok := v.(string); ok {
			secondIDs[k] = s
		}
	}

	applied := map[string]string{}
	for _, id := range clipIDs {
		sub := &Record{Name: "SplitClip", ProjectID: rec.ProjectID, Parameters: Params{
			"clip_id": id, "split_point": splitVal, "second_clip_id": secondIDs[id],
		}}
		result, err := execSplitClip(ctx, sub)
		if err != nil || !result.Success {
			msg := result.ErrorMessage
			if err != nil {
				msg = err.Error()
			}
			return Fail(msg), err
		}
		applied[id] = sub.Parameters["second_clip_id"].(string)
	}

	out := make(map[string]any, len(applied))
	for k, v := range applied {
		out[k] = v
	}
	rec.Parameters["second_clip_ids"] = out
	return Ok(map[string]any{"second_clip_ids": out}), nil
}

func undoSplit(ctx *Context, rec *Record) error {
	clipIDs := strSlice(rec.Parameters, "clip_ids")
	secondIDs, _ := rec.Parameters["second_clip_ids"].(map[string]any)
	for _, id := range clipIDs {
		secondID, _ := secondIDs[id].(string)
		sub := &Record{Parameters: Params{"clip_id": id, "second_clip_id": secondID}}
		if err := undoSplitClip(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// --- RippleDelete: deletes a clip (or a bare gap span) and shifts every
// clip starting at or after the gap's end on the same track left by the
// gap's width. When ripple_across_tracks is set, every other track in the
// sequence is checked for a clip that would straddle the shift boundary;
// finding one is a ConstraintViolation (§4.9's cross-track safety check).

func execRippleDelete(ctx *Context, rec *Record) (ExecResult, error) {
	trackID, err := str(rec.Parameters, "track_id", "RippleDelete")
	if err != nil {
		return Fail(err.Error()), nil
	}
	track, err := model.LoadTrack(ctx.Store, trackID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	sequence, err := model.LoadSequence(ctx.Store, track.SequenceID)
	if err != nil {
		return Fail(err.Error()), nil
	}

	var gapStart, gapEnd rational.Time
	var deletedClipID string
	if clipID := optStr(rec.Parameters, "clip_id"); clipID != "" {
		c, err := model.LoadClip(ctx.Store, clipID)
		if err != nil {
			return Fail(err.Error()), nil
		}
		gapStart, gapEnd = c.TimelineStart, c.TimelineStart.Add(c.Duration)
		deletedClipID = clipID
	} else {
		gapStart, err = rt(rec.Parameters, "gap_start", sequence.FPSNum, sequence.FPSDen, "RippleDelete")
		if err != nil {
			return Fail(err.Error()), nil
		}
		gapEnd, err = rt(rec.Parameters, "gap_end", sequence.FPSNum, sequence.FPSDen, "RippleDelete")
		if err != nil {
			return Fail(err.Error()), nil
		}
	}
	shift := gapEnd.Sub(gapStart)
	if shift.Frames <= 0 {
		return Fail((&cmderr.ConstraintViolation{Message: "RippleDelete: gap must have positive width"}).Error()), nil
	}

	crossTrack := boolean(rec.Parameters, "ripple_across_tracks", false)
	affectedTracks := []string{trackID}
	if crossTrack {
		others, err := model.TracksInSequence(ctx.Store, track.SequenceID)
		if err != nil {
			return Fail(err.Error()), err
		}
		for _, t := range others {
			if t.ID == trackID {
				continue
			}
			clips, err := model.ClipsOnTrack(ctx.Store, t.ID)
			if err != nil {
				return Fail(err.Error()), err
			}
			for _, c := range clips {
				start, end := c.TimelineStart, c.TimelineStart.Add(c.Duration)
				if start.Less(gapEnd) && gapStart.Less(end) && (start.Less(gapStart) || gapEnd.Less(end)) {
					return Fail((&cmderr.ConstraintViolation{
						Message: "RippleDelete: clip " + c.ID + " straddles the ripple boundary on another track",
					}).Error()), nil
				}
			}
			affectedTracks = append(affectedTracks, t.ID)
		}
	}

	snapshots := map[string]string{}
	for _, tid := range affectedTracks {
		s, err := snapshotTrack(ctx, tid)
		if err != nil {
			return Fail(err.Error()), err
		}
		snapshots[tid] = s
	}
	snapData, _ := json.Marshal(snapshots)
	rec.Parameters["_snapshots"] = string(snapData)
	rec.Parameters["_affected_tracks"] = affectedTracks

	if deletedClipID != "" {
		c, err := model.LoadClip(ctx.Store, deletedClipID)
		if err != nil {
			return Fail(err.Error()), nil
		}
		if err := model.DeleteClipProperties(ctx.Store, deletedClipID); err != nil {
			return Fail(err.Error()), err
		}
		if err := c.Delete(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}
		ctx.Bucket.AddDelete(track.SequenceID, mutation.Delete{ClipID: deletedClipID})
	}

	for _, tid := range affectedTracks {
		clips, err := model.ClipsOnTrack(ctx.Store, tid)
		if err != nil {
			return Fail(err.Error()), err
		}
		for _, c := range clips {
			if !c.TimelineStart.Less(gapEnd) {
				c.TimelineStart = c.TimelineStart.Sub(shift)
				if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
					return Fail(err.Error()), err
				}
				ctx.Bucket.AddUpdate(track.SequenceID, mutation.Update{
					ClipID: c.ID, TrackID: tid, StartValue: c.TimelineStart.Frames, Duration: c.Duration.Frames,
					SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames, Enabled: c.Enabled,
				})
			}
		}
		ctx.Bucket.AddBulkShift(track.SequenceID, mutation.BulkShift{
			TrackID: tid, ShiftFrames: -shift.Frames, StartFrames: gapEnd.Frames,
		})
	}

	return Ok(nil), nil
}

func undoRippleDelete(ctx *Context, rec *Record) error {
	raw := optStr(rec.Parameters, "_snapshots")
	var snapshots map[string]string
	if err := json.Unmarshal([]byte(raw), &snapshots); err != nil {
		return &cmderr.UndoFailure{Command: "RippleDelete", Cause: err}
	}
	tracks := strSlice(rec.Parameters, "_affected_tracks")
	for _, tid := range tracks {
		if err := restoreTrack(ctx, tid, snapshots[tid]); err != nil {
			return err
		}
	}
	return nil
}

// --- RippleDeleteSelection: ripple-deletes each clip in clip_ids on its own
// track, in descending start order so earlier deletes don't invalidate later
// gap boundaries.

func execRippleDeleteSelection(ctx *Context, rec *Record) (ExecResult, error) {
	clipIDs := strSlice(rec.Parameters, "clip_ids")
	if len(clipIDs) == 0 {
		return Fail((&cmderr.MissingParameter{Command: "RippleDeleteSelection", Field: "clip_ids"}).Error()), nil
	}
	crossTrack := boolean(rec.Parameters, "ripple_across_tracks", false)

	type target struct {
		clipID  string
		trackID string
		start   rational.Time
		end     rational.Time
	}
	var targets []target
	for _, id := range clipIDs {
		c, err := model.LoadClip(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), nil
		}
		targets = append(targets, target{clipID: id, trackID: deref(c.TrackID), start: c.TimelineStart, end: c.TimelineStart.Add(c.Duration)})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[j].start.Less(targets[i].start) })

	var subResults []map[string]string
	for _, t := range targets {
		sub := &Record{Name: "RippleDelete", ProjectID: rec.ProjectID, Parameters: Params{
			"clip_id": t.clipID, "track_id": t.trackID, "gap_start": t.start, "gap_end": t.end, "ripple_across_tracks": crossTrack,
		}}
		result, err := execRippleDelete(ctx, sub)
		if err != nil || !result.Success {
			msg := result.ErrorMessage
			if err != nil {
				msg = err.Error()
			}
			return Fail(msg), err
		}
		subResults = append(subResults, map[string]string{
			"_snapshots": sub.Parameters["_snapshots"].(string),
		})
	}

	data, _ := json.Marshal(subResults)
	rec.Parameters["_sub_snapshots"] = string(data)
	return Ok(nil), nil
}

func undoRippleDeleteSelection(ctx *Context, rec *Record) error {
	raw := optStr(rec.Parameters, "_sub_snapshots")
	var subResults []map[string]string
	if err := json.Unmarshal([]byte(raw), &subResults); err != nil {
		return &cmderr.UndoFailure{Command: "RippleDeleteSelection", Cause: err}
	}
	for i := len(subResults) - 1; i >= 0; i-- {
		var snapshots map[string]string
		if err := json.Unmarshal([]byte(subResults[i]["_snapshots"]), &snapshots); err != nil {
			return &cmderr.UndoFailure{Command: "RippleDeleteSelection", Cause: err}
		}
		for tid, snap := range snapshots {
			if err := restoreTrack(ctx, tid, snap); err != nil {
				return err
			}
		}
	}
	return nil
}
