package command

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/media"
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/mutation"
	"github.com/mrjoshuak/nlecore/internal/rational"
)

// RegisterSimpleCommands wires every §4.7 command into reg.
func RegisterSimpleCommands(reg *Registry) {
	reg.Register(Spec{Name: "CreateProject", Executor: execCreateProject, Undoer: undoCreateProject, Undoable: true})
	reg.Register(Spec{Name: "LoadProject", Executor: execLoadProject, Undoable: false})
	reg.Register(Spec{Name: "CreateSequence", Executor: execCreateSequence, Undoer: undoCreateSequence, Undoable: true})
	reg.Register(Spec{Name: "NewBin", Executor: execNewBin, Undoer: undoNewBin, Undoable: true})
	reg.Register(Spec{Name: "DeleteBin", Executor: execDeleteBin, Undoer: undoDeleteBin, Undoable: true})
	reg.Register(Spec{Name: "RenameItem", Executor: execRenameItem, Undoer: undoRenameItem, Undoable: true})
	reg.Register(Spec{Name: "MoveToBin", Executor: execMoveToBin, Undoer: undoMoveToBin, Undoable: true})
	reg.Register(Spec{Name: "SetClipProperty", Executor: execSetClipProperty, Undoer: undoSetClipProperty, Undoable: true})
	reg.Register(Spec{Name: "SetProperty", Executor: execSetClipProperty, Undoer: undoSetClipProperty, Undoable: true})
	reg.Register(Spec{Name: "ModifyProperty", Executor: execSetClipProperty, Undoer: undoSetClipProperty, Undoable: true})
	reg.Register(Spec{Name: "SetSequenceMetadata", Executor: execSetSequenceMetadata, Undoer: undoSetSequenceMetadata, Undoable: true})
	reg.Register(Spec{Name: "DeleteClip", Executor: execDeleteClip, Undoer: undoDeleteClip, Undoable: true})
	reg.Register(Spec{Name: "ToggleClipEnabled", Executor: execToggleClipEnabled, Undoer: undoToggleClipEnabled, Redoer: redoToggleClipEnabled, Undoable: true})
	reg.Register(Spec{Name: "ImportMedia", Executor: execImportMedia, Undoer: undoImportMedia, Undoable: true})
	reg.Register(Spec{Name: "MatchFrame", Executor: execMatchFrame, Undoable: false})
	reg.Register(Spec{Name: "SelectAll", Executor: execSelectAll, Undoable: false})
	reg.Register(Spec{Name: "DeselectAll", Executor: execDeselectAll, Undoable: false})
	reg.Register(Spec{Name: "GoToStart", Executor: execGoTo("start"), Undoable: false})
	reg.Register(Spec{Name: "GoToEnd", Executor: execGoTo("end"), Undoable: false})
	reg.Register(Spec{Name: "GoToPrevEdit", Executor: execGoTo("prev_edit"), Undoable: false})
	reg.Register(Spec{Name: "GoToNextEdit", Executor: execGoTo("next_edit"), Undoable: false})
	reg.Register(Spec{Name: "ToggleSnapping", Executor: execToggleSnapping, Undoable: false})
}

// --- CreateProject ---

func execCreateProject(ctx *Context, rec *Record) (ExecResult, error) {
	name, err := str(rec.Parameters, "name", "CreateProject")
	if err != nil {
		return Fail(err.Error()), nil
	}
	p := &model.Project{ID: optStr(rec.Parameters, "project_id"), Name: name}
	if err := p.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["project_id"] = p.ID
	return Ok(map[string]any{"project_id": p.ID}), nil
}

func undoCreateProject(ctx *Context, rec *Record) error {
	id, _ := rec.Parameters["project_id"].(string)
	if id == "" {
		return &cmderr.UndoFailure{Command: "CreateProject", Cause: fmt.Errorf("missing project_id")}
	}
	p := &model.Project{ID: id}
	return p.Delete(ctx.Store)
}

// --- LoadProject ---

func execLoadProject(ctx *Context, rec *Record) (ExecResult, error) {
	id, err := str(rec.Parameters, "project_id", "LoadProject")
	if err != nil {
		return Fail(err.Error()), nil
	}
	if _, err := model.LoadProject(ctx.Store, id); err != nil {
		return Fail(err.Error()), nil
	}
	return Ok(nil), nil
}

// --- CreateSequence ---

// trackTemplate describes the six default tracks §4.7 calls for:
// V1..V3, A1..A3, heights from the project template floored at 24px.
type trackTemplate struct {
	kind   model.TrackKind
	index  int
	name   string
	height int
}

func defaultTracks(videoHeight, audioHeight int) []trackTemplate {
	if videoHeight < 24 {
		videoHeight = 24
	}
	if audioHeight < 24 {
		audioHeight = 24
	}
	var out []trackTemplate
	for i := 1; i <= 3; i++ {
		out = append(out, trackTemplate{model.TrackKindVideo, i, fmt.Sprintf("V%d", i), videoHeight})
	}
	for i := 1; i <= 3; i++ {
		out = append(out, trackTemplate{model.TrackKindAudio, i, fmt.Sprintf("A%d", i), audioHeight})
	}
	return out
}

type projectSettings struct {
	TrackHeights struct {
		Video int `json:"video"`
		Audio int `json:"audio"`
	} `json:"track_heights"`
}

func execCreateSequence(ctx *Context, rec *Record) (ExecResult, error) {
	name, err := str(rec.Parameters, "name", "CreateSequence")
	if err != nil {
		return Fail(err.Error()), nil
	}
	projectID, err := str(rec.Parameters, "project_id", "CreateSequence")
	if err != nil {
		return Fail(err.Error()), nil
	}
	rateVal, ok := rec.Parameters["frame_rate"]
	if !ok {
		return Fail((&cmderr.MissingParameter{Command: "CreateSequence", Field: "frame_rate"}).Error()), nil
	}
	rateTime, err := hydrateRate(rateVal)
	if err != nil {
		return Fail(err.Error()), nil
	}

	width, _ := rec.Parameters["width"].(int)
	height, _ := rec.Parameters["height"].(int)

	videoHeight, audioHeight := 90, 60
	if proj, err := model.LoadProject(ctx.Store, projectID); err == nil {
		var settings projectSettings
		if json.Unmarshal([]byte(proj.Settings), &settings) == nil {
			if settings.TrackHeights.Video > 0 {
				videoHeight = settings.TrackHeights.Video
			}
			if settings.TrackHeights.Audio > 0 {
				audioHeight = settings.TrackHeights.Audio
			}
		}
	}

	seq := &model.Sequence{
		ID:        optStr(rec.Parameters, "sequence_id"),
		ProjectID: projectID, Name: name, Kind: model.SequenceKindTimeline,
		FPSNum: rateTime.Num, FPSDen: rateTime.Den, Width: width, Height: height,
	}
	if err := seq.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}

	var trackIDs []string
	prevTrackIDs := strSlice(rec.Parameters, "track_ids")
	if skip, _ := rec.Parameters["skip_default_tracks"].(bool); !skip {
		for i, tmpl := range defaultTracks(videoHeight, audioHeight) {
			tr := &model.Track{SequenceID: seq.ID, Kind: tmpl.kind, Index: tmpl.index, Name: tmpl.name, Height: tmpl.height}
			if i < len(prevTrackIDs) {
				tr.ID = prevTrackIDs[i]
			}
			if err := tr.Save(ctx.Store); err != nil {
				return Fail(err.Error()), err
			}
			trackIDs = append(trackIDs, tr.ID)
		}
	}

	rec.Parameters["sequence_id"] = seq.ID
	rec.Parameters["track_ids"] = trackIDs
	ctx.Bucket.AddSequenceMeta(mutation.SequenceMeta{Action: "created", SequenceID: seq.ID})
	return Ok(map[string]any{"sequence_id": seq.ID, "track_ids": trackIDs}), nil
}

func hydrateRate(v any) (struct{ Num, Den uint32 }, error) {
	switch r := v.(type) {
	case map[string]any:
		num, _ := r["num"].(uint32)
		den, _ := r["den"].(uint32)
		if num == 0 {
			if f, ok := r["num"].(float64); ok {
				num = uint32(f)
			}
		}
		if den == 0 {
			if f, ok := r["den"].(float64); ok {
				den = uint32(f)
			} else {
				den = 1
			}
		}
		return struct{ Num, Den uint32 }{num, den}, nil
	case float64:
		return struct{ Num, Den uint32 }{uint32(r), 1}, nil
	case int:
		return struct{ Num, Den uint32 }{uint32(r), 1}, nil
	default:
		return struct{ Num, Den uint32 }{}, fmt.Errorf("CreateSequence: unsupported frame_rate shape %T", v)
	}
}

func undoCreateSequence(ctx *Context, rec *Record) error {
	id, _ := rec.Parameters["sequence_id"].(string)
	if id == "" {
		return &cmderr.UndoFailure{Command: "CreateSequence", Cause: fmt.Errorf("missing sequence_id")}
	}
	seq := &model.Sequence{ID: id}
	return seq.Delete(ctx.Store) // tracks/clips cascade per §3
}

// --- Bins ---

func execNewBin(ctx *Context, rec *Record) (ExecResult, error) {
	projectID, err := str(rec.Parameters, "project_id", "NewBin")
	if err != nil {
		return Fail(err.Error()), nil
	}
	name, err := str(rec.Parameters, "name", "NewBin")
	if err != nil {
		return Fail(err.Error()), nil
	}
	var parentID *string
	if p := optStr(rec.Parameters, "parent_id"); p != "" {
		parentID = &p
	}
	b := &model.Bin{ID: optStr(rec.Parameters, "bin_id"), ProjectID: projectID, ParentID: parentID, Name: name}
	if err := b.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	rec.Parameters["bin_id"] = b.ID
	return Ok(map[string]any{"bin_id": b.ID}), nil
}

func undoNewBin(ctx *Context, rec *Record) error {
	id, _ := rec.Parameters["bin_id"].(string)
	b := &model.Bin{ID: id}
	return b.Delete(ctx.Store)
}

func execDeleteBin(ctx *Context, rec *Record) (ExecResult, error) {
	id, err := str(rec.Parameters, "bin_id", "DeleteBin")
	if err != nil {
		return Fail(err.Error()), nil
	}
	b, err := model.LoadBinOptional(ctx.Store, id)
	if err != nil {
		return Fail(err.Error()), err
	}
	if b == nil {
		return Ok(nil), nil // already gone: idempotent on replay
	}
	snap := b.Snapshot()
	data, _ := json.Marshal(snap)
	rec.Parameters["_snapshot"] = string(data)
	if err := b.Delete(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	return Ok(nil), nil
}

func undoDeleteBin(ctx *Context, rec *Record) error {
	raw, _ := rec.Parameters["_snapshot"].(string)
	var snap model.BinSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return &cmderr.UndoFailure{Command: "DeleteBin", Cause: err}
	}
	b := &model.Bin{}
	return b.Restore(ctx.Store, snap)
}

func execRenameItem(ctx *Context, rec *Record) (ExecResult, error) {
	itemType, err := str(rec.Parameters, "item_type", "RenameItem")
	if err != nil {
		return Fail(err.Error()), nil
	}
	id, err := str(rec.Parameters, "item_id", "RenameItem")
	if err != nil {
		return Fail(err.Error()), nil
	}
	newName, err := str(rec.Parameters, "new_name", "RenameItem")
	if err != nil {
		return Fail(err.Error()), nil
	}

	switch itemType {
	case "bin":
		b, err := model.LoadBin(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), nil
		}
		rec.Parameters["_old_name"] = b.Name
		b.Name = newName
		if err := b.Save(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}
	case "clip":
		c, err := model.LoadClip(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), nil
		}
		rec.Parameters["_old_name"] = c.Name
		c.Name = newName
		if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
			return Fail(err.Error()), err
		}
	default:
		return Fail((&cmderr.ConstraintViolation{Message: "RenameItem: unknown target type " + itemType}).Error()), nil
	}
	return Ok(nil), nil
}

func undoRenameItem(ctx *Context, rec *Record) error {
	itemType := optStr(rec.Parameters, "item_type")
	id := optStr(rec.Parameters, "item_id")
	oldName := optStr(rec.Parameters, "_old_name")
	switch itemType {
	case "bin":
		b, err := model.LoadBinOptional(ctx.Store, id)
		if err != nil || b == nil {
			return nil
		}
		b.Name = oldName
		return b.Save(ctx.Store)
	case "clip":
		c, err := model.LoadClipOptional(ctx.Store, id)
		if err != nil || c == nil {
			return nil
		}
		c.Name = oldName
		_, err = c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true})
		return err
	}
	return nil
}

func execMoveToBin(ctx *Context, rec *Record) (ExecResult, error) {
	itemID, err := str(rec.Parameters, "item_id", "MoveToBin")
	if err != nil {
		return Fail(err.Error()), nil
	}
	newParent := optStr(rec.Parameters, "bin_id")
	b, err := model.LoadBin(ctx.Store, itemID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	rec.Parameters["_old_parent_id"] = nullableString(b.ParentID)
	if newParent == "" {
		b.ParentID = nil
	} else {
		b.ParentID = &newParent
	}
	if err := b.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	return Ok(nil), nil
}

func undoMoveToBin(ctx *Context, rec *Record) error {
	itemID := optStr(rec.Parameters, "item_id")
	oldParent, _ := rec.Parameters["_old_parent_id"].(string)
	b, err := model.LoadBinOptional(ctx.Store, itemID)
	if err != nil || b == nil {
		return nil
	}
	if oldParent == "" {
		b.ParentID = nil
	} else {
		b.ParentID = &oldParent
	}
	return b.Save(ctx.Store)
}

func nullableString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- SetClipProperty ---

func execSetClipProperty(ctx *Context, rec *Record) (ExecResult, error) {
	clipID, err := str(rec.Parameters, "clip_id", "SetClipProperty")
	if err != nil {
		return Fail(err.Error()), nil
	}
	name, err := str(rec.Parameters, "property_name", "SetClipProperty")
	if err != nil {
		return Fail(err.Error()), nil
	}
	valueJSON := optStr(rec.Parameters, "property_value")
	propType := optStr(rec.Parameters, "property_type")
	if propType == "" {
		propType = string(model.PropertyTypeString)
	}

	c, err := model.LoadClipOptional(ctx.Store, clipID)
	if err != nil {
		return Fail(err.Error()), err
	}
	if c == nil {
		// The clip disappeared between execute and replay: degrade to
		// success per §7 EntityNotFound-during-replay.
		ctx.Logger.Infow("SetClipProperty: clip vanished, degrading to success", "clip_id", clipID)
		return Ok(nil), nil
	}

	existing, err := model.LoadProperty(ctx.Store, clipID, name)
	if err != nil {
		return Fail(err.Error()), err
	}
	if existing == nil {
		rec.Parameters["_was_new"] = true
	} else {
		rec.Parameters["_was_new"] = false
		rec.Parameters["_prev_value"] = existing.PropertyValue
		rec.Parameters["_prev_type"] = string(existing.PropertyType)
		rec.Parameters["_prev_default"] = existing.DefaultValue
	}

	prop := &model.Property{ClipID: clipID, PropertyName: name, PropertyValue: valueJSON, PropertyType: model.PropertyType(propType)}
	if existing != nil {
		prop.DefaultValue = existing.DefaultValue
	}
	if err := prop.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	return Ok(nil), nil
}

func undoSetClipProperty(ctx *Context, rec *Record) error {
	clipID := optStr(rec.Parameters, "clip_id")
	name := optStr(rec.Parameters, "property_name")
	wasNew, _ := rec.Parameters["_was_new"].(bool)

	existing, err := model.LoadProperty(ctx.Store, clipID, name)
	if err != nil {
		return &cmderr.UndoFailure{Command: "SetClipProperty", Cause: err}
	}
	if existing == nil {
		return nil // already gone
	}
	if wasNew {
		return existing.Delete(ctx.Store)
	}
	existing.PropertyValue, _ = rec.Parameters["_prev_value"].(string)
	existing.PropertyType = model.PropertyType(optStr(rec.Parameters, "_prev_type"))
	existing.DefaultValue, _ = rec.Parameters["_prev_default"].(string)
	return existing.Save(ctx.Store)
}

// --- SetSequenceMetadata ---

var sequenceMetadataWhitelist = map[string]bool{
	"name": true, "frame_rate": true, "width": true, "height": true,
	"timecode_start_frame": true, "playhead": true, "viewport_start": true,
	"viewport_duration": true, "mark_in": true, "mark_out": true,
}

func execSetSequenceMetadata(ctx *Context, rec *Record) (ExecResult, error) {
	seqID, err := str(rec.Parameters, "sequence_id", "SetSequenceMetadata")
	if err != nil {
		return Fail(err.Error()), nil
	}
	field, err := str(rec.Parameters, "field", "SetSequenceMetadata")
	if err != nil {
		return Fail(err.Error()), nil
	}
	if !sequenceMetadataWhitelist[field] {
		return Fail((&cmderr.ConstraintViolation{Message: "SetSequenceMetadata: field " + field + " is not writable"}).Error()), nil
	}

	seq, err := model.LoadSequence(ctx.Store, seqID)
	if err != nil {
		return Fail(err.Error()), nil
	}
	snap := seq.Snapshot()
	data, _ := json.Marshal(snap)
	rec.Parameters["_prev_snapshot"] = string(data)

	value := rec.Parameters["value"]
	isClear := value == nil

	switch field {
	case "name":
		seq.Name, _ = value.(string)
	case "width":
		seq.Width = toInt(value)
	case "height":
		seq.Height = toInt(value)
	case "timecode_start_frame":
		seq.TimecodeStartFrame = int64(toInt(value))
	case "frame_rate":
		rate, err := hydrateRate(value)
		if err != nil {
			return Fail(err.Error()), nil
		}
		seq.FPSNum, seq.FPSDen = rate.Num, rate.Den
	case "playhead":
		t, err := rt(rec.Parameters, "value", seq.FPSNum, seq.FPSDen, "SetSequenceMetadata")
		if err != nil {
			return Fail(err.Error()), nil
		}
		seq.Playhead = t
	case "viewport_start":
		t, err := rt(rec.Parameters, "value", seq.FPSNum, seq.FPSDen, "SetSequenceMetadata")
		if err != nil {
			return Fail(err.Error()), nil
		}
		seq.ViewportStart = t
	case "viewport_duration":
		t, err := rt(rec.Parameters, "value", seq.FPSNum, seq.FPSDen, "SetSequenceMetadata")
		if err != nil {
			return Fail(err.Error()), nil
		}
		seq.ViewportDuration = t
	case "mark_in":
		if isClear {
			seq.MarkIn = nil
		} else {
			t, err := rt(rec.Parameters, "value", seq.FPSNum, seq.FPSDen, "SetSequenceMetadata")
			if err != nil {
				return Fail(err.Error()), nil
			}
			seq.MarkIn = &t
		}
	case "mark_out":
		if isClear {
			seq.MarkOut = nil
		} else {
			t, err := rt(rec.Parameters, "value", seq.FPSNum, seq.FPSDen, "SetSequenceMetadata")
			if err != nil {
				return Fail(err.Error()), nil
			}
			seq.MarkOut = &t
		}
	}

	if err := seq.Save(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}
	return Ok(nil), nil
}

func undoSetSequenceMetadata(ctx *Context, rec *Record) error {
	raw, _ := rec.Parameters["_prev_snapshot"].(string)
	var snap model.SequenceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return &cmderr.UndoFailure{Command: "SetSequenceMetadata", Cause: err}
	}
	seq := &model.Sequence{}
	return seq.Restore(ctx.Store, snap)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// --- DeleteClip ---

func execDeleteClip(ctx *Context, rec *Record) (ExecResult, error) {
	clipID, err := str(rec.Parameters, "clip_id", "DeleteClip")
	if err != nil {
		return Fail(err.Error()), nil
	}
	c, err := model.LoadClipOptional(ctx.Store, clipID)
	if err != nil {
		return Fail(err.Error()), err
	}
	if c == nil {
		return Ok(nil), nil // already gone: idempotent on replay
	}
	props, err := model.PropertiesForClip(ctx.Store, clipID)
	if err != nil {
		return Fail(err.Error()), err
	}
	snap := c.Snapshot()
	clipData, _ := json.Marshal(snap)
	propsData, _ := json.Marshal(props)
	rec.Parameters["_clip_snapshot"] = string(clipData)
	rec.Parameters["_properties_snapshot"] = string(propsData)

	if err := model.DeleteClipProperties(ctx.Store, clipID); err != nil {
		return Fail(err.Error()), err
	}
	if err := c.Delete(ctx.Store); err != nil {
		return Fail(err.Error()), err
	}

	ctx.Bucket.AddDelete(c.OwnerSequenceID, mutation.Delete{ClipID: clipID})
	return Ok(nil), nil
}

func undoDeleteClip(ctx *Context, rec *Record) error {
	var snap model.ClipSnapshot
	if err := json.Unmarshal([]byte(optStr(rec.Parameters, "_clip_snapshot")), &snap); err != nil {
		return &cmderr.UndoFailure{Command: "DeleteClip", Cause: err}
	}
	c := &model.Clip{}
	if err := c.Restore(ctx.Store, snap); err != nil {
		return &cmderr.UndoFailure{Command: "DeleteClip", Cause: err}
	}
	var props []*model.Property
	if err := json.Unmarshal([]byte(optStr(rec.Parameters, "_properties_snapshot")), &props); err != nil {
		return &cmderr.UndoFailure{Command: "DeleteClip", Cause: err}
	}
	for _, p := range props {
		if err := p.Save(ctx.Store); err != nil {
			return &cmderr.UndoFailure{Command: "DeleteClip", Cause: err}
		}
	}
	return nil
}

// --- ToggleClipEnabled ---

func execToggleClipEnabled(ctx *Context, rec *Record) (ExecResult, error) {
	clipIDs := strSlice(rec.Parameters, "clip_ids")
	if len(clipIDs) == 0 {
		if id := optStr(rec.Parameters, "clip_id"); id != "" {
			clipIDs = []string{id}
		}
	}
	if len(clipIDs) == 0 {
		return Fail((&cmderr.MissingParameter{Command: "ToggleClipEnabled", Field: "clip_ids"}).Error()), nil
	}

	before := map[string]bool{}
	after := map[string]bool{}
	for _, id := range clipIDs {
		c, err := model.LoadClipOptional(ctx.Store, id)
		if err != nil {
			return Fail(err.Error()), err
		}
		if c == nil {
			continue
		}
		before[id] = c.Enabled
		c.Enabled = !c.Enabled
		after[id] = c.Enabled
		if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
			return Fail(err.Error()), err
		}
		ctx.Bucket.AddUpdate(c.OwnerSequenceID, mutation.Update{
			ClipID: c.ID, TrackID: deref(c.TrackID), StartValue: c.TimelineStart.Frames,
			Duration: c.Duration.Frames, SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames,
			Enabled: c.Enabled,
		})
	}
	rec.Parameters["_enabled_before"] = before
	rec.Parameters["_enabled_after"] = after
	return Ok(nil), nil
}

func applyEnabledMap(ctx *Context, m map[string]any) error {
	for id, v := range m {
		enabled, _ := v.(bool)
		c, err := model.LoadClipOptional(ctx.Store, id)
		if err != nil || c == nil {
			continue
		}
		c.Enabled = enabled
		if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
			return err
		}
		ctx.Bucket.AddUpdate(c.OwnerSequenceID, mutation.Update{
			ClipID: c.ID, TrackID: deref(c.TrackID), StartValue: c.TimelineStart.Frames,
			Duration: c.Duration.Frames, SourceIn: c.SourceIn.Frames, SourceOut: c.SourceOut.Frames,
			Enabled: c.Enabled,
		})
	}
	return nil
}

func undoToggleClipEnabled(ctx *Context, rec *Record) error {
	m, _ := rec.Parameters["_enabled_before"].(map[string]any)
	if m == nil {
		m = boolMapToAny(rec.Parameters["_enabled_before"])
	}
	return applyEnabledMap(ctx, m)
}

func redoToggleClipEnabled(ctx *Context, rec *Record) error {
	m, _ := rec.Parameters["_enabled_after"].(map[string]any)
	if m == nil {
		m = boolMapToAny(rec.Parameters["_enabled_after"])
	}
	return applyEnabledMap(ctx, m)
}

func boolMapToAny(v any) map[string]any {
	bm, ok := v.(map[string]bool)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(bm))
	for k, b := range bm {
		out[k] = b
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- ImportMedia ---

func execImportMedia(ctx *Context, rec *Record) (ExecResult, error) {
	projectID, err := str(rec.Parameters, "project_id", "ImportMedia")
	if err != nil {
		return Fail(err.Error()), nil
	}
	paths := strSlice(rec.Parameters, "file_paths")
	if len(paths) == 0 {
		if one := optStr(rec.Parameters, "file_path"); one != "" {
			paths = []string{one}
		}
	}
	if len(paths) == 0 {
		return Fail((&cmderr.MissingParameter{Command: "ImportMedia", Field: "file_paths"}).Error()), nil
	}

	var mediaIDs, masterclipSeqIDs, videoTrackIDs, videoClipIDs []string
	var audioTrackIDs, audioClipIDs [][]string

	for _, path := range paths {
		probed, err := ctx.Prober.Probe(path)
		if err != nil {
			return Fail(err.Error()), err
		}

		m := &model.Media{ProjectID: projectID, Path: path, HasVideo: probed.HasVideo, HasAudio: probed.HasAudio, Duration: probed.Duration}
		if probed.Video != nil {
			m.Video = &model.VideoStreamInfo{Width: probed.Video.Width, Height: probed.Video.Height,
				FrameRate: rational.New(1, probed.Video.FPSNum, probed.Video.FPSDen)}
		}
		if probed.Audio != nil {
			m.Audio = &model.AudioStreamInfo{SampleRate: probed.Audio.SampleRate, Channels: probed.Audio.Channels}
		}
		if err := m.Save(ctx.Store); err != nil {
			return Fail(err.Error()), err
		}

		fpsNum, fpsDen := uint32(24), uint32(1)
		if probed.Video != nil {
			fpsNum, fpsDen = probed.Video.FPSNum, probed.Video.FPSDen
		}

		seq, created, err := ensureMasterclipSequence(ctx, projectID, m.ID, fpsNum, fpsDen)
		if err != nil {
			return Fail(err.Error()), err
		}

		mediaIDs = append(mediaIDs, m.ID)
		masterclipSeqIDs = append(masterclipSeqIDs, seq.ID)

		if created {
			vTrackID, vClipID, aTrackIDs, aClipIDs, err := buildMasterclipStreams(ctx, seq, m, probed)
			if err != nil {
				return Fail(err.Error()), err
			}
			videoTrackIDs = append(videoTrackIDs, vTrackID)
			videoClipIDs = append(videoClipIDs, vClipID)
			audioTrackIDs = append(audioTrackIDs, aTrackIDs)
			audioClipIDs = append(audioClipIDs, aClipIDs)
		} else {
			videoTrackIDs = append(videoTrackIDs, "")
			videoClipIDs = append(videoClipIDs, "")
			audioTrackIDs = append(audioTrackIDs, nil)
			audioClipIDs = append(audioClipIDs, nil)
		}
	}

	rec.Parameters["media_ids"] = mediaIDs
	rec.Parameters["masterclip_sequence_ids"] = masterclipSeqIDs
	rec.Parameters["video_track_ids"] = videoTrackIDs
	rec.Parameters["video_clip_ids"] = videoClipIDs
	rec.Parameters["audio_track_ids"] = audioTrackIDs
	rec.Parameters["audio_clip_ids"] = audioClipIDs

	return Ok(map[string]any{"media_ids": mediaIDs, "masterclip_sequence_ids": masterclipSeqIDs}), nil
}

// ensureMasterclipSequence finds an existing masterclip sequence for
// mediaID or creates one. Per §4.7: idempotent per media_id; if it already
// exists and the probed rate differs, its fps is updated, otherwise it is
// left alone.
func ensureMasterclipSequence(ctx *Context, projectID, mediaID string, fpsNum, fpsDen uint32) (*model.Sequence, bool, error) {
	stmt, err := ctx.Store.Prepare(`SELECT id FROM sequences WHERE project_id = ? AND kind = ? AND id IN
		(SELECT DISTINCT owner_sequence_id FROM clips WHERE media_id = ?)`)
	if err != nil {
		return nil, false, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, projectID)
	stmt.Bind(2, string(model.SequenceKindMasterclip))
	stmt.Bind(3, mediaID)
	has, err := stmt.Next()
	if err != nil {
		return nil, false, err
	}
	if has {
		var id string
		_ = stmt.Value(0, &id)
		seq, err := model.LoadSequence(ctx.Store, id)
		if err != nil {
			return nil, false, err
		}
		if seq.FPSNum != fpsNum || seq.FPSDen != fpsDen {
			seq.FPSNum, seq.FPSDen = fpsNum, fpsDen
			if err := seq.Save(ctx.Store); err != nil {
				return nil, false, err
			}
		}
		return seq, false, nil
	}

	seq := &model.Sequence{ProjectID: projectID, Name: "Masterclip", Kind: model.SequenceKindMasterclip, FPSNum: fpsNum, FPSDen: fpsDen}
	if err := seq.Save(ctx.Store); err != nil {
		return nil, false, err
	}
	return seq, true, nil
}

func buildMasterclipStreams(ctx *Context, seq *model.Sequence, m *model.Media, probed media.Probed) (string, string, []string, []string, error) {
	var videoTrackID, videoClipID string
	var audioTrackIDs, audioClipIDs []string

	if probed.HasVideo {
		tr := &model.Track{SequenceID: seq.ID, Kind: model.TrackKindVideo, Index: 1, Name: "V1", Height: 90}
		if err := tr.Save(ctx.Store); err != nil {
			return "", "", nil, nil, err
		}
		videoTrackID = tr.ID
		c := &model.Clip{
			ProjectID: seq.ProjectID, ClipKind: model.ClipKindMasterclipSub, TrackID: &tr.ID,
			OwnerSequenceID: seq.ID, MediaID: &m.ID, Name: m.Path,
			TimelineStart: rational.Zero(seq.FPSNum, seq.FPSDen), Duration: m.Duration.Rescale(seq.FPSNum, seq.FPSDen),
			SourceIn: rational.Zero(seq.FPSNum, seq.FPSDen), SourceOut: m.Duration.Rescale(seq.FPSNum, seq.FPSDen),
			Enabled: true, FPSNum: seq.FPSNum, FPSDen: seq.FPSDen,
		}
		if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
			return "", "", nil, nil, err
		}
		videoClipID = c.ID
	}

	if probed.HasAudio {
		channels := 1
		if probed.Audio != nil && probed.Audio.Channels > 0 {
			channels = probed.Audio.Channels
		}
		for i := 1; i <= channels; i++ {
			tr := &model.Track{SequenceID: seq.ID, Kind: model.TrackKindAudio, Index: i, Name: fmt.Sprintf("A%d", i), Height: 60}
			if err := tr.Save(ctx.Store); err != nil {
				return "", "", nil, nil, err
			}
			audioTrackIDs = append(audioTrackIDs, tr.ID)
			c := &model.Clip{
				ProjectID: seq.ProjectID, ClipKind: model.ClipKindMasterclipSub, TrackID: &tr.ID,
				OwnerSequenceID: seq.ID, MediaID: &m.ID, Name: m.Path,
				TimelineStart: rational.Zero(seq.FPSNum, seq.FPSDen), Duration: m.Duration.Rescale(seq.FPSNum, seq.FPSDen),
				SourceIn: rational.Zero(seq.FPSNum, seq.FPSDen), SourceOut: m.Duration.Rescale(seq.FPSNum, seq.FPSDen),
				Enabled: true, FPSNum: seq.FPSNum, FPSDen: seq.FPSDen,
			}
			if _, err := c.Save(ctx.Store, model.SaveOptions{SkipOcclusion: true}); err != nil {
				return "", "", nil, nil, err
			}
			audioClipIDs = append(audioClipIDs, c.ID)
		}
	}

	return videoTrackID, videoClipID, audioTrackIDs, audioClipIDs, nil
}

func undoImportMedia(ctx *Context, rec *Record) error {
	// Delete everything created, in reverse order, per §4.7.
	videoClipIDs := strSlice(rec.Parameters, "video_clip_ids")
	for i := len(videoClipIDs) - 1; i >= 0; i-- {
		if videoClipIDs[i] == "" {
			continue
		}
		c := &model.Clip{ID: videoClipIDs[i]}
		_ = c.Delete(ctx.Store)
	}
	audioClipIDGroups, _ := rec.Parameters["audio_clip_ids"].([][]string)
	for i := len(audioClipIDGroups) - 1; i >= 0; i-- {
		ids := audioClipIDGroups[i]
		for j := len(ids) - 1; j >= 0; j-- {
			c := &model.Clip{ID: ids[j]}
			_ = c.Delete(ctx.Store)
		}
	}
	videoTrackIDs := strSlice(rec.Parameters, "video_track_ids")
	for i := len(videoTrackIDs) - 1; i >= 0; i-- {
		if videoTrackIDs[i] == "" {
			continue
		}
		tr := &model.Track{ID: videoTrackIDs[i]}
		_ = tr.Delete(ctx.Store)
	}
	audioTrackIDGroups, _ := rec.Parameters["audio_track_ids"].([][]string)
	for i := len(audioTrackIDGroups) - 1; i >= 0; i-- {
		ids := audioTrackIDGroups[i]
		for j := len(ids) - 1; j >= 0; j-- {
			tr := &model.Track{ID: ids[j]}
			_ = tr.Delete(ctx.Store)
		}
	}
	seqIDs := strSlice(rec.Parameters, "masterclip_sequence_ids")
	for i := len(seqIDs) - 1; i >= 0; i-- {
		seq := &model.Sequence{ID: seqIDs[i]}
		_ = seq.Delete(ctx.Store)
	}
	mediaIDs := strSlice(rec.Parameters, "media_ids")
	for i := len(mediaIDs) - 1; i >= 0; i-- {
		m := &model.Media{ID: mediaIDs[i]}
		_ = m.Delete(ctx.Store)
	}
	return nil
}

// --- MatchFrame ---

func execMatchFrame(ctx *Context, rec *Record) (ExecResult, error) {
	seqID, err := str(rec.Parameters, "sequence_id", "MatchFrame")
	if err != nil {
		return Fail(err.Error()), nil
	}
	playhead := ctx.Cache.Playhead(seqID)
	selection := ctx.Cache.Selection()

	clips, err := model.ClipsInSequence(ctx.Store, seqID)
	if err != nil {
		return Fail(err.Error()), err
	}
	selected := map[string]bool{}
	for _, id := range selection {
		selected[id] = true
	}

	var topmost *model.Clip
	for _, c := range clips {
		if len(selection) > 0 && !selected[c.ID] {
			continue
		}
		start := c.TimelineStart.Frames
		end := start + c.Duration.Frames
		if playhead >= start && playhead < end {
			if topmost == nil || (c.TrackID != nil && topmost.TrackID != nil) {
				topmost = c
			}
		}
	}
	if topmost == nil {
		return Ok(map[string]any{"focused": false}), nil
	}
	masterID := deref(topmost.ParentClipID)
	return Ok(map[string]any{"focused": masterID != "", "master_clip_id": masterID}), nil
}

// --- Select / Deselect / GoTo / ToggleSnapping ---

func execSelectAll(ctx *Context, rec *Record) (ExecResult, error) {
	seqID, err := str(rec.Parameters, "sequence_id", "SelectAll")
	if err != nil {
		return Fail(err.Error()), nil
	}
	clips, err := model.ClipsInSequence(ctx.Store, seqID)
	if err != nil {
		return Fail(err.Error()), err
	}
	ids := make([]string, 0, len(clips))
	for _, c := range clips {
		ids = append(ids, c.ID)
	}
	ctx.Cache.SetSelection(ids)
	return Ok(map[string]any{"selected": ids}), nil
}

func execDeselectAll(ctx *Context, rec *Record) (ExecResult, error) {
	ctx.Cache.SetSelection(nil)
	return Ok(nil), nil
}

func execGoTo(where string) Executor {
	return func(ctx *Context, rec *Record) (ExecResult, error) {
		seqID, err := str(rec.Parameters, "sequence_id", "GoTo"+where)
		if err != nil {
			return Fail(err.Error()), nil
		}
		clips, err := model.ClipsInSequence(ctx.Store, seqID)
		if err != nil {
			return Fail(err.Error()), err
		}
		sort.Slice(clips, func(i, j int) bool { return clips[i].TimelineStart.Frames < clips[j].TimelineStart.Frames })

		cur := ctx.Cache.Playhead(seqID)
		var target int64
		switch where {
		case "start":
			target = 0
		case "end":
			for _, c := range clips {
				end := c.TimelineStart.Frames + c.Duration.Frames
				if end > target {
					target = end
				}
			}
		case "prev_edit":
			target = 0
			for _, c := range clips {
				if c.TimelineStart.Frames < cur {
					target = c.TimelineStart.Frames
				}
			}
		case "next_edit":
			target = cur
			for _, c := range clips {
				if c.TimelineStart.Frames > cur {
					target = c.TimelineStart.Frames
					break
				}
			}
		}
		ctx.Cache.SetPlayhead(seqID, target)
		return Ok(map[string]any{"playhead": target}), nil
	}
}

func execToggleSnapping(ctx *Context, rec *Record) (ExecResult, error) {
	return Ok(map[string]any{"snapping": boolean(rec.Parameters, "enabled", true)}), nil
}
