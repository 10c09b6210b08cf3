package command

import (
	"encoding/json"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/ripple"
)

// RegisterRippleCommands wires RippleEdit, BatchRippleEdit, and ExtendEdit
// (§4.10) onto reg. All three share one undo strategy: the engine records
// every clip's pre-trim snapshot keyed by id, which the undoer replays
// verbatim via model.Clip.Restore.
func RegisterRippleCommands(reg *Registry) {
	reg.Register(Spec{Name: "RippleEdit", Executor: execRippleEdit, Undoer: undoRippleResult, Undoable: true})
	reg.Register(Spec{Name: "BatchRippleEdit", Executor: execBatchRippleEdit, Undoer: undoRippleResult, Undoable: true})
	reg.Register(Spec{Name: "ExtendEdit", Executor: execExtendEdit, Undoer: undoRippleResult, Undoable: true})
}

func parseEdges(p Params, cmdName string) ([]ripple.EdgeInfo, error) {
	raw, ok := p["edges"]
	if !ok {
		return nil, &cmderr.MissingParameter{Command: cmdName, Field: "edges"}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &cmderr.MissingParameter{Command: cmdName, Field: "edges"}
	}
	out := make([]ripple.EdgeInfo, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, &cmderr.MissingParameter{Command: cmdName, Field: "edges"}
		}
		clipID, _ := m["clip_id"].(string)
		if clipID == "" {
			return nil, &cmderr.MissingParameter{Command: cmdName, Field: "edges[].clip_id"}
		}
		edgeType, _ := m["edge_type"].(string)
		trackID, _ := m["track_id"].(string)
		trimType, _ := m["trim_type"].(string)
		isLead, _ := m["is_lead"].(bool)
		out = append(out, ripple.EdgeInfo{
			ClipID: clipID, EdgeType: ripple.EdgeType(edgeType), TrackID: trackID,
			TrimType: ripple.TrimType(trimType), IsLead: isLead,
		})
	}
	return out, nil
}

func edgesToParams(edges []ripple.EdgeInfo) []any {
	out := make([]any, 0, len(edges))
	for _, e := range edges {
		out = append(out, map[string]any{
			"clip_id": e.ClipID, "edge_type": string(e.EdgeType), "track_id": e.TrackID,
			"trim_type": string(e.TrimType), "is_lead": e.IsLead,
		})
	}
	return out
}

func runRipple(ctx *Context, rec *Record, cmdName string, edges []ripple.EdgeInfo, deltaFrames int64, dryRun bool) (ExecResult, error) {
	eng := ripple.New(ctx.Store, ctx.Cache, ctx.Bucket, ctx.MaxRippleRetries)
	res, err := eng.BatchRippleEdit(ripple.Input{Edges: edges, DeltaFrames: deltaFrames, DryRun: dryRun})
	if err != nil {
		return Fail(err.Error()), err
	}
	fields := map[string]any{
		"clamped_delta_frames":  res.ClampedDeltaFrames,
		"clamped":               res.Clamped,
		"no_op":                 res.NoOp,
		"affected_clip_ids":     res.AffectedClipIDs,
		"shifted_clip_ids":      res.ShiftedClipIDs,
		"materialized_gap_ids":  res.MaterializedGapIDs,
		"limiter_edge_clip_ids": res.LimiterEdgeClipIDs,
	}
	if dryRun || res.NoOp {
		return Ok(fields), nil
	}

	snapJSON, jerr := marshalSnapshots(res.OriginalStates)
	if jerr != nil {
		return Fail(jerr.Error()), jerr
	}
	rec.Parameters["_original_states"] = snapJSON
	rec.Parameters["edges"] = edgesToParams(edges)
	rec.Parameters["delta_frames"] = deltaFrames
	return Ok(fields), nil
}

func execRippleEdit(ctx *Context, rec *Record) (ExecResult, error) {
	edges, err := parseEdges(rec.Parameters, "RippleEdit")
	if err != nil {
		return Fail(err.Error()), err
	}
	if len(edges) != 1 {
		err := &cmderr.ConstraintViolation{Message: "RippleEdit takes exactly one edge"}
		return Fail(err.Error()), err
	}
	delta := int64(toInt(rec.Parameters["delta_frames"]))
	dryRun := boolean(rec.Parameters, "dry_run", false)
	return runRipple(ctx, rec, "RippleEdit", edges, delta, dryRun)
}

func execBatchRippleEdit(ctx *Context, rec *Record) (ExecResult, error) {
	edges, err := parseEdges(rec.Parameters, "BatchRippleEdit")
	if err != nil {
		return Fail(err.Error()), err
	}
	delta := int64(toInt(rec.Parameters["delta_frames"]))
	dryRun := boolean(rec.Parameters, "dry_run", false)
	return runRipple(ctx, rec, "BatchRippleEdit", edges, delta, dryRun)
}

func execExtendEdit(ctx *Context, rec *Record) (ExecResult, error) {
	edges, err := parseEdges(rec.Parameters, "ExtendEdit")
	if err != nil {
		return Fail(err.Error()), err
	}
	playhead := int64(toInt(rec.Parameters["playhead_frames"]))
	dryRun := boolean(rec.Parameters, "dry_run", false)

	eng := ripple.New(ctx.Store, ctx.Cache, ctx.Bucket, ctx.MaxRippleRetries)
	res, err := eng.ExtendEdit(edges, playhead, dryRun)
	if err != nil {
		return Fail(err.Error()), err
	}
	fields := map[string]any{
		"clamped_delta_frames":  res.ClampedDeltaFrames,
		"clamped":               res.Clamped,
		"no_op":                 res.NoOp,
		"affected_clip_ids":     res.AffectedClipIDs,
		"shifted_clip_ids":      res.ShiftedClipIDs,
		"limiter_edge_clip_ids": res.LimiterEdgeClipIDs,
	}
	if dryRun || res.NoOp {
		return Ok(fields), nil
	}
	snapJSON, jerr := marshalSnapshots(res.OriginalStates)
	if jerr != nil {
		return Fail(jerr.Error()), jerr
	}
	rec.Parameters["_original_states"] = snapJSON
	rec.Parameters["edges"] = edgesToParams(edges)
	return Ok(fields), nil
}

// undoRippleResult restores every clip touched by a prior ripple command
// from its pre-trim snapshot, per §4.10 Phase 11's rehydrate-by-snapshot
// undo (simpler than replaying an inverted mutation log, and exact since
// every touched clip's full state was captured before it was modified).
func undoRippleResult(ctx *Context, rec *Record) error {
	raw, ok := rec.Parameters["_original_states"].(string)
	if !ok || raw == "" {
		return nil
	}
	var snaps map[string]model.ClipSnapshot
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
	}
	for id, snap := range snaps {
		c, err := model.LoadClipOptional(ctx.Store, id)
		if err != nil {
			return err
		}
		if c == nil {
			c = &model.Clip{ID: id}
		}
		if err := c.Restore(ctx.Store, snap); err != nil {
			return &cmderr.UndoFailure{Command: rec.Name, Cause: err}
		}
	}
	return nil
}

func marshalSnapshots(m map[string]model.ClipSnapshot) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
