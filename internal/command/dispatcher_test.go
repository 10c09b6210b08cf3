package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/store"
	"github.com/mrjoshuak/nlecore/internal/uistate"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	g, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, model.Migrate(g))
	t.Cleanup(func() { _ = g.Close() })

	reg := NewRegistry()
	RegisterAll(reg)
	return NewDispatcher(reg, g, uistate.NewNopCache(), nil, nil, 3)
}

func TestExecuteThenUndoRemovesProject(t *testing.T) {
	d := newTestDispatcher(t)
	rec := &Record{Name: "CreateProject", Parameters: Params{"name": "demo"}}
	res, err := d.Execute(rec)
	require.NoError(t, err)
	require.True(t, res.Success)

	projectID, _ := res.Fields["project_id"].(string)
	require.NotEmpty(t, projectID)

	require.NoError(t, d.Undo())
	_, err = model.LoadProject(d.gateway, projectID)
	require.Error(t, err, "project should be gone after undo")

	require.NoError(t, d.Redo())
	_, err = model.LoadProject(d.gateway, projectID)
	require.NoError(t, err, "project should be restored after redo")
}

func TestExportImportStateRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	rec := &Record{Name: "CreateProject", Parameters: Params{"name": "demo"}}
	_, err := d.Execute(rec)
	require.NoError(t, err)

	undoLog, redoStack, nextSeq := d.ExportState()
	require.Len(t, undoLog, 1)
	require.Empty(t, redoStack)
	require.Equal(t, int64(1), nextSeq)

	d2 := newTestDispatcher(t)
	d2.ImportState(undoLog, redoStack, nextSeq)
	require.NoError(t, d2.Undo(), "the restored dispatcher should see the prior session's undo history")
}

func TestBatchCommandResolvesGeneratedReferences(t *testing.T) {
	d := newTestDispatcher(t)
	projRes, err := d.Execute(&Record{Name: "CreateProject", Parameters: Params{"name": "demo"}})
	require.NoError(t, err)
	require.True(t, projRes.Success)
	projectID := projRes.Fields["project_id"].(string)

	batch := &Record{Name: "BatchCommand", ProjectID: projectID, Parameters: Params{
		"commands": []any{
			map[string]any{
				"name": "CreateSequence",
				"parameters": map[string]any{
					"name": "seq", "project_id": projectID,
					"frame_rate": map[string]any{"num": uint32(24), "den": uint32(1)},
				},
				"_ref":           "sequence",
				"_capture_field": "sequence_id",
			},
			map[string]any{
				"name": "AddTrack",
				"parameters": map[string]any{
					"sequence_id": "$sequence", "kind": "video", "name": "V",
				},
				"_ref":           "track_V",
				"_capture_field": "track_id",
			},
		},
	}}
	res, err := d.Execute(batch)
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestBatchCommandFailsOnUnresolvedReference(t *testing.T) {
	d := newTestDispatcher(t)
	batch := &Record{Name: "BatchCommand", Parameters: Params{
		"commands": []any{
			map[string]any{
				"name":       "AddTrack",
				"parameters": map[string]any{"sequence_id": "$nonexistent", "kind": "video"},
			},
		},
	}}
	res, err := d.Execute(batch)
	require.True(t, err != nil || !res.Success, "expected the batch to fail on an unresolved $tag reference")
}

func TestBatchCommandRejectsNestedBatchCommand(t *testing.T) {
	d := newTestDispatcher(t)
	batch := &Record{Name: "BatchCommand", Parameters: Params{
		"commands": []any{
			map[string]any{
				"name": "BatchCommand",
				"parameters": map[string]any{
					"commands": []any{
						map[string]any{"name": "CreateProject", "parameters": map[string]any{"name": "inner"}},
					},
				},
			},
		},
	}}
	res, err := d.Execute(batch)
	require.True(t, err != nil || !res.Success, "expected a nested BatchCommand entry to be rejected")
}
