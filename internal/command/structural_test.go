package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/rational"
)

// seededTrack saves a project/sequence/video track and returns their ids.
func seededTrack(t *testing.T, d *Dispatcher) (projectID, sequenceID, trackID string) {
	t.Helper()
	projRes, err := d.Execute(&Record{Name: "CreateProject", Parameters: Params{"name": "demo"}})
	require.NoError(t, err)
	projectID = projRes.Fields["project_id"].(string)

	seqRes, err := d.Execute(&Record{Name: "CreateSequence", ProjectID: projectID, Parameters: Params{
		"name": "seq", "project_id": projectID,
		"frame_rate": map[string]any{"num": uint32(30), "den": uint32(1)},
	}})
	require.NoError(t, err)
	sequenceID = seqRes.Fields["sequence_id"].(string)

	trackRes, err := d.Execute(&Record{Name: "AddTrack", ProjectID: projectID, Parameters: Params{
		"sequence_id": sequenceID, "kind": "video", "name": "V1",
	}})
	require.NoError(t, err)
	trackID = trackRes.Fields["track_id"].(string)
	return
}

func rt30(frames int64) rational.Time { return rational.New(frames, 30, 1) }

func TestCreateClipThenUndoRemovesClip(t *testing.T) {
	d := newTestDispatcher(t)
	projectID, _, trackID := seededTrack(t, d)

	res, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "a", "start": rt30(0), "duration": rt30(50),
	}})
	require.NoError(t, err)
	require.True(t, res.Success)
	clipID := res.Fields["clip_id"].(string)

	clips, err := model.ClipsOnTrack(d.gateway, trackID)
	require.NoError(t, err)
	require.Len(t, clips, 1)

	require.NoError(t, d.Undo())
	clips, err = model.ClipsOnTrack(d.gateway, trackID)
	require.NoError(t, err)
	require.Empty(t, clips)

	require.NoError(t, d.Redo())
	clips, err = model.ClipsOnTrack(d.gateway, trackID)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	require.Equal(t, clipID, clips[0].ID)
}

func TestCreateClipOverlapTrimsNeighbor(t *testing.T) {
	d := newTestDispatcher(t)
	projectID, _, trackID := seededTrack(t, d)

	_, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "a", "start": rt30(0), "duration": rt30(50),
	}})
	require.NoError(t, err)

	res, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "b", "start": rt30(30), "duration": rt30(50),
	}})
	require.NoError(t, err)
	require.True(t, res.Success)

	clips, err := model.ClipsOnTrack(d.gateway, trackID)
	require.NoError(t, err)
	require.Len(t, clips, 2, "b's insert should trim a rather than leave an overlap")

	var a *model.Clip
	for i := range clips {
		if clips[i].Name == "a" {
			a = clips[i]
		}
	}
	require.NotNil(t, a)
	require.Equal(t, int64(30), a.Duration.Frames, "a should be trimmed to make room for b")
}

func TestInsertShiftsDownstreamClips(t *testing.T) {
	d := newTestDispatcher(t)
	projectID, _, trackID := seededTrack(t, d)

	aRes, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "a", "start": rt30(0), "duration": rt30(50),
	}})
	require.NoError(t, err)
	aID := aRes.Fields["clip_id"].(string)

	res, err := d.Execute(&Record{Name: "Insert", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "b", "start": rt30(0), "duration": rt30(20),
	}})
	require.NoError(t, err)
	require.True(t, res.Success)

	a, err := model.LoadClip(d.gateway, aID)
	require.NoError(t, err)
	require.Equal(t, int64(20), a.TimelineStart.Frames, "a should shift right by the inserted clip's duration")

	require.NoError(t, d.Undo())
	a, err = model.LoadClip(d.gateway, aID)
	require.NoError(t, err)
	require.Equal(t, int64(0), a.TimelineStart.Frames, "undo should restore a to its original position")
}

func TestInsertTrimsClipSpanningInsertPoint(t *testing.T) {
	d := newTestDispatcher(t)
	projectID, _, trackID := seededTrack(t, d)

	xRes, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "x", "start": rt30(0), "duration": rt30(50),
	}})
	require.NoError(t, err)
	xID := xRes.Fields["clip_id"].(string)

	res, err := d.Execute(&Record{Name: "Insert", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "b", "start": rt30(30), "duration": rt30(20),
	}})
	require.NoError(t, err)
	require.True(t, res.Success)

	x, err := model.LoadClip(d.gateway, xID)
	require.NoError(t, err)
	require.Equal(t, int64(30), x.Duration.Frames, "x spans insert_time so occlusion must trim it instead of leaving it overlapping the inserted clip")
}

func TestSplitClipProducesTwoAdjacentClips(t *testing.T) {
	d := newTestDispatcher(t)
	projectID, _, trackID := seededTrack(t, d)

	aRes, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "a", "start": rt30(0), "duration": rt30(100),
	}})
	require.NoError(t, err)
	aID := aRes.Fields["clip_id"].(string)

	res, err := d.Execute(&Record{Name: "SplitClip", ProjectID: projectID, Parameters: Params{
		"clip_id": aID, "split_point": rt30(40),
	}})
	require.NoError(t, err)
	require.True(t, res.Success)
	secondID := res.Fields["second_clip_id"].(string)

	first, err := model.LoadClip(d.gateway, aID)
	require.NoError(t, err)
	second, err := model.LoadClip(d.gateway, secondID)
	require.NoError(t, err)
	require.Equal(t, int64(40), first.Duration.Frames)
	require.Equal(t, int64(40), second.TimelineStart.Frames)
	require.Equal(t, int64(60), second.Duration.Frames)

	require.NoError(t, d.Undo())
	first, err = model.LoadClip(d.gateway, aID)
	require.NoError(t, err)
	require.Equal(t, int64(100), first.Duration.Frames, "undo should merge the split back into one clip")
	_, err = model.LoadClip(d.gateway, secondID)
	require.Error(t, err, "the second clip should no longer exist after undo")
}

func TestRippleDeleteShiftsDownstreamLeft(t *testing.T) {
	d := newTestDispatcher(t)
	projectID, _, trackID := seededTrack(t, d)

	aRes, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "a", "start": rt30(0), "duration": rt30(50),
	}})
	require.NoError(t, err)
	aID := aRes.Fields["clip_id"].(string)

	bRes, err := d.Execute(&Record{Name: "CreateClip", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "name": "b", "start": rt30(50), "duration": rt30(30),
	}})
	require.NoError(t, err)
	bID := bRes.Fields["clip_id"].(string)

	res, err := d.Execute(&Record{Name: "RippleDelete", ProjectID: projectID, Parameters: Params{
		"track_id": trackID, "clip_id": aID,
	}})
	require.NoError(t, err)
	require.True(t, res.Success)

	b, err := model.LoadClip(d.gateway, bID)
	require.NoError(t, err)
	require.Equal(t, int64(0), b.TimelineStart.Frames, "b should ripple left to fill a's gap")

	require.NoError(t, d.Undo())
	b, err = model.LoadClip(d.gateway, bID)
	require.NoError(t, err)
	require.Equal(t, int64(50), b.TimelineStart.Frames)
	_, err = model.LoadClip(d.gateway, aID)
	require.NoError(t, err, "a should be restored after undo")
}
