package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/occlusion"
	"github.com/mrjoshuak/nlecore/internal/rational"
	"github.com/mrjoshuak/nlecore/internal/store"
)

// ClipKind distinguishes timeline clips from the stream clips and the
// master-clip row that make up a masterclip sequence (§3).
type ClipKind string

const (
	ClipKindTimeline       ClipKind = "timeline"
	ClipKindMasterclipSub  ClipKind = "masterclip_stream"
	ClipKindMaster         ClipKind = "master"
)

// Clip is the §3 Clip entity. TrackID, ParentClipID, SourceSequenceID, and
// MediaID are optional references and are nil when absent.
type Clip struct {
	ID               string
	ProjectID        string
	ClipKind         ClipKind
	TrackID          *string
	OwnerSequenceID  string
	ParentClipID     *string
	SourceSequenceID *string
	MediaID          *string
	Name             string
	TimelineStart    rational.Time
	Duration         rational.Time
	SourceIn         rational.Time
	SourceOut        rational.Time
	Enabled          bool
	Offline          bool
	FPSNum           uint32
	FPSDen           uint32
}

// IsGap is always false for a persisted Clip: gaps are never stored as
// Clip rows.
func (c *Clip) IsGap() bool { return false }

// LoadClip loads a clip by id, returning *cmderr.EntityNotFound if absent.
func LoadClip(g *store.Gateway, id string) (*Clip, error) {
	c, err := LoadClipOptional(g, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &cmderr.EntityNotFound{Kind: "clip", ID: id}
	}
	return c, nil
}

// LoadClipOptional loads a clip by id, returning (nil, nil) if absent.
func LoadClipOptional(g *store.Gateway, id string) (*Clip, error) {
	stmt, err := g.Prepare(`SELECT id, project_id, clip_kind, track_id, owner_sequence_id,
		parent_clip_id, source_sequence_id, media_id, name, start_value, duration_value,
		source_in_value, source_out_value, enabled, offline, fps_numerator, fps_denominator
		FROM clips WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, id)

	has, err := stmt.Next()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return scanClip(stmt)
}

func scanClip(stmt *store.Stmt) (*Clip, error) {
	var (
		c                                       Clip
		trackID, parentID, sourceSeqID, mediaID sql.NullString
		enabled, offline                        int64
		start, dur, srcIn, srcOut               int64
		fpsNum, fpsDen                          int64
		kind                                    string
	)
	_ = stmt.Value(0, &c.ID)
	_ = stmt.Value(1, &c.ProjectID)
	_ = stmt.Value(2, &kind)
	_ = stmt.Value(3, &trackID)
	_ = stmt.Value(4, &c.OwnerSequenceID)
	_ = stmt.Value(5, &parentID)
	_ = stmt.Value(6, &sourceSeqID)
	_ = stmt.Value(7, &mediaID)
	_ = stmt.Value(8, &c.Name)
	_ = stmt.Value(9, &start)
	_ = stmt.Value(10, &dur)
	_ = stmt.Value(11, &srcIn)
	_ = stmt.Value(12, &srcOut)
	_ = stmt.Value(13, &enabled)
	_ = stmt.Value(14, &offline)
	_ = stmt.Value(15, &fpsNum)
	_ = stmt.Value(16, &fpsDen)

	c.ClipKind = ClipKind(kind)
	c.FPSNum, c.FPSDen = uint32(fpsNum), uint32(fpsDen)
	c.TimelineStart = rational.New(start, c.FPSNum, c.FPSDen)
	c.Duration = rational.New(dur, c.FPSNum, c.FPSDen)
	c.SourceIn = rational.New(srcIn, c.FPSNum, c.FPSDen)
	c.SourceOut = rational.New(srcOut, c.FPSNum, c.FPSDen)
	c.Enabled = enabled != 0
	c.Offline = offline != 0
	if trackID.Valid {
		c.TrackID = &trackID.String
	}
	if parentID.Valid {
		c.ParentClipID = &parentID.String
	}
	if sourceSeqID.Valid {
		c.SourceSequenceID = &sourceSeqID.String
	}
	if mediaID.Valid {
		c.MediaID = &mediaID.String
	}
	return &c, nil
}

// ClipsOnTrack returns every persisted clip on trackID, sorted by start.
func ClipsOnTrack(g *store.Gateway, trackID string) ([]*Clip, error) {
	stmt, err := g.Prepare(`SELECT id, project_id, clip_kind, track_id, owner_sequence_id,
		parent_clip_id, source_sequence_id, media_id, name, start_value, duration_value,
		source_in_value, source_out_value, enabled, offline, fps_numerator, fps_denominator
		FROM clips WHERE track_id = ? ORDER BY start_value ASC`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, trackID)

	var out []*Clip
	for {
		has, err := stmt.Next()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		c, err := scanClip(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ClipsInSequence returns every clip owned by any track of sequenceID,
// sorted by start, across all tracks.
func ClipsInSequence(g *store.Gateway, sequenceID string) ([]*Clip, error) {
	stmt, err := g.Prepare(`SELECT c.id, c.project_id, c.clip_kind, c.track_id, c.owner_sequence_id,
		c.parent_clip_id, c.source_sequence_id, c.media_id, c.name, c.start_value, c.duration_value,
		c.source_in_value, c.source_out_value, c.enabled, c.offline, c.fps_numerator, c.fps_denominator
		FROM clips c JOIN tracks t ON c.track_id = t.id
		WHERE t.sequence_id = ? ORDER BY c.start_value ASC`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, sequenceID)

	var out []*Clip
	for {
		has, err := stmt.Next()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		c, err := scanClip(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveOptions controls Save's occlusion behavior per §4.2.
type SaveOptions struct {
	SkipOcclusion bool
	PendingClips  map[string]occlusion.Pending
}

// Save inserts or updates the clip. When opts.SkipOcclusion is false it
// first asks the occlusion resolver to plan the actions needed to keep the
// clip's track non-overlapping and returns them for the executor to apply
// and record in the mutation bucket; the clip itself is always persisted.
func (c *Clip) Save(g *store.Gateway, opts SaveOptions) ([]occlusion.Action, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Duration.Frames < 0 {
		return nil, &cmderr.ConstraintViolation{Message: "clip duration cannot be negative"}
	}

	var actions []occlusion.Action
	if !opts.SkipOcclusion && c.TrackID != nil {
		existing, err := ClipsOnTrack(g, *c.TrackID)
		if err != nil {
			return nil, err
		}
		occClips := make([]occlusion.Clip, 0, len(existing))
		for _, e := range existing {
			occClips = append(occClips, occlusion.Clip{
				ID: e.ID, TrackID: *e.TrackID, Start: e.TimelineStart,
				Duration: e.Duration, SourceIn: e.SourceIn, Payload: e,
			})
		}
		target := occlusion.Target{
			TrackID:       *c.TrackID,
			Start:         c.TimelineStart,
			Duration:      c.Duration,
			ExcludeClipID: c.ID,
		}
		actions = occlusion.Resolve(occClips, target, opts.PendingClips)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	upsert, err := g.Prepare(`INSERT INTO clips (id, project_id, clip_kind, track_id,
		owner_sequence_id, parent_clip_id, source_sequence_id, media_id, name, start_value,
		duration_value, source_in_value, source_out_value, enabled, offline, fps_numerator,
		fps_denominator, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET track_id=excluded.track_id, owner_sequence_id=excluded.owner_sequence_id,
			parent_clip_id=excluded.parent_clip_id, source_sequence_id=excluded.source_sequence_id,
			media_id=excluded.media_id, name=excluded.name, start_value=excluded.start_value,
			duration_value=excluded.duration_value, source_in_value=excluded.source_in_value,
			source_out_value=excluded.source_out_value, enabled=excluded.enabled, offline=excluded.offline,
			fps_numerator=excluded.fps_numerator, fps_denominator=excluded.fps_denominator,
			modified_at=excluded.modified_at`)
	if err != nil {
		return nil, err
	}
	defer upsert.Finalize()

	upsert.Bind(1, c.ID)
	upsert.Bind(2, c.ProjectID)
	upsert.Bind(3, string(c.ClipKind))
	upsert.Bind(4, nullable(c.TrackID))
	upsert.Bind(5, c.OwnerSequenceID)
	upsert.Bind(6, nullable(c.ParentClipID))
	upsert.Bind(7, nullable(c.SourceSequenceID))
	upsert.Bind(8, nullable(c.MediaID))
	upsert.Bind(9, c.Name)
	upsert.Bind(10, c.TimelineStart.Frames)
	upsert.Bind(11, c.Duration.Frames)
	upsert.Bind(12, c.SourceIn.Frames)
	upsert.Bind(13, c.SourceOut.Frames)
	upsert.Bind(14, boolToInt(c.Enabled))
	upsert.Bind(15, boolToInt(c.Offline))
	upsert.Bind(16, int64(c.FPSNum))
	upsert.Bind(17, int64(c.FPSDen))
	upsert.Bind(18, now)
	upsert.Bind(19, now)
	if _, err := upsert.Exec(); err != nil {
		return nil, err
	}
	return actions, nil
}

// Delete removes the clip row. Property deletion is explicit per §3's
// "Lifecycle" note and is handled by DeleteClipProperties.
func (c *Clip) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM clips WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, c.ID)
	_, err = stmt.Exec()
	return err
}

// ClipSnapshot is an immutable copy of a Clip's field values, used by
// undoers to restore prior state.
type ClipSnapshot Clip

// Snapshot captures the clip's current field values.
func (c *Clip) Snapshot() ClipSnapshot { return ClipSnapshot(*c) }

// Restore overwrites c's fields from snap and re-saves it. Used by undoers
// that need to put a clip back exactly as it was before a command ran.
func (c *Clip) Restore(g *store.Gateway, snap ClipSnapshot) error {
	*c = Clip(snap)
	_, err := c.Save(g, SaveOptions{SkipOcclusion: true})
	return err
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
