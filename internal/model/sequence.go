package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/rational"
	"github.com/mrjoshuak/nlecore/internal/store"
)

// SequenceKind distinguishes a user-edited timeline from the sequences that
// encapsulate one imported media file's streams (§3).
type SequenceKind string

const (
	SequenceKindTimeline   SequenceKind = "timeline"
	SequenceKindMasterclip SequenceKind = "masterclip"
	SequenceKindMaster     SequenceKind = "master"
)

// Sequence is the §3 Sequence entity.
type Sequence struct {
	ID                  string
	ProjectID           string
	Name                string
	Kind                SequenceKind
	FPSNum              uint32
	FPSDen              uint32
	Width               int
	Height              int
	AudioRate           *int
	Playhead            rational.Time
	ViewportStart       rational.Time
	ViewportDuration    rational.Time
	MarkIn              *rational.Time
	MarkOut             *rational.Time
	TimecodeStartFrame  int64
}

// LoadSequence loads a sequence by id, returning *cmderr.EntityNotFound if
// absent.
func LoadSequence(g *store.Gateway, id string) (*Sequence, error) {
	s, err := LoadSequenceOptional(g, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &cmderr.EntityNotFound{Kind: "sequence", ID: id}
	}
	return s, nil
}

// LoadSequenceOptional loads a sequence by id, returning (nil, nil) if
// absent.
func LoadSequenceOptional(g *store.Gateway, id string) (*Sequence, error) {
	stmt, err := g.Prepare(`SELECT id, project_id, name, kind, fps_numerator, fps_denominator,
		width, height, audio_rate, playhead_value, viewport_start_value,
		viewport_duration_frames_value, mark_in_value, mark_out_value, timecode_start_frame
		FROM sequences WHERE id = ?`)
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

	var (
		s                                     Sequence
		kind                                  string
		fpsNum, fpsDen                        int64
		audioRate                             sql.NullInt64
		playhead, vpStart, vpDur              int64
		markIn, markOut                       sql.NullInt64
	)
	_ = stmt.Value(0, &s.ID)
	_ = stmt.Value(1, &s.ProjectID)
	_ = stmt.Value(2, &s.Name)
	_ = stmt.Value(3, &kind)
	_ = stmt.Value(4, &fpsNum)
	_ = stmt.Value(5, &fpsDen)
	_ = stmt.Value(6, &s.Width)
	_ = stmt.Value(7, &s.Height)
	_ = stmt.Value(8, &audioRate)
	_ = stmt.Value(9, &playhead)
	_ = stmt.Value(10, &vpStart)
	_ = stmt.Value(11, &vpDur)
	_ = stmt.Value(12, &markIn)
	_ = stmt.Value(13, &markOut)
	_ = stmt.Value(14, &s.TimecodeStartFrame)

	s.Kind = SequenceKind(kind)
	s.FPSNum, s.FPSDen = uint32(fpsNum), uint32(fpsDen)
	s.Playhead = rational.New(playhead, s.FPSNum, s.FPSDen)
	s.ViewportStart = rational.New(vpStart, s.FPSNum, s.FPSDen)
	s.ViewportDuration = rational.New(vpDur, s.FPSNum, s.FPSDen)
	if audioRate.Valid {
		v := int(audioRate.Int64)
		s.AudioRate = &v
	}
	if markIn.Valid {
		v := rational.New(markIn.Int64, s.FPSNum, s.FPSDen)
		s.MarkIn = &v
	}
	if markOut.Valid {
		v := rational.New(markOut.Int64, s.FPSNum, s.FPSDen)
		s.MarkOut = &v
	}
	return &s, nil
}

// Save inserts or updates the sequence.
func (s *Sequence) Save(g *store.Gateway) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := g.Prepare(`INSERT INTO sequences (id, project_id, name, kind, fps_numerator,
		fps_denominator, width, height, audio_rate, playhead_value, viewport_start_value,
		viewport_duration_frames_value, mark_in_value, mark_out_value, timecode_start_frame, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, kind=excluded.kind,
			fps_numerator=excluded.fps_numerator, fps_denominator=excluded.fps_denominator,
			width=excluded.width, height=excluded.height, audio_rate=excluded.audio_rate,
			playhead_value=excluded.playhead_value, viewport_start_value=excluded.viewport_start_value,
			viewport_duration_frames_value=excluded.viewport_duration_frames_value,
			mark_in_value=excluded.mark_in_value, mark_out_value=excluded.mark_out_value,
			timecode_start_frame=excluded.timecode_start_frame, modified_at=excluded.modified_at`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()

	var markIn, markOut any
	if s.MarkIn != nil {
		markIn = s.MarkIn.Frames
	}
	if s.MarkOut != nil {
		markOut = s.MarkOut.Frames
	}
	var audioRate any
	if s.AudioRate != nil {
		audioRate = int64(*s.AudioRate)
	}

	stmt.Bind(1, s.ID)
	stmt.Bind(2, s.ProjectID)
	stmt.Bind(3, s.Name)
	stmt.Bind(4, string(s.Kind))
	stmt.Bind(5, int64(s.FPSNum))
	stmt.Bind(6, int64(s.FPSDen))
	stmt.Bind(7, s.Width)
	stmt.Bind(8, s.Height)
	stmt.Bind(9, audioRate)
	stmt.Bind(10, s.Playhead.Frames)
	stmt.Bind(11, s.ViewportStart.Frames)
	stmt.Bind(12, s.ViewportDuration.Frames)
	stmt.Bind(13, markIn)
	stmt.Bind(14, markOut)
	stmt.Bind(15, s.TimecodeStartFrame)
	stmt.Bind(16, now)
	_, err = stmt.Exec()
	return err
}

// Delete removes the sequence. Tracks and clips cascade via the schema's
// foreign keys (§3 "Lifecycle").
func (s *Sequence) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM sequences WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, s.ID)
	_, err = stmt.Exec()
	return err
}

// SequenceSnapshot is an immutable copy of a Sequence's field values.
type SequenceSnapshot Sequence

// Snapshot captures the sequence's current field values.
func (s *Sequence) Snapshot() SequenceSnapshot { return SequenceSnapshot(*s) }

// Restore overwrites s's fields from snap and re-saves it.
func (s *Sequence) Restore(g *store.Gateway, snap SequenceSnapshot) error {
	*s = Sequence(snap)
	return s.Save(g)
}
