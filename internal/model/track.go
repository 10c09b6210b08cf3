package model

import (
	"github.com/google/uuid"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/store"
)

// TrackKind is the §3 track kind.
type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)

// Track is the §3 Track entity. Within a sequence, (Kind, Index) is unique.
type Track struct {
	ID         string
	SequenceID string
	Kind       TrackKind
	Index      int
	Name       string
	Height     int
}

// LoadTrack loads a track by id, returning *cmderr.EntityNotFound if absent.
func LoadTrack(g *store.Gateway, id string) (*Track, error) {
	t, err := LoadTrackOptional(g, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &cmderr.EntityNotFound{Kind: "track", ID: id}
	}
	return t, nil
}

// LoadTrackOptional loads a track by id, returning (nil, nil) if absent.
func LoadTrackOptional(g *store.Gateway, id string) (*Track, error) {
	stmt, err := g.Prepare(`SELECT id, sequence_id, track_type, track_index, name, height
		FROM tracks WHERE id = ?`)
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
	var t Track
	var kind string
	_ = stmt.Value(0, &t.ID)
	_ = stmt.Value(1, &t.SequenceID)
	_ = stmt.Value(2, &kind)
	_ = stmt.Value(3, &t.Index)
	_ = stmt.Value(4, &t.Name)
	_ = stmt.Value(5, &t.Height)
	t.Kind = TrackKind(kind)
	return &t, nil
}

// TracksInSequence returns every track belonging to sequenceID, ordered by
// kind then index.
func TracksInSequence(g *store.Gateway, sequenceID string) ([]*Track, error) {
	stmt, err := g.Prepare(`SELECT id, sequence_id, track_type, track_index, name, height
		FROM tracks WHERE sequence_id = ? ORDER BY track_type ASC, track_index ASC`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, sequenceID)

	var out []*Track
	for {
		has, err := stmt.Next()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		var t Track
		var kind string
		_ = stmt.Value(0, &t.ID)
		_ = stmt.Value(1, &t.SequenceID)
		_ = stmt.Value(2, &kind)
		_ = stmt.Value(3, &t.Index)
		_ = stmt.Value(4, &t.Name)
		_ = stmt.Value(5, &t.Height)
		t.Kind = TrackKind(kind)
		out = append(out, &t)
	}
	return out, nil
}

// Save inserts or updates the track.
func (t *Track) Save(g *store.Gateway) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	stmt, err := g.Prepare(`INSERT INTO tracks (id, sequence_id, track_type, track_index, name, height)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET track_type=excluded.track_type, track_index=excluded.track_index,
			name=excluded.name, height=excluded.height`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, t.ID)
	stmt.Bind(2, t.SequenceID)
	stmt.Bind(3, string(t.Kind))
	stmt.Bind(4, t.Index)
	stmt.Bind(5, t.Name)
	stmt.Bind(6, t.Height)
	_, err = stmt.Exec()
	return err
}

// Delete removes the track row. Clips cascade via the schema's foreign key.
func (t *Track) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM tracks WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, t.ID)
	_, err = stmt.Exec()
	return err
}
