// Package model implements the entity value types of §3: Sequence, Track,
// Clip, Media, Property, and Bin, each with load/save/delete primitives and
// a snapshot/restore pair used by command undoers. Entities never mutate the
// store except through these primitives, and only executors/undoers/redoers
// call them (§3 "Lifecycle").
package model

import (
	"github.com/mrjoshuak/nlecore/internal/store"
)

// Migrate creates every table named in §6 if it does not already exist.
func Migrate(g *store.Gateway) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			settings TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			fps_numerator INTEGER NOT NULL,
			fps_denominator INTEGER NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			audio_rate INTEGER,
			playhead_value INTEGER NOT NULL DEFAULT 0,
			viewport_start_value INTEGER NOT NULL DEFAULT 0,
			viewport_duration_frames_value INTEGER NOT NULL DEFAULT 0,
			mark_in_value INTEGER,
			mark_out_value INTEGER,
			timecode_start_frame INTEGER NOT NULL DEFAULT 0,
			modified_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			sequence_id TEXT NOT NULL REFERENCES sequences(id) ON DELETE CASCADE,
			track_type TEXT NOT NULL,
			track_index INTEGER NOT NULL,
			name TEXT NOT NULL,
			height INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clips (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			clip_kind TEXT NOT NULL,
			track_id TEXT REFERENCES tracks(id) ON DELETE CASCADE,
			owner_sequence_id TEXT,
			parent_clip_id TEXT,
			source_sequence_id TEXT,
			media_id TEXT,
			name TEXT NOT NULL DEFAULT '',
			start_value INTEGER NOT NULL,
			duration_value INTEGER NOT NULL,
			source_in_value INTEGER NOT NULL,
			source_out_value INTEGER NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			offline INTEGER NOT NULL DEFAULT 0,
			fps_numerator INTEGER NOT NULL,
			fps_denominator INTEGER NOT NULL,
			created_at TEXT,
			modified_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS media (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			path TEXT NOT NULL,
			has_video INTEGER NOT NULL DEFAULT 0,
			has_audio INTEGER NOT NULL DEFAULT 0,
			duration_value INTEGER NOT NULL,
			duration_num INTEGER NOT NULL,
			duration_den INTEGER NOT NULL,
			video_width INTEGER NOT NULL DEFAULT 0,
			video_height INTEGER NOT NULL DEFAULT 0,
			frame_rate_num INTEGER NOT NULL DEFAULT 0,
			frame_rate_den INTEGER NOT NULL DEFAULT 1,
			sample_rate INTEGER NOT NULL DEFAULT 0,
			channels INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			clip_id TEXT NOT NULL REFERENCES clips(id) ON DELETE CASCADE,
			property_name TEXT NOT NULL,
			property_value TEXT NOT NULL,
			property_type TEXT NOT NULL,
			default_value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT NOT NULL,
			insert_index INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS undo_log (
			sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			project_id TEXT NOT NULL,
			undo_group_id TEXT,
			parameters TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		stmt, err := g.Prepare(s)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(); err != nil {
			_ = stmt.Finalize()
			return err
		}
		_ = stmt.Finalize()
	}
	return nil
}
