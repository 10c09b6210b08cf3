package main

import (
	"encoding/json"
	"os"

	"github.com/mrjoshuak/nlecore/internal/command"
)

// sessionState is what persists between CLI invocations: the dispatcher's
// undo log and redo stack, keyed to the store DSN they apply to. nlecore's
// engine only keeps that history in memory for one Dispatcher's lifetime
// (§5), so a one-shot CLI has to round-trip it through a file of its own.
type sessionState struct {
	UndoLog   []command.LogEntry `json:"undo_log"`
	RedoStack []command.LogEntry `json:"redo_stack"`
	NextSeq   int64              `json:"next_seq"`
}

func sessionPath(dsn string) string {
	return dsn + ".session.json"
}

func loadSession(dsn string) (*sessionState, error) {
	path := sessionPath(dsn)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &sessionState{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s sessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func saveSession(dsn string, s *sessionState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(dsn), data, 0o644)
}

func (a *app) loadSession() (*sessionState, error) {
	return loadSession(a.cfg.StoreDSN)
}

func (a *app) saveSession() error {
	undo, redo, seq := a.dispatcher.ExportState()
	return saveSession(a.cfg.StoreDSN, &sessionState{UndoLog: undo, RedoStack: redo, NextSeq: seq})
}

func (a *app) restoreSession() error {
	s, err := a.loadSession()
	if err != nil {
		return err
	}
	a.dispatcher.ImportState(s.UndoLog, s.RedoStack, s.NextSeq)
	return nil
}
