// Package command implements the registry/dispatcher of §4.5: it maps
// command names to executor/undoer/(optional)redoer triples, wraps each
// execution in a transaction, and records committed commands in an undo log
// keyed by undo-group id for nested commands.
package command

import (
	"github.com/mrjoshuak/nlecore/internal/media"
	"github.com/mrjoshuak/nlecore/internal/mutation"
	"github.com/mrjoshuak/nlecore/internal/store"
	"github.com/mrjoshuak/nlecore/internal/uistate"
	"go.uber.org/zap"
)

// Params is the command parameter bag of §3: read and mutated by the
// executor to cache whatever the undoer/redoer needs.
type Params map[string]any

// Record is the §3 Command record.
type Record struct {
	ID            string
	Name          string
	ProjectID     string
	Parameters    Params
	UndoGroupID   string // empty when not part of a nested group
	SequenceNumber int64
}

// ExecResult is the uniform result every command returns (§6). Fields
// carries command-specific output (dry-run previews, generated ids) instead
// of a closed struct per command, matching the parameter-bag style the rest
// of the engine uses.
type ExecResult struct {
	Success      bool
	ErrorMessage string
	Cancelled    bool
	Fields       map[string]any
}

// Ok builds a successful ExecResult, optionally with extra fields.
func Ok(fields map[string]any) ExecResult {
	return ExecResult{Success: true, Fields: fields}
}

// Fail builds a failed ExecResult carrying msg.
func Fail(msg string) ExecResult {
	return ExecResult{Success: false, ErrorMessage: msg}
}

// Context is the per-execute environment handed to every executor, undoer,
// and redoer: the store gateway, the UI cache, the media prober, the
// logger, and this command's mutation bucket.
type Context struct {
	Store   *store.Gateway
	Cache   uistate.Cache
	Prober  media.Prober
	Logger  *zap.SugaredLogger
	Bucket  *mutation.Bucket

	// MaxRippleRetries bounds the batch ripple engine's downstream-clamp
	// retry loop (§4.10 Phase 8's MAX_RIPPLE_CONSTRAINT_RETRIES).
	MaxRippleRetries int

	// Registry lets a nested command (e.g. BatchCommand's members) look up
	// and invoke another command's spec
	// directly, joining the caller's already-open transaction rather than
	// re-entering the dispatcher (§5's transaction-join rule).
	Registry *Registry

	// BatchDepth counts how many BatchCommand executions are currently on
	// the call stack. One level of nesting joins the outer undo group;
	// execBatchCommand rejects a second.
	BatchDepth int
}

// Executor runs a command's forward effect, reading and mutating rec.Parameters.
type Executor func(ctx *Context, rec *Record) (ExecResult, error)

// Undoer reverses a previously committed command using its persisted
// parameters.
type Undoer func(ctx *Context, rec *Record) error

// Redoer re-applies a previously undone command. When nil, undo/redo falls
// back to re-running Executor with the persisted parameters (replay
// semantics, §4.5).
type Redoer func(ctx *Context, rec *Record) error

// Spec registers one command's behavior.
type Spec struct {
	Name      string
	Executor  Executor
	Undoer    Undoer
	Redoer    Redoer
	Undoable  bool // defaults to true; set false for ToggleSnapping, MatchFrame, Select*, navigation
}
