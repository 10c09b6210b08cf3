package command

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrjoshuak/nlecore/internal/media"
	"github.com/mrjoshuak/nlecore/internal/mutation"
	"github.com/mrjoshuak/nlecore/internal/store"
	"github.com/mrjoshuak/nlecore/internal/uistate"
)

// logEntry is one committed, undoable command sitting in the undo log.
type logEntry struct {
	record        Record
	undoGroupID   string
	sequenceNumber int64
}

// Dispatcher owns the store connection, the undo log, the last-error
// string, and the mutation bucket, per §5's "shared resources" list.
type Dispatcher struct {
	registry *Registry
	gateway  *store.Gateway
	cache    uistate.Cache
	logger   *zap.SugaredLogger
	prober   media.Prober

	undoLog   []logEntry
	redoStack []logEntry
	nextSeq   int64

	// currentGroupID is non-empty while a nested Execute call is in
	// progress, so child commands inherit the caller's undo-group id
	// (§4.5, §5's transaction-join rule).
	currentGroupID string
	txDepth        int

	lastError string

	maxRippleRetries int
}

// NewDispatcher wires a registry to a store gateway, UI cache, media prober,
// and logger.
func NewDispatcher(reg *Registry, g *store.Gateway, cache uistate.Cache, prober media.Prober, logger *zap.SugaredLogger, maxRippleRetries int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if prober == nil {
		prober = media.NewStaticProber()
	}
	if maxRippleRetries <= 0 {
		maxRippleRetries = 3
	}
	return &Dispatcher{
		registry:         reg,
		gateway:          g,
		cache:            cache,
		prober:           prober,
		logger:           logger,
		maxRippleRetries: maxRippleRetries,
	}
}

// SetLastError records msg as the dispatcher's last error, per §4.5.
func (d *Dispatcher) SetLastError(msg string) { d.lastError = msg }

// LastError returns the most recently set error message.
func (d *Dispatcher) LastError() string { return d.lastError }

// Execute resolves rec.Name's executor, runs it inside a transaction, and —
// on success for an undoable command — appends it to the undo log. Nested
// Execute calls (Execute invoked while another command's transaction is
// open) join the caller's transaction and undo group.
func (d *Dispatcher) Execute(rec *Record) (ExecResult, error) {
	spec, err := d.registry.Lookup(rec.Name)
	if err != nil {
		d.SetLastError(err.Error())
		return Fail(err.Error()), err
	}

	nested := d.txDepth > 0
	if !nested {
		if rec.UndoGroupID == "" {
			rec.UndoGroupID = uuid.NewString()
		}
		d.currentGroupID = rec.UndoGroupID
	} else if rec.UndoGroupID == "" {
		rec.UndoGroupID = d.currentGroupID
	}

	start := time.Now()
	tx, err := d.gateway.BeginTransaction()
	if err != nil {
		d.SetLastError(err.Error())
		return Fail(err.Error()), err
	}
	d.txDepth++

	ctx := &Context{
		Store: d.gateway, Cache: d.cache, Prober: d.prober, Logger: d.logger,
		Bucket: bucketFor(rec), MaxRippleRetries: d.maxRippleRetries, Registry: d.registry,
	}

	result, execErr := spec.Executor(ctx, rec)

	if execErr != nil || !result.Success {
		_ = d.gateway.Rollback(tx)
		d.txDepth--
		msg := result.ErrorMessage
		if execErr != nil {
			msg = execErr.Error()
		}
		d.SetLastError(msg)
		d.logger.Warnw("command failed", "command", rec.Name, "project_id", rec.ProjectID, "error", msg)
		return result, execErr
	}

	if err := d.gateway.Commit(tx); err != nil {
		d.SetLastError(err.Error())
		d.txDepth--
		return Fail(err.Error()), err
	}
	d.txDepth--

	if !nested {
		d.cache.Flush(ctx.Bucket)
	}

	if spec.Undoable {
		d.nextSeq++
		d.undoLog = append(d.undoLog, logEntry{record: *rec, undoGroupID: rec.UndoGroupID, sequenceNumber: d.nextSeq})
		d.redoStack = nil // a fresh command invalidates any pending redo
	}

	d.logger.Infow("command executed", "command", rec.Name, "project_id", rec.ProjectID,
		"undo_group_id", rec.UndoGroupID, "duration", time.Since(start))

	return result, nil
}

func bucketFor(rec *Record) *mutation.Bucket {
	return mutation.New()
}

// Undo reverses every command sharing the most recent undo-group id, in
// reverse order, as one atomic unit (§4.5).
func (d *Dispatcher) Undo() error {
	if len(d.undoLog) == 0 {
		return fmt.Errorf("command: undo log is empty")
	}
	last := d.undoLog[len(d.undoLog)-1]
	group := last.undoGroupID

	var members []logEntry
	i := len(d.undoLog) - 1
	for i >= 0 && d.undoLog[i].undoGroupID == group {
		members = append(members, d.undoLog[i])
		i--
	}
	d.undoLog = d.undoLog[:i+1]

	tx, err := d.gateway.BeginTransaction()
	if err != nil {
		return err
	}
	ctx := &Context{Store: d.gateway, Cache: d.cache, Prober: d.prober, Logger: d.logger, Bucket: mutation.New(), MaxRippleRetries: d.maxRippleRetries, Registry: d.registry}

	for _, entry := range members { // already reverse order (most recent first)
		spec, err := d.registry.Lookup(entry.record.Name)
		if err != nil {
			_ = d.gateway.Rollback(tx)
			return err
		}
		rec := entry.record
		if err := spec.Undoer(ctx, &rec); err != nil {
			_ = d.gateway.Rollback(tx)
			d.SetLastError(err.Error())
			return err
		}
	}
	if err := d.gateway.Commit(tx); err != nil {
		return err
	}
	d.cache.Flush(ctx.Bucket)

	// Push in forward (original) order so Redo replays them forward.
	for i := len(members) - 1; i >= 0; i-- {
		d.redoStack = append(d.redoStack, members[i])
	}
	d.logger.Infow("undo group reversed", "undo_group_id", group, "count", len(members))
	return nil
}

// Redo re-applies the most recently undone group, preferring each
// command's Redoer when present and falling back to its Executor (replay
// semantics) otherwise (§4.5, §9 "Replay identity").
func (d *Dispatcher) Redo() error {
	if len(d.redoStack) == 0 {
		return fmt.Errorf("command: nothing to redo")
	}
	last := d.redoStack[len(d.redoStack)-1]
	group := last.undoGroupID

	var members []logEntry
	i := len(d.redoStack) - 1
	for i >= 0 && d.redoStack[i].undoGroupID == group {
		members = append([]logEntry{d.redoStack[i]}, members...) // forward order
		i--
	}
	d.redoStack = d.redoStack[:i+1]

	tx, err := d.gateway.BeginTransaction()
	if err != nil {
		return err
	}
	ctx := &Context{Store: d.gateway, Cache: d.cache, Prober: d.prober, Logger: d.logger, Bucket: mutation.New(), MaxRippleRetries: d.maxRippleRetries, Registry: d.registry}

	for _, entry := range members {
		spec, err := d.registry.Lookup(entry.record.Name)
		if err != nil {
			_ = d.gateway.Rollback(tx)
			return err
		}
		rec := entry.record
		var redoErr error
		if spec.Redoer != nil {
			redoErr = spec.Redoer(ctx, &rec)
		} else {
			_, redoErr = spec.Executor(ctx, &rec)
		}
		if redoErr != nil {
			_ = d.gateway.Rollback(tx)
			d.SetLastError(redoErr.Error())
			return redoErr
		}
		d.nextSeq++
		entry.record = rec
		entry.sequenceNumber = d.nextSeq
		d.undoLog = append(d.undoLog, entry)
	}
	if err := d.gateway.Commit(tx); err != nil {
		return err
	}
	d.cache.Flush(ctx.Bucket)
	d.logger.Infow("redo group re-applied", "undo_group_id", group, "count", len(members))
	return nil
}

// Registry exposes the underlying registry for command packages that need
// to register their specs.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// LogEntry is the exported, JSON-friendly form of one undo/redo-log entry.
// A CLI driver uses it to carry the dispatcher's undo/redo state across
// process invocations, since the engine itself keeps that state in memory
// only for the lifetime of one Dispatcher.
type LogEntry struct {
	Record         Record
	UndoGroupID    string
	SequenceNumber int64
}

// ExportState snapshots the undo log, redo stack, and sequence counter for
// persistence between CLI invocations.
func (d *Dispatcher) ExportState() (undoLog []LogEntry, redoStack []LogEntry, nextSeq int64) {
	for _, e := range d.undoLog {
		undoLog = append(undoLog, LogEntry{Record: e.record, UndoGroupID: e.undoGroupID, SequenceNumber: e.sequenceNumber})
	}
	for _, e := range d.redoStack {
		redoStack = append(redoStack, LogEntry{Record: e.record, UndoGroupID: e.undoGroupID, SequenceNumber: e.sequenceNumber})
	}
	return undoLog, redoStack, d.nextSeq
}

// ImportState restores a previously exported undo log, redo stack, and
// sequence counter. Call it right after NewDispatcher, before running any
// command, so Undo/Redo see the prior session's history.
func (d *Dispatcher) ImportState(undoLog []LogEntry, redoStack []LogEntry, nextSeq int64) {
	d.undoLog = d.undoLog[:0]
	for _, e := range undoLog {
		d.undoLog = append(d.undoLog, logEntry{record: e.Record, undoGroupID: e.UndoGroupID, sequenceNumber: e.SequenceNumber})
	}
	d.redoStack = d.redoStack[:0]
	for _, e := range redoStack {
		d.redoStack = append(d.redoStack, logEntry{record: e.Record, undoGroupID: e.UndoGroupID, sequenceNumber: e.SequenceNumber})
	}
	d.nextSeq = nextSeq
}
