// Package store is a thin gateway over a relational engine: prepared
// statements, typed binds, cursor iteration, and transactions with
// single-level nesting tolerance, per §4.3. It never knows about Sequence,
// Track, or Clip — the entity model (internal/model) is the only caller.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // driver registration only
)

// Error is a StoreError per §7: a SQL failure carrying a human-readable
// message. Command executors surface it via dispatcher.SetLastError and
// roll back; it never leaks a database/sql or driver type to callers.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("store: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrap(op, message string, cause error) *Error {
	return &Error{Op: op, Message: message, Cause: cause}
}

// Gateway owns the database handle and the current transaction depth.
// Nested Begin calls degrade to "already in a transaction" per §4.3/§5: the
// outermost frame controls the real commit/rollback.
type Gateway struct {
	db    *sql.DB
	txn   *sql.Tx
	depth int
}

// Open opens a sqlite-backed gateway at dsn ("file:path.db" or ":memory:").
func Open(dsn string) (*Gateway, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrap("open", "failed to open database", err)
	}
	if err := db.Ping(); err != nil {
		return nil, wrap("open", "failed to ping database", err)
	}
	return &Gateway{db: db}, nil
}

// Close closes the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// TxHandle identifies a transaction frame. Nested handles are sentinels that
// carry no real transaction; only depth 1 wraps a live *sql.Tx.
type TxHandle struct {
	depth int
	real  bool
}

// BeginTransaction opens a transaction, or — if one is already open —
// returns a sentinel handle indicating "attach to existing", matching the
// degrade-on-"cannot start a transaction within a transaction" behavior
// §5 calls for.
func (g *Gateway) BeginTransaction() (TxHandle, error) {
	g.depth++
	if g.depth == 1 {
		tx, err := g.db.Begin()
		if err != nil {
			g.depth--
			return TxHandle{}, wrap("begin_transaction", "failed to begin transaction", err)
		}
		g.txn = tx
		return TxHandle{depth: 1, real: true}, nil
	}
	return TxHandle{depth: g.depth, real: false}, nil
}

// Commit is a no-op at any frame but the outermost, which performs the real
// commit.
func (g *Gateway) Commit(h TxHandle) error {
	if h.depth != g.depth {
		return wrap("commit", "transaction handle does not match current depth", nil)
	}
	g.depth--
	if !h.real {
		return nil
	}
	tx := g.txn
	g.txn = nil
	if tx == nil {
		return wrap("commit", "no active transaction", nil)
	}
	if err := tx.Commit(); err != nil {
		return wrap("commit", "failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back the outermost transaction. Intermediate frames are
// no-ops; only the frame that owns the live *sql.Tx can discard it, and per
// §5 a failure at any level rolls back the outermost frame.
func (g *Gateway) Rollback(h TxHandle) error {
	if h.depth != g.depth {
		return wrap("rollback", "transaction handle does not match current depth", nil)
	}
	g.depth--
	if !h.real {
		return nil
	}
	tx := g.txn
	g.txn = nil
	if tx == nil {
		return wrap("rollback", "no active transaction", nil)
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return wrap("rollback", "failed to roll back transaction", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting Prepare route
// through whichever is live.
type queryer interface {
	Prepare(query string) (*sql.Stmt, error)
}

func (g *Gateway) queryer() queryer {
	if g.txn != nil {
		return g.txn
	}
	return g.db
}

// Stmt is a prepared statement with explicit bind slots and cursor-style
// iteration, per §4.3.
type Stmt struct {
	stmt  *sql.Stmt
	args  []any
	rows  *sql.Rows
	query string
}

// Prepare compiles sql against the current transaction (or the bare
// connection if none is open).
func (g *Gateway) Prepare(sqlText string) (*Stmt, error) {
	s, err := g.queryer().Prepare(sqlText)
	if err != nil {
		return nil, wrap("prepare", sqlText, err)
	}
	return &Stmt{stmt: s, query: sqlText}, nil
}

// Bind sets the value of the i-th bind slot (1-indexed, matching typical SQL
// placeholder numbering conventions in the pack's SQL-backed services).
func (s *Stmt) Bind(i int, value any) {
	for len(s.args) < i {
		s.args = append(s.args, nil)
	}
	s.args[i-1] = value
}

// Exec runs the statement as a mutation (insert/update/delete) and returns
// the number of affected rows.
func (s *Stmt) Exec() (int64, error) {
	res, err := s.stmt.Exec(s.args...)
	if err != nil {
		return 0, wrap("exec", s.query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("exec", s.query, err)
	}
	return n, nil
}

// Next advances the cursor, returning false when exhausted. Callers must
// call Query once before the first Next (done lazily here on first call).
func (s *Stmt) Next() (bool, error) {
	if s.rows == nil {
		rows, err := s.stmt.Query(s.args...)
		if err != nil {
			return false, wrap("query", s.query, err)
		}
		s.rows = rows
	}
	if !s.rows.Next() {
		return false, s.rows.Err()
	}
	return true, nil
}

// Value scans the i-th column (0-indexed) of the current row into dest.
func (s *Stmt) Value(i int, dest any) error {
	cols, err := s.rows.Columns()
	if err != nil {
		return wrap("value", s.query, err)
	}
	scanTargets := make([]any, len(cols))
	for j := range scanTargets {
		if j == i {
			scanTargets[j] = dest
		} else {
			var discard any
			scanTargets[j] = &discard
		}
	}
	if err := s.rows.Scan(scanTargets...); err != nil {
		return wrap("value", s.query, err)
	}
	return nil
}

// Finalize releases the statement and any open cursor.
func (s *Stmt) Finalize() error {
	if s.rows != nil {
		_ = s.rows.Close()
	}
	return s.stmt.Close()
}
