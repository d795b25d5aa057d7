package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// OutcomeOK is the outcome recorded for a committed invocation. Failed
// invocations record their error code instead.
const OutcomeOK = "ok"

// Invocation is one journal entry.
type Invocation struct {
	ID            string
	Seq           int64
	Caller        string
	Loop          string
	Command       string
	Args          string // canonical JSON of the decoded command
	Outcome       string
	Message       string
	RecordedAt    uint64 // clock seconds at processing time
	EngineVersion string
}

// Describe returns a canonical-JSON-ready view of the entry.
func (inv Invocation) Describe() map[string]any {
	return map[string]any{
		"id":             inv.ID,
		"seq":            inv.Seq,
		"caller":         inv.Caller,
		"loop":           inv.Loop,
		"command":        inv.Command,
		"args":           inv.Args,
		"outcome":        inv.Outcome,
		"message":        inv.Message,
		"recorded_at":    inv.RecordedAt,
		"engine_version": inv.EngineVersion,
	}
}

// WriteInvocation appends an entry. Duplicate IDs are silently ignored.
func (s *Store) WriteInvocation(ctx context.Context, inv Invocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, seq, caller, loop, command, args, outcome, message, recorded_at, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.Seq,
		inv.Caller,
		inv.Loop,
		inv.Command,
		inv.Args,
		inv.Outcome,
		inv.Message,
		int64(inv.RecordedAt),
		inv.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}

const invocationColumns = `id, seq, caller, loop, command, args, outcome, message, recorded_at, engine_version`

// ReadInvocations returns the last limit entries in journal order. A limit
// of zero or less returns everything.
func (s *Store) ReadInvocations(ctx context.Context, limit int) ([]Invocation, error) {
	query := `SELECT ` + invocationColumns + ` FROM (
		SELECT * FROM invocations ORDER BY seq DESC, id DESC LIMIT ?
	) ORDER BY seq ASC, id ASC COLLATE BINARY`
	if limit <= 0 {
		limit = -1
	}
	return s.queryInvocations(ctx, query, limit)
}

// ReadLoopInvocations returns every entry addressed to loop, in journal order.
func (s *Store) ReadLoopInvocations(ctx context.Context, loop string) ([]Invocation, error) {
	return s.queryInvocations(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE loop = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, loop)
}

// ReadInvocation returns one entry by ID.
func (s *Store) ReadInvocation(ctx context.Context, id string) (Invocation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Invocation{}, fmt.Errorf("invocation %s not found: %w", id, err)
	}
	return inv, err
}

// MaxSeq returns the highest journal seq, or 0 for an empty journal.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM invocations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) queryInvocations(ctx context.Context, query string, args ...any) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row scanner) (Invocation, error) {
	var (
		inv        Invocation
		recordedAt int64
	)
	err := row.Scan(
		&inv.ID,
		&inv.Seq,
		&inv.Caller,
		&inv.Loop,
		&inv.Command,
		&inv.Args,
		&inv.Outcome,
		&inv.Message,
		&recordedAt,
		&inv.EngineVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invocation{}, err
		}
		return Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}
	inv.RecordedAt = uint64(recordedAt)
	return inv, nil
}
