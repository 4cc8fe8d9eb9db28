package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the statements used by the stores.
type Queries struct {
	db DBTX
}

// New returns queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const sessionColumns = `id, name, slug, language, state, current_version, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Language, &s.State, &s.CurrentVersion, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// InsertSessionParams holds the values of a new session row.
type InsertSessionParams struct {
	ID             string
	Name           string
	Slug           string
	Language       string
	State          string
	CurrentVersion int64
	CreatedAt      int64
	UpdatedAt      int64
}

func (q *Queries) InsertSession(ctx context.Context, arg InsertSessionParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.Name, arg.Slug, arg.Language, arg.State, arg.CurrentVersion, arg.CreatedAt, arg.UpdatedAt,
	)
	return err
}

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (q *Queries) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// UpdateSessionCurrentParams moves a session's current version.
type UpdateSessionCurrentParams struct {
	ID             string
	CurrentVersion int64
	UpdatedAt      int64
}

func (q *Queries) UpdateSessionCurrent(ctx context.Context, arg UpdateSessionCurrentParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE sessions SET current_version = ?, updated_at = ? WHERE id = ?`,
		arg.CurrentVersion, arg.UpdatedAt, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateSessionStateParams changes a session's lifecycle state.
type UpdateSessionStateParams struct {
	ID        string
	State     string
	UpdatedAt int64
}

func (q *Queries) UpdateSessionState(ctx context.Context, arg UpdateSessionStateParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`,
		arg.State, arg.UpdatedAt, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertVersionParams holds the values of a new version row.
type InsertVersionParams struct {
	SessionID string
	ID        int64
	ParentID  int64
	Text      string
	Findings  string
	Diff      string
	Author    string
	Rationale string
	Goal      string
	CreatedAt int64
}

func (q *Queries) InsertVersion(ctx context.Context, arg InsertVersionParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO versions (session_id, id, parent_id, text, findings, diff, author, rationale, goal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.SessionID, arg.ID, arg.ParentID, arg.Text, arg.Findings, arg.Diff,
		arg.Author, arg.Rationale, arg.Goal, arg.CreatedAt,
	)
	return err
}

func (q *Queries) ListVersions(ctx context.Context, sessionID string) ([]Version, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT session_id, id, parent_id, text, findings, diff, author, rationale, goal, created_at
		 FROM versions WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.SessionID, &v.ID, &v.ParentID, &v.Text, &v.Findings, &v.Diff,
			&v.Author, &v.Rationale, &v.Goal, &v.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
