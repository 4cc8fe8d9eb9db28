package db

// Session is a row of the sessions table.
type Session struct {
	ID             string
	Name           string
	Slug           string
	Language       string
	State          string
	CurrentVersion int64
	CreatedAt      int64
	UpdatedAt      int64
}

// Version is a row of the versions table. Findings and Diff hold JSON.
type Version struct {
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
