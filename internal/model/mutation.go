package model

import "time"

// Mutation operation constants.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Mutation is one journaled create/update/delete call against Redmine.
// It is recorded before the request is attempted and completed once the
// outcome is known.
type Mutation struct {
	ID        string    `json:"id" db:"id"`
	Resource  string    `json:"resource" db:"resource"`
	Operation string    `json:"operation" db:"operation"`
	RemoteID  *int      `json:"remote_id,omitempty" db:"remote_id"`
	Payload   string    `json:"payload" db:"payload"`
	DryRun    bool      `json:"dry_run" db:"dry_run"`
	Status    int       `json:"status" db:"status"`
	Error     string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// CompletedAt is nil while the call is in flight or if the process
	// died before the outcome was known.
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Outcome summarizes the mutation for listings.
func (m Mutation) Outcome() string {
	switch {
	case m.DryRun:
		return "dry-run"
	case m.CompletedAt == nil:
		return "pending"
	case m.Error != "":
		return "failed"
	default:
		return "ok"
	}
}
