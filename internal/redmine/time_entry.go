package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/remote"
)

// Mutator is the part of the transport needed to upload changes.
type Mutator interface {
	Create(ctx context.Context, res remote.Resource, body any) (*remote.Result, error)
	Update(ctx context.Context, res remote.Resource, id int, body any) (*remote.Result, error)
	Delete(ctx context.Context, res remote.Resource, id int) (*remote.Result, error)
}

// Action is the remote operation an entry's upload maps to.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

type entrySnapshot struct {
	issueID int
	spentOn time.Time
	spent   float64
	comment string
}

// TimeEntry is a remote time entry, or a draft that has not been created
// on the server yet. Every change to its hours goes through AddSpent so the
// owning issue's local spent total stays in step.
type TimeEntry struct {
	// LocalID identifies the entry within this process, drafts included.
	LocalID uuid.UUID

	id      *int
	issue   *Issue
	spentOn time.Time
	spent   float64
	comment string

	original *entrySnapshot

	// createdWithoutID is set when the server confirmed a create but its
	// response did not carry the new id.
	createdWithoutID bool
}

// newDraftEntry creates an entry with no server id and no snapshot.
func newDraftEntry(issue *Issue, date time.Time, spent float64, comment string) *TimeEntry {
	e := &TimeEntry{
		LocalID: uuid.New(),
		issue:   issue,
		spentOn: model.Day(date),
		comment: comment,
	}
	e.AddSpent(spent)
	return e
}

// entryFromRecord builds a loaded entry. It does not touch the issue's
// local spent total: loaded hours are already part of the remote total.
func entryFromRecord(rec timeEntryRecord, issue *Issue) (*TimeEntry, error) {
	day, err := model.ParseDay(rec.SpentOn)
	if err != nil {
		return nil, &remote.ParseError{Resource: remote.TimeEntries.Path, Err: err}
	}
	id := rec.ID
	e := &TimeEntry{
		LocalID: uuid.New(),
		id:      &id,
		issue:   issue,
		spentOn: day,
		spent:   rec.Hours,
		comment: rec.Comments,
	}
	e.original = e.snapshot()
	return e, nil
}

func (e *TimeEntry) snapshot() *entrySnapshot {
	return &entrySnapshot{
		issueID: e.issue.ID,
		spentOn: e.spentOn,
		spent:   e.spent,
		comment: e.comment,
	}
}

// ID returns the server id. ok is false for drafts.
func (e *TimeEntry) ID() (id int, ok bool) {
	if e.id == nil {
		return 0, false
	}
	return *e.id, true
}

// IsDraft reports whether the entry has no server id yet.
func (e *TimeEntry) IsDraft() bool { return e.id == nil }

// CreatedWithoutID reports whether the entry exists on the server under an
// id that is unknown here. Such an entry is never uploaded again; a reload
// picks up the server copy.
func (e *TimeEntry) CreatedWithoutID() bool { return e.createdWithoutID }

func (e *TimeEntry) Issue() *Issue { return e.issue }

func (e *TimeEntry) SpentOn() time.Time { return e.spentOn }

// Spent returns the entry's hours, never negative.
func (e *TimeEntry) Spent() float64 { return e.spent }

func (e *TimeEntry) Comment() string { return e.comment }

// AddSpent adds delta hours, flooring the result at 0. Only the realized
// part of delta is applied, to the entry and to its issue alike, and it is
// returned.
func (e *TimeEntry) AddSpent(delta float64) float64 {
	next := math.Max(0, e.spent+delta)
	realized := next - e.spent
	e.spent = next
	e.issue.addSpent(realized)
	return realized
}

// ChangeSpent sets the hours to an absolute value.
func (e *TimeEntry) ChangeSpent(hours float64) float64 {
	return e.AddSpent(hours - e.spent)
}

// SetIssue moves the entry, and its hours, to another issue.
func (e *TimeEntry) SetIssue(issue *Issue) {
	if issue == nil || issue == e.issue {
		return
	}
	hours := e.spent
	e.AddSpent(-hours)
	e.issue = issue
	e.AddSpent(hours)
}

func (e *TimeEntry) SetComment(comment string) { e.comment = comment }

func (e *TimeEntry) SetSpentOn(date time.Time) { e.spentOn = model.Day(date) }

// Changes returns the fields that differ from the server snapshot. A draft
// always carries spent_on and issue_id since a create requires them.
func (e *TimeEntry) Changes() map[string]any {
	changes := map[string]any{}
	o := e.original
	if o == nil || RoundHours(o.spent) != RoundHours(e.spent) {
		changes["hours"] = RoundHours(e.spent)
	}
	if o == nil || o.comment != e.comment {
		changes["comments"] = e.comment
	}
	if e.id == nil || o == nil || !o.spentOn.Equal(e.spentOn) {
		changes["spent_on"] = e.spentOn.Format(model.DateLayout)
	}
	if e.id == nil || o == nil || o.issueID != e.issue.ID {
		changes["issue_id"] = e.issue.ID
	}
	return changes
}

// RequiresUpload is false when nothing changed, for drafts that hold no
// hours and for entries created without a known id.
func (e *TimeEntry) RequiresUpload() bool {
	if e.createdWithoutID || (e.id == nil && e.spent <= 0) {
		return false
	}
	return len(e.Changes()) > 0
}

// Action maps the entry onto create, update, delete or nothing from
// whether it has an id and whether it holds hours.
func (e *TimeEntry) Action() Action {
	switch {
	case e.createdWithoutID:
		return ActionNone
	case e.id == nil && e.spent > 0:
		return ActionCreate
	case e.id == nil:
		return ActionNone
	case e.spent > 0:
		return ActionUpdate
	default:
		return ActionDelete
	}
}

// upload sends the entry's pending change. It does not modify the entry;
// the caller applies the outcome.
func (e *TimeEntry) upload(ctx context.Context, m Mutator) (Action, *remote.Result, error) {
	if !e.RequiresUpload() {
		return ActionNone, nil, nil
	}
	action := e.Action()

	var (
		res *remote.Result
		err error
	)
	switch action {
	case ActionCreate:
		res, err = m.Create(ctx, remote.TimeEntries, e.Changes())
	case ActionUpdate:
		res, err = m.Update(ctx, remote.TimeEntries, *e.id, e.Changes())
	case ActionDelete:
		res, err = m.Delete(ctx, remote.TimeEntries, *e.id)
	default:
		return ActionNone, nil, nil
	}
	if err != nil {
		return action, nil, fmt.Errorf("%s time entry %s: %w", action, e, err)
	}
	return action, res, nil
}

// adoptCreated takes the server id from a create response and records the
// current state as the server state. The create already happened, so the
// snapshot is recorded even when the id cannot be read.
func (e *TimeEntry) adoptCreated(record json.RawMessage) error {
	e.original = e.snapshot()

	if len(record) == 0 {
		e.createdWithoutID = true
		return &remote.ParseError{Resource: remote.TimeEntries.Path, Err: fmt.Errorf("empty create response")}
	}
	var rec timeEntryRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		e.createdWithoutID = true
		return &remote.ParseError{Resource: remote.TimeEntries.Path, Err: err}
	}
	if rec.ID == 0 {
		e.createdWithoutID = true
		return &remote.ParseError{Resource: remote.TimeEntries.Path, Err: fmt.Errorf("created record has no id")}
	}
	id := rec.ID
	e.id = &id
	return nil
}

func (e *TimeEntry) markUploaded() {
	e.original = e.snapshot()
}

func (e *TimeEntry) String() string {
	ref := "draft " + e.LocalID.String()[:8]
	if e.id != nil {
		ref = fmt.Sprintf("#%d", *e.id)
	}
	return fmt.Sprintf("%s (issue #%d, %s, %s)", ref, e.issue.ID, e.spentOn.Format(model.DateLayout), FormatHours(e.spent))
}
