package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"github.com/nhle/redtime/internal/remote"
)

// Getter is the part of the transport needed to fetch a single record.
type Getter interface {
	GetOne(ctx context.Context, res remote.Resource, id int, params url.Values) (json.RawMessage, error)
}

// issueSnapshot is the server state an Issue is diffed against.
type issueSnapshot struct {
	estimated   *float64
	realization int
}

// Issue is one remote issue plus unsaved local changes to its estimate
// and realization. Issues are never created locally.
type Issue struct {
	ID          int
	Project     string
	ProjectID   int
	Subject     string
	Description string

	// AssignedTo is the assignee's user id, nil when unassigned.
	AssignedTo *int

	// Journals holds the issue's non-empty notes once DownloadExtra ran.
	Journals []string

	estimated   *float64
	realization int

	remoteSpent *float64
	localSpent  float64

	original *issueSnapshot
}

func issueFromRecord(rec issueRecord) *Issue {
	issue := &Issue{
		ID:          rec.ID,
		Project:     rec.Project.Name,
		ProjectID:   rec.Project.ID,
		Subject:     rec.Subject,
		Description: rec.Description,
		realization: clampInt(rec.DoneRatio, 0, 100),
	}
	if rec.AssignedTo != nil {
		id := rec.AssignedTo.ID
		issue.AssignedTo = &id
	}
	if rec.EstimatedHours != nil {
		est := *rec.EstimatedHours
		issue.estimated = &est
	}
	issue.original = issue.snapshot()
	return issue
}

func (i *Issue) snapshot() *issueSnapshot {
	s := &issueSnapshot{realization: i.realization}
	if i.estimated != nil {
		est := *i.estimated
		s.estimated = &est
	}
	return s
}

// Estimated returns the estimate in hours. ok is false when no estimation
// is tracked, which is distinct from an estimate of zero.
func (i *Issue) Estimated() (hours float64, ok bool) {
	if i.estimated == nil {
		return 0, false
	}
	return *i.estimated, true
}

// Realization returns the done ratio in percent.
func (i *Issue) Realization() int {
	return i.realization
}

// Spent returns remote plus local spent hours. ok is false until the
// remote total has been fetched with DownloadExtra. Entry edits made
// before that are still counted in LocalSpent and show up here once the
// remote total arrives.
func (i *Issue) Spent() (hours float64, ok bool) {
	if i.remoteSpent == nil {
		return 0, false
	}
	return *i.remoteSpent + i.localSpent, true
}

// LocalSpent returns the hours added or removed by unsaved entry edits.
func (i *Issue) LocalSpent() float64 {
	return i.localSpent
}

// SpentRealization is spent/estimated as a rounded percentage. ok is false
// unless spent is known and the estimate is positive.
func (i *Issue) SpentRealization() (percent int, ok bool) {
	spent, known := i.Spent()
	if !known || i.estimated == nil || *i.estimated <= 0 {
		return 0, false
	}
	return int(math.Round(spent / *i.estimated * 100)), true
}

// AddEstimated adjusts the estimate by delta. An untracked estimate only
// starts being tracked on a positive delta, and then starts at exactly 0.
// A tracked estimate is clamped at 0, and reaching 0 through a negative
// delta stops tracking it.
func (i *Issue) AddEstimated(delta float64) {
	if i.estimated == nil {
		if delta > 0 {
			zero := 0.0
			i.estimated = &zero
		}
		return
	}
	next := math.Max(0, *i.estimated+delta)
	if next == 0 && delta < 0 {
		i.estimated = nil
		return
	}
	i.estimated = &next
}

// AddRealization adjusts the done ratio, clamped into [0,100].
func (i *Issue) AddRealization(delta int) {
	i.realization = clampInt(i.realization+delta, 0, 100)
}

// SyncRealization sets the done ratio from spent/estimated. It does nothing
// when that ratio is unknown.
func (i *Issue) SyncRealization() {
	if percent, ok := i.SpentRealization(); ok {
		i.realization = clampInt(percent, 0, 100)
	}
}

// addSpent is only called by TimeEntry.AddSpent with the realized delta.
func (i *Issue) addSpent(delta float64) {
	i.localSpent += delta
}

// HasExtra reports whether the remote spent total and journals are loaded.
func (i *Issue) HasExtra() bool {
	return i.remoteSpent != nil
}

// DownloadExtra fetches the issue detail once to fill the remote spent
// total and journals. It returns false without a request when they are
// already loaded.
func (i *Issue) DownloadExtra(ctx context.Context, t Getter) (bool, error) {
	if i.HasExtra() {
		return false, nil
	}
	rec, err := fetchIssueDetail(ctx, t, i.ID)
	if err != nil {
		return false, err
	}
	i.applyExtra(rec)
	return true, nil
}

func fetchIssueDetail(ctx context.Context, t Getter, id int) (issueRecord, error) {
	raw, err := t.GetOne(ctx, remote.Issues, id, url.Values{"include": {"journals"}})
	if err != nil {
		return issueRecord{}, fmt.Errorf("fetching issue #%d: %w", id, err)
	}
	var rec issueRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return issueRecord{}, &remote.ParseError{Resource: remote.Issues.Path, Err: err}
	}
	return rec, nil
}

func (i *Issue) applyExtra(rec issueRecord) {
	spent := 0.0
	if rec.SpentHours != nil {
		spent = *rec.SpentHours
	}
	i.remoteSpent = &spent

	i.Journals = i.Journals[:0]
	for _, j := range rec.Journals {
		if j.Notes != "" {
			i.Journals = append(i.Journals, j.Notes)
		}
	}
}

// Changes returns the fields to PUT: estimated_hours ("" when the estimate
// is no longer tracked) and done_ratio, each only when it differs from the
// last known server state.
func (i *Issue) Changes() map[string]any {
	changes := map[string]any{}
	if i.original == nil || !sameHours(i.original.estimated, i.estimated) {
		if i.estimated == nil {
			changes["estimated_hours"] = ""
		} else {
			changes["estimated_hours"] = RoundHours(*i.estimated)
		}
	}
	if i.original == nil || i.original.realization != i.realization {
		changes["done_ratio"] = i.realization
	}
	return changes
}

// RequiresUpload reports whether Changes is non-empty.
func (i *Issue) RequiresUpload() bool {
	return len(i.Changes()) > 0
}

// markUploaded records the current state as the server state.
func (i *Issue) markUploaded() {
	i.original = i.snapshot()
}

func (i *Issue) String() string {
	return fmt.Sprintf("#%d %s", i.ID, i.Subject)
}
