// Package redmine keeps a partial in-memory mirror of a Redmine server's
// issues and time entries, tracks local edits against it and uploads them
// back as per-field diffs.
//
// Loading is explicit: read methods answer only from what was already
// downloaded and report whether the requested range is loaded at all.
package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/nhle/redtime/internal/logger"
	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/remote"
)

var log = logger.For("redmine")

// Transport is everything the orchestrator needs from the HTTP layer.
// *remote.Client implements it.
type Transport interface {
	Getter
	Mutator
	PaginatedGet(ctx context.Context, q *remote.Query) ([]json.RawMessage, error)
}

// ExpectedHours is the schedule collaborator: hours expected on a day.
type ExpectedHours func(day time.Time) float64

// LoadResult tells the caller what a download added to the caches.
type LoadResult struct {
	NewEntries bool
	NewIssues  bool
}

// issueChunk bounds the number of ids sent in one issue_id filter.
const issueChunk = remote.PageSize

// Redmine owns the issue and time entry caches. Cache state is guarded by
// a mutex that is never held across a network call; read methods return
// fresh slices. Entity edits are expected to come from a single writer.
type Redmine struct {
	transport Transport
	lookback  int

	mu             gosync.Mutex
	issues         map[int]*Issue
	entries        []*TimeEntry
	months         map[model.Month]bool
	assignedLoaded bool
	userID         *int
}

// New creates an orchestrator. cfg supplies the look-back window; the
// transport carries base URL, key and read-only mode.
func New(t Transport, cfg model.RedmineConfig) *Redmine {
	r := &Redmine{
		transport: t,
		lookback:  model.ClampPreviousDays(cfg.PreviousDays),
	}
	r.reset()
	return r
}

func (r *Redmine) reset() {
	r.issues = make(map[int]*Issue)
	r.entries = nil
	r.months = make(map[model.Month]bool)
	r.assignedLoaded = false
	r.userID = nil
}

// Reload drops every cache and flag. Unsaved edits are lost.
func (r *Redmine) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	log.Info("caches cleared")
}

// UserID returns the authenticated user's id once a response revealed it.
func (r *Redmine) UserID() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userID == nil {
		return 0, false
	}
	return *r.userID, true
}

func (r *Redmine) captureUserID(id int) {
	if r.userID == nil && id != 0 {
		r.userID = &id
		log.Debug("current user is %d", id)
	}
}

// Issue returns a cached issue.
func (r *Redmine) Issue(id int) (*Issue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	return issue, ok
}

// Issues returns every cached issue ordered by id.
func (r *Redmine) Issues() []*Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedIssuesLocked(func(*Issue) bool { return true })
}

func (r *Redmine) sortedIssuesLocked(keep func(*Issue) bool) []*Issue {
	out := make([]*Issue, 0, len(r.issues))
	for _, issue := range r.issues {
		if keep(issue) {
			out = append(out, issue)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Entries returns every cached entry, drafts included.
func (r *Redmine) Entries() []*TimeEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*TimeEntry(nil), r.entries...)
}

// IsMonthLoaded reports whether m was downloaded.
func (r *Redmine) IsMonthLoaded(m model.Month) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.months[m]
}

// EntriesForDate returns the entries of one day. ok is false when neither
// the day's month nor an adjacent month whose window covers it is loaded.
func (r *Redmine) EntriesForDate(date time.Time) (entries []*TimeEntry, ok bool) {
	day := model.Day(date)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dayLoadedLocked(day) {
		return nil, false
	}
	entries = []*TimeEntry{}
	for _, e := range r.entries {
		if e.spentOn.Equal(day) {
			entries = append(entries, e)
		}
	}
	return entries, true
}

// EntriesForMonth returns the entries of month m, or ok=false when m has
// not been downloaded.
func (r *Redmine) EntriesForMonth(m model.Month) (entries []*TimeEntry, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.months[m] {
		return nil, false
	}
	entries = []*TimeEntry{}
	for _, e := range r.entries {
		if m.Contains(e.spentOn) {
			entries = append(entries, e)
		}
	}
	return entries, true
}

// SpentOn sums the hours of a day's entries.
func (r *Redmine) SpentOn(date time.Time) (float64, bool) {
	entries, ok := r.EntriesForDate(date)
	if !ok {
		return 0, false
	}
	total := 0.0
	for _, e := range entries {
		total += e.spent
	}
	return RoundHours(total), true
}

// PendingHours is what remains to log on a day according to expected,
// never negative.
func (r *Redmine) PendingHours(date time.Time, expected ExpectedHours) (float64, bool) {
	spent, ok := r.SpentOn(date)
	if !ok {
		return 0, false
	}
	pending := expected(model.Day(date)) - spent
	if pending < 0 {
		pending = 0
	}
	return RoundHours(pending), true
}

func (r *Redmine) dayLoadedLocked(day time.Time) bool {
	m := model.MonthOf(day)
	if r.months[m] {
		return true
	}
	next, prev := m.Next(), m.Prev()
	if r.months[next] && !day.Before(next.Start().AddDate(0, 0, -r.lookback)) {
		return true
	}
	return r.months[prev] && !day.After(prev.End().AddDate(0, 0, r.lookback))
}

// windowLocked is the fetch range for m: the month plus lookback days on
// each side, except next to a month that is already loaded.
func (r *Redmine) windowLocked(m model.Month) (from, to time.Time) {
	from, to = m.Start(), m.End()
	if !r.months[m.Prev()] {
		from = from.AddDate(0, 0, -r.lookback)
	}
	if !r.months[m.Next()] {
		to = to.AddDate(0, 0, r.lookback)
	}
	return from, to
}

// DownloadEntriesFromMonth fetches the current user's entries for m and
// its window, plus every issue they reference that is not cached yet. It
// does nothing when m is already loaded. On failure m stays unloaded.
func (r *Redmine) DownloadEntriesFromMonth(ctx context.Context, m model.Month) (LoadResult, error) {
	r.mu.Lock()
	if r.months[m] {
		r.mu.Unlock()
		return LoadResult{}, nil
	}
	from, to := r.windowLocked(m)
	r.mu.Unlock()

	log.Debug("loading %s, window %s..%s", m,
		from.Format(model.DateLayout), to.Format(model.DateLayout))

	q := remote.NewQuery(remote.TimeEntries).
		Where("spent_on", remote.OpBetween, from.Format(model.DateLayout), to.Format(model.DateLayout)).
		Where("user_id", remote.OpEqual, remote.CurrentUser)
	raws, err := r.transport.PaginatedGet(ctx, q)
	if err != nil {
		return LoadResult{}, fmt.Errorf("loading time entries for %s: %w", m, err)
	}
	records, err := decodeRecords[timeEntryRecord](remote.TimeEntries, raws)
	if err != nil {
		return LoadResult{}, err
	}

	r.mu.Lock()
	var missing []int
	seen := make(map[int]bool)
	for _, rec := range records {
		if rec.Issue == nil || seen[rec.Issue.ID] {
			continue
		}
		seen[rec.Issue.ID] = true
		if _, ok := r.issues[rec.Issue.ID]; !ok {
			missing = append(missing, rec.Issue.ID)
		}
	}
	r.mu.Unlock()

	fetched, err := r.fetchIssues(ctx, missing)
	if err != nil {
		return LoadResult{}, fmt.Errorf("loading issues for %s: %w", m, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result LoadResult
	result.NewIssues = r.mergeIssuesLocked(fetched) > 0

	known := make(map[int]bool, len(r.entries))
	for _, e := range r.entries {
		if e.id != nil {
			known[*e.id] = true
		}
	}
	var fresh []*TimeEntry
	for _, rec := range records {
		r.captureUserID(rec.User.ID)
		if known[rec.ID] {
			continue
		}
		if rec.Issue == nil {
			log.Debug("skipping time entry #%d without issue", rec.ID)
			continue
		}
		issue, ok := r.issues[rec.Issue.ID]
		if !ok {
			log.Warn("time entry #%d references issue #%d which could not be loaded", rec.ID, rec.Issue.ID)
			continue
		}
		entry, err := entryFromRecord(rec, issue)
		if err != nil {
			return LoadResult{}, err
		}
		fresh = append(fresh, entry)
		known[rec.ID] = true
	}
	r.entries = append(r.entries, fresh...)
	result.NewEntries = len(fresh) > 0
	r.months[m] = true

	log.Info("loaded %s: %d new entries, %d new issues", m, len(fresh), len(fetched))
	return result, nil
}

// fetchIssues downloads the given issues, any status, in chunks.
func (r *Redmine) fetchIssues(ctx context.Context, ids []int) ([]issueRecord, error) {
	var all []issueRecord
	for start := 0; start < len(ids); start += issueChunk {
		end := min(start+issueChunk, len(ids))
		q := remote.NewQuery(remote.Issues).
			WhereIDs("issue_id", ids[start:end]).
			Where("status_id", remote.OpAny)
		raws, err := r.transport.PaginatedGet(ctx, q)
		if err != nil {
			return nil, err
		}
		records, err := decodeRecords[issueRecord](remote.Issues, raws)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// mergeIssuesLocked adds issues not cached yet and keeps existing ones
// (and their local edits) untouched. It returns how many were added.
func (r *Redmine) mergeIssuesLocked(records []issueRecord) int {
	added := 0
	for _, rec := range records {
		if _, ok := r.issues[rec.ID]; ok {
			continue
		}
		r.issues[rec.ID] = issueFromRecord(rec)
		added++
	}
	return added
}

// DownloadIssues makes sure the given issues are cached and returns those
// the server knows. Only uncached ids are requested.
func (r *Redmine) DownloadIssues(ctx context.Context, ids []int) ([]*Issue, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var unique []int
	seen := make(map[int]bool)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	r.mu.Lock()
	var missing []int
	for _, id := range unique {
		if _, ok := r.issues[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.mu.Unlock()

	if len(missing) > 0 {
		records, err := r.fetchIssues(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("loading issues: %w", err)
		}
		r.mu.Lock()
		r.mergeIssuesLocked(records)
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Issue, 0, len(unique))
	for _, id := range unique {
		if issue, ok := r.issues[id]; ok {
			out = append(out, issue)
		}
	}
	return out, nil
}

// AssignedIssues returns the open issues assigned to the current user.
// They are downloaded on the first call only.
func (r *Redmine) AssignedIssues(ctx context.Context) ([]*Issue, error) {
	r.mu.Lock()
	loaded := r.assignedLoaded
	r.mu.Unlock()

	if !loaded {
		q := remote.NewQuery(remote.Issues).
			Where("assigned_to_id", remote.OpEqual, remote.CurrentUser).
			Where("status_id", remote.OpOpen)
		raws, err := r.transport.PaginatedGet(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("loading assigned issues: %w", err)
		}
		records, err := decodeRecords[issueRecord](remote.Issues, raws)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		for _, rec := range records {
			if rec.AssignedTo != nil {
				r.captureUserID(rec.AssignedTo.ID)
				break
			}
		}
		added := r.mergeIssuesLocked(records)
		r.assignedLoaded = true
		r.mu.Unlock()
		log.Info("loaded %d assigned issues (%d new)", len(records), added)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userID == nil {
		return []*Issue{}, nil
	}
	uid := *r.userID
	return r.sortedIssuesLocked(func(i *Issue) bool {
		return i.AssignedTo != nil && *i.AssignedTo == uid
	}), nil
}

// DownloadExtra loads an issue's remote spent total and journals once.
// The cache is only updated for an issue it already holds.
func (r *Redmine) DownloadExtra(ctx context.Context, issue *Issue) (bool, error) {
	r.mu.Lock()
	done := issue.HasExtra()
	r.mu.Unlock()
	if done {
		return false, nil
	}

	rec, err := fetchIssueDetail(ctx, r.transport, issue.ID)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if issue.HasExtra() {
		return false, nil
	}
	issue.applyExtra(rec)
	if cached, ok := r.issues[issue.ID]; ok && cached != issue && !cached.HasExtra() {
		cached.applyExtra(rec)
	}
	return true, nil
}

// CreateTimeEntry adds a draft entry for issue on date. An existing empty
// draft for the same issue and day, with a blank or identical comment, is
// reused instead of adding a second one.
//
// When an issue with the same id is cached, the entry is attached to the
// cached one. An uncached issue is never added to the cache: it has no
// server state to diff against, so uploading it would overwrite the remote
// estimate and done ratio.
func (r *Redmine) CreateTimeEntry(issue *Issue, date time.Time, spent float64, comment string) *TimeEntry {
	day := model.Day(date)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.issues[issue.ID]; ok {
		issue = cached
	}

	for _, e := range r.entries {
		if e.id != nil || e.issue.ID != issue.ID || !e.spentOn.Equal(day) || e.spent != 0 {
			continue
		}
		if e.comment != "" && e.comment != comment {
			continue
		}
		e.ChangeSpent(spent)
		if comment != "" {
			e.comment = comment
		}
		log.Debug("reusing draft %s", e)
		return e
	}

	e := newDraftEntry(issue, day, spent, comment)
	r.entries = append(r.entries, e)
	log.Debug("new draft %s", e)
	return e
}

// PendingUploads counts entries and issues with changes to upload.
func (r *Redmine) PendingUploads() (entries, issues int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.RequiresUpload() {
			entries++
		}
	}
	for _, issue := range r.issues {
		if issue.RequiresUpload() {
			issues++
		}
	}
	return entries, issues
}

// UploadAll uploads every changed entry, then every changed issue. Each is
// attempted independently; the failures are returned and nothing that
// succeeded is rolled back. In read-only mode nothing is sent and local
// state is left as is.
func (r *Redmine) UploadAll(ctx context.Context) []error {
	r.mu.Lock()
	var entries []*TimeEntry
	for _, e := range r.entries {
		if e.RequiresUpload() {
			entries = append(entries, e)
		}
	}
	issues := r.sortedIssuesLocked(func(i *Issue) bool { return i.RequiresUpload() })
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		action, res, err := e.upload(ctx, r.transport)
		if err != nil {
			log.Error("%v", err)
			errs = append(errs, err)
			continue
		}
		if res == nil || res.DryRun {
			continue
		}
		if err := r.applyEntryUpload(e, action, res); err != nil {
			log.Error("%v", err)
			errs = append(errs, err)
		}
	}

	for _, issue := range issues {
		res, err := r.transport.Update(ctx, remote.Issues, issue.ID, issue.Changes())
		if err != nil {
			err = fmt.Errorf("update issue #%d: %w", issue.ID, err)
			log.Error("%v", err)
			errs = append(errs, err)
			continue
		}
		if !res.DryRun {
			r.mu.Lock()
			issue.markUploaded()
			r.mu.Unlock()
		}
	}

	log.Info("upload finished, %d entries and %d issues attempted, %d failed",
		len(entries), len(issues), len(errs))
	return errs
}

func (r *Redmine) applyEntryUpload(e *TimeEntry, action Action, res *remote.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch action {
	case ActionCreate:
		if err := e.adoptCreated(res.Record); err != nil {
			return fmt.Errorf("created time entry %s but could not read its id, it will not be sent again: %w", e, err)
		}
	case ActionUpdate:
		e.markUploaded()
	case ActionDelete:
		for i, cached := range r.entries {
			if cached == e {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				break
			}
		}
	}
	return nil
}
