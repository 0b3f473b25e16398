package redmine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nhle/redtime/internal/remote"
)

func ptr[T any](v T) *T { return &v }

func parseIssue(t *testing.T, raw string) *Issue {
	t.Helper()
	var rec issueRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decoding issue: %v", err)
	}
	return issueFromRecord(rec)
}

func TestIssue_AddEstimated(t *testing.T) {
	tests := []struct {
		name    string
		start   *float64
		delta   float64
		want    float64
		wantSet bool
	}{
		{name: "unset, positive delta starts at zero", start: nil, delta: 2, want: 0, wantSet: true},
		{name: "unset, negative delta is a no-op", start: nil, delta: -1, wantSet: false},
		{name: "unset, zero delta is a no-op", start: nil, delta: 0, wantSet: false},
		{name: "set, positive delta adds", start: ptr(3.0), delta: 2, want: 5, wantSet: true},
		{name: "set, partial subtraction", start: ptr(3.0), delta: -1, want: 2, wantSet: true},
		{name: "set, exact subtraction unsets", start: ptr(3.0), delta: -3, wantSet: false},
		{name: "set, oversubtraction clamps then unsets", start: ptr(3.0), delta: -10, wantSet: false},
		{name: "zero, zero delta stays tracked", start: ptr(0.0), delta: 0, want: 0, wantSet: true},
		{name: "zero, positive delta adds", start: ptr(0.0), delta: 1.5, want: 1.5, wantSet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := &Issue{ID: 1, estimated: tt.start}
			issue.AddEstimated(tt.delta)

			got, ok := issue.Estimated()
			if ok != tt.wantSet {
				t.Fatalf("Estimated() set = %v, want %v", ok, tt.wantSet)
			}
			if ok && got != tt.want {
				t.Errorf("Estimated() = %v, want %v", got, tt.want)
			}
			if ok && got < 0 {
				t.Errorf("Estimated() went negative: %v", got)
			}
		})
	}
}

func TestIssue_AddRealization(t *testing.T) {
	tests := []struct {
		start, delta, want int
	}{
		{start: 50, delta: 10, want: 60},
		{start: 50, delta: 80, want: 100},
		{start: 50, delta: -80, want: 0},
		{start: 0, delta: -1, want: 0},
		{start: 100, delta: 1, want: 100},
	}

	for _, tt := range tests {
		issue := &Issue{realization: tt.start}
		issue.AddRealization(tt.delta)
		if got := issue.Realization(); got != tt.want {
			t.Errorf("AddRealization(%d) from %d = %d, want %d", tt.delta, tt.start, got, tt.want)
		}
	}
}

func TestIssue_SpentUnknownUntilRemoteLoaded(t *testing.T) {
	issue := &Issue{ID: 1, estimated: ptr(10.0)}
	issue.addSpent(2)

	if _, ok := issue.Spent(); ok {
		t.Fatal("Spent() should be unknown before the remote total is loaded")
	}
	if _, ok := issue.SpentRealization(); ok {
		t.Fatal("SpentRealization() should be unknown before the remote total is loaded")
	}

	issue.SyncRealization()
	if issue.Realization() != 0 {
		t.Errorf("SyncRealization() changed realization without a known ratio: %d", issue.Realization())
	}

	issue.remoteSpent = ptr(3.0)
	spent, ok := issue.Spent()
	if !ok || spent != 5 {
		t.Errorf("Spent() = %v, %v; want 5, true", spent, ok)
	}
	percent, ok := issue.SpentRealization()
	if !ok || percent != 50 {
		t.Errorf("SpentRealization() = %d, %v; want 50, true", percent, ok)
	}

	issue.SyncRealization()
	if issue.Realization() != 50 {
		t.Errorf("Realization() = %d after sync, want 50", issue.Realization())
	}
}

func TestIssue_SyncRealizationClamps(t *testing.T) {
	issue := &Issue{ID: 1, estimated: ptr(2.0), remoteSpent: ptr(5.0)}
	issue.SyncRealization()
	if issue.Realization() != 100 {
		t.Errorf("Realization() = %d, want 100", issue.Realization())
	}

	issue.estimated = ptr(0.0)
	if _, ok := issue.SpentRealization(); ok {
		t.Error("SpentRealization() should be unknown with a zero estimate")
	}
}

func TestIssue_ChangesRoundTrip(t *testing.T) {
	issue := parseIssue(t, `{"id": 12, "subject": "Report", "project": {"id": 3, "name": "Ops"},
		"estimated_hours": 10, "done_ratio": 50, "assigned_to": {"id": 4, "name": "Ana"}}`)

	if changes := issue.Changes(); len(changes) != 0 {
		t.Errorf("Changes() right after parsing = %v, want empty", changes)
	}
	if issue.RequiresUpload() {
		t.Error("RequiresUpload() right after parsing")
	}
	if issue.Project != "Ops" || issue.ProjectID != 3 || *issue.AssignedTo != 4 {
		t.Errorf("parsed issue = %+v", issue)
	}
}

func TestIssue_Changes(t *testing.T) {
	t.Run("estimate and realization edited", func(t *testing.T) {
		issue := parseIssue(t, `{"id": 1, "estimated_hours": 10, "done_ratio": 50}`)
		issue.AddEstimated(2)
		issue.AddRealization(10)

		changes := issue.Changes()
		if changes["estimated_hours"] != 12.0 || changes["done_ratio"] != 60 || len(changes) != 2 {
			t.Errorf("Changes() = %v", changes)
		}
	})

	t.Run("estimate removed sends empty string", func(t *testing.T) {
		issue := parseIssue(t, `{"id": 1, "estimated_hours": 1, "done_ratio": 0}`)
		issue.AddEstimated(-1)

		changes := issue.Changes()
		if v, ok := changes["estimated_hours"]; !ok || v != "" {
			t.Errorf("Changes() = %v, want estimated_hours \"\"", changes)
		}
	})

	t.Run("edit reverted is no change", func(t *testing.T) {
		issue := parseIssue(t, `{"id": 1, "estimated_hours": 4, "done_ratio": 20}`)
		issue.AddEstimated(1)
		issue.AddEstimated(-1)
		issue.AddRealization(5)
		issue.AddRealization(-5)
		if issue.RequiresUpload() {
			t.Errorf("Changes() = %v, want empty", issue.Changes())
		}
	})

	t.Run("missing snapshot always differs", func(t *testing.T) {
		issue := &Issue{ID: 1}
		changes := issue.Changes()
		if v, ok := changes["estimated_hours"]; !ok || v != "" {
			t.Errorf("Changes() = %v, want estimated_hours", changes)
		}
	})
}

func TestIssue_DownloadExtra(t *testing.T) {
	mock := remote.NewMockServer()
	defer mock.Close()
	mock.AddRecord(remote.Issues, map[string]any{
		"id":          9,
		"subject":     "Migrate",
		"spent_hours": 6.5,
		"journals": []map[string]any{
			{"notes": "started"},
			{"notes": ""},
			{"notes": "blocked on review"},
		},
	})
	client := remote.NewClient(remote.Config{BaseURL: mock.URL, APIKey: "k"})

	issue := parseIssue(t, `{"id": 9, "estimated_hours": 13, "done_ratio": 0}`)
	issue.addSpent(0.5)

	loaded, err := issue.DownloadExtra(context.Background(), client)
	if err != nil || !loaded {
		t.Fatalf("DownloadExtra() = %v, %v; want true, nil", loaded, err)
	}
	spent, ok := issue.Spent()
	if !ok || spent != 7 {
		t.Errorf("Spent() = %v, %v; want 7, true", spent, ok)
	}
	if len(issue.Journals) != 2 || issue.Journals[1] != "blocked on review" {
		t.Errorf("Journals = %q", issue.Journals)
	}
	if got := mock.Requests()[0].Query.Get("include"); got != "journals" {
		t.Errorf("include = %q, want journals", got)
	}

	loaded, err = issue.DownloadExtra(context.Background(), client)
	if err != nil || loaded {
		t.Errorf("second DownloadExtra() = %v, %v; want false, nil", loaded, err)
	}
	if n := len(mock.Requests()); n != 1 {
		t.Errorf("made %d requests, want 1", n)
	}
}

func TestIssue_DownloadExtraFailureLeavesUnknown(t *testing.T) {
	mock := remote.NewMockServer()
	defer mock.Close()
	client := remote.NewClient(remote.Config{BaseURL: mock.URL, APIKey: "k"})

	issue := &Issue{ID: 404}
	if _, err := issue.DownloadExtra(context.Background(), client); !remote.IsNetworkError(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if issue.HasExtra() {
		t.Error("HasExtra() after a failed download")
	}
}
