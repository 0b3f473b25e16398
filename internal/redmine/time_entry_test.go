package redmine

import (
	"math"
	"testing"
	"time"
)

var march2 = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func loadedEntry(id int, issue *Issue, hours float64, comment string) *TimeEntry {
	e, err := entryFromRecord(timeEntryRecord{
		ID:       id,
		Issue:    &namedRef{ID: issue.ID},
		Hours:    hours,
		Comments: comment,
		SpentOn:  "2026-03-02",
	}, issue)
	if err != nil {
		panic(err)
	}
	return e
}

func TestTimeEntry_AddSpentKeepsIssueInStep(t *testing.T) {
	issue := &Issue{ID: 1}
	a := newDraftEntry(issue, march2, 0, "")
	b := newDraftEntry(issue, march2, 2, "")

	realizedSum := 2.0
	for _, step := range []struct {
		entry *TimeEntry
		delta float64
	}{
		{a, 1.5}, {a, -4}, {b, 0.25}, {b, -1}, {a, 3}, {b, -10}, {a, -0.5},
	} {
		realizedSum += step.entry.AddSpent(step.delta)

		if step.entry.Spent() < 0 {
			t.Fatalf("entry spent went negative: %v", step.entry.Spent())
		}
		if math.Abs(issue.LocalSpent()-realizedSum) > 1e-9 {
			t.Fatalf("issue local spent = %v, want %v", issue.LocalSpent(), realizedSum)
		}
		if math.Abs(issue.LocalSpent()-(a.Spent()+b.Spent())) > 1e-9 {
			t.Fatalf("issue local spent %v differs from entry sum %v", issue.LocalSpent(), a.Spent()+b.Spent())
		}
	}
}

func TestTimeEntry_AddSpentAppliesOnlyRealizedDelta(t *testing.T) {
	issue := &Issue{ID: 1}
	e := newDraftEntry(issue, march2, 1, "")

	if realized := e.AddSpent(-3); realized != -1 {
		t.Errorf("AddSpent(-3) realized %v, want -1", realized)
	}
	if e.Spent() != 0 || issue.LocalSpent() != 0 {
		t.Errorf("spent = %v, issue local = %v; want 0, 0", e.Spent(), issue.LocalSpent())
	}

	e.ChangeSpent(4)
	if e.Spent() != 4 || issue.LocalSpent() != 4 {
		t.Errorf("after ChangeSpent(4): spent = %v, issue local = %v", e.Spent(), issue.LocalSpent())
	}
}

func TestTimeEntry_SetIssueMovesHours(t *testing.T) {
	from, to := &Issue{ID: 1}, &Issue{ID: 2}
	e := loadedEntry(7, from, 3, "work")

	e.SetIssue(to)

	if from.LocalSpent() != -3 || to.LocalSpent() != 3 {
		t.Errorf("local spent from=%v to=%v, want -3 and 3", from.LocalSpent(), to.LocalSpent())
	}
	if e.Spent() != 3 || e.Issue() != to {
		t.Errorf("entry = %s", e)
	}
	changes := e.Changes()
	if changes["issue_id"] != 2 || len(changes) != 1 {
		t.Errorf("Changes() = %v, want only issue_id", changes)
	}
}

func TestTimeEntry_Changes(t *testing.T) {
	t.Run("loaded entry unchanged", func(t *testing.T) {
		e := loadedEntry(7, &Issue{ID: 1}, 2, "review")
		if changes := e.Changes(); len(changes) != 0 {
			t.Errorf("Changes() = %v, want empty", changes)
		}
		if e.RequiresUpload() {
			t.Error("RequiresUpload() on an unchanged entry")
		}
	})

	t.Run("comment only", func(t *testing.T) {
		e := loadedEntry(7, &Issue{ID: 1}, 2, "review")
		e.SetComment("code review")
		changes := e.Changes()
		if changes["comments"] != "code review" || len(changes) != 1 {
			t.Errorf("Changes() = %v, want only comments", changes)
		}
	})

	t.Run("date moved", func(t *testing.T) {
		e := loadedEntry(7, &Issue{ID: 1}, 2, "review")
		e.SetSpentOn(march2.AddDate(0, 0, 1).Add(15 * time.Hour))
		changes := e.Changes()
		if changes["spent_on"] != "2026-03-03" || len(changes) != 1 {
			t.Errorf("Changes() = %v, want only spent_on", changes)
		}
	})

	t.Run("draft carries date and issue", func(t *testing.T) {
		e := newDraftEntry(&Issue{ID: 5}, march2, 1.25, "")
		changes := e.Changes()
		if changes["spent_on"] != "2026-03-02" || changes["issue_id"] != 5 || changes["hours"] != 1.25 {
			t.Errorf("Changes() = %v", changes)
		}
	})
}

func TestTimeEntry_RequiresUploadAndAction(t *testing.T) {
	tests := []struct {
		name       string
		entry      func() *TimeEntry
		wantUpload bool
		wantAction Action
	}{
		{
			name:       "empty draft",
			entry:      func() *TimeEntry { return newDraftEntry(&Issue{ID: 1}, march2, 0, "note") },
			wantUpload: false,
			wantAction: ActionNone,
		},
		{
			name:       "draft with hours",
			entry:      func() *TimeEntry { return newDraftEntry(&Issue{ID: 1}, march2, 5, "") },
			wantUpload: true,
			wantAction: ActionCreate,
		},
		{
			name: "existing with new hours",
			entry: func() *TimeEntry {
				e := loadedEntry(7, &Issue{ID: 1}, 2, "")
				e.AddSpent(1)
				return e
			},
			wantUpload: true,
			wantAction: ActionUpdate,
		},
		{
			name: "existing emptied",
			entry: func() *TimeEntry {
				e := loadedEntry(7, &Issue{ID: 1}, 2, "")
				e.ChangeSpent(0)
				return e
			},
			wantUpload: true,
			wantAction: ActionDelete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry()
			if got := e.RequiresUpload(); got != tt.wantUpload {
				t.Errorf("RequiresUpload() = %v, want %v", got, tt.wantUpload)
			}
			if got := e.Action(); got != tt.wantAction {
				t.Errorf("Action() = %s, want %s", got, tt.wantAction)
			}
		})
	}
}
