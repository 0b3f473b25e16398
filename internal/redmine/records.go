package redmine

import (
	"encoding/json"

	"github.com/nhle/redtime/internal/remote"
)

// namedRef is Redmine's {"id": .., "name": ..} reference object.
type namedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type journalRecord struct {
	Notes string `json:"notes"`
}

type issueRecord struct {
	ID             int             `json:"id"`
	Project        namedRef        `json:"project"`
	Subject        string          `json:"subject"`
	Description    string          `json:"description"`
	AssignedTo     *namedRef       `json:"assigned_to"`
	EstimatedHours *float64        `json:"estimated_hours"`
	DoneRatio      int             `json:"done_ratio"`
	SpentHours     *float64        `json:"spent_hours"`
	Journals       []journalRecord `json:"journals"`
}

type timeEntryRecord struct {
	ID       int       `json:"id"`
	Project  namedRef  `json:"project"`
	Issue    *namedRef `json:"issue"`
	User     namedRef  `json:"user"`
	Hours    float64   `json:"hours"`
	Comments string    `json:"comments"`
	SpentOn  string    `json:"spent_on"`
}

func decodeRecords[T any](res remote.Resource, raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &remote.ParseError{Resource: res.Path, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}
