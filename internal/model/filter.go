package model

import "time"

// HistoryFilter holds criteria for querying a requirement's history.
// Zero values match everything.
type HistoryFilter struct {
	Actions    []HistoryAction `json:"actions,omitempty"`
	OperatorID string          `json:"operator_id,omitempty"`
	Since      *time.Time      `json:"since,omitempty"` // inclusive
	Until      *time.Time      `json:"until,omitempty"` // exclusive
	Limit      int             `json:"limit,omitempty"`
	Ascending  bool            `json:"ascending,omitempty"` // default is newest first
}

// Matches reports whether e satisfies every criterion except Limit.
func (f HistoryFilter) Matches(e *HistoryEvent) bool {
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.OperatorID != "" && e.OperatorID != f.OperatorID {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !e.CreatedAt.Before(*f.Until) {
		return false
	}
	return true
}
