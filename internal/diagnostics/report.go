package diagnostics

import "time"

// Status is the outcome of one environment check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Item is one check result. Hint suggests a fix when Status is fail.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Report aggregates the checks shown before a run. ModelInfo describes the
// loaded model when it resolved to a file.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	HasFailures bool      `json:"hasFailures"`
	Items       []Item    `json:"items"`
	ModelInfo   string    `json:"modelInfo,omitempty"`
}

// Item returns the check with id.
func (r Report) Item(id string) (Item, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}
