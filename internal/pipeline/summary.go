package pipeline

import (
	"time"

	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/validate"
)

// Stage is where an item was when it finished
type Stage string

const (
	StagePending        Stage = "pending"
	StageAuthenticating Stage = "authenticating"
	StageNavigating     Stage = "navigating"
	StageExtracting     Stage = "extracting"
	StageValidating     Stage = "validating"
	StagePersisting     Stage = "persisting"
	StageDone           Stage = "done"
	StageErrored        Stage = "errored"
)

// ItemError is one failed item
type ItemError struct {
	URL     string `json:"url"`
	Key     string `json:"key"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Rejection lists the violations that kept a record out of the store
type Rejection struct {
	URL        string          `json:"url"`
	Key        string          `json:"key"`
	Violations validate.Errors `json:"violations"`
}

// Summary is the outcome of one run. Succeeded + Failed always equals
// TotalRequested once the run returns.
type Summary struct {
	RunID          string                   `json:"runId"`
	Site           string                   `json:"site"`
	TotalRequested int                      `json:"totalRequested"`
	Processed      int                      `json:"processed"`
	Succeeded      int                      `json:"succeeded"`
	Failed         int                      `json:"failed"`
	Rejected       int                      `json:"rejected"`
	PersistFailed  int                      `json:"persistFailed"`
	Errors         []ItemError              `json:"errors"`
	Rejections     []Rejection              `json:"rejections"`
	Results        []model.ExtractionResult `json:"results"`
	StartedAt      time.Time                `json:"startedAt"`
	EndedAt        time.Time                `json:"endedAt"`
	Duration       string                   `json:"duration"`
}

// Reconciles reports whether every requested item has exactly one outcome
func (s *Summary) Reconciles() bool {
	return s.Succeeded+s.Failed == s.TotalRequested && len(s.Results) == s.TotalRequested
}

// DerivedURLs collects derived URLs from successful results in result order
func (s *Summary) DerivedURLs() []string {
	var out []string
	for _, r := range s.Results {
		if r.Success {
			out = append(out, r.DerivedURLs...)
		}
	}
	return out
}

// aggregator is the only writer of a Summary during a run
type aggregator struct {
	s *Summary
}

func newAggregator(runID, site string, started time.Time) *aggregator {
	return &aggregator{s: &Summary{
		RunID:      runID,
		Site:       site,
		Errors:     []ItemError{},
		Rejections: []Rejection{},
		Results:    []model.ExtractionResult{},
		StartedAt:  started,
	}}
}

func (a *aggregator) request(n int) {
	a.s.TotalRequested += n
}

func (a *aggregator) succeed(r model.ExtractionResult) {
	a.s.Succeeded++
	a.s.Results = append(a.s.Results, r)
}

func (a *aggregator) fail(r model.ExtractionResult, stage Stage, msg string) {
	r.Success = false
	if r.Error == "" {
		r.Error = msg
	}
	a.s.Failed++
	a.s.Results = append(a.s.Results, r)
	a.s.Errors = append(a.s.Errors, ItemError{
		URL:     r.Item.URL,
		Key:     r.Item.Key(),
		Stage:   stage,
		Message: msg,
	})
}

func (a *aggregator) reject(r model.ExtractionResult, key string, verrs validate.Errors) {
	a.s.Rejected++
	a.s.Rejections = append(a.s.Rejections, Rejection{URL: r.Item.URL, Key: key, Violations: verrs})
	r.Error = verrs.Error()
	a.fail(r, StageValidating, verrs.Error())
}

func (a *aggregator) persistFailed(r model.ExtractionResult, msg string) {
	a.s.PersistFailed++
	a.fail(r, StagePersisting, msg)
}

func (a *aggregator) finish(ended time.Time) *Summary {
	a.s.EndedAt = ended
	a.s.Duration = ended.Sub(a.s.StartedAt).Round(time.Millisecond).String()
	return a.s
}
