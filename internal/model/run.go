package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrFatalConfig marks errors that terminate a stage before any unit of work,
// such as a missing input corpus or a checkpoint from a different corpus.
var ErrFatalConfig = eris.New("fatal configuration error")

// Stage names.
const (
	StageCrawl     = "crawl"
	StageEnrich    = "enrich"
	StageNormalize = "normalize"
)

// StageState is the lifecycle of a resumable stage.
type StageState int

const (
	StageNotStarted StageState = iota
	StageInProgress
	StageComplete
)

func (s StageState) String() string {
	switch s {
	case StageNotStarted:
		return "not started"
	case StageInProgress:
		return "in progress"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// RunStatus represents the outcome of one stage invocation.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// StageRun is one recorded stage invocation.
type StageRun struct {
	ID         string     `json:"id"`
	Stage      string     `json:"stage"`
	Status     RunStatus  `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	Records    int        `json:"records"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CachedPage is a successfully fetched page kept for re-runs.
type CachedPage struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	ExpiresAt  time.Time
}
