package store

import (
	"time"

	"github.com/roach88/lstar/internal/automaton"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusAborted RunStatus = "aborted"
)

// Run describes one learning run and its outcome.
type Run struct {
	ID          string    `json:"id"`
	Machine     string    `json:"machine"`
	Source      string    `json:"source,omitempty"`
	Kind        string    `json:"kind"`
	Closing     string    `json:"closing"`
	Handler     string    `json:"handler"`
	Equivalence string    `json:"equivalence"`
	Seed        uint64    `json:"seed"`
	MaxRounds   int       `json:"max_rounds,omitempty"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`

	// Set by FinishRun.
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	Rounds      int       `json:"rounds"`
	States      int       `json:"states"`
	Queries     int       `json:"queries"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Round is the hypothesis built in one round.
type Round struct {
	RunID         string             `json:"run_id"`
	Round         int                `json:"round"`
	States        int                `json:"states"`
	Suffixes      int                `json:"suffixes"`
	ShortPrefixes int                `json:"short_prefixes"`
	Rows          int                `json:"rows"`
	Queries       int                `json:"queries"`
	Fingerprint   string             `json:"fingerprint"`
	Hypothesis    automaton.Snapshot `json:"hypothesis"`
}

// Counterexample is one counterexample handled after the hypothesis of
// Round.
type Counterexample struct {
	RunID  string   `json:"run_id"`
	Round  int      `json:"round"`
	Input  []string `json:"input"`
	Output string   `json:"output"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Machine string
	Status  RunStatus
	Limit   int
}
