package generator

import (
	"time"

	"github.com/randgraph/randgraph/graphs"
)

// Outcome describes what happened to one isolated vertex.
type Outcome string

const (
	OutcomeAttached    Outcome = "attached"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeUnlabeled   Outcome = "unlabeled"
)

// Attachment records the repair attempt for one isolated vertex.
type Attachment struct {
	Node    graphs.Node
	Outcome Outcome

	// Relationship is set when Outcome is OutcomeAttached.
	Relationship *graphs.Relationship
}

// Graph is what Generate wrote to the store.
type Graph struct {
	Nodes         []graphs.Node
	Relationships []graphs.Relationship
}

// Report summarises a full run.
type Report struct {
	RunID       string
	Seed        int64 // 0 when the source came from WithRand
	Graph       Graph
	Attachments []Attachment
	StartedAt   time.Time
	Duration    time.Duration
}

// Count returns the number of attachments with the given outcome.
func (r Report) Count(outcome Outcome) int {
	n := 0
	for _, a := range r.Attachments {
		if a.Outcome == outcome {
			n++
		}
	}
	return n
}
