// Package oracle talks to the remote classification service and carries a
// deterministic heuristic stand-in for when the service is unreachable.
package oracle

import (
	"context"
	"errors"

	"vigil-triage/core/risk"
)

// ErrTransient marks failures the caller should absorb by falling back,
// not by surfacing an error to the reporter.
var ErrTransient = errors.New("oracle transient failure")

// Signals are the text-derived safety markers the heuristic scorer weighs.
// They ride along with every request so the fallback never re-parses text.
type Signals struct {
	LifeThreatening bool
	ChildSafety     bool
	Violence        bool
	Generic         bool
	WordCount       int
}

type Request struct {
	Text    string
	Fields  map[string]int
	Signals Signals
}

type Result struct {
	Tier          risk.Tier
	Confidence    float64
	Probabilities risk.Distribution
}

type Client interface {
	Classify(ctx context.Context, req Request) (Result, error)
	Available() bool
	Name() string
}
