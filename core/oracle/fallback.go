package oracle

import (
	"context"

	"vigil-triage/core/risk"
)

// Heuristic is the deterministic stand-in used when the remote service is
// down or misbehaving. It weighs the safety signals already extracted from
// the report text; the same request always yields the same result.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Name() string {
	return "heuristic"
}

func (h *Heuristic) Available() bool {
	return true
}

func (h *Heuristic) Classify(_ context.Context, req Request) (Result, error) {
	low, medium, high := 1.0, 1.0, 0.5

	if req.Signals.LifeThreatening {
		high += 6.0
	}
	if req.Signals.ChildSafety {
		high += 4.0
	}
	if req.Signals.Violence {
		high += 1.5
		medium += 1.0
	}
	if req.Signals.Generic {
		low += 2.5
	}
	if req.Signals.WordCount >= 25 {
		medium += 0.5
	}

	dist := risk.Distribution{Low: low, Medium: medium, High: high}.Normalize()
	tier := dist.Top()
	return Result{Tier: tier, Confidence: dist.P(tier), Probabilities: dist}, nil
}
