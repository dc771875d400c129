package classify

import (
	"vigil-triage/core/risk"
)

// OverrideInput is everything the rule table needs to decide whether the
// oracle's judgment stands.
type OverrideInput struct {
	Tier          risk.Tier
	Confidence    float64
	Probabilities risk.Distribution
	Flags         Flags
	Generic       bool
	UnknownRatio  float64
	ShortText     bool
	UnknownLimit  float64
}

// Outcome is the post-override judgment. Immune outcomes may never be
// lowered by a later write for the same generation.
type Outcome struct {
	Tier          risk.Tier
	Confidence    float64
	Probabilities risk.Distribution
	Overridden    bool
	Immune        bool
	Rule          string
}

type overrideRule struct {
	name  string
	match func(OverrideInput) bool
	apply func(OverrideInput) Outcome
}

// Rules run in rank order and the first match wins. Life-threatening
// outranks child safety: a report tripping both gets the stronger forced
// judgment.
var overrideRules = []overrideRule{
	{
		name:  "life-threatening",
		match: func(in OverrideInput) bool { return in.Flags.LifeThreatening },
		apply: func(in OverrideInput) Outcome {
			return Outcome{
				Tier:          risk.TierHigh,
				Confidence:    0.95,
				Probabilities: risk.Distribution{Low: 0.02, Medium: 0.03, High: 0.95},
				Overridden:    in.Tier != risk.TierHigh,
				Immune:        true,
				Rule:          "life-threatening",
			}
		},
	},
	{
		name:  "child-safety",
		match: func(in OverrideInput) bool { return in.Flags.ChildSafety },
		apply: func(in OverrideInput) Outcome {
			return Outcome{
				Tier:          risk.TierHigh,
				Confidence:    0.85,
				Probabilities: risk.Distribution{Low: 0.05, Medium: 0.10, High: 0.85},
				Overridden:    in.Tier != risk.TierHigh,
				Immune:        true,
				Rule:          "child-safety",
			}
		},
	},
	{
		name: "violence-confirmed",
		match: func(in OverrideInput) bool {
			return in.Flags.Violence && in.Tier == risk.TierHigh
		},
		apply: func(in OverrideInput) Outcome {
			// The oracle already landed on High; pin it so noise in a
			// retried classification cannot soften a violent report.
			return Outcome{
				Tier:          in.Tier,
				Confidence:    in.Confidence,
				Probabilities: in.Probabilities,
				Immune:        true,
				Rule:          "violence-confirmed",
			}
		},
	},
	{
		name: "generic-noise",
		match: func(in OverrideInput) bool {
			return (in.Generic || in.Flags.Generic) && !in.Flags.Violence &&
				(in.UnknownRatio > in.UnknownLimit || in.ShortText)
		},
		apply: func(in OverrideInput) Outcome {
			return Outcome{
				Tier:          risk.TierLow,
				Confidence:    0.60,
				Probabilities: risk.Distribution{Low: 0.60, Medium: 0.35, High: 0.05},
				Overridden:    in.Tier != risk.TierLow,
				Rule:          "generic-noise",
			}
		},
	},
}

// ApplyOverrides walks the ranked rule table. When nothing matches the
// calibrated judgment passes through untouched.
func ApplyOverrides(in OverrideInput) Outcome {
	for _, rule := range overrideRules {
		if rule.match(in) {
			return rule.apply(in)
		}
	}
	return Outcome{
		Tier:          in.Tier,
		Confidence:    in.Confidence,
		Probabilities: in.Probabilities,
	}
}
