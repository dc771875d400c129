// Package risk defines the closed escalation-risk vocabulary shared by the
// oracle client, the classification pipeline and the record store.
package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Tier is the escalation-risk level of an incident. It is a closed set;
// raw strings never travel through the pipeline.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierMedium:
		return "Medium"
	case TierHigh:
		return "High"
	}
	return "Low"
}

func (t Tier) Valid() bool {
	return t >= TierLow && t <= TierHigh
}

func ParseTier(raw string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	}
	return TierLow, fmt.Errorf("unknown tier %q", raw)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTier(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Distribution is a probability distribution over the three tiers.
type Distribution struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

func (d Distribution) Sum() float64 {
	return d.Low + d.Medium + d.High
}

// NormTolerance is the rounding slack allowed on Sum.
const NormTolerance = 0.01

func (d Distribution) Normalized() bool {
	return math.Abs(d.Sum()-1.0) <= NormTolerance
}

// Normalize rescales the distribution to sum to 1. A zero distribution
// normalizes to uniform.
func (d Distribution) Normalize() Distribution {
	sum := d.Sum()
	if sum <= 0 {
		return Distribution{Low: 1.0 / 3, Medium: 1.0 / 3, High: 1.0 / 3}
	}
	return Distribution{Low: d.Low / sum, Medium: d.Medium / sum, High: d.High / sum}
}

// P returns the probability assigned to a tier.
func (d Distribution) P(t Tier) float64 {
	switch t {
	case TierLow:
		return d.Low
	case TierMedium:
		return d.Medium
	case TierHigh:
		return d.High
	}
	return 0
}

// Top returns the most probable tier, preferring the higher tier on ties.
func (d Distribution) Top() Tier {
	top := TierLow
	best := d.Low
	if d.Medium >= best {
		top = TierMedium
		best = d.Medium
	}
	if d.High >= best {
		top = TierHigh
	}
	return top
}
