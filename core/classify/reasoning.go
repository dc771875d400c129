package classify

import (
	"strings"

	"vigil-triage/core/risk"
)

// BuildReasoning composes the short plain-language explanation shown next
// to a prediction. No probabilities or model terms appear in the text; the
// sentences mention only what a dispatcher would act on.
func BuildReasoning(outcome Outcome, fs *FeatureSet, cal Calibration, caveatAt int) string {
	var parts []string

	switch {
	case outcome.Rule == "life-threatening":
		parts = append(parts, "Report mentions a potential threat to life and requires immediate attention.")
	case outcome.Rule == "child-safety":
		parts = append(parts, "Report raises a child safety concern and has been escalated for urgent review.")
	case outcome.Tier == risk.TierHigh:
		parts = append(parts, "Report describes a serious incident and has been flagged for priority handling.")
	case outcome.Tier == risk.TierMedium:
		parts = append(parts, "Report warrants monitoring and a follow-up by the duty team.")
	default:
		if outcome.Rule == "generic-noise" {
			parts = append(parts, "Report reads as routine low-level disturbance and will be handled in normal order.")
		} else {
			parts = append(parts, "Report appears routine and will be handled in normal order.")
		}
	}

	if fs.TimeOfDay == "night" && outcome.Tier != risk.TierLow {
		parts = append(parts, "The incident occurred at night, which raises its urgency.")
	} else if fs.TimeOfDay != "" && outcome.Tier == risk.TierMedium {
		parts = append(parts, "The incident occurred in the "+fs.TimeOfDay+".")
	}

	if caveatAt > 0 && len(fs.UnknownFields) >= caveatAt {
		parts = append(parts, "Several report details were missing, so this assessment may change as more information arrives.")
	}

	if len(cal.Adjustments) > 0 {
		parts = append(parts, "Confidence was adjusted: "+strings.Join(cal.Adjustments, "; ")+".")
	}

	return strings.Join(parts, " ")
}
