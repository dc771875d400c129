package classify

import (
	"fmt"

	"vigil-triage/config"
)

// Calibration is the output of the confidence pass: the discounted
// confidence plus the notes the reasoning generator folds into its text.
type Calibration struct {
	Confidence  float64
	Generic     bool
	Adjustments []string
}

// Calibrate discounts raw oracle confidence for missing information. Each
// unknown field costs a fixed penalty down to a floor; the tier is never
// touched here. Short texts with no safety or violence flags are marked
// generic so the override table can consider a downgrade.
func Calibrate(raw float64, fs *FeatureSet, cfg config.CalibrationConfig) Calibration {
	cal := Calibration{Confidence: raw}
	if fs.Text == "" && fs.AllUnknown() {
		// Nothing local to judge. Hold the oracle's tier at the floor
		// rather than marking the report generic and downgrading it.
		cal.Confidence = cfg.ConfidenceFloor
		cal.Adjustments = append(cal.Adjustments, "no usable report details")
		return cal
	}
	if n := len(fs.UnknownFields); n > 0 {
		cal.Confidence = raw - float64(n)*cfg.UnknownPenalty
		if cal.Confidence < cfg.ConfidenceFloor {
			cal.Confidence = cfg.ConfidenceFloor
		}
		cal.Adjustments = append(cal.Adjustments,
			fmt.Sprintf("confidence reduced for %d unknown field(s)", n))
	}
	if fs.WordCount < cfg.ShortTextWords && !fs.Flags.Safety() && !fs.Flags.Violence {
		cal.Generic = true
		cal.Adjustments = append(cal.Adjustments, "short description treated as low-signal")
	}
	return cal
}
