package classify

import (
	"strings"
	"testing"

	"vigil-triage/config"
	"vigil-triage/core/store"
)

func calCfg() config.CalibrationConfig {
	return config.CalibrationConfig{
		UnknownPenalty:      0.15,
		ConfidenceFloor:     0.30,
		ShortTextWords:      8,
		UnknownRatioLimit:   0.30,
		CaveatUnknownFields: 3,
	}
}

func featuresWithUnknowns(t *testing.T, n int, text string) *FeatureSet {
	t.Helper()
	rep := &store.Report{
		ID:           "r",
		Description:  text,
		Location:     "residential",
		SubLocation:  "street",
		CategoryType: "theft",
	}
	fs := EncodeFeatures(rep)
	// OccurredAt zero leaves the three calendar fields unknown; trim the
	// unknown list down to the requested count.
	if len(fs.UnknownFields) < n {
		t.Fatalf("fixture has %d unknowns, need %d", len(fs.UnknownFields), n)
	}
	fs.UnknownFields = fs.UnknownFields[:n]
	return fs
}

func TestCalibratePenaltyPerUnknownField(t *testing.T) {
	text := "A bicycle was stolen from the front yard this morning here"
	prev := 1.1
	for n := 0; n <= 3; n++ {
		fs := featuresWithUnknowns(t, n, text)
		cal := Calibrate(0.90, fs, calCfg())
		if cal.Confidence >= prev {
			t.Fatalf("confidence %f with %d unknowns did not decrease from %f", cal.Confidence, n, prev)
		}
		prev = cal.Confidence
	}
	fs := featuresWithUnknowns(t, 2, text)
	cal := Calibrate(0.90, fs, calCfg())
	if got, want := cal.Confidence, 0.60; !almostEqual(got, want) {
		t.Fatalf("confidence = %f, want %f", got, want)
	}
}

func TestCalibrateFloor(t *testing.T) {
	fs := featuresWithUnknowns(t, 3, "Quiet street nothing more to add really about it all")
	cal := Calibrate(0.35, fs, calCfg())
	if cal.Confidence != 0.30 {
		t.Fatalf("confidence = %f, want floor 0.30", cal.Confidence)
	}
}

func TestCalibrateMarksShortTextGeneric(t *testing.T) {
	rep := &store.Report{ID: "r", Description: "loud noise outside"}
	fs := EncodeFeatures(rep)
	cal := Calibrate(0.80, fs, calCfg())
	if !cal.Generic {
		t.Fatal("short low-signal text not marked generic")
	}
}

func TestCalibrateNeverMarksSafetyTextGeneric(t *testing.T) {
	rep := &store.Report{ID: "r", Description: "armed man outside"}
	fs := EncodeFeatures(rep)
	cal := Calibrate(0.80, fs, calCfg())
	if cal.Generic {
		t.Fatal("safety-flagged text marked generic")
	}
}

func TestCalibrateNeverMarksViolenceTextGeneric(t *testing.T) {
	rep := &store.Report{ID: "r", Description: "a short fight nearby"}
	fs := EncodeFeatures(rep)
	cal := Calibrate(0.80, fs, calCfg())
	if cal.Generic {
		t.Fatal("violence-flagged text marked generic")
	}
	for _, note := range cal.Adjustments {
		if strings.Contains(note, "low-signal") {
			t.Fatalf("violence-flagged text carries note %q", note)
		}
	}
}

func TestCalibrateEmptyReportHoldsFloorWithoutGeneric(t *testing.T) {
	fs := EncodeFeatures(&store.Report{ID: "r", Description: ""})
	if !fs.AllUnknown() {
		t.Fatalf("fixture not all-unknown: %v", fs.UnknownFields)
	}
	cal := Calibrate(0.90, fs, calCfg())
	if cal.Confidence != 0.30 {
		t.Fatalf("confidence = %f, want floor 0.30", cal.Confidence)
	}
	if cal.Generic {
		t.Fatal("empty report marked generic")
	}
	if len(cal.Adjustments) == 0 {
		t.Fatal("empty report carries no adjustment note")
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d > -1e-9 && d < 1e-9
}
