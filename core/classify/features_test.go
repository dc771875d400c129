package classify

import (
	"testing"
	"time"

	"vigil-triage/core/store"
	"vigil-triage/core/vocab"
)

func TestEncodeFeaturesKnownFields(t *testing.T) {
	rep := &store.Report{
		ID:           "r1",
		Description:  "Someone broke the storefront window and ran off with goods",
		Location:     "commercial",
		SubLocation:  "storefront",
		CategoryType: "burglary",
		OccurredAt:   time.Date(2026, time.June, 5, 14, 30, 0, 0, time.UTC),
	}
	fs := EncodeFeatures(rep)
	if len(fs.UnknownFields) != 0 {
		t.Fatalf("unknown fields = %v", fs.UnknownFields)
	}
	if fs.WordCount != 10 {
		t.Fatalf("word count = %d", fs.WordCount)
	}
	if fs.TimeOfDay != "afternoon" {
		t.Fatalf("time of day = %q", fs.TimeOfDay)
	}
	if got := fs.Fields[vocab.FieldDayOfWeek]; got != 4 {
		t.Fatalf("day of week index = %d, want friday=4", got)
	}
}

func TestEncodeFeaturesUnknownFieldsFallBack(t *testing.T) {
	rep := &store.Report{ID: "r2", Description: "something happened"}
	fs := EncodeFeatures(rep)
	if !fs.AllUnknown() {
		t.Fatalf("expected all fields unknown, got %v", fs.UnknownFields)
	}
	for field, idx := range fs.Fields {
		if want := vocab.FallbackIndex(field); idx != want {
			t.Errorf("field %s index = %d, want fallback %d", field, idx, want)
		}
	}
	if fs.UnknownRatio() != 1.0 {
		t.Fatalf("unknown ratio = %f", fs.UnknownRatio())
	}
}

func TestEncodeFeaturesSubmissionChannel(t *testing.T) {
	direct := EncodeFeatures(&store.Report{ID: "r3", Description: "test", Channel: store.ChannelDirect})
	if direct.MachineSubmitted {
		t.Fatal("direct report flagged as machine-submitted")
	}
	if got := direct.OracleFields()["machine_submitted"]; got != 0 {
		t.Fatalf("machine_submitted = %d, want 0", got)
	}
	machine := EncodeFeatures(&store.Report{ID: "r4", Description: "test", Channel: store.ChannelMachine})
	if got := machine.OracleFields()["machine_submitted"]; got != 1 {
		t.Fatalf("machine_submitted = %d, want 1", got)
	}
}

func TestExtractFlags(t *testing.T) {
	cases := []struct {
		text string
		want Flags
	}{
		{"Two armed men are holding hostages in the bank", Flags{LifeThreatening: true}},
		{"A man carried a crying child into a car", Flags{ChildSafety: true}},
		{"There was a fight outside the bar", Flags{Violence: true}},
		{"I heard loud noises from my neighbor's house", Flags{Generic: true}},
		{"Nothing to report", Flags{}},
	}
	for _, tc := range cases {
		got := ExtractFlags(tc.text)
		if got != tc.want {
			t.Errorf("ExtractFlags(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestFlagPriorityTextMatchesBothClasses(t *testing.T) {
	flags := ExtractFlags("I heard gunfire and loud noises next door")
	if !flags.LifeThreatening || !flags.Generic {
		t.Fatalf("flags = %+v, want both life-threatening and generic", flags)
	}
}
