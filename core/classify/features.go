package classify

import (
	"strings"

	"vigil-triage/core/store"
	"vigil-triage/core/vocab"
)

// FeatureSet is the encoded form of a report handed to the oracle. Field
// values are vocabulary indices; unknown inputs carry the midpoint index
// and are counted so the calibrator can discount confidence.
type FeatureSet struct {
	Text             string
	Fields           map[vocab.Field]int
	UnknownFields    []vocab.Field
	WordCount        int
	TimeOfDay        string
	MachineSubmitted bool
	Flags            Flags
}

func (f *FeatureSet) UnknownRatio() float64 {
	if vocab.FieldCount == 0 {
		return 0
	}
	return float64(len(f.UnknownFields)) / float64(vocab.FieldCount)
}

func (f *FeatureSet) AllUnknown() bool {
	return len(f.UnknownFields) == vocab.FieldCount
}

// OracleFields flattens the encoded fields to the wire shape. The
// submission channel rides along as a binary feature; it does not count
// toward the unknown ratio since every report carries one.
func (f *FeatureSet) OracleFields() map[string]int {
	out := make(map[string]int, len(f.Fields)+1)
	for field, idx := range f.Fields {
		out[string(field)] = idx
	}
	if f.MachineSubmitted {
		out["machine_submitted"] = 1
	} else {
		out["machine_submitted"] = 0
	}
	return out
}

func EncodeFeatures(rep *store.Report) *FeatureSet {
	text := strings.TrimSpace(rep.Description)
	fs := &FeatureSet{
		Text:             text,
		Fields:           make(map[vocab.Field]int, vocab.FieldCount),
		WordCount:        len(strings.Fields(text)),
		MachineSubmitted: rep.Channel == store.ChannelMachine,
		Flags:            ExtractFlags(text),
	}

	encode := func(field vocab.Field, raw string) {
		idx, known := vocab.Encode(field, raw)
		fs.Fields[field] = idx
		if !known {
			fs.UnknownFields = append(fs.UnknownFields, field)
		}
	}

	encode(vocab.FieldLocation, rep.Location)
	encode(vocab.FieldSubLocation, rep.SubLocation)
	encode(vocab.FieldCategoryType, rep.CategoryType)
	if rep.OccurredAt.IsZero() {
		encode(vocab.FieldTimeOfDay, "")
		encode(vocab.FieldDayOfWeek, "")
		encode(vocab.FieldMonth, "")
	} else {
		occurred := rep.OccurredAt
		fs.TimeOfDay = vocab.TimeOfDay(occurred.Hour())
		encode(vocab.FieldTimeOfDay, fs.TimeOfDay)
		encode(vocab.FieldDayOfWeek, vocab.DayOfWeek(occurred))
		encode(vocab.FieldMonth, vocab.Month(occurred))
	}
	return fs
}
