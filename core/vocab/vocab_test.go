package vocab

import (
	"testing"
	"time"
)

func TestEncodeKnownValue(t *testing.T) {
	idx, known := Encode(FieldLocation, "Residential")
	if !known || idx != 0 {
		t.Fatalf("Encode(location, Residential) = (%d, %v)", idx, known)
	}
	idx, known = Encode(FieldCategoryType, " armed robbery ")
	if !known || idx != 3 {
		t.Fatalf("Encode(category, armed robbery) = (%d, %v)", idx, known)
	}
}

func TestFieldCountMatchesFields(t *testing.T) {
	if FieldCount != len(Fields) || FieldCount != 6 {
		t.Fatalf("FieldCount = %d, fields = %d", FieldCount, len(Fields))
	}
}

func TestEncodeUnknownUsesMidpoint(t *testing.T) {
	for _, field := range Fields {
		want := Size(field) / 2
		for _, raw := range []string{"", "unknown", "no-such-value"} {
			idx, known := Encode(field, raw)
			if known {
				t.Errorf("Encode(%s, %q) reported known", field, raw)
			}
			if idx != want {
				t.Errorf("Encode(%s, %q) = %d, want midpoint %d", field, raw, idx, want)
			}
		}
	}
}

func TestTimeOfDayBuckets(t *testing.T) {
	cases := map[int]string{
		0: "night", 4: "night", 5: "morning", 11: "morning",
		12: "afternoon", 16: "afternoon", 17: "evening", 20: "evening",
		21: "night", 23: "night",
	}
	for hour, want := range cases {
		if got := TimeOfDay(hour); got != want {
			t.Errorf("TimeOfDay(%d) = %s, want %s", hour, got, want)
		}
	}
}

func TestCalendarValuesAreInVocabulary(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC) // a Wednesday
	if _, known := Encode(FieldDayOfWeek, DayOfWeek(ts)); !known {
		t.Errorf("day of week %q not in vocabulary", DayOfWeek(ts))
	}
	if _, known := Encode(FieldMonth, Month(ts)); !known {
		t.Errorf("month %q not in vocabulary", Month(ts))
	}
	if _, known := Encode(FieldTimeOfDay, TimeOfDay(ts.Hour())); !known {
		t.Errorf("time of day %q not in vocabulary", TimeOfDay(ts.Hour()))
	}
}
