// Package vocab holds the closed categorical vocabularies the feature
// encoder works against. Values outside a vocabulary are encoded as the
// vocabulary's midpoint index: an index-0 fallback would push every unknown
// toward the same class.
package vocab

import (
	"strings"
	"time"
)

type Field string

const (
	FieldLocation     Field = "location"
	FieldSubLocation  Field = "sub_location"
	FieldCategoryType Field = "category_type"
	FieldTimeOfDay    Field = "time_of_day"
	FieldDayOfWeek    Field = "day_of_week"
	FieldMonth        Field = "month"
)

// Fields lists every categorical field in encoding order.
var Fields = []Field{
	FieldLocation,
	FieldSubLocation,
	FieldCategoryType,
	FieldTimeOfDay,
	FieldDayOfWeek,
	FieldMonth,
}

// FieldCount is the denominator for the unknown-field ratio.
var FieldCount = len(Fields)

var locations = []string{
	"residential", "commercial", "industrial", "transit", "park",
	"school", "highway", "waterfront", "downtown", "suburb",
}

var subLocations = []string{
	"street", "alley", "parking lot", "building lobby", "station",
	"storefront", "playground", "bus stop", "bridge", "market",
}

var categoryTypes = []string{
	"theft", "burglary", "assault", "armed robbery", "vandalism",
	"fraud", "harassment", "disturbance", "trespassing", "arson",
	"murder", "kidnapping",
}

var timesOfDay = []string{"morning", "afternoon", "evening", "night"}

var daysOfWeek = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

var months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func values(field Field) []string {
	switch field {
	case FieldLocation:
		return locations
	case FieldSubLocation:
		return subLocations
	case FieldCategoryType:
		return categoryTypes
	case FieldTimeOfDay:
		return timesOfDay
	case FieldDayOfWeek:
		return daysOfWeek
	case FieldMonth:
		return months
	}
	return nil
}

// Size returns the cardinality of a field's vocabulary.
func Size(field Field) int {
	return len(values(field))
}

// FallbackIndex is the encoding used for values outside the vocabulary:
// the midpoint of the range, never 0.
func FallbackIndex(field Field) int {
	return len(values(field)) / 2
}

// Encode maps a raw value to its vocabulary index. Unknown, empty or
// unrecognized values map to the midpoint fallback with known=false.
func Encode(field Field, raw string) (index int, known bool) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	if needle == "" || needle == "unknown" {
		return FallbackIndex(field), false
	}
	for i, v := range values(field) {
		if v == needle {
			return i, true
		}
	}
	return FallbackIndex(field), false
}

// TimeOfDay buckets an hour: 05-11 morning, 12-16 afternoon,
// 17-20 evening, otherwise night.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// DayOfWeek returns the vocabulary value for a timestamp's weekday.
func DayOfWeek(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// Month returns the vocabulary value for a timestamp's month.
func Month(t time.Time) string {
	return strings.ToLower(t.Month().String())
}
