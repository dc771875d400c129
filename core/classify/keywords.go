// Package classify turns incident reports into calibrated risk judgments.
// The pipeline is encode, classify, calibrate, override, explain; each step
// is a pure function over the previous one except the oracle call.
package classify

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsRaw []byte

type keywordTables struct {
	LifeThreatening []string `yaml:"life_threatening"`
	ChildSafety     []string `yaml:"child_safety"`
	Violence        []string `yaml:"violence"`
	Generic         []string `yaml:"generic"`
}

var keywords keywordTables

func init() {
	if err := yaml.Unmarshal(keywordsRaw, &keywords); err != nil {
		panic("classify: bad keywords table: " + err.Error())
	}
}

// Flags are the safety markers extracted from free text. They drive both
// the override rules and the heuristic fallback.
type Flags struct {
	LifeThreatening bool `json:"life_threatening"`
	ChildSafety     bool `json:"child_safety"`
	Violence        bool `json:"violence"`
	Generic         bool `json:"generic"`
}

func (f Flags) Safety() bool {
	return f.LifeThreatening || f.ChildSafety
}

func ExtractFlags(text string) Flags {
	lowered := strings.ToLower(text)
	return Flags{
		LifeThreatening: containsAny(lowered, keywords.LifeThreatening),
		ChildSafety:     containsAny(lowered, keywords.ChildSafety),
		Violence:        containsAny(lowered, keywords.Violence),
		Generic:         containsAny(lowered, keywords.Generic),
	}
}

func containsAny(lowered string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
