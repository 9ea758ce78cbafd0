package annotation

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
)

// Extractor recovers assignment tuples from raw model output. ok is false when nothing usable
// was found. Implementations must not panic on arbitrary input.
type Extractor interface {
	TryExtract(text string) (assignments []Assignment, ok bool)
}

var assignmentPattern = regexp.MustCompile(
	`"Sr No\.":\s*(\d+),\s*"Speaker":\s*"([^"]+)",\s*"Role":\s*"([^"]+)",\s*"Justification":\s*"([^"]+)"`,
)

// RegexExtractor scans free text for the four-field shape requested by ClosingInstruction.
// Matches are returned in the order they appear.
type RegexExtractor struct{}

func (RegexExtractor) TryExtract(text string) ([]Assignment, bool) {
	matches := assignmentPattern.FindAllStringSubmatch(text, -1)
	out := make([]Assignment, 0, len(matches))
	for _, m := range matches {
		serial, err := strconv.Atoi(m[1])
		if err != nil {
			// Out of int range; not a serial we could have sent.
			continue
		}
		out = append(out, Assignment{
			Serial:        serial,
			Speaker:       m[2],
			Role:          m[3],
			Justification: m[4],
		})
	}
	return out, len(out) > 0
}

// AssignmentList is the structured-output shape: a root object wrapping the per-utterance tuples.
type AssignmentList struct {
	Assignments []Assignment `json:"assignments"`
}

// JSONExtractor decodes model output that is (or contains) JSON: an AssignmentList object, a bare
// array of assignments, or a single assignment object.
type JSONExtractor struct{}

func (JSONExtractor) TryExtract(text string) ([]Assignment, bool) {
	var raw json.RawMessage
	if err := fileutils.DecodeModelJSON(text, &raw); err != nil {
		return nil, false
	}

	var list AssignmentList
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Assignments) > 0 {
		return list.Assignments, true
	}
	var arr []Assignment
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return arr, true
	}
	var one Assignment
	if err := json.Unmarshal(raw, &one); err == nil && one.Speaker != "" {
		return []Assignment{one}, true
	}
	return nil, false
}

// ChainExtractor returns the result of the first extractor that finds anything.
type ChainExtractor []Extractor

func (c ChainExtractor) TryExtract(text string) ([]Assignment, bool) {
	for _, e := range c {
		if out, ok := e.TryExtract(text); ok {
			return out, true
		}
	}
	return nil, false
}

// ExtractorByName maps a configuration value to an Extractor. "auto" tries JSON first and falls
// back to the regex scan.
func ExtractorByName(name string) (Extractor, bool) {
	switch name {
	case "", "regex":
		return RegexExtractor{}, true
	case "json":
		return JSONExtractor{}, true
	case "auto":
		return ChainExtractor{JSONExtractor{}, RegexExtractor{}}, true
	default:
		return nil, false
	}
}
