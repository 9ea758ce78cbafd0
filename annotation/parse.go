package annotation

import (
	"fmt"
	"slices"
)

// Parser turns raw model output into role records and checks them against the dialogue that
// was sent. It never calls the model and never fails: a rejected response is reported as one
// error record per expected utterance.
type Parser struct {
	// Extractor recovers candidate tuples; nil means RegexExtractor.
	Extractor Extractor
}

// Parse returns the role records for raw. expectedSpeakers must be the labels shown in the
// prompt (see PresentSpeakers).
func (p Parser) Parse(raw string, expectedSerials []int, expectedSpeakers []string, dialogueID int, prompt string) []RoleRecord {
	records, _ := p.Validate(raw, expectedSerials, expectedSpeakers, dialogueID, prompt)
	return records
}

// Validate is Parse plus the failure kind. Checks run in order and stop at the first failure:
// nothing extracted, serial sequence, speaker sequence, role set.
func (p Parser) Validate(raw string, expectedSerials []int, expectedSpeakers []string, dialogueID int, prompt string) ([]RoleRecord, *ValidationError) {
	ex := p.Extractor
	if ex == nil {
		ex = RegexExtractor{}
	}

	got, ok := ex.TryExtract(raw)
	if !ok || len(got) == 0 {
		return p.reject(FailureParse, "Parsing failed: No valid matches found in the response.",
			expectedSerials, expectedSpeakers, dialogueID, prompt)
	}

	serials := make([]int, len(got))
	speakers := make([]string, len(got))
	for i, a := range got {
		serials[i] = a.Serial
		speakers[i] = a.Speaker
	}

	if !slices.Equal(serials, expectedSerials) {
		return p.reject(FailureIdentity,
			fmt.Sprintf("Sr No. mismatch: Expected %v, but got %v.", expectedSerials, serials),
			expectedSerials, expectedSpeakers, dialogueID, prompt)
	}
	if !slices.Equal(speakers, expectedSpeakers) {
		return p.reject(FailureIdentity,
			fmt.Sprintf("Speaker mismatch: Expected %q, but got %q.", expectedSpeakers, speakers),
			expectedSerials, expectedSpeakers, dialogueID, prompt)
	}
	if invalid := invalidRoles(got); len(invalid) > 0 {
		return p.reject(FailureInvalidRole,
			fmt.Sprintf("Invalid roles found: %q. Expected only %v.", invalid, ValidRoles),
			expectedSerials, expectedSpeakers, dialogueID, prompt)
	}

	out := make([]RoleRecord, len(got))
	for i, a := range got {
		out[i] = RoleRecord{
			Serial:        a.Serial,
			Speaker:       a.Speaker,
			DialogueID:    dialogueID,
			Role:          Role(a.Role),
			Justification: a.Justification,
			Prompt:        prompt,
		}
	}
	return out, nil
}

func (p Parser) reject(kind FailureKind, msg string, serials []int, speakers []string, dialogueID int, prompt string) ([]RoleRecord, *ValidationError) {
	return ErrorRecords(serials, speakers, dialogueID, msg, prompt, ""), &ValidationError{Kind: kind, Message: msg}
}

// ErrorRecords builds one error record per expected utterance, all carrying msg.
func ErrorRecords(serials []int, speakers []string, dialogueID int, msg, prompt, rawResponse string) []RoleRecord {
	out := make([]RoleRecord, len(serials))
	for i, s := range serials {
		speaker := ""
		if i < len(speakers) {
			speaker = speakers[i]
		}
		out[i] = RoleRecord{
			Serial:        s,
			Speaker:       speaker,
			DialogueID:    dialogueID,
			Role:          RoleError,
			Justification: msg,
			Prompt:        prompt,
			RawResponse:   rawResponse,
		}
	}
	return out
}

// invalidRoles returns the distinct roles outside the valid set, sorted.
func invalidRoles(got []Assignment) []string {
	var out []string
	for _, a := range got {
		if Role(a.Role).Valid() || slices.Contains(out, a.Role) {
			continue
		}
		out = append(out, a.Role)
	}
	slices.Sort(out)
	return out
}
