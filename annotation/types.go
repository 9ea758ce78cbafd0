package annotation

import "slices"

// Role is the social role assigned to one speaker turn.
type Role string

const (
	RoleProtagonist Role = "Protagonist"
	RoleSupporter   Role = "Supporter"
	RoleNeutral     Role = "Neutral"
	RoleGatekeeper  Role = "Gatekeeper"
	RoleAttacker    Role = "Attacker"

	// RoleError marks a record produced by a failed parse or an exhausted dialogue.
	RoleError Role = "Error"
)

// ValidRoles lists the five assignable roles in sorted order.
var ValidRoles = []Role{RoleAttacker, RoleGatekeeper, RoleNeutral, RoleProtagonist, RoleSupporter}

// Valid reports whether r is one of the five assignable roles. Matching is exact.
func (r Role) Valid() bool {
	return slices.Contains(ValidRoles, r)
}

// UtteranceRecord is one input row. Records are never mutated once loaded.
type UtteranceRecord struct {
	Serial     int
	DialogueID int
	Speaker    string
	Text       string

	// Duration is end-start in seconds, nil when the input has no timing columns.
	Duration *float64

	// Optional dataset columns, only read by the connection summary builder.
	Emotion   string
	Sentiment string
	Season    int
	Episode   int
}

// Dialogue is the ordered set of utterances that share one dialogue id.
type Dialogue struct {
	ID         int
	Utterances []UtteranceRecord
}

// Serials returns the serial numbers of the dialogue in order.
func (d Dialogue) Serials() []int {
	out := make([]int, len(d.Utterances))
	for i, u := range d.Utterances {
		out[i] = u.Serial
	}
	return out
}

// Speakers returns the raw speaker names of the dialogue in order.
func (d Dialogue) Speakers() []string {
	out := make([]string, len(d.Utterances))
	for i, u := range d.Utterances {
		out[i] = u.Speaker
	}
	return out
}

// Assignment is one (serial, speaker, role, justification) tuple recovered from model output.
type Assignment struct {
	Serial        int    `json:"Sr No."`
	Speaker       string `json:"Speaker"`
	Role          string `json:"Role" jsonschema:"enum=Protagonist,enum=Supporter,enum=Neutral,enum=Gatekeeper,enum=Attacker"`
	Justification string `json:"Justification"`
}

// RoleRecord is one output row: the role assigned to one utterance, or an error marker.
type RoleRecord struct {
	Serial        int
	Speaker       string
	DialogueID    int
	Role          Role
	Justification string
	Prompt        string
	RawResponse   string
}

// IsError reports whether the record is an error marker rather than a role assignment.
func (r RoleRecord) IsError() bool {
	return r.Role == RoleError
}

// HasErrors reports whether any record in the set is an error marker.
func HasErrors(records []RoleRecord) bool {
	return slices.ContainsFunc(records, RoleRecord.IsError)
}
