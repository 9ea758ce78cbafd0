package annotation

import (
	"encoding/json"
	"fmt"
)

// ConnectionSummary holds aggregate communication statistics, per speaker pair and per speaker.
// The JSON layout matches the summary files the research notebooks produce.
type ConnectionSummary struct {
	Connections  []ConnectionStats  `json:"Connection_Summary"`
	Participants []ParticipantStats `json:"Participants_Summary"`
}

// ConnectionStats describes how Speaker responds when replying to RespondedTo.
type ConnectionStats struct {
	Speaker     string `json:"Speaker_Response"`
	RespondedTo string `json:"Speaker_Responded_To"`
	ResponseStats
}

// ParticipantStats describes how Speaker communicates across all of their responses.
type ParticipantStats struct {
	Speaker string `json:"Speaker_Response"`
	ResponseStats
}

// ResponseStats are averages and label distributions over a set of responses.
type ResponseStats struct {
	AvgDuration float64      `json:"Response_Duration"`
	AvgWords    float64      `json:"Words_in_Response"`
	AvgLetters  float64      `json:"Letters_in_Response"`
	Sentiments  []LabelShare `json:"Sentiment_in_Response"`
	Emotions    []LabelShare `json:"Emotion_in_Response"`
}

// LabelShare is the percentage of responses carrying Label. It is encoded as a [label, percent] pair.
type LabelShare struct {
	Label   string
	Percent float64
}

func (l LabelShare) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Label, l.Percent})
}

func (l *LabelShare) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("label share: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("label share: want [label, percent], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &l.Label); err != nil {
		return fmt.Errorf("label share label: %w", err)
	}
	if err := json.Unmarshal(pair[1], &l.Percent); err != nil {
		return fmt.Errorf("label share percent: %w", err)
	}
	return nil
}

// SummarySource returns the connection summary to use for a dialogue, or nil.
type SummarySource interface {
	SummaryFor(d Dialogue) *ConnectionSummary
}

// StaticSummary returns the same summary for every dialogue.
type StaticSummary struct {
	Summary *ConnectionSummary
}

func (s StaticSummary) SummaryFor(Dialogue) *ConnectionSummary {
	return s.Summary
}
