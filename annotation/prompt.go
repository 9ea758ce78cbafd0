package annotation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PromptOptions selects which optional parts of the prompt are rendered.
type PromptOptions struct {
	// Anonymize replaces speaker names with dialogue-local labels.
	Anonymize bool

	// IncludeDuration annotates each utterance with its duration in seconds.
	IncludeDuration bool

	// IncludeConnectionSummary appends the pairwise and per-speaker statistics blocks when a
	// summary is available for the dialogue.
	IncludeConnectionSummary bool
}

// Approach names a preset of PromptOptions.
type Approach string

const (
	ApproachBaseline Approach = "baseline"
	ApproachHashed   Approach = "hashed"
	ApproachContext  Approach = "context"
)

// Approaches lists the known presets.
var Approaches = []Approach{ApproachBaseline, ApproachHashed, ApproachContext}

// Options returns the preset options for a, or false for an unknown name.
func (a Approach) Options() (PromptOptions, bool) {
	switch a {
	case ApproachBaseline:
		return PromptOptions{}, true
	case ApproachHashed:
		return PromptOptions{Anonymize: true}, true
	case ApproachContext:
		return PromptOptions{IncludeDuration: true, IncludeConnectionSummary: true}, true
	default:
		return PromptOptions{}, false
	}
}

// PromptBuilder renders a dialogue into the prompt sent to the model.
type PromptBuilder struct {
	Options PromptOptions
}

// Build renders d. summary may be nil; it is ignored unless IncludeConnectionSummary is set.
// The output depends only on its inputs.
func (b PromptBuilder) Build(d Dialogue, summary *ConnectionSummary) string {
	speakers, alias := PresentSpeakers(d, b.Options.Anonymize)

	var sb strings.Builder
	sb.WriteString(RolesDescription)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Here is the context of the entire dialogue with Dialogue_ID %d:\n", d.ID)
	for i, u := range d.Utterances {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "Sr No. %d, %s", u.Serial, speakers[i])
		if b.Options.IncludeDuration && u.Duration != nil {
			fmt.Fprintf(&sb, " (%ss)", formatDuration(*u.Duration))
		}
		fmt.Fprintf(&sb, ": \"%s\"", u.Text)
	}
	sb.WriteByte('\n')

	if b.Options.IncludeConnectionSummary && summary != nil {
		sb.WriteString("\n\n")
		writeConnectionSummary(&sb, *summary, alias, b.Options.Anonymize)
	}

	sb.WriteString("\n\n")
	sb.WriteString(ClosingInstruction)
	return sb.String()
}

// formatDuration rounds to two decimals.
func formatDuration(seconds float64) string {
	return formatDecimal(math.Round(seconds*100) / 100)
}

// formatDecimal is the shortest representation of x, keeping one decimal for whole numbers
// ("2.0", "1.5", "0.27").
func formatDecimal(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func writeConnectionSummary(sb *strings.Builder, s ConnectionSummary, alias SpeakerAlias, anonymize bool) {
	rename := func(name string) (string, bool) {
		if !anonymize {
			return name, true
		}
		return alias.Label(name)
	}

	sb.WriteString(connectionsHeader)
	for _, c := range s.Connections {
		speaker, ok := rename(c.Speaker)
		if !ok {
			continue
		}
		to, ok := rename(c.RespondedTo)
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "\n- Speaker `%s` when interacting with `%s`:", speaker, to)
		writeResponseStats(sb, c.ResponseStats)
	}

	sb.WriteString("\n\n")
	sb.WriteString(participantsHeader)
	for _, p := range s.Participants {
		speaker, ok := rename(p.Speaker)
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "\n- Speaker `%s` (overall communication):", speaker)
		writeResponseStats(sb, p.ResponseStats)
	}

	sb.WriteString("\n\n")
	sb.WriteString(connectionsInsight)
}

func writeResponseStats(sb *strings.Builder, r ResponseStats) {
	fmt.Fprintf(sb, "\n  • Avg Duration of Response: %.2fs", r.AvgDuration)
	fmt.Fprintf(sb, "\n  • Avg Words Used: %.2f", r.AvgWords)
	fmt.Fprintf(sb, "\n  • Avg Letters Used: %.2f", r.AvgLetters)
	fmt.Fprintf(sb, "\n  • Sentiments Expressed: %s", formatShares(r.Sentiments))
	fmt.Fprintf(sb, "\n  • Emotions Displayed: %s", formatShares(r.Emotions))
}

func formatShares(shares []LabelShare) string {
	parts := make([]string, 0, len(shares))
	for _, s := range shares {
		parts = append(parts, fmt.Sprintf("%s (%s%%)", s.Label, formatDecimal(s.Percent)))
	}
	return strings.Join(parts, ", ")
}
