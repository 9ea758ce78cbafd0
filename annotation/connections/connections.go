// Package connections computes the communication statistics shown to the model by the context
// approach: how each speaker responds to each other speaker, and how each speaker talks overall.
package connections

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
)

// Scope selects which utterances are pooled into one summary.
type Scope string

const (
	ScopeDialogue Scope = "dialogue"
	ScopeEpisode  Scope = "episode"
	ScopeDataset  Scope = "dataset"
)

// Scopes lists the supported scopes.
var Scopes = []Scope{ScopeDialogue, ScopeEpisode, ScopeDataset}

func (s Scope) Valid() bool { return slices.Contains(Scopes, s) }

// Entry is the summary of one scope key together with the dialogues it covers.
type Entry struct {
	Scope     Scope                        `json:"scope"`
	Key       string                       `json:"key"`
	Dialogues []int                        `json:"dialogues"`
	Summary   annotation.ConnectionSummary `json:"summary"`
}

// Compute summarizes records. Each utterance responds to the most recent earlier speaker of the
// same dialogue other than its own speaker and counts toward that pair; the opening run of a
// dialogue responds to nobody. Every utterance counts toward its speaker's overall statistics.
func Compute(records []annotation.UtteranceRecord) annotation.ConnectionSummary {
	pairs := newTally[pairKey]()
	speakers := newTally[string]()

	for _, d := range annotation.GroupDialogues(records) {
		// last is the current speaker run, before the speaker that preceded it.
		last, before := "", ""
		for _, u := range d.Utterances {
			speakers.add(u.Speaker, u)
			if u.Speaker != last {
				before, last = last, u.Speaker
			}
			if before != "" {
				pairs.add(pairKey{speaker: u.Speaker, to: before}, u)
			}
		}
	}

	var out annotation.ConnectionSummary
	for _, k := range pairs.order {
		out.Connections = append(out.Connections, annotation.ConnectionStats{
			Speaker:       k.speaker,
			RespondedTo:   k.to,
			ResponseStats: pairs.acc[k].stats(),
		})
	}
	for _, s := range speakers.order {
		out.Participants = append(out.Participants, annotation.ParticipantStats{
			Speaker:       s,
			ResponseStats: speakers.acc[s].stats(),
		})
	}
	return out
}

// Build computes one Entry per scope key, in first-appearance order.
func Build(records []annotation.UtteranceRecord, scope Scope) ([]Entry, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("connections: unknown scope %q", scope)
	}

	var (
		order  []string
		groups = make(map[string][]annotation.UtteranceRecord)
		covers = make(map[string][]int)
	)
	for id, d := range annotation.GroupDialogues(records) {
		key := scopeKey(scope, d)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], d.Utterances...)
		covers[key] = append(covers[key], id)
	}

	out := make([]Entry, 0, len(order))
	for _, key := range order {
		out = append(out, Entry{
			Scope:     scope,
			Key:       key,
			Dialogues: covers[key],
			Summary:   Compute(groups[key]),
		})
	}
	return out, nil
}

func scopeKey(scope Scope, d annotation.Dialogue) string {
	switch scope {
	case ScopeDialogue:
		return fmt.Sprintf("D%d", d.ID)
	case ScopeEpisode:
		if len(d.Utterances) == 0 {
			return "S00E00"
		}
		u := d.Utterances[0]
		return fmt.Sprintf("S%02dE%02d", u.Season, u.Episode)
	default:
		return "all"
	}
}

type pairKey struct {
	speaker, to string
}

type tally[K comparable] struct {
	order []K
	acc   map[K]*accumulator
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{acc: make(map[K]*accumulator)}
}

func (t *tally[K]) add(k K, u annotation.UtteranceRecord) {
	a, ok := t.acc[k]
	if !ok {
		a = &accumulator{}
		t.acc[k] = a
		t.order = append(t.order, k)
	}
	a.add(u)
}

type accumulator struct {
	n          int
	words      int
	letters    int
	durSum     float64
	durN       int
	sentiments map[string]int
	emotions   map[string]int
	sentN      int
	emoN       int
}

func (a *accumulator) add(u annotation.UtteranceRecord) {
	a.n++
	a.words += len(strings.Fields(u.Text))
	a.letters += countLetters(u.Text)
	if u.Duration != nil {
		a.durSum += *u.Duration
		a.durN++
	}
	if u.Sentiment != "" {
		if a.sentiments == nil {
			a.sentiments = make(map[string]int)
		}
		a.sentiments[u.Sentiment]++
		a.sentN++
	}
	if u.Emotion != "" {
		if a.emotions == nil {
			a.emotions = make(map[string]int)
		}
		a.emotions[u.Emotion]++
		a.emoN++
	}
}

func (a *accumulator) stats() annotation.ResponseStats {
	var s annotation.ResponseStats
	if a.n > 0 {
		s.AvgWords = round2(float64(a.words) / float64(a.n))
		s.AvgLetters = round2(float64(a.letters) / float64(a.n))
	}
	if a.durN > 0 {
		s.AvgDuration = round2(a.durSum / float64(a.durN))
	}
	s.Sentiments = shares(a.sentiments, a.sentN)
	s.Emotions = shares(a.emotions, a.emoN)
	return s
}

// shares converts counts to percentages, largest first, ties by label.
func shares(counts map[string]int, total int) []annotation.LabelShare {
	if total == 0 {
		return nil
	}
	out := make([]annotation.LabelShare, 0, len(counts))
	for label, c := range counts {
		out = append(out, annotation.LabelShare{
			Label:   label,
			Percent: round2(float64(c) * 100 / float64(total)),
		})
	}
	slices.SortFunc(out, func(a, b annotation.LabelShare) int {
		if c := cmp.Compare(b.Percent, a.Percent); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// countLetters counts letters after NFC normalization, so a precomposed and a decomposed
// accented character count the same.
func countLetters(s string) int {
	n := 0
	for _, r := range norm.NFC.String(s) {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
