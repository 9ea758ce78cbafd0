package annotation

import (
	"strings"
	"testing"
)

func dur(v float64) *float64 { return &v }

func friendsDialogue() Dialogue {
	return Dialogue{ID: 4, Utterances: []UtteranceRecord{
		{Serial: 10, DialogueID: 4, Speaker: "Ross", Text: "Hi", Duration: dur(2.251)},
		{Serial: 11, DialogueID: 4, Speaker: "Rachel", Text: "Hey", Duration: dur(2)},
		{Serial: 12, DialogueID: 4, Speaker: "Ross", Text: "How are you?"},
	}}
}

func friendsSummary() *ConnectionSummary {
	return &ConnectionSummary{
		Connections: []ConnectionStats{
			{Speaker: "Ross", RespondedTo: "Rachel", ResponseStats: ResponseStats{
				AvgDuration: 1.5, AvgWords: 4, AvgLetters: 17.333,
				Sentiments: []LabelShare{{"neutral", 50}, {"positive", 50}},
				Emotions:   []LabelShare{{"joy", 100}},
			}},
			{Speaker: "Joey", RespondedTo: "Ross", ResponseStats: ResponseStats{AvgWords: 2}},
		},
		Participants: []ParticipantStats{
			{Speaker: "Rachel", ResponseStats: ResponseStats{AvgDuration: 2, Sentiments: []LabelShare{{"negative", 33.33}}}},
			{Speaker: "Joey", ResponseStats: ResponseStats{AvgWords: 5}},
		},
	}
}

func TestPromptBuilder_Baseline(t *testing.T) {
	t.Parallel()

	got := PromptBuilder{}.Build(friendsDialogue(), friendsSummary())

	if !strings.HasPrefix(got, RolesDescription+"\n\n") {
		t.Fatalf("prompt does not open with the role description")
	}
	if !strings.HasSuffix(got, "\n\n"+ClosingInstruction) {
		t.Fatalf("prompt does not end with the closing instruction")
	}
	wantBody := "Here is the context of the entire dialogue with Dialogue_ID 4:\n" +
		"Sr No. 10, Ross: \"Hi\"\n" +
		"Sr No. 11, Rachel: \"Hey\"\n" +
		"Sr No. 12, Ross: \"How are you?\"\n"
	if !strings.Contains(got, wantBody) {
		t.Fatalf("missing body %q in:\n%s", wantBody, got)
	}
	if strings.Contains(got, connectionsHeader) {
		t.Fatalf("baseline prompt must not include the connection summary")
	}
}

func TestPromptBuilder_Hashed(t *testing.T) {
	t.Parallel()

	opts, _ := ApproachHashed.Options()
	got := PromptBuilder{Options: opts}.Build(friendsDialogue(), nil)

	for _, want := range []string{
		"Sr No. 10, Person A: \"Hi\"",
		"Sr No. 11, Person B: \"Hey\"",
		"Sr No. 12, Person A: \"How are you?\"",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q", want)
		}
	}
	for _, name := range []string{"Ross", "Rachel"} {
		if strings.Contains(got, name) {
			t.Fatalf("hashed prompt leaks %q", name)
		}
	}
}

func TestPromptBuilder_Context(t *testing.T) {
	t.Parallel()

	opts, _ := ApproachContext.Options()
	got := PromptBuilder{Options: opts}.Build(friendsDialogue(), friendsSummary())

	for _, want := range []string{
		"Sr No. 10, Ross (2.25s): \"Hi\"",
		"Sr No. 11, Rachel (2.0s): \"Hey\"",
		"Sr No. 12, Ross: \"How are you?\"",
		"\n\n" + connectionsHeader,
		"\n- Speaker `Ross` when interacting with `Rachel`:",
		"\n  • Avg Duration of Response: 1.50s",
		"\n  • Avg Words Used: 4.00",
		"\n  • Avg Letters Used: 17.33",
		"\n  • Sentiments Expressed: neutral (50.0%), positive (50.0%)",
		"\n  • Emotions Displayed: joy (100.0%)",
		"\n- Speaker `Joey` when interacting with `Ross`:",
		participantsHeader,
		"\n- Speaker `Rachel` (overall communication):",
		"negative (33.33%)",
		connectionsInsight,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Index(got, participantsHeader) < strings.Index(got, connectionsHeader) {
		t.Fatalf("participants block must follow the connections block")
	}
}

func TestPromptBuilder_ContextWithoutSummary(t *testing.T) {
	t.Parallel()

	opts, _ := ApproachContext.Options()
	got := PromptBuilder{Options: opts}.Build(friendsDialogue(), nil)
	if strings.Contains(got, connectionsHeader) {
		t.Fatalf("no summary supplied, none expected")
	}
}

func TestPromptBuilder_AnonymizedSummaryDropsUnknownSpeakers(t *testing.T) {
	t.Parallel()

	b := PromptBuilder{Options: PromptOptions{Anonymize: true, IncludeConnectionSummary: true}}
	got := b.Build(friendsDialogue(), friendsSummary())

	if !strings.Contains(got, "\n- Speaker `Person A` when interacting with `Person B`:") {
		t.Fatalf("expected aliased connection line in:\n%s", got)
	}
	if !strings.Contains(got, "\n- Speaker `Person B` (overall communication):") {
		t.Fatalf("expected aliased participant line")
	}
	if strings.Contains(got, "Joey") || strings.Contains(got, "Ross") {
		t.Fatalf("anonymized prompt leaks a speaker name:\n%s", got)
	}
}

func TestPromptBuilder_Deterministic(t *testing.T) {
	t.Parallel()

	opts, _ := ApproachContext.Options()
	b := PromptBuilder{Options: opts}
	if b.Build(friendsDialogue(), friendsSummary()) != b.Build(friendsDialogue(), friendsSummary()) {
		t.Fatal("Build is not deterministic")
	}
}

func TestApproachOptions(t *testing.T) {
	t.Parallel()

	for _, a := range Approaches {
		if _, ok := a.Options(); !ok {
			t.Fatalf("%s has no options", a)
		}
	}
	if _, ok := Approach("fancy").Options(); ok {
		t.Fatal("unknown approach accepted")
	}
}

func TestFormatDecimal(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{2: "2.0", 1.5: "1.5", 0.27: "0.27", 100: "100.0", 33.33: "33.33"}
	for in, want := range cases {
		if got := formatDecimal(in); got != want {
			t.Errorf("formatDecimal(%v)=%q, want %q", in, got, want)
		}
	}
	if got := formatDuration(1.482); got != "1.48" {
		t.Errorf("formatDuration(1.482)=%q, want 1.48", got)
	}
}
