package annotation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/role-annotator/annotation/provider"
	"github.com/theimaginaryfoundation/role-annotator/annotation/provider/mock"
)

type fakeRecorder struct {
	mu        sync.Mutex
	attempts  []string
	dialogues []string
}

func (f *fakeRecorder) RecordAttempt(_ context.Context, result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, result)
}

func (f *fakeRecorder) RecordDialogue(_ context.Context, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogues = append(f.dialogues, outcome)
}

func rossRachel(id int) Dialogue {
	return Dialogue{ID: id, Utterances: []UtteranceRecord{
		utt(id, 2*id-1, "Ross", "Hi"),
		utt(id, 2*id, "Rachel", "Hey"),
	}}
}

func goodResponse(d Dialogue) string {
	roles := []string{"Protagonist", "Supporter"}
	parts := make([]string, len(d.Utterances))
	for i, u := range d.Utterances {
		parts[i] = assignmentJSON(u.Serial, u.Speaker, roles[i%2])
	}
	return response(parts...)
}

func swappedResponse(d Dialogue) string {
	a, b := d.Utterances[0], d.Utterances[1]
	return response(assignmentJSON(b.Serial, b.Speaker, "Neutral"), assignmentJSON(a.Serial, a.Speaker, "Neutral"))
}

func TestAssign_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	c := &mock.Completer{Responses: []mock.Response{{Text: goodResponse(d)}}}
	rec := &fakeRecorder{}
	a := &Assigner{Completer: c, Metrics: rec}

	out, err := a.Assign(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if out.State != StateSucceeded || out.Attempts != 1 || out.LastFailure != FailureNone {
		t.Fatalf("outcome=%+v", out)
	}
	if len(out.Records) != 2 || out.Records[0].Role != RoleProtagonist || out.Records[1].Role != RoleSupporter {
		t.Fatalf("records=%+v", out.Records)
	}
	for _, r := range out.Records {
		if r.RawResponse != goodResponse(d) || r.Prompt != out.Prompt {
			t.Fatalf("record not tagged with prompt and response: %+v", r)
		}
	}
	if c.Calls[0].ResponseTemplate != DefaultResponseTemplate {
		t.Fatalf("template=%q", c.Calls[0].ResponseTemplate)
	}
	if !slices.Equal(rec.attempts, []string{"ok"}) || !slices.Equal(rec.dialogues, []string{"succeeded"}) {
		t.Fatalf("metrics attempts=%v dialogues=%v", rec.attempts, rec.dialogues)
	}
}

func TestAssign_RetriesUntilValid(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	c := &mock.Completer{Responses: []mock.Response{
		{Text: "I cannot decide."},
		{Err: errors.New("read: connection reset by peer")},
		{Text: goodResponse(d)},
	}}
	rec := &fakeRecorder{}
	a := &Assigner{Completer: c, Metrics: rec}

	out, err := a.Assign(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if out.State != StateSucceeded || out.Attempts != 3 {
		t.Fatalf("state=%s attempts=%d", out.State, out.Attempts)
	}
	if len(c.Calls) != 3 {
		t.Fatalf("calls=%d, want 3", len(c.Calls))
	}
	for _, call := range c.Calls[1:] {
		if call.Prompt != c.Calls[0].Prompt {
			t.Fatal("prompt changed between attempts")
		}
	}
	if !slices.Equal(rec.attempts, []string{"parse_failure", "completion_error", "ok"}) {
		t.Fatalf("attempts=%v", rec.attempts)
	}
}

func TestAssign_ExhaustsOnRepeatedMismatch(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	c := &mock.Completer{Responses: []mock.Response{{Text: swappedResponse(d)}}, Repeat: true}
	rec := &fakeRecorder{}
	a := &Assigner{Completer: c, Metrics: rec}

	out, err := a.Assign(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if out.State != StateFailed || out.Attempts != DefaultMaxRetries || out.LastFailure != FailureIdentity {
		t.Fatalf("outcome state=%s attempts=%d last=%s", out.State, out.Attempts, out.LastFailure)
	}
	if c.CallCount() != DefaultMaxRetries {
		t.Fatalf("calls=%d, want %d", c.CallCount(), DefaultMaxRetries)
	}
	if len(out.Records) != 2 {
		t.Fatalf("len=%d, want 2", len(out.Records))
	}
	for i, r := range out.Records {
		if !r.IsError() || r.Justification != "Failed after 3 attempts." || r.Serial != d.Utterances[i].Serial {
			t.Fatalf("record %d=%+v", i, r)
		}
		if r.RawResponse != swappedResponse(d) {
			t.Fatalf("error record should carry the last response")
		}
	}
	if !slices.Equal(rec.dialogues, []string{"failed"}) {
		t.Fatalf("dialogues=%v", rec.dialogues)
	}
}

func TestAssign_MaxRetries(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	c := &mock.Completer{Responses: []mock.Response{{Text: "nope"}}, Repeat: true}
	a := &Assigner{Completer: c, MaxRetries: 5}

	out, err := a.Assign(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if out.Attempts != 5 || out.Records[0].Justification != "Failed after 5 attempts." {
		t.Fatalf("attempts=%d justification=%q", out.Attempts, out.Records[0].Justification)
	}
}

func TestAssign_UnavailableIsFatal(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	c := &mock.Completer{Responses: []mock.Response{
		{Err: fmt.Errorf("ollama: %w: dial tcp: connection refused", provider.ErrUnavailable)},
		{Text: goodResponse(d)},
	}}
	rec := &fakeRecorder{}
	a := &Assigner{Completer: c, Metrics: rec}

	out, err := a.Assign(context.Background(), d, nil)
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("err=%v, want ErrUnavailable", err)
	}
	if out.Records != nil || out.Attempts != 0 {
		t.Fatalf("fatal outcome should be empty: %+v", out)
	}
	if c.CallCount() != 1 {
		t.Fatalf("calls=%d, want 1", c.CallCount())
	}
	if len(rec.attempts) != 0 || len(rec.dialogues) != 0 {
		t.Fatalf("fatal path recorded metrics: %v %v", rec.attempts, rec.dialogues)
	}
}

func TestAssign_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &mock.Completer{Responses: []mock.Response{{Text: "x"}}}
	a := &Assigner{Completer: c}
	_, err := a.Assign(ctx, rossRachel(1), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if c.CallCount() != 0 {
		t.Fatalf("calls=%d, want 0", c.CallCount())
	}
}

func TestAssign_HashedSpeakers(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	raw := response(assignmentJSON(1, "Person A", "Gatekeeper"), assignmentJSON(2, "Person B", "Attacker"))
	c := &mock.Completer{Responses: []mock.Response{{Text: goodResponse(d)}, {Text: raw}}}
	a := &Assigner{Completer: c, Builder: PromptBuilder{Options: PromptOptions{Anonymize: true}}}

	out, err := a.Assign(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	// Real names are a speaker mismatch once the prompt is anonymized.
	if out.Attempts != 2 || out.State != StateSucceeded {
		t.Fatalf("state=%s attempts=%d", out.State, out.Attempts)
	}
	if out.Records[0].Speaker != "Person A" || out.Records[1].Role != RoleAttacker {
		t.Fatalf("records=%+v", out.Records)
	}
}

func TestAssign_CustomTemplate(t *testing.T) {
	t.Parallel()

	d := rossRachel(1)
	c := &mock.Completer{Responses: []mock.Response{{Text: goodResponse(d)}}}
	a := &Assigner{Completer: c, ResponseTemplate: "Q: {question}"}
	if _, err := a.Assign(context.Background(), d, nil); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if c.Calls[0].ResponseTemplate != "Q: {question}" {
		t.Fatalf("template=%q", c.Calls[0].ResponseTemplate)
	}
}

func TestStateStrings(t *testing.T) {
	t.Parallel()

	if StatePending.String() != "pending" || StateFailed.String() != "failed" || AssignState(42).String() != "unknown" {
		t.Fatal("unexpected AssignState strings")
	}
	if FailureInvalidRole.String() != "invalid_role" || FailureExhausted.String() != "exhausted" {
		t.Fatal("unexpected FailureKind strings")
	}
	if StatusFailed.String() != "failed" || StatusAbsent.String() != "absent" {
		t.Fatal("unexpected DialogueStatus strings")
	}
}
