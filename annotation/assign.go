package annotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
	"github.com/theimaginaryfoundation/role-annotator/annotation/logging"
	"github.com/theimaginaryfoundation/role-annotator/annotation/provider"
)

const DefaultMaxRetries = 3

// AssignState is the lifecycle of one dialogue inside Assign.
type AssignState int

const (
	StatePending AssignState = iota
	StateAttempting
	StateSucceeded
	StateFailed
)

func (s AssignState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a non-fatal Assign. Records always holds one record per utterance:
// role records on success, error records once the attempts are used up.
type Outcome struct {
	State    AssignState
	Attempts int
	Records  []RoleRecord
	Prompt   string
	Response string

	// LastFailure is the kind of the last rejected attempt; FailureNone on success.
	LastFailure FailureKind
}

// Recorder receives per-attempt and per-dialogue measurements.
type Recorder interface {
	RecordAttempt(ctx context.Context, result string, latency time.Duration)
	RecordDialogue(ctx context.Context, outcome string)
}

// NopRecorder drops every measurement.
type NopRecorder struct{}

func (NopRecorder) RecordAttempt(context.Context, string, time.Duration) {}
func (NopRecorder) RecordDialogue(context.Context, string)               {}

// Assigner drives the prompt, complete, parse cycle for one dialogue with bounded retries.
type Assigner struct {
	Completer provider.Completer
	Builder   PromptBuilder
	Parser    Parser

	// MaxRetries is the total number of attempts per dialogue (not the number of re-tries).
	MaxRetries int

	// Backoff sets the delay between attempts. nil means no delay.
	Backoff backoff.BackOff

	// ResponseTemplate wraps the prompt; "{question}" is replaced. Empty means
	// DefaultResponseTemplate.
	ResponseTemplate string

	Log     logrus.FieldLogger
	Metrics Recorder
}

const attemptCompletionError = "completion_error"

// Assign labels d. The returned error is non-nil only for fatal conditions: an unavailable
// backend or a cancelled context. In that case no records are produced and the caller must not
// persist anything for d.
func (a *Assigner) Assign(ctx context.Context, d Dialogue, summary *ConnectionSummary) (Outcome, error) {
	maxAttempts := a.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}
	tmpl := a.ResponseTemplate
	if tmpl == "" {
		tmpl = DefaultResponseTemplate
	}
	log := a.logger().WithField("dialogue_id", d.ID)
	metrics := a.recorder()

	out := Outcome{State: StatePending}
	out.Prompt = a.Builder.Build(d, summary)
	serials := d.Serials()
	speakers, _ := PresentSpeakers(d, a.Builder.Options.Anonymize)

	policy := a.Backoff
	if policy == nil {
		policy = &backoff.ZeroBackOff{}
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)

	out.State = StateAttempting
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		out.Attempts++
		attemptLog := log.WithField("attempt", out.Attempts)

		start := time.Now()
		raw, err := a.Completer.Complete(ctx, out.Prompt, tmpl)
		latency := time.Since(start)
		if err != nil {
			if errors.Is(err, provider.ErrUnavailable) || ctx.Err() != nil {
				out.Attempts--
				return backoff.Permanent(err)
			}
			metrics.RecordAttempt(ctx, attemptCompletionError, latency)
			attemptLog.WithError(err).Warn("completion failed")
			return fmt.Errorf("complete: %w", err)
		}
		out.Response = raw

		records, verr := a.Parser.Validate(raw, serials, speakers, d.ID, out.Prompt)
		if verr != nil {
			out.LastFailure = verr.Kind
			metrics.RecordAttempt(ctx, verr.Kind.String(), latency)
			attemptLog.WithFields(logrus.Fields{
				"failure":  verr.Kind.String(),
				"response": fileutils.Truncate(raw, 200),
			}).Debug(verr.Message)
			return verr
		}
		for i := range records {
			records[i].RawResponse = raw
		}
		out.Records = records
		out.LastFailure = FailureNone
		metrics.RecordAttempt(ctx, FailureNone.String(), latency)
		return nil
	}

	err := backoff.Retry(op, bo)
	switch {
	case err == nil:
		out.State = StateSucceeded
		metrics.RecordDialogue(ctx, out.State.String())
		log.WithField("attempts", out.Attempts).Info("dialogue labeled")
		return out, nil
	case errors.Is(err, provider.ErrUnavailable):
		return Outcome{}, fmt.Errorf("assign dialogue %d: %w", d.ID, err)
	case ctx.Err() != nil:
		return Outcome{}, fmt.Errorf("assign dialogue %d: %w", d.ID, ctx.Err())
	}

	out.State = StateFailed
	out.Records = ErrorRecords(serials, speakers, d.ID,
		fmt.Sprintf("Failed after %d attempts.", out.Attempts), out.Prompt, out.Response)
	metrics.RecordDialogue(ctx, out.State.String())
	log.WithFields(logrus.Fields{
		"attempts": out.Attempts,
		"failure":  out.LastFailure.String(),
	}).WithError(err).Warn("dialogue exhausted retries")
	return out, nil
}

func (a *Assigner) logger() logrus.FieldLogger {
	if a.Log != nil {
		return a.Log
	}
	return logging.Discard()
}

func (a *Assigner) recorder() Recorder {
	if a.Metrics != nil {
		return a.Metrics
	}
	return NopRecorder{}
}
