package annotation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/role-annotator/annotation/logging"
)

// DialogueStatus is what the store knows about a dialogue id.
type DialogueStatus int

const (
	StatusAbsent DialogueStatus = iota
	// StatusComplete means every record of the dialogue carries a valid role.
	StatusComplete
	// StatusFailed means at least one record of the dialogue is an error record.
	StatusFailed
)

func (s DialogueStatus) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store holds the results of previous and current runs, keyed by dialogue id.
type Store interface {
	// Load reads persisted records, creating an empty store if none exists.
	Load(ctx context.Context) ([]RoleRecord, error)
	Status(dialogueID int) DialogueStatus
	// Evict drops every record of the dialogue.
	Evict(dialogueID int)
	// Upsert replaces the record set of the dialogue wholesale.
	Upsert(dialogueID int, records []RoleRecord)
	// Persist writes the full state durably.
	Persist(ctx context.Context) error
	Records() []RoleRecord
}

// Progress is notified as dialogues are handled.
type Progress interface {
	Start(total int)
	Advance(outcome string)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(int)      {}
func (nopProgress) Advance(string) {}
func (nopProgress) Finish()        {}

// Outcome labels reported to Progress and Recorder for dialogues that were not attempted.
const (
	OutcomeSkipped = "skipped"
)

// RunStats counts what a run did.
type RunStats struct {
	Dialogues int
	Skipped   int
	Evicted   int
	Succeeded int
	Exhausted int
	Attempts  int
}

// Runner applies an Assigner to every dialogue of a dataset and persists after each one, so an
// interrupted run can be resumed from the store.
type Runner struct {
	Assigner *Assigner
	Store    Store

	// MaxDialogues stops the run after that many dialogues, counted in grouping order including
	// skipped ones. 0 means no limit.
	MaxDialogues int

	Log      logrus.FieldLogger
	Progress Progress
}

// Run processes records. summaries may be nil. A returned error is fatal: the dialogue in flight
// has not been written and the store holds whatever was persisted before it.
func (r *Runner) Run(ctx context.Context, records []UtteranceRecord, summaries SummarySource) (RunStats, error) {
	var stats RunStats
	log := r.Log
	if log == nil {
		log = logging.Discard()
	}
	progress := r.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	if _, err := r.Store.Load(ctx); err != nil {
		return stats, fmt.Errorf("load results: %w", err)
	}

	total := CountDialogues(records)
	if r.MaxDialogues > 0 && total > r.MaxDialogues {
		total = r.MaxDialogues
	}
	progress.Start(total)
	defer progress.Finish()

	for _, d := range GroupDialogues(records) {
		if r.MaxDialogues > 0 && stats.Dialogues >= r.MaxDialogues {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Dialogues++
		dlog := log.WithField("dialogue_id", d.ID)

		switch r.Store.Status(d.ID) {
		case StatusComplete:
			stats.Skipped++
			dlog.Debug("already labeled, skipping")
			progress.Advance(OutcomeSkipped)
			continue
		case StatusFailed:
			stats.Evicted++
			dlog.Info("previous attempt failed, reprocessing")
			r.Store.Evict(d.ID)
		}

		var summary *ConnectionSummary
		if summaries != nil {
			summary = summaries.SummaryFor(d)
		}

		out, err := r.Assigner.Assign(ctx, d, summary)
		if err != nil {
			return stats, err
		}
		stats.Attempts += out.Attempts
		if out.State == StateSucceeded {
			stats.Succeeded++
		} else {
			stats.Exhausted++
		}

		r.Store.Upsert(d.ID, out.Records)
		if err := r.Store.Persist(ctx); err != nil {
			return stats, fmt.Errorf("persist dialogue %d: %w", d.ID, err)
		}
		progress.Advance(out.State.String())
	}
	return stats, nil
}
