// Package store persists role records between runs. Every implementation keeps the full result
// set in a Collection and differs only in where Persist writes it.
package store

import (
	"cmp"
	"slices"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
)

var (
	_ annotation.Store = (*FileStore)(nil)
	_ annotation.Store = (*PostgresStore)(nil)
)

// Collection is the in-memory result set: at most one record set per dialogue id, records kept
// stably sorted by serial.
type Collection struct {
	records []annotation.RoleRecord
	dirty   map[int]struct{}
}

// Reset replaces the whole state with records and clears the change set.
func (c *Collection) Reset(records []annotation.RoleRecord) {
	c.records = slices.Clone(records)
	sortBySerial(c.records)
	c.dirty = nil
}

// Status reports the dialogue as complete only if it has records and none is an error record.
func (c *Collection) Status(dialogueID int) annotation.DialogueStatus {
	found := false
	for _, r := range c.records {
		if r.DialogueID != dialogueID {
			continue
		}
		if r.IsError() {
			return annotation.StatusFailed
		}
		found = true
	}
	if !found {
		return annotation.StatusAbsent
	}
	return annotation.StatusComplete
}

func (c *Collection) Evict(dialogueID int) {
	before := len(c.records)
	c.records = slices.DeleteFunc(c.records, func(r annotation.RoleRecord) bool {
		return r.DialogueID == dialogueID
	})
	if len(c.records) != before {
		c.markDirty(dialogueID)
	}
}

// Upsert replaces every record of dialogueID with records.
func (c *Collection) Upsert(dialogueID int, records []annotation.RoleRecord) {
	c.records = slices.DeleteFunc(c.records, func(r annotation.RoleRecord) bool {
		return r.DialogueID == dialogueID
	})
	c.records = append(c.records, records...)
	sortBySerial(c.records)
	c.markDirty(dialogueID)
}

// Records returns a copy of the current state in serial order.
func (c *Collection) Records() []annotation.RoleRecord {
	return slices.Clone(c.records)
}

// DialogueRecords returns the records of one dialogue in serial order.
func (c *Collection) DialogueRecords(dialogueID int) []annotation.RoleRecord {
	var out []annotation.RoleRecord
	for _, r := range c.records {
		if r.DialogueID == dialogueID {
			out = append(out, r)
		}
	}
	return out
}

// Changed returns the dialogue ids touched since the last Reset or MarkClean, sorted.
func (c *Collection) Changed() []int {
	out := make([]int, 0, len(c.dirty))
	for id := range c.dirty {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (c *Collection) MarkClean() { c.dirty = nil }

func (c *Collection) markDirty(id int) {
	if c.dirty == nil {
		c.dirty = make(map[int]struct{})
	}
	c.dirty[id] = struct{}{}
}

func sortBySerial(records []annotation.RoleRecord) {
	slices.SortStableFunc(records, func(a, b annotation.RoleRecord) int {
		return cmp.Compare(a.Serial, b.Serial)
	})
}

// Summary counts dialogues by status.
type Summary struct {
	Complete int
	Failed   []int
	Records  int
}

// Summarize groups records by dialogue and reports which dialogues hold error records.
func Summarize(records []annotation.RoleRecord) Summary {
	var (
		order  []int
		failed = make(map[int]bool)
	)
	for _, r := range records {
		if _, seen := failed[r.DialogueID]; !seen {
			order = append(order, r.DialogueID)
			failed[r.DialogueID] = false
		}
		if r.IsError() {
			failed[r.DialogueID] = true
		}
	}
	s := Summary{Records: len(records)}
	for _, id := range order {
		if failed[id] {
			s.Failed = append(s.Failed, id)
		} else {
			s.Complete++
		}
	}
	slices.Sort(s.Failed)
	return s
}
