package annotation

import "iter"

// GroupDialogues partitions records into dialogues. Dialogues are yielded in the order their id
// first appears in records; utterances keep their input order. Every range over the returned
// sequence regroups from scratch, so it can be iterated more than once.
func GroupDialogues(records []UtteranceRecord) iter.Seq2[int, Dialogue] {
	return func(yield func(int, Dialogue) bool) {
		order := make([]int, 0, 64)
		groups := make(map[int][]UtteranceRecord)
		for _, r := range records {
			if _, ok := groups[r.DialogueID]; !ok {
				order = append(order, r.DialogueID)
			}
			groups[r.DialogueID] = append(groups[r.DialogueID], r)
		}
		for _, id := range order {
			if !yield(id, Dialogue{ID: id, Utterances: groups[id]}) {
				return
			}
		}
	}
}

// CountDialogues returns the number of distinct dialogue ids in records.
func CountDialogues(records []UtteranceRecord) int {
	seen := make(map[int]struct{})
	for _, r := range records {
		seen[r.DialogueID] = struct{}{}
	}
	return len(seen)
}
