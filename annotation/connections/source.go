package connections

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
)

// Index serves precomputed summaries by dialogue id. Dialogues not covered by any entry get the
// fallback summary, which may be nil.
type Index struct {
	byDialogue map[int]*annotation.ConnectionSummary
	fallback   *annotation.ConnectionSummary
}

var _ annotation.SummarySource = (*Index)(nil)

func NewIndex(entries []Entry) *Index {
	ix := &Index{byDialogue: make(map[int]*annotation.ConnectionSummary)}
	for i := range entries {
		s := &entries[i].Summary
		for _, id := range entries[i].Dialogues {
			ix.byDialogue[id] = s
		}
		if entries[i].Scope == ScopeDataset {
			ix.fallback = s
		}
	}
	return ix
}

// Static returns an Index that serves s for every dialogue.
func Static(s *annotation.ConnectionSummary) *Index {
	return &Index{fallback: s}
}

func (ix *Index) SummaryFor(d annotation.Dialogue) *annotation.ConnectionSummary {
	if s, ok := ix.byDialogue[d.ID]; ok {
		return s
	}
	return ix.fallback
}

// LoadFile reads summaries written by WriteFile (a JSON array of entries) or a single summary
// object, which then applies to every dialogue.
func LoadFile(fsys afero.Fs, path string) (*Index, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("connections: read %s: %w", path, err)
	}
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("connections: decode %s: %w", path, err)
		}
		return NewIndex(entries), nil
	}
	var s annotation.ConnectionSummary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("connections: decode %s: %w", path, err)
	}
	return Static(&s), nil
}

// WriteFile stores entries as indented JSON, atomically.
func WriteFile(fsys afero.Fs, path string, entries []Entry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("connections: encode: %w", err)
	}
	b = append(b, '\n')
	if err := fileutils.WriteFileAtomic(fsys, path, b, 0o644); err != nil {
		return fmt.Errorf("connections: %w", err)
	}
	return nil
}
