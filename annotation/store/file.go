package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
)

// Header is the column layout written by FileStore.
var Header = []string{"serial", "speaker", "dialogue_id", "role", "justification", "prompt", "raw_response"}

// LegacyHeader is the column layout of result files written by earlier tooling. It is accepted
// on load; files are always rewritten with Header.
var LegacyHeader = []string{"Sr No.", "Speaker", "Dialogue_ID", "Role", "Justification", "Prompt", "Response"}

// FileStore keeps results in a single CSV or XLSX file, chosen by extension. Persist rewrites the
// whole file atomically.
type FileStore struct {
	Collection

	fs   afero.Fs
	path string
}

func NewFileStore(fsys afero.Fs, path string) *FileStore {
	return &FileStore{fs: fsys, path: filepath.Clean(path)}
}

func (s *FileStore) Path() string { return s.path }

// Load reads the result file. A missing file is created with only the header row.
func (s *FileStore) Load(ctx context.Context) ([]annotation.RoleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fileutils.FileExists(s.fs, s.path) {
		if err := fileutils.WriteTableAtomic(s.fs, s.path, [][]string{Header}); err != nil {
			return nil, fmt.Errorf("FileStore: create %s: %w", s.path, err)
		}
		s.Reset(nil)
		return nil, nil
	}

	rows, err := fileutils.ReadTable(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("FileStore: %w", err)
	}
	records, err := decodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("FileStore: %s: %w", s.path, err)
	}
	s.Reset(records)
	return s.Records(), nil
}

func (s *FileStore) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := s.Records()
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, Header)
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Serial),
			r.Speaker,
			strconv.Itoa(r.DialogueID),
			string(r.Role),
			r.Justification,
			r.Prompt,
			r.RawResponse,
		})
	}
	if err := fileutils.WriteTableAtomic(s.fs, s.path, rows); err != nil {
		return fmt.Errorf("FileStore: persist %s: %w", s.path, err)
	}
	s.MarkClean()
	return nil
}

// ErrUnknownHeader is returned when a result file has neither the current nor the legacy header.
var ErrUnknownHeader = errors.New("unrecognized result header")

func decodeRows(rows [][]string) ([]annotation.RoleRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	out := make([]annotation.RoleRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if fileutils.IsBlankRow(row) {
			continue
		}
		line := i + 2
		serial, err := fileutils.ParseInt(cell(row, cols[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: serial: %w", line, err)
		}
		dialogueID, err := fileutils.ParseInt(cell(row, cols[2]))
		if err != nil {
			return nil, fmt.Errorf("row %d: dialogue id: %w", line, err)
		}
		out = append(out, annotation.RoleRecord{
			Serial:        serial,
			Speaker:       cell(row, cols[1]),
			DialogueID:    dialogueID,
			Role:          annotation.Role(cell(row, cols[3])),
			Justification: cell(row, cols[4]),
			Prompt:        cell(row, cols[5]),
			RawResponse:   cell(row, cols[6]),
		})
	}
	return out, nil
}

// columnIndex maps each Header position to its column in header, matching either layout by name.
func columnIndex(header []string) ([]int, error) {
	names := make(map[string]int, len(header))
	for i, h := range header {
		names[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, layout := range [][]string{Header, LegacyHeader} {
		idx := make([]int, len(layout))
		ok := true
		for i, name := range layout {
			j, found := names[name]
			if !found {
				ok = false
				break
			}
			idx[i] = j
		}
		if ok {
			return idx, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHeader, header)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
