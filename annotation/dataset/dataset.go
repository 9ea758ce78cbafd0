// Package dataset loads utterance tables (CSV or XLSX) into annotation records.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
)

type column int

const (
	colSerial column = iota
	colDialogue
	colSpeaker
	colUtterance
	colStart
	colEnd
	colEmotion
	colSentiment
	colSeason
	colEpisode
	numColumns
)

// headerAliases maps normalized header names to columns.
var headerAliases = map[string]column{
	"sr no.":      colSerial,
	"sr no":       colSerial,
	"serial":      colSerial,
	"dialogue_id": colDialogue,
	"dialogue id": colDialogue,
	"speaker":     colSpeaker,
	"utterance":   colUtterance,
	"text":        colUtterance,
	"starttime":   colStart,
	"start_time":  colStart,
	"endtime":     colEnd,
	"end_time":    colEnd,
	"emotion":     colEmotion,
	"sentiment":   colSentiment,
	"season":      colSeason,
	"episode":     colEpisode,
}

var required = []struct {
	col  column
	name string
}{
	{colSerial, "Sr No."},
	{colDialogue, "Dialogue_ID"},
	{colSpeaker, "Speaker"},
	{colUtterance, "Utterance"},
}

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// Load reads the utterance table at path. Rows keep file order; blank rows are skipped.
// Duration is set only when the table has both start and end time columns.
func Load(fsys afero.Fs, path string) ([]annotation.UtteranceRecord, error) {
	rows, err := fileutils.ReadTable(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: %s: empty table", path)
	}
	records, err := decode(rows)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return records, nil
}

func decode(rows [][]string) ([]annotation.UtteranceRecord, error) {
	idx := make([]int, numColumns)
	for i := range idx {
		idx[i] = -1
	}
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if c, ok := headerAliases[name]; ok && idx[c] == -1 {
			idx[c] = i
		}
	}
	for _, r := range required {
		if idx[r.col] == -1 {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, r.name)
		}
	}
	timed := idx[colStart] != -1 && idx[colEnd] != -1

	out := make([]annotation.UtteranceRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if fileutils.IsBlankRow(row) {
			continue
		}
		line := i + 2
		get := func(c column) string {
			j := idx[c]
			if j < 0 || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}

		serial, err := fileutils.ParseInt(get(colSerial))
		if err != nil {
			return nil, fmt.Errorf("row %d: Sr No.: %w", line, err)
		}
		dialogueID, err := fileutils.ParseInt(get(colDialogue))
		if err != nil {
			return nil, fmt.Errorf("row %d: Dialogue_ID: %w", line, err)
		}
		rec := annotation.UtteranceRecord{
			Serial:     serial,
			DialogueID: dialogueID,
			Speaker:    get(colSpeaker),
			Text:       cellRaw(row, idx[colUtterance]),
			Emotion:    get(colEmotion),
			Sentiment:  get(colSentiment),
		}
		if s := get(colSeason); s != "" {
			if rec.Season, err = fileutils.ParseInt(s); err != nil {
				return nil, fmt.Errorf("row %d: Season: %w", line, err)
			}
		}
		if s := get(colEpisode); s != "" {
			if rec.Episode, err = fileutils.ParseInt(s); err != nil {
				return nil, fmt.Errorf("row %d: Episode: %w", line, err)
			}
		}
		if timed {
			start, end := get(colStart), get(colEnd)
			if start != "" && end != "" {
				d, err := Duration(start, end)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", line, err)
				}
				rec.Duration = &d
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Duration returns end-start in seconds for two timestamps accepted by ParseTimestamp.
func Duration(start, end string) (float64, error) {
	s, err := ParseTimestamp(start)
	if err != nil {
		return 0, fmt.Errorf("StartTime: %w", err)
	}
	e, err := ParseTimestamp(end)
	if err != nil {
		return 0, fmt.Errorf("EndTime: %w", err)
	}
	return e - s, nil
}

// ParseTimestamp converts "HH:MM:SS,mmm" (comma or dot decimal separator, hours and minutes
// optional) to seconds.
func ParseTimestamp(ts string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(ts), ",", ".")
	if s == "" {
		return 0, errors.New("empty timestamp")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		if last {
			sec, err := strconv.ParseFloat(p, 64)
			if err != nil || sec < 0 {
				return 0, fmt.Errorf("malformed timestamp %q", ts)
			}
			total = total*60 + sec
			break
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed timestamp %q", ts)
		}
		total = total*60 + float64(n)
	}
	return total, nil
}

func cellRaw(row []string, j int) string {
	if j < 0 || j >= len(row) {
		return ""
	}
	return row[j]
}
