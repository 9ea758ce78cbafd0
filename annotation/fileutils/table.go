package fileutils

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// TableFormat is the on-disk layout of a row table.
type TableFormat int

const (
	FormatCSV TableFormat = iota
	FormatXLSX
)

// FormatFor picks the table format from the file extension. Anything that is not .xlsx is CSV.
func FormatFor(path string) TableFormat {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ReadTable returns every row of the table at path, header included. For workbooks only the
// first sheet is read. Rows may be shorter than the header when trailing cells are empty.
func ReadTable(fsys afero.Fs, path string) ([][]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if FormatFor(path) == FormatCSV {
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", path, err)
		}
		return rows, nil
	}

	wb, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer wb.Close()
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s: no sheets", path)
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows %s: %w", path, err)
	}
	return rows, nil
}

// ErrCellTooLong is returned when a cell does not fit in an XLSX cell. excelize would otherwise
// cut it to excelize.TotalCellChars without telling anyone.
var ErrCellTooLong = errors.New("cell exceeds xlsx limit")

// EncodeTable renders rows in the given format.
func EncodeTable(format TableFormat, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	if format == FormatCSV {
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(rows); err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
		return buf.Bytes(), nil
	}

	wb := excelize.NewFile()
	defer wb.Close()
	sheet := wb.GetSheetName(0)
	for i, row := range rows {
		for j, v := range row {
			if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
				name, _ := excelize.CoordinatesToCellName(j+1, i+1)
				return nil, fmt.Errorf("encode cell %s: %d characters, max %d: %w",
					name, n, excelize.TotalCellChars, ErrCellTooLong)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i+1, err)
		}
	}
	if _, err := wb.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTableAtomic encodes rows for path's format and replaces path atomically.
func WriteTableAtomic(fsys afero.Fs, path string, rows [][]string) error {
	data, err := EncodeTable(FormatFor(path), rows)
	if err != nil {
		return err
	}
	return WriteFileAtomic(fsys, path, data, 0o644)
}

// ParseInt parses a table cell as an integer. Whole floats such as "12.0" are accepted since
// spreadsheet tools often write integer columns that way.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// IsBlankRow reports whether every cell of row is empty or whitespace.
func IsBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
