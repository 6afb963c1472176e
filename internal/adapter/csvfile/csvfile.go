// Package csvfile reads and writes domain tables as UTF-8 CSV.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("csv has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read parses a CSV stream with a header row into a Table. Header names are
// trimmed, a leading byte order mark is dropped, and short rows are padded
// with empty cells. A repeated header name gets a numeric suffix (Region,
// Region.1) so every cell keeps its own column.
func Read(r io.Reader) (domain.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read csv: %w", err)
	}
	return Parse(data)
}

// Parse is Read over an in-memory buffer.
func Parse(data []byte) (domain.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, ErrNoHeader
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("parse csv header: %w", err)
	}

	t := domain.Table{Columns: uniqueHeader(header)}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("parse csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		row := make(domain.Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) (domain.Table, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied data path
	if err != nil {
		return domain.Table{}, err
	}
	defer f.Close()
	return Read(f)
}

// Write emits t with its header in column order.
func Write(w io.Writer, t domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	return writeRows(cw, t)
}

// WriteRows emits the rows of t in column order without a header, for
// appending to an existing file.
func WriteRows(w io.Writer, t domain.Table) error {
	return writeRows(csv.NewWriter(w), t)
}

func writeRows(cw *csv.Writer, t domain.Table) error {
	rec := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, col := range t.Columns {
			rec[i] = r[col]
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Bytes renders t as a CSV document.
func Bytes(t domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// uniqueHeader trims the header names and suffixes repeats, keeping one column
// per header position.
func uniqueHeader(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", strings.TrimSpace(h), n)
		}
		seen[name] = true
		cols[i] = name
	}
	return cols
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
