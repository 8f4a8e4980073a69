// Package csvio reads company tables from CSV or XLSX and writes enriched
// CSV output one row at a time.
package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/enrich-cli/internal/model"
)

const utf8BOM = "\ufeff"

// Source yields rows of a table in file order.
type Source interface {
	// Header returns the input columns in file order.
	Header() []string
	// Next returns the next row, or io.EOF when the table is exhausted.
	Next() (*model.Row, error)
	Close() error
}

// Open opens path as a table. Files ending in .xlsx are read from their
// first sheet; anything else is parsed as UTF-8 CSV.
func Open(path string) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return openXLSX(path)
	}
	return openCSV(path)
}

type csvSource struct {
	f      *os.File
	r      *csv.Reader
	header []string
}

func openCSV(path string) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open %s", path)
	}

	src, err := newCSVSource(f)
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "csvio: %s", path)
	}
	src.f = f
	return src, nil
}

func newCSVSource(r io.Reader) (*csvSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow ragged rows
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("missing header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &csvSource{r: reader, header: header}, nil
}

func (s *csvSource) Header() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

func (s *csvSource) Next() (*model.Row, error) {
	for {
		record, err := s.r.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, eris.Wrap(err, "csvio: read row")
		}
		if isBlank(record) {
			continue
		}
		return model.NewRow(s.header, record), nil
	}
}

func (s *csvSource) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}

type xlsxSource struct {
	header []string
	rows   [][]string
	pos    int
}

func openXLSX(path string) (*xlsxSource, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("csvio: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("csvio: %s: missing header row", path)
	}

	src := &xlsxSource{header: rowToStrings(sheet.Rows[0])}
	for i := range src.header {
		src.header[i] = strings.TrimSpace(src.header[i])
	}
	for _, row := range sheet.Rows[1:] {
		src.rows = append(src.rows, rowToStrings(row))
	}
	return src, nil
}

func (s *xlsxSource) Header() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

func (s *xlsxSource) Next() (*model.Row, error) {
	for s.pos < len(s.rows) {
		record := s.rows[s.pos]
		s.pos++
		if isBlank(record) {
			continue
		}
		return model.NewRow(s.header, record), nil
	}
	return nil, io.EOF
}

func (s *xlsxSource) Close() error { return nil }

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
