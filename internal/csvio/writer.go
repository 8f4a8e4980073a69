package csvio

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Writer writes rows under a fixed header, flushing after every row so a
// partial run leaves a readable file behind.
type Writer struct {
	f      io.Closer
	w      *csv.Writer
	header []string
}

// Create truncates path and writes header to it.
func Create(path string, header []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: create %s", path)
	}
	w, err := NewWriter(f, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.f = f
	return w, nil
}

// NewWriter writes header to out and returns a Writer over it.
func NewWriter(out io.Writer, header []string) (*Writer, error) {
	w := &Writer{w: csv.NewWriter(out), header: append([]string(nil), header...)}
	if err := w.w.Write(w.header); err != nil {
		return nil, eris.Wrap(err, "csvio: write header")
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return nil, eris.Wrap(err, "csvio: flush header")
	}
	return w, nil
}

// Header returns the output columns.
func (w *Writer) Header() []string {
	out := make([]string, len(w.header))
	copy(out, w.header)
	return out
}

// Write projects row onto the header, writes it, and flushes.
func (w *Writer) Write(row *model.Row) error {
	if err := w.w.Write(row.Values(w.header)); err != nil {
		return eris.Wrap(err, "csvio: write row")
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return eris.Wrap(err, "csvio: flush row")
	}
	return nil
}

// Close flushes and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.w.Flush()
	err := w.w.Error()
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return eris.Wrap(err, "csvio: close")
	}
	return nil
}

// MergeHeader appends the stage columns to the input header, skipping any
// the input already carries.
func MergeHeader(input, columns []string) []string {
	out := append([]string(nil), input...)
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c] = true
	}
	for _, c := range columns {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	return out
}
