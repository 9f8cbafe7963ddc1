// Package table implements the delimited column-oriented text table used for
// both the live capture output and the aggregated output. Columns may be
// ragged; a cell past a column's length renders as an empty cell, never a
// zero. Every cell is followed by the delimiter and one newline terminates
// every row, including the last.
package table

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/c360/motionlog/errors"
)

// Delimiter separates cells on disk.
const Delimiter = ','

// Column is one labeled, ordered sequence of text cells. The label is the
// header row; Cells holds only data rows.
type Column struct {
	Label string
	Cells []string
}

// Table is an ordered sequence of possibly ragged columns.
type Table struct {
	Columns []Column
}

// Rows returns the length of the longest column.
func (t *Table) Rows() int {
	rows := 0
	for _, c := range t.Columns {
		if len(c.Cells) > rows {
			rows = len(c.Cells)
		}
	}
	return rows
}

// FormatFloat renders a float64 the way every table producer in this system
// does, so values written here parse back to the identical float64.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseFloat is the inverse of FormatFloat.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// Write serializes the table: one header line, then one line per row index up
// to the longest column, short columns rendering empty cells between two
// delimiters.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, c := range t.Columns {
		bw.WriteString(c.Label)
		bw.WriteByte(Delimiter)
	}
	bw.WriteByte('\n')

	rows := t.Rows()
	for r := 0; r < rows; r++ {
		for _, c := range t.Columns {
			if r < len(c.Cells) {
				bw.WriteString(c.Cells[r])
			}
			bw.WriteByte(Delimiter)
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return errors.WrapFatal(err, "Table", "Write", "flushing rows")
	}
	return nil
}

// Read parses a serialized table back into columns. Short data lines leave
// the remaining cells of that row empty, so reading a ragged table yields a
// rectangular grid padded with empty cells; consumers treat empty time cells
// as absent rows.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewScanner(r)
	br.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !br.Scan() {
		if err := br.Err(); err != nil {
			return nil, errors.WrapFatal(err, "Table", "Read", "reading header")
		}
		return nil, errors.WrapFatal(
			fmt.Errorf("empty table: %w", errors.ErrInvalidData),
			"Table", "Read", "reading header")
	}

	labels := splitRow(br.Text())
	t := &Table{Columns: make([]Column, len(labels))}
	for i, label := range labels {
		t.Columns[i].Label = label
	}

	for br.Scan() {
		line := br.Text()
		if line == "" {
			continue
		}
		cells := splitRow(line)
		for i := range t.Columns {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			t.Columns[i].Cells = append(t.Columns[i].Cells, cell)
		}
	}
	if err := br.Err(); err != nil {
		return nil, errors.WrapFatal(err, "Table", "Read", "reading rows")
	}

	return t, nil
}

// splitRow splits one serialized line into cells, dropping the empty field
// produced by the trailing delimiter.
func splitRow(line string) []string {
	cells := strings.Split(line, string(Delimiter))
	if len(cells) > 0 && strings.HasSuffix(line, string(Delimiter)) {
		cells = cells[:len(cells)-1]
	}
	return cells
}

// WriteFile serializes the table to path. Paths ending in ".gz" are written
// gzip-compressed.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapFatal(err, "Table", "WriteFile", "creating output file")
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := t.Write(w); err != nil {
		return err
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.WrapFatal(err, "Table", "WriteFile", "closing gzip stream")
		}
	}
	if err := f.Close(); err != nil {
		return errors.WrapFatal(err, "Table", "WriteFile", "closing output file")
	}
	return nil
}

// ReadFile parses a table from path, transparently decompressing ".gz" files.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Table", "ReadFile", "opening input file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.WrapFatal(err, "Table", "ReadFile", "opening gzip stream")
		}
		defer gz.Close()
		r = gz
	}

	return Read(r)
}
