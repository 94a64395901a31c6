package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
)

// CSV reads comma separated exports of a DSP sheet.
type CSV struct{}

func NewCSV() *CSV { return &CSV{} }

func (c *CSV) Format() string { return "csv" }

func (c *CSV) ReadRows(r io.Reader) ([][]string, error) {
	br := stripUTF8BOM(bufio.NewReader(r))

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}
