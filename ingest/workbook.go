package ingest

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"
)

var errNoSheets = errors.New("workbook has no sheets")

// Workbook reads the first sheet of an Office Open XML workbook.
type Workbook struct {
	format string
}

func NewWorkbook(format string) *Workbook { return &Workbook{format: format} }

func (w *Workbook) Format() string { return w.format }

// ReadRows returns raw cell values so numbers are not reformatted by the
// sheet's display format.
func (w *Workbook) ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}
