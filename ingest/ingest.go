/*
Package ingest parses an uploaded DSP sheet into clean staffing rows.

LAYOUT:
  No header row is trusted. Columns are addressed by position:

    A ordinal        E corps              I NCOs         M remarks
    B title          F professional field J enlisted
    C grade          G specialization     K civilians
    D rank           H officers           L total

  A sheet must reach column L; remarks may be absent.

CLEANING:
  - titles are normalized (NFKC, trimmed, lower-cased, whitespace collapsed)
  - rows with an empty title are dropped
  - header and footer artifacts are dropped: the column-number row ("2"),
    the spaced "J A B A T A N" header, "JUMLAH" sum rows, "FUNGSIONAL"
    section markers, stray backticks, and rows whose officer/NCO cells
    carry the "P A N G K A T" rank header, and rows whose enlisted cell
    is a run of blanks (the sheet template's padded filler lines)
  - blank or non-numeric counts become 0

FORMATS:
  Chosen by file extension through a Registry (xlsx, xlsm, csv).
*/
package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/dsp-reconciler/staffing"
)

const (
	colOrdinal = iota
	colTitle
	colGrade
	colRank
	colCorps
	colField
	colSpecialization
	colOfficers
	colNCOs
	colEnlisted
	colCivilians
	colTotal
	colRemarks
)

// RequiredColumns is the minimum sheet width (through the total column).
const RequiredColumns = colTotal + 1

var noiseTitles = map[string]struct{}{
	"`":             {},
	"2":             {},
	"j a b a t a n": {},
	"jumlah":        {},
	"fungsional":    {},
}

var rankHeaders = map[string]struct{}{
	"P A N G K A T": {},
	"PANGKAT":       {},
}

// Ingestor parses DSP files.
type Ingestor struct {
	registry *Registry
}

// New returns an Ingestor over reg, or DefaultRegistry when reg is nil.
func New(reg *Registry) *Ingestor {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Ingestor{registry: reg}
}

// Parse reads the file named name from r. Every failure is an *IngestError.
func (in *Ingestor) Parse(name string, r io.Reader) ([]staffing.Row, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	reader, ok := in.registry.Get(format)
	if !ok {
		return nil, &staffing.IngestError{
			File: name,
			Err:  fmt.Errorf("%w: %q", staffing.ErrUnsupportedFormat, format),
		}
	}

	records, err := reader.ReadRows(r)
	if err != nil {
		return nil, &staffing.IngestError{File: name, Err: err}
	}

	if w := width(records); w < RequiredColumns {
		return nil, &staffing.IngestError{
			File: name,
			Err:  fmt.Errorf("%w: got %d, need %d", staffing.ErrTooFewColumns, w, RequiredColumns),
		}
	}

	return Rows(records), nil
}

// Rows converts raw records into cleaned rows. Line numbers are 1-based
// positions in records.
func Rows(records [][]string) []staffing.Row {
	rows := make([]staffing.Row, 0, len(records))
	for i, rec := range records {
		cell := func(c int) string {
			if c < len(rec) {
				return rec[c]
			}
			return ""
		}

		title := staffing.NormalizeTitle(cell(colTitle))
		if title == "" || isNoiseTitle(title) {
			continue
		}
		if isRankHeader(cell(colOfficers)) || isRankHeader(cell(colNCOs)) {
			continue
		}
		if isBlankRun(cell(colEnlisted)) {
			continue
		}

		rows = append(rows, staffing.Row{
			Line:              i + 1,
			Ordinal:           staffing.ParseOrdinal(cell(colOrdinal)),
			Title:             title,
			Grade:             staffing.NormalizeText(cell(colGrade)),
			Rank:              staffing.NormalizeText(cell(colRank)),
			Corps:             staffing.NormalizeText(cell(colCorps)),
			ProfessionalField: staffing.NormalizeText(cell(colField)),
			Specialization:    staffing.NormalizeText(cell(colSpecialization)),
			Counts: staffing.Counts{
				Officers:  parseCount(cell(colOfficers)),
				NCOs:      parseCount(cell(colNCOs)),
				Enlisted:  parseCount(cell(colEnlisted)),
				Civilians: parseCount(cell(colCivilians)),
				Total:     parseCount(cell(colTotal)),
			},
			Remarks: staffing.NormalizeText(cell(colRemarks)),
		})
	}
	return rows
}

// Stamp copies the request context onto every row.
func Stamp(rows []staffing.Row, ctx staffing.Context) []staffing.Row {
	for i := range rows {
		rows[i].Context = ctx
	}
	return rows
}

func width(records [][]string) int {
	w := 0
	for _, rec := range records {
		if len(rec) > w {
			w = len(rec)
		}
	}
	return w
}

func isNoiseTitle(title string) bool {
	_, ok := noiseTitles[title]
	return ok
}

func isRankHeader(s string) bool {
	_, ok := rankHeaders[strings.ToUpper(staffing.NormalizeText(s))]
	return ok
}

// isBlankRun reports a non-empty cell made only of whitespace. An empty
// cell is a plain zero count and is kept.
func isBlankRun(s string) bool {
	return s != "" && strings.TrimSpace(s) == ""
}

func parseCount(s string) decimal.Decimal {
	s = staffing.NormalizeText(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
