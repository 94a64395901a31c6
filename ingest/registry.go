package ingest

import (
	"io"
	"strings"
)

// SheetReader turns a tabular file into raw cell records.
type SheetReader interface {
	Format() string
	ReadRows(r io.Reader) ([][]string, error)
}

// Registry maps file extensions to readers.
type Registry struct {
	byFormat map[string]SheetReader
}

func NewRegistry(readers ...SheetReader) *Registry {
	reg := &Registry{byFormat: map[string]SheetReader{}}
	for _, r := range readers {
		reg.Register(r)
	}
	return reg
}

// DefaultRegistry knows xlsx, xlsm and csv.
func DefaultRegistry() *Registry {
	return NewRegistry(NewWorkbook("xlsx"), NewWorkbook("xlsm"), NewCSV())
}

func (r *Registry) Register(sr SheetReader) {
	r.byFormat[strings.ToLower(sr.Format())] = sr
}

func (r *Registry) Get(format string) (SheetReader, bool) {
	sr, ok := r.byFormat[strings.ToLower(format)]
	return sr, ok
}

// Formats lists the registered extensions.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.byFormat))
	for f := range r.byFormat {
		out = append(out, f)
	}
	return out
}
