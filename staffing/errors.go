/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. IngestError  - the uploaded file cannot be read as a DSP sheet.
                    Fatal to the run, not retried.
  2. CatalogError - the reference catalog query failed.
                    Fatal to the run, retryable by the caller.
  3. StoreError   - persisting a replacement failed. The whole replace
                    was rolled back; retry it as a unit.

  A row that does not match any catalog node is NOT an error. It is
  reported as data (MatchStatus = Unmatched).

USAGE:
  var ingestErr *staffing.IngestError
  if errors.As(err, &ingestErr) { ... }
  if errors.Is(err, staffing.ErrCatalog) { ... }

SEE ALSO:
  - ingest/: returns IngestError
  - store/sqlite/: returns CatalogError and StoreError
*/
package staffing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIngest, ErrCatalog and ErrStore classify the structured errors below.
	ErrIngest  = errors.New("ingest failed")
	ErrCatalog = errors.New("catalog query failed")
	ErrStore   = errors.New("store failed")

	// ErrUnsupportedFormat is returned for file types no parser handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrTooFewColumns is returned when a sheet does not reach the total column.
	ErrTooFewColumns = errors.New("sheet has fewer than the required columns")

	// ErrInvalidCandidates is returned when a candidate set holds a node
	// without a structure id.
	ErrInvalidCandidates = errors.New("candidate set contains a node with empty id")

	// ErrUnitNotFound is returned when the requested unit is not in the catalog
	// (or not under the requested command).
	ErrUnitNotFound = errors.New("unit not found")

	// ErrCommandNotFound is returned when the requested command is not in the catalog.
	ErrCommandNotFound = errors.New("command not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IngestError reports a malformed or unreadable source file.
type IngestError struct {
	File string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %q: %v", e.File, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

func (e *IngestError) Is(target error) bool { return target == ErrIngest }

// CatalogError reports a failed reference catalog query.
type CatalogError struct {
	UnitID string
	Err    error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog for unit %q: %v", e.UnitID, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

func (e *CatalogError) Is(target error) bool { return target == ErrCatalog }

// StoreError reports a failed persistence operation.
type StoreError struct {
	Op  string // e.g. "replace", "list"
	Key Key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s (decree %q, unit %q, file %q): %v",
		e.Op, e.Key.DecreeNumber, e.Key.UnitID, e.Key.SourceFile, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCatalog) || errors.Is(err, ErrStore)
}

// IsClientError returns true if the error is due to the uploaded input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrIngest) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrTooFewColumns)
}

// IsNotFound returns true if the error indicates a missing reference record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound) ||
		errors.Is(err, ErrCommandNotFound)
}
