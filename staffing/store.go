/*
store.go - Persistence interfaces for the reference catalog and reconciliations

PURPOSE:
  Defines the interface between the reconciliation engine and the database.
  The engine only reads the catalog; it writes reconciliations through a
  single replace operation.

KEY INTERFACES:
  Catalog:             Candidate set for one unit (read-only)
  ReferenceChecker:    Command/unit existence checks before a run
  CatalogLoader:       Bulk upsert of catalog records (maintenance only)
  ReconciliationStore: Atomic replace + list by Key
  FileStore:           Keeps a copy of every uploaded DSP file

REPLACE CONTRACT:
  Replace() deletes every stored row for the key and inserts the new batch
  in one transaction. Either both happen or neither does. A failed replace
  returns *StoreError and leaves the previous reconciliation intact.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - staffing/store/memory.go: In-memory for testing

SEE ALSO:
  - reconcile/service.go: Uses these interfaces
*/
package staffing

import (
	"context"
	"io"
)

// =============================================================================
// CATALOG - Read access to the reference structure
// =============================================================================

// Catalog returns candidate structure nodes for a unit.
type Catalog interface {
	// CandidatesForUnit returns unit-level and (transitive) sub-unit-level
	// active position entries, ordered by ParentID ascending.
	CandidatesForUnit(ctx context.Context, unitID string) ([]StructureNode, error)
}

// ReferenceChecker verifies that the stated context exists in the catalog.
type ReferenceChecker interface {
	CommandExists(ctx context.Context, commandID string) (bool, error)
	// UnitExists checks the unit, and that it belongs to commandID when
	// commandID is non-empty.
	UnitExists(ctx context.Context, unitID, commandID string) (bool, error)
}

// CatalogLoader upserts catalog records.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, snap CatalogSnapshot) error
}

// =============================================================================
// CATALOG RECORDS
// =============================================================================

// Command is a top-level command ("kotama") owning units.
type Command struct {
	ID     string
	Name   string
	Active bool
}

// Unit is a work unit ("satuan kerja").
type Unit struct {
	ID        string
	CommandID string
	Name      string
	Active    bool
}

// SubUnit nests under a unit (ParentID "") or under another sub-unit.
type SubUnit struct {
	ID       string
	UnitID   string
	ParentID string
	Name     string
	Active   bool
}

// Position is a catalog position defined on a unit or sub-unit.
type Position struct {
	ID          string
	StructureID string // unit id or sub-unit id
	Title       string
	TitleLong   string
	Counts
	Active bool
}

// CatalogSnapshot is a batch of catalog records to load.
type CatalogSnapshot struct {
	Commands  []Command
	Units     []Unit
	SubUnits  []SubUnit
	Positions []Position
}

// =============================================================================
// RECONCILIATION STORE
// =============================================================================

// ReconciliationStore persists reconciliation output.
type ReconciliationStore interface {
	// Replace swaps everything stored under key for raw and rows, atomically.
	Replace(ctx context.Context, key Key, raw []Row, rows []ReconciledRow) error

	// List returns the stored reconciled rows for key in source line order.
	List(ctx context.Context, key Key) ([]ReconciledRow, error)
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps uploaded files so a run can be traced back to its source.
type FileStore interface {
	// Save writes r under a sanitized form of name and returns the stored
	// path. The path is unique to the call; concurrent uploads sharing a
	// name must not see each other's content.
	Save(name string, r io.Reader) (string, error)
	Open(path string) (io.ReadCloser, error)
}
