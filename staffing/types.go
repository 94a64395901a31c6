/*
Package staffing provides the core model of the DSP reconciliation engine.

PURPOSE:
  A DSP (authorized staffing table) is uploaded as a spreadsheet. Every line
  names a position with its authorized headcounts. The personnel system keeps
  a reference structure ("SISFOPERS") of units, sub-units and the positions
  defined on them. This package holds the value types shared by the
  ingestor, the reconciler and the stores.

KEY CONCEPTS IN THIS FILE (types.go):
  - Row: one ingested DSP line plus the request context stamped on it
  - StructureNode: one reference catalog position entry (a match candidate)
  - ReconciledRow: a Row annotated with the node it bound to (if any)
  - Key: (decree number, unit id, source file), the replacement scope

DESIGN PRINCIPLES:
  1. Explicit fields: bindings set named fields, never ad-hoc keys
  2. Precision: headcounts are decimal.Decimal, canonical counts NullDecimal
  3. Unmatched is data: MatchStatus carries it, no error is raised

SEE ALSO:
  - errors.go: IngestError, CatalogError, StoreError
  - ordinal.go: dotted hierarchical numbering
  - store.go: Catalog and ReconciliationStore interfaces
*/
package staffing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// NodeKind tells whether a catalog entry belongs to a unit or a sub-unit.
type NodeKind string

const (
	KindUnit    NodeKind = "unit"
	KindSubUnit NodeKind = "sub-unit"
)

// MatchStatus is the persisted match flag: 0 unmatched, 1 matched.
type MatchStatus int

const (
	Unmatched MatchStatus = 0
	Matched   MatchStatus = 1
)

// =============================================================================
// COUNTS
// =============================================================================

// Counts holds headcounts per personnel category.
type Counts struct {
	Officers  decimal.Decimal
	NCOs      decimal.Decimal
	Enlisted  decimal.Decimal
	Civilians decimal.Decimal
	Total     decimal.Decimal
}

// BoundCounts are the canonical counts copied from a bound node.
// They stay null while a row is unmatched.
type BoundCounts struct {
	Officers  decimal.NullDecimal
	NCOs      decimal.NullDecimal
	Enlisted  decimal.NullDecimal
	Civilians decimal.NullDecimal
	Total     decimal.NullDecimal
}

func boundFrom(c Counts) BoundCounts {
	return BoundCounts{
		Officers:  decimal.NewNullDecimal(c.Officers),
		NCOs:      decimal.NewNullDecimal(c.NCOs),
		Enlisted:  decimal.NewNullDecimal(c.Enlisted),
		Civilians: decimal.NewNullDecimal(c.Civilians),
		Total:     decimal.NewNullDecimal(c.Total),
	}
}

// IsNull reports whether no canonical count was copied.
func (b BoundCounts) IsNull() bool {
	return !b.Officers.Valid && !b.NCOs.Valid && !b.Enlisted.Valid &&
		!b.Civilians.Valid && !b.Total.Valid
}

// =============================================================================
// REQUEST CONTEXT
// =============================================================================

// Context is what the caller states about where the uploaded DSP belongs.
// Every ingested row is stamped with it.
type Context struct {
	DecreeNumber string
	SourceFile   string

	CommandID   string
	CommandName string

	UnitID   string
	UnitName string

	SubUnitID         string
	SubUnitName       string
	SubUnitParentID   string
	SubUnitParentName string
	SubUnitLevel1ID   string
	SubUnitLevel1Name string
}

// Key returns the replacement scope of a reconciliation run.
func (c Context) Key() Key {
	return Key{DecreeNumber: c.DecreeNumber, UnitID: c.UnitID, SourceFile: c.SourceFile}
}

// BindingLevel identifies how deep in the org tree the rows are stated.
type BindingLevel int

const (
	BindingNone BindingLevel = iota
	BindingUnit
	BindingSubUnit
	BindingDeep
)

func (l BindingLevel) String() string {
	switch l {
	case BindingUnit:
		return "unit"
	case BindingSubUnit:
		return "sub-unit"
	case BindingDeep:
		return "deep"
	default:
		return "none"
	}
}

// Binding returns the binding level implied by the context and the
// structure id rows should bind under. The three levels are mutually
// exclusive, so at most one applies.
func (c Context) Binding() (BindingLevel, string) {
	switch {
	case c.SubUnitLevel1ID != "":
		return BindingDeep, c.SubUnitLevel1ID
	case c.UnitID != "" && c.SubUnitParentID != "" && c.SubUnitID != "":
		return BindingSubUnit, c.SubUnitID
	case c.UnitID != "" && c.SubUnitParentID == "" && c.SubUnitID == "":
		return BindingUnit, c.UnitID
	default:
		return BindingNone, ""
	}
}

// Key scopes stored reconciliations. Only the latest run per key survives.
type Key struct {
	DecreeNumber string
	UnitID       string
	SourceFile   string
}

// =============================================================================
// ROWS
// =============================================================================

// Row is one authorized position line from an uploaded DSP.
type Row struct {
	Line    int // 1-based line in the source sheet
	Ordinal Ordinal
	Title   string

	Grade             string
	Rank              string
	Corps             string
	ProfessionalField string
	Specialization    string
	Counts
	Remarks string

	Context
}

// IsContinuation reports whether the row carries no numbering of its own.
func (r Row) IsContinuation() bool {
	return r.Ordinal.IsZero()
}

// StructureNode is one candidate reference catalog position entry.
// NodeID is the structure (unit or sub-unit) the position is defined on.
type StructureNode struct {
	PositionID string
	NodeID     string
	Kind       NodeKind
	NodeName   string
	ParentID   string // "" for unit-level entries
	Title      string // normalized
	TitleLong  string
	Counts
}

// ReconciledRow is a Row annotated with its binding.
type ReconciledRow struct {
	Row

	BoundNodeID          string
	BoundTitleLong       string
	Bound                BoundCounts
	BoundParentID        string
	BoundSubUnitID       string
	MatchStatus          MatchStatus
	BoundAncestorOrdinal Ordinal
}

// NewReconciledRow wraps a row in the unmatched state.
func NewReconciledRow(r Row) ReconciledRow {
	return ReconciledRow{Row: r, MatchStatus: Unmatched}
}

// Bind stamps the canonical fields of n onto the row.
func (r *ReconciledRow) Bind(n StructureNode) {
	r.BoundNodeID = n.NodeID
	r.BoundTitleLong = n.TitleLong
	r.Bound = boundFrom(n.Counts)
	r.BoundParentID = n.ParentID
	r.BoundSubUnitID = n.NodeID
	r.MatchStatus = Matched
}

// Matched reports whether the row bound to a node.
func (r ReconciledRow) Matched() bool {
	return r.MatchStatus == Matched
}
