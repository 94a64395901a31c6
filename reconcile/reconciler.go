/*
reconciler.go - Row-by-row binding of DSP rows to catalog nodes

PURPOSE:
  Given the ingested rows of one upload and the candidate set of the unit,
  decide for each row which single catalog node (if any) it binds to.

ORDER MATTERS:
  Rows are processed in input order. Each row can look back at the rows
  already reconciled:
  - continuation rows (no ordinal) anchor on the nearest numbered row above
  - unit-level rows that resolve nothing else anchor on their dotted
    parent row ("1.2" for "1.2.3") or the most recently matched row

BINDING CONTEXT:
  unit      unit id only           -> direct id match, ancestor walk, anchor
  sub-unit  unit + parent + sub    -> direct id match, ancestor walk
  deep      level-1 id             -> direct id match, ancestor walk

  The three contexts are mutually exclusive (see staffing.Context.Binding).

NUMBERING:
  When no row of the sheet carries an ordinal the continuation logic has no
  anchors, so every row is reconciled on its own.

SEE ALSO:
  - resolver.go: ancestor walk
  - service.go: Preview / Commit
*/
package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/dsp-reconciler/staffing"
)

type reconciler struct {
	candidates []staffing.StructureNode
	ancestry   *Ancestry
	numbered   bool
}

// Reconcile binds rows to candidates. An unmatched row is not an error; the
// only failure is a structurally invalid candidate set.
func Reconcile(rows []staffing.Row, candidates []staffing.StructureNode) ([]staffing.ReconciledRow, error) {
	normalized := make([]staffing.StructureNode, len(candidates))
	for i, n := range candidates {
		if n.NodeID == "" {
			return nil, fmt.Errorf("%w: position %q (%q)", staffing.ErrInvalidCandidates, n.PositionID, n.Title)
		}
		n.Title = staffing.NormalizeTitle(n.Title)
		normalized[i] = n
	}

	r := &reconciler{
		candidates: normalized,
		ancestry:   NewAncestry(normalized),
		numbered:   hasNumbering(rows),
	}

	out := make([]staffing.ReconciledRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.reconcileRow(row, out))
	}
	return out, nil
}

func (r *reconciler) reconcileRow(row staffing.Row, done []staffing.ReconciledRow) staffing.ReconciledRow {
	row.Title = staffing.NormalizeTitle(row.Title)
	rr := staffing.NewReconciledRow(row)

	if r.numbered && row.IsContinuation() {
		if anchor, ok := nearestNumbered(done); ok {
			r.inherit(&rr, anchor)
			return rr
		}
	}

	titled := r.titleCandidates(row.Title)
	if len(titled) == 0 {
		return rr
	}

	level, target := row.Binding()
	switch level {
	case staffing.BindingUnit:
		if r.bindDirectOrAncestor(&rr, target, titled) {
			return rr
		}
		if anchor, ok := parentAnchor(row.Ordinal, done); ok {
			if n, ok := firstWithParent(titled, anchor.BoundNodeID); ok {
				rr.Bind(n)
			}
		}
	case staffing.BindingSubUnit, staffing.BindingDeep:
		r.bindDirectOrAncestor(&rr, target, titled)
	}
	return rr
}

// bindDirectOrAncestor prefers a node defined on target itself, then one
// whose ancestor chain reaches target.
func (r *reconciler) bindDirectOrAncestor(rr *staffing.ReconciledRow, target string, titled []staffing.StructureNode) bool {
	if n, ok := firstWithID(titled, target); ok {
		rr.Bind(n)
		return true
	}
	if id := r.ancestry.FindBoundNode(target, titled); id != "" {
		n, _ := firstWithID(titled, id)
		rr.Bind(n)
		return true
	}
	return false
}

// inherit applies the anchor's context to a continuation row. The row only
// binds to a title match that is a sibling under the inherited parent.
func (r *reconciler) inherit(rr *staffing.ReconciledRow, anchor staffing.ReconciledRow) {
	rr.BoundAncestorOrdinal = anchor.Ordinal
	if !anchor.Matched() {
		rr.Bound = zeroCounts()
		return
	}

	rr.BoundParentID = anchor.BoundParentID
	if n, ok := firstWithParent(r.titleCandidates(rr.Title), anchor.BoundParentID); ok {
		rr.Bind(n)
	}
}

func (r *reconciler) titleCandidates(title string) []staffing.StructureNode {
	var out []staffing.StructureNode
	for _, n := range r.candidates {
		if staffing.TitleContains(n.Title, title) {
			out = append(out, n)
		}
	}
	return out
}

// =============================================================================
// LOOKUPS
// =============================================================================

func hasNumbering(rows []staffing.Row) bool {
	for _, row := range rows {
		if !row.IsContinuation() {
			return true
		}
	}
	return false
}

func nearestNumbered(done []staffing.ReconciledRow) (staffing.ReconciledRow, bool) {
	for i := len(done) - 1; i >= 0; i-- {
		if !done[i].IsContinuation() {
			return done[i], true
		}
	}
	return staffing.ReconciledRow{}, false
}

// parentAnchor finds the matched row numbered as ordinal's dotted parent,
// falling back to the most recently matched row.
func parentAnchor(ordinal staffing.Ordinal, done []staffing.ReconciledRow) (staffing.ReconciledRow, bool) {
	if parent := ordinal.Parent(); !parent.IsZero() {
		for i := len(done) - 1; i >= 0; i-- {
			if done[i].Ordinal == parent && done[i].Matched() {
				return done[i], true
			}
		}
	}
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].Matched() {
			return done[i], true
		}
	}
	return staffing.ReconciledRow{}, false
}

func firstWithID(nodes []staffing.StructureNode, id string) (staffing.StructureNode, bool) {
	for _, n := range nodes {
		if n.NodeID == id {
			return n, true
		}
	}
	return staffing.StructureNode{}, false
}

func firstWithParent(nodes []staffing.StructureNode, parentID string) (staffing.StructureNode, bool) {
	for _, n := range nodes {
		if n.ParentID == parentID {
			return n, true
		}
	}
	return staffing.StructureNode{}, false
}

func zeroCounts() staffing.BoundCounts {
	z := decimal.NewNullDecimal(decimal.Zero)
	return staffing.BoundCounts{Officers: z, NCOs: z, Enlisted: z, Civilians: z, Total: z}
}

// =============================================================================
// SUMMARY
// =============================================================================

// Unmatched returns the number of unmatched rows and their titles in order.
func Unmatched(rows []staffing.ReconciledRow) (int, []string) {
	titles := []string{}
	for _, r := range rows {
		if !r.Matched() {
			titles = append(titles, r.Title)
		}
	}
	return len(titles), titles
}
