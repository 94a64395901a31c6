package reconcile

import "github.com/warp/dsp-reconciler/staffing"

// Ancestry indexes a candidate set by structure id so parent chains can be
// walked without going back to the catalog. Build it once per run.
type Ancestry struct {
	parents map[string]string // node id -> parent id
}

// NewAncestry indexes all. When several positions share a structure id the
// first one seen provides the parent link; they all carry the same parent.
func NewAncestry(all []staffing.StructureNode) *Ancestry {
	parents := make(map[string]string, len(all))
	for _, n := range all {
		if _, ok := parents[n.NodeID]; !ok {
			parents[n.NodeID] = n.ParentID
		}
	}
	return &Ancestry{parents: parents}
}

// FindBoundNode returns the node id of the first node in filtered whose
// parent is targetID or has targetID among its ancestors, "" when none.
func (a *Ancestry) FindBoundNode(targetID string, filtered []staffing.StructureNode) string {
	if targetID == "" {
		return ""
	}
	for _, n := range filtered {
		if n.ParentID == targetID || a.reaches(n.ParentID, targetID) {
			return n.NodeID
		}
	}
	return ""
}

// reaches walks up from start. It stops at a root, at a broken link and at
// a node already visited, and never takes more hops than there are nodes.
func (a *Ancestry) reaches(start, targetID string) bool {
	visited := make(map[string]struct{})
	cur := start
	for hops := 0; hops <= len(a.parents); hops++ {
		if cur == "" {
			return false
		}
		if _, seen := visited[cur]; seen {
			return false
		}
		visited[cur] = struct{}{}

		parent, ok := a.parents[cur]
		if !ok {
			return false
		}
		if parent == targetID {
			return true
		}
		cur = parent
	}
	return false
}

// FindBoundNode is the one-shot form of Ancestry.FindBoundNode.
func FindBoundNode(targetID string, all, filtered []staffing.StructureNode) string {
	return NewAncestry(all).FindBoundNode(targetID, filtered)
}
