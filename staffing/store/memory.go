// Package store provides in-memory implementations of the staffing store
// interfaces, used by engine and service tests.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/dsp-reconciler/staffing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds a catalog and reconciliation output in maps.
type Memory struct {
	mu sync.RWMutex

	commands  map[string]staffing.Command
	units     map[string]staffing.Unit
	subUnits  map[string]staffing.SubUnit
	positions map[string]staffing.Position

	raw  map[staffing.Key][]staffing.Row
	rows map[staffing.Key][]staffing.ReconciledRow

	// FailReplace, when set, makes Replace fail without touching state.
	FailReplace error
	// FailCatalog, when set, makes CandidatesForUnit fail.
	FailCatalog error
}

func NewMemory() *Memory {
	return &Memory{
		commands:  make(map[string]staffing.Command),
		units:     make(map[string]staffing.Unit),
		subUnits:  make(map[string]staffing.SubUnit),
		positions: make(map[string]staffing.Position),
		raw:       make(map[staffing.Key][]staffing.Row),
		rows:      make(map[staffing.Key][]staffing.ReconciledRow),
	}
}

// LoadCatalog upserts every record of snap.
func (m *Memory) LoadCatalog(_ context.Context, snap staffing.CatalogSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range snap.Commands {
		m.commands[c.ID] = c
	}
	for _, u := range snap.Units {
		m.units[u.ID] = u
	}
	for _, s := range snap.SubUnits {
		m.subUnits[s.ID] = s
	}
	for _, p := range snap.Positions {
		m.positions[p.ID] = p
	}
	return nil
}

func (m *Memory) CommandExists(_ context.Context, commandID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commands[commandID]
	return ok && c.Active, nil
}

func (m *Memory) UnitExists(_ context.Context, unitID, commandID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[unitID]
	if !ok || !u.Active {
		return false, nil
	}
	return commandID == "" || u.CommandID == commandID, nil
}

// CandidatesForUnit mirrors the SQL union of the sqlite store.
func (m *Memory) CandidatesForUnit(_ context.Context, unitID string) ([]staffing.StructureNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailCatalog != nil {
		return nil, &staffing.CatalogError{UnitID: unitID, Err: m.FailCatalog}
	}

	var nodes []staffing.StructureNode
	if u, ok := m.units[unitID]; ok && u.Active {
		for _, p := range m.positions {
			if p.Active && p.StructureID == unitID {
				nodes = append(nodes, node(p, staffing.KindUnit, u.Name, ""))
			}
		}
	}
	for _, s := range m.subUnits {
		if !s.Active || s.UnitID != unitID {
			continue
		}
		parent := s.ParentID
		if parent == "" {
			parent = unitID
		}
		for _, p := range m.positions {
			if p.Active && p.StructureID == s.ID {
				nodes = append(nodes, node(p, staffing.KindSubUnit, s.Name, parent))
			}
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		return a.PositionID < b.PositionID
	})
	return nodes, nil
}

func node(p staffing.Position, kind staffing.NodeKind, name, parent string) staffing.StructureNode {
	return staffing.StructureNode{
		PositionID: p.ID,
		NodeID:     p.StructureID,
		Kind:       kind,
		NodeName:   name,
		ParentID:   parent,
		Title:      staffing.NormalizeTitle(p.Title),
		TitleLong:  strings.TrimSpace(p.TitleLong),
		Counts:     p.Counts,
	}
}

// =============================================================================
// RECONCILIATIONS
// =============================================================================

// Replace swaps the stored batch for key. Nothing changes on failure.
func (m *Memory) Replace(_ context.Context, key staffing.Key, raw []staffing.Row, rows []staffing.ReconciledRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReplace != nil {
		return &staffing.StoreError{Op: "replace", Key: key, Err: m.FailReplace}
	}

	m.raw[key] = append([]staffing.Row(nil), raw...)
	m.rows[key] = append([]staffing.ReconciledRow(nil), rows...)
	return nil
}

func (m *Memory) List(_ context.Context, key staffing.Key) ([]staffing.ReconciledRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]staffing.ReconciledRow, len(m.rows[key]))
	copy(result, m.rows[key])
	sort.SliceStable(result, func(i, j int) bool { return result[i].Line < result[j].Line })
	return result, nil
}

// RawRows returns the stored ingested rows for key.
func (m *Memory) RawRows(key staffing.Key) []staffing.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]staffing.Row(nil), m.raw[key]...)
}
