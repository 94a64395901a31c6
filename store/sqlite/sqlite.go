/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Holds the reference catalog (commands, units, sub-units, positions) and
  the output of committed reconciliation runs.

INTERFACES IMPLEMENTED:
  staffing.Catalog:             Candidate set per unit
  staffing.ReferenceChecker:    Command/unit existence
  staffing.CatalogLoader:       Catalog upserts
  staffing.ReconciliationStore: Atomic replace + list by key

KEY TABLES:
  commands, units, sub_units, positions: reference catalog
  raw_dsp:          ingested rows as uploaded, one batch per key
  dsp_comparisons:  reconciled rows, one batch per key

REPLACE:
  Replace() deletes the key's rows from raw_dsp and dsp_comparisons and
  inserts the new batch in one transaction. A failure rolls everything
  back and surfaces as *staffing.StoreError.

CANDIDATES:
  CandidatesForUnit() is a UNION of
  - active positions defined on the unit itself (parent "")
  - active positions defined on the unit's active sub-units, whose parent
    is the sub-unit's parent, or the unit when the sub-unit hangs directly
    off it
  ordered by parent id.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/dsp.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - staffing/store.go: Interface definitions
  - staffing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/dsp-reconciler/staffing"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Reference catalog
	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		command_id TEXT NOT NULL,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_units_command ON units(command_id);

	-- parent_id is '' when the sub-unit hangs directly off its unit
	CREATE TABLE IF NOT EXISTS sub_units (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_sub_units_unit ON sub_units(unit_id);

	-- structure_id is a unit id or a sub-unit id
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		structure_id TEXT NOT NULL,
		title TEXT NOT NULL,
		title_long TEXT NOT NULL DEFAULT '',
		officers TEXT NOT NULL DEFAULT '0',
		ncos TEXT NOT NULL DEFAULT '0',
		enlisted TEXT NOT NULL DEFAULT '0',
		civilians TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_positions_structure ON positions(structure_id);

	-- Ingested rows, as uploaded
	CREATE TABLE IF NOT EXISTS raw_dsp (
		id TEXT PRIMARY KEY,
		` + rowColumnsDDL + `,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_raw_dsp_key
		ON raw_dsp(decree_number, unit_id, source_file);

	-- Reconciled rows
	CREATE TABLE IF NOT EXISTS dsp_comparisons (
		id TEXT PRIMARY KEY,
		` + rowColumnsDDL + `,
		bound_node_id TEXT NOT NULL DEFAULT '',
		bound_title_long TEXT NOT NULL DEFAULT '',
		bound_officers TEXT,
		bound_ncos TEXT,
		bound_enlisted TEXT,
		bound_civilians TEXT,
		bound_total TEXT,
		bound_parent_id TEXT NOT NULL DEFAULT '',
		bound_sub_unit_id TEXT NOT NULL DEFAULT '',
		match_status INTEGER NOT NULL DEFAULT 0,
		bound_ancestor_ordinal TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dsp_comparisons_key
		ON dsp_comparisons(decree_number, unit_id, source_file);
	`

	_, err := s.db.Exec(schema)
	return err
}

// rowColumnsDDL is shared by raw_dsp and dsp_comparisons.
const rowColumnsDDL = `line INTEGER NOT NULL,
		ordinal TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		grade TEXT NOT NULL DEFAULT '',
		rank TEXT NOT NULL DEFAULT '',
		corps TEXT NOT NULL DEFAULT '',
		professional_field TEXT NOT NULL DEFAULT '',
		specialization TEXT NOT NULL DEFAULT '',
		officers TEXT NOT NULL,
		ncos TEXT NOT NULL,
		enlisted TEXT NOT NULL,
		civilians TEXT NOT NULL,
		total TEXT NOT NULL,
		remarks TEXT NOT NULL DEFAULT '',
		decree_number TEXT NOT NULL,
		source_file TEXT NOT NULL,
		command_id TEXT NOT NULL DEFAULT '',
		command_name TEXT NOT NULL DEFAULT '',
		unit_id TEXT NOT NULL,
		unit_name TEXT NOT NULL DEFAULT '',
		sub_unit_id TEXT NOT NULL DEFAULT '',
		sub_unit_name TEXT NOT NULL DEFAULT '',
		sub_unit_parent_id TEXT NOT NULL DEFAULT '',
		sub_unit_parent_name TEXT NOT NULL DEFAULT '',
		sub_unit_level1_id TEXT NOT NULL DEFAULT '',
		sub_unit_level1_name TEXT NOT NULL DEFAULT ''`

const rowColumns = `line, ordinal, title, grade, rank, corps, professional_field, specialization,
	officers, ncos, enlisted, civilians, total, remarks,
	decree_number, source_file, command_id, command_name, unit_id, unit_name,
	sub_unit_id, sub_unit_name, sub_unit_parent_id, sub_unit_parent_name,
	sub_unit_level1_id, sub_unit_level1_name`

const boundColumns = `bound_node_id, bound_title_long,
	bound_officers, bound_ncos, bound_enlisted, bound_civilians, bound_total,
	bound_parent_id, bound_sub_unit_id, match_status, bound_ancestor_ordinal`

// =============================================================================
// CATALOG (staffing.Catalog, staffing.ReferenceChecker)
// =============================================================================

// CandidatesForUnit returns the candidate set for unitID.
func (s *Store) CandidatesForUnit(ctx context.Context, unitID string) ([]staffing.StructureNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT p.id AS position_id, u.id AS node_id, 'unit' AS kind, u.name AS node_name,
		       '' AS parent_id, p.title, p.title_long,
		       p.officers, p.ncos, p.enlisted, p.civilians, p.total
		FROM positions p
		JOIN units u ON u.id = p.structure_id
		WHERE u.id = ? AND u.active = 1 AND p.active = 1
		UNION ALL
		SELECT p.id, su.id, 'sub-unit', su.name,
		       CASE WHEN su.parent_id = '' THEN su.unit_id ELSE su.parent_id END,
		       p.title, p.title_long,
		       p.officers, p.ncos, p.enlisted, p.civilians, p.total
		FROM positions p
		JOIN sub_units su ON su.id = p.structure_id
		WHERE su.unit_id = ? AND su.active = 1 AND p.active = 1
		ORDER BY parent_id, node_id, position_id
	`

	rows, err := s.db.QueryContext(ctx, query, unitID, unitID)
	if err != nil {
		return nil, &staffing.CatalogError{UnitID: unitID, Err: errors.Wrap(err, "query candidates")}
	}
	defer rows.Close()

	var nodes []staffing.StructureNode
	for rows.Next() {
		var n staffing.StructureNode
		var kind string
		if err := rows.Scan(
			&n.PositionID, &n.NodeID, &kind, &n.NodeName, &n.ParentID, &n.Title, &n.TitleLong,
			&n.Officers, &n.NCOs, &n.Enlisted, &n.Civilians, &n.Total,
		); err != nil {
			return nil, &staffing.CatalogError{UnitID: unitID, Err: errors.Wrap(err, "scan candidate")}
		}
		n.Kind = staffing.NodeKind(kind)
		n.Title = staffing.NormalizeTitle(n.Title)
		n.TitleLong = strings.TrimSpace(n.TitleLong)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &staffing.CatalogError{UnitID: unitID, Err: errors.Wrap(err, "iterate candidates")}
	}
	return nodes, nil
}

// CommandExists reports whether an active command with commandID exists.
func (s *Store) CommandExists(ctx context.Context, commandID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commands WHERE id = ? AND active = 1`, commandID,
	).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "query command")
	}
	return n > 0, nil
}

// UnitExists reports whether an active unit exists, under commandID when
// commandID is non-empty.
func (s *Store) UnitExists(ctx context.Context, unitID, commandID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM units
		WHERE id = ? AND active = 1 AND (? = '' OR command_id = ?)
	`, unitID, commandID, commandID).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "query unit")
	}
	return n > 0, nil
}

// =============================================================================
// CATALOG LOAD (staffing.CatalogLoader)
// =============================================================================

// LoadCatalog upserts every record of snap in one transaction.
func (s *Store) LoadCatalog(ctx context.Context, snap staffing.CatalogSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	for _, c := range snap.Commands {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commands (id, name, active) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active
		`, c.ID, c.Name, c.Active); err != nil {
			return errors.Wrapf(err, "upsert command %q", c.ID)
		}
	}
	for _, u := range snap.Units {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO units (id, command_id, name, active) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				command_id = excluded.command_id,
				name = excluded.name,
				active = excluded.active
		`, u.ID, u.CommandID, u.Name, u.Active); err != nil {
			return errors.Wrapf(err, "upsert unit %q", u.ID)
		}
	}
	for _, su := range snap.SubUnits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sub_units (id, unit_id, parent_id, name, active) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				unit_id = excluded.unit_id,
				parent_id = excluded.parent_id,
				name = excluded.name,
				active = excluded.active
		`, su.ID, su.UnitID, su.ParentID, su.Name, su.Active); err != nil {
			return errors.Wrapf(err, "upsert sub-unit %q", su.ID)
		}
	}
	for _, p := range snap.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions
			(id, structure_id, title, title_long, officers, ncos, enlisted, civilians, total, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				structure_id = excluded.structure_id,
				title = excluded.title,
				title_long = excluded.title_long,
				officers = excluded.officers,
				ncos = excluded.ncos,
				enlisted = excluded.enlisted,
				civilians = excluded.civilians,
				total = excluded.total,
				active = excluded.active
		`, p.ID, p.StructureID, p.Title, p.TitleLong,
			p.Officers, p.NCOs, p.Enlisted, p.Civilians, p.Total, p.Active); err != nil {
			return errors.Wrapf(err, "upsert position %q", p.ID)
		}
	}

	return tx.Commit()
}

// =============================================================================
// RECONCILIATIONS (staffing.ReconciliationStore)
// =============================================================================

// Replace swaps the stored batch for key atomically.
func (s *Store) Replace(ctx context.Context, key staffing.Key, raw []staffing.Row, rows []staffing.ReconciledRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replace(ctx, key, raw, rows); err != nil {
		return &staffing.StoreError{Op: "replace", Key: key, Err: err}
	}
	return nil
}

func (s *Store) replace(ctx context.Context, key staffing.Key, raw []staffing.Row, rows []staffing.ReconciledRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"raw_dsp", "dsp_comparisons"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE decree_number = ? AND unit_id = ? AND source_file = ?`,
			key.DecreeNumber, key.UnitID, key.SourceFile,
		); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	rawStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO raw_dsp (id, %s, created_at) VALUES (%s)`,
		rowColumns, placeholders(28),
	))
	if err != nil {
		return errors.Wrap(err, "prepare raw insert")
	}
	defer rawStmt.Close()

	for _, r := range raw {
		args := append([]any{uuid.NewString()}, rowArgs(r)...)
		args = append(args, now)
		if _, err := rawStmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "insert raw line %d", r.Line)
		}
	}

	cmpStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO dsp_comparisons (id, %s, %s, created_at) VALUES (%s)`,
		rowColumns, boundColumns, placeholders(39),
	))
	if err != nil {
		return errors.Wrap(err, "prepare comparison insert")
	}
	defer cmpStmt.Close()

	for _, r := range rows {
		args := append([]any{uuid.NewString()}, rowArgs(r.Row)...)
		args = append(args,
			r.BoundNodeID, r.BoundTitleLong,
			r.Bound.Officers, r.Bound.NCOs, r.Bound.Enlisted, r.Bound.Civilians, r.Bound.Total,
			r.BoundParentID, r.BoundSubUnitID, int(r.MatchStatus), string(r.BoundAncestorOrdinal),
			now,
		)
		if _, err := cmpStmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "insert comparison line %d", r.Line)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// List returns the reconciled rows stored for key in line order.
func (s *Store) List(ctx context.Context, key staffing.Key) ([]staffing.ReconciledRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + rowColumns + `, ` + boundColumns + `
		FROM dsp_comparisons
		WHERE decree_number = ? AND unit_id = ? AND source_file = ?
		ORDER BY line ASC`

	rows, err := s.db.QueryContext(ctx, query, key.DecreeNumber, key.UnitID, key.SourceFile)
	if err != nil {
		return nil, &staffing.StoreError{Op: "list", Key: key, Err: errors.Wrap(err, "query comparisons")}
	}
	defer rows.Close()

	var result []staffing.ReconciledRow
	for rows.Next() {
		var r staffing.ReconciledRow
		var status int
		var ancestor string
		dest := append(rowDest(&r.Row),
			&r.BoundNodeID, &r.BoundTitleLong,
			&r.Bound.Officers, &r.Bound.NCOs, &r.Bound.Enlisted, &r.Bound.Civilians, &r.Bound.Total,
			&r.BoundParentID, &r.BoundSubUnitID, &status, &ancestor,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, &staffing.StoreError{Op: "list", Key: key, Err: errors.Wrap(err, "scan comparison")}
		}
		r.MatchStatus = staffing.MatchStatus(status)
		r.BoundAncestorOrdinal = staffing.Ordinal(ancestor)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &staffing.StoreError{Op: "list", Key: key, Err: err}
	}
	return result, nil
}

// RawRows returns the ingested rows stored for key in line order.
func (s *Store) RawRows(ctx context.Context, key staffing.Key) ([]staffing.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+rowColumns+`
		FROM raw_dsp
		WHERE decree_number = ? AND unit_id = ? AND source_file = ?
		ORDER BY line ASC`, key.DecreeNumber, key.UnitID, key.SourceFile)
	if err != nil {
		return nil, &staffing.StoreError{Op: "raw rows", Key: key, Err: err}
	}
	defer rows.Close()

	var result []staffing.Row
	for rows.Next() {
		var r staffing.Row
		if err := rows.Scan(rowDest(&r)...); err != nil {
			return nil, &staffing.StoreError{Op: "raw rows", Key: key, Err: err}
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func rowArgs(r staffing.Row) []any {
	return []any{
		r.Line, string(r.Ordinal), r.Title, r.Grade, r.Rank, r.Corps, r.ProfessionalField, r.Specialization,
		r.Officers, r.NCOs, r.Enlisted, r.Civilians, r.Total, r.Remarks,
		r.DecreeNumber, r.SourceFile, r.CommandID, r.CommandName, r.UnitID, r.UnitName,
		r.SubUnitID, r.SubUnitName, r.SubUnitParentID, r.SubUnitParentName,
		r.SubUnitLevel1ID, r.SubUnitLevel1Name,
	}
}

func rowDest(r *staffing.Row) []any {
	return []any{
		&r.Line, (*string)(&r.Ordinal), &r.Title, &r.Grade, &r.Rank, &r.Corps, &r.ProfessionalField, &r.Specialization,
		&r.Officers, &r.NCOs, &r.Enlisted, &r.Civilians, &r.Total, &r.Remarks,
		&r.DecreeNumber, &r.SourceFile, &r.CommandID, &r.CommandName, &r.UnitID, &r.UnitName,
		&r.SubUnitID, &r.SubUnitName, &r.SubUnitParentID, &r.SubUnitParentName,
		&r.SubUnitLevel1ID, &r.SubUnitLevel1Name,
	}
}

func placeholders(n int) string {
	b := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
