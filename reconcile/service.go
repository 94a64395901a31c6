/*
service.go - Preview and commit of an uploaded DSP

PURPOSE:
  Orchestrates one reconciliation run:

    1. check that the stated command and unit exist
    2. keep a copy of the upload (when a FileStore is configured)
    3. ingest the sheet and stamp the request context on every row
    4. fetch the unit's candidate set (once per run, never cached)
    5. reconcile
    6. Commit only: replace the stored batch for the key

  Preview stops after step 5 and has no side effects on stored
  reconciliations.

CONCURRENCY:
  Commits on the same Key are serialized. Different keys run in parallel.
  The candidate set is read once per run, so a catalog change between two
  runs is picked up by the second one.

ERRORS:
  IngestError   bad file, nothing persisted
  CatalogError  candidate query failed, nothing persisted
  StoreError    replace rolled back, previous batch intact
  ErrUnitNotFound / ErrCommandNotFound  stated context unknown
*/
package reconcile

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/dsp-reconciler/ingest"
	"github.com/warp/dsp-reconciler/staffing"
)

const (
	modePreview = "preview"
	modeCommit  = "commit"
)

// Upload is one DSP file plus the context the caller states for it.
type Upload struct {
	FileName string
	Content  io.Reader
	Context  staffing.Context
}

// Report is the outcome of a run.
type Report struct {
	RunID           string
	Key             staffing.Key
	Rows            []staffing.ReconciledRow
	UnmatchedCount  int
	UnmatchedTitles []string
	StoredPath      string
	Committed       bool
}

// ServiceOptions wires a Service. Catalog and Store are required.
type ServiceOptions struct {
	Catalog    staffing.Catalog
	Store      staffing.ReconciliationStore
	References staffing.ReferenceChecker // optional, skips existence checks when nil
	Files      staffing.FileStore        // optional, parses Content directly when nil
	Ingestor   *ingest.Ingestor          // optional, default registry when nil
	Logger     *logrus.Logger            // optional
}

// Service runs reconciliations.
type Service struct {
	catalog    staffing.Catalog
	store      staffing.ReconciliationStore
	references staffing.ReferenceChecker
	files      staffing.FileStore
	ingestor   *ingest.Ingestor
	logger     *logrus.Logger
	locks      *keyLocks
}

func NewService(opts ServiceOptions) *Service {
	s := &Service{
		catalog:    opts.Catalog,
		store:      opts.Store,
		references: opts.References,
		files:      opts.Files,
		ingestor:   opts.Ingestor,
		logger:     opts.Logger,
		locks:      newKeyLocks(),
	}
	if s.ingestor == nil {
		s.ingestor = ingest.New(nil)
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Preview ingests and reconciles without persisting.
func (s *Service) Preview(ctx context.Context, up Upload) (*Report, error) {
	started := time.Now()
	report, err := s.run(ctx, modePreview, up)
	recordRun(modePreview, started, err)
	return report, err
}

// Commit ingests, reconciles and replaces the stored batch for the upload's
// key. Committing the same upload twice leaves one batch.
func (s *Service) Commit(ctx context.Context, up Upload) (*Report, error) {
	started := time.Now()
	key := contextFor(up).Key()

	unlock := s.locks.Lock(key)
	defer unlock()

	report, err := s.run(ctx, modeCommit, up)
	if err == nil {
		err = s.persist(ctx, report)
	}
	recordRun(modeCommit, started, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// List returns the stored batch for key.
func (s *Service) List(ctx context.Context, key staffing.Key) ([]staffing.ReconciledRow, error) {
	rows, err := s.store.List(ctx, key)
	if err != nil {
		return nil, asStoreError("list", key, err)
	}
	return rows, nil
}

// =============================================================================
// RUN
// =============================================================================

func (s *Service) run(ctx context.Context, mode string, up Upload) (*Report, error) {
	started := time.Now()
	c := contextFor(up)
	report := &Report{RunID: uuid.NewString(), Key: c.Key()}

	log := s.logger.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"mode":    mode,
		"decree":  c.DecreeNumber,
		"unit_id": c.UnitID,
		"file":    c.SourceFile,
	})

	if err := s.checkReferences(ctx, c); err != nil {
		log.WithError(err).Warn("reference check failed")
		return nil, err
	}

	rows, path, err := s.ingest(up)
	if err != nil {
		log.WithError(err).Warn("ingest failed")
		return nil, err
	}
	report.StoredPath = path
	rows = ingest.Stamp(rows, c)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, err := s.catalog.CandidatesForUnit(ctx, c.UnitID)
	if err != nil {
		err = asCatalogError(c.UnitID, err)
		log.WithError(err).Warn("candidate query failed")
		return nil, err
	}

	reconciled, err := Reconcile(rows, candidates)
	if err != nil {
		err = &staffing.CatalogError{UnitID: c.UnitID, Err: err}
		log.WithError(err).Error("candidate set rejected")
		return nil, err
	}

	report.Rows = reconciled
	report.UnmatchedCount, report.UnmatchedTitles = Unmatched(reconciled)
	recordRows(len(reconciled)-report.UnmatchedCount, report.UnmatchedCount)

	log.WithFields(logrus.Fields{
		"rows":        len(reconciled),
		"candidates":  len(candidates),
		"unmatched":   report.UnmatchedCount,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("reconciled")

	return report, nil
}

func (s *Service) persist(ctx context.Context, report *Report) error {
	raw := make([]staffing.Row, len(report.Rows))
	for i, r := range report.Rows {
		raw[i] = r.Row
	}

	if err := s.store.Replace(ctx, report.Key, raw, report.Rows); err != nil {
		err = asStoreError("replace", report.Key, err)
		s.logger.WithError(err).WithField("run_id", report.RunID).Error("replace failed")
		return err
	}
	report.Committed = true
	return nil
}

func (s *Service) checkReferences(ctx context.Context, c staffing.Context) error {
	if s.references == nil {
		return nil
	}

	if c.CommandID != "" {
		ok, err := s.references.CommandExists(ctx, c.CommandID)
		if err != nil {
			return asCatalogError(c.UnitID, err)
		}
		if !ok {
			return staffing.ErrCommandNotFound
		}
	}

	ok, err := s.references.UnitExists(ctx, c.UnitID, c.CommandID)
	if err != nil {
		return asCatalogError(c.UnitID, err)
	}
	if !ok {
		return staffing.ErrUnitNotFound
	}
	return nil
}

// ingest parses the upload, through the file store when one is configured.
func (s *Service) ingest(up Upload) ([]staffing.Row, string, error) {
	if s.files == nil {
		rows, err := s.ingestor.Parse(up.FileName, up.Content)
		return rows, "", err
	}

	key := contextFor(up).Key()
	path, err := s.files.Save(up.FileName, up.Content)
	if err != nil {
		return nil, "", &staffing.StoreError{Op: "save upload", Key: key, Err: err}
	}
	f, err := s.files.Open(path)
	if err != nil {
		return nil, "", &staffing.StoreError{Op: "open upload", Key: key, Err: err}
	}
	defer f.Close()

	rows, err := s.ingestor.Parse(up.FileName, f)
	return rows, path, err
}

// =============================================================================
// HELPERS
// =============================================================================

// contextFor defaults the source file to the uploaded file name.
func contextFor(up Upload) staffing.Context {
	c := up.Context
	if c.SourceFile == "" {
		c.SourceFile = up.FileName
	}
	return c
}

func asCatalogError(unitID string, err error) error {
	var catalogErr *staffing.CatalogError
	if errors.As(err, &catalogErr) {
		return err
	}
	return &staffing.CatalogError{UnitID: unitID, Err: err}
}

func asStoreError(op string, key staffing.Key, err error) error {
	var storeErr *staffing.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &staffing.StoreError{Op: op, Key: key, Err: err}
}
