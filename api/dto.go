/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the wire structures of the HTTP API. Field names follow the
  operators' existing form and report vocabulary (nomor_keputusan_kasau,
  satuankerja_id, dsp_list, ...) so clients built against the earlier
  upload screen keep working.

NAMING CONVENTION:
  - *Form:     multipart form fields (go-playground/form tags)
  - *DTO:      response items
  - *Request:  JSON request bodies
  - *Response: response wrappers

VALIDATION:
  Request types carry go-playground/validator tags, checked in handlers
  before anything reaches the service.

SEE ALSO:
  - handlers.go: Uses these types
  - staffing/types.go: Domain types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/dsp-reconciler/reconcile"
	"github.com/warp/dsp-reconciler/staffing"
)

// =============================================================================
// UPLOAD FORM
// =============================================================================

// UploadForm is the context an operator states next to the dsp_file field.
type UploadForm struct {
	DecreeNumber      string `form:"nomor_keputusan_kasau" validate:"required"`
	CommandID         string `form:"kotama_id" validate:"required"`
	CommandName       string `form:"kotama_nama" validate:"required"`
	UnitID            string `form:"satuankerja_id" validate:"required"`
	UnitName          string `form:"satuankerja_nama" validate:"required"`
	SubUnitID         string `form:"dsp_subsatuankerja_id"`
	SubUnitName       string `form:"dsp_subsatuankerja_nama"`
	SubUnitParentID   string `form:"dsp_subsatparent_id"`
	SubUnitParentName string `form:"dsp_subsatparent_nama"`
	SubUnitLevel1ID   string `form:"dsp_subsatuankerja_level1_id"`
	SubUnitLevel1Name string `form:"dsp_subsatuankerja_level1_nama"`
}

// Context converts the form into the row context of a run.
func (f UploadForm) Context(fileName string) staffing.Context {
	return staffing.Context{
		DecreeNumber:      f.DecreeNumber,
		SourceFile:        fileName,
		CommandID:         f.CommandID,
		CommandName:       f.CommandName,
		UnitID:            f.UnitID,
		UnitName:          f.UnitName,
		SubUnitID:         f.SubUnitID,
		SubUnitName:       f.SubUnitName,
		SubUnitParentID:   f.SubUnitParentID,
		SubUnitParentName: f.SubUnitParentName,
		SubUnitLevel1ID:   f.SubUnitLevel1ID,
		SubUnitLevel1Name: f.SubUnitLevel1Name,
	}
}

// =============================================================================
// RECONCILIATION RESPONSES
// =============================================================================

// ReconciledRowDTO is one row of dsp_list.
type ReconciledRowDTO struct {
	Line              int             `json:"line"`
	Ordinal           string          `json:"no"`
	Title             string          `json:"jabatan"`
	Grade             string          `json:"golongan"`
	Rank              string          `json:"pangkat"`
	Corps             string          `json:"korps"`
	ProfessionalField string          `json:"bidang_profesi"`
	Specialization    string          `json:"spesialisasi"`
	Officers          decimal.Decimal `json:"pa"`
	NCOs              decimal.Decimal `json:"ba"`
	Enlisted          decimal.Decimal `json:"ta"`
	Civilians         decimal.Decimal `json:"pns"`
	Total             decimal.Decimal `json:"jumlah"`
	Remarks           string          `json:"keterangan"`

	DecreeNumber string `json:"nomor_keputusan_kasau"`
	SourceFile   string `json:"file_name"`
	CommandID    string `json:"kotama_id"`
	UnitID       string `json:"satuankerja_id"`
	SubUnitID    string `json:"dsp_subsatuankerja_id,omitempty"`

	BoundNodeID          string              `json:"sisfopers_struktur_id"`
	BoundTitleLong       string              `json:"sisfopers_jabatan"`
	BoundOfficers        decimal.NullDecimal `json:"sisfopers_pa"`
	BoundNCOs            decimal.NullDecimal `json:"sisfopers_ba"`
	BoundEnlisted        decimal.NullDecimal `json:"sisfopers_ta"`
	BoundCivilians       decimal.NullDecimal `json:"sisfopers_pns"`
	BoundTotal           decimal.NullDecimal `json:"sisfopers_jumlah"`
	BoundParentID        string              `json:"sisfopers_parent_id"`
	BoundSubUnitID       string              `json:"sisfopers_subsatuankerja_id"`
	MatchStatus          int                 `json:"status_pair"`
	BoundAncestorOrdinal string              `json:"parent_no,omitempty"`
}

// ReconcileResponse is returned by preview and upload.
type ReconcileResponse struct {
	RunID                 string             `json:"run_id"`
	DSPList               []ReconciledRowDTO `json:"dsp_list"`
	CountNotPairedJabatan int                `json:"count_not_paired_jabatan"`
	NotPairedJabatan      []string           `json:"not_paired_jabatan"`
	Committed             bool               `json:"committed"`
}

// ListResponse is returned by the stored reconciliation listing.
type ListResponse struct {
	DSPList []ReconciledRowDTO `json:"dsp_list"`
	Count   int                `json:"count"`
}

func toRowDTO(r staffing.ReconciledRow) ReconciledRowDTO {
	return ReconciledRowDTO{
		Line:              r.Line,
		Ordinal:           r.Ordinal.String(),
		Title:             r.Title,
		Grade:             r.Grade,
		Rank:              r.Rank,
		Corps:             r.Corps,
		ProfessionalField: r.ProfessionalField,
		Specialization:    r.Specialization,
		Officers:          r.Officers,
		NCOs:              r.NCOs,
		Enlisted:          r.Enlisted,
		Civilians:         r.Civilians,
		Total:             r.Total,
		Remarks:           r.Remarks,

		DecreeNumber: r.DecreeNumber,
		SourceFile:   r.SourceFile,
		CommandID:    r.CommandID,
		UnitID:       r.UnitID,
		SubUnitID:    r.SubUnitID,

		BoundNodeID:          r.BoundNodeID,
		BoundTitleLong:       r.BoundTitleLong,
		BoundOfficers:        r.Bound.Officers,
		BoundNCOs:            r.Bound.NCOs,
		BoundEnlisted:        r.Bound.Enlisted,
		BoundCivilians:       r.Bound.Civilians,
		BoundTotal:           r.Bound.Total,
		BoundParentID:        r.BoundParentID,
		BoundSubUnitID:       r.BoundSubUnitID,
		MatchStatus:          int(r.MatchStatus),
		BoundAncestorOrdinal: r.BoundAncestorOrdinal.String(),
	}
}

func toRowDTOs(rows []staffing.ReconciledRow) []ReconciledRowDTO {
	dtos := make([]ReconciledRowDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toRowDTO(r)
	}
	return dtos
}

func toReconcileResponse(report *reconcile.Report) ReconcileResponse {
	titles := report.UnmatchedTitles
	if titles == nil {
		titles = []string{}
	}
	return ReconcileResponse{
		RunID:                 report.RunID,
		DSPList:               toRowDTOs(report.Rows),
		CountNotPairedJabatan: report.UnmatchedCount,
		NotPairedJabatan:      titles,
		Committed:             report.Committed,
	}
}

// =============================================================================
// CATALOG
// =============================================================================

// CatalogLoadRequest is the body of POST /api/catalog/load.
type CatalogLoadRequest struct {
	Commands []struct {
		ID     string `json:"id" validate:"required"`
		Name   string `json:"name" validate:"required"`
		Active *bool  `json:"active"`
	} `json:"commands" validate:"dive"`
	Units []struct {
		ID        string `json:"id" validate:"required"`
		CommandID string `json:"command_id" validate:"required"`
		Name      string `json:"name" validate:"required"`
		Active    *bool  `json:"active"`
	} `json:"units" validate:"dive"`
	SubUnits []struct {
		ID       string `json:"id" validate:"required"`
		UnitID   string `json:"unit_id" validate:"required"`
		ParentID string `json:"parent_id"`
		Name     string `json:"name" validate:"required"`
		Active   *bool  `json:"active"`
	} `json:"sub_units" validate:"dive"`
	Positions []struct {
		ID          string          `json:"id" validate:"required"`
		StructureID string          `json:"structure_id" validate:"required"`
		Title       string          `json:"title" validate:"required"`
		TitleLong   string          `json:"title_long"`
		Officers    decimal.Decimal `json:"pa"`
		NCOs        decimal.Decimal `json:"ba"`
		Enlisted    decimal.Decimal `json:"ta"`
		Civilians   decimal.Decimal `json:"pns"`
		Total       decimal.Decimal `json:"jumlah"`
		Active      *bool           `json:"active"`
	} `json:"positions" validate:"dive"`
}

// Snapshot converts the request. Records are active unless stated otherwise.
func (req CatalogLoadRequest) Snapshot() staffing.CatalogSnapshot {
	var snap staffing.CatalogSnapshot
	for _, c := range req.Commands {
		snap.Commands = append(snap.Commands, staffing.Command{ID: c.ID, Name: c.Name, Active: active(c.Active)})
	}
	for _, u := range req.Units {
		snap.Units = append(snap.Units, staffing.Unit{
			ID: u.ID, CommandID: u.CommandID, Name: u.Name, Active: active(u.Active),
		})
	}
	for _, s := range req.SubUnits {
		snap.SubUnits = append(snap.SubUnits, staffing.SubUnit{
			ID: s.ID, UnitID: s.UnitID, ParentID: s.ParentID, Name: s.Name, Active: active(s.Active),
		})
	}
	for _, p := range req.Positions {
		snap.Positions = append(snap.Positions, staffing.Position{
			ID:          p.ID,
			StructureID: p.StructureID,
			Title:       p.Title,
			TitleLong:   p.TitleLong,
			Counts: staffing.Counts{
				Officers:  p.Officers,
				NCOs:      p.NCOs,
				Enlisted:  p.Enlisted,
				Civilians: p.Civilians,
				Total:     p.Total,
			},
			Active: active(p.Active),
		})
	}
	return snap
}

func active(b *bool) bool { return b == nil || *b }

// CatalogLoadResponse reports how many records were upserted.
type CatalogLoadResponse struct {
	Commands  int `json:"commands"`
	Units     int `json:"units"`
	SubUnits  int `json:"sub_units"`
	Positions int `json:"positions"`
}

// CandidateDTO is one entry of a unit's candidate set.
type CandidateDTO struct {
	PositionID string          `json:"position_id"`
	NodeID     string          `json:"node_id"`
	Kind       string          `json:"kind"`
	NodeName   string          `json:"node_name"`
	ParentID   string          `json:"parent_id"`
	Title      string          `json:"title"`
	TitleLong  string          `json:"title_long"`
	Officers   decimal.Decimal `json:"pa"`
	NCOs       decimal.Decimal `json:"ba"`
	Enlisted   decimal.Decimal `json:"ta"`
	Civilians  decimal.Decimal `json:"pns"`
	Total      decimal.Decimal `json:"jumlah"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
