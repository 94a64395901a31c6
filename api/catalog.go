/*
catalog.go - Reference catalog maintenance endpoints

PURPOSE:
  Lets operators (and tests) load the reference structure the reconciler
  matches against, and inspect the candidate set a unit resolves to.

USAGE VIA API:

	POST /api/catalog/load
	{"commands": [...], "units": [...], "sub_units": [...], "positions": [...]}

	GET /api/catalog/units/U1/candidates

NOTE:
  Loading upserts by id. Records missing from a load are left alone;
  deactivate them with "active": false.

SEE ALSO:
  - handlers.go: DSP handlers
  - store/sqlite/sqlite.go: LoadCatalog, CandidatesForUnit
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// LoadCatalog upserts catalog records.
// POST /api/catalog/load
func (h *Handler) LoadCatalog(w http.ResponseWriter, r *http.Request) {
	var req CatalogLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid catalog records", err)
		return
	}

	snap := req.Snapshot()
	if err := h.Loader.LoadCatalog(r.Context(), snap); err != nil {
		h.Logger.WithError(err).Error("catalog load failed")
		writeError(w, http.StatusInternalServerError, "store_failed", "Failed to load catalog", err)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"commands":  len(snap.Commands),
		"units":     len(snap.Units),
		"sub_units": len(snap.SubUnits),
		"positions": len(snap.Positions),
	}).Info("catalog loaded")

	writeJSON(w, http.StatusOK, CatalogLoadResponse{
		Commands:  len(snap.Commands),
		Units:     len(snap.Units),
		SubUnits:  len(snap.SubUnits),
		Positions: len(snap.Positions),
	})
}

// ListCandidates returns the candidate set of a unit.
// GET /api/catalog/units/{id}/candidates
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "id")

	nodes, err := h.Catalog.CandidatesForUnit(r.Context(), unitID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]CandidateDTO, len(nodes))
	for i, n := range nodes {
		dtos[i] = CandidateDTO{
			PositionID: n.PositionID,
			NodeID:     n.NodeID,
			Kind:       string(n.Kind),
			NodeName:   n.NodeName,
			ParentID:   n.ParentID,
			Title:      n.Title,
			TitleLong:  n.TitleLong,
			Officers:   n.Officers,
			NCOs:       n.NCOs,
			Enlisted:   n.Enlisted,
			Civilians:  n.Civilians,
			Total:      n.Total,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}
