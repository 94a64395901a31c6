/*
handlers_test.go - HTTP tests for the DSP and catalog endpoints

Tests for:
- Preview and upload through multipart forms
- Form validation and error status mapping
- Stored batch listing
- Catalog load and candidate listing
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dsp-reconciler/reconcile"
	"github.com/warp/dsp-reconciler/staffing"
	"github.com/warp/dsp-reconciler/staffing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const catalogJSON = `{
	"commands":  [{"id": "K1", "name": "Koopsud I"}],
	"units":     [{"id": "U1", "command_id": "K1", "name": "Lanud"}],
	"sub_units": [{"id": "S1", "unit_id": "U1", "name": "Dinas Ops"}],
	"positions": [
		{"id": "P1", "structure_id": "U1", "title": "Komandan", "title_long": "Komandan Lanud", "pa": "1", "jumlah": "1"},
		{"id": "P2", "structure_id": "S1", "title": "Kepala Dinas Operasi", "pa": "1", "jumlah": "1"}
	]
}`

type testServer struct {
	router http.Handler
	mem    *store.Memory
	hook   *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	logger, hook := test.NewNullLogger()

	svc := reconcile.NewService(reconcile.ServiceOptions{
		Catalog:    mem,
		Store:      mem,
		References: mem,
		Logger:     logger,
	})
	h := NewHandler(svc, mem, mem, logger)
	ts := &testServer{router: NewRouter(h, RouterOptions{}), mem: mem, hook: hook}

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/catalog/load", strings.NewReader(catalogJSON)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func csvLine(ordinal, title string) string {
	return fmt.Sprintf("%s,%s,III,Mayor,,,,1,0,0,0,1,\n", ordinal, title)
}

func dspCSV() string {
	return csvLine("1", "Komandan") +
		csvLine("1.1", "Kepala Dinas Operasi") +
		csvLine("2", "Juru Masak")
}

func contextFields() map[string]string {
	return map[string]string{
		"nomor_keputusan_kasau": "KEP/7/2024",
		"kotama_id":             "K1",
		"kotama_nama":           "Koopsud I",
		"satuankerja_id":        "U1",
		"satuankerja_nama":      "Lanud",
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// DSP TESTS
// =============================================================================

func TestPreviewDSP_Success(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/api/dsp/preview", contextFields(), "dsp.csv", dspCSV()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ReconcileResponse](t, rec)
	require.Len(t, resp.DSPList, 3)
	assert.Equal(t, "U1", resp.DSPList[0].BoundNodeID)
	assert.Equal(t, "Komandan Lanud", resp.DSPList[0].BoundTitleLong)
	assert.Equal(t, 1, resp.DSPList[0].MatchStatus)
	assert.Equal(t, "S1", resp.DSPList[1].BoundNodeID)
	assert.Equal(t, "dsp.csv", resp.DSPList[1].SourceFile)
	assert.False(t, resp.DSPList[2].BoundTotal.Valid)
	assert.Equal(t, 1, resp.CountNotPairedJabatan)
	assert.Equal(t, []string{"juru masak"}, resp.NotPairedJabatan)
	assert.False(t, resp.Committed)

	stored, err := ts.mem.List(context.Background(), staffing.Key{DecreeNumber: "KEP/7/2024", UnitID: "U1", SourceFile: "dsp.csv"})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPreviewDSP_NullCountsSerializeAsNull(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/api/dsp/preview", contextFields(), "dsp.csv", csvLine("1", "Juru Masak")))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw struct {
		DSPList []map[string]any `json:"dsp_list"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.DSPList, 1)
	assert.Nil(t, raw.DSPList[0]["sisfopers_jumlah"])
	assert.Equal(t, float64(0), raw.DSPList[0]["status_pair"])
}

func TestUploadDSP_StoresAndLists(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := ts.do(multipartRequest(t, "/api/dsp/upload", contextFields(), "dsp.csv", dspCSV()))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[ReconcileResponse](t, rec).Committed)
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/api/dsp/reconciliations?decree_number=KEP/7/2024&unit_id=U1&file_name=dsp.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ListResponse](t, rec)
	assert.Equal(t, 3, resp.Count, "re-upload replaces the batch")
	assert.Equal(t, "komandan", resp.DSPList[0].Title)
}

func TestListReconciliations_MissingParams(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/dsp/reconciliations?unit_id=U1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, rec).Code)
}

func TestUploadDSP_Errors(t *testing.T) {
	without := func(key string) map[string]string {
		f := contextFields()
		delete(f, key)
		return f
	}
	with := func(key, value string) map[string]string {
		f := contextFields()
		f[key] = value
		return f
	}

	tests := []struct {
		name     string
		fields   map[string]string
		file     string
		content  string
		wantCode int
		wantErr  string
	}{
		{"missing decree", without("nomor_keputusan_kasau"), "dsp.csv", dspCSV(), http.StatusBadRequest, "validation_failed"},
		{"missing unit", without("satuankerja_id"), "dsp.csv", dspCSV(), http.StatusBadRequest, "validation_failed"},
		{"missing command name", without("kotama_nama"), "dsp.csv", dspCSV(), http.StatusBadRequest, "validation_failed"},
		{"empty unit name", with("satuankerja_nama", ""), "dsp.csv", dspCSV(), http.StatusBadRequest, "validation_failed"},
		{"missing file", contextFields(), "", "", http.StatusBadRequest, "missing_file"},
		{"unknown unit", with("satuankerja_id", "U9"), "dsp.csv", dspCSV(), http.StatusNotFound, "unit_not_found"},
		{"unknown command", with("kotama_id", "K9"), "dsp.csv", dspCSV(), http.StatusNotFound, "command_not_found"},
		{"too few columns", contextFields(), "dsp.csv", "1,kepala\n", http.StatusUnprocessableEntity, "ingest_failed"},
		{"unsupported format", contextFields(), "dsp.pdf", "%PDF", http.StatusUnprocessableEntity, "ingest_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(multipartRequest(t, "/api/dsp/upload", tt.fields, tt.file, tt.content))

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUploadDSP_NotMultipart(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/dsp/upload", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_form", decode[ErrorResponse](t, rec).Code)
}

func TestUploadDSP_TooLarge(t *testing.T) {
	mem := store.NewMemory()
	logger, _ := test.NewNullLogger()
	h := NewHandler(reconcile.NewService(reconcile.ServiceOptions{Catalog: mem, Store: mem}), mem, mem, logger)
	h.MaxUploadSize = 64
	router := NewRouter(h, RouterOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/dsp/upload", contextFields(), "dsp.csv", strings.Repeat(dspCSV(), 10)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadDSP_StoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.FailReplace = errors.New("disk full")

	rec := ts.do(multipartRequest(t, "/api/dsp/upload", contextFields(), "dsp.csv", dspCSV()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "store_failed", decode[ErrorResponse](t, rec).Code)
}

func TestPreviewDSP_CatalogUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.FailCatalog = errors.New("connection refused")

	rec := ts.do(multipartRequest(t, "/api/dsp/preview", contextFields(), "dsp.csv", dspCSV()))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "catalog_unavailable", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestListCandidates(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/catalog/units/U1/candidates", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	nodes := decode[[]CandidateDTO](t, rec)
	require.Len(t, nodes, 2)
	assert.Equal(t, "U1", nodes[0].NodeID)
	assert.Equal(t, "", nodes[0].ParentID)
	assert.Equal(t, "S1", nodes[1].NodeID)
	assert.Equal(t, "U1", nodes[1].ParentID)
	assert.Equal(t, "kepala dinas operasi", nodes[1].Title)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/catalog/load", strings.NewReader(`{"units": [{"id": "U2"}]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/catalog/load", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// ROUTER TESTS
// =============================================================================

func TestRouter_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A preview first, so the reconcile series exist.
	ts.do(multipartRequest(t, "/api/dsp/preview", contextFields(), "dsp.csv", dspCSV()))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dsp_reconcile_runs_total")
}

func TestRouter_LogsRequests(t *testing.T) {
	ts := newTestServer(t)

	ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entry := ts.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, "/healthz", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}
