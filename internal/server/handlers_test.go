package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/udstrace/internal/common"
	"example.com/udstrace/internal/discover"
	"example.com/udstrace/internal/report"
)

const testTrace = `12:18:08.801 | [Local]->[Remote] DOIP => [1716] source[0E80] target[14B3] data[22F190]
12:18:08.842 | [Remote]->[Local] DOIP => [1716] source[14B3] target[0E80] data[62F1904A414C]
`

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	srv, err := NewServer(Options{StorageDir: t.TempDir(), Concurrency: 2, Lang: report.LangEnglish})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	router, err := NewRouter(srv)
	if err != nil {
		t.Fatal(err)
	}
	return srv, router
}

func TestHandleAnalyze(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(testTrace))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Summary discover.Summary `json:"summary"`
		PDF     *ArtifactRef     `json:"pdf"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Summary.ECUCount != 1 || resp.Summary.MessageCount != 2 {
		t.Fatalf("summary = %+v", resp.Summary)
	}
	if resp.Summary.ECUs[0].Address != "14B3" {
		t.Fatalf("ecu = %+v", resp.Summary.ECUs[0])
	}
	if resp.PDF != nil {
		t.Fatal("pdf rendered without pdf=1")
	}
}

func TestHandleAnalyzeWithPDFArtifact(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze?pdf=1", strings.NewReader(testTrace))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PDF *ArtifactRef `json:"pdf"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PDF == nil || resp.PDF.ID == "" {
		t.Fatalf("pdf ref = %+v", resp.PDF)
	}

	dl := httptest.NewRequest(http.MethodGet, "/artifacts/"+resp.PDF.ID, nil)
	dlRec := httptest.NewRecorder()
	router.ServeHTTP(dlRec, dl)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("download status = %d", dlRec.Code)
	}
	body, _ := io.ReadAll(dlRec.Body)
	if !strings.HasPrefix(string(body), "%PDF") {
		t.Fatal("artifact is not a PDF")
	}
}

func TestHandleAnalyzeRejectsBadRequests(t *testing.T) {
	_, router := newTestServer(t)

	get := httptest.NewRequest(http.MethodGet, "/analyze", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, get)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}

	empty := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("   \n"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, empty)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d", rec.Code)
	}
}

func TestHandleAnalyzeProcedureOption(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze?procedures=1", strings.NewReader(testTrace))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp struct {
		Summary discover.Summary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Summary.Procedures) == 0 {
		t.Fatal("no procedures in summary")
	}
	if len(resp.Summary.Procedures[0].Messages) == 0 {
		t.Fatal("procedure messages stripped despite procedures=1")
	}
}

func TestHandleMessagesStreamsNDJSON(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(testTrace))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}

	scanner := bufio.NewScanner(rec.Body)
	var rows []messageRecord
	for scanner.Scan() {
		var row messageRecord
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].ECU != "14B3" || rows[0].Service != "Read Data By Identifier" {
		t.Fatalf("row = %+v", rows[0])
	}
	if rows[1].Kind != "did_read" {
		t.Fatalf("row = %+v", rows[1])
	}
}

func multipartTraceRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("trace", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleUploadStoresAndFingerprintsTrace(t *testing.T) {
	_, router := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartTraceRequest(t, "bench.txt", testTrace))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Files []ArtifactRef `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("files = %+v", resp.Files)
	}
	ref := resp.Files[0]
	if ref.Name != "bench.txt" || ref.Kind != "trace" || ref.ContentType != "text/plain" {
		t.Fatalf("ref = %+v", ref)
	}
	if ref.Size != int64(len(testTrace)) {
		t.Fatalf("size = %d, want %d", ref.Size, len(testTrace))
	}
	if ref.Digest != common.Sha256OfString(testTrace) {
		t.Fatalf("digest = %q", ref.Digest)
	}

	dl := httptest.NewRequest(http.MethodGet, "/artifacts/"+ref.ID, nil)
	dlRec := httptest.NewRecorder()
	router.ServeHTTP(dlRec, dl)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("download status = %d", dlRec.Code)
	}
	body, _ := io.ReadAll(dlRec.Body)
	if string(body) != testTrace {
		t.Fatalf("stored trace differs: %q", body)
	}
}

func TestHandleUploadRejectsNonTraceFiles(t *testing.T) {
	_, router := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartTraceRequest(t, "firmware.bin", "MZ\x90"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	get := httptest.NewRequest(http.MethodGet, "/upload", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, get)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	_, router := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestArtifactNotFound(t *testing.T) {
	_, router := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/artifacts/deadbeef", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGuessContentType(t *testing.T) {
	cases := map[string]string{
		"summary.json":    "application/json",
		"messages.ndjson": "application/x-ndjson",
		"report.pdf":      "application/pdf",
		"trace.txt":       "text/plain",
		"capture.trace":   "text/plain",
		"blob.bin":        "application/octet-stream",
	}
	for name, want := range cases {
		if got := guessContentType(name); got != want {
			t.Errorf("guessContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
