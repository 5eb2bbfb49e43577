package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"example.com/udstrace/internal/common"
	"example.com/udstrace/internal/dict"
	"example.com/udstrace/internal/discover"
	"example.com/udstrace/internal/report"
)

// maxTraceBytes caps the accepted trace body; bench captures are text and
// stay far below this.
const maxTraceBytes = 256 << 20

// Server coordinates HTTP handlers and manages artifacts produced by
// analysis requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	kb         *dict.Store
	lang       report.Language
	sem        chan struct{}
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Digest      string // SHA-256 of the file contents
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Digest      string `json:"digest,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "udsd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	kb, err := opts.loadDict()
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	lang := opts.Lang
	if lang == "" {
		lang = report.LangEnglish
	}
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		kb:         kb,
		lang:       lang,
		sem:        make(chan struct{}, concurrency),
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze accepts one trace (raw text body or multipart field) and
// answers with the discovery summary. Query parameters:
//
//	procedures=1  include per-message digests on procedures
//	pdf=1         also render a PDF report artifact
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	text, name, err := s.readTraceBody(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("read trace: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(text) == "" {
		http.Error(w, "empty trace", http.StatusBadRequest)
		return
	}

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	metrics := common.NewMetrics()
	sum := discover.Analyze(text, discover.Options{
		Dict:                     s.kb,
		Metrics:                  metrics,
		IncludeProcedureMessages: r.URL.Query().Get("procedures") == "1",
	})
	snap := metrics.Snapshot()
	common.Logf("analyze %s: %d lines, %d messages, %d ecus in %s",
		name, snap.Lines, sum.MessageCount, sum.ECUCount, snap.Duration)

	resp := struct {
		Summary discover.Summary `json:"summary"`
		PDF     *ArtifactRef     `json:"pdf,omitempty"`
	}{Summary: sum}

	if r.URL.Query().Get("pdf") == "1" {
		ref, err := s.renderPDF(sum, name)
		if err != nil {
			http.Error(w, fmt.Sprintf("render pdf: %v", err), http.StatusInternalServerError)
			return
		}
		resp.PDF = &ref
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readTraceBody(r *http.Request) (string, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxTraceBytes); err != nil {
			return "", "", err
		}
		file, header, err := r.FormFile("trace")
		if err != nil {
			return "", "", err
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxTraceBytes))
		if err != nil {
			return "", "", err
		}
		return string(data), header.Filename, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxTraceBytes))
	if err != nil {
		return "", "", err
	}
	return string(data), "trace", nil
}

func (s *Server) renderPDF(sum discover.Summary, name string) (ArtifactRef, error) {
	path, err := s.tempPath("report-*.pdf")
	if err != nil {
		return ArtifactRef{}, err
	}
	if err := report.SaveSummaryPDF(sum, path, s.lang); err != nil {
		os.Remove(path)
		return ArtifactRef{}, err
	}
	art, err := s.addArtifact(path, name+".pdf", "application/pdf", "report")
	if err != nil {
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	art, ok := s.artifacts.get(id)
	if !ok {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	http.ServeFile(w, r, art.Path)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, name, contentType, kind string) (Artifact, error) {
	if s == nil || s.artifacts == nil {
		return Artifact{}, errors.New("artifact store not initialized")
	}
	digest, size, err := common.Sha256OfFile(path)
	if err != nil {
		return Artifact{}, err
	}
	id, err := newArtifactID()
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Digest:      digest,
		Kind:        kind,
	}
	s.artifacts.put(art)
	return art, nil
}

func (st *ArtifactStore) put(a Artifact) {
	st.mu.Lock()
	st.entries[a.ID] = a
	st.mu.Unlock()
}

func (st *ArtifactStore) get(id string) (Artifact, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	a, ok := st.entries[id]
	return a, ok
}

func newArtifactID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func toRef(a Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          a.ID,
		Name:        a.Name,
		ContentType: a.ContentType,
		Size:        a.Size,
		Digest:      a.Digest,
		Kind:        a.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		common.Logf("write json response: %v", err)
	}
}

func guessContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".log", ".trace":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
