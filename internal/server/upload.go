package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"example.com/udstrace/internal/common"
)

// isTraceFilename accepts the capture file types the bench tools produce.
// The same extension set drives the batch subcommand's directory walk.
func isTraceFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".log", ".trace":
		return true
	}
	return false
}

// handleUpload stores posted trace files for later analysis. Each saved file
// is fingerprinted so re-uploads of the same capture are recognizable by
// digest.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxTraceBytes); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveTraceUpload(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	common.Logf("upload: stored %d trace file(s)", len(refs))
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveTraceUpload(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	if !isTraceFilename(fh.Filename) {
		return ArtifactRef{}, fmt.Errorf("unsupported trace file %q (want .txt, .log or .trace)", fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	dest, err := os.CreateTemp(s.uploadsDir, "trace-*"+ext)
	if err != nil {
		return ArtifactRef{}, err
	}
	if _, err := io.Copy(dest, io.LimitReader(src, maxTraceBytes)); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	dest.Close()
	art, err := s.addArtifact(dest.Name(), fh.Filename, guessContentType(fh.Filename), "trace")
	if err != nil {
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}
