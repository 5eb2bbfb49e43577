package server

import (
	"errors"
	"strings"

	"example.com/udstrace/internal/dict"
	"example.com/udstrace/internal/report"
)

// Options configures server creation.
type Options struct {
	// StorageDir roots the daemon workspace. A temporary directory is
	// created beneath it per server instance.
	StorageDir string
	// DictPath optionally points at an ECU knowledge-base JSON file.
	DictPath string
	// Concurrency bounds simultaneous trace analyses.
	Concurrency int
	// Lang selects the PDF report language.
	Lang report.Language
}

func (o Options) loadDict() (*dict.Store, error) {
	if strings.TrimSpace(o.DictPath) == "" {
		return nil, nil
	}
	kb, err := dict.EnsureLoaded(o.DictPath)
	if err != nil {
		return nil, err
	}
	if kb.IsEmpty() {
		return nil, errors.New("dictionary contains no entries")
	}
	return kb, nil
}
