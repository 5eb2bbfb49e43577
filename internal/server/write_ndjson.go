package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"example.com/udstrace/internal/addr"
	"example.com/udstrace/internal/trace"
	"example.com/udstrace/internal/uds"
)

// NDJSONWriter streams newline-delimited JSON objects to the underlying writer.
type NDJSONWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
}

// NewNDJSONWriter wraps the provided ResponseWriter with a helper that writes
// newline-delimited JSON. If the writer supports http.Flusher, Flush will be
// invoked after every write to push bytes to the client promptly.
func NewNDJSONWriter(w http.ResponseWriter) *NDJSONWriter {
	var flusher http.Flusher
	if f, ok := w.(http.Flusher); ok {
		flusher = f
	}
	return &NDJSONWriter{writer: w, flusher: flusher}
}

// WriteObject marshals the provided value to JSON, writes it followed by a
// newline and flushes the response.
func (w *NDJSONWriter) WriteObject(v any) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if _, err := w.writer.Write([]byte("\n")); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// messageRecord is the NDJSON projection of one normalized message.
type messageRecord struct {
	Line      int    `json:"line"`
	Timestamp string `json:"timestamp"`
	Direction string `json:"direction"`
	Scheme    string `json:"scheme"`
	Protocol  string `json:"protocol"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`
	ECU       string `json:"ecu,omitempty"`
	Service   string `json:"service,omitempty"`
	Kind      string `json:"kind,omitempty"`
	DataHex   string `json:"data,omitempty"`
}

// handleMessages decodes and normalizes the posted trace, streaming one
// NDJSON record per accepted diagnostic message.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	text, _, err := s.readTraceBody(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("read trace: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(text) == "" {
		http.Error(w, "empty trace", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	out := NewNDJSONWriter(w)
	dec := trace.NewDecoder(text)
	for {
		rec, err := dec.Next()
		if err != nil {
			return
		}
		if rec.Kind == trace.KindMetadata {
			continue
		}
		msg := addr.Normalize(rec)
		row := messageRecord{
			Line:      msg.Line,
			Timestamp: msg.Timestamp,
			Direction: string(msg.Direction),
			Scheme:    msg.Scheme.String(),
			Protocol:  string(msg.Protocol),
			Source:    msg.Source,
			Target:    msg.Target,
			ECU:       msg.ECUAddress,
			DataHex:   msg.DataHex,
		}
		if len(msg.DataHex) >= 2 {
			decoded := uds.Decode(msg.DataHex, msg.Direction == trace.DirRemoteToLocal)
			row.Service = uds.ServiceName(decoded.ServiceID)
			row.Kind = decoded.Kind.String()
		}
		if err := out.WriteObject(row); err != nil {
			return
		}
	}
}
