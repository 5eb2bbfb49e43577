package report

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"example.com/udstrace/internal/discover"
)

func sampleSummary() discover.Summary {
	return discover.Summary{
		Digest:       "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Protocol:     "UDS",
		ProbableOEM:  "Honda",
		LineCount:    42,
		MessageCount: 12,
		ECUCount:     1,
		StartTime:    "12:18:08.801",
		EndTime:      "12:18:09.950",
		DurationUs:   1_149_000,
		ECUs: []discover.ECUSummary{{
			Address:      "14B3",
			Name:         "ECU_14B3",
			Protocol:     "UDS",
			MessageCount: 12,
			Services: []discover.ServiceSummary{
				{ID: "0x10", Name: "Diagnostic Session Control"},
				{ID: "0x22", Name: "Read Data By Identifier"},
			},
			SessionTypes: []string{"extended"},
			DIDs: []discover.DIDSummary{{
				DID:        "F190",
				DataType:   "ascii",
				DataLength: 17,
				Samples:    []string{"4A414C"},
				ASCII:      "JAL",
			}},
			DTCs: []discover.DTCSummary{{
				Code:       "P0301",
				Status:     []string{"Confirmed"},
				StatusByte: "0x08",
				RawHex:     "030108",
				FMI:        "08",
			}},
		}},
		Procedures: []discover.ProcedureSummary{{
			ID: 1, ECUAddress: "14B3", Type: "data_reading",
			StartTime: "12:18:08.801", EndTime: "12:18:08.842", Status: "completed",
		}},
	}
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")
	want := sampleSummary()
	if err := SaveSummaryJSON(want, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSummaryJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", got, want)
	}
}

func TestSaveSummaryPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := SaveSummaryPDF(sampleSummary(), path, LangEnglish); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a PDF, starts with %q", data[:8])
	}
	if len(data) < 1024 {
		t.Fatalf("suspiciously small PDF: %d bytes", len(data))
	}
}

func TestSaveSummaryPDFEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pdf")
	if err := SaveSummaryPDF(discover.Summary{}, path, LangTurkish); err != nil {
		t.Fatal(err)
	}
}

func TestTraceDigestQR(t *testing.T) {
	png, err := TraceDigestQR("9F86D081884C7D65", 128)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("not a PNG")
	}
	if _, err := TraceDigestQR("", 128); err == nil {
		t.Fatal("empty digest accepted")
	}
	if _, err := TraceDigestQR("zz--zz", 128); err == nil {
		t.Fatal("non-hex digest accepted")
	}
}

func TestParseLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want Language
		ok   bool
	}{
		{"en", LangEnglish, true},
		{"", LangEnglish, true},
		{"TR", LangTurkish, true},
		{"turkish", LangTurkish, true},
		{"de", LangEnglish, false},
	}
	for _, tc := range cases {
		got, err := ParseLanguage(tc.in)
		if got != tc.want || (err == nil) != tc.ok {
			t.Errorf("ParseLanguage(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestTranslatorFallback(t *testing.T) {
	tr := NewTranslator(LangTurkish)
	if tr.Lang() != LangTurkish {
		t.Fatalf("lang = %v", tr.Lang())
	}
	if got := tr.T("report.title"); got == "" || got == "report.title" {
		t.Fatalf("title = %q", got)
	}
	// Unknown keys come back verbatim so missing entries are visible.
	if got := tr.T("no.such.key"); got != "no.such.key" {
		t.Fatalf("fallback = %q", got)
	}
}
