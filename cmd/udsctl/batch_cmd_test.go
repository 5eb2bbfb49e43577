package main

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/udstrace/internal/report"
)

func writeSyntheticTrace(t *testing.T, path string) {
	t.Helper()
	trace := `12:18:08.801 | [Local]->[Remote] DOIP => [1716] source[0E80] target[14B3] data[1003]
12:18:08.820 | [Remote]->[Local] DOIP => [1716] source[14B3] target[0E80] data[5003]
12:18:08.850 | [Local]->[Remote] DOIP => [1716] source[0E80] target[14B3] data[22F190]
12:18:08.901 | [Remote]->[Local] DOIP => [1716] source[14B3] target[0E80] data[62F1904A414C4231]
`
	if err := os.WriteFile(path, []byte(trace), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestBatchCmdGeneratesOutputs(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "inputs")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("MkdirAll inputs: %v", err)
	}
	outDir := filepath.Join(root, "out")

	writeSyntheticTrace(t, filepath.Join(inputDir, "alpha.txt"))
	writeSyntheticTrace(t, filepath.Join(inputDir, "beta.log"))
	// Non-trace extensions are ignored.
	if err := os.WriteFile(filepath.Join(inputDir, "notes.md"), []byte("bench notes"), 0o644); err != nil {
		t.Fatalf("WriteFile notes: %v", err)
	}

	dictPath := filepath.Join(root, "kb.json")
	kb := `{"ecus":[{"address":"14B3","name":"Gateway Module","oem":"Jaguar Land Rover"}]}`
	if err := os.WriteFile(dictPath, []byte(kb), 0o644); err != nil {
		t.Fatalf("WriteFile dict: %v", err)
	}

	batchCmd([]string{
		"--in", inputDir,
		"--out-dir", outDir,
		"--dict", dictPath,
		"--pdf",
	})

	check := func(base string) {
		sum, err := report.LoadSummaryJSON(filepath.Join(outDir, base+".summary.json"))
		if err != nil {
			t.Fatalf("load summary %s: %v", base, err)
		}
		if sum.ECUCount != 1 || sum.MessageCount != 4 {
			t.Fatalf("summary %s: ecus=%d messages=%d", base, sum.ECUCount, sum.MessageCount)
		}
		if sum.ECUs[0].Name != "Gateway Module" {
			t.Fatalf("summary %s: name=%q", base, sum.ECUs[0].Name)
		}
		if _, err := os.Stat(filepath.Join(outDir, base+".report.pdf")); err != nil {
			t.Fatalf("report pdf %s: %v", base, err)
		}
	}

	check("alpha")
	check("beta")

	if _, err := os.Stat(filepath.Join(outDir, "notes.summary.json")); err == nil {
		t.Fatal("non-trace file was analyzed")
	}
}
