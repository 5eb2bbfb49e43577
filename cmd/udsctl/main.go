package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"example.com/udstrace/internal/addr"
	"example.com/udstrace/internal/common"
	"example.com/udstrace/internal/dict"
	"example.com/udstrace/internal/discover"
	"example.com/udstrace/internal/report"
	"example.com/udstrace/internal/trace"
	"example.com/udstrace/internal/uds"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "analyze":
		analyzeCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`udsctl %s (built %s) <command> [options]

Commands:
  analyze  --in <trace.txt> [--dict <kb.json>] [--out <summary.json>] [--pdf <report.pdf>] [--messages <messages.jsonl>] [--procedures] [--lang en|tr]
  report   --summary <summary.json> --pdf <report.pdf> [--lang en|tr]
  inspect  --summary <summary.json>
  batch    --in <dir> --out-dir <dir> [--dict <kb.json>] [--pdf]
`, version, buildDate)
}

func loadKnowledgeBase(path string) *dict.Store {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	kb, err := dict.EnsureLoaded(path)
	if err != nil {
		fmt.Println("dictionary:", err)
		os.Exit(1)
	}
	if kb.IsEmpty() {
		fmt.Println("dictionary contains no entries, ignoring")
		return nil
	}
	return kb
}

func analyzeCmd(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	in := fs.String("in", "", "input trace file")
	dictPath := fs.String("dict", "", "ECU knowledge-base JSON file")
	outSummary := fs.String("out", "summary.json", "summary JSON output")
	outPDF := fs.String("pdf", "", "optional PDF report output")
	outMessages := fs.String("messages", "", "optional normalized-message NDJSON output")
	procedures := fs.Bool("procedures", false, "include per-message digests on procedures")
	langFlag := fs.String("lang", "en", "report language")
	metricsFlag := fs.Bool("metrics", false, "print analysis throughput metrics")
	progressFlag := fs.Bool("progress", false, "display analysis progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Println("lang:", err)
		os.Exit(1)
	}
	kb := loadKnowledgeBase(*dictPath)

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read trace:", err)
		os.Exit(1)
	}
	text := string(data)

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	sum := discover.Analyze(text, discover.Options{
		Dict:                     kb,
		Metrics:                  metrics,
		IncludeProcedureMessages: *procedures,
	})
	if stopProgress != nil {
		stopProgress()
	}

	if err := report.SaveSummaryJSON(sum, *outSummary); err != nil {
		fmt.Println("write summary:", err)
		os.Exit(1)
	}
	if *outPDF != "" {
		if err := report.SaveSummaryPDF(sum, *outPDF, lang); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
	}
	if *outMessages != "" {
		if err := writeMessagesNDJSON(text, *outMessages); err != nil {
			fmt.Println("write messages:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("protocol=%s ecus=%d messages=%d procedures=%d\n",
		sum.Protocol, sum.ECUCount, sum.MessageCount, len(sum.Procedures))
	if sum.ProbableOEM != "" {
		fmt.Printf("probable OEM: %s\n", sum.ProbableOEM)
	}
	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s lines=%d messages=%d dropped=%d processed=%s (%.2f MB/s)\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Lines,
			snap.Messages,
			snap.Dropped,
			common.FormatBytes(snap.Bytes),
			snap.ThroughputBytesPerSecond()/1_000_000,
		)
	}
}

// writeMessagesNDJSON re-walks the trace and exports one JSON line per
// accepted diagnostic message.
func writeMessagesNDJSON(text, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	dec := trace.NewDecoder(text)
	for {
		rec, err := dec.Next()
		if err != nil {
			return nil
		}
		if rec.Kind == trace.KindMetadata {
			continue
		}
		msg := addr.Normalize(rec)
		row := map[string]any{
			"line":      msg.Line,
			"timestamp": msg.Timestamp,
			"direction": string(msg.Direction),
			"scheme":    msg.Scheme.String(),
			"protocol":  string(msg.Protocol),
			"source":    msg.Source,
			"target":    msg.Target,
			"ecu":       msg.ECUAddress,
			"data":      msg.DataHex,
		}
		if len(msg.DataHex) >= 2 {
			decoded := uds.Decode(msg.DataHex, msg.Direction == trace.DirRemoteToLocal)
			row["service"] = uds.ServiceName(decoded.ServiceID)
			row["kind"] = decoded.Kind.String()
		}
		b, err := json.Marshal(row)
		if err != nil {
			return err
		}
		w.Write(b)
		w.WriteString("\n")
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	summaryPath := fs.String("summary", "", "summary JSON input")
	outPDF := fs.String("pdf", "report.pdf", "PDF report output")
	langFlag := fs.String("lang", "en", "report language")
	fs.Parse(args)

	if *summaryPath == "" {
		fmt.Println("required: --summary")
		os.Exit(1)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Println("lang:", err)
		os.Exit(1)
	}
	sum, err := report.LoadSummaryJSON(*summaryPath)
	if err != nil {
		fmt.Println("load summary:", err)
		os.Exit(1)
	}
	if err := report.SaveSummaryPDF(sum, *outPDF, lang); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *outPDF)
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	summaryPath := fs.String("summary", "", "summary JSON input")
	fs.Parse(args)

	if *summaryPath == "" {
		fmt.Println("required: --summary")
		os.Exit(1)
	}
	sum, err := report.LoadSummaryJSON(*summaryPath)
	if err != nil {
		fmt.Println("load summary:", err)
		os.Exit(1)
	}

	fmt.Printf("protocol=%s ecus=%d messages=%d metadata=%d window=%s-%s\n",
		sum.Protocol, sum.ECUCount, sum.MessageCount, sum.MetadataCount, sum.StartTime, sum.EndTime)
	if sum.ProbableOEM != "" {
		fmt.Printf("probable OEM: %s\n", sum.ProbableOEM)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tPROTOCOL\tMSGS\tSERVICES\tDIDS\tDTCS\tROUTINES")
	for _, ecu := range sum.ECUs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			ecu.Address, ecu.Name, ecu.Protocol, ecu.MessageCount,
			len(ecu.Services), len(ecu.DIDs), len(ecu.DTCs), len(ecu.Routines))
	}
	w.Flush()
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fs.String("in", "", "directory of trace files")
	outDir := fs.String("out-dir", "", "output directory")
	dictPath := fs.String("dict", "", "ECU knowledge-base JSON file")
	pdfFlag := fs.Bool("pdf", false, "also render PDF reports")
	langFlag := fs.String("lang", "en", "report language")
	fs.Parse(args)

	if *inDir == "" || *outDir == "" {
		fmt.Println("required: --in and --out-dir")
		os.Exit(1)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Println("lang:", err)
		os.Exit(1)
	}
	kb := loadKnowledgeBase(*dictPath)
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Println("out-dir:", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(*inDir)
	if err != nil {
		fmt.Println("read dir:", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".log", ".trace":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Println("no trace files found")
		os.Exit(1)
	}

	failures := 0
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(*inDir, name))
		if err != nil {
			fmt.Printf("%s: read: %v\n", name, err)
			failures++
			continue
		}
		sum := discover.Analyze(string(data), discover.Options{Dict: kb})
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if err := report.SaveSummaryJSON(sum, filepath.Join(*outDir, base+".summary.json")); err != nil {
			fmt.Printf("%s: write summary: %v\n", name, err)
			failures++
			continue
		}
		if *pdfFlag {
			if err := report.SaveSummaryPDF(sum, filepath.Join(*outDir, base+".report.pdf"), lang); err != nil {
				fmt.Printf("%s: write pdf: %v\n", name, err)
				failures++
				continue
			}
		}
		fmt.Printf("%s: ecus=%d messages=%d\n", name, sum.ECUCount, sum.MessageCount)
	}
	if failures > 0 {
		os.Exit(1)
	}
}
