package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/udstrace/internal/discover"
)

// SaveSummaryPDF renders the discovery summary into a PDF document.
func SaveSummaryPDF(sum discover.Summary, out string, lang Language) error {
	t := NewTranslator(lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(t.T("report.title"), true)
	pdf.SetAuthor("udsctl", false)
	pdf.SetCreator("udsctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, t.T("report.title"))
	addOverviewSection(pdf, t, sum)
	addECUTableSection(pdf, t, sum.ECUs)
	addECUDetailSection(pdf, t, sum.ECUs)
	addProceduresSection(pdf, t, sum.Procedures)
	addDigestQR(pdf, sum.Digest)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addOverviewSection(pdf *gofpdf.Fpdf, t Translator, sum discover.Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t.T("section.overview"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	duration := time.Duration(sum.DurationUs) * time.Microsecond
	items := []struct {
		label string
		value string
	}{
		{label: t.T("overview.protocol"), value: emptyFallback(sum.Protocol, "-")},
		{label: t.T("overview.oem"), value: emptyFallback(sum.ProbableOEM, "-")},
		{label: t.T("overview.messages"), value: strconv.Itoa(sum.MessageCount)},
		{label: t.T("overview.metadata"), value: strconv.Itoa(sum.MetadataCount)},
		{label: t.T("overview.ecus"), value: strconv.Itoa(sum.ECUCount)},
		{label: t.T("overview.procedures"), value: strconv.Itoa(len(sum.Procedures))},
		{label: t.T("overview.window"), value: captureWindow(sum)},
		{label: t.T("overview.duration"), value: duration.String()},
	}
	if sum.Vehicle != nil && sum.Vehicle.Voltage != "" {
		items = append(items, struct {
			label string
			value string
		}{label: t.T("overview.voltage"), value: sum.Vehicle.Voltage + " V"})
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addECUTableSection(pdf *gofpdf.Fpdf, t Translator, ecus []discover.ECUSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t.T("section.ecus"))
	pdf.Ln(9)

	headers := []string{
		t.T("ecus.address"), t.T("ecus.name"), t.T("ecus.protocol"),
		t.T("ecus.messages"), t.T("ecus.services"), t.T("ecus.dids"),
		t.T("ecus.dtcs"), t.T("ecus.routines"),
	}
	widths := []float64{24, 48, 24, 20, 20, 18, 18, 18}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, ecu := range ecus {
		values := []string{
			ecu.Address,
			emptyFallback(ecu.Name, "-"),
			ecu.Protocol,
			strconv.Itoa(ecu.MessageCount),
			strconv.Itoa(len(ecu.Services)),
			strconv.Itoa(len(ecu.DIDs)),
			strconv.Itoa(len(ecu.DTCs)),
			strconv.Itoa(len(ecu.Routines)),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addECUDetailSection(pdf *gofpdf.Fpdf, t Translator, ecus []discover.ECUSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t.T("section.details"))
	pdf.Ln(9)

	if len(ecus) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, t.T("details.none"), "", "L", false)
		return
	}

	for _, ecu := range ecus {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 5, fmt.Sprintf("%s  %s", ecu.Address, ecu.Name), "", "L", false)

		pdf.SetFont("Helvetica", "", 9)
		if len(ecu.Services) > 0 {
			names := make([]string, 0, len(ecu.Services))
			for _, s := range ecu.Services {
				names = append(names, s.ID)
			}
			pdf.MultiCell(0, 4, t.Format("details.services", strings.Join(names, ", ")), "", "L", false)
		}
		if len(ecu.SessionTypes) > 0 {
			pdf.MultiCell(0, 4, t.Format("details.sessions", strings.Join(ecu.SessionTypes, ", ")), "", "L", false)
		}
		if len(ecu.SecurityLevels) > 0 {
			pdf.MultiCell(0, 4, t.Format("details.security", strings.Join(ecu.SecurityLevels, ", ")), "", "L", false)
		}
		for _, did := range ecu.DIDs {
			line := t.Format("details.did", did.DID, emptyFallback(did.DataType, "?"), did.DataLength)
			if len(did.Samples) > 0 {
				line += "  " + t.Format("details.did.sample", did.Samples[len(did.Samples)-1])
			}
			pdf.MultiCell(0, 4, line, "", "L", false)
		}
		for _, dtc := range ecu.DTCs {
			line := t.Format("details.dtc", dtc.Code, strings.Join(dtc.Status, ", "))
			if dtc.FMIMeaning != "" {
				line += "  (" + dtc.FMIMeaning + ")"
			}
			pdf.MultiCell(0, 4, line, "", "L", false)
		}
		for _, rt := range ecu.Routines {
			pdf.MultiCell(0, 4, t.Format("details.routine", rt.ID, rt.ControlType), "", "L", false)
		}
		pdf.Ln(2)
	}
}

func addProceduresSection(pdf *gofpdf.Fpdf, t Translator, procs []discover.ProcedureSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, t.T("section.procedures"))
	pdf.Ln(9)

	if len(procs) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, t.T("procedures.none"), "", "L", false)
		return
	}
	pdf.SetFont("Helvetica", "", 9)
	for _, p := range procs {
		line := t.Format("procedures.row", p.ID, p.Type, p.StartTime, p.EndTime, emptyFallback(p.ECUAddress, "-"))
		pdf.MultiCell(0, 4, line, "", "L", false)
	}
	pdf.Ln(2)
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string) {
	if strings.TrimSpace(digest) == "" {
		return
	}
	png, err := TraceDigestQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("trace-digest-qr", opts, bytes.NewReader(png))
	pdf.Ln(4)
	pdf.ImageOptions("trace-digest-qr", pdf.GetX(), pdf.GetY(), 28, 28, true, opts, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.MultiCell(0, 3, digest, "", "L", false)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func captureWindow(sum discover.Summary) string {
	if sum.StartTime == "" && sum.EndTime == "" {
		return "-"
	}
	return fmt.Sprintf("%s - %s", sum.StartTime, sum.EndTime)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
