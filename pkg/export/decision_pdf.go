package export

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const dateLayout = "02/01/2006"

// DecisionInterval is one leave period printed on a decision.
type DecisionInterval struct {
	Start       time.Time
	End         time.Time
	WorkingDays int
}

// DecisionDocument carries everything printed on a leave decision.
type DecisionDocument struct {
	Header                    string
	IssuedAt                  time.Time
	ProtocolNumber            string
	DirectorateProtocolNumber string
	Subject                   string
	EmployeeName              string
	FatherName                string
	Specialty                 string
	Service                   string
	DecisionText              string
	CustomText                string
	Intervals                 []DecisionInterval
	TotalWorkingDays          int
	FinalSignatory            string
	ProcessedByName           string
	ProcessedByPhone          string
	Recipients                []string
}

// DecisionRendererConfig selects the font used for rendering. Without a
// FontPath the core Arial font is used, which only covers cp1252 glyphs.
type DecisionRendererConfig struct {
	FontPath   string
	FontFamily string
}

// DecisionRenderer renders leave decisions into A4 PDF documents.
type DecisionRenderer struct {
	fontPath   string
	fontFamily string
}

// NewDecisionRenderer constructs a renderer.
func NewDecisionRenderer(cfg DecisionRendererConfig) *DecisionRenderer {
	family := cfg.FontFamily
	if family == "" {
		family = "DejaVu"
	}
	return &DecisionRenderer{fontPath: cfg.FontPath, fontFamily: family}
}

// Render produces the PDF bytes of doc.
func (r *DecisionRenderer) Render(doc DecisionDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 15, 20)
	pdf.SetAutoPageBreak(true, 20)

	family, tr, err := r.setupFont(pdf)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	pdf.AddPage()

	pdf.SetFont(family, "B", 10)
	for _, line := range strings.Split(strings.TrimSpace(doc.Header), "\n") {
		pdf.CellFormat(95, 5, tr(strings.TrimSpace(line)), "", 1, "L", false, 0, "")
	}

	pdf.SetFont(family, "", 10)
	pdf.SetXY(120, 15)
	pdf.CellFormat(70, 5, tr("Date: "+doc.IssuedAt.Format(dateLayout)), "", 2, "L", false, 0, "")
	pdf.CellFormat(70, 5, tr("Protocol No: "+doc.ProtocolNumber), "", 2, "L", false, 0, "")
	if doc.DirectorateProtocolNumber != "" {
		pdf.CellFormat(70, 5, tr("Directorate Protocol No: "+doc.DirectorateProtocolNumber), "", 2, "L", false, 0, "")
	}
	pdf.SetY(pdf.GetY() + 15)
	pdf.SetX(20)

	pdf.SetFont(family, "B", 11)
	pdf.MultiCell(0, 6, tr("SUBJECT: "+doc.Subject), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont(family, "", 10)
	identity := doc.EmployeeName
	if doc.FatherName != "" {
		identity += " (father's name: " + doc.FatherName + ")"
	}
	if doc.Specialty != "" {
		identity += ", " + doc.Specialty
	}
	if doc.Service != "" {
		identity += ", " + doc.Service
	}
	pdf.MultiCell(0, 5, tr("Employee: "+identity), "", "L", false)
	pdf.Ln(3)

	if doc.DecisionText != "" {
		pdf.MultiCell(0, 5, tr(doc.DecisionText), "", "J", false)
		pdf.Ln(2)
	}
	if doc.CustomText != "" {
		pdf.MultiCell(0, 5, tr(doc.CustomText), "", "J", false)
		pdf.Ln(2)
	}

	pdf.Ln(2)
	pdf.SetFont(family, "B", 10)
	widths := []float64{60, 60, 50}
	for i, title := range []string{"From", "To", "Working days"} {
		pdf.CellFormat(widths[i], 7, tr(title), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(family, "", 10)
	for _, interval := range doc.Intervals {
		pdf.CellFormat(widths[0], 7, interval.Start.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 7, interval.End.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, strconv.Itoa(interval.WorkingDays), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont(family, "B", 10)
	pdf.CellFormat(widths[0]+widths[1], 7, tr("Total"), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[2], 7, strconv.Itoa(doc.TotalWorkingDays), "1", 1, "C", false, 0, "")

	if len(doc.Recipients) > 0 {
		pdf.Ln(6)
		pdf.SetFont(family, "B", 9)
		pdf.CellFormat(0, 5, tr("Notify:"), "", 1, "L", false, 0, "")
		pdf.SetFont(family, "", 9)
		for i, recipient := range doc.Recipients {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%d. %s", i+1, recipient)), "", 1, "L", false, 0, "")
		}
	}

	pdf.Ln(12)
	pdf.SetFont(family, "B", 10)
	pdf.SetX(120)
	pdf.MultiCell(70, 5, tr(doc.FinalSignatory), "", "C", false)

	if doc.ProcessedByName != "" {
		pdf.Ln(10)
		pdf.SetFont(family, "", 8)
		contact := "Information: " + doc.ProcessedByName
		if doc.ProcessedByPhone != "" {
			contact += ", tel. " + doc.ProcessedByPhone
		}
		pdf.CellFormat(0, 4, tr(contact), "", 1, "L", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *DecisionRenderer) setupFont(pdf *gofpdf.Fpdf) (string, func(string) string, error) {
	if r.fontPath == "" {
		return "Arial", pdf.UnicodeTranslatorFromDescriptor(""), nil
	}
	if _, err := os.Stat(r.fontPath); err != nil {
		return "", nil, err
	}
	pdf.AddUTF8Font(r.fontFamily, "", r.fontPath)
	pdf.AddUTF8Font(r.fontFamily, "B", r.fontPath)
	if err := pdf.Error(); err != nil {
		return "", nil, err
	}
	return r.fontFamily, func(s string) string { return s }, nil
}
