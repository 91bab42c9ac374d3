package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/jung-kurt/gofpdf"

	"github.com/quotla/quotla-api/internal/money"
)

const (
	pageWidth = 210.0
	marginX   = 12.5
	rightColX = 120.0
	lineH     = 6.0
)

// colWidths are the description/qty/unit price/amount columns in mm.
var colWidths = [4]float64{90, 25, 35, 35}

var colAlign = [4]string{"L", "C", "R", "R"}

var colHeads = [4]string{"Description", "Qty", "Unit Price", "Amount"}

// gofpdfRenderer lays the view out with the core Helvetica font. Core fonts
// are cp1252, so currency symbols outside it fall back to the ISO code and
// other text outside it prints as '.'; the chromium engine has no such limit.
type gofpdfRenderer struct {
	compress bool
	logger   *slog.Logger
}

func (r gofpdfRenderer) renderPDF(ctx context.Context, v *view) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pv := *v
	pv.symbol = pdfSymbol(v.Currency)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(marginX, 15, marginX)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(pv.Heading+" "+pv.Number, true)
	pdf.SetCreator("quotla", false)
	var unmapped int
	tr := countUnmapped(pdf.UnicodeTranslatorFromDescriptor(""), &unmapped)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 5, tr(pv.Footer), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	l := &layout{pdf: pdf, tr: tr, v: &pv}
	l.header()
	l.parties()
	l.items()
	l.totals()
	l.trailer()

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	if unmapped > 0 && r.logger != nil {
		r.logger.WarnContext(ctx, "pdf text outside cp1252 replaced; use PDF_ENGINE=chromium for full unicode",
			slog.String("number", pv.Number), slog.Int("runes", unmapped))
	}
	return buf.Bytes(), nil
}

// countUnmapped wraps a gofpdf translator and counts the runes it had to
// replace with '.'.
func countUnmapped(tr func(string) string, n *int) func(string) string {
	return func(s string) string {
		out := tr(s)
		for _, r := range s {
			if r >= 0x80 && tr(string(r)) == "." {
				*n++
			}
		}
		return out
	}
}

type layout struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
	v   *view
}

func (l *layout) textColor(c rgb) { l.pdf.SetTextColor(c.R, c.G, c.B) }

func (l *layout) gray() { l.pdf.SetTextColor(100, 100, 100) }

func (l *layout) black() { l.pdf.SetTextColor(0, 0, 0) }

func (l *layout) header() {
	pdf, v := l.pdf, l.v
	pdf.SetFillColor(v.Brand.R, v.Brand.G, v.Brand.B)
	pdf.Rect(0, 0, pageWidth, 8, "F")

	pdf.SetXY(marginX, 14)
	pdf.SetFont("Helvetica", "B", 24)
	l.textColor(v.Brand)
	pdf.CellFormat(100, 10, v.Heading, "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	l.gray()
	pdf.CellFormat(100, 6, l.tr("#"+v.Number), "", 2, "L", false, 0, "")
	leftEnd := pdf.GetY()

	w := pageWidth - marginX - rightColX
	pdf.SetXY(rightColX, 14)
	pdf.SetFont("Helvetica", "B", 14)
	l.black()
	pdf.CellFormat(w, 7, l.tr(v.Business.Name), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	l.gray()
	for _, line := range v.Business.Lines {
		pdf.SetX(rightColX)
		pdf.CellFormat(w, 5, l.tr(line), "", 2, "R", false, 0, "")
	}
	pdf.SetY(max(leftEnd, pdf.GetY()) + 8)
}

func (l *layout) parties() {
	pdf, v := l.pdf, l.v
	top := pdf.GetY()

	pdf.SetX(marginX)
	pdf.SetFont("Helvetica", "B", 12)
	l.black()
	pdf.CellFormat(100, 7, "Bill To:", "", 2, "L", false, 0, "")
	if v.BillTo == nil {
		pdf.SetFont("Helvetica", "I", 10)
		l.gray()
		pdf.CellFormat(100, 5, v.NoClient(), "", 2, "L", false, 0, "")
	} else {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(100, 6, l.tr(v.BillTo.Name), "", 2, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		l.gray()
		for _, line := range v.BillTo.Lines {
			pdf.CellFormat(100, 5, l.tr(line), "", 2, "L", false, 0, "")
		}
	}
	leftEnd := pdf.GetY()

	w := pageWidth - marginX - rightColX
	pdf.SetXY(rightColX, top)
	pdf.SetFont("Helvetica", "", 10)
	l.black()
	if v.IssueDate != "" {
		pdf.CellFormat(w, 6, "Issue Date: "+v.IssueDate, "", 2, "R", false, 0, "")
	}
	if v.Date != "" {
		pdf.SetX(rightColX)
		pdf.CellFormat(w, 6, v.DateLabel+": "+v.Date, "", 2, "R", false, 0, "")
	}
	pdf.SetX(rightColX)
	pdf.SetFont("Helvetica", "B", 10)
	l.textColor(v.Brand)
	pdf.CellFormat(w, 6, "Status: "+v.Status, "", 2, "R", false, 0, "")

	pdf.SetY(max(leftEnd, pdf.GetY()) + 8)
	if v.Title != "" {
		pdf.SetX(marginX)
		pdf.SetFont("Helvetica", "B", 14)
		l.black()
		pdf.MultiCell(0, 7, l.tr(v.Title), "", "L", false)
		pdf.Ln(3)
	}
}

func (l *layout) tableHead() {
	pdf, v := l.pdf, l.v
	pdf.SetX(marginX)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(v.Brand.R, v.Brand.G, v.Brand.B)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range colHeads {
		pdf.CellFormat(colWidths[i], 8, h, "", 0, colAlign[i], true, 0, "")
	}
	pdf.Ln(-1)
}

func (l *layout) items() {
	pdf, v := l.pdf, l.v
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	tableW := colWidths[0] + colWidths[1] + colWidths[2] + colWidths[3]

	l.tableHead()
	for i, it := range v.Items {
		pdf.SetFont("Helvetica", "", 10)
		desc := l.tr(it.Description)
		lines := pdf.SplitLines([]byte(desc), colWidths[0]-2)
		rowH := float64(max(len(lines), 1)) * lineH

		if pdf.GetY()+rowH > pageH-bottom {
			pdf.AddPage()
			l.tableHead()
			pdf.SetFont("Helvetica", "", 10)
		}
		x, y := marginX, pdf.GetY()
		if i%2 == 1 {
			pdf.SetFillColor(243, 244, 246)
			pdf.Rect(x, y, tableW, rowH, "F")
		}
		l.black()
		pdf.SetXY(x, y)
		pdf.MultiCell(colWidths[0], lineH, desc, "", "L", false)
		x += colWidths[0]
		cells := [3]string{it.Quantity, v.Money(it.UnitPrice), v.Money(it.Amount)}
		for j, s := range cells {
			pdf.SetXY(x, y)
			pdf.CellFormat(colWidths[j+1], lineH, l.tr(s), "", 0, colAlign[j+1], false, 0, "")
			x += colWidths[j+1]
		}
		pdf.SetXY(marginX, y+rowH)
	}
	pdf.SetDrawColor(v.Brand.R, v.Brand.G, v.Brand.B)
	pdf.Line(marginX, pdf.GetY(), marginX+tableW, pdf.GetY())
	pdf.Ln(6)
}

func (l *layout) totals() {
	pdf, v := l.pdf, l.v
	labelW := 40.0
	valueW := pageWidth - marginX - rightColX - labelW
	row := func(label, value string) {
		pdf.SetX(rightColX)
		pdf.CellFormat(labelW, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 7, l.tr(value), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 11)
	l.black()
	row("Subtotal:", v.Money(v.Subtotal))
	row(v.TaxLabel+":", v.Money(v.Tax))
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 14)
	row("Total:", v.Money(v.Total))
	pdf.Ln(8)
}

func (l *layout) trailer() {
	pdf, v := l.pdf, l.v
	block := func(label, body string) {
		if body == "" {
			return
		}
		pdf.SetX(marginX)
		pdf.SetFont("Helvetica", "B", 10)
		l.gray()
		pdf.CellFormat(0, 6, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		l.black()
		pdf.MultiCell(0, 5, l.tr(body), "", "L", false)
		pdf.Ln(5)
	}
	block("Notes:", v.Notes)
	block(v.TermsLabel+":", v.Terms)
}

// pdfSymbol returns the currency symbol if the core fonts can draw it,
// otherwise the code followed by a space.
func pdfSymbol(c money.Currency) string {
	sym := c.Symbol()
	for _, r := range sym {
		if r < 0x80 || r == '€' || r == '£' || r == '¥' {
			continue
		}
		return string(c) + " "
	}
	return sym
}
