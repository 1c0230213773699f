package bento

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/ptsnap/internal/summarize"
)

const (
	pdfMargin  = 15.0
	pdfPadding = 4.0
	pdfLine    = 5.0
)

// ExportPDF renders l as an A4 document with one bordered block per card.
// Cards are laid out in a single column; a card never starts in the bottom
// fifth of a page.
func ExportPDF(l Layout, article summarize.Article) ([]byte, error) {
	v := view(l, article)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(v.DocTitle, true)
	pdf.SetCreator("ptsnap", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	width := pageW - 2*pdfMargin

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(126, 34, 206)
	pdf.MultiCell(0, 9, tr(v.Title), "", "C", false)
	pdf.SetTextColor(15, 23, 42)
	if v.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(v.Subtitle), "", "C", false)
	}
	if v.CTAURL != "#" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "U", 10)
		pdf.SetTextColor(126, 34, 206)
		pdf.CellFormat(0, 6, tr(v.CTALabel), "", 1, "C", false, 0, v.CTAURL)
		pdf.SetTextColor(15, 23, 42)
	}
	pdf.Ln(6)

	for _, c := range v.Cards {
		if pdf.GetY() > pageH*0.8 {
			pdf.AddPage()
		}
		top := pdf.GetY()
		pdf.SetLeftMargin(pdfMargin + pdfPadding)
		pdf.SetRightMargin(pdfMargin + pdfPadding)
		pdf.SetY(top + pdfPadding)
		inner := width - 2*pdfPadding

		if c.Tag != "" {
			pdf.SetFont("Helvetica", "B", 8)
			pdf.SetTextColor(71, 85, 105)
			pdf.CellFormat(inner, 4, tr(strings.ToUpper(c.Tag)), "", 1, "L", false, 0, "")
			pdf.SetTextColor(15, 23, 42)
		}
		pdf.SetFont("Helvetica", "B", 13)
		if c.TitleClass != "" {
			pdf.SetTextColor(126, 34, 206)
		}
		pdf.MultiCell(inner, 6, tr(c.Title), "", "L", false)
		pdf.SetTextColor(15, 23, 42)
		if c.Body != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(inner, pdfLine, tr(c.Body), "", "L", false)
		}
		if len(c.Bullets) > 0 {
			pdf.SetFont("Helvetica", "", 10)
			for _, b := range c.Bullets {
				pdf.MultiCell(inner, pdfLine, tr("- "+b), "", "L", false)
			}
		}
		for i, p := range c.Progress {
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(inner-15, pdfLine, tr(p.Label), "", 0, "L", false, 0, "")
			pdf.CellFormat(15, pdfLine, fmt.Sprintf("%d%%", p.Shown), "", 1, "R", false, 0, "")
			y := pdf.GetY()
			x := pdfMargin + pdfPadding
			pdf.SetFillColor(226, 232, 240)
			pdf.Rect(x, y, inner, 2.5, "F")
			if i == 0 {
				pdf.SetFillColor(126, 34, 206)
			} else {
				pdf.SetFillColor(148, 163, 184)
			}
			if p.Pct > 0 {
				pdf.Rect(x, y, inner*p.Pct/100, 2.5, "F")
			}
			pdf.SetY(y + 4)
		}
		if len(c.Anchors) > 0 {
			pdf.SetFont("Helvetica", "", 8)
			pdf.Write(pdfLine, "Sources: ")
			for i, a := range c.Anchors {
				if i > 0 {
					pdf.Write(pdfLine, " | ")
				}
				pdf.WriteLinkString(pdfLine, fmt.Sprintf("%d", a.N), a.URL)
			}
			pdf.Ln(pdfLine)
		}

		bottom := pdf.GetY() + pdfPadding
		pdf.SetLeftMargin(pdfMargin)
		pdf.SetRightMargin(pdfMargin)
		if bottom > top {
			// dark cards get a heavy frame since the page stays white
			if c.Dark {
				pdf.SetDrawColor(15, 23, 42)
				pdf.SetLineWidth(0.8)
			} else {
				pdf.SetDrawColor(203, 213, 225)
				pdf.SetLineWidth(0.2)
			}
			pdf.Rect(pdfMargin, top, width, bottom-top, "D")
		}
		pdf.SetY(bottom + 4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render bento pdf: %w", err)
	}
	return buf.Bytes(), nil
}
