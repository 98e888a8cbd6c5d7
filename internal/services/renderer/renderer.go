// Package renderer produces the printable voucher PDF: a header block and a
// 3x3 grid of QR-coded vouchers per Letter page. Output depends only on the
// voucher list, so re-rendering after a failure is safe.
package renderer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// VoucherCard is one voucher as the renderer consumes it.
type VoucherCard struct {
	ID             string
	ContractorName string
	ContractorCode string
	BatchToken     string
	ExpiresAt      time.Time
	Ordinal        int
	Total          int
	DiningSite     string
}

// Letter page layout, in mm.
const (
	pageWidth  = 215.9
	pageHeight = 279.4

	cols       = 3
	rows       = 3
	marginX    = 12.0
	headerH    = 42.0
	cardW      = 62.0
	cardH      = 70.0
	gapX       = 3.0
	gapY       = 4.0
	qrSize     = 34.0
)

// GenerateVoucherPDF renders the voucher grid and returns the PDF bytes.
func GenerateVoucherPDF(cards []VoucherCard) ([]byte, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("no vouchers to render")
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	perPage := cols * rows
	first := cards[0]

	for i, card := range cards {
		if i%perPage == 0 {
			pdf.AddPage()
			drawHeader(pdf, first, len(cards))
		}

		idx := i % perPage
		col := idx % cols
		row := idx / cols

		x := marginX + float64(col)*(cardW+gapX)
		y := headerH + float64(row)*(cardH+gapY)

		if err := drawCard(pdf, card, i, x, y); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawHeader(pdf *gofpdf.Fpdf, first VoucherCard, total int) {
	pdf.SetFont("Arial", "B", 16)
	pdf.SetXY(0, 10)
	pdf.CellFormat(pageWidth, 8, "MEAL VOUCHERS - GESSA", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(pageWidth, 5, fmt.Sprintf("Contractor: %s", first.ContractorName), "", 1, "C", false, 0, "")
	if first.DiningSite != "" {
		pdf.CellFormat(pageWidth, 5, fmt.Sprintf("Dining site: %s", first.DiningSite), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(pageWidth, 5, fmt.Sprintf("Total vouchers: %d", total), "", 1, "C", false, 0, "")
	pdf.CellFormat(pageWidth, 5,
		fmt.Sprintf("Valid until: %s   Batch: %s", first.ExpiresAt.Format("2006-01-02"), first.BatchToken),
		"", 1, "C", false, 0, "")
}

func drawCard(pdf *gofpdf.Fpdf, card VoucherCard, index int, x, y float64) error {
	pdf.Rect(x, y, cardW, cardH, "D")

	pdf.SetFont("Arial", "B", 8)
	pdf.SetXY(x, y+2)
	pdf.CellFormat(cardW, 4, "MEAL VOUCHER", "", 0, "C", false, 0, "")

	pdf.SetFont("Arial", "", 6)
	pdf.SetXY(x, y+6)
	pdf.CellFormat(cardW, 3, "GESSA", "", 0, "C", false, 0, "")

	// QR of the bare voucher id; scanners post it to the validation API.
	qrPng, err := qrcode.Encode(card.ID, qrcode.High, 256)
	if err != nil {
		return err
	}

	imgName := fmt.Sprintf("qr_%d", index)
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(qrPng))
	pdf.ImageOptions(imgName, x+(cardW-qrSize)/2, y+10, qrSize, qrSize, false, opts, 0, "")

	textY := y + 10 + qrSize + 1
	pdf.SetFont("Arial", "", 5)
	pdf.SetXY(x, textY)
	pdf.CellFormat(cardW, 3, fmt.Sprintf("Batch: %s", card.BatchToken), "", 0, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 8)
	pdf.SetXY(x, textY+3.5)
	pdf.CellFormat(cardW, 4, fmt.Sprintf("[%s]", card.ContractorCode), "", 0, "C", false, 0, "")

	pdf.SetFont("Arial", "", 6)
	pdf.SetXY(x+2, y+cardH-5)
	pdf.CellFormat(cardW/2, 3, fmt.Sprintf("Voucher %d/%d", card.Ordinal, card.Total), "", 0, "L", false, 0, "")
	pdf.SetXY(x+cardW/2-2, y+cardH-5)
	pdf.CellFormat(cardW/2, 3, fmt.Sprintf("Expires: %s", card.ExpiresAt.Format("2006-01-02")), "", 0, "R", false, 0, "")

	return nil
}

// SavePDF writes the rendered PDF beneath dir and returns the absolute path
// plus the URL the batch row stores.
func SavePDF(dir, filename string, data []byte) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", err
	}
	return path, "/pdfs/" + filename, nil
}
