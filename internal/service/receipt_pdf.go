package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/campfield/ticketoffice/internal/repository"
)

// PDFRasterizer renders receipts with gofpdf, one ticket block per
// row with the QR code embedded as a PNG image.
type PDFRasterizer struct {
	checkinBase string
}

// NewPDFRasterizer returns the production rasterizer. checkinBase is
// the same QR payload prefix the HTML renderer uses, so scanning a
// printed ticket and scanning the web receipt land on the same URL.
func NewPDFRasterizer(checkinBase string) *PDFRasterizer {
	return &PDFRasterizer{checkinBase: checkinBase}
}

func (p *PDFRasterizer) Rasterize(ctx context.Context, r *Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Your tickets")
	pdf.Ln(14)

	if err := p.section(ctx, pdf, "Entrance tickets", r.Entrance); err != nil {
		return nil, err
	}
	if err := p.section(ctx, pdf, "Vehicle passes", r.Vehicle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDFRasterizer) section(ctx context.Context, pdf *gofpdf.Fpdf, title string, tickets []repository.ReceiptTicket) error {
	if len(tickets) == 0 {
		return nil
	}
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	for _, t := range tickets {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, t.TypeName)
		pdf.Ln(6)
		if t.HolderName != "" {
			pdf.Cell(0, 8, fmt.Sprintf("Name: %s", t.HolderName))
			pdf.Ln(6)
		}
		if t.QRCode != nil {
			pdf.Cell(0, 8, fmt.Sprintf("Check-in code: %s", *t.QRCode))

			qrPNG, err := qrcode.Encode(p.checkinBase+*t.QRCode, qrcode.Medium, 256)
			if err != nil {
				return fmt.Errorf("encode qr for ticket %d: %w", t.ID, err)
			}
			imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
			name := fmt.Sprintf("qr-%d", t.ID)
			pdf.RegisterImageOptionsReader(name, imageOpts, bytes.NewReader(qrPNG))
			x, y := pdf.GetXY()
			pdf.ImageOptions(name, 160, y-8, 30, 30, false, imageOpts, 0, "")
			pdf.SetXY(x, y)
			pdf.Ln(6)
		}
		if t.Receipt != nil {
			pdf.Cell(0, 8, fmt.Sprintf("Receipt: %s", *t.Receipt))
			pdf.Ln(6)
		}
		pdf.Ln(22)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf build: %w", err)
	}
	return nil
}
