package service

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/monitoring"
	"github.com/campfield/ticketoffice/internal/repository"
)

// receiptTicketStore is the slice of the ticket repository the
// renderer needs.
type receiptTicketStore interface {
	ListPaidForReceipt(ctx context.Context, userID uint64, ids []uint64) ([]repository.ReceiptTicket, error)
	SetReceiptIfEmpty(ctx context.Context, ticketID uint64, receipt string) (string, error)
	SetQRCodeIfEmpty(ctx context.Context, ticketID uint64, code string) (string, error)
}

// Rasterizer turns an assembled receipt into a PDF byte stream.
// PDF generation is slow, I/O-bound work; implementations should
// honour the context deadline set at the request boundary.
type Rasterizer interface {
	Rasterize(ctx context.Context, r *Receipt) ([]byte, error)
}

// RenderOptions selects the receipt output mode. HTML is the
// default when no flag is set.
type RenderOptions struct {
	PDF   bool // rasterize to PDF
	PNG   bool // embed QR codes as linked PNG images instead of inline SVG
	Table bool // compact tabular layout
}

// Document is a rendered receipt ready to serve.
type Document struct {
	ContentType string
	Body        []byte
}

// Receipt is the assembled view of a paid ticket set, partitioned
// into display groups. Tickets of other admission classes stay in
// All but are omitted from the groups, matching the printed layout.
type Receipt struct {
	Entrance []repository.ReceiptTicket
	Vehicle  []repository.ReceiptTicket
	All      []repository.ReceiptTicket
	PNG      bool
	Table    bool
}

// ReceiptService renders receipts for paid tickets, lazily minting
// the receipt identifier and check-in code for each ticket on first
// render.
type ReceiptService struct {
	tickets      receiptTicketStore
	pdf          Rasterizer
	checkinBase  string // external config: QR payload prefix
	baseURL      string // external config: base for resolving relative links
	newReceiptID func() string
	newCode      func(length int) (string, error)
}

// NewReceiptService wires a renderer. checkinBase and baseURL come
// from Config; the rasterizer is the gofpdf-backed one in
// production.
func NewReceiptService(tickets receiptTicketStore, pdf Rasterizer, checkinBase, baseURL string) *ReceiptService {
	return &ReceiptService{
		tickets:      tickets,
		pdf:          pdf,
		checkinBase:  checkinBase,
		baseURL:      baseURL,
		newReceiptID: uuid.NewString,
		newCode:      newCheckinCode,
	}
}

// Render resolves the user's paid tickets (optionally restricted to
// ids), ensures every ticket has a stable receipt identifier and
// check-in code, and renders the requested output. An empty ticket
// set is ErrNotFound regardless of why it is empty.
func (s *ReceiptService) Render(ctx context.Context, userID uint64, ids []uint64, opts RenderOptions) (*Document, error) {
	tickets, err := s.tickets.ListPaidForReceipt(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	for i := range tickets {
		if err := s.ensureCodes(ctx, &tickets[i]); err != nil {
			return nil, err
		}
	}

	r := &Receipt{All: tickets, PNG: opts.PNG, Table: opts.Table}
	for _, t := range tickets {
		switch t.Admits {
		case model.AdmitsFull, model.AdmitsKids:
			r.Entrance = append(r.Entrance, t)
		case model.AdmitsCar, model.AdmitsCampervan:
			r.Vehicle = append(r.Vehicle, t)
		}
	}

	if opts.PDF {
		body, err := s.pdf.Rasterize(ctx, r)
		if err != nil {
			return nil, err
		}
		monitoring.TrackRender("pdf")
		return &Document{ContentType: "application/pdf", Body: body}, nil
	}

	html, err := s.renderHTML(r)
	if err != nil {
		return nil, err
	}
	monitoring.TrackRender("html")
	return &Document{ContentType: "text/html; charset=utf-8", Body: html}, nil
}

// ensureCodes lazily generates the receipt identifier and check-in
// code. Both writes are check-then-set against NULL columns, so a
// second render call always reads back the first call's values. A
// check-in code colliding with another ticket's is retried with a
// fresh candidate.
func (s *ReceiptService) ensureCodes(ctx context.Context, t *repository.ReceiptTicket) error {
	if t.Receipt == nil {
		got, err := s.tickets.SetReceiptIfEmpty(ctx, t.ID, s.newReceiptID())
		if err != nil {
			return err
		}
		t.Receipt = &got
	}
	if t.QRCode == nil {
		for attempt := 0; ; attempt++ {
			code, err := s.newCode(model.MaxCodeLength)
			if err != nil {
				return err
			}
			got, err := s.tickets.SetQRCodeIfEmpty(ctx, t.ID, code)
			if err != nil {
				if attempt < 4 && strings.Contains(strings.ToLower(err.Error()), "1062") {
					continue // another ticket holds this code
				}
				return err
			}
			t.QRCode = &got
			break
		}
	}
	return nil
}

// CheckinURL returns the payload encoded into a ticket's QR image.
func (s *ReceiptService) CheckinURL(code string) string {
	return s.checkinBase + code
}

// QRPNG encodes the check-in URL for a code as a PNG image. Codes
// outside the safe alphabet or longer than the bound do not exist
// as far as callers can tell.
func (s *ReceiptService) QRPNG(code string, size int) ([]byte, error) {
	if !model.ValidateSafeChars(code) {
		return nil, ErrNotFound
	}
	if size <= 0 {
		size = 256
	}
	monitoring.TrackRender("qr-png")
	return qrcode.Encode(s.CheckinURL(code), qrcode.Medium, size)
}

// QRSVG encodes the check-in URL for a code as an SVG path image,
// suitable for inlining into the HTML receipt.
func (s *ReceiptService) QRSVG(code string) (string, error) {
	if !model.ValidateSafeChars(code) {
		return "", ErrNotFound
	}
	qr, err := qrcode.New(s.CheckinURL(code), qrcode.Medium)
	if err != nil {
		return "", err
	}
	monitoring.TrackRender("qr-svg")
	return bitmapToSVG(qr.Bitmap()), nil
}

// bitmapToSVG renders a QR module bitmap as a unit-grid SVG with
// one path per dark module row run. go-qrcode only emits PNG, so
// the SVG variant is assembled here.
func bitmapToSVG(bitmap [][]bool) string {
	n := len(bitmap)
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 `)
	b.WriteString(itoa(n))
	b.WriteString(" ")
	b.WriteString(itoa(n))
	b.WriteString(`" shape-rendering="crispEdges"><path d="`)
	for y, row := range bitmap {
		runStart := -1
		for x := 0; x <= len(row); x++ {
			dark := x < len(row) && row[x]
			if dark && runStart < 0 {
				runStart = x
			}
			if !dark && runStart >= 0 {
				// One horizontal run of dark modules.
				b.WriteString("M")
				b.WriteString(itoa(runStart))
				b.WriteString(",")
				b.WriteString(itoa(y))
				b.WriteString("h")
				b.WriteString(itoa(x - runStart))
				b.WriteString("v1h-")
				b.WriteString(itoa(x - runStart))
				b.WriteString("z")
				runStart = -1
			}
		}
	}
	b.WriteString(`" fill="#000"/></svg>`)
	return b.String()
}

func itoa(n int) string { return strconv.Itoa(n) }

// linkAttr matches src/href attributes in rendered HTML.
var linkAttr = regexp.MustCompile(`(src|href)="([^"]*)"`)

// ResolveLinks rewrites embedded resource links so an external
// rasterizer can fetch them: protocol-relative links are promoted
// to https and relative links are resolved against the base URL.
// Absolute links pass through untouched.
func ResolveLinks(html, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return html
	}
	return linkAttr.ReplaceAllStringFunc(html, func(m string) string {
		parts := linkAttr.FindStringSubmatch(m)
		attr, link := parts[1], parts[2]
		switch {
		case strings.HasPrefix(link, "//"):
			link = "https:" + link
		case strings.HasPrefix(link, "https://"), strings.HasPrefix(link, "http://"):
			// already absolute
		default:
			if ref, err := url.Parse(link); err == nil {
				link = baseURL.ResolveReference(ref).String()
			}
		}
		return attr + `="` + link + `"`
	})
}
