package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/repository"
)

// fakeReceiptStore mimics the check-then-set columns: a second
// write for the same ticket returns the first value.
type fakeReceiptStore struct {
	tickets    []repository.ReceiptTicket
	receipts   map[uint64]string
	codes      map[uint64]string
	collisions int // pending duplicate-key failures for SetQRCodeIfEmpty
}

func newFakeReceiptStore(tickets ...repository.ReceiptTicket) *fakeReceiptStore {
	return &fakeReceiptStore{
		tickets:  tickets,
		receipts: map[uint64]string{},
		codes:    map[uint64]string{},
	}
}

func (f *fakeReceiptStore) ListPaidForReceipt(ctx context.Context, userID uint64, ids []uint64) ([]repository.ReceiptTicket, error) {
	want := map[uint64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := make([]repository.ReceiptTicket, 0)
	for _, t := range f.tickets {
		if t.UserID != userID {
			continue
		}
		if len(ids) > 0 && !want[t.ID] {
			continue
		}
		if r, ok := f.receipts[t.ID]; ok {
			v := r
			t.Receipt = &v
		}
		if c, ok := f.codes[t.ID]; ok {
			v := c
			t.QRCode = &v
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeReceiptStore) SetReceiptIfEmpty(ctx context.Context, ticketID uint64, receipt string) (string, error) {
	if existing, ok := f.receipts[ticketID]; ok {
		return existing, nil
	}
	f.receipts[ticketID] = receipt
	return receipt, nil
}

func (f *fakeReceiptStore) SetQRCodeIfEmpty(ctx context.Context, ticketID uint64, code string) (string, error) {
	if f.collisions > 0 {
		f.collisions--
		return "", errors.New("Error 1062 (23000): Duplicate entry")
	}
	if existing, ok := f.codes[ticketID]; ok {
		return existing, nil
	}
	f.codes[ticketID] = code
	return code, nil
}

type fakeRasterizer struct{ got *Receipt }

func (f *fakeRasterizer) Rasterize(ctx context.Context, r *Receipt) ([]byte, error) {
	f.got = r
	return []byte("%PDF-1.4 fake"), nil
}

func testTickets() []repository.ReceiptTicket {
	return []repository.ReceiptTicket{
		{ID: 1, UserID: 7, TypeName: "Full Camp Ticket", Admits: model.AdmitsFull, HolderName: "Alex Doe"},
		{ID: 2, UserID: 7, TypeName: "Kids Ticket", Admits: model.AdmitsKids, HolderName: "Jo Doe"},
		{ID: 3, UserID: 7, TypeName: "Car Parking", Admits: model.AdmitsCar},
		{ID: 4, UserID: 9, TypeName: "Full Camp Ticket", Admits: model.AdmitsFull},
	}
}

func newReceiptFixture(t *testing.T, store *fakeReceiptStore) (*ReceiptService, *fakeRasterizer) {
	t.Helper()
	ras := &fakeRasterizer{}
	svc := NewReceiptService(store, ras, "https://tickets.example.org/checkin/", "https://tickets.example.org")
	seq := 0
	svc.newReceiptID = func() string {
		seq++
		return fmt.Sprintf("receipt-%d", seq)
	}
	codes := []string{"BCDFGHJK", "CDFGHJKM", "DFGHJKMP", "FGHJKMPQ"}
	codeSeq := 0
	svc.newCode = func(length int) (string, error) {
		c := codes[codeSeq%len(codes)]
		codeSeq++
		return c, nil
	}
	return svc, ras
}

func TestRenderEmptySetIsNotFound(t *testing.T) {
	svc, _ := newReceiptFixture(t, newFakeReceiptStore(testTickets()...))

	_, err := svc.Render(context.Background(), 123, nil, RenderOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	// Restricting to someone else's ticket looks identical.
	_, err = svc.Render(context.Background(), 7, []uint64{4}, RenderOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenderAssignsCodesIdempotently(t *testing.T) {
	store := newFakeReceiptStore(testTickets()...)
	svc, _ := newReceiptFixture(t, store)

	doc, err := svc.Render(context.Background(), 7, nil, RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, doc.ContentType, "text/html")

	firstReceipts := map[uint64]string{}
	for id, r := range store.receipts {
		firstReceipts[id] = r
	}
	firstCodes := map[uint64]string{}
	for id, c := range store.codes {
		firstCodes[id] = c
	}
	require.Len(t, firstCodes, 3)

	// A second render must reuse every identifier.
	_, err = svc.Render(context.Background(), 7, nil, RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, firstReceipts, store.receipts)
	assert.Equal(t, firstCodes, store.codes)
}

func TestRenderRetriesCodeCollision(t *testing.T) {
	store := newFakeReceiptStore(testTickets()[0])
	store.collisions = 2
	svc, _ := newReceiptFixture(t, store)

	_, err := svc.Render(context.Background(), 7, nil, RenderOptions{})
	require.NoError(t, err)
	require.Len(t, store.codes, 1)
	// Two candidates were burned by collisions; the third stuck.
	assert.Equal(t, "DFGHJKMP", store.codes[1])
}

func TestRenderGroupsByAdmission(t *testing.T) {
	store := newFakeReceiptStore(testTickets()...)
	svc, ras := newReceiptFixture(t, store)

	doc, err := svc.Render(context.Background(), 7, nil, RenderOptions{PDF: true})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)

	require.NotNil(t, ras.got)
	require.Len(t, ras.got.Entrance, 2)
	assert.Equal(t, model.AdmitsFull, ras.got.Entrance[0].Admits)
	assert.Equal(t, model.AdmitsKids, ras.got.Entrance[1].Admits)
	require.Len(t, ras.got.Vehicle, 1)
	assert.Equal(t, model.AdmitsCar, ras.got.Vehicle[0].Admits)
	assert.Len(t, ras.got.All, 3)
}

func TestRenderHTMLContainsGroupsAndHolders(t *testing.T) {
	store := newFakeReceiptStore(testTickets()...)
	svc, _ := newReceiptFixture(t, store)

	doc, err := svc.Render(context.Background(), 7, nil, RenderOptions{})
	require.NoError(t, err)
	html := string(doc.Body)
	assert.Contains(t, html, "Entrance tickets")
	assert.Contains(t, html, "Vehicle passes")
	assert.Contains(t, html, "Alex Doe")
	assert.Contains(t, html, "<svg", "QR codes are inlined as SVG by default")
}

func TestRenderPNGModeLinksQRImages(t *testing.T) {
	store := newFakeReceiptStore(testTickets()...)
	svc, _ := newReceiptFixture(t, store)

	doc, err := svc.Render(context.Background(), 7, nil, RenderOptions{PNG: true})
	require.NoError(t, err)
	html := string(doc.Body)
	assert.NotContains(t, html, "<svg")
	// Relative QR links are resolved against the base URL.
	assert.Contains(t, html, `src="https://tickets.example.org/v1/receipt/BCDFGHJK/qr"`)
}

func TestRenderTableMode(t *testing.T) {
	store := newFakeReceiptStore(testTickets()...)
	svc, _ := newReceiptFixture(t, store)

	doc, err := svc.Render(context.Background(), 7, nil, RenderOptions{Table: true})
	require.NoError(t, err)
	html := string(doc.Body)
	assert.Contains(t, html, "<table")
	assert.Contains(t, html, "BCDFGHJK")
}

func TestRenderRestrictsToRequestedIDs(t *testing.T) {
	store := newFakeReceiptStore(testTickets()...)
	svc, ras := newReceiptFixture(t, store)

	_, err := svc.Render(context.Background(), 7, []uint64{3}, RenderOptions{PDF: true})
	require.NoError(t, err)
	assert.Empty(t, ras.got.Entrance)
	require.Len(t, ras.got.Vehicle, 1)
	assert.EqualValues(t, 3, ras.got.Vehicle[0].ID)
}

func TestQRPNG(t *testing.T) {
	svc, _ := newReceiptFixture(t, newFakeReceiptStore())

	png, err := svc.QRPNG("BCDFGHJK", 256)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"), "output is a PNG image")

	_, err = svc.QRPNG("not!safe", 256)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.QRPNG("BCDFGHJKM", 256) // nine chars, over the bound
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.QRPNG("", 256)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQRSVG(t *testing.T) {
	svc, _ := newReceiptFixture(t, newFakeReceiptStore())

	svg, err := svc.QRSVG("BCDFGHJK")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, "path")

	_, err = svc.QRSVG("lower")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveLinks(t *testing.T) {
	base := "https://tickets.example.org/receipt"
	in := `<img src="//cdn.example.org/logo.png">` +
		`<link href="/static/receipt.css">` +
		`<img src="qr/ABCD.png">` +
		`<a href="https://elsewhere.example.org/page">x</a>`

	out := ResolveLinks(in, base)
	assert.Contains(t, out, `src="https://cdn.example.org/logo.png"`)
	assert.Contains(t, out, `href="https://tickets.example.org/static/receipt.css"`)
	assert.Contains(t, out, `src="https://tickets.example.org/qr/ABCD.png"`)
	assert.Contains(t, out, `href="https://elsewhere.example.org/page"`)
}
