package service

import (
	"bytes"
	"html/template"

	"github.com/campfield/ticketoffice/internal/repository"
)

// receiptView is the template payload for one receipt page.
type receiptView struct {
	Entrance []ticketView
	Vehicle  []ticketView
	Other    []ticketView
	Table    bool
}

type ticketView struct {
	ID       uint64
	TypeName string
	Holder   string
	Code     string
	Receipt  string
	QR       template.HTML // inline SVG, empty in PNG mode
	QRHref   string        // PNG image URL, empty in SVG mode
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Your tickets</title>
<link rel="stylesheet" href="/static/receipt.css">
</head>
<body>
<h1>Your tickets</h1>
{{if .Table}}
<table class="receipt">
<tr><th>Ticket</th><th>Holder</th><th>Check-in code</th><th>Receipt</th></tr>
{{range .Entrance}}<tr><td>{{.TypeName}}</td><td>{{.Holder}}</td><td class="code">{{.Code}}</td><td>{{.Receipt}}</td></tr>
{{end}}{{range .Vehicle}}<tr><td>{{.TypeName}}</td><td>{{.Holder}}</td><td class="code">{{.Code}}</td><td>{{.Receipt}}</td></tr>
{{end}}{{range .Other}}<tr><td>{{.TypeName}}</td><td>{{.Holder}}</td><td class="code">{{.Code}}</td><td>{{.Receipt}}</td></tr>
{{end}}</table>
{{else}}
{{if .Entrance}}<section class="entrance"><h2>Entrance tickets</h2>
{{range .Entrance}}<div class="ticket">
<h3>{{.TypeName}}</h3>
{{if .Holder}}<p class="holder">{{.Holder}}</p>{{end}}
{{if .QRHref}}<img class="qr" src="{{.QRHref}}" alt="check-in code {{.Code}}">{{else}}<div class="qr">{{.QR}}</div>{{end}}
<p class="code">{{.Code}}</p>
<p class="receipt-id">Receipt {{.Receipt}}</p>
</div>
{{end}}</section>{{end}}
{{if .Vehicle}}<section class="vehicle"><h2>Vehicle passes</h2>
{{range .Vehicle}}<div class="ticket">
<h3>{{.TypeName}}</h3>
{{if .QRHref}}<img class="qr" src="{{.QRHref}}" alt="check-in code {{.Code}}">{{else}}<div class="qr">{{.QR}}</div>{{end}}
<p class="code">{{.Code}}</p>
<p class="receipt-id">Receipt {{.Receipt}}</p>
</div>
{{end}}</section>{{end}}
{{end}}
</body>
</html>
`))

// renderHTML builds the receipt page. In PNG mode QR codes become
// image links served by the QR endpoint; otherwise the SVG is
// inlined so the page has no external dependencies. Relative links
// are resolved against the public base URL either way so the page
// survives being saved or mailed.
func (s *ReceiptService) renderHTML(r *Receipt) ([]byte, error) {
	view := receiptView{Table: r.Table}
	for _, t := range r.All {
		tv, err := s.ticketView(t, r.PNG)
		if err != nil {
			return nil, err
		}
		switch {
		case contains(r.Entrance, t.ID):
			view.Entrance = append(view.Entrance, tv)
		case contains(r.Vehicle, t.ID):
			view.Vehicle = append(view.Vehicle, tv)
		default:
			view.Other = append(view.Other, tv)
		}
	}

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, view); err != nil {
		return nil, err
	}
	return []byte(ResolveLinks(buf.String(), s.baseURL)), nil
}

func (s *ReceiptService) ticketView(t repository.ReceiptTicket, png bool) (ticketView, error) {
	tv := ticketView{ID: t.ID, TypeName: t.TypeName, Holder: t.HolderName}
	if t.Receipt != nil {
		tv.Receipt = *t.Receipt
	}
	if t.QRCode == nil {
		return tv, nil
	}
	tv.Code = *t.QRCode
	if png {
		tv.QRHref = "/v1/receipt/" + *t.QRCode + "/qr"
		return tv, nil
	}
	svg, err := s.QRSVG(*t.QRCode)
	if err != nil {
		return tv, err
	}
	tv.QR = template.HTML(svg)
	return tv, nil
}

func contains(ts []repository.ReceiptTicket, id uint64) bool {
	for _, t := range ts {
		if t.ID == id {
			return true
		}
	}
	return false
}
