package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Lllllllleong/conferenceportal/internal/pdfdoc"
)

// A4 portrait height in points; pdfcpu positions are measured from the
// lower left corner.
const pageHeight = 842

type font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type textBox struct {
	Value string `json:"value"`
	Pos   [2]int `json:"pos"`
	Font  font   `json:"font"`
}

type pageContent struct {
	Text []textBox `json:"text"`
}

type page struct {
	Content pageContent `json:"content"`
}

type document struct {
	Paper string          `json:"paper"`
	Pages map[string]page `json:"pages"`
}

type line struct {
	label, value string
}

// PDFRenderer renders receipts with pdfcpu's JSON create API.
type PDFRenderer struct {
	Issuer string
}

// NewPDFRenderer returns a renderer that prints issuer in the header.
func NewPDFRenderer(issuer string) *PDFRenderer {
	return &PDFRenderer{Issuer: issuer}
}

func (r *PDFRenderer) layout(d Data) document {
	lines := []line{
		{"Receipt number", d.ReceiptNumber},
		{"Transaction", d.TxnID},
		{"Paid on", d.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")},
		{"Received from", d.PayerName},
		{"Email", d.PayerEmail},
		{"Description", d.Description},
	}
	if d.ReferenceNumber != "" {
		lines = append(lines, line{"Submission", d.ReferenceNumber})
	}
	lines = append(lines, line{"Amount", d.Amount})

	texts := []textBox{
		{Value: r.Issuer, Pos: [2]int{60, pageHeight - 80}, Font: font{Name: "Helvetica-Bold", Size: 20}},
		{Value: "Payment Receipt", Pos: [2]int{60, pageHeight - 110}, Font: font{Name: "Helvetica", Size: 14}},
	}
	y := pageHeight - 170
	for _, l := range lines {
		texts = append(texts,
			textBox{Value: l.label, Pos: [2]int{60, y}, Font: font{Name: "Helvetica-Bold", Size: 11}},
			textBox{Value: l.value, Pos: [2]int{200, y}, Font: font{Name: "Helvetica", Size: 11}},
		)
		y -= 24
	}
	texts = append(texts, textBox{
		Value: "This receipt was generated electronically and requires no signature.",
		Pos:   [2]int{60, 60},
		Font:  font{Name: "Helvetica-Oblique", Size: 9},
	})

	return document{
		Paper: "A4P",
		Pages: map[string]page{"1": {Content: pageContent{Text: texts}}},
	}
}

// Render produces a single page PDF for d.
func (r *PDFRenderer) Render(ctx context.Context, d Data) ([]byte, error) {
	desc, err := json.Marshal(r.layout(d))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt layout: %w", err)
	}
	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &buf, pdfdoc.Config()); err != nil {
		return nil, fmt.Errorf("failed to render receipt %s: %w", d.ReceiptNumber, err)
	}
	return buf.Bytes(), nil
}
