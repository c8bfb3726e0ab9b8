package receipts

import (
	"bytes"
	"fmt"

	"papeleria/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// QRPayload is the text encoded in the receipt's QR code.
func QRPayload(o models.Order) string {
	return fmt.Sprintf("%s|%s|%.2f", o.OrderID, o.Client, o.Total)
}

// Render builds an A4 PDF receipt for an order.
func Render(o models.Order) ([]byte, error) {
	qrPNG, err := qrcode.Encode(QRPayload(o), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Pedido")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	lines := []string{
		"Order: " + o.OrderID,
		"Client: " + o.Client,
		"Date: " + o.CreatedAt.Format("2006-01-02 15:04"),
		"Status: " + o.Status,
		"Address: " + o.Shipping.Address,
	}
	if o.Shipping.Unit != "" {
		lines = append(lines, "Unit: "+o.Shipping.Unit)
	}
	lines = append(lines, "Phone: "+o.Shipping.Phone, "State: "+o.Shipping.State)
	for _, l := range lines {
		pdf.Cell(0, 7, tr(l))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(100, 8, "Product", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Subtotal", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, p := range o.Products {
		pdf.CellFormat(100, 8, tr(p.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%d", p.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", p.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", p.Price*float64(p.Quantity)), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(155, 9, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 9, fmt.Sprintf("%.2f", o.Total), "1", 1, "R", false, 0, "")

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 15, 35, 35, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
