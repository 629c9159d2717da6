// Package receipt renders invoices for thermal printers and ships them to
// the configured device.
package receipt

import (
	"fmt"
	"strconv"

	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/pricing"
)

const DefaultShopName = "PharmaBill Distributors"

type Receipt struct {
	Bytes   []byte
	Preview string
}

func (r Receipt) FileName(invoiceID string) string {
	return fmt.Sprintf("receipt-%s.bin", invoiceID)
}

// Build lays out invoice as an ESC/POS receipt.
func Build(invoice domain.Invoice, shopName string, width int) Receipt {
	if shopName == "" {
		shopName = DefaultShopName
	}
	doc := NewDocument(width)

	doc.Align(AlignCenter).Bold(true).Text(shopName).Bold(false)
	doc.Text("Wholesale & Retail")
	doc.Separator('-')

	doc.Align(AlignLeft)
	doc.Text("Bill: " + invoice.ID)
	doc.Text("Date: " + invoice.CreatedAt.Format("02/01/2006 15:04"))
	customer := invoice.CustomerName
	if customer == "" {
		customer = domain.CashSaleName
	}
	doc.Text("Bill To: " + customer)
	doc.Separator('-')

	doc.Columns("Item", "Qty+Free", "Amt")
	doc.Separator('-')
	for _, line := range invoice.Items {
		qty := strconv.Itoa(line.BilledQty) + "+" + strconv.Itoa(line.FreeQty)
		amount := pricing.LineAmount(line.Product.Rate, line.BilledQty).StringFixed(2)
		doc.Columns(line.Product.Name, qty, amount)
	}
	doc.Separator('-')

	doc.KeyValue("Taxable", invoice.TaxableAmount.StringFixed(2))
	doc.KeyValue("GST est. "+invoice.GSTEstimateRate.String()+"%", invoice.GSTEstimate.StringFixed(2))
	doc.Bold(true).KeyValue("TOTAL Rs.", invoice.PayableAmount.StringFixed(2)).Bold(false)

	if invoice.Compliance != nil {
		doc.Separator('-')
		doc.Text("Schedule H1 Register")
		doc.Text("Dr: " + invoice.Compliance.DoctorName)
		doc.Text("Patient: " + invoice.Compliance.PatientName)
		if invoice.Compliance.RxNumber != "" {
			doc.Text("Rx: " + invoice.Compliance.RxNumber)
		}
	}

	doc.Separator('=')
	doc.Align(AlignCenter).Text("Get well soon")
	doc.Feed(3).Cut()

	return Receipt{Bytes: doc.Bytes(), Preview: doc.Preview()}
}
