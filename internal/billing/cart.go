// Package billing holds the cart state machine, the Schedule H1 compliance
// gate and the invoice aggregator. Nothing in here blocks or returns errors
// for cashier input: bad quantities are normalized and unknown lines ignored.
package billing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/pricing"
)

// QtyField selects which quantity of a line an edit applies to.
type QtyField string

const (
	FieldBilled QtyField = "billed"
	FieldFree   QtyField = "free"
)

func ParseQtyField(raw string) (QtyField, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "billed", "billed_qty", "billedqty":
		return FieldBilled, true
	case "free", "free_qty", "freeqty":
		return FieldFree, true
	default:
		return "", false
	}
}

// ParseQuantity turns free-text quantity input into a usable count. Only the
// leading integer is read, so "3.5" is 3 and "12abc" is 12. Input without
// leading digits becomes 0 and negatives are clamped to 0.
func ParseQuantity(raw string) int {
	text := strings.TrimSpace(raw)
	end := 0
	if end < len(text) && (text[end] == '-' || text[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.Atoi(text[:end])
	if err != nil {
		return 0
	}
	return clampQty(n)
}

func clampQty(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Cart is the mutable bill being assembled for one session.
type Cart struct {
	lines      []domain.CartLine
	customer   *domain.Customer
	compliance domain.ComplianceRecord
}

func NewCart() *Cart {
	return &Cart{}
}

// AddLine merges product into the cart: an existing line for the same product
// gains one billed unit, otherwise a new line with one billed unit is appended.
func (c *Cart) AddLine(product domain.Product) {
	if product.ID <= 0 {
		return
	}
	for i := range c.lines {
		line := &c.lines[i]
		if line.Product.ID != product.ID {
			continue
		}
		line.BilledQty++
		line.NetRate = pricing.NetRate(line.Product.Rate, line.BilledQty, line.FreeQty)
		return
	}
	c.lines = append(c.lines, domain.CartLine{
		Product:   product,
		BilledQty: 1,
		FreeQty:   0,
		NetRate:   pricing.NetRate(product.Rate, 1, 0),
	})
}

// UpdateQuantity sets the billed or free quantity of the line at index.
// A line whose quantities both reach zero stays in the cart.
func (c *Cart) UpdateQuantity(index int, field QtyField, value int) {
	if index < 0 || index >= len(c.lines) {
		return
	}
	line := &c.lines[index]
	value = clampQty(value)
	switch field {
	case FieldBilled:
		line.BilledQty = value
	case FieldFree:
		line.FreeQty = value
	default:
		return
	}
	line.NetRate = pricing.NetRate(line.Product.Rate, line.BilledQty, line.FreeQty)
}

func (c *Cart) RemoveLine(index int) {
	if index < 0 || index >= len(c.lines) {
		return
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
}

// Reset starts a new bill.
func (c *Cart) Reset() {
	c.lines = nil
	c.customer = nil
	c.compliance = domain.ComplianceRecord{}
}

// Total is the taxable amount: rate times billed units over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(pricing.LineAmount(line.Product.Rate, line.BilledQty))
	}
	return total
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) BindCustomer(customer *domain.Customer) {
	if customer == nil {
		c.customer = nil
		return
	}
	bound := *customer
	c.customer = &bound
}

func (c *Cart) Customer() *domain.Customer {
	if c.customer == nil {
		return nil
	}
	out := *c.customer
	return &out
}

func (c *Cart) Compliance() domain.ComplianceRecord {
	return c.compliance
}

func (c *Cart) SetCompliance(record domain.ComplianceRecord) {
	c.compliance = domain.ComplianceRecord{
		DoctorName:  strings.TrimSpace(record.DoctorName),
		PatientName: strings.TrimSpace(record.PatientName),
		RxNumber:    strings.TrimSpace(record.RxNumber),
	}
}
