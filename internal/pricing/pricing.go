// Package pricing converts between MRP, PTR and PTS and computes scheme
// adjusted net rates. All results are rounded half-up to two decimal places.
package pricing

import "github.com/shopspring/decimal"

const places = 2

var (
	DefaultRetailerMargin = decimal.NewFromInt(20)
	DefaultStockistMargin = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// Round applies currency rounding. decimal.Round rounds half away from zero,
// which is half-up for the non-negative amounts billed here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(places)
}

// PriceFromMRP reverse-calculates the price to retailer:
// PTR = (mrp - mrp*margin/100) / (1 + gst/100).
func PriceFromMRP(mrp, gstPercent, retailerMarginPercent decimal.Decimal) decimal.Decimal {
	margin := mrp.Mul(retailerMarginPercent).Div(hundred)
	divisor := decimal.NewFromInt(1).Add(gstPercent.Div(hundred))
	if divisor.IsZero() {
		return decimal.Zero
	}
	return Round(mrp.Sub(margin).Div(divisor))
}

// PriceToStockist computes PTS = ptr - ptr*margin/100.
func PriceToStockist(ptr, stockistMarginPercent decimal.Decimal) decimal.Decimal {
	margin := ptr.Mul(stockistMarginPercent).Div(hundred)
	return Round(ptr.Sub(margin))
}

// NetRate is the effective per-unit cost once free units are spread across
// everything received. It is zero when no units are present at all.
func NetRate(rate decimal.Decimal, billedQty, freeQty int) decimal.Decimal {
	units := billedQty + freeQty
	if units == 0 {
		return decimal.Zero
	}
	cost := rate.Mul(decimal.NewFromInt(int64(billedQty)))
	return Round(cost.Div(decimal.NewFromInt(int64(units))))
}

// LineAmount is what the buyer pays for a line. Free units cost nothing.
func LineAmount(rate decimal.Decimal, billedQty int) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(billedQty)))
}

// ApplyPercent returns amount * (1 + percent/100), rounded.
func ApplyPercent(amount, percent decimal.Decimal) decimal.Decimal {
	return Round(amount.Add(amount.Mul(percent).Div(hundred)))
}

type Derived struct {
	PTR decimal.Decimal
	PTS decimal.Decimal
}

// Derive computes PTR and PTS from MRP using the default trade margins.
func Derive(mrp, gstPercent decimal.Decimal) Derived {
	ptr := PriceFromMRP(mrp, gstPercent, DefaultRetailerMargin)
	return Derived{PTR: ptr, PTS: PriceToStockist(ptr, DefaultStockistMargin)}
}
