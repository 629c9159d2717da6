package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/pricing"
	"pharmabill/backend/internal/xid"
)

type RefusalKind string

const (
	RefusalEmptyCart          RefusalKind = "EmptyCart"
	RefusalComplianceRequired RefusalKind = "ComplianceRequired"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrComplianceRequired = errors.New("schedule H1 compliance details required")
)

// Refusal is returned instead of an invoice when checkout cannot proceed.
// Refusals have no side effects; the same checkout can simply be retried.
type Refusal struct {
	Kind   RefusalKind `json:"kind"`
	Detail string      `json:"detail"`
}

func (r *Refusal) Error() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

func (r *Refusal) Is(target error) bool {
	switch target {
	case ErrEmptyCart:
		return r.Kind == RefusalEmptyCart
	case ErrComplianceRequired:
		return r.Kind == RefusalComplianceRequired
	}
	return false
}

// DefaultGSTEstimatePercent is the flat tax estimate shown on the bill. It is
// not derived from the per-product GST rates.
var DefaultGSTEstimatePercent = decimal.NewFromInt(12)

// EngineConfig configures NewEngine. An unset GSTEstimatePercent uses
// DefaultGSTEstimatePercent; zero is a valid estimate.
type EngineConfig struct {
	GSTEstimatePercent decimal.NullDecimal
	Now                func() time.Time
	NewID              func() string
}

// Engine folds carts into invoices.
type Engine struct {
	gstEstimate decimal.Decimal
	now         func() time.Time
	newID       func() string
}

func NewEngine(cfg EngineConfig) *Engine {
	gstEstimate := DefaultGSTEstimatePercent
	if cfg.GSTEstimatePercent.Valid && !cfg.GSTEstimatePercent.Decimal.IsNegative() {
		gstEstimate = cfg.GSTEstimatePercent.Decimal
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return xid.New("inv") }
	}
	return &Engine{
		gstEstimate: gstEstimate,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
}

func (e *Engine) GSTEstimatePercent() decimal.Decimal {
	return e.gstEstimate
}

// Payable returns the estimated GST and the payable amount for a taxable total.
func (e *Engine) Payable(taxable decimal.Decimal) (gst decimal.Decimal, payable decimal.Decimal) {
	payable = pricing.ApplyPercent(taxable, e.gstEstimate)
	return payable.Sub(pricing.Round(taxable)), payable
}

// Checkout produces an invoice for cart or a *Refusal. The cart is never
// modified; resetting it afterwards is up to the caller.
func (e *Engine) Checkout(cart *Cart) (domain.Invoice, error) {
	if cart == nil || cart.Len() == 0 {
		return domain.Invoice{}, &Refusal{Kind: RefusalEmptyCart, Detail: "add items before checkout"}
	}

	lines := cart.Lines()
	record := cart.Compliance()
	decision := EvaluateCompliance(lines, record)
	if decision.State == GateBlocked {
		return domain.Invoice{}, &Refusal{Kind: RefusalComplianceRequired, Detail: decision.Reason}
	}

	taxable := cart.Total()
	gst, payable := e.Payable(taxable)

	invoice := domain.Invoice{
		ID:              e.newID(),
		CustomerName:    domain.CashSaleName,
		Items:           lines,
		TaxableAmount:   pricing.Round(taxable),
		GSTEstimateRate: e.gstEstimate,
		GSTEstimate:     gst,
		PayableAmount:   payable,
		CreatedAt:       e.now(),
	}
	if customer := cart.Customer(); customer != nil {
		invoice.CustomerID = customer.ID
		invoice.CustomerName = customer.Name
	}
	if decision.RecordRequired {
		invoice.Compliance = &record
	}
	return invoice, nil
}
