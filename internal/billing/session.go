package billing

import (
	"strings"

	"pharmabill/backend/internal/domain"
)

// Session is one billing counter's state: exactly one active cart.
type Session struct {
	id     string
	owner  string
	cart   *Cart
	engine *Engine
}

func NewSession(id string, owner string, engine *Engine) *Session {
	if engine == nil {
		engine = NewEngine(EngineConfig{})
	}
	return &Session{id: id, owner: owner, cart: NewCart(), engine: engine}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }
func (s *Session) Cart() *Cart   { return s.cart }

func (s *Session) Checkout() (domain.Invoice, error) {
	invoice, err := s.engine.Checkout(s.cart)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.SessionID = s.id
	invoice.CreatedBy = s.owner
	return invoice, nil
}

// View summarizes the current cart for display.
func (s *Session) View() domain.CartView {
	lines := s.cart.Lines()
	taxable := s.cart.Total()
	gst, payable := s.engine.Payable(taxable)
	return domain.CartView{
		SessionID:       s.id,
		Customer:        s.cart.Customer(),
		Lines:           lines,
		Compliance:      s.cart.Compliance(),
		RequiresH1:      EvaluateCompliance(lines, domain.ComplianceRecord{}).RecordRequired,
		TaxableAmount:   taxable,
		GSTEstimateRate: s.engine.GSTEstimatePercent(),
		GSTEstimate:     gst,
		PayableAmount:   payable,
	}
}

// ComplianceStatus evaluates the gate against the cart as it stands.
func (s *Session) ComplianceStatus() domain.ComplianceStatus {
	record := s.cart.Compliance()
	decision := EvaluateCompliance(s.cart.Lines(), record)
	return domain.ComplianceStatus{
		Record:         record,
		State:          string(decision.State),
		RecordRequired: decision.RecordRequired,
		Reason:         decision.Reason,
		H1Products:     decision.H1Products,
	}
}

type Shortcut string

const (
	ShortcutNone     Shortcut = "none"
	ShortcutNewBill  Shortcut = "new_bill"
	ShortcutCheckout Shortcut = "checkout"
)

// ShortcutFor maps desktop function keys to billing actions.
func ShortcutFor(key string) Shortcut {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "F2":
		return ShortcutNewBill
	case "F10":
		return ShortcutCheckout
	default:
		return ShortcutNone
	}
}
