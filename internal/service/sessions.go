package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pharmabill/backend/internal/billing"
	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/receipt"
	"pharmabill/backend/internal/store"
	"pharmabill/backend/internal/xid"
)

// sessionEntry serializes every event delivered to one billing counter.
type sessionEntry struct {
	mu       sync.Mutex
	session  *billing.Session
	lastUsed atomic.Int64
}

func (e *sessionEntry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

func (e *sessionEntry) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastUsed.Load()))
}

// OpenSession starts a counter with an empty cart. Counters left idle longer
// than the session idle TTL are dropped here, so abandoned sessions do not
// accumulate.
func (s *Service) OpenSession(ctx context.Context) (domain.CartView, error) {
	actor := actorOrSystem(ctx)
	session := billing.NewSession(xid.New("sess"), actor.Username, s.engine)
	entry := &sessionEntry{session: session}
	now := s.now()
	entry.touch(now)

	s.mu.Lock()
	evicted := s.evictIdleLocked(now)
	s.sessions[session.ID()] = entry
	s.mu.Unlock()

	if evicted > 0 {
		log.Printf("[service] evicted %d idle billing sessions", evicted)
	}
	return session.View(), nil
}

func (s *Service) evictIdleLocked(now time.Time) int {
	evicted := 0
	for id, entry := range s.sessions {
		if entry.idleSince(now) > s.sessionIdleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *Service) CloseSession(ctx context.Context, id string) error {
	entry, err := s.lookupSession(ctx, id)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, entry.session.ID())
	s.mu.Unlock()
	return nil
}

func (s *Service) GetCart(ctx context.Context, id string) (domain.CartView, error) {
	var view domain.CartView
	err := s.withSession(ctx, id, func(sess *billing.Session) error {
		view = sess.View()
		return nil
	})
	return view, err
}

// AddLine adds one billed unit of the product. Unknown products leave the
// cart unchanged.
func (s *Service) AddLine(ctx context.Context, id string, req domain.AddLineRequest) (domain.CartView, error) {
	var product domain.Product
	if req.ProductID > 0 {
		found, err := s.repo.GetProduct(ctx, req.ProductID)
		switch {
		case err == nil:
			product = *found
		case errors.Is(err, store.ErrNotFound):
		default:
			return domain.CartView{}, err
		}
	}

	return s.mutateCart(ctx, id, func(cart *billing.Cart) {
		cart.AddLine(product)
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, id string, index int, req domain.UpdateQuantityRequest) (domain.CartView, error) {
	field, _ := billing.ParseQtyField(req.Field)
	value := billing.ParseQuantity(string(req.Value))
	return s.mutateCart(ctx, id, func(cart *billing.Cart) {
		cart.UpdateQuantity(index, field, value)
	})
}

func (s *Service) RemoveLine(ctx context.Context, id string, index int) (domain.CartView, error) {
	return s.mutateCart(ctx, id, func(cart *billing.Cart) {
		cart.RemoveLine(index)
	})
}

func (s *Service) ResetCart(ctx context.Context, id string) (domain.CartView, error) {
	return s.mutateCart(ctx, id, func(cart *billing.Cart) {
		cart.Reset()
	})
}

// BindCustomer attaches a customer to the bill. Customer ID 0 switches the
// bill back to a cash sale.
func (s *Service) BindCustomer(ctx context.Context, id string, req domain.BindCustomerRequest) (domain.CartView, error) {
	var customer *domain.Customer
	if req.CustomerID != 0 {
		found, err := s.repo.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return domain.CartView{}, err
		}
		customer = found
	}
	return s.mutateCart(ctx, id, func(cart *billing.Cart) {
		cart.BindCustomer(customer)
	})
}

func (s *Service) GetCompliance(ctx context.Context, id string) (domain.ComplianceStatus, error) {
	var status domain.ComplianceStatus
	err := s.withSession(ctx, id, func(sess *billing.Session) error {
		status = sess.ComplianceStatus()
		return nil
	})
	return status, err
}

func (s *Service) SetCompliance(ctx context.Context, id string, record domain.ComplianceRecord) (domain.ComplianceStatus, error) {
	var status domain.ComplianceStatus
	err := s.withSession(ctx, id, func(sess *billing.Session) error {
		sess.Cart().SetCompliance(record)
		status = sess.ComplianceStatus()
		return nil
	})
	return status, err
}

// Checkout finalizes the session's bill. A *billing.Refusal comes back as
// the error and leaves the cart as it was. Once an invoice exists, storage
// and printing problems are reported in the response, never as an error.
func (s *Service) Checkout(ctx context.Context, id string, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	var invoice domain.Invoice
	err := s.withSession(ctx, id, func(sess *billing.Session) error {
		var err error
		invoice, err = sess.Checkout()
		if err != nil {
			return err
		}
		if req.ResetAfter {
			sess.Cart().Reset()
		}
		return nil
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	resp := domain.CheckoutResponse{Invoice: invoice, CartReset: req.ResetAfter}

	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		log.Printf("[service] WARN: failed to store invoice id=%s session=%s: %v", invoice.ID, invoice.SessionID, err)
	} else {
		resp.Stored = true
	}

	rendered := receipt.Build(invoice, s.shopName, s.receiptWidth)
	printCtx, cancel := context.WithTimeout(ctx, printTimeout)
	defer cancel()
	if err := s.printer.Print(printCtx, rendered.Bytes); err != nil {
		log.Printf("[printer] WARN: failed to print invoice id=%s via %s: %v", invoice.ID, s.printer.Name(), err)
		resp.PrintError = err.Error()
	} else {
		resp.Printed = true
	}

	s.logAudit(ctx, "invoice_checkout", "invoice", invoice.ID, checkoutAuditDetail(invoice))
	return resp, nil
}

// Shortcut applies a desktop function key to the session: F2 starts a new
// bill and F10 checks out.
func (s *Service) Shortcut(ctx context.Context, id string, req domain.ShortcutRequest) (domain.ShortcutResponse, error) {
	action := billing.ShortcutFor(req.Key)
	resp := domain.ShortcutResponse{Action: string(action)}

	switch action {
	case billing.ShortcutNewBill:
		view, err := s.ResetCart(ctx, id)
		if err != nil {
			return domain.ShortcutResponse{}, err
		}
		resp.Cart = &view
	case billing.ShortcutCheckout:
		checkout, err := s.Checkout(ctx, id, domain.CheckoutRequest{})
		if err != nil {
			return domain.ShortcutResponse{}, err
		}
		resp.Checkout = &checkout
	default:
		view, err := s.GetCart(ctx, id)
		if err != nil {
			return domain.ShortcutResponse{}, err
		}
		resp.Cart = &view
	}
	return resp, nil
}

func (s *Service) mutateCart(ctx context.Context, id string, fn func(cart *billing.Cart)) (domain.CartView, error) {
	var view domain.CartView
	err := s.withSession(ctx, id, func(sess *billing.Session) error {
		fn(sess.Cart())
		view = sess.View()
		return nil
	})
	return view, err
}

func (s *Service) withSession(ctx context.Context, id string, fn func(sess *billing.Session) error) error {
	entry, err := s.lookupSession(ctx, id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

func (s *Service) lookupSession(ctx context.Context, id string) (*sessionEntry, error) {
	s.mu.Lock()
	entry, ok := s.sessions[strings.TrimSpace(id)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	actor := actorOrSystem(ctx)
	if actor.Role != domain.RoleAdmin && entry.session.Owner() != actor.Username {
		return nil, fmt.Errorf("session %s belongs to another user: %w", entry.session.ID(), ErrForbidden)
	}
	entry.touch(s.now())
	return entry, nil
}

func actorOrSystem(ctx context.Context) domain.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{Username: "system", Role: "system"}
	}
	return actor
}

func checkoutAuditDetail(invoice domain.Invoice) string {
	detail := fmt.Sprintf("customer=%s,items=%d,payable=%s", invoice.CustomerName, len(invoice.Items), invoice.PayableAmount.StringFixed(2))
	if invoice.Compliance != nil {
		detail += fmt.Sprintf(",h1_doctor=%s,h1_patient=%s,h1_rx=%s",
			invoice.Compliance.DoctorName, invoice.Compliance.PatientName, invoice.Compliance.RxNumber)
	}
	return detail
}

func receiptResponse(invoiceID string, rendered receipt.Receipt) domain.ReceiptResponse {
	return domain.ReceiptResponse{
		InvoiceID:    invoiceID,
		EscposBase64: base64.StdEncoding.EncodeToString(rendered.Bytes),
		PreviewText:  rendered.Preview,
		FileName:     rendered.FileName(invoiceID),
	}
}
