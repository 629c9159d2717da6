package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pharmabill/backend/internal/billing"
	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/store"
	"pharmabill/backend/internal/store/memory"
)

var testNow = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

type recordingPrinter struct {
	mu   sync.Mutex
	jobs [][]byte
	err  error
}

func (p *recordingPrinter) Name() string { return "recording" }

func (p *recordingPrinter) Print(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, data)
	return nil
}

type failingInvoiceRepo struct {
	*memory.Store
}

func (failingInvoiceRepo) CreateInvoice(context.Context, domain.Invoice) error {
	return errors.New("disk full")
}

type countingRepo struct {
	*memory.Store
	mu    sync.Mutex
	lists int
}

func (r *countingRepo) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	return r.Store.ListProducts(ctx, filter)
}

type mapCatalog struct {
	mu       sync.Mutex
	products []domain.Product
	ok       bool
}

func (c *mapCatalog) Get(context.Context) ([]domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products, c.ok, nil
}

func (c *mapCatalog) Set(_ context.Context, products []domain.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products, c.ok = products, true
	return nil
}

func (c *mapCatalog) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products, c.ok = nil, false
	return nil
}

func newTestService(repo store.Repository, printer *recordingPrinter) *Service {
	if printer == nil {
		printer = &recordingPrinter{}
	}
	return New(repo, Options{
		Printer:  printer,
		Engine:   billing.NewEngine(billing.EngineConfig{Now: func() time.Time { return testNow }}),
		ShopName: "Gopi Pharma",
		Now:      func() time.Time { return testNow },
	})
}

func pharmacistCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "pharmacist", Role: domain.RolePharmacist})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func openSession(t *testing.T, svc *Service, ctx context.Context) string {
	t.Helper()
	view, err := svc.OpenSession(ctx)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if view.SessionID == "" || len(view.Lines) != 0 {
		t.Fatalf("unexpected new session view %+v", view)
	}
	return view.SessionID
}

func productIDs(listings []domain.ProductListing) []int64 {
	ids := make([]int64, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchProductsBrowseIsFEFO(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	resp, err := svc.SearchProducts(context.Background(), ProductQuery{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []int64{3, 2, 5, 1, 4}
	if got := productIDs(resp.Products); !equalIDs(got, want) {
		t.Fatalf("expected FEFO order %v, got %v", want, got)
	}

	statuses := map[int64]string{}
	for _, p := range resp.Products {
		statuses[p.ID] = p.ExpiryStatus
	}
	if statuses[3] != domain.ExpiryStatusExpired || statuses[5] != domain.ExpiryStatusExpiring || statuses[4] != domain.ExpiryStatusOK {
		t.Fatalf("unexpected expiry statuses %v", statuses)
	}
}

func TestSearchProductsRanksBeforeTruncating(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	resp, err := svc.SearchProducts(context.Background(), ProductQuery{Text: "500", Mode: "fast", Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := productIDs(resp.Products); !equalIDs(got, []int64{5}) {
		t.Fatalf("expected Azithral 500 (earliest expiry) only, got %v", got)
	}
	if resp.Mode != "fast" || resp.Query != "500" {
		t.Fatalf("unexpected echo %q/%q", resp.Query, resp.Mode)
	}

	exact, err := svc.SearchProducts(context.Background(), ProductQuery{Text: "500", Mode: "exact"})
	if err != nil {
		t.Fatalf("search exact: %v", err)
	}
	if len(exact.Products) != 0 {
		t.Fatalf("expected no prefix match for 500, got %v", productIDs(exact.Products))
	}
}

func TestSearchProductsScheduleFilterReadsRepository(t *testing.T) {
	repo := &countingRepo{Store: memory.NewSeeded()}
	catalog := &mapCatalog{}
	svc := New(repo, Options{Catalog: catalog, Now: func() time.Time { return testNow }})

	resp, err := svc.SearchProducts(context.Background(), ProductQuery{
		Filter: store.ProductFilter{Schedule: domain.ScheduleH1, InStock: true},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := productIDs(resp.Products); !equalIDs(got, []int64{2, 5}) {
		t.Fatalf("expected H1 products in FEFO order [2 5], got %v", got)
	}
	if repo.lists != 1 || catalog.ok {
		t.Fatalf("expected a direct repository read without caching, lists=%d cached=%v", repo.lists, catalog.ok)
	}
}

func TestCatalogCacheServesSearchUntilProductCreated(t *testing.T) {
	repo := &countingRepo{Store: memory.NewSeeded()}
	catalog := &mapCatalog{}
	svc := New(repo, Options{Catalog: catalog, Now: func() time.Time { return testNow }})

	for range 3 {
		if _, err := svc.SearchProducts(context.Background(), ProductQuery{Text: "dolo"}); err != nil {
			t.Fatalf("search: %v", err)
		}
	}
	if repo.lists != 1 {
		t.Fatalf("expected one repository read, got %d", repo.lists)
	}

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:       "Dolo 650",
		Batch:      "B202499",
		Expiry:     "2027-01-31",
		MRP:        decimal.NewFromInt(30),
		GSTPercent: decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	resp, err := svc.SearchProducts(context.Background(), ProductQuery{Text: "dolo"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if repo.lists != 2 || len(resp.Products) != 2 {
		t.Fatalf("expected cache refresh with 2 Dolo batches, got lists=%d products=%d", repo.lists, len(resp.Products))
	}
}

func TestCreateProductDerivesPricing(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:       "Pan 40",
		Batch:      "PAN-1",
		Expiry:     "2026-03-31",
		MRP:        decimal.NewFromInt(30),
		GSTPercent: decimal.NewFromInt(12),
		Stock:      40,
		Schedule:   domain.ScheduleH,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.PTR.String() != "21.43" || created.PTS.String() != "19.29" || !created.Rate.Equal(created.PTR) {
		t.Fatalf("unexpected derived pricing ptr=%s pts=%s rate=%s", created.PTR, created.PTS, created.Rate)
	}
	if created.ID == 0 || created.Schedule != domain.ScheduleH {
		t.Fatalf("unexpected product %+v", created)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	_, err := svc.CreateProduct(pharmacistCtx(), domain.ProductCreateRequest{Name: "X", Batch: "Y", Expiry: "2026-01-01", MRP: decimal.NewFromInt(10)})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateProductValidatesInput(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{Name: "Pan 40", Expiry: "31/03/2026", MRP: decimal.NewFromInt(10)})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "batch failed required") || !strings.Contains(err.Error(), "expiry failed datetime") {
		t.Fatalf("expected field problems in error, got %v", err)
	}

	_, err = svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{Name: "Pan 40", Batch: "P1", Expiry: "2026-03-31"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input without mrp or ptr, got %v", err)
	}
}

func TestDerivePricing(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	margin := decimal.NewFromInt(25)

	resp, err := svc.DerivePricing(domain.PricingDeriveRequest{
		MRP:                   decimal.NewFromInt(110),
		GSTPercent:            decimal.NewFromInt(5),
		RetailerMarginPercent: &margin,
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if resp.PTR.String() != "78.57" {
		t.Fatalf("expected ptr 78.57, got %s", resp.PTR)
	}

	if _, err := svc.DerivePricing(domain.PricingDeriveRequest{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero mrp, got %v", err)
	}
}

func TestListCustomersFilterAndSearch(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	wholesale, err := svc.ListCustomers(context.Background(), "wholesale", "")
	if err != nil || len(wholesale) != 5 {
		t.Fatalf("expected 5 wholesale customers, got %d (%v)", len(wholesale), err)
	}

	found, err := svc.ListCustomers(context.Background(), "", "9900020003")
	if err != nil || len(found) != 1 || found[0].Name != "Retail Chemist 3" {
		t.Fatalf("expected Retail Chemist 3 by mobile, got %+v (%v)", found, err)
	}

	if _, err := svc.ListCustomers(context.Background(), "distributor", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid customer type, got %v", err)
	}
}

func TestCreateCustomerValidatesGSTIN(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)

	_, err := svc.CreateCustomer(pharmacistCtx(), domain.CustomerCreateRequest{
		Name: "New Chemist", Type: "retail", GSTIN: "27AB", Mobile: "9812345678",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid gstin, got %v", err)
	}

	created, err := svc.CreateCustomer(pharmacistCtx(), domain.CustomerCreateRequest{
		Name: "New Chemist", Type: "Retail", GSTIN: "27aaaab1234a1z5", Mobile: "9812345678",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if created.GSTIN != "27AAAAB1234A1Z5" || created.StateCode != "27" || created.Type != domain.CustomerRetail {
		t.Fatalf("unexpected customer %+v", created)
	}
}

func TestCheckoutH1FlowEndToEnd(t *testing.T) {
	repo := memory.NewSeeded()
	printer := &recordingPrinter{}
	svc := newTestService(repo, printer)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	if _, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 2}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	_, err := svc.Checkout(ctx, id, domain.CheckoutRequest{})
	if !errors.Is(err, billing.ErrComplianceRequired) {
		t.Fatalf("expected compliance refusal, got %v", err)
	}
	var refusal *billing.Refusal
	if !errors.As(err, &refusal) || !strings.Contains(refusal.Detail, "Augmentin 625") {
		t.Fatalf("expected refusal naming Augmentin 625, got %v", err)
	}
	if len(printer.jobs) != 0 {
		t.Fatal("refused checkout must not print")
	}

	status, err := svc.SetCompliance(ctx, id, domain.ComplianceRecord{DoctorName: " Dr. A ", PatientName: "P"})
	if err != nil {
		t.Fatalf("set compliance: %v", err)
	}
	if status.State != string(billing.GateClear) || status.Record.DoctorName != "Dr. A" {
		t.Fatalf("unexpected compliance status %+v", status)
	}

	resp, err := svc.Checkout(ctx, id, domain.CheckoutRequest{ResetAfter: true})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !resp.Stored || !resp.Printed || !resp.CartReset {
		t.Fatalf("unexpected checkout flags %+v", resp)
	}
	if resp.Invoice.Compliance == nil || resp.Invoice.Compliance.DoctorName != "Dr. A" {
		t.Fatalf("expected compliance on invoice, got %+v", resp.Invoice.Compliance)
	}
	if resp.Invoice.PayableAmount.String() != "179.2" || resp.Invoice.CreatedBy != "pharmacist" {
		t.Fatalf("unexpected invoice %+v", resp.Invoice)
	}

	stored, err := repo.GetInvoice(context.Background(), resp.Invoice.ID)
	if err != nil || stored.SessionID != id {
		t.Fatalf("expected stored invoice for session, got %+v (%v)", stored, err)
	}

	view, err := svc.GetCart(ctx, id)
	if err != nil || len(view.Lines) != 0 || view.Compliance != (domain.ComplianceRecord{}) {
		t.Fatalf("expected reset cart, got %+v (%v)", view, err)
	}

	logs, err := repo.ListAuditLogs(context.Background(), testNow.Add(-time.Hour), testNow.Add(time.Hour), 10)
	if err != nil || len(logs) != 1 || !strings.Contains(logs[0].Detail, "h1_doctor=Dr. A") {
		t.Fatalf("expected H1 audit entry, got %+v (%v)", logs, err)
	}
}

func TestCheckoutCollaboratorFailuresKeepCart(t *testing.T) {
	printer := &recordingPrinter{err: errors.New("paper out")}
	svc := newTestService(failingInvoiceRepo{Store: memory.NewSeeded()}, printer)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	if _, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 1}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	resp, err := svc.Checkout(ctx, id, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout should succeed despite collaborator failures: %v", err)
	}
	if resp.Stored || resp.Printed || resp.PrintError != "paper out" {
		t.Fatalf("unexpected flags %+v", resp)
	}

	view, err := svc.GetCart(ctx, id)
	if err != nil || len(view.Lines) != 1 {
		t.Fatalf("expected cart untouched, got %+v (%v)", view, err)
	}
}

func TestCheckoutEmptyCartRefused(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	_, err := svc.Checkout(ctx, id, domain.CheckoutRequest{})
	if !errors.Is(err, billing.ErrEmptyCart) {
		t.Fatalf("expected empty cart refusal, got %v", err)
	}
}

func TestCartEditsNormalizeInput(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	if _, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 999}); err != nil {
		t.Fatalf("unknown product should be ignored, got %v", err)
	}
	view, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 1})
	if err != nil || len(view.Lines) != 1 {
		t.Fatalf("expected one line, got %+v (%v)", view, err)
	}

	view, _ = svc.UpdateQuantity(ctx, id, 0, domain.UpdateQuantityRequest{Field: "billed", Value: "10"})
	view, _ = svc.UpdateQuantity(ctx, id, 0, domain.UpdateQuantityRequest{Field: "free", Value: "1"})
	if view.Lines[0].NetRate.String() != "20.45" {
		t.Fatalf("expected 10+1 net rate 20.45, got %s", view.Lines[0].NetRate)
	}

	view, _ = svc.UpdateQuantity(ctx, id, 0, domain.UpdateQuantityRequest{Field: "billed", Value: "abc"})
	if view.Lines[0].BilledQty != 0 || len(view.Lines) != 1 {
		t.Fatalf("expected non-numeric quantity to become 0, got %+v", view.Lines)
	}
	view, _ = svc.UpdateQuantity(ctx, id, 0, domain.UpdateQuantityRequest{Field: "free", Value: "-4"})
	if view.Lines[0].FreeQty != 0 {
		t.Fatalf("expected negative quantity clamped, got %d", view.Lines[0].FreeQty)
	}
	view, _ = svc.UpdateQuantity(ctx, id, 7, domain.UpdateQuantityRequest{Field: "billed", Value: "3"})
	if view.Lines[0].BilledQty != 0 {
		t.Fatal("out of range edit must be a no-op")
	}

	view, err = svc.RemoveLine(ctx, id, 0)
	if err != nil || len(view.Lines) != 0 {
		t.Fatalf("expected line removed, got %+v (%v)", view, err)
	}
}

func TestBindCustomerAndReceipt(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	if _, err := svc.BindCustomer(ctx, id, domain.BindCustomerRequest{CustomerID: 404}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown customer error, got %v", err)
	}
	view, err := svc.BindCustomer(ctx, id, domain.BindCustomerRequest{CustomerID: 6})
	if err != nil || view.Customer == nil || view.Customer.Name != "Retail Chemist 1" {
		t.Fatalf("expected Retail Chemist 1 bound, got %+v (%v)", view.Customer, err)
	}
	if _, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 4}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	resp, err := svc.Checkout(ctx, id, domain.CheckoutRequest{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	rec, err := svc.BuildReceipt(ctx, resp.Invoice.ID)
	if err != nil {
		t.Fatalf("build receipt: %v", err)
	}
	if !strings.Contains(rec.PreviewText, "Bill To: Retail Chemist 1") || !strings.Contains(rec.PreviewText, "Gopi Pharma") {
		t.Fatalf("unexpected receipt preview:\n%s", rec.PreviewText)
	}
	if rec.EscposBase64 == "" || rec.FileName != "receipt-"+resp.Invoice.ID+".bin" {
		t.Fatalf("unexpected receipt %+v", rec)
	}

	invoices, err := svc.ListInvoices(ctx, "", 10)
	if err != nil || len(invoices) != 1 {
		t.Fatalf("expected 1 invoice today, got %d (%v)", len(invoices), err)
	}
}

func TestSessionOwnership(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	id := openSession(t, svc, pharmacistCtx())

	other := WithActor(context.Background(), domain.Actor{Username: "other", Role: domain.RolePharmacist})
	if _, err := svc.GetCart(other, id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for another pharmacist, got %v", err)
	}
	if _, err := svc.GetCart(adminCtx(), id); err != nil {
		t.Fatalf("admin should reach any session: %v", err)
	}

	if err := svc.CloseSession(pharmacistCtx(), id); err != nil {
		t.Fatalf("close session: %v", err)
	}
	if _, err := svc.GetCart(pharmacistCtx(), id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected closed session to be gone, got %v", err)
	}
}

func TestShortcuts(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	if _, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 1}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	resp, err := svc.Shortcut(ctx, id, domain.ShortcutRequest{Key: "F10"})
	if err != nil || resp.Action != string(billing.ShortcutCheckout) || resp.Checkout == nil {
		t.Fatalf("expected F10 checkout, got %+v (%v)", resp, err)
	}

	resp, err = svc.Shortcut(ctx, id, domain.ShortcutRequest{Key: "F2"})
	if err != nil || resp.Action != string(billing.ShortcutNewBill) || resp.Cart == nil || len(resp.Cart.Lines) != 0 {
		t.Fatalf("expected F2 new bill, got %+v (%v)", resp, err)
	}

	_, err = svc.Shortcut(ctx, id, domain.ShortcutRequest{Key: "F10"})
	if !errors.Is(err, billing.ErrEmptyCart) {
		t.Fatalf("expected F10 on empty cart to be refused, got %v", err)
	}

	resp, err = svc.Shortcut(ctx, id, domain.ShortcutRequest{Key: "F5"})
	if err != nil || resp.Action != string(billing.ShortcutNone) {
		t.Fatalf("expected no action for F5, got %+v (%v)", resp, err)
	}
}

func TestConcurrentEventsAreSerializedPerSession(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	ctx := pharmacistCtx()
	id := openSession(t, svc, ctx)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddLine(ctx, id, domain.AddLineRequest{ProductID: 1}); err != nil {
				t.Errorf("add line: %v", err)
			}
		}()
	}
	wg.Wait()

	view, err := svc.GetCart(ctx, id)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].BilledQty != 50 {
		t.Fatalf("expected a single line with 50 units, got %+v", view.Lines)
	}
}

func TestListAuditLogsRequiresAdmin(t *testing.T) {
	svc := newTestService(memory.NewSeeded(), nil)
	if _, err := svc.ListAuditLogs(pharmacistCtx(), "", 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.ListAuditLogs(adminCtx(), "not-a-date", 10); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid date, got %v", err)
	}
}

func TestIdleSessionsAreEvictedOnOpen(t *testing.T) {
	clock := testNow
	svc := New(memory.NewSeeded(), Options{
		SessionIdleTTL: time.Hour,
		Now:            func() time.Time { return clock },
	})
	ctx := pharmacistCtx()

	abandoned, err := svc.OpenSession(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	active, err := svc.OpenSession(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	clock = clock.Add(40 * time.Minute)
	if _, err := svc.GetCart(ctx, active.SessionID); err != nil {
		t.Fatalf("touch active session: %v", err)
	}

	clock = clock.Add(40 * time.Minute)
	if _, err := svc.OpenSession(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := svc.GetCart(ctx, abandoned.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle session to be evicted, got %v", err)
	}
	if _, err := svc.GetCart(ctx, active.SessionID); err != nil {
		t.Fatalf("expected recently used session to survive, got %v", err)
	}
}
