package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"pharmabill/backend/internal/billing"
	"pharmabill/backend/internal/cache"
	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/fefo"
	"pharmabill/backend/internal/pricing"
	"pharmabill/backend/internal/receipt"
	"pharmabill/backend/internal/search"
	"pharmabill/backend/internal/store"
	"pharmabill/backend/internal/xid"
)

var (
	ErrSessionNotFound = errors.New("billing session not found")
	ErrForbidden       = errors.New("forbidden")
)

const (
	// Result caps for the billing search panel.
	searchLimitWithQuery = 20
	searchLimitBrowse    = 50

	defaultCatalogTTL     = 5 * time.Minute
	defaultSessionIdleTTL = 12 * time.Hour
	printTimeout          = 15 * time.Second
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Catalog        cache.CatalogCache
	CatalogTTL     time.Duration
	SessionIdleTTL time.Duration
	Ranker         search.Ranker
	Printer        receipt.Printer
	Engine         *billing.Engine
	ShopName       string
	ReceiptWidth   int
	Now            func() time.Time
}

type Service struct {
	repo           store.Repository
	catalog        cache.CatalogCache
	catalogTTL     time.Duration
	sessionIdleTTL time.Duration
	ranker         search.Ranker
	printer        receipt.Printer
	engine         *billing.Engine
	validate       *validator.Validate
	shopName       string
	receiptWidth   int
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Catalog == nil {
		opts.Catalog = cache.NoopCatalogCache{}
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = defaultCatalogTTL
	}
	if opts.SessionIdleTTL <= 0 {
		opts.SessionIdleTTL = defaultSessionIdleTTL
	}
	if opts.Printer == nil {
		opts.Printer = receipt.NewNoopPrinter()
	}
	if opts.Engine == nil {
		opts.Engine = billing.NewEngine(billing.EngineConfig{})
	}
	if opts.ReceiptWidth <= 0 {
		opts.ReceiptWidth = receipt.Width58mm
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:           repo,
		catalog:        opts.Catalog,
		catalogTTL:     opts.CatalogTTL,
		sessionIdleTTL: opts.SessionIdleTTL,
		ranker:         opts.Ranker,
		printer:        opts.Printer,
		engine:         opts.Engine,
		validate:       validator.New(),
		shopName:       opts.ShopName,
		receiptWidth:   opts.ReceiptWidth,
		now:            opts.Now,
		sessions:       make(map[string]*sessionEntry),
	}
}

// ProductQuery describes one billing panel search. A zero Filter searches
// the cached catalog; a narrowed Filter reads the repository directly.
type ProductQuery struct {
	Text   string
	Mode   string
	Filter store.ProductFilter
	Limit  int
}

// SearchProducts narrows the catalog by query, then orders the candidates
// first-expiry-first. Ranking always sees the full candidate set; the result
// cap is applied afterwards.
func (s *Service) SearchProducts(ctx context.Context, q ProductQuery) (domain.ProductListResponse, error) {
	products, err := s.loadProducts(ctx, q.Filter)
	if err != nil {
		return domain.ProductListResponse{}, err
	}

	query := strings.TrimSpace(q.Text)
	searchMode := search.ParseMode(q.Mode)
	maxResults := searchLimitBrowse
	candidates := products
	if query != "" {
		maxResults = searchLimitWithQuery
		candidates = s.rankerFor(searchMode).Rank(products, query)
	}
	if q.Limit > 0 && q.Limit < maxResults {
		maxResults = q.Limit
	}

	ranked := fefo.RankTop(candidates, maxResults)
	now := s.now()
	listings := make([]domain.ProductListing, 0, len(ranked))
	for _, p := range ranked {
		listings = append(listings, domain.ProductListing{
			Product:      p,
			ExpiryStatus: fefo.ExpiryStatus(p, now, fefo.DefaultExpiryWindow),
		})
	}

	return domain.ProductListResponse{
		Query:    query,
		Mode:     string(searchMode),
		Products: listings,
	}, nil
}

func (s *Service) rankerFor(mode search.Mode) search.Ranker {
	if s.ranker != nil {
		return s.ranker
	}
	return search.NewMatcher(mode)
}

func (s *Service) loadProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	if filter == (store.ProductFilter{}) {
		return s.loadCatalog(ctx)
	}
	return s.repo.ListProducts(ctx, filter)
}

// loadCatalog reads the product feed through the cache. Cache failures only
// cost a trip to the repository.
func (s *Service) loadCatalog(ctx context.Context) ([]domain.Product, error) {
	products, ok, err := s.catalog.Get(ctx)
	if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}
	if ok {
		return products, nil
	}

	products, err = s.repo.ListProducts(ctx, store.ProductFilter{})
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Set(ctx, products, s.catalogTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required: %w", ErrForbidden)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Batch = strings.TrimSpace(req.Batch)
	req.Expiry = strings.TrimSpace(req.Expiry)
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	for _, amount := range []decimal.Decimal{req.MRP, req.Rate, req.PTR, req.PTS, req.GSTPercent} {
		if amount.IsNegative() {
			return domain.Product{}, fmt.Errorf("negative amount: %w", store.ErrInvalidInput)
		}
	}

	product := domain.Product{
		Name:         req.Name,
		Batch:        req.Batch,
		Expiry:       req.Expiry,
		MRP:          pricing.Round(req.MRP),
		PTR:          pricing.Round(req.PTR),
		PTS:          pricing.Round(req.PTS),
		Rate:         pricing.Round(req.Rate),
		Stock:        req.Stock,
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		HSN:          strings.TrimSpace(req.HSN),
		GSTPercent:   req.GSTPercent,
		Schedule:     req.Schedule,
	}
	if product.PTR.IsZero() {
		if product.MRP.IsZero() {
			return domain.Product{}, fmt.Errorf("mrp or ptr required: %w", store.ErrInvalidInput)
		}
		product.PTR = pricing.Derive(product.MRP, product.GSTPercent).PTR
	}
	if product.PTS.IsZero() {
		product.PTS = pricing.PriceToStockist(product.PTR, pricing.DefaultStockistMargin)
	}
	if product.Rate.IsZero() {
		product.Rate = product.PTR
	}
	if product.Schedule == "" {
		product.Schedule = domain.ScheduleGeneral
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.catalog.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: catalog cache invalidate failed: %v", err)
	}

	s.logAudit(ctx, "product_create", "product", fmt.Sprint(created.ID), fmt.Sprintf("name=%s,batch=%s,expiry=%s,schedule=%s", created.Name, created.Batch, created.Expiry, created.Schedule))
	return *created, nil
}

func (s *Service) DerivePricing(req domain.PricingDeriveRequest) (domain.PricingDeriveResponse, error) {
	if !req.MRP.IsPositive() || req.GSTPercent.IsNegative() {
		return domain.PricingDeriveResponse{}, store.ErrInvalidInput
	}
	retailerMargin := pricing.DefaultRetailerMargin
	if req.RetailerMarginPercent != nil {
		retailerMargin = *req.RetailerMarginPercent
	}
	stockistMargin := pricing.DefaultStockistMargin
	if req.StockistMarginPercent != nil {
		stockistMargin = *req.StockistMarginPercent
	}
	if retailerMargin.IsNegative() || stockistMargin.IsNegative() {
		return domain.PricingDeriveResponse{}, store.ErrInvalidInput
	}

	ptr := pricing.PriceFromMRP(req.MRP, req.GSTPercent, retailerMargin)
	return domain.PricingDeriveResponse{
		MRP: pricing.Round(req.MRP),
		PTR: ptr,
		PTS: pricing.PriceToStockist(ptr, stockistMargin),
	}, nil
}

func (s *Service) ListCustomers(ctx context.Context, customerType string, query string) ([]domain.Customer, error) {
	var filter domain.CustomerType
	if strings.TrimSpace(customerType) != "" {
		parsed, ok := domain.ParseCustomerType(customerType)
		if !ok {
			return nil, fmt.Errorf("customer type %q: %w", customerType, store.ErrInvalidInput)
		}
		filter = parsed
	}

	customers, err := s.repo.ListCustomers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return customers, nil
	}
	return search.NewMatcher(search.ModeFast).RankCustomers(customers, query), nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.GSTIN = strings.ToUpper(strings.TrimSpace(req.GSTIN))
	req.Mobile = strings.TrimSpace(req.Mobile)
	if err := s.validateStruct(req); err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:      req.Name,
		Type:      domain.CustomerType(req.Type),
		GSTIN:     req.GSTIN,
		StateCode: strings.TrimSpace(req.StateCode),
		Mobile:    req.Mobile,
		Address:   strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", fmt.Sprint(created.ID), fmt.Sprintf("name=%s,type=%s", created.Name, created.Type))
	return *created, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Invoice{}, store.ErrInvalidInput
	}
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, date string, limit int) ([]domain.Invoice, error) {
	from, to, err := dayRange(date, s.now())
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListInvoices(ctx, from, to, limit)
}

func (s *Service) BuildReceipt(ctx context.Context, invoiceID string) (domain.ReceiptResponse, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	rendered := receipt.Build(invoice, s.shopName, s.receiptWidth)
	return receiptResponse(invoice.ID, rendered), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required: %w", ErrForbidden)
	}
	from, to, err := dayRange(date, s.now())
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// dayRange resolves a YYYY-MM-DD date into a [from, to) window. An empty
// date means the last 24 hours.
func dayRange(date string, now time.Time) (time.Time, time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return now.Add(-24 * time.Hour), now.Add(time.Minute), nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date %q: %w", date, store.ErrInvalidInput)
	}
	from := parsed.UTC()
	return from, from.Add(24 * time.Hour), nil
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag()))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.Join(problems, ", "))
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
