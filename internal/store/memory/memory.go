package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/store"
	"pharmabill/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	nextProductID   int64
	customers       map[int64]domain.Customer
	nextCustomerID  int64
	invoicesByID    map[string]domain.Invoice
	invoiceOrder    []string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_PHARMACIST_PASSWORD with dev fallbacks.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	pharmacistPwd := envOr("SEED_PHARMACIST_PASSWORD", "pharma123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_PHARMACIST_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_PHARMACIST_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"pharmacist", pharmacistPwd, domain.RolePharmacist},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SeedProducts is the demo catalog. Expiries are staggered so FEFO ordering
// and the expiry badges are visible out of the box.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{Name: "Dolo 650", Batch: "B202401", Expiry: "2025-12-31", MRP: dec("30"), Rate: dec("22.5"), PTR: dec("22.5"), PTS: dec("20.25"), Stock: 500, Manufacturer: "Micro Labs", HSN: "3004", GSTPercent: dec("12"), Schedule: domain.ScheduleGeneral},
		{Name: "Augmentin 625", Batch: "AUG-001", Expiry: "2024-10-15", MRP: dec("200"), Rate: dec("160"), PTR: dec("160"), PTS: dec("144"), Stock: 100, Manufacturer: "GSK", HSN: "3004", GSTPercent: dec("12"), Schedule: domain.ScheduleH1},
		{Name: "Corex Syrup", Batch: "CX-99", Expiry: "2024-06-30", MRP: dec("120"), Rate: dec("95"), PTR: dec("95"), PTS: dec("85.5"), Stock: 50, Manufacturer: "Pfizer", HSN: "3004", GSTPercent: dec("12"), Schedule: domain.ScheduleH},
		{Name: "Shelcal 500", Batch: "SH-22", Expiry: "2026-01-01", MRP: dec("110"), Rate: dec("80"), PTR: dec("80"), PTS: dec("72"), Stock: 300, Manufacturer: "Torrent", HSN: "3004", GSTPercent: dec("12"), Schedule: domain.ScheduleGeneral},
		{Name: "Azithral 500", Batch: "AZ-55", Expiry: "2025-05-20", MRP: dec("70"), Rate: dec("55"), PTR: dec("55"), PTS: dec("49.5"), Stock: 200, Manufacturer: "Alembic", HSN: "3004", GSTPercent: dec("12"), Schedule: domain.ScheduleH1},
	}
}

// SeedCustomers returns five wholesale distributors followed by five
// retail chemists.
func SeedCustomers() []domain.Customer {
	customers := make([]domain.Customer, 0, 10)
	for i := 1; i <= 5; i++ {
		customers = append(customers, domain.Customer{
			Name:      "Wholesale Dist " + strconv.Itoa(i),
			Type:      domain.CustomerWholesale,
			GSTIN:     "27AAAAA" + strconv.Itoa(1000+i) + "A1Z5",
			Mobile:    "98000" + strconv.Itoa(10000+i),
			StateCode: "27",
			Address:   "Sector " + strconv.Itoa(i) + ", Industrial Area",
		})
	}
	for i := 1; i <= 5; i++ {
		customers = append(customers, domain.Customer{
			Name:      "Retail Chemist " + strconv.Itoa(i),
			Type:      domain.CustomerRetail,
			Mobile:    "99000" + strconv.Itoa(20000+i),
			StateCode: "27",
			Address:   "Main Market, Shop " + strconv.Itoa(i),
		})
	}
	return customers
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		customers:       make(map[int64]domain.Customer),
		invoicesByID:    make(map[string]domain.Invoice),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	for _, p := range SeedProducts() {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			log.Fatalf("[memory-store] seed product %s: %v", p.Name, err)
		}
	}
	for _, c := range SeedCustomers() {
		if _, err := s.CreateCustomer(ctx, c); err != nil {
			log.Fatalf("[memory-store] seed customer %s: %v", c.Name, err)
		}
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Schedule != "" && p.Schedule != filter.Schedule {
			continue
		}
		if filter.InStock && p.Stock < 1 {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpInt64(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	product.Batch = strings.TrimSpace(product.Batch)
	if product.Name == "" || product.Batch == "" || product.Rate.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.products {
		if strings.EqualFold(existing.Name, product.Name) && strings.EqualFold(existing.Batch, product.Batch) {
			return nil, store.ErrDuplicate
		}
	}
	if product.Schedule == "" {
		product.Schedule = domain.ScheduleGeneral
	}

	s.nextProductID++
	product.ID = s.nextProductID
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) ListCustomers(_ context.Context, customerType domain.CustomerType) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if customerType != "" && c.Type != customerType {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpInt64(a.ID, b.ID)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	customer.GSTIN = strings.ToUpper(strings.TrimSpace(customer.GSTIN))
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := domain.ParseCustomerType(string(customer.Type)); !ok {
		return nil, store.ErrInvalidInput
	}
	if customer.GSTIN != "" {
		for _, existing := range s.customers {
			if existing.GSTIN == customer.GSTIN {
				return nil, store.ErrDuplicate
			}
		}
	}
	if customer.StateCode == "" {
		customer.StateCode = "27"
	}

	s.nextCustomerID++
	customer.ID = s.nextCustomerID
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if invoice.ID == "" || len(invoice.Items) == 0 {
		return store.ErrInvalidInput
	}
	if _, exists := s.invoicesByID[invoice.ID]; exists {
		return store.ErrDuplicate
	}
	s.invoicesByID[invoice.ID] = cloneInvoice(invoice)
	s.invoiceOrder = append(s.invoiceOrder, invoice.ID)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, exists := s.invoicesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneInvoice(invoice)
	return &out, nil
}

// ListInvoices returns invoices created in [from, to), newest first.
func (s *Store) ListInvoices(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Invoice, 0, 32)
	for i := len(s.invoiceOrder) - 1; i >= 0; i-- {
		invoice := s.invoicesByID[s.invoiceOrder[i]]
		if invoice.CreatedAt.Before(from) || !invoice.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneInvoice(invoice))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortStableFunc(result, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RolePharmacist
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneInvoice(src domain.Invoice) domain.Invoice {
	out := src
	out.Items = slices.Clone(src.Items)
	if src.Compliance != nil {
		record := *src.Compliance
		out.Compliance = &record
	}
	return out
}
