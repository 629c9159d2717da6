package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/fefo"
	"pharmabill/backend/internal/store"
	"pharmabill/backend/internal/xid"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, batch, expiry, mrp, rate, ptr, pts, stock, manufacturer, hsn, gst_percent, schedule`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p        domain.Product
		expiry   time.Time
		schedule string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Batch, &expiry, &p.MRP, &p.Rate, &p.PTR, &p.PTS,
		&p.Stock, &p.Manufacturer, &p.HSN, &p.GSTPercent, &schedule)
	if err != nil {
		return domain.Product{}, err
	}
	p.Expiry = expiry.Format(dateLayout)
	p.Schedule = domain.ParseSchedule(schedule)
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR schedule = $1)
			AND (NOT $2 OR stock > 0)
		ORDER BY id
	`, string(filter.Schedule), filter.InStock)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	product.Batch = strings.TrimSpace(product.Batch)
	if product.Name == "" || product.Batch == "" || product.Rate.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	expiry, ok := fefo.ParseExpiry(product.Expiry)
	if !ok {
		return nil, fmt.Errorf("expiry %q: %w", product.Expiry, store.ErrInvalidInput)
	}
	if product.Schedule == "" {
		product.Schedule = domain.ScheduleGeneral
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, batch, expiry, mrp, rate, ptr, pts, stock, manufacturer, hsn, gst_percent, schedule, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		RETURNING id
	`, product.Name, product.Batch, expiry, product.MRP, product.Rate, product.PTR, product.PTS,
		product.Stock, product.Manufacturer, product.HSN, product.GSTPercent, string(product.Schedule)).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	product.Expiry = expiry.Format(dateLayout)
	return &product, nil
}

const customerColumns = `id, name, type, COALESCE(gstin, ''), state_code, mobile, address`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var (
		c            domain.Customer
		customerType string
	)
	if err := row.Scan(&c.ID, &c.Name, &customerType, &c.GSTIN, &c.StateCode, &c.Mobile, &c.Address); err != nil {
		return domain.Customer{}, err
	}
	c.Type = domain.CustomerType(customerType)
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, customerType domain.CustomerType) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE ($1 = '' OR type = $1)
		ORDER BY id
	`, string(customerType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.GSTIN = strings.ToUpper(strings.TrimSpace(customer.GSTIN))
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := domain.ParseCustomerType(string(customer.Type)); !ok {
		return nil, store.ErrInvalidInput
	}
	if customer.StateCode == "" {
		customer.StateCode = "27"
	}

	var gstin sql.NullString
	if customer.GSTIN != "" {
		gstin = sql.NullString{String: customer.GSTIN, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, type, gstin, state_code, mobile, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		RETURNING id
	`, customer.Name, string(customer.Type), gstin, customer.StateCode, customer.Mobile, customer.Address).Scan(&customer.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) error {
	if invoice.ID == "" || len(invoice.Items) == 0 {
		return store.ErrInvalidInput
	}
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}

	var customerID sql.NullInt64
	if invoice.CustomerID > 0 {
		customerID = sql.NullInt64{Int64: invoice.CustomerID, Valid: true}
	}
	var doctor, patient, rx sql.NullString
	if invoice.Compliance != nil {
		doctor = sql.NullString{String: invoice.Compliance.DoctorName, Valid: true}
		patient = sql.NullString{String: invoice.Compliance.PatientName, Valid: true}
		rx = sql.NullString{String: invoice.Compliance.RxNumber, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (
			id, session_id, customer_id, customer_name, items,
			taxable_amount, gst_estimate_percent, gst_estimate, payable_amount,
			doctor_name, patient_name, rx_number, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, invoice.ID, invoice.SessionID, customerID, invoice.CustomerName, items,
		invoice.TaxableAmount, invoice.GSTEstimateRate, invoice.GSTEstimate, invoice.PayableAmount,
		doctor, patient, rx, invoice.CreatedBy, invoice.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

const invoiceColumns = `id, session_id, customer_id, customer_name, items,
	taxable_amount, gst_estimate_percent, gst_estimate, payable_amount,
	doctor_name, patient_name, rx_number, created_by, created_at`

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		invoice             domain.Invoice
		customerID          sql.NullInt64
		items               []byte
		doctor, patient, rx sql.NullString
	)
	err := row.Scan(&invoice.ID, &invoice.SessionID, &customerID, &invoice.CustomerName, &items,
		&invoice.TaxableAmount, &invoice.GSTEstimateRate, &invoice.GSTEstimate, &invoice.PayableAmount,
		&doctor, &patient, &rx, &invoice.CreatedBy, &invoice.CreatedAt)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(items, &invoice.Items); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode invoice items: %w", err)
	}
	invoice.CustomerID = customerID.Int64
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	if doctor.Valid || patient.Valid {
		invoice.Compliance = &domain.ComplianceRecord{
			DoctorName:  doctor.String,
			PatientName: patient.String,
			RxNumber:    rx.String,
		}
	}
	return invoice, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListInvoices(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Invoice, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, limit)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RolePharmacist
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
