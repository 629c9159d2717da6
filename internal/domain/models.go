package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Schedule is the regulatory drug classification of a product.
type Schedule string

const (
	ScheduleGeneral Schedule = "General"
	ScheduleH       Schedule = "H"
	ScheduleH1      Schedule = "H1"
	ScheduleX       Schedule = "X"
)

// ParseSchedule maps loosely formatted input onto a known schedule.
// Anything unrecognised is treated as General.
func ParseSchedule(raw string) Schedule {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "H":
		return ScheduleH
	case "H1":
		return ScheduleH1
	case "X":
		return ScheduleX
	default:
		return ScheduleGeneral
	}
}

// RequiresPrescriberRecord reports whether selling the product needs a
// recorded doctor and patient.
func (s Schedule) RequiresPrescriberRecord() bool {
	switch s {
	case ScheduleH1:
		return true
	case ScheduleGeneral, ScheduleH, ScheduleX:
		return false
	default:
		return false
	}
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSchedule(raw)
	return nil
}

type CustomerType string

const (
	CustomerWholesale CustomerType = "wholesale"
	CustomerRetail    CustomerType = "retail"
)

func ParseCustomerType(raw string) (CustomerType, bool) {
	switch CustomerType(strings.ToLower(strings.TrimSpace(raw))) {
	case CustomerWholesale:
		return CustomerWholesale, true
	case CustomerRetail:
		return CustomerRetail, true
	default:
		return "", false
	}
}

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Batch        string          `json:"batch"`
	Expiry       string          `json:"expiry"`
	MRP          decimal.Decimal `json:"mrp"`
	Rate         decimal.Decimal `json:"rate"`
	PTR          decimal.Decimal `json:"ptr"`
	PTS          decimal.Decimal `json:"pts"`
	Stock        int             `json:"stock"`
	Manufacturer string          `json:"manufacturer"`
	HSN          string          `json:"hsn"`
	GSTPercent   decimal.Decimal `json:"gst_percent"`
	Schedule     Schedule        `json:"schedule"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Batch        string          `json:"batch" validate:"required,max=40"`
	Expiry       string          `json:"expiry" validate:"required,datetime=2006-01-02"`
	MRP          decimal.Decimal `json:"mrp"`
	Rate         decimal.Decimal `json:"rate"`
	PTR          decimal.Decimal `json:"ptr"`
	PTS          decimal.Decimal `json:"pts"`
	Stock        int             `json:"stock" validate:"gte=0"`
	Manufacturer string          `json:"manufacturer" validate:"max=120"`
	HSN          string          `json:"hsn" validate:"max=12"`
	GSTPercent   decimal.Decimal `json:"gst_percent"`
	Schedule     Schedule        `json:"schedule"`
}

// ProductListing is a product as shown in the billing search panel.
type ProductListing struct {
	Product
	ExpiryStatus string `json:"expiry_status"`
}

type ProductListResponse struct {
	Query    string           `json:"query"`
	Mode     string           `json:"mode"`
	Products []ProductListing `json:"products"`
}

type PricingDeriveRequest struct {
	MRP                   decimal.Decimal  `json:"mrp"`
	GSTPercent            decimal.Decimal  `json:"gst_percent"`
	RetailerMarginPercent *decimal.Decimal `json:"retailer_margin_percent,omitempty"`
	StockistMarginPercent *decimal.Decimal `json:"stockist_margin_percent,omitempty"`
}

type PricingDeriveResponse struct {
	MRP decimal.Decimal `json:"mrp"`
	PTR decimal.Decimal `json:"ptr"`
	PTS decimal.Decimal `json:"pts"`
}

type Customer struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Type      CustomerType `json:"type"`
	GSTIN     string       `json:"gstin,omitempty"`
	StateCode string       `json:"state_code,omitempty"`
	Mobile    string       `json:"mobile"`
	Address   string       `json:"address,omitempty"`
}

type CustomerCreateRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Type      string `json:"type" validate:"required,oneof=wholesale retail"`
	GSTIN     string `json:"gstin" validate:"omitempty,len=15,alphanum"`
	StateCode string `json:"state_code" validate:"omitempty,numeric,len=2"`
	Mobile    string `json:"mobile" validate:"required,numeric,min=10,max=13"`
	Address   string `json:"address" validate:"max=200"`
}

// CartLine is one product in a cart. NetRate is derived from the product's
// rate and the billed/free pair.
type CartLine struct {
	Product   Product         `json:"product"`
	BilledQty int             `json:"billed_qty"`
	FreeQty   int             `json:"free_qty"`
	NetRate   decimal.Decimal `json:"net_rate"`
}

// ComplianceRecord holds the prescriber details required for Schedule H1 sales.
type ComplianceRecord struct {
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
	RxNumber    string `json:"rx_number"`
}

func (r ComplianceRecord) Complete() bool {
	return strings.TrimSpace(r.DoctorName) != "" && strings.TrimSpace(r.PatientName) != ""
}

// ComplianceStatus is the gate decision for the current cart together with
// the record the cashier has entered so far.
type ComplianceStatus struct {
	Record         ComplianceRecord `json:"record"`
	State          string           `json:"state"`
	RecordRequired bool             `json:"record_required"`
	Reason         string           `json:"reason,omitempty"`
	H1Products     []string         `json:"h1_products,omitempty"`
}

type Invoice struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	CustomerID      int64             `json:"customer_id,omitempty"`
	CustomerName    string            `json:"customer_name"`
	Items           []CartLine        `json:"items"`
	TaxableAmount   decimal.Decimal   `json:"taxable_amount"`
	GSTEstimateRate decimal.Decimal   `json:"gst_estimate_percent"`
	GSTEstimate     decimal.Decimal   `json:"gst_estimate"`
	PayableAmount   decimal.Decimal   `json:"payable_amount"`
	CreatedAt       time.Time         `json:"created_at"`
	CreatedBy       string            `json:"created_by,omitempty"`
	Compliance      *ComplianceRecord `json:"compliance,omitempty"`
}

type CartView struct {
	SessionID       string           `json:"session_id"`
	Customer        *Customer        `json:"customer,omitempty"`
	Lines           []CartLine       `json:"lines"`
	Compliance      ComplianceRecord `json:"compliance"`
	RequiresH1      bool             `json:"requires_h1"`
	TaxableAmount   decimal.Decimal  `json:"taxable_amount"`
	GSTEstimateRate decimal.Decimal  `json:"gst_estimate_percent"`
	GSTEstimate     decimal.Decimal  `json:"gst_estimate"`
	PayableAmount   decimal.Decimal  `json:"payable_amount"`
}

type AddLineRequest struct {
	ProductID int64 `json:"product_id"`
}

// QuantityInput is the raw text of a quantity edit. Clients may send either a
// JSON number or a string; interpretation is left to the cart.
type QuantityInput string

func (q *QuantityInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*q = QuantityInput(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*q = QuantityInput(number.String())
	return nil
}

type UpdateQuantityRequest struct {
	Field string        `json:"field"`
	Value QuantityInput `json:"value"`
}

type BindCustomerRequest struct {
	CustomerID int64 `json:"customer_id"`
}

type ShortcutRequest struct {
	Key string `json:"key"`
}

type CheckoutRequest struct {
	ResetAfter bool `json:"reset_after"`
}

type CheckoutResponse struct {
	Invoice    Invoice `json:"invoice"`
	Stored     bool    `json:"stored"`
	Printed    bool    `json:"printed"`
	PrintError string  `json:"print_error,omitempty"`
	CartReset  bool    `json:"cart_reset"`
}

type ShortcutResponse struct {
	Action   string            `json:"action"`
	Cart     *CartView         `json:"cart,omitempty"`
	Checkout *CheckoutResponse `json:"checkout,omitempty"`
}

type ReceiptResponse struct {
	InvoiceID    string `json:"invoice_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type PharmacistCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserSummary struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
)

const (
	ExpiryStatusOK       = "ok"
	ExpiryStatusExpiring = "expiring"
	ExpiryStatusExpired  = "expired"
	ExpiryStatusUnknown  = "unknown"
)

// CashSaleName is printed when no customer is bound to the bill.
const CashSaleName = "Cash Sale"
