package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Barcode  string          `json:"barcode,omitempty"`
}

type ProductCreateRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Barcode  string          `json:"barcode,omitempty"`
}

type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
	Category *string          `json:"category,omitempty"`
	Barcode  *string          `json:"barcode,omitempty"`
}

// StockAdjustRequest applies a signed quantity delta to one product. A unit
// cost on a positive delta records the purchase as a restock expense and
// replaces the product's acquisition cost.
type StockAdjustRequest struct {
	ProductID string           `json:"product_id"`
	Delta     int              `json:"delta"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

type StockAdjustResult struct {
	ProductID string `json:"product_id"`
	NewStock  int    `json:"new_stock"`
	ExpenseID string `json:"expense_id,omitempty"`
}

type Client struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	CurrentDebt decimal.Decimal `json:"current_debt"`
}

type ClientSaveRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// SaleItem captures the unit price at transaction time; later product price
// edits never change a recorded sale.
type SaleItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Sale struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"client_id,omitempty"`
	Items      []SaleItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Status     string          `json:"status"`
	Date       time.Time       `json:"date"`
	Version    int             `json:"version"`
}

// Pending is the unpaid remainder of the sale, never negative.
func (s Sale) Pending() decimal.Decimal {
	p := s.Total.Sub(s.AmountPaid)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

type SaleItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type SaleCreateRequest struct {
	OperationID string            `json:"operation_id,omitempty"`
	ClientID    string            `json:"client_id,omitempty"`
	Items       []SaleItemRequest `json:"items"`
	Status      string            `json:"status"`
	AmountPaid  decimal.Decimal   `json:"amount_paid"`
	Date        *time.Time        `json:"date,omitempty"`
}

type Expense struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
}

type ExpenseSaveRequest struct {
	ID          string          `json:"id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
}

type AllocationRequest struct {
	OperationID string          `json:"operation_id,omitempty"`
	ClientID    string          `json:"client_id"`
	Amount      decimal.Decimal `json:"amount"`
	SaleIDs     []string        `json:"sale_ids,omitempty"`
}

type PaymentApplication struct {
	SaleID        string          `json:"sale_id"`
	Applied       decimal.Decimal `json:"applied"`
	NewAmountPaid decimal.Decimal `json:"new_amount_paid"`
	NewStatus     string          `json:"new_status"`
}

type AllocationResult struct {
	ClientID     string               `json:"client_id"`
	Applications []PaymentApplication `json:"applications"`
	AppliedTotal decimal.Decimal      `json:"applied_total"`
	Unapplied    decimal.Decimal      `json:"unapplied"`
	NewDebt      decimal.Decimal      `json:"new_debt"`
}

// DebtReconciliation reports drift between a client's stored aggregate debt
// and the sum of pending amounts recomputed from that client's credit sales.
type DebtReconciliation struct {
	ClientID     string          `json:"client_id"`
	StoredDebt   decimal.Decimal `json:"stored_debt"`
	ComputedDebt decimal.Decimal `json:"computed_debt"`
	Drift        decimal.Decimal `json:"drift"`
	Corrected    bool            `json:"corrected"`
}

// Operation is the progress record of one idempotent multi-step command.
// Cursor counts finished steps, so a retried command resumes after the last
// completed step instead of applying the same deltas twice.
type Operation struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Cursor    int       `json:"cursor"`
	ResultID  string    `json:"result_id,omitempty"`
	Status    string    `json:"status"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BusinessSummary struct {
	GeneratedAt     time.Time       `json:"generated_at"`
	SaleCount       int             `json:"sale_count"`
	CreditSaleCount int             `json:"credit_sale_count"`
	GrossSales      decimal.Decimal `json:"gross_sales"`
	TotalCollected  decimal.Decimal `json:"total_collected"`
	OutstandingDebt decimal.Decimal `json:"outstanding_debt"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
}

const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCredit    = "CREDIT"
	SaleStatusCancelled = "CANCELLED"
)

const (
	ExpenseCategoryRestock = "RESTOCK"
	ExpenseCategoryOther   = "OTHER"
)

const (
	OperationKindSaleCreate      = "sale_create"
	OperationKindSaleReverse     = "sale_reverse"
	OperationKindPaymentAllocate = "payment_allocate"
)

const (
	OperationStatusPending   = "pending"
	OperationStatusCompleted = "completed"
)
