// Package ledger holds the pure money arithmetic for credit sales: pending
// balances, single-sale payments and oldest-first payment allocation plans.
// It never touches storage, so every rule here is directly testable.
package ledger

import (
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"ventaclara/backend/internal/domain"
)

var (
	ErrNonPositiveAmount = errors.New("payment amount must be positive")
	ErrNotCredit         = errors.New("sale is not a credit sale")
)

// Pending returns total minus paid, clamped at zero. Overpaid records never
// surface a negative balance.
func Pending(total, paid decimal.Decimal) decimal.Decimal {
	p := total.Sub(paid)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// ApplyPayment records a payment against one credit sale, capping it at the
// pending balance. It returns the updated copy plus the amount actually
// applied; the sale flips to COMPLETED exactly when the payment clears the
// pending balance.
func ApplyPayment(sale domain.Sale, amount decimal.Decimal) (domain.Sale, decimal.Decimal, error) {
	if sale.Status != domain.SaleStatusCredit {
		return domain.Sale{}, decimal.Zero, ErrNotCredit
	}
	if !amount.IsPositive() {
		return domain.Sale{}, decimal.Zero, ErrNonPositiveAmount
	}
	applied := decimal.Min(amount, Pending(sale.Total, sale.AmountPaid))
	sale.AmountPaid = sale.AmountPaid.Add(applied)
	if Pending(sale.Total, sale.AmountPaid).IsZero() {
		sale.Status = domain.SaleStatusCompleted
	}
	return sale, applied, nil
}

// Application is one planned payment application against a sale. Version is
// the sale version the plan was built from, so the executor can detect
// concurrent changes when it writes the application back.
type Application struct {
	SaleID        string          `json:"sale_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewAmountPaid decimal.Decimal `json:"new_amount_paid"`
	NewStatus     string          `json:"new_status"`
	Version       int             `json:"version"`
}

// Plan is the full outcome of distributing one payment over a set of sales.
type Plan struct {
	Applications []Application   `json:"applications"`
	AppliedTotal decimal.Decimal `json:"applied_total"`
	Unapplied    decimal.Decimal `json:"unapplied"`
}

// PlanAllocation distributes amount over the given sales, oldest first (ties
// broken by id), applying at most the pending balance of each. Sales that
// are not open credit sales are skipped. Whatever the sales cannot absorb is
// returned as the plan's Unapplied remainder.
func PlanAllocation(sales []domain.Sale, amount decimal.Decimal) (Plan, error) {
	if !amount.IsPositive() {
		return Plan{}, ErrNonPositiveAmount
	}

	open := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if s.Status != domain.SaleStatusCredit {
			continue
		}
		if Pending(s.Total, s.AmountPaid).IsZero() {
			continue
		}
		open = append(open, s)
	}
	sortOldestFirst(open)

	plan := Plan{AppliedTotal: decimal.Zero, Unapplied: decimal.Zero}
	remaining := amount
	for _, s := range open {
		if !remaining.IsPositive() {
			break
		}
		updated, applied, err := ApplyPayment(s, remaining)
		if err != nil {
			return Plan{}, err
		}
		plan.Applications = append(plan.Applications, Application{
			SaleID:        s.ID,
			Amount:        applied,
			NewAmountPaid: updated.AmountPaid,
			NewStatus:     updated.Status,
			Version:       s.Version,
		})
		plan.AppliedTotal = plan.AppliedTotal.Add(applied)
		remaining = remaining.Sub(applied)
	}
	plan.Unapplied = remaining
	return plan, nil
}

// PendingTotal sums the pending balances of all open credit sales. This is
// the reference value a client's aggregate debt is reconciled against.
func PendingTotal(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		if s.Status != domain.SaleStatusCredit {
			continue
		}
		total = total.Add(Pending(s.Total, s.AmountPaid))
	}
	return total
}

func sortOldestFirst(sales []domain.Sale) {
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
