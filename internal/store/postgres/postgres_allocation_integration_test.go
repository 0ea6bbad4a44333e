package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ventaclara/backend/internal/domain"
	"ventaclara/backend/internal/store"
)

func TestSalePaymentVersionCompareAndSwap(t *testing.T) {
	databaseURL := os.Getenv("VENTACLARA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VENTACLARA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	clientID := fmt.Sprintf("cli-cas-it-%d", stamp)
	saleID := fmt.Sprintf("sale-cas-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, current_debt, created_at, updated_at)
		VALUES ($1, 'Cliente CAS IT', 0, now(), now())
	`, clientID); err != nil {
		t.Fatalf("insert client: %v", err)
	}

	sale := domain.Sale{
		ID:       saleID,
		ClientID: clientID,
		Items: []domain.SaleItem{
			{ProductID: "prod-cas-it", Name: "Producto CAS IT", Quantity: 2, Price: decimal.NewFromInt(50)},
		},
		Total:      decimal.NewFromInt(100),
		AmountPaid: decimal.Zero,
		Status:     domain.SaleStatusCredit,
		Date:       time.Now().UTC(),
	}
	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1 on insert, got %d", created.Version)
	}

	updated, err := s.UpdateSalePayment(ctx, saleID, decimal.NewFromInt(40), domain.SaleStatusCredit, 1)
	if err != nil {
		t.Fatalf("update sale payment: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", updated.Version)
	}
	if !updated.AmountPaid.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected amount paid 40, got %s", updated.AmountPaid)
	}

	// Replay with the stale version must surface a conflict, not NotFound.
	if _, err := s.UpdateSalePayment(ctx, saleID, decimal.NewFromInt(100), domain.SaleStatusCompleted, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale version, got %v", err)
	}

	if _, err := s.UpdateSalePayment(ctx, "sale-missing-"+saleID, decimal.NewFromInt(1), domain.SaleStatusCredit, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing sale, got %v", err)
	}
}

func TestClientDebtClampsAtZero(t *testing.T) {
	databaseURL := os.Getenv("VENTACLARA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VENTACLARA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	clientID := fmt.Sprintf("cli-clamp-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, current_debt, created_at, updated_at)
		VALUES ($1, 'Cliente Clamp IT', 30, now(), now())
	`, clientID); err != nil {
		t.Fatalf("insert client: %v", err)
	}

	debt, err := s.AddClientDebt(ctx, clientID, decimal.NewFromInt(-50))
	if err != nil {
		t.Fatalf("add client debt: %v", err)
	}
	if !debt.IsZero() {
		t.Fatalf("expected debt clamped at 0, got %s", debt)
	}
}
