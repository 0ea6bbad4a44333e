package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"ventaclara/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// AdjustStock applies a signed delta to the stored stock and optionally
	// replaces the unit cost, returning the stock after the update. The
	// update is a single read-modify-write at the storage layer.
	AdjustStock(ctx context.Context, productID string, delta int, unitCost *decimal.Decimal) (int, error)

	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
	// AddClientDebt applies a signed delta to the client's aggregate debt,
	// clamping the result at zero, and returns the debt after the update.
	AddClientDebt(ctx context.Context, clientID string, delta decimal.Decimal) (decimal.Decimal, error)
	SetClientDebt(ctx context.Context, clientID string, debt decimal.Decimal) error

	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListSalesByClient(ctx context.Context, clientID string) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// UpdateSalePayment writes amount paid and status only when the stored
	// version still matches, returning ErrConflict otherwise.
	UpdateSalePayment(ctx context.Context, saleID string, amountPaid decimal.Decimal, status string, version int) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	SaveExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	GetOperation(ctx context.Context, id string) (*domain.Operation, error)
	SaveOperation(ctx context.Context, op domain.Operation) (*domain.Operation, error)
}
