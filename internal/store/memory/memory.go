package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ventaclara/backend/internal/domain"
	"ventaclara/backend/internal/store"
	"ventaclara/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	productsByID   map[string]domain.Product
	clientsByID    map[string]domain.Client
	salesByID      map[string]domain.Sale
	expensesByID   map[string]domain.Expense
	operationsByID map[string]domain.Operation
}

func New() *Store {
	return &Store{
		productsByID:   make(map[string]domain.Product),
		clientsByID:    make(map[string]domain.Client),
		salesByID:      make(map[string]domain.Sale),
		expensesByID:   make(map[string]domain.Expense),
		operationsByID: make(map[string]domain.Operation),
	}
}

// NewSeeded returns a store preloaded with a small catalog and client list
// for dev/demo mode. Production deployments use PostgreSQL instead
// (DATABASE_URL set).
func NewSeeded() *Store {
	s := New()

	products := []domain.Product{
		{ID: "prod-cafe-01", Name: "Café Molido 500g", Price: dec("95.00"), Cost: dec("62.00"), Stock: 40, Category: "abarrotes"},
		{ID: "prod-azucar-01", Name: "Azúcar 1kg", Price: dec("32.00"), Cost: dec("24.50"), Stock: 60, Category: "abarrotes"},
		{ID: "prod-arroz-01", Name: "Arroz 1kg", Price: dec("28.00"), Cost: dec("21.00"), Stock: 55, Category: "abarrotes"},
		{ID: "prod-aceite-01", Name: "Aceite Vegetal 1L", Price: dec("48.00"), Cost: dec("39.00"), Stock: 30, Category: "abarrotes"},
		{ID: "prod-leche-01", Name: "Leche Entera 1L", Price: dec("26.50"), Cost: dec("21.80"), Stock: 48, Category: "lácteos"},
		{ID: "prod-jabon-01", Name: "Jabón de Barra", Price: dec("18.00"), Cost: dec("12.50"), Stock: 70, Category: "limpieza"},
		{ID: "prod-refresco-01", Name: "Refresco 2L", Price: dec("38.00"), Cost: dec("29.00"), Stock: 36, Category: "bebidas"},
		{ID: "prod-galletas-01", Name: "Galletas Surtidas", Price: dec("22.00"), Cost: dec("15.00"), Stock: 44, Category: "botanas"},
	}
	for _, p := range products {
		s.productsByID[p.ID] = p
	}

	clients := []domain.Client{
		{ID: "cli-maria-01", Name: "María López", Phone: "555-0101", CurrentDebt: decimal.Zero},
		{ID: "cli-jorge-01", Name: "Jorge Ramírez", Phone: "555-0102", CurrentDebt: decimal.Zero},
		{ID: "cli-lucia-01", Name: "Lucía Hernández", Phone: "555-0103", CurrentDebt: decimal.Zero},
	}
	for _, c := range clients {
		s.clientsByID[c.ID] = c
	}

	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return nil, store.ErrValidation
	}
	if product.Cost.IsNegative() || product.Stock < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.productsByID[product.ID]; exists {
		return nil, store.ErrConflict
	}

	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return nil, store.ErrValidation
	}
	current, exists := s.productsByID[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	// Stock moves only through AdjustStock.
	product.Stock = current.Stock
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int, unitCost *decimal.Decimal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return 0, store.ErrNotFound
	}
	product.Stock += delta
	if unitCost != nil {
		product.Cost = *unitCost
	}
	s.productsByID[productID] = product
	return product.Stock, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clientsByID))
	for _, c := range s.clientsByID {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		if a.Name == b.Name {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.Name, b.Name)
	})
	return clients, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clientsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyClient := client
	return &copyClient, nil
}

func (s *Store) SaveClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if existing, exists := s.clientsByID[client.ID]; exists {
		// Debt moves only through AddClientDebt and SetClientDebt.
		client.CurrentDebt = existing.CurrentDebt
	} else if client.CurrentDebt.IsNegative() {
		client.CurrentDebt = decimal.Zero
	}
	s.clientsByID[client.ID] = client
	saved := client
	return &saved, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clientsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.clientsByID, id)
	return nil
}

func (s *Store) AddClientDebt(_ context.Context, clientID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, exists := s.clientsByID[clientID]
	if !exists {
		return decimal.Zero, store.ErrNotFound
	}
	next := client.CurrentDebt.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	client.CurrentDebt = next
	s.clientsByID[clientID] = client
	return next, nil
}

func (s *Store) SetClientDebt(_ context.Context, clientID string, debt decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, exists := s.clientsByID[clientID]
	if !exists {
		return store.ErrNotFound
	}
	if debt.IsNegative() {
		debt = decimal.Zero
	}
	client.CurrentDebt = debt
	s.clientsByID[clientID] = client
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sales = append(sales, cloneSale(sale))
	}
	sortSalesNewestFirst(sales)
	return sales, nil
}

func (s *Store) ListSalesByClient(_ context.Context, clientID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if sale.ClientID != clientID {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	sortSalesNewestFirst(sales)
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrConflict
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	if sale.Version < 1 {
		sale.Version = 1
	}

	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) UpdateSalePayment(_ context.Context, saleID string, amountPaid decimal.Decimal, status string, version int) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Version != version {
		return nil, store.ErrConflict
	}
	sale.AmountPaid = amountPaid
	sale.Status = status
	sale.Version++
	s.salesByID[saleID] = sale
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expensesByID))
	for _, e := range s.expensesByID {
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return expenses, nil
}

func (s *Store) SaveExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(expense.Description) == "" || !expense.Amount.IsPositive() {
		return nil, store.ErrValidation
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Category == "" {
		expense.Category = domain.ExpenseCategoryOther
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}
	s.expensesByID[expense.ID] = expense
	saved := expense
	return &saved, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expensesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.expensesByID, id)
	return nil
}

func (s *Store) GetOperation(_ context.Context, id string) (*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, exists := s.operationsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOp := cloneOperation(op)
	return &copyOp, nil
}

func (s *Store) SaveOperation(_ context.Context, op domain.Operation) (*domain.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.ID == "" || op.Kind == "" {
		return nil, store.ErrValidation
	}
	now := time.Now().UTC()
	if existing, exists := s.operationsByID[op.ID]; exists {
		op.CreatedAt = existing.CreatedAt
	} else if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now
	s.operationsByID[op.ID] = cloneOperation(op)
	saved := cloneOperation(op)
	return &saved, nil
}

func sortSalesNewestFirst(sales []domain.Sale) {
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneOperation(src domain.Operation) domain.Operation {
	dup := src
	payload := make([]byte, len(src.Payload))
	copy(payload, src.Payload)
	dup.Payload = payload
	return dup
}
