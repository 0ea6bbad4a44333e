package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"ventaclara/backend/internal/domain"
	"ventaclara/backend/internal/store"
	"ventaclara/backend/internal/xid"
)

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

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, cost, stock, category, COALESCE(barcode, '')
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.Category, &p.Barcode); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, cost, stock, category, COALESCE(barcode, '')
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.Category, &p.Barcode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return nil, store.ErrValidation
	}
	if product.Cost.IsNegative() || product.Stock < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, cost, stock, category, barcode, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
	`, product.ID, product.Name, product.Price, product.Cost, product.Stock, product.Category, nullIfEmpty(product.Barcode))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return nil, store.ErrValidation
	}

	// Stock is excluded on purpose: it moves only through AdjustStock.
	var stock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, cost = $4, category = $5, barcode = $6, updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, product.ID, product.Name, product.Price, product.Cost, product.Category, nullIfEmpty(product.Barcode)).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	product.Stock = stock
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
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

// AdjustStock applies the delta in a single statement so concurrent
// adjustments never lose updates.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int, unitCost *decimal.Decimal) (int, error) {
	var stock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, cost = COALESCE($3, cost), updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, productID, delta, nullDecimal(unitCost)).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return stock, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), current_debt
		FROM clients
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CurrentDebt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return clients, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), current_debt
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CurrentDebt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.CurrentDebt.IsNegative() {
		client.CurrentDebt = decimal.Zero
	}

	// Debt on an existing row is preserved: it moves only through
	// AddClientDebt and SetClientDebt.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, name, phone, email, current_debt, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email, updated_at = now()
		RETURNING current_debt
	`, client.ID, client.Name, nullIfEmpty(client.Phone), nullIfEmpty(client.Email), client.CurrentDebt).Scan(&client.CurrentDebt)
	if err != nil {
		return nil, err
	}

	saved := client
	return &saved, nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
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

// AddClientDebt clamps at zero inside the statement, so a reversal of an
// already drained debt can never drive the aggregate negative.
func (s *Store) AddClientDebt(ctx context.Context, clientID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var debt decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		UPDATE clients
		SET current_debt = GREATEST(0, current_debt + $2), updated_at = now()
		WHERE id = $1
		RETURNING current_debt
	`, clientID, delta).Scan(&debt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, err
	}
	return debt, nil
}

func (s *Store) SetClientDebt(ctx context.Context, clientID string, debt decimal.Decimal) error {
	if debt.IsNegative() {
		debt = decimal.Zero
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET current_debt = $2, updated_at = now()
		WHERE id = $1
	`, clientID, debt)
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

const saleColumns = `id, COALESCE(client_id, ''), items, total, amount_paid, status, sale_date, version`

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY sale_date DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSales(rows)
}

func (s *Store) ListSalesByClient(ctx context.Context, clientID string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE client_id = $1
		ORDER BY sale_date DESC, id DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSales(rows)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id)

	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	if sale.Version < 1 {
		sale.Version = 1
	}

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, client_id, items, total, amount_paid, status, sale_date, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
	`, sale.ID, nullIfEmpty(sale.ClientID), itemsJSON, sale.Total, sale.AmountPaid, sale.Status, sale.Date, sale.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

// UpdateSalePayment compares-and-swaps on version. A zero-row update is
// disambiguated with a follow-up existence check so callers can tell a
// missing sale from a concurrent writer.
func (s *Store) UpdateSalePayment(ctx context.Context, saleID string, amountPaid decimal.Decimal, status string, version int) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE sales
		SET amount_paid = $2, status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $4
		RETURNING `+saleColumns+`
	`, saleID, amountPaid, status, version)

	sale, err := scanSale(row)
	if err == nil {
		return sale, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if checkErr := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists); checkErr != nil {
		return nil, checkErr
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrConflict
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
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

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, description, category, expense_date
		FROM expenses
		ORDER BY expense_date DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Amount, &e.Description, &e.Category, &e.Date); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return expenses, nil
}

func (s *Store) SaveExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, amount, description, category, expense_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		ON CONFLICT (id)
		DO UPDATE SET amount = EXCLUDED.amount, description = EXCLUDED.description,
			category = EXCLUDED.category, expense_date = EXCLUDED.expense_date, updated_at = now()
	`, expense.ID, expense.Amount, expense.Description, expense.Category, expense.Date)
	if err != nil {
		return nil, err
	}

	saved := expense
	return &saved, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
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

func (s *Store) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	var op domain.Operation
	var resultID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, cursor, result_id, status, payload, created_at, updated_at
		FROM operations
		WHERE id = $1
	`, id).Scan(&op.ID, &op.Kind, &op.Cursor, &resultID, &op.Status, &op.Payload, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if resultID.Valid {
		op.ResultID = resultID.String
	}
	op.CreatedAt = op.CreatedAt.UTC()
	op.UpdatedAt = op.UpdatedAt.UTC()
	return &op, nil
}

func (s *Store) SaveOperation(ctx context.Context, op domain.Operation) (*domain.Operation, error) {
	if op.ID == "" || op.Kind == "" {
		return nil, store.ErrValidation
	}
	payload := op.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO operations (id, kind, cursor, result_id, status, payload, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		ON CONFLICT (id)
		DO UPDATE SET cursor = EXCLUDED.cursor, result_id = EXCLUDED.result_id,
			status = EXCLUDED.status, payload = EXCLUDED.payload, updated_at = now()
		RETURNING created_at, updated_at
	`, op.ID, op.Kind, op.Cursor, nullIfEmpty(op.ResultID), op.Status, payload).Scan(&op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}

	op.CreatedAt = op.CreatedAt.UTC()
	op.UpdatedAt = op.UpdatedAt.UTC()
	saved := op
	return &saved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var itemsJSON []byte
	if err := row.Scan(&sale.ID, &sale.ClientID, &itemsJSON, &sale.Total, &sale.AmountPaid, &sale.Status, &sale.Date, &sale.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return nil, err
	}
	sale.Date = sale.Date.UTC()
	return &sale, nil
}

func scanSales(rows *sql.Rows) ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
