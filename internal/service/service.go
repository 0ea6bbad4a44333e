package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ventaclara/backend/internal/cache"
	"ventaclara/backend/internal/domain"
	"ventaclara/backend/internal/ledger"
	"ventaclara/backend/internal/store"
	"ventaclara/backend/internal/xid"
)

// ErrPartialApply marks an operation whose earlier side effects are already
// committed when a later best-effort step failed. Nothing is rolled back.
var ErrPartialApply = errors.New("operation partially applied")

const summaryCacheKey = "ventaclara:summary"

type Service struct {
	repo       store.Repository
	summaries  cache.SummaryCache
	summaryTTL time.Duration
}

func New(repo store.Repository, summaries cache.SummaryCache, summaryTTL time.Duration) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}

	return &Service{
		repo:       repo,
		summaries:  summaries,
		summaryTTL: summaryTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || !req.Price.IsPositive() {
		return domain.Product{}, store.ErrValidation
	}
	if req.Cost.IsNegative() || req.Stock < 0 {
		return domain.Product{}, store.ErrValidation
	}

	product := domain.Product{
		ID:       xid.New("prod"),
		Name:     req.Name,
		Price:    req.Price,
		Cost:     req.Cost,
		Stock:    req.Stock,
		Category: req.Category,
		Barcode:  strings.TrimSpace(req.Barcode),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	// Opening stock bought at a known cost is money already spent; record it
	// so the expense ledger and the shelf agree from day one.
	if created.Stock > 0 && created.Cost.IsPositive() {
		expense := domain.Expense{
			Amount:      created.Cost.Mul(decimal.NewFromInt(int64(created.Stock))),
			Description: fmt.Sprintf("Inversión Inicial: %s (%d uds)", created.Name, created.Stock),
			Category:    domain.ExpenseCategoryRestock,
		}
		if _, err := s.repo.SaveExpense(ctx, expense); err != nil {
			log.Printf("[service] WARN: initial stock expense not recorded for product %s: %v", created.ID, err)
		}
	}

	s.invalidateSummary(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	product := *existing
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Cost != nil {
		product.Cost = *req.Cost
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Barcode != nil {
		product.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if product.Name == "" || !product.Price.IsPositive() || product.Cost.IsNegative() {
		return domain.Product{}, store.ErrValidation
	}

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}

// AdjustStock applies a signed delta to one product. A positive delta with a
// unit cost is a restock purchase: the cost sticks to the product and the
// spend lands in the expense ledger. The stock write commits first; if the
// expense insert then fails the result is returned together with
// ErrPartialApply so the caller knows the ledger is short one entry.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.StockAdjustResult, error) {
	if strings.TrimSpace(req.ProductID) == "" || req.Delta == 0 {
		return domain.StockAdjustResult{}, store.ErrValidation
	}
	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		return domain.StockAdjustResult{}, store.ErrValidation
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.StockAdjustResult{}, err
	}

	var unitCost *decimal.Decimal
	if req.Delta > 0 {
		unitCost = req.UnitCost
	}
	newStock, err := s.repo.AdjustStock(ctx, req.ProductID, req.Delta, unitCost)
	if err != nil {
		return domain.StockAdjustResult{}, err
	}
	if newStock < 0 {
		log.Printf("[service] WARN: product %s stock is negative after adjustment (%d)", req.ProductID, newStock)
	}

	result := domain.StockAdjustResult{ProductID: req.ProductID, NewStock: newStock}

	if req.Delta > 0 && req.UnitCost != nil && req.UnitCost.IsPositive() {
		expense := domain.Expense{
			Amount:      req.UnitCost.Mul(decimal.NewFromInt(int64(req.Delta))),
			Description: fmt.Sprintf("Reposición Stock: %s (+%d uds)", product.Name, req.Delta),
			Category:    domain.ExpenseCategoryRestock,
		}
		saved, err := s.repo.SaveExpense(ctx, expense)
		if err != nil {
			return result, fmt.Errorf("%w: stock written but restock expense failed: %v", ErrPartialApply, err)
		}
		result.ExpenseID = saved.ID
	}

	s.invalidateSummary(ctx)
	return result, nil
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

func (s *Service) SaveClient(ctx context.Context, req domain.ClientSaveRequest) (domain.Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Client{}, store.ErrValidation
	}

	client := domain.Client{
		ID:          strings.TrimSpace(req.ID),
		Name:        req.Name,
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		CurrentDebt: decimal.Zero,
	}
	saved, err := s.repo.SaveClient(ctx, client)
	if err != nil {
		return domain.Client{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	return s.repo.DeleteClient(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListSalesByClient(ctx context.Context, clientID string) ([]domain.Sale, error) {
	return s.repo.ListSalesByClient(ctx, clientID)
}

func (s *Service) ListSalesByStatus(ctx context.Context, status string) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.Status == status {
			filtered = append(filtered, sale)
		}
	}
	return filtered, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

type saleCreatePayload struct {
	Sale domain.Sale `json:"sale"`
}

// CreateSale persists a sale and its side effects as a cursor-tracked
// operation: (0) insert the sale row, (1..N) decrement stock per line item,
// (N+1) for credit sales add the pending amount to the client's debt. A
// retry with the same operation id resumes after the last completed step
// instead of double-applying, and a replay of a finished operation returns
// the sale it created.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	opID := strings.TrimSpace(req.OperationID)
	if opID == "" {
		opID = xid.New("op")
	}

	var payload saleCreatePayload
	op, err := s.repo.GetOperation(ctx, opID)
	switch {
	case err == nil:
		if op.Kind != domain.OperationKindSaleCreate {
			return domain.Sale{}, fmt.Errorf("%w: operation %s is %s", store.ErrConflict, opID, op.Kind)
		}
		if op.Status == domain.OperationStatusCompleted {
			replay, err := s.repo.GetSale(ctx, op.ResultID)
			if err != nil {
				return domain.Sale{}, err
			}
			return *replay, nil
		}
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return domain.Sale{}, fmt.Errorf("decode operation %s: %w", opID, err)
		}
	case errors.Is(err, store.ErrNotFound):
		sale, err := s.buildSale(ctx, req)
		if err != nil {
			return domain.Sale{}, err
		}
		payload = saleCreatePayload{Sale: sale}
		raw, err := json.Marshal(payload)
		if err != nil {
			return domain.Sale{}, err
		}
		op, err = s.repo.SaveOperation(ctx, domain.Operation{
			ID:      opID,
			Kind:    domain.OperationKindSaleCreate,
			Status:  domain.OperationStatusPending,
			Payload: raw,
		})
		if err != nil {
			return domain.Sale{}, err
		}
	default:
		return domain.Sale{}, err
	}

	sale := payload.Sale
	credit := sale.Status == domain.SaleStatusCredit && sale.ClientID != ""
	total := 1 + len(sale.Items)
	if credit {
		total++
	}

	for op.Cursor < total {
		switch {
		case op.Cursor == 0:
			// A conflict here means a prior attempt inserted the row but
			// died before recording progress.
			if _, err := s.repo.CreateSale(ctx, sale); err != nil && !errors.Is(err, store.ErrConflict) {
				return domain.Sale{}, err
			}
			op.ResultID = sale.ID
		case op.Cursor <= len(sale.Items):
			item := sale.Items[op.Cursor-1]
			newStock, err := s.repo.AdjustStock(ctx, item.ProductID, -item.Quantity, nil)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return domain.Sale{}, err
				}
				log.Printf("[service] WARN: sale %s references missing product %s, stock not adjusted", sale.ID, item.ProductID)
			} else if newStock < 0 {
				log.Printf("[service] WARN: product %s oversold by sale %s (stock %d)", item.ProductID, sale.ID, newStock)
			}
		default:
			pending := ledger.Pending(sale.Total, sale.AmountPaid)
			if pending.IsPositive() {
				if _, err := s.repo.AddClientDebt(ctx, sale.ClientID, pending); err != nil {
					return domain.Sale{}, err
				}
			}
		}

		op.Cursor++
		if op, err = s.repo.SaveOperation(ctx, *op); err != nil {
			return domain.Sale{}, err
		}
	}

	op.Status = domain.OperationStatusCompleted
	if _, err := s.repo.SaveOperation(ctx, *op); err != nil {
		return domain.Sale{}, err
	}

	created, err := s.repo.GetSale(ctx, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}
	s.invalidateSummary(ctx)
	return *created, nil
}

func (s *Service) buildSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrValidation
	}
	if req.Status != domain.SaleStatusCompleted && req.Status != domain.SaleStatusCredit {
		return domain.Sale{}, store.ErrValidation
	}
	if req.AmountPaid.IsNegative() {
		return domain.Sale{}, store.ErrValidation
	}

	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.Status == domain.SaleStatusCredit {
		if req.ClientID == "" {
			return domain.Sale{}, store.ErrValidation
		}
		if _, err := s.repo.GetClient(ctx, req.ClientID); err != nil {
			return domain.Sale{}, err
		}
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	total := decimal.Zero
	for _, line := range req.Items {
		if strings.TrimSpace(line.ProductID) == "" || line.Quantity < 1 || line.Price.IsNegative() {
			return domain.Sale{}, store.ErrValidation
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		items = append(items, domain.SaleItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	status := req.Status
	amountPaid := req.AmountPaid
	if status == domain.SaleStatusCompleted {
		amountPaid = total
	} else {
		if amountPaid.GreaterThan(total) {
			return domain.Sale{}, store.ErrValidation
		}
		// A credit sale with nothing pending is already settled; store it
		// as COMPLETED so status always agrees with the pending balance.
		if amountPaid.Equal(total) {
			status = domain.SaleStatusCompleted
		}
	}

	date := time.Now().UTC()
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}

	return domain.Sale{
		ID:         xid.New("sale"),
		ClientID:   req.ClientID,
		Items:      items,
		Total:      total,
		AmountPaid: amountPaid,
		Status:     status,
		Date:       date,
		Version:    1,
	}, nil
}

type saleReversePayload struct {
	Sale domain.Sale `json:"sale"`
}

// ReverseSale undoes a sale: stock comes back per line item, a credit sale's
// still-owed pending amount leaves the client's debt, and the sale row is
// deleted last so a crash mid-way never orphans the side effects.
func (s *Service) ReverseSale(ctx context.Context, saleID string, operationID string) error {
	opID := strings.TrimSpace(operationID)
	if opID == "" {
		opID = xid.New("op")
	}

	var payload saleReversePayload
	op, err := s.repo.GetOperation(ctx, opID)
	switch {
	case err == nil:
		if op.Kind != domain.OperationKindSaleReverse {
			return fmt.Errorf("%w: operation %s is %s", store.ErrConflict, opID, op.Kind)
		}
		if op.Status == domain.OperationStatusCompleted {
			return nil
		}
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return fmt.Errorf("decode operation %s: %w", opID, err)
		}
	case errors.Is(err, store.ErrNotFound):
		sale, err := s.repo.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		payload = saleReversePayload{Sale: *sale}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		op, err = s.repo.SaveOperation(ctx, domain.Operation{
			ID:       opID,
			Kind:     domain.OperationKindSaleReverse,
			ResultID: sale.ID,
			Status:   domain.OperationStatusPending,
			Payload:  raw,
		})
		if err != nil {
			return err
		}
	default:
		return err
	}

	sale := payload.Sale
	total := len(sale.Items) + 2

	for op.Cursor < total {
		switch {
		case op.Cursor < len(sale.Items):
			item := sale.Items[op.Cursor]
			if _, err := s.repo.AdjustStock(ctx, item.ProductID, item.Quantity, nil); err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return err
				}
				log.Printf("[service] WARN: reversal of sale %s references missing product %s, stock not restored", sale.ID, item.ProductID)
			}
		case op.Cursor == len(sale.Items):
			if sale.Status == domain.SaleStatusCredit && sale.ClientID != "" {
				pending := ledger.Pending(sale.Total, sale.AmountPaid)
				if pending.IsPositive() {
					if _, err := s.repo.AddClientDebt(ctx, sale.ClientID, pending.Neg()); err != nil {
						if !errors.Is(err, store.ErrNotFound) {
							return err
						}
						log.Printf("[service] WARN: reversal of sale %s references missing client %s, debt not adjusted", sale.ID, sale.ClientID)
					}
				}
			}
		default:
			if err := s.repo.DeleteSale(ctx, sale.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		op.Cursor++
		if op, err = s.repo.SaveOperation(ctx, *op); err != nil {
			return err
		}
	}

	op.Status = domain.OperationStatusCompleted
	if _, err := s.repo.SaveOperation(ctx, *op); err != nil {
		return err
	}

	s.invalidateSummary(ctx)
	return nil
}

type allocationPayload struct {
	ClientID string                   `json:"client_id"`
	Amount   decimal.Decimal          `json:"amount"`
	Plan     ledger.Plan              `json:"plan"`
	Result   *domain.AllocationResult `json:"result,omitempty"`
}

// AllocatePayment distributes one payment across a client's open credit
// sales, oldest first. The plan is frozen into the operation payload before
// the first write, so a resumed attempt replays the identical plan; each
// sale write is version-checked and the debt drops once, by the sum actually
// applied. Whatever the sales could not absorb comes back as Unapplied.
func (s *Service) AllocatePayment(ctx context.Context, req domain.AllocationRequest) (domain.AllocationResult, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" || !req.Amount.IsPositive() {
		return domain.AllocationResult{}, store.ErrValidation
	}

	opID := strings.TrimSpace(req.OperationID)
	if opID == "" {
		opID = xid.New("op")
	}

	var payload allocationPayload
	op, err := s.repo.GetOperation(ctx, opID)
	switch {
	case err == nil:
		if op.Kind != domain.OperationKindPaymentAllocate {
			return domain.AllocationResult{}, fmt.Errorf("%w: operation %s is %s", store.ErrConflict, opID, op.Kind)
		}
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return domain.AllocationResult{}, fmt.Errorf("decode operation %s: %w", opID, err)
		}
		if op.Status == domain.OperationStatusCompleted && payload.Result != nil {
			return *payload.Result, nil
		}
	case errors.Is(err, store.ErrNotFound):
		if _, err := s.repo.GetClient(ctx, req.ClientID); err != nil {
			return domain.AllocationResult{}, err
		}
		sales, err := s.allocationTargets(ctx, req)
		if err != nil {
			return domain.AllocationResult{}, err
		}
		plan, err := ledger.PlanAllocation(sales, req.Amount)
		if err != nil {
			return domain.AllocationResult{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		payload = allocationPayload{ClientID: req.ClientID, Amount: req.Amount, Plan: plan}
		raw, err := json.Marshal(payload)
		if err != nil {
			return domain.AllocationResult{}, err
		}
		op, err = s.repo.SaveOperation(ctx, domain.Operation{
			ID:       opID,
			Kind:     domain.OperationKindPaymentAllocate,
			ResultID: req.ClientID,
			Status:   domain.OperationStatusPending,
			Payload:  raw,
		})
		if err != nil {
			return domain.AllocationResult{}, err
		}
	default:
		return domain.AllocationResult{}, err
	}

	plan := payload.Plan
	total := len(plan.Applications) + 1
	newDebt := decimal.Zero

	for op.Cursor < total {
		if op.Cursor < len(plan.Applications) {
			app := plan.Applications[op.Cursor]
			if _, err := s.repo.UpdateSalePayment(ctx, app.SaleID, app.NewAmountPaid, app.NewStatus, app.Version); err != nil {
				return domain.AllocationResult{}, fmt.Errorf("apply payment to sale %s: %w", app.SaleID, err)
			}
		} else {
			if plan.AppliedTotal.IsPositive() {
				debt, err := s.repo.AddClientDebt(ctx, payload.ClientID, plan.AppliedTotal.Neg())
				if err != nil {
					return domain.AllocationResult{}, err
				}
				newDebt = debt
			} else {
				client, err := s.repo.GetClient(ctx, payload.ClientID)
				if err != nil {
					return domain.AllocationResult{}, err
				}
				newDebt = client.CurrentDebt
			}
		}

		op.Cursor++
		if op, err = s.repo.SaveOperation(ctx, *op); err != nil {
			return domain.AllocationResult{}, err
		}
	}

	applications := make([]domain.PaymentApplication, 0, len(plan.Applications))
	for _, app := range plan.Applications {
		applications = append(applications, domain.PaymentApplication{
			SaleID:        app.SaleID,
			Applied:       app.Amount,
			NewAmountPaid: app.NewAmountPaid,
			NewStatus:     app.NewStatus,
		})
	}
	result := domain.AllocationResult{
		ClientID:     payload.ClientID,
		Applications: applications,
		AppliedTotal: plan.AppliedTotal,
		Unapplied:    plan.Unapplied,
		NewDebt:      newDebt,
	}

	payload.Result = &result
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	op.Status = domain.OperationStatusCompleted
	op.Payload = raw
	if _, err := s.repo.SaveOperation(ctx, *op); err != nil {
		return domain.AllocationResult{}, err
	}

	s.invalidateSummary(ctx)
	return result, nil
}

func (s *Service) allocationTargets(ctx context.Context, req domain.AllocationRequest) ([]domain.Sale, error) {
	if len(req.SaleIDs) == 0 {
		return s.repo.ListSalesByClient(ctx, req.ClientID)
	}
	sales := make([]domain.Sale, 0, len(req.SaleIDs))
	for _, id := range req.SaleIDs {
		sale, err := s.repo.GetSale(ctx, id)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, nil
}

// ReconcileClientDebt recomputes a client's debt from the pending balances
// of their credit sales and corrects the stored aggregate when they differ.
func (s *Service) ReconcileClientDebt(ctx context.Context, clientID string) (domain.DebtReconciliation, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return domain.DebtReconciliation{}, err
	}
	sales, err := s.repo.ListSalesByClient(ctx, clientID)
	if err != nil {
		return domain.DebtReconciliation{}, err
	}

	computed := ledger.PendingTotal(sales)
	rec := domain.DebtReconciliation{
		ClientID:     clientID,
		StoredDebt:   client.CurrentDebt,
		ComputedDebt: computed,
		Drift:        computed.Sub(client.CurrentDebt),
	}
	if rec.Drift.IsZero() {
		return rec, nil
	}

	log.Printf("[reconcile] WARN: client %s debt drift %s (stored %s, computed %s)", clientID, rec.Drift, rec.StoredDebt, computed)
	if err := s.repo.SetClientDebt(ctx, clientID, computed); err != nil {
		return rec, err
	}
	rec.Corrected = true
	s.invalidateSummary(ctx)
	return rec, nil
}

func (s *Service) ReconcileAllClients(ctx context.Context) ([]domain.DebtReconciliation, error) {
	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.DebtReconciliation, 0, len(clients))
	for _, client := range clients {
		rec, err := s.ReconcileClientDebt(ctx, client.ID)
		if err != nil {
			log.Printf("[reconcile] WARN: client %s not reconciled: %v", client.ID, err)
			continue
		}
		results = append(results, rec)
	}
	return results, nil
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) SaveExpense(ctx context.Context, req domain.ExpenseSaveRequest) (domain.Expense, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" || !req.Amount.IsPositive() {
		return domain.Expense{}, store.ErrValidation
	}
	category := req.Category
	switch category {
	case "":
		category = domain.ExpenseCategoryOther
	case domain.ExpenseCategoryRestock, domain.ExpenseCategoryOther:
	default:
		return domain.Expense{}, store.ErrValidation
	}

	expense := domain.Expense{
		ID:          strings.TrimSpace(req.ID),
		Amount:      req.Amount,
		Description: req.Description,
		Category:    category,
	}
	if req.Date != nil && !req.Date.IsZero() {
		expense.Date = req.Date.UTC()
	}

	saved, err := s.repo.SaveExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	s.invalidateSummary(ctx)
	return *saved, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.invalidateSummary(ctx)
	return nil
}

func (s *Service) BusinessSummary(ctx context.Context) (domain.BusinessSummary, error) {
	if cached, ok, err := s.summaries.Get(ctx, summaryCacheKey); err != nil {
		log.Printf("[service] WARN: summary cache read failed: %v", err)
	} else if ok {
		return *cached, nil
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.BusinessSummary{}, err
	}
	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return domain.BusinessSummary{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return domain.BusinessSummary{}, err
	}

	summary := domain.BusinessSummary{
		GeneratedAt:     time.Now().UTC(),
		GrossSales:      decimal.Zero,
		TotalCollected:  decimal.Zero,
		OutstandingDebt: decimal.Zero,
		TotalExpenses:   decimal.Zero,
	}
	for _, sale := range sales {
		summary.SaleCount++
		if sale.Status == domain.SaleStatusCredit {
			summary.CreditSaleCount++
		}
		summary.GrossSales = summary.GrossSales.Add(sale.Total)
		summary.TotalCollected = summary.TotalCollected.Add(sale.AmountPaid)
	}
	for _, client := range clients {
		summary.OutstandingDebt = summary.OutstandingDebt.Add(client.CurrentDebt)
	}
	for _, expense := range expenses {
		summary.TotalExpenses = summary.TotalExpenses.Add(expense.Amount)
	}

	if err := s.summaries.Set(ctx, summaryCacheKey, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed: %v", err)
	}
	return summary, nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if err := s.summaries.Invalidate(ctx, summaryCacheKey); err != nil {
		log.Printf("[service] WARN: summary cache invalidation failed: %v", err)
	}
}
