package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ventaclara/backend/internal/cache"
	"ventaclara/backend/internal/domain"
	"ventaclara/backend/internal/service"
	"ventaclara/backend/internal/store/memory"
)

// newTestAPI builds a full API over an in-memory store and a real Service so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopSummaryCache{}, time.Second)
	return New(svc, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleProducts_ListAndCreate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	products, ok := body["products"].([]any)
	if !ok || len(products) == 0 {
		t.Fatalf("expected seeded products, got %v", body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":     "Harina 1kg",
		"price":    "30",
		"cost":     "22",
		"stock":    12,
		"category": "abarrotes",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_CreateValidationError(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":  "",
		"price": "10",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProductActions_NotFound(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/prod-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleStockAdjust(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{
		"product_id": "prod-cafe-01",
		"delta":      10,
		"unit_cost":  "62",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %v", body)
	}
	if result["new_stock"] != float64(50) {
		t.Fatalf("new_stock = %v, want 50", result["new_stock"])
	}
	if result["expense_id"] == "" || result["expense_id"] == nil {
		t.Fatalf("expected restock expense id, got %v", result)
	}
}

// expenseFailingStore makes every expense insert fail so the partial-apply
// path (stock written, ledger entry lost) can be driven through the handler.
type expenseFailingStore struct {
	*memory.Store
}

func (s *expenseFailingStore) SaveExpense(_ context.Context, _ domain.Expense) (*domain.Expense, error) {
	return nil, errors.New("pq: disk full writing expenses")
}

func TestHandleStockAdjust_PartialApplyRedactsStorageDetail(t *testing.T) {
	repo := &expenseFailingStore{Store: memory.NewSeeded()}
	svc := service.New(repo, cache.NoopSummaryCache{}, time.Second)
	handler := New(svc, "*").Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{
		"product_id": "prod-cafe-01",
		"delta":      5,
		"unit_cost":  "62",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	raw := rec.Body.String()
	if strings.Contains(raw, "disk full") {
		t.Fatalf("response leaked storage detail: %s", raw)
	}

	body := decodeBody(t, rec)
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected partial result in body, got %v", body)
	}
	if result["new_stock"] != float64(45) {
		t.Fatalf("new_stock = %v, want 45 (stock write must have landed)", result["new_stock"])
	}
}

func TestHandleSales_CreditSaleEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"client_id": "cli-maria-01",
		"status":    "CREDIT",
		"items": []map[string]any{
			{"product_id": "prod-cafe-01", "quantity": 2, "price": "95"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/clients/cli-maria-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get client: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	client, ok := body["client"].(map[string]any)
	if !ok {
		t.Fatalf("expected client object, got %v", body)
	}
	if client["current_debt"] != "190" {
		t.Fatalf("current_debt = %v, want 190", client["current_debt"])
	}
}

func TestHandleSales_StatusFilter(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"client_id": "cli-jorge-01",
		"status":    "CREDIT",
		"items": []map[string]any{
			{"product_id": "prod-arroz-01", "quantity": 1, "price": "28"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"status": "COMPLETED",
		"items": []map[string]any{
			{"product_id": "prod-arroz-01", "quantity": 1, "price": "28"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cash sale: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales?status=CREDIT", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	sales, ok := body["sales"].([]any)
	if !ok || len(sales) != 1 {
		t.Fatalf("expected exactly 1 credit sale, got %v", body["sales"])
	}
}

func TestHandleSaleActions_ReverseViaDelete(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"client_id": "cli-lucia-01",
		"status":    "CREDIT",
		"items": []map[string]any{
			{"product_id": "prod-jabon-01", "quantity": 2, "price": "18"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	sale := body["sale"].(map[string]any)
	saleID, _ := sale["id"].(string)
	if saleID == "" {
		t.Fatalf("expected sale id, got %v", body)
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/v1/sales/%s?operation_id=op-http-rev", saleID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reverse: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+saleID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after reversal, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/clients/cli-lucia-01", nil)
	body = decodeBody(t, rec)
	client := body["client"].(map[string]any)
	if client["current_debt"] != "0" {
		t.Fatalf("current_debt = %v after reversal, want 0", client["current_debt"])
	}
}

func TestHandleClientPayment(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"client_id": "cli-maria-01",
		"status":    "CREDIT",
		"items": []map[string]any{
			{"product_id": "prod-refresco-01", "quantity": 2, "price": "38"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/clients/cli-maria-01/payments", map[string]any{
		"amount": "50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	allocation, ok := body["allocation"].(map[string]any)
	if !ok {
		t.Fatalf("expected allocation object, got %v", body)
	}
	if allocation["applied_total"] != "50" {
		t.Fatalf("applied_total = %v, want 50", allocation["applied_total"])
	}
	if allocation["new_debt"] != "26" {
		t.Fatalf("new_debt = %v, want 26", allocation["new_debt"])
	}
}

func TestHandleClientPayment_RejectsNonPositiveAmount(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/clients/cli-maria-01/payments", map[string]any{
		"amount": "0",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReconciliationRun(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/reconciliation/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if _, ok := body["reconciliations"].([]any); !ok {
		t.Fatalf("expected reconciliations array, got %v", body)
	}
}

func TestHandleSummary(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if _, ok := body["summary"].(map[string]any); !ok {
		t.Fatalf("expected summary object, got %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/products", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS origin header")
	}
}
