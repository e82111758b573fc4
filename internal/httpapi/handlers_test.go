package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/service"
	"puntoventa/backend/internal/store/memory"
)

type testEnv struct {
	server *httptest.Server
	repo   *memory.Store
	admin  string
	seller string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, zap.NewNop(), 0, 0)
	auth := NewAuthManager(testSecret, time.Hour, repo)
	api := New(svc, auth, zap.NewNop(), Options{LoginRateRPM: 100})

	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	env := &testEnv{server: server, repo: repo}
	env.admin = env.login(t, "admin", "admin123")

	env.doJSON(t, http.MethodPost, "/api/v1/auth/register", env.admin, domain.RegisterRequest{
		Username: "vendedor", Password: "secret6", FullName: "Vendedor",
	}, nil)
	env.seller = env.login(t, "vendedor", "secret6")

	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	status := e.doJSON(t, http.MethodPost, "/api/v1/auth/login", "",
		domain.LoginRequest{Username: username, Password: password}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload, out any) int {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		User domain.Actor `json:"user"`
	}
	status := env.doJSON(t, http.MethodGet, "/api/v1/auth/verify", env.seller, nil, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "vendedor", resp.User.Username)
	assert.Equal(t, domain.RoleSeller, resp.User.Role)

	status = env.doJSON(t, http.MethodGet, "/api/v1/auth/verify", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

type failingUserStore struct{}

func (failingUserStore) CreateUser(context.Context, domain.UserAccount) (*domain.UserAccount, error) {
	return nil, errors.New("connection reset")
}

func (failingUserStore) GetUserByUsername(context.Context, string) (*domain.UserAccount, error) {
	return nil, errors.New("connection reset")
}

func (failingUserStore) GetUserByID(context.Context, string) (*domain.UserAccount, error) {
	return nil, errors.New("connection reset")
}

func (failingUserStore) TouchLastLogin(context.Context, string, time.Time) error { return nil }

func TestLoginStoreFailureMapsToServerError(t *testing.T) {
	repo := memory.NewSeeded()
	svc := service.New(repo, nil, zap.NewNop(), 0, 0)
	auth := NewAuthManager(testSecret, time.Hour, failingUserStore{})
	api := New(svc, auth, zap.NewNop(), Options{LoginRateRPM: 100})

	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	env := &testEnv{server: server, repo: repo}
	var resp struct {
		Error string `json:"error"`
	}
	status := env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "",
		domain.LoginRequest{Username: "admin", Password: "admin123"}, &resp)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", resp.Error)
}

func TestSubmitSaleEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		Sale domain.Sale `json:"sale"`
	}
	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller, domain.SaleRequest{
		ClientID: "cli-mostrador",
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-cola-355", Quantity: 2},
		},
	}, &resp)

	require.Equal(t, http.StatusCreated, status)
	assert.True(t, resp.Sale.Subtotal.Equal(decimal.RequireFromString("2.00")))
	assert.True(t, resp.Sale.TaxAmount.Equal(decimal.RequireFromString("0.24")))
	assert.True(t, resp.Sale.TotalAmount.Equal(decimal.RequireFromString("2.24")))
	require.Len(t, resp.Sale.Lines, 1)
	assert.Equal(t, domain.TaxClassStandard, resp.Sale.Lines[0].TaxClass)
}

func TestSubmitSaleInsufficientStock(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		Error string `json:"error"`
	}
	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller, domain.SaleRequest{
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-arroz-1kg", Quantity: 11},
			{ProductID: "prod-arroz-1kg", Quantity: 11},
		},
	}, &resp)

	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, resp.Error, "insufficient stock")
}

func TestSubmitSaleUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller, domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-nope", Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmitSaleInvalidTaxClass(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller, domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 1, TaxClass: "luxury"}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestSubmitSaleEmptyLinesRejected(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller,
		map[string]any{"lines": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSalesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", "", domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = env.doJSON(t, http.MethodGet, "/api/v1/products", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSellerCannotCreateProduct(t *testing.T) {
	env := newTestEnv(t)

	salePrice := decimal.RequireFromString("2.00")
	status := env.doJSON(t, http.MethodPost, "/api/v1/products", env.seller, domain.ProductCreateRequest{
		Name:          "Prohibido",
		PurchasePrice: decimal.RequireFromString("1.00"),
		SalePrice:     &salePrice,
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdminProductLifecycle(t *testing.T) {
	env := newTestEnv(t)

	salePrice := decimal.RequireFromString("2.50")
	var created struct {
		Product domain.Product `json:"product"`
	}
	status := env.doJSON(t, http.MethodPost, "/api/v1/products", env.admin, domain.ProductCreateRequest{
		Name:          "Cafe 250g",
		CategoryID:    "cat-abarrotes",
		Stock:         12,
		MinStock:      3,
		PurchasePrice: decimal.RequireFromString("1.75"),
		SalePrice:     &salePrice,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.Product.ID)

	newPrice := decimal.RequireFromString("2.75")
	var updated struct {
		Product domain.Product `json:"product"`
	}
	status = env.doJSON(t, http.MethodPatch, "/api/v1/products/"+created.Product.ID, env.admin,
		domain.ProductUpdateRequest{SalePrice: &newPrice}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, updated.Product.SalePrice.Equal(newPrice))

	var history struct {
		History []domain.PriceHistory `json:"history"`
	}
	status = env.doJSON(t, http.MethodGet, "/api/v1/products/"+created.Product.ID+"/price-history", env.admin, nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history.History, 1)

	status = env.doJSON(t, http.MethodDelete, "/api/v1/products/"+created.Product.ID, env.admin, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestClientLifecycle(t *testing.T) {
	env := newTestEnv(t)

	var created struct {
		Client domain.Client `json:"client"`
	}
	status := env.doJSON(t, http.MethodPost, "/api/v1/clients", env.seller, domain.ClientRequest{
		Name: "Maria Lopez", Phone: "555-0101",
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	status = env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller, domain.SaleRequest{
		ClientID: created.Client.ID,
		Lines:    []domain.SaleLineRequest{{ProductID: "prod-agua-600", Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusCreated, status)

	// Client now has sales, deletion must conflict.
	status = env.doJSON(t, http.MethodDelete, "/api/v1/clients/"+created.Client.ID, env.admin, nil, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestReportsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, http.MethodPost, "/api/v1/sales", env.seller, domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var daily struct {
		Report domain.DailySalesReport `json:"report"`
	}
	status = env.doJSON(t, http.MethodGet, "/api/v1/reports/daily", env.admin, nil, &daily)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, daily.Report.TotalSales)

	var inventory struct {
		Report domain.InventoryReport `json:"report"`
	}
	status = env.doJSON(t, http.MethodGet, "/api/v1/reports/inventory", env.admin, nil, &inventory)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, inventory.Report.TotalProducts)

	var top struct {
		Report domain.TopProductsReport `json:"report"`
	}
	status = env.doJSON(t, http.MethodGet, "/api/v1/reports/top-products?limit=5", env.admin, nil, &top)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, top.Report.Products, 1)
	assert.Equal(t, "prod-cola-355", top.Report.Products[0].ProductID)

	status = env.doJSON(t, http.MethodGet, "/api/v1/reports/monthly?year=2020&month=13", env.admin, nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestAuditLogsEndpointAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, http.MethodGet, "/api/v1/audit-logs", env.seller, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = env.doJSON(t, http.MethodGet, "/api/v1/audit-logs", env.admin, nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		OK bool `json:"ok"`
	}
	status := env.doJSON(t, http.MethodGet, "/healthz", "", nil, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.OK)
}
