package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	return New(repo, nil, zap.NewNop(), 0, 0), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		ID: "user-admin", Username: "admin", Role: domain.RoleAdmin,
	})
}

func sellerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		ID: "user-seller", Username: "vendedor", Role: domain.RoleSeller,
	})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubmitSaleHappyPath(t *testing.T) {
	svc, repo := newTestService(t)

	committed, err := svc.SubmitSale(sellerCtx(), domain.SaleRequest{
		ClientID: "cli-mostrador",
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-cola-355", Quantity: 2},
			{ProductID: "prod-agua-600", Quantity: 1, TaxClass: "exempt"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "user-seller", committed.UserID)
	assert.Equal(t, "2.50", committed.Subtotal.StringFixed(2))
	assert.Equal(t, "0.24", committed.TaxAmount.StringFixed(2))
	assert.Equal(t, "2.74", committed.TotalAmount.StringFixed(2))

	cola, err := repo.GetProduct(context.Background(), "prod-cola-355")
	require.NoError(t, err)
	assert.Equal(t, 46, cola.Stock)
}

func TestSubmitSaleRequiresActor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitSale(context.Background(), domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSubmitSaleUnknownClient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitSale(sellerCtx(), domain.SaleRequest{
		ClientID: "cli-nope",
		Lines:    []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 1}},
	})
	assert.ErrorIs(t, err, store.ErrClientNotFound)
}

func TestSubmitSaleIgnoresCallerPrices(t *testing.T) {
	svc, _ := newTestService(t)

	// The request type carries no price field at all; totals must come from
	// the catalog.
	committed, err := svc.SubmitSale(sellerCtx(), domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-arroz-1kg", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2.70", committed.Subtotal.StringFixed(2))
	require.Len(t, committed.Lines, 1)
	assert.True(t, committed.Lines[0].UnitPrice.Equal(dec("1.35")))
}

func TestSubmitSaleConcurrentStockContention(t *testing.T) {
	svc, repo := newTestService(t)

	// Drop arroz stock to 1, then race two submissions for the last unit.
	product, err := repo.GetProduct(context.Background(), "prod-arroz-1kg")
	require.NoError(t, err)
	product.Stock = 1
	_, err = repo.UpdateProduct(context.Background(), *product)
	require.NoError(t, err)

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.SubmitSale(sellerCtx(), domain.SaleRequest{
				Lines: []domain.SaleLineRequest{{ProductID: "prod-arroz-1kg", Quantity: 1}},
			})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded, rejected int
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, store.ErrInsufficientStock)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	final, err := repo.GetProduct(context.Background(), "prod-arroz-1kg")
	require.NoError(t, err)
	assert.Equal(t, 0, final.Stock)
}

func TestSubmitSaleWritesAudit(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.SubmitSale(adminCtx(), domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 1}},
	})
	require.NoError(t, err)

	logs, err := repo.ListAuditLogs(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "sale_commit", logs[0].Action)
	assert.Equal(t, "admin", logs[0].ActorName)
}

func TestCreateProductDerivesSalePrice(t *testing.T) {
	svc, _ := newTestService(t)

	profit := dec("50")
	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:             "Frijol 1kg",
		CategoryID:       "cat-abarrotes",
		Stock:            10,
		MinStock:         2,
		PurchasePrice:    dec("1.20"),
		ProfitPercentage: &profit,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.80", created.SalePrice.StringFixed(2))
	assert.Equal(t, "50.00", created.ProfitPercentage.StringFixed(2))
}

func TestCreateProductDerivesProfitPercentage(t *testing.T) {
	svc, _ := newTestService(t)

	salePrice := dec("1.50")
	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:          "Azucar 1kg",
		Stock:         5,
		PurchasePrice: dec("1.00"),
		SalePrice:     &salePrice,
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", created.ProfitPercentage.StringFixed(2))
}

func TestCreateProductRejectsPriceInversion(t *testing.T) {
	svc, _ := newTestService(t)

	salePrice := dec("0.90")
	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:          "Perdida",
		PurchasePrice: dec("1.00"),
		SalePrice:     &salePrice,
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	salePrice := dec("2.00")
	_, err := svc.CreateProduct(sellerCtx(), domain.ProductCreateRequest{
		Name:          "No permitido",
		PurchasePrice: dec("1.00"),
		SalePrice:     &salePrice,
	})
	assert.ErrorIs(t, err, ErrAdminRequired)
}

func TestUpdateProductRecordsPriceHistory(t *testing.T) {
	svc, repo := newTestService(t)

	newPrice := dec("1.25")
	updated, err := svc.UpdateProduct(adminCtx(), "prod-cola-355", domain.ProductUpdateRequest{
		SalePrice: &newPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.25", updated.SalePrice.StringFixed(2))

	history, err := repo.ListPriceHistory(context.Background(), "prod-cola-355", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "1.00", history[0].OldSalePrice.StringFixed(2))
	assert.Equal(t, "1.25", history[0].NewSalePrice.StringFixed(2))
	assert.Equal(t, "admin", history[0].ChangedBy)
}

func TestListSalesByDateRangeValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListSalesByDateRange(adminCtx(), "2026-02-30", "2026-03-01")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.ListSalesByDateRange(adminCtx(), "2026-03-02", "2026-03-01")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestDailyReportAfterSale(t *testing.T) {
	svc, _ := newTestService(t)

	committed, err := svc.SubmitSale(sellerCtx(), domain.SaleRequest{
		Lines: []domain.SaleLineRequest{{ProductID: "prod-cola-355", Quantity: 3}},
	})
	require.NoError(t, err)

	report, err := svc.DailyReport(adminCtx(), committed.SaleDate.Format("2006-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalSales)
	assert.Equal(t, committed.TotalAmount.StringFixed(2), report.TotalAmount.StringFixed(2))
}

func TestAuditLogsRequireAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListAuditLogs(sellerCtx(), 10)
	assert.ErrorIs(t, err, ErrAdminRequired)
}
