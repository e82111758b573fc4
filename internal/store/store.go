package store

import (
	"context"
	"errors"
	"time"

	"puntoventa/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTaxClass   = errors.New("invalid tax class")
	ErrEmptySale         = errors.New("sale has no line items")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	// ErrPersistence wraps infrastructure failures (connection loss,
	// constraint violations, timeouts) raised during an atomic commit.
	ErrPersistence = errors.New("persistence failure")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	// GetProductSnapshots reads current price and stock for the given product
	// ids. Missing ids are simply absent from the returned map.
	GetProductSnapshots(ctx context.Context, ids []string) (map[string]domain.ProductSnapshot, error)
	CreatePriceHistory(ctx context.Context, entry domain.PriceHistory) error
	ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceHistory, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
	ClientExists(ctx context.Context, id string) (bool, error)

	// CreateSale commits the sale header, its line items and the matching
	// stock decrements as one atomic unit. Stock sufficiency and unit prices
	// are re-resolved under the transaction; on any failure nothing from the
	// attempt is persisted.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListSalesByDateRange(ctx context.Context, from, to time.Time) ([]domain.Sale, error)

	GetDailySalesReport(ctx context.Context, date time.Time) (domain.DailySalesReport, error)
	GetMonthlySalesReport(ctx context.Context, year int, month time.Month) (domain.MonthlySalesReport, error)
	GetInventoryReport(ctx context.Context) (domain.InventoryReport, error)
	GetTopProducts(ctx context.Context, from, to *time.Time, limit int) (domain.TopProductsReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
