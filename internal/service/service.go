// Package service holds the business orchestration between the HTTP API and
// the repository. Sale submission pre-validates against a stock snapshot for
// fast feedback, then hands the request to the repository, which re-validates
// inside the commit transaction.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"puntoventa/backend/internal/cache"
	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/sale"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/xid"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrAdminRequired   = errors.New("admin role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	logger    *zap.Logger
	reportTTL time.Duration
	txTimeout time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, logger *zap.Logger, reportTTL, txTimeout time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	if txTimeout <= 0 {
		txTimeout = 10 * time.Second
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		logger:    logger,
		reportTTL: reportTTL,
		txTimeout: txTimeout,
	}
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}

// --- products ---

var oneHundred = decimal.NewFromInt(100)

// deriveSalePrice applies a profit percentage on top of the purchase price.
func deriveSalePrice(purchase, profitPercentage decimal.Decimal) decimal.Decimal {
	return purchase.Mul(decimal.NewFromInt(1).Add(profitPercentage.Div(oneHundred))).Round(2)
}

// deriveProfitPercentage is the inverse: how far the sale price sits above
// the purchase price, in percent.
func deriveProfitPercentage(purchase, salePrice decimal.Decimal) decimal.Decimal {
	if purchase.IsZero() {
		return decimal.Zero
	}
	return salePrice.Sub(purchase).Div(purchase).Mul(oneHundred).Round(2)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("product name required: %w", store.ErrInvalidInput)
	}
	if req.PurchasePrice.IsNegative() || req.Stock < 0 || req.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	// Either the sale price or the profit percentage must be given; the
	// missing one is derived from the purchase price.
	var salePrice, profitPercentage decimal.Decimal
	switch {
	case req.SalePrice != nil:
		salePrice = req.SalePrice.Round(2)
		profitPercentage = deriveProfitPercentage(req.PurchasePrice, salePrice)
	case req.ProfitPercentage != nil:
		profitPercentage = *req.ProfitPercentage
		salePrice = deriveSalePrice(req.PurchasePrice, profitPercentage)
	default:
		return nil, fmt.Errorf("sale_price or profit_percentage required: %w", store.ErrInvalidInput)
	}
	if salePrice.LessThanOrEqual(req.PurchasePrice) {
		return nil, fmt.Errorf("sale price must exceed purchase price: %w", store.ErrInvalidInput)
	}

	if req.CategoryID != "" {
		if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:               xid.New("prod"),
		Name:             req.Name,
		Description:      strings.TrimSpace(req.Description),
		CategoryID:       req.CategoryID,
		Stock:            req.Stock,
		MinStock:         req.MinStock,
		PurchasePrice:    req.PurchasePrice.Round(2),
		SalePrice:        salePrice,
		ProfitPercentage: profitPercentage,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,sale_price=%s,stock=%d", created.Name, created.SalePrice.StringFixed(2), created.Stock))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		if *req.CategoryID != "" {
			if _, err := s.repo.GetCategory(ctx, *req.CategoryID); err != nil {
				return nil, err
			}
		}
		updated.CategoryID = *req.CategoryID
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, store.ErrInvalidInput
		}
		updated.Stock = *req.Stock
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}
	if req.PurchasePrice != nil {
		if req.PurchasePrice.IsNegative() {
			return nil, store.ErrInvalidInput
		}
		updated.PurchasePrice = req.PurchasePrice.Round(2)
	}
	switch {
	case req.SalePrice != nil:
		updated.SalePrice = req.SalePrice.Round(2)
		updated.ProfitPercentage = deriveProfitPercentage(updated.PurchasePrice, updated.SalePrice)
	case req.ProfitPercentage != nil:
		updated.ProfitPercentage = *req.ProfitPercentage
		updated.SalePrice = deriveSalePrice(updated.PurchasePrice, updated.ProfitPercentage)
	case req.PurchasePrice != nil:
		// Purchase price changed alone: keep the margin, move the sale price.
		updated.SalePrice = deriveSalePrice(updated.PurchasePrice, updated.ProfitPercentage)
	}
	if updated.SalePrice.LessThanOrEqual(updated.PurchasePrice) {
		return nil, fmt.Errorf("sale price must exceed purchase price: %w", store.ErrInvalidInput)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}

	if !existing.SalePrice.Equal(saved.SalePrice) {
		if err := s.repo.CreatePriceHistory(ctx, domain.PriceHistory{
			ID:           xid.New("ph"),
			ProductID:    saved.ID,
			OldSalePrice: existing.SalePrice,
			NewSalePrice: saved.SalePrice,
			ChangedBy:    actor.Username,
			ChangedAt:    time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("failed to record price history", zap.String("product_id", saved.ID), zap.Error(err))
		}
	}

	s.logAudit(ctx, actor, "product_update", "product", saved.ID,
		fmt.Sprintf("sale_price=%s,stock=%d", saved.SalePrice.StringFixed(2), saved.Stock))
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceHistory, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListPriceHistory(ctx, productID, limit)
}

// --- categories ---

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (*domain.Category, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:          xid.New("cat"),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor, "category_create", "category", created.ID, created.Name)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (*domain.Category, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	req.Name = strings.TrimSpace(req.Name)
	if id == "" || req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	saved, err := s.repo.UpdateCategory(ctx, domain.Category{
		ID:          id,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor, "category_update", "category", saved.ID, saved.Name)
	return saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor, "category_delete", "category", id, "")
	return nil
}

// --- clients ---

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetClient(ctx, id)
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientRequest) (*domain.Client, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreateClient(ctx, domain.Client{
		ID:      xid.New("cli"),
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor, "client_create", "client", created.ID, created.Name)
	return created, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientRequest) (*domain.Client, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	req.Name = strings.TrimSpace(req.Name)
	if id == "" || req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	saved, err := s.repo.UpdateClient(ctx, domain.Client{
		ID:      id,
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor, "client_update", "client", saved.ID, saved.Name)
	return saved, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor, "client_delete", "client", id, "")
	return nil
}

// --- sales ---

// SubmitSale runs the full sale pipeline: validate line items against a
// current stock snapshot, then commit through the repository, which resolves
// prices and computes totals inside its transaction. The snapshot check gives
// the caller an early, cheap rejection; the repository repeats the validation
// under its locks, so a concurrent sale draining the stock between the two
// steps is still caught.
func (s *Service) SubmitSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Lines) == 0 {
		return nil, store.ErrEmptySale
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID != "" {
		exists, err := s.repo.ClientExists(ctx, req.ClientID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%s: %w", req.ClientID, store.ErrClientNotFound)
		}
	}

	ids := make([]string, 0, len(req.Lines))
	seen := make(map[string]struct{}, len(req.Lines))
	for _, line := range req.Lines {
		if _, dup := seen[line.ProductID]; !dup {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}
	snapshots, err := s.repo.GetProductSnapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	resolved, err := sale.ValidateLines(req, snapshots)
	if err != nil {
		return nil, err
	}

	input := domain.Sale{
		ClientID: req.ClientID,
		UserID:   actor.ID,
	}
	for _, line := range resolved {
		input.Lines = append(input.Lines, domain.SaleLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			TaxClass:  line.TaxClass,
		})
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	committed, err := s.repo.CreateSale(commitCtx, input)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor, "sale_commit", "sale", committed.ID,
		fmt.Sprintf("total=%s,lines=%d,client=%s", committed.TotalAmount.StringFixed(2), len(committed.Lines), committed.ClientID))
	s.invalidateReportsFor(ctx, committed.SaleDate)

	return committed, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListSalesByDateRange(ctx context.Context, fromDate, toDate string) ([]domain.Sale, error) {
	from, err := parseDay(fromDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDay(toDate)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date range inverted: %w", store.ErrInvalidInput)
	}
	return s.repo.ListSalesByDateRange(ctx, from, to.Add(24*time.Hour))
}

func parseDay(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", value, store.ErrInvalidInput)
	}
	return parsed.UTC(), nil
}

// --- reports ---

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailySalesReport, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := parseDay(date)
		if err != nil {
			return domain.DailySalesReport{}, err
		}
		day = parsed
	}

	key := "report:daily:" + day.Format("2006-01-02")
	var cached domain.DailySalesReport
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	report, err := s.repo.GetDailySalesReport(ctx, day)
	if err != nil {
		return domain.DailySalesReport{}, err
	}
	s.toCache(ctx, key, report)
	return report, nil
}

func (s *Service) MonthlyReport(ctx context.Context, year int, month int) (domain.MonthlySalesReport, error) {
	if year < 2000 || month < 1 || month > 12 {
		return domain.MonthlySalesReport{}, fmt.Errorf("year=%d month=%d: %w", year, month, store.ErrInvalidInput)
	}

	key := fmt.Sprintf("report:monthly:%04d-%02d", year, month)
	var cached domain.MonthlySalesReport
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	report, err := s.repo.GetMonthlySalesReport(ctx, year, time.Month(month))
	if err != nil {
		return domain.MonthlySalesReport{}, err
	}
	s.toCache(ctx, key, report)
	return report, nil
}

func (s *Service) InventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	const key = "report:inventory"
	var cached domain.InventoryReport
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	report, err := s.repo.GetInventoryReport(ctx)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	s.toCache(ctx, key, report)
	return report, nil
}

func (s *Service) TopProducts(ctx context.Context, fromDate, toDate string, limit int) (domain.TopProductsReport, error) {
	var from, to *time.Time
	if strings.TrimSpace(fromDate) != "" {
		parsed, err := parseDay(fromDate)
		if err != nil {
			return domain.TopProductsReport{}, err
		}
		from = &parsed
	}
	if strings.TrimSpace(toDate) != "" {
		parsed, err := parseDay(toDate)
		if err != nil {
			return domain.TopProductsReport{}, err
		}
		end := parsed.Add(24 * time.Hour)
		to = &end
	}
	if limit < 1 {
		limit = 10
	}
	return s.repo.GetTopProducts(ctx, from, to, limit)
}

func (s *Service) fromCache(ctx context.Context, key string, out any) bool {
	payload, ok, err := s.reports.Get(ctx, key)
	if err != nil {
		s.logger.Warn("report cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		s.logger.Warn("report cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) toCache(ctx context.Context, key string, report any) {
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.reports.Set(ctx, key, payload, s.reportTTL); err != nil {
		s.logger.Warn("report cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidateReportsFor(ctx context.Context, saleDate time.Time) {
	day := saleDate.UTC()
	keys := []string{
		"report:daily:" + day.Format("2006-01-02"),
		fmt.Sprintf("report:monthly:%04d-%02d", day.Year(), int(day.Month())),
		"report:inventory",
	}
	if err := s.reports.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

// --- audit ---

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, actor domain.Actor, action, entityType, entityID, detail string) {
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ActorID:    actor.ID,
		ActorName:  actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}
