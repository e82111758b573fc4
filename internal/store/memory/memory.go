// Package memory provides a mutex-guarded in-memory Repository used for
// tests and for running the server without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/sale"
	"puntoventa/backend/internal/store"
)

type Store struct {
	mu sync.Mutex

	products     map[string]domain.Product
	categories   map[string]domain.Category
	clients      map[string]domain.Client
	sales        map[string]domain.Sale
	saleOrder    []string
	priceHistory []domain.PriceHistory
	auditLogs    []domain.AuditLog
	users        map[string]domain.UserAccount

	invoicing  bool
	invoiceSeq int64
}

func New() *Store {
	return &Store{
		products:   map[string]domain.Product{},
		categories: map[string]domain.Category{},
		clients:    map[string]domain.Client{},
		sales:      map[string]domain.Sale{},
		users:      map[string]domain.UserAccount{},
	}
}

// EnableInvoicing turns on sequential invoice numbering for committed sales.
func (s *Store) EnableInvoicing() {
	s.mu.Lock()
	s.invoicing = true
	s.mu.Unlock()
}

// NewSeeded returns a store preloaded with a small catalog, one client and
// an admin account (admin / admin123).
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	s.categories["cat-bebidas"] = domain.Category{ID: "cat-bebidas", Name: "Bebidas", CreatedAt: now}
	s.categories["cat-abarrotes"] = domain.Category{ID: "cat-abarrotes", Name: "Abarrotes", CreatedAt: now}

	seedProducts := []domain.Product{
		{
			ID: "prod-cola-355", Name: "Cola 355ml", CategoryID: "cat-bebidas",
			Stock: 48, MinStock: 12,
			PurchasePrice: decimal.RequireFromString("0.60"),
			SalePrice:     decimal.RequireFromString("1.00"),
		},
		{
			ID: "prod-agua-600", Name: "Agua 600ml", CategoryID: "cat-bebidas",
			Stock: 36, MinStock: 10,
			PurchasePrice: decimal.RequireFromString("0.30"),
			SalePrice:     decimal.RequireFromString("0.50"),
		},
		{
			ID: "prod-arroz-1kg", Name: "Arroz 1kg", CategoryID: "cat-abarrotes",
			Stock: 20, MinStock: 5,
			PurchasePrice: decimal.RequireFromString("0.90"),
			SalePrice:     decimal.RequireFromString("1.35"),
		},
	}
	for _, p := range seedProducts {
		p.ProfitPercentage = profitPercentage(p.PurchasePrice, p.SalePrice)
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	s.clients["cli-mostrador"] = domain.Client{ID: "cli-mostrador", Name: "Cliente Mostrador", CreatedAt: now}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err == nil {
		s.users["admin"] = domain.UserAccount{
			ID:           "user-admin",
			Username:     "admin",
			PasswordHash: string(hash),
			FullName:     "Administrador",
			Role:         domain.RoleAdmin,
			Active:       true,
			CreatedAt:    now,
		}
	}

	return s
}

func profitPercentage(purchase, salePrice decimal.Decimal) decimal.Decimal {
	if purchase.IsZero() {
		return decimal.Zero
	}
	return salePrice.Div(purchase).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(2)
}

// --- products ---

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, s.decorateProduct(p))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) decorateProduct(p domain.Product) domain.Product {
	if cat, ok := s.categories[p.CategoryID]; ok {
		p.CategoryName = cat.Name
	}
	p.LowStock = p.Stock <= p.MinStock
	return p
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	decorated := s.decorateProduct(p)
	return &decorated, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.CategoryID != "" {
		if _, ok := s.categories[product.CategoryID]; !ok {
			return nil, fmt.Errorf("category %s: %w", product.CategoryID, store.ErrNotFound)
		}
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product

	decorated := s.decorateProduct(product)
	return &decorated, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	if product.CategoryID != "" {
		if _, ok := s.categories[product.CategoryID]; !ok {
			return nil, fmt.Errorf("category %s: %w", product.CategoryID, store.ErrNotFound)
		}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	decorated := s.decorateProduct(product)
	return &decorated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrProductNotFound
	}
	for _, sl := range s.sales {
		for _, line := range sl.Lines {
			if line.ProductID == id {
				return fmt.Errorf("product %s has sales: %w", id, store.ErrConflict)
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.Stock <= p.MinStock {
			products = append(products, s.decorateProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Stock < products[j].Stock })
	return products, nil
}

func (s *Store) GetProductSnapshots(_ context.Context, ids []string) (map[string]domain.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotsLocked(ids), nil
}

func (s *Store) snapshotsLocked(ids []string) map[string]domain.ProductSnapshot {
	snaps := make(map[string]domain.ProductSnapshot, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			snaps[id] = domain.ProductSnapshot{ID: p.ID, Name: p.Name, SalePrice: p.SalePrice, Stock: p.Stock}
		}
	}
	return snaps
}

func (s *Store) CreatePriceHistory(_ context.Context, entry domain.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceHistory = append(s.priceHistory, entry)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, productID string, limit int) ([]domain.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.PriceHistory, 0, limit)
	for i := len(s.priceHistory) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.priceHistory[i].ProductID == productID {
			entries = append(entries, s.priceHistory[i])
		}
	}
	return entries, nil
}

// --- categories ---

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, fmt.Errorf("category name %q: %w", category.Name, store.ErrConflict)
		}
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	category.CreatedAt = time.Now().UTC()
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	category.CreatedAt = existing.CreatedAt
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	for _, p := range s.products {
		if p.CategoryID == id {
			return fmt.Errorf("category %s has products: %w", id, store.ErrConflict)
		}
	}
	delete(s.categories, id)
	return nil
}

// --- clients ---

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, store.ErrClientNotFound
	}
	return &c, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.CreatedAt = time.Now().UTC()
	s.clients[client.ID] = client
	return &client, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[client.ID]
	if !ok {
		return nil, store.ErrClientNotFound
	}
	client.CreatedAt = existing.CreatedAt
	s.clients[client.ID] = client
	return &client, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[id]; !ok {
		return store.ErrClientNotFound
	}
	for _, sl := range s.sales {
		if sl.ClientID == id {
			return fmt.Errorf("client %s has sales: %w", id, store.ErrConflict)
		}
	}
	delete(s.clients, id)
	return nil
}

func (s *Store) ClientExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[id]
	return ok, nil
}

// --- sales ---

// CreateSale commits a sale atomically: the whole operation runs under the
// store mutex, and no state is mutated until every line has been re-validated
// against current stock and re-priced from the current catalog.
func (s *Store) CreateSale(_ context.Context, input domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(input.Lines) == 0 {
		return nil, store.ErrEmptySale
	}
	if input.ClientID != "" {
		if _, ok := s.clients[input.ClientID]; !ok {
			return nil, store.ErrClientNotFound
		}
	}

	req := domain.SaleRequest{ClientID: input.ClientID}
	ids := make([]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		req.Lines = append(req.Lines, domain.SaleLineRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			TaxClass:  line.TaxClass,
		})
		ids = append(ids, line.ProductID)
	}

	resolved, err := sale.ValidateLines(req, s.snapshotsLocked(ids))
	if err != nil {
		return nil, err
	}
	totals, err := sale.ComputeTotals(resolved)
	if err != nil {
		return nil, err
	}

	committed := domain.Sale{
		ID:          uuid.NewString(),
		ClientID:    input.ClientID,
		UserID:      input.UserID,
		SaleDate:    time.Now().UTC(),
		Subtotal:    totals.Subtotal,
		TaxAmount:   totals.TaxAmount,
		TotalAmount: totals.GrandTotal,
	}
	if s.invoicing {
		s.invoiceSeq++
		committed.InvoiceNumber = s.invoiceSeq
	}
	if client, ok := s.clients[input.ClientID]; ok {
		committed.ClientName = client.Name
	}
	for _, u := range s.users {
		if u.ID == input.UserID {
			committed.SellerName = u.Username
			break
		}
	}

	for _, line := range resolved {
		committed.Lines = append(committed.Lines, domain.SaleLine{
			ID:          uuid.NewString(),
			SaleID:      committed.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineSubtotal,
			TaxClass:    line.TaxClass,
		})
		p := s.products[line.ProductID]
		p.Stock -= line.Quantity
		p.UpdatedAt = committed.SaleDate
		s.products[line.ProductID] = p
	}

	s.sales[committed.ID] = committed
	s.saleOrder = append(s.saleOrder, committed.ID)

	clone := cloneSale(committed)
	return &clone, nil
}

func cloneSale(sl domain.Sale) domain.Sale {
	lines := make([]domain.SaleLine, len(sl.Lines))
	copy(lines, sl.Lines)
	sl.Lines = lines
	return sl
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneSale(sl)
	return &clone, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.salesLocked(func(domain.Sale) bool { return true }), nil
}

func (s *Store) salesLocked(keep func(domain.Sale) bool) []domain.Sale {
	sales := make([]domain.Sale, 0, len(s.saleOrder))
	for i := len(s.saleOrder) - 1; i >= 0; i-- {
		sl := s.sales[s.saleOrder[i]]
		if keep(sl) {
			sales = append(sales, cloneSale(sl))
		}
	}
	return sales
}

func (s *Store) ListSalesByDateRange(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.salesLocked(func(sl domain.Sale) bool {
		return !sl.SaleDate.Before(from) && sl.SaleDate.Before(to)
	}), nil
}

// --- reports ---

func (s *Store) GetDailySalesReport(_ context.Context, date time.Time) (domain.DailySalesReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := date.UTC().Truncate(24 * time.Hour)
	next := day.Add(24 * time.Hour)
	sales := s.salesLocked(func(sl domain.Sale) bool {
		return !sl.SaleDate.Before(day) && sl.SaleDate.Before(next)
	})

	total := decimal.Zero
	for _, sl := range sales {
		total = total.Add(sl.TotalAmount)
	}
	return domain.DailySalesReport{
		Date:        day.Format("2006-01-02"),
		TotalSales:  len(sales),
		TotalAmount: total,
		Sales:       sales,
	}, nil
}

func (s *Store) GetMonthlySalesReport(_ context.Context, year int, month time.Month) (domain.MonthlySalesReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := domain.MonthlySalesReport{
		Year:              year,
		Month:             int(month),
		TotalAmount:       decimal.Zero,
		TotalProfit:       decimal.Zero,
		AverageDailySales: decimal.Zero,
	}
	byDay := map[string]*domain.MonthlyReportDay{}

	for _, id := range s.saleOrder {
		sl := s.sales[id]
		if sl.SaleDate.Year() != year || sl.SaleDate.Month() != month {
			continue
		}
		key := sl.SaleDate.Format("2006-01-02")
		day, ok := byDay[key]
		if !ok {
			day = &domain.MonthlyReportDay{Date: key, DailyTotal: decimal.Zero, GrossProfit: decimal.Zero}
			byDay[key] = day
		}
		day.NumSales++
		day.DailyTotal = day.DailyTotal.Add(sl.TotalAmount)
		for _, line := range sl.Lines {
			day.ProductsSold += line.Quantity
			if p, ok := s.products[line.ProductID]; ok {
				qty := decimal.NewFromInt(int64(line.Quantity))
				day.GrossProfit = day.GrossProfit.Add(line.UnitPrice.Sub(p.PurchasePrice).Mul(qty))
			}
		}
		report.TotalSales++
		report.TotalAmount = report.TotalAmount.Add(sl.TotalAmount)
	}

	keys := make([]string, 0, len(byDay))
	for key := range byDay {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		day := byDay[key]
		report.TotalProductsSold += day.ProductsSold
		report.TotalProfit = report.TotalProfit.Add(day.GrossProfit)
		report.Days = append(report.Days, *day)
	}
	if len(report.Days) > 0 {
		report.AverageDailySales = report.TotalAmount.Div(decimal.NewFromInt(int64(len(report.Days)))).Round(2)
	}
	return report, nil
}

func (s *Store) GetInventoryReport(_ context.Context) (domain.InventoryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := domain.InventoryReport{TotalInventoryValue: decimal.Zero}
	categoriesSeen := map[string]struct{}{}

	for _, p := range s.products {
		item := domain.InventoryReportItem{
			ProductID:     p.ID,
			Name:          p.Name,
			Stock:         p.Stock,
			MinStock:      p.MinStock,
			PurchasePrice: p.PurchasePrice,
			SalePrice:     p.SalePrice,
			ProfitMargin:  p.SalePrice.Sub(p.PurchasePrice),
			NeedsRestock:  p.Stock <= p.MinStock,
		}
		if cat, ok := s.categories[p.CategoryID]; ok {
			item.Category = cat.Name
			categoriesSeen[cat.ID] = struct{}{}
		}
		report.Products = append(report.Products, item)
		report.TotalProducts++
		report.TotalInventoryValue = report.TotalInventoryValue.Add(
			p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Stock))))
		if item.NeedsRestock {
			report.LowStockProducts++
		}
	}
	report.TotalCategories = len(categoriesSeen)

	sort.Slice(report.Products, func(i, j int) bool {
		// restock candidates first, then by name
		if report.Products[i].NeedsRestock != report.Products[j].NeedsRestock {
			return report.Products[i].NeedsRestock
		}
		return report.Products[i].Name < report.Products[j].Name
	})
	return report, nil
}

func (s *Store) GetTopProducts(_ context.Context, from, to *time.Time, limit int) (domain.TopProductsReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 10
	}

	type acc struct {
		top       domain.TopProduct
		salesSeen map[string]struct{}
	}
	byProduct := map[string]*acc{}

	for _, id := range s.saleOrder {
		sl := s.sales[id]
		if from != nil && sl.SaleDate.Before(*from) {
			continue
		}
		if to != nil && !sl.SaleDate.Before(*to) {
			continue
		}
		for _, line := range sl.Lines {
			entry, ok := byProduct[line.ProductID]
			if !ok {
				entry = &acc{
					top: domain.TopProduct{
						ProductID:   line.ProductID,
						Name:        line.ProductName,
						TotalSales:  decimal.Zero,
						TotalProfit: decimal.Zero,
					},
					salesSeen: map[string]struct{}{},
				}
				if p, ok := s.products[line.ProductID]; ok {
					if cat, ok := s.categories[p.CategoryID]; ok {
						entry.top.Category = cat.Name
					}
				}
				byProduct[line.ProductID] = entry
			}
			entry.top.TotalQuantity += line.Quantity
			entry.top.TotalSales = entry.top.TotalSales.Add(line.LineTotal)
			if p, ok := s.products[line.ProductID]; ok {
				qty := decimal.NewFromInt(int64(line.Quantity))
				entry.top.TotalProfit = entry.top.TotalProfit.Add(line.UnitPrice.Sub(p.PurchasePrice).Mul(qty))
			}
			if _, seen := entry.salesSeen[sl.ID]; !seen {
				entry.salesSeen[sl.ID] = struct{}{}
				entry.top.NumberOfSales++
			}
		}
	}

	report := domain.TopProductsReport{}
	if from != nil {
		report.StartDate = from.Format("2006-01-02")
	}
	if to != nil {
		report.EndDate = to.Format("2006-01-02")
	}
	for _, entry := range byProduct {
		report.Products = append(report.Products, entry.top)
	}
	sort.Slice(report.Products, func(i, j int) bool {
		if report.Products[i].TotalQuantity != report.Products[j].TotalQuantity {
			return report.Products[i].TotalQuantity > report.Products[j].TotalQuantity
		}
		return report.Products[i].Name < report.Products[j].Name
	})
	if len(report.Products) > limit {
		report.Products = report.Products[:limit]
	}
	return report, nil
}

// --- audit ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 50
	}
	entries := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, s.auditLogs[i])
	}
	return entries, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.users[username]; exists {
		return nil, fmt.Errorf("username %q: %w", username, store.ErrConflict)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Username = username
	user.CreatedAt = time.Now().UTC()
	s.users[username] = user
	return &user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.ID == id {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for username, user := range s.users {
		if user.ID == id {
			user.LastLogin = &at
			s.users[username] = user
			return nil
		}
	}
	return store.ErrNotFound
}
