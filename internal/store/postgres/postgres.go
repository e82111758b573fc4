// Package postgres implements the Repository on PostgreSQL. Sale commits run
// in a serializable transaction with row locks on the products involved, so
// the stock re-check and the decrement are atomic with respect to concurrent
// sales. See schema.sql for the expected tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/sale"
	"puntoventa/backend/internal/store"
)

type Store struct {
	db        *sql.DB
	invoicing bool
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

// EnableInvoicing makes CreateSale assign sequential invoice numbers from
// the sale_invoice_seq sequence.
func (s *Store) EnableInvoicing() {
	s.invoicing = true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func persistenceErr(err error) error {
	return fmt.Errorf("%w: %v", store.ErrPersistence, err)
}

// --- products ---

const productColumns = `
	p.id, p.name, COALESCE(p.description, ''), COALESCE(p.category_id::text, ''),
	COALESCE(c.name, ''), p.stock, p.min_stock, p.purchase_price, p.sale_price,
	p.profit_percentage, p.stock <= p.min_stock AS low_stock, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.CategoryName,
		&p.Stock, &p.MinStock, &p.PurchasePrice, &p.SalePrice, &p.ProfitPercentage,
		&p.LowStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		ORDER BY p.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category_id, stock, min_stock,
			purchase_price, sale_price, profit_percentage, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.CategoryID),
		product.Stock, product.MinStock, product.PurchasePrice, product.SalePrice, product.ProfitPercentage)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product %s: %w", product.ID, store.ErrConflict)
		}
		return nil, err
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, category_id = $3, stock = $4, min_stock = $5,
			purchase_price = $6, sale_price = $7, profit_percentage = $8, updated_at = now()
		WHERE id = $9
	`, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.CategoryID),
		product.Stock, product.MinStock, product.PurchasePrice, product.SalePrice,
		product.ProfitPercentage, product.ID)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrProductNotFound
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	var hasSales bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sale_lines WHERE product_id = $1)`, id).Scan(&hasSales)
	if err != nil {
		return err
	}
	if hasSales {
		return fmt.Errorf("product %s has sales: %w", id, store.ErrConflict)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.stock <= p.min_stock
		ORDER BY p.stock ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductSnapshots(ctx context.Context, ids []string) (map[string]domain.ProductSnapshot, error) {
	snaps := make(map[string]domain.ProductSnapshot, len(ids))
	if len(ids) == 0 {
		return snaps, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sale_price, stock
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var snap domain.ProductSnapshot
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.SalePrice, &snap.Stock); err != nil {
			return nil, err
		}
		snaps[snap.ID] = snap
	}
	return snaps, rows.Err()
}

func (s *Store) CreatePriceHistory(ctx context.Context, entry domain.PriceHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (id, product_id, old_sale_price, new_sale_price, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.ProductID, entry.OldSalePrice, entry.NewSalePrice, entry.ChangedBy, entry.ChangedAt)
	return err
}

func (s *Store) ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, old_sale_price, new_sale_price, changed_by, changed_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PriceHistory, 0, limit)
	for rows.Next() {
		var entry domain.PriceHistory
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.OldSalePrice,
			&entry.NewSalePrice, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- categories ---

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 32)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at)
		VALUES ($1,$2,$3,now())
	`, category.ID, category.Name, nullIfEmpty(category.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category name %q: %w", category.Name, store.ErrConflict)
		}
		return nil, err
	}
	return s.GetCategory(ctx, category.ID)
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $1, description = $2 WHERE id = $3
	`, category.Name, nullIfEmpty(category.Description), category.ID)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCategory(ctx, category.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	var hasProducts bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE category_id = $1)`, id).Scan(&hasProducts)
	if err != nil {
		return err
	}
	if hasProducts {
		return fmt.Errorf("category %s has products: %w", id, store.ErrConflict)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- clients ---

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), created_at
		FROM clients
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), created_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, client.ID, client.Name, nullIfEmpty(client.Phone), nullIfEmpty(client.Email), nullIfEmpty(client.Address))
	if err != nil {
		return nil, err
	}
	return s.GetClient(ctx, client.ID)
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients SET name = $1, phone = $2, email = $3, address = $4 WHERE id = $5
	`, client.Name, nullIfEmpty(client.Phone), nullIfEmpty(client.Email), nullIfEmpty(client.Address), client.ID)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrClientNotFound
	}
	return s.GetClient(ctx, client.ID)
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	var hasSales bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sales WHERE client_id = $1)`, id).Scan(&hasSales)
	if err != nil {
		return err
	}
	if hasSales {
		return fmt.Errorf("client %s has sales: %w", id, store.ErrConflict)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrClientNotFound
	}
	return nil
}

func (s *Store) ClientExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// --- sales ---

// CreateSale is the transaction committer. It re-validates stock and
// re-resolves prices under a serializable transaction with the product rows
// locked, inserts the sale header and lines, decrements stock, and commits
// everything as one unit. Any failure rolls the whole attempt back.
func (s *Store) CreateSale(ctx context.Context, input domain.Sale) (*domain.Sale, error) {
	if len(input.Lines) == 0 {
		return nil, store.ErrEmptySale
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, persistenceErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if input.ClientID != "" {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, input.ClientID).Scan(&exists); err != nil {
			return nil, persistenceErr(err)
		}
		if !exists {
			return nil, store.ErrClientNotFound
		}
	}

	ids := make([]string, 0, len(input.Lines))
	seen := make(map[string]struct{}, len(input.Lines))
	req := domain.SaleRequest{ClientID: input.ClientID}
	for _, line := range input.Lines {
		req.Lines = append(req.Lines, domain.SaleLineRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			TaxClass:  line.TaxClass,
		})
		if _, dup := seen[line.ProductID]; !dup {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	// Lock the product rows for the duration of the transaction. The
	// check-then-decrement below is atomic with respect to concurrent sales
	// touching the same products.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, sale_price, stock
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, persistenceErr(err)
	}
	snaps := make(map[string]domain.ProductSnapshot, len(ids))
	for rows.Next() {
		var snap domain.ProductSnapshot
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.SalePrice, &snap.Stock); err != nil {
			_ = rows.Close()
			return nil, persistenceErr(err)
		}
		snaps[snap.ID] = snap
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, persistenceErr(err)
	}
	_ = rows.Close()

	resolved, err := sale.ValidateLines(req, snaps)
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

	var invoiceNumber sql.NullInt64
	if s.invoicing {
		if err := tx.QueryRowContext(ctx, `SELECT nextval('sale_invoice_seq')`).Scan(&committed.InvoiceNumber); err != nil {
			return nil, persistenceErr(err)
		}
		invoiceNumber = sql.NullInt64{Int64: committed.InvoiceNumber, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, invoice_number, client_id, user_id, sale_date, subtotal, tax_amount, total_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, committed.ID, invoiceNumber, nullIfEmpty(committed.ClientID), committed.UserID,
		committed.SaleDate, committed.Subtotal, committed.TaxAmount, committed.TotalAmount)
	if err != nil {
		return nil, persistenceErr(err)
	}

	perProduct := make(map[string]int, len(ids))
	for i, line := range resolved {
		saleLine := domain.SaleLine{
			ID:          uuid.NewString(),
			SaleID:      committed.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineSubtotal,
			TaxClass:    line.TaxClass,
		}
		// line_no preserves the submission order; line ids are random.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (id, sale_id, line_no, product_id, product_name, quantity, unit_price, line_total, tax_class)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, saleLine.ID, saleLine.SaleID, i, saleLine.ProductID, saleLine.ProductName,
			saleLine.Quantity, saleLine.UnitPrice, saleLine.LineTotal, saleLine.TaxClass)
		if err != nil {
			return nil, persistenceErr(err)
		}
		committed.Lines = append(committed.Lines, saleLine)
		perProduct[line.ProductID] += line.Quantity
	}

	for productID, qty := range perProduct {
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2
		`, qty, productID)
		if err != nil {
			return nil, persistenceErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, persistenceErr(err)
	}

	return s.GetSale(ctx, committed.ID)
}

const saleColumns = `
	s.id, s.invoice_number, COALESCE(s.client_id::text, ''), COALESCE(c.name, ''),
	s.user_id, COALESCE(u.username, ''), s.sale_date, s.subtotal, s.tax_amount, s.total_amount`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sl domain.Sale
	var invoice sql.NullInt64
	err := row.Scan(&sl.ID, &invoice, &sl.ClientID, &sl.ClientName, &sl.UserID,
		&sl.SellerName, &sl.SaleDate, &sl.Subtotal, &sl.TaxAmount, &sl.TotalAmount)
	if invoice.Valid {
		sl.InvoiceNumber = invoice.Int64
	}
	return sl, err
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+saleColumns+`
		FROM sales s
		LEFT JOIN clients c ON s.client_id = c.id
		LEFT JOIN users u ON s.user_id = u.id
		WHERE s.id = $1
	`, id)
	sl, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.attachLines(ctx, map[string]*domain.Sale{sl.ID: &sl}, []string{sl.ID}); err != nil {
		return nil, err
	}
	return &sl, nil
}

func (s *Store) attachLines(ctx context.Context, byID map[string]*domain.Sale, order []string) error {
	if len(order) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, line_total, tax_class
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, order)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName,
			&line.Quantity, &line.UnitPrice, &line.LineTotal, &line.TaxClass); err != nil {
			return err
		}
		if sl, ok := byID[line.SaleID]; ok {
			sl.Lines = append(sl.Lines, line)
		}
	}
	return rows.Err()
}

func (s *Store) querySales(ctx context.Context, where string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+saleColumns+`
		FROM sales s
		LEFT JOIN clients c ON s.client_id = c.id
		LEFT JOIN users u ON s.user_id = u.id
		`+where+`
		ORDER BY s.sale_date DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	order := make([]string, 0, 64)
	for rows.Next() {
		sl, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sl)
		order = append(order, sl.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Sale, len(sales))
	for i := range sales {
		byID[sales[i].ID] = &sales[i]
	}
	if err := s.attachLines(ctx, byID, order); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.querySales(ctx, "")
}

func (s *Store) ListSalesByDateRange(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	return s.querySales(ctx, `WHERE s.sale_date >= $1 AND s.sale_date < $2`, from, to)
}

// --- reports ---

func (s *Store) GetDailySalesReport(ctx context.Context, date time.Time) (domain.DailySalesReport, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	sales, err := s.ListSalesByDateRange(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return domain.DailySalesReport{}, err
	}

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

func (s *Store) GetMonthlySalesReport(ctx context.Context, year int, month time.Month) (domain.MonthlySalesReport, error) {
	report := domain.MonthlySalesReport{
		Year:              year,
		Month:             int(month),
		TotalAmount:       decimal.Zero,
		TotalProfit:       decimal.Zero,
		AverageDailySales: decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			to_char(per_sale.sale_day, 'YYYY-MM-DD'),
			SUM(per_sale.total_amount) AS daily_total,
			COUNT(*) AS num_sales,
			SUM(per_sale.products_sold) AS products_sold,
			SUM(per_sale.gross_profit) AS gross_profit
		FROM (
			SELECT
				DATE(s.sale_date) AS sale_day,
				s.total_amount,
				SUM(sl.quantity) AS products_sold,
				SUM(sl.quantity * (sl.unit_price - p.purchase_price)) AS gross_profit
			FROM sales s
			JOIN sale_lines sl ON s.id = sl.sale_id
			JOIN products p ON sl.product_id = p.id
			WHERE EXTRACT(YEAR FROM s.sale_date) = $1 AND EXTRACT(MONTH FROM s.sale_date) = $2
			GROUP BY s.id, DATE(s.sale_date), s.total_amount
		) AS per_sale
		GROUP BY per_sale.sale_day
		ORDER BY per_sale.sale_day
	`, year, int(month))
	if err != nil {
		return domain.MonthlySalesReport{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var day domain.MonthlyReportDay
		if err := rows.Scan(&day.Date, &day.DailyTotal, &day.NumSales, &day.ProductsSold, &day.GrossProfit); err != nil {
			return domain.MonthlySalesReport{}, err
		}
		report.Days = append(report.Days, day)
		report.TotalSales += day.NumSales
		report.TotalAmount = report.TotalAmount.Add(day.DailyTotal)
		report.TotalProductsSold += day.ProductsSold
		report.TotalProfit = report.TotalProfit.Add(day.GrossProfit)
	}
	if err := rows.Err(); err != nil {
		return domain.MonthlySalesReport{}, err
	}
	if len(report.Days) > 0 {
		report.AverageDailySales = report.TotalAmount.Div(decimal.NewFromInt(int64(len(report.Days)))).Round(2)
	}
	return report, nil
}

func (s *Store) GetInventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.id, p.name, COALESCE(c.name, ''), p.stock, p.min_stock,
			p.purchase_price, p.sale_price,
			p.sale_price - p.purchase_price AS profit_margin,
			p.stock <= p.min_stock AS needs_restock
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		ORDER BY needs_restock DESC, c.name NULLS LAST, p.name
	`)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	defer rows.Close()

	report := domain.InventoryReport{TotalInventoryValue: decimal.Zero}
	categoriesSeen := map[string]struct{}{}
	for rows.Next() {
		var item domain.InventoryReportItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Category, &item.Stock,
			&item.MinStock, &item.PurchasePrice, &item.SalePrice, &item.ProfitMargin,
			&item.NeedsRestock); err != nil {
			return domain.InventoryReport{}, err
		}
		report.Products = append(report.Products, item)
		report.TotalProducts++
		report.TotalInventoryValue = report.TotalInventoryValue.Add(
			item.PurchasePrice.Mul(decimal.NewFromInt(int64(item.Stock))))
		if item.NeedsRestock {
			report.LowStockProducts++
		}
		if item.Category != "" {
			categoriesSeen[item.Category] = struct{}{}
		}
	}
	report.TotalCategories = len(categoriesSeen)
	return report, rows.Err()
}

func (s *Store) GetTopProducts(ctx context.Context, from, to *time.Time, limit int) (domain.TopProductsReport, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.id, p.name, COALESCE(c.name, ''),
			SUM(sl.quantity) AS total_quantity,
			SUM(sl.line_total) AS total_sales,
			SUM(sl.quantity * (sl.unit_price - p.purchase_price)) AS total_profit,
			COUNT(DISTINCT s.id) AS number_of_sales
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		JOIN sale_lines sl ON p.id = sl.product_id
		JOIN sales s ON sl.sale_id = s.id
		WHERE ($1::timestamptz IS NULL OR s.sale_date >= $1)
		  AND ($2::timestamptz IS NULL OR s.sale_date < $2)
		GROUP BY p.id, p.name, c.name
		ORDER BY total_quantity DESC
		LIMIT $3
	`, nullTime(from), nullTime(to), limit)
	if err != nil {
		return domain.TopProductsReport{}, err
	}
	defer rows.Close()

	report := domain.TopProductsReport{}
	if from != nil {
		report.StartDate = from.Format("2006-01-02")
	}
	if to != nil {
		report.EndDate = to.Format("2006-01-02")
	}
	for rows.Next() {
		var top domain.TopProduct
		if err := rows.Scan(&top.ProductID, &top.Name, &top.Category, &top.TotalQuantity,
			&top.TotalSales, &top.TotalProfit, &top.NumberOfSales); err != nil {
			return domain.TopProductsReport{}, err
		}
		report.Products = append(report.Products, top)
	}
	return report, rows.Err()
}

// --- audit ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_name, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorName, entry.Action, entry.EntityType,
		entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorName, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, full_name, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.ID, user.Username, user.PasswordHash, user.FullName, user.Role, user.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", user.Username, store.ErrConflict)
		}
		return nil, err
	}
	return s.GetUserByID(ctx, user.ID)
}

func scanUser(row interface{ Scan(...any) error }) (domain.UserAccount, error) {
	var user domain.UserAccount
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.FullName,
		&user.Role, &user.Active, &user.CreatedAt, &lastLogin)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, full_name, role, active, created_at, last_login
		FROM users
		WHERE username = $1
	`, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, full_name, role, active, created_at, last_login
		FROM users
		WHERE id = $1
	`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	return err
}

// --- helpers ---

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
