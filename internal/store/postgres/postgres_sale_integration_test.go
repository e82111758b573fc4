package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

func TestCreateSaleCommitsAndDecrementsStock(t *testing.T) {
	databaseURL := os.Getenv("PUNTOVENTA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PUNTOVENTA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-sale-it-%d", stamp)
	userID := fmt.Sprintf("user-sale-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE user_id = $1`, userID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, stock, min_stock, purchase_price, sale_price, profit_percentage, created_at, updated_at)
		VALUES ($1, 'Producto IT', 10, 2, 1.00, 1.50, 50.00, now(), now())
	`, productID); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, full_name, role, active, created_at)
		VALUES ($1, $1, 'x', 'Integration User', 'seller', true, now())
	`, userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	committed, err := s.CreateSale(ctx, domain.Sale{
		UserID: userID,
		Lines: []domain.SaleLine{
			{ProductID: productID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := committed.Subtotal.StringFixed(2); got != "4.50" {
		t.Fatalf("subtotal = %s, want 4.50", got)
	}
	if got := committed.TaxAmount.StringFixed(2); got != "0.54" {
		t.Fatalf("tax = %s, want 0.54", got)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("stock = %d, want 7", product.Stock)
	}

	// Over-asking with duplicate lines must fail and leave stock at 7.
	_, err = s.CreateSale(ctx, domain.Sale{
		UserID: userID,
		Lines: []domain.SaleLine{
			{ProductID: productID, Quantity: 4},
			{ProductID: productID, Quantity: 4},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}

	product, err = s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product after reject: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("stock after rejected sale = %d, want 7", product.Stock)
	}
}

func TestCreateSalePreservesLineOrder(t *testing.T) {
	databaseURL := os.Getenv("PUNTOVENTA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PUNTOVENTA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	userID := fmt.Sprintf("user-order-it-%d", stamp)
	productIDs := []string{
		fmt.Sprintf("prod-order-it-b-%d", stamp),
		fmt.Sprintf("prod-order-it-a-%d", stamp),
		fmt.Sprintf("prod-order-it-c-%d", stamp),
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE product_id = ANY($1)`, productIDs)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE user_id = $1`, userID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ANY($1)`, productIDs)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	})

	for _, id := range productIDs {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, name, stock, min_stock, purchase_price, sale_price, profit_percentage, created_at, updated_at)
			VALUES ($1, $1, 10, 2, 1.00, 1.50, 50.00, now(), now())
		`, id); err != nil {
			t.Fatalf("seed product %s: %v", id, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, full_name, role, active, created_at)
		VALUES ($1, $1, 'x', 'Integration User', 'seller', true, now())
	`, userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	committed, err := s.CreateSale(ctx, domain.Sale{
		UserID: userID,
		Lines: []domain.SaleLine{
			{ProductID: productIDs[0], Quantity: 1},
			{ProductID: productIDs[1], Quantity: 2},
			{ProductID: productIDs[2], Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	fetched, err := s.GetSale(ctx, committed.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(fetched.Lines) != 3 {
		t.Fatalf("line count = %d, want 3", len(fetched.Lines))
	}
	for i, want := range productIDs {
		if got := fetched.Lines[i].ProductID; got != want {
			t.Fatalf("line %d product = %s, want %s", i, got, want)
		}
	}
}
