package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tax classes recognized by the sale engine. A line with an empty tax class
// is charged at the standard rate.
const (
	TaxClassStandard = "standard"
	TaxClassExempt   = "exempt"
)

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	CategoryID       string          `json:"category_id,omitempty"`
	CategoryName     string          `json:"category_name,omitempty"`
	Stock            int             `json:"stock"`
	MinStock         int             `json:"min_stock"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	ProfitPercentage decimal.Decimal `json:"profit_percentage"`
	LowStock         bool            `json:"low_stock"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name             string           `json:"name" validate:"required"`
	Description      string           `json:"description"`
	CategoryID       string           `json:"category_id"`
	Stock            int              `json:"stock" validate:"gte=0"`
	MinStock         int              `json:"min_stock" validate:"gte=0"`
	PurchasePrice    decimal.Decimal  `json:"purchase_price"`
	SalePrice        *decimal.Decimal `json:"sale_price,omitempty"`
	ProfitPercentage *decimal.Decimal `json:"profit_percentage,omitempty"`
}

type ProductUpdateRequest struct {
	Name             *string          `json:"name,omitempty"`
	Description      *string          `json:"description,omitempty"`
	CategoryID       *string          `json:"category_id,omitempty"`
	Stock            *int             `json:"stock,omitempty"`
	MinStock         *int             `json:"min_stock,omitempty"`
	PurchasePrice    *decimal.Decimal `json:"purchase_price,omitempty"`
	SalePrice        *decimal.Decimal `json:"sale_price,omitempty"`
	ProfitPercentage *decimal.Decimal `json:"profit_percentage,omitempty"`
}

type PriceHistory struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	OldSalePrice decimal.Decimal `json:"old_sale_price"`
	NewSalePrice decimal.Decimal `json:"new_sale_price"`
	ChangedBy    string          `json:"changed_by"`
	ChangedAt    time.Time       `json:"changed_at"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

// SaleLineRequest is one requested line of a sale. Any price the caller
// sends is ignored; pricing is always resolved server-side.
type SaleLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	TaxClass  string `json:"tax_class"`
}

type SaleRequest struct {
	ClientID string            `json:"client_id,omitempty"`
	Lines    []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ProductSnapshot is the product state read at validation time. It is fetched
// fresh per sale attempt and never cached across sales.
type ProductSnapshot struct {
	ID        string
	Name      string
	SalePrice decimal.Decimal
	Stock     int
}

// ResolvedLine is a sale line after validation: the requested quantity plus
// the unit price and name captured from the product snapshot.
type ResolvedLine struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	TaxClass     string          `json:"tax_class"`
}

type SaleTotals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type SaleLine struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	TaxClass    string          `json:"tax_class"`
}

// Sale is immutable once committed. InvoiceNumber is only assigned when the
// deployment has invoicing enabled.
type Sale struct {
	ID            string          `json:"id"`
	InvoiceNumber int64           `json:"invoice_number,omitempty"`
	ClientID      string          `json:"client_id,omitempty"`
	ClientName    string          `json:"client_name,omitempty"`
	UserID        string          `json:"user_id"`
	SellerName    string          `json:"seller_name,omitempty"`
	SaleDate      time.Time       `json:"sale_date"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []SaleLine      `json:"lines"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        Actor  `json:"user"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID           string
	Username     string
	PasswordHash string
	FullName     string
	Role         string
	Active       bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type DailySalesReport struct {
	Date        string          `json:"date"`
	TotalSales  int             `json:"total_sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Sales       []Sale          `json:"sales"`
}

type MonthlyReportDay struct {
	Date         string          `json:"date"`
	DailyTotal   decimal.Decimal `json:"daily_total"`
	NumSales     int             `json:"num_sales"`
	ProductsSold int             `json:"products_sold"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
}

type MonthlySalesReport struct {
	Year              int                `json:"year"`
	Month             int                `json:"month"`
	TotalSales        int                `json:"total_sales"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	TotalProductsSold int                `json:"total_products_sold"`
	TotalProfit       decimal.Decimal    `json:"total_profit"`
	AverageDailySales decimal.Decimal    `json:"average_daily_sales"`
	Days              []MonthlyReportDay `json:"daily_details"`
}

type InventoryReportItem struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Stock         int             `json:"stock"`
	MinStock      int             `json:"min_stock"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	ProfitMargin  decimal.Decimal `json:"profit_margin"`
	NeedsRestock  bool            `json:"needs_restock"`
}

type InventoryReport struct {
	TotalProducts       int                   `json:"total_products"`
	TotalInventoryValue decimal.Decimal       `json:"total_inventory_value"`
	LowStockProducts    int                   `json:"low_stock_products"`
	TotalCategories     int                   `json:"total_categories"`
	Products            []InventoryReportItem `json:"products"`
}

type TopProduct struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	TotalQuantity int             `json:"total_quantity"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	NumberOfSales int             `json:"number_of_sales"`
}

type TopProductsReport struct {
	StartDate string       `json:"start_date,omitempty"`
	EndDate   string       `json:"end_date,omitempty"`
	Products  []TopProduct `json:"products"`
}
