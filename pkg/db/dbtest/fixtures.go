package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductSeed describes a listed product with per-size stock.
type ProductSeed struct {
	Name         string
	Price        int64
	MRP          int64
	MaxPerPerson int
	Stock        map[string]int
	CategoryID   uuid.UUID
	Unlisted     bool
}

// SeedCategory inserts a listed category.
func SeedCategory(t testing.TB, conn *gorm.DB, name string) models.Category {
	t.Helper()
	cat := models.Category{ID: uuid.New(), Name: name, IsListed: true}
	if err := conn.Create(&cat).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return cat
}

// SeedProduct inserts a product and its stock rows. A category is created
// when none is given.
func SeedProduct(t testing.TB, conn *gorm.DB, seed ProductSeed) models.Product {
	t.Helper()
	if seed.CategoryID == uuid.Nil {
		seed.CategoryID = SeedCategory(t, conn, "cat-"+uuid.NewString()[:8]).ID
	}
	if seed.Name == "" {
		seed.Name = "Product " + uuid.NewString()[:6]
	}
	if seed.MRP == 0 {
		seed.MRP = seed.Price
	}
	product := models.Product{
		ID:           uuid.New(),
		CategoryID:   seed.CategoryID,
		Name:         seed.Name,
		Price:        seed.Price,
		MRP:          seed.MRP,
		MaxPerPerson: seed.MaxPerPerson,
		IsListed:     !seed.Unlisted,
	}
	if err := conn.Omit("Stock").Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	for size, qty := range seed.Stock {
		row := models.ProductStock{ProductID: product.ID, Size: size, Quantity: qty}
		if err := conn.Create(&row).Error; err != nil {
			t.Fatalf("seed stock: %v", err)
		}
		product.Stock = append(product.Stock, row)
	}
	return product
}

// StockOf reads the on-hand quantity of one size.
func StockOf(t testing.TB, conn *gorm.DB, productID uuid.UUID, size string) int {
	t.Helper()
	var row models.ProductStock
	if err := conn.Where("product_id = ? AND size = ?", productID, size).First(&row).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return row.Quantity
}

// CouponSeed describes a coupon valid for a day around now.
type CouponSeed struct {
	Code            string
	Type            enums.DiscountType
	Amount          int64
	MinimumPurchase int64
	MaxDiscount     *int64
	MaxUses         int
	UsedCount       int
	Inactive        bool
}

// SeedCoupon inserts a coupon valid from an hour ago until tomorrow.
func SeedCoupon(t testing.TB, conn *gorm.DB, seed CouponSeed) models.Coupon {
	t.Helper()
	if seed.Type == "" {
		seed.Type = enums.DiscountTypeFixed
	}
	now := time.Now()
	coupon := models.Coupon{
		ID:              uuid.New(),
		Code:            seed.Code,
		DiscountType:    seed.Type,
		DiscountAmount:  decimal.NewFromInt(seed.Amount),
		MinimumPurchase: seed.MinimumPurchase,
		MaxDiscount:     seed.MaxDiscount,
		ValidFrom:       now.Add(-time.Hour),
		ValidUntil:      now.Add(24 * time.Hour),
		MaxUses:         seed.MaxUses,
		UsedCount:       seed.UsedCount,
		IsActive:        !seed.Inactive,
	}
	if err := conn.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

// CouponUses reads the current used_count of a coupon.
func CouponUses(t testing.TB, conn *gorm.DB, code string) int {
	t.Helper()
	var coupon models.Coupon
	if err := conn.Where("code = ?", code).First(&coupon).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	return coupon.UsedCount
}

// SeedOffer inserts an active percentage offer on a product or a category.
func SeedOffer(t testing.TB, conn *gorm.DB, scope enums.OfferScope, target uuid.UUID, percent int64) models.Offer {
	t.Helper()
	now := time.Now()
	offer := models.Offer{
		ID:            uuid.New(),
		Name:          "offer-" + uuid.NewString()[:6],
		Scope:         scope,
		DiscountValue: decimal.NewFromInt(percent),
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(24 * time.Hour),
		IsActive:      true,
	}
	if scope == enums.OfferScopeProduct {
		offer.ProductID = &target
	} else {
		offer.CategoryID = &target
	}
	if err := conn.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return offer
}

// SeedAddress inserts a complete default address for userID.
func SeedAddress(t testing.TB, conn *gorm.DB, userID uuid.UUID) models.Address {
	t.Helper()
	addr := models.Address{
		ID:         uuid.New(),
		UserID:     userID,
		FullName:   "Asha Rao",
		Phone:      "9000000000",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
		IsDefault:  true,
	}
	if err := conn.Create(&addr).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return addr
}

// SeedWalletCredit appends an opening credit to an empty wallet.
func SeedWalletCredit(t testing.TB, conn *gorm.DB, userID uuid.UUID, amount int64) {
	t.Helper()
	row := models.WalletTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Sequence:     1,
		Type:         enums.WalletTransactionCredit,
		Amount:       amount,
		Description:  "opening balance",
		BalanceAfter: amount,
	}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}

// SeedCartItem puts a line in userID's cart.
func SeedCartItem(t testing.TB, conn *gorm.DB, userID, productID uuid.UUID, size string, qty int) {
	t.Helper()
	row := models.CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, SelectedSize: size, Quantity: qty}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
}

// Count returns the number of rows in model's table matching the optional
// where clause.
func Count(t testing.TB, conn *gorm.DB, model any, where ...any) int64 {
	t.Helper()
	query := conn.Model(model)
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
