package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// IssueReason explains why a cart line cannot be checked out as is.
type IssueReason string

const (
	IssueUnavailable IssueReason = "unavailable"
	IssueOutOfStock  IssueReason = "out_of_stock"
	IssueOverLimit   IssueReason = "over_purchase_limit"
)

// Line is one cart entry refreshed from the catalog.
type Line struct {
	ProductID     uuid.UUID      `json:"product_id"`
	ProductName   string         `json:"product_name"`
	SelectedSize  string         `json:"selected_size"`
	Quantity      int            `json:"quantity"`
	BasePrice     int64          `json:"base_price"`
	Stock         int            `json:"stock"`
	MaxPerPerson  int            `json:"max_per_person,omitempty"`
	Available     bool           `json:"available"`
	ProductOffer  *pricing.Offer `json:"-"`
	CategoryOffer *pricing.Offer `json:"-"`
}

// Limit is the most units of this line a single order may take.
func (l Line) Limit() int {
	if l.MaxPerPerson > 0 {
		return min(l.Stock, l.MaxPerPerson)
	}
	return l.Stock
}

// Issue describes a line that blocks checkout.
type Issue struct {
	ProductID    uuid.UUID   `json:"product_id"`
	SelectedSize string      `json:"selected_size"`
	Reason       IssueReason `json:"reason"`
	Allowed      int         `json:"allowed"`
}

// Cart is a user's current selection.
type Cart struct {
	UserID uuid.UUID `json:"user_id"`
	Lines  []Line    `json:"lines"`
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Issues lists every line that cannot be fulfilled right now.
func (c Cart) Issues() []Issue {
	var out []Issue
	for _, line := range c.Lines {
		issue := Issue{ProductID: line.ProductID, SelectedSize: line.SelectedSize, Allowed: max(line.Limit(), 0)}
		switch {
		case !line.Available:
			issue.Reason = IssueUnavailable
			issue.Allowed = 0
		case line.Quantity > line.Stock:
			issue.Reason = IssueOutOfStock
		case line.Quantity > line.Limit():
			issue.Reason = IssueOverLimit
		default:
			continue
		}
		out = append(out, issue)
	}
	return out
}

// Validate fails when the cart is empty or any line blocks checkout.
func (c Cart) Validate() error {
	if c.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if issues := c.Issues(); len(issues) > 0 {
		return pkgerrors.New(pkgerrors.CodePolicyViolation, "some cart items are unavailable").WithDetails(map[string]any{
			"reason": "cart_items_unavailable",
			"items":  issues,
		})
	}
	return nil
}

// PricingInputs turns the cart into the inputs of a quote.
func (c Cart) PricingInputs() []pricing.LineInput {
	out := make([]pricing.LineInput, 0, len(c.Lines))
	for _, line := range c.Lines {
		out = append(out, pricing.LineInput{
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			SelectedSize:  line.SelectedSize,
			Quantity:      line.Quantity,
			BasePrice:     line.BasePrice,
			ProductOffer:  line.ProductOffer,
			CategoryOffer: line.CategoryOffer,
		})
	}
	return out
}

func (c Cart) find(productID uuid.UUID, size string) (Line, bool) {
	for _, line := range c.Lines {
		if line.ProductID == productID && line.SelectedSize == size {
			return line, true
		}
	}
	return Line{}, false
}
