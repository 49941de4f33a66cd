package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
)

const (
	PaymentCOD = "cod"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

type Order struct {
	ID                   int64                    `json:"id"`
	OrderNumber          string                   `json:"orderNumber"`
	CustomerID           string                   `json:"customerId"`
	Subtotal             decimal.Decimal          `json:"subtotal"`
	DeliveryCharge       decimal.Decimal          `json:"deliveryCharge"`
	Discount             decimal.Decimal          `json:"discount"`
	Total                decimal.Decimal          `json:"total"`
	PaymentMethod        string                   `json:"paymentMethod"`
	PaymentStatus        string                   `json:"paymentStatus"`
	Status               lifecycle.Status         `json:"status"`
	DeliveryStatus       lifecycle.DeliveryStatus `json:"deliveryStatus"`
	DeliveryBoyID        *string                  `json:"deliveryBoyId"`
	DeliveryOTP          *string                  `json:"deliveryOtp,omitempty"`
	DeliveryInstructions string                   `json:"deliveryInstructions"`
	Address              DeliveryAddress          `json:"deliveryAddress"`
	Items                []Item                   `json:"items,omitempty"`

	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	DeliveryAcceptedAt  *time.Time `json:"deliveryAcceptedAt,omitempty"`
	DeliveryPickedAt    *time.Time `json:"deliveryPickedAt,omitempty"`
	DeliveryOutAt       *time.Time `json:"deliveryOutAt,omitempty"`
	DeliveryCompletedAt *time.Time `json:"deliveryCompletedAt,omitempty"`
	ActualDeliveryTime  *time.Time `json:"actualDeliveryTime,omitempty"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty"`
}

// Item is a price snapshot taken at order time; later catalog edits never
// reach it.
type Item struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	ProductID   string          `json:"productId"`
	SellerID    string          `json:"sellerId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// DeliveryAddress is copied into its own row per order and never updated.
type DeliveryAddress struct {
	ID           int64    `json:"id"`
	FullName     string   `json:"fullName"`
	Phone        string   `json:"phone"`
	AddressLine1 string   `json:"addressLine1"`
	AddressLine2 string   `json:"addressLine2,omitempty"`
	City         string   `json:"city"`
	PostalCode   string   `json:"postalCode"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// SellerIDs lists the distinct sellers with items in the order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	var out []string
	for _, it := range o.Items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		out = append(out, it.SellerID)
	}
	return out
}

func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (o *Order) AssignedTo(agentID string) bool {
	return o.DeliveryBoyID != nil && *o.DeliveryBoyID == agentID
}

// Unassigned reports whether the order sits in the delivery pool.
func (o *Order) Unassigned() bool {
	return o.DeliveryBoyID == nil && o.DeliveryStatus == lifecycle.DeliveryPending && !o.Status.Terminal()
}

// WithoutOTP returns a copy safe to show to anyone but the customer and admins;
// the agent must obtain the code from the customer at the door.
func (o Order) WithoutOTP() Order {
	o.DeliveryOTP = nil
	return o
}

// Consistent checks the monetary invariants of a freshly built order.
func (o *Order) Consistent() bool {
	sum := decimal.Zero
	for _, it := range o.Items {
		if !it.TotalPrice.Equal(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))) {
			return false
		}
		sum = sum.Add(it.TotalPrice)
	}
	return sum.Equal(o.Subtotal) && o.Total.Equal(o.Subtotal.Add(o.DeliveryCharge).Sub(o.Discount))
}
