package order

// AddressInput is the delivery address sent with a checkout.
// swagger:model AddressInput
type AddressInput struct {
	FullName     string   `json:"fullName" validate:"required,max=120" example:"Asha Rao"`
	Phone        string   `json:"phone" validate:"required,min=7,max=20" example:"+919800000000"`
	AddressLine1 string   `json:"addressLine1" validate:"required,max=200" example:"12 MG Road"`
	AddressLine2 string   `json:"addressLine2" validate:"max=200"`
	City         string   `json:"city" validate:"required,max=80" example:"Pune"`
	PostalCode   string   `json:"postalCode" validate:"required,max=12" example:"411001"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,longitude"`
}

func (a AddressInput) Address() DeliveryAddress {
	return DeliveryAddress{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		PostalCode:   a.PostalCode,
		Latitude:     a.Latitude,
		Longitude:    a.Longitude,
	}
}

// CreateOrderRequest turns the caller's cart into an order.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	DeliveryAddress      AddressInput `json:"deliveryAddress"`
	PaymentMethod        string       `json:"paymentMethod" validate:"required,oneof=cod" example:"cod"`
	DeliveryInstructions string       `json:"deliveryInstructions" validate:"max=500"`
}

// BuyNowRequest orders a single product. Any price sent by the client is
// ignored; the catalog price is used.
// swagger:model BuyNowRequest
type BuyNowRequest struct {
	CreateOrderRequest
	ProductID string `json:"productId" validate:"required" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100" example:"2"`
}

// CreateOrderResponse
// swagger:model CreateOrderResponse
type CreateOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// UpdateStatusRequest is used by sellers and admins.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required" example:"confirmed"`
}

// CancelRequest
// swagger:model CancelRequest
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=300"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// machine-stable reason code
	// example: already_assigned
	Error string `json:"error"`
	// example: order was accepted by another delivery agent
	Message string `json:"message"`
}

// ListResponse wraps a page of orders.
// swagger:model
type ListResponse struct {
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Items  []Order `json:"items"`
}
