package dispatch

// AcceptRequest
// swagger:model AcceptRequest
type AcceptRequest struct {
	OrderID int64 `json:"orderId" validate:"required,gt=0" example:"42"`
	// Optional; when sent it must match the authenticated agent.
	DeliveryBoyID string `json:"deliveryBoyId" example:"agent-7"`
}

// AssignRequest is the admin push-assignment body.
// swagger:model AssignRequest
type AssignRequest struct {
	OrderID       int64  `json:"orderId" validate:"required,gt=0" example:"42"`
	DeliveryBoyID string `json:"deliveryBoyId" validate:"required" example:"agent-7"`
}

// DeliveryStatusRequest
// swagger:model DeliveryStatusRequest
type DeliveryStatusRequest struct {
	OrderID int64  `json:"orderId" validate:"required,gt=0" example:"42"`
	Status  string `json:"status" validate:"required,oneof=accepted picked_up out_for_delivery delivered" example:"picked_up"`
}

// CompleteRequest
// swagger:model CompleteRequest
type CompleteRequest struct {
	OrderID int64  `json:"orderId" validate:"required,gt=0" example:"42"`
	OTP     string `json:"otp" validate:"required,len=4,numeric" example:"4821"`
}

// LocationRequest
// swagger:model LocationRequest
type LocationRequest struct {
	OrderID int64   `json:"orderId" validate:"omitempty,gt=0" example:"42"`
	Lat     float64 `json:"lat" validate:"latitude" example:"18.5204"`
	Lng     float64 `json:"lng" validate:"longitude" example:"73.8567"`
}

// AvailabilityRequest
// swagger:model AvailabilityRequest
type AvailabilityRequest struct {
	Available *bool `json:"available" validate:"required" example:"true"`
}
