package order

// CreateOrderItem item payload. There is no price field: totals always use
// the current catalog price.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"  example:"2"`
}

// CreateOrderRequest order creation payload.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	ShippingAddress string            `json:"shipping_address" example:"Av. Siempre Viva 742"`
	Items           []CreateOrderItem `json:"items"`
}

// CheckoutRequest turns the caller's cart into an order.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" example:"Av. Siempre Viva 742"`
}

// UpdateStatusRequest admin status change.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status Status `json:"status" example:"confirmed"`
}
