package cart

import (
	"time"

	"github.com/MikeMC777/buildmart/internal/product"
)

type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// Line is a cart item joined with its current product. Product is nil and
// Available false when the product was deleted or deactivated after the
// item was added.
type Line struct {
	Item
	Product   *product.Product `json:"product,omitempty"`
	Available bool             `json:"available"`
	Subtotal  string           `json:"subtotal,omitempty"`
}

// View is the cart as returned to the buyer.
// swagger:model CartView
type View struct {
	Items []Line `json:"items"`
	// sum of available lines at current prices
	Total string `json:"total"`
}

// AddItemRequest payload of POST /cart.
// swagger:model AddItemRequest
type AddItemRequest struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   example:"2"`
}

// SetQuantityRequest payload of PUT /cart/:id.
// swagger:model SetQuantityRequest
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" example:"3"`
}
