package order

import (
	"context"

	"github.com/MikeMC777/buildmart/internal/cart"
	"github.com/MikeMC777/buildmart/internal/product"
)

// Catalog is the authoritative product lookup used for pricing and stock.
// It must not be served from a cache.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Carts reads a buyer's cart for checkout.
type Carts interface {
	List(ctx context.Context, userID string) ([]cart.Line, error)
}
