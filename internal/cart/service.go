package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/money"
	"github.com/MikeMC777/buildmart/internal/product"
)

// Catalog resolves products by id.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

type Service struct {
	repo    Repository
	catalog Catalog
	gate    *access.Gate
}

func NewService(repo Repository, catalog Catalog, gate *access.Gate) *Service {
	return &Service{repo: repo, catalog: catalog, gate: gate}
}

// Add puts qty units of a product in the caller's cart, merging with an
// existing line for the same product.
func (s *Service) Add(ctx context.Context, p *auth.Principal, productID string, qty int) (*Item, error) {
	if err := s.gate.Authorize(p, access.CartWrite, nil); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, apperr.Validation("quantity must be a positive integer")
	}
	if qty > money.MaxQuantity {
		return nil, apperr.Validation("quantity must be at most %d", money.MaxQuantity)
	}
	prod, err := s.catalog.GetByID(ctx, productID)
	if errors.Is(err, product.ErrNotFound) || (err == nil && !prod.IsActive) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	it, err := s.repo.Add(ctx, &Item{
		ID:        uuid.NewString(),
		UserID:    p.ID,
		ProductID: prod.ID,
		Quantity:  qty,
	})
	if errors.Is(err, ErrTooMany) {
		return nil, apperr.Validation("quantity in cart must be at most %d", money.MaxQuantity)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return it, nil
}

// SetQuantity replaces the quantity of a line. A quantity of zero or less
// removes the line; removed is then true and the item nil.
func (s *Service) SetQuantity(ctx context.Context, p *auth.Principal, itemID string, qty int) (it *Item, removed bool, err error) {
	if err := s.gate.Authorize(p, access.CartWrite, nil); err != nil {
		return nil, false, err
	}
	cur, err := s.mine(ctx, p, itemID)
	if err != nil {
		return nil, false, err
	}
	if qty <= 0 {
		if err := s.repo.Delete(ctx, p.ID, cur.ID); err != nil {
			return nil, false, apperr.Internal(err)
		}
		return nil, true, nil
	}
	if qty > money.MaxQuantity {
		return nil, false, apperr.Validation("quantity must be at most %d", money.MaxQuantity)
	}
	it, err = s.repo.SetQuantity(ctx, cur.ID, qty)
	if errors.Is(err, ErrNotFound) {
		return nil, false, apperr.NotFound("cart item")
	}
	if err != nil {
		return nil, false, apperr.Internal(err)
	}
	return it, false, nil
}

// Remove deletes a line; removing a missing line is not an error.
func (s *Service) Remove(ctx context.Context, p *auth.Principal, itemID string) error {
	if err := s.gate.Authorize(p, access.CartWrite, nil); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID, itemID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Clear empties the caller's cart; clearing an empty cart is not an error.
func (s *Service) Clear(ctx context.Context, p *auth.Principal) error {
	if err := s.gate.Authorize(p, access.CartWrite, nil); err != nil {
		return err
	}
	if err := s.repo.Clear(ctx, p.ID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// List returns the caller's cart priced at current catalog prices. Lines
// whose product is gone or inactive are kept but marked unavailable and
// left out of the total.
func (s *Service) List(ctx context.Context, p *auth.Principal) (*View, error) {
	if err := s.gate.Authorize(p, access.CartRead, nil); err != nil {
		return nil, err
	}
	lines, err := s.repo.List(ctx, p.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	total := decimal.Zero
	for i := range lines {
		l := &lines[i]
		l.Available = l.Product != nil && l.Product.IsActive
		if !l.Available {
			l.Subtotal = ""
			continue
		}
		sub := money.Line(l.Quantity, money.Must(l.Product.Price))
		l.Subtotal = money.Format(sub)
		total = total.Add(sub)
	}
	return &View{Items: lines, Total: money.Format(total)}, nil
}

// mine loads a line of the caller. Lines of other users look missing.
func (s *Service) mine(ctx context.Context, p *auth.Principal, id string) (*Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("cart item")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if it.UserID != p.ID {
		return nil, apperr.NotFound("cart item")
	}
	return it, nil
}
