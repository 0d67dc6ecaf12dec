// Package order composes orders from explicit item lists or the buyer's cart
// and moves them through their status lifecycle.
package order

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/money"
	"github.com/MikeMC777/buildmart/internal/product"
)

type Service struct {
	repo    Repository
	catalog Catalog
	carts   Carts
	gate    *access.Gate
	log     *zap.Logger
}

func NewService(repo Repository, catalog Catalog, carts Carts, gate *access.Gate, log *zap.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, carts: carts, gate: gate, log: log}
}

// Create places an order for the caller. Prices come from the catalog at
// this moment; the buyer's cart is emptied when the order is stored.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateOrderRequest) (*Order, error) {
	if err := s.gate.Authorize(p, access.OrderCreate, nil); err != nil {
		return nil, err
	}
	return s.compose(ctx, p, in.ShippingAddress, in.Items)
}

// Checkout places an order for everything in the caller's cart.
func (s *Service) Checkout(ctx context.Context, p *auth.Principal, address string) (*Order, error) {
	if err := s.gate.Authorize(p, access.OrderCreate, nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(address) == "" {
		return nil, apperr.Validation("shipping_address is required")
	}
	lines, err := s.carts.List(ctx, p.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(lines) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	items := make([]CreateOrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, CreateOrderItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return s.compose(ctx, p, address, items)
}

type line struct {
	productID string
	qty       int
}

// merge validates the requested lines and sums quantities of repeated
// products, keeping first-seen order.
func merge(items []CreateOrderItem) ([]line, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	idx := map[string]int{}
	out := make([]line, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, apperr.Validation("product_id is required")
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be positive for product %s", id)
		}
		if i, ok := idx[id]; ok {
			if out[i].qty > money.MaxQuantity-it.Quantity {
				return nil, apperr.Validation("quantity must be at most %d for product %s", money.MaxQuantity, id)
			}
			out[i].qty += it.Quantity
			continue
		}
		if it.Quantity > money.MaxQuantity {
			return nil, apperr.Validation("quantity must be at most %d for product %s", money.MaxQuantity, id)
		}
		idx[id] = len(out)
		out = append(out, line{productID: id, qty: it.Quantity})
	}
	return out, nil
}

func (s *Service) compose(ctx context.Context, p *auth.Principal, address string, req []CreateOrderItem) (*Order, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, apperr.Validation("shipping_address is required")
	}
	lines, err := merge(req)
	if err != nil {
		return nil, err
	}

	var missing, short []string
	prods := make([]*product.Product, len(lines))
	for i, l := range lines {
		prod, err := s.catalog.GetByID(ctx, l.productID)
		if errors.Is(err, product.ErrNotFound) || (err == nil && !prod.IsActive) {
			missing = append(missing, l.productID)
			continue
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if l.qty > prod.Stock {
			short = append(short, l.productID)
		}
		prods[i] = prod
	}
	if len(missing) > 0 {
		return nil, apperr.New(apperr.KindProductNotFound, "some products do not exist").WithDetails(missing)
	}
	if len(short) > 0 {
		return nil, apperr.New(apperr.KindInsufficientStock, "not enough stock").WithDetails(short)
	}

	o := &Order{
		ID:              uuid.NewString(),
		UserID:          p.ID,
		Status:          StatusPending,
		ShippingAddress: address,
	}
	total := decimal.Zero
	items := make([]Item, 0, len(lines))
	for i, l := range lines {
		price := money.Must(prods[i].Price)
		total = total.Add(money.Line(l.qty, price))
		items = append(items, Item{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ProductID:   prods[i].ID,
			ProductName: prods[i].Name,
			Quantity:    l.qty,
			Price:       money.Format(price),
		})
	}
	if !money.Fits(total, 12) {
		return nil, apperr.Validation("order total is too large")
	}
	o.Total = money.Format(total)

	if err := s.repo.Create(ctx, o, items); err != nil {
		var oos *OutOfStockError
		if errors.As(err, &oos) {
			return nil, apperr.New(apperr.KindInsufficientStock, "not enough stock").WithDetails([]string{oos.ProductID})
		}
		return nil, apperr.Internal(err)
	}
	o.Items = items
	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total),
		zap.Int("lines", len(items)),
	)
	return o, nil
}

// Get returns an order with its lines to its buyer or an admin.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*Order, error) {
	if p == nil {
		return nil, apperr.AuthRequired()
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, access.OrderRead, access.Owner(o.UserID)); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, p *auth.Principal, limit, offset int) ([]Order, error) {
	if err := s.gate.Authorize(p, access.OrderListOwn, nil); err != nil {
		return nil, err
	}
	out, err := s.repo.ListByUser(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// ListAll lists every order, optionally filtered by status. Admin only.
func (s *Service) ListAll(ctx context.Context, p *auth.Principal, status Status, limit, offset int) ([]Order, error) {
	if err := s.gate.Authorize(p, access.OrderListAll, nil); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	out, err := s.repo.ListAll(ctx, status, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// UpdateStatus moves an order along pending, confirmed, shipped, delivered,
// or cancels it. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, id string, to Status) (*Order, error) {
	if err := s.gate.Authorize(p, access.OrderUpdateStatus, nil); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperr.Validation("unknown status %q", to)
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if to == StatusCancelled {
		return s.cancel(ctx, o)
	}
	if !o.Status.CanMoveTo(to) {
		return nil, apperr.Conflict("cannot move order from %s to %s", o.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
		return nil, s.statusErr(err)
	}
	o.Status = to
	return o, nil
}

// Cancel lets a buyer cancel their own pending order. Admins may cancel any
// order that is not delivered or already cancelled.
func (s *Service) Cancel(ctx context.Context, p *auth.Principal, id string) (*Order, error) {
	if p == nil {
		return nil, apperr.AuthRequired()
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, access.OrderCancel, access.Owner(o.UserID)); err != nil {
		return nil, err
	}
	if !p.IsAdmin() && o.Status != StatusPending {
		return nil, apperr.Conflict("only pending orders can be cancelled")
	}
	return s.cancel(ctx, o)
}

func (s *Service) cancel(ctx context.Context, o *Order) (*Order, error) {
	if !o.Status.CanMoveTo(StatusCancelled) {
		return nil, apperr.Conflict("cannot cancel a %s order", o.Status)
	}
	if err := s.repo.Cancel(ctx, o.ID, o.Status, o.Items); err != nil {
		return nil, s.statusErr(err)
	}
	o.Status = StatusCancelled
	s.log.Info("order cancelled", zap.String("order_id", o.ID))
	return o, nil
}

func (s *Service) load(ctx context.Context, id string) (*Order, error) {
	o, items, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	o.Items = items
	return o, nil
}

func (s *Service) statusErr(err error) error {
	if errors.Is(err, ErrStatusChanged) {
		return apperr.Conflict("order status changed concurrently, reload and retry")
	}
	return apperr.Internal(err)
}
