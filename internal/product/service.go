package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/money"
)

type Service struct {
	repo  Repository
	gate  *access.Gate
	cache ListCache
	log   *zap.Logger
}

// NewService builds the catalog service. cache may be nil.
func NewService(repo Repository, gate *access.Gate, cache ListCache, log *zap.Logger) *Service {
	return &Service{repo: repo, gate: gate, cache: cache, log: log}
}

// ListActive returns active products, newest first.
func (s *Service) ListActive(ctx context.Context) ([]Product, error) {
	return s.Search(ctx, "", "")
}

// Search filters active products by a case-insensitive name substring and
// an exact category. Both empty is the same as ListActive.
func (s *Service) Search(ctx context.Context, q, category string) ([]Product, error) {
	query := Query{Q: strings.TrimSpace(q), Category: strings.TrimSpace(category)}
	var slot string
	if s.cache != nil {
		items, sl, ok := s.cache.Get(ctx, query)
		if ok {
			return items, nil
		}
		slot = sl
	}
	items, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, slot, items)
	}
	return items, nil
}

// Get returns a product. Inactive products are only visible to their seller
// and admins; everyone else gets not found.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*Product, error) {
	prod, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !prod.IsActive && !s.gate.Allowed(p, access.ProductViewInactive, access.Owner(prod.SellerID)) {
		return nil, apperr.NotFound("product")
	}
	return prod, nil
}

// ListMine returns every product of the calling seller, inactive included.
func (s *Service) ListMine(ctx context.Context, p *auth.Principal) ([]Product, error) {
	if err := s.gate.Authorize(p, access.ProductListOwn, nil); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, Query{SellerID: p.ID, IncludeInactive: true})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateProductRequest) (*Product, error) {
	if err := s.gate.Authorize(p, access.ProductCreate, nil); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	price, err := money.Parse(in.Price)
	if err != nil {
		return nil, apperr.Validation("price %v", err)
	}
	if err := checkStock(in.Stock); err != nil {
		return nil, err
	}
	sellerID := p.ID
	if p.IsAdmin() && in.SellerID != "" {
		if _, err := uuid.Parse(in.SellerID); err != nil {
			return nil, apperr.Validation("seller_id must be a uuid")
		}
		sellerID = in.SellerID
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	prod := &Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       money.Format(price),
		Stock:       in.Stock,
		Category:    strings.TrimSpace(in.Category),
		SellerID:    sellerID,
		IsActive:    active,
	}
	if err := s.repo.Create(ctx, prod); err != nil {
		return nil, apperr.Internal(err)
	}
	s.invalidate(ctx)
	s.log.Info("product created", zap.String("id", prod.ID), zap.String("seller_id", prod.SellerID))
	return prod, nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id string, in UpdateProductRequest) (*Product, error) {
	prod, err := s.owned(ctx, p, access.ProductUpdate, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		prod.Name = name
	}
	if in.Description != nil {
		prod.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		price, err := money.Parse(*in.Price)
		if err != nil {
			return nil, apperr.Validation("price %v", err)
		}
		prod.Price = money.Format(price)
	}
	if in.Stock != nil {
		if err := checkStock(*in.Stock); err != nil {
			return nil, err
		}
		prod.Stock = *in.Stock
	}
	if in.Category != nil {
		prod.Category = strings.TrimSpace(*in.Category)
	}
	if in.IsActive != nil {
		prod.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, prod); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, apperr.Internal(err)
	}
	s.invalidate(ctx)
	return prod, nil
}

// Delete removes the row. Order lines keep their own name and price copies.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if _, err := s.owned(ctx, p, access.ProductDelete, id); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.NotFound("product")
	}
	s.invalidate(ctx)
	s.log.Info("product deleted", zap.String("id", id), zap.String("by", p.ID))
	return nil
}

// owned loads a product and checks the caller may act on it. Anonymous
// callers are rejected before the lookup.
func (s *Service) owned(ctx context.Context, p *auth.Principal, a access.Action, id string) (*Product, error) {
	if p == nil {
		return nil, apperr.AuthRequired()
	}
	prod, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.gate.Authorize(p, a, access.Owner(prod.SellerID)); err != nil {
		return nil, err
	}
	return prod, nil
}

func checkStock(n int) error {
	if n < 0 {
		return apperr.Validation("stock must not be negative")
	}
	if n > money.MaxQuantity {
		return apperr.Validation("stock must be at most %d", money.MaxQuantity)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
