// Package cart keeps the per-buyer list of pending line items.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/MikeMC777/buildmart/internal/money"
	"github.com/MikeMC777/buildmart/internal/product"
)

var (
	ErrNotFound = errors.New("cart item not found")
	// ErrTooMany means merging would push the line past money.MaxQuantity.
	ErrTooMany = errors.New("cart quantity too large")
)

type Repository interface {
	// Add inserts the item or, when the user already has the product in the
	// cart, adds to its quantity. It returns the stored row.
	Add(ctx context.Context, it *Item) (*Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	SetQuantity(ctx context.Context, id string, qty int) (*Item, error)
	Delete(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]Line, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Add(ctx context.Context, it *Item) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out Item
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity <= $5 - EXCLUDED.quantity
		RETURNING id, user_id::text, product_id::text, quantity, created_at
	`, it.ID, it.UserID, it.ProductID, it.Quantity, money.MaxQuantity).Scan(&out.ID, &out.UserID, &out.ProductID, &out.Quantity, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTooMany
	}
	if err != nil {
		return nil, errors.Wrap(err, "upsert cart item")
	}
	return &out, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var it Item
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id::text, product_id::text, quantity, created_at
		FROM cart_items WHERE id=$1
	`, id).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart item")
	}
	return &it, nil
}

func (r *PGRepo) SetQuantity(ctx context.Context, id string, qty int) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var it Item
	err := r.db.QueryRow(ctx, `
		UPDATE cart_items SET quantity = $2 WHERE id = $1
		RETURNING id, user_id::text, product_id::text, quantity, created_at
	`, id, qty).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "set cart quantity")
	}
	return &it, nil
}

// Delete is a no-op when the item does not exist or belongs to someone else.
func (r *PGRepo) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, id, userID)
	return errors.Wrap(err, "delete cart item")
}

func (r *PGRepo) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return errors.Wrap(err, "clear cart")
}

func (r *PGRepo) List(ctx context.Context, userID string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.user_id::text, c.product_id::text, c.quantity, c.created_at,
		       p.id::text, p.name, p.description, p.price::text, p.stock, p.category,
		       p.seller_id::text, p.is_active, p.created_at, p.updated_at
		FROM cart_items c
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart")
	}
	defer rows.Close()

	out := []Line{}
	for rows.Next() {
		var (
			l      Line
			pid    *string
			pname  *string
			pdesc  *string
			pprice *string
			pstock *int
			pcat   *string
			pstore *string
			pact   *bool
			pcr    *time.Time
			pup    *time.Time
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt,
			&pid, &pname, &pdesc, &pprice, &pstock, &pcat, &pstore, &pact, &pcr, &pup); err != nil {
			return nil, errors.Wrap(err, "scan cart line")
		}
		if pid != nil {
			l.Product = &product.Product{
				ID: *pid, Name: *pname, Description: *pdesc, Price: *pprice, Stock: *pstock,
				Category: *pcat, SellerID: *pstore, IsActive: *pact, CreatedAt: *pcr, UpdatedAt: *pup,
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
