package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrStatusChanged means the order left the expected status concurrently.
	ErrStatusChanged = errors.New("order status changed")
)

// OutOfStockError reports a product whose stock could not cover a line.
type OutOfStockError struct{ ProductID string }

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

type Repository interface {
	// Create stores the order and its lines, decrements stock for every
	// line and clears the buyer's cart, all or nothing.
	Create(ctx context.Context, o *Order, items []Item) error
	GetByID(ctx context.Context, id string) (*Order, []Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, error)
	// UpdateStatus moves an order from one status to another and fails with
	// ErrStatusChanged if it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	// Cancel moves the order to cancelled and puts its lines back in stock.
	Cancel(ctx context.Context, id string, from Status, items []Item) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
    INSERT INTO orders (id, user_id, status, total, shipping_address, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
    RETURNING created_at, updated_at
  `, o.ID, o.UserID, o.Status, o.Total, o.ShippingAddress).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert order")
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, it.ID, o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price); err != nil {
			return errors.Wrap(err, "insert order item")
		}
		// Conditional decrement: a concurrent order that took the stock
		// first leaves zero rows here.
		tag, err := tx.Exec(ctx, `
      UPDATE products SET stock = stock - $2, updated_at = NOW()
      WHERE id = $1 AND is_active AND stock >= $2
    `, it.ProductID, it.Quantity)
		if err != nil {
			return errors.Wrap(err, "decrement stock")
		}
		if tag.RowsAffected() == 0 {
			return &OutOfStockError{ProductID: it.ProductID}
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, o.UserID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

const orderCols = `id, user_id::text, status, total::text, shipping_address, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, ErrNotFound
	}
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "get order")
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	limit, offset = page(limit, offset)
	return r.list(ctx, `
    SELECT `+orderCols+`
    FROM orders WHERE user_id=$1
    ORDER BY created_at DESC, id LIMIT $2 OFFSET $3
  `, userID, limit, offset)
}

func (r *PGRepo) ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, error) {
	limit, offset = page(limit, offset)
	return r.list(ctx, `
    SELECT `+orderCols+`
    FROM orders WHERE ($1 = '' OR status = $1)
    ORDER BY created_at DESC, id LIMIT $2 OFFSET $3
  `, string(status), limit, offset)
}

func (r *PGRepo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET status = $3, updated_at = NOW()
    WHERE id = $1 AND status = $2
  `, id, from, to)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *PGRepo) Cancel(ctx context.Context, id string, from Status, items []Item) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE orders SET status = $3, updated_at = NOW()
    WHERE id = $1 AND status = $2
  `, id, from, StatusCancelled)
	if err != nil {
		return errors.Wrap(err, "cancel order")
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	// Products deleted since the order was placed match no row.
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
      UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1
    `, it.ProductID, it.Quantity); err != nil {
			return errors.Wrap(err, "restock")
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (r *PGRepo) items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
    SELECT id, order_id::text, product_id::text, product_name, quantity, price::text
    FROM order_items
    WHERE order_id = $1
    ORDER BY product_name, id
  `, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
