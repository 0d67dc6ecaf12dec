// Package stats computes the admin dashboard figures.
package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
)

// swagger:model Stats
type Stats struct {
	UsersByRole     map[string]int `json:"users_by_role"`
	Products        int            `json:"products"`
	ActiveProducts  int            `json:"active_products"`
	OrdersByStatus  map[string]int `json:"orders_by_status"`
	Revenue         string         `json:"revenue"`
	Projects        int            `json:"projects"`
	ProjectExpenses string         `json:"project_expenses"`
}

// Source runs the individual aggregate queries.
type Source interface {
	UsersByRole(ctx context.Context) (map[string]int, error)
	ProductCounts(ctx context.Context) (total, active int, err error)
	OrdersByStatus(ctx context.Context) (map[string]int, error)
	// Revenue sums the totals of orders that were not cancelled.
	Revenue(ctx context.Context) (string, error)
	ProjectTotals(ctx context.Context) (projects int, expenses string, err error)
}

type Service struct {
	src  Source
	gate *access.Gate
}

func NewService(src Source, gate *access.Gate) *Service {
	return &Service{src: src, gate: gate}
}

// Get runs every query concurrently and fails if any of them fails.
func (s *Service) Get(ctx context.Context, p *auth.Principal) (*Stats, error) {
	if err := s.gate.Authorize(p, access.StatsRead, nil); err != nil {
		return nil, err
	}
	var out Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.UsersByRole, err = s.src.UsersByRole(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Products, out.ActiveProducts, err = s.src.ProductCounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.OrdersByStatus, err = s.src.OrdersByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Revenue, err = s.src.Revenue(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Projects, out.ProjectExpenses, err = s.src.ProjectTotals(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err)
	}
	return &out, nil
}

type PGSource struct{ db *pgxpool.Pool }

func NewPGSource(db *pgxpool.Pool) *PGSource { return &PGSource{db: db} }

func (r *PGSource) counts(ctx context.Context, sql string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (r *PGSource) UsersByRole(ctx context.Context) (map[string]int, error) {
	m, err := r.counts(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	return m, errors.Wrap(err, "users by role")
}

func (r *PGSource) OrdersByStatus(ctx context.Context) (map[string]int, error) {
	m, err := r.counts(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	return m, errors.Wrap(err, "orders by status")
}

func (r *PGSource) ProductCounts(ctx context.Context) (total, active int, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM products`,
	).Scan(&total, &active)
	return total, active, errors.Wrap(err, "product counts")
}

func (r *PGSource) Revenue(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0)::numeric(14,2)::text FROM orders WHERE status <> 'cancelled'`,
	).Scan(&s)
	return s, errors.Wrap(err, "revenue")
}

func (r *PGSource) ProjectTotals(ctx context.Context) (projects int, expenses string, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = r.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM projects),
		       (SELECT COALESCE(SUM(amount), 0)::numeric(14,2)::text FROM project_expenses)
	`).Scan(&projects, &expenses)
	return projects, expenses, errors.Wrap(err, "project totals")
}
