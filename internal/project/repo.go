// Package project tracks client construction projects: milestones,
// inventory, expenses and progress photos.
package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	// ListProjects lists the projects of a client, or all when clientID is empty.
	ListProjects(ctx context.Context, clientID string) ([]Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	// DeleteProject removes the project and, by cascade, all its children.
	DeleteProject(ctx context.Context, id string) (bool, error)

	CreateMilestone(ctx context.Context, m *Milestone) error
	GetMilestone(ctx context.Context, projectID, id string) (*Milestone, error)
	UpdateMilestone(ctx context.Context, m *Milestone) error
	ListMilestones(ctx context.Context, projectID string) ([]Milestone, error)

	CreateInventory(ctx context.Context, it *InventoryItem) error
	GetInventory(ctx context.Context, projectID, id string) (*InventoryItem, error)
	UpdateInventory(ctx context.Context, it *InventoryItem) error
	ListInventory(ctx context.Context, projectID string) ([]InventoryItem, error)

	CreateExpense(ctx context.Context, e *Expense) error
	ListExpenses(ctx context.Context, projectID string) ([]Expense, error)

	CreateImage(ctx context.Context, img *ProgressImage) error
	ListImages(ctx context.Context, projectID string) ([]ProgressImage, error)

	// Summary computes milestone counts and money totals from current rows.
	Summary(ctx context.Context, projectID string) (*Summary, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, what)
}

func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// ----- projects -----

const projectCols = `id, client_id::text, name, location, start_date, end_date, status, created_at`

func scanProject(row pgx.Row, p *Project) error {
	return row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Location, &p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt)
}

func (r *PGRepo) CreateProject(ctx context.Context, p *Project) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO projects (id, client_id, name, location, start_date, end_date, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		RETURNING created_at
	`, p.ID, p.ClientID, p.Name, p.Location, p.StartDate, p.EndDate, p.Status).Scan(&p.CreatedAt)
	return errors.Wrap(err, "insert project")
}

func (r *PGRepo) GetProject(ctx context.Context, id string) (*Project, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	if !validID(id) {
		return nil, ErrNotFound
	}
	var p Project
	if err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectCols+` FROM projects WHERE id=$1`, id), &p); err != nil {
		return nil, notFound(err, "get project")
	}
	return &p, nil
}

func (r *PGRepo) ListProjects(ctx context.Context, clientID string) ([]Project, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+projectCols+` FROM projects
		WHERE ($1 = '' OR client_id::text = $1)
		ORDER BY created_at DESC, id
	`, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	defer rows.Close()
	out := []Project{}
	for rows.Next() {
		var p Project
		if err := scanProject(rows, &p); err != nil {
			return nil, errors.Wrap(err, "scan project")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateProject(ctx context.Context, p *Project) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE projects
		SET name = $2, location = $3, start_date = $4, end_date = $5, status = $6
		WHERE id = $1
	`, p.ID, p.Name, p.Location, p.StartDate, p.EndDate, p.Status)
	if err != nil {
		return errors.Wrap(err, "update project")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) DeleteProject(ctx context.Context, id string) (bool, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	if !validID(id) {
		return false, nil
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete project")
	}
	return cmd.RowsAffected() > 0, nil
}

// ----- milestones -----

const milestoneCols = `id, project_id::text, title, description, status, due_date, completed_at, created_at`

func scanMilestone(row pgx.Row, m *Milestone) error {
	return row.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.Status, &m.DueDate, &m.CompletedAt, &m.CreatedAt)
}

func (r *PGRepo) CreateMilestone(ctx context.Context, m *Milestone) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO milestones (id, project_id, title, description, status, due_date, completed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		RETURNING created_at
	`, m.ID, m.ProjectID, m.Title, m.Description, m.Status, m.DueDate, m.CompletedAt).Scan(&m.CreatedAt)
	return errors.Wrap(err, "insert milestone")
}

func (r *PGRepo) GetMilestone(ctx context.Context, projectID, id string) (*Milestone, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	if !validID(projectID, id) {
		return nil, ErrNotFound
	}
	var m Milestone
	err := scanMilestone(r.db.QueryRow(ctx, `
		SELECT `+milestoneCols+` FROM milestones WHERE id=$1 AND project_id=$2
	`, id, projectID), &m)
	if err != nil {
		return nil, notFound(err, "get milestone")
	}
	return &m, nil
}

func (r *PGRepo) UpdateMilestone(ctx context.Context, m *Milestone) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE milestones
		SET title = $2, description = $3, status = $4, due_date = $5, completed_at = $6
		WHERE id = $1
	`, m.ID, m.Title, m.Description, m.Status, m.DueDate, m.CompletedAt)
	if err != nil {
		return errors.Wrap(err, "update milestone")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) ListMilestones(ctx context.Context, projectID string) ([]Milestone, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+milestoneCols+` FROM milestones
		WHERE project_id=$1
		ORDER BY due_date NULLS LAST, created_at, id
	`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "list milestones")
	}
	defer rows.Close()
	out := []Milestone{}
	for rows.Next() {
		var m Milestone
		if err := scanMilestone(rows, &m); err != nil {
			return nil, errors.Wrap(err, "scan milestone")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ----- inventory -----

const inventoryCols = `id, project_id::text, item_name, quantity, unit, unit_cost::text, total_cost::text,
	supplier, delivery_date, status, created_at`

func scanInventory(row pgx.Row, it *InventoryItem) error {
	return row.Scan(&it.ID, &it.ProjectID, &it.ItemName, &it.Quantity, &it.Unit, &it.UnitCost, &it.TotalCost,
		&it.Supplier, &it.DeliveryDate, &it.Status, &it.CreatedAt)
}

func (r *PGRepo) CreateInventory(ctx context.Context, it *InventoryItem) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO project_inventory
		  (id, project_id, item_name, quantity, unit, unit_cost, total_cost, supplier, delivery_date, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		RETURNING created_at
	`, it.ID, it.ProjectID, it.ItemName, it.Quantity, it.Unit, it.UnitCost, it.TotalCost,
		it.Supplier, it.DeliveryDate, it.Status).Scan(&it.CreatedAt)
	return errors.Wrap(err, "insert inventory")
}

func (r *PGRepo) GetInventory(ctx context.Context, projectID, id string) (*InventoryItem, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	if !validID(projectID, id) {
		return nil, ErrNotFound
	}
	var it InventoryItem
	err := scanInventory(r.db.QueryRow(ctx, `
		SELECT `+inventoryCols+` FROM project_inventory WHERE id=$1 AND project_id=$2
	`, id, projectID), &it)
	if err != nil {
		return nil, notFound(err, "get inventory")
	}
	return &it, nil
}

func (r *PGRepo) UpdateInventory(ctx context.Context, it *InventoryItem) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE project_inventory
		SET item_name = $2, quantity = $3, unit = $4, unit_cost = $5, total_cost = $6,
		    supplier = $7, delivery_date = $8, status = $9
		WHERE id = $1
	`, it.ID, it.ItemName, it.Quantity, it.Unit, it.UnitCost, it.TotalCost, it.Supplier, it.DeliveryDate, it.Status)
	if err != nil {
		return errors.Wrap(err, "update inventory")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) ListInventory(ctx context.Context, projectID string) ([]InventoryItem, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+inventoryCols+` FROM project_inventory
		WHERE project_id=$1
		ORDER BY created_at DESC, id
	`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "list inventory")
	}
	defer rows.Close()
	out := []InventoryItem{}
	for rows.Next() {
		var it InventoryItem
		if err := scanInventory(rows, &it); err != nil {
			return nil, errors.Wrap(err, "scan inventory")
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ----- expenses -----

func (r *PGRepo) CreateExpense(ctx context.Context, e *Expense) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO project_expenses
		  (id, project_id, description, amount, category, payment_method, vendor, receipt_number, payment_date, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		RETURNING created_at
	`, e.ID, e.ProjectID, e.Description, e.Amount, e.Category, e.PaymentMethod, e.Vendor,
		e.ReceiptNumber, e.PaymentDate, e.Notes).Scan(&e.CreatedAt)
	return errors.Wrap(err, "insert expense")
}

func (r *PGRepo) ListExpenses(ctx context.Context, projectID string) ([]Expense, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, project_id::text, description, amount::text, category, payment_method, vendor,
		       receipt_number, payment_date, notes, created_at
		FROM project_expenses
		WHERE project_id=$1
		ORDER BY payment_date DESC, created_at DESC, id
	`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "list expenses")
	}
	defer rows.Close()
	out := []Expense{}
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Description, &e.Amount, &e.Category, &e.PaymentMethod,
			&e.Vendor, &e.ReceiptNumber, &e.PaymentDate, &e.Notes, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan expense")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ----- images -----

func (r *PGRepo) CreateImage(ctx context.Context, img *ProgressImage) error {
	ctx, cancel := timeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO progress_images (id, project_id, milestone_id, image_url, description, uploaded_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING created_at
	`, img.ID, img.ProjectID, img.MilestoneID, img.ImageURL, img.Description, img.UploadedBy).Scan(&img.CreatedAt)
	return errors.Wrap(err, "insert image")
}

func (r *PGRepo) ListImages(ctx context.Context, projectID string) ([]ProgressImage, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, project_id::text, milestone_id::text, image_url, description, uploaded_by::text, created_at
		FROM progress_images
		WHERE project_id=$1
		ORDER BY created_at DESC, id
	`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "list images")
	}
	defer rows.Close()
	out := []ProgressImage{}
	for rows.Next() {
		var img ProgressImage
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.MilestoneID, &img.ImageURL, &img.Description,
			&img.UploadedBy, &img.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan image")
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ----- summary -----

func (r *PGRepo) Summary(ctx context.Context, projectID string) (*Summary, error) {
	ctx, cancel := timeout(ctx)
	defer cancel()

	s := &Summary{ProjectID: projectID}
	err := r.db.QueryRow(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM milestones WHERE project_id = $1),
		  (SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status = 'completed'),
		  (SELECT COALESCE(SUM(amount), 0)::numeric(14,2)::text FROM project_expenses WHERE project_id = $1),
		  (SELECT COALESCE(SUM(total_cost), 0)::numeric(14,2)::text FROM project_inventory WHERE project_id = $1)
	`, projectID).Scan(&s.TotalMilestones, &s.CompletedMilestones, &s.TotalExpenses, &s.InventoryValue)
	if err != nil {
		return nil, errors.Wrap(err, "project summary")
	}
	return s, nil
}
