package project

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/money"
)

// Storage keeps uploaded files and returns a retrievable URL.
type Storage interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo  Repository
	store Storage
	gate  *access.Gate
	log   *zap.Logger
	now   func() time.Time
}

func NewService(repo Repository, store Storage, gate *access.Gate, log *zap.Logger) *Service {
	return &Service{repo: repo, store: store, gate: gate, log: log, now: time.Now}
}

// ----- projects -----

func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateProjectRequest) (*Project, error) {
	if err := s.gate.Authorize(p, access.ProjectCreate, nil); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, apperr.Validation("end_date must not be before start_date")
	}
	clientID := p.ID
	if p.IsAdmin() {
		if _, err := uuid.Parse(in.ClientID); err != nil {
			return nil, apperr.Validation("client_id is required for admins")
		}
		clientID = in.ClientID
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = "active"
	}

	pr := &Project{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Name:      name,
		Location:  strings.TrimSpace(in.Location),
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	if err := s.repo.CreateProject(ctx, pr); err != nil {
		return nil, apperr.Internal(err)
	}
	s.log.Info("project created", zap.String("id", pr.ID), zap.String("client_id", pr.ClientID))
	return pr, nil
}

// List returns the caller's projects; admins see every project.
func (s *Service) List(ctx context.Context, p *auth.Principal) ([]Project, error) {
	if err := s.gate.Authorize(p, access.ProjectListOwn, nil); err != nil {
		return nil, err
	}
	clientID := p.ID
	if p.IsAdmin() {
		clientID = ""
	}
	out, err := s.repo.ListProjects(ctx, clientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*Project, error) {
	return s.project(ctx, p, access.ProjectRead, id)
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id string, in UpdateProjectRequest) (*Project, error) {
	pr, err := s.project(ctx, p, access.ProjectUpdate, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		pr.Name = name
	}
	if in.Location != nil {
		pr.Location = strings.TrimSpace(*in.Location)
	}
	if in.StartDate != nil {
		if pr.StartDate, err = parseDate("start_date", *in.StartDate); err != nil {
			return nil, err
		}
	}
	if in.EndDate != nil {
		if pr.EndDate, err = parseDate("end_date", *in.EndDate); err != nil {
			return nil, err
		}
	}
	if pr.StartDate != nil && pr.EndDate != nil && pr.EndDate.Before(*pr.StartDate) {
		return nil, apperr.Validation("end_date must not be before start_date")
	}
	if in.Status != nil {
		st := strings.TrimSpace(*in.Status)
		if st == "" {
			return nil, apperr.Validation("status must not be empty")
		}
		pr.Status = st
	}
	if err := s.repo.UpdateProject(ctx, pr); err != nil {
		return nil, s.repoErr(err, "project")
	}
	return pr, nil
}

// Delete removes a project together with all its children.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if _, err := s.project(ctx, p, access.ProjectDelete, id); err != nil {
		return err
	}
	ok, err := s.repo.DeleteProject(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.NotFound("project")
	}
	s.log.Info("project deleted", zap.String("id", id), zap.String("by", p.ID))
	return nil
}

// Summary reports completion and spending, computed from current rows.
func (s *Service) Summary(ctx context.Context, p *auth.Principal, id string) (*Summary, error) {
	pr, err := s.project(ctx, p, access.ProjectChildRead, id)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.Summary(ctx, pr.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	sum.CompletionPercent = Completion(sum.CompletedMilestones, sum.TotalMilestones)
	return sum, nil
}

// ----- milestones -----

func (s *Service) AddMilestone(ctx context.Context, p *auth.Principal, projectID string, in MilestoneRequest) (*Milestone, error) {
	pr, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	status := in.Status
	if status == "" {
		status = MilestonePending
	}
	if !status.Valid() {
		return nil, apperr.Validation("status must be pending, in_progress or completed")
	}
	due, err := parseDate("due_date", in.DueDate)
	if err != nil {
		return nil, err
	}
	m := &Milestone{
		ID:          uuid.NewString(),
		ProjectID:   pr.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     due,
	}
	s.setMilestoneStatus(m, status)
	if err := s.repo.CreateMilestone(ctx, m); err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

func (s *Service) UpdateMilestone(ctx context.Context, p *auth.Principal, projectID, id string, in UpdateMilestoneRequest) (*Milestone, error) {
	pr, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.GetMilestone(ctx, pr.ID, id)
	if err != nil {
		return nil, s.repoErr(err, "milestone")
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validation("title must not be empty")
		}
		m.Title = title
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.DueDate != nil {
		if m.DueDate, err = parseDate("due_date", *in.DueDate); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("status must be pending, in_progress or completed")
		}
		s.setMilestoneStatus(m, *in.Status)
	}
	if err := s.repo.UpdateMilestone(ctx, m); err != nil {
		return nil, s.repoErr(err, "milestone")
	}
	return m, nil
}

// setMilestoneStatus keeps CompletedAt in step with the status: stamped on
// entering completed, kept while it stays completed, cleared otherwise.
func (s *Service) setMilestoneStatus(m *Milestone, to MilestoneStatus) {
	switch {
	case to == MilestoneCompleted && m.Status != MilestoneCompleted:
		now := s.now().UTC()
		m.CompletedAt = &now
	case to != MilestoneCompleted:
		m.CompletedAt = nil
	}
	m.Status = to
}

func (s *Service) Milestones(ctx context.Context, p *auth.Principal, projectID string) ([]Milestone, error) {
	pr, err := s.project(ctx, p, access.ProjectChildRead, projectID)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ListMilestones(ctx, pr.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// ----- inventory -----

func (s *Service) AddInventory(ctx context.Context, p *auth.Principal, projectID string, in InventoryRequest) (*InventoryItem, error) {
	pr, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	if err != nil {
		return nil, err
	}
	it := &InventoryItem{
		ID:        uuid.NewString(),
		ProjectID: pr.ID,
		ItemName:  strings.TrimSpace(in.ItemName),
		Quantity:  in.Quantity,
		Unit:      strings.TrimSpace(in.Unit),
		UnitCost:  in.UnitCost,
		Supplier:  strings.TrimSpace(in.Supplier),
		Status:    in.Status,
	}
	if it.Status == "" {
		it.Status = InventoryPending
	}
	if it.UnitCost == "" {
		it.UnitCost = "0"
	}
	if it.DeliveryDate, err = parseDate("delivery_date", in.DeliveryDate); err != nil {
		return nil, err
	}
	if err := priceInventory(it); err != nil {
		return nil, err
	}
	if err := s.repo.CreateInventory(ctx, it); err != nil {
		return nil, apperr.Internal(err)
	}
	return it, nil
}

func (s *Service) UpdateInventory(ctx context.Context, p *auth.Principal, projectID, id string, in UpdateInventoryRequest) (*InventoryItem, error) {
	pr, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	if err != nil {
		return nil, err
	}
	it, err := s.repo.GetInventory(ctx, pr.ID, id)
	if err != nil {
		return nil, s.repoErr(err, "inventory item")
	}
	if in.ItemName != nil {
		it.ItemName = strings.TrimSpace(*in.ItemName)
	}
	if in.Quantity != nil {
		it.Quantity = *in.Quantity
	}
	if in.Unit != nil {
		it.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.UnitCost != nil {
		it.UnitCost = *in.UnitCost
	}
	if in.Supplier != nil {
		it.Supplier = strings.TrimSpace(*in.Supplier)
	}
	if in.DeliveryDate != nil {
		if it.DeliveryDate, err = parseDate("delivery_date", *in.DeliveryDate); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		it.Status = *in.Status
	}
	if err := priceInventory(it); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateInventory(ctx, it); err != nil {
		return nil, s.repoErr(err, "inventory item")
	}
	return it, nil
}

// priceInventory validates an item and derives its total cost.
func priceInventory(it *InventoryItem) error {
	if it.ItemName == "" {
		return apperr.Validation("item_name is required")
	}
	if it.Quantity < 0 || it.Quantity > money.MaxQuantity {
		return apperr.Validation("quantity must be between 0 and %d", money.MaxQuantity)
	}
	if !it.Status.Valid() {
		return apperr.Validation("status must be pending, ordered, delivered or used")
	}
	unit, err := money.Parse(it.UnitCost)
	if err != nil {
		return apperr.Validation("unit_cost %v", err)
	}
	total := money.Line(it.Quantity, unit)
	if !money.Fits(total, 14) {
		return apperr.Validation("total cost is too large")
	}
	it.UnitCost = money.Format(unit)
	it.TotalCost = money.Format(total)
	return nil
}

func (s *Service) Inventory(ctx context.Context, p *auth.Principal, projectID string) ([]InventoryItem, error) {
	pr, err := s.project(ctx, p, access.ProjectChildRead, projectID)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ListInventory(ctx, pr.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// ----- expenses -----

func (s *Service) AddExpense(ctx context.Context, p *auth.Principal, projectID string, in ExpenseRequest) (*Expense, error) {
	pr, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, apperr.Validation("description is required")
	}
	amount, err := money.Parse(in.Amount)
	if err != nil {
		return nil, apperr.Validation("amount %v", err)
	}
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if !validCategory(category) {
		return nil, apperr.Validation("category must be one of %s", strings.Join(ExpenseCategories, ", ")).
			WithDetails(ExpenseCategories)
	}
	paid, err := parseDate("payment_date", in.PaymentDate)
	if err != nil {
		return nil, err
	}
	if paid == nil {
		return nil, apperr.Validation("payment_date is required")
	}
	e := &Expense{
		ID:            uuid.NewString(),
		ProjectID:     pr.ID,
		Description:   desc,
		Amount:        money.Format(amount),
		Category:      category,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Vendor:        strings.TrimSpace(in.Vendor),
		ReceiptNumber: strings.TrimSpace(in.ReceiptNumber),
		PaymentDate:   *paid,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

func (s *Service) Expenses(ctx context.Context, p *auth.Principal, projectID string) ([]Expense, error) {
	pr, err := s.project(ctx, p, access.ProjectChildRead, projectID)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ListExpenses(ctx, pr.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// ----- images -----

// AddImage stores a progress photo and records it. Any file type is accepted.
// CanAddImage reports whether p may upload photos to the project, so the
// caller can refuse before reading the upload.
func (s *Service) CanAddImage(ctx context.Context, p *auth.Principal, projectID string) error {
	_, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	return err
}

func (s *Service) AddImage(ctx context.Context, p *auth.Principal, projectID string, up ImageUpload) (*ProgressImage, error) {
	pr, err := s.project(ctx, p, access.ProjectChildWrite, projectID)
	if err != nil {
		return nil, err
	}
	if up.Body == nil {
		return nil, apperr.Validation("image file is required")
	}
	var milestoneID *string
	if mid := strings.TrimSpace(up.MilestoneID); mid != "" {
		if _, err := s.repo.GetMilestone(ctx, pr.ID, mid); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, apperr.Validation("milestone_id does not belong to this project")
			}
			return nil, apperr.Internal(err)
		}
		milestoneID = &mid
	}

	id := uuid.NewString()
	key := fmt.Sprintf("projects/%s/%s%s", pr.ID, id, strings.ToLower(filepath.Ext(up.Filename)))
	url, err := s.store.Save(ctx, key, up.Body, up.ContentType)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	img := &ProgressImage{
		ID:          id,
		ProjectID:   pr.ID,
		MilestoneID: milestoneID,
		ImageURL:    url,
		Description: strings.TrimSpace(up.Description),
		UploadedBy:  p.ID,
	}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.log.Warn("orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, apperr.Internal(err)
	}
	return img, nil
}

func (s *Service) Images(ctx context.Context, p *auth.Principal, projectID string) ([]ProgressImage, error) {
	pr, err := s.project(ctx, p, access.ProjectChildRead, projectID)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ListImages(ctx, pr.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// project loads a project and checks the caller may perform a on it.
// Children are authorized through their parent's client.
func (s *Service) project(ctx context.Context, p *auth.Principal, a access.Action, id string) (*Project, error) {
	if p == nil {
		return nil, apperr.AuthRequired()
	}
	pr, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, s.repoErr(err, "project")
	}
	if err := s.gate.Authorize(p, a, access.Owner(pr.ClientID)); err != nil {
		return nil, err
	}
	return pr, nil
}

func (s *Service) repoErr(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(what)
	}
	return apperr.Internal(err)
}
