package project

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/money"
)

type memRepo struct {
	projects   map[string]*Project
	milestones map[string]*Milestone
	inventory  map[string]*InventoryItem
	expenses   []Expense
	images     []ProgressImage
	imageErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		projects:   map[string]*Project{},
		milestones: map[string]*Milestone{},
		inventory:  map[string]*InventoryItem{},
	}
}

func (m *memRepo) CreateProject(_ context.Context, p *Project) error {
	p.CreatedAt = time.Now()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memRepo) GetProject(_ context.Context, id string) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListProjects(_ context.Context, clientID string) ([]Project, error) {
	out := []Project{}
	for _, p := range m.projects {
		if clientID == "" || p.ClientID == clientID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateProject(_ context.Context, p *Project) error {
	if _, ok := m.projects[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memRepo) DeleteProject(_ context.Context, id string) (bool, error) {
	if _, ok := m.projects[id]; !ok {
		return false, nil
	}
	delete(m.projects, id)
	for k, ms := range m.milestones {
		if ms.ProjectID == id {
			delete(m.milestones, k)
		}
	}
	for k, it := range m.inventory {
		if it.ProjectID == id {
			delete(m.inventory, k)
		}
	}
	kept := m.expenses[:0]
	for _, e := range m.expenses {
		if e.ProjectID != id {
			kept = append(kept, e)
		}
	}
	m.expenses = kept
	return true, nil
}

func (m *memRepo) CreateMilestone(_ context.Context, ms *Milestone) error {
	cp := *ms
	m.milestones[ms.ID] = &cp
	return nil
}

func (m *memRepo) GetMilestone(_ context.Context, projectID, id string) (*Milestone, error) {
	ms, ok := m.milestones[id]
	if !ok || ms.ProjectID != projectID {
		return nil, ErrNotFound
	}
	cp := *ms
	return &cp, nil
}

func (m *memRepo) UpdateMilestone(_ context.Context, ms *Milestone) error {
	if _, ok := m.milestones[ms.ID]; !ok {
		return ErrNotFound
	}
	cp := *ms
	m.milestones[ms.ID] = &cp
	return nil
}

func (m *memRepo) ListMilestones(_ context.Context, projectID string) ([]Milestone, error) {
	out := []Milestone{}
	for _, ms := range m.milestones {
		if ms.ProjectID == projectID {
			out = append(out, *ms)
		}
	}
	return out, nil
}

func (m *memRepo) CreateInventory(_ context.Context, it *InventoryItem) error {
	cp := *it
	m.inventory[it.ID] = &cp
	return nil
}

func (m *memRepo) GetInventory(_ context.Context, projectID, id string) (*InventoryItem, error) {
	it, ok := m.inventory[id]
	if !ok || it.ProjectID != projectID {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memRepo) UpdateInventory(_ context.Context, it *InventoryItem) error {
	cp := *it
	m.inventory[it.ID] = &cp
	return nil
}

func (m *memRepo) ListInventory(_ context.Context, projectID string) ([]InventoryItem, error) {
	out := []InventoryItem{}
	for _, it := range m.inventory {
		if it.ProjectID == projectID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memRepo) CreateExpense(_ context.Context, e *Expense) error {
	m.expenses = append(m.expenses, *e)
	return nil
}

func (m *memRepo) ListExpenses(_ context.Context, projectID string) ([]Expense, error) {
	out := []Expense{}
	for _, e := range m.expenses {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) CreateImage(_ context.Context, img *ProgressImage) error {
	if m.imageErr != nil {
		return m.imageErr
	}
	m.images = append(m.images, *img)
	return nil
}

func (m *memRepo) ListImages(_ context.Context, projectID string) ([]ProgressImage, error) {
	out := []ProgressImage{}
	for _, img := range m.images {
		if img.ProjectID == projectID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *memRepo) Summary(_ context.Context, projectID string) (*Summary, error) {
	s := &Summary{ProjectID: projectID}
	for _, ms := range m.milestones {
		if ms.ProjectID != projectID {
			continue
		}
		s.TotalMilestones++
		if ms.Status == MilestoneCompleted {
			s.CompletedMilestones++
		}
	}
	exp := money.Must("0")
	for _, e := range m.expenses {
		if e.ProjectID == projectID {
			exp = exp.Add(money.Must(e.Amount))
		}
	}
	inv := money.Must("0")
	for _, it := range m.inventory {
		if it.ProjectID == projectID {
			inv = inv.Add(money.Must(it.TotalCost))
		}
	}
	s.TotalExpenses, s.InventoryValue = money.Format(exp), money.Format(inv)
	return s, nil
}

type memStore struct {
	keys []string
	data map[string][]byte
}

func (s *memStore) Save(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.keys = append(s.keys, key)
	s.data[key] = b
	return "https://cdn.test/" + key, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

var (
	client = &auth.Principal{ID: uuid.NewString(), Role: auth.RoleClient}
	other  = &auth.Principal{ID: uuid.NewString(), Role: auth.RoleClient}
	seller = &auth.Principal{ID: uuid.NewString(), Role: auth.RoleSeller}
	admin  = &auth.Principal{ID: uuid.NewString(), Role: auth.RoleAdmin}
)

func newService() (*Service, *memRepo, *memStore) {
	repo, store := newMemRepo(), &memStore{}
	svc := NewService(repo, store, access.NewGate(access.DefaultPolicy()), zap.NewNop())
	return svc, repo, store
}

func newProject(t *testing.T, svc *Service) *Project {
	t.Helper()
	pr, err := svc.Create(context.Background(), client, CreateProjectRequest{Name: "Casa Norte", StartDate: "2025-03-01"})
	require.NoError(t, err)
	return pr
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{4, 4, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{1, 200, 1},
		{1, 201, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Completion(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestCreateProject(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	pr := newProject(t, svc)
	assert.Equal(t, client.ID, pr.ClientID)
	assert.Equal(t, "active", pr.Status)
	require.NotNil(t, pr.StartDate)
	assert.Equal(t, "2025-03-01", pr.StartDate.Format(dateLayout))

	_, err := svc.Create(ctx, client, CreateProjectRequest{Name: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(ctx, client, CreateProjectRequest{Name: "x", StartDate: "01/03/2025"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(ctx, client, CreateProjectRequest{Name: "x", StartDate: "2025-03-02", EndDate: "2025-03-01"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(ctx, seller, CreateProjectRequest{Name: "x"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.Create(ctx, nil, CreateProjectRequest{Name: "x"})
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))

	_, err = svc.Create(ctx, admin, CreateProjectRequest{Name: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	onBehalf, err := svc.Create(ctx, admin, CreateProjectRequest{Name: "x", ClientID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, other.ID, onBehalf.ClientID)
}

func TestProjectOwnership(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	pr := newProject(t, svc)

	_, err := svc.Get(ctx, other, pr.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = svc.Milestones(ctx, other, pr.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = svc.AddExpense(ctx, other, pr.ID, ExpenseRequest{Description: "x", Amount: "1", Category: "labor", PaymentDate: "2025-01-01"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(svc.Delete(ctx, other, pr.ID)))

	_, err = svc.Get(ctx, admin, pr.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, client, uuid.NewString())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	mine, err := svc.List(ctx, client)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	_, err = svc.Create(ctx, other, CreateProjectRequest{Name: "y"})
	require.NoError(t, err)
	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateAndDeleteProject(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()
	pr := newProject(t, svc)

	name, status := "Casa Sur", "paused"
	up, err := svc.Update(ctx, client, pr.ID, UpdateProjectRequest{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Casa Sur", up.Name)
	assert.Equal(t, "paused", up.Status)
	assert.Equal(t, "2025-03-01", up.StartDate.Format(dateLayout))

	end := "2025-01-01"
	_, err = svc.Update(ctx, client, pr.ID, UpdateProjectRequest{EndDate: &end})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.AddMilestone(ctx, client, pr.ID, MilestoneRequest{Title: "Foundation"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, client, pr.ID))
	assert.Empty(t, repo.milestones)
	_, err = svc.Get(ctx, client, pr.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMilestoneCompletedAt(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	pr := newProject(t, svc)

	m, err := svc.AddMilestone(ctx, client, pr.ID, MilestoneRequest{Title: "Walls"})
	require.NoError(t, err)
	assert.Equal(t, MilestonePending, m.Status)
	assert.Nil(t, m.CompletedAt)

	done := MilestoneCompleted
	m, err = svc.UpdateMilestone(ctx, client, pr.ID, m.ID, UpdateMilestoneRequest{Status: &done})
	require.NoError(t, err)
	require.NotNil(t, m.CompletedAt)
	assert.True(t, m.CompletedAt.Equal(now))

	// staying completed keeps the original stamp
	svc.now = func() time.Time { return now.Add(time.Hour) }
	m, err = svc.UpdateMilestone(ctx, client, pr.ID, m.ID, UpdateMilestoneRequest{Status: &done})
	require.NoError(t, err)
	assert.True(t, m.CompletedAt.Equal(now))

	back := MilestoneInProgress
	m, err = svc.UpdateMilestone(ctx, client, pr.ID, m.ID, UpdateMilestoneRequest{Status: &back})
	require.NoError(t, err)
	assert.Nil(t, m.CompletedAt)

	bad := MilestoneStatus("done")
	_, err = svc.UpdateMilestone(ctx, client, pr.ID, m.ID, UpdateMilestoneRequest{Status: &bad})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	created, err := svc.AddMilestone(ctx, client, pr.ID, MilestoneRequest{Title: "Roof", Status: MilestoneCompleted})
	require.NoError(t, err)
	assert.NotNil(t, created.CompletedAt)

	// a milestone of another project is not reachable through this one
	otherPr, err := svc.Create(ctx, client, CreateProjectRequest{Name: "Other"})
	require.NoError(t, err)
	_, err = svc.UpdateMilestone(ctx, client, otherPr.ID, m.ID, UpdateMilestoneRequest{Status: &done})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestInventoryTotalCost(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	pr := newProject(t, svc)

	it, err := svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Cement", Quantity: 12, Unit: "bag", UnitCost: "7.25"})
	require.NoError(t, err)
	assert.Equal(t, "87.00", it.TotalCost)
	assert.Equal(t, "7.25", it.UnitCost)
	assert.Equal(t, InventoryPending, it.Status)

	qty := 4
	it, err = svc.UpdateInventory(ctx, client, pr.ID, it.ID, UpdateInventoryRequest{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "29.00", it.TotalCost)

	_, err = svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Sand", Quantity: 1, UnitCost: "1.001"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Sand", Quantity: -1, UnitCost: "1"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Sand", Quantity: 1, UnitCost: "1", Status: "lost"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Sand", Quantity: 1 << 31, UnitCost: "1"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Crane", Quantity: 1000, UnitCost: "9999999999.99"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "total cost overflows NUMERIC(14,2)")
}

func TestAddExpense(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	pr := newProject(t, svc)

	e, err := svc.AddExpense(ctx, client, pr.ID, ExpenseRequest{
		Description: "Bricks", Amount: "150.5", Category: "Materials", PaymentDate: "2025-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "150.50", e.Amount)
	assert.Equal(t, "materials", e.Category)
	assert.Equal(t, "2025-03-15", e.PaymentDate.Format(dateLayout))

	cases := []ExpenseRequest{
		{Description: "x", Amount: "0", Category: "labor", PaymentDate: "2025-03-15"},
		{Description: "x", Amount: "-3", Category: "labor", PaymentDate: "2025-03-15"},
		{Description: "x", Amount: "3", Category: "snacks", PaymentDate: "2025-03-15"},
		{Description: "x", Amount: "3", Category: "labor"},
		{Description: "", Amount: "3", Category: "labor", PaymentDate: "2025-03-15"},
	}
	for _, in := range cases {
		_, err := svc.AddExpense(ctx, client, pr.ID, in)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%+v", in)
	}

	list, err := svc.Expenses(ctx, client, pr.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSummary(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	pr := newProject(t, svc)

	sum, err := svc.Summary(ctx, client, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.CompletionPercent)
	assert.Equal(t, "0.00", sum.TotalExpenses)

	for i, st := range []MilestoneStatus{MilestoneCompleted, MilestonePending, MilestoneInProgress} {
		_, err := svc.AddMilestone(ctx, client, pr.ID, MilestoneRequest{Title: "m" + strings.Repeat("x", i), Status: st})
		require.NoError(t, err)
	}
	_, err = svc.AddExpense(ctx, client, pr.ID, ExpenseRequest{Description: "a", Amount: "10.10", Category: "labor", PaymentDate: "2025-01-01"})
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, client, pr.ID, ExpenseRequest{Description: "b", Amount: "0.90", Category: "other", PaymentDate: "2025-01-02"})
	require.NoError(t, err)
	_, err = svc.AddInventory(ctx, client, pr.ID, InventoryRequest{ItemName: "Pipe", Quantity: 3, UnitCost: "2.50"})
	require.NoError(t, err)

	sum, err = svc.Summary(ctx, client, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalMilestones)
	assert.Equal(t, 1, sum.CompletedMilestones)
	assert.Equal(t, 33, sum.CompletionPercent)
	assert.Equal(t, "11.00", sum.TotalExpenses)
	assert.Equal(t, "7.50", sum.InventoryValue)
}

func TestAddImage(t *testing.T) {
	svc, _, store := newService()
	ctx := context.Background()
	pr := newProject(t, svc)
	m, err := svc.AddMilestone(ctx, client, pr.ID, MilestoneRequest{Title: "Walls"})
	require.NoError(t, err)

	img, err := svc.AddImage(ctx, client, pr.ID, ImageUpload{
		MilestoneID: m.ID, Filename: "Wall.JPG", ContentType: "image/jpeg", Body: bytes.NewReader([]byte("jpeg")),
	})
	require.NoError(t, err)
	require.Len(t, store.keys, 1)
	key := store.keys[0]
	assert.True(t, strings.HasPrefix(key, "projects/"+pr.ID+"/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Equal(t, "https://cdn.test/"+key, img.ImageURL)
	assert.Equal(t, client.ID, img.UploadedBy)
	require.NotNil(t, img.MilestoneID)
	assert.Equal(t, m.ID, *img.MilestoneID)

	_, err = svc.AddImage(ctx, client, pr.ID, ImageUpload{MilestoneID: uuid.NewString(), Filename: "a.png", Body: strings.NewReader("x")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddImage(ctx, client, pr.ID, ImageUpload{Filename: "a.png"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddImage(ctx, other, pr.ID, ImageUpload{Filename: "a.png", Body: strings.NewReader("x")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Len(t, store.keys, 1)

	list, err := svc.Images(ctx, client, pr.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddImage_FailedRecordRemovesUpload(t *testing.T) {
	svc, repo, store := newService()
	ctx := context.Background()
	pr := newProject(t, svc)
	repo.imageErr = errors.New("insert failed")

	_, err := svc.AddImage(ctx, client, pr.ID, ImageUpload{Filename: "a.png", Body: strings.NewReader("png")})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	require.Len(t, store.keys, 1)
	assert.Empty(t, store.data, "stored file is removed again")
}

func TestCanAddImage(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	pr := newProject(t, svc)

	assert.NoError(t, svc.CanAddImage(ctx, client, pr.ID))
	assert.NoError(t, svc.CanAddImage(ctx, admin, pr.ID))
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(svc.CanAddImage(ctx, nil, pr.ID)))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(svc.CanAddImage(ctx, other, pr.ID)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.CanAddImage(ctx, client, uuid.NewString())))
}
