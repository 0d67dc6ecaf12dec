package project

import "time"

type Project struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Name      string     `json:"name"`
	Location  string     `json:"location,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
)

func (s MilestoneStatus) Valid() bool {
	return s == MilestonePending || s == MilestoneInProgress || s == MilestoneCompleted
}

type Milestone struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      MilestoneStatus `json:"status"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	// Stamped when the status becomes completed, cleared when it leaves it.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type InventoryStatus string

const (
	InventoryPending   InventoryStatus = "pending"
	InventoryOrdered   InventoryStatus = "ordered"
	InventoryDelivered InventoryStatus = "delivered"
	InventoryUsed      InventoryStatus = "used"
)

func (s InventoryStatus) Valid() bool {
	switch s {
	case InventoryPending, InventoryOrdered, InventoryDelivered, InventoryUsed:
		return true
	}
	return false
}

type InventoryItem struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit,omitempty"`
	UnitCost  string `json:"unit_cost"`
	// quantity × unit_cost
	TotalCost    string          `json:"total_cost"`
	Supplier     string          `json:"supplier,omitempty"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
	Status       InventoryStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

var ExpenseCategories = []string{"materials", "labor", "equipment", "transportation", "permits", "utilities", "other"}

func validCategory(c string) bool {
	for _, x := range ExpenseCategories {
		if x == c {
			return true
		}
	}
	return false
}

type Expense struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Vendor        string    `json:"vendor,omitempty"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
	PaymentDate   time.Time `json:"payment_date"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProgressImage struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	MilestoneID *string   `json:"milestone_id,omitempty"`
	ImageURL    string    `json:"image_url"`
	Description string    `json:"description,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary aggregates a project's milestones, expenses and inventory.
// swagger:model ProjectSummary
type Summary struct {
	ProjectID           string `json:"project_id"`
	TotalMilestones     int    `json:"total_milestones"`
	CompletedMilestones int    `json:"completed_milestones"`
	CompletionPercent   int    `json:"completion_percent"`
	TotalExpenses       string `json:"total_expenses"`
	InventoryValue      string `json:"inventory_value"`
}
