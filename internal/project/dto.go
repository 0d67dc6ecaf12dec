package project

import (
	"io"
	"strings"
	"time"

	"github.com/MikeMC777/buildmart/internal/apperr"
)

// Dates travel as YYYY-MM-DD.
const dateLayout = "2006-01-02"

// swagger:model CreateProjectRequest
type CreateProjectRequest struct {
	Name      string `json:"name"       example:"Casa Norte"`
	Location  string `json:"location"   example:"Lima"`
	StartDate string `json:"start_date" example:"2025-03-01"`
	EndDate   string `json:"end_date"   example:"2025-09-30"`
	Status    string `json:"status"     example:"active"`
	// Only honored for admins creating on behalf of a client.
	ClientID string `json:"client_id,omitempty"`
}

// swagger:model UpdateProjectRequest
type UpdateProjectRequest struct {
	Name      *string `json:"name,omitempty"`
	Location  *string `json:"location,omitempty"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	Status    *string `json:"status,omitempty"`
}

// swagger:model MilestoneRequest
type MilestoneRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      MilestoneStatus `json:"status"`
	DueDate     string          `json:"due_date"`
}

// swagger:model UpdateMilestoneRequest
type UpdateMilestoneRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      *MilestoneStatus `json:"status,omitempty"`
	DueDate     *string          `json:"due_date,omitempty"`
}

// swagger:model InventoryRequest
type InventoryRequest struct {
	ItemName     string          `json:"item_name"`
	Quantity     int             `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitCost     string          `json:"unit_cost"`
	Supplier     string          `json:"supplier"`
	DeliveryDate string          `json:"delivery_date"`
	Status       InventoryStatus `json:"status"`
}

// swagger:model UpdateInventoryRequest
type UpdateInventoryRequest struct {
	ItemName     *string          `json:"item_name,omitempty"`
	Quantity     *int             `json:"quantity,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
	UnitCost     *string          `json:"unit_cost,omitempty"`
	Supplier     *string          `json:"supplier,omitempty"`
	DeliveryDate *string          `json:"delivery_date,omitempty"`
	Status       *InventoryStatus `json:"status,omitempty"`
}

// swagger:model ExpenseRequest
type ExpenseRequest struct {
	Description   string `json:"description"`
	Amount        string `json:"amount"         example:"150.00"`
	Category      string `json:"category"       example:"materials"`
	PaymentMethod string `json:"payment_method"`
	Vendor        string `json:"vendor"`
	ReceiptNumber string `json:"receipt_number"`
	PaymentDate   string `json:"payment_date"   example:"2025-03-15"`
	Notes         string `json:"notes"`
}

// ImageUpload is a progress photo read from a multipart form.
type ImageUpload struct {
	MilestoneID string
	Description string
	Filename    string
	ContentType string
	Body        io.Reader
}

// parseDate reads an optional date; empty means none.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.Validation("%s must be a date like 2025-01-31", field)
	}
	return &t, nil
}
