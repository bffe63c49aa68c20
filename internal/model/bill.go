package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"societyhub/internal/errors"
)

var billMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Bill is a charge issued to a house. The owner fields identify the resident
// being billed; OwnerLocation is the house number.
type Bill struct {
	ID        uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Owner     `gorm:"embedded"`
	Title     string          `json:"title" gorm:"size:255;not null"`
	Month     string          `json:"month" gorm:"size:7;not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	DueDate   time.Time       `json:"dueDate"`
	IssuedBy  string          `json:"issuedBy" gorm:"size:64;not null"`
	Review    `gorm:"embedded"`
	PaidAt    *time.Time      `json:"paidAt"`
	CreatedAt time.Time       `json:"createdAt" gorm:"not null;index"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Bill) TableName() string { return string(KindBill) }

func (b *Bill) DocumentID() uuid.UUID { return b.ID }

func (b *Bill) Stamp(id uuid.UUID, now time.Time) {
	stampID(&b.ID, id)
	b.CreatedAt = now
}

// Completed is always true: bills carry no media.
func (b *Bill) Completed() bool { return true }

func (b *Bill) Validate() error {
	v := &errors.ValidationError{}
	b.Owner.validate(v)
	if b.OwnerLocation == "" {
		v.Add("houseNo", "is required")
	}
	if b.Title == "" {
		v.Add("title", "is required")
	}
	if !billMonthPattern.MatchString(b.Month) {
		v.Add("month", "must be formatted YYYY-MM")
	}
	if !b.Amount.IsPositive() {
		v.Add("amount", "must be positive")
	}
	if b.IssuedBy == "" {
		v.Add("issuedBy", "is required")
	}
	if (b.Status == StatusPaid) != (b.PaidAt != nil) {
		v.Add("paidAt", "must be set exactly when Paid")
	}
	b.Review.validate(v, StatusPending, StatusApproved, StatusRejected, StatusPaid)
	return v.Err()
}
