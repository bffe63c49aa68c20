package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"societyhub/internal/errors"
)

// Listing is a marketplace listing posted by a resident. It is only visible to
// other residents once Approved; media uploads complete before it can be reviewed.
type Listing struct {
	ID          uuid.UUID                   `json:"id" gorm:"type:char(36);primaryKey"`
	Owner       `gorm:"embedded"`
	Price       decimal.Decimal             `json:"price" gorm:"type:decimal(14,2);not null"`
	Size        string                      `json:"size" gorm:"size:64"`
	Contact     string                      `json:"contact" gorm:"size:32"`
	Description string                      `json:"description" gorm:"type:text"`
	Media       datatypes.JSONSlice[string] `json:"media"`
	Finalized   bool                        `json:"finalized" gorm:"not null;default:false;index"`
	Review      `gorm:"embedded"`
	CreatedAt   time.Time                   `json:"createdAt" gorm:"not null;index"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

func (Listing) TableName() string { return string(KindListing) }

func (l *Listing) DocumentID() uuid.UUID { return l.ID }

func (l *Listing) Stamp(id uuid.UUID, now time.Time) {
	stampID(&l.ID, id)
	l.CreatedAt = now
}

func (l *Listing) Completed() bool { return l.Finalized }

func (l *Listing) Validate() error {
	v := &errors.ValidationError{}
	l.Owner.validate(v)
	if !l.Price.IsPositive() {
		v.Add("price", "must be positive")
	}
	if l.Finalized != (len(l.Media) > 0) {
		v.Add("media", "must be non-empty exactly when creation has completed")
	}
	if l.Status != StatusPending && !l.Finalized {
		v.Add("status", "cannot leave Pending before media upload completes")
	}
	l.Review.validate(v, StatusPending, StatusApproved, StatusRejected)
	return v.Err()
}
