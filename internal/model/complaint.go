package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"societyhub/internal/errors"
)

// Complaint is raised by a resident, optionally with photos. Photo-less
// complaints are finalized on creation.
type Complaint struct {
	ID          uuid.UUID                   `json:"id" gorm:"type:char(36);primaryKey"`
	Owner       `gorm:"embedded"`
	Title       string                      `json:"title" gorm:"size:255;not null"`
	Category    string                      `json:"category" gorm:"size:64;index"`
	Description string                      `json:"description" gorm:"type:text"`
	Media       datatypes.JSONSlice[string] `json:"media"`
	Finalized   bool                        `json:"finalized" gorm:"not null;default:false;index"`
	Review      `gorm:"embedded"`
	ResolvedBy  *string                     `json:"resolvedBy" gorm:"size:64"`
	ResolvedAt  *time.Time                  `json:"resolvedAt"`
	CreatedAt   time.Time                   `json:"createdAt" gorm:"not null;index"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

func (Complaint) TableName() string { return string(KindComplaint) }

func (c *Complaint) DocumentID() uuid.UUID { return c.ID }

func (c *Complaint) Stamp(id uuid.UUID, now time.Time) {
	stampID(&c.ID, id)
	c.CreatedAt = now
}

func (c *Complaint) Completed() bool { return c.Finalized }

func (c *Complaint) Validate() error {
	v := &errors.ValidationError{}
	c.Owner.validate(v)
	if c.Title == "" {
		v.Add("title", "is required")
	}
	if len(c.Media) > 0 && !c.Finalized {
		v.Add("media", "must stay empty until creation completes")
	}
	if c.Status != StatusPending && !c.Finalized {
		v.Add("status", "cannot leave Pending before media upload completes")
	}
	resolved := c.ResolvedBy != nil && c.ResolvedAt != nil
	if (c.Status == StatusResolved) != resolved {
		v.Add("resolvedBy", "must be set exactly when Resolved")
	}
	c.Review.validate(v, StatusPending, StatusApproved, StatusRejected, StatusResolved)
	return v.Err()
}
