package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityAction names an engine outcome recorded in the activity log.
type ActivityAction string

const (
	ActivityCreated     ActivityAction = "created"
	ActivityCompensated ActivityAction = "compensated"
	ActivityApproved    ActivityAction = "approved"
	ActivityRejected    ActivityAction = "rejected"
	ActivityResolved    ActivityAction = "resolved"
	ActivityPaid        ActivityAction = "paid"
	ActivityEntered     ActivityAction = "entry"
	ActivityExited      ActivityAction = "exit"
)

// ActivityEntry is an append-only record of a lifecycle outcome.
// Entries are written asynchronously and never block the command that produced them.
type ActivityEntry struct {
	ID         uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Kind       Kind           `json:"kind" gorm:"type:varchar(32);not null;index"`
	ResourceID uuid.UUID      `json:"resourceId" gorm:"type:char(36);not null;index"`
	Action     ActivityAction `json:"action" gorm:"type:varchar(20);not null;index"`
	Actor      string         `json:"actor" gorm:"size:64"`
	Detail     string         `json:"detail,omitempty" gorm:"type:text"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (ActivityEntry) TableName() string { return "activity_log" }

// BeforeCreate sets UUID before creating the record.
func (a *ActivityEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
