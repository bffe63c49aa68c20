package model

import (
	"time"

	"github.com/google/uuid"

	"societyhub/internal/errors"
)

// Kind names a resource collection. The value doubles as the table name and
// as the first segment of object storage paths.
type Kind string

const (
	KindListing   Kind = "listings"
	KindComplaint Kind = "complaints"
	KindBill      Kind = "bills"
	KindGateLog   Kind = "gate_logs"
)

// Status is the lifecycle status of a moderated resource. Values are stored
// byte-for-byte as shown.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusResolved Status = "Resolved"
	StatusPaid     Status = "Paid"
)

// Document is implemented by every type persisted through the generic repository.
type Document interface {
	DocumentID() uuid.UUID
	// Stamp assigns the store-side id (when unset) and the creation timestamp.
	Stamp(id uuid.UUID, now time.Time)
	// Validate checks the full document shape. It is evaluated on create and
	// after every patch, inside the same write.
	Validate() error
	TableName() string
}

// Reviewable is implemented by resources that pass through moderation.
type Reviewable interface {
	ReviewState() Review
	// Completed reports whether creation finished, i.e. the resource may be reviewed.
	Completed() bool
}

// Owner holds the denormalized owner fields copied onto a resource at creation.
type Owner struct {
	OwnerID          string `json:"ownerId" gorm:"size:64;not null;index"`
	OwnerDisplayName string `json:"ownerDisplayName" gorm:"size:255"`
	OwnerLocation    string `json:"ownerLocation" gorm:"size:64;index"`
}

// Review holds the moderation status and its write-once audit fields.
type Review struct {
	Status          Status     `json:"status" gorm:"type:varchar(16);not null;default:'Pending';index"`
	ReviewedBy      *string    `json:"reviewedBy" gorm:"size:64"`
	ReviewedAt      *time.Time `json:"reviewedAt"`
	RejectionReason *string    `json:"rejectionReason" gorm:"type:text"`
}

// ReviewState returns the moderation fields.
func (r Review) ReviewState() Review { return r }

func (o Owner) validate(v *errors.ValidationError) {
	if o.OwnerID == "" {
		v.Add("ownerId", "is required")
	}
}

// validate checks the audit-field invariants: reviewer fields exist exactly
// when the status has left Pending, and a rejection reason exists exactly
// when the status is Rejected.
func (r Review) validate(v *errors.ValidationError, allowed ...Status) {
	valid := false
	for _, s := range allowed {
		if r.Status == s {
			valid = true
			break
		}
	}
	if !valid {
		v.Add("status", "unsupported value "+string(r.Status))
		return
	}

	reviewed := r.ReviewedBy != nil && *r.ReviewedBy != "" && r.ReviewedAt != nil
	switch {
	case r.Status == StatusPending && (r.ReviewedBy != nil || r.ReviewedAt != nil):
		v.Add("reviewedBy", "must be empty while Pending")
	case r.Status != StatusPending && !reviewed:
		v.Add("reviewedBy", "is required once reviewed")
	}

	hasReason := r.RejectionReason != nil && *r.RejectionReason != ""
	if r.Status == StatusRejected && !hasReason {
		v.Add("rejectionReason", "is required when Rejected")
	}
	if r.Status != StatusRejected && r.RejectionReason != nil {
		v.Add("rejectionReason", "must be empty unless Rejected")
	}
}

func stampID(current *uuid.UUID, id uuid.UUID) {
	if *current == uuid.Nil {
		if id == uuid.Nil {
			id = uuid.New()
		}
		*current = id
	}
}
