package model

import (
	"time"

	"github.com/google/uuid"

	"societyhub/internal/errors"
)

// Role identifies a user partition. Each role lives in its own collection.
type Role string

const (
	RoleResident Role = "resident"
	RoleGuard    Role = "guard"
	RoleAdmin    Role = "admin"
)

// Collection returns the collection that holds profiles of this role.
func (r Role) Collection() string {
	switch r {
	case RoleGuard:
		return "guards"
	case RoleAdmin:
		return "admins"
	default:
		return "residents"
	}
}

// Roles lists every partition in display order.
var Roles = []Role{RoleResident, RoleGuard, RoleAdmin}

// UserProfile is a society member. Profiles are provisioned outside this
// service; the engine only reads them.
type UserProfile struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Email     string    `json:"email" gorm:"size:255"`
	Phone     string    `json:"phone" gorm:"size:32"`
	HouseNo   string    `json:"houseNo" gorm:"size:64"`
	Role      Role      `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserProfile) TableName() string { return RoleResident.Collection() }

func (u *UserProfile) DocumentID() uuid.UUID { return u.ID }

func (u *UserProfile) Stamp(id uuid.UUID, now time.Time) {
	stampID(&u.ID, id)
	u.CreatedAt = now
}

func (u *UserProfile) Validate() error {
	v := &errors.ValidationError{}
	if u.Name == "" {
		v.Add("name", "is required")
	}
	switch u.Role {
	case RoleResident:
		if u.HouseNo == "" {
			v.Add("houseNo", "is required for residents")
		}
	case RoleGuard, RoleAdmin:
	default:
		v.Add("role", "must be one of resident, guard, admin")
	}
	return v.Err()
}
