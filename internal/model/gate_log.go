package model

import (
	"time"

	"github.com/google/uuid"

	"societyhub/internal/errors"
)

// VehicleClass values are stored byte-for-byte as shown.
type VehicleClass string

const (
	VehicleResident VehicleClass = "Resident"
	VehicleVisitor  VehicleClass = "Visitor"
	VehicleService  VehicleClass = "Service"
)

// Valid reports whether c is a known class.
func (c VehicleClass) Valid() bool {
	switch c {
	case VehicleResident, VehicleVisitor, VehicleService:
		return true
	}
	return false
}

// RequiresHouse reports whether logs of this class must name a house.
func (c VehicleClass) RequiresHouse() bool {
	return c == VehicleResident || c == VehicleVisitor
}

// GateLog records one visit of a vehicle: opened on entry, closed once on exit.
// A log with a nil ExitTime is active (the vehicle is inside).
type GateLog struct {
	ID              uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	VehicleNo       string       `json:"vehicleNo" gorm:"size:32;not null;index"`
	VehicleClass    VehicleClass `json:"vehicleClass" gorm:"type:varchar(16);not null;index"`
	EntryTime       time.Time    `json:"entryTime" gorm:"not null;index"`
	ExitTime        *time.Time   `json:"exitTime" gorm:"index"`
	AssociatedHouse *string      `json:"associatedHouse" gorm:"size:64;index"`
	LoggedBy        string       `json:"loggedBy" gorm:"size:64;not null"`
	ExitLoggedBy    *string      `json:"exitLoggedBy" gorm:"size:64"`
	CreatedAt       time.Time    `json:"createdAt" gorm:"not null"`
}

func (GateLog) TableName() string { return string(KindGateLog) }

func (g *GateLog) DocumentID() uuid.UUID { return g.ID }

func (g *GateLog) Stamp(id uuid.UUID, now time.Time) {
	stampID(&g.ID, id)
	g.CreatedAt = now
}

// Active reports whether the vehicle is still inside.
func (g *GateLog) Active() bool { return g.ExitTime == nil }

// House returns the associated house or "".
func (g *GateLog) House() string {
	if g.AssociatedHouse == nil {
		return ""
	}
	return *g.AssociatedHouse
}

func (g *GateLog) Validate() error {
	v := &errors.ValidationError{}
	if g.VehicleNo == "" {
		v.Add("vehicleNo", "is required")
	}
	if !g.VehicleClass.Valid() {
		v.Add("vehicleClass", "must be one of Resident, Visitor, Service")
	}
	if g.VehicleClass.RequiresHouse() && g.House() == "" {
		v.Add("associatedHouse", "is required for "+string(g.VehicleClass)+" vehicles")
	}
	if g.EntryTime.IsZero() {
		v.Add("entryTime", "is required")
	}
	if g.ExitTime != nil && g.ExitTime.Before(g.EntryTime) {
		v.Add("exitTime", "must not precede entryTime")
	}
	if g.LoggedBy == "" {
		v.Add("loggedBy", "is required")
	}
	return v.Err()
}
