// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	BaseModel
	SerialNumber  string     `json:"serial_number" gorm:"size:64;uniqueIndex;not null"`
	ActivationKey string     `json:"-" gorm:"size:64;not null"`
	ProductID     uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	PartnerID     *uuid.UUID `json:"partner_id" gorm:"type:uuid;index"`
	CustomerID    *uuid.UUID `json:"customer_id" gorm:"type:uuid;index"`
	AssignedAt    *time.Time `json:"assigned_at"`
	ActivatedAt   *time.Time `json:"activated_at"`
	ExpiresAt     *time.Time `json:"expires_at" gorm:"index"`
	EndsAt        *time.Time `json:"ends_at"`
	CreatedBy     uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	UpdatedBy     *uuid.UUID `json:"updated_by" gorm:"type:uuid"`

	// Relationships
	Product  Product          `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Partner  *Partner         `json:"partner,omitempty" gorm:"foreignKey:PartnerID"`
	Customer *Customer        `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Partials []PartialLicense `json:"partials,omitempty" gorm:"foreignKey:LicenseID"`
	History  []LicenseHistory `json:"history,omitempty" gorm:"foreignKey:LicenseID"`
}

// State derives the lifecycle state from the nullable columns. It is the
// single source of truth for state logic; nothing else may re-derive it.
func (l *License) State(now time.Time) LicenseState {
	switch {
	case l.ActivatedAt != nil:
		if l.EndsAt != nil && l.EndsAt.Before(now) {
			return LicenseStateCompleted
		}
		return LicenseStateActivated
	case l.ExpiresAt != nil && l.ExpiresAt.Before(now):
		return LicenseStateExpired
	case l.PartnerID != nil:
		return LicenseStateAssigned
	default:
		return LicenseStateUnassigned
	}
}

// PartialLicense is a capacity carve-out of its parent license. Rows are
// created and removed only through the split/de-partialize operations and
// never outlive the parent.
type PartialLicense struct {
	BaseModel
	LicenseID      uuid.UUID `json:"license_id" gorm:"type:uuid;not null;index"`
	Label          string    `json:"label" gorm:"size:255;not null"`
	AllocatedUnits int64     `json:"allocated_units" gorm:"not null"`
	CreatedBy      uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}

// LicenseHistory is the append-only ledger. Rows are written as a side
// effect of lifecycle transitions and never updated or deleted.
type LicenseHistory struct {
	BaseModel
	LicenseID         uuid.UUID     `json:"license_id" gorm:"type:uuid;not null;index"`
	Action            HistoryAction `json:"action" gorm:"type:varchar(20);not null;index"`
	PreviousPartnerID *uuid.UUID    `json:"previous_partner_id" gorm:"type:uuid"`
	PartnerID         *uuid.UUID    `json:"partner_id" gorm:"type:uuid"`
	CustomerID        *uuid.UUID    `json:"customer_id" gorm:"type:uuid"`
	ActorID           uuid.UUID     `json:"actor_id" gorm:"type:uuid;not null"`

	// Relationships
	License         License   `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	PreviousPartner *Partner  `json:"previous_partner,omitempty" gorm:"foreignKey:PreviousPartnerID"`
	Partner         *Partner  `json:"partner,omitempty" gorm:"foreignKey:PartnerID"`
	Customer        *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// Event represents a lifecycle operation applied to a license.
type Event string

const (
	EventAssign       Event = "assign"
	EventReassign     Event = "reassign"
	EventActivate     Event = "activate"
	EventSplit        Event = "split"
	EventDepartialize Event = "departialize"
)

// Transition defines a valid state change: an event moves a license from Src to Dst.
type Transition struct {
	Event Event
	Src   LicenseState
	Dst   LicenseState
}

// Transitions defines all valid lifecycle changes. Completed and expired
// are time-derived, not event targets, so no event leads there. Events
// whose Src equals Dst are in-place operations on an unchanged state.
var Transitions = []Transition{
	{Event: EventAssign, Src: LicenseStateUnassigned, Dst: LicenseStateAssigned},
	{Event: EventReassign, Src: LicenseStateAssigned, Dst: LicenseStateAssigned},
	{Event: EventActivate, Src: LicenseStateAssigned, Dst: LicenseStateActivated},
	{Event: EventSplit, Src: LicenseStateActivated, Dst: LicenseStateActivated},
	{Event: EventDepartialize, Src: LicenseStateActivated, Dst: LicenseStateActivated},
}
