// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type BillingModel string

const (
	BillingModelPerWorkload BillingModel = "per_workload"
	BillingModelPerGigabyte BillingModel = "per_gigabyte"
)

type LicenseState string

const (
	LicenseStateUnassigned LicenseState = "unassigned"
	LicenseStateAssigned   LicenseState = "assigned"
	LicenseStateActivated  LicenseState = "activated"
	LicenseStateCompleted  LicenseState = "completed"
	LicenseStateExpired    LicenseState = "expired"
)

type HistoryAction string

const (
	HistoryActionFirstAssignment HistoryAction = "first_assignment"
	HistoryActionAssignment      HistoryAction = "assignment"
	HistoryActionActivation      HistoryAction = "activation"
)

type TenantKind string

const (
	TenantKindPartner  TenantKind = "partner"
	TenantKindCustomer TenantKind = "customer"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRolePartner UserRole = "partner"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)
