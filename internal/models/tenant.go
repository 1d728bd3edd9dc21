// internal/models/tenant.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Partner is the local projection of a partner-kind tenant owned by the
// cloud provider. The local row is the system of record for licensing
// association; the provider owns identity, quota and role data.
type Partner struct {
	BaseModel
	Name         string `json:"name" gorm:"size:255;not null"`
	CloudID      string `json:"cloud_id" gorm:"size:64;uniqueIndex;not null"`
	ContactEmail string `json:"contact_email" gorm:"size:255;not null"`
	ContactName  string `json:"contact_name" gorm:"size:255"`
	Phone        string `json:"phone" gorm:"size:50"`
	Country      string `json:"country" gorm:"size:2"`

	// Application modules enabled on the provider tenant at provisioning
	// time, kept locally so the portal can render capabilities without a
	// provider round trip.
	Applications pq.StringArray `json:"applications" gorm:"type:text[]"`

	// Relationships
	Customers []Customer `json:"customers,omitempty" gorm:"foreignKey:PartnerID"`
	Licenses  []License  `json:"licenses,omitempty" gorm:"foreignKey:PartnerID"`
}

// Customer is the local projection of a customer-kind tenant, always
// parented to a partner.
type Customer struct {
	BaseModel
	PartnerID    uuid.UUID `json:"partner_id" gorm:"type:uuid;not null;index"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	CloudID      string    `json:"cloud_id" gorm:"size:64;uniqueIndex;not null"`
	ContactEmail string    `json:"contact_email" gorm:"size:255;not null"`
	ContactName  string    `json:"contact_name" gorm:"size:255"`
	Phone        string    `json:"phone" gorm:"size:50"`
	Country      string    `json:"country" gorm:"size:2"`

	Applications pq.StringArray `json:"applications" gorm:"type:text[]"`

	// Relationships
	Partner  Partner   `json:"partner,omitempty" gorm:"foreignKey:PartnerID"`
	Licenses []License `json:"licenses,omitempty" gorm:"foreignKey:CustomerID"`
}

// User is a portal identity. Users created during tenant provisioning
// also carry the provider-side user id they map to (tenant+login).
type User struct {
	BaseModel
	Login        string     `json:"login" gorm:"uniqueIndex;size:100;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	PartnerID    *uuid.UUID `json:"partner_id" gorm:"type:uuid;index"`
	CloudUserID  string     `json:"cloud_user_id,omitempty" gorm:"size:64;index"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Partner *Partner `json:"partner,omitempty" gorm:"foreignKey:PartnerID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
