// internal/models/product.go
package models

type Product struct {
	BaseModel
	Name       string       `json:"name" gorm:"size:255;not null"`
	SKU        string       `json:"sku" gorm:"size:100;uniqueIndex;not null"`
	Model      BillingModel `json:"model" gorm:"type:varchar(20);not null;index"`
	TermMonths int          `json:"term_months" gorm:"not null;default:12"`
	QuotaUnits int64        `json:"quota_units" gorm:"not null"`
	IsActive   bool         `json:"is_active" gorm:"default:true"`

	// Relationships
	Licenses []License `json:"licenses,omitempty" gorm:"foreignKey:ProductID"`
}
