// internal/provider/types.go
package provider

// Contact is the contact block shared by tenant and user creation.
type Contact struct {
	Email     string `json:"email"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

type TenantSpec struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"` // "partner" or "customer"
	ParentID string  `json:"parent_id"`
	Contact  Contact `json:"contact"`
}

type Tenant struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	ParentID string  `json:"parent_id"`
	Enabled  bool    `json:"enabled"`
	Contact  Contact `json:"contact"`
}

type UserSpec struct {
	TenantID string  `json:"tenant_id"`
	Login    string  `json:"login"`
	Contact  Contact `json:"contact"`
}

type User struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Login     string `json:"login"`
	Activated bool   `json:"activated"`
}

// Quota is the limit attached to an offering item. A nil Value means the
// item is unlimited.
type Quota struct {
	Value   *int64 `json:"value"`
	Overage *int64 `json:"overage,omitempty"`
}

// OfferingItem is a provider-side entitlement bound to a tenant, scoped
// to a billing edition.
type OfferingItem struct {
	Name    string `json:"name"`
	Edition string `json:"edition"`
	Status  int    `json:"status"` // 1 enabled, 0 disabled
	Quota   *Quota `json:"quota,omitempty"`
}

// Usage is one consumption record from the batched usage endpoint. The
// provider embeds the bound offering item (with its quota) in the same
// response; Offering is nil when no item is bound.
type Usage struct {
	TenantID string        `json:"tenant_id"`
	Name     string        `json:"name"`
	Edition  string        `json:"edition"`
	Value    int64         `json:"value"`
	Offering *OfferingItem `json:"offering,omitempty"`
}

type AccessPolicy struct {
	RoleID   string `json:"role_id"`
	TenantID string `json:"tenant_id"`
}
