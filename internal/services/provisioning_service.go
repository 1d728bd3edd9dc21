// internal/services/provisioning_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/channelgrid/partner-portal/internal/config"
	"github.com/channelgrid/partner-portal/internal/models"
	"github.com/channelgrid/partner-portal/internal/provider"
	"github.com/channelgrid/partner-portal/internal/utils"
)

// ProvisioningService onboards partner and customer tenants across the
// cloud provider and the local store. The provider offers no transactions
// and no reliably idempotent deletes, so the sequence is split into an
// abort-capable core (login check, tenant create, local row, user create)
// and best-effort enhancements whose failures are reported as warnings,
// never rolled back.
type ProvisioningService struct {
	db     *gorm.DB
	client provider.Client
	config *config.Config
}

type ProvisionTenantRequest struct {
	Name         string     `json:"name" validate:"required,max=255"`
	Login        string     `json:"login" validate:"required,min=3,max=100"`
	ContactEmail string     `json:"contact_email" validate:"required,email"`
	ContactName  string     `json:"contact_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Country      string     `json:"country,omitempty" validate:"omitempty,len=2"`
	PartnerID    *uuid.UUID `json:"partner_id,omitempty"` // parent partner, customers only
}

// ProvisionResult is returned once the core steps succeeded. Warnings
// list every enhancement step that failed and needs manual remediation
// through the provider console.
type ProvisionResult struct {
	Partner  *models.Partner  `json:"partner,omitempty"`
	Customer *models.Customer `json:"customer,omitempty"`
	Warnings []string         `json:"warnings"`
}

// Fixed catalogue of offering items registered on new partner tenants.
var partnerOfferingCatalogue = []provider.OfferingItem{
	{Name: "workloads", Edition: string(models.BillingModelPerWorkload), Status: 1},
	{Name: "servers", Edition: string(models.BillingModelPerWorkload), Status: 1},
	{Name: "vms", Edition: string(models.BillingModelPerWorkload), Status: 1},
	{Name: "storage_total", Edition: string(models.BillingModelPerGigabyte), Status: 1},
	{Name: "local_storage", Edition: string(models.BillingModelPerGigabyte), Status: 1},
}

// Application modules every new tenant is bound to.
var tenantApplications = []string{"backup", "platform"}

func NewProvisioningService(db *gorm.DB, client provider.Client, config *config.Config) *ProvisioningService {
	return &ProvisioningService{
		db:     db,
		client: client,
		config: config,
	}
}

func (s *ProvisioningService) ProvisionPartner(ctx context.Context, actorID uuid.UUID, req *ProvisionTenantRequest) (*ProvisionResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tenantID, cloudUserID, warnings, err := s.provisionTenant(ctx, req, models.TenantKindPartner, s.config.Provider.RootTenantID, func(tenantID string) error {
		partner := &models.Partner{
			Name:         req.Name,
			CloudID:      tenantID,
			ContactEmail: req.ContactEmail,
			ContactName:  req.ContactName,
			Phone:        req.Phone,
			Country:      req.Country,
			Applications: tenantApplications,
		}
		return s.db.Create(partner).Error
	})
	if err != nil {
		return nil, err
	}

	var partner models.Partner
	if err := s.db.Where("cloud_id = ?", tenantID).First(&partner).Error; err != nil {
		return nil, fmt.Errorf("failed to reload partner: %w", err)
	}

	if err := s.createLocalUser(req, models.UserRolePartner, &partner.ID, cloudUserID); err != nil {
		logrus.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to create local user record")
		warnings = append(warnings, fmt.Sprintf("local user record was not created: %v", err))
	}

	return &ProvisionResult{Partner: &partner, Warnings: warnings}, nil
}

func (s *ProvisioningService) ProvisionCustomer(ctx context.Context, actorID uuid.UUID, req *ProvisionTenantRequest) (*ProvisionResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.PartnerID == nil {
		return nil, fmt.Errorf("%w: partner_id is required for customer tenants", ErrValidation)
	}

	var parent models.Partner
	if err := s.db.First(&parent, *req.PartnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("partner %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	tenantID, cloudUserID, warnings, err := s.provisionTenant(ctx, req, models.TenantKindCustomer, parent.CloudID, func(tenantID string) error {
		customer := &models.Customer{
			PartnerID:    parent.ID,
			Name:         req.Name,
			CloudID:      tenantID,
			ContactEmail: req.ContactEmail,
			ContactName:  req.ContactName,
			Phone:        req.Phone,
			Country:      req.Country,
			Applications: tenantApplications,
		}
		return s.db.Create(customer).Error
	})
	if err != nil {
		return nil, err
	}

	var customer models.Customer
	if err := s.db.Preload("Partner").Where("cloud_id = ?", tenantID).First(&customer).Error; err != nil {
		return nil, fmt.Errorf("failed to reload customer: %w", err)
	}

	if err := s.createLocalUser(req, models.UserRolePartner, &parent.ID, cloudUserID); err != nil {
		logrus.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to create local user record")
		warnings = append(warnings, fmt.Sprintf("local user record was not created: %v", err))
	}

	return &ProvisionResult{Customer: &customer, Warnings: warnings}, nil
}

// provisionTenant runs the ordered sequence shared by both kinds. Steps
// 1-4 abort on failure; from the moment the tenant and the local row both
// exist the operation can only accumulate warnings.
func (s *ProvisioningService) provisionTenant(ctx context.Context, req *ProvisionTenantRequest, kind models.TenantKind, parentCloudID string, createLocal func(tenantID string) error) (tenantID, cloudUserID string, warnings []string, err error) {
	warnings = []string{}

	// Step 1: read-only precondition, no side effects on failure.
	available, err := s.client.CheckLoginAvailable(ctx, req.Login)
	if err != nil {
		return "", "", nil, err
	}
	if !available {
		return "", "", nil, fmt.Errorf("%w: login %q is already taken", ErrValidation, req.Login)
	}

	contact := provider.Contact{
		Email:     req.ContactEmail,
		Firstname: req.ContactName,
		Phone:     req.Phone,
		Country:   req.Country,
	}

	// Step 2: create the external tenant. Still no local side effects.
	tenantID, err = s.client.CreateTenant(ctx, provider.TenantSpec{
		Name:     req.Name,
		Kind:     string(kind),
		ParentID: parentCloudID,
		Contact:  contact,
	})
	if err != nil {
		return "", "", nil, err
	}

	// Step 3: local projection. A failure here leaves an orphaned
	// external tenant; the provider exposes no delete safe for automatic
	// compensation, so the orphan is reported, not cleaned up.
	if err := createLocal(tenantID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"cloud_tenant_id": tenantID,
			"kind":            kind,
		}).Error("Local record creation failed after external tenant was created, tenant is orphaned")
		return "", "", nil, fmt.Errorf("external tenant %s was created but the local record could not be written, manual remediation required: %w", tenantID, err)
	}

	// Step 4: external user. The tenant and local record stay in place
	// on failure.
	cloudUserID, err = s.client.CreateUser(ctx, provider.UserSpec{
		TenantID: tenantID,
		Login:    req.Login,
		Contact:  contact,
	})
	if err != nil {
		logrus.WithError(err).WithField("cloud_tenant_id", tenantID).Error("External user creation failed after tenant was provisioned")
		return "", "", nil, fmt.Errorf("tenant %s was created but its user could not be: %w", tenantID, err)
	}

	// The entity is provisioned. Everything below is best-effort.

	// Activation email is fire-and-forget; failures are logged only.
	go func(userID string) {
		if err := s.client.SendActivationEmail(context.Background(), userID); err != nil {
			logrus.WithError(err).WithField("cloud_user_id", userID).Warn("Failed to send activation email")
		}
	}(cloudUserID)

	if err := s.client.EnableApplications(ctx, tenantID, tenantApplications); err != nil {
		warnings = append(warnings, fmt.Sprintf("application bindings failed: %v", err))
	}

	if kind == models.TenantKindPartner {
		if err := s.client.SetOfferingItems(ctx, tenantID, partnerOfferingCatalogue); err != nil {
			warnings = append(warnings, fmt.Sprintf("offering item registration failed: %v", err))
		}
	}

	policies := accessPoliciesForKind(kind, tenantID)
	if err := s.client.SetAccessPolicies(ctx, cloudUserID, policies); err != nil {
		warnings = append(warnings, fmt.Sprintf("access policy bindings failed: %v", err))
	}

	return tenantID, cloudUserID, warnings, nil
}

func accessPoliciesForKind(kind models.TenantKind, tenantID string) []provider.AccessPolicy {
	if kind == models.TenantKindPartner {
		return []provider.AccessPolicy{
			{RoleID: "accounts_viewer", TenantID: tenantID},
			{RoleID: "protection_viewer", TenantID: tenantID},
		}
	}
	return []provider.AccessPolicy{
		{RoleID: "company_admin", TenantID: tenantID},
	}
}

func (s *ProvisioningService) createLocalUser(req *ProvisionTenantRequest, role models.UserRole, partnerID *uuid.UUID, cloudUserID string) error {
	user := &models.User{
		Login:       req.Login,
		Email:       req.ContactEmail,
		Role:        role,
		Status:      models.UserStatusActive,
		PartnerID:   partnerID,
		CloudUserID: cloudUserID,
	}
	return s.db.Create(user).Error
}

func (s *ProvisioningService) ListPartners(params utils.PaginationParams) ([]models.Partner, int64, error) {
	query := s.db.Model(&models.Partner{})
	if params.Search != "" {
		query = query.Where("name ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count partners: %w", err)
	}

	allowedSortFields := []string{"created_at", "name"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var partners []models.Partner
	if err := query.Find(&partners).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch partners: %w", err)
	}

	return partners, total, nil
}

func (s *ProvisioningService) ListCustomers(partnerID *uuid.UUID, params utils.PaginationParams) ([]models.Customer, int64, error) {
	query := s.db.Model(&models.Customer{}).Preload("Partner")
	if partnerID != nil {
		query = query.Where("partner_id = ?", *partnerID)
	}
	if params.Search != "" {
		query = query.Where("name ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	allowedSortFields := []string{"created_at", "name"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var customers []models.Customer
	if err := query.Find(&customers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch customers: %w", err)
	}

	return customers, total, nil
}
