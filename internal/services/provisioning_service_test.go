// internal/services/provisioning_service_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelgrid/partner-portal/internal/models"
	"github.com/channelgrid/partner-portal/internal/provider"
)

func provisionRequest() *ProvisionTenantRequest {
	return &ProvisionTenantRequest{
		Name:         "Acme Resellers",
		Login:        "acme.admin",
		ContactEmail: "admin@acme.example",
		ContactName:  "Ada",
		Country:      "DE",
	}
}

func TestProvisionTenantRejectsTakenLogin(t *testing.T) {
	var tenantCreated bool
	client := &fakeClient{
		checkLoginAvailable: func(ctx context.Context, login string) (bool, error) {
			return false, nil
		},
		createTenant: func(ctx context.Context, spec provider.TenantSpec) (string, error) {
			tenantCreated = true
			return "", nil
		},
	}
	svc := &ProvisioningService{client: client}

	_, _, _, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root", func(string) error { return nil })
	require.ErrorIs(t, err, ErrValidation)
	assert.False(t, tenantCreated, "no side effects after a failed precondition")
}

func TestProvisionTenantAbortsWhenProviderDown(t *testing.T) {
	client := &fakeClient{
		checkLoginAvailable: func(ctx context.Context, login string) (bool, error) {
			return false, fmt.Errorf("%w: timeout", provider.ErrUnavailable)
		},
	}
	svc := &ProvisioningService{client: client}

	_, _, _, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root", func(string) error { return nil })
	require.ErrorIs(t, err, provider.ErrUnavailable)
}

func TestProvisionTenantAbortsOnTenantCreateFailure(t *testing.T) {
	var localCalled bool
	client := &fakeClient{
		createTenant: func(ctx context.Context, spec provider.TenantSpec) (string, error) {
			return "", fmt.Errorf("%w: 503", provider.ErrUnavailable)
		},
	}
	svc := &ProvisioningService{client: client}

	_, _, _, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root", func(string) error {
		localCalled = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, localCalled)
}

func TestProvisionTenantReportsOrphanOnLocalFailure(t *testing.T) {
	var userCreated bool
	client := &fakeClient{
		createTenant: func(ctx context.Context, spec provider.TenantSpec) (string, error) {
			return "t-orphan", nil
		},
		createUser: func(ctx context.Context, spec provider.UserSpec) (string, error) {
			userCreated = true
			return "u-1", nil
		},
	}
	svc := &ProvisioningService{client: client}

	_, _, _, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root", func(string) error {
		return errors.New("disk full")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t-orphan", "the orphaned tenant id must be surfaced for remediation")
	assert.False(t, userCreated, "sequence stops at the failed step")
}

func TestProvisionTenantAbortsOnUserCreateFailure(t *testing.T) {
	client := &fakeClient{
		createUser: func(ctx context.Context, spec provider.UserSpec) (string, error) {
			return "", fmt.Errorf("%w: 500", provider.ErrUnavailable)
		},
	}
	svc := &ProvisioningService{client: client}

	_, _, _, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root", func(string) error { return nil })
	require.Error(t, err)
}

func TestProvisionPartnerTenantHappyPath(t *testing.T) {
	var (
		tenantSpec   provider.TenantSpec
		enabledApps  []string
		offeringSet  []provider.OfferingItem
		policiesSet  []provider.AccessPolicy
		policyUserID string
	)
	client := &fakeClient{
		createTenant: func(ctx context.Context, spec provider.TenantSpec) (string, error) {
			tenantSpec = spec
			return "t-1", nil
		},
		createUser: func(ctx context.Context, spec provider.UserSpec) (string, error) {
			assert.Equal(t, "t-1", spec.TenantID)
			assert.Equal(t, "acme.admin", spec.Login)
			return "u-1", nil
		},
		enableApplications: func(ctx context.Context, tenantID string, applicationIDs []string) error {
			enabledApps = applicationIDs
			return nil
		},
		setOfferingItems: func(ctx context.Context, tenantID string, items []provider.OfferingItem) error {
			offeringSet = items
			return nil
		},
		setAccessPolicies: func(ctx context.Context, userID string, policies []provider.AccessPolicy) error {
			policyUserID = userID
			policiesSet = policies
			return nil
		},
	}
	svc := &ProvisioningService{client: client}

	var localTenantID string
	tenantID, cloudUserID, warnings, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root-tenant", func(id string) error {
		localTenantID = id
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", tenantID)
	assert.Equal(t, "t-1", localTenantID)
	assert.Equal(t, "u-1", cloudUserID)
	assert.Empty(t, warnings)

	assert.Equal(t, "partner", tenantSpec.Kind)
	assert.Equal(t, "root-tenant", tenantSpec.ParentID)
	assert.Equal(t, "admin@acme.example", tenantSpec.Contact.Email)

	assert.ElementsMatch(t, tenantApplications, enabledApps)
	assert.Equal(t, partnerOfferingCatalogue, offeringSet)

	assert.Equal(t, "u-1", policyUserID)
	require.Len(t, policiesSet, 2)
	assert.Equal(t, "accounts_viewer", policiesSet[0].RoleID)
	assert.Equal(t, "protection_viewer", policiesSet[1].RoleID)
}

func TestProvisionCustomerTenantSkipsOfferingItems(t *testing.T) {
	var offeringCalled bool
	var policiesSet []provider.AccessPolicy
	client := &fakeClient{
		setOfferingItems: func(ctx context.Context, tenantID string, items []provider.OfferingItem) error {
			offeringCalled = true
			return nil
		},
		setAccessPolicies: func(ctx context.Context, userID string, policies []provider.AccessPolicy) error {
			policiesSet = policies
			return nil
		},
	}
	svc := &ProvisioningService{client: client}

	_, _, warnings, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindCustomer, "parent-cloud-id", func(string) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.False(t, offeringCalled, "offering items are registered on partner tenants only")

	require.Len(t, policiesSet, 1)
	assert.Equal(t, "company_admin", policiesSet[0].RoleID)
}

func TestProvisionTenantCollectsWarnings(t *testing.T) {
	client := &fakeClient{
		enableApplications: func(ctx context.Context, tenantID string, applicationIDs []string) error {
			return errors.New("applications endpoint rejected the request")
		},
		setOfferingItems: func(ctx context.Context, tenantID string, items []provider.OfferingItem) error {
			return errors.New("offering endpoint is flaky")
		},
		setAccessPolicies: func(ctx context.Context, userID string, policies []provider.AccessPolicy) error {
			return errors.New("policy endpoint is flaky")
		},
	}
	svc := &ProvisioningService{client: client}

	tenantID, _, warnings, err := svc.provisionTenant(context.Background(), provisionRequest(), models.TenantKindPartner, "root", func(string) error { return nil })
	require.NoError(t, err, "enhancement failures never fail the provisioned tenant")
	assert.Equal(t, "tenant-id", tenantID)
	assert.Len(t, warnings, 3)
}

func TestAccessPoliciesForKind(t *testing.T) {
	partner := accessPoliciesForKind(models.TenantKindPartner, "t-1")
	require.Len(t, partner, 2)
	for _, p := range partner {
		assert.Equal(t, "t-1", p.TenantID)
	}

	customer := accessPoliciesForKind(models.TenantKindCustomer, "t-2")
	require.Len(t, customer, 1)
	assert.Equal(t, "company_admin", customer[0].RoleID)
}
