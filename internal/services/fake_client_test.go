// internal/services/fake_client_test.go
package services

import (
	"context"

	"github.com/channelgrid/partner-portal/internal/provider"
)

// fakeClient implements provider.Client with per-call hooks. Unset hooks
// answer with zero values so each test only wires what it asserts on.
type fakeClient struct {
	createTenant        func(ctx context.Context, spec provider.TenantSpec) (string, error)
	getTenant           func(ctx context.Context, id string) (*provider.Tenant, error)
	checkLoginAvailable func(ctx context.Context, login string) (bool, error)
	createUser          func(ctx context.Context, spec provider.UserSpec) (string, error)
	sendActivationEmail func(ctx context.Context, userID string) error
	enableApplications  func(ctx context.Context, tenantID string, applicationIDs []string) error
	setOfferingItems    func(ctx context.Context, tenantID string, items []provider.OfferingItem) error
	getOfferingItems    func(ctx context.Context, tenantID, edition string) ([]provider.OfferingItem, error)
	setAccessPolicies   func(ctx context.Context, userID string, policies []provider.AccessPolicy) error
	getUsages           func(ctx context.Context, tenantIDs, usageNames, editions []string) ([]provider.Usage, error)
}

func (f *fakeClient) CreateTenant(ctx context.Context, spec provider.TenantSpec) (string, error) {
	if f.createTenant != nil {
		return f.createTenant(ctx, spec)
	}
	return "tenant-id", nil
}

func (f *fakeClient) GetTenant(ctx context.Context, id string) (*provider.Tenant, error) {
	if f.getTenant != nil {
		return f.getTenant(ctx, id)
	}
	return &provider.Tenant{ID: id}, nil
}

func (f *fakeClient) CheckLoginAvailable(ctx context.Context, login string) (bool, error) {
	if f.checkLoginAvailable != nil {
		return f.checkLoginAvailable(ctx, login)
	}
	return true, nil
}

func (f *fakeClient) CreateUser(ctx context.Context, spec provider.UserSpec) (string, error) {
	if f.createUser != nil {
		return f.createUser(ctx, spec)
	}
	return "user-id", nil
}

func (f *fakeClient) SendActivationEmail(ctx context.Context, userID string) error {
	if f.sendActivationEmail != nil {
		return f.sendActivationEmail(ctx, userID)
	}
	return nil
}

func (f *fakeClient) EnableApplications(ctx context.Context, tenantID string, applicationIDs []string) error {
	if f.enableApplications != nil {
		return f.enableApplications(ctx, tenantID, applicationIDs)
	}
	return nil
}

func (f *fakeClient) SetOfferingItems(ctx context.Context, tenantID string, items []provider.OfferingItem) error {
	if f.setOfferingItems != nil {
		return f.setOfferingItems(ctx, tenantID, items)
	}
	return nil
}

func (f *fakeClient) GetOfferingItems(ctx context.Context, tenantID, edition string) ([]provider.OfferingItem, error) {
	if f.getOfferingItems != nil {
		return f.getOfferingItems(ctx, tenantID, edition)
	}
	return nil, nil
}

func (f *fakeClient) SetAccessPolicies(ctx context.Context, userID string, policies []provider.AccessPolicy) error {
	if f.setAccessPolicies != nil {
		return f.setAccessPolicies(ctx, userID, policies)
	}
	return nil
}

func (f *fakeClient) GetUsages(ctx context.Context, tenantIDs, usageNames, editions []string) ([]provider.Usage, error) {
	if f.getUsages != nil {
		return f.getUsages(ctx, tenantIDs, usageNames, editions)
	}
	return nil, nil
}
