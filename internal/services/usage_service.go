// internal/services/usage_service.go
package services

import (
	"context"
	"fmt"

	"github.com/channelgrid/partner-portal/internal/models"
	"github.com/channelgrid/partner-portal/internal/provider"
)

// UsageService reconciles per-tenant consumption against provider-side
// quotas. It never synthesizes values: a provider failure fails the whole
// call, because a zeroed usage is indistinguishable from "no usage".
type UsageService struct {
	client provider.Client
}

// ModelUsage is consumption vs quota for one billing model. A nil Quota
// means no offering item is bound, which consumers read as unlimited.
type ModelUsage struct {
	Value int64  `json:"value"`
	Quota *int64 `json:"quota,omitempty"`
}

type TenantUsage struct {
	PerWorkload ModelUsage `json:"per_workload"`
	PerGigabyte ModelUsage `json:"per_gigabyte"`
}

// usageNamesByModel is the fixed set of usage dimensions queried per
// billing model. It mirrors the offering catalogue registered on partner
// tenants during provisioning.
var usageNamesByModel = map[models.BillingModel][]string{
	models.BillingModelPerWorkload: {"workloads", "servers", "vms"},
	models.BillingModelPerGigabyte: {"storage_total", "local_storage"},
}

func NewUsageService(client provider.Client) *UsageService {
	return &UsageService{client: client}
}

// GetReconciledUsage queries the provider's batched usage endpoint for
// the given cloud tenant ids and folds the records into one value/quota
// pair per billing model per tenant.
func (s *UsageService) GetReconciledUsage(ctx context.Context, cloudTenantIDs []string) (map[string]TenantUsage, error) {
	if len(cloudTenantIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one tenant id is required", ErrValidation)
	}

	names := make([]string, 0)
	editions := make([]string, 0, len(usageNamesByModel))
	for model, modelNames := range usageNamesByModel {
		names = append(names, modelNames...)
		editions = append(editions, string(model))
	}

	usages, err := s.client.GetUsages(ctx, cloudTenantIDs, names, editions)
	if err != nil {
		return nil, err
	}

	result := make(map[string]TenantUsage, len(cloudTenantIDs))
	for _, id := range cloudTenantIDs {
		result[id] = TenantUsage{}
	}

	for _, usage := range usages {
		entry, exists := result[usage.TenantID]
		if !exists {
			continue
		}

		switch models.BillingModel(usage.Edition) {
		case models.BillingModelPerWorkload:
			entry.PerWorkload = foldUsage(entry.PerWorkload, usage)
		case models.BillingModelPerGigabyte:
			entry.PerGigabyte = foldUsage(entry.PerGigabyte, usage)
		}

		result[usage.TenantID] = entry
	}

	return result, nil
}

func foldUsage(current ModelUsage, usage provider.Usage) ModelUsage {
	current.Value += usage.Value

	if usage.Offering != nil && usage.Offering.Quota != nil && usage.Offering.Quota.Value != nil {
		quota := *usage.Offering.Quota.Value
		if current.Quota == nil {
			current.Quota = &quota
		} else {
			*current.Quota += quota
		}
	}

	return current
}
