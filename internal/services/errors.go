// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/channelgrid/partner-portal/internal/models"
)

// Sentinel errors shared across services. Handlers branch on these with
// errors.Is; messages stay human-readable because the presentation layer
// displays them verbatim.
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("activation key does not match")
	ErrValidation = errors.New("validation failed")
)

// ModelConflictError is returned when a customer already holds activated
// licenses of one billing model and a license of the other is activated.
type ModelConflictError struct {
	Existing  models.BillingModel
	Candidate models.BillingModel
}

func (e *ModelConflictError) Error() string {
	return fmt.Sprintf("customer is already licensed under the %s model, cannot activate a %s license", e.Existing, e.Candidate)
}

// ProviderModelConflictError is returned when the provider has an edition
// enabled for the tenant that conflicts with the candidate license. It
// guards against drift between local and provider state.
type ProviderModelConflictError struct {
	Enabled   string
	Candidate models.BillingModel
}

func (e *ProviderModelConflictError) Error() string {
	return fmt.Sprintf("provider has edition %q enabled for this tenant, which conflicts with the %s license", e.Enabled, e.Candidate)
}

// QuotaExceededError is returned when a split would push the sum of
// partial allocations past the parent product's quota.
type QuotaExceededError struct {
	Allocated int64
	Requested int64
	Quota     int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("partial allocations would total %d units against a quota of %d", e.Allocated+e.Requested, e.Quota)
}
