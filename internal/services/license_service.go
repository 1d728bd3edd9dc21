// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/channelgrid/partner-portal/internal/database"
	"github.com/channelgrid/partner-portal/internal/lifecycle"
	"github.com/channelgrid/partner-portal/internal/models"
	"github.com/channelgrid/partner-portal/internal/provider"
	"github.com/channelgrid/partner-portal/internal/utils"
)

type LicenseService struct {
	db        *gorm.DB
	client    provider.Client
	validator *lifecycle.Validator
	locks     *licenseLocks
}

type CreateLicensesRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	Count     int        `json:"count" validate:"required,min=1,max=1000"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type AssignLicensesRequest struct {
	LicenseIDs    []uuid.UUID `json:"license_ids" validate:"required,min=1"`
	PartnerID     uuid.UUID   `json:"partner_id" validate:"required"`
	FromPartnerID *uuid.UUID  `json:"from_partner_id,omitempty"`
}

// AssignResult reports exactly how many of the requested licenses were
// updated. Callers must treat Updated < Requested as partial failure.
type AssignResult struct {
	Requested  int         `json:"requested"`
	Updated    int         `json:"updated"`
	SkippedIDs []uuid.UUID `json:"skipped_ids,omitempty"`
}

type ActivateLicenseRequest struct {
	LicenseIDs    []uuid.UUID `json:"license_ids" validate:"required,min=1"`
	CustomerID    uuid.UUID   `json:"customer_id" validate:"required"`
	ActivationKey string      `json:"activation_key" validate:"required"`
}

type SplitLicenseRequest struct {
	Partials []PartialAllocation `json:"partials" validate:"required,min=1,dive"`
}

type PartialAllocation struct {
	Label          string `json:"label" validate:"required"`
	AllocatedUnits int64  `json:"allocated_units" validate:"required,min=1"`
}

type LicenseSearchParams struct {
	utils.PaginationParams
	ProductID      *uuid.UUID           `json:"product_id,omitempty"`
	PartnerID      *uuid.UUID           `json:"partner_id,omitempty"`
	CustomerID     *uuid.UUID           `json:"customer_id,omitempty"`
	State          *models.LicenseState `json:"state,omitempty"`
	ExpiringBefore *time.Time           `json:"expiring_before,omitempty"`
}

func NewLicenseService(db *gorm.DB, client provider.Client) *LicenseService {
	return &LicenseService{
		db:        db,
		client:    client,
		validator: lifecycle.New(),
		locks:     newLicenseLocks(),
	}
}

// CreateLicenses mints a batch of unassigned licenses for a product, each
// with a generated serial number and activation key.
func (s *LicenseService) CreateLicenses(actorID uuid.UUID, req *CreateLicensesRequest) ([]models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var product models.Product
	if err := s.db.First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !product.IsActive {
		return nil, fmt.Errorf("%w: product %s is not active", ErrValidation, product.SKU)
	}

	licenses := make([]models.License, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		serial, err := utils.GenerateSerialNumber()
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial number: %w", err)
		}
		key, err := utils.GenerateActivationKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate activation key: %w", err)
		}
		licenses = append(licenses, models.License{
			SerialNumber:  serial,
			ActivationKey: key,
			ProductID:     product.ID,
			ExpiresAt:     req.ExpiresAt,
			CreatedBy:     actorID,
		})
	}

	if err := s.db.Create(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to create licenses: %w", err)
	}

	return licenses, nil
}

// AssignLicenses sets the partner on a batch of licenses. The eligible
// set is resolved under row locks inside one transaction, so history rows
// are written only for licenses that were actually updated. Licenses that
// already have a customer, are expired, or are not held by the expected
// source partner are skipped and reported.
func (s *LicenseService) AssignLicenses(actorID uuid.UUID, req *AssignLicensesRequest) (*AssignResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var partner models.Partner
	if err := s.db.First(&partner, req.PartnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("partner %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	event := models.EventAssign
	if req.FromPartnerID != nil {
		event = models.EventReassign
	}

	result := &AssignResult{Requested: len(req.LicenseIDs)}
	now := time.Now()

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var candidates []models.License
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", req.LicenseIDs).
			Where("customer_id IS NULL")
		if req.FromPartnerID != nil {
			query = query.Where("partner_id = ?", *req.FromPartnerID)
		} else {
			query = query.Where("partner_id IS NULL")
		}
		if err := query.Find(&candidates).Error; err != nil {
			return fmt.Errorf("failed to load licenses: %w", err)
		}

		eligible := make([]uuid.UUID, 0, len(candidates))
		for i := range candidates {
			if _, err := s.validator.Apply(context.Background(), candidates[i].State(now), event); err != nil {
				continue
			}
			eligible = append(eligible, candidates[i].ID)
		}

		if len(eligible) > 0 {
			res := tx.Model(&models.License{}).
				Where("id IN ?", eligible).
				Updates(map[string]interface{}{
					"partner_id":  req.PartnerID,
					"assigned_at": now,
					"updated_by":  actorID,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to assign licenses: %w", res.Error)
			}
			result.Updated = int(res.RowsAffected)

			action := models.HistoryActionAssignment
			if req.FromPartnerID == nil {
				action = models.HistoryActionFirstAssignment
			}

			history := make([]models.LicenseHistory, 0, len(eligible))
			partnerID := req.PartnerID
			for _, id := range eligible {
				history = append(history, models.LicenseHistory{
					LicenseID:         id,
					Action:            action,
					PreviousPartnerID: req.FromPartnerID,
					PartnerID:         &partnerID,
					ActorID:           actorID,
				})
			}
			if err := tx.Create(&history).Error; err != nil {
				return fmt.Errorf("failed to record license history: %w", err)
			}
		}

		updated := make(map[uuid.UUID]bool, len(eligible))
		for _, id := range eligible {
			updated[id] = true
		}
		for _, id := range req.LicenseIDs {
			if !updated[id] {
				result.SkippedIDs = append(result.SkippedIDs, id)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ActivateLicense activates the requested licenses for a customer. The
// presented key is checked against the first license, which is
// authoritative for the batch. All checks and the final write happen
// under per-license locks, in order: local model conflict, provider
// edition conflict, key match. The provider read-to-write gap against
// other portal instances remains; the in-process lock covers the stated
// single-instance deployment.
func (s *LicenseService) ActivateLicense(ctx context.Context, actorID uuid.UUID, req *ActivateLicenseRequest) ([]models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// The locks below are not reentrant, so a repeated id would block on
	// itself. Rejecting duplicates also keeps the batch unambiguous.
	seen := make(map[uuid.UUID]struct{}, len(req.LicenseIDs))
	for _, id := range req.LicenseIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: license id %s appears more than once", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	// Lock in sorted order so concurrent batches cannot deadlock.
	lockOrder := make([]uuid.UUID, len(req.LicenseIDs))
	copy(lockOrder, req.LicenseIDs)
	sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i].String() < lockOrder[j].String() })
	for _, id := range lockOrder {
		s.locks.Lock(id)
	}
	defer func() {
		for _, id := range lockOrder {
			s.locks.Unlock(id)
		}
	}()

	var customer models.Customer
	if err := s.db.First(&customer, req.CustomerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("customer %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := time.Now()
	licenses := make([]models.License, 0, len(req.LicenseIDs))
	for _, id := range req.LicenseIDs {
		var license models.License
		if err := s.db.Preload("Product").First(&license, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("license %s %w", id, ErrNotFound)
			}
			return nil, fmt.Errorf("database error: %w", err)
		}

		if _, err := s.validator.Apply(ctx, license.State(now), models.EventActivate); err != nil {
			return nil, err
		}
		if license.PartnerID == nil || *license.PartnerID != customer.PartnerID {
			return nil, fmt.Errorf("%w: license %s is not assigned to the customer's partner", ErrValidation, license.SerialNumber)
		}

		licenses = append(licenses, license)
	}

	candidateModel := licenses[0].Product.Model
	for i := range licenses {
		if licenses[i].Product.Model != candidateModel {
			return nil, fmt.Errorf("%w: licenses in one activation must share a billing model", ErrValidation)
		}
	}

	// Step 1-3: the customer's existing activated licenses fix the model.
	var existing models.License
	err := s.db.Preload("Product").
		Where("customer_id = ? AND activated_at IS NOT NULL", customer.ID).
		First(&existing).Error
	switch {
	case err == nil:
		if existing.Product.Model != candidateModel {
			return nil, &ModelConflictError{Existing: existing.Product.Model, Candidate: candidateModel}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First activation for this customer.
	default:
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Step 4: the provider's enabled edition must not conflict either.
	items, err := s.client.GetOfferingItems(ctx, customer.CloudID, "")
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read offering items: %w", err)
	}
	for _, item := range items {
		if item.Status == 1 && item.Edition != "" && item.Edition != string(candidateModel) {
			return nil, &ProviderModelConflictError{Enabled: item.Edition, Candidate: candidateModel}
		}
	}

	// Step 5: key check against the first license.
	if licenses[0].ActivationKey != req.ActivationKey {
		return nil, ErrInvalidKey
	}

	// Step 6: write customer + activation and the ledger rows atomically.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range licenses {
			license := &licenses[i]
			endsAt := now.AddDate(0, license.Product.TermMonths, 0)

			res := tx.Model(&models.License{}).
				Where("id = ? AND customer_id IS NULL AND activated_at IS NULL", license.ID).
				Updates(map[string]interface{}{
					"customer_id":  customer.ID,
					"activated_at": now,
					"ends_at":      endsAt,
					"updated_by":   actorID,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to activate license %s: %w", license.SerialNumber, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("license %s is no longer activatable: %w", license.SerialNumber, ErrNotFound)
			}

			history := models.LicenseHistory{
				LicenseID:         license.ID,
				Action:            models.HistoryActionActivation,
				PreviousPartnerID: license.PartnerID,
				PartnerID:         license.PartnerID,
				CustomerID:        &customer.ID,
				ActorID:           actorID,
			}
			if err := tx.Create(&history).Error; err != nil {
				return fmt.Errorf("failed to record license history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var activated []models.License
	if err := s.db.Preload("Product").Preload("Partner").Preload("Customer").
		Where("id IN ?", req.LicenseIDs).Find(&activated).Error; err != nil {
		return nil, fmt.Errorf("failed to reload licenses: %w", err)
	}

	return activated, nil
}

// SplitLicense carves partial allocations out of an activated license.
// The sum of allocations never exceeds the product quota.
func (s *LicenseService) SplitLicense(ctx context.Context, actorID, licenseID uuid.UUID, req *SplitLicenseRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.locks.Lock(licenseID)
	defer s.locks.Unlock(licenseID)

	var license models.License
	if err := s.db.Preload("Product").Preload("Partials").First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("license %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if _, err := s.validator.Apply(ctx, license.State(time.Now()), models.EventSplit); err != nil {
		return nil, err
	}

	var allocated int64
	for _, p := range license.Partials {
		allocated += p.AllocatedUnits
	}
	var requested int64
	for _, p := range req.Partials {
		requested += p.AllocatedUnits
	}
	if allocated+requested > license.Product.QuotaUnits {
		return nil, &QuotaExceededError{Allocated: allocated, Requested: requested, Quota: license.Product.QuotaUnits}
	}

	partials := make([]models.PartialLicense, 0, len(req.Partials))
	for _, p := range req.Partials {
		partials = append(partials, models.PartialLicense{
			LicenseID:      license.ID,
			Label:          p.Label,
			AllocatedUnits: p.AllocatedUnits,
			CreatedBy:      actorID,
		})
	}
	if err := s.db.Create(&partials).Error; err != nil {
		return nil, fmt.Errorf("failed to create partial licenses: %w", err)
	}

	if err := s.db.Preload("Product").Preload("Partials").First(&license, licenseID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload license: %w", err)
	}
	return &license, nil
}

// DepartializeLicense removes all partial allocations from a license.
// It reverts the split, not the activation.
func (s *LicenseService) DepartializeLicense(ctx context.Context, actorID, licenseID uuid.UUID) (*models.License, error) {
	s.locks.Lock(licenseID)
	defer s.locks.Unlock(licenseID)

	var license models.License
	if err := s.db.Preload("Product").First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("license %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if _, err := s.validator.Apply(ctx, license.State(time.Now()), models.EventDepartialize); err != nil {
		return nil, err
	}

	if err := s.db.Where("license_id = ?", license.ID).Delete(&models.PartialLicense{}).Error; err != nil {
		return nil, fmt.Errorf("failed to remove partial licenses: %w", err)
	}

	if err := s.db.Model(&license).Update("updated_by", actorID).Error; err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}

	if err := s.db.Preload("Product").Preload("Partials").First(&license, licenseID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload license: %w", err)
	}
	return &license, nil
}

func (s *LicenseService) GetLicense(id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("Product").Preload("Partner").Preload("Customer").
		Preload("Partials").Preload("History").
		First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("license %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

func (s *LicenseService) SearchLicenses(params LicenseSearchParams) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{}).
		Preload("Product").Preload("Partner").Preload("Customer")

	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.PartnerID != nil {
		query = query.Where("partner_id = ?", *params.PartnerID)
	}
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.ExpiringBefore != nil {
		query = query.Where("expires_at < ?", *params.ExpiringBefore)
	}
	if params.State != nil {
		query = applyStateFilter(query, *params.State, time.Now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "assigned_at", "activated_at", "expires_at", "serial_number"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

// applyStateFilter translates the derived state into SQL conditions. The
// conditions mirror License.State exactly.
func applyStateFilter(query *gorm.DB, state models.LicenseState, now time.Time) *gorm.DB {
	switch state {
	case models.LicenseStateUnassigned:
		return query.Where("partner_id IS NULL AND customer_id IS NULL AND (expires_at IS NULL OR expires_at >= ?)", now)
	case models.LicenseStateAssigned:
		return query.Where("partner_id IS NOT NULL AND activated_at IS NULL AND (expires_at IS NULL OR expires_at >= ?)", now)
	case models.LicenseStateActivated:
		return query.Where("activated_at IS NOT NULL AND (ends_at IS NULL OR ends_at >= ?)", now)
	case models.LicenseStateCompleted:
		return query.Where("activated_at IS NOT NULL AND ends_at < ?", now)
	case models.LicenseStateExpired:
		return query.Where("activated_at IS NULL AND expires_at < ?", now)
	default:
		return query
	}
}

// LicenseStats summarizes the pool for the dashboard.
type LicenseStats struct {
	Total      int64            `json:"total"`
	Unassigned int64            `json:"unassigned"`
	Assigned   int64            `json:"assigned"`
	Activated  int64            `json:"activated"`
	Completed  int64            `json:"completed"`
	Expired    int64            `json:"expired"`
	PerModel   map[string]int64 `json:"per_model"`
}

func (s *LicenseService) GetLicenseStats() (*LicenseStats, error) {
	stats := &LicenseStats{PerModel: make(map[string]int64)}
	now := time.Now()

	if err := s.db.Model(&models.License{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count licenses: %w", err)
	}

	counts := map[models.LicenseState]*int64{
		models.LicenseStateUnassigned: &stats.Unassigned,
		models.LicenseStateAssigned:   &stats.Assigned,
		models.LicenseStateActivated:  &stats.Activated,
		models.LicenseStateCompleted:  &stats.Completed,
		models.LicenseStateExpired:    &stats.Expired,
	}
	for state, target := range counts {
		query := applyStateFilter(s.db.Model(&models.License{}), state, now)
		if err := query.Count(target).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s licenses: %w", state, err)
		}
	}

	for _, model := range []models.BillingModel{models.BillingModelPerWorkload, models.BillingModelPerGigabyte} {
		var count int64
		err := s.db.Model(&models.License{}).
			Joins("JOIN products ON products.id = licenses.product_id").
			Where("products.model = ?", model).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count %s licenses: %w", model, err)
		}
		stats.PerModel[string(model)] = count
	}

	return stats, nil
}
