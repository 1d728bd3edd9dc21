// internal/services/license_service_test.go
package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/channelgrid/partner-portal/internal/database"
	"github.com/channelgrid/partner-portal/internal/models"
	"github.com/channelgrid/partner-portal/internal/provider"
	"github.com/channelgrid/partner-portal/internal/utils"
)

// LicenseServiceTestSuite runs against a real PostgreSQL instance. Set
// TEST_DATABASE_URL to run it; without a database the suite is skipped.
type LicenseServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	svc     *LicenseService
	actor   uuid.UUID
	product models.Product
	partner models.Partner
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceTestSuite))
}

func (s *LicenseServiceTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		s.T().Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(database.RunMigrations(db))
	s.db = db
}

func (s *LicenseServiceTestSuite) SetupTest() {
	s.Require().NoError(s.db.Exec(
		"TRUNCATE license_histories, partial_licenses, licenses, customers, partners, products, users CASCADE",
	).Error)

	s.svc = NewLicenseService(s.db, &fakeClient{})
	s.actor = uuid.New()

	s.product = models.Product{
		Name:       "Backup Standard",
		SKU:        "BK-STD",
		Model:      models.BillingModelPerWorkload,
		TermMonths: 12,
		QuotaUnits: 10,
		IsActive:   true,
	}
	s.Require().NoError(s.db.Create(&s.product).Error)

	s.partner = models.Partner{
		Name:         "Acme Resellers",
		CloudID:      "cloud-partner-1",
		ContactEmail: "admin@acme.example",
	}
	s.Require().NoError(s.db.Create(&s.partner).Error)
}

func (s *LicenseServiceTestSuite) createCustomer() models.Customer {
	customer := models.Customer{
		PartnerID:    s.partner.ID,
		Name:         "Acme Customer",
		CloudID:      "cloud-customer-" + uuid.NewString(),
		ContactEmail: "it@customer.example",
	}
	s.Require().NoError(s.db.Create(&customer).Error)
	return customer
}

func (s *LicenseServiceTestSuite) createLicenses(count int) []models.License {
	licenses, err := s.svc.CreateLicenses(s.actor, &CreateLicensesRequest{
		ProductID: s.product.ID,
		Count:     count,
	})
	s.Require().NoError(err)
	s.Require().Len(licenses, count)
	return licenses
}

func (s *LicenseServiceTestSuite) assign(ids []uuid.UUID) *AssignResult {
	result, err := s.svc.AssignLicenses(s.actor, &AssignLicensesRequest{
		LicenseIDs: ids,
		PartnerID:  s.partner.ID,
	})
	s.Require().NoError(err)
	return result
}

func (s *LicenseServiceTestSuite) TestCreateLicenses() {
	licenses := s.createLicenses(3)

	for _, l := range licenses {
		s.Regexp(`^LIC-`, l.SerialNumber)
		s.Len(l.ActivationKey, 32)
		s.Equal(models.LicenseStateUnassigned, l.State(time.Now()))
	}
}

func (s *LicenseServiceTestSuite) TestAssignReportsPartialFailure() {
	licenses := s.createLicenses(2)
	ghost := uuid.New()

	ids := []uuid.UUID{licenses[0].ID, licenses[1].ID, ghost}
	result := s.assign(ids)

	s.Equal(3, result.Requested)
	s.Equal(2, result.Updated)
	s.Equal([]uuid.UUID{ghost}, result.SkippedIDs)

	// History rows exist only for the licenses actually updated.
	var historyCount int64
	s.NoError(s.db.Model(&models.LicenseHistory{}).
		Where("action = ?", models.HistoryActionFirstAssignment).
		Count(&historyCount).Error)
	s.Equal(int64(2), historyCount)
}

func (s *LicenseServiceTestSuite) TestAssignSkipsAlreadyAssigned() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})

	// Second first-assignment attempt finds no unassigned candidate.
	result := s.assign([]uuid.UUID{licenses[0].ID})
	s.Equal(0, result.Updated)
	s.Equal([]uuid.UUID{licenses[0].ID}, result.SkippedIDs)
}

func (s *LicenseServiceTestSuite) TestActivateHappyPath() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	var created models.License
	s.Require().NoError(s.db.First(&created, licenses[0].ID).Error)

	activated, err := s.svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{created.ID},
		CustomerID:    customer.ID,
		ActivationKey: created.ActivationKey,
	})
	s.Require().NoError(err)
	s.Require().Len(activated, 1)

	s.Equal(models.LicenseStateActivated, activated[0].State(time.Now()))
	s.Require().NotNil(activated[0].EndsAt)
	s.Require().NotNil(activated[0].ActivatedAt)
	s.WithinDuration(activated[0].ActivatedAt.AddDate(0, s.product.TermMonths, 0), *activated[0].EndsAt, time.Second)

	var historyCount int64
	s.NoError(s.db.Model(&models.LicenseHistory{}).
		Where("license_id = ? AND action = ?", created.ID, models.HistoryActionActivation).
		Count(&historyCount).Error)
	s.Equal(int64(1), historyCount)
}

func (s *LicenseServiceTestSuite) TestActivateRejectsWrongKey() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	_, err := s.svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{licenses[0].ID},
		CustomerID:    customer.ID,
		ActivationKey: "definitely-not-the-key-000000000",
	})
	s.Require().ErrorIs(err, ErrInvalidKey)

	var reloaded models.License
	s.Require().NoError(s.db.First(&reloaded, licenses[0].ID).Error)
	s.Nil(reloaded.ActivatedAt, "a rejected activation writes nothing")
}

func (s *LicenseServiceTestSuite) TestActivateRejectsSecondActivation() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	var created models.License
	s.Require().NoError(s.db.First(&created, licenses[0].ID).Error)

	req := &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{created.ID},
		CustomerID:    customer.ID,
		ActivationKey: created.ActivationKey,
	}
	_, err := s.svc.ActivateLicense(context.Background(), s.actor, req)
	s.Require().NoError(err)

	_, err = s.svc.ActivateLicense(context.Background(), s.actor, req)
	s.Require().Error(err)
}

func (s *LicenseServiceTestSuite) TestActivateRejectsModelConflict() {
	gigabyteProduct := models.Product{
		Name:       "Storage Pack",
		SKU:        "ST-GB",
		Model:      models.BillingModelPerGigabyte,
		TermMonths: 12,
		QuotaUnits: 500,
		IsActive:   true,
	}
	s.Require().NoError(s.db.Create(&gigabyteProduct).Error)

	workload := s.createLicenses(1)
	gigabyte, err := s.svc.CreateLicenses(s.actor, &CreateLicensesRequest{ProductID: gigabyteProduct.ID, Count: 1})
	s.Require().NoError(err)
	s.assign([]uuid.UUID{workload[0].ID, gigabyte[0].ID})
	customer := s.createCustomer()

	var first models.License
	s.Require().NoError(s.db.First(&first, workload[0].ID).Error)
	_, err = s.svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{first.ID},
		CustomerID:    customer.ID,
		ActivationKey: first.ActivationKey,
	})
	s.Require().NoError(err)

	var second models.License
	s.Require().NoError(s.db.First(&second, gigabyte[0].ID).Error)
	_, err = s.svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{second.ID},
		CustomerID:    customer.ID,
		ActivationKey: second.ActivationKey,
	})

	var conflict *ModelConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(models.BillingModelPerWorkload, conflict.Existing)

	var reloaded models.License
	s.Require().NoError(s.db.First(&reloaded, second.ID).Error)
	s.Nil(reloaded.ActivatedAt, "a conflicting activation writes nothing")
}

func (s *LicenseServiceTestSuite) TestActivateRejectsProviderEditionConflict() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	// The provider already has the other edition enabled for this tenant.
	svc := NewLicenseService(s.db, &fakeClient{
		getOfferingItems: func(ctx context.Context, tenantID, edition string) ([]provider.OfferingItem, error) {
			s.Equal(customer.CloudID, tenantID)
			return []provider.OfferingItem{
				{Name: "storage_total", Edition: string(models.BillingModelPerGigabyte), Status: 1},
			}, nil
		},
	})

	var created models.License
	s.Require().NoError(s.db.First(&created, licenses[0].ID).Error)
	_, err := svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{created.ID},
		CustomerID:    customer.ID,
		ActivationKey: created.ActivationKey,
	})

	var conflict *ProviderModelConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(string(models.BillingModelPerGigabyte), conflict.Enabled)
	s.Equal(models.BillingModelPerWorkload, conflict.Candidate)

	var reloaded models.License
	s.Require().NoError(s.db.First(&reloaded, created.ID).Error)
	s.Nil(reloaded.ActivatedAt, "a provider edition conflict writes nothing")

	var historyCount int64
	s.NoError(s.db.Model(&models.LicenseHistory{}).
		Where("license_id = ? AND action = ?", created.ID, models.HistoryActionActivation).
		Count(&historyCount).Error)
	s.Equal(int64(0), historyCount)
}

func (s *LicenseServiceTestSuite) TestActivateAbortsWhenProviderDown() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	svc := NewLicenseService(s.db, &fakeClient{
		getOfferingItems: func(ctx context.Context, tenantID, edition string) ([]provider.OfferingItem, error) {
			return nil, fmt.Errorf("%w: offering endpoint timed out", provider.ErrUnavailable)
		},
	})

	var created models.License
	s.Require().NoError(s.db.First(&created, licenses[0].ID).Error)
	_, err := svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{created.ID},
		CustomerID:    customer.ID,
		ActivationKey: created.ActivationKey,
	})
	s.Require().ErrorIs(err, provider.ErrUnavailable)

	var reloaded models.License
	s.Require().NoError(s.db.First(&reloaded, created.ID).Error)
	s.Nil(reloaded.ActivatedAt, "no write when the provider cannot be consulted")
}

func (s *LicenseServiceTestSuite) TestSplitEnforcesQuota() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	var created models.License
	s.Require().NoError(s.db.First(&created, licenses[0].ID).Error)
	_, err := s.svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{created.ID},
		CustomerID:    customer.ID,
		ActivationKey: created.ActivationKey,
	})
	s.Require().NoError(err)

	license, err := s.svc.SplitLicense(context.Background(), s.actor, created.ID, &SplitLicenseRequest{
		Partials: []PartialAllocation{
			{Label: "site-a", AllocatedUnits: 6},
			{Label: "site-b", AllocatedUnits: 4},
		},
	})
	s.Require().NoError(err)
	s.Len(license.Partials, 2)

	// Quota is exhausted, one more unit must be rejected.
	_, err = s.svc.SplitLicense(context.Background(), s.actor, created.ID, &SplitLicenseRequest{
		Partials: []PartialAllocation{{Label: "site-c", AllocatedUnits: 1}},
	})
	var quotaErr *QuotaExceededError
	s.Require().ErrorAs(err, &quotaErr)
	s.Equal(int64(10), quotaErr.Quota)
}

func (s *LicenseServiceTestSuite) TestSplitRequiresActivation() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})

	_, err := s.svc.SplitLicense(context.Background(), s.actor, licenses[0].ID, &SplitLicenseRequest{
		Partials: []PartialAllocation{{Label: "site-a", AllocatedUnits: 1}},
	})
	s.Require().Error(err)
}

func (s *LicenseServiceTestSuite) TestDepartializeRemovesAllPartials() {
	licenses := s.createLicenses(1)
	s.assign([]uuid.UUID{licenses[0].ID})
	customer := s.createCustomer()

	var created models.License
	s.Require().NoError(s.db.First(&created, licenses[0].ID).Error)
	_, err := s.svc.ActivateLicense(context.Background(), s.actor, &ActivateLicenseRequest{
		LicenseIDs:    []uuid.UUID{created.ID},
		CustomerID:    customer.ID,
		ActivationKey: created.ActivationKey,
	})
	s.Require().NoError(err)

	_, err = s.svc.SplitLicense(context.Background(), s.actor, created.ID, &SplitLicenseRequest{
		Partials: []PartialAllocation{{Label: "site-a", AllocatedUnits: 3}},
	})
	s.Require().NoError(err)

	license, err := s.svc.DepartializeLicense(context.Background(), s.actor, created.ID)
	s.Require().NoError(err)
	s.Empty(license.Partials)
	s.Equal(models.LicenseStateActivated, license.State(time.Now()))
}

func (s *LicenseServiceTestSuite) TestSearchByDerivedState() {
	licenses := s.createLicenses(3)
	s.assign([]uuid.UUID{licenses[0].ID})

	page := utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}

	state := models.LicenseStateUnassigned
	found, total, err := s.svc.SearchLicenses(LicenseSearchParams{PaginationParams: page, State: &state})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(found, 2)

	state = models.LicenseStateAssigned
	_, total, err = s.svc.SearchLicenses(LicenseSearchParams{PaginationParams: page, State: &state})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *LicenseServiceTestSuite) TestStats() {
	licenses := s.createLicenses(4)
	s.assign([]uuid.UUID{licenses[0].ID, licenses[1].ID})

	stats, err := s.svc.GetLicenseStats()
	s.Require().NoError(err)
	s.Equal(int64(4), stats.Total)
	s.Equal(int64(2), stats.Unassigned)
	s.Equal(int64(2), stats.Assigned)
	s.Equal(int64(4), stats.PerModel[string(models.BillingModelPerWorkload)])
}

// The per-license lock is not reentrant, so a batch listing the same id
// twice must be rejected up front instead of blocking on itself. Needs
// no database: the guard fires before any query or lock acquisition.
func TestActivateRejectsDuplicateLicenseIDs(t *testing.T) {
	svc := NewLicenseService(nil, &fakeClient{})
	id := uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := svc.ActivateLicense(context.Background(), uuid.New(), &ActivateLicenseRequest{
			LicenseIDs:    []uuid.UUID{id, id},
			CustomerID:    uuid.New(),
			ActivationKey: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrValidation)
	case <-time.After(2 * time.Second):
		t.Fatal("ActivateLicense did not return, duplicate ids deadlocked the lock")
	}
}
