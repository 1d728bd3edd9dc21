// internal/lifecycle/validator_test.go
package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelgrid/partner-portal/internal/models"
)

func TestValidatorApply(t *testing.T) {
	v := New()
	ctx := context.Background()

	tests := []struct {
		name    string
		current models.LicenseState
		event   models.Event
		want    models.LicenseState
		wantErr bool
	}{
		{"assign from unassigned", models.LicenseStateUnassigned, models.EventAssign, models.LicenseStateAssigned, false},
		{"activate from assigned", models.LicenseStateAssigned, models.EventActivate, models.LicenseStateActivated, false},
		{"reassign keeps assigned", models.LicenseStateAssigned, models.EventReassign, models.LicenseStateAssigned, false},
		{"split keeps activated", models.LicenseStateActivated, models.EventSplit, models.LicenseStateActivated, false},
		{"departialize keeps activated", models.LicenseStateActivated, models.EventDepartialize, models.LicenseStateActivated, false},
		{"activate from unassigned rejected", models.LicenseStateUnassigned, models.EventActivate, "", true},
		{"assign onto assigned rejected", models.LicenseStateAssigned, models.EventAssign, "", true},
		{"assign onto activated rejected", models.LicenseStateActivated, models.EventAssign, "", true},
		{"activate twice rejected", models.LicenseStateActivated, models.EventActivate, "", true},
		{"split before activation rejected", models.LicenseStateAssigned, models.EventSplit, "", true},
		{"assign to expired rejected", models.LicenseStateExpired, models.EventAssign, "", true},
		{"activate completed rejected", models.LicenseStateCompleted, models.EventActivate, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Apply(ctx, tt.current, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				var te *TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.event, te.Event)
				assert.Equal(t, tt.current, te.Current)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	err := &TransitionError{Event: models.EventActivate, Current: models.LicenseStateExpired}
	assert.Contains(t, err.Error(), "activate")
	assert.Contains(t, err.Error(), "expired")
}
