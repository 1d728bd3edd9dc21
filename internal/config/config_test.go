// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "portal",
		Password: "s3cret",
		Database: "partner_portal",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=portal password=s3cret dbname=partner_portal sslmode=require application_name=partner-portal",
		cfg.DSN())
}
