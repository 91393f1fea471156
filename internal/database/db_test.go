package database

import (
	"testing"

	"einvoice/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, m := range []interface{}{&model.Organization{}, &model.User{}, &model.Buyer{}, &model.Invoice{}, &model.InvoiceItem{}, &model.AuditLog{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}
