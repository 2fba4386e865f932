package db_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/fahrme/internal/db"
	"github.com/oggyb/fahrme/internal/logger"
)

func TestSeedDemoUsers_Idempotent(t *testing.T) {
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(database))

	created, err := db.SeedDemoUsers(database, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, len(db.DemoUsers), created)

	created, err = db.SeedDemoUsers(database, logger.Discard())
	require.NoError(t, err)
	assert.Zero(t, created)

	var anna db.User
	require.NoError(t, database.Where("email = ?", "anna@fahrme.de").First(&anna).Error)
	assert.True(t, anna.Confirmed)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(anna.PasswordHash), []byte(db.DemoPassword)))
	assert.Equal(t, "1", anna.PublicID())
}
