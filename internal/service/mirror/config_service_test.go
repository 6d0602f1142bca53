package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/errors"
)

func newConfigFixture(t *testing.T) (ConfigService, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return NewConfigService(db), db
}

func seedConfig(t *testing.T, db *gorm.DB, name string, active bool) *database.MirrorConfig {
	t.Helper()
	cfg := &database.MirrorConfig{
		Name: name, Provider: "aliyun", Bucket: "b",
		AccessKey: "ak", SecretKey: "sk", IsActive: active,
	}
	require.NoError(t, db.Create(cfg).Error)
	return cfg
}

func TestValidateConfig(t *testing.T) {
	base := database.MirrorConfig{
		Name: "m", Provider: "qiniu", Bucket: "b", AccessKey: "ak", SecretKey: "sk",
	}
	assert.NoError(t, validateConfig(&base))

	noName := base
	noName.Name = ""
	assert.True(t, errors.IsCode(validateConfig(&noName), errors.ErrMirrorConfigInvalid))

	noBucket := base
	noBucket.Bucket = ""
	assert.True(t, errors.IsCode(validateConfig(&noBucket), errors.ErrMirrorConfigInvalid))

	badProvider := base
	badProvider.Provider = "s3"
	assert.True(t, errors.IsCode(validateConfig(&badProvider), errors.ErrMirrorProviderNotSupported))
}

func TestActivateSwitchesTheActiveConfig(t *testing.T) {
	svc, db := newConfigFixture(t)
	first := seedConfig(t, db, "first", true)
	second := seedConfig(t, db, "second", false)

	require.NoError(t, svc.Activate(second.ID))

	active, err := svc.Active()
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	reloaded, err := svc.Get(first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestActiveWithoutAnyConfig(t *testing.T) {
	svc, _ := newConfigFixture(t)

	_, err := svc.Active()
	assert.True(t, errors.IsCode(err, errors.ErrMirrorConfigNotFound))
}

func TestDeleteRefusesActiveConfig(t *testing.T) {
	svc, db := newConfigFixture(t)
	active := seedConfig(t, db, "active", true)
	idle := seedConfig(t, db, "idle", false)

	err := svc.Delete(active.ID)
	assert.True(t, errors.IsCode(err, errors.ErrMirrorConfigInvalid))

	require.NoError(t, svc.Delete(idle.ID))
	_, err = svc.Get(idle.ID)
	assert.True(t, errors.IsCode(err, errors.ErrMirrorConfigNotFound))
}

func TestGetUnknownConfig(t *testing.T) {
	svc, _ := newConfigFixture(t)

	_, err := svc.Get(42)
	assert.True(t, errors.IsCode(err, errors.ErrMirrorConfigNotFound))
}
