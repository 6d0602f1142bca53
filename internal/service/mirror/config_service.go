package mirror

import (
	"gorm.io/gorm"

	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
)

// ConfigService manages mirror target configurations.
type ConfigService interface {
	// Create stores a new mirror config after verifying it can reach
	// the bucket.
	Create(cfg *database.MirrorConfig) error

	// Update replaces the mutable fields of an existing config.
	Update(id uint, cfg *database.MirrorConfig) error

	// Delete removes a config. The active config cannot be deleted.
	Delete(id uint) error

	// Get returns one config.
	Get(id uint) (*database.MirrorConfig, error)

	// List returns every config.
	List() ([]database.MirrorConfig, error)

	// Activate marks one config active and deactivates the rest.
	Activate(id uint) error

	// Active returns the currently active config, if any.
	Active() (*database.MirrorConfig, error)

	// Test verifies the credentials of a stored config.
	Test(id uint) error
}

type configService struct {
	db *gorm.DB
}

// NewConfigService wires config management to the shared database.
func NewConfigService(db *gorm.DB) ConfigService {
	return &configService{db: db}
}

func validateConfig(cfg *database.MirrorConfig) error {
	switch {
	case cfg.Name == "":
		return errors.NewByCode(errors.ErrMirrorConfigInvalid).WithDetails("name is required")
	case cfg.Bucket == "":
		return errors.NewByCode(errors.ErrMirrorConfigInvalid).WithDetails("bucket is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return errors.NewByCode(errors.ErrMirrorConfigInvalid).WithDetails("credentials are required")
	}
	switch cfg.Provider {
	case "aliyun", "tencent", "qiniu":
		return nil
	default:
		return errors.NewByCode(errors.ErrMirrorProviderNotSupported).
			WithDetails("provider " + cfg.Provider)
	}
}

func (s *configService) Create(cfg *database.MirrorConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		return err
	}
	if err := provider.Ping(); err != nil {
		return errors.Wrap(errors.ErrMirrorConfigInvalid, "mirror target unreachable", err)
	}

	// A first config becomes active automatically.
	var count int64
	if err := s.db.Model(&database.MirrorConfig{}).Count(&count).Error; err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to count mirror configs", err)
	}
	cfg.IsActive = count == 0

	if err := s.db.Create(cfg).Error; err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to store mirror config", err)
	}
	logger.Infof("mirror config created: %s (%s)", cfg.Name, cfg.Provider)
	return nil
}

func (s *configService) Update(id uint, cfg *database.MirrorConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	existing, err := s.Get(id)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":        cfg.Name,
		"provider":    cfg.Provider,
		"region":      cfg.Region,
		"bucket":      cfg.Bucket,
		"access_key":  cfg.AccessKey,
		"secret_key":  cfg.SecretKey,
		"endpoint":    cfg.Endpoint,
		"path_prefix": cfg.PathPrefix,
	}
	if err := s.db.Model(existing).Updates(updates).Error; err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to update mirror config", err)
	}
	return nil
}

func (s *configService) Delete(id uint) error {
	existing, err := s.Get(id)
	if err != nil {
		return err
	}
	if existing.IsActive {
		return errors.NewByCode(errors.ErrMirrorConfigInvalid).
			WithDetails("deactivate the config before deleting it")
	}
	if err := s.db.Delete(existing).Error; err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to delete mirror config", err)
	}
	return nil
}

func (s *configService) Get(id uint) (*database.MirrorConfig, error) {
	var cfg database.MirrorConfig
	err := s.db.First(&cfg, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NewByCode(errors.ErrMirrorConfigNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternalServer, "failed to load mirror config", err)
	}
	return &cfg, nil
}

func (s *configService) List() ([]database.MirrorConfig, error) {
	var configs []database.MirrorConfig
	if err := s.db.Order("id").Find(&configs).Error; err != nil {
		return nil, errors.Wrap(errors.ErrInternalServer, "failed to list mirror configs", err)
	}
	return configs, nil
}

func (s *configService) Activate(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.MirrorConfig{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&database.MirrorConfig{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	})
	if err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to activate mirror config", err)
	}
	logger.Infof("mirror config %d activated", id)
	return nil
}

func (s *configService) Active() (*database.MirrorConfig, error) {
	var cfg database.MirrorConfig
	err := s.db.Where("is_active = ?", true).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NewByCode(errors.ErrMirrorConfigNotFound).
			WithDetails("no active mirror config")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternalServer, "failed to load active mirror config", err)
	}
	return &cfg, nil
}

func (s *configService) Test(id uint) error {
	cfg, err := s.Get(id)
	if err != nil {
		return err
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		return err
	}
	if err := provider.Ping(); err != nil {
		return errors.Wrap(errors.ErrMirrorConfigInvalid, "mirror target unreachable", err)
	}
	return nil
}
