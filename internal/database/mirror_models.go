package database

import (
	"time"

	"gorm.io/gorm"
)

// MirrorConfig is one off-site mirror target. At most one config is
// active at a time; the sync worker pushes uploaded originals to it.
type MirrorConfig struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	Name      string `gorm:"not null;size:100" json:"name"`
	// Provider is one of aliyun, tencent, qiniu.
	Provider  string `gorm:"not null;size:20" json:"provider"`
	Region    string `gorm:"size:50" json:"region"`
	Bucket    string `gorm:"not null;size:100" json:"bucket"`
	AccessKey string `gorm:"not null;size:100" json:"access_key"`
	// SecretKey is never returned in API responses.
	SecretKey string `gorm:"not null;size:200" json:"-"`
	Endpoint  string `gorm:"size:200" json:"endpoint"`
	IsActive  bool   `gorm:"default:false" json:"is_active"`
	// PathPrefix is prepended to the object key of every mirrored file.
	PathPrefix string         `gorm:"size:200;default:'media'" json:"path_prefix"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName maps MirrorConfig to the mirror_configs table.
func (MirrorConfig) TableName() string {
	return "mirror_configs"
}

// MirrorLog records one mirror attempt for one file.
type MirrorLog struct {
	ID             uint         `gorm:"primarykey" json:"id"`
	FileID         int64        `gorm:"not null;index" json:"file_id"`
	MirrorConfigID uint         `gorm:"not null" json:"mirror_config_id"`
	MirrorConfig   MirrorConfig `gorm:"foreignKey:MirrorConfigID" json:"mirror_config,omitempty"`
	// Status is pending, success or failed.
	Status    string         `gorm:"not null;size:20" json:"status"`
	ObjectKey string         `gorm:"size:500" json:"object_key"`
	ErrorMsg  string         `gorm:"type:text" json:"error_msg"`
	FileSize  int64          `json:"file_size"`
	// Duration is the attempt time in milliseconds.
	Duration  int64          `json:"duration"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName maps MirrorLog to the mirror_logs table.
func (MirrorLog) TableName() string {
	return "mirror_logs"
}
