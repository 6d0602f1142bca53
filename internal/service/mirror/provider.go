// Package mirror pushes catalog originals to an off-site object store
// so the media directory is not the only copy. Providers wrap the
// vendor SDKs behind one small interface; the sync service drives them.
package mirror

import (
	"io"

	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/errors"
)

// Provider is one object-store backend.
type Provider interface {
	// Upload stores the object under key.
	Upload(key string, r io.Reader, contentType string) error

	// Download opens the object under key.
	Download(key string) (io.ReadCloser, error)

	// Delete removes the object under key.
	Delete(key string) error

	// Exists reports whether the object under key is present.
	Exists(key string) (bool, error)

	// Stat returns object metadata.
	Stat(key string) (*ObjectInfo, error)

	// List returns up to max objects under prefix.
	List(prefix string, max int) ([]ObjectInfo, error)

	// Ping verifies credentials and bucket reachability.
	Ping() error
}

// ObjectInfo is provider-neutral object metadata.
type ObjectInfo struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	ETag         string `json:"etag"`
	ContentType  string `json:"content_type"`
}

// NewProvider builds the backend named by the config.
func NewProvider(cfg *database.MirrorConfig) (Provider, error) {
	switch cfg.Provider {
	case "aliyun":
		return newAliyunProvider(cfg)
	case "tencent":
		return newTencentProvider(cfg)
	case "qiniu":
		return newQiniuProvider(cfg)
	default:
		return nil, errors.NewByCode(errors.ErrMirrorProviderNotSupported).
			WithDetails("provider " + cfg.Provider)
	}
}
