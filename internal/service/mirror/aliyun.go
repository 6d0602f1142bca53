package mirror

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/weiwangfds/photosync/internal/database"
)

// aliyunProvider mirrors to Aliyun OSS.
type aliyunProvider struct {
	client *oss.Client
	bucket *oss.Bucket
	cfg    *database.MirrorConfig
}

func newAliyunProvider(cfg *database.MirrorConfig) (*aliyunProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("creating aliyun oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", cfg.Bucket, err)
	}

	return &aliyunProvider{client: client, bucket: bucket, cfg: cfg}, nil
}

func (p *aliyunProvider) Upload(key string, r io.Reader, contentType string) error {
	var options []oss.Option
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := p.bucket.PutObject(key, r, options...); err != nil {
		return fmt.Errorf("uploading to aliyun oss: %w", err)
	}
	return nil
}

func (p *aliyunProvider) Download(key string) (io.ReadCloser, error) {
	body, err := p.bucket.GetObject(key)
	if err != nil {
		return nil, fmt.Errorf("downloading from aliyun oss: %w", err)
	}
	return body, nil
}

func (p *aliyunProvider) Delete(key string) error {
	if err := p.bucket.DeleteObject(key); err != nil {
		return fmt.Errorf("deleting from aliyun oss: %w", err)
	}
	return nil
}

func (p *aliyunProvider) Exists(key string) (bool, error) {
	exists, err := p.bucket.IsObjectExist(key)
	if err != nil {
		return false, fmt.Errorf("checking aliyun oss object: %w", err)
	}
	return exists, nil
}

func (p *aliyunProvider) Stat(key string) (*ObjectInfo, error) {
	meta, err := p.bucket.GetObjectMeta(key)
	if err != nil {
		return nil, fmt.Errorf("statting aliyun oss object: %w", err)
	}

	var size int64
	if sizeStr := meta.Get("Content-Length"); sizeStr != "" {
		fmt.Sscanf(sizeStr, "%d", &size)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         size,
		LastModified: meta.Get("Last-Modified"),
		ETag:         strings.Trim(meta.Get("Etag"), "\""),
		ContentType:  meta.Get("Content-Type"),
	}, nil
}

func (p *aliyunProvider) List(prefix string, max int) ([]ObjectInfo, error) {
	lsRes, err := p.bucket.ListObjects(oss.Prefix(prefix), oss.MaxKeys(max))
	if err != nil {
		return nil, fmt.Errorf("listing aliyun oss objects: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(lsRes.Objects))
	for _, object := range lsRes.Objects {
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified.Format(time.RFC3339),
			ETag:         strings.Trim(object.ETag, "\""),
			ContentType:  object.Type,
		})
	}
	return objects, nil
}

func (p *aliyunProvider) Ping() error {
	if _, err := p.client.GetBucketInfo(p.cfg.Bucket); err != nil {
		return fmt.Errorf("pinging aliyun oss: %w", err)
	}
	return nil
}
