package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/weiwangfds/photosync/internal/database"
)

// tencentProvider mirrors to Tencent COS.
type tencentProvider struct {
	client *cos.Client
	cfg    *database.MirrorConfig
}

func newTencentProvider(cfg *database.MirrorConfig) (*tencentProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("parsing bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})

	return &tencentProvider{client: client, cfg: cfg}, nil
}

func (p *tencentProvider) Upload(key string, r io.Reader, contentType string) error {
	options := &cos.ObjectPutOptions{}
	if contentType != "" {
		options.ObjectPutHeaderOptions = &cos.ObjectPutHeaderOptions{
			ContentType: contentType,
		}
	}

	if _, err := p.client.Object.Put(context.Background(), key, r, options); err != nil {
		return fmt.Errorf("uploading to tencent cos: %w", err)
	}
	return nil
}

func (p *tencentProvider) Download(key string) (io.ReadCloser, error) {
	resp, err := p.client.Object.Get(context.Background(), key, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading from tencent cos: %w", err)
	}
	return resp.Body, nil
}

func (p *tencentProvider) Delete(key string) error {
	if _, err := p.client.Object.Delete(context.Background(), key); err != nil {
		return fmt.Errorf("deleting from tencent cos: %w", err)
	}
	return nil
}

func (p *tencentProvider) Exists(key string) (bool, error) {
	_, err := p.client.Object.Head(context.Background(), key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking tencent cos object: %w", err)
	}
	return true, nil
}

func (p *tencentProvider) Stat(key string) (*ObjectInfo, error) {
	resp, err := p.client.Object.Head(context.Background(), key, nil)
	if err != nil {
		return nil, fmt.Errorf("statting tencent cos object: %w", err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         resp.ContentLength,
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         strings.Trim(resp.Header.Get("Etag"), "\""),
		ContentType:  resp.Header.Get("Content-Type"),
	}, nil
}

func (p *tencentProvider) List(prefix string, max int) ([]ObjectInfo, error) {
	result, _, err := p.client.Bucket.Get(context.Background(), &cos.BucketGetOptions{
		Prefix:  prefix,
		MaxKeys: max,
	})
	if err != nil {
		return nil, fmt.Errorf("listing tencent cos objects: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(result.Contents))
	for _, object := range result.Contents {
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         int64(object.Size),
			LastModified: object.LastModified,
			ETag:         strings.Trim(object.ETag, "\""),
			// The COS list API does not return content types.
		})
	}
	return objects, nil
}

func (p *tencentProvider) Ping() error {
	if _, err := p.client.Bucket.Head(context.Background()); err != nil {
		return fmt.Errorf("pinging tencent cos: %w", err)
	}
	return nil
}
