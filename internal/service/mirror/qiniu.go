package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"

	"github.com/weiwangfds/photosync/internal/database"
)

// qiniuProvider mirrors to Qiniu Kodo.
type qiniuProvider struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	region       *storage.Region
	cfg          *database.MirrorConfig
}

func newQiniuProvider(cfg *database.MirrorConfig) (*qiniuProvider, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("resolving qiniu region: %w", err)
	}

	bucketDomain := cfg.Endpoint
	if bucketDomain == "" {
		bucketDomain = fmt.Sprintf("%s.%s", cfg.Bucket, region.RsHost)
	}

	return &qiniuProvider{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: bucketDomain,
		region:       region,
		cfg:          cfg,
	}, nil
}

func (p *qiniuProvider) bucketManager() *storage.BucketManager {
	return storage.NewBucketManager(p.mac, &storage.Config{Region: p.region})
}

func (p *qiniuProvider) Upload(key string, r io.Reader, contentType string) error {
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", p.bucketName, key),
	}
	upToken := putPolicy.UploadToken(p.mac)

	cfg := storage.Config{
		Region:   p.region,
		UseHTTPS: true,
	}
	uploader := storage.NewFormUploader(&cfg)

	putExtra := storage.PutExtra{}
	if contentType != "" {
		putExtra.MimeType = contentType
	}

	ret := storage.PutRet{}
	if err := uploader.Put(context.Background(), &ret, upToken, key, r, -1, &putExtra); err != nil {
		return fmt.Errorf("uploading to qiniu kodo: %w", err)
	}
	return nil
}

func (p *qiniuProvider) Download(key string) (io.ReadCloser, error) {
	// Kodo serves private objects over signed URLs.
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := storage.MakePrivateURL(p.mac, p.bucketDomain, key, deadline)

	resp, err := http.Get(privateURL)
	if err != nil {
		return nil, fmt.Errorf("downloading from qiniu kodo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading from qiniu kodo: status %s", resp.Status)
	}
	return resp.Body, nil
}

func (p *qiniuProvider) Delete(key string) error {
	if err := p.bucketManager().Delete(p.bucketName, key); err != nil {
		return fmt.Errorf("deleting from qiniu kodo: %w", err)
	}
	return nil
}

func (p *qiniuProvider) Exists(key string) (bool, error) {
	_, err := p.bucketManager().Stat(p.bucketName, key)
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			return false, nil
		}
		return false, fmt.Errorf("checking qiniu kodo object: %w", err)
	}
	return true, nil
}

func (p *qiniuProvider) Stat(key string) (*ObjectInfo, error) {
	info, err := p.bucketManager().Stat(p.bucketName, key)
	if err != nil {
		return nil, fmt.Errorf("statting qiniu kodo object: %w", err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         info.Fsize,
		LastModified: time.Unix(info.PutTime/10000000, 0).Format(time.RFC3339),
		ETag:         info.Hash,
		ContentType:  info.MimeType,
	}, nil
}

func (p *qiniuProvider) List(prefix string, max int) ([]ObjectInfo, error) {
	entries, _, _, _, err := p.bucketManager().ListFiles(p.bucketName, prefix, "", "", max)
	if err != nil {
		return nil, fmt.Errorf("listing qiniu kodo objects: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		objects = append(objects, ObjectInfo{
			Key:          entry.Key,
			Size:         entry.Fsize,
			LastModified: time.Unix(entry.PutTime/10000000, 0).Format(time.RFC3339),
			ETag:         entry.Hash,
			ContentType:  entry.MimeType,
		})
	}
	return objects, nil
}

func (p *qiniuProvider) Ping() error {
	_, _, _, _, err := p.bucketManager().ListFiles(p.bucketName, "", "", "", 1)
	if err != nil {
		return fmt.Errorf("pinging qiniu kodo: %w", err)
	}
	return nil
}
