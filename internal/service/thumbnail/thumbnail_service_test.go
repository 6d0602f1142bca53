package thumbnail

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/service/catalog"
)

func testConfigs(t *testing.T) (config.ThumbnailConfig, config.StorageConfig) {
	t.Helper()
	root := t.TempDir()
	storageCfg := config.StorageConfig{
		MediaDir:       filepath.Join(root, "media"),
		IndexFile:      filepath.Join(root, "index.json"),
		QuarantineDir:  filepath.Join(root, "quarantine"),
		ThumbnailDir:   filepath.Join(root, "thumbnails"),
		HashBufferSize: 65536,
	}
	require.NoError(t, os.MkdirAll(storageCfg.MediaDir, 0o755))
	return config.ThumbnailConfig{DefaultSize: 64}, storageCfg
}

// pngBytes renders a width x height image with a horizontal gradient.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / width), G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func setup(t *testing.T) (Service, catalog.Service) {
	t.Helper()
	thumbCfg, storageCfg := testConfigs(t)
	catalogSvc, err := catalog.NewService(storageCfg)
	require.NoError(t, err)
	return NewService(thumbCfg, storageCfg, catalogSvc), catalogSvc
}

func decodeThumb(t *testing.T, r io.ReadCloser) image.Image {
	t.Helper()
	defer r.Close()
	img, err := png.Decode(r)
	require.NoError(t, err)
	return img
}

func TestGetGeneratesSquarePNG(t *testing.T) {
	svc, catalogSvc := setup(t)

	rec, err := catalogSvc.Upload("wide.png", "alice", bytes.NewReader(pngBytes(t, 200, 100)))
	require.NoError(t, err)

	r, err := svc.Get(rec.ID, 32)
	require.NoError(t, err)
	img := decodeThumb(t, r)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestGetSizeZeroUsesDefault(t *testing.T) {
	svc, catalogSvc := setup(t)

	rec, err := catalogSvc.Upload("photo.png", "alice", bytes.NewReader(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	r, err := svc.Get(rec.ID, 0)
	require.NoError(t, err)
	img := decodeThumb(t, r)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestGetServesFromCache(t *testing.T) {
	svc, catalogSvc := setup(t)

	rec, err := catalogSvc.Upload("photo.png", "alice", bytes.NewReader(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	r, err := svc.Get(rec.ID, 32)
	require.NoError(t, err)
	r.Close()

	// Delete the record; the cached artifact must still satisfy the
	// request without touching the catalog.
	require.NoError(t, catalogSvc.Delete(rec.ID))
	r, err = svc.Get(rec.ID, 32)
	require.NoError(t, err)
	img := decodeThumb(t, r)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestGetUnknownFile(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Get(999, 32)
	assert.True(t, errors.IsCode(err, errors.ErrFileNotFound))
}

func TestGetCorruptImageLeavesNoArtifact(t *testing.T) {
	thumbCfg, storageCfg := testConfigs(t)
	catalogSvc, err := catalog.NewService(storageCfg)
	require.NoError(t, err)
	svc := NewService(thumbCfg, storageCfg, catalogSvc)

	rec, err := catalogSvc.Upload("broken.png", "alice", bytes.NewReader([]byte("not a png")))
	require.NoError(t, err)

	_, err = svc.Get(rec.ID, 32)
	assert.True(t, errors.IsCode(err, errors.ErrThumbnailUnsupported))

	_, statErr := os.Stat(filepath.Join(storageCfg.ThumbnailDir, "1_32.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetMultipleBundlesZip(t *testing.T) {
	svc, catalogSvc := setup(t)

	a, err := catalogSvc.Upload("a.png", "alice", bytes.NewReader(pngBytes(t, 80, 80)))
	require.NoError(t, err)
	b, err := catalogSvc.Upload("b.png", "alice", bytes.NewReader(pngBytes(t, 60, 90)))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.GetMultiple([]int64{a.ID, b.ID}, 32, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"1.png", "2.png"}, names)
}

func TestGetMultipleFailsOnUnknownFile(t *testing.T) {
	svc, catalogSvc := setup(t)

	a, err := catalogSvc.Upload("a.png", "alice", bytes.NewReader(pngBytes(t, 80, 80)))
	require.NoError(t, err)

	// One bad id fails the bundle before any archive bytes are written.
	var buf bytes.Buffer
	err = svc.GetMultiple([]int64{a.ID, 999}, 32, &buf)
	assert.True(t, errors.IsCode(err, errors.ErrFileNotFound))
	assert.Zero(t, buf.Len())
}

func TestInvalidateRemovesAllSizes(t *testing.T) {
	thumbCfg, storageCfg := testConfigs(t)
	catalogSvc, err := catalog.NewService(storageCfg)
	require.NoError(t, err)
	svc := NewService(thumbCfg, storageCfg, catalogSvc)

	rec, err := catalogSvc.Upload("photo.png", "alice", bytes.NewReader(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	for _, size := range []int{16, 32} {
		r, err := svc.Get(rec.ID, size)
		require.NoError(t, err)
		r.Close()
	}

	require.NoError(t, svc.Invalidate(rec.ID))
	matches, err := filepath.Glob(filepath.Join(storageCfg.ThumbnailDir, "*.png"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCenterSquare(t *testing.T) {
	square := centerSquare(image.Rect(0, 0, 200, 100))
	assert.Equal(t, image.Rect(50, 0, 150, 100), square)

	tall := centerSquare(image.Rect(0, 0, 100, 300))
	assert.Equal(t, image.Rect(0, 100, 100, 200), tall)

	exact := centerSquare(image.Rect(0, 0, 50, 50))
	assert.Equal(t, image.Rect(0, 0, 50, 50), exact)
}
