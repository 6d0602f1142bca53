package thumbnail

import (
	"image"
	"image/png"
	"io"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/weiwangfds/photosync/internal/errors"
)

// renderImage decodes the catalog entry and writes a square PNG
// thumbnail of the given edge length to w.
func (s *thumbnailService) renderImage(fileID int64, size int, w io.Writer) error {
	_, r, err := s.catalogSvc.Open(fileID)
	if err != nil {
		return err
	}
	defer r.Close()

	src, _, err := image.Decode(r)
	if err != nil {
		return errors.Wrap(errors.ErrThumbnailUnsupported, "failed to decode image", err)
	}
	return encodeThumbnail(src, size, w)
}

// encodeThumbnail center-crops src to a square and scales it to
// size x size.
func encodeThumbnail(src image.Image, size int, w io.Writer) error {
	square := centerSquare(src.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, square, draw.Src, nil)

	if err := png.Encode(w, dst); err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to encode thumbnail", err)
	}
	return nil
}

// centerSquare returns the largest centered square within bounds.
func centerSquare(bounds image.Rectangle) image.Rectangle {
	width := bounds.Dx()
	height := bounds.Dy()
	if width == height {
		return bounds
	}
	if width > height {
		offset := (width - height) / 2
		return image.Rect(bounds.Min.X+offset, bounds.Min.Y, bounds.Min.X+offset+height, bounds.Max.Y)
	}
	offset := (height - width) / 2
	return image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+width)
}
