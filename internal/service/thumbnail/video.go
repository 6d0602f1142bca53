package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/service/catalog"
)

// renderVideo extracts a frame from a third of the way into the video
// via ffmpeg and writes its square PNG thumbnail to w.
func (s *thumbnailService) renderVideo(rec *catalog.FileRecord, size int, w io.Writer) error {
	absPath := filepath.Join(s.mediaDir, filepath.FromSlash(rec.Path))

	offset := 0.0
	if duration, err := s.probeDuration(absPath); err == nil {
		offset = duration / 3
	} else {
		logger.Warnf("ffprobe failed for file %d, grabbing first frame: %v", rec.ID, err)
	}

	frame, err := s.extractFrame(absPath, offset)
	if err != nil {
		return err
	}

	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to decode extracted frame", err)
	}
	return encodeThumbnail(src, size, w)
}

// probeDuration asks ffprobe for the video length in seconds.
func (s *thumbnailService) probeDuration(absPath string) (float64, error) {
	cmd := exec.Command(s.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		absPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("running ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// extractFrame returns one PNG-encoded frame at the given offset.
func (s *thumbnailService) extractFrame(absPath string, offset float64) ([]byte, error) {
	cmd := exec.Command(s.cfg.FFmpegPath,
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", absPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrThumbnailFailed, "ffmpeg frame extraction failed", err).
			WithDetails(strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New(errors.ErrThumbnailFailed, "ffmpeg produced no frame")
	}
	return stdout.Bytes(), nil
}
