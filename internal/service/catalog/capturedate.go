package catalog

import (
	"os"
	"regexp"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/weiwangfds/photosync/internal/logger"
)

// Filename patterns produced by cameras and phone exporters, e.g.
// IMG_20230914_174233.jpg, 2023-09-14 17.42.33.jpg, VID-20230914.mp4.
var (
	filenameDateTimeRe = regexp.MustCompile(`(\d{4})[-_.]?(\d{2})[-_.]?(\d{2})[-_ T]?(\d{2})[-:._]?(\d{2})[-:._]?(\d{2})`)
	filenameDateRe     = regexp.MustCompile(`(\d{4})[-_.]?(\d{2})[-_.]?(\d{2})`)
)

// resolveCaptureDate picks the capture date for a file. Precedence:
// embedded metadata, filesystem creation time (modification time stands
// in where stat exposes no birth time), a date pattern in the file
// name. Every step recovers locally; a file that defeats all of them
// gets the zero time and sorts after every dated record.
func resolveCaptureDate(absPath string, mt mediaType, info os.FileInfo) time.Time {
	if mt.Type == TypeImage {
		if t, ok := exifDate(absPath); ok {
			return t
		}
	}
	if t, ok := birthtime(info); ok {
		return t
	}
	if t, ok := parseFilenameDate(info.Name()); ok {
		return t
	}
	return time.Time{}
}

// exifDate extracts DateTimeOriginal from embedded metadata. Failures
// fall through the precedence chain, they are never surfaced.
func exifDate(absPath string) (time.Time, bool) {
	f, err := os.Open(absPath)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil {
		logger.Debugf("no exif datetime in %s: %v", absPath, err)
		return time.Time{}, false
	}
	return t, true
}

// parseFilenameDate recognizes a capture date embedded in the file name.
func parseFilenameDate(name string) (time.Time, bool) {
	if m := filenameDateTimeRe.FindStringSubmatch(name); m != nil {
		stamp := m[1] + m[2] + m[3] + m[4] + m[5] + m[6]
		if t, err := time.ParseInLocation("20060102150405", stamp, time.Local); err == nil && plausibleDate(t) {
			return t, true
		}
	}
	if m := filenameDateRe.FindStringSubmatch(name); m != nil {
		stamp := m[1] + m[2] + m[3]
		if t, err := time.ParseInLocation("20060102", stamp, time.Local); err == nil && plausibleDate(t) {
			return t, true
		}
	}
	return time.Time{}, false
}

// plausibleDate rejects matches that parse but cannot be capture dates,
// such as sequence numbers masquerading as years.
func plausibleDate(t time.Time) bool {
	return t.Year() >= 1826 && t.Year() <= time.Now().Year()+1
}
