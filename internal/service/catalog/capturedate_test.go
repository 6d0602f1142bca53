package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilenameDate(t *testing.T) {
	tests := []struct {
		name string
		want time.Time
		ok   bool
	}{
		{"IMG_20230914_174233.jpg", time.Date(2023, 9, 14, 17, 42, 33, 0, time.Local), true},
		{"2023-09-14 17.42.33.jpg", time.Date(2023, 9, 14, 17, 42, 33, 0, time.Local), true},
		{"20230914174233.jpg", time.Date(2023, 9, 14, 17, 42, 33, 0, time.Local), true},
		{"VID-20230914.mp4", time.Date(2023, 9, 14, 0, 0, 0, 0, time.Local), true},
		{"2023_09_14.png", time.Date(2023, 9, 14, 0, 0, 0, 0, time.Local), true},
		{"holiday.jpg", time.Time{}, false},
		// A sequence number that parses as an implausible year.
		{"99999999.jpg", time.Time{}, false},
		{"00000101.jpg", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFilenameDate(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveCaptureDateFallsBackToCreationTime(t *testing.T) {
	// No embedded metadata and no date in the name: the filesystem
	// creation time (or its modification-time stand-in) must win, so
	// plain files still sort by age instead of dropping to the end.
	path := filepath.Join(t.TempDir(), "holiday.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	got := resolveCaptureDate(path, classify(path), info)
	assert.False(t, got.IsZero())
	assert.WithinDuration(t, info.ModTime(), got, 2*time.Second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path   string
		typ    string
		format string
	}{
		{"a/b/photo.JPG", TypeImage, "jpeg"},
		{"clip.mp4", TypeVideo, "mp4"},
		{"scan.tiff", TypeImage, "tiff"},
		{"notes.txt", TypeUnknown, "txt"},
		{"noext", TypeUnknown, TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mt := classify(tt.path)
			assert.Equal(t, tt.typ, mt.Type)
			assert.Equal(t, tt.format, mt.Format)
		})
	}
}
