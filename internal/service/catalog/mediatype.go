package catalog

import (
	"path/filepath"
	"strings"
)

// Media types.
const (
	TypeImage   = "image"
	TypeVideo   = "video"
	TypeUnknown = "unknown"
)

type mediaType struct {
	Type   string
	Format string
}

// extensionTable maps a lowercased extension to its classification.
// Unmapped extensions classify as unknown but are still indexed.
var extensionTable = map[string]mediaType{
	".jpg":  {TypeImage, "jpeg"},
	".jpeg": {TypeImage, "jpeg"},
	".png":  {TypeImage, "png"},
	".gif":  {TypeImage, "gif"},
	".webp": {TypeImage, "webp"},
	".heic": {TypeImage, "heic"},
	".tiff": {TypeImage, "tiff"},
	".tif":  {TypeImage, "tiff"},
	".mp4":  {TypeVideo, "mp4"},
	".webm": {TypeVideo, "webm"},
	".avi":  {TypeVideo, "avi"},
	".mov":  {TypeVideo, "mov"},
	".m4v":  {TypeVideo, "m4v"},
	".mkv":  {TypeVideo, "mkv"},
}

// classify resolves the media type and format for a path by extension.
func classify(path string) mediaType {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extensionTable[ext]; ok {
		return mt
	}
	format := strings.TrimPrefix(ext, ".")
	if format == "" {
		format = TypeUnknown
	}
	return mediaType{TypeUnknown, format}
}
