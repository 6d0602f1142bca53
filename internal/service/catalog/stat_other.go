//go:build !linux && !darwin

package catalog

import (
	"os"
	"time"
)

// birthtime falls back to the modification time on platforms without a
// stat birth time.
func birthtime(info os.FileInfo) (time.Time, bool) {
	return info.ModTime(), true
}
