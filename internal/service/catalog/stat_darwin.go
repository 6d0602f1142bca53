//go:build darwin

package catalog

import (
	"os"
	"syscall"
	"time"
)

// birthtime reads the file creation time from the underlying stat.
func birthtime(info os.FileInfo) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec), true
}
