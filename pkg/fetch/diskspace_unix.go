//go:build linux || darwin || freebsd

package fetch

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// checkDiskSpace fails when dir has less than need bytes available.
// Unknown sizes and unreadable filesystems pass.
func checkDiskSpace(dir string, need int64) error {
	if need <= 0 {
		return nil
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return nil
	}
	avail := int64(st.Bavail) * int64(st.Bsize)
	if avail < need {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientDiskSpace,
			humanize.IBytes(uint64(need)), humanize.IBytes(uint64(avail)))
	}
	return nil
}
