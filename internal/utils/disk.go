package utils

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

var ErrInsufficientSpace = errors.New("not enough free disk space")

// CheckFreeSpace fails when the filesystem holding dir has less than need
// bytes free. Filesystems that cannot report usage pass.
func CheckFreeSpace(dir string, need int64) error {
	if need <= 0 {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		log := GetLogger("disk")
		log.Debug().Err(err).Str("dir", dir).Msg("Cannot read disk usage, skipping space check")
		return nil
	}
	if usage.Free < uint64(need) {
		return fmt.Errorf("%w: need %s, have %s in %s", ErrInsufficientSpace, FormatBytes(uint64(need)), FormatBytes(usage.Free), dir)
	}
	return nil
}
