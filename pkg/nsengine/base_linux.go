//go:build linux

package nsengine

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bastionrun/bastion/pkg/log"
)

// PrepareBase, when autoCreate is set, creates basepath (and every missing
// parent) with mode 0755 under a narrowed umask; it then makes basepath a
// private recursive bind mount of
// itself so job mounts never propagate into the host namespace. Must
// complete before any per-job creation is attempted.
func PrepareBase(basepath string, autoCreate bool) error {
	if !filepath.IsAbs(basepath) {
		return fmt.Errorf("%w: basepath must be absolute: %s", ErrInvalidArgument, basepath)
	}

	if autoCreate {
		old := unix.Umask(0022)
		defer unix.Umask(old)
		if err := os.MkdirAll(basepath, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrBaseMountFailed, basepath, err)
		}
	}

	if err := unix.Mount(basepath, basepath, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("%w: bind mount %s: %v", ErrBaseMountFailed, basepath, err)
	}
	if err := unix.Mount("", basepath, "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("%w: make-private %s: %v", ErrBaseMountFailed, basepath, err)
	}

	log.Logger.Info().Str("basepath", basepath).Msg("namespace base mount prepared")
	return nil
}

// ShutdownBase detaches basepath, dropping the loaded configuration's
// mount. Best-effort: a failure is logged but not returned, matching the
// "shutdown never blocks process exit" pattern.
func ShutdownBase(basepath string) {
	if err := unix.Unmount(basepath, unix.MNT_DETACH); err != nil && err != unix.EINVAL {
		log.Logger.Error().Err(err).Str("basepath", basepath).Msg("failed to detach base mount")
	}
}
