//go:build linux

package nsengine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bastionrun/bastion/pkg/log"
	"github.com/bastionrun/bastion/pkg/metrics"
	"github.com/bastionrun/bastion/pkg/storage"
)

// Engine is the per-node namespace engine: one instance per process, bound
// to a single basepath prepared by PrepareBase. Namespace creation for
// distinct job ids is independent; creation for the same id is serialized
// by mkdir(..., EEXCL) semantics on job_mount itself.
type Engine struct {
	basepath   string
	initScript string
	ledger     storage.Ledger

	mu sync.Mutex // serializes this process's own create/join/delete calls
}

// New returns an Engine bound to basepath. PrepareBase must already have
// been called for basepath.
func New(basepath, initScript string) *Engine {
	return &Engine{basepath: basepath, initScript: initScript}
}

// SetLedger attaches a crash-recovery ledger. When set, Create records a
// "ready" JobRecord on success and Delete removes it; nil disables
// recording, which is the default.
func (e *Engine) SetLedger(ledger storage.Ledger) {
	e.ledger = ledger
}

// State reports the current lifecycle state of jobID's namespace without
// mutating anything.
func (e *Engine) State(jobID uint32) (State, error) {
	paths := PathsFor(e.basepath, jobID)
	if _, err := os.Stat(paths.JobMount); err != nil {
		if os.IsNotExist(err) {
			return Absent, nil
		}
		return Absent, fmt.Errorf("nsengine: stat %s: %w", paths.JobMount, err)
	}
	if _, err := os.Stat(paths.Active); err == nil {
		return Ready, nil
	} else if !os.IsNotExist(err) {
		return Absent, fmt.Errorf("nsengine: stat %s: %w", paths.Active, err)
	}
	return Broken, nil
}

// Create sets up jobID's private mount namespace: a fresh job directory,
// an optional init script run, and the self-reexec handshake that captures
// the new namespace by binding /proc/<pid>/ns/mnt onto ns_holder before the
// child exits. Idempotent: if job_mount already exists and .active is
// present, Create returns success without doing any work; if .active is
// missing, it returns ErrNamespaceBroken.
func (e *Engine) Create(ctx context.Context, jobID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := metrics.NewTimer()
	outcome := "error"
	defer func() {
		metrics.NamespaceOperations.WithLabelValues("create", outcome).Inc()
	}()

	paths := PathsFor(e.basepath, jobID)

	if err := os.Mkdir(paths.JobMount, 0o700); err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("%w: mkdir %s: %v", ErrBaseMountFailed, paths.JobMount, err)
		}
		if _, statErr := os.Stat(paths.Active); statErr == nil {
			outcome = "idempotent"
			return nil
		}
		return fmt.Errorf("%w: job %d directory exists without .active", ErrNamespaceBroken, jobID)
	}

	if err := e.createLocked(ctx, jobID, paths); err != nil {
		cleanupErr := removeTree(paths.JobMount)
		if cleanupErr != nil {
			log.Logger.Error().Err(cleanupErr).Str("job_mount", paths.JobMount).
				Msg("cleanup after failed namespace create also failed")
		}
		return err
	}

	timer.ObserveDuration(metrics.NamespaceCreateDuration)
	outcome = "ok"

	if e.ledger != nil {
		now := time.Now()
		rec := &storage.JobRecord{JobID: jobID, State: Ready.String(), CreatedAt: now, UpdatedAt: now}
		if err := e.ledger.PutJob(rec); err != nil {
			log.Logger.Error().Err(err).Uint32("job_id", jobID).Msg("failed to record job in ledger")
		}
	}
	return nil
}

func (e *Engine) createLocked(ctx context.Context, jobID uint32, paths JobPaths) error {
	if f, err := os.OpenFile(paths.NSHolder, os.O_CREATE|os.O_RDWR, 0o600); err != nil {
		return fmt.Errorf("%w: create ns_holder: %v", ErrBaseMountFailed, err)
	} else {
		f.Close()
	}

	if e.initScript != "" {
		if err := e.runInitScript(ctx); err != nil {
			return err
		}
	}

	if err := os.Mkdir(paths.SrcBind, 0o700); err != nil {
		return fmt.Errorf("%w: mkdir src_bind: %v", ErrBaseMountFailed, err)
	}

	return e.handshake(jobID, paths)
}

func (e *Engine) runInitScript(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.initScript)
	cmd.Env = os.Environ()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: init script %s: %v: %s", ErrChildFailed, e.initScript, err, out)
	}
	return nil
}

// handshake runs the self-reexec mount-namespace capture. The parent
// spawns "/proc/self/exe __nsinit <src_bind> <basepath>" with
// Cloneflags: CLONE_NEWNS so the kernel places the child in a fresh mount
// namespace at clone() time; the two sides then rendezvous over a
// socketpair in place of the reference implementation's two POSIX
// semaphores. The parent must bind-mount the child's /proc/<pid>/ns/mnt
// onto ns_holder before the child exits, so the namespace survives it.
func (e *Engine) handshake(jobID uint32, paths JobPaths) error {
	parentSock, childSock, err := socketpair()
	if err != nil {
		return fmt.Errorf("%w: socketpair: %v", ErrChildFailed, err)
	}
	defer parentSock.Close()

	self, err := os.Readlink("/proc/self/exe")
	if err != nil {
		self = "/proc/self/exe"
	}

	cmd := exec.Command(self, HiddenReexecCommand, paths.SrcBind, e.basepath)
	cmd.ExtraFiles = []*os.File{childSock}
	cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: unix.CLONE_NEWNS}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		childSock.Close()
		return fmt.Errorf("%w: start child: %v", ErrChildFailed, err)
	}
	childSock.Close()

	// Wait for the child's "ready" byte: it has unshared (via Cloneflags)
	// and is about to perform its mounts.
	if err := readByte(parentSock); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("%w: child ready handshake: %v", ErrChildFailed, err)
	}

	// Pin the child's mount namespace by bind-mounting its /proc/<pid>/ns/mnt
	// onto ns_holder before telling it to proceed and exit.
	nsPath := fmt.Sprintf("/proc/%d/ns/mnt", cmd.Process.Pid)
	if err := unix.Mount(nsPath, paths.NSHolder, "", unix.MS_BIND, ""); err != nil {
		_ = writeByte(parentSock) // let the child exit regardless
		_ = cmd.Wait()
		return fmt.Errorf("%w: pin namespace: %v", ErrChildFailed, err)
	}

	if err := writeByte(parentSock); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("%w: go-ahead handshake: %v", ErrChildFailed, err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: child exited with error: %v", ErrChildFailed, err)
	}
	return nil
}

// RunChild is the __nsinit entry point: it executes inside the freshly
// cloned mount namespace (CLONE_NEWNS already applied by the parent's
// Cloneflags). It performs the reference implementation's child-side
// mount sequence: make / recursively private, bind-mount srcBind onto
// /tmp, detach basepath from its own view, and remount a fresh tmpfs on
// /dev/shm.
func RunChild(srcBind, basepath string, sockFD int) error {
	sock := os.NewFile(uintptr(sockFD), "nsinit-sock")
	defer sock.Close()

	if err := writeByte(sock); err != nil {
		return fmt.Errorf("nsinit: ready handshake: %w", err)
	}
	if err := readByte(sock); err != nil {
		return fmt.Errorf("nsinit: go-ahead handshake: %w", err)
	}

	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("nsinit: make-private /: %w", err)
	}
	if err := unix.Mount(srcBind, "/tmp", "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("nsinit: bind %s onto /tmp: %w", srcBind, err)
	}
	if err := unix.Unmount(basepath, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("nsinit: detach basepath: %w", err)
	}
	if err := unix.Unmount("/dev/shm", unix.MNT_DETACH); err != nil && err != unix.EINVAL {
		return fmt.Errorf("nsinit: detach /dev/shm: %w", err)
	}
	if err := unix.Mount("tmpfs", "/dev/shm", "tmpfs", 0, ""); err != nil {
		return fmt.Errorf("nsinit: remount /dev/shm: %w", err)
	}
	return nil
}

// Join enters jobID's namespace on behalf of uid: chown src_bind to uid,
// setns into ns_holder, then mark .active on first successful join. Job id
// 0 is reserved for "not a real job" and is a no-op success.
func (e *Engine) Join(jobID, uid uint32) error {
	if jobID == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := "error"
	defer func() { metrics.NamespaceOperations.WithLabelValues("join", outcome).Inc() }()

	paths := PathsFor(e.basepath, jobID)

	if err := os.Chown(paths.SrcBind, int(uid), -1); err != nil {
		return fmt.Errorf("%w: chown src_bind: %v", ErrNamespaceBroken, err)
	}

	fd, err := os.Open(paths.NSHolder)
	if err != nil {
		return fmt.Errorf("%w: open ns_holder: %v", ErrNamespaceBroken, err)
	}
	defer fd.Close()

	if err := unix.Setns(int(fd.Fd()), unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("%w: setns: %v", ErrNamespaceBroken, err)
	}

	active, err := os.OpenFile(paths.Active, os.O_CREATE|os.O_RDWR, 0o700)
	if err != nil {
		return fmt.Errorf("%w: touch .active: %v", ErrNamespaceBroken, err)
	}
	active.Close()

	outcome = "ok"
	return nil
}

// JoinExternal returns the already-open namespace file descriptor for
// callers that want to attach a process-tracking container without
// entering the namespace themselves. It refuses if .active is missing.
func (e *Engine) JoinExternal(jobID uint32) (*os.File, error) {
	paths := PathsFor(e.basepath, jobID)
	if _, err := os.Stat(paths.Active); err != nil {
		return nil, fmt.Errorf("%w: .active missing for job %d", ErrNamespaceBroken, jobID)
	}
	fd, err := os.Open(paths.NSHolder)
	if err != nil {
		return nil, fmt.Errorf("%w: open ns_holder: %v", ErrNamespaceBroken, err)
	}
	return fd, nil
}

// Delete detaches ns_holder and recursively removes job_mount. Failure of
// either step is reported but the other is still attempted.
func (e *Engine) Delete(jobID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := "error"
	defer func() { metrics.NamespaceOperations.WithLabelValues("delete", outcome).Inc() }()

	paths := PathsFor(e.basepath, jobID)

	if _, err := os.Stat(paths.JobMount); err != nil {
		return fmt.Errorf("%w: job %d not present", ErrNamespaceBroken, jobID)
	}

	var errs []error
	if err := unix.Unmount(paths.NSHolder, unix.MNT_DETACH); err != nil && err != unix.EINVAL {
		errs = append(errs, fmt.Errorf("detach ns_holder: %w", err))
	}
	if err := removeTree(paths.JobMount); err != nil {
		errs = append(errs, fmt.Errorf("remove job_mount: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrNamespaceBroken, errors.Join(errs...))
	}
	outcome = "ok"

	if e.ledger != nil {
		if err := e.ledger.DeleteJob(jobID); err != nil {
			log.Logger.Error().Err(err).Uint32("job_id", jobID).Msg("failed to remove job from ledger")
		}
	}
	return nil
}

// Reconfigure is a no-op hook for future config reload, the idiomatic
// equivalent of the original plugin contract's container_p_reconfig.
func (e *Engine) Reconfigure() error {
	return nil
}

// Shutdown detaches basepath and drops the loaded configuration.
func (e *Engine) Shutdown() {
	ShutdownBase(e.basepath)
}

// removeTree performs a post-order, non-crossing, non-symlink-following
// removal of root, the Go equivalent of nftw(..., FTW_DEPTH|FTW_PHYS).
func removeTree(root string) error {
	rootInfo, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	rootDev := deviceOf(rootInfo)

	var toRemove []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			toRemove = append(toRemove, path)
			return nil
		}
		if deviceOf(info) != rootDev {
			return fmt.Errorf("nsengine: refusing to cross device boundary at %s", path)
		}
		toRemove = append(toRemove, path)
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(toRemove) - 1; i >= 0; i-- {
		if rmErr := os.Remove(toRemove[i]); rmErr != nil && !os.IsNotExist(rmErr) {
			return rmErr
		}
	}
	return nil
}

func deviceOf(info fs.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Dev)
	}
	return 0
}

func socketpair() (*os.File, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}
	return os.NewFile(uintptr(fds[0]), "nsengine-parent"), os.NewFile(uintptr(fds[1]), "nsengine-child"), nil
}

func writeByte(f *os.File) error {
	_, err := f.Write([]byte{1})
	return err
}

func readByte(f *os.File) error {
	buf := make([]byte, 1)
	_, err := f.Read(buf)
	return err
}
