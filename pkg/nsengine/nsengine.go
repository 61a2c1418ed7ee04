// Package nsengine implements the per-job filesystem-isolation subsystem:
// creation, joining, and teardown of a private Linux mount namespace that
// gives each batch job its own /tmp and /dev/shm on a shared compute node.
//
// The platform-specific mount work lives in engine_linux.go/base_linux.go
// (build-tagged linux) and engine_other.go/base_other.go (build-tagged
// !linux, returning ErrNotSupported from every entry point) so the rest of
// the module stays buildable on a development laptop.
package nsengine

import (
	"errors"
	"path/filepath"
	"strconv"
)

// Errors surfaced to callers.
var (
	ErrNotSupported    = errors.New("nsengine: not supported on this platform")
	ErrBaseMountFailed = errors.New("nsengine: base mount failed")
	ErrChildFailed     = errors.New("nsengine: namespace child failed")
	ErrNamespaceBroken = errors.New("nsengine: namespace broken")
	ErrInvalidArgument = errors.New("nsengine: invalid argument")
)

// State is the lifecycle state of a per-job namespace.
type State int

const (
	// Absent: no job directory exists yet.
	Absent State = iota
	// Initializing: job directory created, handshake not yet started.
	Initializing
	// Bound: the namespace has been captured (ns_holder bound) but no
	// process has joined it yet, so .active has not been written.
	Bound
	// Ready: .active exists; the namespace is usable.
	Ready
	// Broken: the job directory exists but .active is missing and the
	// directory is not mid-creation by this process. Fatal; never retry
	// automatically.
	Broken
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Initializing:
		return "initializing"
	case Bound:
		return "bound"
	case Ready:
		return "ready"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}

// JobPaths is the on-disk layout rooted at basepath/<jobID>/.
type JobPaths struct {
	JobMount string // basepath/<jobID>
	NSHolder string // JobMount/.ns
	SrcBind  string // JobMount/.<jobID>
	Active   string // JobMount/.active
}

// PathsFor computes the layout for jobID under basepath.
func PathsFor(basepath string, jobID uint32) JobPaths {
	id := strconv.FormatUint(uint64(jobID), 10)
	jobMount := filepath.Join(basepath, id)
	return JobPaths{
		JobMount: jobMount,
		NSHolder: filepath.Join(jobMount, ".ns"),
		SrcBind:  filepath.Join(jobMount, "."+id),
		Active:   filepath.Join(jobMount, ".active"),
	}
}

// HiddenReexecCommand is the cobra subcommand name the namespace engine
// re-execs into to run inside a freshly cloned mount namespace.
const HiddenReexecCommand = "__nsinit"
