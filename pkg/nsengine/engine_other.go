//go:build !linux

package nsengine

import (
	"context"
	"os"

	"github.com/bastionrun/bastion/pkg/storage"
)

// Engine is a non-functional placeholder outside Linux so the rest of the
// module still builds on a development laptop.
type Engine struct{}

func New(basepath, initScript string) *Engine { return &Engine{} }

func (e *Engine) SetLedger(ledger storage.Ledger) {}

func (e *Engine) State(jobID uint32) (State, error) { return Absent, ErrNotSupported }

func (e *Engine) Create(ctx context.Context, jobID uint32) error { return ErrNotSupported }

func (e *Engine) Join(jobID, uid uint32) error { return ErrNotSupported }

func (e *Engine) JoinExternal(jobID uint32) (*os.File, error) { return nil, ErrNotSupported }

func (e *Engine) Delete(jobID uint32) error { return ErrNotSupported }

func (e *Engine) Reconfigure() error { return ErrNotSupported }

func (e *Engine) Shutdown() {}
