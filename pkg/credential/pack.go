package credential

import (
	"fmt"

	"github.com/bastionrun/bastion/pkg/gres"
	"github.com/bastionrun/bastion/pkg/wire"
)

// encodeArgBody frames the resource-allocation portion of Arg (everything
// the signer.CredentialArg.Body opaque field carries) using the wire
// package's tag-free, order-dependent packer.
func encodeArgBody(arg *Arg) []byte {
	b := wire.NewBuffer()
	b.PutUint32(arg.JobNHosts)
	b.PutString(arg.JobHosts)
	b.PutString(arg.StepHosts)

	b.PutUint16Array(arg.Cores.SocketsPerNode)
	b.PutUint16Array(arg.Cores.CoresPerSocket)
	b.PutUint32Array(arg.Cores.RepCount)

	b.PutBoolArray(arg.JobCoreBitmap)
	b.PutBoolArray(arg.StepCoreBitmap)

	b.PutUint64Array(arg.JobMem.Alloc)
	b.PutUint32Array(arg.JobMem.RepCount)
	b.PutUint64Array(arg.StepMem.Alloc)
	b.PutUint32Array(arg.StepMem.RepCount)

	putGresList(b, arg.JobGres)
	putGresList(b, arg.StepGres)

	return b.Bytes()
}

func decodeArgBody(body []byte) (*Arg, error) {
	b := wire.NewBufferFromBytes(body)
	arg := &Arg{}

	var err error
	if arg.JobNHosts, err = b.TakeUint32(); err != nil {
		return nil, err
	}
	if arg.JobHosts, err = b.TakeString(); err != nil {
		return nil, err
	}
	if arg.StepHosts, err = b.TakeString(); err != nil {
		return nil, err
	}

	if arg.Cores.SocketsPerNode, err = b.TakeUint16Array(); err != nil {
		return nil, err
	}
	if arg.Cores.CoresPerSocket, err = b.TakeUint16Array(); err != nil {
		return nil, err
	}
	if arg.Cores.RepCount, err = b.TakeUint32Array(); err != nil {
		return nil, err
	}

	if arg.JobCoreBitmap, err = b.TakeBoolArray(); err != nil {
		return nil, err
	}
	if arg.StepCoreBitmap, err = b.TakeBoolArray(); err != nil {
		return nil, err
	}

	if arg.JobMem.Alloc, err = b.TakeUint64Array(); err != nil {
		return nil, err
	}
	if arg.JobMem.RepCount, err = b.TakeUint32Array(); err != nil {
		return nil, err
	}
	if arg.StepMem.Alloc, err = b.TakeUint64Array(); err != nil {
		return nil, err
	}
	if arg.StepMem.RepCount, err = b.TakeUint32Array(); err != nil {
		return nil, err
	}

	if arg.JobGres, err = takeGresList(b); err != nil {
		return nil, err
	}
	if arg.StepGres, err = takeGresList(b); err != nil {
		return nil, err
	}

	return arg, nil
}

func putGresList(b *wire.Buffer, list gres.List) {
	b.PutUint32(uint32(len(list)))
	for _, a := range list {
		b.PutUint32(uint32(a.HostIndex))
		b.PutBytes(a.Payload)
	}
}

func takeGresList(b *wire.Buffer) (gres.List, error) {
	n, err := b.TakeUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make(gres.List, n)
	for i := range out {
		hostIndex, err := b.TakeUint32()
		if err != nil {
			return nil, fmt.Errorf("credential: gres entry %d: %w", i, err)
		}
		payload, err := b.TakeBytes()
		if err != nil {
			return nil, fmt.Errorf("credential: gres entry %d: %w", i, err)
		}
		out[i] = gres.Alloc{HostIndex: int(hostIndex), Payload: payload}
	}
	return out, nil
}

// ScaleCPUCount caps a reported CPU count at the width of an allocated
// core window: a count above the window width is reduced to the width, a
// count at or below it is returned unchanged, and a non-positive count or
// width yields 0.
func ScaleCPUCount(allocatedCPUs, coreWindowWidth int) int {
	if coreWindowWidth <= 0 || allocatedCPUs <= 0 {
		return 0
	}
	if allocatedCPUs <= coreWindowWidth {
		return allocatedCPUs
	}
	return coreWindowWidth
}
