// Package gres is the concrete default for the credential subsystem's GRES
// (generic resource) collaborator: an opaque-payload store the job
// credential delegates to when projecting per-host GRES allocations. The
// actual GRES accounting (device plugin discovery, topology-aware
// allocation) is out of scope; this package only implements the narrow
// contract the credential package needs: "given a packed allocation list
// and a host index, extract that host's share."
package gres

import "fmt"

// ErrMissing is returned when a host index has no corresponding entry in
// the GRES allocation list.
var ErrMissing = fmt.Errorf("gres: allocation missing for host")

// Alloc is one host's GRES allocation, an opaque blob whose structure is
// owned entirely by the GRES plugin that produced it; the credential layer
// never interprets it.
type Alloc struct {
	HostIndex int
	Payload   []byte
}

// List is a job- or step-wide GRES allocation list, one Alloc per host that
// requested generic resources (hosts with none are simply absent).
type List []Alloc

// ExtractJob returns the job-wide GRES allocation for hostIndex.
func ExtractJob(list List, hostIndex int) ([]byte, error) {
	return extract(list, hostIndex)
}

// ExtractStep returns the step-wide GRES allocation for hostIndex.
func ExtractStep(list List, hostIndex int) ([]byte, error) {
	return extract(list, hostIndex)
}

func extract(list List, hostIndex int) ([]byte, error) {
	for _, a := range list {
		if a.HostIndex == hostIndex {
			return a.Payload, nil
		}
	}
	return nil, ErrMissing
}
