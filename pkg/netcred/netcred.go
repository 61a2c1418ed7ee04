// Package netcred is a thin wrapper over the signer façade for network
// (address-list) credentials: two functions, both requiring the façade to
// be initialized, both rejecting nil input outright.
package netcred

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/bastionrun/bastion/pkg/metrics"
	"github.com/bastionrun/bastion/pkg/signer"
)

// ErrInvalidArgument is returned for nil or empty inputs.
var ErrInvalidArgument = errors.New("netcred: invalid argument")

// metricsKind is the "kind" label value pkg/metrics' credential counters
// use for net credentials, as opposed to job or bcast credentials.
const metricsKind = "net"

// Make asks the signer to produce an opaque blob embedding addrs and a
// signature over them.
func Make(addrs []netip.Addr, version uint16) ([]byte, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: empty address list", ErrInvalidArgument)
	}
	f := signer.Get()
	if f == nil {
		return nil, signer.ErrNotInitialized
	}

	strs := make([]string, len(addrs))
	for i, a := range addrs {
		strs[i] = a.String()
	}
	blob, err := f.CreateNetCred(&signer.NetCredArg{Addrs: strs}, version)
	if err != nil {
		metrics.CredentialsRejected.WithLabelValues(metricsKind, "sign_failed").Inc()
		return nil, err
	}
	metrics.CredentialsIssued.WithLabelValues(metricsKind).Inc()
	return blob, nil
}

// Extract returns the address list embedded in blob iff the signer accepts
// it.
func Extract(blob []byte, version uint16) ([]netip.Addr, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrInvalidArgument)
	}
	f := signer.Get()
	if f == nil {
		return nil, signer.ErrNotInitialized
	}

	arg, err := f.ExtractNetCred(blob, version)
	if err != nil {
		return nil, err
	}

	addrs := make([]netip.Addr, len(arg.Addrs))
	for i, s := range arg.Addrs {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("netcred: malformed address %q: %w", s, err)
		}
		addrs[i] = a
	}
	return addrs, nil
}
