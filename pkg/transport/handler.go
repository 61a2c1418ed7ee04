package transport

import (
	"context"

	"github.com/bastionrun/bastion/pkg/credential"
	"github.com/bastionrun/bastion/pkg/log"
)

// Handler is the node-side CredentialShipServer implementation: it unpacks
// and verifies a shipped credential and reports whether the node accepts
// it. Grounded on the teacher's pkg/api/server.go pattern of the RPC
// server struct implementing its service interface directly, with
// business logic inline rather than delegated to a separate service
// layer.
type Handler struct {
	component string
}

// NewHandler returns a Handler that logs under the given component name.
func NewHandler(component string) *Handler {
	if component == "" {
		component = "transport"
	}
	return &Handler{component: component}
}

// Ship unpacks req's credential, verifies it hasn't expired, and releases
// the verification lock before returning.
func (h *Handler) Ship(ctx context.Context, req *ShipRequest) (*ShipResponse, error) {
	logger := log.WithComponent(h.component)

	jc, err := credential.Unpack(req.Body, req.Sig, req.Version)
	if err != nil {
		logger.Warn().Err(err).Msg("credential rejected: unpack failed")
		return &ShipResponse{Accepted: false, Reason: err.Error()}, nil
	}

	arg, release, err := jc.Verify()
	release()
	if err != nil {
		logger.Warn().Err(err).Msg("credential rejected: verify failed")
		return &ShipResponse{Accepted: false, Reason: err.Error()}, nil
	}

	logger.Info().
		Str("step", arg.Step.String()).
		Uint32("uid", arg.Identity.UID).
		Msg("credential accepted")
	return &ShipResponse{Accepted: true}, nil
}
