package transport

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully qualified gRPC service name CredentialShip
// registers under.
const serviceName = "bastion.transport.CredentialShip"

// RegisterCredentialShipServer registers srv against s using the
// bastionwire codec.
func RegisterCredentialShipServer(s *grpc.Server, srv CredentialShipServer) {
	s.RegisterService(&credentialShipServiceDesc, srv)
}

var credentialShipServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CredentialShipServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ship",
			Handler:    shipHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bastion/transport.proto",
}

func shipHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ShipRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CredentialShipServer).Ship(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Ship",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CredentialShipServer).Ship(ctx, req.(*ShipRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// CredentialShipClient is the scheduler-side handle for shipping
// credentials to a node's CredentialShip endpoint.
type CredentialShipClient interface {
	Ship(ctx context.Context, req *ShipRequest, opts ...grpc.CallOption) (*ShipResponse, error)
}

type credentialShipClient struct {
	cc grpc.ClientConnInterface
}

// NewCredentialShipClient wraps an established connection.
func NewCredentialShipClient(cc grpc.ClientConnInterface) CredentialShipClient {
	return &credentialShipClient{cc: cc}
}

func (c *credentialShipClient) Ship(ctx context.Context, req *ShipRequest, opts ...grpc.CallOption) (*ShipResponse, error) {
	out := new(ShipResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Ship", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
